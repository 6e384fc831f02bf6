package waf

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type staticResolver string

func (r staticResolver) Country(*Request) string { return string(r) }

func TestHeaderResolver(t *testing.T) {
	r := &HeaderResolver{Header: "X-Country-Code"}

	req := mustRequest(t, RawRequest{URL: "/", Headers: map[string]string{"X-Country-Code": " de "}})
	assert.Equal(t, "DE", r.Country(req))

	req = mustRequest(t, RawRequest{URL: "/"})
	assert.Equal(t, "", r.Country(req))
}

func TestChainResolver(t *testing.T) {
	req := mustRequest(t, RawRequest{URL: "/"})

	chain := ChainResolver{staticResolver(""), staticResolver("FR"), staticResolver("US")}
	assert.Equal(t, "FR", chain.Country(req))

	empty := ChainResolver{staticResolver(""), staticResolver("")}
	assert.Equal(t, "", empty.Country(req))
}

func TestGeoEvaluator_BlockList(t *testing.T) {
	ev := &GeoEvaluator{Blocked: []string{"KP", "IR"}}

	req := mustRequest(t, RawRequest{URL: "/"})
	req.Country = "KP"
	res := ev.Evaluate(context.Background(), req, nil)
	assert.True(t, res.Matched)
	assert.Equal(t, "block", res.Action)
	assert.Equal(t, "geo_restricted", res.Reason)
	assert.Equal(t, 85, res.Score)

	req.Country = "DE"
	res = ev.Evaluate(context.Background(), req, nil)
	assert.False(t, res.Matched)
}

func TestGeoEvaluator_AllowList(t *testing.T) {
	ev := &GeoEvaluator{Allowed: []string{"US", "CA"}}

	req := mustRequest(t, RawRequest{URL: "/"})
	req.Country = "CA"
	res := ev.Evaluate(context.Background(), req, nil)
	assert.False(t, res.Matched)

	req.Country = "BR"
	res = ev.Evaluate(context.Background(), req, nil)
	assert.True(t, res.Matched)
	assert.Equal(t, "geo_restricted", res.Reason)
}

func TestGeoEvaluator_UnresolvedCountry(t *testing.T) {
	ev := &GeoEvaluator{Blocked: []string{"KP"}, Allowed: []string{"US"}}

	// No resolved country means no geo verdict either way.
	req := mustRequest(t, RawRequest{URL: "/"})
	res := ev.Evaluate(context.Background(), req, nil)
	assert.False(t, res.Matched)
	assert.Zero(t, res.Score)
}
