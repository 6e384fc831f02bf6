package waf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRequest(t *testing.T, raw RawRequest) *Request {
	t.Helper()
	if raw.Method == "" {
		raw.Method = "GET"
	}
	if raw.SourceIP == "" {
		raw.SourceIP = "203.0.113.9"
	}
	req, err := ParseRequest(raw)
	require.NoError(t, err)
	return req
}

func TestParseConditions_Pattern(t *testing.T) {
	conds, err := ParseConditions(`[{"kind":"pattern","patterns":["union\\s+select"],"targets":["query"]}]`)
	require.NoError(t, err)
	require.Len(t, conds, 1)
	assert.Equal(t, KindPattern, conds[0].Kind())

	// Case-insensitive by construction.
	req := mustRequest(t, RawRequest{URL: "/products?id=1%20UNION%20SELECT%20password%20FROM%20users"})
	assert.True(t, conds[0].Matches(req))

	benign := mustRequest(t, RawRequest{URL: "/products?id=42"})
	assert.False(t, conds[0].Matches(benign))
}

func TestParseConditions_PatternDecodedQuery(t *testing.T) {
	// The payload only appears after URL decoding.
	conds, err := ParseConditions(`[{"kind":"pattern","patterns":["<script"],"targets":["query"]}]`)
	require.NoError(t, err)

	req := mustRequest(t, RawRequest{URL: "/comment?text=%3Cscript%3Ealert(1)%3C%2Fscript%3E"})
	assert.True(t, conds[0].Matches(req))
}

func TestParseConditions_PatternDefaultTargets(t *testing.T) {
	conds, err := ParseConditions(`[{"kind":"pattern","patterns":["\\.\\./"]}]`)
	require.NoError(t, err)

	inPath := mustRequest(t, RawRequest{URL: "/files/../../etc/passwd"})
	assert.True(t, conds[0].Matches(inPath))

	inBody := mustRequest(t, RawRequest{Method: "POST", URL: "/upload", Body: `{"path":"../../etc/shadow"}`})
	assert.True(t, conds[0].Matches(inBody))
}

func TestParseConditions_PatternHeaders(t *testing.T) {
	conds, err := ParseConditions(`[{"kind":"pattern","patterns":["sleep\\(\\d+\\)"],"targets":["headers"]}]`)
	require.NoError(t, err)

	req := mustRequest(t, RawRequest{URL: "/", Headers: map[string]string{"Referer": "1' AND sleep(5)--"}})
	assert.True(t, conds[0].Matches(req))
}

func TestParseConditions_RateThreshold(t *testing.T) {
	conds, err := ParseConditions(`[{"kind":"rate_threshold","limit":50}]`)
	require.NoError(t, err)

	rt, ok := conds[0].(*RateThresholdCondition)
	require.True(t, ok)
	assert.Equal(t, 50, rt.Limit)
	assert.Equal(t, 60, rt.WindowSeconds) // default window

	// Never decidable from a single request.
	req := mustRequest(t, RawRequest{URL: "/"})
	assert.False(t, rt.Matches(req))
}

func TestParseConditions_Geo(t *testing.T) {
	conds, err := ParseConditions(`[{"kind":"geo","blocked":["KP","IR"]}]`)
	require.NoError(t, err)

	req := mustRequest(t, RawRequest{URL: "/"})
	req.Country = "KP"
	assert.True(t, conds[0].Matches(req))

	req.Country = "DE"
	assert.False(t, conds[0].Matches(req))

	// Unresolved country never matches.
	req.Country = ""
	assert.False(t, conds[0].Matches(req))
}

func TestGeoCondition_AllowList(t *testing.T) {
	cond := &GeoCondition{Allowed: []string{"US", "CA"}}

	req := mustRequest(t, RawRequest{URL: "/"})
	req.Country = "US"
	assert.False(t, cond.Matches(req))

	req.Country = "BR"
	assert.True(t, cond.Matches(req))
}

func TestParseConditions_BotSignature(t *testing.T) {
	conds, err := ParseConditions(`[{"kind":"bot_signature","fragments":["sqlmap"]}]`)
	require.NoError(t, err)

	req := mustRequest(t, RawRequest{URL: "/", UserAgent: "sqlmap/1.7.2#stable"})
	assert.True(t, conds[0].Matches(req))

	req = mustRequest(t, RawRequest{URL: "/", UserAgent: "Mozilla/5.0"})
	assert.False(t, conds[0].Matches(req))
}

func TestParseConditions_Invalid(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"empty string", ""},
		{"empty array", "[]"},
		{"not json", "{nope"},
		{"unknown kind", `[{"kind":"quantum"}]`},
		{"pattern without patterns", `[{"kind":"pattern"}]`},
		{"broken regexp", `[{"kind":"pattern","patterns":["[unclosed"]}]`},
		{"rate without limit", `[{"kind":"rate_threshold"}]`},
		{"geo without countries", `[{"kind":"geo"}]`},
		{"bot without fragments", `[{"kind":"bot_signature"}]`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseConditions(tc.raw)
			assert.ErrorIs(t, err, ErrInvalidCondition)
		})
	}
}
