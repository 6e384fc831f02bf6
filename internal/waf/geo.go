package waf

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/maxminddb-golang"
)

// GeoResolver maps a request to an ISO 3166-1 alpha-2 country code.
// Returning "" means the country could not be resolved.
type GeoResolver interface {
	Country(req *Request) string
}

// HeaderResolver trusts a country header set by an upstream edge proxy.
type HeaderResolver struct {
	Header string
}

func (r *HeaderResolver) Country(req *Request) string {
	return strings.ToUpper(strings.TrimSpace(req.Headers.Get(r.Header)))
}

type geoIPRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

// MaxMindResolver resolves countries from a MaxMind GeoIP database.
type MaxMindResolver struct {
	reader *maxminddb.Reader
}

func NewMaxMindResolver(dbPath string) (*MaxMindResolver, error) {
	reader, err := maxminddb.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return &MaxMindResolver{reader: reader}, nil
}

func (r *MaxMindResolver) Country(req *Request) string {
	ip := net.ParseIP(req.SourceIP)
	if ip == nil {
		return ""
	}
	var record geoIPRecord
	if err := r.reader.Lookup(ip, &record); err != nil {
		return ""
	}
	return record.Country.ISOCode
}

func (r *MaxMindResolver) Close() error {
	return r.reader.Close()
}

// ChainResolver tries resolvers in order and returns the first answer.
type ChainResolver []GeoResolver

func (c ChainResolver) Country(req *Request) string {
	for _, r := range c {
		if cc := r.Country(req); cc != "" {
			return cc
		}
	}
	return ""
}

// GeoEvaluator enforces the service-level country allow/block lists. An
// unresolved country never matches. Per-rule geo conditions go through
// the rule processor instead.
type GeoEvaluator struct {
	Blocked []string
	Allowed []string
}

func (e *GeoEvaluator) Name() string { return "geo" }

func (e *GeoEvaluator) Evaluate(_ context.Context, req *Request, _ *Snapshot) Result {
	cc := req.Country
	if cc == "" {
		return Result{}
	}

	for _, blocked := range e.Blocked {
		if strings.EqualFold(blocked, cc) {
			return Result{
				Matched: true,
				Score:   85,
				Action:  "block",
				Reason:  "geo_restricted",
				Detail:  fmt.Sprintf("country %s is blocked", cc),
			}
		}
	}

	if len(e.Allowed) > 0 {
		for _, allowed := range e.Allowed {
			if strings.EqualFold(allowed, cc) {
				return Result{}
			}
		}
		return Result{
			Matched: true,
			Score:   85,
			Action:  "block",
			Reason:  "geo_restricted",
			Detail:  fmt.Sprintf("country %s is not on the allow list", cc),
		}
	}

	return Result{}
}
