package waf

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

// Pipeline fault taxonomy. All of these resolve to an allow decision:
// availability of the protected origin wins over inspection completeness.
var (
	ErrMalformedRequest     = errors.New("malformed request")
	ErrRuleStoreUnavailable = errors.New("rule store unavailable")
)

// RawRequest is the transport-level input accepted by the decision API.
type RawRequest struct {
	Method    string            `json:"method"`
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers"`
	Body      string            `json:"body,omitempty"`
	SourceIP  string            `json:"source_ip"`
	UserAgent string            `json:"user_agent,omitempty"`
}

// Request is the canonical, immutable view of one inbound request. It is
// constructed once per evaluation and shared read-only across evaluators.
type Request struct {
	Method    string
	URL       *url.URL
	Headers   http.Header
	Body      string
	SourceIP  string
	UserAgent string
	Country   string // resolved before evaluation; empty when unresolved
	Timestamp time.Time
}

// ParseRequest normalizes raw transport input into a canonical Request.
// Missing method, missing or invalid source address, and unparsable URLs
// yield ErrMalformedRequest.
func ParseRequest(raw RawRequest) (*Request, error) {
	if raw.Method == "" {
		return nil, fmt.Errorf("%w: missing method", ErrMalformedRequest)
	}
	if raw.SourceIP == "" {
		return nil, fmt.Errorf("%w: missing source address", ErrMalformedRequest)
	}
	if net.ParseIP(raw.SourceIP) == nil {
		return nil, fmt.Errorf("%w: invalid source address %q", ErrMalformedRequest, raw.SourceIP)
	}

	u, err := url.Parse(raw.URL)
	if err != nil || raw.URL == "" {
		return nil, fmt.Errorf("%w: unparsable url %q", ErrMalformedRequest, raw.URL)
	}

	headers := make(http.Header, len(raw.Headers))
	for k, v := range raw.Headers {
		headers.Set(k, v)
	}

	ua := raw.UserAgent
	if ua == "" {
		ua = headers.Get("User-Agent")
	}

	return &Request{
		Method:    raw.Method,
		URL:       u,
		Headers:   headers,
		Body:      raw.Body,
		SourceIP:  raw.SourceIP,
		UserAgent: ua,
		Timestamp: time.Now(),
	}, nil
}
