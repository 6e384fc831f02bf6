package waf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequest(t *testing.T) {
	req, err := ParseRequest(RawRequest{
		Method:    "GET",
		URL:       "/search?q=hello",
		Headers:   map[string]string{"Accept": "text/html"},
		SourceIP:  "203.0.113.9",
		UserAgent: "Mozilla/5.0",
	})
	require.NoError(t, err)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/search", req.URL.Path)
	assert.Equal(t, "q=hello", req.URL.RawQuery)
	assert.Equal(t, "203.0.113.9", req.SourceIP)
	assert.Equal(t, "Mozilla/5.0", req.UserAgent)
	assert.False(t, req.Timestamp.IsZero())
}

func TestParseRequest_UserAgentFromHeader(t *testing.T) {
	req, err := ParseRequest(RawRequest{
		Method:   "GET",
		URL:      "/",
		Headers:  map[string]string{"User-Agent": "curl/8.5.0"},
		SourceIP: "203.0.113.9",
	})
	require.NoError(t, err)
	assert.Equal(t, "curl/8.5.0", req.UserAgent)
}

func TestParseRequest_Malformed(t *testing.T) {
	cases := []struct {
		name string
		raw  RawRequest
	}{
		{"missing method", RawRequest{URL: "/", SourceIP: "203.0.113.9"}},
		{"missing source ip", RawRequest{Method: "GET", URL: "/"}},
		{"invalid source ip", RawRequest{Method: "GET", URL: "/", SourceIP: "not-an-ip"}},
		{"empty url", RawRequest{Method: "GET", SourceIP: "203.0.113.9"}},
		{"unparsable url", RawRequest{Method: "GET", URL: "http://%zz", SourceIP: "203.0.113.9"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseRequest(tc.raw)
			assert.ErrorIs(t, err, ErrMalformedRequest)
		})
	}
}

func TestParseRequest_IPv6Source(t *testing.T) {
	req, err := ParseRequest(RawRequest{Method: "GET", URL: "/", SourceIP: "2001:db8::1"})
	require.NoError(t, err)
	assert.Equal(t, "2001:db8::1", req.SourceIP)
}
