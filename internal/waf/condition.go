package waf

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Condition kinds. Each kind owns only the fields it needs; adding a kind
// is a closed, type-checked change rather than a string dispatch.
const (
	KindPattern      = "pattern"
	KindRateLimit    = "rate_threshold"
	KindGeo          = "geo"
	KindBotSignature = "bot_signature"
)

// Pattern targets.
const (
	TargetPath    = "path"
	TargetQuery   = "query"
	TargetBody    = "body"
	TargetHeaders = "headers"
)

var ErrInvalidCondition = errors.New("invalid rule condition")

// Condition is one clause of a rule's condition set. A rule matches a
// request when every condition in its set matches.
type Condition interface {
	Kind() string
	Matches(req *Request) bool
}

// PatternCondition matches compiled regular expressions against selected
// parts of the request (injection, XSS and traversal signatures).
type PatternCondition struct {
	Patterns []*regexp.Regexp
	Targets  []string
}

func (c *PatternCondition) Kind() string { return KindPattern }

func (c *PatternCondition) Matches(req *Request) bool {
	for _, target := range c.Targets {
		for _, val := range c.targetValues(req, target) {
			for _, re := range c.Patterns {
				if re.MatchString(val) {
					return true
				}
			}
		}
	}
	return false
}

func (c *PatternCondition) targetValues(req *Request, target string) []string {
	switch target {
	case TargetPath:
		return []string{req.URL.Path}
	case TargetQuery:
		if req.URL.RawQuery == "" {
			return nil
		}
		// Match both the raw and the decoded query so URL-encoded payloads
		// cannot slip past the signatures.
		vals := []string{req.URL.RawQuery}
		for _, vs := range req.URL.Query() {
			vals = append(vals, vs...)
		}
		return vals
	case TargetBody:
		if req.Body == "" {
			return nil
		}
		return []string{req.Body}
	case TargetHeaders:
		var vals []string
		for _, vs := range req.Headers {
			vals = append(vals, vs...)
		}
		return vals
	}
	return nil
}

// RateThresholdCondition carries a per-rule request budget. It cannot be
// decided from a single request; the rate limit evaluator consults it
// against the shared window counters.
type RateThresholdCondition struct {
	Limit         int
	WindowSeconds int
}

func (c *RateThresholdCondition) Kind() string { return KindRateLimit }

// Matches always reports false: rate thresholds need request history and
// are enforced by the rate limit evaluator, not per-request matching.
func (c *RateThresholdCondition) Matches(*Request) bool { return false }

// GeoCondition matches the request's resolved country against explicit
// allow/block lists. An unresolved country never matches.
type GeoCondition struct {
	Blocked []string
	Allowed []string
}

func (c *GeoCondition) Kind() string { return KindGeo }

func (c *GeoCondition) Matches(req *Request) bool {
	if req.Country == "" {
		return false
	}
	for _, cc := range c.Blocked {
		if strings.EqualFold(cc, req.Country) {
			return true
		}
	}
	if len(c.Allowed) > 0 {
		for _, cc := range c.Allowed {
			if strings.EqualFold(cc, req.Country) {
				return false
			}
		}
		return true
	}
	return false
}

// BotSignatureCondition matches user-agent fragments.
type BotSignatureCondition struct {
	Fragments []string
}

func (c *BotSignatureCondition) Kind() string { return KindBotSignature }

func (c *BotSignatureCondition) Matches(req *Request) bool {
	ua := strings.ToLower(req.UserAgent)
	if ua == "" {
		return false
	}
	for _, f := range c.Fragments {
		if strings.Contains(ua, strings.ToLower(f)) {
			return true
		}
	}
	return false
}

// conditionJSON is the stored envelope for one condition.
type conditionJSON struct {
	Kind          string   `json:"kind"`
	Patterns      []string `json:"patterns,omitempty"`
	Targets       []string `json:"targets,omitempty"`
	Limit         int      `json:"limit,omitempty"`
	WindowSeconds int      `json:"window_seconds,omitempty"`
	Blocked       []string `json:"blocked,omitempty"`
	Allowed       []string `json:"allowed,omitempty"`
	Fragments     []string `json:"fragments,omitempty"`
}

// ParseConditions decodes and compiles a rule's stored condition set.
func ParseConditions(raw string) ([]Condition, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty condition set", ErrInvalidCondition)
	}

	var envelopes []conditionJSON
	if err := json.Unmarshal([]byte(raw), &envelopes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCondition, err)
	}
	if len(envelopes) == 0 {
		return nil, fmt.Errorf("%w: empty condition set", ErrInvalidCondition)
	}

	conds := make([]Condition, 0, len(envelopes))
	for _, env := range envelopes {
		cond, err := env.compile()
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	return conds, nil
}

func (env conditionJSON) compile() (Condition, error) {
	switch env.Kind {
	case KindPattern:
		if len(env.Patterns) == 0 {
			return nil, fmt.Errorf("%w: pattern condition without patterns", ErrInvalidCondition)
		}
		targets := env.Targets
		if len(targets) == 0 {
			targets = []string{TargetPath, TargetQuery, TargetBody}
		}
		compiled := make([]*regexp.Regexp, 0, len(env.Patterns))
		for _, p := range env.Patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("%w: pattern %q: %v", ErrInvalidCondition, p, err)
			}
			compiled = append(compiled, re)
		}
		return &PatternCondition{Patterns: compiled, Targets: targets}, nil
	case KindRateLimit:
		if env.Limit <= 0 {
			return nil, fmt.Errorf("%w: rate threshold requires a positive limit", ErrInvalidCondition)
		}
		window := env.WindowSeconds
		if window <= 0 {
			window = 60
		}
		return &RateThresholdCondition{Limit: env.Limit, WindowSeconds: window}, nil
	case KindGeo:
		if len(env.Blocked) == 0 && len(env.Allowed) == 0 {
			return nil, fmt.Errorf("%w: geo condition without countries", ErrInvalidCondition)
		}
		return &GeoCondition{Blocked: env.Blocked, Allowed: env.Allowed}, nil
	case KindBotSignature:
		if len(env.Fragments) == 0 {
			return nil, fmt.Errorf("%w: bot signature condition without fragments", ErrInvalidCondition)
		}
		return &BotSignatureCondition{Fragments: env.Fragments}, nil
	}
	return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidCondition, env.Kind)
}
