package waf

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// WindowCounter counts events per key over a trailing window using two
// fixed buckets with weighted overlap. Counting is deterministic: the
// same request history always yields the same counts. The increment and
// the read happen under one lock so concurrent bursts from a single
// address are neither under- nor over-counted.
type WindowCounter struct {
	mu      sync.Mutex
	window  time.Duration
	buckets map[string]*windowBucket
}

type windowBucket struct {
	start time.Time
	prev  int
	curr  int
}

func NewWindowCounter(window time.Duration) *WindowCounter {
	return &WindowCounter{
		window:  window,
		buckets: make(map[string]*windowBucket),
	}
}

// Observe records one event for key at time now and returns the weighted
// count of events within the trailing window, including this one.
func (c *WindowCounter) Observe(key string, now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.buckets[key]
	if !ok {
		b = &windowBucket{start: now}
		c.buckets[key] = b
	}

	elapsed := now.Sub(b.start)
	switch {
	case elapsed >= 2*c.window:
		b.start = now
		b.prev = 0
		b.curr = 0
		elapsed = 0
	case elapsed >= c.window:
		b.start = b.start.Add(c.window)
		b.prev = b.curr
		b.curr = 0
		elapsed = now.Sub(b.start)
	}

	b.curr++

	weight := 1 - float64(elapsed)/float64(c.window)
	return b.curr + int(float64(b.prev)*weight)
}

// Sweep drops buckets idle for more than two windows. Intended to run on
// a periodic maintenance cadence.
func (c *WindowCounter) Sweep(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, b := range c.buckets {
		if now.Sub(b.start) >= 2*c.window {
			delete(c.buckets, key)
		}
	}
}

// RateLimitEvaluator flags source addresses that exceed the configured
// per-window request budget. Rules carrying a rate threshold condition
// tighten the budget; the strictest enforceable limit wins.
type RateLimitEvaluator struct {
	Counter *WindowCounter
	Limit   int
}

func (e *RateLimitEvaluator) Name() string { return "rate_limit" }

func (e *RateLimitEvaluator) Evaluate(_ context.Context, req *Request, snap *Snapshot) Result {
	count := e.Counter.Observe(req.SourceIP, req.Timestamp)

	limit := e.Limit
	var ruleMatches, shadowMatches []string
	if snap != nil {
		for _, rule := range snap.RateRules() {
			rt := rule.rateThreshold()
			if rt == nil || count <= rt.Limit {
				continue
			}
			if rule.Enforced(req.SourceIP) {
				ruleMatches = append(ruleMatches, rule.UUID)
				if rt.Limit < limit {
					limit = rt.Limit
				}
			} else {
				shadowMatches = append(shadowMatches, rule.UUID)
			}
		}
	}

	if count > limit {
		return Result{
			Matched:       true,
			Score:         80,
			Action:        "block",
			Reason:        "rate_limit_exceeded",
			Detail:        fmt.Sprintf("%d requests in window, limit %d", count, limit),
			RuleMatches:   ruleMatches,
			ShadowMatches: shadowMatches,
		}
	}

	return Result{ShadowMatches: shadowMatches}
}
