package waf

import (
	"context"
	"net/http"
	"time"

	"github.com/aegis-waf/aegis/internal/config"
	"github.com/aegis-waf/aegis/internal/logger"
	"github.com/aegis-waf/aegis/internal/metrics"
)

// Decision actions.
const (
	ActionAllow     = "allow"
	ActionBlock     = "block"
	ActionChallenge = "challenge"
)

// Decision is the single outcome of one request evaluation. It is
// returned synchronously to the caller and logged as a derived
// SecurityEvent off the hot path; it is never the primary stored record.
type Decision struct {
	Action           string   `json:"action"`
	StatusCode       int      `json:"status_code"`
	ThreatScore      int      `json:"threat_score"`
	Reason           string   `json:"reason"`
	RuleMatches      []string `json:"rule_matches"`
	ShadowMatches    []string `json:"-"`
	ProcessingTimeMs int64    `json:"processing_time_ms"`
}

// EventSink receives decisions for asynchronous, best-effort persistence.
// Implementations must never block the caller.
type EventSink interface {
	Record(dec *Decision, req *Request)
}

// Engine composes the signal evaluators into one decision per request.
//
// Evaluators run in a fixed precedence so the cheapest, most decisive
// checks short-circuit first: reputation, rate limit, signature, geo,
// bot. Any internal fault resolves to allow.
type Engine struct {
	cfg        config.Config
	snapshots  *SnapshotStore
	evaluators []Evaluator
	resolver   GeoResolver
	sink       EventSink
}

// NewEngine wires the evaluator chain in its documented precedence.
func NewEngine(cfg config.Config, snapshots *SnapshotStore, reputation ReputationStore, counter *WindowCounter, resolver GeoResolver, sink EventSink) *Engine {
	return &Engine{
		cfg:       cfg,
		snapshots: snapshots,
		resolver:  resolver,
		sink:      sink,
		evaluators: []Evaluator{
			&IPReputationEvaluator{Store: reputation, Threshold: cfg.ReputationThreshold},
			&RateLimitEvaluator{Counter: counter, Limit: cfg.RateLimit},
			&SignatureEvaluator{},
			&GeoEvaluator{Blocked: cfg.GeoBlockedCountries, Allowed: cfg.GeoAllowedCountries},
			&BotEvaluator{},
		},
	}
}

// Evaluate produces exactly one decision for the raw request. It never
// returns an error: every fault path resolves to an allow decision.
func (e *Engine) Evaluate(ctx context.Context, raw RawRequest) *Decision {
	start := time.Now()

	req, err := ParseRequest(raw)
	if err != nil {
		logger.Log().WithError(err).Debug("malformed request, failing open")
		return e.finish(start, nil, &Decision{Action: ActionAllow, Reason: "malformed_request"})
	}

	if e.resolver != nil {
		req.Country = e.resolver.Country(req)
	}

	snap := e.snapshots.Current()
	if snap == nil {
		// Degraded mode: no rules loaded at all. The request is allowed
		// and the condition surfaces through the logged event.
		return e.finish(start, req, &Decision{Action: ActionAllow, Reason: "rule_store_unavailable"})
	}

	dec := &Decision{Action: ActionAllow}
	var maxScore int
	var reason string
	challengeHint := false

	for _, ev := range e.evaluators {
		res := e.runEvaluator(ctx, ev, req, snap)

		dec.RuleMatches = append(dec.RuleMatches, res.RuleMatches...)
		dec.ShadowMatches = append(dec.ShadowMatches, res.ShadowMatches...)

		if res.Score > maxScore {
			maxScore = res.Score
			reason = res.Reason
		}
		if res.Matched && res.Action == ActionChallenge {
			challengeHint = true
		}

		// A definitive block terminates evaluation immediately.
		if res.Matched && res.Action == ActionBlock && res.Score >= e.cfg.BlockThreshold {
			dec.Action = ActionBlock
			dec.ThreatScore = res.Score
			dec.Reason = res.Reason
			return e.finish(start, req, dec)
		}
	}

	dec.ThreatScore = maxScore
	dec.Reason = reason
	switch {
	case maxScore >= e.cfg.BlockThreshold:
		dec.Action = ActionBlock
	case maxScore >= e.cfg.ChallengeThreshold && challengeHint:
		dec.Action = ActionChallenge
	default:
		dec.Action = ActionAllow
		if dec.Reason == "" {
			dec.Reason = "no_threat_detected"
		}
	}

	return e.finish(start, req, dec)
}

// runEvaluator applies the hard per-evaluator timeout. A timed-out or
// cancelled evaluator yields a neutral result instead of blocking.
func (e *Engine) runEvaluator(ctx context.Context, ev Evaluator, req *Request, snap *Snapshot) Result {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.EvaluatorTimeout)
	defer cancel()

	ch := make(chan Result, 1)
	go func() {
		ch <- ev.Evaluate(ctx, req, snap)
	}()

	select {
	case res := <-ch:
		return res
	case <-ctx.Done():
		metrics.IncEvaluatorTimeout(ev.Name())
		return Result{Score: scoreNeutral, Reason: ev.Name() + "_unavailable"}
	}
}

func (e *Engine) finish(start time.Time, req *Request, dec *Decision) *Decision {
	dec.StatusCode = statusFor(dec)
	if dec.RuleMatches == nil {
		dec.RuleMatches = []string{}
	}
	dec.ProcessingTimeMs = time.Since(start).Milliseconds()
	metrics.IncDecision(dec.Action)

	shouldLog := dec.Action != ActionAllow ||
		dec.ThreatScore >= e.cfg.LogScoreThreshold ||
		len(dec.ShadowMatches) > 0 ||
		dec.Reason == "rule_store_unavailable"
	if req != nil && e.sink != nil && shouldLog {
		e.sink.Record(dec, req)
	}

	return dec
}

func statusFor(dec *Decision) int {
	switch dec.Action {
	case ActionBlock:
		if dec.Reason == "rate_limit_exceeded" {
			return http.StatusTooManyRequests
		}
		return http.StatusForbidden
	case ActionChallenge:
		return http.StatusForbidden
	}
	return http.StatusOK
}
