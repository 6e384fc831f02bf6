package waf

import (
	"context"
)

// SignatureEvaluator runs the rule store's condition sets against the
// request in ascending priority order. The first enforceable rule whose
// conditions match with a block action short-circuits; monitor and
// challenge matches accumulate.
type SignatureEvaluator struct{}

func (e *SignatureEvaluator) Name() string { return "signature" }

func (e *SignatureEvaluator) Evaluate(ctx context.Context, req *Request, snap *Snapshot) Result {
	if snap == nil {
		return Result{Score: scoreNeutral, Reason: "signature_unavailable"}
	}

	var agg Result
	for _, rule := range snap.PatternRules() {
		select {
		case <-ctx.Done():
			return agg
		default:
		}

		if !rule.MatchesConditions(req) {
			continue
		}

		if !rule.Enforced(req.SourceIP) {
			agg.ShadowMatches = append(agg.ShadowMatches, rule.UUID)
			continue
		}

		switch rule.Action {
		case "block":
			agg.Matched = true
			agg.Score = severityScore(rule.Severity)
			agg.Action = "block"
			agg.Reason = rule.Category
			agg.Detail = rule.Name
			agg.RuleMatches = append(agg.RuleMatches, rule.UUID)
			return agg
		case "challenge":
			agg.Matched = true
			if agg.Score < 65 {
				agg.Score = 65
				agg.Action = "challenge"
				agg.Reason = rule.Category
				agg.Detail = rule.Name
			}
			agg.RuleMatches = append(agg.RuleMatches, rule.UUID)
		default: // monitor
			agg.Matched = true
			if agg.Score < 40 {
				agg.Score = 40
				agg.Reason = rule.Category
				agg.Detail = rule.Name
			}
			agg.RuleMatches = append(agg.RuleMatches, rule.UUID)
		}
	}

	return agg
}

func severityScore(severity string) int {
	switch severity {
	case "critical":
		return 95
	case "high":
		return 90
	case "medium":
		return 85
	default:
		return 80
	}
}
