package waf

import (
	"context"
)

// Neutral score returned when a lookup dependency fails or times out.
// Neutral results never block: an infrastructure fault must fail open.
const scoreNeutral = 50

// Result is the outcome of one signal evaluator for one request.
type Result struct {
	Matched bool
	Score   int    // 0-100
	Action  string // suggested action when matched: block, challenge, monitor
	Reason  string
	Detail  string

	// Rule UUIDs whose match is enforceable for this request.
	RuleMatches []string
	// Rule UUIDs matched in shadow/unsampled-canary observation only.
	ShadowMatches []string
}

// Evaluator is a single signal check. Evaluators are independent of each
// other, never mutate shared request state, and must honor ctx so the
// composer can cut them off at the evaluator timeout.
type Evaluator interface {
	Name() string
	Evaluate(ctx context.Context, req *Request, snap *Snapshot) Result
}
