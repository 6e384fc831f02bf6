package waf

import (
	"fmt"
	"hash/fnv"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/aegis-waf/aegis/internal/logger"
	"github.com/aegis-waf/aegis/internal/metrics"
	"github.com/aegis-waf/aegis/internal/models"
)

// CompiledRule is one rule of a snapshot with its condition set compiled
// and its deployment phase resolved.
type CompiledRule struct {
	UUID       string
	Name       string
	Category   string
	Severity   string
	Action     string
	Priority   int
	Enabled    bool
	Conditions []Condition

	// Deployment phase; empty for rules without an active deployment.
	Phase             string
	TrafficPercentage int
}

// MatchesConditions reports whether every condition in the rule's set
// matches the request.
func (r *CompiledRule) MatchesConditions(req *Request) bool {
	for _, cond := range r.Conditions {
		if !cond.Matches(req) {
			return false
		}
	}
	return len(r.Conditions) > 0
}

// Enforced reports whether a match on this rule may be acted on for the
// given source address. Shadow rules are observed only; canary rules are
// enforced for a deterministic slice of clients so replays behave
// identically.
func (r *CompiledRule) Enforced(sourceIP string) bool {
	switch r.Phase {
	case models.PhaseShadow:
		return false
	case models.PhaseCanary:
		return canarySample(sourceIP, r.UUID) < r.TrafficPercentage
	}
	return r.Enabled
}

// Observed reports whether this rule should be evaluated at all. Disabled
// rules are still observed while a shadow or canary deployment is active.
func (r *CompiledRule) Observed() bool {
	return r.Enabled || r.Phase == models.PhaseShadow || r.Phase == models.PhaseCanary
}

func canarySample(sourceIP, ruleUUID string) int {
	h := fnv.New32a()
	h.Write([]byte(sourceIP))
	h.Write([]byte(ruleUUID))
	return int(h.Sum32() % 100)
}

// Snapshot is an immutable view of the rule store, ordered by ascending
// priority. Request evaluation only ever reads snapshots; rule mutations
// become visible at the next refresh.
type Snapshot struct {
	Rules    []CompiledRule
	LoadedAt time.Time
}

// PatternRules returns the rules whose condition sets are decidable per
// request (pattern, geo and bot-signature kinds), in priority order.
func (s *Snapshot) PatternRules() []CompiledRule {
	out := make([]CompiledRule, 0, len(s.Rules))
	for _, r := range s.Rules {
		if r.rateOnly() {
			continue
		}
		out = append(out, r)
	}
	return out
}

// RateRules returns the rules carrying a rate threshold condition.
func (s *Snapshot) RateRules() []CompiledRule {
	var out []CompiledRule
	for _, r := range s.Rules {
		if r.rateThreshold() != nil {
			out = append(out, r)
		}
	}
	return out
}

func (r *CompiledRule) rateOnly() bool {
	if len(r.Conditions) != 1 {
		return false
	}
	return r.Conditions[0].Kind() == KindRateLimit
}

func (r *CompiledRule) rateThreshold() *RateThresholdCondition {
	for _, c := range r.Conditions {
		if rt, ok := c.(*RateThresholdCondition); ok {
			return rt
		}
	}
	return nil
}

// SnapshotStore loads rule snapshots from the database and publishes them
// through an atomically swapped pointer, so concurrent requests never see
// a half-updated rule list.
type SnapshotStore struct {
	db      *gorm.DB
	current atomic.Pointer[Snapshot]
}

func NewSnapshotStore(db *gorm.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// Current returns the active snapshot, or nil when none has loaded yet.
func (s *SnapshotStore) Current() *Snapshot {
	return s.current.Load()
}

// Refresh rebuilds the snapshot from the rule store. On failure the
// previous snapshot keeps serving and the failure is counted, so a store
// outage degrades visibility, not availability.
func (s *SnapshotStore) Refresh() error {
	snap, err := s.load()
	if err != nil {
		metrics.IncSnapshotFailure()
		logger.Log().WithError(err).Warn("rule snapshot refresh failed, keeping previous snapshot")
		return err
	}

	s.current.Store(snap)
	return nil
}

func (s *SnapshotStore) load() (*Snapshot, error) {
	var deployments []models.RuleDeployment
	if err := s.db.Where("status IN ?", []string{models.DeploymentActive, models.DeploymentNeedsReview}).
		Find(&deployments).Error; err != nil {
		return nil, fmt.Errorf("%w: load active deployments: %v", ErrRuleStoreUnavailable, err)
	}

	phases := make(map[string]models.RuleDeployment, len(deployments))
	observedUUIDs := make([]string, 0, len(deployments))
	for _, d := range deployments {
		phases[d.RuleUUID] = d
		observedUUIDs = append(observedUUIDs, d.RuleUUID)
	}

	var rules []models.SecurityRule
	q := s.db.Order("priority asc, id asc")
	if len(observedUUIDs) > 0 {
		q = q.Where("enabled = ? OR uuid IN ?", true, observedUUIDs)
	} else {
		q = q.Where("enabled = ?", true)
	}
	if err := q.Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("%w: load rules: %v", ErrRuleStoreUnavailable, err)
	}

	snap := &Snapshot{Rules: make([]CompiledRule, 0, len(rules)), LoadedAt: time.Now()}
	for _, rule := range rules {
		conds, err := ParseConditions(rule.Conditions)
		if err != nil {
			// A broken rule must not take down the snapshot; skip and report.
			logger.WithFields(map[string]interface{}{"rule": rule.UUID, "name": rule.Name}).
				WithError(err).Warn("skipping rule with invalid conditions")
			continue
		}

		compiled := CompiledRule{
			UUID:       rule.UUID,
			Name:       rule.Name,
			Category:   rule.Category,
			Severity:   rule.Severity,
			Action:     rule.Action,
			Priority:   rule.Priority,
			Enabled:    rule.Enabled,
			Conditions: conds,
		}
		if d, ok := phases[rule.UUID]; ok {
			compiled.Phase = d.Phase
			compiled.TrafficPercentage = d.TrafficPercentage
		}
		if compiled.Observed() {
			snap.Rules = append(snap.Rules, compiled)
		}
	}

	return snap, nil
}
