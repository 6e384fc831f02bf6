package waf

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// ReputationStore looks up a 0-100 reputation score for a source address.
// Lower scores mean worse reputation. The second return reports whether
// the address is known at all.
type ReputationStore interface {
	Score(ctx context.Context, ip string) (int, bool, error)
}

// MemoryReputation is an in-process reputation table, optionally loaded
// from a JSON file mapping addresses to scores.
type MemoryReputation struct {
	mu     sync.RWMutex
	scores map[string]int
}

func NewMemoryReputation() *MemoryReputation {
	return &MemoryReputation{scores: make(map[string]int)}
}

// LoadFile replaces the table with the contents of a JSON file of the
// form {"203.0.113.9": 5, ...}.
func (m *MemoryReputation) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read reputation file: %w", err)
	}

	scores := make(map[string]int)
	if err := json.Unmarshal(data, &scores); err != nil {
		return fmt.Errorf("parse reputation file: %w", err)
	}

	m.mu.Lock()
	m.scores = scores
	m.mu.Unlock()
	return nil
}

// Set records or updates one address's score.
func (m *MemoryReputation) Set(ip string, score int) {
	m.mu.Lock()
	m.scores[ip] = score
	m.mu.Unlock()
}

func (m *MemoryReputation) Score(_ context.Context, ip string) (int, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	score, ok := m.scores[ip]
	return score, ok, nil
}

// IPReputationEvaluator flags requests from addresses whose reputation
// score falls below the configured threshold.
type IPReputationEvaluator struct {
	Store     ReputationStore
	Threshold int
}

func (e *IPReputationEvaluator) Name() string { return "ip_reputation" }

func (e *IPReputationEvaluator) Evaluate(ctx context.Context, req *Request, _ *Snapshot) Result {
	score, found, err := e.Store.Score(ctx, req.SourceIP)
	if err != nil {
		// Lookup failure is neutral, never a block.
		return Result{Score: scoreNeutral, Reason: "reputation_unavailable", Detail: err.Error()}
	}
	if !found {
		return Result{}
	}
	if score < e.Threshold {
		return Result{
			Matched: true,
			Score:   95,
			Action:  "block",
			Reason:  "ip_reputation",
			Detail:  fmt.Sprintf("reputation score %d below threshold %d", score, e.Threshold),
		}
	}
	return Result{}
}
