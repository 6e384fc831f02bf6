package waf

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBotEvaluator_AttackTool(t *testing.T) {
	ev := &BotEvaluator{}

	for _, ua := range []string{"sqlmap/1.7.2#stable", "Mozilla/5.0 Nikto/2.5.0", "masscan/1.3"} {
		res := ev.Evaluate(context.Background(), mustRequest(t, RawRequest{URL: "/", UserAgent: ua}), nil)
		assert.True(t, res.Matched, ua)
		assert.Equal(t, "block", res.Action, ua)
		assert.Equal(t, "malicious_automation", res.Reason, ua)
		assert.Equal(t, 95, res.Score, ua)
	}
}

func TestBotEvaluator_AutomatedClient(t *testing.T) {
	ev := &BotEvaluator{}

	res := ev.Evaluate(context.Background(), mustRequest(t, RawRequest{URL: "/", UserAgent: "curl/8.5.0"}), nil)
	assert.True(t, res.Matched)
	assert.Equal(t, "challenge", res.Action)
	assert.Equal(t, "automated_client", res.Reason)
	assert.Equal(t, scoreNeutral, res.Score)
}

func TestBotEvaluator_Browser(t *testing.T) {
	ev := &BotEvaluator{}

	res := ev.Evaluate(context.Background(), mustRequest(t, RawRequest{
		URL:       "/",
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 Chrome/123.0 Safari/537.36",
	}), nil)
	assert.False(t, res.Matched)
}

func TestBotEvaluator_EmptyUserAgent(t *testing.T) {
	ev := &BotEvaluator{}

	res := ev.Evaluate(context.Background(), mustRequest(t, RawRequest{URL: "/"}), nil)
	assert.False(t, res.Matched)
}
