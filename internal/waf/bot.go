package waf

import (
	"context"
	"strings"
)

// Known attack-tool user-agent fragments. A hit implies active scanning
// or exploitation tooling, not mere automation.
var maliciousAgentFragments = []string{
	"sqlmap",
	"nikto",
	"nmap",
	"masscan",
	"acunetix",
	"nessus",
	"metasploit",
	"hydra",
	"dirbuster",
	"gobuster",
	"wpscan",
	"havij",
	"zgrab",
}

// Generic automated-client fragments. These are challenge candidates
// rather than hard blocks: plenty of legitimate integrations use them.
var automatedAgentFragments = []string{
	"curl",
	"wget",
	"python-requests",
	"python-urllib",
	"go-http-client",
	"java/",
	"libwww",
	"okhttp",
	"scrapy",
	"httpclient",
}

// BotEvaluator classifies the user-agent against known malicious tool
// signatures and lighter automated-client signatures.
type BotEvaluator struct{}

func (e *BotEvaluator) Name() string { return "bot" }

func (e *BotEvaluator) Evaluate(_ context.Context, req *Request, _ *Snapshot) Result {
	ua := strings.ToLower(req.UserAgent)
	if ua == "" {
		return Result{}
	}

	for _, f := range maliciousAgentFragments {
		if strings.Contains(ua, f) {
			return Result{
				Matched: true,
				Score:   95,
				Action:  "block",
				Reason:  "malicious_automation",
				Detail:  "user agent matches attack tool signature " + f,
			}
		}
	}

	for _, f := range automatedAgentFragments {
		if strings.Contains(ua, f) {
			return Result{
				Matched: true,
				Score:   scoreNeutral,
				Action:  "challenge",
				Reason:  "automated_client",
				Detail:  "user agent matches automation signature " + f,
			}
		}
	}

	return Result{}
}
