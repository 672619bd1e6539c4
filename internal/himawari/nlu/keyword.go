package nlu

import (
	"context"
	"strings"

	"github.com/bdobrica/Himawari/internal/himawari/params"
)

// Keyword is the deterministic fallback classifier. It never errors and
// never blocks, which is the whole point: when the model path fails, the
// conversation still moves.
type Keyword struct{}

// creation phrases that start a new request, roughly in the order users
// actually type them.
var createPhrases = []string{
	"create", "new server", "new instance", "i need a", "i want a",
	"launch", "provision", "set up", "spin up", "deploy a new",
}

var deployPhrases = []string{"deploy", "ship it", "go live", "launch it", "make it live"}

var changeVerbs = []string{"change", "switch", "update", "set ", "make it", "use "}

// Classify reads the message with keyword and regex rules alone.
func (Keyword) Classify(ctx context.Context, req Request) (*Result, error) {
	text := strings.ToLower(strings.TrimSpace(req.Message))
	res := &Result{Confidence: 0.6, Mode: params.Ambiguous}

	svc := detectService(text)
	if svc == "" {
		svc = req.Service
	}
	if svc == "" && containsAny(text, createPhrases) {
		svc = params.ServiceEC2
	}
	res.Service = svc
	if svc != "" {
		res.Updates = params.Extract(svc, req.Message)
	}
	if containsAny(text, changeVerbs) {
		res.Mode = params.Direct
	}

	switch {
	case containsAny(text, []string{"cancel", "never mind", "forget it", "abort"}):
		res.Intent = IntentCancel
	case strings.Contains(text, "status") || strings.Contains(text, "progress") ||
		strings.Contains(text, "how is my"):
		res.Intent = IntentStatus
	case strings.Contains(text, "cost") || strings.Contains(text, "price") ||
		strings.Contains(text, "how much") || strings.Contains(text, "expensive"):
		res.Intent = IntentCost
	case strings.Contains(text, "access") || strings.Contains(text, "permission"):
		res.Intent = IntentAccess
	case strings.Contains(text, "networking") || strings.Contains(text, "vpc") ||
		strings.Contains(text, "subnet") || strings.Contains(text, "security group"):
		res.Intent = IntentNetworking
	case containsAny(text, deployPhrases) && !containsAny(text, createPhrases):
		res.Intent = IntentDeploy
	case containsAny(text, createPhrases):
		res.Intent = IntentCreate
	case strings.Contains(text, "allowed") || strings.Contains(text, "what can i") ||
		strings.Contains(text, "which") || strings.HasPrefix(text, "what"):
		res.Intent = IntentQuery
	case len(res.Updates) > 0:
		res.Intent = IntentUpdate
	default:
		res.Intent = IntentGeneral
		res.Confidence = 0.3
	}
	return res, nil
}

func detectService(text string) params.Service {
	switch {
	case strings.Contains(text, "bucket") || strings.Contains(text, "s3"):
		return params.ServiceS3
	case strings.Contains(text, "lambda") || strings.Contains(text, "function"):
		return params.ServiceLambda
	case strings.Contains(text, "ec2") || strings.Contains(text, "server") ||
		strings.Contains(text, "instance") || strings.Contains(text, "vm"):
		return params.ServiceEC2
	}
	return ""
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
