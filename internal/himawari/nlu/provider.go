// Package nlu turns free-form chat messages into structured provisioning
// intents. A language-model provider does the heavy lifting; a keyword
// classifier stands in whenever the model is slow, down or rate-limited,
// so the assistant always answers.
package nlu

import (
	"context"
	"errors"

	"github.com/bdobrica/Himawari/internal/himawari/params"
)

// Intent is what the user is trying to do with this message.
type Intent string

const (
	IntentCreate     Intent = "create"     // start a new provisioning request
	IntentUpdate     Intent = "update"     // change collected parameters
	IntentDeploy     Intent = "deploy"     // ask to launch what was collected
	IntentCancel     Intent = "cancel"     // abandon the current request
	IntentStatus     Intent = "status"     // ask about request progress
	IntentQuery      Intent = "query"      // ask what values are allowed
	IntentCost       Intent = "cost"       // ask about price
	IntentAccess     Intent = "access"     // ask for environment access
	IntentNetworking Intent = "networking" // ask to configure networking
	IntentGeneral    Intent = "general"    // anything else
)

// Mode mirrors params.Mode: whether a parameter mention is an explicit
// change request or an aside that needs confirmation before overwriting
// an already-collected value.
type Mode = params.Mode

// Request is one message to classify, with enough context for the model
// to resolve references ("make it bigger").
type Request struct {
	Message string
	Sender  string

	// Service is the service of the active session, empty when none.
	Service params.Service

	// Collected summarises the parameters gathered so far.
	Collected map[string]string
}

// Result is the structured reading of a message.
type Result struct {
	Intent  Intent
	Service params.Service
	Updates []params.Update
	Mode    Mode

	// Confidence in [0,1]; low-confidence results fall back to keywords.
	Confidence float64

	// Response optionally carries conversational text for general
	// intents.
	Response string
}

// Provider errors the classifier treats specially.
var (
	// ErrRateLimit means the model said slow down; fall back rather
	// than retry in the hot path.
	ErrRateLimit = errors.New("nlu: provider rate limited")

	// ErrMalformedOutput means the model answered with something that
	// was not the requested JSON.
	ErrMalformedOutput = errors.New("nlu: provider returned malformed output")
)

// Provider is the language-model oracle.
type Provider interface {
	Classify(ctx context.Context, req Request) (*Result, error)
}
