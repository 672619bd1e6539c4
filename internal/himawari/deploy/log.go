package deploy

import (
	"context"
	"log/slog"
)

// LogDispatcher is the dev-mode sink: it accepts every request and only
// logs it. Used when neither a pipeline endpoint nor a job image is
// configured, so the conversation can be exercised end to end without
// provisioning anything.
type LogDispatcher struct{}

func (LogDispatcher) Dispatch(_ context.Context, req Request) (string, error) {
	slog.Info("dry-run dispatch",
		"request", req.RequestID,
		"service", req.Service,
		"environment", req.Environment,
		"requester", req.Requester)
	return "dry-run/" + req.RequestID, nil
}
