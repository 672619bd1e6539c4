package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bdobrica/Himawari/internal/himawari/deploy"
)

// Turn is one audited conversation exchange.
type Turn struct {
	UserID     string
	Department string
	Message    string
	Intent     string
	Reply      string
	CreatedAt  time.Time
}

// RequestRecord is one dispatched request as remembered by the ledger.
type RequestRecord struct {
	RequestID   string
	UserID      string
	Department  string
	Service     string
	Environment string
	PipelineRef string
	Status      string
	CreatedAt   time.Time
}

// RecordTurn appends a conversation exchange to the audit trail.
func (s *Store) RecordTurn(ctx context.Context, t Turn) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turns (user_id, department, message, intent, reply)
		VALUES (?, ?, ?, ?, ?)`,
		t.UserID, t.Department, t.Message, t.Intent, t.Reply,
	)
	if err != nil {
		return fmt.Errorf("record turn: %w", err)
	}
	return nil
}

// RecordDispatch writes a dispatched request into the ledger. failed
// dispatches are recorded too, with an empty pipeline reference and a
// failed status, so the audit trail shows what was attempted.
func (s *Store) RecordDispatch(ctx context.Context, userID string, req deploy.Request, pipelineRef string, dispatchErr error) error {
	bundle, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("record dispatch: marshal bundle: %w", err)
	}
	status := "dispatched"
	if dispatchErr != nil {
		status = "failed"
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO requests (request_id, user_id, department, service, environment, parameters, pipeline_ref, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		req.RequestID, userID, req.Department, string(req.Service), req.Environment, string(bundle), pipelineRef, status,
	)
	if err != nil {
		return fmt.Errorf("record dispatch: %w", err)
	}
	return nil
}

// RecentRequests lists the user's latest dispatched requests, newest
// first. It feeds status questions ("how is my server doing?").
func (s *Store) RecentRequests(ctx context.Context, userID string, limit int) ([]RequestRecord, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT request_id, user_id, department, service, environment, pipeline_ref, status, created_at
		FROM requests WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent requests: %w", err)
	}
	defer rows.Close()

	var out []RequestRecord
	for rows.Next() {
		var r RequestRecord
		if err := rows.Scan(&r.RequestID, &r.UserID, &r.Department, &r.Service, &r.Environment,
			&r.PipelineRef, &r.Status, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("recent requests: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
