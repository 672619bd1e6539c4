package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bdobrica/Himawari/common/retry"
)

// errTransient marks responses worth retrying (5xx, network hiccups).
var errTransient = errors.New("transient pipeline error")

// HTTPDispatcher posts requests to a provisioning pipeline endpoint.
type HTTPDispatcher struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewHTTP builds a dispatcher for the pipeline at endpoint. token, when
// set, is sent as a bearer token.
func NewHTTP(endpoint, token string) *HTTPDispatcher {
	return &HTTPDispatcher{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Dispatch posts the bundle, retrying transient failures with backoff.
// The pipeline's JSON answer is expected to carry a "reference" field.
func (d *HTTPDispatcher) Dispatch(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", &Error{RequestID: req.RequestID, Err: fmt.Errorf("marshal request: %w", err)}
	}

	var ref string
	attempt := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if d.token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+d.token)
		}

		resp, err := d.client.Do(httpReq)
		if err != nil {
			return fmt.Errorf("%w: %v", errTransient, err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("%w: read response: %v", errTransient, err)
		}

		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("%w: pipeline returned %d", errTransient, resp.StatusCode)
		case resp.StatusCode >= 300:
			return fmt.Errorf("pipeline rejected request: %d: %.200s", resp.StatusCode, respBody)
		}

		var parsed struct {
			Reference string `json:"reference"`
		}
		if err := json.Unmarshal(respBody, &parsed); err == nil && parsed.Reference != "" {
			ref = parsed.Reference
		} else {
			ref = req.RequestID
		}
		return nil
	}

	err = retry.Do(ctx, retry.Config{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		ShouldRetry:  func(err error) bool { return errors.Is(err, errTransient) },
	}, attempt)
	if err != nil {
		return "", &Error{RequestID: req.RequestID, Err: err}
	}
	return ref, nil
}
