// Package session holds per-user conversation state: the service being
// provisioned, the parameters collected so far, and the networking wizard
// position. State lives behind a small store interface so the in-memory
// default can be swapped for something durable without touching the
// conversation logic.
package session

import (
	"time"

	"github.com/bdobrica/Himawari/internal/himawari/params"
	"github.com/bdobrica/Himawari/internal/himawari/wizard"
)

// Session is everything the assistant remembers about one user's current
// provisioning request.
type Session struct {
	Service params.Service
	Config  params.ServiceConfig

	// HasActiveRequest is set once the user has started describing a
	// resource and cleared on reset or dispatch.
	HasActiveRequest bool

	Wizard wizard.State

	UpdatedAt time.Time
}

// New starts a fresh session for a service.
func New(svc params.Service) (*Session, error) {
	cfg, err := params.NewConfig(svc)
	if err != nil {
		return nil, err
	}
	return &Session{Service: svc, Config: cfg}, nil
}

// Missing lists the parameters still to collect. It is always computed
// from the config record, never stored, so it cannot drift from the
// collected values.
func (s *Session) Missing() []string {
	if s.Config == nil {
		return nil
	}
	return s.Config.Missing()
}

// Complete reports whether every required parameter has been collected.
func (s *Session) Complete() bool { return len(s.Missing()) == 0 }

// Store is the session persistence interface. Get returns false for
// users with no (or an expired) session.
type Store interface {
	Get(user string) (*Session, bool)
	Put(user string, s *Session)
	Delete(user string)
}
