// Package deploy hands finished provisioning requests to the pipeline
// that actually builds them. The assistant's job ends at dispatch: it
// never mutates AWS itself.
package deploy

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/bdobrica/Himawari/internal/himawari/params"
	"github.com/bdobrica/Himawari/internal/himawari/session"
	"github.com/bdobrica/Himawari/internal/himawari/wizard"
)

// Networking pins the request to specific resources when the user picked
// them; it is omitted entirely on the default path, where the pipeline
// resolves the account defaults itself.
type Networking struct {
	VPCID           string `json:"vpc_id"`
	SubnetID        string `json:"subnet_id"`
	SubnetPublic    bool   `json:"subnet_public"`
	SecurityGroupID string `json:"security_group_id"`
}

// Request is the bundle handed to the pipeline.
type Request struct {
	RequestID   string            `json:"request_id"`
	Department  string            `json:"department"`
	Requester   string            `json:"requester"`
	Service     params.Service    `json:"service"`
	Environment string            `json:"environment"`
	Parameters  map[string]string `json:"parameters"`

	KeyName          string      `json:"key_name,omitempty"`
	CreateNewKeypair bool        `json:"create_new_keypair,omitempty"`
	Networking       *Networking `json:"networking,omitempty"`
}

// Error wraps a dispatch failure. The session is reset either way; the
// user is told the request did not go out.
type Error struct {
	RequestID string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("deploy: dispatch %s: %v", e.RequestID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Dispatcher sends a request to a provisioning pipeline and returns a
// pipeline-side reference for status tracking.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) (ref string, err error)
}

// NewRequestID builds ids like finance_aws_dev_1a2b3c4d.
func NewRequestID(department, environment string) string {
	dept := strings.ToLower(strings.TrimSpace(department))
	if dept == "" {
		dept = "unknown"
	}
	return fmt.Sprintf("%s_aws_%s_%s", dept, environment, uuid.NewString()[:8])
}

// BuildRequest assembles the pipeline bundle from a completed session.
// Networking details ride along only when the user picked existing
// resources.
func BuildRequest(requester, department string, sess *session.Session) Request {
	env := sess.Config.Get(params.FieldEnvironment)
	req := Request{
		RequestID:   NewRequestID(department, env),
		Department:  department,
		Requester:   requester,
		Service:     sess.Service,
		Environment: env,
		Parameters:  params.Collected(sess.Config),
	}

	if sess.Service == params.ServiceEC2 {
		req.KeyName = sess.Wizard.KeyName
		req.CreateNewKeypair = sess.Wizard.CreateNewKeypair
		if sess.Wizard.Mode == wizard.ModeExisting {
			req.Networking = &Networking{
				VPCID:           sess.Wizard.VPCID,
				SubnetID:        sess.Wizard.SubnetID,
				SubnetPublic:    sess.Wizard.SubnetPublic,
				SecurityGroupID: sess.Wizard.SecurityGroupID,
			}
		}
	}
	return req
}
