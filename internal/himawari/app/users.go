package app

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bdobrica/Himawari/internal/himawari/policy"
)

// users.go maps Matrix senders to the identity the permission matrix
// keys on. Operators ship a roster file; senders not on it get an empty
// department, which resolves to the most restrictive limits.

//go:embed users.yaml
var defaultRosterYAML []byte

type rosterEntry struct {
	MatrixID     string            `yaml:"matrix_id"`
	Email        string            `yaml:"email"`
	Department   string            `yaml:"department"`
	Environments map[string]bool   `yaml:"environments"`
	Expiry       map[string]string `yaml:"environment_expiry"`
}

// Roster resolves chat senders to user identities.
type Roster struct {
	byMatrixID map[string]policy.UserInfo
}

// LoadRoster reads a roster file; an empty path loads the embedded
// sample roster.
func LoadRoster(path string) (*Roster, error) {
	data := defaultRosterYAML
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read roster: %w", err)
		}
	}

	var entries []rosterEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}

	r := &Roster{byMatrixID: make(map[string]policy.UserInfo, len(entries))}
	for _, e := range entries {
		info := policy.UserInfo{
			Email:             e.Email,
			Department:        e.Department,
			EnvironmentAccess: e.Environments,
		}
		if len(e.Expiry) > 0 {
			info.EnvironmentExpiry = make(map[string]time.Time, len(e.Expiry))
			for env, raw := range e.Expiry {
				ts, err := time.Parse(time.RFC3339, raw)
				if err != nil {
					return nil, fmt.Errorf("roster: bad expiry for %s/%s: %w", e.MatrixID, env, err)
				}
				info.EnvironmentExpiry[env] = ts
			}
		}
		r.byMatrixID[e.MatrixID] = info
	}
	return r, nil
}

// Resolve returns the identity behind a Matrix sender. Unknown senders
// get a synthetic identity with no department; the permission matrix
// treats that as fully restricted.
func (r *Roster) Resolve(matrixID string) policy.UserInfo {
	if info, ok := r.byMatrixID[matrixID]; ok {
		return info
	}
	local := matrixID
	if i := strings.IndexByte(local, ':'); i > 0 {
		local = local[:i]
	}
	local = strings.TrimPrefix(local, "@")
	return policy.UserInfo{Email: local + "@unknown"}
}
