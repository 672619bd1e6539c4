package policy

import (
	"strings"
	"time"
)

// UserInfo carries the identity facts the policy layer needs about the
// person on the other side of the chat.
type UserInfo struct {
	Email      string
	Department string

	// EnvironmentAccess holds explicit per-environment grants. An entry
	// here overrides the department defaults.
	EnvironmentAccess map[string]bool

	// EnvironmentExpiry optionally bounds a grant in time. A grant with a
	// past expiry is treated as revoked.
	EnvironmentExpiry map[string]time.Time
}

// HasEnvironmentAccess reports whether the user may work in the given
// environment right now. Explicit grants win; otherwise dev/qa access
// follows the department's requires_approval flag and prod is always
// grant-only.
func (p *Provider) HasEnvironmentAccess(user UserInfo, environment string) bool {
	environment = strings.ToLower(strings.TrimSpace(environment))
	if environment == "" {
		return false
	}

	if granted, ok := user.EnvironmentAccess[environment]; ok {
		if !granted {
			return false
		}
		if expiry, ok := user.EnvironmentExpiry[environment]; ok && !expiry.IsZero() {
			if p.now().After(expiry) {
				return false
			}
		}
		return true
	}

	if user.Department == "" {
		return false
	}
	limits := p.Limits("aws", environment, user.Department)
	if (environment == "dev" || environment == "qa") && !limits.RequiresApproval {
		return true
	}
	return false
}

// CreateCheck is the subset of a provisioning request that access control
// cares about.
type CreateCheck struct {
	Cloud        string
	Environment  string
	Service      string // ec2, s3, lambda
	InstanceType string
	StorageGB    int
	Region       string
}

// CanCreate reports whether the user may create the described resource.
// Unset optional fields are not checked; the parameter validator rejects
// them individually with a better message.
func (p *Provider) CanCreate(user UserInfo, check CreateCheck) bool {
	if check.Environment == "" {
		return false
	}
	if !p.HasEnvironmentAccess(user, check.Environment) {
		return false
	}

	limits := p.Limits(check.Cloud, check.Environment, user.Department)
	if check.Service != "" && !limits.AllowsService(check.Service) {
		return false
	}
	if check.InstanceType != "" && !limits.AllowsInstanceType(check.InstanceType) {
		return false
	}
	if check.StorageGB > 0 && check.StorageGB > limits.MaxStorageGB {
		return false
	}
	if check.Region != "" && !limits.AllowsRegion(check.Region) {
		return false
	}
	return true
}
