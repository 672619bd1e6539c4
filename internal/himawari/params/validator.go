package params

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bdobrica/Himawari/internal/himawari/policy"
)

// Mode describes how confident the caller is that the user really meant
// to change an already-collected value.
type Mode int

const (
	// Direct changes apply immediately.
	Direct Mode = iota
	// Ambiguous changes to an existing value are parked behind a
	// confirmation instead of being applied.
	Ambiguous
)

// Update is one requested field change.
type Update struct {
	Field string
	Value string
}

// ValidationError reports a single field value the department limits
// reject. The parameter keeps its previous value.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Conflict marks an ambiguous change to an already-collected field. The
// caller turns it into a pending confirmation; nothing has been applied.
type Conflict struct {
	Field    string
	OldValue string
	NewValue string
}

// Result summarises one Apply call. Applied holds human-readable change
// descriptions; Rejected holds per-field validation errors for values that
// were skipped. Conflict, when set, was detected before any later updates
// were considered.
type Result struct {
	Applied  []string
	Rejected []*ValidationError
	Conflict *Conflict
}

// RejectedMessage joins the validation errors the way replies render them.
func (r Result) RejectedMessage() string {
	if len(r.Rejected) == 0 {
		return ""
	}
	msgs := make([]string, len(r.Rejected))
	for i, e := range r.Rejected {
		msgs[i] = e.Reason
	}
	return strings.Join(msgs, "; ")
}

// Validator applies updates to a service record under department limits.
type Validator struct {
	Policy *policy.Provider
}

// Apply walks the updates in order. Each value is validated against the
// department limits for the environment in effect (already collected, or
// arriving in the same batch); rejected values are collected and skipped
// so one bad field never blocks the rest. An ambiguous change to an
// existing value stops processing and surfaces as a Conflict. Missing is
// recomputed by the record itself on every Set.
func (v *Validator) Apply(cfg ServiceConfig, user policy.UserInfo, updates []Update, mode Mode) Result {
	var res Result

	env := cfg.Get(FieldEnvironment)
	for _, u := range updates {
		if u.Field == FieldEnvironment && u.Value != "" {
			env = u.Value
		}
	}

	known := make(map[string]bool, len(cfg.Required()))
	for _, f := range cfg.Required() {
		known[f] = true
	}

	for _, u := range updates {
		if u.Value == "" || !known[u.Field] {
			continue
		}
		old := cfg.Get(u.Field)

		if err := v.check(u, env, user); err != nil {
			res.Rejected = append(res.Rejected, err)
			continue
		}

		if old != "" && old != u.Value && mode == Ambiguous {
			res.Conflict = &Conflict{Field: u.Field, OldValue: old, NewValue: u.Value}
			return res
		}

		if old == u.Value {
			continue
		}
		cfg.Set(u.Field, u.Value)
		res.Applied = append(res.Applied, describeChange(u.Field, u.Value, old))
	}
	return res
}

// check validates a single value against the limits for the environment.
// Fields without an environment yet (or without limit semantics) pass.
func (v *Validator) check(u Update, env string, user policy.UserInfo) *ValidationError {
	if v.Policy == nil || env == "" {
		return nil
	}
	limits := v.Policy.Limits("aws", env, user.Department)

	switch u.Field {
	case FieldInstanceType:
		if !limits.AllowsInstanceType(u.Value) {
			return &ValidationError{
				Field: u.Field, Value: u.Value,
				Reason: fmt.Sprintf("%s is not allowed in %s for %s department. Allowed: %s",
					u.Value, strings.ToUpper(env), user.Department, strings.Join(limits.AllowedInstanceTypes, ", ")),
			}
		}
	case FieldRegion:
		if !limits.AllowsRegion(u.Value) {
			return &ValidationError{
				Field: u.Field, Value: u.Value,
				Reason: fmt.Sprintf("%s region is not allowed in %s for %s department. Allowed: %s",
					u.Value, strings.ToUpper(env), user.Department, strings.Join(limits.AllowedRegions, ", ")),
			}
		}
	case FieldStorageSize:
		size, err := strconv.Atoi(u.Value)
		if err != nil {
			return &ValidationError{Field: u.Field, Value: u.Value, Reason: fmt.Sprintf("%q is not a storage size", u.Value)}
		}
		if size > limits.MaxStorageGB {
			return &ValidationError{
				Field: u.Field, Value: u.Value,
				Reason: fmt.Sprintf("%dGB storage exceeds the %dGB limit for %s environment",
					size, limits.MaxStorageGB, strings.ToUpper(env)),
			}
		}
	}
	return nil
}

// describeChange produces the short change summaries echoed back to the
// user ("switched to DEV environment", "changed instance to t3.small").
func describeChange(field, value, old string) string {
	changed := old != ""
	switch field {
	case FieldEnvironment:
		if changed {
			return fmt.Sprintf("switched to %s environment", strings.ToUpper(value))
		}
		return fmt.Sprintf("%s environment selected", strings.ToUpper(value))
	case FieldInstanceType:
		if changed {
			return fmt.Sprintf("changed instance to %s", value)
		}
		return fmt.Sprintf("%s instance type", value)
	case FieldOperatingSystem:
		if changed {
			return fmt.Sprintf("switched to %s", value)
		}
		return fmt.Sprintf("%s operating system", value)
	case FieldStorageSize:
		if changed {
			return fmt.Sprintf("set storage to %sGB", value)
		}
		return fmt.Sprintf("%sGB storage", value)
	case FieldRegion:
		if changed {
			return fmt.Sprintf("selected %s region", value)
		}
		return fmt.Sprintf("%s region", value)
	case FieldBucketName:
		return fmt.Sprintf("bucket name %s", value)
	case FieldFunctionName:
		return fmt.Sprintf("function name %s", value)
	case FieldRuntime:
		return fmt.Sprintf("%s runtime", value)
	}
	return fmt.Sprintf("%s set to %s", field, value)
}
