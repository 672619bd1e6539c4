// Package policy answers "what is this department allowed to provision
// in this environment" questions. Limits come from a permissions matrix
// document (YAML, schema-validated at load) with a built-in default that
// mirrors the org-wide baseline.
package policy

import (
	"log/slog"
	"strings"
	"time"
)

// Limits describes what a single (cloud, environment, department) cell of
// the permissions matrix allows. A zero Limits value is the most
// restrictive possible record: nothing allowed, approval required.
type Limits struct {
	AllowedInstanceTypes []string `yaml:"allowed_instance_types" json:"allowed_instance_types"`
	AllowedRegions       []string `yaml:"allowed_regions" json:"allowed_regions"`
	AllowedServices      []string `yaml:"allowed_services" json:"allowed_services"`
	MaxStorageGB         int      `yaml:"max_storage_gb" json:"max_storage_gb"`
	MaxLambdaMemoryMB    int      `yaml:"max_lambda_memory_mb" json:"max_lambda_memory_mb"`
	S3BucketsLimit       int      `yaml:"s3_buckets_limit" json:"s3_buckets_limit"`
	LambdaFunctionsLimit int      `yaml:"lambda_functions_limit" json:"lambda_functions_limit"`
	RequiresApproval     bool     `yaml:"requires_approval" json:"requires_approval"`
}

// restrictive is returned for any combination the matrix does not know.
// Empty allow-lists deny everything and force the approval path.
func restrictive() Limits {
	return Limits{RequiresApproval: true}
}

// AllowsInstanceType reports whether the instance type is permitted.
// An empty allow-list denies all types.
func (l Limits) AllowsInstanceType(t string) bool {
	for _, allowed := range l.AllowedInstanceTypes {
		if strings.EqualFold(allowed, t) {
			return true
		}
	}
	return false
}

// AllowsRegion reports whether the region is permitted.
func (l Limits) AllowsRegion(r string) bool {
	for _, allowed := range l.AllowedRegions {
		if strings.EqualFold(allowed, r) {
			return true
		}
	}
	return false
}

// AllowsService reports whether the service (ec2, s3, lambda) is permitted.
// Cells that omit allowed_services inherit the historical behaviour of
// allowing everything the other limits permit.
func (l Limits) AllowsService(svc string) bool {
	if len(l.AllowedServices) == 0 {
		return true
	}
	for _, allowed := range l.AllowedServices {
		if strings.EqualFold(allowed, svc) {
			return true
		}
	}
	return false
}

// Matrix is the full permissions document: cloud -> environment ->
// department -> Limits.
type Matrix map[string]map[string]map[string]Limits

// Provider resolves limits and environment access for users.
type Provider struct {
	matrix Matrix
	now    func() time.Time
}

// NewProvider wraps an already-validated matrix.
func NewProvider(m Matrix) *Provider {
	return &Provider{matrix: m, now: time.Now}
}

// Limits returns the limits for a (cloud, environment, department)
// combination. Unknown combinations resolve to the most restrictive record
// rather than an error; the chat flow keeps going, the user just cannot
// provision anything without approval.
func (p *Provider) Limits(cloud, environment, department string) Limits {
	cloud = strings.ToLower(strings.TrimSpace(orDefault(cloud, "aws")))
	environment = strings.ToLower(strings.TrimSpace(orDefault(environment, "dev")))
	department = strings.TrimSpace(department)

	if department == "" {
		return restrictive()
	}

	envs, ok := p.matrix[cloud]
	if !ok {
		slog.Warn("permissions matrix: unknown cloud, using restrictive limits", "cloud", cloud)
		return restrictive()
	}
	depts, ok := envs[environment]
	if !ok {
		slog.Warn("permissions matrix: unknown environment, using restrictive limits", "environment", environment)
		return restrictive()
	}
	limits, ok := depts[department]
	if !ok {
		slog.Warn("permissions matrix: unknown department, using restrictive limits",
			"environment", environment, "department", department)
		return restrictive()
	}
	return limits
}

// Environments lists the environments known for a cloud, in matrix order.
func (p *Provider) Environments(cloud string) []string {
	envs := p.matrix[strings.ToLower(orDefault(cloud, "aws"))]
	out := make([]string, 0, len(envs))
	for _, name := range []string{"dev", "qa", "prod"} {
		if _, ok := envs[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
