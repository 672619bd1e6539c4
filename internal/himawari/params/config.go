// Package params holds the per-service provisioning records and the
// validator that applies user-requested changes to them under department
// limits.
package params

import (
	"fmt"
	"strconv"
)

// Service identifies which provisioning flow a conversation is in.
type Service string

const (
	ServiceEC2    Service = "ec2"
	ServiceS3     Service = "s3"
	ServiceLambda Service = "lambda"
)

// Canonical field names, shared between the NLU payloads, the validator
// and the session snapshots.
const (
	FieldEnvironment     = "environment"
	FieldInstanceType    = "instance_type"
	FieldOperatingSystem = "operating_system"
	FieldStorageSize     = "storage_size"
	FieldRegion          = "region"
	FieldBucketName      = "bucket_name"
	FieldFunctionName    = "function_name"
	FieldRuntime         = "runtime"
)

// ServiceConfig is a closed record of the parameters collected so far for
// one service. Implementations are plain structs; field access goes
// through the canonical names so the validator and the wizard can stay
// service-agnostic.
type ServiceConfig interface {
	Service() Service

	// Required lists the fields that must be collected before a deploy,
	// in prompt order.
	Required() []string

	// Get returns the collected value for a canonical field name, or ""
	// when not yet collected (or unknown for this service).
	Get(field string) string

	// Set stores a value for a canonical field name. Unknown fields are
	// ignored; the validator filters them beforehand.
	Set(field, value string)

	// Missing is always Required minus the collected fields, in order.
	Missing() []string
}

// EC2Config collects an EC2 instance request.
type EC2Config struct {
	Environment     string
	InstanceType    string
	OperatingSystem string
	StorageSizeGB   int
	Region          string
}

func (c *EC2Config) Service() Service { return ServiceEC2 }

func (c *EC2Config) Required() []string {
	return []string{FieldEnvironment, FieldInstanceType, FieldOperatingSystem, FieldStorageSize, FieldRegion}
}

func (c *EC2Config) Get(field string) string {
	switch field {
	case FieldEnvironment:
		return c.Environment
	case FieldInstanceType:
		return c.InstanceType
	case FieldOperatingSystem:
		return c.OperatingSystem
	case FieldStorageSize:
		if c.StorageSizeGB == 0 {
			return ""
		}
		return strconv.Itoa(c.StorageSizeGB)
	case FieldRegion:
		return c.Region
	}
	return ""
}

func (c *EC2Config) Set(field, value string) {
	switch field {
	case FieldEnvironment:
		c.Environment = value
	case FieldInstanceType:
		c.InstanceType = value
	case FieldOperatingSystem:
		c.OperatingSystem = value
	case FieldStorageSize:
		if n, err := strconv.Atoi(value); err == nil {
			c.StorageSizeGB = n
		}
	case FieldRegion:
		c.Region = value
	}
}

func (c *EC2Config) Missing() []string { return missing(c) }

// S3Config collects a bucket request.
type S3Config struct {
	BucketName  string
	Environment string
	Region      string
}

func (c *S3Config) Service() Service { return ServiceS3 }

func (c *S3Config) Required() []string {
	return []string{FieldBucketName, FieldEnvironment, FieldRegion}
}

func (c *S3Config) Get(field string) string {
	switch field {
	case FieldBucketName:
		return c.BucketName
	case FieldEnvironment:
		return c.Environment
	case FieldRegion:
		return c.Region
	}
	return ""
}

func (c *S3Config) Set(field, value string) {
	switch field {
	case FieldBucketName:
		c.BucketName = value
	case FieldEnvironment:
		c.Environment = value
	case FieldRegion:
		c.Region = value
	}
}

func (c *S3Config) Missing() []string { return missing(c) }

// LambdaConfig collects a function request.
type LambdaConfig struct {
	FunctionName string
	Runtime      string
	Environment  string
	Region       string
}

func (c *LambdaConfig) Service() Service { return ServiceLambda }

func (c *LambdaConfig) Required() []string {
	return []string{FieldFunctionName, FieldRuntime, FieldEnvironment, FieldRegion}
}

func (c *LambdaConfig) Get(field string) string {
	switch field {
	case FieldFunctionName:
		return c.FunctionName
	case FieldRuntime:
		return c.Runtime
	case FieldEnvironment:
		return c.Environment
	case FieldRegion:
		return c.Region
	}
	return ""
}

func (c *LambdaConfig) Set(field, value string) {
	switch field {
	case FieldFunctionName:
		c.FunctionName = value
	case FieldRuntime:
		c.Runtime = value
	case FieldEnvironment:
		c.Environment = value
	case FieldRegion:
		c.Region = value
	}
}

func (c *LambdaConfig) Missing() []string { return missing(c) }

// NewConfig returns an empty record for the service.
func NewConfig(svc Service) (ServiceConfig, error) {
	switch svc {
	case ServiceEC2:
		return &EC2Config{}, nil
	case ServiceS3:
		return &S3Config{}, nil
	case ServiceLambda:
		return &LambdaConfig{}, nil
	}
	return nil, fmt.Errorf("params: unknown service %q", svc)
}

// missing computes Required minus collected. Every mutation path funnels
// through here so the invariant cannot drift.
func missing(c ServiceConfig) []string {
	var out []string
	for _, field := range c.Required() {
		if c.Get(field) == "" {
			out = append(out, field)
		}
	}
	return out
}

// Collected returns the collected (field, value) pairs in Required order,
// for summaries and audit records.
func Collected(c ServiceConfig) map[string]string {
	out := make(map[string]string)
	for _, field := range c.Required() {
		if v := c.Get(field); v != "" {
			out[field] = v
		}
	}
	return out
}
