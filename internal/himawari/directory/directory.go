// Package directory is the read-only view of the AWS account the wizard
// presents choices from: VPCs, subnets, security groups and keypairs.
// Lookups can fail (account unreachable, throttling); callers treat a
// failure like an empty result and fall back to the default-networking
// path, so a flaky backend degrades the experience instead of wedging
// the conversation.
package directory

import (
	"context"
	"fmt"
)

// VPC is one virtual network in the account.
type VPC struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	CIDR      string `yaml:"cidr"`
	State     string `yaml:"state"`
	IsDefault bool   `yaml:"is_default"`
}

// Subnet is one subnet, tied to its VPC.
type Subnet struct {
	ID               string `yaml:"id"`
	VPCID            string `yaml:"vpc_id"`
	CIDR             string `yaml:"cidr"`
	Public           bool   `yaml:"public"`
	AvailabilityZone string `yaml:"availability_zone"`
}

// SecurityGroup is one security group, tied to its VPC.
type SecurityGroup struct {
	ID          string `yaml:"id"`
	VPCID       string `yaml:"vpc_id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Keypair is an SSH keypair registered in the account.
type Keypair struct {
	Name string `yaml:"name"`
}

// LookupError wraps a backend failure during a directory read. It keeps
// the resource kind so replies and logs can say what could not be listed.
type LookupError struct {
	Resource string
	Err      error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("directory: lookup %s: %v", e.Resource, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// Directory lists networking resources for the environment and region a
// provisioning request targets.
type Directory interface {
	VPCs(ctx context.Context) ([]VPC, error)
	Subnets(ctx context.Context, vpcID string) ([]Subnet, error)
	SecurityGroups(ctx context.Context, vpcID string) ([]SecurityGroup, error)
	Keypairs(ctx context.Context) ([]Keypair, error)
	KeypairExists(ctx context.Context, name string) (bool, error)
}
