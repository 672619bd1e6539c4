package directory

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed fixture.yaml
var defaultFixtureYAML []byte

// Static serves directory lookups from a YAML fixture. It backs
// development and test deployments where the assistant should behave
// normally without an AWS account behind it.
type Static struct {
	doc fixtureDoc
}

type fixtureDoc struct {
	VPCs           []VPC           `yaml:"vpcs"`
	Subnets        []Subnet        `yaml:"subnets"`
	SecurityGroups []SecurityGroup `yaml:"security_groups"`
	Keypairs       []Keypair       `yaml:"keypairs"`
}

// NewStatic parses a fixture document.
func NewStatic(data []byte) (*Static, error) {
	var doc fixtureDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("directory: parse fixture: %w", err)
	}
	return &Static{doc: doc}, nil
}

// NewStaticFile loads a fixture from disk; an empty path loads the
// embedded default.
func NewStaticFile(path string) (*Static, error) {
	if path == "" {
		return NewStatic(defaultFixtureYAML)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("directory: read fixture: %w", err)
	}
	return NewStatic(data)
}

func (s *Static) VPCs(ctx context.Context) ([]VPC, error) {
	return append([]VPC(nil), s.doc.VPCs...), nil
}

func (s *Static) Subnets(ctx context.Context, vpcID string) ([]Subnet, error) {
	var out []Subnet
	for _, sn := range s.doc.Subnets {
		if sn.VPCID == vpcID {
			out = append(out, sn)
		}
	}
	return out, nil
}

func (s *Static) SecurityGroups(ctx context.Context, vpcID string) ([]SecurityGroup, error) {
	var out []SecurityGroup
	for _, sg := range s.doc.SecurityGroups {
		if sg.VPCID == vpcID || sg.Name == "default" {
			out = append(out, sg)
		}
	}
	return out, nil
}

func (s *Static) Keypairs(ctx context.Context) ([]Keypair, error) {
	return append([]Keypair(nil), s.doc.Keypairs...), nil
}

func (s *Static) KeypairExists(ctx context.Context, name string) (bool, error) {
	for _, kp := range s.doc.Keypairs {
		if kp.Name == name {
			return true, nil
		}
	}
	return false, nil
}
