package wizard_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bdobrica/Himawari/internal/himawari/directory"
	"github.com/bdobrica/Himawari/internal/himawari/params"
	"github.com/bdobrica/Himawari/internal/himawari/wizard"
)

// stubDirectory serves canned resources and can be made to fail per call.
type stubDirectory struct {
	vpcs     []directory.VPC
	subnets  []directory.Subnet
	sgs      []directory.SecurityGroup
	keypairs []directory.Keypair

	failVPCs    bool
	failSubnets bool
	failExists  bool
}

func (d *stubDirectory) VPCs(ctx context.Context) ([]directory.VPC, error) {
	if d.failVPCs {
		return nil, &directory.LookupError{Resource: "vpcs", Err: errors.New("throttled")}
	}
	return d.vpcs, nil
}

func (d *stubDirectory) Subnets(ctx context.Context, vpcID string) ([]directory.Subnet, error) {
	if d.failSubnets {
		return nil, &directory.LookupError{Resource: "subnets", Err: errors.New("throttled")}
	}
	var out []directory.Subnet
	for _, sn := range d.subnets {
		if sn.VPCID == vpcID {
			out = append(out, sn)
		}
	}
	return out, nil
}

func (d *stubDirectory) SecurityGroups(ctx context.Context, vpcID string) ([]directory.SecurityGroup, error) {
	var out []directory.SecurityGroup
	for _, sg := range d.sgs {
		if sg.VPCID == vpcID || sg.Name == "default" {
			out = append(out, sg)
		}
	}
	return out, nil
}

func (d *stubDirectory) Keypairs(ctx context.Context) ([]directory.Keypair, error) {
	return d.keypairs, nil
}

func (d *stubDirectory) KeypairExists(ctx context.Context, name string) (bool, error) {
	if d.failExists {
		return false, &directory.LookupError{Resource: "keypairs", Err: errors.New("throttled")}
	}
	for _, kp := range d.keypairs {
		if kp.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func populatedDirectory() *stubDirectory {
	return &stubDirectory{
		vpcs: []directory.VPC{
			{ID: "vpc-aaa", Name: "main", CIDR: "10.0.0.0/16"},
			{ID: "vpc-bbb", Name: "isolated", CIDR: "172.16.0.0/16"},
		},
		subnets: []directory.Subnet{
			{ID: "subnet-a1", VPCID: "vpc-aaa", CIDR: "10.0.1.0/24", Public: true},
			{ID: "subnet-a2", VPCID: "vpc-aaa", CIDR: "10.0.2.0/24", Public: false},
			{ID: "subnet-b1", VPCID: "vpc-bbb", CIDR: "172.16.1.0/24", Public: true},
		},
		sgs: []directory.SecurityGroup{
			{ID: "sg-default", VPCID: "vpc-aaa", Name: "default"},
			{ID: "sg-web", VPCID: "vpc-aaa", Name: "web-sg"},
		},
		keypairs: []directory.Keypair{{Name: "dev-keypair"}},
	}
}

func testTurn() wizard.Turn {
	return wizard.Turn{
		Config: &params.EC2Config{
			Environment: "dev", InstanceType: "t3.micro",
			OperatingSystem: "ubuntu", StorageSizeGB: 20, Region: "us-east-1",
		},
		Department: "Engineering",
	}
}

func TestDefaultPathJumpsToKeypairs(t *testing.T) {
	w := wizard.New(populatedDirectory())
	st := &wizard.State{}
	w.Start(st)

	out := w.Advance(context.Background(), st, "default", testTurn())
	if st.Step != wizard.StepKeypairSelection {
		t.Fatalf("step = %s, want keypair_selection", st.Step)
	}
	if st.VPCID != wizard.DefaultVPCID || st.SubnetID != wizard.DefaultSubnetID || st.SecurityGroupID != wizard.DefaultSGID {
		t.Errorf("default resources not set: %+v", st)
	}
	if !st.SubnetPublic {
		t.Errorf("default subnet should be public")
	}
	if out.Deploy || out.Cancelled {
		t.Errorf("unexpected terminal outcome: %+v", out)
	}
}

func TestExistingPathListsVPCs(t *testing.T) {
	w := wizard.New(populatedDirectory())
	st := &wizard.State{}
	w.Start(st)

	out := w.Advance(context.Background(), st, "existing", testTurn())
	if st.Step != wizard.StepVPCSelection {
		t.Fatalf("step = %s, want vpc_selection", st.Step)
	}
	if len(out.Reply.Buttons) != 2 {
		t.Errorf("expected 2 VPC buttons, got %v", out.Reply.Buttons)
	}
}

func TestExistingPathFallsBackWhenLookupFails(t *testing.T) {
	for name, dir := range map[string]*stubDirectory{
		"lookup error": {failVPCs: true},
		"no vpcs":      {},
	} {
		w := wizard.New(dir)
		st := &wizard.State{}
		w.Start(st)

		w.Advance(context.Background(), st, "existing", testTurn())
		if st.Step != wizard.StepKeypairSelection {
			t.Errorf("%s: step = %s, want fallback to keypair_selection", name, st.Step)
		}
		if st.VPCID != wizard.DefaultVPCID {
			t.Errorf("%s: vpc = %s, want default", name, st.VPCID)
		}
	}
}

func TestSubnetMustBelongToSelectedVPC(t *testing.T) {
	w := wizard.New(populatedDirectory())
	st := &wizard.State{}
	ctx := context.Background()
	w.Start(st)
	w.Advance(ctx, st, "existing", testTurn())
	w.Advance(ctx, st, "vpc-aaa", testTurn())
	if st.Step != wizard.StepSubnetSelection {
		t.Fatalf("step = %s, want subnet_selection", st.Step)
	}

	// subnet-b1 exists but belongs to vpc-bbb; the step must not move.
	out := w.Advance(ctx, st, "subnet-b1", testTurn())
	if st.Step != wizard.StepSubnetSelection {
		t.Errorf("invalid subnet moved the step to %s", st.Step)
	}
	if st.SubnetID != "" {
		t.Errorf("invalid subnet was stored: %s", st.SubnetID)
	}
	if !strings.Contains(out.Reply.Message, "doesn't belong") {
		t.Errorf("reply should explain the mismatch: %q", out.Reply.Message)
	}

	out = w.Advance(ctx, st, "subnet-a1", testTurn())
	if st.Step != wizard.StepSGSelection || st.SubnetID != "subnet-a1" {
		t.Errorf("valid subnet not accepted: step=%s subnet=%s", st.Step, st.SubnetID)
	}
	_ = out
}

func TestFullExistingFlowEndsInDeploy(t *testing.T) {
	w := wizard.New(populatedDirectory())
	st := &wizard.State{}
	ctx := context.Background()
	turn := testTurn()
	w.Start(st)

	steps := []struct {
		input string
		want  wizard.Step
	}{
		{"existing", wizard.StepVPCSelection},
		{"vpc-aaa", wizard.StepSubnetSelection},
		{"subnet-a1", wizard.StepSGSelection},
		{"sg-web", wizard.StepKeypairSelection},
		{"create new", wizard.StepKeypairNameInput},
		{"team-key", wizard.StepSecurityApproval},
		{"approve", wizard.StepFinalDeploy},
	}
	for _, s := range steps {
		w.Advance(ctx, st, s.input, turn)
		if st.Step != s.want {
			t.Fatalf("after %q step = %s, want %s", s.input, st.Step, s.want)
		}
	}

	out := w.Advance(ctx, st, "deploy now", turn)
	if !out.Deploy {
		t.Fatalf("deploy now should request dispatch")
	}
	if !st.CreateNewKeypair || st.KeyName != "team-key" {
		t.Errorf("keypair state = %q new=%v", st.KeyName, st.CreateNewKeypair)
	}
}

func TestBackMovesExactlyOneStep(t *testing.T) {
	w := wizard.New(populatedDirectory())
	st := &wizard.State{}
	ctx := context.Background()
	turn := testTurn()
	w.Start(st)
	for _, input := range []string{"existing", "vpc-aaa", "subnet-a1", "sg-web", "auto", "approve"} {
		w.Advance(ctx, st, input, turn)
	}
	if st.Step != wizard.StepFinalDeploy {
		t.Fatalf("setup failed, step = %s", st.Step)
	}

	w.Advance(ctx, st, "go back", turn)
	if st.Step != wizard.StepSecurityApproval {
		t.Errorf("back from final_deploy went to %s, want security_approval", st.Step)
	}
	w.Advance(ctx, st, "back", turn)
	if st.Step != wizard.StepKeypairSelection {
		t.Errorf("back from security_approval went to %s, want keypair_selection", st.Step)
	}
}

func TestDefaultAlwaysSelectsSecurityGroup(t *testing.T) {
	// No group named "default" exists in the VPC; the literal input
	// still has to work.
	dir := populatedDirectory()
	dir.sgs = []directory.SecurityGroup{{ID: "sg-web", VPCID: "vpc-aaa", Name: "web-sg"}}
	w := wizard.New(dir)
	st := &wizard.State{}
	ctx := context.Background()
	turn := testTurn()
	w.Start(st)
	for _, input := range []string{"existing", "vpc-aaa", "subnet-a1"} {
		w.Advance(ctx, st, input, turn)
	}
	if st.Step != wizard.StepSGSelection {
		t.Fatalf("setup failed, step = %s", st.Step)
	}

	w.Advance(ctx, st, "Default", turn)
	if st.Step != wizard.StepKeypairSelection {
		t.Fatalf("step = %s, want keypair_selection", st.Step)
	}
	if st.SecurityGroupID != wizard.DefaultSGID || st.SecurityGroupName != "default" {
		t.Errorf("security group = %q/%q, want default", st.SecurityGroupID, st.SecurityGroupName)
	}
}

func TestBackFromDefaultPathDoesNotTrapOnSecurityGroups(t *testing.T) {
	// The default path never lists groups, so going back lands on
	// sg_selection with no cached choices; "default" must still advance.
	w := wizard.New(populatedDirectory())
	st := &wizard.State{}
	ctx := context.Background()
	turn := testTurn()
	w.Start(st)
	w.Advance(ctx, st, "default", turn)
	if st.Step != wizard.StepKeypairSelection {
		t.Fatalf("setup failed, step = %s", st.Step)
	}

	w.Advance(ctx, st, "back", turn)
	if st.Step != wizard.StepSGSelection {
		t.Fatalf("back went to %s, want sg_selection", st.Step)
	}
	w.Advance(ctx, st, "default", turn)
	if st.Step != wizard.StepKeypairSelection {
		t.Fatalf("step = %s, want keypair_selection", st.Step)
	}
	if st.SecurityGroupID != wizard.DefaultSGID {
		t.Errorf("security group = %q, want %q", st.SecurityGroupID, wizard.DefaultSGID)
	}
}

func TestKeypairNameValidation(t *testing.T) {
	w := wizard.New(populatedDirectory())
	st := &wizard.State{Step: wizard.StepKeypairNameInput, Mode: wizard.ModeDefault}
	ctx := context.Background()
	turn := testTurn()

	out := w.Advance(ctx, st, "-bad name!", turn)
	if st.Step != wizard.StepKeypairNameInput {
		t.Errorf("invalid name moved the step to %s", st.Step)
	}
	if !strings.Contains(out.Reply.Message, "won't work") {
		t.Errorf("reply = %q", out.Reply.Message)
	}
}

func TestKeypairNameTakenOffersExisting(t *testing.T) {
	w := wizard.New(populatedDirectory())
	st := &wizard.State{Step: wizard.StepKeypairNameInput, Mode: wizard.ModeDefault}
	ctx := context.Background()
	turn := testTurn()

	out := w.Advance(ctx, st, "dev-keypair", turn)
	if st.Step != wizard.StepKeypairNameInput {
		t.Fatalf("taken name should keep the step, got %s", st.Step)
	}
	if len(out.Reply.Buttons) == 0 {
		t.Fatalf("expected a use-existing button")
	}

	w.Advance(ctx, st, out.Reply.Buttons[0].Value, turn)
	if st.Step != wizard.StepSecurityApproval || st.CreateNewKeypair || st.KeyName != "dev-keypair" {
		t.Errorf("use existing not honoured: step=%s key=%q new=%v", st.Step, st.KeyName, st.CreateNewKeypair)
	}
}

func TestKeypairExistenceCheckFailureStillAdvances(t *testing.T) {
	dir := populatedDirectory()
	dir.failExists = true
	w := wizard.New(dir)
	st := &wizard.State{Step: wizard.StepKeypairNameInput, Mode: wizard.ModeDefault}

	w.Advance(context.Background(), st, "fresh-key", testTurn())
	if st.Step != wizard.StepSecurityApproval {
		t.Errorf("existence-check failure should not block, step = %s", st.Step)
	}
	if !st.CreateNewKeypair || st.KeyName != "fresh-key" {
		t.Errorf("state = %+v", st)
	}
}

func TestCancelEndsFlow(t *testing.T) {
	w := wizard.New(populatedDirectory())
	st := &wizard.State{}
	w.Start(st)
	w.Advance(context.Background(), st, "default", testTurn())

	out := w.Advance(context.Background(), st, "cancel", testTurn())
	if !out.Cancelled {
		t.Fatalf("cancel should end the flow")
	}
}

func TestSecuritySummaryShowsConfig(t *testing.T) {
	w := wizard.New(populatedDirectory())
	st := &wizard.State{Step: wizard.StepKeypairSelection, Mode: wizard.ModeDefault,
		VPCID: wizard.DefaultVPCID, SubnetID: wizard.DefaultSubnetID, SecurityGroupID: wizard.DefaultSGID}

	out := w.Advance(context.Background(), st, "auto", testTurn())
	for _, want := range []string{"t3.micro", "ubuntu", "us-east-1", wizard.DefaultVPCID, "auto-engineering-"} {
		if !strings.Contains(out.Reply.Message, want) {
			t.Errorf("summary missing %q:\n%s", want, out.Reply.Message)
		}
	}
}
