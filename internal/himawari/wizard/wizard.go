// Package wizard walks a user through EC2 networking: VPC, subnet,
// security group and keypair, ending in a two-stage approval. It is a
// finite state machine; every (step, input) pair either advances one
// step, steps exactly one back, re-prompts in place, or ends the flow.
package wizard

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/bdobrica/Himawari/internal/himawari/chat"
	"github.com/bdobrica/Himawari/internal/himawari/directory"
	"github.com/bdobrica/Himawari/internal/himawari/params"
)

// Step is the wizard's position in the flow.
type Step string

const (
	StepNone             Step = ""
	StepNetworkingChoice Step = "networking_choice"
	StepVPCSelection     Step = "vpc_selection"
	StepSubnetSelection  Step = "subnet_selection"
	StepSGSelection      Step = "sg_selection"
	StepKeypairSelection Step = "keypair_selection"
	StepKeypairNameInput Step = "keypair_name_input"
	StepSecurityApproval Step = "security_approval"
	StepFinalDeploy      Step = "final_deploy"
)

// prev maps each step to the one "go back" returns to. Going back from
// the first step leaves the user on it.
var prev = map[Step]Step{
	StepNetworkingChoice: StepNetworkingChoice,
	StepVPCSelection:     StepNetworkingChoice,
	StepSubnetSelection:  StepVPCSelection,
	StepSGSelection:      StepSubnetSelection,
	StepKeypairSelection: StepSGSelection,
	StepKeypairNameInput: StepKeypairSelection,
	StepSecurityApproval: StepKeypairSelection,
	StepFinalDeploy:      StepSecurityApproval,
}

// Mode records whether the user took the default networking path or is
// picking existing resources.
type Mode string

const (
	ModeDefault  Mode = "default"
	ModeExisting Mode = "existing"
)

// Placeholder identifiers used by the default path; the provisioning
// pipeline resolves them to the account's actual defaults.
const (
	DefaultVPCID    = "vpc-default"
	DefaultSubnetID = "subnet-default"
	DefaultSGID     = "sg-default"
)

// State is the wizard's per-session memory. The choice slices cache what
// was offered so the next input can be validated against it.
type State struct {
	Step Step
	Mode Mode

	VPCID             string
	SubnetID          string
	SubnetPublic      bool
	SecurityGroupID   string
	SecurityGroupName string
	KeyName           string
	CreateNewKeypair  bool

	VPCChoices    []directory.VPC
	SubnetChoices []directory.Subnet
	SGChoices     []directory.SecurityGroup
}

// Active reports whether a wizard flow is in progress.
func (s *State) Active() bool { return s.Step != StepNone }

// Outcome is what one Advance call decided.
type Outcome struct {
	Reply chat.Reply

	// Deploy is set when the user pressed Deploy Now on the final step.
	// The orchestrator still owns the deploy gate.
	Deploy bool

	// Cancelled is set when the user backed out; the orchestrator resets
	// the wizard state.
	Cancelled bool
}

// Turn carries the per-call context a handler may need.
type Turn struct {
	Config     params.ServiceConfig
	Department string
}

// Wizard drives the flow against a resource directory.
type Wizard struct {
	Dir directory.Directory

	// now feeds auto-generated keypair names; tests pin it.
	now func() time.Time
}

// New builds a wizard over the directory.
func New(dir directory.Directory) *Wizard {
	return &Wizard{Dir: dir, now: time.Now}
}

type handlerFunc func(w *Wizard, ctx context.Context, st *State, input string, turn Turn) Outcome

// handlers is the complete (step -> handler) table. Inputs a handler does
// not recognize re-prompt the current step; nothing here can panic on
// user text.
var handlers = map[Step]handlerFunc{
	StepNetworkingChoice: (*Wizard).handleNetworkingChoice,
	StepVPCSelection:     (*Wizard).handleVPCSelection,
	StepSubnetSelection:  (*Wizard).handleSubnetSelection,
	StepSGSelection:      (*Wizard).handleSGSelection,
	StepKeypairSelection: (*Wizard).handleKeypairSelection,
	StepKeypairNameInput: (*Wizard).handleKeypairName,
	StepSecurityApproval: (*Wizard).handleSecurityApproval,
	StepFinalDeploy:      (*Wizard).handleFinalDeploy,
}

// Start opens the flow at the networking choice.
func (w *Wizard) Start(st *State) chat.Reply {
	*st = State{Step: StepNetworkingChoice}
	return chat.Reply{
		Message: "Almost there! How should I set up networking for this instance?",
		Buttons: []chat.Button{
			{Text: "Use defaults (recommended)", Value: "default"},
			{Text: "Pick existing resources", Value: "existing"},
		},
		ShowTextInput: true,
	}
}

// Advance feeds one user input into the current step.
func (w *Wizard) Advance(ctx context.Context, st *State, input string, turn Turn) Outcome {
	text := strings.ToLower(strings.TrimSpace(input))

	if isBack(text) {
		st.Step = prev[st.Step]
		return Outcome{Reply: w.prompt(ctx, st, turn)}
	}
	if isCancel(text) {
		return Outcome{
			Cancelled: true,
			Reply:     chat.Text("No problem, I've cancelled the setup. Tell me when you want to start again."),
		}
	}

	h, ok := handlers[st.Step]
	if !ok {
		// Unknown step should not happen; restart the flow rather than
		// trapping the user.
		slog.Warn("networking flow in unknown step, restarting", "step", st.Step)
		return Outcome{Reply: w.Start(st)}
	}
	return h(w, ctx, st, input, turn)
}

// prompt re-renders the question for the current step, used after "go
// back" and after invalid input.
func (w *Wizard) prompt(ctx context.Context, st *State, turn Turn) chat.Reply {
	switch st.Step {
	case StepNetworkingChoice:
		fresh := &State{}
		reply := w.Start(fresh)
		*st = *fresh
		return reply
	case StepVPCSelection:
		return w.promptVPCs(st)
	case StepSubnetSelection:
		return w.promptSubnets(st)
	case StepSGSelection:
		return w.promptSGs(st)
	case StepKeypairSelection:
		return w.promptKeypairs(ctx, st)
	case StepKeypairNameInput:
		return chat.Text("What should the new keypair be called? Letters, digits, dashes and underscores only.")
	case StepSecurityApproval:
		return w.securitySummary(st, turn)
	case StepFinalDeploy:
		return w.finalSummary(st, turn)
	}
	return chat.Text("Let's continue with the networking setup.")
}

func isBack(text string) bool {
	return text == "back" || text == "go back" || text == "previous"
}

func isCancel(text string) bool {
	return text == "cancel" || text == "cancel that" || text == "stop" || text == "abort"
}
