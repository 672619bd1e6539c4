package wizard

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/bdobrica/Himawari/internal/himawari/chat"
	"github.com/bdobrica/Himawari/internal/himawari/directory"
)

var keypairNameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9\-_]*$`)

// handleNetworkingChoice routes between the default path and resource
// selection. Anything unrecognized re-asks the question.
func (w *Wizard) handleNetworkingChoice(ctx context.Context, st *State, input string, turn Turn) Outcome {
	text := strings.ToLower(strings.TrimSpace(input))
	switch {
	case strings.Contains(text, "default"), strings.Contains(text, "recommend"), text == "quick":
		return w.takeDefaultPath(ctx, st, "")
	case strings.Contains(text, "existing"), strings.Contains(text, "custom"), strings.Contains(text, "pick"):
		return w.startExistingPath(ctx, st)
	}
	reply := w.prompt(ctx, st, turn)
	reply.Message = "I didn't catch that. " + reply.Message
	return Outcome{Reply: reply}
}

// takeDefaultPath fills in the account defaults and jumps straight to
// keypair selection. notice, when set, explains why the default path was
// taken (e.g. no VPCs could be listed).
func (w *Wizard) takeDefaultPath(ctx context.Context, st *State, notice string) Outcome {
	st.Mode = ModeDefault
	st.VPCID = DefaultVPCID
	st.SubnetID = DefaultSubnetID
	st.SubnetPublic = true
	st.SecurityGroupID = DefaultSGID
	st.SecurityGroupName = "default"
	st.Step = StepKeypairSelection

	reply := w.promptKeypairs(ctx, st)
	if notice != "" {
		reply.Message = notice + " " + reply.Message
	} else {
		reply.Message = "Default networking it is: default VPC, a public subnet and the default security group. " + reply.Message
	}
	return Outcome{Reply: reply}
}

func (w *Wizard) startExistingPath(ctx context.Context, st *State) Outcome {
	vpcs, err := w.Dir.VPCs(ctx)
	if err != nil {
		slog.Warn("could not list VPCs, falling back to default networking", "err", err)
		vpcs = nil
	}
	if len(vpcs) == 0 {
		return w.takeDefaultPath(ctx, st, "I couldn't find any VPCs to choose from, so I'll go with the defaults.")
	}

	st.Mode = ModeExisting
	st.VPCChoices = vpcs
	st.Step = StepVPCSelection
	return Outcome{Reply: w.promptVPCs(st)}
}

func (w *Wizard) promptVPCs(st *State) chat.Reply {
	buttons := make([]chat.Button, 0, 5)
	for i, v := range st.VPCChoices {
		if i == 5 {
			break
		}
		label := v.ID
		if v.Name != "" {
			label = fmt.Sprintf("%s (%s)", v.Name, v.CIDR)
		}
		buttons = append(buttons, chat.Button{Text: label, Value: v.ID})
	}
	return chat.Reply{Message: "Which VPC should the instance live in?", Buttons: buttons, ShowTextInput: true}
}

func (w *Wizard) handleVPCSelection(ctx context.Context, st *State, input string, turn Turn) Outcome {
	choice := strings.TrimSpace(input)
	var selected *directory.VPC
	for i := range st.VPCChoices {
		if st.VPCChoices[i].ID == choice || strings.EqualFold(st.VPCChoices[i].Name, choice) {
			selected = &st.VPCChoices[i]
			break
		}
	}
	if selected == nil {
		reply := w.promptVPCs(st)
		reply.Message = "That's not one of the VPCs I listed. " + reply.Message
		return Outcome{Reply: reply}
	}

	st.VPCID = selected.ID

	subnets, err := w.Dir.Subnets(ctx, st.VPCID)
	if err != nil {
		slog.Warn("could not list subnets, using the VPC default", "vpc", st.VPCID, "err", err)
		subnets = nil
	}
	if len(subnets) == 0 {
		// Nothing to choose from; take the default subnet and move on.
		st.SubnetID = DefaultSubnetID
		st.SubnetPublic = true
		st.Step = StepSGSelection
		return w.listSecurityGroups(ctx, st,
			"No subnets were listed for that VPC, so I'll use its default subnet.")
	}

	st.SubnetChoices = subnets
	st.Step = StepSubnetSelection
	return Outcome{Reply: w.promptSubnets(st)}
}

func (w *Wizard) promptSubnets(st *State) chat.Reply {
	buttons := make([]chat.Button, 0, 5)
	for i, sn := range st.SubnetChoices {
		if i == 5 {
			break
		}
		visibility := "private"
		if sn.Public {
			visibility = "public"
		}
		buttons = append(buttons, chat.Button{
			Text:  fmt.Sprintf("%s (%s, %s)", sn.ID, sn.CIDR, visibility),
			Value: sn.ID,
		})
	}
	return chat.Reply{Message: "Which subnet?", Buttons: buttons, ShowTextInput: true}
}

// handleSubnetSelection only accepts subnets that belong to the chosen
// VPC; anything else re-prompts without moving.
func (w *Wizard) handleSubnetSelection(ctx context.Context, st *State, input string, turn Turn) Outcome {
	choice := strings.TrimSpace(input)
	for _, sn := range st.SubnetChoices {
		if sn.ID == choice && sn.VPCID == st.VPCID {
			st.SubnetID = sn.ID
			st.SubnetPublic = sn.Public
			st.Step = StepSGSelection
			return w.listSecurityGroups(ctx, st, "")
		}
	}
	reply := w.promptSubnets(st)
	reply.Message = fmt.Sprintf("That subnet doesn't belong to %s. ", st.VPCID) + reply.Message
	return Outcome{Reply: reply}
}

func (w *Wizard) listSecurityGroups(ctx context.Context, st *State, notice string) Outcome {
	sgs, err := w.Dir.SecurityGroups(ctx, st.VPCID)
	if err != nil {
		slog.Warn("could not list security groups, using default", "vpc", st.VPCID, "err", err)
		sgs = nil
	}
	if len(sgs) == 0 {
		st.SecurityGroupID = DefaultSGID
		st.SecurityGroupName = "default"
		st.Step = StepKeypairSelection
		reply := w.promptKeypairs(ctx, st)
		reply.Message = strings.TrimSpace(notice+" I'll attach the default security group.") + " " + reply.Message
		return Outcome{Reply: reply}
	}

	st.SGChoices = sgs
	reply := w.promptSGs(st)
	if notice != "" {
		reply.Message = notice + " " + reply.Message
	}
	return Outcome{Reply: reply}
}

func (w *Wizard) promptSGs(st *State) chat.Reply {
	buttons := make([]chat.Button, 0, 5)
	for i, sg := range st.SGChoices {
		if i == 5 {
			break
		}
		buttons = append(buttons, chat.Button{
			Text:  fmt.Sprintf("%s (%s)", sg.Name, sg.ID),
			Value: sg.ID,
		})
	}
	return chat.Reply{Message: "Which security group should I attach?", Buttons: buttons, ShowTextInput: true}
}

func (w *Wizard) handleSGSelection(ctx context.Context, st *State, input string, turn Turn) Outcome {
	choice := strings.TrimSpace(input)
	var selected *directory.SecurityGroup
	for i := range st.SGChoices {
		sg := &st.SGChoices[i]
		if sg.ID == choice || strings.EqualFold(sg.Name, choice) {
			selected = sg
			break
		}
	}
	if selected == nil {
		// "default" always works, even when the listed groups carry other
		// names or the choice cache is empty after a "go back".
		if strings.EqualFold(choice, "default") {
			st.SecurityGroupID = DefaultSGID
			st.SecurityGroupName = "default"
			st.Step = StepKeypairSelection
			return Outcome{Reply: w.promptKeypairs(ctx, st)}
		}
		reply := w.promptSGs(st)
		reply.Message = "That's not one of the groups I listed. " + reply.Message
		return Outcome{Reply: reply}
	}

	st.SecurityGroupID = selected.ID
	st.SecurityGroupName = selected.Name
	st.Step = StepKeypairSelection
	return Outcome{Reply: w.promptKeypairs(ctx, st)}
}

func (w *Wizard) promptKeypairs(ctx context.Context, st *State) chat.Reply {
	keypairs, err := w.Dir.Keypairs(ctx)
	if err != nil {
		slog.Warn("could not list keypairs", "err", err)
		keypairs = nil
	}

	buttons := []chat.Button{
		{Text: "Create a new keypair", Value: "create new"},
		{Text: "Auto-generate one for me", Value: "auto"},
	}
	for i, kp := range keypairs {
		if i == 3 {
			break
		}
		buttons = append(buttons, chat.Button{Text: "Use " + kp.Name, Value: kp.Name})
	}
	return chat.Reply{
		Message:       "Which SSH keypair should the instance use?",
		Buttons:       buttons,
		ShowTextInput: true,
	}
}

func (w *Wizard) handleKeypairSelection(ctx context.Context, st *State, input string, turn Turn) Outcome {
	text := strings.ToLower(strings.TrimSpace(input))
	switch {
	case strings.Contains(text, "create") || text == "new":
		st.Step = StepKeypairNameInput
		return Outcome{Reply: chat.Text("What should the new keypair be called? Letters, digits, dashes and underscores only.")}
	case text == "auto" || strings.Contains(text, "generate"):
		st.KeyName = w.autoKeypairName(turn.Department)
		st.CreateNewKeypair = true
		st.Step = StepSecurityApproval
		return Outcome{Reply: w.securitySummary(st, turn)}
	}

	name := strings.TrimSpace(input)
	exists, err := w.Dir.KeypairExists(ctx, name)
	if err != nil {
		slog.Warn("keypair existence check failed, accepting name as existing", "name", name, "err", err)
		exists = true
	}
	if !exists {
		reply := w.promptKeypairs(ctx, st)
		reply.Message = fmt.Sprintf("I don't see a keypair named %q. ", name) + reply.Message
		return Outcome{Reply: reply}
	}

	st.KeyName = name
	st.CreateNewKeypair = false
	st.Step = StepSecurityApproval
	return Outcome{Reply: w.securitySummary(st, turn)}
}

// handleKeypairName validates a proposed keypair name, and when the name
// is already taken offers to reuse it instead.
func (w *Wizard) handleKeypairName(ctx context.Context, st *State, input string, turn Turn) Outcome {
	name := strings.TrimSpace(input)

	if strings.HasPrefix(strings.ToLower(name), "use existing") {
		existing := strings.TrimSpace(name[len("use existing"):])
		if existing == "" {
			existing = st.KeyName
		}
		if existing != "" {
			st.KeyName = existing
			st.CreateNewKeypair = false
			st.Step = StepSecurityApproval
			return Outcome{Reply: w.securitySummary(st, turn)}
		}
	}

	if !keypairNameRe.MatchString(name) {
		return Outcome{Reply: chat.Text(
			"That name won't work: keypair names must start with a letter or digit and may only contain letters, digits, dashes and underscores. Try another name.")}
	}

	exists, err := w.Dir.KeypairExists(ctx, name)
	if err != nil {
		// Can't tell; let the pipeline sort out a rare collision rather
		// than blocking the user here.
		slog.Warn("keypair existence check failed, continuing with new name", "name", name, "err", err)
		exists = false
	}
	if exists {
		st.KeyName = name
		return Outcome{Reply: chat.Reply{
			Message: fmt.Sprintf("A keypair named %q already exists. Use the existing one, or give me a different name.", name),
			Buttons: []chat.Button{
				{Text: "Use the existing keypair", Value: "use existing " + name},
			},
			ShowTextInput: true,
		}}
	}

	st.KeyName = name
	st.CreateNewKeypair = true
	st.Step = StepSecurityApproval
	return Outcome{Reply: w.securitySummary(st, turn)}
}

func (w *Wizard) handleSecurityApproval(ctx context.Context, st *State, input string, turn Turn) Outcome {
	text := strings.ToLower(strings.TrimSpace(input))
	switch {
	case strings.Contains(text, "approve"), text == "yes", text == "ok", text == "okay":
		st.Step = StepFinalDeploy
		return Outcome{Reply: w.finalSummary(st, turn)}
	case strings.Contains(text, "cancel"):
		return Outcome{Cancelled: true, Reply: chat.Text("Cancelled. Nothing was provisioned.")}
	}
	reply := w.securitySummary(st, turn)
	reply.Message = "Please approve or cancel. " + reply.Message
	return Outcome{Reply: reply}
}

func (w *Wizard) handleFinalDeploy(ctx context.Context, st *State, input string, turn Turn) Outcome {
	text := strings.ToLower(strings.TrimSpace(input))
	switch {
	case strings.Contains(text, "deploy"), text == "yes", strings.Contains(text, "go"):
		return Outcome{Deploy: true}
	case strings.Contains(text, "cancel"):
		return Outcome{Cancelled: true, Reply: chat.Text("Cancelled. Nothing was provisioned.")}
	}
	reply := w.finalSummary(st, turn)
	reply.Message = "Say Deploy Now to launch, Cancel to stop, or go back to review. " + reply.Message
	return Outcome{Reply: reply}
}

func (w *Wizard) securitySummary(st *State, turn Turn) chat.Reply {
	var b strings.Builder
	b.WriteString("Here's the configuration I'm about to request:\n")
	if turn.Config != nil {
		for _, field := range turn.Config.Required() {
			if v := turn.Config.Get(field); v != "" {
				fmt.Fprintf(&b, "- %s: %s\n", field, v)
			}
		}
	}
	fmt.Fprintf(&b, "- vpc: %s\n- subnet: %s\n- security group: %s\n", st.VPCID, st.SubnetID, st.SecurityGroupID)
	if st.CreateNewKeypair {
		fmt.Fprintf(&b, "- keypair: %s (new)\n", st.KeyName)
	} else {
		fmt.Fprintf(&b, "- keypair: %s\n", st.KeyName)
	}
	b.WriteString("Does this look right?")

	return chat.Reply{
		Message: b.String(),
		Buttons: []chat.Button{
			{Text: "Approve", Value: "approve"},
			{Text: "Cancel", Value: "cancel"},
		},
		ShowTextInput: true,
	}
}

func (w *Wizard) finalSummary(st *State, turn Turn) chat.Reply {
	return chat.Reply{
		Message: "Everything is settled. Ready to deploy?",
		Buttons: []chat.Button{
			{Text: "Deploy Now", Value: "deploy now"},
			{Text: "Cancel", Value: "cancel"},
		},
		ShowTextInput: true,
	}
}

// autoKeypairName builds auto-<department>-<hex seconds> names like
// auto-engineering-0fa1db.
func (w *Wizard) autoKeypairName(department string) string {
	dept := strings.ToLower(strings.TrimSpace(department))
	if dept == "" {
		dept = "user"
	}
	ts := fmt.Sprintf("%x", w.now().Unix())
	if len(ts) > 6 {
		ts = ts[len(ts)-6:]
	}
	return fmt.Sprintf("auto-%s-%s", dept, ts)
}
