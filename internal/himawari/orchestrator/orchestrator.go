// Package orchestrator is the conversation brain: it serializes turns per
// user, reads intents, collects parameters, runs the networking wizard
// and ultimately hands finished requests to the deployment dispatcher.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bdobrica/Himawari/common/trace"
	"github.com/bdobrica/Himawari/internal/himawari/chat"
	"github.com/bdobrica/Himawari/internal/himawari/confirm"
	"github.com/bdobrica/Himawari/internal/himawari/deploy"
	"github.com/bdobrica/Himawari/internal/himawari/nlu"
	"github.com/bdobrica/Himawari/internal/himawari/params"
	"github.com/bdobrica/Himawari/internal/himawari/policy"
	"github.com/bdobrica/Himawari/internal/himawari/session"
	"github.com/bdobrica/Himawari/internal/himawari/store"
	"github.com/bdobrica/Himawari/internal/himawari/wizard"
)

// resetKeywords wipe the session when sent as the whole message,
// regardless of anything else going on. Sending one twice is harmless.
var resetKeywords = map[string]bool{
	"REFRESH": true,
	"CANCEL":  true,
	"CLEAR":   true,
	"RESET":   true,
}

const processingReply = "I'm still working on your previous message — give me a moment."

// Auditor records turns and dispatches. The sqlite store implements it;
// tests use a capturing fake.
type Auditor interface {
	RecordTurn(ctx context.Context, t store.Turn) error
	RecordDispatch(ctx context.Context, userID string, req deploy.Request, pipelineRef string, dispatchErr error) error
	RecentRequests(ctx context.Context, userID string, limit int) ([]store.RequestRecord, error)
}

// Orchestrator wires the conversation components together. All fields
// except Audit are required.
type Orchestrator struct {
	Sessions   session.Store
	Locks      *session.Locks
	Classifier *nlu.Classifier
	Policy     *policy.Provider
	Validator  *params.Validator
	Confirm    *confirm.Manager
	Wizard     *wizard.Wizard
	Dispatcher deploy.Dispatcher

	// Audit is optional; audit failures are logged, never surfaced.
	Audit Auditor
}

// HandleTurn processes one user message and returns the reply. It never
// returns an error: every failure mode has a conversational rendering.
func (o *Orchestrator) HandleTurn(ctx context.Context, user policy.UserInfo, message string) chat.Reply {
	release, ok := o.Locks.TryAcquire(user.Email)
	if !ok {
		return chat.Text(processingReply)
	}
	defer release()

	message = strings.TrimSpace(message)
	if message == "" {
		return chat.Text("Tell me what you'd like to provision — an EC2 server, an S3 bucket or a Lambda function.")
	}

	reply, intent := o.dispatch(ctx, user, message)
	o.audit(ctx, user, message, intent, reply)
	return reply
}

// dispatch routes the message by priority: reset keywords, an active
// networking flow, a pending confirmation, then classified intents.
func (o *Orchestrator) dispatch(ctx context.Context, user policy.UserInfo, message string) (chat.Reply, string) {
	if resetKeywords[strings.ToUpper(message)] {
		o.reset(user.Email)
		return chat.Text("Done — I've cleared everything. What would you like to set up?"), "reset"
	}

	sess, hasSession := o.Sessions.Get(user.Email)

	if hasSession && sess.Wizard.Active() {
		return o.advanceWizard(ctx, user, sess, message), "networking"
	}

	if o.Confirm.Pending(user.Email) {
		if reply, handled := o.resolveConfirmation(ctx, user, sess, message); handled {
			return reply, "confirmation"
		}
	}

	res := o.Classifier.Classify(ctx, nlu.Request{
		Message:   message,
		Sender:    user.Email,
		Service:   serviceOf(sess),
		Collected: collectedOf(sess),
	})

	switch res.Intent {
	case nlu.IntentCancel:
		o.reset(user.Email)
		return chat.Text("Request cancelled. Nothing was provisioned."), string(res.Intent)
	case nlu.IntentStatus:
		return o.statusReply(ctx, user, sess), string(res.Intent)
	case nlu.IntentCost:
		return o.costReply(sess), string(res.Intent)
	case nlu.IntentAccess:
		return o.accessReply(user, message), string(res.Intent)
	case nlu.IntentQuery:
		return o.allowedValuesReply(user, message, sess), string(res.Intent)
	case nlu.IntentCreate:
		return o.startRequest(ctx, user, res), string(res.Intent)
	case nlu.IntentUpdate:
		return o.updateRequest(ctx, user, sess, res), string(res.Intent)
	case nlu.IntentNetworking:
		return o.startNetworking(user, sess), string(res.Intent)
	case nlu.IntentDeploy:
		return o.deployIntent(ctx, user, sess), string(res.Intent)
	}

	if res.Response != "" {
		return chat.Text(res.Response), string(res.Intent)
	}
	return chat.Text("I help provision AWS resources. Try something like \"I need a t3.micro ubuntu server in dev\"."), string(res.Intent)
}

// startRequest opens a fresh session and applies whatever parameters
// arrived in the same message.
func (o *Orchestrator) startRequest(ctx context.Context, user policy.UserInfo, res *nlu.Result) chat.Reply {
	svc := res.Service
	if svc == "" {
		svc = params.ServiceEC2
	}
	sess, err := session.New(svc)
	if err != nil {
		slog.Error("cannot open session", "service", svc, "err", err)
		return chat.Text("Something went wrong starting that request — please try again.")
	}
	sess.HasActiveRequest = true

	// A stale confirmation from an earlier request must not answer
	// itself with the next yes/no the user types.
	o.Confirm.Clear(user.Email)

	// A fresh session has no values to conflict with; apply directly.
	applied := o.Validator.Apply(sess.Config, user, res.Updates, params.Direct)
	o.Sessions.Put(user.Email, sess)

	return o.progressReply(user, sess, applied, "")
}

// updateRequest applies parameter changes to the active session,
// detouring through a confirmation when the change is ambiguous.
func (o *Orchestrator) updateRequest(ctx context.Context, user policy.UserInfo, sess *session.Session, res *nlu.Result) chat.Reply {
	if sess == nil || !sess.HasActiveRequest {
		return chat.Text("There's no request in progress. Tell me what you'd like to create first.")
	}

	// One question at a time. While a confirmation is unanswered, apply
	// any updates to other fields directly and repeat the open question
	// rather than parking a second change on top of it.
	if pending, ok := o.Confirm.Peek(user.Email); ok {
		var extras []params.Update
		for _, u := range res.Updates {
			if u.Field != pending.Field {
				extras = append(extras, u)
			}
		}
		applied := o.Validator.Apply(sess.Config, user, extras, params.Direct)
		o.Sessions.Put(user.Email, sess)
		reply := confirmQuestion(pending)
		if len(applied.Applied) > 0 {
			reply.Message = "Got it. " + reply.Message
		}
		return reply
	}

	applied := o.Validator.Apply(sess.Config, user, res.Updates, res.Mode)
	if applied.Conflict != nil {
		c := applied.Conflict
		o.Confirm.Propose(user.Email, c.Field, c.OldValue, c.NewValue)
		o.Sessions.Put(user.Email, sess)
		return confirmQuestion(confirm.Change{Field: c.Field, OldValue: c.OldValue, NewValue: c.NewValue})
	}

	o.Sessions.Put(user.Email, sess)
	return o.progressReply(user, sess, applied, "")
}

func confirmQuestion(c confirm.Change) chat.Reply {
	return chat.Text(fmt.Sprintf(
		"You currently have %s set to %s — should I change it to %s?",
		strings.ReplaceAll(c.Field, "_", " "), c.OldValue, c.NewValue))
}

// resolveConfirmation interprets the message as an answer to the pending
// change. The bool is false when the message is not recognizably an
// answer; it then flows on to normal classification with the question
// still pending.
func (o *Orchestrator) resolveConfirmation(ctx context.Context, user policy.UserInfo, sess *session.Session, message string) (chat.Reply, bool) {
	outcome := confirm.DetectResponse(message)
	if outcome == confirm.Unclear {
		return chat.Reply{}, false
	}

	change, ok := o.Confirm.Resolve(user.Email)
	if !ok {
		return chat.Reply{}, false
	}
	if sess == nil {
		return chat.Text("That request has expired — tell me what you'd like to set up."), true
	}

	switch outcome {
	case confirm.Positive:
		applied := o.Validator.Apply(sess.Config, user, []params.Update{{Field: change.Field, Value: change.NewValue}}, params.Direct)
		o.Sessions.Put(user.Email, sess)
		if msg := applied.RejectedMessage(); msg != "" {
			return chat.Text(msg), true
		}
		return o.progressReply(user, sess, applied, ""), true

	case confirm.Negative:
		o.Sessions.Put(user.Email, sess)
		return o.progressReply(user, sess, params.Result{},
			fmt.Sprintf("Okay, keeping %s as %s.", strings.ReplaceAll(change.Field, "_", " "), change.OldValue)), true

	case confirm.Conditional:
		// "no, use X instead": the replacement for the same field may be
		// in this very message.
		value := change.OldValue
		for _, u := range params.Extract(sess.Service, message) {
			if u.Field == change.Field {
				value = u.Value
				break
			}
		}
		applied := o.Validator.Apply(sess.Config, user, []params.Update{{Field: change.Field, Value: value}}, params.Direct)
		o.Sessions.Put(user.Email, sess)
		if msg := applied.RejectedMessage(); msg != "" {
			return chat.Text(msg), true
		}
		return o.progressReply(user, sess, applied, ""), true
	}
	return chat.Reply{}, false
}

// startNetworking opens the wizard once every parameter is in.
func (o *Orchestrator) startNetworking(user policy.UserInfo, sess *session.Session) chat.Reply {
	if sess == nil || !sess.HasActiveRequest {
		return chat.Text("There's no request in progress yet — tell me what you'd like to create first.")
	}
	if sess.Service != params.ServiceEC2 {
		return chat.Text("Networking setup only applies to EC2 instances; your current request doesn't need it.")
	}
	if !sess.Complete() {
		return o.progressReply(user, sess, params.Result{}, "Let's finish the basics first.")
	}
	reply := o.Wizard.Start(&sess.Wizard)
	o.Sessions.Put(user.Email, sess)
	return reply
}

// advanceWizard feeds the message into the active networking flow.
func (o *Orchestrator) advanceWizard(ctx context.Context, user policy.UserInfo, sess *session.Session, message string) chat.Reply {
	out := o.Wizard.Advance(ctx, &sess.Wizard, message, wizard.Turn{
		Config:     sess.Config,
		Department: user.Department,
	})

	switch {
	case out.Cancelled:
		o.reset(user.Email)
		return out.Reply
	case out.Deploy:
		return o.dispatchRequest(ctx, user, sess)
	default:
		o.Sessions.Put(user.Email, sess)
		return out.Reply
	}
}

// deployIntent handles "deploy it" said outside the wizard.
func (o *Orchestrator) deployIntent(ctx context.Context, user policy.UserInfo, sess *session.Session) chat.Reply {
	if sess == nil || !sess.HasActiveRequest {
		return chat.Text("There's nothing to deploy yet — tell me what you'd like to create.")
	}
	if !sess.Complete() {
		return o.progressReply(user, sess, params.Result{}, "Almost — a few details first.")
	}
	if sess.Service == params.ServiceEC2 {
		// EC2 goes through networking and the two approval screens; the
		// actual dispatch happens from the wizard's final step.
		reply := o.Wizard.Start(&sess.Wizard)
		o.Sessions.Put(user.Email, sess)
		return reply
	}
	return o.dispatchRequest(ctx, user, sess)
}

// dispatchRequest is the single exit point to the pipeline. The deploy
// gate lives here: nothing missing, and for EC2 the wizard must have
// reached its final step. The session is reset afterwards whether the
// dispatch succeeded or not.
func (o *Orchestrator) dispatchRequest(ctx context.Context, user policy.UserInfo, sess *session.Session) chat.Reply {
	if !sess.Complete() {
		return o.progressReply(user, sess, params.Result{}, "I can't deploy yet.")
	}
	if sess.Service == params.ServiceEC2 && sess.Wizard.Step != wizard.StepFinalDeploy {
		return chat.Text("Networking isn't settled yet — let's finish that before deploying.")
	}

	req := deploy.BuildRequest(user.Email, user.Department, sess)
	ref, err := o.Dispatcher.Dispatch(ctx, req)

	if o.Audit != nil {
		if auditErr := o.Audit.RecordDispatch(ctx, user.Email, req, ref, err); auditErr != nil {
			slog.Error("audit: record dispatch", "request", req.RequestID, "err", auditErr)
		}
	}

	// Win or lose, this request is finished.
	o.reset(user.Email)

	if err != nil {
		slog.Error("dispatch failed", "request", req.RequestID, "trace", trace.FromContext(ctx), "err", err)
		return chat.Text(fmt.Sprintf(
			"I couldn't hand request %s to the provisioning pipeline. Nothing was created — please try again in a bit.",
			req.RequestID))
	}

	slog.Info("request dispatched", "request", req.RequestID, "ref", ref, "user", user.Email, "trace", trace.FromContext(ctx))
	return chat.Text(fmt.Sprintf(
		"Your request is on its way! Tracking id: %s. I'll have status if you ask me later.",
		req.RequestID))
}

// progressReply is the workhorse answer after any parameter activity: it
// reports what changed and what was rejected, then asks for the next
// missing field, or moves to networking when everything is collected.
func (o *Orchestrator) progressReply(user policy.UserInfo, sess *session.Session, applied params.Result, prefix string) chat.Reply {
	var parts []string
	if prefix != "" {
		parts = append(parts, prefix)
	}
	if len(applied.Applied) > 0 {
		parts = append(parts, "Got it: "+strings.Join(applied.Applied, ", ")+".")
	}
	if msg := applied.RejectedMessage(); msg != "" {
		parts = append(parts, msg)
	}

	missing := sess.Missing()
	if len(missing) == 0 {
		if sess.Service == params.ServiceEC2 {
			if !sess.Wizard.Active() {
				reply := o.Wizard.Start(&sess.Wizard)
				o.Sessions.Put(user.Email, sess)
				reply.Message = strings.TrimSpace(strings.Join(parts, " ") + " " + reply.Message)
				return reply
			}
			parts = append(parts, "We're mid-networking — let's continue.")
			return chat.Text(strings.Join(parts, " "))
		}
		parts = append(parts, fmt.Sprintf("Everything's collected for your %s request. Say \"deploy\" when you're ready.",
			strings.ToUpper(string(sess.Service))))
		return chat.Text(strings.Join(parts, " "))
	}

	parts = append(parts, promptFor(missing[0]))
	return chat.Text(strings.Join(parts, " "))
}

// promptFor asks for one missing field, with the allowed shapes inline.
func promptFor(field string) string {
	switch field {
	case params.FieldEnvironment:
		return "What environment? (dev/qa/prod)"
	case params.FieldInstanceType:
		return "What instance type? (e.g. t3.micro, t3.small)"
	case params.FieldOperatingSystem:
		return "What operating system? (ubuntu/amazon-linux/windows)"
	case params.FieldStorageSize:
		return "How much storage in GB?"
	case params.FieldRegion:
		return "Which region? (e.g. us-east-1)"
	case params.FieldBucketName:
		return "What should the S3 bucket be named?"
	case params.FieldFunctionName:
		return "What should the Lambda function be named?"
	case params.FieldRuntime:
		return "What runtime? (e.g. python3.11, nodejs18.x)"
	}
	return fmt.Sprintf("Please specify %s.", strings.ReplaceAll(field, "_", " "))
}

// reset wipes every per-user trace: session, pending confirmation.
func (o *Orchestrator) reset(user string) {
	o.Sessions.Delete(user)
	o.Confirm.Clear(user)
}

func (o *Orchestrator) audit(ctx context.Context, user policy.UserInfo, message, intent string, reply chat.Reply) {
	if o.Audit == nil {
		return
	}
	err := o.Audit.RecordTurn(ctx, store.Turn{
		UserID:     user.Email,
		Department: user.Department,
		Message:    message,
		Intent:     intent,
		Reply:      reply.Message,
	})
	if err != nil {
		slog.Error("audit: record turn", "user", user.Email, "err", err)
	}
}

func serviceOf(sess *session.Session) params.Service {
	if sess == nil {
		return ""
	}
	return sess.Service
}

func collectedOf(sess *session.Session) map[string]string {
	if sess == nil || sess.Config == nil {
		return nil
	}
	return params.Collected(sess.Config)
}
