package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bdobrica/Himawari/internal/himawari/chat"
	"github.com/bdobrica/Himawari/internal/himawari/params"
	"github.com/bdobrica/Himawari/internal/himawari/policy"
	"github.com/bdobrica/Himawari/internal/himawari/session"
)

// Informational intents: status, cost estimates, environment access and
// allowed-values queries. None of them mutate the session.

// hoursPerMonth is the 730-hour month AWS pricing pages use.
const hoursPerMonth = 730

// hourlyRates are on-demand us-east-1 fallback prices in USD. Good enough
// for a ballpark in chat; the pipeline does the real math.
var hourlyRates = map[string]float64{
	"t3.nano":   0.0052,
	"t3.micro":  0.0104,
	"t3.small":  0.0208,
	"t3.medium": 0.0416,
	"t3.large":  0.0832,
	"m5.large":  0.096,
	"m5.xlarge": 0.192,
	"c5.large":  0.085,
	"c5.xlarge": 0.17,
	"r5.large":  0.126,
}

// gp3PerGBMonth is the EBS gp3 storage rate.
const gp3PerGBMonth = 0.08

// s3PerGBMonth is the S3 Standard storage rate.
const s3PerGBMonth = 0.023

func (o *Orchestrator) statusReply(ctx context.Context, user policy.UserInfo, sess *session.Session) chat.Reply {
	var b strings.Builder

	if sess != nil && sess.HasActiveRequest {
		b.WriteString(fmt.Sprintf("**In progress:** %s request.", strings.ToUpper(string(sess.Service))))
		if collected := params.Collected(sess.Config); len(collected) > 0 {
			b.WriteString(" So far: ")
			var parts []string
			for _, f := range sess.Config.Required() {
				if v, ok := collected[f]; ok {
					parts = append(parts, fmt.Sprintf("%s=%s", strings.ReplaceAll(f, "_", " "), v))
				}
			}
			b.WriteString(strings.Join(parts, ", ") + ".")
		}
		if missing := sess.Missing(); len(missing) > 0 {
			b.WriteString(" Still needed: " + strings.Join(missing, ", ") + ".")
		}
	} else {
		b.WriteString("No request in progress.")
	}

	if o.Audit != nil {
		records, err := o.Audit.RecentRequests(ctx, user.Email, 5)
		if err != nil {
			slog.Error("audit: recent requests", "user", user.Email, "err", err)
		}
		if len(records) > 0 {
			b.WriteString("\n\nRecent requests:")
			for _, r := range records {
				b.WriteString(fmt.Sprintf("\n- %s (%s, %s): %s", r.RequestID, r.Service, r.Environment, r.Status))
			}
		}
	}

	return chat.Text(b.String())
}

// costReply gives a monthly ballpark for the current request, or the
// generic rate card when nothing is in flight.
func (o *Orchestrator) costReply(sess *session.Session) chat.Reply {
	if sess == nil || !sess.HasActiveRequest {
		var b strings.Builder
		b.WriteString("Rough monthly on-demand costs (us-east-1):\n")
		for _, t := range []string{"t3.micro", "t3.small", "t3.medium", "m5.large"} {
			b.WriteString(fmt.Sprintf("- %s: ~$%.2f\n", t, hourlyRates[t]*hoursPerMonth))
		}
		b.WriteString("Storage adds ~$0.08/GB. Start a request and I'll estimate it for you.")
		return chat.Text(b.String())
	}

	switch sess.Service {
	case params.ServiceEC2:
		instance := sess.Config.Get(params.FieldInstanceType)
		rate, known := hourlyRates[instance]
		if !known {
			return chat.Text("I don't have a rate for that instance type on hand — the deployment summary will include the real estimate.")
		}
		total := rate * hoursPerMonth
		msg := fmt.Sprintf("A %s runs about $%.2f/month", instance, total)
		if storage := sess.Config.Get(params.FieldStorageSize); storage != "" {
			var gb float64
			fmt.Sscanf(storage, "%f", &gb)
			msg += fmt.Sprintf(" plus ~$%.2f/month for %sGB of gp3 storage", gb*gp3PerGBMonth, storage)
		}
		return chat.Text(msg + " (on-demand, us-east-1 rates).")

	case params.ServiceS3:
		return chat.Text(fmt.Sprintf(
			"S3 Standard is ~$%.3f/GB-month plus $0.0004 per 1K requests — a small bucket costs cents.", s3PerGBMonth))

	case params.ServiceLambda:
		return chat.Text("Lambda bills $0.20 per million requests plus compute time; light workloads usually land inside the free tier.")
	}
	return chat.Text("Costs depend on the service — tell me what you're planning and I'll estimate it.")
}

// accessReply answers "can I use prod?" style questions. Grants
// themselves go through the approval flow outside of chat.
func (o *Orchestrator) accessReply(user policy.UserInfo, message string) chat.Reply {
	env := params.ExtractEnvironment(message)
	if env == "" {
		var granted []string
		for _, e := range o.Policy.Environments("aws") {
			if o.Policy.HasEnvironmentAccess(user, e) {
				granted = append(granted, e)
			}
		}
		if len(granted) == 0 {
			return chat.Text("You don't have provisioning access in any environment right now. Ask your team lead to request a grant.")
		}
		return chat.Text("You can provision in: " + strings.Join(granted, ", ") + ".")
	}

	if o.Policy.HasEnvironmentAccess(user, env) {
		return chat.Text(fmt.Sprintf("You're good — %s department has %s access.", user.Department, env))
	}
	return chat.Text(fmt.Sprintf(
		"%s access needs an approved grant for your account. I've noted the request; your team lead will get an approval prompt.", env))
}

// allowedValuesReply lists what the department's limits permit in the
// environment under discussion.
func (o *Orchestrator) allowedValuesReply(user policy.UserInfo, message string, sess *session.Session) chat.Reply {
	env := params.ExtractEnvironment(message)
	if env == "" && sess != nil && sess.Config != nil {
		env = sess.Config.Get(params.FieldEnvironment)
	}
	if env == "" {
		env = "dev"
	}

	limits := o.Policy.Limits("aws", env, user.Department)

	var b strings.Builder
	b.WriteString(fmt.Sprintf("In %s, %s can use:\n", env, user.Department))
	if len(limits.AllowedInstanceTypes) == 0 {
		b.WriteString("- instance types: none (environment restricted)\n")
	} else {
		b.WriteString("- instance types: " + strings.Join(limits.AllowedInstanceTypes, ", ") + "\n")
	}
	if len(limits.AllowedRegions) > 0 {
		b.WriteString("- regions: " + strings.Join(limits.AllowedRegions, ", ") + "\n")
	}
	if limits.MaxStorageGB > 0 {
		b.WriteString(fmt.Sprintf("- storage: up to %dGB\n", limits.MaxStorageGB))
	}
	if limits.RequiresApproval {
		b.WriteString("Deployments here require approval.")
	}
	return chat.Text(strings.TrimSpace(b.String()))
}
