package bridge

import (
	"context"
	"fmt"

	"jirabridge/internal/eventbus"
	logx "jirabridge/pkg/logx"
)

// Outcome is the delivery result for one successfully resolved recipient.
// Tag is empty iff Sent is true.
type Outcome struct {
	Username string
	Sent     bool
	Tag      string
}

// Result aggregates everything one event produced. The transport layer
// reports success unconditionally; per-recipient failures live here as data.
type Result struct {
	IssueKey     string
	EventType    string
	Participants int
	Resolutions  []Resolution
	Outcomes     []Outcome
	Attempts     int
	Sent         int
	Warnings     []string
}

// Message is the human-readable one-liner placed in the HTTP response.
func (r Result) Message() string {
	return fmt.Sprintf("processed %s event for %s: %d participants, %d delivered of %d attempts",
		r.EventType, r.IssueKey, r.Participants, r.Sent, r.Attempts)
}

// Pipeline processes tracker events end to end. It holds no per-event state;
// a single Pipeline serves every request.
type Pipeline struct {
	log logx.Logger
	bus *eventbus.Bus
}

// New builds a pipeline. bus may be nil when no observers are wired.
func New(log logx.Logger, bus *eventbus.Bus) *Pipeline {
	return &Pipeline{log: log, bus: bus}
}

// Process runs one envelope through parse, extract, resolve, format and
// deliver. It never returns an error: every failure mode degrades to a
// per-recipient outcome or a warning, and the caller always gets a Result.
//
// Recipients are delivered strictly sequentially in resolution order, so
// outcome order matches participant order and at most one outbound call is
// in flight at a time.
func (p *Pipeline) Process(ctx context.Context, env Envelope, st Settings, caps Capabilities) Result {
	parsed := Parse(env)

	res := Result{
		IssueKey:  parsed.IssueKey,
		EventType: parsed.EventType,
	}

	participants := ExtractParticipants(parsed, env, st.CustomFields)
	res.Participants = len(participants)

	var warns []string
	res.Resolutions, warns = ResolveAll(ctx, participants, st, caps.Directory, p.log)
	res.Warnings = append(res.Warnings, warns...)

	recipients := make([]Resolution, 0, len(res.Resolutions))
	for _, r := range res.Resolutions {
		if r.OK() {
			recipients = append(recipients, r)
		}
	}
	if len(recipients) == 0 {
		p.log.Debug("no resolvable recipients", logx.String("issue", res.IssueKey), logx.String("event", res.EventType))
		return res
	}

	kind := Classify(parsed.EventType, env)
	att, renderable := BuildAttachment(kind, parsed, env, st)
	if !renderable {
		for _, r := range recipients {
			res.Outcomes = append(res.Outcomes, p.fail(res, r.Username, TagUnhandledEvent))
		}
		res.Warnings = append(res.Warnings, fmt.Sprintf("event type %q is not handled", res.EventType))
		return res
	}

	app, err := caps.Identity.AppAccount(ctx)
	if err != nil || app == nil {
		// Hard precondition: without a sending identity no conversation can
		// be created, so every recipient fails and no outbound call is made.
		for _, r := range recipients {
			res.Outcomes = append(res.Outcomes, p.fail(res, r.Username, TagAppIdentity))
		}
		res.Warnings = append(res.Warnings, "application identity unavailable, no messages sent")
		if err != nil {
			p.log.Error("application identity lookup failed", logx.Err(err))
		}
		return res
	}

	suppress := st.SkipInternalComments && kind.IsComment() && isInternalComment(env)

	for _, r := range recipients {
		if suppress {
			res.Outcomes = append(res.Outcomes, p.fail(res, r.Username, TagInternalComment))
			continue
		}

		res.Attempts++
		out := p.deliver(ctx, caps.Conversations, app, r, att)
		if out.Sent {
			res.Sent++
			p.publish("bridge.delivered", res, out)
		} else {
			p.publish("bridge.failed", res, out)
		}
		res.Outcomes = append(res.Outcomes, out)
	}

	p.log.Info("event processed",
		logx.String("issue", res.IssueKey),
		logx.String("event", res.EventType),
		logx.Int("participants", res.Participants),
		logx.Int("sent", res.Sent),
		logx.Int("attempts", res.Attempts))
	return res
}

// deliver ensures a direct conversation with one recipient and dispatches the
// attachment. Create-then-refind keeps creation idempotent: the lookup after
// creation is the authoritative handle.
func (p *Pipeline) deliver(ctx context.Context, convs Conversations, app *Account, r Resolution, att Attachment) Outcome {
	members := []string{app.Username, r.Account.Username}

	conv, err := convs.FindDirect(ctx, members)
	if err != nil {
		p.log.Warn("conversation lookup failed", logx.String("username", r.Username), logx.Err(err))
		return Outcome{Username: r.Username, Tag: TagConversationFailed}
	}
	if conv == nil {
		if err := convs.CreateDirect(ctx, app.Username, members); err != nil {
			p.log.Warn("conversation create failed", logx.String("username", r.Username), logx.Err(err))
			return Outcome{Username: r.Username, Tag: TagConversationFailed}
		}
		conv, err = convs.FindDirect(ctx, members)
		if err != nil || conv == nil {
			p.log.Warn("conversation missing after create", logx.String("username", r.Username), logx.Err(err))
			return Outcome{Username: r.Username, Tag: TagConversationFailed}
		}
	}

	if err := convs.SendMessage(ctx, conv, app.Username, att); err != nil {
		p.log.Warn("send failed", logx.String("username", r.Username), logx.Err(err))
		return Outcome{Username: r.Username, Tag: TagSendFailed}
	}
	return Outcome{Username: r.Username, Sent: true}
}

func (p *Pipeline) fail(res Result, username, tag string) Outcome {
	out := Outcome{Username: username, Tag: tag}
	p.publish("bridge.failed", res, out)
	return out
}

func (p *Pipeline) publish(event string, res Result, out Outcome) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(eventbus.Event{
		Type: event,
		Data: map[string]any{
			"issue":    res.IssueKey,
			"event":    res.EventType,
			"username": out.Username,
			"tag":      out.Tag,
		},
	})
}

// isInternalComment reports whether the envelope's comment is explicitly
// non-public. Absent or non-boolean visibility counts as public.
func isInternalComment(env Envelope) bool {
	comment := asMap(env["comment"])
	if comment == nil {
		return false
	}
	public, ok := comment["public"].(bool)
	return ok && !public
}
