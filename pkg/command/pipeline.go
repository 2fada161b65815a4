package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bft-labs/taverna/pkg/authz"
	"github.com/bft-labs/taverna/pkg/log"
)

// Pipeline wraps command handlers with authorization and audit hooks.
type Pipeline struct {
	gate    *authz.Gate
	guilds  GuildConfigSource
	sink    AuditSink
	logger  log.Logger
	metrics *Metrics
	now     func() time.Time
}

// PipelineOption configures optional behavior of a Pipeline.
type PipelineOption func(*Pipeline)

// WithMetrics records invocation metrics.
func WithMetrics(m *Metrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

// WithClock overrides the clock used for audit timestamps.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline creates a pipeline. sink may be nil, in which case audit
// records are dropped with a debug log.
func NewPipeline(gate *authz.Gate, guilds GuildConfigSource, sink AuditSink, logger log.Logger, opts ...PipelineOption) *Pipeline {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	p := &Pipeline{
		gate:   gate,
		guilds: guilds,
		sink:   sink,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Invoke runs cmd for inv and returns the handler's reply.
//
// A denied privileged command returns a *DeniedError and the handler never
// runs. Once authorization passes, the audit post-hook runs exactly once
// after the handler, whether it returned, failed or panicked.
func (p *Pipeline) Invoke(ctx context.Context, cmd Command, inv *Invocation) (reply string, err error) {
	start := time.Now()
	defer func() {
		p.metrics.observeInvocation(cmd.Name, outcomeOf(err), time.Since(start))
	}()

	if inv.Command == "" {
		inv.Command = cmd.Name
	}

	if cmd.Privileged {
		if err := p.authorize(ctx, cmd, inv); err != nil {
			return "", err
		}
	}

	p.attachLogChannel(ctx, inv)
	defer p.publishAudit(ctx, inv)

	return p.run(ctx, cmd, inv)
}

func (p *Pipeline) authorize(ctx context.Context, cmd Command, inv *Invocation) error {
	decision, err := p.gate.Check(ctx, authz.Request{
		Actor: authz.Actor{
			ID:            inv.Actor.ID,
			Administrator: inv.Actor.Administrator,
			RoleIDs:       inv.Actor.RoleIDs,
		},
		GuildID: inv.GuildID,
		Command: cmd.Name,
	})
	if err != nil {
		p.logger.Error("authorization lookup failed",
			log.String("command", cmd.Name),
			log.Uint64("actor_id", inv.Actor.ID),
			log.Err(err))
		return err
	}
	if !decision.Allowed {
		p.logger.Debug("command denied",
			log.String("command", cmd.Name),
			log.Uint64("actor_id", inv.Actor.ID),
			log.String("reason", string(decision.Reason)))
		return &DeniedError{Command: cmd.Name, Reason: decision.Reason}
	}
	return nil
}

// attachLogChannel is the pre-hook.
func (p *Pipeline) attachLogChannel(ctx context.Context, inv *Invocation) {
	inv.LogChannelID = nil
	if inv.GuildID == nil || p.guilds == nil {
		return
	}
	id, err := p.guilds.LogChannel(ctx, *inv.GuildID)
	if err != nil {
		p.logger.Warn("resolve log channel failed",
			log.Uint64("guild_id", *inv.GuildID),
			log.Err(err))
		return
	}
	inv.LogChannelID = id
}

func (p *Pipeline) run(ctx context.Context, cmd Command, inv *Invocation) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
		if err != nil {
			p.logger.Error("command failed",
				log.String("command", cmd.Name),
				log.Uint64("actor_id", inv.Actor.ID),
				log.Err(err))
		}
	}()
	return cmd.Handler(ctx, inv)
}

// publishAudit is the post-hook.
func (p *Pipeline) publishAudit(ctx context.Context, inv *Invocation) {
	message, color, ok := inv.Audit()
	if !ok || inv.LogChannelID == nil {
		return
	}
	if p.sink == nil {
		p.logger.Debug("audit record dropped: no sink", log.String("command", inv.Command))
		return
	}

	record := NewAuditRecord(inv, message, color, p.now())
	if err := p.sink.SendAudit(ctx, *inv.LogChannelID, record); err != nil {
		p.metrics.observeAudit(false)
		p.logger.Error("send audit record failed",
			log.String("command", inv.Command),
			log.Uint64("channel_id", *inv.LogChannelID),
			log.Err(err))
		return
	}
	p.metrics.observeAudit(true)
}

func outcomeOf(err error) string {
	var denied *DeniedError
	switch {
	case err == nil:
		return outcomeOK
	case errors.As(err, &denied):
		return outcomeDenied
	default:
		return outcomeError
	}
}
