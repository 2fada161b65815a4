// Package authz decides whether an actor may run a privileged command.
//
// The gate is pure: given an actor, an optional guild and a command it
// performs a single read against the permission rules and returns a
// Decision. It never replies to users or logs denials as errors; callers
// turn a denial into a user-visible rejection.
package authz

import (
	"context"
	"errors"
	"fmt"
)

// Denial errors. Decision.Err maps a denied decision onto one of these.
var (
	ErrPrivateContext = errors.New("authz: command unavailable in private context")
	ErrNoPermission   = errors.New("authz: no permission")
)

// Reason explains a denial.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonPrivateContext Reason = "private-context"
	ReasonNoPermission   Reason = "no-permission"
)

// Actor is the invoking member as seen by the gate.
type Actor struct {
	ID            uint64
	Administrator bool
	RoleIDs       []uint64
}

// HasAnyRole reports whether the actor holds at least one of roles.
func (a Actor) HasAnyRole(roles []uint64) bool {
	if len(roles) == 0 || len(a.RoleIDs) == 0 {
		return false
	}
	held := make(map[uint64]struct{}, len(a.RoleIDs))
	for _, r := range a.RoleIDs {
		held[r] = struct{}{}
	}
	for _, r := range roles {
		if _, ok := held[r]; ok {
			return true
		}
	}
	return false
}

// Request is the input of a single authorization check.
type Request struct {
	Actor   Actor
	GuildID *uint64
	Command string
}

// Decision is the outcome of a check.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Allow returns an allowing decision.
func Allow() Decision { return Decision{Allowed: true} }

// Deny returns a denying decision with reason.
func Deny(reason Reason) Decision { return Decision{Reason: reason} }

// Err returns nil for allowed decisions and the matching sentinel otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case ReasonPrivateContext:
		return ErrPrivateContext
	default:
		return ErrNoPermission
	}
}

// RoleSource returns the role ids authorized for a command in a guild.
type RoleSource interface {
	CommandRoles(ctx context.Context, guildID uint64, command string) ([]uint64, error)
}

// RoleSourceFunc adapts a function to RoleSource.
type RoleSourceFunc func(ctx context.Context, guildID uint64, command string) ([]uint64, error)

// CommandRoles calls f.
func (f RoleSourceFunc) CommandRoles(ctx context.Context, guildID uint64, command string) ([]uint64, error) {
	return f(ctx, guildID, command)
}

// Gate evaluates authorization requests.
type Gate struct {
	roles RoleSource
}

// NewGate creates a gate reading permission rules from roles.
func NewGate(roles RoleSource) *Gate {
	return &Gate{roles: roles}
}

// Check evaluates req.
//
// Order: no guild denies with ReasonPrivateContext; an administrator is
// allowed without a lookup; otherwise the actor must hold one of the roles
// configured for (guild, command). No configured roles means no access.
// A lookup failure is returned as an error together with a denial.
func (g *Gate) Check(ctx context.Context, req Request) (Decision, error) {
	if req.GuildID == nil {
		return Deny(ReasonPrivateContext), nil
	}
	if req.Actor.Administrator {
		return Allow(), nil
	}

	roles, err := g.roles.CommandRoles(ctx, *req.GuildID, req.Command)
	if err != nil {
		return Deny(ReasonNoPermission), fmt.Errorf("authz: lookup roles for %q: %w", req.Command, err)
	}
	if req.Actor.HasAnyRole(roles) {
		return Allow(), nil
	}
	return Deny(ReasonNoPermission), nil
}
