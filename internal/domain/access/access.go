// Package access carries caller identity and the read-only collaborators the
// engine consults for authorization and the global pause switch.
package access

import (
	"context"
	"errors"
)

var (
	ErrUnauthorized = errors.New("caller not authorized")
	ErrPaused       = errors.New("engine is paused")
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleIssuer     Role = "issuer"
	RoleSettlement Role = "settlement"
)

// RoleLookup answers role membership questions. Role assignment itself is
// managed outside the engine.
type RoleLookup interface {
	HasRole(ctx context.Context, role Role, account string) bool
}

// Switch exposes the global active/paused flag.
type Switch interface {
	Paused(ctx context.Context) bool
}

// Caller is the authorization context passed into every mutating operation.
type Caller struct {
	Account string
	Roles   RoleLookup
}

func NewCaller(account string, roles RoleLookup) Caller {
	return Caller{Account: account, Roles: roles}
}

func (c Caller) Has(ctx context.Context, role Role) bool {
	if c.Roles == nil || c.Account == "" {
		return false
	}
	return c.Roles.HasRole(ctx, role, c.Account)
}

// Require returns ErrUnauthorized unless the caller holds at least one of roles.
func (c Caller) Require(ctx context.Context, roles ...Role) error {
	for _, r := range roles {
		if c.Has(ctx, r) {
			return nil
		}
	}
	return ErrUnauthorized
}

// EnsureActive returns ErrPaused when sw reports the engine paused. A nil
// switch means the engine is always active.
func EnsureActive(ctx context.Context, sw Switch) error {
	if sw != nil && sw.Paused(ctx) {
		return ErrPaused
	}
	return nil
}
