// Package access provides the role lookups and pause switches the engine
// consults. Role assignment is managed elsewhere; these are read-only views.
package access

import (
	"context"
	"sync/atomic"

	domain "receivables-engine/internal/domain/access"
)

// StaticRoles is a fixed role table, typically loaded from configuration.
type StaticRoles struct {
	members map[domain.Role]map[string]struct{}
}

var _ domain.RoleLookup = (*StaticRoles)(nil)

func NewStaticRoles(table map[domain.Role][]string) *StaticRoles {
	s := &StaticRoles{members: make(map[domain.Role]map[string]struct{}, len(table))}
	for role, accounts := range table {
		set := make(map[string]struct{}, len(accounts))
		for _, a := range accounts {
			if a != "" {
				set[a] = struct{}{}
			}
		}
		s.members[role] = set
	}
	return s
}

func (s *StaticRoles) HasRole(_ context.Context, role domain.Role, account string) bool {
	_, ok := s.members[role][account]
	return ok
}

// Grant adds account to role. Not safe for use concurrently with HasRole;
// call it while wiring.
func (s *StaticRoles) Grant(role domain.Role, account string) {
	if s.members[role] == nil {
		s.members[role] = map[string]struct{}{}
	}
	s.members[role][account] = struct{}{}
}

// StaticSwitch is an in-process pause flag.
type StaticSwitch struct{ paused atomic.Bool }

var _ domain.Switch = (*StaticSwitch)(nil)

func (s *StaticSwitch) Paused(context.Context) bool { return s.paused.Load() }
func (s *StaticSwitch) Set(paused bool)             { s.paused.Store(paused) }
