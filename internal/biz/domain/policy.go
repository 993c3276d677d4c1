package domain

// RoleSet is the set of role names held by a member.
// Membership checks are order independent.
type RoleSet map[string]struct{}

// NewRoleSet builds a RoleSet from role names
func NewRoleSet(names ...string) RoleSet {
	s := make(RoleSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has checks set membership
func (s RoleSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Decision is the outcome of an access policy evaluation
type Decision int

const (
	// NotApplicable means the channel is not governed by the policy
	NotApplicable Decision = iota
	// Allowed means the author may receive a generated reply
	Allowed
	// DeniedPartial means the author is verified but lacks special access
	DeniedPartial
	// DeniedFull means the author holds neither required role
	DeniedFull
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case DeniedPartial:
		return "denied_partial"
	case DeniedFull:
		return "denied_full"
	default:
		return "not_applicable"
	}
}

// AccessPolicy decides what happens to a message in the designated
// interaction channel based on the author's roles (value object)
type AccessPolicy struct {
	DesignatedChannel string
	SpecialRole       string
	VerifiedRole      string
}

// Decide is a pure function mapping (channel, roles) to a Decision.
// It never mutates state and never fails.
func (p AccessPolicy) Decide(channelName string, roles RoleSet) Decision {
	if channelName != p.DesignatedChannel {
		return NotApplicable
	}
	switch {
	case roles.Has(p.SpecialRole) && roles.Has(p.VerifiedRole):
		return Allowed
	case roles.Has(p.VerifiedRole):
		return DeniedPartial
	default:
		return DeniedFull
	}
}
