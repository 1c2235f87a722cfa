// Package rbac holds the static role-to-capability table used to authorize
// dashboard requests.  The table is composed once at init from a base
// statement set and never changes afterwards; the enforcement point is
// middleware.RequireCapability.
package rbac

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Role names a class of caller.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleUser   Role = "user"
	RoleRental Role = "rental"
)

// Resources.
const (
	ResourceDashboard = "dashboard"
)

// Actions.
const (
	ActionCreate = "create"
	ActionRead   = "read"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// ErrUnknownRole is returned for roles outside the table.  Callers must not
// substitute a default role on this error.
var ErrUnknownRole = errors.New("unknown role")

// Capability is a single (resource, action) grant.
type Capability struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

func (c Capability) String() string { return c.Resource + ":" + c.Action }

// CapabilitySet is an immutable set of capabilities.  The zero value is the
// empty set.
type CapabilitySet struct {
	m map[Capability]struct{}
}

// Has reports whether the set contains (resource, action).
func (s CapabilitySet) Has(resource, action string) bool {
	_, ok := s.m[Capability{Resource: resource, Action: action}]
	return ok
}

// Len returns the number of capabilities in s.
func (s CapabilitySet) Len() int { return len(s.m) }

// List returns the capabilities sorted by resource then action.  The slice
// is a fresh copy.
func (s CapabilitySet) List() []Capability {
	out := make([]Capability, 0, len(s.m))
	for c := range s.m {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Resource != out[j].Resource {
			return out[i].Resource < out[j].Resource
		}
		return out[i].Action < out[j].Action
	})
	return out
}

// Actions returns the sorted actions granted on resource.
func (s CapabilitySet) Actions(resource string) []string {
	var out []string
	for _, c := range s.List() {
		if c.Resource == resource {
			out = append(out, c.Action)
		}
	}
	return out
}

// ContainsAll reports whether every capability of other is also in s.
func (s CapabilitySet) ContainsAll(other CapabilitySet) bool {
	for c := range other.m {
		if _, ok := s.m[c]; !ok {
			return false
		}
	}
	return true
}

// statements maps resource to actions, the shape roles are declared in.
type statements map[string][]string

func newSet(parts ...statements) CapabilitySet {
	m := make(map[Capability]struct{})
	for _, st := range parts {
		for res, actions := range st {
			for _, a := range actions {
				m[Capability{Resource: res, Action: a}] = struct{}{}
			}
		}
	}
	return CapabilitySet{m: m}
}

// defaultStatements is the full statement set every role is drawn from.
var defaultStatements = statements{
	ResourceDashboard: {ActionCreate, ActionRead, ActionUpdate, ActionDelete},
}

var table = map[Role]CapabilitySet{
	RoleAdmin:  newSet(defaultStatements),
	RoleUser:   newSet(statements{ResourceDashboard: {ActionRead}}),
	RoleRental: newSet(statements{ResourceDashboard: {ActionRead}}, statements{ResourceDashboard: {ActionUpdate}}),
}

// Roles returns every known role in a stable order.
func Roles() []Role { return []Role{RoleAdmin, RoleUser, RoleRental} }

// ParseRole normalises s and checks it against the table.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := table[r]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

// Valid reports whether r is in the table.
func (r Role) Valid() bool {
	_, ok := table[r]
	return ok
}

// CapabilitiesOf returns the capability set granted to role.
func CapabilitiesOf(role Role) (CapabilitySet, error) {
	s, ok := table[role]
	if !ok {
		return CapabilitySet{}, fmt.Errorf("%w: %q", ErrUnknownRole, string(role))
	}
	return s, nil
}

// HasCapability reports whether role may perform action on resource.  Any
// unknown role, resource or action is denied.
func HasCapability(role Role, resource, action string) bool {
	s, err := CapabilitiesOf(role)
	if err != nil {
		return false
	}
	return s.Has(resource, action)
}
