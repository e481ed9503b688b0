// Package eval scores extracted article facts against annotated ground truth.
package eval

import (
	"strings"

	"github.com/sells-group/newsfacts/internal/model"
)

// Set is an unordered collection of comparable values.
type Set[T comparable] map[T]struct{}

// NewSet builds a set from the given items.
func NewSet[T comparable](items ...T) Set[T] {
	s := make(Set[T], len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

// Len returns the number of distinct members.
func (s Set[T]) Len() int { return len(s) }

// Has reports membership.
func (s Set[T]) Has(v T) bool {
	_, ok := s[v]
	return ok
}

// Intersect returns the members present in both s and other.
func (s Set[T]) Intersect(other Set[T]) Set[T] {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	out := make(Set[T], len(small))
	for v := range small {
		if large.Has(v) {
			out[v] = struct{}{}
		}
	}
	return out
}

// RolePair is a normalized (name, role) attribution.
type RolePair struct {
	Name string
	Role string
}

// EntitySet holds normalized person names.
type EntitySet = Set[string]

// RolePairSet holds normalized (name, role) pairs.
type RolePairSet = Set[RolePair]

// Normalize lower-cases and trims surrounding whitespace. It is the only
// normalization applied anywhere in scoring.
func Normalize(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

// EntitiesOf projects people onto the set of their normalized names.
// Repeated mentions of the same person collapse to one member.
func EntitiesOf(people []model.Person) EntitySet {
	out := make(EntitySet, len(people))
	for _, p := range people {
		out[Normalize(p.Name)] = struct{}{}
	}
	return out
}

// RolePairsOf projects people onto normalized (name, role) pairs. A person
// with no roles contributes nothing.
func RolePairsOf(people []model.Person) RolePairSet {
	out := make(RolePairSet)
	for _, p := range people {
		name := Normalize(p.Name)
		for _, r := range p.Roles {
			out[RolePair{Name: name, Role: Normalize(r)}] = struct{}{}
		}
	}
	return out
}
