package acl

import (
	"fmt"
	"strings"
)

// Permission is a named action scoped to a resource type. Rank is the
// position in the declared order (0 is the most powerful in an inheritance
// chain). Implied lists the permissions transitively satisfied by holding
// this one; it is empty in flat mode.
type Permission struct {
	Name    string   `json:"name"`
	Tag     string   `json:"tag,omitempty"`
	Rank    int      `json:"rank"`
	Implied []string `json:"implied,omitempty"`

	implied map[string]struct{}
}

// Implies reports whether holding this permission satisfies a check for
// the named permission. A permission always implies itself.
func (p *Permission) Implies(name string) bool {
	if p.Name == name {
		return true
	}
	if p.implied != nil {
		_, ok := p.implied[name]
		return ok
	}
	for _, n := range p.Implied {
		if n == name {
			return true
		}
	}
	return false
}

// Strategy is the declared permission vocabulary and inheritance order for
// one resource type. Inherit is true when the expression used the ">"
// separator, making each permission imply everything to its right.
type Strategy struct {
	ResourceType string       `json:"resource_type"`
	Expression   string       `json:"expression"`
	Inherit      bool         `json:"inherit"`
	Permissions  []Permission `json:"permissions"`

	byName map[string]int
}

// Permission returns the declared permission with the given name.
func (s *Strategy) Permission(name string) (*Permission, bool) {
	i, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return &s.Permissions[i], true
}

// Satisfies reports whether holding the granted permission satisfies a
// check for the requested one, per the implication closure.
func (s *Strategy) Satisfies(granted, requested string) bool {
	p, ok := s.Permission(granted)
	if !ok {
		return false
	}
	return p.Implies(requested)
}

const (
	flatSeparator    = ","
	inheritSeparator = ">"
	tagSeparator     = "="
)

// ParseStrategy parses a strategy expression for a resource type.
//
// Grammar:
//
//	flat:    name1=tag1,name2=tag2,...   permissions are independent
//	inherit: name1=tag1>name2=tag2>...   each permission implies all to its right
//
// The two separators are mutually exclusive within one expression. The
// implication closure is computed here, once, so decision checks are set
// membership rather than chain walks. ParseStrategy is pure; persisting
// the result is the caller's concern.
func ParseStrategy(resourceType, expression string) (*Strategy, error) {
	if resourceType == "" {
		return nil, fmt.Errorf("%w: resource type is required", ErrBadStrategyFormat)
	}
	expr := strings.TrimSpace(expression)
	if expr == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrBadStrategyFormat)
	}

	hasFlat := strings.Contains(expr, flatSeparator)
	hasInherit := strings.Contains(expr, inheritSeparator)
	if hasFlat && hasInherit {
		return nil, fmt.Errorf("%w: %q mixes %q and %q separators", ErrBadStrategyFormat, expr, flatSeparator, inheritSeparator)
	}

	sep := flatSeparator
	if hasInherit {
		sep = inheritSeparator
	}

	parts := strings.Split(expr, sep)
	s := &Strategy{
		ResourceType: resourceType,
		Expression:   expr,
		Inherit:      hasInherit,
		Permissions:  make([]Permission, 0, len(parts)),
		byName:       make(map[string]int, len(parts)),
	}

	names := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		name, tag, found := strings.Cut(part, tagSeparator)
		name = strings.TrimSpace(name)
		tag = strings.TrimSpace(tag)
		if !found || name == "" {
			return nil, fmt.Errorf("%w: malformed pair %q (want name=tag)", ErrBadStrategyFormat, part)
		}
		if _, dup := s.byName[name]; dup {
			return nil, fmt.Errorf("%w: duplicate permission %q", ErrBadStrategyFormat, name)
		}
		s.byName[name] = len(s.Permissions)
		s.Permissions = append(s.Permissions, Permission{Name: name, Tag: tag, Rank: len(names)})
		names = append(names, name)
	}

	if s.Inherit {
		for i := range s.Permissions {
			p := &s.Permissions[i]
			p.Implied = append([]string(nil), names[i+1:]...)
			p.implied = make(map[string]struct{}, len(p.Implied))
			for _, n := range p.Implied {
				p.implied[n] = struct{}{}
			}
		}
	}

	return s, nil
}
