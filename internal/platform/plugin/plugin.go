// Package plugin maps analyzer identification tokens to vendor descriptors.
// Descriptors are registered once at process start into an immutable lookup
// structure; lookups are lock-free and safe for concurrent use.
package plugin

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/labgate/labgate/internal/platform/protocol"
)

// MatchKind selects how a descriptor's pattern is compared against an
// identification token.
type MatchKind int

const (
	MatchExact MatchKind = iota
	MatchPrefix
	MatchRegex
)

// ErrNotFound is returned when no registered descriptor matches a token.
var ErrNotFound = errors.New("plugin: no descriptor matches identification token")

// Descriptor describes one instrument vendor integration: how to recognize
// its messages and how to normalize its vendor-specific quirks.
type Descriptor struct {
	// Name is the stable plugin identifier, e.g. "mindray-ba88a".
	Name string
	// Match and Pattern define which identification tokens this descriptor
	// claims.
	Match   MatchKind
	Pattern string
	// Protocol is the wire grammar this vendor speaks.
	Protocol protocol.Hint
	// FieldCodes is the vendor field-code vocabulary: raw vendor code to the
	// code the mapping configuration is keyed by. Codes absent from the table
	// pass through unchanged.
	FieldCodes map[string]string
	// DefaultUnits fills in a unit when the message omits one, keyed by the
	// normalized field code.
	DefaultUnits map[string]string
	// NormalizeValue adjusts a raw value string (e.g. decimal comma to dot).
	// Nil means no normalization.
	NormalizeValue func(code, value string) string
	// ControlLevel derives the control material level (LOW, NORMAL, HIGH)
	// from a control lot id. Empty string means unknown.
	ControlLevel func(lot string) string

	re *regexp.Regexp
}

// matches reports whether this descriptor claims the given token.
func (d *Descriptor) matches(token string) bool {
	switch d.Match {
	case MatchExact:
		return token == d.Pattern
	case MatchPrefix:
		return strings.HasPrefix(token, d.Pattern)
	case MatchRegex:
		return d.re.MatchString(token)
	default:
		return false
	}
}

// NormalizeCode translates a vendor field code through the vocabulary table.
func (d *Descriptor) NormalizeCode(code string) string {
	if mapped, ok := d.FieldCodes[code]; ok {
		return mapped
	}
	return code
}

// Normalize applies the descriptor's hooks to one parsed field in place.
func (d *Descriptor) Normalize(f *protocol.ResultField) {
	f.Code = d.NormalizeCode(f.Code)
	if d.NormalizeValue != nil {
		f.Value = d.NormalizeValue(f.Code, f.Value)
	}
	if f.Unit == "" {
		if unit, ok := d.DefaultUnits[f.Code]; ok {
			f.Unit = unit
		}
	}
}

// Registry is an immutable set of descriptors keyed by identification
// pattern. Build it once with NewRegistry; Identify never mutates state.
type Registry struct {
	exact   map[string]*Descriptor
	ordered []*Descriptor // prefix and regex descriptors, registration order
	all     []*Descriptor
}

// NewRegistry validates and indexes the given descriptors. Two descriptors
// that would both claim the same token are rejected here, not at lookup time.
func NewRegistry(descs ...Descriptor) (*Registry, error) {
	r := &Registry{exact: make(map[string]*Descriptor, len(descs))}

	for i := range descs {
		d := &descs[i]
		if d.Name == "" {
			return nil, fmt.Errorf("plugin: descriptor %d has no name", i)
		}
		if d.Pattern == "" {
			return nil, fmt.Errorf("plugin %s: empty pattern", d.Name)
		}
		if d.Match == MatchRegex {
			re, err := regexp.Compile(d.Pattern)
			if err != nil {
				return nil, fmt.Errorf("plugin %s: invalid pattern: %w", d.Name, err)
			}
			d.re = re
		}

		for _, other := range r.all {
			if claimsOverlap(d, other) {
				return nil, fmt.Errorf("plugin %s: pattern %q is ambiguous with plugin %s (%q)",
					d.Name, d.Pattern, other.Name, other.Pattern)
			}
		}

		if d.Match == MatchExact {
			r.exact[d.Pattern] = d
		} else {
			r.ordered = append(r.ordered, d)
		}
		r.all = append(r.all, d)
	}

	return r, nil
}

// claimsOverlap reports whether two descriptors could claim the same token.
// Each descriptor's own pattern doubles as a representative token: if either
// descriptor matches the other's pattern, the registration is ambiguous.
func claimsOverlap(a, b *Descriptor) bool {
	aSample := a.Pattern
	bSample := b.Pattern
	if a.Match == MatchRegex {
		aSample = ""
	}
	if b.Match == MatchRegex {
		bSample = ""
	}
	if bSample != "" && a.matches(bSample) {
		return true
	}
	if aSample != "" && b.matches(aSample) {
		return true
	}
	return aSample != "" && aSample == bSample
}

// Identify returns the descriptor claiming the given identification token.
// Registration already rejected overlapping claims, so at most one descriptor
// can match; the exact index is just a fast path.
func (r *Registry) Identify(token string) (*Descriptor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrNotFound
	}
	if d, ok := r.exact[token]; ok {
		return d, nil
	}
	for _, d := range r.ordered {
		if d.matches(token) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, token)
}

// Descriptors returns all registered descriptors in registration order.
func (r *Registry) Descriptors() []*Descriptor {
	return r.all
}
