// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// AxisBindings maps axis names to concrete dimension values.
// Used to give known values to named symbolic axes (e.g. "batch=32") when checking a reshape.
type AxisBindings map[string]int

// ParseAxisBindings reads bindings in the format "name1=val1,name2=val2".
// An empty string returns nil bindings.
func ParseAxisBindings(text string) (AxisBindings, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	bindings := make(AxisBindings)
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, valueText, found := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if !found || !isIdentifier(name) {
			return nil, errors.Errorf("invalid axis binding %q in %q, expected format \"name=value\"", part, text)
		}
		value, err := strconv.Atoi(strings.TrimSpace(valueText))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid value for axis %q in %q", name, text)
		}
		if err := bindings.Merge(AxisBindings{name: value}); err != nil {
			return nil, err
		}
	}
	return bindings, nil
}

// Key returns the bindings as "name=value" pairs sorted by name and joined by commas, the same format
// ParseAxisBindings reads. Two bindings with the same contents have the same key, and nil or empty
// bindings have the key "".
func (ab AxisBindings) Key() string {
	var sb strings.Builder
	for i, name := range slices.Sorted(maps.Keys(ab)) {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(strconv.Itoa(ab[name]))
	}
	return sb.String()
}

// Clone returns a copy of the bindings.
func (ab AxisBindings) Clone() AxisBindings {
	return maps.Clone(ab)
}

// Merge combines bindings from another AxisBindings into this one.
// Returns an error if there are conflicting values for the same axis name.
func (ab AxisBindings) Merge(other AxisBindings) error {
	for name, val := range other {
		if existing, ok := ab[name]; ok && existing != val {
			return errors.Errorf("conflicting values for axis %q: %d vs %d", name, existing, val)
		}
		ab[name] = val
	}
	return nil
}

// Resolve replaces named axes with the concrete values from bindings.
// Resolved axes lose their name and become concrete. Named axes without a binding are kept as they are.
func (s Shape) Resolve(bindings AxisBindings) Shape {
	result := s.Clone()
	if !s.HasNamedAxes() || len(bindings) == 0 {
		return result
	}
	stillNamed := false
	for axis, name := range s.AxisNames {
		if name == "" {
			continue
		}
		if val, ok := bindings[name]; ok {
			result.Dimensions[axis] = val
			result.AxisNames[axis] = ""
		} else {
			stillNamed = true
		}
	}
	if !stillNamed {
		result.AxisNames = nil
	}
	return result
}

// AxisNamesSet returns the distinct axis names used in the shape, in order of first appearance.
func (s Shape) AxisNamesSet() (names []string) {
	seen := make(map[string]bool)
	for _, name := range s.AxisNames {
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return
}
