// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// Parse reads a shape from its textual representation.
//
// Dimensions can be separated by commas and/or spaces, and the whole list can optionally be enclosed
// in brackets or parentheses. Integers (including negative ones) are literal dimensions, identifiers
// are named symbolic axes. Examples: "4,2,3", "[4 -1]", "(batch, seq, 512)". An empty list is a scalar.
func Parse(text string) (Shape, error) {
	body := strings.TrimSpace(text)
	if len(body) >= 2 {
		first, last := body[0], body[len(body)-1]
		if (first == '[' && last == ']') || (first == '(' && last == ')') {
			body = body[1 : len(body)-1]
		}
	}
	fields := strings.FieldsFunc(body, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	s := Shape{Dimensions: make([]int, len(fields))}
	for axis, field := range fields {
		if value, err := strconv.Atoi(field); err == nil {
			s.Dimensions[axis] = value
			continue
		}
		if !isIdentifier(field) {
			return Shape{}, errors.Errorf("shapes.Parse(%q): axis %d has invalid dimension %q, "+
				"it must be an integer or an axis name", text, axis, field)
		}
		s.setAxisName(axis, field)
	}
	return s, nil
}

func isIdentifier(name string) bool {
	for ii, r := range name {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if ii > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return name != ""
}
