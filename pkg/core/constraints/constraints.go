// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package constraints translates a reshape request (an input shape and a target shape) into a small
// system of integer constraints over symbolic dimension variables.
//
// There is no solving logic here: a Set is handed to a solver.Backend, which decides whether it is
// satisfiable. The system built for input shape I and target shape T is:
//
//   - One variable per axis of I, equal to its literal size.
//   - One variable per axis of T. Literal axes are equal to their literal, the wildcard axis is left free.
//   - One variable per named symbolic axis, shared by every axis with that name, free unless bound.
//   - Product(variables of I) == Product(variables of T).
//   - Every variable of T, and every symbolic variable, is > 0.
//
// So a wildcard is "some positive integer that completes the product", and an illegal literal
// (0, -2, ...) in T simply makes the system unsatisfiable.
package constraints

import (
	"fmt"
	"strings"
)

// Side indicates which part of the reshape request a variable comes from.
type Side int

const (
	// SideInput variables are the axes of the input shape.
	SideInput Side = iota

	// SideTarget variables are the axes of the target shape.
	SideTarget

	// SideSymbolic variables are named axes, possibly shared by both shapes.
	SideSymbolic
)

// String implements fmt.Stringer.
func (s Side) String() string {
	switch s {
	case SideInput:
		return "input"
	case SideTarget:
		return "target"
	case SideSymbolic:
		return "symbolic"
	}
	return fmt.Sprintf("Side(%d)", int(s))
}

// VarID identifies a Variable within one Set. IDs are dense, starting at 0.
type VarID int

// Variable is a symbolic integer bound to one dimension (or one axis name).
// It only exists within the Set that created it.
type Variable struct {
	ID   VarID
	Name string
	Side Side

	// Axis in the input or target shape. It is -1 for symbolic variables.
	Axis int
}

// String implements fmt.Stringer.
func (v Variable) String() string { return v.Name }

// Kind of Constraint.
type Kind int

const (
	// KindEqualLiteral asserts Vars[0] == Literal.
	KindEqualLiteral Kind = iota

	// KindGreaterThan asserts Vars[0] > Literal.
	KindGreaterThan

	// KindProductEqual asserts Product(Vars) == Product(RHS).
	KindProductEqual
)

// Constraint is one integer assertion over Variables.
type Constraint struct {
	Kind    Kind
	Vars    []VarID
	RHS     []VarID
	Literal int
}

// Set is a collection of variables and the constraints over them, built for one reshape request.
type Set struct {
	Variables   []Variable
	Constraints []Constraint
}

// NewVariable creates a new variable in the set and returns its id.
func (s *Set) NewVariable(name string, side Side, axis int) VarID {
	id := VarID(len(s.Variables))
	s.Variables = append(s.Variables, Variable{ID: id, Name: name, Side: side, Axis: axis})
	return id
}

// Variable returns the variable with the given id.
func (s *Set) Variable(id VarID) Variable { return s.Variables[id] }

// NumVariables in the set.
func (s *Set) NumVariables() int { return len(s.Variables) }

// EqualLiteral asserts v == literal.
func (s *Set) EqualLiteral(v VarID, literal int) {
	s.Constraints = append(s.Constraints, Constraint{Kind: KindEqualLiteral, Vars: []VarID{v}, Literal: literal})
}

// GreaterThan asserts v > literal.
func (s *Set) GreaterThan(v VarID, literal int) {
	s.Constraints = append(s.Constraints, Constraint{Kind: KindGreaterThan, Vars: []VarID{v}, Literal: literal})
}

// ProductEqual asserts Product(lhs) == Product(rhs). An empty product is 1.
func (s *Set) ProductEqual(lhs, rhs []VarID) {
	s.Constraints = append(s.Constraints, Constraint{
		Kind: KindProductEqual,
		Vars: append([]VarID(nil), lhs...),
		RHS:  append([]VarID(nil), rhs...),
	})
}

func (s *Set) formatProduct(ids []VarID) string {
	if len(ids) == 0 {
		return "1"
	}
	parts := make([]string, len(ids))
	for ii, id := range ids {
		parts[ii] = s.Variables[id].Name
	}
	return strings.Join(parts, "*")
}

// Format returns a human-readable form of the constraint, using the variable names in the Set.
func (s *Set) Format(c Constraint) string {
	switch c.Kind {
	case KindEqualLiteral:
		return fmt.Sprintf("%s == %d", s.Variables[c.Vars[0]].Name, c.Literal)
	case KindGreaterThan:
		return fmt.Sprintf("%s > %d", s.Variables[c.Vars[0]].Name, c.Literal)
	case KindProductEqual:
		return fmt.Sprintf("%s == %s", s.formatProduct(c.Vars), s.formatProduct(c.RHS))
	}
	return fmt.Sprintf("<unknown constraint kind %d>", c.Kind)
}

// String pretty-prints all constraints, one per line.
func (s *Set) String() string {
	var sb strings.Builder
	for ii, c := range s.Constraints {
		if ii > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(s.Format(c))
	}
	return sb.String()
}
