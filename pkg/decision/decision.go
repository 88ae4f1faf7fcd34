// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package decision implements the three-valued belief triple plugins use to
// report a verdict, and the Dempster-Shafer rule used to fuse several of
// them into one.
package decision

import (
	"fmt"
	"math"
)

// tolerance bounds how far a+r+u may drift from 1 before a triple is
// considered malformed.
const tolerance = 1e-6

// Ignorance is the identity element of Combine: total uncertainty, no
// accept or restrict mass.
var Ignorance = Decision{unknown: 1}

// Decision is a belief assignment over {Accept, Restrict} with explicit
// ignorance. Zero value is not meaningful; construct with New.
type Decision struct {
	accept   float64
	restrict float64
	unknown  float64
}

// MalformedError is returned by New when a component is out of [0,1] or the
// triple doesn't sum to 1 within tolerance.
type MalformedError struct {
	Accept, Restrict, Unknown float64
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed decision: accept=%v restrict=%v unknown=%v", e.Accept, e.Restrict, e.Unknown)
}

// New validates and constructs a Decision. Every plugin-supplied triple
// passes through here before it is trusted anywhere else in the gateway.
func New(accept, restrict, unknown float64) (Decision, error) {
	if !inUnit(accept) || !inUnit(restrict) || !inUnit(unknown) {
		return Decision{}, &MalformedError{accept, restrict, unknown}
	}
	if math.Abs(accept+restrict+unknown-1) > tolerance {
		return Decision{}, &MalformedError{accept, restrict, unknown}
	}
	return Decision{accept: accept, restrict: restrict, unknown: unknown}, nil
}

func inUnit(v float64) bool { return v >= 0 && v <= 1 }

// Accept, Restrict and Unknown expose the triple's components.
func (d Decision) Accept() float64   { return d.accept }
func (d Decision) Restrict() float64 { return d.restrict }
func (d Decision) Unknown() float64  { return d.unknown }

// Accepted reports whether the restrict mass is below the rejection
// threshold theta. The orchestrator's default theta is 0.5.
func (d Decision) Accepted(theta float64) bool { return d.restrict < theta }

// Combine fuses two decisions via Dempster-Shafer conjunctive fusion on the
// frame {Accept, Restrict}. Full conflict (k>=1) falls back to Ignorance
// rather than dividing by zero.
func Combine(a, b Decision) Decision {
	k := a.accept*b.restrict + a.restrict*b.accept
	if k >= 1 {
		return Ignorance
	}
	denom := 1 - k
	return Decision{
		accept:   (a.accept*b.accept + a.accept*b.unknown + a.unknown*b.accept) / denom,
		restrict: (a.restrict*b.restrict + a.restrict*b.unknown + a.unknown*b.restrict) / denom,
		unknown:  (a.unknown * b.unknown) / denom,
	}
}

// CombineAll folds Combine over a sequence, starting from Ignorance. An
// empty sequence yields Ignorance. The fold is associative and commutative,
// so callers never need to care about ordering.
func CombineAll(ds ...Decision) Decision {
	result := Ignorance
	for _, d := range ds {
		result = Combine(result, d)
	}
	return result
}
