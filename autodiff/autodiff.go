// Copyright 2026 Lattice ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode automatic differentiation.
//
// It wraps any compute backend with a gradient tape; operations run
// through the wrapped backend are recorded, and walking the tape in
// reverse yields gradients for every input. This is how forces are
// obtained from an energy built on per-edge geometry.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	lengths, _ := system.EdgeLengths(backend)
//	energy := tensor.New[float64](backend.Sum(lengths), backend)
//	grads := autodiff.Backward(energy, backend)
//	forces := grads[system.Positions] // negate for forces
package autodiff

import (
	"github.com/lattice-ml/lattice/internal/autodiff"
	"github.com/lattice-ml/lattice/internal/tensor"
)

// Backend is the autodiff-enabled backend decorator.
type Backend[B tensor.Backend] = autodiff.AutodiffBackend[B]

// New creates an autodiff backend wrapping the given backend.
func New[B tensor.Backend](backend B) *Backend[B] {
	return autodiff.New(backend)
}

// GradientTape records operations for automatic differentiation.
type GradientTape = autodiff.GradientTape

// NewGradientTape creates a new gradient tape.
func NewGradientTape() *GradientTape {
	return autodiff.NewGradientTape()
}

// BackwardCapable is the interface of backends that can run a backward
// pass.
type BackwardCapable = autodiff.BackwardCapable

// Backward computes gradients of a tensor with respect to every tensor
// on the tape, seeding the output gradient with ones.
func Backward[T tensor.DType, B BackwardCapable](t *tensor.Tensor[T, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	return autodiff.Backward(t, backend)
}
