// Package enginetest provides in-memory engines and models for tests.
package enginetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/Brownie44l1/sketch-classifier/internal/engine"
)

// Model records the shape of every input it sees. It rejects inputs that do
// not match Shape (when set) or fail Accept (when set), and returns Output,
// or a uniform 10-way distribution when Output is nil.
type Model struct {
	Shape  []int
	Accept func(shape []int) bool
	Output []float32

	mu     sync.Mutex
	inputs [][]int
	closed bool
}

func (m *Model) InputShape() []int { return m.Shape }

func (m *Model) Predict(in engine.Tensor) ([]float32, error) {
	m.mu.Lock()
	m.inputs = append(m.inputs, append([]int(nil), in.Shape...))
	m.mu.Unlock()

	if m.Shape != nil && !engine.SameShape(m.Shape, in.Shape) {
		return nil, fmt.Errorf("input shape %v does not match %v", in.Shape, m.Shape)
	}
	if m.Accept != nil && !m.Accept(in.Shape) {
		return nil, fmt.Errorf("input shape %v rejected", in.Shape)
	}
	if len(in.Data) != in.Len() {
		return nil, fmt.Errorf("input has %d values for shape %v", len(in.Data), in.Shape)
	}

	if m.Output != nil {
		return append([]float32(nil), m.Output...), nil
	}
	out := make([]float32, 10)
	for i := range out {
		out[i] = 0.1
	}
	return out, nil
}

func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// Inputs returns the shapes passed to Predict so far.
func (m *Model) Inputs() [][]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([][]int(nil), m.inputs...)
}

func (m *Model) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.closed
}

// Engine hands out models built by Build and remembers the artifacts.
type Engine struct {
	Build func(a *engine.Artifacts) (engine.Model, error)

	mu    sync.Mutex
	loads int
	last  *engine.Artifacts
}

func (e *Engine) Name() string { return "fake" }

func (e *Engine) Load(ctx context.Context, a *engine.Artifacts) (engine.Model, error) {
	e.mu.Lock()
	e.loads++
	e.last = a
	e.mu.Unlock()

	if e.Build == nil {
		return &Model{Shape: []int{-1, 28, 28, 1}}, nil
	}
	return e.Build(a)
}

func (e *Engine) Loads() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.loads
}

func (e *Engine) Last() *engine.Artifacts {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.last
}
