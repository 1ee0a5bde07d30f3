// Package engine defines the contract between the model loader and the
// libraries that actually execute a network's forward pass.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
)

// Formats understood by the bundled engines.
const (
	FormatLayers = "layers-model"
	FormatONNX   = "onnx"
)

// Tensor is a dense float32 buffer in row-major order.
type Tensor struct {
	Shape []int
	Data  []float32
}

// Zeros allocates a zero-filled tensor. Non-positive dims are treated as 1,
// so a declared shape with an unknown batch dimension can be passed directly.
func Zeros(shape ...int) Tensor {
	dims := make([]int, len(shape))
	n := 1
	for i, d := range shape {
		if d <= 0 {
			d = 1
		}
		dims[i] = d
		n *= d
	}
	return Tensor{Shape: dims, Data: make([]float32, n)}
}

// Len returns the number of elements implied by the shape.
func (t Tensor) Len() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Flatten collapses everything after the batch dimension: [N, ...] -> [N, rest].
func (t Tensor) Flatten() Tensor {
	if len(t.Shape) == 0 {
		return t
	}
	batch := t.Shape[0]
	return Tensor{Shape: []int{batch, t.Len() / batch}, Data: t.Data}
}

// Model is a loaded, runnable network.
type Model interface {
	// InputShape reports the declared input shape with -1 for unknown
	// dimensions, or nil if the model does not declare one.
	InputShape() []int
	Predict(in Tensor) ([]float32, error)
	Close() error
}

// WeightSpec describes one tensor inside the combined weight buffer.
type WeightSpec struct {
	Name         string        `json:"name"`
	Shape        []int         `json:"shape"`
	DType        string        `json:"dtype"`
	Quantization *Quantization `json:"quantization,omitempty"`
}

// Quantization is the TF.js affine weight quantization block.
type Quantization struct {
	DType string  `json:"dtype"`
	Scale float32 `json:"scale"`
	Min   float32 `json:"min"`
}

// Artifacts is everything an engine needs to build a model.
type Artifacts struct {
	Format      string
	Topology    json.RawMessage
	WeightSpecs []WeightSpec
	WeightData  []byte
}

// Engine turns artifacts into a runnable model.
type Engine interface {
	Name() string
	Load(ctx context.Context, a *Artifacts) (Model, error)
}

// Multi dispatches on Artifacts.Format.
type Multi map[string]Engine

func (m Multi) Name() string { return "multi" }

func (m Multi) Load(ctx context.Context, a *Artifacts) (Model, error) {
	format := a.Format
	if format == "" {
		format = FormatLayers
	}
	e, ok := m[format]
	if !ok {
		return nil, fmt.Errorf("no engine registered for format %q", format)
	}
	return e.Load(ctx, a)
}

// SameShape reports whether an input shape satisfies a declared one.
// Declared dims <= 0 match anything.
func SameShape(declared, actual []int) bool {
	if len(declared) != len(actual) {
		return false
	}
	for i, d := range declared {
		if d > 0 && d != actual[i] {
			return false
		}
	}
	return true
}
