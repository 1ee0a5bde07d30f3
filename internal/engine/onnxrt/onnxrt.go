// Package onnxrt runs ONNX artifacts through onnxruntime.
package onnxrt

import (
	"context"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/Brownie44l1/sketch-classifier/internal/engine"
)

type Engine struct {
	libraryPath string
	mu          sync.Mutex
}

// New returns an engine that loads the onnxruntime shared library from
// libraryPath, or from the platform default when it is empty.
func New(libraryPath string) *Engine {
	return &Engine{libraryPath: libraryPath}
}

func (e *Engine) Name() string { return "onnx" }

func (e *Engine) init() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if e.libraryPath != "" {
		ort.SetSharedLibraryPath(e.libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}
	return nil
}

// Close tears down the onnxruntime environment.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

func (e *Engine) Load(ctx context.Context, a *engine.Artifacts) (engine.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.init(); err != nil {
		return nil, err
	}

	// The path-based session API needs the protobuf on disk.
	f, err := os.CreateTemp("", "model-*.onnx")
	if err != nil {
		return nil, fmt.Errorf("failed to stage model: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(a.WeightData); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stage model: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to stage model: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model inputs: %w", err)
	}
	if len(inputs) != 1 || len(outputs) < 1 {
		return nil, fmt.Errorf("expected one input and at least one output, got %d and %d", len(inputs), len(outputs))
	}

	session, err := ort.NewDynamicAdvancedSession(path,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &Model{
		session:     session,
		inputShape:  toInts(inputs[0].Dimensions),
		outputShape: toInts(outputs[0].Dimensions),
	}, nil
}

type Model struct {
	mu          sync.Mutex
	session     *ort.DynamicAdvancedSession
	inputShape  []int
	outputShape []int
}

func (m *Model) InputShape() []int {
	return append([]int(nil), m.inputShape...)
}

func (m *Model) Predict(in engine.Tensor) ([]float32, error) {
	if !engine.SameShape(m.inputShape, in.Shape) {
		return nil, fmt.Errorf("input shape %v does not match declared %v", in.Shape, m.inputShape)
	}

	inputTensor, err := ort.NewTensor(toShape(in.Shape), in.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outDims := make([]int, len(m.outputShape))
	for i, d := range m.outputShape {
		if d <= 0 {
			d = in.Shape[0]
		}
		outDims[i] = d
	}
	outputTensor, err := ort.NewEmptyTensor[float32](toShape(outDims))
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil, fmt.Errorf("session closed")
	}
	if err := m.session.Run(
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
	); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	return append([]float32(nil), outputTensor.GetData()...), nil
}

func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	return err
}

func toInts(s ort.Shape) []int {
	out := make([]int, len(s))
	for i, d := range s {
		out[i] = int(d)
	}
	return out
}

func toShape(dims []int) ort.Shape {
	s := make([]int64, len(dims))
	for i, d := range dims {
		s[i] = int64(d)
	}
	return ort.NewShape(s...)
}
