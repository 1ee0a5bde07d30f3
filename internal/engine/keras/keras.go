// Package keras runs Keras/TF.js layer models on the born CPU backend.
//
// Tensors enter and leave in Keras layout (NHWC). Convolution and pooling
// run in born's NCHW layout; Flatten and Reshape transpose back first so
// Dense weights see features in the order they were trained with.
package keras

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"

	"github.com/Brownie44l1/sketch-classifier/internal/engine"
)

type backend = *cpu.Backend
type tensor32 = *tensor.Tensor[float32, backend]

// op advances the forward pass by one layer. nchw tracks whether x is
// currently in born's channels-first layout.
type op func(x tensor32, nchw bool) (tensor32, bool)

// Engine builds born models from layers-model artifacts.
type Engine struct {
	backend backend
}

func New() *Engine {
	return &Engine{backend: cpu.New()}
}

func (e *Engine) Name() string { return "born" }

func (e *Engine) Load(ctx context.Context, a *engine.Artifacts) (m engine.Model, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name, layers, err := parseTopology(a.Topology)
	if err != nil {
		return nil, err
	}

	weights, err := engine.DecodeWeights(a.WeightSpecs, a.WeightData)
	if err != nil {
		return nil, err
	}

	// born constructors panic on invalid hyperparameters
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, fmt.Errorf("build %s: %v", name, r)
		}
	}()

	b := &builder{backend: e.backend, weights: weights}
	for i, l := range layers {
		if err := b.add(l); err != nil {
			return nil, fmt.Errorf("layer %d (%s %s): %w", i, l.ClassName, l.Config.Name, err)
		}
	}

	return &Model{
		name:    name,
		backend: e.backend,
		input:   b.input,
		ops:     b.ops,
	}, nil
}

// Model is a born-backed sequential network.
type Model struct {
	mu      sync.Mutex
	name    string
	backend backend
	input   []int
	ops     []op
}

func (m *Model) InputShape() []int {
	if m.input == nil {
		return nil
	}
	return append([]int(nil), m.input...)
}

func (m *Model) Predict(in engine.Tensor) (out []float32, err error) {
	if m.input != nil && !engine.SameShape(m.input, in.Shape) {
		return nil, fmt.Errorf("%s: input shape %v does not match declared %v", m.name, in.Shape, m.input)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%s: forward pass: %v", m.name, r)
		}
	}()

	x, err := tensor.FromSlice[float32](in.Data, tensor.Shape(in.Shape), m.backend)
	if err != nil {
		return nil, fmt.Errorf("%s: input tensor: %w", m.name, err)
	}

	nchw := false
	for _, f := range m.ops {
		x, nchw = f(x, nchw)
	}
	if nchw {
		x = x.Transpose(0, 2, 3, 1)
	}

	return append([]float32(nil), x.Data()...), nil
}

func (m *Model) Close() error { return nil }

type builder struct {
	backend backend
	weights map[string][]float32
	input   []int
	ops     []op
}

func (b *builder) add(l layerSpec) error {
	cfg := l.Config
	if b.input == nil {
		b.input = cfg.inputShape()
	}
	if cfg.DataFormat == "channels_first" {
		return fmt.Errorf("channels_first is not supported")
	}

	switch l.ClassName {
	case "InputLayer":
		return nil
	case "Dropout", "SpatialDropout2D", "GaussianNoise":
		return nil
	case "Dense":
		return b.dense(cfg)
	case "Conv2D":
		return b.conv2d(cfg)
	case "MaxPooling2D":
		return b.maxPool(cfg)
	case "Flatten":
		b.ops = append(b.ops, flatten)
		return nil
	case "Reshape":
		target := cfg.TargetShape
		b.ops = append(b.ops, func(x tensor32, nchw bool) (tensor32, bool) {
			x = toNHWC(x, nchw)
			dims := append([]int{x.Shape()[0]}, target...)
			return x.Reshape(dims...), false
		})
		return nil
	case "Activation":
		return b.activation(cfg.Activation)
	case "Softmax":
		return b.activation("softmax")
	default:
		return fmt.Errorf("unsupported layer")
	}
}

func (b *builder) dense(cfg layerConfig) error {
	kernel, err := b.weight(cfg.Name, "kernel")
	if err != nil {
		return err
	}
	if cfg.Units <= 0 || len(kernel)%cfg.Units != 0 {
		return fmt.Errorf("kernel of %d values does not fit %d units", len(kernel), cfg.Units)
	}
	in := len(kernel) / cfg.Units

	// Dense has bias parameters regardless of use_bias; they stay zero when unused.
	layer := nn.NewLinear(in, cfg.Units, b.backend)
	params := layer.Parameters()
	copy(params[0].Tensor().Data(), transposeDense(kernel, in, cfg.Units))
	if cfg.useBias() {
		bias, err := b.weight(cfg.Name, "bias")
		if err != nil {
			return err
		}
		copy(params[1].Tensor().Data(), bias)
	} else {
		clear(params[1].Tensor().Data())
	}

	b.ops = append(b.ops, func(x tensor32, nchw bool) (tensor32, bool) {
		return layer.Forward(toNHWC(x, nchw)), false
	})
	return b.activation(cfg.Activation)
}

func (b *builder) conv2d(cfg layerConfig) error {
	if len(cfg.KernelSize) != 2 {
		return fmt.Errorf("kernel_size %v", cfg.KernelSize)
	}
	kh, kw := cfg.KernelSize[0], cfg.KernelSize[1]
	stride, err := uniformStride(cfg.Strides, 1)
	if err != nil {
		return err
	}

	padding := 0
	switch strings.ToLower(cfg.Padding) {
	case "", "valid":
	case "same":
		if kh != kw || kh%2 == 0 || stride != 1 {
			return fmt.Errorf("same padding needs an odd square kernel with stride 1")
		}
		padding = (kh - 1) / 2
	default:
		return fmt.Errorf("padding %q", cfg.Padding)
	}

	kernel, err := b.weight(cfg.Name, "kernel")
	if err != nil {
		return err
	}
	if cfg.Filters <= 0 || len(kernel)%(kh*kw*cfg.Filters) != 0 {
		return fmt.Errorf("kernel of %d values does not fit %dx%d with %d filters", len(kernel), kh, kw, cfg.Filters)
	}
	in := len(kernel) / (kh * kw * cfg.Filters)

	layer := nn.NewConv2D(in, cfg.Filters, kh, kw, stride, padding, cfg.useBias(), b.backend)
	params := layer.Parameters()
	copy(params[0].Tensor().Data(), transposeConv(kernel, kh, kw, in, cfg.Filters))
	if cfg.useBias() {
		bias, err := b.weight(cfg.Name, "bias")
		if err != nil {
			return err
		}
		copy(params[1].Tensor().Data(), bias)
	}

	b.ops = append(b.ops, func(x tensor32, nchw bool) (tensor32, bool) {
		return layer.Forward(toNCHW(x, nchw)), true
	})
	return b.activation(cfg.Activation)
}

func (b *builder) maxPool(cfg layerConfig) error {
	size := cfg.PoolSize
	if len(size) == 0 {
		size = []int{2, 2}
	}
	if len(size) != 2 || size[0] != size[1] {
		return fmt.Errorf("pool_size %v", size)
	}
	if p := strings.ToLower(cfg.Padding); p != "" && p != "valid" {
		return fmt.Errorf("padding %q", cfg.Padding)
	}
	stride, err := uniformStride(cfg.Strides, size[0])
	if err != nil {
		return err
	}

	layer := nn.NewMaxPool2D(size[0], stride, b.backend)
	b.ops = append(b.ops, func(x tensor32, nchw bool) (tensor32, bool) {
		return layer.Forward(toNCHW(x, nchw)), true
	})
	return nil
}

func (b *builder) activation(name string) error {
	var f func(x tensor32) tensor32

	switch strings.ToLower(name) {
	case "", "linear":
		return nil
	case "relu":
		f = nn.NewReLU[backend]().Forward
	case "sigmoid":
		f = nn.NewSigmoid[backend]().Forward
	case "tanh":
		f = nn.NewTanh[backend]().Forward
	case "softmax":
		f = func(x tensor32) tensor32 { return x.Softmax(-1) }
		// Keras softmax runs over the channel axis, which is last only in NHWC.
		b.ops = append(b.ops, func(x tensor32, nchw bool) (tensor32, bool) {
			return f(toNHWC(x, nchw)), false
		})
		return nil
	default:
		return fmt.Errorf("unsupported activation %q", name)
	}

	b.ops = append(b.ops, func(x tensor32, nchw bool) (tensor32, bool) {
		return f(x), nchw
	})
	return nil
}

// weight finds "<layer>/<kind>", tolerating a scope prefix such as
// "sequential/dense/kernel".
func (b *builder) weight(layer, kind string) ([]float32, error) {
	key := layer + "/" + kind
	if w, ok := b.weights[key]; ok {
		return w, nil
	}
	for name, w := range b.weights {
		if strings.HasSuffix(name, "/"+key) {
			return w, nil
		}
	}
	return nil, fmt.Errorf("missing weight %s", key)
}

func flatten(x tensor32, nchw bool) (tensor32, bool) {
	x = toNHWC(x, nchw)
	shape := x.Shape()
	n := shape[0]
	return x.Reshape(n, x.NumElements()/n), false
}

func toNCHW(x tensor32, nchw bool) tensor32 {
	if nchw {
		return x
	}
	return x.Transpose(0, 3, 1, 2)
}

func toNHWC(x tensor32, nchw bool) tensor32 {
	if !nchw {
		return x
	}
	return x.Transpose(0, 2, 3, 1)
}

func uniformStride(strides []int, def int) (int, error) {
	switch len(strides) {
	case 0:
		return def, nil
	case 2:
		if strides[0] != strides[1] {
			return 0, fmt.Errorf("strides %v", strides)
		}
		return strides[0], nil
	default:
		return 0, fmt.Errorf("strides %v", strides)
	}
}

// transposeDense converts a Keras [in, out] kernel into born's [out, in].
func transposeDense(k []float32, in, out int) []float32 {
	t := make([]float32, len(k))
	for i := 0; i < in; i++ {
		for o := 0; o < out; o++ {
			t[o*in+i] = k[i*out+o]
		}
	}
	return t
}

// transposeConv converts a Keras [kh, kw, in, out] kernel into born's
// [out, in, kh, kw].
func transposeConv(k []float32, kh, kw, in, out int) []float32 {
	t := make([]float32, len(k))
	for y := 0; y < kh; y++ {
		for x := 0; x < kw; x++ {
			for i := 0; i < in; i++ {
				for o := 0; o < out; o++ {
					t[((o*in+i)*kh+y)*kw+x] = k[((y*kw+x)*in+i)*out+o]
				}
			}
		}
	}
	return t
}
