package keras

import (
	"encoding/json"
	"fmt"
)

// topology accepts both the TF.js layout ({class_name, config}) and the
// Keras 3 export layout ({model_config: {class_name, config}}).
type topology struct {
	ClassName   string          `json:"class_name"`
	Config      json.RawMessage `json:"config"`
	ModelConfig *struct {
		ClassName string          `json:"class_name"`
		Config    json.RawMessage `json:"config"`
	} `json:"model_config"`
}

type modelConfig struct {
	Name   string      `json:"name"`
	Layers []layerSpec `json:"layers"`
}

type layerSpec struct {
	ClassName string      `json:"class_name"`
	Config    layerConfig `json:"config"`
}

type layerConfig struct {
	Name            string `json:"name"`
	BatchInputShape []*int `json:"batchInputShape"`
	BatchInputSnake []*int `json:"batch_input_shape"`

	Units      int    `json:"units"`
	Activation string `json:"activation"`
	UseBias    *bool  `json:"use_bias"`

	Filters    int    `json:"filters"`
	KernelSize []int  `json:"kernel_size"`
	Strides    []int  `json:"strides"`
	Padding    string `json:"padding"`
	DataFormat string `json:"data_format"`

	PoolSize    []int `json:"pool_size"`
	TargetShape []int `json:"target_shape"`
}

func (c layerConfig) useBias() bool {
	return c.UseBias == nil || *c.UseBias
}

// inputShape returns the declared batch input shape with -1 for nulls.
func (c layerConfig) inputShape() []int {
	dims := c.BatchInputShape
	if dims == nil {
		dims = c.BatchInputSnake
	}
	if dims == nil {
		return nil
	}
	out := make([]int, len(dims))
	for i, d := range dims {
		if d == nil {
			out[i] = -1
			continue
		}
		out[i] = *d
	}
	return out
}

func parseTopology(raw json.RawMessage) (string, []layerSpec, error) {
	if len(raw) == 0 {
		return "", nil, fmt.Errorf("empty model topology")
	}

	var top topology
	if err := json.Unmarshal(raw, &top); err != nil {
		return "", nil, fmt.Errorf("failed to parse topology: %w", err)
	}

	className, cfgRaw := top.ClassName, top.Config
	if top.ModelConfig != nil {
		className, cfgRaw = top.ModelConfig.ClassName, top.ModelConfig.Config
	}

	switch className {
	case "Sequential", "Functional", "Model":
	default:
		return "", nil, fmt.Errorf("unsupported model class %q", className)
	}

	var cfg modelConfig
	if err := json.Unmarshal(cfgRaw, &cfg); err != nil {
		return "", nil, fmt.Errorf("failed to parse model config: %w", err)
	}
	if len(cfg.Layers) == 0 {
		return "", nil, fmt.Errorf("model %q has no layers", cfg.Name)
	}
	return cfg.Name, cfg.Layers, nil
}
