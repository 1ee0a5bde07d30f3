package model

import (
	"encoding/json"
	"fmt"

	"github.com/Brownie44l1/sketch-classifier/internal/engine"
)

// Descriptor is a parsed model.json. The topology is kept as a generic tree
// so it can be patched in place before the engine sees it.
type Descriptor struct {
	Format          string          `json:"format,omitempty"`
	GeneratedBy     string          `json:"generatedBy,omitempty"`
	ConvertedBy     string          `json:"convertedBy,omitempty"`
	ModelTopology   map[string]any  `json:"modelTopology"`
	WeightsManifest []ManifestGroup `json:"weightsManifest"`
}

// ManifestGroup lists shard files and the tensors packed into them.
type ManifestGroup struct {
	Paths   []string            `json:"paths"`
	Weights []engine.WeightSpec `json:"weights"`
}

// ParseDescriptor decodes model.json.
func ParseDescriptor(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse model descriptor: %w", err)
	}
	if len(d.WeightsManifest) == 0 {
		return nil, fmt.Errorf("model descriptor has no weights manifest")
	}
	return &d, nil
}

// Manifest flattens all groups into shard paths and weight specs, both in
// manifest order.
func (d *Descriptor) Manifest() ([]string, []engine.WeightSpec) {
	var paths []string
	var specs []engine.WeightSpec
	for _, g := range d.WeightsManifest {
		paths = append(paths, g.Paths...)
		specs = append(specs, g.Weights...)
	}
	return paths, specs
}

// Artifacts builds what the engine consumes from the (patched) descriptor
// and the combined weight buffer.
func (d *Descriptor) Artifacts(weights []byte) (*engine.Artifacts, error) {
	topology, err := json.Marshal(d.ModelTopology)
	if err != nil {
		return nil, fmt.Errorf("failed to encode topology: %w", err)
	}

	_, specs := d.Manifest()
	format := d.Format
	if format == "" {
		format = engine.FormatLayers
	}

	return &engine.Artifacts{
		Format:      format,
		Topology:    topology,
		WeightSpecs: specs,
		WeightData:  weights,
	}, nil
}

// PatchLegacyShapes copies batch_shape into batchInputShape on InputLayer
// entries that only carry the legacy field. It returns the number of layers
// changed; a second run always returns 0.
func PatchLegacyShapes(d *Descriptor) int {
	patched := 0
	for _, layers := range layerLists(d.ModelTopology) {
		for _, item := range layers {
			layer, ok := item.(map[string]any)
			if !ok || layer["class_name"] != "InputLayer" {
				continue
			}
			cfg, ok := layer["config"].(map[string]any)
			if !ok {
				continue
			}
			legacy, hasLegacy := cfg["batch_shape"]
			if _, hasCurrent := cfg["batchInputShape"]; hasLegacy && !hasCurrent {
				cfg["batchInputShape"] = legacy
				patched++
			}
		}
	}
	return patched
}

// layerLists finds the layer arrays of both topology layouts:
// modelTopology.model_config.config.layers and modelTopology.config.layers.
func layerLists(topology map[string]any) [][]any {
	var out [][]any
	for _, root := range []any{topology["model_config"], topology} {
		node, ok := root.(map[string]any)
		if !ok {
			continue
		}
		cfg, ok := node["config"].(map[string]any)
		if !ok {
			continue
		}
		if layers, ok := cfg["layers"].([]any); ok {
			out = append(out, layers)
		}
	}
	return out
}

// ConcatShards joins shard buffers in order into one contiguous buffer.
func ConcatShards(bufs [][]byte) []byte {
	total := 0
	for _, b := range bufs {
		total += len(b)
	}

	combined := make([]byte, total)
	offset := 0
	for _, b := range bufs {
		offset += copy(combined[offset:], b)
	}
	return combined
}
