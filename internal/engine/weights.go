package engine

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DecodeWeights splits the combined weight buffer into named float32 slices,
// consuming specs in order. Quantized tensors are dequantized.
func DecodeWeights(specs []WeightSpec, data []byte) (map[string][]float32, error) {
	out := make(map[string][]float32, len(specs))
	offset := 0

	for _, spec := range specs {
		n := 1
		for _, d := range spec.Shape {
			n *= d
		}

		dtype := spec.DType
		if spec.Quantization != nil {
			dtype = spec.Quantization.DType
		}

		size, err := byteSize(dtype)
		if err != nil {
			return nil, fmt.Errorf("weight %s: %w", spec.Name, err)
		}
		end := offset + n*size
		if end > len(data) {
			return nil, fmt.Errorf("weight %s: need %d bytes at offset %d, buffer has %d",
				spec.Name, n*size, offset, len(data))
		}

		raw := data[offset:end]
		values := make([]float32, n)

		switch dtype {
		case "float32":
			for i := range values {
				values[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
			}
		case "int32":
			for i := range values {
				values[i] = float32(int32(binary.LittleEndian.Uint32(raw[i*4:])))
			}
		case "uint8":
			for i := range values {
				values[i] = float32(raw[i])
			}
		case "uint16":
			for i := range values {
				values[i] = float32(binary.LittleEndian.Uint16(raw[i*2:]))
			}
		}

		if q := spec.Quantization; q != nil {
			for i, v := range values {
				values[i] = v*q.Scale + q.Min
			}
		}

		out[spec.Name] = values
		offset = end
	}

	if offset != len(data) {
		return nil, fmt.Errorf("weight buffer has %d trailing bytes", len(data)-offset)
	}
	return out, nil
}

func byteSize(dtype string) (int, error) {
	switch dtype {
	case "float32", "int32":
		return 4, nil
	case "uint16":
		return 2, nil
	case "uint8":
		return 1, nil
	default:
		return 0, fmt.Errorf("unsupported dtype %q", dtype)
	}
}
