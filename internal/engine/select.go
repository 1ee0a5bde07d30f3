package engine

import "fmt"

// Select builds a format dispatcher from engine names,
// e.g. ["born"] or ["born", "onnx"]. Every name must be in available.
func Select(names []string, available map[string]Engine) (Multi, error) {
	formats := map[string]string{
		"born": FormatLayers,
		"onnx": FormatONNX,
	}

	m := Multi{}
	for _, name := range names {
		e, ok := available[name]
		if !ok {
			return nil, fmt.Errorf("unknown engine %q", name)
		}
		m[formats[name]] = e
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("no engines selected")
	}
	return m, nil
}
