package inference

import (
	"fmt"
	"math"
)

// Result is one classification.
type Result struct {
	Index      int     `json:"index"`
	Label      Label   `json:"label"`
	Confidence float32 `json:"confidence"`
	// Normalized is true when the raw output was not a probability
	// distribution and softmax was applied before picking the confidence.
	Normalized bool `json:"normalized"`
}

// Display is the text shown in the result area.
type Display struct {
	Label      string `json:"label"`
	Confidence string `json:"confidence"`
	Bar        string `json:"bar"`
}

// BlankDisplay is shown before any prediction and after clearing.
func BlankDisplay() Display {
	return Display{Label: "---", Confidence: "0%", Bar: "0%"}
}

func (r Result) Display() Display {
	pct := fmt.Sprintf("%.1f%%", float64(r.Confidence)*100)
	return Display{Label: r.Label.String(), Confidence: pct, Bar: pct}
}

const distributionTolerance = 1e-3

// Classify picks the argmax of a 10-way output vector and reports its value
// as the confidence.
func Classify(out []float32) (Result, error) {
	if len(out) != len(Labels) {
		return Result{}, fmt.Errorf("expected %d outputs, got %d", len(Labels), len(out))
	}

	probs, normalized := out, false
	if !isDistribution(out) {
		probs, normalized = softmax(out), true
	}

	maxIdx := 0
	maxVal := probs[0]
	for i, v := range probs {
		if v > maxVal {
			maxVal = v
			maxIdx = i
		}
	}

	return Result{
		Index:      maxIdx,
		Label:      Labels[maxIdx],
		Confidence: maxVal,
		Normalized: normalized,
	}, nil
}

func isDistribution(v []float32) bool {
	var sum float64
	for _, x := range v {
		if x < 0 || x > 1 || math.IsNaN(float64(x)) {
			return false
		}
		sum += float64(x)
	}
	return math.Abs(sum-1) <= distributionTolerance
}

func softmax(v []float32) []float32 {
	maxVal := math.Inf(-1)
	for _, x := range v {
		maxVal = math.Max(maxVal, float64(x))
	}

	out := make([]float32, len(v))
	var sum float64
	for i, x := range v {
		e := math.Exp(float64(x) - maxVal)
		out[i] = float32(e)
		sum += e
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}
