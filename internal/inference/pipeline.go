// Package inference turns a canvas image into a class prediction.
package inference

import (
	"errors"
	"fmt"
	"image"
	"log"

	"github.com/Brownie44l1/sketch-classifier/internal/engine"
)

// ErrNoModel is returned when predicting before any model has loaded.
var ErrNoModel = errors.New("model not loaded yet")

// Predict runs the full pipeline on img with model m.
func Predict(m engine.Model, img image.Image) (Result, error) {
	if m == nil {
		return Result{}, ErrNoModel
	}

	input := ShapeFor(m.InputShape(), Preprocess(img, InputSize))

	out, err := m.Predict(input)
	if err != nil {
		return Result{}, fmt.Errorf("inference failed: %w", err)
	}

	res, err := Classify(out)
	if err != nil {
		return Result{}, err
	}
	if res.Normalized {
		log.Printf("Model output is not a probability distribution, applied softmax")
	}

	log.Printf("Prediction: %s (%.1f%%)", res.Label, float64(res.Confidence)*100)
	return res, nil
}
