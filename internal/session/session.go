// Package session ties the canvas, the model cache and the currently
// selected architecture together for one user.
package session

import (
	"context"
	"image"
	"log"
	"sync"

	"github.com/Brownie44l1/sketch-classifier/internal/canvas"
	"github.com/Brownie44l1/sketch-classifier/internal/inference"
	"github.com/Brownie44l1/sketch-classifier/internal/model"
)

type Session struct {
	loader *model.Loader
	canvas *canvas.Canvas

	mu      sync.Mutex
	current string
	display inference.Display
}

func New(loader *model.Loader, c *canvas.Canvas, initial string) *Session {
	return &Session{
		loader:  loader,
		canvas:  c,
		current: initial,
		display: inference.BlankDisplay(),
	}
}

// Select makes name the current architecture and loads it if needed.
func (s *Session) Select(ctx context.Context, name string) (model.Status, error) {
	if model.IsKnown(name) {
		s.mu.Lock()
		s.current = name
		s.mu.Unlock()
	}

	_, err := s.loader.Load(ctx, name)
	return s.loader.Status(), err
}

// Predict classifies the current canvas with the current model.
func (s *Session) Predict() (inference.Result, error) {
	return s.PredictImage(s.canvas.Image())
}

// PredictImage classifies an arbitrary image with the current model.
func (s *Session) PredictImage(img image.Image) (inference.Result, error) {
	name := s.Current()
	m, ok := s.loader.Cached(name)
	if !ok {
		log.Printf("Predict with no %s model loaded", name)
		return inference.Result{}, inference.ErrNoModel
	}

	res, err := inference.Predict(m, img)
	if err != nil {
		log.Printf("Prediction error: %v", err)
		return inference.Result{}, err
	}

	s.mu.Lock()
	s.display = res.Display()
	s.mu.Unlock()
	return res, nil
}

// Clear blanks the canvas and resets the result display.
func (s *Session) Clear() inference.Display {
	s.canvas.Clear()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.display = inference.BlankDisplay()
	return s.display
}

func (s *Session) Gesture(g canvas.Gesture) error {
	return s.canvas.Apply(g)
}

func (s *Session) Display() inference.Display {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.display
}

func (s *Session) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current
}

func (s *Session) Status() model.Status {
	return s.loader.Status()
}

func (s *Session) Canvas() *canvas.Canvas {
	return s.canvas
}
