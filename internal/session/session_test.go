package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/sketch-classifier/internal/canvas"
	"github.com/Brownie44l1/sketch-classifier/internal/engine"
	"github.com/Brownie44l1/sketch-classifier/internal/engine/enginetest"
	"github.com/Brownie44l1/sketch-classifier/internal/inference"
	"github.com/Brownie44l1/sketch-classifier/internal/model"
	"github.com/Brownie44l1/sketch-classifier/internal/model/modeltest"
	"github.com/Brownie44l1/sketch-classifier/internal/session"
)

var trouser = []float32{0.05, 0.85, 0.02, 0.01, 0.01, 0.01, 0.01, 0.01, 0.02, 0.01}

func newSession(t *testing.T) (*session.Session, *modeltest.Server) {
	t.Helper()
	srv := modeltest.NewServer()
	t.Cleanup(srv.Close)
	for _, name := range model.Architectures {
		srv.AddModel(name, modeltest.LegacyTopology(nil, 28, 28, 1),
			modeltest.Shard{Path: "shard1.bin", Data: []byte{0, 0, 0, 0}})
	}

	eng := &enginetest.Engine{
		Build: func(*engine.Artifacts) (engine.Model, error) {
			return &enginetest.Model{Shape: []int{-1, 28, 28, 1}, Output: trouser}, nil
		},
	}
	loader := model.NewLoader(model.NewFetcher(srv.URL, srv.Client()), eng)
	return session.New(loader, canvas.New(100), "cnn"), srv
}

func TestPredictBeforeLoad(t *testing.T) {
	s, _ := newSession(t)

	_, err := s.Predict()
	assert.ErrorIs(t, err, inference.ErrNoModel)
	assert.Equal(t, inference.BlankDisplay(), s.Display())
}

func TestSelectPredictClear(t *testing.T) {
	s, _ := newSession(t)

	status, err := s.Select(context.Background(), "fnn")
	require.NoError(t, err)
	assert.Equal(t, "FNN Ready", status.Text)
	assert.Equal(t, "fnn", s.Current())

	require.NoError(t, s.Gesture(canvas.Gesture{Type: "mousedown", ClientX: 10, ClientY: 10}))
	require.NoError(t, s.Gesture(canvas.Gesture{Type: "mousemove", ClientX: 90, ClientY: 90}))
	require.NoError(t, s.Gesture(canvas.Gesture{Type: "mouseup"}))

	res, err := s.Predict()
	require.NoError(t, err)
	assert.Equal(t, 1, res.Index)
	assert.Equal(t, "85.0%", s.Display().Confidence)

	d := s.Clear()
	assert.Equal(t, "---", d.Label)
	assert.Equal(t, "0%", d.Confidence)
	assert.Equal(t, "0%", d.Bar)
	assert.Equal(t, d, s.Display())
}

func TestClearWithoutPrediction(t *testing.T) {
	s, _ := newSession(t)
	assert.Equal(t, inference.BlankDisplay(), s.Clear())
}

func TestSelectFailureKeepsNoModel(t *testing.T) {
	s, srv := newSession(t)
	srv.Remove("/cnn/model.json")

	status, err := s.Select(context.Background(), "cnn")
	var loadErr *model.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, model.StateError, status.State)

	_, err = s.Predict()
	assert.ErrorIs(t, err, inference.ErrNoModel)
}

func TestSelectUnknownKeepsCurrent(t *testing.T) {
	s, _ := newSession(t)

	_, err := s.Select(context.Background(), "rnn")
	assert.Error(t, err)
	assert.Equal(t, "cnn", s.Current())
}
