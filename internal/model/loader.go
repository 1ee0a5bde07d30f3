// Package model fetches TF.js-style model descriptors and weight shards,
// reconciles schema differences and caches one runnable model per
// architecture name.
package model

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/Brownie44l1/sketch-classifier/internal/engine"
)

// Architectures are the model names the loader accepts.
var Architectures = []string{"cnn", "fnn"}

// NominalShape is the image-like input both architectures are trained on.
var NominalShape = []int{1, 28, 28, 1}

func IsKnown(name string) bool {
	return slices.Contains(Architectures, name)
}

type Loader struct {
	fetcher *Fetcher
	engine  engine.Engine

	// OnStatus, if set, is called on every status change.
	OnStatus func(Status)

	mu     sync.RWMutex
	models map[string]engine.Model
	status Status
	group  singleflight.Group
}

func NewLoader(fetcher *Fetcher, eng engine.Engine) *Loader {
	return &Loader{
		fetcher: fetcher,
		engine:  eng,
		models:  make(map[string]engine.Model),
	}
}

// Load returns the cached model for name, loading it on first use.
// Concurrent first calls share a single load that keeps running when a
// caller's ctx is cancelled. Failures are *LoadError and leave the cache
// empty so a later call can retry.
func (l *Loader) Load(ctx context.Context, name string) (engine.Model, error) {
	if !IsKnown(name) {
		err := &LoadError{Name: name, Op: "select", Err: fmt.Errorf("unknown architecture")}
		log.Printf("Model load error: %v", err)
		l.setStatus(name, StateError)
		return nil, err
	}

	if m, ok := l.Cached(name); ok {
		l.setStatus(name, StateReady)
		return m, nil
	}

	// The shared load must not die with whichever caller started it; each
	// caller only stops waiting when its own ctx is done.
	loadCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan(name, func() (any, error) {
		if m, ok := l.Cached(name); ok {
			return m, nil
		}

		l.setStatus(name, StateLoading)
		m, err := l.load(loadCtx, name)
		if err != nil {
			log.Printf("Model load error: %v", err)
			l.setStatus(name, StateError)
			return nil, err
		}

		l.mu.Lock()
		l.models[name] = m
		l.mu.Unlock()

		l.setStatus(name, StateReady)
		return m, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(engine.Model), nil
	case <-ctx.Done():
		log.Printf("Stopped waiting for %s model: %v", name, ctx.Err())
		return nil, &LoadError{Name: name, Op: "wait", Err: ctx.Err()}
	}
}

func (l *Loader) load(ctx context.Context, name string) (engine.Model, error) {
	desc, err := l.fetcher.Descriptor(ctx, name)
	if err != nil {
		return nil, &LoadError{Name: name, Op: "fetch descriptor", Err: err}
	}

	if n := PatchLegacyShapes(desc); n > 0 {
		log.Printf("Patched %d legacy input layer(s) in %s", n, name)
	}

	paths, _ := desc.Manifest()
	bufs, err := l.fetcher.Shards(ctx, name, paths)
	if err != nil {
		return nil, &LoadError{Name: name, Op: "fetch weights", Err: err}
	}

	weights := ConcatShards(bufs)
	log.Printf("Fetched %d shard(s) for %s: %d bytes", len(bufs), name, len(weights))

	artifacts, err := desc.Artifacts(weights)
	if err != nil {
		return nil, &LoadError{Name: name, Op: "prepare", Err: err}
	}

	m, err := l.engine.Load(ctx, artifacts)
	if err != nil {
		return nil, &LoadError{Name: name, Op: "build", Err: err}
	}

	if err := WarmUp(m); err != nil {
		m.Close()
		return nil, &LoadError{Name: name, Op: "warm up", Err: err}
	}
	return m, nil
}

// WarmUp runs one throwaway forward pass on zeros. Models that declare an
// input shape get exactly that shape; otherwise the image-like layout is
// tried first and the flattened one second.
func WarmUp(m engine.Model) error {
	if declared := m.InputShape(); len(declared) > 0 {
		_, err := m.Predict(engine.Zeros(declared...))
		return err
	}

	in := engine.Zeros(NominalShape...)
	if _, err := m.Predict(in); err == nil {
		return nil
	} else if _, ferr := m.Predict(in.Flatten()); ferr != nil {
		return fmt.Errorf("rejected %v (%v) and %v (%w)", in.Shape, err, in.Flatten().Shape, ferr)
	}
	return nil
}

// Cached returns the model for name if it has been loaded.
func (l *Loader) Cached(name string) (engine.Model, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m, ok := l.models[name]
	return m, ok
}

// Status returns the most recent status update.
func (l *Loader) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.status
}

func (l *Loader) setStatus(name string, s State) {
	st := NewStatus(name, s)

	l.mu.Lock()
	l.status = st
	hook := l.OnStatus
	l.mu.Unlock()

	if hook != nil {
		hook(st)
	}
}

// Close releases every cached model.
func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for name, m := range l.models {
		if err := m.Close(); err != nil {
			log.Printf("Failed to close %s model: %v", name, err)
		}
		delete(l.models, name)
	}
}
