package model

import "fmt"

// LoadError is returned for any failure while loading a model: network,
// parse, engine or warm-up.
type LoadError struct {
	Name string
	Op   string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s model: %s: %v", e.Name, e.Op, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
