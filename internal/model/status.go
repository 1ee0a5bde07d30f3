package model

import "strings"

type State string

const (
	StateLoading State = "Loading..."
	StateReady   State = "Ready"
	StateError   State = "Error"
)

var stateColors = map[State]string{
	StateLoading: "#ffcc00",
	StateReady:   "#00f2ff",
	StateError:   "#ff0055",
}

// Status is what the status readout shows for one architecture.
type Status struct {
	Model string `json:"model"`
	State State  `json:"state"`
	Text  string `json:"text"`
	Color string `json:"color"`
}

func NewStatus(name string, s State) Status {
	return Status{
		Model: name,
		State: s,
		Text:  strings.ToUpper(name) + " " + string(s),
		Color: stateColors[s],
	}
}
