package canvas

import "fmt"

// Gesture is a pointer event as reported by a browser: client coordinates
// plus the canvas bounding rect. Touch events carry their points in Touches.
type Gesture struct {
	Type    string  `json:"type"`
	ClientX float64 `json:"clientX"`
	ClientY float64 `json:"clientY"`
	Touches []Point `json:"touches,omitempty"`
	Rect    Point   `json:"rect"`
}

// Point maps the gesture to canvas-relative pixels. Touch gestures use the
// first touch point.
func (g Gesture) Point() Point {
	x, y := g.ClientX, g.ClientY
	if len(g.Touches) > 0 {
		x, y = g.Touches[0].X, g.Touches[0].Y
	}
	return Point{X: x - g.Rect.X, Y: y - g.Rect.Y}
}

// Apply feeds a gesture into the canvas.
func (c *Canvas) Apply(g Gesture) error {
	switch g.Type {
	case "mousedown", "touchstart", "start":
		c.Start(g.Point())
	case "mousemove", "touchmove", "move":
		c.Move(g.Point())
	case "mouseup", "mouseout", "touchend", "end":
		c.End()
	default:
		return fmt.Errorf("unknown gesture %q", g.Type)
	}
	return nil
}
