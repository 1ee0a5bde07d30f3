// Package canvas keeps the drawing surface: an opaque black raster that
// pointer gestures paint white strokes onto.
package canvas

import (
	"image"
	"image/draw"
	"sync"

	"github.com/fogleman/gg"
)

const (
	DefaultSize = 400
	StrokeWidth = 15
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Canvas struct {
	mu      sync.Mutex
	size    int
	dc      *gg.Context
	drawing bool
	last    Point
}

func New(size int) *Canvas {
	if size <= 0 {
		size = DefaultSize
	}

	dc := gg.NewContext(size, size)
	dc.SetLineWidth(StrokeWidth)
	dc.SetLineCapRound()
	dc.SetLineJoinRound()

	c := &Canvas{size: size, dc: dc}
	c.fill()
	return c
}

func (c *Canvas) Size() int { return c.size }

// Start begins a stroke at p.
func (c *Canvas) Start(p Point) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.drawing = true
	c.last = p
}

// Move extends the current stroke to p. It does nothing unless a stroke
// is in progress.
func (c *Canvas) Move(p Point) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.drawing {
		return
	}
	c.dc.SetRGB(1, 1, 1)
	c.dc.MoveTo(c.last.X, c.last.Y)
	c.dc.LineTo(p.X, p.Y)
	c.dc.Stroke()
	c.last = p
}

// End closes the current stroke, if any.
func (c *Canvas) End() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.drawing = false
}

func (c *Canvas) Drawing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.drawing
}

// Clear repaints the whole surface with the background.
func (c *Canvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.drawing = false
	c.fill()
}

func (c *Canvas) fill() {
	c.dc.SetRGB(0, 0, 0)
	c.dc.Clear()
}

// Image returns a copy of the current raster.
func (c *Canvas) Image() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()

	src := c.dc.Image()
	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst
}
