package canvas

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rgbaAt(c *Canvas, x, y int) color.RGBA {
	return c.Image().RGBAAt(x, y)
}

func assertBlank(t *testing.T, c *Canvas) {
	t.Helper()
	img := c.Image()
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			px := img.RGBAAt(x, y)
			if px != (color.RGBA{A: 255}) {
				t.Fatalf("pixel (%d,%d) = %v, want opaque black", x, y, px)
			}
		}
	}
}

func TestNewCanvasIsOpaqueBlack(t *testing.T) {
	c := New(0)
	assert.Equal(t, DefaultSize, c.Size())
	assert.Equal(t, DefaultSize, c.Image().Bounds().Dx())
	assertBlank(t, c)
}

func TestStrokePaintsWhite(t *testing.T) {
	c := New(100)

	c.Start(Point{X: 10, Y: 50})
	assert.True(t, c.Drawing())
	c.Move(Point{X: 90, Y: 50})
	c.End()
	assert.False(t, c.Drawing())

	assert.Equal(t, color.RGBA{255, 255, 255, 255}, rgbaAt(c, 50, 50))
	// Half the stroke width above the line is still inside the stroke.
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, rgbaAt(c, 50, 45))
	assert.Equal(t, color.RGBA{A: 255}, rgbaAt(c, 50, 10))

	// Strokes never make the raster transparent.
	img := c.Image()
	for i := 3; i < len(img.Pix); i += 4 {
		require.Equal(t, uint8(255), img.Pix[i])
	}
}

func TestMoveWithoutStartIsIgnored(t *testing.T) {
	c := New(50)
	c.Move(Point{X: 25, Y: 25})
	c.End()
	assertBlank(t, c)
}

func TestClearResetsSurface(t *testing.T) {
	c := New(60)
	c.Start(Point{X: 0, Y: 0})
	c.Move(Point{X: 60, Y: 60})

	c.Clear()

	assert.False(t, c.Drawing())
	assertBlank(t, c)
}

func TestGesturePoint(t *testing.T) {
	mouse := Gesture{Type: "mousedown", ClientX: 120, ClientY: 80, Rect: Point{X: 100, Y: 50}}
	assert.Equal(t, Point{X: 20, Y: 30}, mouse.Point())

	touch := Gesture{
		Type:    "touchstart",
		ClientX: 999, ClientY: 999,
		Touches: []Point{{X: 110, Y: 60}, {X: 0, Y: 0}},
		Rect:    Point{X: 100, Y: 50},
	}
	assert.Equal(t, Point{X: 10, Y: 10}, touch.Point())
}

func TestApplyGestures(t *testing.T) {
	c := New(100)
	rect := Point{X: 5, Y: 5}

	require.NoError(t, c.Apply(Gesture{Type: "touchstart", Touches: []Point{{X: 15, Y: 55}}, Rect: rect}))
	require.NoError(t, c.Apply(Gesture{Type: "touchmove", Touches: []Point{{X: 95, Y: 55}}, Rect: rect}))
	require.NoError(t, c.Apply(Gesture{Type: "touchend"}))

	assert.False(t, c.Drawing())
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, rgbaAt(c, 50, 50))

	assert.Error(t, c.Apply(Gesture{Type: "wheel"}))
}
