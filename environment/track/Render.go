package track

import (
	"image/color"
	"math"

	"github.com/ByteArena/box2d"
	"github.com/fogleman/gg"
	"github.com/pkg/errors"
)

// Rendering parameters
const (
	ViewportW = 800
	ViewportH = 560
	Scale     = 5.0
)

var (
	groundShade  = color.RGBA{R: 30, G: 30, B: 30, A: 255}
	wallColour   = color.RGBA{R: 255, G: 166, B: 0, A: 255}
	gateColour   = color.RGBA{R: 77, G: 77, B: 128, A: 255}
	nextColour   = color.RGBA{R: 80, G: 220, B: 100, A: 255}
	rayColour    = color.RGBA{R: 200, G: 60, B: 60, A: 255}
	carColour    = color.RGBA{R: 128, G: 102, B: 230, A: 255}
	contactShade = color.RGBA{R: 255, G: 60, B: 60, A: 255}
)

// WorldToPixelCoord converts world coordinates to image coordinates
func WorldToPixelCoord(x, y float64) (float64, float64) {
	return ViewportW/2.0 + Scale*x, ViewportH/2.0 - Scale*y
}

// Render draws the track and the car and saves the image as a PNG to
// filename
func (c *Car) Render(filename string) error {
	dc := gg.NewContext(ViewportW, ViewportH)
	dc.SetColor(groundShade)
	dc.Clear()

	// Walls
	dc.SetColor(wallColour)
	dc.SetLineWidth(3.0)
	for _, wall := range [][][2]float64{c.inner, c.outer} {
		for i := range wall {
			p1 := wall[i]
			p2 := wall[(i+1)%len(wall)]
			x1, y1 := WorldToPixelCoord(p1[0], p1[1])
			x2, y2 := WorldToPixelCoord(p2[0], p2[1])
			dc.DrawLine(x1, y1, x2, y2)
		}
	}
	dc.Stroke()

	// Gates
	next := c.NextTrigger()
	for i := range c.inner {
		dc.ClearPath()
		if i == next {
			dc.SetColor(nextColour)
			dc.SetLineWidth(2.0)
		} else {
			dc.SetColor(gateColour)
			dc.SetLineWidth(1.0)
		}
		x1, y1 := WorldToPixelCoord(c.inner[i][0], c.inner[i][1])
		x2, y2 := WorldToPixelCoord(c.outer[i][0], c.outer[i][1])
		dc.DrawLine(x1, y1, x2, y2)
		dc.Stroke()
	}

	// Rays
	dc.SetColor(rayColour)
	dc.SetLineWidth(1.0)
	origin := c.body.GetPosition()
	ox, oy := WorldToPixelCoord(origin.X, origin.Y)
	for i, fraction := range c.rays {
		theta := 2 * math.Pi * float64(i) / float64(len(c.rays))
		hit := c.body.GetWorldPoint(box2d.MakeB2Vec2(
			fraction*c.RayLength*math.Cos(theta),
			fraction*c.RayLength*math.Sin(theta),
		))
		hx, hy := WorldToPixelCoord(hit.X, hit.Y)
		dc.DrawLine(ox, oy, hx, hy)
	}
	dc.Stroke()

	// Car
	carFix := c.body.GetFixtureList()
	for carFix != nil {
		shape := carFix.M_shape.(*box2d.B2PolygonShape)
		dc.ClearPath()
		for i, vertex := range shape.M_vertices {
			if i >= shape.M_count {
				break
			}
			vertex = box2d.B2TransformVec2Mul(c.body.M_xf, vertex)
			dc.LineTo(WorldToPixelCoord(vertex.X, vertex.Y))
		}
		dc.ClosePath()

		if c.hasContact {
			dc.SetColor(contactShade)
		} else {
			dc.SetColor(carColour)
		}
		dc.Fill()
		carFix = carFix.M_next
	}

	if err := dc.SavePNG(filename); err != nil {
		return errors.Wrapf(err, "render: could not save %v", filename)
	}
	return nil
}
