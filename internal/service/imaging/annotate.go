package imaging

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/zhouzirui/z-pilot/backend/internal/analysis/boxes"
)

const (
	outlineWidth = 4
	labelOffsetX = 8
	labelOffsetY = -20
)

// BoxColor is the outline and label colour.
var BoxColor = color.RGBA{R: 255, A: 255}

// Clone copies img into a fresh RGBA canvas so annotating does not touch the source.
func Clone(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Annotate draws every rectangle and its label onto img in place.
func Annotate(img draw.Image, annotations []boxes.Annotation) {
	for _, ann := range annotations {
		drawRect(img, ann.Rect, BoxColor)
		if ann.Label != "" {
			drawLabel(img, ann.Rect.X1+labelOffsetX, ann.Rect.Y1+labelOffsetY, ann.Label, BoxColor)
		}
	}
}

// drawRect strokes the outline inward from the rectangle edges, clipped to img.
func drawRect(img draw.Image, r boxes.Rect, col color.Color) {
	bounds := img.Bounds()
	src := image.NewUniform(col)

	fill := func(x0, y0, x1, y1 int) {
		area := image.Rect(x0, y0, x1, y1).Intersect(bounds)
		if !area.Empty() {
			draw.Draw(img, area, src, image.Point{}, draw.Src)
		}
	}

	// Outer edges are inclusive, matching a pixel-grid rectangle from (X1,Y1) to (X2,Y2).
	x0, y0, x1, y1 := r.X1, r.Y1, r.X2+1, r.Y2+1
	t := outlineWidth
	fill(x0, y0, x1, min(y0+t, y1)) // top
	fill(x0, max(y1-t, y0), x1, y1) // bottom
	fill(x0, y0, min(x0+t, x1), y1) // left
	fill(max(x1-t, x0), y0, x1, y1) // right
}

// drawLabel renders text whose top-left corner sits at (x, y).
func drawLabel(img draw.Image, x, y int, text string, col color.Color) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, y+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
}
