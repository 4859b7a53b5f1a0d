package boxes

import "fmt"

// Kind tags the coordinate system a model-reported box is expressed in.
type Kind string

const (
	// Normalized1000 boxes use a 0-1000 scale on both axes.
	Normalized1000 Kind = "normalized_1000"
	// PixelAbsolute boxes are already in pixels of the target image.
	PixelAbsolute Kind = "pixel_absolute"
	// XYWH boxes carry origin plus size inside a ReferenceSize square frame.
	XYWH Kind = "xywh"
	// Unknown marks objects that match none of the shapes above.
	Unknown Kind = "unknown"
)

// ReferenceSize is the square frame XYWH boxes are assumed to be measured in.
const ReferenceSize = 1024

// Order selects how the four Normalized1000 components are read.
type Order string

const (
	// OrderYYXX reads [y1, y2, x1, x2].
	OrderYYXX Order = "yyxx"
	// OrderYXYX reads [y1, x1, y2, x2], the layout Gemini documents for box_2d.
	OrderYXYX Order = "yxyx"
)

// ParseOrder validates an order name. Empty selects OrderYYXX.
func ParseOrder(raw string) (Order, error) {
	switch Order(raw) {
	case "", OrderYYXX:
		return OrderYYXX, nil
	case OrderYXYX:
		return OrderYXYX, nil
	default:
		return "", fmt.Errorf("unknown box order %q (want %q or %q)", raw, OrderYYXX, OrderYXYX)
	}
}

// BoundingBox is one region reported by the model.
//
// Coords holds the components exactly as the model sent them:
// Normalized1000 in the configured Order, PixelAbsolute as x1,y1,x2,y2 and
// XYWH as x,y,width,height.
type BoundingBox struct {
	Kind   Kind
	Coords [4]float64
	Label  string
	// Raw keeps the original object for logging skipped boxes.
	Raw map[string]any
}

// Rect is an absolute pixel rectangle with X1<=X2 and Y1<=Y2.
type Rect struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Annotation pairs a rectangle with the label drawn beside it.
type Annotation struct {
	Rect  Rect
	Label string
}
