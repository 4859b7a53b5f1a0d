package boxes

// ToRect converts a box to absolute pixels for a width x height image.
// It returns false for Unknown boxes.
func ToRect(box BoundingBox, width, height int, order Order) (Rect, bool) {
	w, h := float64(width), float64(height)
	c := box.Coords

	var r Rect
	switch box.Kind {
	case Normalized1000:
		var y1, x1, y2, x2 float64
		if order == OrderYXYX {
			y1, x1, y2, x2 = c[0], c[1], c[2], c[3]
		} else {
			y1, y2, x1, x2 = c[0], c[1], c[2], c[3]
		}
		r = Rect{
			X1: int(x1 / 1000 * w),
			Y1: int(y1 / 1000 * h),
			X2: int(x2 / 1000 * w),
			Y2: int(y2 / 1000 * h),
		}
	case PixelAbsolute:
		r = Rect{X1: int(c[0]), Y1: int(c[1]), X2: int(c[2]), Y2: int(c[3])}
	case XYWH:
		x1 := c[0] / ReferenceSize
		y1 := c[1] / ReferenceSize
		x2 := (c[0] + c[2]) / ReferenceSize
		y2 := (c[1] + c[3]) / ReferenceSize
		r = Rect{
			X1: int(x1 * w),
			Y1: int(y1 * h),
			X2: int(x2 * w),
			Y2: int(y2 * h),
		}
	default:
		return Rect{}, false
	}

	return r.Canon(), true
}

// Canon swaps reversed corners so that X1<=X2 and Y1<=Y2.
func (r Rect) Canon() Rect {
	if r.X1 > r.X2 {
		r.X1, r.X2 = r.X2, r.X1
	}
	if r.Y1 > r.Y2 {
		r.Y1, r.Y2 = r.Y2, r.Y1
	}
	return r
}

// Annotations maps every recognized box onto the image size and returns the
// skipped (unknown) boxes separately so the caller can log them.
func Annotations(list []BoundingBox, width, height int, order Order) ([]Annotation, []BoundingBox) {
	out := make([]Annotation, 0, len(list))
	var skipped []BoundingBox
	for _, box := range list {
		rect, ok := ToRect(box, width, height, order)
		if !ok {
			skipped = append(skipped, box)
			continue
		}
		out = append(out, Annotation{Rect: rect, Label: box.Label})
	}
	return out, skipped
}
