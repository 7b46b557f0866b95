// Package display holds screen geometry types and window placement math.
package display

// Rect is a rectangle in screen coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Point is a position in screen coordinates.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Source reports display geometry for window placement. Implementations wrap
// the display toolkit; tests substitute fixed bounds.
type Source interface {
	// DisplayNearestCursor returns the bounds of the display closest to the
	// current cursor position.
	DisplayNearestCursor() Rect
}

// DefaultBounds computes the initial placement for a window with no saved
// state: two thirds of the display in each dimension, centered within it.
func DefaultBounds(d Rect) Rect {
	return CenterIn(d, d.Width*2/3, d.Height*2/3)
}

// CenterIn centers a w x h rectangle inside outer. Integer division may leave
// a 1px asymmetry; that is acceptable.
func CenterIn(outer Rect, w, h int) Rect {
	return Rect{
		X:      outer.X + (outer.Width-w)/2,
		Y:      outer.Y + (outer.Height-h)/2,
		Width:  w,
		Height: h,
	}
}
