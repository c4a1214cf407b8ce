package protocol

import "fmt"

// Colour is an RGBA colour, one byte per channel.
type Colour [4]byte

// ElementKind identifies the shape carried by an Element.
type ElementKind uint8

// Element kinds as they appear on the wire.
const (
	ElementLine ElementKind = iota + 1
	ElementCircle
	ElementRect
	ElementText
)

// String returns the lower-case name of the element kind.
func (k ElementKind) String() string {
	switch k {
	case ElementLine:
		return "line"
	case ElementCircle:
		return "circle"
	case ElementRect:
		return "rect"
	case ElementText:
		return "text"
	default:
		return fmt.Sprintf("element(%d)", uint8(k))
	}
}

// ParseElementKind maps a name produced by ElementKind.String back to a kind.
// "rectangle" is accepted as an alias of "rect".
func ParseElementKind(s string) (ElementKind, bool) {
	switch s {
	case "line":
		return ElementLine, true
	case "circle":
		return ElementCircle, true
	case "rect", "rectangle":
		return ElementRect, true
	case "text":
		return ElementText, true
	default:
		return 0, false
	}
}

// Element is one drawable shape. The concrete types are Line, Circle, Rect
// and Text; all are comparable values and are never mutated once built.
// Geometry is unsigned, so negative coordinates cannot be represented.
type Element interface {
	ElementKind() ElementKind
	fmt.Stringer
	isElement()
}

// Line is a straight segment from (X1, Y1) to (X2, Y2).
type Line struct {
	X1, Y1, X2, Y2 uint16
	Colour         Colour
}

// Circle is centred on (X, Y).
type Circle struct {
	X, Y, Radius uint16
	Colour       Colour
}

// Rect has its top-left corner at (X, Y).
type Rect struct {
	X, Y, Width, Height uint16
	Colour              Colour
}

// Text is a string anchored at (X, Y).
type Text struct {
	X, Y   uint16
	Text   string
	Colour Colour
}

func (Line) ElementKind() ElementKind   { return ElementLine }
func (Circle) ElementKind() ElementKind { return ElementCircle }
func (Rect) ElementKind() ElementKind   { return ElementRect }
func (Text) ElementKind() ElementKind   { return ElementText }

func (Line) isElement()   {}
func (Circle) isElement() {}
func (Rect) isElement()   {}
func (Text) isElement()   {}

func (l Line) String() string {
	return fmt.Sprintf("Line (%d, %d) -> (%d, %d) %v", l.X1, l.Y1, l.X2, l.Y2, l.Colour)
}

func (c Circle) String() string {
	return fmt.Sprintf("Circle (%d, %d) radius %d %v", c.X, c.Y, c.Radius, c.Colour)
}

func (r Rect) String() string {
	return fmt.Sprintf("Rect (%d, %d) %dx%d %v", r.X, r.Y, r.Width, r.Height, r.Colour)
}

func (t Text) String() string {
	return fmt.Sprintf("Text (%d, %d) %q %v", t.X, t.Y, t.Text, t.Colour)
}

// Entry is an element placed on the canvas. IDs are assigned by the server
// and are never reused within one server process.
type Entry struct {
	ID      uint64
	Element Element
	Author  string
}

func (e Entry) String() string {
	return fmt.Sprintf("[%d] by [%s], %v", e.ID, e.Author, e.Element)
}
