package protocol

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	// ErrDecode is wrapped by every payload decoding failure.
	ErrDecode = errors.New("protocol: malformed payload")
	// ErrEncode is wrapped by every payload encoding failure.
	ErrEncode = errors.New("protocol: cannot encode message")
)

// Message fields.
const (
	fieldKind      protowire.Number = 1
	fieldText      protowire.Number = 2
	fieldElement   protowire.Number = 3
	fieldID        protowire.Number = 4
	fieldOnlyOwned protowire.Number = 5
	fieldEntry     protowire.Number = 6
	fieldIDs       protowire.Number = 7
)

// Element fields. Coordinates occupy fields 2-5 in declaration order.
const (
	elemKind   protowire.Number = 1
	elemA      protowire.Number = 2
	elemB      protowire.Number = 3
	elemC      protowire.Number = 4
	elemD      protowire.Number = 5
	elemColour protowire.Number = 6
	elemText   protowire.Number = 7
)

// Entry fields.
const (
	entryID      protowire.Number = 1
	entryElement protowire.Number = 2
	entryAuthor  protowire.Number = 3
)

// Marshal encodes m as a payload without the length prefix.
func Marshal(m Message) ([]byte, error) {
	return AppendMessage(nil, m)
}

// AppendMessage appends the payload encoding of m to b.
func AppendMessage(b []byte, m Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil message", ErrEncode)
	}

	b = appendVarintField(b, fieldKind, uint64(m.Kind()))

	var err error
	switch msg := m.(type) {
	case Connect:
		b = appendStringField(b, fieldText, msg.Nickname)
	case Disconnect, Undo:
	case DrawRequest:
		b, err = appendElementField(b, fieldElement, msg.Element)
	case UpdateRequest:
		b = appendVarintField(b, fieldID, msg.ID)
		b, err = appendElementField(b, fieldElement, msg.Element)
	case DeleteRequest:
		b = appendVarintField(b, fieldID, msg.ID)
	case ClearRequest:
		b = appendVarintField(b, fieldOnlyOwned, protowire.EncodeBool(msg.OnlyOwned))
	case DrawResponse:
		b, err = appendEntryField(b, fieldEntry, msg.Entry)
	case UpdateResponse:
		b = appendVarintField(b, fieldID, msg.ID)
		b, err = appendEntryField(b, fieldEntry, msg.Entry)
	case Deleted:
		b = appendVarintField(b, fieldID, msg.ID)
	case ClearResponse:
		var packed []byte
		for _, id := range msg.IDs {
			packed = protowire.AppendVarint(packed, id)
		}
		b = protowire.AppendTag(b, fieldIDs, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	case LoadCanvas:
		for _, entry := range msg.Entries {
			if b, err = appendEntryField(b, fieldEntry, entry); err != nil {
				break
			}
		}
	case Notification:
		b = appendStringField(b, fieldText, msg.Text)
	default:
		return nil, fmt.Errorf("%w: unsupported message type %T", ErrEncode, m)
	}

	if err != nil {
		return nil, err
	}
	return b, nil
}

// AppendEntry appends the encoding of a single entry to b. The canvas digest
// is computed over this representation.
func AppendEntry(b []byte, e Entry) ([]byte, error) {
	b = appendVarintField(b, entryID, e.ID)
	b, err := appendElementField(b, entryElement, e.Element)
	if err != nil {
		return nil, err
	}
	return appendStringField(b, entryAuthor, e.Author), nil
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendStringField(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendEntryField(b []byte, num protowire.Number, e Entry) ([]byte, error) {
	inner, err := AppendEntry(nil, e)
	if err != nil {
		return nil, err
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, inner), nil
}

func appendElementField(b []byte, num protowire.Number, e Element) ([]byte, error) {
	inner, err := appendElement(nil, e)
	if err != nil {
		return nil, err
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, inner), nil
}

func appendElement(b []byte, e Element) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: nil element", ErrEncode)
	}

	var coords []uint16
	var colour Colour
	var text *string

	switch el := e.(type) {
	case Line:
		coords, colour = []uint16{el.X1, el.Y1, el.X2, el.Y2}, el.Colour
	case Circle:
		coords, colour = []uint16{el.X, el.Y, el.Radius}, el.Colour
	case Rect:
		coords, colour = []uint16{el.X, el.Y, el.Width, el.Height}, el.Colour
	case Text:
		coords, colour, text = []uint16{el.X, el.Y}, el.Colour, &el.Text
	default:
		return nil, fmt.Errorf("%w: unsupported element type %T", ErrEncode, e)
	}

	b = appendVarintField(b, elemKind, uint64(e.ElementKind()))
	for i, c := range coords {
		b = appendVarintField(b, elemA+protowire.Number(i), uint64(c))
	}
	b = protowire.AppendTag(b, elemColour, protowire.BytesType)
	b = protowire.AppendBytes(b, colour[:])
	if text != nil {
		b = appendStringField(b, elemText, *text)
	}
	return b, nil
}

// Unmarshal decodes a payload produced by Marshal. It never panics; any
// truncated, mistyped or unrecognised input yields an error wrapping
// ErrDecode.
//
// The wire does not distinguish a nil collection from an empty one, so
// ClearResponse.IDs and LoadCanvas.Entries always decode as non-nil slices.
func Unmarshal(payload []byte) (Message, error) {
	var (
		kind      Kind
		hasKind   bool
		text      string
		element   []byte
		hasElem   bool
		id        uint64
		onlyOwned bool
		entries   [][]byte
		ids       = []uint64{}
	)

	err := walkFields(payload, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldKind:
			v, n, err := consumeVarint(typ, b)
			if err == nil && v > math.MaxUint8 {
				err = fmt.Errorf("%w: message kind %d out of range", ErrDecode, v)
			}
			kind, hasKind = Kind(v), true
			return n, err
		case fieldText:
			v, n, err := consumeBytes(typ, b)
			text = string(v)
			return n, err
		case fieldElement:
			v, n, err := consumeBytes(typ, b)
			element, hasElem = v, true
			return n, err
		case fieldID:
			v, n, err := consumeVarint(typ, b)
			id = v
			return n, err
		case fieldOnlyOwned:
			v, n, err := consumeVarint(typ, b)
			onlyOwned = protowire.DecodeBool(v)
			return n, err
		case fieldEntry:
			v, n, err := consumeBytes(typ, b)
			entries = append(entries, v)
			return n, err
		case fieldIDs:
			return consumeIDs(typ, b, &ids)
		default:
			return skipField(num, typ, b)
		}
	})
	if err != nil {
		return nil, err
	}
	if !hasKind {
		return nil, fmt.Errorf("%w: missing message kind", ErrDecode)
	}

	switch kind {
	case KindConnect:
		return Connect{Nickname: text}, nil
	case KindDisconnect:
		return Disconnect{}, nil
	case KindUndo:
		return Undo{}, nil
	case KindDrawRequest, KindUpdateRequest:
		if !hasElem {
			return nil, fmt.Errorf("%w: %v without element", ErrDecode, kind)
		}
		el, err := decodeElement(element)
		if err != nil {
			return nil, err
		}
		if kind == KindDrawRequest {
			return DrawRequest{Element: el}, nil
		}
		return UpdateRequest{ID: id, Element: el}, nil
	case KindDeleteRequest:
		return DeleteRequest{ID: id}, nil
	case KindClearRequest:
		return ClearRequest{OnlyOwned: onlyOwned}, nil
	case KindDrawResponse, KindUpdateResponse:
		if len(entries) != 1 {
			return nil, fmt.Errorf("%w: %v carries %d entries", ErrDecode, kind, len(entries))
		}
		entry, err := decodeEntry(entries[0])
		if err != nil {
			return nil, err
		}
		if kind == KindDrawResponse {
			return DrawResponse{Entry: entry}, nil
		}
		return UpdateResponse{ID: id, Entry: entry}, nil
	case KindDeleted:
		return Deleted{ID: id}, nil
	case KindClearResponse:
		return ClearResponse{IDs: ids}, nil
	case KindLoadCanvas:
		decoded := make([]Entry, 0, len(entries))
		for _, raw := range entries {
			entry, err := decodeEntry(raw)
			if err != nil {
				return nil, err
			}
			decoded = append(decoded, entry)
		}
		return LoadCanvas{Entries: decoded}, nil
	case KindNotification:
		return Notification{Text: text}, nil
	default:
		return nil, fmt.Errorf("%w: unknown message kind %d", ErrDecode, uint8(kind))
	}
}

func decodeEntry(b []byte) (Entry, error) {
	var (
		entry   Entry
		element []byte
		hasElem bool
	)

	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case entryID:
			v, n, err := consumeVarint(typ, b)
			entry.ID = v
			return n, err
		case entryElement:
			v, n, err := consumeBytes(typ, b)
			element, hasElem = v, true
			return n, err
		case entryAuthor:
			v, n, err := consumeBytes(typ, b)
			entry.Author = string(v)
			return n, err
		default:
			return skipField(num, typ, b)
		}
	})
	if err != nil {
		return Entry{}, err
	}
	if !hasElem {
		return Entry{}, fmt.Errorf("%w: entry without element", ErrDecode)
	}

	entry.Element, err = decodeElement(element)
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func decodeElement(b []byte) (Element, error) {
	var (
		kind      ElementKind
		coords    [4]uint16
		colour    Colour
		hasColour bool
		text      string
	)

	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == elemKind:
			v, n, err := consumeVarint(typ, b)
			if err == nil && v > math.MaxUint8 {
				err = fmt.Errorf("%w: element kind %d out of range", ErrDecode, v)
			}
			kind = ElementKind(v)
			return n, err
		case num >= elemA && num <= elemD:
			v, n, err := consumeVarint(typ, b)
			if err == nil && v > math.MaxUint16 {
				err = fmt.Errorf("%w: coordinate %d exceeds 16 bits", ErrDecode, v)
			}
			coords[num-elemA] = uint16(v)
			return n, err
		case num == elemColour:
			v, n, err := consumeBytes(typ, b)
			if err == nil && len(v) != len(colour) {
				err = fmt.Errorf("%w: colour has %d channels", ErrDecode, len(v))
			}
			copy(colour[:], v)
			hasColour = true
			return n, err
		case num == elemText:
			v, n, err := consumeBytes(typ, b)
			text = string(v)
			return n, err
		default:
			return skipField(num, typ, b)
		}
	})
	if err != nil {
		return nil, err
	}
	if !hasColour {
		return nil, fmt.Errorf("%w: element without colour", ErrDecode)
	}

	switch kind {
	case ElementLine:
		return Line{X1: coords[0], Y1: coords[1], X2: coords[2], Y2: coords[3], Colour: colour}, nil
	case ElementCircle:
		return Circle{X: coords[0], Y: coords[1], Radius: coords[2], Colour: colour}, nil
	case ElementRect:
		return Rect{X: coords[0], Y: coords[1], Width: coords[2], Height: coords[3], Colour: colour}, nil
	case ElementText:
		return Text{X: coords[0], Y: coords[1], Text: text, Colour: colour}, nil
	default:
		return nil, fmt.Errorf("%w: unknown element kind %d", ErrDecode, uint8(kind))
	}
}

// walkFields calls fn for every field in b. fn receives the bytes following
// the tag and returns how many of them it consumed.
func walkFields(b []byte, fn func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrDecode, protowire.ParseError(n))
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		b = b[m:]
	}
	return nil
}

func consumeVarint(typ protowire.Type, b []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, fmt.Errorf("%w: expected varint, got wire type %d", ErrDecode, typ)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, fmt.Errorf("%w: %v", ErrDecode, protowire.ParseError(n))
	}
	return v, n, nil
}

func consumeBytes(typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, fmt.Errorf("%w: expected bytes, got wire type %d", ErrDecode, typ)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, fmt.Errorf("%w: %v", ErrDecode, protowire.ParseError(n))
	}
	return v, n, nil
}

// consumeIDs accepts both the packed encoding written by Marshal and a
// single unpacked varint.
func consumeIDs(typ protowire.Type, b []byte, ids *[]uint64) (int, error) {
	if typ == protowire.VarintType {
		v, n, err := consumeVarint(typ, b)
		if err == nil {
			*ids = append(*ids, v)
		}
		return n, err
	}

	packed, n, err := consumeBytes(typ, b)
	if err != nil {
		return 0, err
	}
	for len(packed) > 0 {
		v, m := protowire.ConsumeVarint(packed)
		if m < 0 {
			return 0, fmt.Errorf("%w: %v", ErrDecode, protowire.ParseError(m))
		}
		*ids = append(*ids, v)
		packed = packed[m:]
	}
	return n, nil
}

func skipField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return 0, fmt.Errorf("%w: %v", ErrDecode, protowire.ParseError(n))
	}
	return n, nil
}
