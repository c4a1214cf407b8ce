package protocol

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

var red = Colour{255, 0, 0, 255}

func sampleEntries() []Entry {
	return []Entry{
		{ID: 0, Author: "alice", Element: Line{X1: 0, Y1: 0, X2: 10, Y2: 10, Colour: red}},
		{ID: 7, Author: "bob", Element: Circle{X: 65535, Y: 1, Radius: 300, Colour: Colour{0, 0, 0, 0}}},
		{ID: 1 << 40, Author: "", Element: Rect{X: 5, Y: 6, Width: 70, Height: 80, Colour: Colour{1, 2, 3, 4}}},
		{ID: 3, Author: "émile", Element: Text{X: 1, Y: 2, Text: "", Colour: red}},
	}
}

// TestRoundTrip verifies that every message variant survives Encode followed
// by Decode unchanged, including empty strings and empty collections.
func TestRoundTrip(t *testing.T) {
	entries := sampleEntries()

	messages := []Message{
		Connect{Nickname: "alice"},
		Connect{Nickname: ""},
		Disconnect{},
		DrawRequest{Element: entries[0].Element},
		DrawRequest{Element: Text{X: 9, Y: 9, Text: "hello, world", Colour: red}},
		UpdateRequest{ID: 42, Element: entries[1].Element},
		DeleteRequest{ID: 0},
		DeleteRequest{ID: 1<<64 - 1},
		ClearRequest{OnlyOwned: true},
		ClearRequest{OnlyOwned: false},
		Undo{},
		DrawResponse{Entry: entries[2]},
		UpdateResponse{ID: 3, Entry: entries[3]},
		Deleted{ID: 12},
		ClearResponse{IDs: []uint64{}},
		ClearResponse{IDs: []uint64{0, 1, 300, 1 << 50}},
		LoadCanvas{Entries: []Entry{}},
		LoadCanvas{Entries: entries},
		Notification{Text: "[+] alice"},
		Notification{Text: ""},
	}

	for _, m := range messages {
		t.Run(m.Kind().String(), func(t *testing.T) {
			frame, err := Encode(m)
			require.NoError(t, err)

			decoded, err := Decode(frame)
			require.NoError(t, err)
			assert.Equal(t, m, decoded)
		})
	}
}

func TestNilCollectionsDecodeAsEmpty(t *testing.T) {
	cases := []struct {
		nilMsg   Message
		emptyMsg Message
	}{
		{ClearResponse{IDs: nil}, ClearResponse{IDs: []uint64{}}},
		{LoadCanvas{Entries: nil}, LoadCanvas{Entries: []Entry{}}},
	}

	for _, tc := range cases {
		t.Run(tc.nilMsg.Kind().String(), func(t *testing.T) {
			nilFrame, err := Encode(tc.nilMsg)
			require.NoError(t, err)
			emptyFrame, err := Encode(tc.emptyMsg)
			require.NoError(t, err)
			assert.Equal(t, emptyFrame, nilFrame)

			decoded, err := Decode(nilFrame)
			require.NoError(t, err)
			assert.Equal(t, tc.emptyMsg, decoded)
		})
	}
}

func TestEncodeWritesLittleEndianLength(t *testing.T) {
	frame, err := Encode(Notification{Text: "hi"})
	require.NoError(t, err)

	length := binary.LittleEndian.Uint32(frame[:HeaderSize])
	assert.Equal(t, len(frame)-HeaderSize, int(length))
}

func TestEncodeRejectsNilElement(t *testing.T) {
	_, err := Encode(DrawRequest{})
	assert.ErrorIs(t, err, ErrEncode)

	_, err = Encode(nil)
	assert.ErrorIs(t, err, ErrEncode)
}

// TestDecodeFailures verifies that malformed payloads return ErrDecode
// instead of panicking.
func TestDecodeFailures(t *testing.T) {
	valid, err := Marshal(DrawResponse{Entry: sampleEntries()[0]})
	require.NoError(t, err)

	unknownKind := protowire.AppendTag(nil, fieldKind, protowire.VarintType)
	unknownKind = protowire.AppendVarint(unknownKind, 99)

	wrongType := protowire.AppendTag(nil, fieldKind, protowire.BytesType)
	wrongType = protowire.AppendString(wrongType, "x")

	drawWithoutElement := protowire.AppendTag(nil, fieldKind, protowire.VarintType)
	drawWithoutElement = protowire.AppendVarint(drawWithoutElement, uint64(KindDrawRequest))

	bigCoord := protowire.AppendTag(nil, elemKind, protowire.VarintType)
	bigCoord = protowire.AppendVarint(bigCoord, uint64(ElementLine))
	bigCoord = protowire.AppendTag(bigCoord, elemA, protowire.VarintType)
	bigCoord = protowire.AppendVarint(bigCoord, 70000)
	bigCoord = protowire.AppendTag(bigCoord, elemColour, protowire.BytesType)
	bigCoord = protowire.AppendBytes(bigCoord, red[:])
	drawBigCoord := append([]byte(nil), drawWithoutElement...)
	drawBigCoord = protowire.AppendTag(drawBigCoord, fieldElement, protowire.BytesType)
	drawBigCoord = protowire.AppendBytes(drawBigCoord, bigCoord)

	cases := map[string][]byte{
		"empty":           {},
		"truncated":       valid[:len(valid)-3],
		"unknown kind":    unknownKind,
		"wrong wire type": wrongType,
		"missing element": drawWithoutElement,
		"oversized coord": drawBigCoord,
		"garbage":         {0xff, 0xff, 0xff, 0xff, 0xff},
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				_, err := Unmarshal(payload)
				assert.ErrorIs(t, err, ErrDecode)
			})
		})
	}
}

func TestUnmarshalSkipsUnknownFields(t *testing.T) {
	payload, err := Marshal(Notification{Text: "note"})
	require.NoError(t, err)

	payload = protowire.AppendTag(payload, 99, protowire.BytesType)
	payload = protowire.AppendString(payload, "future field")

	m, err := Unmarshal(payload)
	require.NoError(t, err)
	assert.Equal(t, Notification{Text: "note"}, m)
}

func TestDecodeRejectsLengthMismatch(t *testing.T) {
	frame, err := Encode(Undo{})
	require.NoError(t, err)

	_, err = Decode(append(frame, 0))
	assert.ErrorIs(t, err, ErrDecode)

	_, err = Decode(frame[:2])
	assert.ErrorIs(t, err, ErrDecode)
}

func TestReadFrameSequence(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, Connect{Nickname: "A"}))
	require.NoError(t, WriteMessage(&buf, Undo{}))

	first, err := ReadMessage(&buf, 0)
	require.NoError(t, err)
	assert.Equal(t, Connect{Nickname: "A"}, first)

	second, err := ReadMessage(&buf, 0)
	require.NoError(t, err)
	assert.Equal(t, Undo{}, second)

	_, err = ReadMessage(&buf, 0)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadFrameTruncatedPayload(t *testing.T) {
	frame, err := Encode(Notification{Text: "truncated"})
	require.NoError(t, err)

	_, err = ReadFrame(bytes.NewReader(frame[:len(frame)-1]), 0)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReadFrameTooLarge(t *testing.T) {
	var header [HeaderSize]byte
	binary.LittleEndian.PutUint32(header[:], 1<<20)

	_, err := ReadFrame(bytes.NewReader(header[:]), 1024)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

// TestReadFrameWaitsForPartialFrames verifies that a frame split across
// several writes is only returned once complete.
func TestReadFrameWaitsForPartialFrames(t *testing.T) {
	frame, err := Encode(DrawRequest{Element: Line{X2: 10, Y2: 10, Colour: red}})
	require.NoError(t, err)

	pr, pw := io.Pipe()
	go func() {
		for _, b := range frame {
			_, _ = pw.Write([]byte{b})
		}
		_ = pw.Close()
	}()

	m, err := ReadMessage(pr, 0)
	require.NoError(t, err)
	assert.Equal(t, DrawRequest{Element: Line{X2: 10, Y2: 10, Colour: red}}, m)
}

func TestEntryString(t *testing.T) {
	e := Entry{ID: 4, Author: "A", Element: Circle{X: 1, Y: 2, Radius: 3, Colour: red}}
	assert.Equal(t, "[4] by [A], Circle (1, 2) radius 3 [255 0 0 255]", e.String())
}

func TestKindClassification(t *testing.T) {
	assert.True(t, KindConnect.IsRequest())
	assert.True(t, KindUndo.IsRequest())
	assert.False(t, KindDeleted.IsRequest())
	assert.False(t, KindNotification.IsRequest())
	assert.Equal(t, "Kind(200)", Kind(200).String())
}

func TestParseElementKind(t *testing.T) {
	k, ok := ParseElementKind("rectangle")
	assert.True(t, ok)
	assert.Equal(t, ElementRect, k)

	_, ok = ParseElementKind("triangle")
	assert.False(t, ok)
}
