package protocol

import "fmt"

// Kind is the wire tag of a Message.
type Kind uint8

// Requests flow client to server, responses server to client. Deleting is
// split into KindDeleteRequest and KindDeleted so each direction has its own
// variant.
const (
	KindConnect Kind = iota + 1
	KindDisconnect
	KindDrawRequest
	KindUpdateRequest
	KindDeleteRequest
	KindClearRequest
	KindUndo

	KindDrawResponse
	KindUpdateResponse
	KindDeleted
	KindClearResponse
	KindLoadCanvas
	KindNotification
)

var kindNames = map[Kind]string{
	KindConnect:        "Connect",
	KindDisconnect:     "Disconnect",
	KindDrawRequest:    "DrawRequest",
	KindUpdateRequest:  "UpdateRequest",
	KindDeleteRequest:  "DeleteRequest",
	KindClearRequest:   "ClearRequest",
	KindUndo:           "Undo",
	KindDrawResponse:   "DrawResponse",
	KindUpdateResponse: "UpdateResponse",
	KindDeleted:        "Deleted",
	KindClearResponse:  "ClearResponse",
	KindLoadCanvas:     "LoadCanvas",
	KindNotification:   "Notification",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// IsRequest reports whether k is sent by clients.
func (k Kind) IsRequest() bool {
	return k >= KindConnect && k <= KindUndo
}

// Message is any value that can be framed and sent over the wire.
type Message interface {
	Kind() Kind
}

// Connect asks the server to bind the connection to Nickname.
type Connect struct {
	Nickname string
}

// Disconnect ends the session gracefully.
type Disconnect struct{}

// DrawRequest adds Element to the canvas.
type DrawRequest struct {
	Element Element
}

// UpdateRequest replaces the element of entry ID, keeping author and position.
type UpdateRequest struct {
	ID      uint64
	Element Element
}

// DeleteRequest removes entry ID from the canvas.
type DeleteRequest struct {
	ID uint64
}

// ClearRequest removes every entry, or only the requester's own entries when
// OnlyOwned is set.
type ClearRequest struct {
	OnlyOwned bool
}

// Undo reverts the requester's most recent canvas mutation.
type Undo struct{}

// DrawResponse announces a new (or restored) entry.
type DrawResponse struct {
	Entry Entry
}

// UpdateResponse announces the new contents of entry ID.
type UpdateResponse struct {
	ID    uint64
	Entry Entry
}

// Deleted announces that entry ID was removed.
type Deleted struct {
	ID uint64
}

// ClearResponse announces a batch removal.
type ClearResponse struct {
	IDs []uint64
}

// LoadCanvas carries the full canvas; receivers replace their local state.
type LoadCanvas struct {
	Entries []Entry
}

// Notification is human-readable text for the receiving user.
type Notification struct {
	Text string
}

func (Connect) Kind() Kind        { return KindConnect }
func (Disconnect) Kind() Kind     { return KindDisconnect }
func (DrawRequest) Kind() Kind    { return KindDrawRequest }
func (UpdateRequest) Kind() Kind  { return KindUpdateRequest }
func (DeleteRequest) Kind() Kind  { return KindDeleteRequest }
func (ClearRequest) Kind() Kind   { return KindClearRequest }
func (Undo) Kind() Kind           { return KindUndo }
func (DrawResponse) Kind() Kind   { return KindDrawResponse }
func (UpdateResponse) Kind() Kind { return KindUpdateResponse }
func (Deleted) Kind() Kind        { return KindDeleted }
func (ClearResponse) Kind() Kind  { return KindClearResponse }
func (LoadCanvas) Kind() Kind     { return KindLoadCanvas }
func (Notification) Kind() Kind   { return KindNotification }
