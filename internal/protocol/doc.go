// Package protocol defines the NetSketch wire vocabulary: canvas elements and
// entries, the request and response messages exchanged between clients and
// the server, and the length-prefixed binary framing that carries them over a
// stream socket.
//
// A frame is a 4-byte little-endian payload length followed by the payload.
// Payloads use the protobuf wire format (field tags, varints and
// length-delimited bytes), so unknown fields are skipped and every message is
// self-describing without generated code.
package protocol
