// Package packet implements the fixed-header packet envelope and the
// process-wide type registry that maps a one-byte packet_type tag to a
// constructor for its logical body.
//
// The envelope is deliberately fixed-width in its header fields
// (destination, origin, sent) so that routing code can inspect a frame's
// header without paying the cost of decoding the body: see DecodeHeader.
package packet

import (
	"fmt"
	"sync"
)

// Width limits for the fixed header fields, in bytes.
const (
	DestinationWidth = 64
	OriginWidth      = 64
	SentWidth        = 40

	// HeaderSize is the total size, in bytes, of the fixed packet header:
	// 1 (type) + 1 (flags) + 64 (destination) + 64 (origin) + 40 (sent).
	HeaderSize = 1 + 1 + DestinationWidth + OriginWidth + SentWidth
)

// Flags is the one-byte bitmask carried in every packet header.
type Flags uint8

const (
	// FlagRequest marks a packet as carrying a Request body.
	FlagRequest Flags = 1 << 0
	// FlagResponse marks a packet as carrying a Response body.
	FlagResponse Flags = 1 << 1
	// FlagOneWay marks a packet that expects no reply.
	FlagOneWay Flags = 1 << 2
)

// Has reports whether all bits in want are set in f.
func (f Flags) Has(want Flags) bool { return f&want == want }

// Body is implemented by every registered packet body type. A Body must
// be able to marshal and unmarshal itself through an externally supplied
// Serializer, so that the wire representation of a given packet_type can
// vary (binary/XML/JSON) without changing the envelope logic.
type Body interface {
	// PacketType returns the registered tag for this body's concrete type.
	PacketType() uint8
}

// Packet is the logical envelope: fixed header fields plus a polymorphic
// body selected by Type.
type Packet struct {
	Type        uint8
	Flags       Flags
	Destination string
	Origin      string
	Sent        string // ISO-8601 with offset, e.g. "2024-01-15T10:30:00.0000000+00:00"
	Body        Body
}

// Constructor returns a new, empty instance of a registered body type.
type Constructor func() Body

// Registry is a process-wide mapping from packet_type to Constructor.
// Registration is expected to happen during package init and is
// append-only: registering the same tag twice is a programmer error.
type Registry struct {
	mu    sync.RWMutex
	ctors map[uint8]Constructor
}

// NewRegistry returns an empty Registry. Most callers should use
// DefaultRegistry and the package-level Register function instead;
// NewRegistry exists so tests can build isolated registries.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[uint8]Constructor)}
}

// Register associates packetType with ctor. It panics if packetType is
// already registered, matching the "duplicate registration is a
// programmer error" rule in the envelope's data model.
func (r *Registry) Register(packetType uint8, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.ctors[packetType]; exists {
		panic(fmt.Sprintf("packet: type %d already registered", packetType))
	}
	r.ctors[packetType] = ctor
}

// New constructs an empty Body for packetType, or reports
// ErrUnregisteredPacketType.
func (r *Registry) New(packetType uint8) (Body, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[packetType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("packet: type %d: %w", packetType, ErrUnregisteredPacketType)
	}
	return ctor(), nil
}

// DefaultRegistry is the process-wide registry used by the package-level
// Register/New helpers and by connections that are not given an explicit
// *Registry.
var DefaultRegistry = NewRegistry()

// Register registers ctor for packetType in DefaultRegistry.
func Register(packetType uint8, ctor Constructor) {
	DefaultRegistry.Register(packetType, ctor)
}
