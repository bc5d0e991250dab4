package packet

// RequestType is the registered packet_type tag for Request bodies.
const RequestType uint8 = 1

// Request carries a unique RequestID, a handler name, and an arbitrary
// string-keyed argument map. It is one of the two concrete body shapes
// the core must recognize structurally (spec.md §3).
type Request struct {
	RequestID uint64
	Name      string
	Args      map[string]string
}

// PacketType implements Body.
func (*Request) PacketType() uint8 { return RequestType }

func init() {
	Register(RequestType, func() Body { return &Request{} })
}
