package packet

// ResponseType is the registered packet_type tag for Response bodies.
const ResponseType uint8 = 2

// StatusOK is the Status value of a successful Response.
const StatusOK = "ok"

// Response carries the originating RequestID, a success/error status
// code string, and an optional serializer-encoded body payload.
type Response struct {
	RequestID uint64
	Status    string
	Body      []byte
}

// PacketType implements Body.
func (*Response) PacketType() uint8 { return ResponseType }

// Success reports whether the response carries StatusOK.
func (r *Response) Success() bool { return r.Status == StatusOK }

func init() {
	Register(ResponseType, func() Body { return &Response{} })
}
