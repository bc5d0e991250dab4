package packet

import (
	"strings"
	"unicode/utf8"
)

// Serializer is the external collaborator that marshals and unmarshals
// a packet body. Concrete serializers (binary/XML/JSON) are out of
// scope for this package; see the textcodec package for a sample.
type Serializer interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Header is the fixed, 170-byte-on-the-wire portion of a packet. It can
// be parsed without touching the body, which is the whole point of the
// fixed-width field layout: routing code only needs DecodeHeader.
type Header struct {
	Type        uint8
	Flags       Flags
	Destination string
	Origin      string
	Sent        string
}

// Encode serializes p into its 170-byte header followed by the
// serializer-encoded body. It fails with ErrFieldOverflow if Destination,
// Origin, or Sent exceed their fixed widths in UTF-8 bytes, and with
// ErrUnregisteredPacketType if p.Type has no registered Constructor (the
// registry is consulted only to validate the tag; the body itself is
// taken from p.Body).
func Encode(p *Packet, s Serializer, reg *Registry) ([]byte, error) {
	if _, err := reg.New(p.Type); err != nil {
		return nil, err
	}

	out := make([]byte, HeaderSize)
	out[0] = p.Type
	out[1] = byte(p.Flags)

	if err := putField(out[2:2+DestinationWidth], p.Destination); err != nil {
		return nil, err
	}
	if err := putField(out[66:66+OriginWidth], p.Origin); err != nil {
		return nil, err
	}
	if err := putField(out[130:130+SentWidth], p.Sent); err != nil {
		return nil, err
	}

	var body []byte
	if p.Body != nil {
		b, err := s.Marshal(p.Body)
		if err != nil {
			return nil, err
		}
		body = b
	}
	return append(out, body...), nil
}

// putField writes s, UTF-8 encoded, left-justified into dst and
// null-pads the remainder. It reports ErrFieldOverflow if s does not fit.
func putField(dst []byte, s string) error {
	if len(s) > len(dst) {
		return ErrFieldOverflow
	}
	if !utf8.ValidString(s) {
		return ErrFieldOverflow
	}
	copy(dst, s)
	for i := len(s); i < len(dst); i++ {
		dst[i] = 0
	}
	return nil
}

// trimField null-trims a fixed-width field back into a string, stopping
// at the first null byte.
func trimField(src []byte) string {
	if i := indexNull(src); i >= 0 {
		return string(src[:i])
	}
	return string(src)
}

func indexNull(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return -1
}

// DecodeHeader parses the fixed header from data without touching the
// body, so that routing/dispatch can inspect Destination/Origin/Type
// without paying for a body decode.
func DecodeHeader(data []byte) (Header, []byte, error) {
	if len(data) < HeaderSize {
		return Header{}, nil, ErrHeaderTruncated
	}
	h := Header{
		Type:        data[0],
		Flags:       Flags(data[1]),
		Destination: trimField(data[2 : 2+DestinationWidth]),
		Origin:      trimField(data[66 : 66+OriginWidth]),
		Sent:        strings.TrimRight(string(data[130:130+SentWidth]), "\x00"),
	}
	return h, data[HeaderSize:], nil
}

// Decode parses a full packet from data: the fixed header via
// DecodeHeader, then the body via reg's Constructor for the header's
// Type and s.Unmarshal.
func Decode(data []byte, s Serializer, reg *Registry) (*Packet, error) {
	h, rest, err := DecodeHeader(data)
	if err != nil {
		return nil, err
	}
	body, err := reg.New(h.Type)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		if err := s.Unmarshal(rest, body); err != nil {
			return nil, err
		}
	}
	return &Packet{
		Type:        h.Type,
		Flags:       h.Flags,
		Destination: h.Destination,
		Origin:      h.Origin,
		Sent:        h.Sent,
		Body:        body,
	}, nil
}
