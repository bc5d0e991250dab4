package packet

import "errors"

var (
	// ErrUnregisteredPacketType is returned when encoding or decoding a
	// packet_type tag that has no registered Constructor.
	ErrUnregisteredPacketType = errors.New("packet: unregistered packet type")

	// ErrFieldOverflow is returned when a textual header field's UTF-8
	// length exceeds its fixed wire width.
	ErrFieldOverflow = errors.New("packet: header field overflows its fixed width")

	// ErrHeaderTruncated is returned when decoding a buffer shorter than
	// HeaderSize.
	ErrHeaderTruncated = errors.New("packet: header truncated")
)
