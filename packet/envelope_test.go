package packet

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// jsonSerializer is a minimal Serializer used only by this package's own
// tests; the textcodec package provides the sample serializer the rest
// of the module uses.
type jsonSerializer struct{}

func (jsonSerializer) Marshal(v any) ([]byte, error) { return json.Marshal(v) }
func (jsonSerializer) Unmarshal(d []byte, v any) error { return json.Unmarshal(d, v) }

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		pkt  *Packet
	}{
		{
			name: "request",
			pkt: &Packet{
				Type:        RequestType,
				Flags:       FlagRequest,
				Destination: "server",
				Origin:      "userA",
				Sent:        "2024-01-15T10:30:00.0000000+00:00",
				Body: &Request{
					RequestID: 42,
					Name:      "test",
					Args:      map[string]string{"k": "v"},
				},
			},
		},
		{
			name: "response",
			pkt: &Packet{
				Type:        ResponseType,
				Flags:       FlagResponse,
				Destination: "",
				Origin:      "server",
				Sent:        "2024-01-15T10:30:00.0000000+00:00",
				Body: &Response{
					RequestID: 42,
					Status:    StatusOK,
					Body:      []byte(`{"ok":true}`),
				},
			},
		},
		{
			name: "field at exact 64-byte boundary",
			pkt: &Packet{
				Type:        RequestType,
				Destination: strings.Repeat("d", DestinationWidth),
				Origin:      strings.Repeat("o", OriginWidth),
				Sent:        strings.Repeat("9", SentWidth),
				Body:        &Request{RequestID: 1, Name: "n", Args: map[string]string{}},
			},
		},
	}

	s := jsonSerializer{}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			enc, err := Encode(tc.pkt, s, DefaultRegistry)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if len(enc) < HeaderSize {
				t.Fatalf("encoded length %d < header size %d", len(enc), HeaderSize)
			}

			dec, err := Decode(enc, s, DefaultRegistry)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}

			if dec.Type != tc.pkt.Type || dec.Flags != tc.pkt.Flags ||
				dec.Destination != tc.pkt.Destination || dec.Origin != tc.pkt.Origin ||
				dec.Sent != tc.pkt.Sent {
				t.Fatalf("header mismatch: got %+v, want %+v", dec, tc.pkt)
			}

			if diff := cmp.Diff(tc.pkt.Body, dec.Body); diff != "" {
				t.Fatalf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncodeFieldOverflow(t *testing.T) {
	pkt := &Packet{
		Type:        RequestType,
		Destination: strings.Repeat("x", DestinationWidth+1),
		Body:        &Request{},
	}
	if _, err := Encode(pkt, jsonSerializer{}, DefaultRegistry); err == nil {
		t.Fatal("expected ErrFieldOverflow, got nil")
	}
}

func TestDecodeHeaderTruncated(t *testing.T) {
	if _, _, err := DecodeHeader(make([]byte, HeaderSize-1)); err == nil {
		t.Fatal("expected ErrHeaderTruncated, got nil")
	}
}

func TestDecodeUnregisteredPacketType(t *testing.T) {
	pkt := &Packet{Type: RequestType, Body: &Request{}}
	enc, err := Encode(pkt, jsonSerializer{}, DefaultRegistry)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	enc[0] = 255 // unregistered tag

	if _, err := Decode(enc, jsonSerializer{}, DefaultRegistry); err == nil {
		t.Fatal("expected ErrUnregisteredPacketType, got nil")
	}
}

func TestDecodeHeaderDoesNotRequireBody(t *testing.T) {
	// A zero-length body must still produce a parseable header: routing
	// must be possible without decoding the body (the whole point of the
	// fixed-width header).
	pkt := &Packet{Type: RequestType, Destination: "dest", Body: &Request{}}
	enc, err := Encode(pkt, jsonSerializer{}, DefaultRegistry)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	h, _, err := DecodeHeader(enc[:HeaderSize])
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if h.Destination != "dest" {
		t.Fatalf("got destination %q, want %q", h.Destination, "dest")
	}
}
