// Package textcodec provides a sample textual packet.Serializer: a
// minimal XML-like encoding of Request and Response bodies, useful for
// wire captures a human needs to read without a separate decoder tool.
// Production deployments needing compact frames should supply a binary
// Serializer instead — packet.Serializer is the extension point.
package textcodec

import (
	"encoding/xml"
	"fmt"

	"github.com/coregx/conduit/packet"
)

// xmlRequest and xmlResponse mirror packet.Request/packet.Response with
// struct tags encoding/xml understands; packet.Request/Response
// themselves stay codec-agnostic.
type xmlRequest struct {
	XMLName   xml.Name          `xml:"request"`
	RequestID uint64            `xml:"request_id,attr"`
	Name      string            `xml:"name,attr"`
	Args      map[string]string `xml:"-"`
	ArgList   []xmlArg          `xml:"arg"`
}

type xmlArg struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

type xmlResponse struct {
	XMLName   xml.Name `xml:"response"`
	RequestID uint64   `xml:"request_id,attr"`
	Status    string   `xml:"status,attr"`
	Body      []byte   `xml:"body"`
}

// Serializer implements packet.Serializer with the xmlRequest/xmlResponse
// encoding above.
type Serializer struct{}

// Marshal implements packet.Serializer.
func (Serializer) Marshal(v any) ([]byte, error) {
	switch b := v.(type) {
	case *packet.Request:
		x := xmlRequest{RequestID: b.RequestID, Name: b.Name}
		for k, val := range b.Args {
			x.ArgList = append(x.ArgList, xmlArg{Key: k, Value: val})
		}
		return xml.Marshal(x)
	case *packet.Response:
		x := xmlResponse{RequestID: b.RequestID, Status: b.Status, Body: b.Body}
		return xml.Marshal(x)
	default:
		return nil, fmt.Errorf("textcodec: unsupported body type %T", v)
	}
}

// Unmarshal implements packet.Serializer.
func (Serializer) Unmarshal(data []byte, v any) error {
	switch b := v.(type) {
	case *packet.Request:
		var x xmlRequest
		if err := xml.Unmarshal(data, &x); err != nil {
			return err
		}
		b.RequestID = x.RequestID
		b.Name = x.Name
		if len(x.ArgList) > 0 {
			b.Args = make(map[string]string, len(x.ArgList))
			for _, a := range x.ArgList {
				b.Args[a.Key] = a.Value
			}
		}
		return nil
	case *packet.Response:
		var x xmlResponse
		if err := xml.Unmarshal(data, &x); err != nil {
			return err
		}
		b.RequestID = x.RequestID
		b.Status = x.Status
		b.Body = x.Body
		return nil
	default:
		return fmt.Errorf("textcodec: unsupported body type %T", v)
	}
}
