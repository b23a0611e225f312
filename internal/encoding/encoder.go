package encoding

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Media types sent in the Content-Type header.
const (
	MsgpackContentType = "application/x-msgpack"
	JSONContentType    = "application/json"
)

// Encoder serializes an Update into a request body.
type Encoder interface {
	ContentType() string
	Encode(u *Update) ([]byte, error)
}

// MsgpackEncoder writes the binary form. Map keys are sorted so identical
// updates produce identical bytes.
type MsgpackEncoder struct{}

func (MsgpackEncoder) ContentType() string { return MsgpackContentType }

func (MsgpackEncoder) Encode(u *Update) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(u); err != nil {
		return nil, fmt.Errorf("msgpack encode: %w", err)
	}
	return buf.Bytes(), nil
}

// JSONEncoder writes the textual form.
type JSONEncoder struct{}

func (JSONEncoder) ContentType() string { return JSONContentType }

func (JSONEncoder) Encode(u *Update) ([]byte, error) {
	b, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}
	return b, nil
}

// ForName returns the encoder registered under name ("msgpack" or "json").
func ForName(name string) (Encoder, error) {
	switch name {
	case "", "msgpack":
		return MsgpackEncoder{}, nil
	case "json":
		return JSONEncoder{}, nil
	default:
		return nil, fmt.Errorf("unknown encoding %q", name)
	}
}

// Decode parses a body produced by one of the encoders, selected by content type.
func Decode(contentType string, body []byte) (*Update, error) {
	var u Update
	switch contentType {
	case MsgpackContentType:
		if err := msgpack.Unmarshal(body, &u); err != nil {
			return nil, fmt.Errorf("msgpack decode: %w", err)
		}
	case JSONContentType:
		if err := json.Unmarshal(body, &u); err != nil {
			return nil, fmt.Errorf("json decode: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported content type %q", contentType)
	}
	return &u, nil
}
