package capability

import (
	"bytes"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kiln/pkg/model"
)

// Encoding is the wire shape a remote app used for its output
type Encoding int

const (
	// EncodingJSON is a JSON object
	EncodingJSON Encoding = iota + 1
	// EncodingString is a JSON string whose content is a JSON object
	EncodingString
	// EncodingNativeMapping is a stringified dict-like literal, e.g.
	// {'result': 'abc', 'ok': True}
	EncodingNativeMapping
)

func (e Encoding) String() string {
	switch e {
	case EncodingJSON:
		return "json"
	case EncodingString:
		return "encoded_string"
	case EncodingNativeMapping:
		return "native_mapping"
	default:
		return "unknown"
	}
}

// RawResponse is a classified but not yet decoded remote output
type RawResponse struct {
	Encoding Encoding
	Body     []byte
}

// Classify detects the encoding of raw remote output. Structured JSON is
// attempted first; permissive literal parsing is only chosen for text that is
// not valid JSON.
func Classify(raw []byte) (RawResponse, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return RawResponse{}, goerr.Wrap(model.ErrResponseUnparseable, "empty response")
	}

	switch trimmed[0] {
	case '{':
		if json.Valid(trimmed) {
			return RawResponse{Encoding: EncodingJSON, Body: trimmed}, nil
		}
		return RawResponse{Encoding: EncodingNativeMapping, Body: trimmed}, nil

	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return RawResponse{}, goerr.Wrap(model.ErrResponseUnparseable, "malformed string response",
				goerr.V("cause", err.Error()))
		}
		inner := bytes.TrimSpace([]byte(text))
		if len(inner) == 0 || inner[0] != '{' {
			return RawResponse{}, goerr.Wrap(model.ErrResponseUnparseable, "string response is not a mapping",
				goerr.V("body", truncate(text)))
		}
		if json.Valid(inner) {
			return RawResponse{Encoding: EncodingString, Body: inner}, nil
		}
		return RawResponse{Encoding: EncodingNativeMapping, Body: inner}, nil
	}

	return RawResponse{}, goerr.Wrap(model.ErrResponseUnparseable, "response is neither a mapping nor a string",
		goerr.V("body", truncate(string(trimmed))))
}

// Normalize decodes any variant into a canonical mapping. Numbers become
// float64 regardless of encoding.
func Normalize(r RawResponse) (map[string]any, error) {
	switch r.Encoding {
	case EncodingJSON, EncodingString:
		var out map[string]any
		if err := json.Unmarshal(r.Body, &out); err != nil {
			return nil, goerr.Wrap(model.ErrResponseUnparseable, "failed to decode JSON response",
				goerr.V("encoding", r.Encoding.String()),
				goerr.V("cause", err.Error()))
		}
		if out == nil {
			return nil, goerr.Wrap(model.ErrResponseUnparseable, "response is null")
		}
		return out, nil

	case EncodingNativeMapping:
		v, err := parseLiteral(string(r.Body))
		if err != nil {
			return nil, goerr.Wrap(model.ErrResponseUnparseable, "failed to parse native mapping",
				goerr.V("cause", err.Error()),
				goerr.V("body", truncate(string(r.Body))))
		}
		out, ok := v.(map[string]any)
		if !ok {
			return nil, goerr.Wrap(model.ErrResponseUnparseable, "native literal is not a mapping")
		}
		return out, nil
	}

	return nil, goerr.Wrap(model.ErrResponseUnparseable, "unknown response encoding",
		goerr.V("encoding", int(r.Encoding)))
}

// Decode is Classify followed by Normalize
func Decode(raw []byte) (map[string]any, Encoding, error) {
	r, err := Classify(raw)
	if err != nil {
		return nil, 0, err
	}
	out, err := Normalize(r)
	if err != nil {
		return nil, r.Encoding, err
	}
	return out, r.Encoding, nil
}

func truncate(s string) string {
	const limit = 256
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
