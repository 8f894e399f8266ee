package capability_test

import (
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kiln/pkg/model"
	"github.com/m-mizutani/kiln/pkg/service/capability"
)

func TestDecodeEquivalentEncodings(t *testing.T) {
	expected := map[string]any{
		"result": "reid-1",
		"count":  float64(2),
		"ratio":  0.5,
		"ok":     true,
		"none":   nil,
		"tags":   []any{"a", "b"},
		"nested": map[string]any{"name": "dragon's lair"},
	}

	testCases := map[string]struct {
		raw      string
		encoding capability.Encoding
	}{
		"json object": {
			raw:      `{"result": "reid-1", "count": 2, "ratio": 0.5, "ok": true, "none": null, "tags": ["a", "b"], "nested": {"name": "dragon's lair"}}`,
			encoding: capability.EncodingJSON,
		},
		"json encoded string": {
			raw:      `"{\"result\": \"reid-1\", \"count\": 2, \"ratio\": 0.5, \"ok\": true, \"none\": null, \"tags\": [\"a\", \"b\"], \"nested\": {\"name\": \"dragon's lair\"}}"`,
			encoding: capability.EncodingString,
		},
		"native mapping in string": {
			raw:      `"{'result': 'reid-1', 'count': 2, 'ratio': 0.5, 'ok': True, 'none': None, 'tags': ['a', 'b'], 'nested': {'name': \"dragon's lair\"}}"`,
			encoding: capability.EncodingNativeMapping,
		},
		"bare native mapping": {
			raw:      `{'result': 'reid-1', 'count': 2, 'ratio': 0.5, 'ok': True, 'none': None, 'tags': ('a', 'b',), 'nested': {'name': 'dragon\'s lair'},}`,
			encoding: capability.EncodingNativeMapping,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			out, encoding, err := capability.Decode([]byte(tc.raw))
			gt.NoError(t, err)
			gt.Equal(t, encoding, tc.encoding)
			gt.Equal(t, out, expected)
		})
	}
}

func TestDecodeUnparseable(t *testing.T) {
	testCases := map[string]string{
		"empty":               "",
		"array":               `[1, 2, 3]`,
		"number":              `42`,
		"plain string":        `"just some text"`,
		"broken mapping":      `{'result': 'abc'`,
		"non-string key":      `{1: 'abc'}`,
		"unknown identifier":  `{'result': undefined_name}`,
		"trailing characters": `{'a': 1} extra`,
		"null":                `null`,
	}

	for name, raw := range testCases {
		t.Run(name, func(t *testing.T) {
			_, _, err := capability.Decode([]byte(raw))
			gt.Error(t, err)
			gt.True(t, errors.Is(err, model.ErrResponseUnparseable))
		})
	}
}

func TestNativeMappingEscapes(t *testing.T) {
	out, _, err := capability.Decode([]byte(`{'text': 'line1\nline2\t\x41é', 'raw': b'abc', 'neg': -1.5e2}`))
	gt.NoError(t, err)
	gt.Equal(t, out["text"], any("line1\nline2\tAé"))
	gt.Equal(t, out["raw"], any("abc"))
	gt.Equal(t, out["neg"], any(float64(-150)))
}

func TestEncodingString(t *testing.T) {
	gt.Equal(t, capability.EncodingJSON.String(), "json")
	gt.Equal(t, capability.EncodingString.String(), "encoded_string")
	gt.Equal(t, capability.EncodingNativeMapping.String(), "native_mapping")
	gt.Equal(t, capability.Encoding(0).String(), "unknown")
}
