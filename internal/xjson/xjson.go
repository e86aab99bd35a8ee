package xjson

import (
	"bytes"
	stdjson "encoding/json"
	"io"

	gjson "github.com/goccy/go-json"
)

// Marshal/Unmarshal wrappers to allow a single import site to switch
// between standard encoding/json and goccy/go-json without touching callers.

func Marshal(v interface{}) ([]byte, error) {
	return gjson.Marshal(v)
}

func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gjson.MarshalIndent(v, prefix, indent)
}

func Unmarshal(data []byte, v interface{}) error {
	return gjson.Unmarshal(data, v)
}

// Decode reads one JSON value from r with numbers preserved as json.Number.
func Decode(r io.Reader, v interface{}) error {
	dec := gjson.NewDecoder(r)
	dec.UseNumber()
	return dec.Decode(v)
}

// Roundtrip re-encodes v into target, converting between map and struct forms.
func Roundtrip(v interface{}, target interface{}) error {
	data, err := gjson.Marshal(v)
	if err != nil {
		return err
	}
	return gjson.NewDecoder(bytes.NewReader(data)).Decode(target)
}

// RawMessage is kept compatible with encoding/json's RawMessage type.
type RawMessage = stdjson.RawMessage

// Number mirrors encoding/json's Number, produced by Decode's UseNumber mode.
type Number = stdjson.Number
