// Package codec encodes stored aggregates as CBOR.
//
// Encoding is deterministic (RFC 8949 core deterministic encoding), so the
// same pipeline always produces the same bytes. Struct fields are named by
// their json tags, which fxamacker/cbor falls back to when no cbor tag is
// present; the API and the store therefore agree on field names.
package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// Start times drive every candidate ordering; keep sub-second precision.
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Change.Entity and other any-typed values decode as string-keyed maps.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Clone returns a deep copy of v by encoding and decoding it.
func Clone[T any](v T) (T, error) {
	var out T
	data, err := Marshal(v)
	if err != nil {
		return out, err
	}
	err = Unmarshal(data, &out)
	return out, err
}
