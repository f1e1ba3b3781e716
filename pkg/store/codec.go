package store

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeJSON unmarshals b into v keeping JSON numbers as json.Number, so
// integers of any size read back without loss. Backends that persist entries
// as JSON decode them with it.
func DecodeJSON(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("store: trailing data after JSON value")
	}
	return nil
}
