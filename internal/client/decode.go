package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/sujalbistaa/guestboard/internal/models"
)

// ErrMalformedPayload means the server sent something that is not a
// record. It points at a client/server protocol mismatch, so subscriptions
// stop on it instead of skipping the event.
var ErrMalformedPayload = errors.New("malformed record payload")

const recordSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["id", "name", "message", "likes", "createdAt"],
  "properties": {
    "id":        {"type": "string", "minLength": 1},
    "name":      {"type": "string", "minLength": 1},
    "message":   {"type": "string", "minLength": 1},
    "likes":     {"type": "integer"},
    "createdAt": {"type": "string", "format": "date-time"},
    "updatedAt": {"type": "string", "format": "date-time"}
  }
}`

var recordValidator = mustCompile("record.schema.json", recordSchema)

func mustCompile(name, schema string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.AssertFormat = true
	if err := c.AddResource(name, strings.NewReader(schema)); err != nil {
		panic(err)
	}
	return c.MustCompile(name)
}

// DecodeRecord validates data against the record schema and decodes it.
// Timestamps come back as time.Time; other fields pass through unchanged.
func DecodeRecord(data []byte) (models.Record, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return models.Record{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if err := recordValidator.Validate(raw); err != nil {
		return models.Record{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	var r models.Record
	if err := json.Unmarshal(data, &r); err != nil {
		return models.Record{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return r, nil
}
