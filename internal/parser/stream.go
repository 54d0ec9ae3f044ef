package parser

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrInvalidEvents is returned when an event stream does not match the
// schema.
var ErrInvalidEvents = errors.New("invalid event stream")

//go:embed events.schema.json
var eventsSchemaJSON []byte

var eventsSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(eventsSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("load events schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("events.schema.json", doc); err != nil {
		return nil, fmt.Errorf("add events schema: %w", err)
	}
	return c.Compile("events.schema.json")
})

// EventStream is the JSON form of an adapter's output.
type EventStream struct {
	Source string  `json:"source"`
	Events []Event `json:"events"`
}

// DecodeEvents checks data against the event stream schema and decodes it.
func DecodeEvents(data []byte) (*EventStream, error) {
	sch, err := eventsSchema()
	if err != nil {
		return nil, err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEvents, err)
	}
	if err := sch.Validate(inst); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEvents, err)
	}

	var stream EventStream
	if err := json.Unmarshal(data, &stream); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEvents, err)
	}
	return &stream, nil
}
