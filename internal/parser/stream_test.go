package parser

import (
	"errors"
	"testing"
)

func TestDecodeEvents(t *testing.T) {
	data := []byte(`{
		"source": "upload",
		"events": [
			{"kind": "heading", "level": 1, "text": "Guide"},
			{"kind": "list_item", "marker": "-", "text": "one", "nesting": 0},
			{"kind": "table", "headers": ["a"], "rows": [["1"]]},
			{"kind": "image", "ref": "fig.png", "alt": "Figure"}
		]
	}`)
	stream, err := DecodeEvents(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stream.Source != "upload" || len(stream.Events) != 4 {
		t.Fatalf("expected 4 events from upload, got %d from %q", len(stream.Events), stream.Source)
	}
	if stream.Events[0].Kind != EventHeading || stream.Events[0].Level != 1 {
		t.Errorf("expected level-1 heading first, got %+v", stream.Events[0])
	}
	if stream.Events[2].Rows[0][0] != "1" {
		t.Errorf("expected table cell 1, got %q", stream.Events[2].Rows[0][0])
	}
}

func TestDecodeEvents_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{"events": [`},
		{"missing events", `{"source": "x"}`},
		{"unknown kind", `{"events": [{"kind": "video"}]}`},
		{"heading without level", `{"events": [{"kind": "heading", "text": "A"}]}`},
		{"level out of range", `{"events": [{"kind": "heading", "level": 9, "text": "A"}]}`},
		{"paragraph without text", `{"events": [{"kind": "paragraph"}]}`},
		{"image without ref", `{"events": [{"kind": "image", "alt": "x"}]}`},
		{"unknown field", `{"events": [{"kind": "paragraph", "text": "a", "colour": "red"}]}`},
		{"negative nesting", `{"events": [{"kind": "list_item", "text": "a", "nesting": -1}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEvents([]byte(tt.data))
			if !errors.Is(err, ErrInvalidEvents) {
				t.Errorf("expected ErrInvalidEvents, got %v", err)
			}
		})
	}
}
