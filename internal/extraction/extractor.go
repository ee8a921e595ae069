// Package extraction finds person and place mentions in free text. Backends
// are a local NER model (hugot) or a prompted text generator (Ollama,
// OpenAI). Only the mentions are returned; nothing here touches storage.
package extraction

import (
	"context"

	"github.com/scrypster/kinstory/pkg/types"
)

// Extractor returns the mentions found in text, in order of appearance.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]types.Mention, error)
}

// Nop finds nothing. Used when no extraction backend is configured.
type Nop struct{}

// Extract implements Extractor.
func (Nop) Extract(context.Context, string) ([]types.Mention, error) {
	return nil, nil
}

// normalizeLabel maps backend labels onto the mention label set.
// "B-PER", "I-PER", "PERSON" and "person" all become types.LabelPerson.
func normalizeLabel(label string) string {
	if len(label) > 2 && (label[:2] == "B-" || label[:2] == "I-") {
		label = label[2:]
	}
	switch label {
	case "PER", "PERSON", "person", "Person":
		return types.LabelPerson
	case "LOC", "LOCATION", "location", "Location", "place", "GPE":
		return types.LabelLocation
	}
	return label
}
