package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/scrypster/kinstory/pkg/types"
)

// TextGenerator completes a prompt with a language model.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

const mentionPrompt = `Extract every person and place named in the text below.
Return only JSON of the form {"entities":[{"name":"...","type":"person"}]}.
Use type "person" for people and "location" for places. Copy each name exactly
as written in the text. Return {"entities":[]} when there are none.

Text:
%s`

type entityResponse struct {
	Entities []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"entities"`
}

// LLMExtractor asks a TextGenerator for the mentions in a text.
type LLMExtractor struct {
	gen TextGenerator
	log *zap.Logger
}

// NewLLMExtractor wraps gen. A nil logger discards output.
func NewLLMExtractor(gen TextGenerator, log *zap.Logger) *LLMExtractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &LLMExtractor{gen: gen, log: log}
}

// Extract implements Extractor.
func (e *LLMExtractor) Extract(ctx context.Context, text string) ([]types.Mention, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	raw, err := e.gen.Complete(ctx, fmt.Sprintf(mentionPrompt, text))
	if err != nil {
		return nil, fmt.Errorf("extract mentions: %w", err)
	}

	mentions, err := parseMentions(raw)
	if err != nil {
		e.log.Warn("unparseable extraction response", zap.Int("length", len(raw)), zap.Error(err))
		return nil, fmt.Errorf("extract mentions: %w", err)
	}
	return mentions, nil
}

// parseMentions reads the entity JSON out of a model reply. Entries without a
// name are skipped.
func parseMentions(raw string) ([]types.Mention, error) {
	var resp entityResponse
	if err := json.Unmarshal([]byte(extractJSON(raw)), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse entity JSON: %w", err)
	}

	mentions := make([]types.Mention, 0, len(resp.Entities))
	for _, ent := range resp.Entities {
		name := strings.TrimSpace(ent.Name)
		if name == "" {
			continue
		}
		mentions = append(mentions, types.Mention{Text: name, Label: normalizeLabel(strings.TrimSpace(ent.Type))})
	}
	return mentions, nil
}

// extractJSON returns the first balanced {...} object in text, ignoring
// markdown fences and any prose around it. Braces inside strings are not
// counted. Without a complete object the trimmed text is returned as is.
func extractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.IndexByte(text, '{')
	if start == -1 {
		return text
	}

	depth := 0
	inString, escape := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escape {
			escape = false
			continue
		}
		switch {
		case c == '\\':
			escape = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return text
}
