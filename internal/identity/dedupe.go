package identity

import (
	"strings"

	"github.com/scrypster/kinstory/pkg/types"
)

// DeduplicateMentions reduces one extraction batch to its maximal names: a
// name is dropped when another, different name in the batch contains it as a
// case-sensitive substring. Surrounding whitespace is trimmed, blanks are
// dropped and exact repeats collapse to their first occurrence. Names that
// merely overlap ("John Smith", "Smith Johnson") are both kept.
//
// The result keeps the input order and is never nil.
func DeduplicateMentions(names []string) []string {
	unique := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		unique = append(unique, n)
	}

	out := make([]string, 0, len(unique))
	for i, a := range unique {
		contained := false
		for j, b := range unique {
			if i != j && strings.Contains(b, a) {
				contained = true
				break
			}
		}
		if !contained {
			out = append(out, a)
		}
	}
	return out
}

// PersonNames returns the text of every mention whose label is one of
// labels, in order. With no labels only types.LabelPerson is kept.
func PersonNames(mentions []types.Mention, labels ...string) []string {
	if len(labels) == 0 {
		labels = []string{types.LabelPerson}
	}

	names := make([]string, 0, len(mentions))
	for _, m := range mentions {
		extractionMentions.WithLabelValues(m.Label).Inc()
		for _, l := range labels {
			if m.Label == l {
				names = append(names, m.Text)
				break
			}
		}
	}
	return names
}
