package pretokenize

import (
	"slices"
	"strings"
)

// Segment is a piece of text that is either an allow-listed special token or
// ordinary text to be split further.
type Segment struct {
	Text    string
	Special bool
}

// SplitSpecial cuts text around every occurrence of the given special tokens.
// At any position the longest matching token wins. Empty tokens are ignored.
func SplitSpecial(text string, specials []string) []Segment {
	if text == "" {
		return nil
	}

	ordered := make([]string, 0, len(specials))
	for _, sp := range specials {
		if sp != "" {
			ordered = append(ordered, sp)
		}
	}

	if len(ordered) == 0 {
		return []Segment{{Text: text}}
	}

	slices.SortStableFunc(ordered, func(a, b string) int { return len(b) - len(a) })

	var out []Segment

	for text != "" {
		idx, tok := -1, ""
		for _, sp := range ordered {
			if i := strings.Index(text, sp); i >= 0 && (idx < 0 || i < idx) {
				idx, tok = i, sp
			}
		}

		if idx < 0 {
			out = append(out, Segment{Text: text})
			break
		}

		if idx > 0 {
			out = append(out, Segment{Text: text[:idx]})
		}

		out = append(out, Segment{Text: tok, Special: true})
		text = text[idx+len(tok):]
	}

	return out
}
