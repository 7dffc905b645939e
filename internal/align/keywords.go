package align

import (
	"regexp"
	"strings"

	"github.com/lucasnoah/cycleplan/internal/config"
	"github.com/lucasnoah/cycleplan/internal/scoring"
)

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// Keywords extracts search terms from title and description. Vocabulary terms
// are kept in order of first appearance, capped at MaxKeywords, and followed
// by the category's configured terms. A plural "s" on a token still matches.
func Keywords(title, description string, cat scoring.Category, cfg config.AlignConfig) []string {
	max := cfg.MaxKeywords
	vocab := make(map[string]bool, len(cfg.Vocabulary))
	for _, w := range cfg.Vocabulary {
		vocab[strings.ToLower(strings.TrimSpace(w))] = true
	}

	seen := make(map[string]bool)
	keywords := []string{}
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(title+" "+description), -1) {
		if max > 0 && len(keywords) >= max {
			break
		}
		word := tok
		if !vocab[word] {
			word = strings.TrimSuffix(tok, "s")
			if !vocab[word] {
				continue
			}
		}
		if !seen[word] {
			seen[word] = true
			keywords = append(keywords, word)
		}
	}

	for _, w := range cfg.CategoryKeywords[string(cat)] {
		if !seen[w] {
			seen[w] = true
			keywords = append(keywords, w)
		}
	}
	return keywords
}
