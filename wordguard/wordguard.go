// Package wordguard scans message text against banned-word lists: a per-group
// custom list plus an optional builtin lexicon shipped as a JSON file.
package wordguard

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Scan returns the first banned word contained in text, if any. Matching is
// plain substring, first word in list order wins.
func Scan(text string, words []string) (string, bool) {
	for _, w := range words {
		if w == "" {
			continue
		}
		if strings.Contains(text, w) {
			return w, true
		}
	}
	return "", false
}

// Lexicon is a builtin banned-word list loaded at startup.
type Lexicon struct {
	Words []string `json:"words"`
}

func LoadLexicon(path string) (*Lexicon, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading lexicon file: %w", err)
	}
	var lex Lexicon
	if err := json.Unmarshal(raw, &lex); err != nil {
		return nil, fmt.Errorf("parsing lexicon file: %w", err)
	}
	return &lex, nil
}
