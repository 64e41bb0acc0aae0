package textprep

import (
	"strings"
	"unicode"
)

// minKeywordLen filters out short tokens before counting.
const minKeywordLen = 3

// Keywords extracts lowercased token frequencies from text (HTML allowed).
// Tokens shorter than 3 runes and stop words are dropped.
func Keywords(text string) map[string]int {
	plain := strings.ToLower(PlainText(text))

	freq := make(map[string]int)
	for _, word := range splitWords(plain) {
		if len([]rune(word)) < minKeywordLen {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		freq[word]++
	}
	return freq
}

// splitWords splits on anything that is not a letter or digit.
func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// stopWords is the filler-word set used for keyword extraction and cluster
// labels. The corpus this ships for is French content.
var stopWords = func() map[string]struct{} {
	list := []string{
		"le", "la", "les", "un", "une", "des", "du", "de", "et", "est",
		"en", "que", "qui", "dans", "ce", "il", "ne", "sur", "se", "pas",
		"plus", "par", "son", "pour", "au", "avec", "tout", "faire", "on",
		"mais", "ou", "comme", "être", "avoir", "dit", "aussi", "nous",
		"vous", "ils", "elle", "elles", "leurs", "cette", "ces", "mon",
		"ton", "notre", "votre", "leur", "ses", "mes", "tes", "nos", "vos",
		"aux", "même", "autres", "entre", "sans", "sous", "après", "avant",
		"chez", "depuis", "lors", "très", "bien", "peu", "encore", "trop",
		"ici", "là", "donc", "car", "dont", "sont", "été", "fait", "peut",
		"doit", "tous", "toute", "toutes", "autre", "quand", "comment",
		"alors", "ainsi", "cela", "cet", "était", "ont", "vers",
	}
	m := make(map[string]struct{}, len(list))
	for _, w := range list {
		m[w] = struct{}{}
	}
	return m
}()

// IsStopWord reports whether a lowercased word is in the filler-word set.
func IsStopWord(w string) bool {
	_, ok := stopWords[w]
	return ok
}
