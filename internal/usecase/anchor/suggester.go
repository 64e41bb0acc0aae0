// Package anchor suggests link anchor text for a recommendation. The target
// page's own H1 is the best available phrase; the title is the fallback,
// shortened with an ellipsis when it would make an unwieldy anchor.
package anchor

import (
	"sort"
	"strings"

	"github.com/kailas-cloud/linkmesh/internal/domain"
	"github.com/kailas-cloud/linkmesh/internal/textprep"
)

const (
	minH1Len      = 3
	maxSuggestLen = 80
	maxWords      = 5
)

// Suggest returns anchor text for linking to target.
func Suggest(target domain.ContentItem) string {
	if h1 := textprep.FirstH1(target.Body); len([]rune(h1)) >= minH1Len && len([]rune(h1)) <= maxSuggestLen {
		return h1
	}

	title := strings.TrimSpace(target.Title)
	if title == "" {
		return ""
	}
	r := []rune(title)
	if len(r) <= maxSuggestLen {
		return title
	}
	return string(r[:maxSuggestLen-3]) + "..."
}

// SuggestFromKeywords builds an anchor from terms the source and target have
// in common, weighted by combined frequency. Falls back to Suggest when the
// vocabularies do not overlap.
func SuggestFromKeywords(source, target domain.ContentItem) string {
	sourceFreq := textprep.Keywords(textprep.PlainText(source.Body))
	targetFreq := textprep.Keywords(target.Title + " " + textprep.PlainText(target.Body))

	type scored struct {
		word  string
		total int
	}
	var common []scored
	for word, tf := range targetFreq {
		if sf, ok := sourceFreq[word]; ok {
			common = append(common, scored{word: word, total: tf + sf})
		}
	}
	if len(common) == 0 {
		return Suggest(target)
	}

	sort.Slice(common, func(i, j int) bool {
		if common[i].total != common[j].total {
			return common[i].total > common[j].total
		}
		return common[i].word < common[j].word
	})

	n := maxWords
	if n > len(common) {
		n = len(common)
	}
	words := make([]string, n)
	for i := 0; i < n; i++ {
		words[i] = common[i].word
	}
	joined := strings.Join(words, " ")
	if len([]rune(joined)) < minH1Len {
		return Suggest(target)
	}
	return joined
}
