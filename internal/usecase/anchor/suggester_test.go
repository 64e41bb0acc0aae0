package anchor

import (
	"strings"
	"testing"

	"github.com/kailas-cloud/linkmesh/internal/domain"
)

func TestSuggestPrefersH1(t *testing.T) {
	target := domain.ContentItem{
		Title: "Un titre différent",
		Body:  `<h1>Guide complet du SEO technique</h1><p>corps</p>`,
	}
	if got := Suggest(target); got != "Guide complet du SEO technique" {
		t.Errorf("Suggest() = %q", got)
	}
}

func TestSuggestFallsBackToTitleWhenH1TooLong(t *testing.T) {
	target := domain.ContentItem{
		Title: "Titre raisonnable",
		Body:  "<h1>" + strings.Repeat("très ", 30) + "long</h1>",
	}
	if got := Suggest(target); got != "Titre raisonnable" {
		t.Errorf("Suggest() = %q", got)
	}
}

func TestSuggestFallsBackToTitleWhenH1TooShort(t *testing.T) {
	target := domain.ContentItem{Title: "Titre", Body: "<h1>ab</h1>"}
	if got := Suggest(target); got != "Titre" {
		t.Errorf("Suggest() = %q", got)
	}
}

func TestSuggestShortensLongTitle(t *testing.T) {
	target := domain.ContentItem{Title: strings.Repeat("a", 100)}
	got := Suggest(target)
	if len([]rune(got)) != 80 {
		t.Errorf("len = %d, want 80", len([]rune(got)))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("Suggest() = %q, want ellipsis suffix", got)
	}
}

func TestSuggestEmptyTitle(t *testing.T) {
	if got := Suggest(domain.ContentItem{}); got != "" {
		t.Errorf("Suggest() = %q, want empty", got)
	}
}

func TestSuggestMultibyteTitleBoundary(t *testing.T) {
	target := domain.ContentItem{Title: strings.Repeat("é", 100)}
	got := Suggest(target)
	if n := len([]rune(got)); n != 80 {
		t.Errorf("rune length = %d, want 80", n)
	}
}

func TestSuggestFromKeywordsCommonTerms(t *testing.T) {
	source := domain.ContentItem{
		Body: "<p>optimisation technique des performances web et audit complet</p>",
	}
	target := domain.ContentItem{
		Title: "Audit technique",
		Body:  "<p>audit audit technique optimisation</p>",
	}
	got := SuggestFromKeywords(source, target)
	if !strings.Contains(got, "audit") {
		t.Errorf("SuggestFromKeywords() = %q, want it to carry the dominant shared term", got)
	}
	if words := strings.Fields(got); len(words) > 5 {
		t.Errorf("got %d words, want at most 5", len(words))
	}
}

func TestSuggestFromKeywordsNoOverlapFallsBack(t *testing.T) {
	source := domain.ContentItem{Body: "<p>cuisine recettes desserts</p>"}
	target := domain.ContentItem{
		Title: "Guide SEO",
		Body:  "<h1>Guide complet du SEO</h1>",
	}
	if got := SuggestFromKeywords(source, target); got != "Guide complet du SEO" {
		t.Errorf("SuggestFromKeywords() = %q, want H1 fallback", got)
	}
}
