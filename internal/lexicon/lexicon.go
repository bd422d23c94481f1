// Package lexicon holds the fixed vocabularies shared by document parsing,
// indexing, query expansion and scoring: the related-term table, the
// technology keyword list used for tagging, and the intent and recency cue
// words.
package lexicon

import (
	"regexp"
	"sort"
	"strings"
)

// RelatedTerms maps a topic term to phrases that commonly stand in for it.
// Query expansion adds the tokens of every related phrase, and the
// cross-reference signal credits documents that mention them.
var RelatedTerms = map[string][]string{
	"ai":         {"artificial intelligence", "machine learning", "neural networks", "deep learning"},
	"ml":         {"machine learning", "models", "training", "artificial intelligence"},
	"database":   {"sql", "postgres", "storage", "query", "schema"},
	"web":        {"http", "frontend", "backend", "browser"},
	"api":        {"rest", "endpoint", "http", "integration"},
	"security":   {"authentication", "encryption", "vulnerability", "access control"},
	"cloud":      {"aws", "azure", "kubernetes", "infrastructure", "deployment"},
	"devops":     {"continuous integration", "deployment", "docker", "kubernetes", "automation"},
	"python":     {"programming", "scripting", "pandas", "django"},
	"javascript": {"programming", "nodejs", "react", "frontend"},
	"data":       {"analytics", "database", "pipeline", "statistics"},
	"testing":    {"unit tests", "integration", "quality", "automation"},
}

// TechKeywords are tagged on any document that mentions them.
var TechKeywords = []string{
	"ai", "api", "aws", "cloud", "database", "devops", "docker", "git",
	"golang", "java", "javascript", "kubernetes", "linux", "machine learning",
	"python", "react", "rust", "security", "sql", "testing", "typescript",
}

// Intent is a query intent inferred from cue words.
type Intent string

const (
	IntentHowTo      Intent = "how_to"
	IntentDefinition Intent = "definition"
	IntentComparison Intent = "comparison"
	IntentTechnical  Intent = "technical"
)

var intentCues = map[Intent][]string{
	IntentHowTo:      {"how", "steps", "guide", "tutorial", "setup", "install", "configure"},
	IntentDefinition: {"what", "define", "definition", "meaning", "explain", "overview"},
	IntentComparison: {"vs", "versus", "compare", "comparison", "difference", "differences", "better"},
	IntentTechnical:  {"code", "implement", "implementation", "function", "example", "syntax", "error"},
}

// intentOrder fixes iteration order so detected intents are deterministic.
var intentOrder = []Intent{IntentHowTo, IntentDefinition, IntentComparison, IntentTechnical}

// ComparisonMarkers are words a comparison-style document tends to contain.
var ComparisonMarkers = []string{"vs", "versus", "advantages", "disadvantages", "pros", "cons", "compared", "trade-offs"}

// DefinitionMarkers are phrases a definition-style document tends to contain.
var DefinitionMarkers = []string{" is a ", " is an ", " refers to ", " defined as ", " means "}

var recencyCues = map[string]struct{}{
	"latest": {}, "recent": {}, "recently": {}, "new": {}, "newest": {},
	"current": {}, "upcoming": {}, "future": {}, "trends": {}, "today": {},
	"2024": {}, "2025": {}, "2026": {},
}

// RecencyVocabulary is the forward-looking vocabulary credited when a query
// carries a recency cue.
var RecencyVocabulary = []string{
	"latest", "recent", "recently", "new", "emerging", "future", "upcoming",
	"trend", "trends", "roadmap", "modern", "2024", "2025", "2026",
}

var wordSplit = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

// Words lowercases text and splits it on non-word characters without any
// length or stop-word filtering. Cue detection works on these raw words.
func Words(text string) []string {
	parts := wordSplit.Split(strings.ToLower(text), -1)
	words := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			words = append(words, p)
		}
	}
	return words
}

// Related returns the related phrases for term, or nil.
func Related(term string) []string {
	return RelatedTerms[strings.ToLower(term)]
}

// Topics returns, in sorted order, every related-term key whose key or
// related phrases are mentioned by the given term set.
func Topics(has func(term string) bool) []string {
	keys := make([]string, 0, len(RelatedTerms))
	for key := range RelatedTerms {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var topics []string
	for _, key := range keys {
		if has(key) {
			topics = append(topics, key)
			continue
		}
		for _, phrase := range RelatedTerms[key] {
			if phraseMatches(phrase, has) {
				topics = append(topics, key)
				break
			}
		}
	}
	return topics
}

func phraseMatches(phrase string, has func(string) bool) bool {
	words := strings.Fields(phrase)
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		if !has(w) {
			return false
		}
	}
	return true
}

// DetectIntents returns the intents whose cue words appear in words.
func DetectIntents(words []string) []Intent {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	var intents []Intent
	for _, intent := range intentOrder {
		for _, cue := range intentCues[intent] {
			if _, ok := set[cue]; ok {
				intents = append(intents, intent)
				break
			}
		}
	}
	return intents
}

// HasRecencyCue reports whether any word asks for recent material.
func HasRecencyCue(words []string) bool {
	for _, w := range words {
		if _, ok := recencyCues[w]; ok {
			return true
		}
	}
	return false
}

// ContainsKeyword reports whether lowered text mentions keyword as a whole
// word or phrase.
func ContainsKeyword(lowered, keyword string) bool {
	if keyword == "" {
		return false
	}
	idx := 0
	for {
		pos := strings.Index(lowered[idx:], keyword)
		if pos < 0 {
			return false
		}
		start := idx + pos
		end := start + len(keyword)
		if IsWordBoundary(lowered, start-1) && IsWordBoundary(lowered, end) {
			return true
		}
		idx = start + 1
	}
}

// IsWordBoundary reports whether byte i of lowered text s is outside a word.
// Offsets before the start or past the end count as boundaries.
func IsWordBoundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	c := s[i]
	return !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_')
}
