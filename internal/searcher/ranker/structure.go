package ranker

import (
	"regexp"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/lexicon"
)

var (
	inlineCodeSpan = regexp.MustCompile("`([^`\n]+)`")
	listLine       = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s+\S`)
)

// structure is the markup layout of a lowercased document body.
type structure struct {
	headers []string
	lists   []string
	code    string
	hasCode bool
}

func analyze(lowerBody string) structure {
	var s structure
	var code strings.Builder
	inFence := false
	for _, line := range strings.Split(lowerBody, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			s.hasCode = true
			continue
		}
		if inFence {
			code.WriteString(line)
			code.WriteByte('\n')
			continue
		}
		switch {
		case strings.HasPrefix(trimmed, "#"):
			s.headers = append(s.headers, trimmed)
		case listLine.MatchString(line):
			s.lists = append(s.lists, trimmed)
		}
		for _, m := range inlineCodeSpan.FindAllStringSubmatch(line, -1) {
			code.WriteString(m[1])
			code.WriteByte('\n')
			s.hasCode = true
		}
	}
	s.code = code.String()
	return s
}

// occurrences returns the byte offsets of whole-word matches of term in
// text, at most limit of them.
func occurrences(text, term string, limit int) []int {
	var out []int
	if term == "" {
		return out
	}
	idx := 0
	for len(out) < limit {
		pos := strings.Index(text[idx:], term)
		if pos < 0 {
			break
		}
		start := idx + pos
		end := start + len(term)
		if lexicon.IsWordBoundary(text, start-1) && lexicon.IsWordBoundary(text, end) {
			out = append(out, start)
		}
		idx = start + 1
	}
	return out
}
