package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/lexicon"
)

var (
	ErrEmptyFilename = errors.New("document has no filename")
	ErrEmptyContent  = errors.New("document has no content")
	ErrInvalidUTF8   = errors.New("document is not valid UTF-8")
)

var (
	frontmatterPattern = regexp.MustCompile(`(?s)^---\r?\n(.*?)\r?\n---[ \t]*(?:\r?\n|$)`)
	fenceLinePattern   = regexp.MustCompile("(?m)^[ \t]*(```|~~~).*$")
	inlineCodePattern  = regexp.MustCompile("`([^`\n]+)`")
	imagePattern       = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	linkPattern        = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	headingHashPattern = regexp.MustCompile(`(?m)^[ \t]{0,3}#{1,6}[ \t]*`)
	emphasisPattern    = regexp.MustCompile(`\*{1,3}|~~|\b_{1,3}|_{1,3}\b`)
	listItemPattern    = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s+\S`)
)

type frontMatter struct {
	Title string   `yaml:"title"`
	Tags  []string `yaml:"tags"`
}

// Parse converts one raw document into a Document.
func Parse(raw RawDocument) (Document, error) {
	if strings.TrimSpace(raw.Filename) == "" {
		return Document{}, ErrEmptyFilename
	}
	if !utf8.ValidString(raw.Content) {
		return Document{}, fmt.Errorf("%s: %w", raw.Filename, ErrInvalidUTF8)
	}
	id := DocumentID(raw.Filename)
	if id == "" {
		return Document{}, fmt.Errorf("%s: %w", raw.Filename, ErrEmptyFilename)
	}

	body := raw.Content
	var fm frontMatter
	if m := frontmatterPattern.FindStringSubmatchIndex(body); m != nil {
		if err := yaml.Unmarshal([]byte(body[m[2]:m[3]]), &fm); err != nil {
			return Document{}, fmt.Errorf("%s: parsing front matter: %w", raw.Filename, err)
		}
		body = body[m[1]:]
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return Document{}, fmt.Errorf("%s: %w", raw.Filename, ErrEmptyContent)
	}

	outline := scanOutline(body)
	title, titled := outline.title, outline.title != ""
	if !titled && strings.TrimSpace(fm.Title) != "" {
		title, titled = strings.TrimSpace(fm.Title), true
	}
	if !titled {
		title = titleFromFilename(raw.Filename)
	}

	doc := Document{
		ID:       id,
		Title:    title,
		Body:     body,
		Stripped: StripMarkdown(body),
		SourceID: raw.Filename,
	}
	doc.Tags = deriveTags(fm.Tags, raw.Filename, title, body)
	doc.Relevance = relevancePrior(body, titled, outline)
	return doc, nil
}

// Load reads every raw document from src and parses it. Documents that fail
// to parse, and later documents repeating an earlier ID, are skipped with a
// warning. Only a failure of the source itself is returned.
func Load(ctx context.Context, src Source) ([]Document, error) {
	logger := slog.Default().With("component", "corpus-loader", "source", src.Name())
	raws, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading source %s: %w", src.Name(), err)
	}
	docs := make([]Document, 0, len(raws))
	seen := make(map[string]string, len(raws))
	for _, raw := range raws {
		doc, err := Parse(raw)
		if err != nil {
			logger.Warn("skipping unparseable document",
				"filename", raw.Filename,
				"error", err,
			)
			continue
		}
		if first, dup := seen[doc.ID]; dup {
			logger.Warn("skipping document with duplicate id",
				"filename", raw.Filename,
				"doc_id", doc.ID,
				"first_filename", first,
			)
			continue
		}
		seen[doc.ID] = raw.Filename
		docs = append(docs, doc)
	}
	logger.Debug("corpus loaded", "raw", len(raws), "documents", len(docs))
	return docs, nil
}

// DocumentID derives the stable document id from a filename: the lowercased
// base name without extension, with runs of other characters collapsed to
// a single dash.
func DocumentID(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(base) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// StripMarkdown removes code fences, inline code ticks, emphasis markers,
// heading hashes and link targets, keeping the readable text.
func StripMarkdown(content string) string {
	content = fenceLinePattern.ReplaceAllString(content, "")
	content = inlineCodePattern.ReplaceAllString(content, "$1")
	content = imagePattern.ReplaceAllString(content, "$1")
	content = linkPattern.ReplaceAllString(content, "$1")
	content = headingHashPattern.ReplaceAllString(content, "")
	content = emphasisPattern.ReplaceAllString(content, "")
	return content
}

type outline struct {
	title     string
	headers   int
	listItems int
	hasCode   bool
}

// scanOutline walks the body line by line, ignoring fenced code, and records
// the first top-level heading plus header and list-item counts.
func scanOutline(body string) outline {
	var o outline
	inFence := false
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			o.hasCode = true
			continue
		}
		if inFence {
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			level := len(trimmed) - len(strings.TrimLeft(trimmed, "#"))
			text := strings.TrimSpace(strings.Trim(strings.TrimSpace(trimmed[level:]), "#"))
			if level > 6 || text == "" || trimmed[level] != ' ' && trimmed[level] != '\t' {
				continue
			}
			o.headers++
			if level == 1 && o.title == "" {
				o.title = text
			}
			continue
		}
		if listItemPattern.MatchString(line) {
			o.listItems++
		}
	}
	return o
}

func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	base = strings.TrimLeft(base, "# ")
	return strings.Join(strings.Fields(base), " ")
}

func deriveTags(explicit []string, filename, title, body string) []string {
	var tags []string
	seen := make(map[string]struct{})
	add := func(tag string) {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			return
		}
		if _, ok := seen[tag]; ok {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	for _, t := range explicit {
		add(t)
	}
	for _, t := range tokenizer.Terms(titleFromFilename(filename)) {
		add(t)
	}
	for _, t := range tokenizer.Terms(title) {
		add(t)
	}
	lowered := strings.ToLower(title + "\n" + body)
	for _, kw := range lexicon.TechKeywords {
		if lexicon.ContainsKeyword(lowered, kw) {
			add(kw)
		}
	}
	return tags
}

// relevancePrior scores how well-formed a document is, from 0.5 up to 1.0.
func relevancePrior(body string, titled bool, o outline) float64 {
	score := 0.5
	if titled {
		score += 0.1
	}
	length := utf8.RuneCountInString(body)
	if length > 500 {
		score += 0.1
	}
	if length > 1500 {
		score += 0.1
	}
	if o.headers >= 2 {
		score += 0.1
	}
	if o.listItems >= 3 || o.hasCode {
		score += 0.1
	}
	return math.Min(score, 1.0)
}
