package search

import (
	"strings"
	"unicode"

	"github.com/inkleaf/inkleaf/internal/models"
)

// TypeStrokeGroup is the element type recorded for recognized stroke groups;
// the other entry types reuse the model element type names.
const TypeStrokeGroup = "stroke_group"

// Filter narrows a search to one kind of indexed content.
type Filter string

const (
	FilterAll         Filter = "all"
	FilterText        Filter = "text"
	FilterHandwriting Filter = "handwriting"
	FilterVoice       Filter = "voice"
)

func (f Filter) elementTypes() []string {
	switch f {
	case FilterText:
		return []string{string(models.TypeText)}
	case FilterHandwriting:
		return []string{TypeStrokeGroup}
	case FilterVoice:
		return []string{string(models.TypeVoiceMemo)}
	default:
		return nil
	}
}

// Result is one search hit with presentation extras.
type Result struct {
	Entry     SearchEntry
	Snippet   string
	Relevance float64
	Bounds    *BoundingBox
}

// Engine converts user queries to FTS5 syntax and shapes raw index hits into
// presentable results.
type Engine struct {
	index         *Index
	prefixMinLen  int
	snippetLength int
}

// NewEngine creates an engine over an open index.
func NewEngine(index *Index, prefixMinLen, snippetLength int) *Engine {
	if prefixMinLen <= 0 {
		prefixMinLen = 2
	}
	if snippetLength <= 0 {
		snippetLength = 100
	}
	return &Engine{
		index:         index,
		prefixMinLen:  prefixMinLen,
		snippetLength: snippetLength,
	}
}

// Search runs a user query with a content filter and optional notebook
// restriction. Results come back in index rank order with snippets and a
// position-based relevance score.
func (e *Engine) Search(query string, filter Filter, notebookID string, limit int) ([]Result, error) {
	ftsQuery := ToFTSQuery(query, e.prefixMinLen)
	if ftsQuery == "" {
		return nil, nil
	}

	entries, err := e.index.Search(ftsQuery, filter.elementTypes(), notebookID, limit)
	if err != nil {
		return nil, err
	}

	terms := queryTerms(query)
	results := make([]Result, 0, len(entries))
	for _, entry := range entries {
		r := Result{Entry: entry}
		r.Snippet, r.Relevance = e.snippet(entry.TextContent, terms)
		if b, ok := ParseBoundingBox(entry.BoundingBox); ok {
			r.Bounds = &b
		}
		results = append(results, r)
	}
	return results, nil
}

// ToFTSQuery converts a user query into FTS5 syntax: bare words become
// prefix tokens when long enough, quoted segments stay exact phrases, and
// uppercase AND/OR/NOT pass through as operators. Everything else has its
// punctuation stripped.
func ToFTSQuery(query string, prefixMinLen int) string {
	var parts []string
	for _, tok := range splitQuery(query) {
		if tok.quoted {
			phrase := strings.TrimSpace(tok.text)
			if phrase != "" {
				parts = append(parts, `"`+strings.ReplaceAll(phrase, `"`, ``)+`"`)
			}
			continue
		}
		if tok.text == "AND" || tok.text == "OR" || tok.text == "NOT" {
			parts = append(parts, tok.text)
			continue
		}
		word := stripPunct(tok.text)
		if word == "" {
			continue
		}
		if len([]rune(word)) >= prefixMinLen {
			parts = append(parts, word+"*")
		} else {
			parts = append(parts, word)
		}
	}
	return strings.Join(parts, " ")
}

type queryToken struct {
	text   string
	quoted bool
}

// splitQuery tokenizes on whitespace while keeping double-quoted segments
// intact. An unterminated quote swallows the rest of the query.
func splitQuery(query string) []queryToken {
	var tokens []queryToken
	var current strings.Builder
	inQuote := false

	flush := func(quoted bool) {
		if current.Len() > 0 {
			tokens = append(tokens, queryToken{text: current.String(), quoted: quoted})
			current.Reset()
		}
	}

	for _, r := range query {
		switch {
		case r == '"':
			flush(inQuote)
			inQuote = !inQuote
		case unicode.IsSpace(r) && !inQuote:
			flush(false)
		default:
			current.WriteRune(r)
		}
	}
	flush(inQuote)
	return tokens
}

func stripPunct(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// queryTerms extracts the plain terms used for snippet highlighting.
func queryTerms(query string) []string {
	var terms []string
	for _, tok := range splitQuery(query) {
		if !tok.quoted && (tok.text == "AND" || tok.text == "OR" || tok.text == "NOT") {
			continue
		}
		text := tok.text
		if !tok.quoted {
			text = stripPunct(text)
		}
		if text != "" {
			terms = append(terms, text)
		}
	}
	return terms
}

// snippet builds a window around the first term match, wrapping matches in
// ** markers, and scores relevance by how early the match appears.
func (e *Engine) snippet(text string, terms []string) (string, float64) {
	lower := strings.ToLower(text)
	matchPos := -1
	matchLen := 0
	for _, term := range terms {
		pos := strings.Index(lower, strings.ToLower(term))
		if pos >= 0 && (matchPos < 0 || pos < matchPos) {
			matchPos = pos
			matchLen = len(term)
		}
	}

	if matchPos < 0 {
		// Stemmed or prefix match without a literal occurrence.
		if len(text) > e.snippetLength {
			return text[:e.snippetLength] + "...", 0.5
		}
		return text, 0.5
	}

	matchEnd := matchPos + matchLen
	if matchEnd > len(text) {
		matchEnd = len(text)
	}
	start := matchPos - e.snippetLength/2
	if start < 0 {
		start = 0
	}
	end := start + e.snippetLength
	if end < matchEnd {
		end = matchEnd
	}
	if end > len(text) {
		end = len(text)
	}

	highlighted := text[start:matchPos] + "**" + text[matchPos:matchEnd] + "**" + text[matchEnd:end]
	if start > 0 {
		highlighted = "..." + highlighted
	}
	if end < len(text) {
		highlighted += "..."
	}

	relevance := 1.0 - float64(matchPos)/float64(len(text)+1)
	return highlighted, relevance
}
