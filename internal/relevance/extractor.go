// Package relevance bounds what the language model sees: it reduces an
// unbounded filing text to an excerpt likely to contain the fact being
// sought, within a hard size budget.
package relevance

import (
	"regexp"
	"sort"
	"strings"
)

// Excerpt is a bounded slice of filing text plus the strategy chain that
// produced it, for observability.
type Excerpt struct {
	Text     string
	Strategy string
}

// Extractor configures the excerpting pipeline. The zero value is unusable;
// construct with New.
type Extractor struct {
	budget     int
	minSection int
	windowSize int
	keywords   []string
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithKeywords overrides the default asset keyword list.
func WithKeywords(kw []string) Option {
	return func(e *Extractor) { e.keywords = kw }
}

// WithMinSectionChars sets the minimum length for a hinted section to count.
func WithMinSectionChars(n int) Option {
	return func(e *Extractor) { e.minSection = n }
}

// WithWindowSize sets the character window captured around keyword hits.
func WithWindowSize(n int) Option {
	return func(e *Extractor) { e.windowSize = n }
}

// defaultKeywords cover the treasury-holdings vocabulary seen in filings.
var defaultKeywords = []string{
	"bitcoin", "btc", "ethereum", "eth", "digital asset", "crypto",
	"shares outstanding", "shares of common stock", "treasury",
	"purchased", "acquired", "aggregate",
}

// New creates an Extractor with the given character budget.
func New(budget int, opts ...Option) Extractor {
	e := Extractor{
		budget:     budget,
		minSection: 200,
		windowSize: 800,
		keywords:   defaultKeywords,
	}
	for _, opt := range opts {
		opt(&e)
	}
	if e.budget <= 0 {
		e.budget = 20000
	}
	return e
}

var numericPattern = regexp.MustCompile(`\d[\d,]{2,}`)

// ShouldAttempt is a cheap pre-check gating whether extraction (and the
// model call behind it) is worth attempting: the text must mention at least
// one keyword AND contain a multi-digit number.
func (e Extractor) ShouldAttempt(text string) bool {
	lower := strings.ToLower(text)
	hasKeyword := false
	for _, kw := range e.keywords {
		if strings.Contains(lower, kw) {
			hasKeyword = true
			break
		}
	}
	return hasKeyword && numericPattern.MatchString(text)
}

// Extract produces a bounded excerpt. Strategies are tried in order until
// the budget is reasonably filled; the output never exceeds the budget and
// is empty only when the input is empty.
func (e Extractor) Extract(text string, sectionHints []string) Excerpt {
	if text == "" {
		return Excerpt{}
	}

	var b builder
	b.limit = e.budget
	var strategies []string

	// 1. Hinted sections.
	if len(sectionHints) > 0 {
		if e.appendHintedSections(&b, text, sectionHints) {
			strategies = append(strategies, "sections")
		}
	}

	// 2. Exhibit / press-release block, when still under half budget.
	if b.len() < e.budget/2 {
		if e.appendExhibitBlock(&b, text) {
			strategies = append(strategies, "exhibit")
		}
	}

	// 3. Keyword windows expanded to sentence boundaries.
	if b.len() < e.budget/2 {
		if e.appendKeywordWindows(&b, text) {
			strategies = append(strategies, "keyword_windows")
		}
	}

	// 4. Table-like regions mentioning holdings or shares.
	if b.remaining() > e.minSection {
		if e.appendTables(&b, text) {
			strategies = append(strategies, "tables")
		}
	}

	// 5. Nothing qualified: hard truncation.
	if b.len() == 0 {
		b.add(text)
		strategies = append(strategies, "truncate")
	}

	return Excerpt{Text: b.String(), Strategy: strings.Join(strategies, "+")}
}

// builder accumulates excerpt parts under a hard character limit.
type builder struct {
	parts []string
	total int
	limit int
}

func (b *builder) len() int       { return b.total }
func (b *builder) remaining() int { return b.limit - b.total }

// add appends s, trimming it to the remaining budget. Returns false when no
// room was left at all.
func (b *builder) add(s string) bool {
	room := b.remaining()
	if len(b.parts) > 0 {
		room -= 2 // separator
	}
	if room <= 0 {
		return false
	}
	if len(s) > room {
		s = s[:room]
	}
	b.parts = append(b.parts, s)
	b.total = len(b.String())
	return true
}

func (b *builder) String() string {
	return strings.Join(b.parts, "\n\n")
}

// lowerASCII lowercases ASCII letters only. Positions found in the lowered
// copy index back into the original text, so the lowering must preserve
// byte offsets; Unicode-aware lowering can change byte lengths.
func lowerASCII(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// sectionHeaderRe matches filing item headers ("Item 8.01", "ITEM 2.").
var sectionHeaderRe = regexp.MustCompile(`(?im)^\s*item\s+\d+(\.\d+)?\.?`)

// appendHintedSections locates each hinted section header and captures text
// up to the next section header. Sections under the minimum length are
// discarded as noise.
func (e Extractor) appendHintedSections(b *builder, text string, hints []string) bool {
	lower := lowerASCII(text)
	added := false

	for _, hint := range hints {
		h := lowerASCII(strings.TrimSpace(hint))
		if h == "" {
			continue
		}
		start := strings.Index(lower, h)
		if start < 0 {
			continue
		}

		rest := text[start:]
		end := len(rest)
		// Next section header after the hint's own line.
		if loc := sectionHeaderRe.FindStringIndex(rest[len(h):]); loc != nil {
			end = len(h) + loc[0]
		}

		section := strings.TrimSpace(rest[:end])
		if len(section) < e.minSection {
			continue
		}
		if b.add(section) {
			added = true
		}
	}
	return added
}

// exhibitMarkers flag the start of a press-release style exhibit, the usual
// carrier for human-readable holdings summaries.
var exhibitMarkers = []string{
	"exhibit 99", "ex-99", "press release",
}

// appendExhibitBlock captures a single large exhibit block, if present.
func (e Extractor) appendExhibitBlock(b *builder, text string) bool {
	lower := lowerASCII(text)
	for _, marker := range exhibitMarkers {
		start := strings.Index(lower, marker)
		if start < 0 {
			continue
		}
		block := text[start:]
		if len(block) < e.minSection {
			continue
		}
		return b.add(strings.TrimSpace(block))
	}
	return false
}

// appendKeywordWindows scans for keyword hits and captures a symmetric
// window around each, expanded to sentence boundaries. Overlapping windows
// are merged before appending.
func (e Extractor) appendKeywordWindows(b *builder, text string) bool {
	lower := lowerASCII(text)
	half := e.windowSize / 2

	type span struct{ start, end int }
	var spans []span

	for _, kw := range e.keywords {
		from := 0
		for {
			i := strings.Index(lower[from:], kw)
			if i < 0 {
				break
			}
			hit := from + i
			s := expandToSentenceStart(text, max(0, hit-half))
			en := expandToSentenceEnd(text, min(len(text), hit+len(kw)+half))
			spans = append(spans, span{s, en})
			from = hit + len(kw)
		}
	}
	if len(spans) == 0 {
		return false
	}

	// Merge overlaps so duplicated text never enters the excerpt.
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	merged := spans[:1]
	for _, sp := range spans[1:] {
		last := &merged[len(merged)-1]
		if sp.start <= last.end {
			if sp.end > last.end {
				last.end = sp.end
			}
			continue
		}
		merged = append(merged, sp)
	}

	added := false
	for _, sp := range merged {
		if b.remaining() <= 0 {
			break
		}
		if b.add(strings.TrimSpace(text[sp.start:sp.end])) {
			added = true
		}
	}
	return added
}

var tableKeywords = []string{"holdings", "shares", "aggregate", "outstanding"}

// appendTables captures table-like regions (runs of delimiter-heavy lines)
// whose content mentions holdings or share vocabulary.
func (e Extractor) appendTables(b *builder, text string) bool {
	lines := strings.Split(text, "\n")
	added := false

	var block []string
	flush := func() {
		if len(block) < 2 {
			block = nil
			return
		}
		joined := strings.Join(block, "\n")
		block = nil
		lower := strings.ToLower(joined)
		for _, kw := range tableKeywords {
			if strings.Contains(lower, kw) {
				if b.add(joined) {
					added = true
				}
				return
			}
		}
	}

	for _, line := range lines {
		if looksTabular(line) {
			block = append(block, line)
			continue
		}
		flush()
	}
	flush()
	return added
}

// looksTabular reports whether a line has the delimiter density of a table
// row: pipes, tabs, or several runs of multi-space column gaps.
func looksTabular(line string) bool {
	if strings.Count(line, "|") >= 2 || strings.Count(line, "\t") >= 2 {
		return true
	}
	return strings.Count(line, "   ") >= 2 && numericPattern.MatchString(line)
}

var sentenceEnders = ".!?\n"

// expandToSentenceStart walks backward from pos to the start of the
// enclosing sentence.
func expandToSentenceStart(text string, pos int) int {
	for i := pos; i > 0; i-- {
		if strings.ContainsRune(sentenceEnders, rune(text[i-1])) {
			return i
		}
	}
	return 0
}

// expandToSentenceEnd walks forward from pos to the end of the enclosing
// sentence.
func expandToSentenceEnd(text string, pos int) int {
	for i := pos; i < len(text); i++ {
		if strings.ContainsRune(sentenceEnders, rune(text[i])) {
			return i + 1
		}
	}
	return len(text)
}
