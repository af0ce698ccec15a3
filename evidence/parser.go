package evidence

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"github.com/poiesic/sakina/core"
)

const (
	quoteBody  = `["“]\s*([^"“”]+?)\s*["”]`
	leadIn     = `^[^"“]*?`
	refBracket = `\s*[,.;:]?\s*[\[(]\s*([^\])]+?)\s*[\])]`
	scholar    = `((?:(?:Imam|Shaykh|Shaikh|Sheikh|Hafiz|Dr\.?)\s+)?[A-Z][\p{L}'’\-]*(?:\s+[\p{L}'’\-]+){0,5}?)`
	verbs      = `(?:said|says|wrote|writes|stated|states|mentioned|mentions|remarked|noted|observed|explained)`
)

var (
	// chapter:verse, optionally with a range ("2:155-157")
	verseReference = regexp.MustCompile(`\d+\s*:\s*\d+`)

	collectionReference = regexp.MustCompile(`(?i)\b(?:bukh[aā]r[iī]|muslim|tirmidh[iī]|ab[uū]\s+d[aā]w[uū]d|nas[aā]'?[iī]|ibn\s+m[aā]jah|ahmad|musnad|muwatt?a|m[aā]lik|riy[aā]d|bul[uū]gh|mishk[aā]t|bayhaq[iī]|d[aā]rim[iī]|hadith|sunan|sahih|jami)\b`)

	// A quotation followed by a bracketed reference. Whether it is scripture
	// or tradition depends on the reference.
	referencedQuotePattern = regexp.MustCompile(leadIn + quoteBody + refBracket)

	scholarBeforePattern = regexp.MustCompile(`^(?:[Tt]he\s+(?:great\s+)?(?:scholar|imam|shaykh)\s+)?` + scholar + `\s+` + verbs + `\s*[:,]?\s*` + quoteBody + `(?:` + refBracket + `)?`)
	scholarAfterPattern  = regexp.MustCompile(`^` + quoteBody + `\s*(?:[—–~]|-{1,2})\s*` + scholar + `(?:` + refBracket + `)?\s*[.]?\s*$`)

	bulletPrefix = regexp.MustCompile(`^\s*(?:[-*•]|\d{1,3}[.)])\s+`)
)

// ExtractEvidenceSection isolates the evidence subsection(s) of a chapter:
// the text between an evidence heading and the next heading. Heading matches
// are case-insensitive. If no evidence heading exists the original text is
// returned unchanged with ok set to false.
func ExtractEvidenceSection(rawChapterText string) (section string, ok bool) {
	lines := strings.Split(rawChapterText, "\n")

	var collected []string
	inEvidence := false
	for _, line := range lines {
		kind, rest := classifySubsection(line)
		if kind == subsectionNone {
			if strength, _ := classifyTopic(line); strength != topicNone {
				kind = subsectionOther
			}
		}

		switch {
		case kind == subsectionEvidence:
			inEvidence = true
			ok = true
			if rest != "" {
				collected = append(collected, rest)
			}
		case kind != subsectionNone:
			inEvidence = false
		case inEvidence:
			collected = append(collected, line)
		}
	}

	if !ok {
		return rawChapterText, false
	}
	return strings.TrimSpace(strings.Join(collected, "\n")), true
}

// ParseEvidence splits an evidence section into sentences and classifies each
// one. The first matching pattern wins; unmatched sentences are dropped.
func ParseEvidence(evidenceSectionText, topicName string) []core.EvidenceItem {
	joined := joinQuotedLines(evidenceSectionText)
	var items []core.EvidenceItem
	for _, sentence := range splitSentences(joined) {
		sentence = bulletPrefix.ReplaceAllString(sentence, "")
		if item, ok := classifySentence(sentence); ok {
			items = append(items, item)
		}
	}
	slog.Debug("parsed evidence section", "topic", topicName, "items", len(items))
	return items
}

// ParseSection runs ExtractEvidenceSection and ParseEvidence together,
// reporting ErrNoEvidenceSection when the heading is missing.
func ParseSection(rawChapterText, topicName string) ([]core.EvidenceItem, error) {
	section, ok := ExtractEvidenceSection(rawChapterText)
	if !ok {
		return nil, ErrNoEvidenceSection
	}
	return ParseEvidence(section, topicName), nil
}

func classifySentence(sentence string) (core.EvidenceItem, bool) {
	if m := referencedQuotePattern.FindStringSubmatch(sentence); m != nil {
		// A named collection wins over a verse-like "volume:number"
		switch {
		case collectionReference.MatchString(m[2]):
			return core.EvidenceItem{
				Type:      core.EvidenceTypeTradition,
				Text:      m[1],
				Reference: m[2],
			}, true
		case verseReference.MatchString(m[2]):
			return core.EvidenceItem{
				Type:      core.EvidenceTypeScripture,
				Text:      m[1],
				Reference: m[2],
			}, true
		}
	}

	if m := scholarBeforePattern.FindStringSubmatch(sentence); m != nil {
		return scholarItem(m[1], m[2], m[3]), true
	}
	if m := scholarAfterPattern.FindStringSubmatch(sentence); m != nil {
		return scholarItem(m[2], m[1], m[3]), true
	}

	return core.EvidenceItem{}, false
}

func scholarItem(name, text, reference string) core.EvidenceItem {
	name = strings.TrimSpace(name)
	reference = strings.TrimSpace(reference)
	if reference == "" {
		reference = name
	}
	return core.EvidenceItem{
		Type:        core.EvidenceTypeScholarQuote,
		Text:        text,
		Reference:   reference,
		ScholarName: name,
	}
}

// quoteState tracks whether a position is inside a quotation or bracket.
type quoteState struct {
	straightOpen bool
	curlyDepth   int
	bracketDepth int
}

func (q *quoteState) feed(r rune) {
	switch r {
	case '"':
		q.straightOpen = !q.straightOpen
	case '“':
		q.curlyDepth++
	case '”':
		if q.curlyDepth > 0 {
			q.curlyDepth--
		}
	case '[', '(':
		if !q.inQuote() {
			q.bracketDepth++
		}
	case ']', ')':
		if !q.inQuote() && q.bracketDepth > 0 {
			q.bracketDepth--
		}
	}
}

func (q *quoteState) inQuote() bool {
	return q.straightOpen || q.curlyDepth > 0
}

// joinQuotedLines joins lines while a quotation is still open, so a
// quotation spanning several lines is classified as one sentence.
func joinQuotedLines(text string) string {
	lines := strings.Split(text, "\n")
	var sb strings.Builder
	var state quoteState
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		for _, r := range trimmed {
			state.feed(r)
		}
		sb.WriteString(trimmed)
		if i == len(lines)-1 {
			break
		}
		if state.inQuote() {
			sb.WriteByte(' ')
		} else {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// splitSentences splits on newlines and on terminal punctuation followed by
// whitespace, never inside a quotation or a reference bracket.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	var state quoteState

	flush := func() {
		s := strings.TrimSpace(current.String())
		if s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' && !state.inQuote() {
			flush()
			continue
		}
		state.feed(r)
		current.WriteRune(r)

		if state.inQuote() || state.bracketDepth > 0 {
			continue
		}
		switch r {
		case '.', '!', '?':
			if i == len(runes)-1 || runes[i+1] == ' ' || runes[i+1] == '\t' {
				flush()
			}
		case ']', ')':
			// A reference closes the sentence when a new one starts right after it.
			if startsNewSentence(runes[i+1:]) {
				flush()
			}
		}
	}
	flush()
	return sentences
}

// startsNewSentence reports whether rest begins with whitespace followed by a
// capital letter or an opening quotation mark.
func startsNewSentence(rest []rune) bool {
	if len(rest) < 2 || !unicode.IsSpace(rest[0]) {
		return false
	}
	for _, r := range rest {
		if unicode.IsSpace(r) {
			continue
		}
		return unicode.IsUpper(r) || r == '"' || r == '“'
	}
	return false
}
