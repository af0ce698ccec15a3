package evidence

import (
	"regexp"
	"strings"
	"unicode"
)

// subsection is the kind of a heading inside a topic section.
type subsection int

const (
	subsectionNone subsection = iota
	subsectionSymptoms
	subsectionEvidence
	subsectionTreatment
	subsectionOther
)

// subsectionRule maps heading prefixes to a subsection kind.
// Rules are evaluated in order; the first match wins.
type subsectionRule struct {
	prefixes []string
	kind     subsection
}

var subsectionRules = []subsectionRule{
	{prefixes: []string{"academic treatment", "treatment", "treatments", "remedy", "remedies", "cure", "cures"}, kind: subsectionTreatment},
	{prefixes: []string{"evidence", "evidences", "proof", "proofs", "dalil", "textual evidence"}, kind: subsectionEvidence},
	{prefixes: []string{"symptoms", "symptom", "signs", "sign"}, kind: subsectionSymptoms},
	{prefixes: []string{"causes", "cause", "summary", "notes", "overview", "description"}, kind: subsectionOther},
}

// maxHeadingWords bounds how long a heading label can be. Longer lines are
// treated as prose even when they start with a heading keyword.
const maxHeadingWords = 6

var (
	numberingPattern   = regexp.MustCompile(`^(?:\d{1,3}(?:\.\d{1,3})*[.)]?|[ivxIVX]{1,4}[.)])\s+`)
	numberedTopicLine  = regexp.MustCompile(`^\s*\d{1,3}[.)]\s+(\S.*)$`)
	chapterTopicLine   = regexp.MustCompile(`(?i)^\s*(?:chapter|topic|part|disease|section)\s+\d{1,3}\s*[:.\-–—]?\s*(\S.*)$`)
	markdownHeading    = regexp.MustCompile(`^\s*(#{1,6})\s+(\S.*)$`)
	localizedInParens  = regexp.MustCompile(`^(.+?)\s*[(\[]([^)\]]+)[)\]]\s*$`)
	localizedSeparator = regexp.MustCompile(`\s+(?:[-–—/|])\s+`)
)

// cleanHeading strips markdown markers, bullets, numbering and emphasis.
func cleanHeading(line string) string {
	s := strings.TrimSpace(line)
	s = strings.TrimLeft(s, "#")
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "*-• ")
	s = numberingPattern.ReplaceAllString(s, "")
	s = strings.Trim(s, "*_ ")
	return strings.TrimSpace(s)
}

// classifySubsection reports whether line is a subsection heading. When the
// heading carries inline content ("Evidence: ...") the content is returned.
func classifySubsection(line string) (subsection, string) {
	cleaned := cleanHeading(line)
	if cleaned == "" || startsWithQuote(cleaned) {
		return subsectionNone, ""
	}

	head, rest := cleaned, ""
	if idx := strings.IndexAny(cleaned, ":："); idx >= 0 {
		head = cleaned[:idx]
		rest = strings.TrimSpace(strings.TrimLeft(cleaned[idx:], ":："))
	}
	head = strings.Trim(strings.TrimSpace(head), "*_")
	if len(strings.Fields(head)) > maxHeadingWords {
		return subsectionNone, ""
	}
	// Prose such as "Evidence shows that ..." without a colon is not a heading.
	if rest == "" && strings.ContainsAny(head, ".!?\"“") {
		return subsectionNone, ""
	}

	lower := strings.ToLower(head)
	for _, rule := range subsectionRules {
		for _, prefix := range rule.prefixes {
			if hasWordPrefix(lower, prefix) {
				return rule.kind, rest
			}
		}
	}
	return subsectionNone, ""
}

// hasWordPrefix reports whether s starts with prefix on a word boundary.
func hasWordPrefix(s, prefix string) bool {
	if !strings.HasPrefix(s, prefix) {
		return false
	}
	if len(s) == len(prefix) {
		return true
	}
	next := rune(s[len(prefix)])
	return !unicode.IsLetter(next) && !unicode.IsDigit(next)
}

func startsWithQuote(s string) bool {
	return strings.HasPrefix(s, `"`) || strings.HasPrefix(s, "“")
}

// topicStrength distinguishes explicit headings from numbered lines, which
// are only accepted when the section they open has subsection headings.
type topicStrength int

const (
	topicNone topicStrength = iota
	topicWeak
	topicStrong
)

// classifyTopic reports whether line opens a new topic and returns its title.
func classifyTopic(line string) (topicStrength, string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return topicNone, ""
	}
	if kind, _ := classifySubsection(trimmed); kind != subsectionNone {
		return topicNone, ""
	}

	if m := markdownHeading.FindStringSubmatch(trimmed); m != nil {
		if len(m[1]) > 2 {
			return topicNone, ""
		}
		return topicStrong, cleanHeading(m[2])
	}
	if m := chapterTopicLine.FindStringSubmatch(trimmed); m != nil {
		return topicStrong, cleanHeading(m[1])
	}
	if m := numberedTopicLine.FindStringSubmatch(trimmed); m != nil {
		title := cleanHeading(m[1])
		if looksLikeTitle(title) {
			return topicWeak, title
		}
		return topicNone, ""
	}
	if isCapitalizedTitle(trimmed) {
		return topicStrong, titleCase(cleanHeading(trimmed))
	}
	return topicNone, ""
}

// looksLikeTitle rejects sentences: titles are short, start upper-case and do
// not end in sentence punctuation.
func looksLikeTitle(s string) bool {
	if s == "" || len(strings.Fields(s)) > 8 {
		return false
	}
	if strings.ContainsAny(s[len(s)-1:], ".!?;,:") || strings.ContainsAny(s, "\"“”[]") {
		return false
	}
	first := []rune(s)[0]
	return unicode.IsUpper(first)
}

// isCapitalizedTitle matches ALL-CAPS lines such as "SADNESS (HUZN)".
func isCapitalizedTitle(s string) bool {
	if len(strings.Fields(s)) > 10 || strings.ContainsAny(s, ".!?\"“") {
		return false
	}
	letters := 0
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		// Scripts without case (e.g. Arabic) do not count either way.
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			letters++
		}
	}
	return letters >= 3
}

// titleCase turns "SADNESS (HUZN)" into "Sadness (Huzn)".
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		runes := []rune(w)
		for j, r := range runes {
			if unicode.IsLetter(r) {
				runes[j] = unicode.ToUpper(r)
				break
			}
		}
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// splitTitle separates a topic title from its localized name, for example
// "Sadness (Huzn)" or "Anxiety – Qalaq".
func splitTitle(title string) (string, string) {
	if m := localizedInParens.FindStringSubmatch(title); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	if parts := localizedSeparator.Split(title, 2); len(parts) == 2 {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(title), ""
}
