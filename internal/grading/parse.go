package grading

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// Reply labels. A model reply is expected to carry each label at most once,
// written as "LABEL: value".
const (
	LabelMarks            = "MARKS"
	LabelFeedback         = "FEEDBACK"
	LabelAccuracy         = "ACCURACY"
	LabelClarity          = "CLARITY"
	LabelCompleteness     = "COMPLETENESS"
	LabelContentAccuracy  = "CONTENT_ACCURACY"
	LabelClarityStructure = "CLARITY_STRUCTURE"
	LabelGrammarLanguage  = "GRAMMAR_LANGUAGE"
	LabelDepthExplanation = "DEPTH_EXPLANATION"

	LabelOverallFeedback  = "OVERALL_FEEDBACK"
	LabelStrengthAreas    = "STRENGTH_AREAS"
	LabelImprovementAreas = "IMPROVEMENT_AREAS"

	LabelMonthlyAssessment  = "MONTHLY_ASSESSMENT"
	LabelSubjectAnalysis    = "SUBJECT_ANALYSIS"
	LabelOverallProgress    = "OVERALL_PROGRESS"
	LabelRecommendedActions = "RECOMMENDED_ACTIONS"
)

// NoFeedback is used when a reply carries no FEEDBACK section.
const NoFeedback = "No feedback provided"

// Reply holds the labelled sections found in a model reply.
// Labels that were not found are absent from the map.
type Reply map[string]string

// ParseReply extracts the given labels from a model reply. Each section runs
// from its marker to the nearest following marker of another known label, or
// to the end of the text.
func ParseReply(text string, labels ...string) Reply {
	type hit struct {
		label      string
		start, end int // marker start, value start
	}
	hits := make([]hit, 0, len(labels))
	for _, l := range labels {
		if i := findLabel(text, l); i >= 0 {
			hits = append(hits, hit{label: l, start: i, end: i + len(l) + 1})
		}
	}

	r := make(Reply, len(hits))
	for _, h := range hits {
		stop := len(text)
		for _, o := range hits {
			if o.start >= h.end && o.start < stop {
				stop = o.start
			}
		}
		r[h.label] = strings.TrimSpace(text[h.end:stop])
	}
	return r
}

// findLabel returns the index of the first "LABEL:" marker that is not part
// of a longer identifier, or -1.
func findLabel(text, label string) int {
	marker := label + ":"
	from := 0
	for {
		i := strings.Index(text[from:], marker)
		if i < 0 {
			return -1
		}
		i += from
		if i == 0 || !isLabelRune(text[i-1]) {
			return i
		}
		from = i + len(marker)
	}
}

func isLabelRune(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

// Has reports whether the label was present.
func (r Reply) Has(label string) bool {
	_, ok := r[label]
	return ok
}

// Int returns the leading non-negative integer of a section, or 0 when the
// section is missing or does not start with digits. Values too large for an
// int saturate at math.MaxInt.
func (r Reply) Int(label string) int {
	v := strings.TrimLeft(r[label], " \t*[")
	end := 0
	for end < len(v) && v[end] >= '0' && v[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(v[:end])
	if errors.Is(err, strconv.ErrRange) {
		return math.MaxInt
	}
	if err != nil {
		return 0
	}
	return n
}

// Text returns a section's text, or fallback when it is missing or empty.
func (r Reply) Text(label, fallback string) string {
	v := strings.Trim(r[label], " \t\r\n*")
	if v == "" {
		return fallback
	}
	return v
}

// List splits a section on ';' and drops empty items.
func (r Reply) List(label string) []string {
	v, ok := r[label]
	if !ok {
		return []string{}
	}
	items := []string{}
	for _, part := range strings.Split(v, ";") {
		part = strings.TrimSpace(part)
		part = strings.TrimSpace(strings.TrimLeft(part, "-*•"))
		if part != "" {
			items = append(items, part)
		}
	}
	return items
}
