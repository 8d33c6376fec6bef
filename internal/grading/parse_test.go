package grading

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseReply(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		labels []string
		want   Reply
	}{
		{
			name:   "single word reply",
			text:   "MARKS: 2\nFEEDBACK: Correct, gravity is the force.",
			labels: []string{LabelMarks, LabelFeedback},
			want:   Reply{LabelMarks: "2", LabelFeedback: "Correct, gravity is the force."},
		},
		{
			name:   "preamble and reordered labels",
			text:   "Sure! Here is the grade.\nFEEDBACK: Clear answer.\nMARKS: 1",
			labels: []string{LabelMarks, LabelFeedback},
			want:   Reply{LabelMarks: "1", LabelFeedback: "Clear answer."},
		},
		{
			name:   "missing label is absent",
			text:   "MARKS: 0",
			labels: []string{LabelMarks, LabelFeedback},
			want:   Reply{LabelMarks: "0"},
		},
		{
			name:   "label inside longer label is ignored",
			text:   "CONTENT_ACCURACY: 4\nCLARITY_STRUCTURE: 2",
			labels: []string{LabelAccuracy, LabelClarity, LabelContentAccuracy, LabelClarityStructure},
			want:   Reply{LabelContentAccuracy: "4", LabelClarityStructure: "2"},
		},
		{
			name:   "multi-line section",
			text:   "OVERALL_FEEDBACK: Good work.\nKeep going.\nSTRENGTH_AREAS: recall",
			labels: []string{LabelOverallFeedback, LabelStrengthAreas},
			want:   Reply{LabelOverallFeedback: "Good work.\nKeep going.", LabelStrengthAreas: "recall"},
		},
		{
			name:   "empty text",
			text:   "",
			labels: []string{LabelMarks},
			want:   Reply{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseReply(tt.text, tt.labels...))
		})
	}
}

func TestReplyInt(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"2", 2},
		{" 4 points", 4},
		{"**3**", 3},
		{"[5]", 5},
		{"3/5", 3},
		{"two", 0},
		{"-1", 0},
		{"", 0},
		{"99999999999999999999999", math.MaxInt},
	}
	for _, tt := range tests {
		r := Reply{LabelMarks: tt.value}
		assert.Equal(t, tt.want, r.Int(LabelMarks), "value %q", tt.value)
	}
	assert.Zero(t, Reply{}.Int(LabelMarks))
}

func TestReplyText(t *testing.T) {
	r := Reply{LabelFeedback: " **Well done.** ", LabelOverallFeedback: "   "}
	assert.Equal(t, "Well done.", r.Text(LabelFeedback, NoFeedback))
	assert.Equal(t, NoFeedback, r.Text(LabelOverallFeedback, NoFeedback))
	assert.Equal(t, NoFeedback, r.Text(LabelMarks, NoFeedback))
	assert.True(t, r.Has(LabelFeedback))
	assert.False(t, r.Has(LabelMarks))
}

func TestReplyList(t *testing.T) {
	r := Reply{
		LabelStrengthAreas:    "recall of facts; - clear structure;; • vocabulary ;",
		LabelImprovementAreas: "",
	}
	assert.Equal(t, []string{"recall of facts", "clear structure", "vocabulary"}, r.List(LabelStrengthAreas))
	assert.Equal(t, []string{}, r.List(LabelImprovementAreas))
	assert.NotNil(t, r.List(LabelRecommendedActions))
	assert.Empty(t, r.List(LabelRecommendedActions))
}
