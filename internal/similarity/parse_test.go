package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/riskmatch/internal/apperrors"
)

func TestParseJudgeReply(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		stage  ParseStage
		score  float64
		fields []string
	}{
		{
			name:   "strict json",
			reply:  `{"score": 88, "matchedFields": ["title", "description"], "reasoning": "same phishing vector"}`,
			stage:  StageStrict,
			score:  88,
			fields: []string{"title", "description"},
		},
		{
			name:   "code fenced json",
			reply:  "```json\n{\"score\": 72, \"matchedFields\": []}\n```",
			stage:  StageStrict,
			score:  72,
			fields: []string{},
		},
		{
			name:   "json surrounded by prose",
			reply:  `Here is my assessment: {"score": 64, "matchedFields": ["threatDescription"], "reasoning": "uses {braces} in text"} Hope this helps.`,
			stage:  StageBrace,
			score:  64,
			fields: []string{"threatDescription"},
		},
		{
			name:   "first object lacks score",
			reply:  `{"note": "thinking"} then {"score": 41}`,
			stage:  StageBrace,
			score:  41,
			fields: []string{},
		},
		{
			name:   "score as string",
			reply:  `{"score": "77"}`,
			stage:  StageStrict,
			score:  77,
			fields: []string{},
		},
		{
			name:   "truncated json falls back to digits",
			reply:  `{"score": 85, "matchedFields": ["title"`,
			stage:  StageDigits,
			score:  85,
			fields: []string{},
		},
		{
			name:   "plain text with number",
			reply:  "I would rate these 7 out of 10... final answer: 70",
			stage:  StageDigits,
			score:  7,
			fields: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, stage, err := ParseJudgeReply(tt.reply)
			require.NoError(t, err)
			assert.Equal(t, tt.stage, stage)
			assert.InDelta(t, tt.score, v.Score, 0.0001)
			assert.Equal(t, tt.fields, v.MatchedFields)
		})
	}
}

func TestParseJudgeReply_Failures(t *testing.T) {
	for _, reply := range []string{"", "   ", "no idea, sorry", "score: 1234"} {
		_, stage, err := ParseJudgeReply(reply)
		require.ErrorIs(t, err, apperrors.ErrJudgeParse, "reply %q", reply)
		assert.Equal(t, StageNone, stage)
	}
}

func TestBalancedObjects(t *testing.T) {
	got := balancedObjects(`a {"x": "}"} b {"y": {"z": 1}} c }`)
	assert.Equal(t, []string{`{"x": "}"}`, `{"y": {"z": 1}}`}, got)
}
