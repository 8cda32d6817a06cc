package similarity

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/formbricks/riskmatch/internal/apperrors"
)

// ParseStage names the parser stage that produced a verdict.
type ParseStage string

// Parser stages, in the order they are tried.
const (
	StageNone   ParseStage = ""
	StageStrict ParseStage = "strict"
	StageBrace  ParseStage = "brace"
	StageDigits ParseStage = "digits"
)

// JudgeVerdict is the judge's answer. Score is unclamped; MatchedFields is never nil.
type JudgeVerdict struct {
	Score         float64
	MatchedFields []string
	Reasoning     string
}

type rawVerdict struct {
	Score         *json.Number `json:"score"`
	MatchedFields []string     `json:"matchedFields"` //nolint:tagliatelle // judge reply format
	Reasoning     string       `json:"reasoning"`
}

var standaloneNumber = regexp.MustCompile(`\b\d{1,3}\b`)

// ParseJudgeReply extracts a verdict from free-text judge output. It tries the whole reply as
// JSON (markdown code fences removed), then every balanced {...} substring in order, then the
// first standalone 1-3 digit number. It returns apperrors.ErrJudgeParse when all stages fail.
func ParseJudgeReply(reply string) (JudgeVerdict, ParseStage, error) {
	trimmed := stripCodeFence(reply)
	if trimmed == "" {
		return JudgeVerdict{}, StageNone, fmt.Errorf("%w: empty reply", apperrors.ErrJudgeParse)
	}

	if v, ok := decodeVerdict(trimmed); ok {
		return v, StageStrict, nil
	}

	for _, candidate := range balancedObjects(trimmed) {
		if v, ok := decodeVerdict(candidate); ok {
			return v, StageBrace, nil
		}
	}

	if m := standaloneNumber.FindString(trimmed); m != "" {
		n, err := strconv.Atoi(m)
		if err == nil {
			return JudgeVerdict{Score: float64(n), MatchedFields: []string{}}, StageDigits, nil
		}
	}

	return JudgeVerdict{}, StageNone, fmt.Errorf("%w: no JSON object or score in reply", apperrors.ErrJudgeParse)
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	return strings.TrimSpace(s)
}

// decodeVerdict accepts only objects carrying a numeric (or numeric-string) score.
func decodeVerdict(s string) (JudgeVerdict, bool) {
	var raw rawVerdict

	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	if err := dec.Decode(&raw); err != nil || dec.More() || raw.Score == nil {
		return JudgeVerdict{}, false
	}

	score, err := raw.Score.Float64()
	if err != nil {
		return JudgeVerdict{}, false
	}

	fields := raw.MatchedFields
	if fields == nil {
		fields = []string{}
	}

	return JudgeVerdict{Score: score, MatchedFields: fields, Reasoning: raw.Reasoning}, true
}

// balancedObjects returns every top-level balanced {...} substring of s, in order.
// Braces inside JSON string literals are ignored.
func balancedObjects(s string) []string {
	var (
		out      []string
		depth    int
		start    = -1
		inString bool
		escaped  bool
	)

	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}

			continue
		}

		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}

			depth++
		case '}':
			if depth == 0 {
				continue
			}

			depth--
			if depth == 0 {
				out = append(out, s[start:i+1])
			}
		}
	}

	return out
}
