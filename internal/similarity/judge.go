package similarity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/formbricks/riskmatch/internal/apperrors"
	"github.com/formbricks/riskmatch/internal/models"
	"github.com/formbricks/riskmatch/internal/observability"
)

// DefaultJudgeTimeout bounds a single judge call when JudgeParams.Timeout is zero.
const DefaultJudgeTimeout = 60 * time.Second

// ChatProvider sends a prompt to a chat model and returns the raw reply text.
type ChatProvider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// JudgeParams configures a Judge. Metrics and Logger may be nil.
type JudgeParams struct {
	Provider ChatProvider
	Timeout  time.Duration
	Metrics  observability.MatchingMetrics
	Logger   *slog.Logger
}

// Judge asks an external chat model whether two risks describe the same scenario.
type Judge struct {
	provider ChatProvider
	timeout  time.Duration
	metrics  observability.MatchingMetrics
	logger   *slog.Logger
}

// NewJudge creates a Judge.
func NewJudge(p JudgeParams) *Judge {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultJudgeTimeout
	}

	return &Judge{
		provider: p.Provider,
		timeout:  timeout,
		metrics:  p.Metrics,
		logger:   logger,
	}
}

// Evaluate returns the judge's verdict for a and b. Errors are either provider failures
// (apperrors.ErrProviderUnavailable, context errors) or apperrors.ErrJudgeParse.
func (j *Judge) Evaluate(ctx context.Context, a, b models.Record) (JudgeVerdict, error) {
	if j == nil || j.provider == nil {
		return JudgeVerdict{}, fmt.Errorf("judge: %w: no chat provider configured", apperrors.ErrProviderUnavailable)
	}

	callCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	reply, err := j.provider.Complete(callCtx, BuildJudgePrompt(a, b))
	if err != nil {
		j.record(ctx, "provider_error")

		return JudgeVerdict{}, fmt.Errorf("judge: %w", err)
	}

	verdict, stage, err := ParseJudgeReply(reply)
	if err != nil {
		j.record(ctx, "parse_failed")

		return JudgeVerdict{}, fmt.Errorf("judge: %w", err)
	}

	j.record(ctx, string(stage))

	if stage == StageDigits {
		j.logger.WarnContext(ctx, "judge: structured parsing failed, using first number in reply",
			"score", verdict.Score,
			"reply_length", len(reply),
		)
	} else {
		j.logger.DebugContext(ctx, "judge: reply parsed", "stage", stage, "score", verdict.Score)
	}

	verdict.MatchedFields = knownFields(verdict.MatchedFields)

	return verdict, nil
}

func (j *Judge) record(ctx context.Context, stage string) {
	if j.metrics != nil {
		j.metrics.RecordJudgeCall(ctx, stage)
	}
}

// knownFields keeps recognised field names once each, in canonical order.
func knownFields(fields []string) []string {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		seen[strings.TrimSpace(f)] = true
	}

	out := []string{}

	for _, f := range []string{models.FieldTitle, models.FieldThreatDescription, models.FieldDescription} {
		if seen[f] {
			out = append(out, f)
		}
	}

	return out
}

// isJudgeUnavailable reports whether err came from the call rather than from parsing.
func isJudgeUnavailable(err error) bool {
	return !errors.Is(err, apperrors.ErrJudgeParse)
}

// BuildJudgePrompt renders the scoring rubric for a pair of records.
func BuildJudgePrompt(a, b models.Record) string {
	var sb strings.Builder

	sb.WriteString("You are a risk management analyst. Decide whether the two risks below describe the same underlying risk scenario.\n\n")
	writeRecord(&sb, "Risk A", a)
	writeRecord(&sb, "Risk B", b)
	sb.WriteString(`Score the pair strictly using these bands:
- 90-100: identical risk scenario
- 80-89: same threat with minor variation
- 70-79: related threat, different aspect
- 50-69: same category, different risk
- 30-49: unrelated, but both are security risks
- 0-29: unrelated

Penalize generic titles and incomplete descriptions: a short generic title or a risk without a threat or description is weak evidence of a match.

Respond with only a JSON object, no other text:
{"score": <integer 0-100>, "matchedFields": [<any of "title", "threatDescription", "description">], "reasoning": "<one sentence>"}
`)

	return sb.String()
}

func writeRecord(sb *strings.Builder, heading string, r models.Record) {
	fmt.Fprintf(sb, "%s\nTitle: %s\nThreat description: %s\nDescription: %s\n\n",
		heading, orNone(r.Title), orNone(deref(r.ThreatDescription)), orNone(deref(r.Description)))
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}

	return strings.TrimSpace(s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
