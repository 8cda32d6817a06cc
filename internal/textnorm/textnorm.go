// Package textnorm builds the deterministic, length-bounded text that is embedded and
// compared. The same function must be used at write time (backfill, recompute jobs) and at
// query time, otherwise stored and query embeddings drift apart.
package textnorm

import (
	"strings"
	"unicode/utf8"

	"github.com/formbricks/riskmatch/internal/models"
)

// DefaultMaxLength is the maximum normalized length in runes when none is configured.
const DefaultMaxLength = 1024

const separator = "\n\n"

// Supplier profile labels. Each included field is prefixed so downstream substring checks
// can tell which field matched.
const (
	LabelServiceDescription   = "service description: "
	LabelRiskRationale        = "risk rationale: "
	LabelCriticalityRationale = "criticality rationale: "
	LabelName                 = "supplier name: "
	LabelTradingName          = "trading name: "
	LabelSupplierType         = "supplier type: "
)

// Normalizer combines record fields into comparison text.
type Normalizer struct {
	maxLength int
}

// New returns a Normalizer that truncates to maxLength runes. maxLength <= 0 uses DefaultMaxLength.
func New(maxLength int) *Normalizer {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	return &Normalizer{maxLength: maxLength}
}

// MaxLength returns the configured maximum length in runes.
func (n *Normalizer) MaxLength() int {
	return n.maxLength
}

// Combine joins the non-blank fields in the order title, threat, description, separated by a
// blank line, then lowercases, trims and truncates the result.
func (n *Normalizer) Combine(title string, threatDescription, description *string) string {
	parts := make([]string, 0, 3)
	parts = appendNonBlank(parts, "", &title)
	parts = appendNonBlank(parts, "", threatDescription)
	parts = appendNonBlank(parts, "", description)

	return n.finish(parts)
}

// CombineRecord is Combine applied to a record's fields.
func (n *Normalizer) CombineRecord(r models.Record) string {
	return n.Combine(r.Title, r.ThreatDescription, r.Description)
}

// CombineSupplierProfile builds supplier query text. The fields that carry the most risk signal
// come first so truncation drops identity fields before them.
func (n *Normalizer) CombineSupplierProfile(p models.SupplierProfile) string {
	parts := make([]string, 0, 6)
	parts = appendNonBlank(parts, LabelServiceDescription, p.ServiceDescription)
	parts = appendNonBlank(parts, LabelRiskRationale, p.RiskRationale)
	parts = appendNonBlank(parts, LabelCriticalityRationale, p.CriticalityRationale)
	parts = appendNonBlank(parts, LabelName, &p.Name)
	parts = appendNonBlank(parts, LabelTradingName, p.TradingName)
	parts = appendNonBlank(parts, LabelSupplierType, p.SupplierType)

	return n.finish(parts)
}

func (n *Normalizer) finish(parts []string) string {
	text := strings.TrimSpace(strings.ToLower(strings.Join(parts, separator)))

	return Truncate(text, n.maxLength)
}

func appendNonBlank(parts []string, label string, value *string) []string {
	if value == nil {
		return parts
	}

	v := strings.TrimSpace(*value)
	if v == "" {
		return parts
	}

	return append(parts, label+v)
}

// Truncate returns the first maxRunes runes of s.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}

	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}

	count := 0
	for i := range s {
		if count == maxRunes {
			return s[:i]
		}
		count++
	}

	return s
}

// Length returns the length of s in runes, the unit MaxLength is measured in.
func Length(s string) int {
	return utf8.RuneCountInString(s)
}
