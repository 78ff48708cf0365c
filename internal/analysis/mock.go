package analysis

import (
	"context"
	"hash/fnv"

	"github.com/YourlocalJay/reddit-persona-validator/internal/core/validator"
)

// mockVerdicts mirrors the trust tiers the hosted providers are prompted
// to produce, from prime accounts down to obvious throwaways.
var mockVerdicts = []validator.Analysis{
	{Viability: 91, Tags: []string{"CPA", "Influence Ops", "Vault"}, Notes: "High-value account ready for deployment"},
	{Viability: 64, Tags: []string{"Community Building", "risk:limited post history"}, Notes: "Needs additional comment activity in key subreddits"},
	{Viability: 32, Tags: []string{"Monitoring Only", "risk:suspicious activity pattern"}, Notes: "Not recommended for primary operations"},
	{Viability: 14, Tags: []string{"risk:bot-like behavior", "risk:karma farming detected"}, Notes: "Avoid using this account for operations"},
}

// Mock is a deterministic offline analyzer: the verdict depends only on
// the account name, so repeated runs and tests see stable output without
// burning provider quota.
type Mock struct{}

func NewMock() *Mock { return &Mock{} }

// Analyze implements validator.ContentAnalyzer.
func (Mock) Analyze(_ context.Context, accountID, _ string) (validator.Analysis, error) {
	h := fnv.New32a()
	h.Write([]byte(accountID))
	v := mockVerdicts[h.Sum32()%uint32(len(mockVerdicts))]
	return validator.Analysis{
		Viability: v.Viability,
		Tags:      append([]string(nil), v.Tags...),
		Notes:     v.Notes,
	}, nil
}
