package handler

import (
	"github.com/google/uuid"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/processor"
)

func newReference() string {
	return "batch-" + uuid.NewString()
}

func summarizeBatch(responses []processor.Response) map[string]interface{} {
	counts := make(map[processor.Outcome]int)
	for _, r := range responses {
		counts[r.Outcome]++
	}

	total := len(responses)
	rate := 0.0
	if total > 0 {
		rate = float64(counts[processor.OutcomeAuthorised]) / float64(total)
	}
	return map[string]interface{}{
		"total":          total,
		"outcomes":       counts,
		"authorise_rate": rate,
	}
}
