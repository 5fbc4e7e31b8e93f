package reporter

import (
	"ledger-location-reconciler/internal/budget"
	"ledger-location-reconciler/internal/models"
)

// AnnotateCategories fills each transaction's Category from its account
// code. Already-annotated transactions keep their category, so the
// annotation is idempotent across repeated report generations.
func AnnotateCategories(transactions []*models.Transaction) {
	for _, tx := range transactions {
		if tx.Category != "" {
			continue
		}
		tx.Category = budget.NormalizeCategory(budget.CategoryForAccount(tx.AccountCode))
	}
}
