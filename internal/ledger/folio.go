package ledger

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/koreacc/koreacc/internal/shared"
)

// FormatFolio renders the human-readable document number for a scope and
// consecutive: {TYPE}-{MM}-{costCenter}-{YYYY}-{cccc}.
func FormatFolio(prefix string, year, month int, costCenterID int64, consecutive int) string {
	return fmt.Sprintf("%s-%02d-%d-%d-%04d", prefix, month, costCenterID, year, consecutive)
}

// ClosingFolio is the fixed label carried by exercise closing entries.
func ClosingFolio(companyID int64, year int) string {
	return fmt.Sprintf("CIERRE-%d-%d", companyID, year)
}

// nextConsecutive issues the next folio number for the scope (nature, year,
// month, cost center). It takes the scope lock for the rest of the enclosing
// transaction, then reads max+1 under FOR UPDATE. The unique index on the
// entry tuple is the backstop if the lock is ever bypassed.
func nextConsecutive(ctx context.Context, tx TxRepository, prefix string, year, month int, costCenterID int64) (int, error) {
	key := shared.FolioLockKey(prefix, year, month, costCenterID)
	if err := tx.AcquireScopeLock(ctx, key); err != nil {
		return 0, fmt.Errorf("acquire folio lock %s: %w", key, err)
	}
	max, err := tx.MaxConsecutive(ctx, prefix, year, month, costCenterID)
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

// NormalizeTaxDocRef canonicalizes an external tax document id the way the
// import pipeline delivers them: NFKC form, trimmed, upper-cased. Returns
// the empty string unchanged.
func NormalizeTaxDocRef(ref string) string {
	if ref == "" {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(norm.NFKC.String(ref)))
}
