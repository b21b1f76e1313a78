package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatFolio(t *testing.T) {
	assert.Equal(t, "INGRESO-06-3-2026-0001", FormatFolio("INGRESO", 2026, 6, 3, 1))
	assert.Equal(t, "EGRESO-11-1-2026-0042", FormatFolio("EGRESO", 2026, 11, 1, 42))
	// Consecutive wider than the pad keeps its digits.
	assert.Equal(t, "DIARIO-01-1-2027-12345", FormatFolio("DIARIO", 2027, 1, 1, 12345))
}

func TestClosingFolio(t *testing.T) {
	assert.Equal(t, "CIERRE-1-2026", ClosingFolio(1, 2026))
}

func TestNormalizeTaxDocRef(t *testing.T) {
	assert.Equal(t, "", NormalizeTaxDocRef(""))
	assert.Equal(t, "AD662D33-6934-459C-A128-BDF0393F0F44",
		NormalizeTaxDocRef("  ad662d33-6934-459c-a128-bdf0393f0f44 "))
	// Fullwidth digits fold to ASCII under NFKC.
	assert.Equal(t, "12345678-AAAA-BBBB-CCCC-DDDDEEEEFFFF",
		NormalizeTaxDocRef("１２345678-aaaa-bbbb-cccc-ddddeeeeffff"))
}
