package shared

import "fmt"

const folioLockNS = "koreacc:folio"

// FolioLockKey builds the advisory-lock key serialising folio issuance for
// one (document nature, year, month, cost center) scope. Unrelated scopes
// hash to different keys and never contend.
func FolioLockKey(nature string, year, month int, costCenterID int64) string {
	return fmt.Sprintf("%s|%s|%d|%d|%d", folioLockNS, nature, year, month, costCenterID)
}

// CloseLockKey guards the close/carry-forward saga for one exercise.
func CloseLockKey(exerciseID int64) string {
	return fmt.Sprintf("koreacc:exercise:%d:close", exerciseID)
}
