package doctypes

import (
	"fmt"
	"strings"
	"time"

	"github.com/koreacc/koreacc/internal/shared"
)

// Well-known nature tags the closing engine looks up by name.
const (
	NatureOpening = "apertura"
	NatureClosing = "cierre"
)

// DocumentType classifies journal entries. The nature tag is a free semantic
// key; its upper-cased form becomes the folio prefix.
type DocumentType struct {
	ID          int64
	Nature      string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FolioPrefix is the upper-cased nature used when formatting folios.
func (dt DocumentType) FolioPrefix() string {
	return strings.ToUpper(strings.TrimSpace(dt.Nature))
}

// CreateInput carries fields for a new document type.
type CreateInput struct {
	Nature      string
	Description string
}

func (in CreateInput) Validate() error {
	if strings.TrimSpace(in.Nature) == "" {
		return fmt.Errorf("doctypes: nature required: %w", shared.ErrValidation)
	}
	return nil
}

// UpdateInput patches a document type.
type UpdateInput struct {
	Nature      *string
	Description *string
}

var (
	// ErrTypeNotFound indicates a missing document type.
	ErrTypeNotFound = fmt.Errorf("doctypes: document type %w", shared.ErrNotFound)
	// ErrDuplicateNature rejects a second type with the same nature tag.
	ErrDuplicateNature = fmt.Errorf("doctypes: nature already registered: %w", shared.ErrConflict)
)
