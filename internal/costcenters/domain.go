package costcenters

import (
	"fmt"
	"strings"
	"time"

	"github.com/koreacc/koreacc/internal/shared"
)

// CostCenter is a node in the company cost-center hierarchy. The parent
// graph is acyclic; Move enforces that invariant.
type CostCenter struct {
	ID         int64
	Name       string
	SaleSeries string
	Street     string
	ExteriorNo int
	InteriorNo *int
	PostalCode string
	Region     string
	Phone      string
	Email      string
	ParentID   *int64
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SubtreeNode pairs a center with its depth below the subtree root.
type SubtreeNode struct {
	CostCenter
	Depth int
}

// CreateInput carries fields for a new cost center.
type CreateInput struct {
	Name       string
	SaleSeries string
	Street     string
	ExteriorNo int
	InteriorNo *int
	PostalCode string
	Region     string
	Phone      string
	Email      string
	ParentID   *int64
}

// Validate checks the create input.
func (in CreateInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("costcenters: name required: %w", shared.ErrValidation)
	}
	if strings.TrimSpace(in.Region) == "" {
		return fmt.Errorf("costcenters: region required: %w", shared.ErrValidation)
	}
	return nil
}

// UpdateInput patches an existing center. Nil pointers leave fields alone.
type UpdateInput struct {
	Name       *string
	SaleSeries *string
	Street     *string
	Region     *string
	Phone      *string
	Email      *string
}

var (
	// ErrCenterNotFound indicates a missing cost center.
	ErrCenterNotFound = fmt.Errorf("costcenters: center %w", shared.ErrNotFound)
	// ErrCyclicMove rejects reparenting a center under itself or a descendant.
	ErrCyclicMove = fmt.Errorf("costcenters: move would create a cycle: %w", shared.ErrConflict)
	// ErrCenterInUse blocks deactivating a center referenced by journal entries.
	ErrCenterInUse = fmt.Errorf("costcenters: center referenced by entries: %w", shared.ErrConflict)
)
