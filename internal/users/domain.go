package users

import (
	"fmt"
	"strings"
	"time"

	"github.com/koreacc/koreacc/internal/shared"
)

var (
	ErrUserNotFound   = fmt.Errorf("users: user not found: %w", shared.ErrNotFound)
	ErrDuplicateEmail = fmt.Errorf("users: email already registered: %w", shared.ErrConflict)
)

// User is an author of journal entries.
type User struct {
	ID        int64
	Email     string
	Name      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CreateInput struct {
	Email string
	Name  string
}

func (in CreateInput) Validate() error {
	if strings.TrimSpace(in.Email) == "" {
		return fmt.Errorf("users: email is required: %w", shared.ErrValidation)
	}
	if !strings.Contains(in.Email, "@") {
		return fmt.Errorf("users: email is malformed: %w", shared.ErrValidation)
	}
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("users: name is required: %w", shared.ErrValidation)
	}
	return nil
}

type UpdateInput struct {
	Email  *string
	Name   *string
	Active *bool
}
