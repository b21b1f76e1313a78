package accounts

import (
	"fmt"
	"strings"
	"time"

	"github.com/koreacc/koreacc/internal/shared"
)

// AccountType enumerates chart-of-accounts categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeIncome    AccountType = "INCOME"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Nature tells which side increases the account balance.
type Nature string

const (
	NatureDebit  Nature = "DEBIT_NATURED"
	NatureCredit Nature = "CREDIT_NATURED"
)

// Nominal reports whether the type is zeroed at exercise close.
func (t AccountType) Nominal() bool {
	return t == AccountTypeIncome || t == AccountTypeExpense
}

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeIncome, AccountTypeExpense:
		return true
	}
	return false
}

// Account models a chart of accounts node. Only leaf accounts flagged
// postable may receive movements; parents aggregate.
type Account struct {
	ID        int64
	Code      string
	Name      string
	Type      AccountType
	Nature    Nature
	Postable  bool
	ParentID  *int64
	Deleted   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TreeNode is an account with its materialized children.
type TreeNode struct {
	Account
	Children []*TreeNode
}

// CreateInput carries fields for a new account.
type CreateInput struct {
	Code     string
	Name     string
	Type     AccountType
	Nature   Nature
	Postable bool
	ParentID *int64
}

// Validate checks the create input before any write.
func (in CreateInput) Validate() error {
	if strings.TrimSpace(in.Code) == "" {
		return fmt.Errorf("accounts: code required: %w", shared.ErrValidation)
	}
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("accounts: name required: %w", shared.ErrValidation)
	}
	if !in.Type.Valid() {
		return fmt.Errorf("accounts: unknown account type %q: %w", in.Type, shared.ErrValidation)
	}
	if in.Nature != NatureDebit && in.Nature != NatureCredit {
		return fmt.Errorf("accounts: unknown nature %q: %w", in.Nature, shared.ErrValidation)
	}
	return nil
}

// UpdateInput patches an existing account. Nil pointers leave the field as is.
type UpdateInput struct {
	Name     *string
	Postable *bool
	ParentID *int64
}

var (
	// ErrAccountNotFound indicates a missing account.
	ErrAccountNotFound = fmt.Errorf("accounts: account %w", shared.ErrNotFound)
	// ErrDuplicateCode indicates the code is already taken.
	ErrDuplicateCode = fmt.Errorf("accounts: duplicate code: %w", shared.ErrConflict)
	// ErrAccountInUse blocks soft-deleting an account with movements.
	ErrAccountInUse = fmt.Errorf("accounts: account has movements: %w", shared.ErrConflict)
)

// BuildTree materializes the forest in one pass over all rows keyed by
// parent id. Orphans whose parent is absent surface as roots.
func BuildTree(all []Account) []*TreeNode {
	nodes := make(map[int64]*TreeNode, len(all))
	for _, a := range all {
		nodes[a.ID] = &TreeNode{Account: a}
	}
	var roots []*TreeNode
	for _, a := range all {
		node := nodes[a.ID]
		if a.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*a.ParentID]
		if !ok {
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}
	return roots
}
