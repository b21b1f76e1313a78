package costcenters

import (
	"context"
	"time"
)

// RepositoryPort abstracts persistence for the tree.
type RepositoryPort interface {
	Insert(ctx context.Context, in CreateInput) (CostCenter, error)
	Get(ctx context.Context, id int64) (CostCenter, error)
	ListAll(ctx context.Context) ([]CostCenter, error)
	Update(ctx context.Context, id int64, in UpdateInput, now time.Time) (CostCenter, error)
	SetActive(ctx context.Context, id int64, active bool, now time.Time) error
	SetParent(ctx context.Context, id int64, parentID *int64, now time.Time) error
	HasEntries(ctx context.Context, id int64) (bool, error)
}

// Service maintains the cost-center hierarchy.
type Service struct {
	repo RepositoryPort
	now  func() time.Time
}

// NewService constructs the tree service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create validates and inserts a cost center.
func (s *Service) Create(ctx context.Context, in CreateInput) (CostCenter, error) {
	if err := in.Validate(); err != nil {
		return CostCenter{}, err
	}
	if in.ParentID != nil {
		if _, err := s.repo.Get(ctx, *in.ParentID); err != nil {
			return CostCenter{}, err
		}
	}
	return s.repo.Insert(ctx, in)
}

// Get loads one center.
func (s *Service) Get(ctx context.Context, id int64) (CostCenter, error) {
	return s.repo.Get(ctx, id)
}

// Update patches a center and stamps updated_at.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (CostCenter, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return CostCenter{}, err
	}
	return s.repo.Update(ctx, id, in, s.now())
}

// SoftDeactivate flags a center inactive. Centers referenced by journal
// entries stay, so history keeps resolving.
func (s *Service) SoftDeactivate(ctx context.Context, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	used, err := s.repo.HasEntries(ctx, id)
	if err != nil {
		return err
	}
	if used {
		return ErrCenterInUse
	}
	return s.repo.SetActive(ctx, id, false, s.now())
}

// ListRoots returns active centers without a parent.
func (s *Service) ListRoots(ctx context.Context) ([]CostCenter, error) {
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	var roots []CostCenter
	for _, c := range all {
		if c.ParentID == nil {
			roots = append(roots, c)
		}
	}
	return roots, nil
}

// ListChildren returns the direct children of a center.
func (s *Service) ListChildren(ctx context.Context, id int64) ([]CostCenter, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	var children []CostCenter
	for _, c := range all {
		if c.ParentID != nil && *c.ParentID == id {
			children = append(children, c)
		}
	}
	return children, nil
}

// GetSubtree materializes the whole descendant set of a center with a depth
// counter, walking an adjacency map loaded once. Portable to any backing
// store: no recursive queries.
func (s *Service) GetSubtree(ctx context.Context, id int64) ([]SubtreeNode, error) {
	root, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	children := childIndex(all)

	out := []SubtreeNode{{CostCenter: root, Depth: 0}}
	queue := []SubtreeNode{out[0]}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range children[cur.ID] {
			node := SubtreeNode{CostCenter: child, Depth: cur.Depth + 1}
			out = append(out, node)
			queue = append(queue, node)
		}
	}
	return out, nil
}

// Move reassigns the parent pointer. It rejects moves onto the center
// itself or any of its descendants, keeping the parent graph acyclic.
func (s *Service) Move(ctx context.Context, id int64, newParentID *int64) (CostCenter, error) {
	center, err := s.repo.Get(ctx, id)
	if err != nil {
		return CostCenter{}, err
	}
	if newParentID != nil {
		if *newParentID == id {
			return CostCenter{}, ErrCyclicMove
		}
		if _, err := s.repo.Get(ctx, *newParentID); err != nil {
			return CostCenter{}, err
		}
		all, err := s.repo.ListAll(ctx)
		if err != nil {
			return CostCenter{}, err
		}
		if descendants(childIndex(all), id)[*newParentID] {
			return CostCenter{}, ErrCyclicMove
		}
	}
	if err := s.repo.SetParent(ctx, id, newParentID, s.now()); err != nil {
		return CostCenter{}, err
	}
	center.ParentID = newParentID
	return center, nil
}

func childIndex(all []CostCenter) map[int64][]CostCenter {
	idx := make(map[int64][]CostCenter)
	for _, c := range all {
		if c.ParentID != nil {
			idx[*c.ParentID] = append(idx[*c.ParentID], c)
		}
	}
	return idx
}

func descendants(children map[int64][]CostCenter, id int64) map[int64]bool {
	seen := make(map[int64]bool)
	stack := []int64{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, child := range children[cur] {
			if !seen[child.ID] {
				seen[child.ID] = true
				stack = append(stack, child.ID)
			}
		}
	}
	return seen
}
