package doctors

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// ListFilter narrows directory queries.
type ListFilter struct {
	Specialty  string
	ActiveOnly bool
}

// Repository defines storage for the doctor directory.
type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]*Doctor, error)
	Get(ctx context.Context, id int64) (*Doctor, error)
	Create(ctx context.Context, doc *Doctor) (*Doctor, error)
	Update(ctx context.Context, doc *Doctor) (*Doctor, error)
	SetActive(ctx context.Context, id int64, active bool) (*Doctor, error)
	EmailInUse(ctx context.Context, email string, excludeID int64) (bool, error)
}

// InMemoryRepository is a map-backed Repository for tests and local runs.
type InMemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]*Doctor
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{nextID: 1, rows: make(map[int64]*Doctor)}
}

func (r *InMemoryRepository) List(ctx context.Context, filter ListFilter) ([]*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Doctor, 0, len(r.rows))
	for _, doc := range r.rows {
		if filter.ActiveOnly && !doc.IsActive {
			continue
		}
		if filter.Specialty != "" && !strings.EqualFold(filter.Specialty, doc.Specialty) {
			continue
		}
		clone := *doc
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *InMemoryRepository) Get(ctx context.Context, id int64) (*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *doc
	return &clone, nil
}

func (r *InMemoryRepository) Create(ctx context.Context, doc *Doctor) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.rows {
		if strings.EqualFold(existing.Email, doc.Email) {
			return nil, ErrEmailTaken
		}
	}
	clone := *doc
	clone.ID = r.nextID
	r.nextID++
	now := time.Now().UTC()
	clone.CreatedAt = now
	clone.UpdatedAt = now
	r.rows[clone.ID] = &clone
	result := clone
	return &result, nil
}

func (r *InMemoryRepository) Update(ctx context.Context, doc *Doctor) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.rows[doc.ID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *doc
	clone.CreatedAt = existing.CreatedAt
	clone.UpdatedAt = time.Now().UTC()
	r.rows[doc.ID] = &clone
	result := clone
	return &result, nil
}

func (r *InMemoryRepository) SetActive(ctx context.Context, id int64, active bool) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	doc.IsActive = active
	doc.UpdatedAt = time.Now().UTC()
	clone := *doc
	return &clone, nil
}

func (r *InMemoryRepository) EmailInUse(ctx context.Context, email string, excludeID int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, doc := range r.rows {
		if doc.ID != excludeID && strings.EqualFold(doc.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

var _ Repository = (*InMemoryRepository)(nil)
