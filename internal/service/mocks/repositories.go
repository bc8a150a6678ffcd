package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"geolink/internal/models"
	"geolink/internal/repository"
)

// MockLinkRepository implements repository.LinkRepository for testing
type MockLinkRepository struct {
	mu     sync.RWMutex
	links  map[string]*models.Link
	order  []string
	nextID int64
}

func NewMockLinkRepository() *MockLinkRepository {
	return &MockLinkRepository{
		links:  make(map[string]*models.Link),
		nextID: 1,
	}
}

func (m *MockLinkRepository) Create(ctx context.Context, link *models.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.links[link.Slug]; exists {
		return repository.ErrSlugExists
	}

	link.ID = m.nextID
	m.nextID++
	m.links[link.Slug] = link
	m.order = append(m.order, link.Slug)
	return nil
}

func (m *MockLinkRepository) GetBySlug(ctx context.Context, slug string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, exists := m.links[slug]
	if !exists {
		return nil, repository.ErrLinkNotFound
	}
	return link, nil
}

func (m *MockLinkRepository) List(ctx context.Context, limit int) ([]models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Свежие первыми, как в SQL-реализации
	var links []models.Link
	for i := len(m.order) - 1; i >= 0 && len(links) < limit; i-- {
		links = append(links, *m.links[m.order[i]])
	}
	return links, nil
}

// Seed вставляет ссылку с заранее известным слагом
func (m *MockLinkRepository) Seed(link *models.Link) {
	m.mu.Lock()
	defer m.mu.Unlock()
	link.ID = m.nextID
	m.nextID++
	m.links[link.Slug] = link
	m.order = append(m.order, link.Slug)
}

func (m *MockLinkRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = make(map[string]*models.Link)
	m.order = nil
	m.nextID = 1
}

// MockCacheRepository implements repository.CacheRepository for testing
type MockCacheRepository struct {
	mu    sync.RWMutex
	cache map[string]*models.Link
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		cache: make(map[string]*models.Link),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, exists := m.cache[key]
	if !exists {
		return nil, repository.ErrLinkNotFound
	}
	return link, nil
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, link *models.Link, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = link
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, key)
	return nil
}

func (m *MockCacheRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = make(map[string]*models.Link)
}

// MockVisitRepository implements repository.VisitRepository for testing.
// Resolve повторяет семантику условного UPDATE: переход фиксируется только
// из pending, всё остальное - no-op
type MockVisitRepository struct {
	mu     sync.RWMutex
	visits map[string]*models.Visit
	order  []string
}

func NewMockVisitRepository() *MockVisitRepository {
	return &MockVisitRepository{
		visits: make(map[string]*models.Visit),
	}
}

func (m *MockVisitRepository) OpenPending(ctx context.Context, visit *models.Visit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.visits[visit.ID]; exists {
		return errors.New("duplicate visit id")
	}

	stored := *visit
	m.visits[visit.ID] = &stored
	m.order = append(m.order, visit.ID)
	return nil
}

func (m *MockVisitRepository) Resolve(ctx context.Context, visitID string, outcome *models.VisitOutcome) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	visit, exists := m.visits[visitID]
	if !exists || visit.ResolvedAt != nil {
		return false, nil
	}

	now := time.Now()
	visit.Consented = outcome.Consented
	visit.Latitude = outcome.Latitude
	visit.Longitude = outcome.Longitude
	visit.Accuracy = outcome.Accuracy
	visit.DeclineReason = nil
	if !outcome.Consented && outcome.Reason != "" {
		reason := outcome.Reason
		visit.DeclineReason = &reason
	}
	visit.ResolvedAt = &now
	return true, nil
}

func (m *MockVisitRepository) GetByID(ctx context.Context, visitID string) (*models.Visit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	visit, exists := m.visits[visitID]
	if !exists {
		return nil, errors.New("visit not found")
	}
	copied := *visit
	return &copied, nil
}

func (m *MockVisitRepository) ListByLink(ctx context.Context, linkID int64, limit int) ([]models.Visit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var visits []models.Visit
	for i := len(m.order) - 1; i >= 0 && len(visits) < limit; i-- {
		visit := m.visits[m.order[i]]
		if visit.LinkID == linkID {
			visits = append(visits, *visit)
		}
	}
	return visits, nil
}

func (m *MockVisitRepository) SweepAbandoned(ctx context.Context, olderThan time.Time, limit int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reason := models.DeclineReasonAbandoned
	var swept int64
	for _, visit := range m.visits {
		if swept >= int64(limit) {
			break
		}
		if visit.ResolvedAt == nil && visit.CreatedAt.Before(olderThan) {
			now := time.Now()
			r := reason
			visit.Consented = false
			visit.DeclineReason = &r
			visit.ResolvedAt = &now
			swept++
		}
	}
	return swept, nil
}

func (m *MockVisitRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visits = make(map[string]*models.Visit)
	m.order = nil
}
