package pricing

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"farmacia/internal/core/apperror"
	"farmacia/internal/core/id"
	"farmacia/internal/core/types"
)

var errStoreDown = errors.New("connection refused")

func dec(s string) types.Markup { return types.MustDecimal(s) }

func strPtr(s string) *string { return &s }

func testGlobal() *GlobalPricingConfig {
	return &GlobalPricingConfig{
		DefaultMarkup: dec("2.5"),
		MinMarkup:     dec("1.0"),
		MaxMarkup:     dec("10.0"),
	}
}

// memConfigStore is an in-memory ConfigStore.
type memConfigStore struct {
	mu              sync.Mutex
	global          *GlobalPricingConfig
	categories      map[string]*CategoryMarkup
	globalErr       error
	categoryErr     error
	categoryLookups int
}

func newMemConfigStore(global *GlobalPricingConfig, cats ...*CategoryMarkup) *memConfigStore {
	s := &memConfigStore{global: global, categories: map[string]*CategoryMarkup{}}
	for _, c := range cats {
		s.categories[c.CategoryName] = c
	}
	return s
}

func (s *memConfigStore) GetGlobalConfig(_ context.Context) (*GlobalPricingConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.globalErr != nil {
		return nil, s.globalErr
	}
	if s.global == nil {
		return nil, apperror.NewNotFound("pricing_global_config", 1)
	}
	cp := *s.global
	return &cp, nil
}

func (s *memConfigStore) UpdateGlobalConfig(_ context.Context, patch GlobalConfigPatch) (*GlobalPricingConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.global == nil {
		return nil, apperror.NewNotFound("pricing_global_config", 1)
	}
	updated := s.global.Apply(patch)
	updated.UpdatedAt = time.Now()
	s.global = &updated
	cp := updated
	return &cp, nil
}

func (s *memConfigStore) GetCategoryByName(_ context.Context, name string) (*CategoryMarkup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categoryLookups++
	if s.categoryErr != nil {
		return nil, s.categoryErr
	}
	c, ok := s.categories[name]
	if !ok {
		return nil, apperror.NewNotFound("category", name)
	}
	cp := *c
	return &cp, nil
}

func (s *memConfigStore) UpdateCategory(_ context.Context, name string, patch CategoryPatch) (*CategoryMarkup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[name]
	if !ok {
		return nil, apperror.NewNotFound("category", name)
	}
	updated := c.Apply(patch)
	s.categories[name] = &updated
	cp := updated
	return &cp, nil
}

func (s *memConfigStore) CreateCategory(_ context.Context, c *CategoryMarkup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.categories[c.CategoryName] = &cp
	return nil
}

func (s *memConfigStore) ListCategories(_ context.Context, includeInactive bool) ([]*CategoryMarkup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*CategoryMarkup
	for _, c := range s.categories {
		if c.Active || includeInactive {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CategoryName < out[j].CategoryName })
	return out, nil
}

// memEntityStore is an in-memory EntityStore with injectable save failures.
type memEntityStore struct {
	mu       sync.Mutex
	items    map[EntityRef]*PricedEntity
	order    []EntityRef
	failSave map[EntityRef]error
	saves    int
}

func newMemEntityStore(entities ...*PricedEntity) *memEntityStore {
	s := &memEntityStore{items: map[EntityRef]*PricedEntity{}, failSave: map[EntityRef]error{}}
	for _, e := range entities {
		s.put(e)
	}
	return s
}

func (s *memEntityStore) put(e *PricedEntity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	if _, ok := s.items[e.Ref()]; !ok {
		s.order = append(s.order, e.Ref())
	}
	s.items[e.Ref()] = &cp
}

func (s *memEntityStore) get(ref EntityRef) *PricedEntity {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.items[ref]
	return &cp
}

func (s *memEntityStore) Get(_ context.Context, ref EntityRef) (*PricedEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[ref]
	if !ok {
		return nil, apperror.NewNotFound(string(ref.Type), ref.ID)
	}
	cp := *e
	return &cp, nil
}

func (s *memEntityStore) SavePricing(_ context.Context, e *PricedEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failSave[e.Ref()]; err != nil {
		return err
	}
	current, ok := s.items[e.Ref()]
	if !ok {
		return apperror.NewNotFound(string(e.Type), e.ID)
	}
	if current.Version != e.Version {
		return apperror.NewConcurrentModification(string(e.Type), e.ID)
	}
	e.Version++
	cp := *e
	s.items[e.Ref()] = &cp
	s.saves++
	return nil
}

func (s *memEntityStore) List(_ context.Context, f EntityFilter) ([]*PricedEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []*PricedEntity
	for _, ref := range s.order {
		e := s.items[ref]
		if e.Type != f.Type {
			continue
		}
		if f.CategoryName != nil && e.Category() != *f.CategoryName {
			continue
		}
		cp := *e
		cp.Type = ""
		matched = append(matched, &cp)
	}
	if f.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[f.Offset:]
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, nil
}

// memHistory records entries in memory.
type memHistory struct {
	mu      sync.Mutex
	entries []PriceHistoryEntry
	err     error
}

func (h *memHistory) Record(_ context.Context, e PriceHistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.entries = append(h.entries, e)
	return nil
}

func (h *memHistory) ListByEntity(_ context.Context, ref EntityRef, limit int) ([]PriceHistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []PriceHistoryEntry
	for i := len(h.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := h.entries[i]
		if e.EntityType == ref.Type && e.EntityID == ref.ID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (h *memHistory) forEntity(ref EntityRef) []PriceHistoryEntry {
	out, _ := h.ListByEntity(context.Background(), ref, 1000)
	return out
}

// memAuditor keeps bulk runs.
type memAuditor struct {
	mu   sync.Mutex
	runs []*BulkRun
}

func (a *memAuditor) LogBulkRun(_ context.Context, run *BulkRun) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runs = append(a.runs, run)
	return nil
}

func (a *memAuditor) RecentBulkRuns(_ context.Context, limit int) ([]*BulkRun, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.runs) < limit {
		limit = len(a.runs)
	}
	return a.runs[len(a.runs)-limit:], nil
}

// countingObserver implements BulkObserver.
type countingObserver struct {
	mu        sync.Mutex
	items     map[string]int
	runs      int
	succeeded int
	failed    int
}

func (o *countingObserver) ObserveItem(kind string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.items == nil {
		o.items = map[string]int{}
	}
	o.items[kind]++
}

func (o *countingObserver) ObserveRun(succeeded, failed int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs++
	o.succeeded += succeeded
	o.failed += failed
}

func newEntity(t EntityType, name, cost, markup string, category *string) *PricedEntity {
	e := &PricedEntity{
		Type:         t,
		ID:           id.New(),
		Name:         name,
		CostPrice:    dec(cost),
		Markup:       dec(markup),
		CategoryName: category,
		Version:      1,
	}
	e.SalePrice = types.RoundCurrency(e.CostPrice.Mul(e.Markup))
	return e
}

type fixture struct {
	configs  *memConfigStore
	entities *memEntityStore
	history  *memHistory
	auditor  *memAuditor
	observer *countingObserver
	svc      *Service
}

func newFixture(global *GlobalPricingConfig, cats []*CategoryMarkup, entities ...*PricedEntity) *fixture {
	f := &fixture{
		configs:  newMemConfigStore(global, cats...),
		entities: newMemEntityStore(entities...),
		history:  &memHistory{},
		auditor:  &memAuditor{},
		observer: &countingObserver{},
	}
	f.svc = NewService(ServiceConfig{
		Configs:       f.configs,
		Entities:      f.entities,
		History:       f.history,
		HistoryReader: f.history,
		Auditor:       f.auditor,
		Observer:      f.observer,
		BulkWorkers:   4,
		Now:           func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	return f
}
