package repositories

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"orgstock/internal/common"
	"orgstock/internal/models"

	"github.com/google/uuid"
)

// MemoryStore is a process-local Store. Transactions hold an exclusive lock and
// restore a snapshot of every table on failure.
type MemoryStore struct {
	mu    *sync.Mutex
	state *memoryState
	inTx  bool

	// FailOn, when set, is consulted before every write with the operation
	// name (for example "products.update_quantity"). A non-nil result aborts it.
	FailOn func(op string) error
}

type memoryState struct {
	categories map[uuid.UUID]models.Category
	products   map[uuid.UUID]models.Product
	logs       []models.InventoryLog
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mu: &sync.Mutex{},
		state: &memoryState{
			categories: map[uuid.UUID]models.Category{},
			products:   map[uuid.UUID]models.Product{},
		},
	}
}

func (s *memoryState) clone() *memoryState {
	out := &memoryState{
		categories: make(map[uuid.UUID]models.Category, len(s.categories)),
		products:   make(map[uuid.UUID]models.Product, len(s.products)),
		logs:       slices.Clone(s.logs),
	}
	for id, c := range s.categories {
		out.categories[id] = c
	}
	for id, p := range s.products {
		p.CategoryIDs = slices.Clone(p.CategoryIDs)
		out.products[id] = p
	}
	return out
}

func (s *MemoryStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *MemoryStore) fail(op string) error {
	if s.FailOn == nil {
		return nil
	}
	return s.FailOn(op)
}

func (s *MemoryStore) Categories() CategoryRepository        { return &memCategoryRepo{s} }
func (s *MemoryStore) Products() ProductRepository            { return &memProductRepo{s} }
func (s *MemoryStore) InventoryLogs() InventoryLogRepository { return &memInventoryLogRepo{s} }

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	unlock := s.lock()
	defer unlock()

	snapshot := s.state.clone()
	tx := &MemoryStore{mu: s.mu, state: s.state, inTx: true, FailOn: s.FailOn}
	if err := fn(ctx, tx); err != nil {
		*s.state = *snapshot
		return err
	}
	return nil
}

type memCategoryRepo struct{ s *MemoryStore }

func (r *memCategoryRepo) nameTaken(orgID, exceptID uuid.UUID, name string) bool {
	for _, c := range r.s.state.categories {
		if c.OrgID == orgID && c.ID != exceptID && c.Name == name {
			return true
		}
	}
	return false
}

func (r *memCategoryRepo) Create(ctx context.Context, category *models.Category) error {
	defer r.s.lock()()
	if err := r.s.fail("categories.create"); err != nil {
		return err
	}
	if r.nameTaken(category.OrgID, category.ID, category.Name) {
		return common.NewNameConflict("category", category.Name)
	}
	now := time.Now().UTC()
	category.CreatedAt, category.UpdatedAt = now, now
	r.s.state.categories[category.ID] = *category
	return nil
}

func (r *memCategoryRepo) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Category, error) {
	defer r.s.lock()()
	c, ok := r.s.state.categories[id]
	if !ok || c.OrgID != orgID {
		return nil, common.NewNotFound("category", id)
	}
	return &c, nil
}

func (r *memCategoryRepo) GetByName(ctx context.Context, orgID uuid.UUID, name string) (*models.Category, error) {
	defer r.s.lock()()
	for _, c := range r.s.state.categories {
		if c.OrgID == orgID && c.Name == name {
			return &c, nil
		}
	}
	return nil, &common.DomainError{Kind: common.KindNotFound, Message: fmt.Sprintf("category %q not found", name)}
}

func (r *memCategoryRepo) Update(ctx context.Context, category *models.Category) error {
	defer r.s.lock()()
	if err := r.s.fail("categories.update"); err != nil {
		return err
	}
	current, ok := r.s.state.categories[category.ID]
	if !ok || current.OrgID != category.OrgID {
		return common.NewNotFound("category", category.ID)
	}
	if r.nameTaken(category.OrgID, category.ID, category.Name) {
		return common.NewNameConflict("category", category.Name)
	}
	category.CreatedAt = current.CreatedAt
	category.UpdatedAt = time.Now().UTC()
	r.s.state.categories[category.ID] = *category
	return nil
}

func (r *memCategoryRepo) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	defer r.s.lock()()
	if err := r.s.fail("categories.delete"); err != nil {
		return err
	}
	c, ok := r.s.state.categories[id]
	if !ok || c.OrgID != orgID {
		return common.NewNotFound("category", id)
	}
	delete(r.s.state.categories, id)
	return nil
}

func (r *memCategoryRepo) List(ctx context.Context, orgID uuid.UUID) ([]*models.Category, error) {
	defer r.s.lock()()
	out := []*models.Category{}
	for _, c := range r.s.state.categories {
		if c.OrgID == orgID {
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memCategoryRepo) CountChildren(ctx context.Context, orgID, id uuid.UUID) (int, error) {
	defer r.s.lock()()
	count := 0
	for _, c := range r.s.state.categories {
		if c.OrgID == orgID && c.ParentID != nil && *c.ParentID == id {
			count++
		}
	}
	return count, nil
}

func (r *memCategoryRepo) ExistingIDs(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	defer r.s.lock()()
	out := []uuid.UUID{}
	for _, id := range ids {
		if c, ok := r.s.state.categories[id]; ok && c.OrgID == orgID {
			out = append(out, id)
		}
	}
	return out, nil
}

// LockHierarchy is a no-op: memory transactions are already exclusive.
func (r *memCategoryRepo) LockHierarchy(ctx context.Context, orgID uuid.UUID) error {
	return nil
}

type memProductRepo struct{ s *MemoryStore }

func (r *memProductRepo) nameTaken(orgID, exceptID uuid.UUID, name string) bool {
	for _, p := range r.s.state.products {
		if p.OrgID == orgID && p.ID != exceptID && p.Name == name {
			return true
		}
	}
	return false
}

func (r *memProductRepo) get(orgID, id uuid.UUID) (models.Product, bool) {
	p, ok := r.s.state.products[id]
	if !ok || p.OrgID != orgID {
		return models.Product{}, false
	}
	return p, true
}

func copyProduct(p models.Product) *models.Product {
	p.CategoryIDs = slices.Clone(p.CategoryIDs)
	if p.CategoryIDs == nil {
		p.CategoryIDs = []uuid.UUID{}
	}
	return &p
}

func (r *memProductRepo) Create(ctx context.Context, product *models.Product) error {
	defer r.s.lock()()
	if err := r.s.fail("products.create"); err != nil {
		return err
	}
	if r.nameTaken(product.OrgID, product.ID, product.Name) {
		return common.NewNameConflict("product", product.Name)
	}
	now := time.Now().UTC()
	product.CreatedAt, product.UpdatedAt = now, now
	r.s.state.products[product.ID] = *copyProduct(*product)
	return nil
}

func (r *memProductRepo) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Product, error) {
	defer r.s.lock()()
	p, ok := r.get(orgID, id)
	if !ok {
		return nil, common.NewNotFound("product", id)
	}
	return copyProduct(p), nil
}

func (r *memProductRepo) GetQuantity(ctx context.Context, orgID, id uuid.UUID) (int64, error) {
	defer r.s.lock()()
	p, ok := r.get(orgID, id)
	if !ok {
		return 0, common.NewNotFound("product", id)
	}
	return p.CurrentQuantity, nil
}

func (r *memProductRepo) GetByName(ctx context.Context, orgID uuid.UUID, name string) (*models.Product, error) {
	defer r.s.lock()()
	for _, p := range r.s.state.products {
		if p.OrgID == orgID && p.Name == name {
			return copyProduct(p), nil
		}
	}
	return nil, &common.DomainError{Kind: common.KindNotFound, Message: fmt.Sprintf("product %q not found", name)}
}

func (r *memProductRepo) Update(ctx context.Context, product *models.Product) error {
	defer r.s.lock()()
	if err := r.s.fail("products.update"); err != nil {
		return err
	}
	current, ok := r.get(product.OrgID, product.ID)
	if !ok {
		return common.NewNotFound("product", product.ID)
	}
	if r.nameTaken(product.OrgID, product.ID, product.Name) {
		return common.NewNameConflict("product", product.Name)
	}
	next := *copyProduct(*product)
	next.CurrentQuantity = current.CurrentQuantity
	next.ImageURL = current.ImageURL
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = time.Now().UTC()
	r.s.state.products[product.ID] = next
	product.UpdatedAt = next.UpdatedAt
	return nil
}

func (r *memProductRepo) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	defer r.s.lock()()
	if err := r.s.fail("products.delete"); err != nil {
		return err
	}
	if _, ok := r.get(orgID, id); !ok {
		return common.NewNotFound("product", id)
	}
	delete(r.s.state.products, id)
	return nil
}

func (r *memProductRepo) List(ctx context.Context, orgID uuid.UUID, filter *models.ProductFilter) ([]*models.Product, error) {
	defer r.s.lock()()
	if filter == nil {
		filter = &models.ProductFilter{}
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	search := strings.ToLower(filter.Search)

	matched := []*models.Product{}
	for _, p := range r.s.state.products {
		if p.OrgID != orgID {
			continue
		}
		if filter.CategoryID != nil && !slices.Contains(p.CategoryIDs, *filter.CategoryID) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(common.SafeString(p.Brand)), search) {
			continue
		}
		matched = append(matched, copyProduct(p))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })

	if filter.Offset >= len(matched) {
		return []*models.Product{}, nil
	}
	matched = matched[filter.Offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *memProductRepo) UpdateQuantity(ctx context.Context, orgID, id uuid.UUID, expected, next int64) (bool, error) {
	defer r.s.lock()()
	if err := r.s.fail("products.update_quantity"); err != nil {
		return false, err
	}
	p, ok := r.get(orgID, id)
	if !ok || p.CurrentQuantity != expected {
		return false, nil
	}
	p.CurrentQuantity = next
	p.UpdatedAt = time.Now().UTC()
	r.s.state.products[id] = p
	return true, nil
}

func (r *memProductRepo) SetImageURL(ctx context.Context, orgID, id uuid.UUID, url string) error {
	defer r.s.lock()()
	if err := r.s.fail("products.set_image"); err != nil {
		return err
	}
	p, ok := r.get(orgID, id)
	if !ok {
		return common.NewNotFound("product", id)
	}
	p.ImageURL = &url
	p.UpdatedAt = time.Now().UTC()
	r.s.state.products[id] = p
	return nil
}

func (r *memProductRepo) RemoveCategory(ctx context.Context, orgID, categoryID uuid.UUID) ([]uuid.UUID, error) {
	defer r.s.lock()()
	if err := r.s.fail("products.remove_category"); err != nil {
		return nil, err
	}
	changed := []uuid.UUID{}
	for id, p := range r.s.state.products {
		if p.OrgID != orgID || !slices.Contains(p.CategoryIDs, categoryID) {
			continue
		}
		p.CategoryIDs = slices.DeleteFunc(slices.Clone(p.CategoryIDs), func(c uuid.UUID) bool { return c == categoryID })
		p.UpdatedAt = time.Now().UTC()
		r.s.state.products[id] = p
		changed = append(changed, id)
	}
	return changed, nil
}

func (r *memProductRepo) ListLowStock(ctx context.Context, threshold int64, limit int) ([]*models.Product, error) {
	defer r.s.lock()()
	if limit <= 0 {
		limit = 500
	}
	out := []*models.Product{}
	for _, p := range r.s.state.products {
		if p.CurrentQuantity <= threshold {
			out = append(out, copyProduct(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrgID != out[j].OrgID {
			return out[i].OrgID.String() < out[j].OrgID.String()
		}
		return out[i].CurrentQuantity < out[j].CurrentQuantity
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memInventoryLogRepo struct{ s *MemoryStore }

func (r *memInventoryLogRepo) Create(ctx context.Context, log *models.InventoryLog) error {
	defer r.s.lock()()
	if err := r.s.fail("inventory_logs.create"); err != nil {
		return err
	}
	log.CreatedAt = time.Now().UTC()
	r.s.state.logs = append(r.s.state.logs, *log)
	return nil
}

func inRange(t time.Time, start, end *time.Time) bool {
	if start != nil && t.Before(*start) {
		return false
	}
	if end != nil && t.After(*end) {
		return false
	}
	return true
}

// newestFirst walks the append-only slice backwards so equal timestamps keep insertion order reversed.
func (r *memInventoryLogRepo) newestFirst(keep func(models.InventoryLog) bool) []*models.InventoryLog {
	out := []*models.InventoryLog{}
	for i := len(r.s.state.logs) - 1; i >= 0; i-- {
		entry := r.s.state.logs[i]
		if keep(entry) {
			out = append(out, &entry)
		}
	}
	return out
}

func (r *memInventoryLogRepo) ListByProduct(ctx context.Context, orgID, productID uuid.UUID, start, end *time.Time) ([]*models.InventoryLog, error) {
	defer r.s.lock()()
	return r.newestFirst(func(l models.InventoryLog) bool {
		return l.OrgID == orgID && l.ProductID == productID && inRange(l.CreatedAt, start, end)
	}), nil
}

func (r *memInventoryLogRepo) List(ctx context.Context, orgID uuid.UUID, filter *models.InventoryLogFilter) ([]*models.InventoryLog, error) {
	defer r.s.lock()()
	if filter == nil {
		filter = &models.InventoryLogFilter{}
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	matched := r.newestFirst(func(l models.InventoryLog) bool {
		switch {
		case l.OrgID != orgID:
			return false
		case filter.ProductID != nil && l.ProductID != *filter.ProductID:
			return false
		case filter.UserID != nil && l.UserID != *filter.UserID:
			return false
		case filter.Type != nil && l.Type != *filter.Type:
			return false
		}
		return inRange(l.CreatedAt, filter.StartDate, filter.EndDate)
	})
	if filter.Offset >= len(matched) {
		return []*models.InventoryLog{}, nil
	}
	matched = matched[filter.Offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *memInventoryLogRepo) FindLedgerDrift(ctx context.Context, limit int) ([]*models.LedgerDrift, error) {
	defer r.s.lock()()
	if limit <= 0 {
		limit = 100
	}
	sums := map[uuid.UUID]int64{}
	for _, l := range r.s.state.logs {
		sums[l.ProductID] += l.Quantity
	}
	out := []*models.LedgerDrift{}
	for _, p := range r.s.state.products {
		if sum := sums[p.ID]; sum != p.CurrentQuantity {
			out = append(out, &models.LedgerDrift{OrgID: p.OrgID, ProductID: p.ID, CurrentQuantity: p.CurrentQuantity, LedgerSum: sum})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID.String() < out[j].ProductID.String() })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
