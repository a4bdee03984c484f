package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"orgstock/internal/caching"
	"orgstock/internal/common"
	"orgstock/internal/logger"
	"orgstock/internal/metrics"
	"orgstock/internal/models"
	"orgstock/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CategoryService interface {
	Create(ctx context.Context, orgID uuid.UUID, input *models.CategoryCreate) (*models.Category, error)
	Update(ctx context.Context, orgID, id uuid.UUID, input *models.CategoryUpdate) (*models.Category, error)
	Delete(ctx context.Context, orgID, id uuid.UUID) error
	FindAll(ctx context.Context, orgID uuid.UUID) ([]*models.Category, error)
	FindByID(ctx context.Context, orgID, id uuid.UUID) (*models.Category, error)
	Tree(ctx context.Context, orgID uuid.UUID) ([]*models.CategoryNode, error)
}

type categoryService struct {
	store    repositories.Store
	cache    caching.CacheService
	cacheTTL time.Duration
	metrics  *metrics.Metrics
}

func NewCategoryService(store repositories.Store, cache caching.CacheService, cacheTTL time.Duration, m *metrics.Metrics) CategoryService {
	return &categoryService{
		store:    store,
		cache:    cache,
		cacheTTL: cacheTTL,
		metrics:  m,
	}
}

func (s *categoryService) Create(ctx context.Context, orgID uuid.UUID, input *models.CategoryCreate) (*models.Category, error) {
	category := &models.Category{
		ID:          uuid.New(),
		OrgID:       orgID,
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		ParentID:    input.ParentID,
	}
	if category.Name == "" {
		return nil, common.NewValidation("name", "name is required")
	}

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		repo := tx.Categories()
		if err := repo.LockHierarchy(ctx, orgID); err != nil {
			return err
		}
		if err := ensureCategoryNameFree(ctx, repo, orgID, uuid.Nil, category.Name); err != nil {
			return err
		}
		if category.ParentID != nil {
			if err := ensureParentExists(ctx, repo, orgID, *category.ParentID); err != nil {
				return err
			}
		}
		return repo.Create(ctx, category)
	})
	s.finishMutation(ctx, "create", orgID, err)
	if err != nil {
		return nil, err
	}
	return category, nil
}

func (s *categoryService) Update(ctx context.Context, orgID, id uuid.UUID, input *models.CategoryUpdate) (*models.Category, error) {
	var updated *models.Category
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		repo := tx.Categories()
		if err := repo.LockHierarchy(ctx, orgID); err != nil {
			return err
		}
		category, err := repo.GetByID(ctx, orgID, id)
		if err != nil {
			return err
		}

		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return common.NewValidation("name", "name must not be empty")
			}
			if name != category.Name {
				if err := ensureCategoryNameFree(ctx, repo, orgID, id, name); err != nil {
					return err
				}
				category.Name = name
			}
		}
		if input.Description != nil {
			category.Description = input.Description
		}

		if input.ParentID.Set {
			if input.ParentID.Value == nil {
				category.ParentID = nil
			} else {
				parentID := *input.ParentID.Value
				if parentID == id {
					return common.NewSelfParent(id)
				}
				if err := ensureParentExists(ctx, repo, orgID, parentID); err != nil {
					return err
				}
				if err := detectCycle(ctx, repo, orgID, id, parentID); err != nil {
					return err
				}
				category.ParentID = &parentID
			}
		}

		if err := repo.Update(ctx, category); err != nil {
			return err
		}
		updated = category
		return nil
	})
	s.finishMutation(ctx, "update", orgID, err)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *categoryService) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	var detached []uuid.UUID
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		repo := tx.Categories()
		if err := repo.LockHierarchy(ctx, orgID); err != nil {
			return err
		}
		if _, err := repo.GetByID(ctx, orgID, id); err != nil {
			return err
		}
		children, err := repo.CountChildren(ctx, orgID, id)
		if err != nil {
			return err
		}
		if children > 0 {
			return common.NewHasChildren(id, children)
		}
		detached, err = tx.Products().RemoveCategory(ctx, orgID, id)
		if err != nil {
			return err
		}
		return repo.Delete(ctx, orgID, id)
	})
	s.finishMutation(ctx, "delete", orgID, err)
	if err != nil {
		return err
	}
	for _, productID := range detached {
		if cacheErr := s.cache.DeleteProduct(ctx, orgID, productID); cacheErr != nil {
			logger.FromContext(ctx).Warn("failed to evict product from cache",
				zap.String("product_id", productID.String()), zap.Error(cacheErr))
		}
	}
	return nil
}

func (s *categoryService) FindAll(ctx context.Context, orgID uuid.UUID) ([]*models.Category, error) {
	log := logger.FromContext(ctx)
	if cached, err := s.cache.GetCategories(ctx, orgID); err != nil {
		log.Warn("category cache read failed", zap.Error(err))
	} else if cached != nil {
		return cached, nil
	}

	categories, err := s.store.Categories().List(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetCategories(ctx, orgID, categories, s.cacheTTL); err != nil {
		log.Warn("category cache write failed", zap.Error(err))
	}
	return categories, nil
}

func (s *categoryService) FindByID(ctx context.Context, orgID, id uuid.UUID) (*models.Category, error) {
	return s.store.Categories().GetByID(ctx, orgID, id)
}

// Tree returns the organization's forest. Roots and siblings keep name order.
func (s *categoryService) Tree(ctx context.Context, orgID uuid.UUID) ([]*models.CategoryNode, error) {
	categories, err := s.FindAll(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return buildCategoryTree(categories), nil
}

func buildCategoryTree(categories []*models.Category) []*models.CategoryNode {
	nodes := make(map[uuid.UUID]*models.CategoryNode, len(categories))
	for _, c := range categories {
		nodes[c.ID] = &models.CategoryNode{Category: *c, Children: []*models.CategoryNode{}}
	}

	roots := []*models.CategoryNode{}
	for _, c := range categories {
		node := nodes[c.ID]
		if c.ParentID != nil {
			if parent, ok := nodes[*c.ParentID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots
}

// detectCycle walks upward from the proposed parent. Reaching categoryID, or
// any node twice, means the new edge would close a loop.
func detectCycle(ctx context.Context, repo repositories.CategoryRepository, orgID, categoryID, parentID uuid.UUID) error {
	visited := make(map[uuid.UUID]struct{})
	cursor := &parentID
	for cursor != nil {
		if _, seen := visited[*cursor]; seen || *cursor == categoryID {
			return common.NewCircularReference(categoryID, parentID)
		}
		visited[*cursor] = struct{}{}

		ancestor, err := repo.GetByID(ctx, orgID, *cursor)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return nil
			}
			return err
		}
		cursor = ancestor.ParentID
	}
	return nil
}

func ensureCategoryNameFree(ctx context.Context, repo repositories.CategoryRepository, orgID, exceptID uuid.UUID, name string) error {
	existing, err := repo.GetByName(ctx, orgID, name)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		return err
	}
	if existing.ID != exceptID {
		return common.NewNameConflict("category", name)
	}
	return nil
}

func ensureParentExists(ctx context.Context, repo repositories.CategoryRepository, orgID, parentID uuid.UUID) error {
	if _, err := repo.GetByID(ctx, orgID, parentID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.NewInvalidParent(parentID)
		}
		return err
	}
	return nil
}

func (s *categoryService) finishMutation(ctx context.Context, operation string, orgID uuid.UUID, err error) {
	s.metrics.RecordCategoryOperation(operation, err)
	if err != nil {
		logOutcome(ctx, "category "+operation, err)
		return
	}
	if cacheErr := s.cache.DeleteCategories(ctx, orgID); cacheErr != nil {
		logger.FromContext(ctx).Warn("failed to invalidate category cache", zap.Error(cacheErr))
	}
}

// logOutcome logs domain rejections at info and everything else at error.
func logOutcome(ctx context.Context, operation string, err error) {
	log := logger.FromContext(ctx)
	if kind, ok := common.KindOf(err); ok {
		log.Info(operation+" rejected", zap.String("kind", string(kind)), zap.String("reason", err.Error()))
		return
	}
	log.Error(operation+" failed", zap.Error(err))
}
