package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bigelephant/storefront/internal/rbac"
)

const listingLoadTimeout = 10 * time.Second

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Product, error)
	ListVisible(ctx context.Context) ([]Product, error)
	ListAll(ctx context.Context) ([]Product, error)
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Product, error)
	Insert(ctx context.Context, p Product) (Product, error)
	Update(ctx context.Context, p Product) (Product, error)
	RecordAdminAction(ctx context.Context, adminID int64, action string) error
}

// ListingCache stores the public product listing.
type ListingCache interface {
	Visible(ctx context.Context, load func(context.Context) ([]Product, error)) ([]Product, error)
	Invalidate(ctx context.Context) error
}

// Service coordinates catalog reads and administrative changes.
type Service struct {
	repo   RepositoryPort
	cache  ListingCache
	logger *slog.Logger
	group  singleflight.Group
}

// NewService builds Service. cache may be nil.
func NewService(repo RepositoryPort, cache ListingCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// ListVisible returns the products customers may see. Concurrent callers share one
// load, which is detached from any single caller's cancellation; each caller still stops
// waiting when its own context ends.
func (s *Service) ListVisible(ctx context.Context) ([]Product, error) {
	ch := s.group.DoChan("visible", func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), listingLoadTimeout)
		defer cancel()
		if s.cache == nil {
			return s.repo.ListVisible(loadCtx)
		}
		return s.cache.Visible(loadCtx, s.repo.ListVisible)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Product), nil
	}
}

// ListAll returns every product including inactive and deleted ones.
func (s *Service) ListAll(ctx context.Context, admin rbac.Principal) ([]Product, error) {
	if err := rbac.Authorize(&admin, rbac.OpManageProducts); err != nil {
		return nil, err
	}
	return s.repo.ListAll(ctx)
}

// Get returns a single product regardless of visibility.
func (s *Service) Get(ctx context.Context, admin rbac.Principal, id int64) (Product, error) {
	if err := rbac.Authorize(&admin, rbac.OpManageProducts); err != nil {
		return Product{}, err
	}
	return s.repo.Get(ctx, id)
}

// Create adds a product. New products are active and not deleted.
func (s *Service) Create(ctx context.Context, admin rbac.Principal, in CreateInput) (Product, error) {
	if err := rbac.Authorize(&admin, rbac.OpManageProducts); err != nil {
		return Product{}, err
	}
	name, err := NormalizeName(in.Name)
	if err != nil {
		return Product{}, err
	}
	price, err := NormalizePrice(in.Price)
	if err != nil {
		return Product{}, err
	}
	if err := ValidateStock(in.Stock); err != nil {
		return Product{}, err
	}
	var created Product
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, err = tx.Insert(ctx, Product{
			Name:     name,
			Price:    price,
			Stock:    in.Stock,
			IsActive: true,
			ImageURL: normalizeImage(in.ImageURL),
		})
		if err != nil {
			return err
		}
		return tx.RecordAdminAction(ctx, admin.UserID, fmt.Sprintf("Created product: %s, Price: %s, Stock: %d", created.Name, created.Price.StringFixed(2), created.Stock))
	})
	if err != nil {
		return Product{}, err
	}
	s.invalidate(ctx)
	return created, nil
}

// Update applies a partial update and records one audit entry describing every changed field.
func (s *Service) Update(ctx context.Context, admin rbac.Principal, id int64, patch Patch) (Product, error) {
	if err := rbac.Authorize(&admin, rbac.OpManageProducts); err != nil {
		return Product{}, err
	}
	if patch.Name != nil {
		name, err := NormalizeName(*patch.Name)
		if err != nil {
			return Product{}, err
		}
		patch.Name = &name
	}
	if patch.Price != nil {
		price, err := NormalizePrice(*patch.Price)
		if err != nil {
			return Product{}, err
		}
		patch.Price = &price
	}
	if patch.Stock != nil {
		if err := ValidateStock(*patch.Stock); err != nil {
			return Product{}, err
		}
	}
	var updated Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		next, changes := applyPatch(current, patch)
		if len(changes) == 0 {
			updated = current
			return nil
		}
		updated, err = tx.Update(ctx, next)
		if err != nil {
			return err
		}
		return tx.RecordAdminAction(ctx, admin.UserID, strings.Join(changes, "; "))
	})
	if err != nil {
		return Product{}, err
	}
	s.invalidate(ctx)
	return updated, nil
}

// SoftDelete hides the product: deleted and inactive together.
func (s *Service) SoftDelete(ctx context.Context, admin rbac.Principal, id int64) (Product, error) {
	return s.setDeleted(ctx, admin, id, true)
}

// Restore undoes SoftDelete: undeleted and active together.
func (s *Service) Restore(ctx context.Context, admin rbac.Principal, id int64) (Product, error) {
	return s.setDeleted(ctx, admin, id, false)
}

func (s *Service) setDeleted(ctx context.Context, admin rbac.Principal, id int64, deleted bool) (Product, error) {
	if err := rbac.Authorize(&admin, rbac.OpManageProducts); err != nil {
		return Product{}, err
	}
	var updated Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		current.IsDeleted = deleted
		current.IsActive = !deleted
		updated, err = tx.Update(ctx, current)
		if err != nil {
			return err
		}
		action := fmt.Sprintf("Restored product %d", id)
		if deleted {
			action = fmt.Sprintf("Soft deleted product %d", id)
		}
		return tx.RecordAdminAction(ctx, admin.UserID, action)
	})
	if err != nil {
		return Product{}, err
	}
	s.invalidate(ctx)
	return updated, nil
}

// Invalidate drops the cached public listing. Order placement calls it after stock changes.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx)
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.Invalidate(ctx); err != nil {
		s.logger.Warn("catalog cache invalidate", slog.Any("error", err))
	}
}

func applyPatch(p Product, patch Patch) (Product, []string) {
	var changes []string
	if patch.Name != nil && *patch.Name != p.Name {
		p.Name = *patch.Name
		changes = append(changes, fmt.Sprintf("Changed name of product %d to %s", p.ID, p.Name))
	}
	if patch.Price != nil && !patch.Price.Equal(p.Price) {
		p.Price = *patch.Price
		changes = append(changes, fmt.Sprintf("Changed price of product %d to %s", p.ID, p.Price.StringFixed(2)))
	}
	if patch.Stock != nil && *patch.Stock != p.Stock {
		p.Stock = *patch.Stock
		changes = append(changes, fmt.Sprintf("Changed stock of product %d to %d", p.ID, p.Stock))
	}
	if patch.IsActive != nil && *patch.IsActive != p.IsActive {
		p.IsActive = *patch.IsActive
		changes = append(changes, fmt.Sprintf("Changed active state of product %d to %t", p.ID, p.IsActive))
	}
	switch {
	case patch.ClearImage && p.ImageURL != nil:
		p.ImageURL = nil
		changes = append(changes, fmt.Sprintf("Changed image of product %d", p.ID))
	case patch.ImageURL != nil:
		img := normalizeImage(patch.ImageURL)
		if img == nil && p.ImageURL == nil {
			break
		}
		if img != nil && p.ImageURL != nil && *img == *p.ImageURL {
			break
		}
		p.ImageURL = img
		changes = append(changes, fmt.Sprintf("Changed image of product %d", p.ID))
	}
	return p, changes
}
