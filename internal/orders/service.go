package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/bigelephant/storefront/internal/platform/httpx"
	"github.com/bigelephant/storefront/internal/rbac"
	"github.com/bigelephant/storefront/internal/shared"
)

const idempotencyModule = "orders"

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListByUser(ctx context.Context, userID int64) ([]Order, error)
	GetForUser(ctx context.Context, orderID, userID int64) (Order, error)
	List(ctx context.Context, page shared.PageRequest) ([]Order, int, error)
	Get(ctx context.Context, orderID int64) (Order, error)
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	LockProducts(ctx context.Context, ids []int64) (map[int64]StockItem, error)
	SetStock(ctx context.Context, productID int64, stock int) error
	AddStock(ctx context.Context, productID int64, qty int) error
	InsertOrder(ctx context.Context, userID int64, status Status) (Order, error)
	InsertItems(ctx context.Context, orderID int64, items []Item) ([]Item, error)
	GetForUpdate(ctx context.Context, orderID int64) (Order, error)
	UpdateStatus(ctx context.Context, orderID int64, status Status) error
	RecordAdminAction(ctx context.Context, adminID int64, action string) error
}

// AuditPort records read-only admin actions outside a transaction.
type AuditPort interface {
	Record(ctx context.Context, adminID int64, action string) error
}

// IdempotencyPort guards against replayed order submissions.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// CatalogInvalidator drops cached listings after stock moves.
type CatalogInvalidator interface {
	Invalidate(ctx context.Context) error
}

// EventPublisher hands committed order events to background processing.
type EventPublisher interface {
	OrderPlaced(ctx context.Context, evt PlacedEvent) error
	OrderStatusChanged(ctx context.Context, evt StatusChangedEvent) error
}

// MetricsRecorder counts order outcomes.
type MetricsRecorder interface {
	OrderCreated()
	OrderRejected(reason string)
	OrderTransition(from, to string, byAdmin bool)
}

// Hooks groups optional collaborators. Any field may be nil.
type Hooks struct {
	Idempotency IdempotencyPort
	Catalog     CatalogInvalidator
	Events      EventPublisher
	Metrics     MetricsRecorder
	Logger      *slog.Logger
}

// Service implements order placement and the order status lifecycle.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	hooks Hooks
	clock func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, hooks Hooks) *Service {
	if hooks.Logger == nil {
		hooks.Logger = slog.Default()
	}
	return &Service{
		repo:  repo,
		audit: audit,
		hooks: hooks,
		clock: func() time.Time { return time.Now().UTC() },
	}
}

// Create places an order for customer. Either every line is reserved and the order is
// stored with status Created, or nothing changes. idempotencyKey may be empty.
func (s *Service) Create(ctx context.Context, customer rbac.Principal, lines []Line, idempotencyKey string) (int64, error) {
	if err := rbac.Authorize(&customer, rbac.OpCreateOrder); err != nil {
		return 0, err
	}
	if len(lines) == 0 {
		s.rejected(ErrEmptyOrder)
		return 0, ErrEmptyOrder
	}

	key := ""
	if idempotencyKey != "" && s.hooks.Idempotency != nil {
		key = fmt.Sprintf("%d:%s", customer.UserID, idempotencyKey)
		if err := s.hooks.Idempotency.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			return 0, err
		}
	}

	var placed Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		products, err := tx.LockProducts(ctx, productIDs(lines))
		if err != nil {
			return err
		}
		res, err := reserve(lines, products)
		if err != nil {
			return err
		}
		ids := make([]int64, 0, len(res.stock))
		for id := range res.stock {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		for _, id := range ids {
			if err := tx.SetStock(ctx, id, res.stock[id]); err != nil {
				return err
			}
		}
		placed, err = tx.InsertOrder(ctx, customer.UserID, StatusCreated)
		if err != nil {
			return err
		}
		placed.Items, err = tx.InsertItems(ctx, placed.ID, res.items)
		return err
	})
	if err != nil {
		if key != "" {
			if delErr := s.hooks.Idempotency.Delete(context.WithoutCancel(ctx), key, idempotencyModule); delErr != nil {
				s.hooks.Logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", delErr))
			}
		}
		s.rejected(err)
		return 0, err
	}

	if s.hooks.Metrics != nil {
		s.hooks.Metrics.OrderCreated()
	}
	s.invalidateCatalog(ctx)
	if s.hooks.Events != nil {
		evt := PlacedEvent{
			OrderID:  placed.ID,
			UserID:   placed.UserID,
			Items:    len(placed.Items),
			Total:    placed.Total(),
			PlacedAt: placed.CreatedAt,
		}
		if err := s.hooks.Events.OrderPlaced(ctx, evt); err != nil {
			s.hooks.Logger.Warn("publish order placed", slog.Int64("order_id", placed.ID), slog.Any("error", err))
		}
	}
	return placed.ID, nil
}

// ListMine returns the customer's own orders, newest first.
func (s *Service) ListMine(ctx context.Context, customer rbac.Principal) ([]Order, error) {
	if err := rbac.Authorize(&customer, rbac.OpListOwnOrders); err != nil {
		return nil, err
	}
	return s.repo.ListByUser(ctx, customer.UserID)
}

// GetMine returns one of the customer's orders. Orders owned by someone else are
// reported as not found.
func (s *Service) GetMine(ctx context.Context, customer rbac.Principal, orderID int64) (Order, error) {
	if err := rbac.Authorize(&customer, rbac.OpGetOwnOrder); err != nil {
		return Order{}, err
	}
	return s.repo.GetForUser(ctx, orderID, customer.UserID)
}

// Cancel lets a customer cancel their own Created or Paid order and puts the reserved
// stock back. Cancelling an already cancelled order succeeds without side effects.
func (s *Service) Cancel(ctx context.Context, customer rbac.Principal, orderID int64) (Order, error) {
	if err := rbac.Authorize(&customer, rbac.OpCancelOwnOrder); err != nil {
		return Order{}, err
	}
	var (
		order   Order
		from    Status
		changed bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.UserID != customer.UserID {
			return fmt.Errorf("order %d: %w", orderID, ErrOrderNotFound)
		}
		already, err := CheckCustomerCancel(order.Status)
		if err != nil || already {
			return err
		}
		if err := tx.UpdateStatus(ctx, order.ID, StatusCancelled); err != nil {
			return err
		}
		for _, item := range order.Items {
			if err := tx.AddStock(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		from = order.Status
		order.Status = StatusCancelled
		changed = true
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	if changed {
		s.invalidateCatalog(ctx)
		s.statusChanged(ctx, order, from, customer.UserID, false, true)
	}
	return order, nil
}

// ListAll returns a page of every order. The view is audited.
func (s *Service) ListAll(ctx context.Context, admin rbac.Principal, page shared.PageRequest) ([]Order, shared.Pagination, error) {
	if err := rbac.Authorize(&admin, rbac.OpListAllOrders); err != nil {
		return nil, shared.Pagination{}, err
	}
	list, total, err := s.repo.List(ctx, page)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if err := s.recordView(ctx, admin, "Viewed all orders"); err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(page, total), nil
}

// Get returns any order by id. The view is audited.
func (s *Service) Get(ctx context.Context, admin rbac.Principal, orderID int64) (Order, error) {
	if err := rbac.Authorize(&admin, rbac.OpGetAnyOrder); err != nil {
		return Order{}, err
	}
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if err := s.recordView(ctx, admin, fmt.Sprintf("Viewed order %d", orderID)); err != nil {
		return Order{}, err
	}
	return order, nil
}

// Transition moves an order to target on behalf of an administrator. Stock is never
// touched here, including for Cancelled; only customer cancellation restocks.
func (s *Service) Transition(ctx context.Context, admin rbac.Principal, orderID int64, rawStatus string) (Order, error) {
	if err := rbac.Authorize(&admin, rbac.OpTransitionOrder); err != nil {
		return Order{}, err
	}
	target, err := ParseStatus(rawStatus)
	if err != nil {
		return Order{}, err
	}
	var (
		order Order
		from  Status
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := CheckAdminTransition(order.Status, target); err != nil {
			return err
		}
		if err := tx.UpdateStatus(ctx, order.ID, target); err != nil {
			return err
		}
		from = order.Status
		order.Status = target
		return tx.RecordAdminAction(ctx, admin.UserID, fmt.Sprintf("Changed order %d status to %s", order.ID, target))
	})
	if err != nil {
		return Order{}, err
	}
	s.statusChanged(ctx, order, from, admin.UserID, true, false)
	return order, nil
}

func (s *Service) recordView(ctx context.Context, admin rbac.Principal, action string) error {
	if s.audit == nil {
		return nil
	}
	if err := s.audit.Record(ctx, admin.UserID, action); err != nil {
		return fmt.Errorf("orders: audit %q: %w", action, err)
	}
	return nil
}

func (s *Service) statusChanged(ctx context.Context, order Order, from Status, actorID int64, byAdmin, restocked bool) {
	if s.hooks.Metrics != nil {
		s.hooks.Metrics.OrderTransition(string(from), string(order.Status), byAdmin)
	}
	if s.hooks.Events == nil {
		return
	}
	evt := StatusChangedEvent{
		OrderID:   order.ID,
		UserID:    order.UserID,
		From:      from,
		To:        order.Status,
		ActorID:   actorID,
		ByAdmin:   byAdmin,
		Restocked: restocked,
		ChangedAt: s.clock(),
	}
	if err := s.hooks.Events.OrderStatusChanged(ctx, evt); err != nil {
		s.hooks.Logger.Warn("publish order status changed", slog.Int64("order_id", order.ID), slog.Any("error", err))
	}
}

func (s *Service) invalidateCatalog(ctx context.Context) {
	if s.hooks.Catalog == nil {
		return
	}
	if err := s.hooks.Catalog.Invalidate(ctx); err != nil {
		s.hooks.Logger.Warn("catalog invalidate", slog.Any("error", err))
	}
}

func (s *Service) rejected(err error) {
	if s.hooks.Metrics == nil {
		return
	}
	reason := "Internal"
	var domainErr *httpx.Error
	if errors.As(err, &domainErr) {
		reason = domainErr.Code
	}
	s.hooks.Metrics.OrderRejected(reason)
}
