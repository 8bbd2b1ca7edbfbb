package catalog

import (
	"context"
	"maps"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigelephant/storefront/internal/platform/httpx"
	"github.com/bigelephant/storefront/internal/rbac"
)

type memoryRepo struct {
	products map[int64]Product
	logs     []string
	nextID   int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{products: make(map[int64]Product)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := maps.Clone(r.products)
	logs := len(r.logs)
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.products = snapshot
		r.logs = r.logs[:logs]
		return err
	}
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Product, error) {
	p, ok := r.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (r *memoryRepo) ListVisible(ctx context.Context) ([]Product, error) {
	var out []Product
	for _, p := range r.sorted() {
		if p.Visible() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListAll(ctx context.Context) ([]Product, error) {
	return r.sorted(), nil
}

func (r *memoryRepo) sorted() []Product {
	out := make([]Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (tx *memoryTx) GetForUpdate(ctx context.Context, id int64) (Product, error) {
	return tx.repo.Get(ctx, id)
}

func (tx *memoryTx) Insert(ctx context.Context, p Product) (Product, error) {
	tx.repo.nextID++
	p.ID = tx.repo.nextID
	tx.repo.products[p.ID] = p
	return p, nil
}

func (tx *memoryTx) Update(ctx context.Context, p Product) (Product, error) {
	if _, ok := tx.repo.products[p.ID]; !ok {
		return Product{}, ErrProductNotFound
	}
	tx.repo.products[p.ID] = p
	return p, nil
}

func (tx *memoryTx) RecordAdminAction(ctx context.Context, adminID int64, action string) error {
	tx.repo.logs = append(tx.repo.logs, action)
	return nil
}

type countingCache struct {
	invalidations int
}

func (c *countingCache) Visible(ctx context.Context, load func(context.Context) ([]Product, error)) ([]Product, error) {
	return load(ctx)
}

func (c *countingCache) Invalidate(ctx context.Context) error {
	c.invalidations++
	return nil
}

type blockingRepo struct {
	*memoryRepo
	started chan struct{}
	release chan struct{}
	loads   atomic.Int32
}

func (r *blockingRepo) ListVisible(ctx context.Context) ([]Product, error) {
	if r.loads.Add(1) == 1 {
		close(r.started)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.release:
	}
	return r.memoryRepo.ListVisible(ctx)
}

var (
	admin    = rbac.Principal{UserID: 1, Roles: []rbac.Role{rbac.RoleAdmin}}
	customer = rbac.Principal{UserID: 2, Roles: []rbac.Role{rbac.RoleCustomer}}
)

func TestCreateValidatesAndAudits(t *testing.T) {
	repo := newMemoryRepo()
	cache := &countingCache{}
	svc := NewService(repo, cache, nil)
	ctx := context.Background()

	p, err := svc.Create(ctx, admin, CreateInput{Name: "  Test  ", Price: decimal.RequireFromString("100.004"), Stock: 10})
	require.NoError(t, err)
	assert.Equal(t, "Test", p.Name)
	assert.True(t, p.Price.Equal(decimal.NewFromInt(100)))
	assert.True(t, p.Visible())
	assert.Equal(t, []string{"Created product: Test, Price: 100.00, Stock: 10"}, repo.logs)
	assert.Equal(t, 1, cache.invalidations)

	_, err = svc.Create(ctx, admin, CreateInput{Name: "", Price: decimal.NewFromInt(1), Stock: 1})
	require.ErrorIs(t, err, httpx.ErrValidation)
	_, err = svc.Create(ctx, admin, CreateInput{Name: "Free", Price: decimal.Zero, Stock: 1})
	require.ErrorIs(t, err, httpx.ErrValidation)
	_, err = svc.Create(ctx, admin, CreateInput{Name: "Neg", Price: decimal.NewFromInt(1), Stock: -1})
	require.ErrorIs(t, err, httpx.ErrValidation)
	_, err = svc.Create(ctx, admin, CreateInput{Name: string(make([]rune, MaxNameLength+1)), Price: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, httpx.ErrValidation)
	assert.Len(t, repo.logs, 1)
}

func TestCreateRequiresAdmin(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)

	_, err := svc.Create(context.Background(), customer, CreateInput{Name: "X", Price: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestVisibilityFollowsActiveAndDeleted(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	p, err := svc.Create(ctx, admin, CreateInput{Name: "Lamp", Price: decimal.NewFromInt(5), Stock: 3})
	require.NoError(t, err)

	visible, err := svc.ListVisible(ctx)
	require.NoError(t, err)
	require.Len(t, visible, 1)

	deleted, err := svc.SoftDelete(ctx, admin, p.ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	assert.False(t, deleted.IsActive)
	visible, err = svc.ListVisible(ctx)
	require.NoError(t, err)
	assert.Empty(t, visible)

	all, err := svc.ListAll(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	restored, err := svc.Restore(ctx, admin, p.ID)
	require.NoError(t, err)
	assert.False(t, restored.IsDeleted)
	assert.True(t, restored.IsActive)

	inactive := false
	_, err = svc.Update(ctx, admin, p.ID, Patch{IsActive: &inactive})
	require.NoError(t, err)
	visible, err = svc.ListVisible(ctx)
	require.NoError(t, err)
	assert.Empty(t, visible)

	assert.Equal(t, []string{
		"Created product: Lamp, Price: 5.00, Stock: 3",
		"Soft deleted product 1",
		"Restored product 1",
		"Changed active state of product 1 to false",
	}, repo.logs)
}

func TestUpdateCollapsesFieldsIntoOneEntry(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	p, err := svc.Create(ctx, admin, CreateInput{Name: "Mug", Price: decimal.NewFromInt(4), Stock: 1})
	require.NoError(t, err)

	name := "Big Mug"
	price := decimal.RequireFromString("6.5")
	stock := 12
	img := "https://cdn.store.local/mug.png"
	updated, err := svc.Update(ctx, admin, p.ID, Patch{Name: &name, Price: &price, Stock: &stock, ImageURL: &img})
	require.NoError(t, err)
	assert.Equal(t, "Big Mug", updated.Name)
	assert.Equal(t, "6.50", updated.Price.StringFixed(2))
	assert.Equal(t, 12, updated.Stock)
	require.NotNil(t, updated.ImageURL)

	require.Len(t, repo.logs, 2)
	assert.Equal(t, "Changed name of product 1 to Big Mug; Changed price of product 1 to 6.50; Changed stock of product 1 to 12; Changed image of product 1", repo.logs[1])

	cleared, err := svc.Update(ctx, admin, p.ID, Patch{ClearImage: true})
	require.NoError(t, err)
	assert.Nil(t, cleared.ImageURL)

	same := 12
	_, err = svc.Update(ctx, admin, p.ID, Patch{Stock: &same})
	require.NoError(t, err)
	assert.Len(t, repo.logs, 3)
}

func TestUpdateRejectsInvalidValuesWithoutSideEffects(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	p, err := svc.Create(ctx, admin, CreateInput{Name: "Pen", Price: decimal.NewFromInt(2), Stock: 5})
	require.NoError(t, err)

	neg := -1
	_, err = svc.Update(ctx, admin, p.ID, Patch{Stock: &neg})
	require.ErrorIs(t, err, httpx.ErrValidation)
	overflow := MaxStock + 1
	_, err = svc.Update(ctx, admin, p.ID, Patch{Stock: &overflow})
	require.ErrorIs(t, err, httpx.ErrValidation)
	_, err = svc.Create(ctx, admin, CreateInput{Name: "Ink", Price: decimal.NewFromInt(2), Stock: overflow})
	require.ErrorIs(t, err, httpx.ErrValidation)
	zero := decimal.Zero
	_, err = svc.Update(ctx, admin, p.ID, Patch{Price: &zero})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Update(ctx, admin, 99, Patch{Stock: &p.Stock})
	require.ErrorIs(t, err, ErrProductNotFound)

	stored, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Stock)
	assert.Len(t, repo.logs, 1)
}

func TestListVisibleSurvivesCancelledPeer(t *testing.T) {
	base := newMemoryRepo()
	svc := NewService(base, nil, nil)
	_, err := svc.Create(context.Background(), admin, CreateInput{Name: "Lamp", Price: decimal.NewFromInt(5), Stock: 2})
	require.NoError(t, err)

	repo := &blockingRepo{memoryRepo: base, started: make(chan struct{}), release: make(chan struct{})}
	svc = NewService(repo, nil, nil)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.ListVisible(firstCtx)
		firstErr <- err
	}()
	<-repo.started

	type result struct {
		products []Product
		err      error
	}
	second := make(chan result, 1)
	go func() {
		products, err := svc.ListVisible(context.Background())
		second <- result{products, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	close(repo.release)
	got := <-second
	require.NoError(t, got.err)
	require.Len(t, got.products, 1)
	assert.Equal(t, "Lamp", got.products[0].Name)
}
