package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/bigelephant/storefront/internal/jobs"
	"github.com/bigelephant/storefront/internal/orders"
	"github.com/bigelephant/storefront/internal/rbac"
	"github.com/bigelephant/storefront/internal/shared"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

func TestClientPublishesOrderEvents(t *testing.T) {
	enq := &fakeEnqueuer{}
	client := &Client{client: enq}
	ctx := context.Background()

	require.NoError(t, client.OrderPlaced(ctx, orders.PlacedEvent{OrderID: 4, UserID: 2, Items: 1, Total: decimal.NewFromInt(200)}))
	require.NoError(t, client.OrderStatusChanged(ctx, orders.StatusChangedEvent{OrderID: 4, UserID: 2, From: orders.StatusCreated, To: orders.StatusCancelled}))
	require.Len(t, enq.tasks, 2)
	assert.Equal(t, TaskOrderPlaced, enq.tasks[0].Type())
	assert.Equal(t, TaskOrderStatusChanged, enq.tasks[1].Type())

	var evt orders.PlacedEvent
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &evt))
	assert.Equal(t, int64(4), evt.OrderID)
	assert.True(t, evt.Total.Equal(decimal.NewFromInt(200)))
}

func TestClientTreatsDuplicateTaskAsDelivered(t *testing.T) {
	client := &Client{client: &fakeEnqueuer{err: asynq.ErrTaskIDConflict}}
	require.NoError(t, client.OrderPlaced(context.Background(), orders.PlacedEvent{OrderID: 1}))

	client = &Client{client: &fakeEnqueuer{err: errors.New("redis down")}}
	require.Error(t, client.OrderPlaced(context.Background(), orders.PlacedEvent{OrderID: 1}))
}

type stubRecipients map[int64]string

func (s stubRecipients) EmailFor(ctx context.Context, userID int64) (string, error) {
	email, ok := s[userID]
	if !ok {
		return "", ErrRecipientNotFound
	}
	return email, nil
}

type captureNotifier struct {
	sent []Notification
}

func (c *captureNotifier) Notify(ctx context.Context, n Notification) error {
	c.sent = append(c.sent, n)
	return nil
}

func TestOrderNotifyJob(t *testing.T) {
	notifier := &captureNotifier{}
	job := NewOrderNotifyJob(stubRecipients{2: "a@x.io"}, notifier, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	ctx := context.Background()

	placed, err := NewOrderPlacedTask(orders.PlacedEvent{OrderID: 9, UserID: 2, Items: 2, Total: decimal.RequireFromString("19.5")})
	require.NoError(t, err)
	require.NoError(t, job.HandlePlaced(ctx, placed))

	changed, err := NewOrderStatusChangedTask(orders.StatusChangedEvent{OrderID: 9, UserID: 2, To: orders.StatusCancelled, Restocked: true})
	require.NoError(t, err)
	require.NoError(t, job.HandleStatusChanged(ctx, changed))

	require.Len(t, notifier.sent, 2)
	assert.Equal(t, "a@x.io", notifier.sent[0].To)
	assert.Contains(t, notifier.sent[0].Body, "total 19.50")
	assert.Equal(t, "Order #9: Cancelled", notifier.sent[1].Subject)
	assert.Contains(t, notifier.sent[1].Body, "released")

	orphan, err := NewOrderPlacedTask(orders.PlacedEvent{OrderID: 10, UserID: 77})
	require.NoError(t, err)
	require.ErrorIs(t, job.HandlePlaced(ctx, orphan), asynq.SkipRetry)

	require.ErrorIs(t, job.HandlePlaced(ctx, asynq.NewTask(TaskOrderPlaced, []byte("{"))), asynq.SkipRetry)
}

type stubPurger struct {
	olderThan time.Duration
	removed   int64
	err       error
}

func (s *stubPurger) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	s.olderThan = olderThan
	return s.removed, s.err
}

func TestIdempotencyCleanupJob(t *testing.T) {
	store := &stubPurger{removed: 3}
	job := NewIdempotencyCleanupJob(store, 48*time.Hour, nil, nil)

	task, err := NewIdempotencyCleanupTask(0)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 48*time.Hour, store.olderThan)

	task, err = NewIdempotencyCleanupTask(6)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 6*time.Hour, store.olderThan)

	store.err = errors.New("db down")
	require.Error(t, job.Handle(context.Background(), task))
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func serveHealth(inspector QueueInspector, sess *shared.Session) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	NewHandler(inspector, nil, rbac.Middleware{}).MountRoutes(r)
	req := httptest.NewRequest(http.MethodGet, "/jobs/health", nil)
	if sess != nil {
		req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestJobsHealth(t *testing.T) {
	adminSession := &shared.Session{UserID: 1, Roles: []string{"Admin"}}

	rr := serveHealth(stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3, Retry: 1}}, adminSession)
	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, float64(3), body["pending"])
	assert.Equal(t, float64(1), body["retry"])

	rr = serveHealth(stubInspector{err: errors.New("redis down")}, adminSession)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = serveHealth(stubInspector{err: asynq.ErrQueueNotFound}, adminSession)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serveHealth(stubInspector{}, &shared.Session{UserID: 2, Roles: []string{"Customer"}})
	assert.Equal(t, http.StatusForbidden, rr.Code)
}
