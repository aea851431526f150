package saga

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	billing "github.com/tradecove/billing/internal/billing/domain"
	"github.com/tradecove/billing/internal/clock"
	"github.com/tradecove/billing/internal/config"
	invoicedomain "github.com/tradecove/billing/internal/invoice/domain"
)

type flakyClient struct {
	failures int
	calls    int
	got      [][]OrderStateUpdate
}

func (c *flakyClient) UpdateOrderStates(_ context.Context, updates []OrderStateUpdate) error {
	c.calls++
	c.got = append(c.got, updates)
	if c.calls <= c.failures {
		return errors.New("saga unreachable")
	}
	return nil
}

func newTestNotifier(t *testing.T, client Client) (*Notifier, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Notification{}))

	clk := clock.NewFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	n := NewNotifier(NotifierParams{DB: db, Client: client, Log: zap.NewNop(), Clock: clk})
	return n, db, clk
}

func enqueue(t *testing.T, n *Notifier, db *gorm.DB, updates []OrderStateUpdate) {
	t.Helper()
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return n.Enqueue(tx, updates)
	}))
}

func TestEnqueue_DeduplicatesOrderStatus(t *testing.T) {
	n, db, _ := newTestNotifier(t, &flakyClient{})

	update := OrderStateUpdate{
		OrderID:    billing.OrderID(uuid.New()),
		StoreID:    7,
		CustomerID: 99,
		Status:     invoicedomain.OrderStatusPaid,
	}
	enqueue(t, n, db, []OrderStateUpdate{update})
	enqueue(t, n, db, []OrderStateUpdate{update})

	var count int64
	require.NoError(t, db.Model(&Notification{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// The same order reaching a different terminal status is a distinct row.
	update.Status = invoicedomain.OrderStatusSettled
	enqueue(t, n, db, []OrderStateUpdate{update})
	require.NoError(t, db.Model(&Notification{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestDeliverPending_RetriesAfterFailure(t *testing.T) {
	client := &flakyClient{failures: 1}
	n, db, _ := newTestNotifier(t, client)

	enqueue(t, n, db, []OrderStateUpdate{{
		OrderID:    billing.OrderID(uuid.New()),
		StoreID:    7,
		CustomerID: 99,
		Status:     invoicedomain.OrderStatusPaid,
	}})

	delivered, err := n.DeliverPending(context.Background(), 10)
	require.Error(t, err)
	assert.Zero(t, delivered)

	var row Notification
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, int64(1), row.Attempts)
	require.NotNil(t, row.LastError)
	assert.Equal(t, "saga unreachable", *row.LastError)
	assert.Nil(t, row.DeliveredAt)

	delivered, err = n.DeliverPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)

	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, int64(2), row.Attempts)
	assert.NotNil(t, row.DeliveredAt)
}

func TestDeliverPending_SkipsDelivered(t *testing.T) {
	client := &flakyClient{}
	n, db, _ := newTestNotifier(t, client)

	enqueue(t, n, db, []OrderStateUpdate{{
		OrderID: billing.OrderID(uuid.New()),
		StoreID: 7,
		Status:  invoicedomain.OrderStatusPaymentFailed,
	}})

	delivered, err := n.DeliverPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)

	delivered, err = n.DeliverPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, delivered)
	assert.Equal(t, 1, client.calls)
}

func TestDeliverPending_BatchOldestFirst(t *testing.T) {
	client := &flakyClient{}
	n, db, clk := newTestNotifier(t, client)

	first := OrderStateUpdate{OrderID: billing.OrderID(uuid.New()), Status: invoicedomain.OrderStatusPaid}
	second := OrderStateUpdate{OrderID: billing.OrderID(uuid.New()), Status: invoicedomain.OrderStatusPaid}
	enqueue(t, n, db, []OrderStateUpdate{first})
	clk.Advance(time.Minute)
	enqueue(t, n, db, []OrderStateUpdate{second})

	delivered, err := n.DeliverPending(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	require.Len(t, client.got, 1)
	require.Len(t, client.got[0], 1)
	assert.Equal(t, first.OrderID, client.got[0][0].OrderID)
}

func TestHTTPClient_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(config.Config{Saga: config.SagaConfig{
		URL:            srv.URL,
		RequestTimeout: time.Second,
		MaxAttempts:    3,
		BackoffBase:    time.Millisecond,
		BackoffCap:     10 * time.Millisecond,
	}}, zap.NewNop())

	err := client.UpdateOrderStates(context.Background(), []OrderStateUpdate{{
		OrderID: billing.OrderID(uuid.New()),
		Status:  invoicedomain.OrderStatusPaid,
	}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())
}

func TestHTTPClient_StopsOnRejection(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := NewClient(config.Config{Saga: config.SagaConfig{
		URL:            srv.URL,
		RequestTimeout: time.Second,
		MaxAttempts:    3,
		BackoffBase:    time.Millisecond,
		BackoffCap:     10 * time.Millisecond,
	}}, zap.NewNop())

	err := client.UpdateOrderStates(context.Background(), []OrderStateUpdate{{
		OrderID: billing.OrderID(uuid.New()),
		Status:  invoicedomain.OrderStatusPaid,
	}})
	require.Error(t, err)
	assert.Equal(t, int64(1), hits.Load())
}

func TestSleepBackoff_Capped(t *testing.T) {
	start := time.Now()
	require.NoError(t, sleepBackoff(context.Background(), time.Millisecond, 5*time.Millisecond, 30))
	assert.Less(t, time.Since(start), time.Second)

	// Shift overflow lands on the cap instead of a negative duration.
	require.NoError(t, sleepBackoff(context.Background(), time.Millisecond, 5*time.Millisecond, 63))
	assert.Less(t, time.Since(start), time.Second)
}
