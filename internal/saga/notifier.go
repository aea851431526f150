package saga

import (
	"context"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	billing "github.com/tradecove/billing/internal/billing/domain"
	"github.com/tradecove/billing/internal/clock"
	invoicedomain "github.com/tradecove/billing/internal/invoice/domain"
)

// Notification is one outbox row awaiting delivery to the saga. The unique
// (order_id, status) index makes duplicate terminal transitions harmless.
type Notification struct {
	ID          string                           `gorm:"column:id;primaryKey;type:varchar(26)"`
	OrderID     billing.OrderID                  `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_saga_notifications_order_status"`
	StoreID     billing.StoreID                  `gorm:"column:store_id;not null"`
	CustomerID  billing.CustomerID               `gorm:"column:customer_id;not null"`
	Status      invoicedomain.OrderPaymentStatus `gorm:"column:status;type:varchar(32);not null;uniqueIndex:ux_saga_notifications_order_status"`
	Attempts    int64                            `gorm:"column:attempts;not null;default:0"`
	DeliveredAt *time.Time                       `gorm:"column:delivered_at"`
	LastError   *string                          `gorm:"column:last_error"`
	CreatedAt   time.Time                        `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time                        `gorm:"column:updated_at;not null"`
}

func (Notification) TableName() string { return "saga_notifications" }

// Notifier owns the notification outbox. Enqueue happens inside the same
// transaction as the invoice transition, so a terminal transition can never
// be lost between commit and delivery.
type Notifier struct {
	db      *gorm.DB
	client  Client
	log     *zap.Logger
	clock   clock.Clock
	entropy *ulid.MonotonicEntropy
}

type NotifierParams struct {
	fx.In

	DB     *gorm.DB
	Client Client
	Log    *zap.Logger
	Clock  clock.Clock
}

func NewNotifier(p NotifierParams) *Notifier {
	return &Notifier{
		db:      p.DB,
		client:  p.Client,
		log:     p.Log.Named("saga.notifier"),
		clock:   p.Clock,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// Enqueue records order-state updates under the caller's transaction.
// Duplicate (order_id, status) rows are dropped as already-enqueued.
func (n *Notifier) Enqueue(tx *gorm.DB, updates []OrderStateUpdate) error {
	now := n.clock.Now().UTC()
	for _, update := range updates {
		row := Notification{
			ID:         ulid.MustNew(ulid.Timestamp(now), n.entropy).String(),
			OrderID:    update.OrderID,
			StoreID:    update.StoreID,
			CustomerID: update.CustomerID,
			Status:     update.Status,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

// DeliverPending pushes undelivered notifications to the saga, oldest first.
// A failed batch stays pending for the next pass; delivery exhaustion never
// rolls back local invoice state.
func (n *Notifier) DeliverPending(ctx context.Context, batchSize int) (int, error) {
	var rows []Notification
	err := n.db.WithContext(ctx).
		Where("delivered_at IS NULL").
		Order("created_at ASC").
		Limit(batchSize).
		Find(&rows).Error
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	updates := make([]OrderStateUpdate, 0, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		updates = append(updates, OrderStateUpdate{
			OrderID:    row.OrderID,
			StoreID:    row.StoreID,
			CustomerID: row.CustomerID,
			Status:     row.Status,
		})
		ids = append(ids, row.ID)
	}

	now := n.clock.Now().UTC()
	if err := n.client.UpdateOrderStates(ctx, updates); err != nil {
		n.log.Error("saga delivery failed, will retry on next pass",
			zap.Int("updates", len(updates)),
			zap.Error(err),
		)
		msg := err.Error()
		_ = n.db.WithContext(ctx).Model(&Notification{}).
			Where("id IN ?", ids).
			Updates(map[string]any{
				"attempts":   gorm.Expr("attempts + 1"),
				"last_error": msg,
				"updated_at": now,
			}).Error
		return 0, err
	}

	err = n.db.WithContext(ctx).Model(&Notification{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"attempts":     gorm.Expr("attempts + 1"),
			"delivered_at": now,
			"updated_at":   now,
		}).Error
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Module wires the saga client and notifier.
var Module = fx.Module("saga",
	fx.Provide(NewClient),
	fx.Provide(NewNotifier),
)
