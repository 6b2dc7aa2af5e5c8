package gatewaywebhook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/freshmarket/grocery-backend/internal/orders"
	"github.com/freshmarket/grocery-backend/internal/payments"
	"github.com/freshmarket/grocery-backend/pkg/db"
	"github.com/freshmarket/grocery-backend/pkg/db/dbtest"
	"github.com/freshmarket/grocery-backend/pkg/db/models"
	"github.com/freshmarket/grocery-backend/pkg/enums"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*Service, *db.Client) {
	t.Helper()
	client := dbtest.New(t, "webhook")
	settler, err := payments.NewSettler(orders.NewRepository(client.DB()), client, nil, nil)
	require.NoError(t, err)
	svc, err := NewService(settler, nil, nil)
	require.NoError(t, err)
	return svc, client
}

func seedOrder(t *testing.T, client *db.Client, ref string) uint {
	t.Helper()
	order := models.Order{
		GatewayOrderID: &ref,
		Total:          decimal.NewFromInt(60),
		Status:         enums.OrderStatusCreated,
		PaymentMethod:  enums.PaymentMethodOnline,
	}
	require.NoError(t, client.DB().Create(&order).Error)
	return order.ID
}

func decodeEvent(t *testing.T, raw string) *Event {
	t.Helper()
	var event Event
	require.NoError(t, json.Unmarshal([]byte(raw), &event))
	return &event
}

func loadOrder(t *testing.T, client *db.Client, id uint) models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, client.DB().First(&order, id).Error)
	return order
}

const capturedBody = `{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_W","status":"captured"}}}}`

func TestCapturedTwiceKeepsFirstPayment(t *testing.T) {
	svc, client := newService(t)
	id := seedOrder(t, client, "order_W")
	ctx := context.Background()

	require.NoError(t, svc.HandleEvent(ctx, decodeEvent(t, capturedBody)))
	require.NoError(t, svc.HandleEvent(ctx, decodeEvent(t,
		`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_2","order_id":"order_W"}}}}`)))

	order := loadOrder(t, client, id)
	assert.Equal(t, enums.OrderStatusPaid, order.Status)
	require.NotNil(t, order.PaymentID)
	assert.Equal(t, "pay_1", *order.PaymentID)
}

func TestFailedAfterCaptureIsIgnored(t *testing.T) {
	svc, client := newService(t)
	id := seedOrder(t, client, "order_W")
	ctx := context.Background()

	require.NoError(t, svc.HandleEvent(ctx, decodeEvent(t, capturedBody)))
	require.NoError(t, svc.HandleEvent(ctx, decodeEvent(t,
		`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_9","order_id":"order_W"}}}}`)))

	assert.Equal(t, enums.OrderStatusPaid, loadOrder(t, client, id).Status)
}

func TestFailedMarksCreatedOrder(t *testing.T) {
	svc, client := newService(t)
	id := seedOrder(t, client, "order_F")

	require.NoError(t, svc.HandleEvent(context.Background(), decodeEvent(t,
		`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_9","order_id":"order_F"}}}}`)))
	assert.Equal(t, enums.OrderStatusPaymentFailed, loadOrder(t, client, id).Status)
}

func TestUnknownEventsAndOrdersAreAcknowledged(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	assert.NoError(t, svc.HandleEvent(ctx, decodeEvent(t, `{"event":"refund.created"}`)))
	assert.NoError(t, svc.HandleEvent(ctx, decodeEvent(t, `{"event":"payment.captured","payload":{}}`)))
	assert.NoError(t, svc.HandleEvent(ctx, decodeEvent(t,
		`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_nope"}}}}`)))
	assert.NoError(t, svc.HandleEvent(ctx, nil))
}

type failingSettler struct{}

func (failingSettler) MarkPaid(context.Context, string, string, string) (*payments.Settlement, error) {
	return nil, errors.New("db down")
}

func (failingSettler) MarkFailed(context.Context, string, string) (*payments.Settlement, error) {
	return nil, errors.New("db down")
}

func TestSettlementErrorsPropagateForRetry(t *testing.T) {
	svc, err := NewService(failingSettler{}, nil, nil)
	require.NoError(t, err)
	assert.Error(t, svc.HandleEvent(context.Background(), decodeEvent(t, capturedBody)))
}
