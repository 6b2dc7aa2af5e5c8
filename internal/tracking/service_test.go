package tracking

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/freshmarket/grocery-backend/internal/orders"
	"github.com/freshmarket/grocery-backend/pkg/db"
	"github.com/freshmarket/grocery-backend/pkg/db/dbtest"
	"github.com/freshmarket/grocery-backend/pkg/db/models"
	"github.com/freshmarket/grocery-backend/pkg/enums"
	pkgerrors "github.com/freshmarket/grocery-backend/pkg/errors"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

func newTrackingService(t *testing.T) (*Service, *db.Client) {
	t.Helper()
	client := dbtest.New(t, "tracking")
	svc, err := NewService(orders.NewRepository(client.DB()), client, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, client
}

func seedOrder(t *testing.T, client *db.Client, status enums.OrderStatus) uint {
	t.Helper()
	order := models.Order{Total: decimal.NewFromInt(100), Status: status, PaymentMethod: enums.PaymentMethodOnline}
	if err := client.DB().Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order.ID
}

func orderStatus(t *testing.T, client *db.Client, id uint) enums.OrderStatus {
	t.Helper()
	var order models.Order
	if err := client.DB().First(&order, id).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	return order.Status
}

func status(s string) *string { return &s }

func hasCode(code pkgerrors.Code) func(error) bool {
	return func(err error) bool { return pkgerrors.IsCode(err, code) }
}

func TestGetLocationBeforeFirstUpdate(t *testing.T) {
	g := NewWithT(t)
	svc, client := newTrackingService(t)
	id := seedOrder(t, client, enums.OrderStatusPaid)

	res, err := svc.GetLocation(context.Background(), id)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(res.OrderID).To(Equal(id))
	g.Expect(res.Location).To(BeNil())

	_, err = svc.GetLocation(context.Background(), 404)
	g.Expect(err).To(Satisfy(hasCode(pkgerrors.CodeNotFound)))
}

func TestUpdateCreatesRowAndAppliesPartialFields(t *testing.T) {
	g := NewWithT(t)
	svc, client := newTrackingService(t)
	id := seedOrder(t, client, enums.OrderStatusPaid)
	ctx := context.Background()

	res, err := svc.UpdateLocation(ctx, id, UpdateInput{Latitude: CoordinateOf(12.97), Longitude: RawCoordinate("77.59")})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(res.Location.Status).To(Equal(enums.DeliveryStatusPreparing))
	g.Expect(*res.Location.Latitude).To(BeNumerically("~", 12.97, 1e-9))
	g.Expect(*res.Location.Longitude).To(BeNumerically("~", 77.59, 1e-9))

	res, err = svc.UpdateLocation(ctx, id, UpdateInput{Status: status("out_for_delivery")})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(res.Location.Status).To(Equal(enums.DeliveryStatusOutForDelivery))
	g.Expect(*res.Location.Latitude).To(BeNumerically("~", 12.97, 1e-9))

	var rows int64
	g.Expect(client.DB().Model(&models.OrderLocation{}).Where("order_id = ?", id).Count(&rows).Error).To(Succeed())
	g.Expect(rows).To(BeEquivalentTo(1))
}

func TestUpdateRejectsBadInput(t *testing.T) {
	g := NewWithT(t)
	svc, client := newTrackingService(t)
	id := seedOrder(t, client, enums.OrderStatusPaid)
	ctx := context.Background()

	for _, in := range []UpdateInput{
		{Latitude: RawCoordinate("north")},
		{Latitude: CoordinateOf(91)},
		{Longitude: RawCoordinate("NaN")},
		{Longitude: RawCoordinate("-181")},
		{Status: status("lost in transit")},
	} {
		_, err := svc.UpdateLocation(ctx, id, in)
		g.Expect(err).To(Satisfy(hasCode(pkgerrors.CodeValidation)))
	}

	_, err := svc.UpdateLocation(ctx, 999, UpdateInput{Status: status("Dispatched")})
	g.Expect(err).To(Satisfy(hasCode(pkgerrors.CodeNotFound)))
}

func TestTrackingIsForwardOnly(t *testing.T) {
	g := NewWithT(t)
	svc, client := newTrackingService(t)
	id := seedOrder(t, client, enums.OrderStatusPaid)
	ctx := context.Background()

	_, err := svc.UpdateLocation(ctx, id, UpdateInput{Status: status("Out for delivery")})
	g.Expect(err).NotTo(HaveOccurred())

	_, err = svc.UpdateLocation(ctx, id, UpdateInput{Status: status("Out for delivery")})
	g.Expect(err).NotTo(HaveOccurred())

	_, err = svc.UpdateLocation(ctx, id, UpdateInput{Status: status("preparing")})
	g.Expect(err).To(Satisfy(hasCode(pkgerrors.CodeStateConflict)))
}

func TestMilestonesAdvanceOrderStatus(t *testing.T) {
	g := NewWithT(t)
	svc, client := newTrackingService(t)
	paid := seedOrder(t, client, enums.OrderStatusPaid)
	unpaid := seedOrder(t, client, enums.OrderStatusCreated)
	ctx := context.Background()

	_, err := svc.UpdateLocation(ctx, paid, UpdateInput{Status: status("dispatched")})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(orderStatus(t, client, paid)).To(Equal(enums.OrderStatusDispatched))

	_, err = svc.UpdateLocation(ctx, paid, UpdateInput{Status: status("DELIVERED")})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(orderStatus(t, client, paid)).To(Equal(enums.OrderStatusDelivered))

	_, err = svc.UpdateLocation(ctx, unpaid, UpdateInput{Status: status("Dispatched")})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(orderStatus(t, client, unpaid)).To(Equal(enums.OrderStatusCreated))
}

func TestCoordinateDecodesNumbersAndStrings(t *testing.T) {
	g := NewWithT(t)
	var body struct {
		Latitude  *Coordinate `json:"latitude"`
		Longitude *Coordinate `json:"longitude"`
	}
	g.Expect(json.Unmarshal([]byte(`{"latitude":"12.5","longitude":77}`), &body)).To(Succeed())

	lat, err := body.Latitude.parse("latitude", 90)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(lat).To(Equal(12.5))
	lng, err := body.Longitude.parse("longitude", 180)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(lng).To(Equal(77.0))

	var empty struct {
		Latitude *Coordinate `json:"latitude"`
	}
	g.Expect(json.Unmarshal([]byte(`{"latitude":null}`), &empty)).To(Succeed())
	g.Expect(empty.Latitude.IsSet()).To(BeFalse())
}
