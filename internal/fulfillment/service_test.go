package fulfillment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medstok/go-pharmacy-orders/internal/catalog"
	"github.com/medstok/go-pharmacy-orders/internal/ledger"
	"github.com/medstok/go-pharmacy-orders/internal/memstore"
	"github.com/medstok/go-pharmacy-orders/internal/orders"
)

type fixture struct {
	svc    *Service
	store  *memstore.Store
	ledger *memstore.LedgerStore
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	f := &fixture{
		store:  store,
		ledger: memstore.NewLedger(store),
	}
	f.svc = &Service{
		Catalog: memstore.NewCatalog(store),
		Ledger:  f.ledger,
		Orders:  memstore.NewOrders(store),
		Tx:      &memstore.TxManager{S: store},
		Log:     zap.NewNop(),
	}
	return f
}

func (f *fixture) medicine(t *testing.T, id, name string) {
	t.Helper()
	err := f.svc.Catalog.Create(context.Background(), catalog.Medicine{
		ID: id, Name: name, CreatedAt: time.Now(),
	})
	require.NoError(t, err)
}

func (f *fixture) batch(t *testing.T, pharmacy, medicine, batchNo string, qty int64, expiry time.Time) string {
	t.Helper()
	id, err := f.ledger.AddStock(context.Background(), ledger.Batch{
		PharmacyID:     pharmacy,
		MedicineID:     medicine,
		BatchNo:        batchNo,
		Quantity:       qty,
		UnitPriceCents: 500,
		ExpiryDate:     expiry,
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) quantity(t *testing.T, batchID string) int64 {
	t.Helper()
	b, err := f.ledger.Get(context.Background(), batchID)
	require.NoError(t, err)
	return b.Quantity
}

func in(days int) time.Time { return time.Now().Add(time.Duration(days) * 24 * time.Hour) }

func TestCreateOrderTotalsAndDeduction(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.medicine(t, "med1", "Amoxicillin")
	f.medicine(t, "med2", "Ibuprofen")
	b1 := f.batch(t, "ph1", "med1", "B1", 10, in(30))
	b2 := f.batch(t, "ph1", "med2", "B2", 20, in(30))

	o, lines, err := f.svc.CreateOrder(ctx, CreateOrderRequest{
		CustomerID: "cust1",
		PharmacyID: "ph1",
		Lines: []LineRequest{
			{MedicineID: "med1", BatchID: b1, Quantity: 3, PriceCents: 1200},
			{MedicineID: "med2", BatchID: b2, Quantity: 2, PriceCents: 450},
		},
	})
	require.NoError(t, err)
	require.Equal(t, orders.StatusProcessing, o.Status)
	require.Equal(t, orders.PaymentPending, o.PaymentStatus)
	require.Len(t, lines, 2)

	var sum int64
	for _, l := range lines {
		require.Equal(t, l.Quantity*l.UnitPriceCents, l.SubtotalCents)
		sum += l.SubtotalCents
	}
	require.Equal(t, sum, o.TotalCents)
	require.EqualValues(t, 3*1200+2*450, o.TotalCents)

	require.EqualValues(t, 7, f.quantity(t, b1))
	require.EqualValues(t, 18, f.quantity(t, b2))

	got, err := f.svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, o.TotalCents, got.TotalCents)
}

func TestCreateOrderValidation(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	cases := []CreateOrderRequest{
		{CustomerID: "c", PharmacyID: "ph1"},                                                                        // no items
		{CustomerID: "c", Lines: []LineRequest{{MedicineID: "m", Quantity: 1, PriceCents: 1}}},                      // no pharmacy
		{PharmacyID: "ph1", Lines: []LineRequest{{MedicineID: "m", Quantity: 1, PriceCents: 1}}},                    // no customer
		{CustomerID: "c", PharmacyID: "ph1", Lines: []LineRequest{{Quantity: 1, PriceCents: 1}}},                    // no medicine
		{CustomerID: "c", PharmacyID: "ph1", Lines: []LineRequest{{MedicineID: "m", Quantity: 0, PriceCents: 1}}},   // zero qty
		{CustomerID: "c", PharmacyID: "ph1", Lines: []LineRequest{{MedicineID: "m", Quantity: -2, PriceCents: 1}}},  // negative qty
		{CustomerID: "c", PharmacyID: "ph1", Lines: []LineRequest{{MedicineID: "m", Quantity: 1, PriceCents: 0}}},   // zero price
	}
	for i, req := range cases {
		_, _, err := f.svc.CreateOrder(ctx, req)
		require.ErrorIs(t, err, ErrInvalidRequest, "case %d", i)
	}
}

func TestCreateOrderInsufficientStockNoPartialDeduction(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.medicine(t, "medX", "Metformin")
	// batch A short, batch B plentiful with later expiry
	a := f.batch(t, "ph1", "medX", "A", 5, in(10))
	b := f.batch(t, "ph1", "medX", "B", 20, in(60))

	_, _, err := f.svc.CreateOrder(ctx, CreateOrderRequest{
		CustomerID: "cust1",
		PharmacyID: "ph1",
		Lines:      []LineRequest{{MedicineID: "medX", BatchID: a, Quantity: 8, PriceCents: 100}},
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientStock)
	require.EqualValues(t, 5, f.quantity(t, a), "no partial deduction from the short batch")
	require.EqualValues(t, 20, f.quantity(t, b), "order must not spill to another batch")
}

func TestCreateOrderRollsBackEarlierLines(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.medicine(t, "med1", "Amoxicillin")
	f.medicine(t, "med2", "Ibuprofen")
	good := f.batch(t, "ph1", "med1", "G", 10, in(30))
	short := f.batch(t, "ph1", "med2", "S", 1, in(30))

	_, _, err := f.svc.CreateOrder(ctx, CreateOrderRequest{
		CustomerID: "cust1",
		PharmacyID: "ph1",
		Lines: []LineRequest{
			{MedicineID: "med1", BatchID: good, Quantity: 4, PriceCents: 100},
			{MedicineID: "med2", BatchID: short, Quantity: 5, PriceCents: 100},
		},
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientStock)
	require.EqualValues(t, 10, f.quantity(t, good), "line 1 deduction must be rolled back")
	require.EqualValues(t, 1, f.quantity(t, short))
}

func TestCreateOrderExpiredBatchRejected(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.medicine(t, "med1", "Amoxicillin")
	old := f.batch(t, "ph1", "med1", "OLD", 50, in(-1))

	_, _, err := f.svc.CreateOrder(ctx, CreateOrderRequest{
		CustomerID: "cust1",
		PharmacyID: "ph1",
		Lines:      []LineRequest{{MedicineID: "med1", BatchID: old, Quantity: 1, PriceCents: 100}},
	})
	require.ErrorIs(t, err, ledger.ErrExpiredBatch)
	require.EqualValues(t, 50, f.quantity(t, old))
}

func TestCreateOrderForeignBatchLooksMissing(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.medicine(t, "med1", "Amoxicillin")
	other := f.batch(t, "ph2", "med1", "B1", 10, in(30))

	_, _, err := f.svc.CreateOrder(ctx, CreateOrderRequest{
		CustomerID: "cust1",
		PharmacyID: "ph1",
		Lines:      []LineRequest{{MedicineID: "med1", BatchID: other, Quantity: 1, PriceCents: 100}},
	})
	require.ErrorIs(t, err, ledger.ErrBatchNotFound)
	require.EqualValues(t, 10, f.quantity(t, other))
}

func TestCreateOrderBatchMedicineMismatch(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.medicine(t, "med1", "Amoxicillin")
	f.medicine(t, "med2", "Ibuprofen")
	b := f.batch(t, "ph1", "med1", "B1", 10, in(30))

	_, _, err := f.svc.CreateOrder(ctx, CreateOrderRequest{
		CustomerID: "cust1",
		PharmacyID: "ph1",
		Lines:      []LineRequest{{MedicineID: "med2", BatchID: b, Quantity: 1, PriceCents: 100}},
	})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestCreateOrderFEFOPicksEarliestExpiry(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.medicine(t, "med1", "Amoxicillin")
	late := f.batch(t, "ph1", "med1", "LATE", 20, in(90))
	early := f.batch(t, "ph1", "med1", "EARLY", 10, in(10))
	f.batch(t, "ph1", "med1", "EXPIRED", 99, in(-1))

	_, lines, err := f.svc.CreateOrder(ctx, CreateOrderRequest{
		CustomerID: "cust1",
		PharmacyID: "ph1",
		Lines:      []LineRequest{{MedicineID: "med1", Quantity: 4, PriceCents: 100}},
	})
	require.NoError(t, err)
	require.Equal(t, early, lines[0].BatchID)
	require.EqualValues(t, 6, f.quantity(t, early))
	require.EqualValues(t, 20, f.quantity(t, late))
}

func TestCreateOrderFEFONoLineSplitting(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.medicine(t, "med1", "Amoxicillin")
	head := f.batch(t, "ph1", "med1", "HEAD", 2, in(10))
	tail := f.batch(t, "ph1", "med1", "TAIL", 50, in(90))

	// head of the FEFO queue cannot cover the line; the line fails rather
	// than splitting across batches
	_, _, err := f.svc.CreateOrder(ctx, CreateOrderRequest{
		CustomerID: "cust1",
		PharmacyID: "ph1",
		Lines:      []LineRequest{{MedicineID: "med1", Quantity: 5, PriceCents: 100}},
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientStock)
	require.EqualValues(t, 2, f.quantity(t, head))
	require.EqualValues(t, 50, f.quantity(t, tail))
}

func TestCreateOrderUnknownMedicine(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, _, err := f.svc.CreateOrder(ctx, CreateOrderRequest{
		CustomerID: "cust1",
		PharmacyID: "ph1",
		Lines:      []LineRequest{{MedicineID: "ghost", Quantity: 1, PriceCents: 100}},
	})
	require.ErrorIs(t, err, catalog.ErrMedicineNotFound)
}

func placeOrder(t *testing.T, f *fixture, batchIDs map[string]string) orders.Order {
	t.Helper()
	f.medicine(t, "med1", "Amoxicillin")
	f.medicine(t, "med2", "Ibuprofen")
	b1 := f.batch(t, "ph1", "med1", "B1", 10, in(30))
	b2 := f.batch(t, "ph1", "med2", "B2", 8, in(30))
	if batchIDs != nil {
		batchIDs["b1"] = b1
		batchIDs["b2"] = b2
	}
	o, _, err := f.svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: "cust1",
		PharmacyID: "ph1",
		Lines: []LineRequest{
			{MedicineID: "med1", BatchID: b1, Quantity: 3, PriceCents: 100},
			{MedicineID: "med2", BatchID: b2, Quantity: 2, PriceCents: 200},
		},
	})
	require.NoError(t, err)
	return o
}

func TestCancelRestoresStockExactly(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	ids := map[string]string{}
	o := placeOrder(t, f, ids)

	require.EqualValues(t, 7, f.quantity(t, ids["b1"]))
	require.EqualValues(t, 6, f.quantity(t, ids["b2"]))

	got, lines, err := f.svc.Cancel(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, orders.StatusCancelled, got.Status)
	require.Len(t, lines, 2)

	require.EqualValues(t, 10, f.quantity(t, ids["b1"]), "cancel must restore the exact pre-order quantity")
	require.EqualValues(t, 8, f.quantity(t, ids["b2"]))

	// cancelling twice must not restock twice
	_, _, err = f.svc.Cancel(ctx, o.ID)
	require.ErrorIs(t, err, orders.ErrInvalidTransition)
	require.EqualValues(t, 10, f.quantity(t, ids["b1"]))
	require.EqualValues(t, 8, f.quantity(t, ids["b2"]))
}

func TestAdvanceFollowsGraph(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	o := placeOrder(t, f, nil)

	// skipping a state is rejected
	_, err := f.svc.Advance(ctx, o.ID, orders.StatusDispatched)
	require.ErrorIs(t, err, orders.ErrInvalidTransition)

	got, err := f.svc.Advance(ctx, o.ID, orders.StatusReady)
	require.NoError(t, err)
	require.Equal(t, orders.StatusReady, got.Status)

	got, err = f.svc.Advance(ctx, o.ID, orders.StatusDispatched)
	require.NoError(t, err)
	require.Equal(t, orders.StatusDispatched, got.Status)

	// delivered and cancelled have dedicated transitions
	_, err = f.svc.Advance(ctx, o.ID, orders.StatusDelivered)
	require.ErrorIs(t, err, ErrInvalidRequest)
	_, err = f.svc.Advance(ctx, o.ID, orders.StatusCancelled)
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.svc.Advance(ctx, "missing", orders.StatusReady)
	require.ErrorIs(t, err, orders.ErrOrderNotFound)
}

func deliverOrder(t *testing.T, f *fixture, orderID string) orders.Order {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.Advance(ctx, orderID, orders.StatusReady)
	require.NoError(t, err)
	_, err = f.svc.Advance(ctx, orderID, orders.StatusDispatched)
	require.NoError(t, err)
	o, err := f.svc.MarkDelivered(ctx, orderID)
	require.NoError(t, err)
	return o
}

func TestMarkDeliveredSettlesOnce(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	o := placeOrder(t, f, nil)

	// not deliverable before dispatch
	_, err := f.svc.MarkDelivered(ctx, o.ID)
	require.ErrorIs(t, err, orders.ErrInvalidTransition)

	got := deliverOrder(t, f, o.ID)
	require.Equal(t, orders.StatusDelivered, got.Status)
	require.Equal(t, orders.PaymentPaid, got.PaymentStatus)
	require.NotNil(t, got.DeliveredAt)

	// the second call must fail, not succeed silently
	_, err = f.svc.MarkDelivered(ctx, o.ID)
	require.ErrorIs(t, err, orders.ErrInvalidTransition)

	after, err := f.svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, orders.PaymentPaid, after.PaymentStatus, "paid exactly once")
	require.Equal(t, got.DeliveredAt.Unix(), after.DeliveredAt.Unix())
}

func TestCancelDeliveredRejectedWithoutRestock(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	ids := map[string]string{}
	o := placeOrder(t, f, ids)
	deliverOrder(t, f, o.ID)

	_, _, err := f.svc.Cancel(ctx, o.ID)
	require.ErrorIs(t, err, orders.ErrInvalidTransition)
	require.EqualValues(t, 7, f.quantity(t, ids["b1"]), "no batch may be restocked")
	require.EqualValues(t, 6, f.quantity(t, ids["b2"]))
}

func TestRefundOnlyAfterDelivery(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	o := placeOrder(t, f, nil)

	_, err := f.svc.Refund(ctx, o.ID)
	require.ErrorIs(t, err, orders.ErrInvalidTransition)

	deliverOrder(t, f, o.ID)

	got, err := f.svc.Refund(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, orders.PaymentRefunded, got.PaymentStatus)

	_, err = f.svc.Refund(ctx, o.ID)
	require.ErrorIs(t, err, orders.ErrInvalidTransition)
}

func TestAddStockValidation(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.medicine(t, "med1", "Amoxicillin")

	okBatch := ledger.Batch{
		PharmacyID: "ph1", MedicineID: "med1", BatchNo: "B1",
		Quantity: 10, UnitPriceCents: 500, ExpiryDate: in(30),
	}

	b, err := f.svc.AddStock(ctx, okBatch)
	require.NoError(t, err)
	require.EqualValues(t, 10, b.Quantity)

	// same batch number tops up
	b2, err := f.svc.AddStock(ctx, okBatch)
	require.NoError(t, err)
	require.Equal(t, b.ID, b2.ID)
	require.EqualValues(t, 20, b2.Quantity)

	bad := okBatch
	bad.Quantity = 0
	_, err = f.svc.AddStock(ctx, bad)
	require.ErrorIs(t, err, ErrInvalidRequest)

	bad = okBatch
	bad.ExpiryDate = in(-1)
	_, err = f.svc.AddStock(ctx, bad)
	require.ErrorIs(t, err, ErrInvalidRequest)

	bad = okBatch
	bad.MedicineID = "ghost"
	_, err = f.svc.AddStock(ctx, bad)
	require.ErrorIs(t, err, catalog.ErrMedicineNotFound)
}
