package orders

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"solestore/internal/domain/carts"
	"solestore/internal/domain/products"
	"solestore/internal/params"
	"solestore/internal/recordstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyBackend fails saves of one collection on demand.
type flakyBackend struct {
	recordstore.Backend
	mu   sync.Mutex
	fail string
}

func (b *flakyBackend) Save(ctx context.Context, name string, data []byte) error {
	b.mu.Lock()
	fail := b.fail == name
	b.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return b.Backend.Save(ctx, name, data)
}

type fixture struct {
	backend *flakyBackend
	orders  *Repository
	carts   *carts.Repository
	catalog products.Store
	shoe    *products.Product
	sock    *products.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fb, err := recordstore.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	backend := &flakyBackend{Backend: fb}
	s := recordstore.New(backend)

	catalog := products.NewRepository(s)
	cartRepo := carts.NewRepository(s, catalog)
	gen, err := NewOrderNumberGenerator("test-salt")
	require.NoError(t, err)
	pricing := Pricing{FreeShippingThresholdCents: 10000, ShippingFeeCents: 799}

	ctx := context.Background()
	shoe := &products.Product{Name: "Club C", PriceCents: 8000, Sizes: []string{"9"}, Stock: 3, IsActive: true}
	require.NoError(t, catalog.Create(ctx, shoe))
	sock := &products.Product{Name: "Crew Sock", PriceCents: 1200, Stock: 10, IsActive: true}
	require.NoError(t, catalog.Create(ctx, sock))

	return &fixture{
		backend: backend,
		orders:  NewRepository(s, cartRepo, catalog, gen, pricing),
		carts:   cartRepo,
		catalog: catalog,
		shoe:    shoe,
		sock:    sock,
	}
}

func (f *fixture) fill(t *testing.T, userID string, shoes, socks int) {
	t.Helper()
	ctx := context.Background()
	if shoes > 0 {
		_, err := f.carts.AddItem(ctx, userID, carts.AddItemInput{ProductID: f.shoe.ID, Size: "9", Quantity: shoes})
		require.NoError(t, err)
	}
	if socks > 0 {
		_, err := f.carts.AddItem(ctx, userID, carts.AddItemInput{ProductID: f.sock.ID, Quantity: socks})
		require.NoError(t, err)
	}
}

func (f *fixture) stock(t *testing.T, p *products.Product) int {
	t.Helper()
	got, err := f.catalog.Get(context.Background(), p.ID)
	require.NoError(t, err)
	return got.Stock
}

func checkout(userID, method string) CheckoutInput {
	return CheckoutInput{
		UserID:        userID,
		CustomerName:  "Ada Runner",
		CustomerEmail: "ada@example.com",
		PaymentMethod: method,
		Shipping: ShippingAddress{
			FullName: "Ada Runner", Phone: "555-0100", Line1: "1 Track Rd",
			City: "Portland", PostalCode: "97201", Country: "US",
		},
	}
}

func TestCreateFromCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fill(t, "u1", 1, 1)

	o, err := f.orders.CreateFromCart(ctx, checkout("u1", PaymentCard))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(o.OrderNumber, "SS-"), o.OrderNumber)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, PaymentStatusPaid, o.PaymentStatus)
	assert.Equal(t, int64(9200), o.SubtotalCents)
	assert.Equal(t, int64(799), o.ShippingCents)
	assert.Equal(t, int64(9999), o.TotalCents)
	assert.Equal(t, 2, o.ItemCount())
	require.Len(t, o.History, 1)

	assert.Equal(t, 2, f.stock(t, f.shoe))
	assert.Equal(t, 9, f.stock(t, f.sock))

	view, err := f.carts.GetView(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, view.Empty())

	got, err := f.orders.Get(ctx, strings.ToLower(o.OrderNumber))
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
}

func TestFreeShippingThreshold(t *testing.T) {
	f := newFixture(t)
	f.fill(t, "u1", 2, 0)

	o, err := f.orders.CreateFromCart(context.Background(), checkout("u1", PaymentCashOnDelivery))
	require.NoError(t, err)
	assert.Equal(t, int64(0), o.ShippingCents)
	assert.Equal(t, int64(16000), o.TotalCents)
	assert.Equal(t, PaymentStatusPending, o.PaymentStatus)
}

func TestCreateFromCartRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.orders.CreateFromCart(ctx, checkout("u1", PaymentCard))
	assert.ErrorIs(t, err, ErrEmptyCart)

	f.fill(t, "u1", 1, 0)
	_, err = f.orders.CreateFromCart(ctx, checkout("u1", "bitcoin"))
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)
}

func TestCreateFromCartInsufficientStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fill(t, "u1", 3, 0)
	f.fill(t, "u2", 2, 0)

	_, err := f.orders.CreateFromCart(ctx, checkout("u1", PaymentCard))
	require.NoError(t, err)

	_, err = f.orders.CreateFromCart(ctx, checkout("u2", PaymentCard))
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 0, f.stock(t, f.shoe))

	view, err := f.carts.GetView(ctx, "u2")
	require.NoError(t, err)
	assert.False(t, view.Empty())
}

func TestFailedOrderWriteRestoresStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fill(t, "u1", 2, 3)

	f.backend.fail = Collection
	_, err := f.orders.CreateFromCart(ctx, checkout("u1", PaymentCard))
	require.Error(t, err)

	assert.Equal(t, 3, f.stock(t, f.shoe))
	assert.Equal(t, 10, f.stock(t, f.sock))
	view, err := f.carts.GetView(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, view.Items, 2)
}

func TestStatusFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fill(t, "u1", 1, 0)
	o, err := f.orders.CreateFromCart(ctx, checkout("u1", PaymentCashOnDelivery))
	require.NoError(t, err)

	_, err = f.orders.UpdateStatus(ctx, o.ID, StatusDelivered, "", "admin")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.orders.UpdateStatus(ctx, o.ID, "lost", "", "admin")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	for _, st := range []string{StatusProcessing, StatusShipped, StatusDelivered} {
		o, err = f.orders.UpdateStatus(ctx, o.ID, st, "", "admin")
		require.NoError(t, err)
		assert.Equal(t, st, o.Status)
	}
	assert.Equal(t, PaymentStatusPaid, o.PaymentStatus)
	assert.Len(t, o.History, 4)
	assert.NotNil(t, o.UpdatedAt)

	_, err = f.orders.UpdateStatus(ctx, o.ID, StatusCancelled, "", "admin")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.orders.UpdateStatus(ctx, "missing", StatusProcessing, "", "admin")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelRestocksAndRefunds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fill(t, "u1", 2, 1)
	o, err := f.orders.CreateFromCart(ctx, checkout("u1", PaymentPayPal))
	require.NoError(t, err)
	assert.Equal(t, 1, f.stock(t, f.shoe))

	_, err = f.orders.CancelForUser(ctx, "u2", o.ID, "not mine")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.catalog.Delete(ctx, f.sock.ID))
	cancelled, err := f.orders.CancelForUser(ctx, "u1", o.OrderNumber, " changed my mind ")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, "changed my mind", cancelled.CancelReason)
	assert.Equal(t, PaymentStatusRefunded, cancelled.PaymentStatus)
	assert.Equal(t, 3, f.stock(t, f.shoe))
}

func TestListingAndSummary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.fill(t, "u1", 1, 0)
	first, err := f.orders.CreateFromCart(ctx, checkout("u1", PaymentCard))
	require.NoError(t, err)
	f.fill(t, "u1", 0, 2)
	second, err := f.orders.CreateFromCart(ctx, checkout("u1", PaymentCard))
	require.NoError(t, err)
	f.fill(t, "u2", 0, 1)
	third, err := f.orders.CreateFromCart(ctx, checkout("u2", PaymentCard))
	require.NoError(t, err)
	_, err = f.orders.UpdateStatus(ctx, third.ID, StatusCancelled, "fraud", "admin")
	require.NoError(t, err)

	mine, total, err := f.orders.ListByUser(ctx, "u1", "", &params.Pagination{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID)
	assert.Equal(t, first.ID, mine[1].ID)

	_, err = f.orders.GetForUser(ctx, "u2", first.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	cancelled, total, err := f.orders.ListAll(ctx, StatusCancelled, &params.Pagination{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, third.ID, cancelled[0].ID)
	_, _, err = f.orders.ListAll(ctx, "bogus", &params.Pagination{Page: 1, Limit: 10})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	s, err := f.orders.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.ByStatus[StatusPending])
	assert.Equal(t, 1, s.ByStatus[StatusCancelled])
	assert.Equal(t, 0, s.ByStatus[StatusShipped])
	assert.Equal(t, first.TotalCents+second.TotalCents, s.RevenueCents)

	revenue, err := f.orders.Revenue(ctx)
	require.NoError(t, err)
	assert.Equal(t, s.RevenueCents, revenue)

	recent, err := f.orders.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, third.ID, recent[0].ID)
}

func TestOrderNumbersAreUnique(t *testing.T) {
	gen, err := NewOrderNumberGenerator("salt")
	require.NoError(t, err)
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		n, err := gen.Generate()
		require.NoError(t, err)
		assert.False(t, seen[n], n)
		seen[n] = true
	}
}

func TestConcurrentCheckoutOfOneCart(t *testing.T) {
	ctx := context.Background()

	for round := 0; round < 10; round++ {
		f := newFixture(t)
		f.fill(t, "u1", 1, 1)

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			created []*Order
			errs    []error
		)
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				o, err := f.orders.CreateFromCart(ctx, checkout("u1", PaymentCard))
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, err)
					return
				}
				created = append(created, o)
			}()
		}
		wg.Wait()

		require.Len(t, created, 1, "round %d", round)
		for _, err := range errs {
			assert.ErrorIs(t, err, ErrEmptyCart)
		}
		assert.Equal(t, 2, f.stock(t, f.shoe))
		assert.Equal(t, 9, f.stock(t, f.sock))

		all, total, err := f.orders.ListByUser(ctx, "u1", "", &params.Pagination{Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, created[0].ID, all[0].ID)
	}
}

func TestItemsAddedDuringFailedCheckoutAreKept(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fill(t, "u1", 1, 0)

	claim, err := f.carts.Claim(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, claim.View.Items, 1)

	f.fill(t, "u1", 0, 2)
	require.NoError(t, f.carts.Restore(ctx, claim))

	view, err := f.carts.GetView(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	assert.Equal(t, f.shoe.ID, view.Items[0].ProductID)
	assert.Equal(t, f.sock.ID, view.Items[1].ProductID)
}
