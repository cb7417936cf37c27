package checkout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pechdavin/go-shop-backend/internal/cart"
	"github.com/pechdavin/go-shop-backend/internal/inventory"
	"github.com/pechdavin/go-shop-backend/internal/orders"
)

// fakeCarts mimics the pgx store: every read returns a fresh copy, writes only
// become visible through Save.
type fakeCarts struct {
	mu      sync.Mutex
	byID    map[string]*cart.Cart
	saveErr error
}

func newFakeCarts() *fakeCarts {
	return &fakeCarts{byID: make(map[string]*cart.Cart)}
}

func (f *fakeCarts) put(c *cart.Cart) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[c.ID] = cloneCart(c)
}

func (f *fakeCarts) FindByID(_ context.Context, id string) (*cart.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.byID[id]; ok {
		return cloneCart(c), nil
	}
	return nil, cart.ErrNotFound
}

func (f *fakeCarts) FindByUser(_ context.Context, userID string) (*cart.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.byID {
		if c.UserID == userID {
			return cloneCart(c), nil
		}
	}
	return nil, cart.ErrNotFound
}

func (f *fakeCarts) Save(_ context.Context, c *cart.Cart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.byID[c.ID] = cloneCart(c)
	return nil
}

func cloneCart(c *cart.Cart) *cart.Cart {
	cp := *c
	cp.Items = make([]cart.Item, len(c.Items))
	copy(cp.Items, c.Items)
	return &cp
}

type fakeLedger struct {
	mu    sync.Mutex
	stock map[string]int
	names map[string]string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{stock: make(map[string]int), names: make(map[string]string)}
}

func (f *fakeLedger) set(productID, name string, stock int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stock[productID] = stock
	f.names[productID] = name
}

func (f *fakeLedger) get(productID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stock[productID]
}

func (f *fakeLedger) Reserve(_ context.Context, productID string, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if qty < 1 {
		return inventory.ErrInvalidQuantity
	}
	s, ok := f.stock[productID]
	if !ok {
		return inventory.ErrNotFound
	}
	if s < qty {
		return &inventory.InsufficientStockError{
			ProductID: productID, Name: f.names[productID], Requested: qty, Available: s,
		}
	}
	f.stock[productID] = s - qty
	return nil
}

func (f *fakeLedger) Restore(_ context.Context, productID string, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stock[productID] += qty
	return nil
}

type fakeOrders struct {
	mu        sync.Mutex
	saved     []*orders.Order
	insertErr error
}

func (f *fakeOrders) Insert(_ context.Context, o *orders.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.saved = append(f.saved, o)
	return nil
}

func (f *fakeOrders) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func newService(carts *fakeCarts, ledger *fakeLedger, ords *fakeOrders) *Service {
	return &Service{Carts: carts, Ledger: ledger, Orders: ords, AllowCartIDCheckout: true}
}

func userCart(userID string, items ...cart.Item) *cart.Cart {
	now := time.Now().UTC()
	return &cart.Cart{ID: "cart-" + userID, UserID: userID, Items: items, CreatedAt: now, UpdatedAt: now}
}

func TestCreateOrder_Success(t *testing.T) {
	carts := newFakeCarts()
	carts.put(userCart("alice", cart.Item{ProductID: "P1", Name: "Mug", Price: 10.0, Quantity: 2}))
	ledger := newFakeLedger()
	ledger.set("P1", "Mug", 5)
	ords := &fakeOrders{}
	svc := newService(carts, ledger, ords)

	o, err := svc.CreateOrder(context.Background(), Request{UserID: "alice"})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	if o.Total != 20.0 {
		t.Errorf("expected total 20.0, got %v", o.Total)
	}
	if got := ledger.get("P1"); got != 3 {
		t.Errorf("expected stock 3, got %d", got)
	}
	if ords.count() != 1 {
		t.Errorf("expected 1 persisted order, got %d", ords.count())
	}
	if o.UserID != "alice" {
		t.Errorf("expected owner alice, got %q", o.UserID)
	}
	if o.Status != orders.StatusPending {
		t.Errorf("expected default status PENDING, got %s", o.Status)
	}

	after, err := carts.FindByUser(context.Background(), "alice")
	if err != nil {
		t.Fatalf("cart lookup after checkout: %v", err)
	}
	if !after.Empty() {
		t.Errorf("expected cart to be emptied, got %d items", len(after.Items))
	}
}

func TestCreateOrder_EmptyCart(t *testing.T) {
	carts := newFakeCarts()
	carts.put(userCart("alice"))
	ledger := newFakeLedger()
	ledger.set("P1", "Mug", 5)
	ords := &fakeOrders{}
	svc := newService(carts, ledger, ords)

	_, err := svc.CreateOrder(context.Background(), Request{UserID: "alice"})
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
	if got := ledger.get("P1"); got != 5 {
		t.Errorf("stock mutated on empty cart: %d", got)
	}
	if ords.count() != 0 {
		t.Errorf("order created for empty cart")
	}
}

func TestCreateOrder_CartNotFound(t *testing.T) {
	svc := newService(newFakeCarts(), newFakeLedger(), &fakeOrders{})

	_, err := svc.CreateOrder(context.Background(), Request{UserID: "nobody"})
	if !errors.Is(err, cart.ErrNotFound) {
		t.Fatalf("expected cart.ErrNotFound, got %v", err)
	}
}

func TestCreateOrder_Unauthenticated(t *testing.T) {
	carts := newFakeCarts()
	carts.put(userCart("alice", cart.Item{ProductID: "P1", Quantity: 1}))
	svc := newService(carts, newFakeLedger(), &fakeOrders{})

	_, err := svc.CreateOrder(context.Background(), Request{})
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestCreateOrder_GuestCheckoutPolicy(t *testing.T) {
	carts := newFakeCarts()
	c := userCart("alice", cart.Item{ProductID: "P1", Name: "Mug", Price: 4.0, Quantity: 1})
	carts.put(c)
	ledger := newFakeLedger()
	ledger.set("P1", "Mug", 1)
	ords := &fakeOrders{}

	// policy off: a cart id alone is not enough
	svc := newService(carts, ledger, ords)
	svc.AllowCartIDCheckout = false
	if _, err := svc.CreateOrder(context.Background(), Request{CartID: c.ID}); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated with policy off, got %v", err)
	}

	// policy on: guest checkout against the explicit cart id succeeds
	svc.AllowCartIDCheckout = true
	o, err := svc.CreateOrder(context.Background(), Request{CartID: c.ID})
	if err != nil {
		t.Fatalf("guest checkout failed: %v", err)
	}
	if o.UserID != "" {
		t.Errorf("guest order should have no owner, got %q", o.UserID)
	}
}

func TestCreateOrder_ExplicitCartIDWins(t *testing.T) {
	carts := newFakeCarts()
	carts.put(userCart("alice", cart.Item{ProductID: "P1", Name: "Mug", Price: 1.0, Quantity: 1}))
	other := userCart("bob", cart.Item{ProductID: "P2", Name: "Pen", Price: 2.0, Quantity: 1})
	carts.put(other)
	ledger := newFakeLedger()
	ledger.set("P1", "Mug", 10)
	ledger.set("P2", "Pen", 10)
	svc := newService(carts, ledger, &fakeOrders{})

	o, err := svc.CreateOrder(context.Background(), Request{UserID: "alice", CartID: other.ID})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if len(o.Items) != 1 || o.Items[0].ProductID != "P2" {
		t.Errorf("expected order from explicit cart, got %+v", o.Items)
	}
}

func TestCreateOrder_InvalidCartIDFallsBackToIdentity(t *testing.T) {
	carts := newFakeCarts()
	carts.put(userCart("alice", cart.Item{ProductID: "P1", Name: "Mug", Price: 1.0, Quantity: 1}))
	ledger := newFakeLedger()
	ledger.set("P1", "Mug", 10)
	svc := newService(carts, ledger, &fakeOrders{})

	o, err := svc.CreateOrder(context.Background(), Request{UserID: "alice", CartID: "missing"})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if len(o.Items) != 1 || o.Items[0].ProductID != "P1" {
		t.Errorf("expected fall back to identity cart, got %+v", o.Items)
	}
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	carts := newFakeCarts()
	carts.put(userCart("alice", cart.Item{ProductID: "P2", Name: "Pen", Quantity: 10}))
	ledger := newFakeLedger()
	ledger.set("P2", "Pen", 2)
	ords := &fakeOrders{}
	svc := newService(carts, ledger, ords)

	_, err := svc.CreateOrder(context.Background(), Request{UserID: "alice"})
	var shortage *inventory.InsufficientStockError
	if !errors.As(err, &shortage) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if shortage.Name != "Pen" {
		t.Errorf("expected offending product name, got %q", shortage.Name)
	}
	if got := ledger.get("P2"); got != 2 {
		t.Errorf("stock changed on failed checkout: %d", got)
	}
	if ords.count() != 0 {
		t.Errorf("order created despite shortage")
	}

	after, _ := carts.FindByUser(context.Background(), "alice")
	if len(after.Items) != 1 {
		t.Errorf("cart mutated on failed checkout")
	}
}

func TestCreateOrder_ProductNotFound(t *testing.T) {
	carts := newFakeCarts()
	carts.put(userCart("alice", cart.Item{ProductID: "ghost", Quantity: 1}))
	svc := newService(carts, newFakeLedger(), &fakeOrders{})

	_, err := svc.CreateOrder(context.Background(), Request{UserID: "alice"})
	if !errors.Is(err, inventory.ErrNotFound) {
		t.Fatalf("expected inventory.ErrNotFound, got %v", err)
	}
}

// A cart line with a negative quantity must never reach the ledger as a
// decrement: that would add stock and produce a negative order total.
func TestCreateOrder_NegativeQuantityLine(t *testing.T) {
	carts := newFakeCarts()
	carts.put(userCart("alice", cart.Item{ProductID: "P1", Name: "Mug", Price: 10, Quantity: -3}))
	ledger := newFakeLedger()
	ledger.set("P1", "Mug", 5)
	ords := &fakeOrders{}
	svc := newService(carts, ledger, ords)

	_, err := svc.CreateOrder(context.Background(), Request{UserID: "alice"})
	if !errors.Is(err, inventory.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if got := ledger.get("P1"); got != 5 {
		t.Errorf("expected stock unchanged at 5, got %d", got)
	}
	if ords.count() != 0 {
		t.Errorf("order created from invalid cart line")
	}
}

func TestCreateOrder_PartialShortageRestoresEarlierItems(t *testing.T) {
	carts := newFakeCarts()
	carts.put(userCart("alice",
		cart.Item{ProductID: "A", Name: "Cap", Price: 5, Quantity: 1},
		cart.Item{ProductID: "B", Name: "Bag", Price: 9, Quantity: 10},
	))
	ledger := newFakeLedger()
	ledger.set("A", "Cap", 5)
	ledger.set("B", "Bag", 2)
	ords := &fakeOrders{}
	svc := newService(carts, ledger, ords)

	_, err := svc.CreateOrder(context.Background(), Request{UserID: "alice"})
	var shortage *inventory.InsufficientStockError
	if !errors.As(err, &shortage) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if got := ledger.get("A"); got != 5 {
		t.Errorf("expected product A restored to 5, got %d", got)
	}
	if got := ledger.get("B"); got != 2 {
		t.Errorf("expected product B unchanged at 2, got %d", got)
	}
	if ords.count() != 0 {
		t.Errorf("order created despite partial shortage")
	}
}

func TestCreateOrder_PersistFailureRestoresStock(t *testing.T) {
	carts := newFakeCarts()
	carts.put(userCart("alice", cart.Item{ProductID: "P1", Name: "Mug", Price: 10, Quantity: 2}))
	ledger := newFakeLedger()
	ledger.set("P1", "Mug", 5)
	ords := &fakeOrders{insertErr: errors.New("db down")}
	svc := newService(carts, ledger, ords)

	_, err := svc.CreateOrder(context.Background(), Request{UserID: "alice"})
	if err == nil {
		t.Fatal("expected error when order persistence fails")
	}
	if got := ledger.get("P1"); got != 5 {
		t.Errorf("expected stock restored to 5, got %d", got)
	}

	after, _ := carts.FindByUser(context.Background(), "alice")
	if after.Empty() {
		t.Errorf("cart cleared despite failed checkout")
	}
}

func TestCreateOrder_ConcurrentLastUnit(t *testing.T) {
	carts := newFakeCarts()
	carts.put(userCart("alice", cart.Item{ProductID: "P1", Name: "Mug", Price: 99, Quantity: 1}))
	carts.put(userCart("bob", cart.Item{ProductID: "P1", Name: "Mug", Price: 99, Quantity: 1}))
	ledger := newFakeLedger()
	ledger.set("P1", "Mug", 1)
	ords := &fakeOrders{}
	svc := newService(carts, ledger, ords)

	var success atomic.Int32
	var wg sync.WaitGroup
	for _, user := range []string{"alice", "bob"} {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			if _, err := svc.CreateOrder(context.Background(), Request{UserID: u}); err == nil {
				success.Add(1)
			}
		}(user)
	}
	wg.Wait()

	if success.Load() != 1 {
		t.Errorf("expected exactly 1 successful checkout, got %d", success.Load())
	}
	if got := ledger.get("P1"); got != 0 {
		t.Errorf("expected stock 0, got %d", got)
	}
	if ords.count() != 1 {
		t.Errorf("expected 1 order, got %d", ords.count())
	}
}
