package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dukerupert/cloudmerce/internal/cache"
	"github.com/dukerupert/cloudmerce/internal/domain"
	"github.com/dukerupert/cloudmerce/internal/events"
)

// mockCartRepo is an in-memory domain.CartRepository. The Func fields
// override the default behaviour when set.
type mockCartRepo struct {
	FindByIDFunc func(ctx context.Context, ecommerceID, cartID string) (*domain.Cart, error)
	UpdateFunc   func(ctx context.Context, cart *domain.Cart) error
	DeleteFunc   func(ctx context.Context, ecommerceID, cartID string) error

	mu      sync.Mutex
	carts   map[string]domain.Cart
	nextID  int
	CallLog []string
}

func newMockCartRepo(carts ...*domain.Cart) *mockCartRepo {
	m := &mockCartRepo{carts: make(map[string]domain.Cart)}
	for _, c := range carts {
		m.carts[c.ID] = cloneCart(*c)
	}
	return m
}

func (m *mockCartRepo) log(format string, args ...any) {
	m.CallLog = append(m.CallLog, fmt.Sprintf(format, args...))
}

func (m *mockCartRepo) FindByID(ctx context.Context, ecommerceID, cartID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log("FindByID(%s)", cartID)

	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, ecommerceID, cartID)
	}
	c, ok := m.carts[cartID]
	if !ok || c.EcommerceID != ecommerceID {
		return nil, domain.NotFound("mock.cart.find", "cart", cartID)
	}
	cp := cloneCart(c)
	return &cp, nil
}

func (m *mockCartRepo) Create(ctx context.Context, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	cart.ID = fmt.Sprintf("cart-%d", m.nextID)
	m.log("Create(%s)", cart.ID)
	m.carts[cart.ID] = stripProducts(cloneCart(*cart))
	return nil
}

func (m *mockCartRepo) Update(ctx context.Context, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log("Update(%s)", cart.ID)

	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, cart)
	}
	if _, ok := m.carts[cart.ID]; !ok {
		return domain.NotFound("mock.cart.update", "cart", cart.ID)
	}
	m.carts[cart.ID] = stripProducts(cloneCart(*cart))
	return nil
}

func (m *mockCartRepo) Delete(ctx context.Context, ecommerceID, cartID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log("Delete(%s)", cartID)

	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, ecommerceID, cartID)
	}
	c, ok := m.carts[cartID]
	if !ok || c.EcommerceID != ecommerceID {
		return domain.NotFound("mock.cart.delete", "cart", cartID)
	}
	delete(m.carts, cartID)
	return nil
}

// stored returns the persisted cart, or nil.
func (m *mockCartRepo) stored(cartID string) *domain.Cart {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[cartID]
	if !ok {
		return nil
	}
	cp := cloneCart(c)
	return &cp
}

func (m *mockCartRepo) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.CallLog...)
}

func cloneCart(c domain.Cart) domain.Cart {
	c.Items = append([]domain.LineItem(nil), c.Items...)
	for i := range c.Items {
		c.Items[i].FieldValues = append([]domain.FieldSelection(nil), c.Items[i].FieldValues...)
	}
	return c
}

func stripProducts(c domain.Cart) domain.Cart {
	for i := range c.Items {
		c.Items[i].Product = nil
	}
	return c
}

// mockProductRepo serves a fixed product set.
type mockProductRepo struct {
	FindByIDsFunc func(ctx context.Context, ids []string) (map[string]*domain.Product, error)

	products map[string]*domain.Product
}

func newMockProductRepo(products ...*domain.Product) *mockProductRepo {
	m := &mockProductRepo{products: make(map[string]*domain.Product)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

// put replaces a catalog entry, as an admin edit would.
func (m *mockProductRepo) put(p *domain.Product) {
	m.products[p.ID] = p
}

func (m *mockProductRepo) remove(productID string) {
	delete(m.products, productID)
}

func (m *mockProductRepo) FindByID(ctx context.Context, productID string) (*domain.Product, error) {
	p, ok := m.products[productID]
	if !ok {
		return nil, domain.NotFound("mock.product.find", "product", productID)
	}
	return p, nil
}

func (m *mockProductRepo) FindByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	if m.FindByIDsFunc != nil {
		return m.FindByIDsFunc(ctx, ids)
	}
	out := make(map[string]*domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

// mockUserRepo serves a fixed user set.
type mockUserRepo struct {
	users map[string]*domain.User
}

func newMockUserRepo(users ...*domain.User) *mockUserRepo {
	m := &mockUserRepo{users: make(map[string]*domain.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserRepo) FindByID(ctx context.Context, userID string) (*domain.User, error) {
	u, ok := m.users[userID]
	if !ok {
		return nil, domain.NotFound("mock.user.find", "user", userID)
	}
	return u, nil
}

// mockOrderRepo is an in-memory domain.OrderRepository.
type mockOrderRepo struct {
	CreateFunc func(ctx context.Context, order *domain.Order) error
	UpdateFunc func(ctx context.Context, order *domain.Order) error

	mu      sync.Mutex
	orders  map[string]domain.Order
	nextID  int
	CallLog []string
}

func newMockOrderRepo(orders ...*domain.Order) *mockOrderRepo {
	m := &mockOrderRepo{orders: make(map[string]domain.Order)}
	for _, o := range orders {
		m.orders[o.ID] = *o
	}
	return m
}

func (m *mockOrderRepo) log(format string, args ...any) {
	m.CallLog = append(m.CallLog, fmt.Sprintf(format, args...))
}

func (m *mockOrderRepo) FindByID(ctx context.Context, ecommerceID, orderID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log("FindByID(%s)", orderID)

	o, ok := m.orders[orderID]
	if !ok || o.EcommerceID != ecommerceID {
		return nil, domain.NotFound("mock.order.find", "order", orderID)
	}
	o.Items = copyOrderItems(o.Items)
	return &o, nil
}

func (m *mockOrderRepo) FindByUser(ctx context.Context, ecommerceID, userID string) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log("FindByUser(%s)", userID)

	var out []domain.Order
	for _, o := range m.orders {
		if o.EcommerceID == ecommerceID && o.UserID == userID {
			o.Items = copyOrderItems(o.Items)
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockOrderRepo) FindByStatus(ctx context.Context, status domain.OrderStatus, limit int) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log("FindByStatus(%s)", status)

	var out []domain.Order
	for _, o := range m.orders {
		if o.Status == status {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockOrderRepo) Create(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateFunc != nil {
		m.log("Create")
		return m.CreateFunc(ctx, order)
	}
	m.nextID++
	order.ID = fmt.Sprintf("order-%d", m.nextID)
	m.log("Create(%s)", order.ID)
	stored := *order
	stored.Items = copyOrderItems(order.Items)
	m.orders[order.ID] = stored
	return nil
}

func (m *mockOrderRepo) Update(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log("Update(%s)", order.ID)

	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, order)
	}
	stored, ok := m.orders[order.ID]
	if !ok {
		return domain.NotFound("mock.order.update", "order", order.ID)
	}
	stored.Status = order.Status
	stored.Payment = order.Payment
	stored.UpdatedAt = order.UpdatedAt
	m.orders[order.ID] = stored
	return nil
}

func (m *mockOrderRepo) UpdateStatusIf(ctx context.Context, order *domain.Order, from domain.OrderStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log("UpdateStatusIf(%s)", order.ID)

	stored, ok := m.orders[order.ID]
	if !ok || stored.EcommerceID != order.EcommerceID || stored.Status != from {
		return false, nil
	}
	stored.Status = order.Status
	stored.UpdatedAt = order.UpdatedAt
	m.orders[order.ID] = stored
	return true, nil
}

// copyOrderItems copies items and their product snapshots the way a store
// serializes them, so later catalog changes cannot leak in through pointers.
func copyOrderItems(items []domain.LineItem) []domain.LineItem {
	out := make([]domain.LineItem, len(items))
	for i, li := range items {
		if li.Product != nil {
			p := *li.Product
			li.Product = &p
		}
		out[i] = li
	}
	return out
}

func (m *mockOrderRepo) stored(orderID string) *domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil
	}
	return &o
}

func (m *mockOrderRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *mockOrderRepo) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.CallLog...)
}

// recordingPublisher keeps published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// recordingCache records cart cache evictions.
type recordingCache struct {
	mu      sync.Mutex
	entries map[string]*domain.Cart
	deleted []string
}

func newRecordingCache() *recordingCache {
	return &recordingCache{entries: make(map[string]*domain.Cart)}
}

func (c *recordingCache) Get(ctx context.Context, ecommerceID, cartID string) (*domain.Cart, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cart, ok := c.entries[ecommerceID+":"+cartID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	cp := cloneCart(*cart)
	return &cp, nil
}

func (c *recordingCache) Set(ctx context.Context, cart *domain.Cart) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := cloneCart(*cart)
	c.entries[cart.EcommerceID+":"+cart.ID] = &cp
	return nil
}

func (c *recordingCache) Delete(ctx context.Context, ecommerceID, cartID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := ecommerceID + ":" + cartID
	delete(c.entries, key)
	c.deleted = append(c.deleted, key)
	return nil
}

func (c *recordingCache) has(ecommerceID, cartID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[ecommerceID+":"+cartID]
	return ok
}
