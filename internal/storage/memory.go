package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/example/pickup-dispatch/internal/models"
)

// MemoryStore backs both OrderStore and DriverDirectory without a database.
// Used when PG_DSN is unset and throughout the tests.
type MemoryStore struct {
	mu           sync.RWMutex
	drivers      map[int]models.Driver
	orders       map[int]models.Order
	nextDriverID int
	nextOrderID  int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		drivers:      make(map[int]models.Driver),
		orders:       make(map[int]models.Order),
		nextDriverID: 1,
		nextOrderID:  1,
	}
}

func (m *MemoryStore) AddDriver(d models.Driver) models.Driver {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == 0 {
		d.ID = m.nextDriverID
		m.nextDriverID++
	} else if d.ID >= m.nextDriverID {
		m.nextDriverID = d.ID + 1
	}
	m.drivers[d.ID] = d
	return d
}

func (m *MemoryStore) RemoveDriver(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drivers, id)
}

func (m *MemoryStore) AddOrder(o models.Order) models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == 0 {
		o.ID = m.nextOrderID
		m.nextOrderID++
	} else if o.ID >= m.nextOrderID {
		m.nextOrderID = o.ID + 1
	}
	m.orders[o.ID] = o
	return o
}

func (m *MemoryStore) OrdersForDriverOnDay(ctx context.Context, driverID int, day string) ([]models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Order
	for _, o := range m.orders {
		if o.DriverID == driverID && o.Day == day {
			out = append(out, o)
		}
	}
	sortOrders(out)
	return out, nil
}

func (m *MemoryStore) OrdersOnDay(ctx context.Context, day string) ([]models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Order
	for _, o := range m.orders {
		if o.Day == day {
			out = append(out, o)
		}
	}
	sortOrders(out)
	return out, nil
}

func (m *MemoryStore) DriverByID(ctx context.Context, id int) (*models.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drivers[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (m *MemoryStore) DriversByIDs(ctx context.Context, ids []int) ([]models.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Driver, 0, len(ids))
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if d, ok := m.drivers[id]; ok {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) ListDrivers(ctx context.Context) ([]models.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Driver, 0, len(m.drivers))
	for _, d := range m.drivers {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func sortOrders(orders []models.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].StartTime != orders[j].StartTime {
			return orders[i].StartTime < orders[j].StartTime
		}
		return orders[i].ID < orders[j].ID
	})
}
