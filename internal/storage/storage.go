// Package storage persists orders and driver records. The resolution
// pipeline only ever reads from it; writes happen through migrations and the
// seeder.
package storage

import (
	"context"

	"github.com/example/pickup-dispatch/internal/models"
)

// OrderStore exposes the order queries the pipeline and API need.
type OrderStore interface {
	// OrdersForDriverOnDay returns a driver's orders for one day, ordered by
	// start time (id breaks ties).
	OrdersForDriverOnDay(ctx context.Context, driverID int, day string) ([]models.Order, error)
	// OrdersOnDay returns every order for one day, ordered by start time.
	OrdersOnDay(ctx context.Context, day string) ([]models.Order, error)
}

// DriverDirectory resolves driver identity records.
type DriverDirectory interface {
	// DriverByID returns (nil, nil) when no such driver exists.
	DriverByID(ctx context.Context, id int) (*models.Driver, error)
	// DriversByIDs returns the drivers that exist among ids, ordered by id.
	DriversByIDs(ctx context.Context, ids []int) ([]models.Driver, error)
	ListDrivers(ctx context.Context) ([]models.Driver, error)
}
