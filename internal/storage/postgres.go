package storage

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/example/pickup-dispatch/internal/models"
)

// PostgresStore implements OrderStore and DriverDirectory on lib/pq.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func NewPostgresStoreWithDB(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

func (p *PostgresStore) DB() *sql.DB { return p.db }

func (p *PostgresStore) Close() error { return p.db.Close() }

const orderColumns = `
	o.id, o.title, o.day::text, o.start_time, o.end_time, o.driver_id,
	pp.id, pp.latitude, pp.longitude,
	dp.id, dp.latitude, dp.longitude
FROM orders o
JOIN coordinates pp ON pp.id = o.pickup_point_id
JOIN coordinates dp ON dp.id = o.destination_point_id`

func (p *PostgresStore) OrdersForDriverOnDay(ctx context.Context, driverID int, day string) ([]models.Order, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT`+orderColumns+`
		WHERE o.driver_id = $1 AND o.day = $2::date
		ORDER BY o.start_time, o.id`, driverID, day)
	if err != nil {
		return nil, err
	}
	return scanOrders(rows)
}

func (p *PostgresStore) OrdersOnDay(ctx context.Context, day string) ([]models.Order, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT`+orderColumns+`
		WHERE o.day = $1::date
		ORDER BY o.start_time, o.id`, day)
	if err != nil {
		return nil, err
	}
	return scanOrders(rows)
}

func scanOrders(rows *sql.Rows) ([]models.Order, error) {
	defer rows.Close()
	var out []models.Order
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(
			&o.ID, &o.Title, &o.Day, &o.StartTime, &o.EndTime, &o.DriverID,
			&o.PickupPoint.ID, &o.PickupPoint.Latitude, &o.PickupPoint.Longitude,
			&o.DestinationPoint.ID, &o.DestinationPoint.Latitude, &o.DestinationPoint.Longitude,
		); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (p *PostgresStore) DriverByID(ctx context.Context, id int) (*models.Driver, error) {
	var d models.Driver
	err := p.db.QueryRowContext(ctx,
		`SELECT id, first_name, last_name FROM drivers WHERE id = $1`, id,
	).Scan(&d.ID, &d.FirstName, &d.LastName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (p *PostgresStore) DriversByIDs(ctx context.Context, ids []int) ([]models.Driver, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, first_name, last_name FROM drivers WHERE id = ANY($1) ORDER BY id`,
		pq.Array(ids))
	if err != nil {
		return nil, err
	}
	return scanDrivers(rows)
}

func (p *PostgresStore) ListDrivers(ctx context.Context) ([]models.Driver, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, first_name, last_name FROM drivers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return scanDrivers(rows)
}

func scanDrivers(rows *sql.Rows) ([]models.Driver, error) {
	defer rows.Close()
	var out []models.Driver
	for rows.Next() {
		var d models.Driver
		if err := rows.Scan(&d.ID, &d.FirstName, &d.LastName); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
