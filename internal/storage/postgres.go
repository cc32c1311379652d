package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/order-dispatch/internal/models"
)

// PostgresStore persists orders in Postgres. Database state is the single
// source of truth once multiple connections race to accept the same order:
// AcceptOrder and ReleaseOrder serialize on a row lock.
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

func (p *PostgresStore) DB() *sql.DB { return p.db }

func (p *PostgresStore) CreateOrder(ctx context.Context, o *models.Order) error {
	stops, err := json.Marshal(o.Stops)
	if err != nil {
		return fmt.Errorf("marshal stops: %w", err)
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO orders(id, status, vehicle_class, pickup_lat, pickup_lon, scheduled_pickup_at, assigned_driver_id, stops, created_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		o.ID, o.Status, o.VehicleClass, o.Pickup.Lat, o.Pickup.Lon, o.ScheduledPickupAt, o.AssignedDriverID, stops, o.CreatedAt)
	return err
}

func (p *PostgresStore) GetOrder(ctx context.Context, id string) (models.Order, error) {
	return scanOrder(p.db.QueryRowContext(ctx, selectOrder+` WHERE id=$1`, id))
}

func (p *PostgresStore) AcceptOrder(ctx context.Context, orderID, driverID string) (models.Order, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Order{}, err
	}
	defer tx.Rollback()

	var status models.OrderStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, orderID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Order{}, ErrOrderNotFound
	}
	if err != nil {
		return models.Order{}, err
	}
	if status != models.StatusPending {
		return models.Order{}, ErrOrderAlreadyTaken
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET status=$1, assigned_driver_id=$2 WHERE id=$3`,
		models.StatusAssigned, driverID, orderID); err != nil {
		return models.Order{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Order{}, err
	}
	return p.GetOrder(ctx, orderID)
}

func (p *PostgresStore) ReleaseOrder(ctx context.Context, orderID string) (models.Order, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Order{}, err
	}
	defer tx.Rollback()

	var status models.OrderStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, orderID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Order{}, ErrOrderNotFound
	}
	if err != nil {
		return models.Order{}, err
	}
	if status != models.StatusAssigned {
		return models.Order{}, ErrInvalidTransition
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET status=$1, assigned_driver_id=NULL WHERE id=$2`,
		models.StatusPending, orderID); err != nil {
		return models.Order{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Order{}, err
	}
	return p.GetOrder(ctx, orderID)
}

func (p *PostgresStore) SetStatus(ctx context.Context, orderID string, next models.OrderStatus) (models.Order, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Order{}, err
	}
	defer tx.Rollback()

	var status models.OrderStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, orderID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Order{}, ErrOrderNotFound
	}
	if err != nil {
		return models.Order{}, err
	}
	if !status.CanTransition(next) {
		return models.Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, status, next)
	}
	query := `UPDATE orders SET status=$1 WHERE id=$2`
	if next == models.StatusPending {
		query = `UPDATE orders SET status=$1, assigned_driver_id=NULL WHERE id=$2`
	}
	if _, err := tx.ExecContext(ctx, query, next, orderID); err != nil {
		return models.Order{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Order{}, err
	}
	return p.GetOrder(ctx, orderID)
}

func (p *PostgresStore) PendingWithFuturePickup(ctx context.Context, now time.Time) ([]models.Order, error) {
	rows, err := p.db.QueryContext(ctx, selectOrder+` WHERE status=$1 AND scheduled_pickup_at > $2`, models.StatusPending, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (p *PostgresStore) GetDriver(ctx context.Context, id string) (models.Driver, error) {
	var d models.Driver
	err := p.db.QueryRowContext(ctx,
		`SELECT id, vehicle_class, approved, created_at FROM drivers WHERE id=$1`, id).
		Scan(&d.ID, &d.VehicleClass, &d.Approved, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Driver{}, ErrDriverNotFound
	}
	if err != nil {
		return models.Driver{}, err
	}
	return d, nil
}

const selectOrder = `SELECT id, status, vehicle_class, pickup_lat, pickup_lon, scheduled_pickup_at, assigned_driver_id, stops, created_at FROM orders`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (models.Order, error) {
	var (
		o     models.Order
		drv   sql.NullString
		stops []byte
	)
	err := row.Scan(&o.ID, &o.Status, &o.VehicleClass, &o.Pickup.Lat, &o.Pickup.Lon, &o.ScheduledPickupAt, &drv, &stops, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Order{}, ErrOrderNotFound
	}
	if err != nil {
		return models.Order{}, err
	}
	if drv.Valid {
		o.AssignedDriverID = &drv.String
	}
	if len(stops) > 0 {
		if err := json.Unmarshal(stops, &o.Stops); err != nil {
			return models.Order{}, fmt.Errorf("unmarshal stops: %w", err)
		}
	}
	return o, nil
}
