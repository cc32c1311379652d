package history

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/order-dispatch/internal/models"
)

// PostgresRecorder appends history rows to order_status_history. Rows carry
// no primary-key updates: INSERT is the only statement this type ever runs.
type PostgresRecorder struct {
	db *sql.DB
}

func NewPostgresRecorder(db *sql.DB) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

func (p *PostgresRecorder) Append(ctx context.Context, e models.StatusHistoryEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO order_status_history(order_id, status, actor, reason, event, created_at)
		 VALUES($1,$2,$3,NULLIF($4,''),NULLIF($5,''),$6)`,
		e.OrderID, e.Status, e.Actor, e.Reason, string(e.Event), e.At)
	return err
}

// ForOrder reads back an order's trail in creation order.
func (p *PostgresRecorder) ForOrder(ctx context.Context, orderID string) ([]models.StatusHistoryEntry, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT order_id, status, actor, COALESCE(reason,''), COALESCE(event,''), created_at
		 FROM order_status_history WHERE order_id=$1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.StatusHistoryEntry
	for rows.Next() {
		var e models.StatusHistoryEntry
		var event string
		if err := rows.Scan(&e.OrderID, &e.Status, &e.Actor, &e.Reason, &event, &e.At); err != nil {
			return nil, err
		}
		e.Event = models.HistoryEvent(event)
		out = append(out, e)
	}
	return out, rows.Err()
}
