package alerts

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/profiteer/profiteer/internal/domain"
)

// Repository is the sqlite-backed domain.AlertStore.
type Repository struct {
	db *sql.DB
}

var _ domain.AlertStore = (*Repository)(nil)

// NewRepository creates an alert repository on an open database.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create stores a new active alert.
func (r *Repository) Create(ctx context.Context, itemID int64, alertType string, threshold float64) (domain.Alert, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO alerts (item_id, alert_type, threshold_value, is_active)
		VALUES (?, ?, ?, 1)`, itemID, alertType, threshold)
	if err != nil {
		return domain.Alert{}, fmt.Errorf("failed to create alert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Alert{}, fmt.Errorf("failed to read alert id: %w", err)
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT id, item_id, alert_type, threshold_value, is_active, last_triggered, created_at
		FROM alerts WHERE id = ?`, id)
	return scanAlert(row)
}

// Active returns all active alerts.
func (r *Repository) Active(ctx context.Context) ([]domain.Alert, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, item_id, alert_type, threshold_value, is_active, last_triggered, created_at
		FROM alerts
		WHERE is_active = 1
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active alerts: %w", err)
	}
	defer rows.Close()

	var alerts []domain.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// MarkTriggered records when an alert last fired.
func (r *Repository) MarkTriggered(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE alerts SET last_triggered = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark alert %d triggered: %w", id, err)
	}
	return nil
}

// Deactivate switches an alert off without deleting its firing history.
func (r *Repository) Deactivate(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE alerts SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate alert %d: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (domain.Alert, error) {
	var alert domain.Alert
	err := row.Scan(&alert.ID, &alert.ItemID, &alert.Type, &alert.Threshold, &alert.Active, &alert.LastTriggered, &alert.CreatedAt)
	if err != nil {
		return domain.Alert{}, fmt.Errorf("failed to scan alert: %w", err)
	}
	return alert, nil
}
