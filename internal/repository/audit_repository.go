package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"fitshare/internal/domain"
)

// AuditRepository — Postgres-хранилище журнала аудита.
// Записи только добавляются; единственное удаление — чистка по сроку.
type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

type auditRow struct {
	ID          uuid.UUID `db:"id"`
	ShareID     string    `db:"share_id"`
	Action      string    `db:"action"`
	PerformedBy string    `db:"performed_by"`
	Details     string    `db:"details"`
	Allowed     bool      `db:"allowed"`
	IPAddress   string    `db:"ip_address"`
	UserAgent   string    `db:"user_agent"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r auditRow) toDomain() domain.AuditEntry {
	return domain.AuditEntry{
		ID:          r.ID,
		ShareID:     r.ShareID,
		Action:      domain.AuditAction(r.Action),
		PerformedBy: r.PerformedBy,
		Details:     r.Details,
		Allowed:     r.Allowed,
		Timestamp:   r.CreatedAt,
		IPAddress:   r.IPAddress,
		UserAgent:   r.UserAgent,
	}
}

const auditColumns = `id, share_id, action, performed_by, details, allowed, ip_address, user_agent, created_at`

func (r *AuditRepository) Create(ctx context.Context, entry *domain.AuditEntry) error {
	query := `
        INSERT INTO share_audit (
            id, share_id, action, performed_by, details, allowed, ip_address, user_agent, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(
		ctx,
		query,
		entry.ID,
		entry.ShareID,
		entry.Action,
		entry.PerformedBy,
		entry.Details,
		entry.Allowed,
		entry.IPAddress,
		entry.UserAgent,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}
	return nil
}

func (r *AuditRepository) FindByShareID(ctx context.Context, shareID string) ([]domain.AuditEntry, error) {
	query := `SELECT ` + auditColumns + ` FROM share_audit WHERE share_id = $1 ORDER BY created_at DESC`
	return r.selectEntries(ctx, query, shareID)
}

func (r *AuditRepository) FindByUserID(ctx context.Context, userID string) ([]domain.AuditEntry, error) {
	query := `SELECT ` + auditColumns + ` FROM share_audit WHERE performed_by = $1 ORDER BY created_at DESC`
	return r.selectEntries(ctx, query, userID)
}

func (r *AuditRepository) FindByDateRange(ctx context.Context, from, to time.Time) ([]domain.AuditEntry, error) {
	query := `
        SELECT ` + auditColumns + `
        FROM share_audit
        WHERE created_at >= $1 AND created_at <= $2
        ORDER BY created_at DESC`
	return r.selectEntries(ctx, query, from, to)
}

func (r *AuditRepository) selectEntries(ctx context.Context, query string, args ...interface{}) ([]domain.AuditEntry, error) {
	var rows []auditRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select audit entries: %w", err)
	}

	entries := make([]domain.AuditEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.toDomain())
	}
	return entries, nil
}

func (r *AuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	query := `DELETE FROM share_audit WHERE created_at < $1`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old audit entries: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}
