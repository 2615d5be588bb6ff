package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"fitshare/internal/domain"
)

// ShareRepository — Postgres-хранилище грантов
type ShareRepository struct {
	db *sqlx.DB
}

func NewShareRepository(db *sqlx.DB) *ShareRepository {
	return &ShareRepository{db: db}
}

type shareRow struct {
	ID             uuid.UUID      `db:"id"`
	ResourceID     string         `db:"resource_id"`
	ResourceType   string         `db:"resource_type"`
	OwnerID        string         `db:"owner_id"`
	SharedWith     pq.StringArray `db:"shared_with"`
	AllowedActions pq.StringArray `db:"allowed_actions"`
	StartDate      time.Time      `db:"start_date"`
	EndDate        *time.Time     `db:"end_date"`
	Conditions     []byte         `db:"conditions"`
	Scope          string         `db:"scope"`
	Archived       bool           `db:"archived"`
	Notes          string         `db:"notes"`
	CreatedBy      string         `db:"created_by"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r shareRow) toDomain() (*domain.SharedResource, error) {
	var conditions []domain.ShareCondition
	if len(r.Conditions) > 0 {
		if err := json.Unmarshal(r.Conditions, &conditions); err != nil {
			return nil, fmt.Errorf("failed to decode share conditions: %w", err)
		}
	}

	actions := make([]domain.Action, len(r.AllowedActions))
	for i, a := range r.AllowedActions {
		actions[i] = domain.Action(a)
	}

	return &domain.SharedResource{
		ID:             r.ID,
		ResourceID:     r.ResourceID,
		ResourceType:   domain.ResourceType(r.ResourceType),
		OwnerID:        r.OwnerID,
		SharedWith:     []string(r.SharedWith),
		AllowedActions: actions,
		StartDate:      r.StartDate,
		EndDate:        r.EndDate,
		Conditions:     conditions,
		Scope:          domain.ShareScope(r.Scope),
		Archived:       r.Archived,
		Notes:          r.Notes,
		CreatedBy:      r.CreatedBy,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}, nil
}

func encodeConditions(conditions []domain.ShareCondition) ([]byte, error) {
	if len(conditions) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(conditions)
}

func actionsToStrings(actions []domain.Action) pq.StringArray {
	out := make(pq.StringArray, len(actions))
	for i, a := range actions {
		out[i] = string(a)
	}
	return out
}

const shareColumns = `
	id, resource_id, resource_type, owner_id, shared_with, allowed_actions,
	start_date, end_date, conditions, scope, archived, notes,
	created_by, created_at, updated_at`

func (r *ShareRepository) Create(ctx context.Context, share *domain.SharedResource) error {
	conditions, err := encodeConditions(share.Conditions)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO shares (
            id, resource_id, resource_type, owner_id, shared_with, allowed_actions,
            start_date, end_date, conditions, scope, archived, notes,
            created_by, created_at, updated_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
        )`

	_, err = r.db.ExecContext(
		ctx,
		query,
		share.ID,
		share.ResourceID,
		share.ResourceType,
		share.OwnerID,
		pq.StringArray(share.SharedWith),
		actionsToStrings(share.AllowedActions),
		share.StartDate,
		share.EndDate,
		conditions,
		share.Scope,
		share.Archived,
		share.Notes,
		share.CreatedBy,
		share.CreatedAt,
		share.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create share: %w", err)
	}
	return nil
}

func (r *ShareRepository) Update(ctx context.Context, share *domain.SharedResource) error {
	conditions, err := encodeConditions(share.Conditions)
	if err != nil {
		return err
	}

	query := `
        UPDATE shares SET
            shared_with = $2,
            allowed_actions = $3,
            end_date = $4,
            conditions = $5,
            archived = $6,
            notes = $7,
            updated_at = $8
        WHERE id = $1`

	result, err := r.db.ExecContext(
		ctx,
		query,
		share.ID,
		pq.StringArray(share.SharedWith),
		actionsToStrings(share.AllowedActions),
		share.EndDate,
		conditions,
		share.Archived,
		share.Notes,
		share.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update share: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("share not found")
	}
	return nil
}

func (r *ShareRepository) FindByID(ctx context.Context, shareID string) (*domain.SharedResource, error) {
	var row shareRow
	query := `SELECT` + shareColumns + ` FROM shares WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, shareID); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("share not found")
		}
		return nil, fmt.Errorf("failed to get share by id: %w", err)
	}
	return row.toDomain()
}

// FindByUserAndResource возвращает действующий грант, через который
// пользователь имеет отношение к ресурсу (как владелец или получатель).
// Если гранта нет, возвращает nil без ошибки.
func (r *ShareRepository) FindByUserAndResource(ctx context.Context, userID, resourceID string) (*domain.SharedResource, error) {
	var row shareRow
	query := `
        SELECT` + shareColumns + `
        FROM shares
        WHERE resource_id = $1
        AND archived = FALSE
        AND (owner_id = $2 OR $2 = ANY(shared_with))
        ORDER BY created_at DESC
        LIMIT 1`

	err := r.db.GetContext(ctx, &row, query, resourceID, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get share by user and resource: %w", err)
	}
	return row.toDomain()
}

func (r *ShareRepository) FindByOwnerID(ctx context.Context, ownerID string) ([]domain.SharedResource, error) {
	query := `SELECT` + shareColumns + ` FROM shares WHERE owner_id = $1 ORDER BY created_at DESC`
	return r.selectShares(ctx, query, ownerID)
}

func (r *ShareRepository) FindBySharedUserID(ctx context.Context, userID string) ([]domain.SharedResource, error) {
	query := `SELECT` + shareColumns + ` FROM shares WHERE $1 = ANY(shared_with) ORDER BY created_at DESC`
	return r.selectShares(ctx, query, userID)
}

func (r *ShareRepository) FindByResourceID(ctx context.Context, resourceID string) ([]domain.SharedResource, error) {
	query := `SELECT` + shareColumns + ` FROM shares WHERE resource_id = $1 ORDER BY created_at DESC`
	return r.selectShares(ctx, query, resourceID)
}

func (r *ShareRepository) selectShares(ctx context.Context, query string, args ...interface{}) ([]domain.SharedResource, error) {
	var rows []shareRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select shares: %w", err)
	}

	shares := make([]domain.SharedResource, 0, len(rows))
	for _, row := range rows {
		share, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		shares = append(shares, *share)
	}
	return shares, nil
}

func (r *ShareRepository) Archive(ctx context.Context, shareID string) (bool, error) {
	query := `
        UPDATE shares
        SET archived = TRUE, updated_at = CURRENT_TIMESTAMP
        WHERE id = $1 AND archived = FALSE`

	result, err := r.db.ExecContext(ctx, query, shareID)
	if err != nil {
		return false, fmt.Errorf("failed to archive share: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// BulkArchiveExpired архивирует все гранты с наступившей датой
// окончания и возвращает их количество
func (r *ShareRepository) BulkArchiveExpired(ctx context.Context) (int, error) {
	query := `
        UPDATE shares
        SET archived = TRUE, updated_at = CURRENT_TIMESTAMP
        WHERE archived = FALSE
        AND end_date IS NOT NULL
        AND end_date <= CURRENT_TIMESTAMP`

	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to archive expired shares: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}
