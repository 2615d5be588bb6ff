package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"fitshare/internal/domain"
)

// UserRepository — read-модель пользователей для движка шаринга:
// роль, организация и статус синхронизируются из identity-сервиса
type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

type userRow struct {
	ID             string `db:"id"`
	Name           string `db:"name"`
	Email          string `db:"email"`
	Role           string `db:"role"`
	OrganizationID string `db:"organization_id"`
	Status         string `db:"status"`
}

func (r userRow) toDomain() domain.User {
	return domain.User{
		ID:             r.ID,
		Name:           r.Name,
		Email:          r.Email,
		Role:           domain.Role(r.Role),
		OrganizationID: r.OrganizationID,
		Status:         domain.UserStatus(r.Status),
	}
}

func (r *UserRepository) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	var row userRow
	query := `SELECT id, name, email, role, organization_id, status FROM users WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user := row.toDomain()
	return &user, nil
}

func (r *UserRepository) GetByIDs(ctx context.Context, userIDs []string) ([]domain.User, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	var rows []userRow
	query := `SELECT id, name, email, role, organization_id, status FROM users WHERE id = ANY($1)`
	if err := r.db.SelectContext(ctx, &rows, query, pq.StringArray(userIDs)); err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}

	users := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toDomain())
	}
	return users, nil
}
