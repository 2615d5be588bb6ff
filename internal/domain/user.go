package domain

type Role string
type UserStatus string

const (
	RoleAdmin   Role = "admin"
	RoleTrainer Role = "trainer"
	RoleClient  Role = "client"

	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

// User — минимальная проекция пользователя из identity-сервиса:
// роль, организация и статус, больше движку шаринга не нужно
type User struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	Role           Role       `json:"role"`
	OrganizationID string     `json:"organization_id"`
	Status         UserStatus `json:"status"`
}

func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}
