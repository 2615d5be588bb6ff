package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

type ResourceType string
type Action string
type ShareScope string

const (
	ResourceTypeWorkout   ResourceType = "workout"
	ResourceTypeExercise  ResourceType = "exercise"
	ResourceTypeProgram   ResourceType = "program"
	ResourceTypeProfile   ResourceType = "profile"
	ResourceTypeProgress  ResourceType = "progress"
	ResourceTypeNutrition ResourceType = "nutrition_plan"

	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionShare  Action = "share"
	ActionCopy   Action = "copy"

	ScopeDirect       ShareScope = "direct"
	ScopeOrganization ShareScope = "organization"
	ScopeTeam         ShareScope = "team"
	ScopePublic       ShareScope = "public"
)

// ValidationError описывает нарушение инварианта или некорректное поле запроса
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// SharedResource представляет грант на доступ к ресурсу: кто, кому,
// какие действия и на какой срок. Значение неизменяемое — все мутации
// возвращают новый экземпляр.
type SharedResource struct {
	ID             uuid.UUID        `json:"id"`
	ResourceID     string           `json:"resource_id"`
	ResourceType   ResourceType     `json:"resource_type"`
	OwnerID        string           `json:"owner_id"`
	SharedWith     []string         `json:"shared_with"`
	AllowedActions []Action         `json:"allowed_actions"`
	StartDate      time.Time        `json:"start_date"`
	EndDate        *time.Time       `json:"end_date,omitempty"`
	Conditions     []ShareCondition `json:"conditions,omitempty"`
	Scope          ShareScope       `json:"scope"`
	Archived       bool             `json:"archived"`
	Notes          string           `json:"notes,omitempty"`
	CreatedBy      string           `json:"created_by"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// NewSharedResource создает грант и проверяет все инварианты
func NewSharedResource(
	resourceID string,
	resourceType ResourceType,
	ownerID string,
	sharedWith []string,
	allowedActions []Action,
	startDate time.Time,
	endDate *time.Time,
	conditions []ShareCondition,
	scope ShareScope,
	notes string,
	createdBy string,
) (*SharedResource, error) {
	if startDate.IsZero() {
		startDate = time.Now()
	}
	if scope == "" {
		scope = ScopeDirect
	}
	now := time.Now()

	share := &SharedResource{
		ID:             uuid.New(),
		ResourceID:     resourceID,
		ResourceType:   resourceType,
		OwnerID:        ownerID,
		SharedWith:     copyStrings(sharedWith),
		AllowedActions: copyActions(allowedActions),
		StartDate:      startDate,
		EndDate:        copyTime(endDate),
		Conditions:     copyConditions(conditions),
		Scope:          scope,
		Notes:          notes,
		CreatedBy:      createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := share.validate(); err != nil {
		return nil, err
	}

	return share, nil
}

func (s *SharedResource) validate() error {
	if s.ResourceID == "" {
		return &ValidationError{Field: "resource_id", Message: "resource id is required"}
	}
	if s.OwnerID == "" {
		return &ValidationError{Field: "owner_id", Message: "owner id is required"}
	}
	if len(s.AllowedActions) == 0 {
		return &ValidationError{Field: "allowed_actions", Message: "at least one allowed action is required"}
	}
	if s.EndDate != nil && !s.EndDate.After(s.StartDate) {
		return &ValidationError{Field: "end_date", Message: "end date must be after start date"}
	}
	for _, userID := range s.SharedWith {
		if userID == s.OwnerID {
			return &ValidationError{Field: "shared_with", Message: "owner cannot be in shared users list"}
		}
	}
	return nil
}

// clone возвращает копию гранта с обновленным updated_at
func (s *SharedResource) clone() *SharedResource {
	c := *s
	c.SharedWith = copyStrings(s.SharedWith)
	c.AllowedActions = copyActions(s.AllowedActions)
	c.Conditions = copyConditions(s.Conditions)
	c.EndDate = copyTime(s.EndDate)
	c.UpdatedAt = time.Now()
	return &c
}

// AddSharedUser добавляет пользователя в список доступа
func (s *SharedResource) AddSharedUser(userID string) (*SharedResource, error) {
	c := s.clone()
	for _, id := range c.SharedWith {
		if id == userID {
			return c, nil
		}
	}
	c.SharedWith = append(c.SharedWith, userID)
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// RemoveSharedUser убирает пользователя из списка доступа
func (s *SharedResource) RemoveSharedUser(userID string) (*SharedResource, error) {
	c := s.clone()
	filtered := make([]string, 0, len(c.SharedWith))
	for _, id := range c.SharedWith {
		if id != userID {
			filtered = append(filtered, id)
		}
	}
	c.SharedWith = filtered
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateActions заменяет набор разрешенных действий
func (s *SharedResource) UpdateActions(actions []Action) (*SharedResource, error) {
	c := s.clone()
	c.AllowedActions = copyActions(actions)
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Extend устанавливает новую дату окончания доступа
func (s *SharedResource) Extend(newEndDate time.Time) (*SharedResource, error) {
	c := s.clone()
	c.EndDate = &newEndDate
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Archive помечает грант отозванным
func (s *SharedResource) Archive() *SharedResource {
	c := s.clone()
	c.Archived = true
	return c
}

// HasExpired проверяет, истек ли срок действия
func (s *SharedResource) HasExpired() bool {
	return s.EndDate != nil && !s.EndDate.After(time.Now())
}

// IsValid проверяет, действует ли грант в данный момент
func (s *SharedResource) IsValid() bool {
	return !s.Archived && !s.StartDate.After(time.Now()) && !s.HasExpired()
}

// CanUserAccess проверяет, разрешено ли пользователю действие.
// Владелец имеет доступ всегда, пока грант действует.
func (s *SharedResource) CanUserAccess(userID string, action Action) bool {
	if !s.IsValid() {
		return false
	}
	if userID == s.OwnerID {
		return true
	}
	shared := false
	for _, id := range s.SharedWith {
		if id == userID {
			shared = true
			break
		}
	}
	if !shared {
		return false
	}
	for _, a := range s.AllowedActions {
		if a == action {
			return true
		}
	}
	return false
}

// GetDaysRemaining возвращает число дней до истечения срока.
// Для бессрочных грантов возвращает +Inf.
func (s *SharedResource) GetDaysRemaining() float64 {
	if s.EndDate == nil {
		return math.Inf(1)
	}
	remaining := time.Until(*s.EndDate)
	if remaining <= 0 {
		return 0
	}
	return math.Ceil(remaining.Hours() / 24)
}

// CanBeDeleted сообщает, можно ли физически удалить запись гранта
func (s *SharedResource) CanBeDeleted() bool {
	return s.Archived || s.HasExpired()
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func copyActions(in []Action) []Action {
	if in == nil {
		return nil
	}
	out := make([]Action, len(in))
	copy(out, in)
	return out
}

func copyConditions(in []ShareCondition) []ShareCondition {
	if in == nil {
		return nil
	}
	out := make([]ShareCondition, len(in))
	copy(out, in)
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// ShareRequest описывает входящий запрос на создание гранта
type ShareRequest struct {
	ResourceID    string           `json:"resource_id"`
	ResourceType  ResourceType     `json:"resource_type"`
	OwnerID       string           `json:"owner_id"`
	TargetUserIDs []string         `json:"target_user_ids"`
	Actions       []Action         `json:"actions"`
	EndDate       *time.Time       `json:"end_date,omitempty"`
	Conditions    []ShareCondition `json:"conditions,omitempty"`
	Scope         ShareScope       `json:"scope,omitempty"`
	Notes         string           `json:"notes,omitempty"`
}

// ShareResult — итог операции шаринга. Ошибки не пробрасываются
// наверх паникой, а возвращаются внутри результата.
type ShareResult struct {
	Success  bool            `json:"success"`
	Share    *SharedResource `json:"share,omitempty"`
	Errors   []string        `json:"errors,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
}

// AccessResult — итог проверки доступа
type AccessResult struct {
	Allowed bool     `json:"allowed"`
	Reasons []string `json:"reasons,omitempty"`
}
