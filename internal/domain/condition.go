package domain

import "time"

type ConditionType string
type ConditionOperator string
type ConditionSeverity string

const (
	ConditionTimeRange    ConditionType = "time_range"
	ConditionUserRole     ConditionType = "user_role"
	ConditionOrganization ConditionType = "organization"
	ConditionMaxUses      ConditionType = "max_uses"
	ConditionIPRange      ConditionType = "ip_range"
	ConditionDeviceType   ConditionType = "device_type"

	OperatorEquals    ConditionOperator = "eq"
	OperatorNotEquals ConditionOperator = "neq"
	OperatorIn        ConditionOperator = "in"
	OperatorNotIn     ConditionOperator = "not_in"

	SeverityWarning ConditionSeverity = "warning"
	SeverityError   ConditionSeverity = "error"
)

// ShareCondition — runtime-условие доступа, проверяется при каждой
// попытке обращения к ресурсу (в отличие от правил, которые проверяются
// при создании гранта)
type ShareCondition struct {
	Type     ConditionType     `json:"type"`
	Value    string            `json:"value"`
	Operator ConditionOperator `json:"operator,omitempty"`
}

// ConditionContext — контекст попытки доступа
type ConditionContext struct {
	User       User
	ResourceID string
	Timestamp  time.Time
	Metadata   map[string]string
}

// ConditionResult — результат проверки одного условия
type ConditionResult struct {
	Passed   bool              `json:"passed"`
	Reason   string            `json:"reason,omitempty"`
	Severity ConditionSeverity `json:"severity,omitempty"`
}

// FailedCondition связывает условие с результатом его проверки
type FailedCondition struct {
	Condition ShareCondition  `json:"condition"`
	Result    ConditionResult `json:"result"`
}

// ConditionsOutcome — итог проверки всех условий гранта
type ConditionsOutcome struct {
	AllPassed bool              `json:"all_passed"`
	Failed    []FailedCondition `json:"failed,omitempty"`
}
