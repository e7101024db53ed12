// Package services содержит правила допуска к реактивации агента:
// чистую функцию принятия решения по остатку минут и запрошенному
// тарифу, и сервис переключения голосового агента.
package services

import "github.com/magabrotheeeer/voice-agent-billing/internal/models"

// Причины решения о реактивации.
const (
	ReasonMinutesAvailable = "MINUTES_AVAILABLE"
	ReasonNoPlanSelected   = "NO_PLAN_SELECTED"
	ReasonSamePlan         = "SAME_PLAN"
	ReasonUpgradeAvailable = "UPGRADE_AVAILABLE"
)

// Decision — результат проверки допуска к реактивации.
type Decision struct {
	CanReactivate bool   `json:"can_reactivate"`
	Reason        string `json:"reason"`
}

// CanReactivate решает, может ли аккаунт реактивировать агента.
// Функция чистая: решение зависит только от аргументов. Порядок
// проверок значим: положительный остаток минут разрешает реактивацию
// независимо от тарифов; переход на любой другой тариф считается
// допустимым, даже более дешёвый.
func CanReactivate(account *models.Account, requestedPlanID string) Decision {
	if account.MinutesRemaining > 0 {
		return Decision{CanReactivate: true, Reason: ReasonMinutesAvailable}
	}
	if requestedPlanID == "" {
		return Decision{CanReactivate: false, Reason: ReasonNoPlanSelected}
	}
	if account.PlanID != nil && requestedPlanID == *account.PlanID {
		return Decision{CanReactivate: false, Reason: ReasonSamePlan}
	}
	return Decision{CanReactivate: true, Reason: ReasonUpgradeAvailable}
}
