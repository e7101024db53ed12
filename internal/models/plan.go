// Package models содержит доменные структуры биллинга голосового агента:
// тарифные планы, подписку, аккаунт со счётчиком минут, а также
// вспомогательные типы для приёма данных из JSON-запросов.
package models

import "github.com/shopspring/decimal"

// Идентификаторы специальных тарифов каталога.
const (
	// PlanFree — бесплатный тариф, выдаётся аккаунту по умолчанию.
	PlanFree = "gratuit"
	// PlanUnlimited — синтетический безлимитный (custom/enterprise) тариф.
	PlanUnlimited = "illimite"
)

// OveragePolicyUpgrade — единственная поддерживаемая политика перерасхода:
// при исчерпании минут пользователю предлагается апгрейд тарифа.
const OveragePolicyUpgrade = "upgrade"

// Plan представляет тарифный план из каталога.
// Каталог сортируется по возрастанию цены, кастомный тариф всегда последний.
type Plan struct {
	ID              string          `json:"id"`               // Идентификатор тарифа
	Name            string          `json:"name"`             // Отображаемое название
	MinutesIncluded int             `json:"minutes_included"` // Минуты, включённые в расчётный цикл
	Price           decimal.Decimal `json:"price"`            // Цена за цикл
	IsRecommended   bool            `json:"is_recommended"`   // Рекомендуемый тариф
	IsCustom        bool            `json:"is_custom"`        // Синтетический безлимитный тариф
	OveragePolicy   string          `json:"overage_policy"`   // Политика перерасхода минут
	Features        []string        `json:"features"`         // Упорядоченный список возможностей
}

// IsFree сообщает, является ли тариф бесплатным.
func (p *Plan) IsFree() bool {
	return p.ID == PlanFree || p.Price.IsZero() && !p.IsCustom
}

// PlanFilter задаёт параметры выборки каталога тарифов.
// При UpgradeOnly из выборки исключается текущий тариф и все тарифы
// с ценой не выше текущей; кастомный тариф остаётся всегда.
type PlanFilter struct {
	CurrentPlanID string
	UpgradeOnly   bool
}
