package models

import "time"

// Account представляет аккаунт клиента голосового сервиса.
// Счётчик минут хранится прямо на аккаунте; инвариант:
// MinutesRemaining = MinutesIncluded - MinutesConsumed, всегда >= 0.
type Account struct {
	UID              string  // Уникальный идентификатор аккаунта
	Email            string  // Электронная почта
	PhoneNumber      string  // Номер для переадресации звонков
	AgentID          string  // Идентификатор голосового агента у провайдера
	PlanID           *string // Текущий тариф (nil, если тариф не назначен)
	IsAgentActive    bool    // Включён ли голосовой агент
	MinutesIncluded  int     // Минуты, включённые в текущий цикл
	MinutesConsumed  int     // Потрачено минут в текущем цикле
	MinutesRemaining int     // Остаток минут, floor на нуле
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// UsageMeter — счётчик минут аккаунта, возвращаемый операциями списания и сброса.
type UsageMeter struct {
	MinutesIncluded  int `json:"minutes_included"`
	MinutesConsumed  int `json:"minutes_consumed"`
	MinutesRemaining int `json:"minutes_remaining"`
}

// DummyConsume используется для приёма отчёта о длительности звонка
// из JSON-запроса телефонного бэкенда.
type DummyConsume struct {
	Minutes int `json:"minutes" validate:"required,gt=0"` // Списываемые минуты (>0)
}
