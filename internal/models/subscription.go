package models

import "time"

// Статусы подписки. Машина состояний:
// pending → active (подтверждение провайдера) | pending → cancelled (сбой/таймаут),
// active → cancelled (отмена или непродление), active → active (продление цикла).
// cancelled — терминальный статус; повторная покупка перезаписывает строку.
const (
	SubscriptionStatusPending   = "pending"
	SubscriptionStatusActive    = "active"
	SubscriptionStatusCancelled = "cancelled"
)

// Subscription — единственная запись подписки аккаунта (уникальна по account_uid).
// Поле ExternalSubscriptionID ссылается на подписку у платёжного провайдера
// и равно nil для бесплатной проекции.
type Subscription struct {
	ID                     int        `json:"id"`
	AccountUID             string     `json:"account_uid"`
	PlanID                 string     `json:"plan_id"`
	ExternalSubscriptionID *string    `json:"external_subscription_id,omitempty"`
	Status                 string     `json:"status"`
	PaymentMethod          string     `json:"payment_method"`
	RenewalDate            *time.Time `json:"renewal_date,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// FreeSubscription возвращает проекцию бесплатного тарифа для аккаунта,
// у которого нет записи в леджере подписок.
func FreeSubscription(accountUID string) *Subscription {
	return &Subscription{
		AccountUID: accountUID,
		PlanID:     PlanFree,
		Status:     SubscriptionStatusActive,
	}
}

// DummyCreateSubscription используется для приёма данных из JSON-запроса
// на покупку или смену тарифа, прежде чем конвертировать их в Subscription.
type DummyCreateSubscription struct {
	PlanID        string `json:"plan_id" validate:"required"`        // Идентификатор тарифа
	PaymentMethod string `json:"payment_method" validate:"required"` // Способ оплаты
}

// CreateSubscriptionResult — результат открытия подписки: ID локальной записи
// и URL подтверждения у платёжного провайдера.
type CreateSubscriptionResult struct {
	SubscriptionID int    `json:"subscription_id"`
	ApprovalURL    string `json:"approval_url"`
}

// RenewalCandidate — строка выборки планировщика продлений: аккаунт
// с активной подпиской, чья дата продления уже наступила.
type RenewalCandidate struct {
	AccountUID  string
	PlanID      string
	RenewalDate time.Time
}
