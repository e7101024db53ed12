package paymentprovider

// CreateSubscriptionRequest — запрос к провайдеру на открытие подписки.
// CustomID несёт идентификатор аккаунта и возвращается в webhook-уведомлениях.
type CreateSubscriptionRequest struct {
	PlanID             string             `json:"plan_id"`
	CustomID           string             `json:"custom_id"`
	ApplicationContext ApplicationContext `json:"application_context"`
}

// ApplicationContext — адреса возврата пользователя после подтверждения
// или отмены на стороне провайдера.
type ApplicationContext struct {
	ReturnURL string `json:"return_url"`
	CancelURL string `json:"cancel_url"`
}

// Subscription — ответ провайдера на создание подписки.
// ID сохраняется в леджере как external_subscription_id; по ApprovalURL
// пользователь подтверждает оплату, после чего провайдер шлёт webhook.
type Subscription struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ApprovalURL string `json:"approval_url"`
}
