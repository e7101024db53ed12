// Package errs определяет классификацию ошибок биллинга.
// Ошибки бизнес-правил создаются в точке обнаружения и доходят
// до границы HTTP без изменений; инфраструктурные ошибки оборачиваются
// как Unknown, если не классифицированы явно. Обработчики сопоставляют
// Kind с HTTP-статусом, не разбирая текст сообщения.
package errs

import (
	"errors"
	"fmt"
)

// Kind — категория ошибки.
type Kind int

const (
	// Unknown — любая неклассифицированная ошибка; детали логируются
	// на сервере, клиенту возвращается общее сообщение.
	Unknown Kind = iota
	// NotConfigured — недоступна обязательная внешняя зависимость (хранилище).
	NotConfigured
	// NotFound — тариф, подписка или аккаунт не существует.
	NotFound
	// PlanNotPurchasable — бесплатный или кастомный тариф нельзя купить
	// через платёжный шлюз.
	PlanNotPurchasable
	// InsufficientMinutes — попытка включить агента при нулевом остатке минут.
	InsufficientMinutes
	// GatewayFailure — внешний вызов (платёжный или голосовой провайдер)
	// завершился ошибкой или таймаутом.
	GatewayFailure
)

// String возвращает имя категории.
func (k Kind) String() string {
	switch k {
	case NotConfigured:
		return "not_configured"
	case NotFound:
		return "not_found"
	case PlanNotPurchasable:
		return "plan_not_purchasable"
	case InsufficientMinutes:
		return "insufficient_minutes"
	case GatewayFailure:
		return "gateway_failure"
	default:
		return "unknown"
	}
}

// Error — классифицированная ошибка с категорией и сообщением для клиента.
type Error struct {
	Kind Kind   // Категория ошибки
	Msg  string // Сообщение, пригодное для показа клиенту
	Err  error  // Обёрнутая причина (опционально)
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap возвращает обёрнутую причину для errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// E создаёт классифицированную ошибку без причины.
func E(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap создаёт классифицированную ошибку, оборачивая причину.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf возвращает категорию ошибки; для неклассифицированных — Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Message возвращает сообщение для клиента; для неклассифицированных
// ошибок — общий текст, чтобы не раскрывать внутренние детали.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return "internal error"
}
