// Package storage реализует хранилище данных на основе PostgreSQL
// для биллинга голосового агента: каталог тарифов, леджер подписок
// и счётчики минут аккаунтов. Каждый метод — один SQL-оператор;
// согласованность на уровне аккаунта обеспечивается построчной
// атомарностью обновлений.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/magabrotheeeer/voice-agent-billing/internal/models"
)

// Storage инкапсулирует соединение с базой данных PostgreSQL.
// Пул соединений создаётся один раз на процесс и передаётся
// в сервисы через конструкторы.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL и проверяет его доступность.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// CheckDatabaseReady проверяет готовность базы данных.
func CheckDatabaseReady(storage *Storage) error {
	var exists bool
	err := storage.DB.QueryRow(`SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'subscriptions'
    )`).Scan(&exists)
	if err != nil || !exists {
		return fmt.Errorf("required table subscriptions missing or query error: %w", err)
	}
	return nil
}

// ===== PLAN METHODS =====

// ListPlans возвращает все тарифы каталога по возрастанию цены;
// кастомный (безлимитный) тариф сортируется последним независимо от цены.
func (s *Storage) ListPlans(ctx context.Context) ([]*models.Plan, error) {
	const op = "storage.ListPlans"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, name, minutes_included, price, is_recommended, is_custom,
				overage_policy, features
			  FROM plans
			  ORDER BY is_custom, price`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var result []*models.Plan
	for rows.Next() {
		item, err := scanPlan(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, item)
	}
	err = rows.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// GetPlan возвращает тариф по его идентификатору.
func (s *Storage) GetPlan(ctx context.Context, id string) (*models.Plan, error) {
	const op = "storage.GetPlan"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, name, minutes_included, price, is_recommended, is_custom,
				overage_policy, features
			  FROM plans WHERE id = $1`
	row := s.DB.QueryRowContext(ctx, query, id)

	result, err := scanPlan(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// scanPlan читает строку тарифа; список возможностей хранится как JSONB
// и валидируется при чтении.
func scanPlan(scan func(dest ...any) error) (*models.Plan, error) {
	var item models.Plan
	var features []byte
	if err := scan(&item.ID, &item.Name, &item.MinutesIncluded, &item.Price,
		&item.IsRecommended, &item.IsCustom, &item.OveragePolicy, &features); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(features, &item.Features); err != nil {
		return nil, fmt.Errorf("invalid features payload for plan %s: %w", item.ID, err)
	}
	return &item, nil
}

// ===== SUBSCRIPTION METHODS =====

// UpsertSubscription вставляет или перезаписывает единственную запись подписки
// аккаунта (уникальность по account_uid) и возвращает её ID. Статус всегда
// принудительно pending: подтверждение приходит от провайдера асинхронно.
func (s *Storage) UpsertSubscription(ctx context.Context, sub models.Subscription) (int, error) {
	const op = "storage.UpsertSubscription"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscriptions (account_uid, plan_id, external_subscription_id,
				status, payment_method, renewal_date, created_at, updated_at)
			  VALUES ($1, $2, $3, 'pending', $4, $5, now(), now())
			  ON CONFLICT (account_uid) DO UPDATE
			  SET plan_id = EXCLUDED.plan_id,
			      external_subscription_id = EXCLUDED.external_subscription_id,
			      status = 'pending',
			      payment_method = EXCLUDED.payment_method,
			      renewal_date = EXCLUDED.renewal_date,
			      updated_at = now()
			  RETURNING id`
	var newID int
	err := s.DB.QueryRowContext(ctx, query,
		sub.AccountUID, sub.PlanID, sub.ExternalSubscriptionID,
		sub.PaymentMethod, sub.RenewalDate).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetSubscriptionByAccount возвращает подписку аккаунта.
// Отсутствие строки отдаётся как sql.ErrNoRows: решение о бесплатной
// проекции принимает сервисный слой.
func (s *Storage) GetSubscriptionByAccount(ctx context.Context, accountUID string) (*models.Subscription, error) {
	const op = "storage.GetSubscriptionByAccount"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, account_uid, plan_id, external_subscription_id, status,
				payment_method, renewal_date, created_at, updated_at
			  FROM subscriptions WHERE account_uid = $1`
	row := s.DB.QueryRowContext(ctx, query, accountUID)

	var result models.Subscription
	if err := row.Scan(&result.ID, &result.AccountUID, &result.PlanID,
		&result.ExternalSubscriptionID, &result.Status, &result.PaymentMethod,
		&result.RenewalDate, &result.CreatedAt, &result.UpdatedAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &result, nil
}

// GetSubscriptionByExternalID возвращает подписку по идентификатору
// у платёжного провайдера.
func (s *Storage) GetSubscriptionByExternalID(ctx context.Context, externalID string) (*models.Subscription, error) {
	const op = "storage.GetSubscriptionByExternalID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, account_uid, plan_id, external_subscription_id, status,
				payment_method, renewal_date, created_at, updated_at
			  FROM subscriptions WHERE external_subscription_id = $1`
	row := s.DB.QueryRowContext(ctx, query, externalID)

	var result models.Subscription
	if err := row.Scan(&result.ID, &result.AccountUID, &result.PlanID,
		&result.ExternalSubscriptionID, &result.Status, &result.PaymentMethod,
		&result.RenewalDate, &result.CreatedAt, &result.UpdatedAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &result, nil
}

// UpdateSubscriptionStatusByExternalID переводит подписку в новый статус
// и возвращает количество изменённых строк. Только переход, без бизнес-логики.
func (s *Storage) UpdateSubscriptionStatusByExternalID(ctx context.Context, externalID, status string) (int, error) {
	const op = "storage.UpdateSubscriptionStatusByExternalID"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET status = $2, updated_at = now()
			  WHERE external_subscription_id = $1`
	result, err := s.DB.ExecContext(ctx, query, externalID, status)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// FindSubscriptionsDueForRenewal возвращает аккаунты с активной подпиской,
// назначенным тарифом и датой продления не позже now.
func (s *Storage) FindSubscriptionsDueForRenewal(ctx context.Context, now time.Time) ([]*models.RenewalCandidate, error) {
	const op = "storage.FindSubscriptionsDueForRenewal"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT s.account_uid, s.plan_id, s.renewal_date
			  FROM subscriptions s
			  JOIN accounts a ON a.uid = s.account_uid
			  WHERE s.status = 'active'
			    AND s.renewal_date IS NOT NULL
			    AND s.renewal_date <= $1
			    AND a.plan_id IS NOT NULL`
	rows, err := s.DB.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var result []*models.RenewalCandidate
	for rows.Next() {
		var item models.RenewalCandidate
		if err := rows.Scan(&item.AccountUID, &item.PlanID, &item.RenewalDate); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	err = rows.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// AdvanceRenewalDate сдвигает дату продления подписки аккаунта
// и возвращает количество изменённых строк.
func (s *Storage) AdvanceRenewalDate(ctx context.Context, accountUID string, next time.Time) (int, error) {
	const op = "storage.AdvanceRenewalDate"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET renewal_date = $2, updated_at = now()
			  WHERE account_uid = $1`
	result, err := s.DB.ExecContext(ctx, query, accountUID, next)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ===== ACCOUNT METHODS =====

// GetAccount возвращает аккаунт со счётчиком минут и состоянием агента.
func (s *Storage) GetAccount(ctx context.Context, uid string) (*models.Account, error) {
	const op = "storage.GetAccount"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT uid, email, phone_number, agent_id, plan_id, is_agent_active,
				minutes_included, minutes_consumed, minutes_remaining, created_at, updated_at
			  FROM accounts WHERE uid = $1`
	row := s.DB.QueryRowContext(ctx, query, uid)

	var result models.Account
	if err := row.Scan(&result.UID, &result.Email, &result.PhoneNumber, &result.AgentID,
		&result.PlanID, &result.IsAgentActive, &result.MinutesIncluded,
		&result.MinutesConsumed, &result.MinutesRemaining,
		&result.CreatedAt, &result.UpdatedAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &result, nil
}

// SetAccountPlan назначает аккаунту тариф и возвращает количество изменённых строк.
func (s *Storage) SetAccountPlan(ctx context.Context, uid, planID string) (int, error) {
	const op = "storage.SetAccountPlan"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE accounts SET plan_id = $2, updated_at = now() WHERE uid = $1`
	result, err := s.DB.ExecContext(ctx, query, uid, planID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ApplyUsage списывает minutes со счётчика аккаунта одним атомарным
// оператором. Остаток floor-ится на нуле; в потраченные записывается
// фактически применённая величина, а не запрошенная.
func (s *Storage) ApplyUsage(ctx context.Context, uid string, minutes int) (*models.UsageMeter, error) {
	const op = "storage.ApplyUsage"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE accounts
			  SET minutes_consumed = minutes_consumed + LEAST($2, minutes_remaining),
			      minutes_remaining = minutes_remaining - LEAST($2, minutes_remaining),
			      updated_at = now()
			  WHERE uid = $1
			  RETURNING minutes_included, minutes_consumed, minutes_remaining`
	row := s.DB.QueryRowContext(ctx, query, uid, minutes)

	var meter models.UsageMeter
	if err := row.Scan(&meter.MinutesIncluded, &meter.MinutesConsumed,
		&meter.MinutesRemaining); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &meter, nil
}

// ResetUsage сбрасывает счётчик аккаунта на полный объём минут текущего
// тарифа: потраченные минуты обнуляются, остаток и включённый объём
// читаются из каталога на момент сброса.
func (s *Storage) ResetUsage(ctx context.Context, uid string) (*models.UsageMeter, error) {
	const op = "storage.ResetUsage"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE accounts a
			  SET minutes_included = p.minutes_included,
			      minutes_consumed = 0,
			      minutes_remaining = p.minutes_included,
			      updated_at = now()
			  FROM plans p
			  WHERE a.uid = $1 AND p.id = a.plan_id
			  RETURNING a.minutes_included, a.minutes_consumed, a.minutes_remaining`
	row := s.DB.QueryRowContext(ctx, query, uid)

	var meter models.UsageMeter
	if err := row.Scan(&meter.MinutesIncluded, &meter.MinutesConsumed,
		&meter.MinutesRemaining); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &meter, nil
}

// SetAgentActive переключает флаг активности голосового агента
// и возвращает количество изменённых строк.
func (s *Storage) SetAgentActive(ctx context.Context, uid string, active bool) (int, error) {
	const op = "storage.SetAgentActive"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE accounts SET is_agent_active = $2, updated_at = now() WHERE uid = $1`
	result, err := s.DB.ExecContext(ctx, query, uid, active)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}
