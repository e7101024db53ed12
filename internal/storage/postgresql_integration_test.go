package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/voice-agent-billing/internal/models"
)

func seedCatalog(t *testing.T, factory *TestDataFactory) {
	factory.CreatePlan(t, "gratuit", "Gratuit", 5, 0.00, false)
	factory.CreatePlan(t, "decouverte", "Découverte", 60, 19.00, false)
	factory.CreatePlan(t, "essentiel", "Essentiel", 200, 49.00, false)
	factory.CreatePlan(t, "pro", "Pro", 600, 99.00, false)
	factory.CreatePlan(t, "illimite", "Illimité", 0, 0.00, true)
}

func TestStorage_ListPlans(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	seedCatalog(t, factory)

	plans, err := storage.ListPlans(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 5)

	// по возрастанию цены, кастомный тариф всегда последний
	gotIDs := make([]string, 0, len(plans))
	for _, p := range plans {
		gotIDs = append(gotIDs, p.ID)
	}
	assert.Equal(t, []string{"gratuit", "decouverte", "essentiel", "pro", "illimite"}, gotIDs)
	assert.True(t, plans[len(plans)-1].IsCustom)
}

func TestStorage_ApplyUsage(t *testing.T) {
	tests := []struct {
		name            string
		minutesIncluded int
		minutesConsumed int
		apply           int
		wantConsumed    int
		wantRemaining   int
	}{
		{
			name:            "regular consumption",
			minutesIncluded: 200,
			minutesConsumed: 0,
			apply:           12,
			wantConsumed:    12,
			wantRemaining:   188,
		},
		{
			name:            "over consumption is clamped at remaining balance",
			minutesIncluded: 200,
			minutesConsumed: 195,
			apply:           60,
			wantConsumed:    200,
			wantRemaining:   0,
		},
		{
			name:            "consumption on empty balance applies nothing",
			minutesIncluded: 60,
			minutesConsumed: 60,
			apply:           10,
			wantConsumed:    60,
			wantRemaining:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, cleanup := setupTestDatabase(t)
			defer cleanup()

			factory := NewTestDataFactory(storage)
			seedCatalog(t, factory)

			uid := uuid.New().String()
			factory.CreateAccount(t, uid, "essentiel", tt.minutesIncluded, tt.minutesConsumed)

			meter, err := storage.ApplyUsage(context.Background(), uid, tt.apply)
			require.NoError(t, err)
			assert.Equal(t, tt.wantConsumed, meter.MinutesConsumed)
			assert.Equal(t, tt.wantRemaining, meter.MinutesRemaining)
			assert.Equal(t, meter.MinutesIncluded, meter.MinutesConsumed+meter.MinutesRemaining)
		})
	}
}

func TestStorage_ResetUsage(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	seedCatalog(t, factory)

	uid := uuid.New().String()
	factory.CreateAccount(t, uid, "pro", 600, 587)

	first, err := storage.ResetUsage(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, 600, first.MinutesIncluded)
	assert.Equal(t, 0, first.MinutesConsumed)
	assert.Equal(t, 600, first.MinutesRemaining)

	// повторный сброс подряд даёт тот же результат
	second, err := storage.ResetUsage(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestStorage_ResetUsage_ReadsLiveCatalog(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	seedCatalog(t, factory)

	uid := uuid.New().String()
	factory.CreateAccount(t, uid, "decouverte", 60, 42)

	// объём тарифа меняется в каталоге, сброс берёт актуальное значение
	_, err := storage.DB.Exec(`UPDATE plans SET minutes_included = 90 WHERE id = 'decouverte'`)
	require.NoError(t, err)

	meter, err := storage.ResetUsage(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, 90, meter.MinutesIncluded)
	assert.Equal(t, 90, meter.MinutesRemaining)
}

func TestStorage_UpsertSubscription(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	seedCatalog(t, factory)

	uid := uuid.New().String()
	factory.CreateAccount(t, uid, "", 0, 0)

	renewalDate := time.Now().AddDate(0, 1, 0).UTC()
	extID := "I-FIRST"
	firstID, err := storage.UpsertSubscription(context.Background(), models.Subscription{
		AccountUID:             uid,
		PlanID:                 "essentiel",
		ExternalSubscriptionID: &extID,
		PaymentMethod:          "card",
		RenewalDate:            &renewalDate,
	})
	require.NoError(t, err)

	// повторная покупка перезаписывает единственную строку аккаунта
	secondExtID := "I-SECOND"
	secondID, err := storage.UpsertSubscription(context.Background(), models.Subscription{
		AccountUID:             uid,
		PlanID:                 "pro",
		ExternalSubscriptionID: &secondExtID,
		PaymentMethod:          "card",
		RenewalDate:            &renewalDate,
	})
	require.NoError(t, err)
	assert.Equal(t, firstID, secondID)

	sub, err := storage.GetSubscriptionByAccount(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, "pro", sub.PlanID)
	assert.Equal(t, models.SubscriptionStatusPending, sub.Status)
	require.NotNil(t, sub.ExternalSubscriptionID)
	assert.Equal(t, "I-SECOND", *sub.ExternalSubscriptionID)
}

func TestStorage_UpdateSubscriptionStatusByExternalID(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	seedCatalog(t, factory)

	uid := uuid.New().String()
	factory.CreateAccount(t, uid, "", 0, 0)
	renewalDate := time.Now().AddDate(0, 1, 0).UTC()
	factory.CreateSubscription(t, uid, "essentiel", models.SubscriptionStatusPending, &renewalDate)

	sub, err := storage.GetSubscriptionByAccount(context.Background(), uid)
	require.NoError(t, err)
	require.NotNil(t, sub.ExternalSubscriptionID)

	rows, err := storage.UpdateSubscriptionStatusByExternalID(
		context.Background(), *sub.ExternalSubscriptionID, models.SubscriptionStatusActive)
	require.NoError(t, err)
	assert.Equal(t, 1, rows)

	found, err := storage.GetSubscriptionByExternalID(context.Background(), *sub.ExternalSubscriptionID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, found.Status)

	// неизвестный внешний идентификатор не меняет ни одной строки
	rows, err = storage.UpdateSubscriptionStatusByExternalID(
		context.Background(), "I-UNKNOWN", models.SubscriptionStatusActive)
	require.NoError(t, err)
	assert.Equal(t, 0, rows)
}

func TestStorage_RenewalSweepFlow(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	seedCatalog(t, factory)

	now := time.Now().UTC()
	overdue := now.AddDate(0, -1, 0)
	future := now.AddDate(0, 1, 0)

	dueUID := uuid.New().String()
	factory.CreateAccount(t, dueUID, "pro", 600, 600)
	factory.CreateSubscription(t, dueUID, "pro", models.SubscriptionStatusActive, &overdue)

	notDueUID := uuid.New().String()
	factory.CreateAccount(t, notDueUID, "essentiel", 200, 10)
	factory.CreateSubscription(t, notDueUID, "essentiel", models.SubscriptionStatusActive, &future)

	cancelledUID := uuid.New().String()
	factory.CreateAccount(t, cancelledUID, "essentiel", 200, 10)
	factory.CreateSubscription(t, cancelledUID, "essentiel", models.SubscriptionStatusCancelled, &overdue)

	candidates, err := storage.FindSubscriptionsDueForRenewal(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, dueUID, candidates[0].AccountUID)
	assert.Equal(t, "pro", candidates[0].PlanID)

	meter, err := storage.ResetUsage(context.Background(), dueUID)
	require.NoError(t, err)
	assert.Equal(t, 600, meter.MinutesRemaining)

	rows, err := storage.AdvanceRenewalDate(context.Background(), dueUID, future)
	require.NoError(t, err)
	assert.Equal(t, 1, rows)

	// после сдвига даты подписка больше не попадает в выборку
	candidates, err = storage.FindSubscriptionsDueForRenewal(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestStorage_SetAgentActive(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	seedCatalog(t, factory)

	uid := uuid.New().String()
	factory.CreateAccount(t, uid, "decouverte", 60, 0)

	rows, err := storage.SetAgentActive(context.Background(), uid, true)
	require.NoError(t, err)
	assert.Equal(t, 1, rows)

	account, err := storage.GetAccount(context.Background(), uid)
	require.NoError(t, err)
	assert.True(t, account.IsAgentActive)

	rows, err = storage.SetAgentActive(context.Background(), uuid.New().String(), true)
	require.NoError(t, err)
	assert.Equal(t, 0, rows)
}
