package service_test

import (
	"context"
	"math"
	"testing"
	"time"

	"geolink/internal/models"
	"geolink/internal/service"
	"geolink/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupVisitService() (service.VisitService, *mocks.MockVisitRepository) {
	visitRepo := mocks.NewMockVisitRepository()
	visitService := service.NewVisitService(visitRepo, nil)
	return visitService, visitRepo
}

func floatPtr(v float64) *float64 {
	return &v
}

// TestVisitService_OpenPending проверяет, что новый визит рождается pending:
// все location-поля пустые, consented=false
func TestVisitService_OpenPending(t *testing.T) {
	visitService, _ := setupVisitService()

	ctx := context.Background()
	visitID, err := visitService.OpenPending(ctx, &models.OpenVisitInput{
		LinkID:    1,
		IPAddress: "203.0.113.42",
		UserAgent: "test-agent",
		Referer:   "https://referrer.example",
	})
	require.NoError(t, err)
	require.NotEmpty(t, visitID)

	visit, err := visitService.GetVisit(ctx, visitID)
	require.NoError(t, err)

	assert.Equal(t, models.VisitPending, visit.State())
	assert.False(t, visit.Consented)
	assert.Nil(t, visit.Latitude)
	assert.Nil(t, visit.Longitude)
	assert.Nil(t, visit.Accuracy)
	assert.Nil(t, visit.ResolvedAt)
	assert.Equal(t, "203.0.113.42", visit.IPAddress)
}

// TestVisitService_OpenPending_UniqueIDs проверяет, что каждый визит получает свой id
func TestVisitService_OpenPending_UniqueIDs(t *testing.T) {
	visitService, _ := setupVisitService()

	ctx := context.Background()
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		visitID, err := visitService.OpenPending(ctx, &models.OpenVisitInput{LinkID: 1})
		require.NoError(t, err)
		assert.NotContains(t, seen, visitID)
		seen[visitID] = true
	}
}

// TestVisitService_Resolve_Consented проверяет переход в consented с координатами
func TestVisitService_Resolve_Consented(t *testing.T) {
	visitService, _ := setupVisitService()

	ctx := context.Background()
	visitID, err := visitService.OpenPending(ctx, &models.OpenVisitInput{LinkID: 1})
	require.NoError(t, err)

	err = visitService.Resolve(ctx, visitID, &models.VisitOutcome{
		Consented: true,
		Latitude:  floatPtr(1.5),
		Longitude: floatPtr(2.5),
		Accuracy:  floatPtr(10),
	})
	require.NoError(t, err)

	visit, err := visitService.GetVisit(ctx, visitID)
	require.NoError(t, err)

	assert.Equal(t, models.VisitConsented, visit.State())
	assert.True(t, visit.Consented)
	assert.Equal(t, 1.5, *visit.Latitude)
	assert.Equal(t, 2.5, *visit.Longitude)
	assert.Equal(t, float64(10), *visit.Accuracy)
	assert.NotNil(t, visit.ResolvedAt)
}

// TestVisitService_Resolve_Declined проверяет переход в declined с причиной
func TestVisitService_Resolve_Declined(t *testing.T) {
	visitService, _ := setupVisitService()

	ctx := context.Background()
	visitID, err := visitService.OpenPending(ctx, &models.OpenVisitInput{LinkID: 1})
	require.NoError(t, err)

	err = visitService.Resolve(ctx, visitID, &models.VisitOutcome{
		Consented: false,
		Reason:    models.DeclineReasonSkipped,
	})
	require.NoError(t, err)

	visit, err := visitService.GetVisit(ctx, visitID)
	require.NoError(t, err)

	assert.Equal(t, models.VisitDeclined, visit.State())
	assert.False(t, visit.Consented)
	require.NotNil(t, visit.DeclineReason)
	assert.Equal(t, models.DeclineReasonSkipped, *visit.DeclineReason)
	assert.Nil(t, visit.Latitude)
}

// TestVisitService_Resolve_TerminalStateIsIdempotent проверяет, что второй
// Resolve с другим payload не меняет терминальные значения
func TestVisitService_Resolve_TerminalStateIsIdempotent(t *testing.T) {
	visitService, _ := setupVisitService()

	ctx := context.Background()
	visitID, err := visitService.OpenPending(ctx, &models.OpenVisitInput{LinkID: 1})
	require.NoError(t, err)

	err = visitService.Resolve(ctx, visitID, &models.VisitOutcome{
		Consented: true,
		Latitude:  floatPtr(1.5),
		Longitude: floatPtr(2.5),
		Accuracy:  floatPtr(10),
	})
	require.NoError(t, err)

	// Повторный коллбэк с другим исходом - успешный no-op
	err = visitService.Resolve(ctx, visitID, &models.VisitOutcome{
		Consented: false,
		Reason:    models.DeclineReasonTimeout,
	})
	require.NoError(t, err)

	visit, err := visitService.GetVisit(ctx, visitID)
	require.NoError(t, err)

	assert.Equal(t, models.VisitConsented, visit.State())
	assert.Equal(t, 1.5, *visit.Latitude)
	assert.Equal(t, 2.5, *visit.Longitude)
	assert.Nil(t, visit.DeclineReason)
}

// TestVisitService_Resolve_UnknownID проверяет тихий no-op для незнакомого id
func TestVisitService_Resolve_UnknownID(t *testing.T) {
	visitService, visitRepo := setupVisitService()

	ctx := context.Background()

	// Валидный uuid, которого нет в хранилище
	err := visitService.Resolve(ctx, "123e4567-e89b-12d3-a456-426614174000", &models.VisitOutcome{
		Consented: false,
		Reason:    models.DeclineReasonSkipped,
	})
	assert.NoError(t, err)

	// Произвольная строка вместо uuid - тоже успех, без обращения к строкам
	err = visitService.Resolve(ctx, "nonexistent-id", &models.VisitOutcome{
		Consented: false,
		Reason:    models.DeclineReasonSkipped,
	})
	assert.NoError(t, err)

	visits, err := visitRepo.ListByLink(ctx, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, visits, "Resolve не должен создавать строк")
}

// TestVisitService_Resolve_InvalidCoordinates проверяет, что согласие без
// трёх конечных координат отклоняется, а визит остаётся pending
func TestVisitService_Resolve_InvalidCoordinates(t *testing.T) {
	visitService, _ := setupVisitService()

	ctx := context.Background()
	visitID, err := visitService.OpenPending(ctx, &models.OpenVisitInput{LinkID: 1})
	require.NoError(t, err)

	badOutcomes := []*models.VisitOutcome{
		{Consented: true},
		{Consented: true, Latitude: floatPtr(1), Longitude: floatPtr(2)},
		{Consented: true, Latitude: floatPtr(math.NaN()), Longitude: floatPtr(2), Accuracy: floatPtr(3)},
		{Consented: true, Latitude: floatPtr(1), Longitude: floatPtr(math.Inf(1)), Accuracy: floatPtr(3)},
	}

	for _, outcome := range badOutcomes {
		err = visitService.Resolve(ctx, visitID, outcome)
		assert.ErrorIs(t, err, service.ErrInvalidCoordinates)
	}

	visit, err := visitService.GetVisit(ctx, visitID)
	require.NoError(t, err)
	assert.Equal(t, models.VisitPending, visit.State(), "Невалидный payload не должен менять состояние")
}

// TestVisitService_Resolve_DeclinedDropsCoordinates проверяет, что у
// отклонённого визита координаты не сохраняются, даже если их прислали
func TestVisitService_Resolve_DeclinedDropsCoordinates(t *testing.T) {
	visitService, _ := setupVisitService()

	ctx := context.Background()
	visitID, err := visitService.OpenPending(ctx, &models.OpenVisitInput{LinkID: 1})
	require.NoError(t, err)

	err = visitService.Resolve(ctx, visitID, &models.VisitOutcome{
		Consented: false,
		Reason:    models.DeclineReasonPermissionDenied,
		Latitude:  floatPtr(1.5),
		Longitude: floatPtr(2.5),
		Accuracy:  floatPtr(10),
	})
	require.NoError(t, err)

	visit, err := visitService.GetVisit(ctx, visitID)
	require.NoError(t, err)
	assert.Nil(t, visit.Latitude)
	assert.Nil(t, visit.Longitude)
	assert.Nil(t, visit.Accuracy)
}

// TestVisitService_VisitsForLink проверяет порядок и маскирование IP
func TestVisitService_VisitsForLink(t *testing.T) {
	visitService, _ := setupVisitService()

	ctx := context.Background()
	var ids []string
	for i := 0; i < 3; i++ {
		visitID, err := visitService.OpenPending(ctx, &models.OpenVisitInput{
			LinkID:    7,
			IPAddress: "203.0.113.42",
		})
		require.NoError(t, err)
		ids = append(ids, visitID)
	}

	// Визит другой ссылки не должен попасть в выборку
	_, err := visitService.OpenPending(ctx, &models.OpenVisitInput{LinkID: 8, IPAddress: "198.51.100.7"})
	require.NoError(t, err)

	visits, err := visitService.VisitsForLink(ctx, 7, 10)
	require.NoError(t, err)
	require.Len(t, visits, 3)

	// Свежие первыми
	assert.Equal(t, ids[2], visits[0].ID)
	assert.Equal(t, ids[0], visits[2].ID)

	// IP замаскирован только в выдаче
	for _, v := range visits {
		assert.Equal(t, "203.0.113.0 (masked)", v.IPAddress)
	}
}

// TestMaskIP проверяет презентационное маскирование адресов
func TestMaskIP(t *testing.T) {
	tests := []struct {
		name string
		ip   string
		want string
	}{
		{"IPv4", "203.0.113.42", "203.0.113.0 (masked)"},
		{"IPv4 уже нулевой октет", "10.0.0.0", "10.0.0.0 (masked)"},
		{"IPv6", "2001:db8:1:2:3:4:5:6", "2001:db8:1:2:: (masked)"},
		{"IPv6 loopback", "::1", "0:0:0:0:: (masked)"},
		{"пустая строка", "", "unknown (masked)"},
		{"мусор", "not-an-ip", "unknown (masked)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, service.MaskIP(tt.ip))
		})
	}
}

// TestVisitSweeper_MarksOnlyStalePending проверяет, что sweeper помечает
// только давно висящие pending-визиты
func TestVisitSweeper_MarksOnlyStalePending(t *testing.T) {
	visitService, visitRepo := setupVisitService()

	ctx := context.Background()

	// Свежий pending - трогать нельзя
	freshID, err := visitService.OpenPending(ctx, &models.OpenVisitInput{LinkID: 1})
	require.NoError(t, err)

	// Старый pending - подлежит пометке
	staleID, err := visitService.OpenPending(ctx, &models.OpenVisitInput{LinkID: 1})
	require.NoError(t, err)
	stale, err := visitRepo.GetByID(ctx, staleID)
	require.NoError(t, err)
	stale.CreatedAt = time.Now().Add(-48 * time.Hour)
	visitRepo.Reset()
	require.NoError(t, visitRepo.OpenPending(ctx, stale))

	fresh := &models.Visit{ID: freshID, LinkID: 1, CreatedAt: time.Now()}
	require.NoError(t, visitRepo.OpenPending(ctx, fresh))

	swept, err := visitRepo.SweepAbandoned(ctx, time.Now().Add(-24*time.Hour), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), swept)

	staleAfter, err := visitService.GetVisit(ctx, staleID)
	require.NoError(t, err)
	assert.Equal(t, models.VisitDeclined, staleAfter.State())
	require.NotNil(t, staleAfter.DeclineReason)
	assert.Equal(t, models.DeclineReasonAbandoned, *staleAfter.DeclineReason)

	freshAfter, err := visitService.GetVisit(ctx, freshID)
	require.NoError(t, err)
	assert.Equal(t, models.VisitPending, freshAfter.State())
}

// TestVisitService_ConcurrentResolve проверяет, что из конкурирующих
// коллбэков фиксируется ровно один переход
func TestVisitService_ConcurrentResolve(t *testing.T) {
	visitService, _ := setupVisitService()

	ctx := context.Background()
	visitID, err := visitService.OpenPending(ctx, &models.OpenVisitInput{LinkID: 1})
	require.NoError(t, err)

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func(consented bool) {
			outcome := &models.VisitOutcome{Consented: false, Reason: models.DeclineReasonSkipped}
			if consented {
				outcome = &models.VisitOutcome{
					Consented: true,
					Latitude:  floatPtr(1),
					Longitude: floatPtr(2),
					Accuracy:  floatPtr(3),
				}
			}
			assert.NoError(t, visitService.Resolve(ctx, visitID, outcome))
			done <- true
		}(i%2 == 0)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	// Состояние терминальное и согласованное: либо consented с координатами,
	// либо declined без них
	visit, err := visitService.GetVisit(ctx, visitID)
	require.NoError(t, err)
	require.NotNil(t, visit.ResolvedAt)
	if visit.Consented {
		assert.NotNil(t, visit.Latitude)
	} else {
		assert.Nil(t, visit.Latitude)
	}
}
