package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/netip"
	"time"

	"geolink/internal/models"
	"geolink/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrInvalidCoordinates - согласие без трёх конечных координат.
	// Визит при этом остаётся pending, а не помечается declined
	ErrInvalidCoordinates = errors.New("невалидные координаты")
)

const defaultVisitLimit = 100

// VisitService владеет двухфазным протоколом записи визита:
// спекулятивная pending-строка в момент редиректа, затем не более одного
// перехода в терминальное состояние через Resolve.
type VisitService interface {
	OpenPending(ctx context.Context, input *models.OpenVisitInput) (string, error)
	Resolve(ctx context.Context, visitID string, outcome *models.VisitOutcome) error
	GetVisit(ctx context.Context, visitID string) (*models.Visit, error)
	VisitsForLink(ctx context.Context, linkID int64, limit int) ([]models.Visit, error)
}

type visitService struct {
	visitRepo repository.VisitRepository
	logger    *zap.Logger
}

func NewVisitService(visitRepo repository.VisitRepository, logger *zap.Logger) VisitService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &visitService{
		visitRepo: visitRepo,
		logger:    logger,
	}
}

// OpenPending открывает pending-визит и возвращает его идентификатор.
// UUID здесь - capability token: разрешить визит может только тот,
// кому сервер его выдал
func (s *visitService) OpenPending(ctx context.Context, input *models.OpenVisitInput) (string, error) {
	visit := &models.Visit{
		ID:        uuid.NewString(),
		LinkID:    input.LinkID,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
		Referer:   input.Referer,
		CreatedAt: time.Now(),
	}

	if err := s.visitRepo.OpenPending(ctx, visit); err != nil {
		return "", fmt.Errorf("failed to open pending visit: %w", err)
	}

	return visit.ID, nil
}

// Resolve переводит визит в терминальное состояние. Незнакомый или уже
// разрешённый id - успешный no-op: повторные и поддельные коллбэки не
// должны ни ломаться, ни выдавать, существует ли визит
func (s *visitService) Resolve(ctx context.Context, visitID string, outcome *models.VisitOutcome) error {
	if outcome.Consented {
		if !allFinite(outcome.Latitude, outcome.Longitude, outcome.Accuracy) {
			return ErrInvalidCoordinates
		}
	} else {
		// У отклонённого визита координат не бывает
		outcome.Latitude = nil
		outcome.Longitude = nil
		outcome.Accuracy = nil
	}

	// Произвольная строка вместо uuid - то же, что незнакомый id: тихий no-op,
	// чтобы не выдавать, какие идентификаторы существуют
	if err := uuid.Validate(visitID); err != nil {
		s.logger.Debug("Коллбэк с некорректным идентификатором визита")
		return nil
	}

	applied, err := s.visitRepo.Resolve(ctx, visitID, outcome)
	if err != nil {
		return err
	}

	if !applied {
		s.logger.Debug("Коллбэк для неизвестного или уже разрешённого визита",
			zap.String("visit_id", visitID),
		)
	}

	return nil
}

func (s *visitService) GetVisit(ctx context.Context, visitID string) (*models.Visit, error) {
	return s.visitRepo.GetByID(ctx, visitID)
}

// VisitsForLink возвращает визиты ссылки, свежие первыми, с замаскированным
// для показа IP. Маскирование - чисто презентационное, в БД остаётся полный адрес
func (s *visitService) VisitsForLink(ctx context.Context, linkID int64, limit int) ([]models.Visit, error) {
	if limit <= 0 {
		limit = defaultVisitLimit
	}

	visits, err := s.visitRepo.ListByLink(ctx, linkID, limit)
	if err != nil {
		return nil, err
	}

	for i := range visits {
		visits[i].IPAddress = MaskIP(visits[i].IPAddress)
	}

	return visits, nil
}

// MaskIP маскирует IP для показа оператору: у IPv4 обнуляется последний
// октет, у IPv6 остаются первые четыре группы
func MaskIP(ip string) string {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "unknown (masked)"
	}

	if addr.Is4() || addr.Is4In6() {
		b := addr.As4()
		b[3] = 0
		return netip.AddrFrom4(b).String() + " (masked)"
	}

	b := addr.As16()
	masked := fmt.Sprintf("%x:%x:%x:%x::",
		uint16(b[0])<<8|uint16(b[1]),
		uint16(b[2])<<8|uint16(b[3]),
		uint16(b[4])<<8|uint16(b[5]),
		uint16(b[6])<<8|uint16(b[7]),
	)
	return masked + " (masked)"
}

func allFinite(values ...*float64) bool {
	for _, v := range values {
		if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
			return false
		}
	}
	return true
}
