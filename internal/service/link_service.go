package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"geolink/internal/models"
	"geolink/internal/repository"
	"go.uber.org/zap"
)

// Ошибки сервиса
var (
	ErrInvalidURL = errors.New("невалидный URL")
)

// Константы сервиса
const (
	cacheTTL   = 24 * time.Hour
	slugLength = 8
	// Строчные буквы и цифры: 36^8 вариантов, коллизии ловит
	// уникальный индекс в БД
	slugCharset = "abcdefghijklmnopqrstuvwxyz0123456789"
	// Максимум повторов при коллизии слага
	maxSlugRetries = 3
)

// LinkService интерфейс сервиса ссылок
type LinkService interface {
	CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.Link, error)
	GetLinkBySlug(ctx context.Context, slug string) (*models.Link, error)
	ListLinks(ctx context.Context, limit int) ([]models.Link, error)
}

// linkService реализация сервиса ссылок
type linkService struct {
	linkRepo  repository.LinkRepository
	cacheRepo repository.CacheRepository
	logger    *zap.Logger
}

// NewLinkService создаёт новый экземпляр сервиса
func NewLinkService(linkRepo repository.LinkRepository, cacheRepo repository.CacheRepository, logger *zap.Logger) LinkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &linkService{
		linkRepo:  linkRepo,
		cacheRepo: cacheRepo,
		logger:    logger,
	}
}

// CreateLink создаёт новую трекинговую ссылку
func (s *linkService) CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.Link, error) {
	// Валидация URL: только абсолютные http(s) адреса
	if err := validateTargetURL(input.TargetURL); err != nil {
		return nil, err
	}

	// Генерация слага с ограниченным числом повторов: коллизия проявляется
	// как нарушение уникальности в БД, никогда как перезапись
	var link *models.Link
	for attempt := 0; attempt < maxSlugRetries; attempt++ {
		slug, err := generateSlug()
		if err != nil {
			return nil, fmt.Errorf("failed to generate slug: %w", err)
		}

		link = &models.Link{
			Slug:      slug,
			TargetURL: input.TargetURL,
			Title:     input.Title,
			CreatedAt: time.Now(),
		}

		err = s.linkRepo.Create(ctx, link)
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrSlugExists) {
			s.logger.Warn("Коллизия слага, пробуем ещё раз",
				zap.String("slug", slug),
				zap.Int("attempt", attempt+1),
			)
			link = nil
			continue
		}
		return nil, err
	}
	if link == nil {
		return nil, repository.ErrSlugExists
	}

	// Кэширование
	if err := s.cacheRepo.Set(ctx, link.Slug, link, cacheTTL); err != nil {
		s.logger.Debug("Не удалось закэшировать ссылку", zap.Error(err))
	}

	return link, nil
}

// GetLinkBySlug получает ссылку по слагу (сначала из кэша, затем из БД)
func (s *linkService) GetLinkBySlug(ctx context.Context, slug string) (*models.Link, error) {
	// Проверка кэша
	link, err := s.cacheRepo.Get(ctx, slug)
	if err == nil {
		return link, nil
	}

	// Запрос из БД
	link, err = s.linkRepo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	// Кэширование результата
	s.cacheRepo.Set(ctx, slug, link, cacheTTL)

	return link, nil
}

// ListLinks возвращает последние созданные ссылки
func (s *linkService) ListLinks(ctx context.Context, limit int) ([]models.Link, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.linkRepo.List(ctx, limit)
}

// generateSlug генерирует случайный слаг из фиксированного алфавита
func generateSlug() (string, error) {
	result := make([]byte, slugLength)
	for i := 0; i < slugLength; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(slugCharset))))
		if err != nil {
			return "", err
		}
		result[i] = slugCharset[num.Int64()]
	}
	return string(result), nil
}

// validateTargetURL проверяет, что адрес начинается с http:// или https://
func validateTargetURL(url string) error {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return ErrInvalidURL
	}
	return nil
}
