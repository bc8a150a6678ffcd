package service_test

import (
	"context"
	"fmt"
	"testing"

	"geolink/internal/models"
	"geolink/internal/service"
	"geolink/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupLinkService создаёт тестовое окружение с моковыми репозиториями
func setupLinkService() (service.LinkService, *mocks.MockLinkRepository, *mocks.MockCacheRepository) {
	linkRepo := mocks.NewMockLinkRepository()
	cacheRepo := mocks.NewMockCacheRepository()
	linkService := service.NewLinkService(linkRepo, cacheRepo, nil)
	return linkService, linkRepo, cacheRepo
}

// TestLinkService_CreateLink_Success проверяет успешное создание ссылки
func TestLinkService_CreateLink_Success(t *testing.T) {
	linkService, _, _ := setupLinkService()

	input := &models.CreateLinkInput{
		TargetURL: "https://example.com/test",
		Title:     "Test link",
	}

	ctx := context.Background()
	link, err := linkService.CreateLink(ctx, input)

	require.NoError(t, err)
	assert.NotEmpty(t, link.Slug)
	assert.Equal(t, input.TargetURL, link.TargetURL)
	assert.Equal(t, input.Title, link.Title)
	assert.False(t, link.CreatedAt.IsZero())
}

// TestLinkService_CreateLink_InvalidURL проверяет отклонение URL без http(s)-префикса
func TestLinkService_CreateLink_InvalidURL(t *testing.T) {
	linkService, linkRepo, _ := setupLinkService()

	invalidURLs := []string{
		"ftp://x",
		"",
		"example.com",
		"javascript:alert(1)",
	}

	ctx := context.Background()
	for _, url := range invalidURLs {
		input := &models.CreateLinkInput{TargetURL: url}
		link, err := linkService.CreateLink(ctx, input)

		assert.Error(t, err, "URL должен быть отклонён: %q", url)
		assert.ErrorIs(t, err, service.ErrInvalidURL)
		assert.Nil(t, link)
	}

	// Ни одной строки не должно быть вставлено
	links, err := linkRepo.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, links)
}

// TestLinkService_CreateLink_ValidURLs проверяет приём корректных адресов
func TestLinkService_CreateLink_ValidURLs(t *testing.T) {
	linkService, _, _ := setupLinkService()

	validURLs := []string{
		"https://example.com",
		"http://example.com/path",
		"https://sub.example.com/path?query=value",
	}

	ctx := context.Background()
	for _, url := range validURLs {
		input := &models.CreateLinkInput{TargetURL: url}
		link, err := linkService.CreateLink(ctx, input)

		assert.NoError(t, err, "URL должен быть принят: %q", url)
		assert.NotNil(t, link)
	}
}

// TestLinkService_GenerateSlug проверяет длину, алфавит и уникальность слагов
func TestLinkService_GenerateSlug(t *testing.T) {
	linkService, _, _ := setupLinkService()

	ctx := context.Background()
	slugs := make(map[string]bool)
	for i := 0; i < 100; i++ {
		input := &models.CreateLinkInput{
			TargetURL: fmt.Sprintf("https://example.com/test/%d", i),
		}
		link, err := linkService.CreateLink(ctx, input)
		require.NoError(t, err)
		assert.Len(t, link.Slug, 8, "Длина слага должна быть 8 символов")
		for _, r := range link.Slug {
			assert.True(t, (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'),
				"Слаг должен состоять из строчных букв и цифр: %q", link.Slug)
		}
		assert.NotContains(t, slugs, link.Slug, "Слаги должны быть уникальными")
		slugs[link.Slug] = true
	}
}

// TestLinkService_GetLinkBySlug_FromCache проверяет получение ссылки из кэша
func TestLinkService_GetLinkBySlug_FromCache(t *testing.T) {
	linkService, _, cacheRepo := setupLinkService()

	ctx := context.Background()
	created, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
		TargetURL: "https://example.com/test",
	})
	require.NoError(t, err)

	// Ссылка должна попасть в кэш при создании
	cached, err := cacheRepo.Get(ctx, created.Slug)
	require.NoError(t, err)
	assert.Equal(t, created.Slug, cached.Slug)

	retrieved, err := linkService.GetLinkBySlug(ctx, created.Slug)
	require.NoError(t, err)
	assert.Equal(t, created.TargetURL, retrieved.TargetURL)
}

// TestLinkService_GetLinkBySlug_CacheMiss проверяет чтение из БД при промахе кэша
func TestLinkService_GetLinkBySlug_CacheMiss(t *testing.T) {
	linkService, _, cacheRepo := setupLinkService()

	ctx := context.Background()
	created, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
		TargetURL: "https://example.com/test",
	})
	require.NoError(t, err)

	// Сбрасываем кэш и читаем снова
	cacheRepo.Reset()

	retrieved, err := linkService.GetLinkBySlug(ctx, created.Slug)
	require.NoError(t, err)
	assert.Equal(t, created.Slug, retrieved.Slug)

	// После промаха ссылка снова должна оказаться в кэше
	cached, err := cacheRepo.Get(ctx, created.Slug)
	require.NoError(t, err)
	assert.Equal(t, created.Slug, cached.Slug)
}

// TestLinkService_GetLinkBySlug_NotFound проверяет обработку несуществующего слага
func TestLinkService_GetLinkBySlug_NotFound(t *testing.T) {
	linkService, _, _ := setupLinkService()

	ctx := context.Background()
	link, err := linkService.GetLinkBySlug(ctx, "nonexistent")

	assert.Error(t, err)
	assert.Nil(t, link)
}

// TestLinkService_ListLinks проверяет порядок: свежие первыми
func TestLinkService_ListLinks(t *testing.T) {
	linkService, _, _ := setupLinkService()

	ctx := context.Background()
	var slugs []string
	for i := 0; i < 5; i++ {
		link, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
			TargetURL: fmt.Sprintf("https://example.com/%d", i),
		})
		require.NoError(t, err)
		slugs = append(slugs, link.Slug)
	}

	links, err := linkService.ListLinks(ctx, 3)
	require.NoError(t, err)
	require.Len(t, links, 3)
	assert.Equal(t, slugs[4], links[0].Slug)
	assert.Equal(t, slugs[3], links[1].Slug)
	assert.Equal(t, slugs[2], links[2].Slug)
}
