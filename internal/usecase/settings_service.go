package usecase

import (
	"context"
	"time"

	"github.com/DRSN-tech/go-similarity/internal/domain"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
)

// SettingsService отдаёт настройки тенанта через короткоживущий read-through кэш:
// сначала Redis, затем PostgreSQL, при отсутствии записи — значения по умолчанию.
// Сбой кэша или хранилища деградирует до дефолтов и никогда не валит запрос.
type SettingsService struct {
	repo      SettingsRepository
	cacheRepo SettingsCacheRepository
	logger    logger.Logger
}

func NewSettingsService(repo SettingsRepository, cacheRepo SettingsCacheRepository, logger logger.Logger) *SettingsService {
	return &SettingsService{
		repo:      repo,
		cacheRepo: cacheRepo,
		logger:    logger,
	}
}

// ForTenant возвращает настройки тенанта, никогда не возвращая nil.
func (s *SettingsService) ForTenant(ctx context.Context, tenantID string) *domain.TenantSettings {
	const op = "SettingsService.ForTenant"

	cached, err := s.cacheRepo.GetSettings(ctx, tenantID)
	if err != nil {
		s.logger.Warnf("%s: settings cache read failed: %v", op, err)
	} else if cached != nil {
		return cached
	}

	settings, err := s.repo.Get(ctx, tenantID)
	if err != nil {
		s.logger.Warnf("%s: settings load failed, using defaults. tenant_id: %s, error: %v", op, tenantID, err)
		return domain.DefaultTenantSettings(tenantID)
	}

	if settings == nil {
		settings = domain.DefaultTenantSettings(tenantID)
	}

	if err := settings.Validate(); err != nil {
		s.logger.Warnf("%s: stored settings invalid, using defaults. tenant_id: %s, error: %v", op, tenantID, err)
		return domain.DefaultTenantSettings(tenantID)
	}

	// Фоновое обновление кэша
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()

		if err := s.cacheRepo.SetSettings(bgCtx, settings); err != nil {
			s.logger.Warnf("%s: failed to cache settings in background: %v", op, err)
		}
	}()

	return settings
}
