package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DRSN-tech/go-similarity/internal/cfg"
	"github.com/DRSN-tech/go-similarity/internal/domain"
	"github.com/DRSN-tech/go-similarity/internal/repository/redis/converter"
	"github.com/DRSN-tech/go-similarity/pkg/clients"
	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
	"github.com/jimlawless/whereami"
	goredis "github.com/redis/go-redis/v9"
)

// SettingsCacheRepo — короткоживущий кэш настроек тенантов в Redis.
type SettingsCacheRepo struct {
	client *clients.RedisClient
	conv   converter.SettingsConverter
	cfg    *cfg.RedisCfg
	logger logger.Logger
}

func NewSettingsCacheRepo(client *clients.RedisClient, conv converter.SettingsConverter,
	cfg *cfg.RedisCfg, logger logger.Logger) *SettingsCacheRepo {
	return &SettingsCacheRepo{
		client: client,
		conv:   conv,
		cfg:    cfg,
		logger: logger,
	}
}

// GetSettings возвращает настройки из кэша или nil при промахе.
// Битый JSON считается промахом: запись удаляется, чтение идёт в хранилище.
func (r *SettingsCacheRepo) GetSettings(ctx context.Context, tenantID string) (*domain.TenantSettings, error) {
	key := r.settingsKey(tenantID)

	data, err := r.client.Client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil // cache miss
	}
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	var model converter.TenantSettingsRedisModel
	if err := json.Unmarshal(data, &model); err != nil {
		r.logger.Warnf("Corrupt cached settings, dropping key. tenant_id: %s, error: %v",
			tenantID, e.Wrap(whereami.WhereAmI(), err))
		if delErr := r.client.Client.Del(context.Background(), key).Err(); delErr != nil {
			r.logger.Warnf("Redis del failed: %v", e.Wrap(whereami.WhereAmI(), delErr))
		}
		return nil, nil // cache miss
	}

	if model.TenantID != tenantID {
		r.logger.Warnf("Cache tenant mismatch: key_tenant: %s, model_tenant: %s", tenantID, model.TenantID)
		if delErr := r.client.Client.Del(context.Background(), key).Err(); delErr != nil {
			r.logger.Warnf("Redis del failed: %v", e.Wrap(whereami.WhereAmI(), delErr))
		}
		return nil, nil // cache miss
	}

	return r.conv.ToDomain(&model), nil
}

// SetSettings кэширует настройки тенанта с TTL из конфигурации.
func (r *SettingsCacheRepo) SetSettings(ctx context.Context, settings *domain.TenantSettings) error {
	model := r.conv.ToRedisModel(settings)

	data, err := json.Marshal(model)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := r.client.Client.Set(ctx, r.settingsKey(settings.TenantID), data, r.cfg.SettingsTTL).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// settingsKey возвращает Redis-ключ настроек одного тенанта
func (r *SettingsCacheRepo) settingsKey(tenantID string) string {
	return fmt.Sprintf("tenant-settings:%s", tenantID)
}
