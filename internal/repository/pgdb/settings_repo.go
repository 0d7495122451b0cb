package pgdb

import (
	"context"
	"errors"
	"time"

	"github.com/DRSN-tech/go-similarity/internal/domain"
	"github.com/DRSN-tech/go-similarity/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// SettingsRepo читает конфигурацию тенантов из PostgreSQL.
type SettingsRepo struct {
	pool *pgxpool.Pool
}

func NewSettingsRepo(pool *pgxpool.Pool) *SettingsRepo {
	return &SettingsRepo{
		pool: pool,
	}
}

// Get возвращает настройки тенанта или nil без ошибки, если записи нет:
// отсутствие настроек — штатная ситуация, вызывающая сторона подставит дефолты.
func (s *SettingsRepo) Get(ctx context.Context, tenantID string) (*domain.TenantSettings, error) {
	query := `
		SELECT tenant_id, model_id,
		       threshold_same_product, threshold_likely_same, threshold_possibly_same,
		       min_pricing_similarity, multi_signal_enabled,
		       weight_spatial, weight_feature, weight_semantic, weight_composition, weight_background,
		       breaker_failure_threshold, breaker_success_threshold, breaker_cooldown_seconds,
		       updated_at
		FROM tenant_settings
		WHERE tenant_id = $1
	`

	var model converter.TenantSettingsModel
	err := s.pool.QueryRow(ctx, query, tenantID).Scan(
		&model.TenantID, &model.ModelID,
		&model.ThresholdSameProduct, &model.ThresholdLikelySame, &model.ThresholdPossiblySame,
		&model.MinPricingSimilarity, &model.MultiSignalEnabled,
		&model.WeightSpatial, &model.WeightFeature, &model.WeightSemantic,
		&model.WeightComposition, &model.WeightBackground,
		&model.BreakerFailureThreshold, &model.BreakerSuccessThreshold, &model.BreakerCooldownSeconds,
		&model.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return toSettingsEntity(&model), nil
}

// toSettingsEntity раскладывает плоскую строку таблицы по вложенным структурам настроек.
func toSettingsEntity(model *converter.TenantSettingsModel) *domain.TenantSettings {
	return &domain.TenantSettings{
		TenantID: model.TenantID,
		ModelID:  model.ModelID,
		Thresholds: domain.Thresholds{
			SameProduct:  model.ThresholdSameProduct,
			LikelySame:   model.ThresholdLikelySame,
			PossiblySame: model.ThresholdPossiblySame,
		},
		MinPricingSimilarity: model.MinPricingSimilarity,
		MultiSignalEnabled:   model.MultiSignalEnabled,
		SignalWeights: domain.SignalWeights{
			Spatial:     model.WeightSpatial,
			Feature:     model.WeightFeature,
			Semantic:    model.WeightSemantic,
			Composition: model.WeightComposition,
			Background:  model.WeightBackground,
		},
		BreakerFailureThreshold: model.BreakerFailureThreshold,
		BreakerSuccessThreshold: model.BreakerSuccessThreshold,
		BreakerCooldown:         time.Duration(model.BreakerCooldownSeconds) * time.Second,
		UpdatedAt:               model.UpdatedAt,
	}
}
