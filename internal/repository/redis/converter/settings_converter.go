package converter

import (
	"time"

	"github.com/DRSN-tech/go-similarity/internal/domain"
)

// settingsConverter написан вручную: goverter не раскладывает вложенные
// структуры (пороги, веса) в плоскую Redis-модель и обратно.
type settingsConverter struct{}

func NewSettingsConverter() SettingsConverter {
	return &settingsConverter{}
}

func (c *settingsConverter) ToRedisModel(entity *domain.TenantSettings) *TenantSettingsRedisModel {
	if entity == nil {
		return nil
	}

	return &TenantSettingsRedisModel{
		TenantID:                entity.TenantID,
		ModelID:                 entity.ModelID,
		ThresholdSameProduct:    entity.Thresholds.SameProduct,
		ThresholdLikelySame:     entity.Thresholds.LikelySame,
		ThresholdPossiblySame:   entity.Thresholds.PossiblySame,
		MinPricingSimilarity:    entity.MinPricingSimilarity,
		MultiSignalEnabled:      entity.MultiSignalEnabled,
		WeightSpatial:           entity.SignalWeights.Spatial,
		WeightFeature:           entity.SignalWeights.Feature,
		WeightSemantic:          entity.SignalWeights.Semantic,
		WeightComposition:       entity.SignalWeights.Composition,
		WeightBackground:        entity.SignalWeights.Background,
		BreakerFailureThreshold: entity.BreakerFailureThreshold,
		BreakerSuccessThreshold: entity.BreakerSuccessThreshold,
		BreakerCooldownSeconds:  int64(entity.BreakerCooldown / time.Second),
		UpdatedAt:               entity.UpdatedAt,
	}
}

func (c *settingsConverter) ToDomain(model *TenantSettingsRedisModel) *domain.TenantSettings {
	if model == nil {
		return nil
	}

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
