package converter

import "time"

// TenantSettingsRedisModel — JSON-представление настроек тенанта в Redis.
type TenantSettingsRedisModel struct {
	TenantID                string     `json:"tenant_id"`
	ModelID                 string     `json:"model_id"`
	ThresholdSameProduct    float64    `json:"threshold_same_product"`
	ThresholdLikelySame     float64    `json:"threshold_likely_same"`
	ThresholdPossiblySame   float64    `json:"threshold_possibly_same"`
	MinPricingSimilarity    float64    `json:"min_pricing_similarity"`
	MultiSignalEnabled      bool       `json:"multi_signal_enabled"`
	WeightSpatial           float64    `json:"weight_spatial"`
	WeightFeature           float64    `json:"weight_feature"`
	WeightSemantic          float64    `json:"weight_semantic"`
	WeightComposition       float64    `json:"weight_composition"`
	WeightBackground        float64    `json:"weight_background"`
	BreakerFailureThreshold int        `json:"breaker_failure_threshold"`
	BreakerSuccessThreshold int        `json:"breaker_success_threshold"`
	BreakerCooldownSeconds  int64      `json:"breaker_cooldown_seconds"`
	UpdatedAt               *time.Time `json:"updated_at,omitempty"`
}
