package domain

import (
	"math"
	"time"

	"github.com/DRSN-tech/go-similarity/pkg/e"
)

// SignalWeights — веса пяти сигналов мультисигнальной оценки схожести.
// Сумма весов должна равняться единице.
type SignalWeights struct {
	Spatial     float64
	Feature     float64
	Semantic    float64
	Composition float64
	Background  float64
}

func DefaultSignalWeights() SignalWeights {
	return SignalWeights{
		Spatial:     0.40,
		Feature:     0.35,
		Semantic:    0.15,
		Composition: 0.05,
		Background:  0.05,
	}
}

// Validate проверяет, что веса в сумме дают единицу.
func (w SignalWeights) Validate() error {
	const eps = 1e-6

	sum := w.Spatial + w.Feature + w.Semantic + w.Composition + w.Background
	if math.Abs(sum-1.0) > eps {
		return e.ErrInvalidWeights
	}

	return nil
}

// TenantSettings — конфигурация одного тенанта: пороги схожести, веса сигналов,
// идентификатор модели эмбеддингов и параметры circuit breaker-а.
type TenantSettings struct {
	TenantID             string
	ModelID              string
	Thresholds           Thresholds
	MinPricingSimilarity float64
	MultiSignalEnabled   bool
	SignalWeights        SignalWeights

	BreakerFailureThreshold int
	BreakerSuccessThreshold int
	BreakerCooldown         time.Duration

	UpdatedAt *time.Time
}

// DefaultTenantSettings возвращает настройки тенанта по умолчанию.
// Используется, когда в хранилище нет записи для тенанта.
func DefaultTenantSettings(tenantID string) *TenantSettings {
	return &TenantSettings{
		TenantID:             tenantID,
		ModelID:              "titan-multimodal-v1",
		Thresholds:           DefaultThresholds(),
		MinPricingSimilarity: 0.7,
		MultiSignalEnabled:   false,
		SignalWeights:        DefaultSignalWeights(),

		BreakerFailureThreshold: 5,
		BreakerSuccessThreshold: 2,
		BreakerCooldown:         30 * time.Second,
	}
}

// Validate проверяет корректность настроек тенанта.
func (s *TenantSettings) Validate() error {
	if s.TenantID == "" {
		return e.ErrTenantRequired
	}

	return s.SignalWeights.Validate()
}
