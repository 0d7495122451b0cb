// Package vision — клиенты внешних сервисов анализа изображений: распознавание
// меток и оценка визуального качества. Оба вызова обёрнуты в circuit breaker
// с параметрами тенанта и при любом сбое деградируют до нейтрального результата:
// эти сигналы лишь уточняют схожесть и цену и не должны блокировать основной поток.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/DRSN-tech/go-similarity/internal/cache"
	"github.com/DRSN-tech/go-similarity/internal/cfg"
	"github.com/DRSN-tech/go-similarity/internal/domain"
	"github.com/DRSN-tech/go-similarity/internal/usecase"
	"github.com/DRSN-tech/go-similarity/pkg/breaker"
	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
)

// Service вызывает сервисы меток и качества через breaker тенанта, общий для
// обоих вызовов: они живут за одним шлюзом, и деградация у них общая.
// Кэши разделяются между тенантами: результаты зависят только от байтов изображения.
type Service struct {
	cfg          *cfg.VisionCfg
	breakerCfg   *cfg.BreakerCfg
	client       *http.Client
	mu           sync.Mutex
	breakers     map[string]*breaker.Breaker
	labelCache   *cache.Cache[[]domain.ImageLabel]
	qualityCache *cache.Cache[usecase.QualityAssessment]
	logger       logger.Logger
}

func NewService(visionCfg *cfg.VisionCfg, breakerCfg *cfg.BreakerCfg, cacheCfg *cfg.CacheCfg, logger logger.Logger) *Service {
	return &Service{
		cfg:          visionCfg,
		breakerCfg:   breakerCfg,
		client:       &http.Client{Timeout: visionCfg.RequestTimeout},
		breakers:     make(map[string]*breaker.Breaker),
		labelCache:   cache.New[[]domain.ImageLabel](cacheCfg.BudgetBytes, cacheCfg.DefaultTTL),
		qualityCache: cache.New[usecase.QualityAssessment](cacheCfg.BudgetBytes, cacheCfg.DefaultTTL),
		logger:       logger,
	}
}

// breakerFor возвращает breaker тенанта, создавая его из параметров настроек.
// Нулевые параметры заменяются процессными значениями по умолчанию; параметры
// фиксируются при первом обращении тенанта и живут до перезапуска процесса.
func (s *Service) breakerFor(settings *domain.TenantSettings) *breaker.Breaker {
	var tenantID string
	if settings != nil {
		tenantID = settings.TenantID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if br, ok := s.breakers[tenantID]; ok {
		return br
	}

	failure := s.breakerCfg.FailureThreshold
	success := s.breakerCfg.SuccessThreshold
	cooldown := s.breakerCfg.Cooldown
	if settings != nil {
		if settings.BreakerFailureThreshold > 0 {
			failure = settings.BreakerFailureThreshold
		}
		if settings.BreakerSuccessThreshold > 0 {
			success = settings.BreakerSuccessThreshold
		}
		if settings.BreakerCooldown > 0 {
			cooldown = settings.BreakerCooldown
		}
	}

	br := breaker.New(failure, success, cooldown)
	s.breakers[tenantID] = br

	return br
}

type labelResponse struct {
	Labels []struct {
		Name       string  `json:"name"`
		Confidence float64 `json:"confidence"`
	} `json:"labels"`
}

type qualityResponse struct {
	ConditionScore float64 `json:"condition_score"`
	PricingImpact  string  `json:"pricing_impact"`
	Multiplier     float64 `json:"multiplier"`
	PhotoQuality   string  `json:"photo_quality"`
}

// DetectLabels возвращает метки изображения с уверенностью не ниже порога.
// Открытый breaker, сетевой сбой или битый ответ дают пустой список.
func (s *Service) DetectLabels(ctx context.Context, settings *domain.TenantSettings, image []byte) []domain.ImageLabel {
	const op = "vision.Service.DetectLabels"

	key := cache.Key(cache.NamespaceLabelDetection, image)
	if cached, ok := s.labelCache.Get(key); ok {
		return cached
	}

	var res labelResponse
	err := s.breakerFor(settings).Do(ctx, func(ctx context.Context) error {
		return s.postImage(ctx, s.cfg.LabelEndpoint, image, &res)
	})
	if err != nil {
		s.logger.Warnf("Label detection degraded to empty result: %v", e.Wrap(op, err))
		return nil
	}

	labels := make([]domain.ImageLabel, 0, len(res.Labels))
	for _, l := range res.Labels {
		if l.Confidence < s.cfg.MinLabelConfidence {
			continue
		}
		labels = append(labels, domain.ImageLabel{Name: l.Name, Confidence: l.Confidence})
	}

	s.labelCache.Set(key, labels, labelsSize(labels), 0)
	return labels
}

// AssessQuality возвращает оценку визуального качества фотографии.
// Любой сбой и любое значение вне допустимых границ дают нейтральный результат.
func (s *Service) AssessQuality(ctx context.Context, settings *domain.TenantSettings, image []byte) usecase.QualityAssessment {
	const op = "vision.Service.AssessQuality"

	key := cache.Key(cache.NamespaceModelAnalysis, image)
	if cached, ok := s.qualityCache.Get(key); ok {
		return cached
	}

	var res qualityResponse
	err := s.breakerFor(settings).Do(ctx, func(ctx context.Context) error {
		return s.postImage(ctx, s.cfg.QualityEndpoint, image, &res)
	})
	if err != nil {
		s.logger.Warnf("Quality assessment degraded to neutral: %v", e.Wrap(op, err))
		return usecase.NeutralQualityAssessment()
	}

	assessment := usecase.QualityAssessment{
		ConditionScore: res.ConditionScore,
		PricingImpact:  res.PricingImpact,
		Multiplier:     res.Multiplier,
		PhotoQuality:   res.PhotoQuality,
	}
	if !validAssessment(assessment) {
		s.logger.Warnf("Quality assessment out of bounds, degraded to neutral. score: %f, multiplier: %f",
			res.ConditionScore, res.Multiplier)
		return usecase.NeutralQualityAssessment()
	}

	s.qualityCache.Set(key, assessment, int64(len(image)/64+1), 0)
	return assessment
}

// postImage отправляет изображение и декодирует JSON-ответ с лимитом размера.
func (s *Service) postImage(ctx context.Context, endpoint string, image []byte, out any) error {
	payload, err := json.Marshal(map[string][]byte{"image": image})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return e.Dependency(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return e.Dependency(fmt.Sprintf("vision service returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.cfg.MaxResponseBytes+1))
	if err != nil {
		return e.Dependency(err.Error())
	}
	if int64(len(body)) > s.cfg.MaxResponseBytes {
		return e.ErrResponseTooLarge
	}

	if err := json.Unmarshal(body, out); err != nil {
		return e.Data("malformed vision response")
	}

	return nil
}

func validAssessment(a usecase.QualityAssessment) bool {
	if a.ConditionScore < 0 || a.ConditionScore > 1 {
		return false
	}
	if a.Multiplier < 0.75 || a.Multiplier > 1.15 {
		return false
	}
	return true
}

func labelsSize(labels []domain.ImageLabel) int64 {
	var size int64
	for _, l := range labels {
		size += int64(len(l.Name)) + 8
	}
	return size + 1
}
