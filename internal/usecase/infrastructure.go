package usecase

import (
	"context"

	"github.com/DRSN-tech/go-similarity/internal/domain"
)

type EmbeddingInfra interface {
	Generate(ctx context.Context, req *GenerateEmbeddingsReq) (*GenerateEmbeddingsRes, error)
}

type VisionInfra interface {
	// DetectLabels возвращает метки изображения; breaker берётся из настроек
	// тенанта, при сбое внешнего сервиса или открытом breaker-е возвращается
	// пустой список без ошибки.
	DetectLabels(ctx context.Context, settings *domain.TenantSettings, image []byte) []domain.ImageLabel
	// AssessQuality возвращает оценку визуального качества. Любой сбой даёт
	// нейтральный результат: сигнал лишь корректирует цену и не должен
	// блокировать основной поток.
	AssessQuality(ctx context.Context, settings *domain.TenantSettings, image []byte) QualityAssessment
}

type MessageProducer interface {
	WriteRawMessage(ctx context.Context, req *WriteRawMessageReq) error
}
