package domain

import (
	"math"
	"time"

	"github.com/DRSN-tech/go-similarity/pkg/e"
)

// Payload описывает дополнительную информацию вектора
type Payload map[string]any

// EmbeddingVector представляет вектор-эмбеддинг одного изображения.
// Два вектора сравнимы только при совпадении размерностей.
type EmbeddingVector struct {
	ImageID   string
	TenantID  string
	ModelID   string
	Vector    []float32
	CreatedAt time.Time
}

func NewEmbeddingVector(imageID, tenantID, modelID string, vector []float32) *EmbeddingVector {
	return &EmbeddingVector{
		ImageID:   imageID,
		TenantID:  tenantID,
		ModelID:   modelID,
		Vector:    vector,
		CreatedAt: time.Now().UTC(),
	}
}

// ValidateVector проверяет, что вектор непустой и все компоненты конечны.
// Не-конечные значения — ошибка валидации, а не «тихий ноль» при сравнении.
func ValidateVector(vector []float32) error {
	if len(vector) == 0 {
		return e.ErrEmptyVector
	}

	for _, c := range vector {
		f := float64(c)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return e.ErrNonFiniteVector
		}
	}

	return nil
}

func NewPayload(tenantID, imageID, modelID, groupID string) Payload {
	return Payload{
		"tenant_id":  tenantID,
		"image_id":   imageID,
		"model_id":   modelID,
		"group_id":   groupID,
		"created_at": time.Now().UTC().UnixNano(),
	}
}
