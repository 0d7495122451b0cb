package usecase

import (
	"time"

	"github.com/DRSN-tech/go-similarity/internal/domain"
)

// GROUPING USECASE

// InputImage — изображение на входе группировки: либо байты, либо ключ объекта в S3.
type InputImage struct {
	ID        string
	Data      []byte
	ObjectKey string
}

// GroupImagesReq — запрос на группировку изображений одного тенанта.
type GroupImagesReq struct {
	TenantID string
	Images   []InputImage
}

// ImageError — изображение, выброшенное из обработки, с причиной.
type ImageError struct {
	ImageID string
	Reason  string
}

// GroupImagesRes — результат группировки: группы, одиночные изображения
// и ошибки по отдельным изображениям. Частичный сбой не валит запрос целиком.
type GroupImagesRes struct {
	Groups    []domain.ProductGroup
	Ungrouped []string
	Errors    []ImageError
}

// PRICING USECASE

// SuggestPriceReq — запрос рекомендации цены по вектору нового товара.
type SuggestPriceReq struct {
	TenantID  string
	Embedding []float32
	Category  string
	Condition string
	Language  string // код языка отображения, определяет валюту
	ImageData []byte // опционально: байты фото для оценки визуального качества
}

// SuggestPriceRes — ответ с рекомендацией цены.
type SuggestPriceRes struct {
	Suggestion *domain.PriceSuggestion
}

// QualityAssessment — оценка визуального качества фотографии товара.
type QualityAssessment struct {
	ConditionScore float64 // [0, 1]
	PricingImpact  string  // positive | neutral | negative
	Multiplier     float64 // [0.75, 1.15]
	PhotoQuality   string  // good | poor | unknown
}

// NeutralQualityAssessment — документированный нейтральный результат,
// возвращаемый при любом сбое внешней оценки качества.
func NeutralQualityAssessment() QualityAssessment {
	return QualityAssessment{
		ConditionScore: 0.5,
		PricingImpact:  "neutral",
		Multiplier:     1.0,
		PhotoQuality:   "unknown",
	}
}

// INFRASTRUCTURE

// GenerateEmbeddingsReq — запрос на векторизацию набора изображений.
type GenerateEmbeddingsReq struct {
	TenantID string
	ModelID  string
	Images   []InputImage
}

// GenerateEmbeddingsRes — результат векторизации: карта векторов по id изображения
// и список ошибок по отдельным изображениям. Частичный сбой не является ошибкой вызова.
type GenerateEmbeddingsRes struct {
	Embeddings map[string]domain.EmbeddingVector
	Errors     []ImageError
}

// WriteRawMessageReq — запрос на отправку готового сообщения в брокер.
type WriteRawMessageReq struct {
	GroupID string
	Payload []byte
}

// GroupEventPayload — тело события об изменении группы для downstream-потребителей.
type GroupEventPayload struct {
	EventID        string   `json:"event_id"`
	EventType      string   `json:"event_type"`
	TenantID       string   `json:"tenant_id"`
	GroupID        string   `json:"group_id"`
	PrimaryImageID string   `json:"primary_image_id"`
	MemberImageIDs []string `json:"member_image_ids"`
	Confidence     float64  `json:"confidence"`
	EventTimestamp int64    `json:"event_timestamp"`
}

// REPOSITORIES

// CorpusSearchReq — запрос поиска по векторному корпусу тенанта.
type CorpusSearchReq struct {
	TenantID       string
	Vector         []float32
	Limit          int
	MinScore       float64
	Category       string // опциональный фильтр
	ExcludeImageID string
}

// CorpusMatch — одно совпадение векторного поиска.
type CorpusMatch struct {
	ImageID string
	SaleID  string
	GroupID string
	Score   float64
}

// CorpusPageReq — постраничный обход корпуса тенанта. Пустой PageToken
// начинает обход с начала; токен следующей страницы приходит в ответе.
type CorpusPageReq struct {
	TenantID  string
	Limit     int
	PageToken string
}

// CorpusListing — одна запись корпуса без самого вектора.
type CorpusListing struct {
	ImageID string
	GroupID string
	ModelID string
}

// CorpusPage — страница корпуса. Пустой NextPageToken означает конец обхода.
type CorpusPage struct {
	Listings      []CorpusListing
	NextPageToken string
}

// OUTBOX

type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusProcessed  OutboxStatus = "processed"
)

type OutboxEventType string

const (
	OutboxEventGroupCreated OutboxEventType = "group_created"
	OutboxEventGroupUpdated OutboxEventType = "group_updated"
)

// OutboxEvent — событие в transactional outbox, публикуемое воркером в Kafka.
type OutboxEvent struct {
	ID        int64
	EventID   string
	EventType OutboxEventType
	TenantID  string
	GroupID   string
	Payload   []byte
	Status    OutboxStatus
	CreatedAt time.Time
}

// MAPPERS

func NewGroupImagesReq(tenantID string, images []InputImage) *GroupImagesReq {
	return &GroupImagesReq{
		TenantID: tenantID,
		Images:   images,
	}
}

func NewGroupImagesRes(groups []domain.ProductGroup, ungrouped []string, errors []ImageError) *GroupImagesRes {
	return &GroupImagesRes{
		Groups:    groups,
		Ungrouped: ungrouped,
		Errors:    errors,
	}
}

func NewImageError(imageID string, reason string) ImageError {
	return ImageError{
		ImageID: imageID,
		Reason:  reason,
	}
}

func NewGenerateEmbeddingsReq(tenantID, modelID string, images []InputImage) *GenerateEmbeddingsReq {
	return &GenerateEmbeddingsReq{
		TenantID: tenantID,
		ModelID:  modelID,
		Images:   images,
	}
}

func NewGenerateEmbeddingsRes(embeddings map[string]domain.EmbeddingVector, errors []ImageError) *GenerateEmbeddingsRes {
	return &GenerateEmbeddingsRes{
		Embeddings: embeddings,
		Errors:     errors,
	}
}

func NewWriteRawMessageReq(groupID string, payload []byte) *WriteRawMessageReq {
	return &WriteRawMessageReq{
		GroupID: groupID,
		Payload: payload,
	}
}

func NewOutboxEvent(eventID string, eventType OutboxEventType, tenantID, groupID string, payload []byte) *OutboxEvent {
	return &OutboxEvent{
		EventID:   eventID,
		EventType: eventType,
		TenantID:  tenantID,
		GroupID:   groupID,
		Payload:   payload,
		Status:    OutboxStatusPending,
		CreatedAt: time.Now().UTC(),
	}
}
