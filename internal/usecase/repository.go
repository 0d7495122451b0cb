package usecase

import (
	"context"

	"github.com/DRSN-tech/go-similarity/internal/domain"
)

type GroupRepository interface {
	Create(ctx context.Context, group *domain.ProductGroup) (*domain.ProductGroup, error)
	GetByID(ctx context.Context, tenantID, groupID string) (*domain.ProductGroup, error)
	// AppendMember атомарно добавляет изображение в группу (compare-and-set),
	// возвращает false, если изображение уже состоит в группе.
	AppendMember(ctx context.Context, tenantID, groupID, imageID string) (bool, error)
}

type SaleRepository interface {
	GetByIDs(ctx context.Context, tenantID string, ids []string) ([]domain.SaleRecord, error)
}

type SettingsRepository interface {
	// Get возвращает nil без ошибки, если настроек для тенанта нет.
	Get(ctx context.Context, tenantID string) (*domain.TenantSettings, error)
}

type SettingsCacheRepository interface {
	GetSettings(ctx context.Context, tenantID string) (*domain.TenantSettings, error)
	SetSettings(ctx context.Context, settings *domain.TenantSettings) error
}

type CorpusRepository interface {
	// UpsertListings сохраняет векторы изображений; groupIDs сопоставляет
	// image id -> group id для изображений, уже состоящих в группе.
	UpsertListings(ctx context.Context, vectors []domain.EmbeddingVector, groupIDs map[string]string) error
	SearchListings(ctx context.Context, req *CorpusSearchReq) ([]CorpusMatch, error)
	SearchSales(ctx context.Context, req *CorpusSearchReq) ([]CorpusMatch, error)
	// ListListings постранично обходит корпус тенанта (continuation token).
	ListListings(ctx context.Context, req *CorpusPageReq) (*CorpusPage, error)
}

type ImageRepository interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, image *domain.Image) error
}

type OutboxRepository interface {
	Create(ctx context.Context, event *OutboxEvent) (*OutboxEvent, error)
	GetAndMarkAsProcessing(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkAsProcessed(ctx context.Context, id int64) error
}
