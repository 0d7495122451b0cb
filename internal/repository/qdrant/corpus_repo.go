package qdrant

import (
	"context"

	"github.com/DRSN-tech/go-similarity/internal/cfg"
	"github.com/DRSN-tech/go-similarity/internal/domain"
	"github.com/DRSN-tech/go-similarity/internal/usecase"
	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
)

// CorpusRepo — векторный корпус тенантов в Qdrant: коллекция активных
// изображений и коллекция проданных товаров. Поиск всегда фильтруется
// по tenant_id, чтобы корпусы тенантов не пересекались.
type CorpusRepo struct {
	client *qdrant.Client
	cfg    *cfg.QdrantCfg
}

func NewCorpusRepo(client *qdrant.Client, cfg *cfg.QdrantCfg) *CorpusRepo {
	return &CorpusRepo{
		client: client,
		cfg:    cfg,
	}
}

// UpsertListings сохраняет векторы изображений в коллекцию активных объявлений.
// groupIDs сопоставляет image id -> group id для изображений, уже состоящих в группе.
func (q *CorpusRepo) UpsertListings(ctx context.Context, vectors []domain.EmbeddingVector, groupIDs map[string]string) error {
	points := make([]*qdrant.PointStruct, 0, len(vectors))
	for _, vector := range vectors {
		payload := domain.NewPayload(vector.TenantID, vector.ImageID, vector.ModelID, groupIDs[vector.ImageID])
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(vector.ImageID),
			Vectors: qdrant.NewVectors(vector.Vector...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.cfg.ListingCollection,
		Points:         points,
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// SearchListings ищет схожие изображения в коллекции активных объявлений.
func (q *CorpusRepo) SearchListings(ctx context.Context, req *usecase.CorpusSearchReq) ([]usecase.CorpusMatch, error) {
	return q.search(ctx, q.cfg.ListingCollection, req)
}

// SearchSales ищет визуально схожие проданные товары.
func (q *CorpusRepo) SearchSales(ctx context.Context, req *usecase.CorpusSearchReq) ([]usecase.CorpusMatch, error) {
	return q.search(ctx, q.cfg.SalesCollection, req)
}

// ListListings постранично обходит корпус тенанта. Токен продолжения —
// идентификатор точки, с которой начинается следующая страница; его отдаёт
// сам Qdrant в next_page_offset.
func (q *CorpusRepo) ListListings(ctx context.Context, req *usecase.CorpusPageReq) (*usecase.CorpusPage, error) {
	scroll := &qdrant.ScrollPoints{
		CollectionName: q.cfg.ListingCollection,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("tenant_id", req.TenantID),
			},
		},
		Limit:       qdrant.PtrOf(uint32(req.Limit)),
		WithPayload: qdrant.NewWithPayload(true),
	}
	if req.PageToken != "" {
		scroll.Offset = qdrant.NewIDUUID(req.PageToken)
	}

	resp, err := q.client.GetPointsClient().Scroll(ctx, scroll)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	result := resp.GetResult()
	page := &usecase.CorpusPage{
		Listings: make([]usecase.CorpusListing, 0, len(result)),
	}
	for _, p := range result {
		payload := p.GetPayload()
		page.Listings = append(page.Listings, usecase.CorpusListing{
			ImageID: payload["image_id"].GetStringValue(),
			GroupID: payload["group_id"].GetStringValue(),
			ModelID: payload["model_id"].GetStringValue(),
		})
	}
	page.NextPageToken = resp.GetNextPageOffset().GetUuid()

	return page, nil
}

func (q *CorpusRepo) search(ctx context.Context, collection string, req *usecase.CorpusSearchReq) ([]usecase.CorpusMatch, error) {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("tenant_id", req.TenantID),
		},
	}
	if req.Category != "" {
		filter.Must = append(filter.Must, qdrant.NewMatch("category", req.Category))
	}
	if req.ExcludeImageID != "" {
		filter.MustNot = append(filter.MustNot, qdrant.NewMatch("image_id", req.ExcludeImageID))
	}

	limit := uint64(req.Limit)
	scoreThreshold := float32(req.MinScore)

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(req.Vector...),
		Filter:         filter,
		Limit:          &limit,
		ScoreThreshold: &scoreThreshold,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	matches := make([]usecase.CorpusMatch, 0, len(points))
	for _, p := range points {
		payload := p.GetPayload()
		matches = append(matches, usecase.CorpusMatch{
			ImageID: payload["image_id"].GetStringValue(),
			SaleID:  payload["sale_id"].GetStringValue(),
			GroupID: payload["group_id"].GetStringValue(),
			Score:   float64(p.GetScore()),
		})
	}

	return matches, nil
}
