package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DRSN-tech/go-similarity/internal/domain"
	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTx — минимальный pgx.Tx для транзакционного контура: репозитории
// в тестах подменены и до соединения не доходят.
type stubTx struct {
	committed  bool
	rolledBack bool
}

func (t *stubTx) Begin(_ context.Context) (pgx.Tx, error) { return t, nil }

func (t *stubTx) Commit(_ context.Context) error {
	t.committed = true
	return nil
}

func (t *stubTx) Rollback(_ context.Context) error {
	t.rolledBack = true
	return nil
}

func (t *stubTx) CopyFrom(_ context.Context, _ pgx.Identifier, _ []string, _ pgx.CopyFromSource) (int64, error) {
	return 0, nil
}

func (t *stubTx) SendBatch(_ context.Context, _ *pgx.Batch) pgx.BatchResults { return nil }

func (t *stubTx) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }

func (t *stubTx) Prepare(_ context.Context, _, _ string) (*pgconn.StatementDescription, error) {
	return nil, nil
}

func (t *stubTx) Exec(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (t *stubTx) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) { return nil, nil }

func (t *stubTx) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row { return nil }

func (t *stubTx) Conn() *pgx.Conn { return nil }

type stubPool struct {
	tx *stubTx
}

func (p *stubPool) Begin(_ context.Context) (pgx.Tx, error) { return p.tx, nil }

func (p *stubPool) BeginTx(_ context.Context, _ pgx.TxOptions) (pgx.Tx, error) {
	return p.tx, nil
}

type fakeGroupRepo struct {
	groups     map[string]*domain.ProductGroup
	created    []*domain.ProductGroup
	appendErr  error
	appended   []string
	duplicates map[string]bool
}

func newFakeGroupRepo() *fakeGroupRepo {
	return &fakeGroupRepo{
		groups:     make(map[string]*domain.ProductGroup),
		duplicates: make(map[string]bool),
	}
}

func (r *fakeGroupRepo) Create(_ context.Context, group *domain.ProductGroup) (*domain.ProductGroup, error) {
	r.created = append(r.created, group)
	r.groups[group.ID] = group
	return group, nil
}

func (r *fakeGroupRepo) GetByID(_ context.Context, _, groupID string) (*domain.ProductGroup, error) {
	return r.groups[groupID], nil
}

func (r *fakeGroupRepo) AppendMember(_ context.Context, _, groupID, imageID string) (bool, error) {
	if r.appendErr != nil {
		return false, r.appendErr
	}
	if r.duplicates[imageID] {
		return false, nil
	}

	r.appended = append(r.appended, imageID)
	if g, ok := r.groups[groupID]; ok {
		g.MemberImageIDs = append(g.MemberImageIDs, imageID)
	}

	return true, nil
}

type fakeImageRepo struct {
	objects   map[string][]byte
	fetches   int
	uploaded  []*domain.Image
	uploadErr error
}

func (r *fakeImageRepo) Fetch(_ context.Context, key string) ([]byte, error) {
	r.fetches++
	data, ok := r.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (r *fakeImageRepo) Upload(_ context.Context, image *domain.Image) error {
	if r.uploadErr != nil {
		return r.uploadErr
	}
	r.uploaded = append(r.uploaded, image)
	r.objects[image.ObjectKey] = image.Data
	return nil
}

type fakeOutboxRepo struct {
	events []*OutboxEvent
	err    error
}

func (r *fakeOutboxRepo) Create(_ context.Context, event *OutboxEvent) (*OutboxEvent, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.events = append(r.events, event)
	return event, nil
}

func (r *fakeOutboxRepo) GetAndMarkAsProcessing(_ context.Context, _ int) ([]*OutboxEvent, error) {
	return nil, nil
}

func (r *fakeOutboxRepo) MarkAsProcessed(_ context.Context, _ int64) error { return nil }

// fakeEmbedding отдаёт заранее заданные векторы по id изображения;
// изображения без вектора попадают в Errors, как делает настоящий генератор.
type fakeEmbedding struct {
	vectors map[string][]float32
}

func (f *fakeEmbedding) Generate(_ context.Context, req *GenerateEmbeddingsReq) (*GenerateEmbeddingsRes, error) {
	res := NewGenerateEmbeddingsRes(make(map[string]domain.EmbeddingVector), make([]ImageError, 0))
	for _, img := range req.Images {
		vec, ok := f.vectors[img.ID]
		if !ok {
			res.Errors = append(res.Errors, NewImageError(img.ID, "embedding generation failed"))
			continue
		}
		res.Embeddings[img.ID] = domain.EmbeddingVector{
			ImageID:  img.ID,
			TenantID: req.TenantID,
			ModelID:  req.ModelID,
			Vector:   vec,
		}
	}
	return res, nil
}

type groupingFixture struct {
	uc        *GroupingUseCase
	groupRepo *fakeGroupRepo
	corpus    *fakeCorpusRepo
	imageRepo *fakeImageRepo
	outbox    *fakeOutboxRepo
	embedding *fakeEmbedding
	tx        *stubTx
	settings  *domain.TenantSettings
}

func newGroupingFixture() *groupingFixture {
	f := &groupingFixture{
		groupRepo: newFakeGroupRepo(),
		corpus:    &fakeCorpusRepo{},
		imageRepo: &fakeImageRepo{objects: make(map[string][]byte)},
		outbox:    &fakeOutboxRepo{},
		embedding: &fakeEmbedding{vectors: make(map[string][]float32)},
		tx:        &stubTx{},
		settings:  domain.DefaultTenantSettings("tenant-1"),
	}

	f.uc = NewGroupingUC(
		f.groupRepo,
		f.corpus,
		f.imageRepo,
		f.outbox,
		f.embedding,
		&fakeVision{},
		testSettingsService(f.settings),
		&stubPool{tx: f.tx},
		logger.NewNopLogger(),
	)

	return f
}

func TestGroupImages_ValidatesRequest(t *testing.T) {
	f := newGroupingFixture()
	ctx := context.Background()

	_, err := f.uc.GroupImages(ctx, &GroupImagesReq{
		Images: []InputImage{{ID: "img-1", Data: []byte("a")}},
	})
	assert.ErrorIs(t, err, e.ErrTenantRequired)

	_, err = f.uc.GroupImages(ctx, &GroupImagesReq{TenantID: "tenant-1"})
	assert.ErrorIs(t, err, e.ErrNoImages)

	_, err = f.uc.GroupImages(ctx, &GroupImagesReq{
		TenantID: "tenant-1",
		Images: []InputImage{
			{ID: "img-1", Data: []byte("a")},
			{ID: "img-1", Data: []byte("b")},
		},
	})
	assert.ErrorIs(t, err, e.ErrDuplicateImageID)

	_, err = f.uc.GroupImages(ctx, &GroupImagesReq{
		TenantID: "tenant-1",
		Images:   []InputImage{{ID: "img-1"}},
	})
	assert.Error(t, err)
}

func TestGroupImages_ClustersSimilarImagesIntoNewGroup(t *testing.T) {
	f := newGroupingFixture()

	// img-1 и img-2 почти совпадают, img-3 ортогонален
	f.embedding.vectors["img-1"] = []float32{1, 0, 0}
	f.embedding.vectors["img-2"] = []float32{0.999, 0.045, 0}
	f.embedding.vectors["img-3"] = []float32{0, 1, 0}

	res, err := f.uc.GroupImages(context.Background(), &GroupImagesReq{
		TenantID: "tenant-1",
		Images: []InputImage{
			{ID: "img-1", Data: []byte("a")},
			{ID: "img-2", Data: []byte("b")},
			{ID: "img-3", Data: []byte("c")},
		},
	})

	require.NoError(t, err)
	require.Len(t, res.Groups, 1)
	assert.ElementsMatch(t, []string{"img-1", "img-2"}, res.Groups[0].MemberImageIDs)
	assert.Equal(t, []string{"img-3"}, res.Ungrouped)
	assert.Empty(t, res.Errors)

	assert.True(t, f.tx.committed)
	require.Len(t, f.outbox.events, 1)
	assert.Equal(t, OutboxEventGroupCreated, f.outbox.events[0].EventType)

	// Векторы сгруппированных изображений уходят в корпус с id группы
	assert.Equal(t, 1, f.corpus.upsertCalls)
	assert.Equal(t, res.Groups[0].ID, f.corpus.lastUpsertIDs["img-1"])
	assert.Equal(t, res.Groups[0].ID, f.corpus.lastUpsertIDs["img-2"])
}

func TestGroupImages_AppendsToExistingGroupOnCorpusMatch(t *testing.T) {
	f := newGroupingFixture()

	existing := domain.NewProductGroup("tenant-1", "img-0", []string{"img-0"}, 0.97)
	f.groupRepo.groups[existing.ID] = existing
	f.corpus.listings = []CorpusMatch{
		{ImageID: "img-0", GroupID: existing.ID, Score: 0.96},
	}
	f.embedding.vectors["img-1"] = []float32{1, 0, 0}

	res, err := f.uc.GroupImages(context.Background(), &GroupImagesReq{
		TenantID: "tenant-1",
		Images:   []InputImage{{ID: "img-1", Data: []byte("a")}},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"img-1"}, f.groupRepo.appended)
	assert.Empty(t, f.groupRepo.created)

	require.Len(t, res.Groups, 1)
	assert.Equal(t, existing.ID, res.Groups[0].ID)
	assert.Contains(t, res.Groups[0].MemberImageIDs, "img-1")

	require.Len(t, f.outbox.events, 1)
	assert.Equal(t, OutboxEventGroupUpdated, f.outbox.events[0].EventType)
	assert.Equal(t, existing.ID, f.corpus.lastUpsertIDs["img-1"])
}

func TestGroupImages_BelowThresholdMatchGoesToClustering(t *testing.T) {
	f := newGroupingFixture()

	// Совпадение ниже порога same_product не присоединяет к группе
	f.corpus.listings = []CorpusMatch{
		{ImageID: "img-0", GroupID: "group-1", Score: 0.88},
	}
	f.embedding.vectors["img-1"] = []float32{1, 0, 0}

	res, err := f.uc.GroupImages(context.Background(), &GroupImagesReq{
		TenantID: "tenant-1",
		Images:   []InputImage{{ID: "img-1", Data: []byte("a")}},
	})

	require.NoError(t, err)
	assert.Empty(t, f.groupRepo.appended)
	assert.Empty(t, res.Groups)
	assert.Equal(t, []string{"img-1"}, res.Ungrouped)
}

func TestGroupImages_RepeatAppendDoesNotEmitEvent(t *testing.T) {
	f := newGroupingFixture()

	existing := domain.NewProductGroup("tenant-1", "img-0", []string{"img-0", "img-1"}, 0.97)
	f.groupRepo.groups[existing.ID] = existing
	f.groupRepo.duplicates["img-1"] = true
	f.corpus.listings = []CorpusMatch{
		{ImageID: "img-0", GroupID: existing.ID, Score: 0.96},
	}
	f.embedding.vectors["img-1"] = []float32{1, 0, 0}

	res, err := f.uc.GroupImages(context.Background(), &GroupImagesReq{
		TenantID: "tenant-1",
		Images:   []InputImage{{ID: "img-1", Data: []byte("a")}},
	})

	require.NoError(t, err)
	require.Len(t, res.Groups, 1)
	assert.Empty(t, f.outbox.events)
}

func TestGroupImages_ObjectStorageFailureIsPerImage(t *testing.T) {
	f := newGroupingFixture()

	f.imageRepo.objects["listings/ok.jpg"] = []byte("fetched bytes")
	f.embedding.vectors["img-1"] = []float32{1, 0, 0}
	f.embedding.vectors["img-2"] = []float32{0, 1, 0}

	res, err := f.uc.GroupImages(context.Background(), &GroupImagesReq{
		TenantID: "tenant-1",
		Images: []InputImage{
			{ID: "img-1", ObjectKey: "listings/ok.jpg"},
			{ID: "img-2", ObjectKey: "listings/missing.jpg"},
		},
	})

	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "img-2", res.Errors[0].ImageID)
	assert.Equal(t, []string{"img-1"}, res.Ungrouped)
	assert.Equal(t, 2, f.imageRepo.fetches)
}

func TestGroupImages_EmbeddingFailureIsPerImage(t *testing.T) {
	f := newGroupingFixture()

	f.embedding.vectors["img-1"] = []float32{1, 0, 0}
	f.embedding.vectors["img-2"] = []float32{0.999, 0.045, 0}
	// img-3 вектора не получает

	res, err := f.uc.GroupImages(context.Background(), &GroupImagesReq{
		TenantID: "tenant-1",
		Images: []InputImage{
			{ID: "img-1", Data: []byte("a")},
			{ID: "img-2", Data: []byte("b")},
			{ID: "img-3", Data: []byte("c")},
		},
	})

	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "img-3", res.Errors[0].ImageID)
	require.Len(t, res.Groups, 1)
	assert.ElementsMatch(t, []string{"img-1", "img-2"}, res.Groups[0].MemberImageIDs)
}

func TestGroupImages_CorpusSearchFailureDegradesToClustering(t *testing.T) {
	f := newGroupingFixture()

	f.corpus.listingsErr = errors.New("qdrant unavailable")
	f.embedding.vectors["img-1"] = []float32{1, 0, 0}
	f.embedding.vectors["img-2"] = []float32{0.999, 0.045, 0}

	res, err := f.uc.GroupImages(context.Background(), &GroupImagesReq{
		TenantID: "tenant-1",
		Images: []InputImage{
			{ID: "img-1", Data: []byte("a")},
			{ID: "img-2", Data: []byte("b")},
		},
	})

	require.NoError(t, err)
	require.Len(t, res.Groups, 1)
	assert.ElementsMatch(t, []string{"img-1", "img-2"}, res.Groups[0].MemberImageIDs)
}

func TestGroupImages_OutboxEventCarriesGroupPayload(t *testing.T) {
	f := newGroupingFixture()

	f.embedding.vectors["img-1"] = []float32{1, 0, 0}
	f.embedding.vectors["img-2"] = []float32{0.999, 0.045, 0}

	res, err := f.uc.GroupImages(context.Background(), &GroupImagesReq{
		TenantID: "tenant-1",
		Images: []InputImage{
			{ID: "img-1", Data: []byte("a")},
			{ID: "img-2", Data: []byte("b")},
		},
	})

	require.NoError(t, err)
	require.Len(t, f.outbox.events, 1)

	var payload GroupEventPayload
	require.NoError(t, json.Unmarshal(f.outbox.events[0].Payload, &payload))
	assert.Equal(t, string(OutboxEventGroupCreated), payload.EventType)
	assert.Equal(t, "tenant-1", payload.TenantID)
	assert.Equal(t, res.Groups[0].ID, payload.GroupID)
	assert.ElementsMatch(t, []string{"img-1", "img-2"}, payload.MemberImageIDs)
	assert.NotZero(t, payload.EventTimestamp)
}

func TestListCorpus_PagesThroughTenantCorpus(t *testing.T) {
	f := newGroupingFixture()

	f.corpus.page = &CorpusPage{
		Listings: []CorpusListing{
			{ImageID: "img-1", GroupID: "group-1", ModelID: "titan-multimodal-v1"},
			{ImageID: "img-2", ModelID: "titan-multimodal-v1"},
		},
		NextPageToken: "tok-2",
	}

	page, err := f.uc.ListCorpus(context.Background(), &CorpusPageReq{
		TenantID:  "tenant-1",
		PageToken: "tok-1",
	})

	require.NoError(t, err)
	assert.Len(t, page.Listings, 2)
	assert.Equal(t, "tok-2", page.NextPageToken)

	// Лимит по умолчанию подставляется до похода в хранилище
	require.NotNil(t, f.corpus.lastPageReq)
	assert.Equal(t, 100, f.corpus.lastPageReq.Limit)
	assert.Equal(t, "tok-1", f.corpus.lastPageReq.PageToken)

	_, err = f.uc.ListCorpus(context.Background(), &CorpusPageReq{})
	assert.ErrorIs(t, err, e.ErrTenantRequired)
}

func TestGroupImages_PersistsInlinedImagesToObjectStorage(t *testing.T) {
	f := newGroupingFixture()

	f.imageRepo.objects["listings/stored.jpg"] = []byte("already stored")
	f.embedding.vectors["img-1"] = []float32{1, 0, 0}
	f.embedding.vectors["img-2"] = []float32{0, 1, 0}

	_, err := f.uc.GroupImages(context.Background(), &GroupImagesReq{
		TenantID: "tenant-1",
		Images: []InputImage{
			{ID: "img-1", Data: []byte("inline bytes")},
			{ID: "img-2", ObjectKey: "listings/stored.jpg"},
		},
	})

	require.NoError(t, err)

	// В хранилище уходят только байты из запроса; изображения, пришедшие
	// ключом, повторно не загружаются
	require.Len(t, f.imageRepo.uploaded, 1)
	img := f.imageRepo.uploaded[0]
	assert.Equal(t, "img-1", img.ID)
	assert.Equal(t, "tenant-1/img-1", img.ObjectKey)
	assert.Equal(t, []byte("inline bytes"), img.Data)
	assert.NotEmpty(t, img.ContentType)
}

func TestGroupImages_ImageUploadFailureDoesNotFailRequest(t *testing.T) {
	f := newGroupingFixture()

	f.imageRepo.uploadErr = errors.New("minio unavailable")
	f.embedding.vectors["img-1"] = []float32{1, 0, 0}
	f.embedding.vectors["img-2"] = []float32{0.999, 0.045, 0}

	res, err := f.uc.GroupImages(context.Background(), &GroupImagesReq{
		TenantID: "tenant-1",
		Images: []InputImage{
			{ID: "img-1", Data: []byte("a")},
			{ID: "img-2", Data: []byte("b")},
		},
	})

	require.NoError(t, err)
	require.Len(t, res.Groups, 1)
	assert.True(t, f.tx.committed)
	assert.Empty(t, res.Errors)
}

func TestGroupImages_UpsertFailureDoesNotFailRequest(t *testing.T) {
	f := newGroupingFixture()

	f.corpus.upsertErr = errors.New("qdrant write failed")
	f.embedding.vectors["img-1"] = []float32{1, 0, 0}
	f.embedding.vectors["img-2"] = []float32{0.999, 0.045, 0}

	res, err := f.uc.GroupImages(context.Background(), &GroupImagesReq{
		TenantID: "tenant-1",
		Images: []InputImage{
			{ID: "img-1", Data: []byte("a")},
			{ID: "img-2", Data: []byte("b")},
		},
	})

	require.NoError(t, err)
	require.Len(t, res.Groups, 1)
	assert.True(t, f.tx.committed)
}
