package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DRSN-tech/go-similarity/internal/cfg"
	"github.com/DRSN-tech/go-similarity/internal/domain"
	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCorpusRepo struct {
	listings      []CorpusMatch
	sales         []CorpusMatch
	listingsErr   error
	salesErr      error
	upsertErr     error
	lastSalesReq  *CorpusSearchReq
	lastUpsertIDs map[string]string
	upsertCalls   int
	page          *CorpusPage
	pageErr       error
	lastPageReq   *CorpusPageReq
}

func (r *fakeCorpusRepo) UpsertListings(_ context.Context, _ []domain.EmbeddingVector, groupIDs map[string]string) error {
	r.upsertCalls++
	r.lastUpsertIDs = groupIDs
	return r.upsertErr
}

func (r *fakeCorpusRepo) SearchListings(_ context.Context, _ *CorpusSearchReq) ([]CorpusMatch, error) {
	return r.listings, r.listingsErr
}

func (r *fakeCorpusRepo) SearchSales(_ context.Context, req *CorpusSearchReq) ([]CorpusMatch, error) {
	r.lastSalesReq = req
	return r.sales, r.salesErr
}

func (r *fakeCorpusRepo) ListListings(_ context.Context, req *CorpusPageReq) (*CorpusPage, error) {
	r.lastPageReq = req
	return r.page, r.pageErr
}

type fakeSaleRepo struct {
	sales   []domain.SaleRecord
	err     error
	lastIDs []string
}

func (r *fakeSaleRepo) GetByIDs(_ context.Context, _ string, ids []string) ([]domain.SaleRecord, error) {
	r.lastIDs = ids
	return r.sales, r.err
}

type fakeVision struct {
	labels       map[string][]domain.ImageLabel
	quality      QualityAssessment
	qualityCalls int
}

func (v *fakeVision) DetectLabels(_ context.Context, _ *domain.TenantSettings, image []byte) []domain.ImageLabel {
	return v.labels[string(image)]
}

func (v *fakeVision) AssessQuality(_ context.Context, _ *domain.TenantSettings, _ []byte) QualityAssessment {
	v.qualityCalls++
	return v.quality
}

func testSettingsService(settings *domain.TenantSettings) *SettingsService {
	return NewSettingsService(
		&fakeSettingsRepo{settings: settings},
		&fakeSettingsCache{},
		logger.NewNopLogger(),
	)
}

func testPricingCfg() *cfg.PricingCfg {
	return &cfg.PricingCfg{
		DefaultBasePrice: 25.0,
		ResultLimit:      20,
		MinSimilarity:    0.7,
		BaseCurrency:     "USD",
	}
}

func newTestPricingUC(corpus *fakeCorpusRepo, saleRepo *fakeSaleRepo, vision *fakeVision) *PricingUseCase {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	calc := NewPriceCalculator(25.0, "USD")
	calc.now = func() time.Time { return now }

	return NewPricingUC(
		corpus,
		saleRepo,
		testSettingsService(nil),
		vision,
		calc,
		testPricingCfg(),
		logger.NewNopLogger(),
	)
}

func recentSale(id string, price int64) domain.SaleRecord {
	return domain.SaleRecord{
		ID:       id,
		TenantID: "tenant-1",
		Price:    decimal.NewFromInt(price),
		Currency: "USD",
		SoldAt:   time.Date(2026, time.February, 28, 12, 0, 0, 0, time.UTC),
	}
}

func TestSuggestPrice_ValidatesRequest(t *testing.T) {
	uc := newTestPricingUC(&fakeCorpusRepo{}, &fakeSaleRepo{}, &fakeVision{})

	_, err := uc.SuggestPrice(context.Background(), &SuggestPriceReq{
		Embedding: []float32{0.1, 0.2},
	})
	assert.ErrorIs(t, err, e.ErrTenantRequired)

	_, err = uc.SuggestPrice(context.Background(), &SuggestPriceReq{
		TenantID: "tenant-1",
	})
	assert.ErrorIs(t, err, e.ErrNoEmbedding)
}

func TestSuggestPrice_UsesComparableSales(t *testing.T) {
	corpus := &fakeCorpusRepo{
		sales: []CorpusMatch{
			{SaleID: "sale-1", Score: 0.95},
			{SaleID: "sale-2", Score: 0.90},
			{Score: 0.88}, // совпадение без записи о продаже пропускается
		},
	}
	saleRepo := &fakeSaleRepo{sales: []domain.SaleRecord{
		recentSale("sale-1", 100),
		recentSale("sale-2", 100),
	}}
	uc := newTestPricingUC(corpus, saleRepo, &fakeVision{})

	res, err := uc.SuggestPrice(context.Background(), &SuggestPriceReq{
		TenantID:  "tenant-1",
		Embedding: []float32{0.1, 0.2, 0.3},
		Condition: "like_new",
		Language:  "en",
	})

	require.NoError(t, err)
	require.NotNil(t, res.Suggestion)

	assert.Equal(t, []string{"sale-1", "sale-2"}, saleRepo.lastIDs)
	assert.Equal(t, 2, res.Suggestion.Factors.SampleSize)
	assert.True(t, res.Suggestion.Price.Equal(decimal.NewFromInt(110)),
		"100 x 1.10 like_new, got %s", res.Suggestion.Price)

	require.NotNil(t, corpus.lastSalesReq)
	assert.Equal(t, "tenant-1", corpus.lastSalesReq.TenantID)
	assert.Equal(t, 20, corpus.lastSalesReq.Limit)
	assert.InDelta(t, 0.7, corpus.lastSalesReq.MinScore, 1e-9)
}

func TestSuggestPrice_SearchFailureDegradesToDefaultBase(t *testing.T) {
	corpus := &fakeCorpusRepo{salesErr: errors.New("qdrant unavailable")}
	uc := newTestPricingUC(corpus, &fakeSaleRepo{}, &fakeVision{})

	res, err := uc.SuggestPrice(context.Background(), &SuggestPriceReq{
		TenantID:  "tenant-1",
		Embedding: []float32{0.1, 0.2, 0.3},
		Language:  "en",
	})

	require.NoError(t, err)
	assert.Equal(t, 0, res.Suggestion.Factors.SampleSize)
	assert.InDelta(t, 0.05, res.Suggestion.Confidence, 1e-9)
	assert.Contains(t, res.Suggestion.Explanation, "default base price")
}

func TestSuggestPrice_HydrationFailureDegradesToDefaultBase(t *testing.T) {
	corpus := &fakeCorpusRepo{sales: []CorpusMatch{{SaleID: "sale-1", Score: 0.95}}}
	saleRepo := &fakeSaleRepo{err: errors.New("pg down")}
	uc := newTestPricingUC(corpus, saleRepo, &fakeVision{})

	res, err := uc.SuggestPrice(context.Background(), &SuggestPriceReq{
		TenantID:  "tenant-1",
		Embedding: []float32{0.1, 0.2, 0.3},
	})

	require.NoError(t, err)
	assert.Equal(t, 0, res.Suggestion.Factors.SampleSize)
}

func TestSuggestPrice_AssessesQualityOnlyWithImage(t *testing.T) {
	vision := &fakeVision{quality: QualityAssessment{
		ConditionScore: 0.9,
		PricingImpact:  "positive",
		Multiplier:     1.1,
		PhotoQuality:   "excellent",
	}}
	corpus := &fakeCorpusRepo{sales: []CorpusMatch{{SaleID: "sale-1", Score: 0.95}}}
	saleRepo := &fakeSaleRepo{sales: []domain.SaleRecord{recentSale("sale-1", 100)}}
	uc := newTestPricingUC(corpus, saleRepo, vision)

	res, err := uc.SuggestPrice(context.Background(), &SuggestPriceReq{
		TenantID:  "tenant-1",
		Embedding: []float32{0.1, 0.2, 0.3},
	})
	require.NoError(t, err)
	assert.Zero(t, vision.qualityCalls)
	assert.InDelta(t, 1.0, res.Suggestion.Factors.VisualQuality, 1e-9)

	res, err = uc.SuggestPrice(context.Background(), &SuggestPriceReq{
		TenantID:  "tenant-1",
		Embedding: []float32{0.1, 0.2, 0.3},
		ImageData: []byte("jpeg bytes"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, vision.qualityCalls)
	assert.InDelta(t, 1.1, res.Suggestion.Factors.VisualQuality, 1e-9)
}
