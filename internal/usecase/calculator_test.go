package usecase

import (
	"testing"
	"time"

	"github.com/DRSN-tech/go-similarity/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCalculator(now time.Time) *PriceCalculator {
	c := NewPriceCalculator(25.0, "USD")
	c.now = func() time.Time { return now }

	return c
}

func salesAtPrice(n int, price int64, soldAt time.Time) []domain.SaleRecord {
	sales := make([]domain.SaleRecord, 0, n)
	for i := 0; i < n; i++ {
		sales = append(sales, domain.SaleRecord{
			ID:       uuid.NewString(),
			TenantID: "tenant-1",
			Price:    decimal.NewFromInt(price),
			Currency: "USD",
			SoldAt:   soldAt,
		})
	}

	return sales
}

func TestCalculate_LikeNewConditionMultiplier(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCalculator(now)

	sales := salesAtPrice(5, 100, now.Add(-time.Hour))

	suggestion := c.Calculate(sales, "like_new", "", "en", NeutralQualityAssessment())
	require.NotNil(t, suggestion)

	assert.True(t, suggestion.Price.Equal(decimal.NewFromInt(110)),
		"100 x 1.10 like_new, got %s", suggestion.Price)
	assert.Equal(t, "USD", suggestion.Currency)
	assert.Equal(t, 5, suggestion.Factors.SampleSize)
	assert.InDelta(t, 1.10, suggestion.Factors.Condition, 1e-9)
	assert.InDelta(t, 1.0, suggestion.Factors.Seasonal, 1e-9)
}

func TestCalculate_RangeWidthFollowsConfidence(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCalculator(now)

	// Свежие продажи с одинаковой ценой: sample 0.5, recency ~1, variance 1 -> 0.8.
	fresh := salesAtPrice(5, 100, now.Add(-time.Hour))
	suggestion := c.Calculate(fresh, "like_new", "", "en", NeutralQualityAssessment())

	require.GreaterOrEqual(t, suggestion.Confidence, 0.7)
	assert.True(t, suggestion.MinPrice.Equal(decimal.NewFromFloat(93.5)),
		"min at -15%%, got %s", suggestion.MinPrice)
	assert.True(t, suggestion.MaxPrice.Equal(decimal.NewFromFloat(126.5)),
		"max at +15%%, got %s", suggestion.MaxPrice)

	// Две давние продажи: уверенность падает ниже порога, диапазон расширяется.
	stale := salesAtPrice(2, 100, now.AddDate(-2, 0, 0))
	suggestion = c.Calculate(stale, "like_new", "", "en", NeutralQualityAssessment())

	require.Less(t, suggestion.Confidence, 0.7)
	delta := suggestion.Price.Mul(decimal.NewFromFloat(0.25))
	assert.True(t, suggestion.MinPrice.Equal(suggestion.Price.Sub(delta)),
		"min at -25%%, got %s", suggestion.MinPrice)
	assert.True(t, suggestion.MaxPrice.Equal(suggestion.Price.Add(delta)),
		"max at +25%%, got %s", suggestion.MaxPrice)
}

func TestCalculate_NoSalesFallsBackToDefaultBase(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCalculator(now)

	suggestion := c.Calculate(nil, "good", "", "en", NeutralQualityAssessment())
	require.NotNil(t, suggestion)

	// 25 x 0.95 (good) = 23.75 -> 24.0 при шаге 0.5.
	assert.True(t, suggestion.Price.Equal(decimal.NewFromFloat(24.0)),
		"got %s", suggestion.Price)
	assert.InDelta(t, 0.05, suggestion.Confidence, 1e-9)
	assert.Equal(t, 0, suggestion.Factors.SampleSize)
	assert.Contains(t, suggestion.Explanation, "default base price")
}

func TestCalculate_UnknownConditionUsesDefault(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCalculator(now)

	sales := salesAtPrice(3, 100, now.Add(-time.Hour))

	known := c.Calculate(sales, "good", "", "en", NeutralQualityAssessment())
	unknown := c.Calculate(sales, "mint-in-box", "", "en", NeutralQualityAssessment())

	assert.True(t, known.Price.Equal(unknown.Price))
	assert.InDelta(t, 0.95, unknown.Factors.Condition, 1e-9)
}

func TestCalculate_SeasonalMultiplierByCategory(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCalculator(now)

	sales := salesAtPrice(5, 100, now.Add(-time.Hour))

	toys := c.Calculate(sales, "good", "toys", "en", NeutralQualityAssessment())
	furniture := c.Calculate(sales, "good", "furniture", "en", NeutralQualityAssessment())

	assert.InDelta(t, 1.10, toys.Factors.Seasonal, 1e-9)
	assert.InDelta(t, 0.90, furniture.Factors.Seasonal, 1e-9)
	// 100 x 1.10 x 0.95 = 104.5; 100 x 0.90 x 0.95 = 85.5.
	assert.True(t, toys.Price.Equal(decimal.NewFromFloat(104.5)), "got %s", toys.Price)
	assert.True(t, furniture.Price.Equal(decimal.NewFromFloat(85.5)), "got %s", furniture.Price)
}

func TestCalculate_VisualQualityClampedAndPenalized(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCalculator(now)

	sales := salesAtPrice(5, 100, now.Add(-time.Hour))

	inflated := c.Calculate(sales, "good", "", "en", QualityAssessment{
		ConditionScore: 1.0,
		PricingImpact:  "positive",
		Multiplier:     2.5,
		PhotoQuality:   "excellent",
	})
	assert.InDelta(t, 1.15, inflated.Factors.VisualQuality, 1e-9)

	poor := c.Calculate(sales, "good", "", "en", QualityAssessment{
		ConditionScore: 0.2,
		PricingImpact:  "negative",
		Multiplier:     0.8,
		PhotoQuality:   "poor",
	})
	assert.InDelta(t, 0.8*0.95, poor.Factors.VisualQuality, 1e-9)
}

func TestCalculate_CurrencyAndRoundingByLanguage(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCalculator(now)

	sales := salesAtPrice(4, 103, now.Add(-time.Hour))

	ja := c.Calculate(sales, "good", "", "ja", NeutralQualityAssessment())
	assert.Equal(t, "JPY", ja.Currency)
	// 103 x 0.95 = 97.85 -> 100 при шаге 10.
	assert.True(t, ja.Price.Equal(decimal.NewFromInt(100)), "got %s", ja.Price)

	unknownLang := c.Calculate(sales, "good", "", "xx", NeutralQualityAssessment())
	assert.Equal(t, "USD", unknownLang.Currency)
	// 97.85 -> 98.0 при шаге 0.5.
	assert.True(t, unknownLang.Price.Equal(decimal.NewFromFloat(98.0)), "got %s", unknownLang.Price)
}

func TestCalculate_ConfidenceDecaysWithAge(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCalculator(now)

	fresh := c.Calculate(salesAtPrice(5, 100, now.Add(-time.Hour)),
		"good", "", "en", NeutralQualityAssessment())
	aged := c.Calculate(salesAtPrice(5, 100, now.AddDate(0, -6, 0)),
		"good", "", "en", NeutralQualityAssessment())

	assert.Greater(t, fresh.Confidence, aged.Confidence)
}

func TestCalculate_PriceSpreadLowersConfidence(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCalculator(now)

	soldAt := now.Add(-time.Hour)
	tight := salesAtPrice(5, 100, soldAt)

	spread := make([]domain.SaleRecord, 0, 5)
	for _, price := range []int64{20, 60, 100, 140, 180} {
		spread = append(spread, domain.SaleRecord{
			ID:       uuid.NewString(),
			TenantID: "tenant-1",
			Price:    decimal.NewFromInt(price),
			Currency: "USD",
			SoldAt:   soldAt,
		})
	}

	tightRes := c.Calculate(tight, "good", "", "en", NeutralQualityAssessment())
	spreadRes := c.Calculate(spread, "good", "", "en", NeutralQualityAssessment())

	assert.Greater(t, tightRes.Confidence, spreadRes.Confidence)
}
