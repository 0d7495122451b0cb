package usecase

import (
	"context"

	"github.com/DRSN-tech/go-similarity/internal/cfg"
	"github.com/DRSN-tech/go-similarity/internal/domain"
	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
)

// PricingUseCase реализует рекомендацию цены по визуальной схожести:
// поиск сопоставимых продаж в векторном корпусе и взвешенный расчёт цены
// с поправками на сезон, состояние и визуальное качество.
type PricingUseCase struct {
	corpusRepo CorpusRepository
	saleRepo   SaleRepository
	settings   *SettingsService
	vision     VisionInfra
	calculator *PriceCalculator
	cfg        *cfg.PricingCfg
	logger     logger.Logger
}

func NewPricingUC(
	corpusRepo CorpusRepository,
	saleRepo SaleRepository,
	settings *SettingsService,
	vision VisionInfra,
	calculator *PriceCalculator,
	cfg *cfg.PricingCfg,
	logger logger.Logger,
) *PricingUseCase {
	return &PricingUseCase{
		corpusRepo: corpusRepo,
		saleRepo:   saleRepo,
		settings:   settings,
		vision:     vision,
		calculator: calculator,
		cfg:        cfg,
		logger:     logger,
	}
}

// SuggestPrice возвращает рекомендацию цены. Сбой поиска или оценки качества
// деградирует до ответа с низкой уверенностью, а не до ошибки.
func (p *PricingUseCase) SuggestPrice(ctx context.Context, req *SuggestPriceReq) (*SuggestPriceRes, error) {
	const op = "PricingUseCase.SuggestPrice"

	if err := p.validateRequest(req); err != nil {
		return nil, e.Wrap(op, err)
	}

	settings := p.settings.ForTenant(ctx, req.TenantID)

	sales := p.findComparableSales(ctx, req, settings)

	quality := NeutralQualityAssessment()
	if len(req.ImageData) > 0 {
		quality = p.vision.AssessQuality(ctx, settings, req.ImageData)
	}

	suggestion := p.calculator.Calculate(sales, req.Condition, req.Category, req.Language, quality)

	return &SuggestPriceRes{Suggestion: suggestion}, nil
}

// findComparableSales ищет визуально схожие продажи и гидрирует их записи.
// Любая ошибка внешних хранилищ логируется и даёт пустой список.
func (p *PricingUseCase) findComparableSales(ctx context.Context, req *SuggestPriceReq,
	settings *domain.TenantSettings) []domain.SaleRecord {
	const op = "PricingUseCase.findComparableSales"

	minScore := settings.MinPricingSimilarity
	if minScore <= 0 {
		minScore = p.cfg.MinSimilarity
	}

	matches, err := p.corpusRepo.SearchSales(ctx, &CorpusSearchReq{
		TenantID: req.TenantID,
		Vector:   req.Embedding,
		Limit:    p.cfg.ResultLimit,
		MinScore: minScore,
		Category: req.Category,
	})
	if err != nil {
		p.logger.Warnf("%s: sales search failed, degrading to empty result: %v", op, e.Wrap(op, err))
		return nil
	}

	if len(matches) == 0 {
		return nil
	}

	saleIDs := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.SaleID != "" {
			saleIDs = append(saleIDs, m.SaleID)
		}
	}

	sales, err := p.saleRepo.GetByIDs(ctx, req.TenantID, saleIDs)
	if err != nil {
		p.logger.Warnf("%s: sale records load failed, degrading to empty result: %v", op, e.Wrap(op, err))
		return nil
	}

	return sales
}

func (p *PricingUseCase) validateRequest(req *SuggestPriceReq) error {
	if req.TenantID == "" {
		return e.ErrTenantRequired
	}

	if len(req.Embedding) == 0 {
		return e.ErrNoEmbedding
	}

	return domain.ValidateVector(req.Embedding)
}
