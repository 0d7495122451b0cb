package usecase

import "context"

type GroupingUC interface {
	GroupImages(ctx context.Context, req *GroupImagesReq) (*GroupImagesRes, error)
	ListCorpus(ctx context.Context, req *CorpusPageReq) (*CorpusPage, error)
}

type PricingUC interface {
	SuggestPrice(ctx context.Context, req *SuggestPriceReq) (*SuggestPriceRes, error)
}
