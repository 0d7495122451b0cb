// Package embedding реализует батчевую векторизацию изображений: разбиение
// на чанки с потолком внешнего сервиса, волны с ограниченной конкурентностью,
// fallback-цепочку провайдеров и одиночный fallback для изображений из
// провалившегося чанка. Готовые векторы кэшируются по хэшу байтов.
package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/DRSN-tech/go-similarity/internal/cache"
	"github.com/DRSN-tech/go-similarity/internal/cfg"
	"github.com/DRSN-tech/go-similarity/internal/domain"
	"github.com/DRSN-tech/go-similarity/internal/usecase"
	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/DRSN-tech/go-similarity/pkg/jitter"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
)

// Generator генерирует эмбеддинги изображений через цепочку провайдеров.
type Generator struct {
	providers []Provider
	cache     *cache.Cache[domain.EmbeddingVector]
	cfg       *cfg.EmbeddingCfg
	logger    logger.Logger
}

func NewGenerator(providers []Provider, vectorCache *cache.Cache[domain.EmbeddingVector],
	cfg *cfg.EmbeddingCfg, logger logger.Logger) (*Generator, error) {
	const op = "embedding.NewGenerator"

	if len(providers) == 0 {
		return nil, e.Wrap(op, e.Config("at least one embedding provider is required"))
	}

	return &Generator{
		providers: providers,
		cache:     vectorCache,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// itemResult — результат векторизации одного изображения; порядок получения
// не важен, итог собирается в карту по id изображения.
type itemResult struct {
	imageID string
	data    []byte
	vector  []float32
	modelID string
	err     error
}

// Generate векторизует набор изображений. Частичные сбои не являются ошибкой
// вызова: каждое проблемное изображение попадает в Errors с причиной.
func (g *Generator) Generate(ctx context.Context, req *usecase.GenerateEmbeddingsReq) (*usecase.GenerateEmbeddingsRes, error) {
	const op = "Generator.Generate"

	if len(req.Images) == 0 {
		return nil, e.Wrap(op, e.ErrNoImages)
	}

	embeddings := make(map[string]domain.EmbeddingVector, len(req.Images))
	errors := make([]usecase.ImageError, 0)

	// Валидация до единого сетевого вызова; попадания кэша не ходят в сеть
	pending := make([]usecase.InputImage, 0, len(req.Images))
	for _, img := range req.Images {
		if err := validateImage(img, g.cfg.MaxImageBytes); err != nil {
			errors = append(errors, usecase.NewImageError(img.ID, err.Error()))
			continue
		}

		if cached, ok := g.fromCache(img.Data, req.ModelID); ok {
			cached.ImageID = img.ID
			cached.TenantID = req.TenantID
			embeddings[img.ID] = cached
			continue
		}

		pending = append(pending, img)
	}

	for res := range g.dispatch(ctx, pending) {
		if res.err != nil {
			errors = append(errors, usecase.NewImageError(res.imageID, res.err.Error()))
			continue
		}

		vector := domain.NewEmbeddingVector(res.imageID, req.TenantID, res.modelID, res.vector)
		embeddings[res.imageID] = *vector
		g.toCache(res.data, *vector)
	}

	return usecase.NewGenerateEmbeddingsRes(embeddings, errors), nil
}

// dispatch разбивает изображения на чанки и обрабатывает их волнами:
// одновременно выполняется не более MaxConcurrent вызовов чанков.
func (g *Generator) dispatch(ctx context.Context, images []usecase.InputImage) <-chan itemResult {
	resCh := make(chan itemResult, len(images))
	if len(images) == 0 {
		close(resCh)
		return resCh
	}

	sem := make(chan struct{}, g.cfg.MaxConcurrent)

	var wg sync.WaitGroup
	for start := 0; start < len(images); start += g.cfg.BatchSize {
		end := start + g.cfg.BatchSize
		if end > len(images) {
			end = len(images)
		}
		chunk := images[start:end]

		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			g.processChunk(ctx, chunk, resCh)
		}()
	}

	go func() {
		wg.Wait()
		close(resCh)
	}()

	return resCh
}

// processChunk векторизует один чанк. Сбой чанка целиком (сеть, таймаут,
// битый конверт, несовпадение числа векторов) переводит каждое изображение
// чанка на независимый одиночный вызов, чтобы одно плохое изображение
// не топило соседей по батчу.
func (g *Generator) processChunk(ctx context.Context, chunk []usecase.InputImage, resCh chan<- itemResult) {
	const op = "Generator.processChunk"

	chunkCtx, cancel := context.WithTimeout(ctx, g.cfg.ChunkTimeout)
	defer cancel()

	data := make([][]byte, 0, len(chunk))
	for _, img := range chunk {
		data = append(data, img.Data)
	}

	vectors, modelID, err := g.embedWithRetry(chunkCtx, data)
	if err == nil && len(vectors) != len(chunk) {
		err = fmt.Errorf("%w: got %d vectors for %d images", e.ErrVectorCountMismatch, len(vectors), len(chunk))
	}
	if err != nil {
		g.logger.Warnf("Chunk embedding failed, falling back to single-item calls. size: %d, error: %v",
			len(chunk), e.Wrap(op, err))

		for _, img := range chunk {
			resCh <- g.embedSingle(ctx, img)
		}
		return
	}

	for i, img := range chunk {
		if validErr := g.validateVector(vectors[i]); validErr != nil {
			resCh <- itemResult{imageID: img.ID, err: validErr}
			continue
		}
		resCh <- itemResult{imageID: img.ID, data: img.Data, vector: vectors[i], modelID: modelID}
	}
}

// embedWithRetry проходит цепочку провайдеров в порядке приоритета; полный
// проход без успеха повторяется с экспоненциальной задержкой и джиттером.
func (g *Generator) embedWithRetry(ctx context.Context, images [][]byte) ([][]float32, string, error) {
	const (
		op         = "Generator.embedWithRetry"
		baseJitter = 500 * time.Millisecond
		maxJitter  = 10 * time.Second
	)

	var lastErr error
	for attempt := 0; attempt < g.cfg.MaxRetries; attempt++ {
		for _, p := range g.providers {
			vectors, err := p.EmbedBatch(ctx, images)
			if err == nil {
				return vectors, p.ModelID(), nil
			}

			lastErr = err
			g.logger.Warnf("Embedding provider failed. tag: %s, attempt: %d, error: %v",
				p.Tag(), attempt+1, e.Wrap(op, err))
		}

		if attempt == g.cfg.MaxRetries-1 {
			break
		}

		sleepTime := jitter.ExponentialBackoff(baseJitter, maxJitter, attempt, jitter.DefaultJitter)
		select {
		case <-time.After(sleepTime):
		case <-ctx.Done():
			return nil, "", e.Wrap(op, ctx.Err())
		}
	}

	return nil, "", e.Wrap(op, fmt.Errorf("%w: %v", e.ErrAllProvidersFailed, lastErr))
}

// embedSingle векторизует одно изображение с собственным таймаутом,
// независимым от таймаута провалившегося чанка.
func (g *Generator) embedSingle(ctx context.Context, img usecase.InputImage) itemResult {
	const op = "Generator.embedSingle"

	itemCtx, cancel := context.WithTimeout(ctx, g.cfg.ItemTimeout)
	defer cancel()

	var lastErr error
	for _, p := range g.providers {
		vector, err := p.EmbedSingle(itemCtx, img.Data)
		if err != nil {
			lastErr = err
			continue
		}

		if validErr := g.validateVector(vector); validErr != nil {
			return itemResult{imageID: img.ID, err: validErr}
		}

		return itemResult{imageID: img.ID, data: img.Data, vector: vector, modelID: p.ModelID()}
	}

	return itemResult{imageID: img.ID, err: e.Wrap(op, fmt.Errorf("%w: %v", e.ErrAllProvidersFailed, lastErr))}
}

func (g *Generator) validateVector(vector []float32) error {
	if err := domain.ValidateVector(vector); err != nil {
		return err
	}
	if g.cfg.VectorSize > 0 && len(vector) != g.cfg.VectorSize {
		return fmt.Errorf("%w: got %d components, want %d", e.ErrVectorDimMismatch, len(vector), g.cfg.VectorSize)
	}
	return nil
}

// fromCache возвращает закэшированный вектор, если он посчитан той же моделью.
func (g *Generator) fromCache(data []byte, modelID string) (domain.EmbeddingVector, bool) {
	cached, ok := g.cache.Get(cache.Key(cache.NamespaceEmbedding, data))
	if !ok || cached.ModelID != modelID {
		return domain.EmbeddingVector{}, false
	}
	return cached, true
}

func (g *Generator) toCache(data []byte, vector domain.EmbeddingVector) {
	sizeBytes := int64(len(vector.Vector)) * 4
	g.cache.Set(cache.Key(cache.NamespaceEmbedding, data), vector, sizeBytes, 0)
}

func validateImage(img usecase.InputImage, maxBytes int64) error {
	if len(img.Data) == 0 {
		return e.ErrEmptyImage
	}
	if int64(len(img.Data)) > maxBytes {
		return e.ErrImageTooLarge
	}
	return nil
}
