package embedding

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DRSN-tech/go-similarity/internal/cache"
	"github.com/DRSN-tech/go-similarity/internal/cfg"
	"github.com/DRSN-tech/go-similarity/internal/domain"
	"github.com/DRSN-tech/go-similarity/internal/usecase"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider считает вызовы и позволяет навязать сбои батча или отдельных изображений.
type fakeProvider struct {
	mu          sync.Mutex
	batchCalls  int
	singleCalls int
	batchErr    error
	singleErr   func(image []byte) error
	dim         int
}

func (f *fakeProvider) Tag() string     { return "fake" }
func (f *fakeProvider) ModelID() string { return "fake-model" }

func (f *fakeProvider) EmbedBatch(_ context.Context, images [][]byte) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.batchCalls++
	if f.batchErr != nil {
		return nil, f.batchErr
	}

	vectors := make([][]float32, 0, len(images))
	for range images {
		vectors = append(vectors, make([]float32, f.dim))
	}
	return vectors, nil
}

func (f *fakeProvider) EmbedSingle(_ context.Context, image []byte) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.singleCalls++
	if f.singleErr != nil {
		if err := f.singleErr(image); err != nil {
			return nil, err
		}
	}
	return make([]float32, f.dim), nil
}

func newTestGenerator(t *testing.T, provider Provider, embCfg *cfg.EmbeddingCfg) *Generator {
	t.Helper()

	gen, err := NewGenerator(
		[]Provider{provider},
		cache.New[domain.EmbeddingVector](1<<20, time.Minute),
		embCfg,
		logger.NewNopLogger(),
	)
	require.NoError(t, err)

	return gen
}

func testEmbeddingCfg() *cfg.EmbeddingCfg {
	return &cfg.EmbeddingCfg{
		BatchSize:        25,
		MaxConcurrent:    4,
		MaxRetries:       1,
		MaxImageBytes:    1 << 20,
		MaxResponseBytes: 1 << 20,
		ChunkTimeout:     time.Second,
		ItemTimeout:      time.Second,
		VectorSize:       8,
	}
}

func testImages(n int) []usecase.InputImage {
	images := make([]usecase.InputImage, 0, n)
	for i := 0; i < n; i++ {
		images = append(images, usecase.InputImage{
			ID:   fmt.Sprintf("img-%02d", i),
			Data: []byte(fmt.Sprintf("image payload %02d", i)),
		})
	}
	return images
}

func TestGenerator_ChunksBySizeCeiling(t *testing.T) {
	provider := &fakeProvider{dim: 8}
	gen := newTestGenerator(t, provider, testEmbeddingCfg())

	res, err := gen.Generate(context.Background(),
		usecase.NewGenerateEmbeddingsReq("tenant-1", "fake-model", testImages(30)))
	require.NoError(t, err)

	assert.Len(t, res.Embeddings, 30)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 2, provider.batchCalls)
	assert.Equal(t, 0, provider.singleCalls)

	for _, emb := range res.Embeddings {
		assert.False(t, emb.CreatedAt.IsZero())
	}
}

func TestGenerator_ChunkFailureFallsBackPerItem(t *testing.T) {
	provider := &fakeProvider{
		dim:      8,
		batchErr: fmt.Errorf("service unavailable"),
		singleErr: func(image []byte) error {
			// Два последних изображения чанка бьются и на одиночном вызове
			if string(image) == "image payload 03" || string(image) == "image payload 04" {
				return fmt.Errorf("corrupt image")
			}
			return nil
		},
	}
	gen := newTestGenerator(t, provider, testEmbeddingCfg())

	res, err := gen.Generate(context.Background(),
		usecase.NewGenerateEmbeddingsReq("tenant-1", "fake-model", testImages(5)))
	require.NoError(t, err)

	assert.Equal(t, 1, provider.batchCalls)
	assert.Equal(t, 5, provider.singleCalls)
	assert.Len(t, res.Embeddings, 3)
	assert.Len(t, res.Errors, 2)

	failed := make(map[string]bool, len(res.Errors))
	for _, ie := range res.Errors {
		failed[ie.ImageID] = true
	}
	assert.True(t, failed["img-03"])
	assert.True(t, failed["img-04"])
}

func TestGenerator_ValidatesBeforeNetworkCalls(t *testing.T) {
	provider := &fakeProvider{dim: 8}
	embCfg := testEmbeddingCfg()
	embCfg.MaxImageBytes = 10
	gen := newTestGenerator(t, provider, embCfg)

	res, err := gen.Generate(context.Background(),
		usecase.NewGenerateEmbeddingsReq("tenant-1", "fake-model", []usecase.InputImage{
			{ID: "empty", Data: nil},
			{ID: "huge", Data: []byte("way over ten bytes limit")},
		}))
	require.NoError(t, err)

	assert.Empty(t, res.Embeddings)
	assert.Len(t, res.Errors, 2)
	assert.Equal(t, 0, provider.batchCalls)
	assert.Equal(t, 0, provider.singleCalls)
}

func TestGenerator_CacheSkipsRepeatCalls(t *testing.T) {
	provider := &fakeProvider{dim: 8}
	gen := newTestGenerator(t, provider, testEmbeddingCfg())

	req := usecase.NewGenerateEmbeddingsReq("tenant-1", "fake-model", testImages(3))

	_, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 1, provider.batchCalls)

	res, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, provider.batchCalls)
	assert.Len(t, res.Embeddings, 3)
}

func TestGenerator_VectorCountMismatchTriggersFallback(t *testing.T) {
	provider := &shortBatchProvider{fakeProvider: fakeProvider{dim: 8}}
	gen := newTestGenerator(t, provider, testEmbeddingCfg())

	res, err := gen.Generate(context.Background(),
		usecase.NewGenerateEmbeddingsReq("tenant-1", "fake-model", testImages(4)))
	require.NoError(t, err)

	assert.Len(t, res.Embeddings, 4)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 4, provider.singleCalls)
}

// shortBatchProvider возвращает на один вектор меньше, чем запрошено.
type shortBatchProvider struct {
	fakeProvider
}

func (s *shortBatchProvider) EmbedBatch(ctx context.Context, images [][]byte) ([][]float32, error) {
	vectors, err := s.fakeProvider.EmbedBatch(ctx, images)
	if err != nil {
		return nil, err
	}
	return vectors[:len(vectors)-1], nil
}
