package embedding

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/DRSN-tech/go-similarity/internal/cfg"
	"github.com/DRSN-tech/go-similarity/pkg/e"
)

// Теги провайдеров — явные дискриминаторы формата запроса и ответа.
// Формат выбирается конфигурацией, а не угадыванием по полям ответа.
const (
	TagTitanMultimodal = "titan-multimodal"
	TagClipServer      = "clip-server"
)

// Provider — адаптер одного внешнего сервиса эмбеддингов.
type Provider interface {
	Tag() string
	ModelID() string
	// EmbedBatch векторизует пачку изображений одним вызовом; порядок
	// векторов в ответе соответствует порядку изображений.
	EmbedBatch(ctx context.Context, images [][]byte) ([][]float32, error)
	// EmbedSingle векторизует одно изображение независимым вызовом.
	EmbedSingle(ctx context.Context, image []byte) ([]float32, error)
}

// NewProvider создаёт адаптер по тегу из конфигурации.
func NewProvider(providerCfg cfg.ProviderCfg, client *http.Client, maxResponseBytes int64) (Provider, error) {
	const op = "embedding.NewProvider"

	switch providerCfg.Tag {
	case TagTitanMultimodal:
		return &titanProvider{
			endpoint:         providerCfg.Endpoint,
			modelID:          providerCfg.ModelID,
			client:           client,
			maxResponseBytes: maxResponseBytes,
		}, nil
	case TagClipServer:
		return &clipProvider{
			endpoint:         providerCfg.Endpoint,
			modelID:          providerCfg.ModelID,
			client:           client,
			maxResponseBytes: maxResponseBytes,
		}, nil
	default:
		return nil, e.Wrap(op, fmt.Errorf("%w: %q", e.ErrUnknownProvider, providerCfg.Tag))
	}
}

// titanProvider — адаптер мультимодальной модели семейства Titan.
// Запрос: {"modelId": ..., "images": [base64...]}, ответ: {"embeddings": [[...], ...]}.
type titanProvider struct {
	endpoint         string
	modelID          string
	client           *http.Client
	maxResponseBytes int64
}

type titanRequest struct {
	ModelID string   `json:"modelId"`
	Images  []string `json:"images"`
}

type titanResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (p *titanProvider) Tag() string     { return TagTitanMultimodal }
func (p *titanProvider) ModelID() string { return p.modelID }

func (p *titanProvider) EmbedBatch(ctx context.Context, images [][]byte) ([][]float32, error) {
	const op = "titanProvider.EmbedBatch"

	encoded := make([]string, 0, len(images))
	for _, img := range images {
		encoded = append(encoded, base64.StdEncoding.EncodeToString(img))
	}

	body, err := postJSON(ctx, p.client, p.endpoint, titanRequest{
		ModelID: p.modelID,
		Images:  encoded,
	}, p.maxResponseBytes)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	var res titanResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, e.Wrap(op, e.Data("malformed embedding response"))
	}

	return res.Embeddings, nil
}

func (p *titanProvider) EmbedSingle(ctx context.Context, image []byte) ([]float32, error) {
	const op = "titanProvider.EmbedSingle"

	vectors, err := p.EmbedBatch(ctx, [][]byte{image})
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	if len(vectors) != 1 {
		return nil, e.Wrap(op, e.ErrVectorCountMismatch)
	}

	return vectors[0], nil
}

// clipProvider — адаптер self-hosted CLIP-сервера.
// Запрос: {"data": [{"blob": base64}, ...]}, ответ: {"data": [{"embedding": [...]}, ...]}.
type clipProvider struct {
	endpoint         string
	modelID          string
	client           *http.Client
	maxResponseBytes int64
}

type clipDocument struct {
	Blob      string    `json:"blob,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
}

type clipEnvelope struct {
	Data []clipDocument `json:"data"`
}

func (p *clipProvider) Tag() string     { return TagClipServer }
func (p *clipProvider) ModelID() string { return p.modelID }

func (p *clipProvider) EmbedBatch(ctx context.Context, images [][]byte) ([][]float32, error) {
	const op = "clipProvider.EmbedBatch"

	docs := make([]clipDocument, 0, len(images))
	for _, img := range images {
		docs = append(docs, clipDocument{Blob: base64.StdEncoding.EncodeToString(img)})
	}

	body, err := postJSON(ctx, p.client, p.endpoint, clipEnvelope{Data: docs}, p.maxResponseBytes)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	var res clipEnvelope
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, e.Wrap(op, e.Data("malformed embedding response"))
	}

	vectors := make([][]float32, 0, len(res.Data))
	for _, doc := range res.Data {
		vectors = append(vectors, doc.Embedding)
	}

	return vectors, nil
}

func (p *clipProvider) EmbedSingle(ctx context.Context, image []byte) ([]float32, error) {
	const op = "clipProvider.EmbedSingle"

	vectors, err := p.EmbedBatch(ctx, [][]byte{image})
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	if len(vectors) != 1 {
		return nil, e.Wrap(op, e.ErrVectorCountMismatch)
	}

	return vectors[0], nil
}

// postJSON выполняет POST с JSON-телом и читает ответ с жёстким лимитом размера.
// Превышение лимита — ошибка данных, а не тихое усечение тела.
func postJSON(ctx context.Context, client *http.Client, endpoint string, payload any, maxResponseBytes int64) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, e.Dependency(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, e.Dependency(fmt.Sprintf("embedding service returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, e.Dependency(err.Error())
	}
	if int64(len(body)) > maxResponseBytes {
		return nil, e.ErrResponseTooLarge
	}

	return body, nil
}
