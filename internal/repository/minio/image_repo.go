package minio

import (
	"bytes"
	"context"
	"io"

	"github.com/DRSN-tech/go-similarity/internal/cfg"
	"github.com/DRSN-tech/go-similarity/internal/domain"
	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/minio/minio-go/v7"
)

// ImageRepo реализует репозиторий изображений поверх MinIO.
type ImageRepo struct {
	mc  *minio.Client
	cfg *cfg.MinIOCfg
}

func NewImageRepo(mc *minio.Client, cfg *cfg.MinIOCfg) *ImageRepo {
	return &ImageRepo{
		mc:  mc,
		cfg: cfg,
	}
}

// Fetch читает байты объекта по ключу.
func (i *ImageRepo) Fetch(ctx context.Context, key string) ([]byte, error) {
	obj, err := i.mc.GetObject(ctx, i.cfg.BucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return data, nil
}

// Upload загружает изображение в MinIO под его ключом. Повторная загрузка
// того же ключа перезаписывает объект теми же байтами.
func (i *ImageRepo) Upload(ctx context.Context, image *domain.Image) error {
	reader := bytes.NewReader(image.Data)

	opts := minio.PutObjectOptions{ContentType: image.ContentType}

	_, err := i.mc.PutObject(ctx, i.cfg.BucketName, image.ObjectKey, reader, int64(len(image.Data)), opts)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}
