package domain

import "net/http"

// Image — изображение, сохраняемое в объектное хранилище. Bucket задаётся
// на уровне репозитория, тип содержимого определяется по байтам.
type Image struct {
	ID          string // uuid
	ObjectKey   string
	Data        []byte
	ContentType string // Example: "image/jpeg"
}

func NewImage(id string, objectKey string, data []byte) *Image {
	return &Image{
		ID:          id,
		ObjectKey:   objectKey,
		Data:        data,
		ContentType: http.DetectContentType(data),
	}
}
