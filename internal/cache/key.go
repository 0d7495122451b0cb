package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Namespace разделяет ключи по назначению: одни и те же байты изображения,
// запрошенные для разных целей, не должны сталкиваться по ключу.
type Namespace string

const (
	NamespaceEmbedding        Namespace = "embedding"
	NamespaceModelAnalysis    Namespace = "model-analysis"
	NamespaceLabelDetection   Namespace = "label-detection"
	NamespaceClusteringResult Namespace = "clustering-result"
)

// Key строит content-addressed ключ: пространство имён + SHA-256 от байтов.
func Key(ns Namespace, data []byte) string {
	sum := sha256.Sum256(data)
	return string(ns) + ":" + hex.EncodeToString(sum[:])
}
