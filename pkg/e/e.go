package e

import (
	"errors"
	"fmt"
)

// Kind классифицирует ошибку для выбора политики обработки.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation — некорректные входные данные (пустое изображение, несовпадение размерностей).
	// Обрабатывается в самом узком месте: плохой элемент пропускается и попадает в список ошибок.
	KindValidation
	// KindDependency — сбой внешнего вызова (сеть, таймаут, некорректный или слишком большой ответ).
	// Поглощается fallback-цепочкой или circuit breaker-ом.
	KindDependency
	// KindData — повреждённая или нечитаемая запись в хранилище. Запись пропускается с предупреждением.
	KindData
	// KindConfig — отсутствующая или некорректная конфигурация. Единственный класс,
	// допускающий фатальное завершение, и только на этапе конструирования.
	KindConfig
)

var (
	// Внутренние ошибки с транзакциями
	ErrTransactionNotFound = fmt.Errorf("transaction not found")

	// Внутренние ошибки с векторами
	ErrEmptyVector       = Validation("vector is empty")
	ErrVectorDimMismatch = Validation("vector dimension mismatch")
	ErrNonFiniteVector   = Validation("vector contains non-finite values")

	// 400 Bad Request
	ErrNoImages         = Validation("no images provided")
	ErrEmptyImage       = Validation("image is empty")
	ErrImageTooLarge    = Validation("image exceeds size limit")
	ErrTenantRequired   = Validation("tenant id is required")
	ErrNoEmbedding      = Validation("query embedding is required")
	ErrDuplicateImageID = Validation("duplicate image id")

	// Ошибки внешних зависимостей
	ErrVectorCountMismatch = Dependency("embedding count does not match batch size")
	ErrResponseTooLarge    = Dependency("response body exceeds size limit")
	ErrAllProvidersFailed  = Dependency("all embedding providers failed")

	// Ошибки конфигурации
	ErrIncorrectEnvVariable = Config("incorrect environment variable")
	ErrUnknownProvider      = Config("unknown embedding provider tag")
	ErrInvalidWeights       = Config("signal weights must sum to 1")
)

// kindError несёт класс ошибки; раскрывается через KindOf.
type kindError struct {
	kind Kind
	msg  string
}

func (k *kindError) Error() string { return k.msg }

func Validation(msg string) error { return &kindError{kind: KindValidation, msg: msg} }
func Dependency(msg string) error { return &kindError{kind: KindDependency, msg: msg} }
func Data(msg string) error       { return &kindError{kind: KindData, msg: msg} }
func Config(msg string) error     { return &kindError{kind: KindConfig, msg: msg} }

// KindOf возвращает класс ошибки или KindUnknown, если ошибка не классифицирована.
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindUnknown
}

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}
