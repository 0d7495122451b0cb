package converter

import "github.com/DRSN-tech/go-similarity/internal/domain"

// SettingsConverter преобразует настройки тенанта между domain и Redis-моделью.
// Вложенные структуры (пороги, веса) раскладываются в плоский JSON вручную.
type SettingsConverter interface {
	ToRedisModel(entity *domain.TenantSettings) *TenantSettingsRedisModel
	ToDomain(model *TenantSettingsRedisModel) *domain.TenantSettings
}
