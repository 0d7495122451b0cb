package converter

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductGroupModel представляет запись таблицы product_groups в PostgreSQL.
type ProductGroupModel struct {
	ID             string     `db:"id"`
	TenantID       string     `db:"tenant_id"`
	PrimaryImageID string     `db:"primary_image_id"`
	MemberImageIDs []string   `db:"member_image_ids"`
	Name           string     `db:"name"`
	Category       string     `db:"category"`
	Confidence     float64    `db:"confidence"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      *time.Time `db:"updated_at"`
}

// SaleModel представляет запись таблицы sales в PostgreSQL.
type SaleModel struct {
	ID        string          `db:"id"`
	ProductID string          `db:"product_id"`
	TenantID  string          `db:"tenant_id"`
	Price     decimal.Decimal `db:"price"`
	Currency  string          `db:"currency"`
	Category  string          `db:"category"`
	Condition string          `db:"condition"`
	SoldAt    time.Time       `db:"sold_at"`
}

// TenantSettingsModel представляет запись таблицы tenant_settings в PostgreSQL.
type TenantSettingsModel struct {
	TenantID                string     `db:"tenant_id"`
	ModelID                 string     `db:"model_id"`
	ThresholdSameProduct    float64    `db:"threshold_same_product"`
	ThresholdLikelySame     float64    `db:"threshold_likely_same"`
	ThresholdPossiblySame   float64    `db:"threshold_possibly_same"`
	MinPricingSimilarity    float64    `db:"min_pricing_similarity"`
	MultiSignalEnabled      bool       `db:"multi_signal_enabled"`
	WeightSpatial           float64    `db:"weight_spatial"`
	WeightFeature           float64    `db:"weight_feature"`
	WeightSemantic          float64    `db:"weight_semantic"`
	WeightComposition       float64    `db:"weight_composition"`
	WeightBackground        float64    `db:"weight_background"`
	BreakerFailureThreshold int        `db:"breaker_failure_threshold"`
	BreakerSuccessThreshold int        `db:"breaker_success_threshold"`
	BreakerCooldownSeconds  int64      `db:"breaker_cooldown_seconds"`
	UpdatedAt               *time.Time `db:"updated_at"`
}

// OutboxEventModel представляет запись таблицы outbox_events в PostgreSQL.
type OutboxEventModel struct {
	ID          int64      `db:"id"`
	EventID     string     `db:"event_id"`
	EventType   string     `db:"event_type"`
	TenantID    string     `db:"tenant_id"`
	GroupID     string     `db:"group_id"`
	Payload     []byte     `db:"payload"`
	Status      string     `db:"status"`
	CreatedAt   time.Time  `db:"created_at"`
	ProcessedAt *time.Time `db:"processed_at"`
}
