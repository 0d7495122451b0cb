package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProductGroup описывает группу изображений, предположительно снимающих один и тот же предмет.
// Группы не сливаются автоматически; участники только добавляются.
type ProductGroup struct {
	ID             string
	TenantID       string
	PrimaryImageID string
	MemberImageIDs []string // в порядке добавления, без дубликатов
	Name           string
	Category       string
	Confidence     float64
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}

func NewProductGroup(tenantID, primaryImageID string, memberImageIDs []string, confidence float64) *ProductGroup {
	return &ProductGroup{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		PrimaryImageID: primaryImageID,
		MemberImageIDs: memberImageIDs,
		Confidence:     confidence,
		CreatedAt:      time.Now().UTC(),
	}
}

// HasMember сообщает, входит ли изображение в группу.
func (g *ProductGroup) HasMember(imageID string) bool {
	for _, id := range g.MemberImageIDs {
		if id == imageID {
			return true
		}
	}
	return false
}

// AddMember добавляет изображение в группу, сохраняя порядок вставки.
// Возвращает false, если изображение уже состоит в группе.
func (g *ProductGroup) AddMember(imageID string) bool {
	if g.HasMember(imageID) {
		return false
	}
	g.MemberImageIDs = append(g.MemberImageIDs, imageID)
	return true
}
