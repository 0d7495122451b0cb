package domain

// Tier — дискретный класс схожести, получаемый из непрерывной оценки по порогам.
type Tier string

const (
	TierSameProduct  Tier = "same_product"
	TierLikelySame   Tier = "likely_same"
	TierPossiblySame Tier = "possibly_same"
	TierDifferent    Tier = "different"
)

// Thresholds — пороги классификации схожести.
// Один и тот же набор порогов используется и для чистого косинуса,
// и для взвешенной мультисигнальной оценки, хотя распределения этих оценок различаются.
type Thresholds struct {
	SameProduct  float64
	LikelySame   float64
	PossiblySame float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		SameProduct:  0.92,
		LikelySame:   0.80,
		PossiblySame: 0.75,
	}
}

// Classify возвращает класс для оценки схожести score.
func (t Thresholds) Classify(score float64) Tier {
	switch {
	case score >= t.SameProduct:
		return TierSameProduct
	case score >= t.LikelySame:
		return TierLikelySame
	case score >= t.PossiblySame:
		return TierPossiblySame
	default:
		return TierDifferent
	}
}

// SimilarityMatch — результат сравнения запроса с одним изображением корпуса.
// Вычисляется на каждый запрос заново и не персистится.
type SimilarityMatch struct {
	ImageID string
	Score   float64
	Tier    Tier
	GroupID string // пустая строка, если изображение не состоит в группе
}

func NewSimilarityMatch(imageID string, score float64, tier Tier, groupID string) SimilarityMatch {
	return SimilarityMatch{
		ImageID: imageID,
		Score:   score,
		Tier:    tier,
		GroupID: groupID,
	}
}
