package similarity

import "github.com/DRSN-tech/go-similarity/internal/domain"

// ClusterItem — одно изображение на входе кластеризации.
type ClusterItem struct {
	ImageID string
	Vector  []float32
}

// Cluster — группа изображений, собранная вокруг одного seed-изображения.
type Cluster struct {
	SeedImageID    string
	MemberImageIDs []string // включая seed, в порядке входа
	Confidence     float64  // средняя схожесть участников с seed
}

// ItemError — изображение, выброшенное из кластеризации с причиной.
type ItemError struct {
	ImageID string
	Reason  string
}

// ClusterResult — результат кластеризации: группы размером >=2,
// одиночные изображения и ошибки по отдельным элементам.
type ClusterResult struct {
	Clusters  []Cluster
	Ungrouped []string
	Errors    []ItemError
}

// ScoreFunc вычисляет схожесть пары изображений в [0, 1].
type ScoreFunc func(a, b ClusterItem) (float64, error)

// Cluster выполняет жадную однопроходную single-link кластеризацию.
// Элементы обходятся в порядке входа; каждый неназначенный элемент открывает
// кластер и притягивает все оставшиеся элементы, чья схожесть с seed (не с другими
// участниками) не ниже порога same_product. Это сознательно O(n^2) сравнение
// seed-к-участнику, а не транзитивная иерархическая кластеризация: два элемента
// могут не попасть в один кластер, даже если каждый из них кластеризуется с третьим.
// При score == nil используется косинусная схожесть векторов.
func (en *Engine) Cluster(items []ClusterItem, score ScoreFunc) *ClusterResult {
	if score == nil {
		score = func(a, b ClusterItem) (float64, error) {
			return Cosine(a.Vector, b.Vector)
		}
	}

	result := &ClusterResult{
		Clusters:  make([]Cluster, 0),
		Ungrouped: make([]string, 0),
		Errors:    make([]ItemError, 0),
	}

	assigned := make(map[string]bool, len(items))
	invalid := make(map[string]bool)

	// Некорректные векторы отбрасываются до кластеризации, чтобы ошибка
	// seed-элемента не списывалась на его кандидатов.
	for _, it := range items {
		if err := domain.ValidateVector(it.Vector); err != nil {
			invalid[it.ImageID] = true
			result.Errors = append(result.Errors, ItemError{
				ImageID: it.ImageID,
				Reason:  err.Error(),
			})
		}
	}

	for i, seed := range items {
		if assigned[seed.ImageID] || invalid[seed.ImageID] {
			continue
		}

		assigned[seed.ImageID] = true
		members := []string{seed.ImageID}
		var scoreSum float64
		var scored int

		for j := i + 1; j < len(items); j++ {
			candidate := items[j]
			if assigned[candidate.ImageID] || invalid[candidate.ImageID] {
				continue
			}

			s, err := score(seed, candidate)
			if err != nil {
				invalid[candidate.ImageID] = true
				result.Errors = append(result.Errors, ItemError{
					ImageID: candidate.ImageID,
					Reason:  err.Error(),
				})
				continue
			}

			if s >= en.thresholds.SameProduct {
				assigned[candidate.ImageID] = true
				members = append(members, candidate.ImageID)
				scoreSum += s
				scored++
			}
		}

		if len(members) < 2 {
			result.Ungrouped = append(result.Ungrouped, seed.ImageID)
			continue
		}

		result.Clusters = append(result.Clusters, Cluster{
			SeedImageID:    seed.ImageID,
			MemberImageIDs: members,
			Confidence:     scoreSum / float64(scored),
		})
	}

	return result
}
