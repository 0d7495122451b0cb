package similarity

import (
	"testing"

	"github.com/DRSN-tech/go-similarity/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCluster_GroupsSimilarAndLeavesOutlier(t *testing.T) {
	en := NewEngine(domain.DefaultThresholds())

	// A, B, C взаимно схожи выше порога same_product, D далёк от всех
	items := []ClusterItem{
		{ImageID: "A", Vector: []float32{1, 0}},
		{ImageID: "B", Vector: []float32{0.99, 0.14}},
		{ImageID: "C", Vector: []float32{0.98, 0.2}},
		{ImageID: "D", Vector: []float32{0, 1}},
	}

	result := en.Cluster(items, nil)

	require.Len(t, result.Clusters, 1)
	assert.Equal(t, "A", result.Clusters[0].SeedImageID)
	assert.Equal(t, []string{"A", "B", "C"}, result.Clusters[0].MemberImageIDs)
	assert.Greater(t, result.Clusters[0].Confidence, 0.92)

	assert.Equal(t, []string{"D"}, result.Ungrouped)
	assert.Empty(t, result.Errors)
}

func TestCluster_AllSingletons(t *testing.T) {
	en := NewEngine(domain.DefaultThresholds())

	items := []ClusterItem{
		{ImageID: "A", Vector: []float32{1, 0, 0}},
		{ImageID: "B", Vector: []float32{0, 1, 0}},
		{ImageID: "C", Vector: []float32{0, 0, 1}},
	}

	result := en.Cluster(items, nil)

	assert.Empty(t, result.Clusters)
	assert.Equal(t, []string{"A", "B", "C"}, result.Ungrouped)
}

func TestCluster_InvalidVectorReported(t *testing.T) {
	en := NewEngine(domain.DefaultThresholds())

	items := []ClusterItem{
		{ImageID: "A", Vector: []float32{1, 0}},
		{ImageID: "broken", Vector: nil},
		{ImageID: "B", Vector: []float32{0.99, 0.1}},
	}

	result := en.Cluster(items, nil)

	require.Len(t, result.Clusters, 1)
	assert.Equal(t, []string{"A", "B"}, result.Clusters[0].MemberImageIDs)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "broken", result.Errors[0].ImageID)
}

func TestCluster_SeedComparisonIsNotTransitive(t *testing.T) {
	en := NewEngine(domain.DefaultThresholds())

	// B схож и с A, и с C, но A и C между собой ниже порога:
	// C не попадает в кластер seed-а A, сравнение идёт только с seed-ом
	items := []ClusterItem{
		{ImageID: "A", Vector: []float32{1, 0}},
		{ImageID: "B", Vector: []float32{0.97, 0.24}},
		{ImageID: "C", Vector: []float32{0.88, 0.47}},
	}

	result := en.Cluster(items, nil)

	require.Len(t, result.Clusters, 1)
	assert.Equal(t, []string{"A", "B"}, result.Clusters[0].MemberImageIDs)
	assert.Equal(t, []string{"C"}, result.Ungrouped)
}

func TestCluster_CustomScoreFunc(t *testing.T) {
	en := NewEngine(domain.DefaultThresholds())

	pairScore := map[string]float64{
		"A|B": 0.95,
		"A|C": 0.10,
	}

	items := []ClusterItem{
		{ImageID: "A", Vector: []float32{1}},
		{ImageID: "B", Vector: []float32{1}},
		{ImageID: "C", Vector: []float32{1}},
	}

	result := en.Cluster(items, func(a, b ClusterItem) (float64, error) {
		return pairScore[a.ImageID+"|"+b.ImageID], nil
	})

	require.Len(t, result.Clusters, 1)
	assert.Equal(t, []string{"A", "B"}, result.Clusters[0].MemberImageIDs)
	assert.Equal(t, []string{"C"}, result.Ungrouped)
}
