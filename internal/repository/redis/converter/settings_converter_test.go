package converter

import (
	"testing"
	"time"

	"github.com/DRSN-tech/go-similarity/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsConverter_FlattensAndRestoresNestedFields(t *testing.T) {
	conv := NewSettingsConverter()

	settings := domain.DefaultTenantSettings("tenant-1")
	settings.MultiSignalEnabled = true
	settings.BreakerFailureThreshold = 3
	settings.BreakerCooldown = 45 * time.Second

	model := conv.ToRedisModel(settings)
	require.NotNil(t, model)
	assert.Equal(t, settings.Thresholds.LikelySame, model.ThresholdLikelySame)
	assert.Equal(t, settings.SignalWeights.Spatial, model.WeightSpatial)
	assert.Equal(t, int64(45), model.BreakerCooldownSeconds)

	restored := conv.ToDomain(model)
	require.NotNil(t, restored)
	assert.Equal(t, settings, restored)

	assert.Nil(t, conv.ToRedisModel(nil))
	assert.Nil(t, conv.ToDomain(nil))
}
