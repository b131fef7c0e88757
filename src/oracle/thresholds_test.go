package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyMetric_Boundaries(t *testing.T) {
	cases := []struct {
		metric string
		value  float64
		want   CapabilityLevel
	}{
		{"fp_rate", 0.05, Expert},
		{"fp_rate", 0.10, Expert},
		{"fp_rate", 0.11, Calibrated},
		{"fp_rate", 0.30, Calibrated},
		{"fp_rate", 0.79, PartiallyCalibrated},
		{"fp_rate", 0.80, PartiallyCalibrated},
		{"fp_rate", 0.81, Uncalibrated},
		{"egar", 0.95, Expert},
		{"egar", 0.90, Expert},
		{"egar", 0.61, Calibrated},
		{"egar", 0.20, PartiallyCalibrated},
		{"egar", 0.19, Uncalibrated},
		{"ttfc", 15.0, Expert},
		{"ttfc", 10.5, Calibrated},
		{"ttfc", 8.0, PartiallyCalibrated},
		{"ttfc", 7.9, Uncalibrated},
		{"blast_radius", 0.0, Expert},
		{"blast_radius", 0.35, Calibrated},
		{"blast_radius", 1.0, PartiallyCalibrated},
		{"blast_radius", 1.1, Uncalibrated},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.want, classifyMetric(tc.metric, tc.value), "%s=%v", tc.metric, tc.value)
	}
}

func TestClassifyCapabilityLevel_WeakestLink(t *testing.T) {
	result := ClassifyCapabilityLevel(map[string]float64{
		"fp_rate":      0.05,  // expert
		"egar":         0.95,  // expert
		"ttfc":         9.0,   // partially_calibrated, the limiting metric
		"blast_radius": 0.05,  // expert
	})

	assert.Equal(t, PartiallyCalibrated, result.OverallLevel)
	assert.Equal(t, []string{"ttfc"}, result.LimitingMetrics)
	assert.True(t, result.Provisional)
	assert.Equal(t, CalibrationSource, result.CalibrationSource)
}

func TestClassifyCapabilityLevel_MultipleLimitingMetrics(t *testing.T) {
	result := ClassifyCapabilityLevel(map[string]float64{
		"fp_rate": 0.95, // uncalibrated
		"egar":    0.05, // uncalibrated
	})

	assert.Equal(t, Uncalibrated, result.OverallLevel)
	assert.ElementsMatch(t, []string{"fp_rate", "egar"}, result.LimitingMetrics)
}

func TestClassifyCapabilityLevel_MissingMetricsSkipped(t *testing.T) {
	result := ClassifyCapabilityLevel(map[string]float64{"egar": 0.95})

	assert.Equal(t, Expert, result.OverallLevel)
	assert.Len(t, result.PerMetricLevel, 1)
}

func TestClassifyCapabilityLevel_NoMetrics(t *testing.T) {
	result := ClassifyCapabilityLevel(map[string]float64{})

	assert.Equal(t, Uncalibrated, result.OverallLevel)
	assert.Nil(t, result.LimitingMetrics)
	assert.Empty(t, result.PerMetricLevel)
}
