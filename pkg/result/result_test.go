package result

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReportAggregates(t *testing.T) {
	start := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	r := &RunReport{
		StartedAt: start,
		Results: []ModuleResult{
			{Module: "SystemInventory", Status: StatusCompleted, Success: true, Counts: Counts{Detected: 7}},
			{Module: "BloatwareRemoval", Status: StatusFailed, Counts: Counts{Detected: 3, Processed: 2, Failed: 1}},
			{Module: "WindowsUpdates", Status: StatusDisabled},
		},
	}
	assert.Equal(t, time.Duration(0), r.Duration())
	r.FinishedAt = start.Add(90 * time.Second)
	assert.Equal(t, 90*time.Second, r.Duration())

	assert.True(t, r.Failed())
	assert.Equal(t, StatusFailed, r.Status())
	assert.Equal(t, Counts{Detected: 10, Processed: 2, Failed: 1}, r.Totals())
	assert.Equal(t, map[string]int{StatusCompleted: 1, StatusFailed: 1, StatusDisabled: 1}, r.CountByStatus())

	r.Interrupted = true
	assert.Equal(t, "interrupted", r.Status())
}

func TestModuleResultJSONFlattensCounts(t *testing.T) {
	data, err := json.Marshal(ModuleResult{Module: "EssentialApps", Counts: Counts{Detected: 2, Processed: 1}})
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, float64(2), m["items_detected"])
	assert.Equal(t, float64(1), m["items_processed"])
	assert.NotContains(t, m, "error")
}
