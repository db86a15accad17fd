package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/inferbench/bench-server/internal/db/drivers"
	"github.com/inferbench/bench-server/internal/db/models"
	"github.com/inferbench/bench-server/internal/types"
)

func testDB(t *testing.T) *bun.DB {
	t.Helper()
	ctx := context.Background()

	driver, err := drivers.NewSQLiteDriver(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	db := driver.GetDB()
	t.Cleanup(func() { db.Close() })

	for _, model := range []interface{}{(*models.Result)(nil), (*models.APIKey)(nil)} {
		_, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
		require.NoError(t, err)
	}

	return db
}

func testResultRecord(identity string) types.ResultRecord {
	return types.ResultRecord{
		ID:        identity,
		Platform:  types.PlatformNode,
		ModelID:   "Xenova/all-MiniLM-L6-v2",
		Task:      "feature-extraction",
		Mode:      types.ModeWarm,
		Repeats:   2,
		BatchSize: 1,
		Device:    types.DeviceCPU,
		Status:    types.JobStatusCompleted,
		Timestamp: 1700000000000,
		Metrics: &types.Metrics{
			LoadMS:            types.MetricSummary{P50: 110, P90: 118, Raw: []float64{100, 120}},
			FirstInferMS:      types.MetricSummary{P50: 21, P90: 21.8, Raw: []float64{20, 22}},
			SubsequentInferMS: types.MetricSummary{P50: 11.5, P90: 12.7, Raw: []float64{10, 11, 12, 13}},
		},
		StartedAt:   1700000000100,
		CompletedAt: 1700000004100,
	}
}

func insertResult(t *testing.T, repo IResultRepository, rec types.ResultRecord, createdAt time.Time) *models.Result {
	t.Helper()

	row, err := models.NewResult(rec, "feature-extraction/Xenova/all-MiniLM-L6-v2/"+rec.ID+".json")
	require.NoError(t, err)
	row.CreatedAt = bun.NullTime{Time: createdAt}

	created, err := repo.Create(context.Background(), row)
	require.NoError(t, err)

	return created
}

func TestResultCreateAndGet(t *testing.T) {
	repo := NewResultRepository(testDB(t))

	rec := testResultRecord("node_warm_cpu_b1")
	created := insertResult(t, repo, rec, time.Now().UTC())

	got, err := repo.GetByID(context.Background(), created.ID.String())
	require.NoError(t, err)

	assert.Equal(t, "node_warm_cpu_b1", got.Identity)
	assert.Equal(t, "Xenova/all-MiniLM-L6-v2", got.ModelID)
	assert.Equal(t, "completed", got.Status)
	assert.Equal(t, 110.0, got.LoadP50)
	assert.Equal(t, 12.7, got.SubseqP90)

	decoded, err := got.DecodeRecord()
	require.NoError(t, err)
	assert.Equal(t, rec, *decoded)
}

func TestResultListFilters(t *testing.T) {
	repo := NewResultRepository(testDB(t))
	now := time.Now().UTC()

	first := testResultRecord("node_warm_cpu_b1")
	insertResult(t, repo, first, now)

	second := testResultRecord("web_warm_wasm_b1")
	second.Platform = types.PlatformWeb
	second.Device = types.DeviceWASM
	second.ModelID = "Xenova/distilbert-sst2"
	second.Task = "text-classification"
	insertResult(t, repo, second, now.Add(time.Second))

	third := testResultRecord("node_warm_cpu_q8_b1")
	third.DType = "q8"
	third.Status = types.JobStatusFailed
	third.Error = "process timed out after 10m0s"
	third.Metrics = nil
	insertResult(t, repo, third, now.Add(2*time.Second))

	ctx := context.Background()

	all, err := repo.List(ctx, ResultFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "node_warm_cpu_q8_b1", all[0].Identity, "newest first")

	byModel, err := repo.List(ctx, ResultFilter{ModelID: "Xenova/distilbert-sst2"})
	require.NoError(t, err)
	require.Len(t, byModel, 1)
	assert.Equal(t, "web", byModel[0].Platform)

	byStatus, err := repo.List(ctx, ResultFilter{Status: "failed"})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.NotEmpty(t, byStatus[0].Record, "failed rows keep their blob")
	assert.Equal(t, "process timed out after 10m0s", byStatus[0].Error)

	byDType, err := repo.List(ctx, ResultFilter{DType: "q8", Platform: "node"})
	require.NoError(t, err)
	require.Len(t, byDType, 1)

	limited, err := repo.List(ctx, ResultFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestResultGetLatestByIdentity(t *testing.T) {
	repo := NewResultRepository(testDB(t))
	now := time.Now().UTC()

	old := testResultRecord("node_warm_cpu_b1")
	insertResult(t, repo, old, now.Add(-time.Hour))

	fresh := testResultRecord("node_warm_cpu_b1")
	fresh.Timestamp = 1700009999000
	insertResult(t, repo, fresh, now)

	got, err := repo.GetLatestByIdentity(context.Background(), "node_warm_cpu_b1")
	require.NoError(t, err)

	decoded, err := got.DecodeRecord()
	require.NoError(t, err)
	assert.Equal(t, int64(1700009999000), decoded.Timestamp)

	_, err = repo.GetLatestByIdentity(context.Background(), "never_ran")
	assert.Error(t, err)
}

func TestAPIKeyLifecycle(t *testing.T) {
	repo := NewAPIKeyRepository(testDB(t))
	ctx := context.Background()

	key := models.NewAPIKey("ci", "deadbeef", "bk-a***f")
	created, err := repo.Create(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "ci", created.Name)
	assert.False(t, created.IsRevoked)

	got, err := repo.GetAPIKeyWithHash(ctx, "deadbeef")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	require.NoError(t, repo.RevokeAPIKeyWithHash(ctx, "deadbeef"))

	got, err = repo.GetAPIKeyWithHash(ctx, "deadbeef")
	require.NoError(t, err)
	assert.True(t, got.IsRevoked)

	keys, err := repo.ListAPIKeys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}
