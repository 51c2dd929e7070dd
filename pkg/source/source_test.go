package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/foiabias/internal/errs"
	"github.com/xhad/foiabias/internal/models"
	"github.com/xhad/foiabias/pkg/config"
)

func collect(t *testing.T, src interface {
	Fetch(ctx context.Context, emit func(models.DocumentRecord) error) error
}) []models.DocumentRecord {
	t.Helper()
	var records []models.DocumentRecord
	require.NoError(t, src.Fetch(context.Background(), func(rec models.DocumentRecord) error {
		records = append(records, rec)
		return nil
	}))
	return records
}

func TestAgencyLogsSourceEmitsEnabledAgencies(t *testing.T) {
	src := NewAgencyLogsSource(AgencyLogsConfig{Agencies: []AgencyLog{
		{ID: "doj", Name: "DOJ", URL: "https://example.com/doj.csv", Enabled: true},
		{ID: "dos", Name: "DOS", URL: "https://example.com/dos.csv", Enabled: false},
	}})

	records := collect(t, src)
	require.Len(t, records, 1)
	assert.Equal(t, "doj", records[0].RequestID)
	assert.Equal(t, models.SourceAgencyLogs, records[0].Source)
	require.Len(t, records[0].Files, 1)
	assert.Equal(t, "https://example.com/doj.csv", records[0].Files[0].URL)
}

func TestBulkDatasetsSourceEmitsMetadataOnlyYears(t *testing.T) {
	src := NewBulkDatasetsSource(BulkDatasetsConfig{
		BaseURL: "https://example.com/annual",
		Years:   []int{2020, 2021},
	})

	records := collect(t, src)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.True(t, rec.MetadataOnly)
		assert.Equal(t, models.SourceBulkDatasets, rec.Source)
	}
	assert.Equal(t, "2020", records[0].RequestID)
	assert.Equal(t, "annual_2020", records[0].Files[0].ID)
	assert.Equal(t, "annual_2020.json", records[0].Files[0].Filename)
	assert.Equal(t, "https://example.com/annual?year=2021", records[1].Files[0].URL)
}

func TestBuildAllRequiresRecordsAPIToken(t *testing.T) {
	t.Setenv("TEST_RECORDS_TOKEN", "")

	cfg := &config.Config{}
	cfg.Sources.RecordsAPI.Enabled = true
	cfg.Sources.RecordsAPI.BaseURL = "https://example.com/api"
	cfg.Sources.RecordsAPI.APITokenEnvVar = "TEST_RECORDS_TOKEN"

	_, _, err := BuildAll(cfg)
	assert.ErrorIs(t, err, errs.ErrConfig)
}

func TestBuildAllDispatchTable(t *testing.T) {
	t.Setenv("TEST_RECORDS_TOKEN", "tok")

	cfg := &config.Config{}
	cfg.Sources.RecordsAPI.Enabled = true
	cfg.Sources.RecordsAPI.BaseURL = "https://example.com/api"
	cfg.Sources.RecordsAPI.APITokenEnvVar = "TEST_RECORDS_TOKEN"
	cfg.Sources.BulkDatasets.Enabled = true
	cfg.Sources.BulkDatasets.BaseURL = "https://example.com/annual"
	cfg.Sources.BulkDatasets.Years = []int{2022}

	table, client, err := BuildAll(cfg)
	require.NoError(t, err)
	// The returned client is the shared download fetcher.
	require.NotNil(t, client)
	assert.Equal(t, "https://example.com/api", client.BaseURL())
	assert.Contains(t, table, models.SourceRecordsAPI)
	assert.Contains(t, table, models.SourceBulkDatasets)
	assert.NotContains(t, table, models.SourceAgencyLogs)
	assert.NotContains(t, table, models.SourceReadingRooms)
}
