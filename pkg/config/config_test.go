package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "data/processed", cfg.Storage.LabeledOutputDir)
	assert.Equal(t, "csv", cfg.Storage.LabeledExt)
	assert.Equal(t, "gpt-4o", cfg.LLM.ClassifierModel)
	assert.Equal(t, "OPENAI_API_KEY", cfg.LLM.APIKeyEnvVar)
	assert.Equal(t, 20000, cfg.LLM.MaxCharsPerDoc)
	assert.Equal(t, 1, cfg.Prefilter.KeywordThreshold)
	assert.Equal(t, 5000, cfg.Prefilter.EntityScanChars)
	assert.Equal(t, 1000, cfg.Processing.TextExtraction.MinTextLengthForNoOCR)
	assert.Equal(t, 300, cfg.Processing.TextExtraction.OCRTimeoutSeconds)
	assert.Equal(t, 4, cfg.Processing.DownloadWorkers)
	assert.Equal(t, "https://www.muckrock.com/api_v2", cfg.Sources.RecordsAPI.BaseURL)
	assert.Equal(t, "MUCKROCK_API_TOKEN", cfg.Sources.RecordsAPI.APITokenEnvVar)
	assert.Equal(t,
		[]string{"records_api", "agency_logs", "reading_rooms", "bulk_datasets"},
		cfg.Sources.ProcessingPriority)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
storage:
  labeled_output_dir: /tmp/out
llm:
  classifier_model: gpt-4o-mini
  max_chars_per_doc: 5000
prefilter:
  keyword_threshold: 3
sources:
  processing_priority: [records_api]
  records_api:
    enabled: true
    start_date: "2015-06-01"
  agency_logs:
    enabled: true
    agencies:
      - id: doj
        name: Department of Justice
        url: https://example.com/log.csv
      - id: dos
        name: State
        url: https://example.com/dos.csv
        enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/out", cfg.Storage.LabeledOutputDir)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.ClassifierModel)
	assert.Equal(t, 5000, cfg.LLM.MaxCharsPerDoc)
	assert.Equal(t, 3, cfg.Prefilter.KeywordThreshold)
	assert.Equal(t, []string{"records_api"}, cfg.Sources.ProcessingPriority)
	assert.Equal(t, "2015-06-01", cfg.Sources.RecordsAPI.StartDate)
	// Defaults still apply for unset fields.
	assert.Equal(t, "https://www.muckrock.com/api_v2", cfg.Sources.RecordsAPI.BaseURL)

	require.Len(t, cfg.Sources.AgencyLogs.Agencies, 2)
	assert.True(t, On(cfg.Sources.AgencyLogs.Agencies[0].Enabled))
	assert.False(t, On(cfg.Sources.AgencyLogs.Agencies[1].Enabled))
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Validate())

	cfg.LLM.MaxCharsPerDoc = 0
	cfg.Processing.DownloadWorkers = 0
	cfg.Sources.ProcessingPriority = []string{"records_api", "mystery_feed"}
	cfg.Sources.AgencyLogs.Agencies = []AgencyLog{{Name: "no id or url"}}

	errs := cfg.Validate()
	fields := make([]string, 0, len(errs))
	for _, e := range errs {
		fields = append(fields, e.Field)
	}
	assert.Contains(t, fields, "llm.max_chars_per_doc")
	assert.Contains(t, fields, "processing.download_workers")
	assert.Contains(t, fields, "sources.processing_priority")
	assert.Contains(t, fields, "sources.agency_logs.agencies[0].id")
	assert.Contains(t, fields, "sources.agency_logs.agencies[0].url")
}
