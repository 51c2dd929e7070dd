package source

import (
	"context"
	"fmt"
	"log"

	"github.com/xhad/foiabias/internal/models"
	"github.com/xhad/foiabias/pkg/logger"
)

type BulkDatasetsConfig struct {
	BaseURL string
	Years   []int
}

// BulkDatasetsSource emits one metadata-only record per configured year of
// the bulk annual-statistics dataset. These records never reach the
// classification cascade; they always get the stub neutral label.
type BulkDatasetsSource struct {
	config BulkDatasetsConfig
	logger *log.Logger
}

func NewBulkDatasetsSource(config BulkDatasetsConfig) *BulkDatasetsSource {
	return &BulkDatasetsSource{config: config, logger: logger.New("BulkDatasets")}
}

func (s *BulkDatasetsSource) Kind() models.SourceKind { return models.SourceBulkDatasets }

func (s *BulkDatasetsSource) Fetch(ctx context.Context, emit func(models.DocumentRecord) error) error {
	if s.config.BaseURL == "" {
		return fmt.Errorf("bulk datasets base URL is not configured")
	}
	s.logger.Printf("emitting %d metadata-only yearly records", len(s.config.Years))
	for _, year := range s.config.Years {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec := models.DocumentRecord{
			Source:       models.SourceBulkDatasets,
			RequestID:    fmt.Sprintf("%d", year),
			Agency:       "annual-report",
			Title:        fmt.Sprintf("Annual FOIA data %d", year),
			Description:  s.config.BaseURL,
			MetadataOnly: true,
			Files: []models.FileDescriptor{{
				// Namespaced so a bare year never collides with a numeric
				// file id from another source in the shared cache.
				ID:       fmt.Sprintf("annual_%d", year),
				URL:      fmt.Sprintf("%s?year=%d", s.config.BaseURL, year),
				Filename: fmt.Sprintf("annual_%d.json", year),
			}},
		}
		if err := emit(rec); err != nil {
			return err
		}
	}
	return nil
}
