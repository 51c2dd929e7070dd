package source

import (
	"context"
	"fmt"
	"log"

	"github.com/xhad/foiabias/internal/models"
	"github.com/xhad/foiabias/pkg/logger"
)

// AgencyLog describes one published FOIA log file.
type AgencyLog struct {
	ID      string
	Name    string
	URL     string
	Enabled bool
}

type AgencyLogsConfig struct {
	Agencies []AgencyLog
}

// AgencyLogsSource emits one parent record per configured agency log. The
// pipeline resolves the log file through the download cache and explodes its
// rows into per-row records for labeling.
type AgencyLogsSource struct {
	config AgencyLogsConfig
	logger *log.Logger
}

func NewAgencyLogsSource(config AgencyLogsConfig) *AgencyLogsSource {
	return &AgencyLogsSource{config: config, logger: logger.New("AgencyLogs")}
}

func (s *AgencyLogsSource) Kind() models.SourceKind { return models.SourceAgencyLogs }

func (s *AgencyLogsSource) Fetch(ctx context.Context, emit func(models.DocumentRecord) error) error {
	for _, agency := range s.config.Agencies {
		if !agency.Enabled {
			s.logger.Printf("skipping disabled agency %s", agency.ID)
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rec := models.DocumentRecord{
			Source:      models.SourceAgencyLogs,
			RequestID:   agency.ID,
			Agency:      agency.Name,
			Title:       fmt.Sprintf("FOIA log %s", agency.Name),
			Description: agency.URL,
			Files: []models.FileDescriptor{{
				ID:  agency.ID,
				URL: agency.URL,
			}},
		}
		if err := emit(rec); err != nil {
			return err
		}
	}
	return nil
}
