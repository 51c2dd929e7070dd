// Package source implements the adapters that stream normalized document
// records from each upstream shape: a paginated records API, downloaded
// agency logs, scraped reading rooms, and bulk yearly datasets.
package source

import (
	"fmt"
	"os"

	"github.com/xhad/foiabias/internal/errs"
	"github.com/xhad/foiabias/internal/models"
	"github.com/xhad/foiabias/internal/types"
	"github.com/xhad/foiabias/pkg/api"
	"github.com/xhad/foiabias/pkg/config"
)

// BuildAll resolves the configured sources into a dispatch table keyed by
// source kind, plus the one API client shared between pagination and file
// downloads so they sit behind a single rate gate. Resolution happens once,
// at configuration time; missing credentials for an enabled records source
// abort here, before any record is processed.
func BuildAll(cfg *config.Config) (map[models.SourceKind]types.Source, *api.Client, error) {
	table := make(map[models.SourceKind]types.Source)

	token := os.Getenv(cfg.Sources.RecordsAPI.APITokenEnvVar)
	client := api.NewWithConfig(api.Config{
		BaseURL:          cfg.Sources.RecordsAPI.BaseURL,
		Token:            token,
		RateLimitSeconds: cfg.Sources.RecordsAPI.RateLimitSeconds,
	})

	if cfg.Sources.RecordsAPI.Enabled {
		if token == "" {
			return nil, nil, fmt.Errorf(
				"%w: missing records API credentials: provide an API token via the %s environment variable",
				errs.ErrConfig, cfg.Sources.RecordsAPI.APITokenEnvVar)
		}
		table[models.SourceRecordsAPI] = NewRecordsAPISource(RecordsAPIConfig{
			Client:      client,
			MaxRequests: cfg.Sources.RecordsAPI.MaxRequests,
			StartDate:   cfg.Sources.RecordsAPI.StartDate,
			EndDate:     cfg.Sources.RecordsAPI.EndDate,
		})
	}

	if cfg.Sources.AgencyLogs.Enabled {
		agencies := make([]AgencyLog, 0, len(cfg.Sources.AgencyLogs.Agencies))
		for _, a := range cfg.Sources.AgencyLogs.Agencies {
			agencies = append(agencies, AgencyLog{
				ID:      a.ID,
				Name:    a.Name,
				URL:     a.URL,
				Enabled: config.On(a.Enabled),
			})
		}
		table[models.SourceAgencyLogs] = NewAgencyLogsSource(AgencyLogsConfig{Agencies: agencies})
	}

	if cfg.Sources.ReadingRooms.Enabled {
		endpoints := make([]ReadingRoomEndpoint, 0, len(cfg.Sources.ReadingRooms.Endpoints))
		for _, e := range cfg.Sources.ReadingRooms.Endpoints {
			endpoints = append(endpoints, ReadingRoomEndpoint{
				ID:              e.ID,
				Name:            e.Name,
				BaseURL:         e.BaseURL,
				MaxPages:        e.MaxPages,
				PaginationParam: e.PaginationParam,
				Enabled:         config.On(e.Enabled),
			})
		}
		table[models.SourceReadingRooms] = NewReadingRoomSource(ReadingRoomConfig{Endpoints: endpoints})
	}

	if cfg.Sources.BulkDatasets.Enabled {
		table[models.SourceBulkDatasets] = NewBulkDatasetsSource(BulkDatasetsConfig{
			BaseURL: cfg.Sources.BulkDatasets.BaseURL,
			Years:   cfg.Sources.BulkDatasets.Years,
		})
	}

	return table, client, nil
}
