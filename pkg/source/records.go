package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"

	"github.com/xhad/foiabias/internal/errs"
	"github.com/xhad/foiabias/internal/models"
	"github.com/xhad/foiabias/pkg/api"
	"github.com/xhad/foiabias/pkg/logger"
)

type RecordsAPIConfig struct {
	Client      *api.Client
	MaxRequests int
	// StartDate filters server-side via updated_after; EndDate filters
	// client-side on date_done.
	StartDate string
	EndDate   string
}

// RecordsAPISource streams completed records from a paginated records API.
// Records arriving without an embedded attachment list go through the
// fallback discovery chain before being emitted.
type RecordsAPISource struct {
	config RecordsAPIConfig
	logger *log.Logger
}

func NewRecordsAPISource(config RecordsAPIConfig) *RecordsAPISource {
	if config.MaxRequests == 0 {
		config.MaxRequests = 1000
	}
	return &RecordsAPISource{config: config, logger: logger.New("RecordsAPI")}
}

func (s *RecordsAPISource) Kind() models.SourceKind { return models.SourceRecordsAPI }

type apiRequest struct {
	ID               json.Number `json:"id"`
	AgencyName       string      `json:"agency_name"`
	Title            string      `json:"title"`
	ShortDescription string      `json:"short_description"`
	DateSubmitted    string      `json:"date_submitted"`
	DateDone         string      `json:"date_done"`
	UserName         string      `json:"user_name"`
	Files            []apiFile   `json:"files"`
}

type apiFile struct {
	ID            json.Number `json:"id"`
	URL           string      `json:"url"`
	Filename      string      `json:"filename"`
	Filetype      string      `json:"filetype"`
	Size          int64       `json:"size"`
	Communication json.Number `json:"communication"`
}

var errEnough = errors.New("max requests reached")

func (s *RecordsAPISource) Fetch(ctx context.Context, emit func(models.DocumentRecord) error) error {
	params := url.Values{}
	params.Set("status", "done")
	params.Set("has_files", "true")
	params.Set("page_size", "100")
	if s.config.StartDate != "" {
		params.Set("updated_after", s.config.StartDate)
	}

	count := 0
	err := s.config.Client.Pages(ctx, "/requests/", params, func(row json.RawMessage) error {
		var req apiRequest
		if err := json.Unmarshal(row, &req); err != nil {
			s.logger.Printf("skipping undecodable record: %v", err)
			return nil
		}
		if s.config.EndDate != "" && req.DateDone != "" && req.DateDone > s.config.EndDate {
			return nil
		}

		rec := models.DocumentRecord{
			Source:        models.SourceRecordsAPI,
			RequestID:     req.ID.String(),
			Agency:        req.AgencyName,
			Title:         req.Title,
			Description:   req.ShortDescription,
			DateSubmitted: req.DateSubmitted,
			DateDone:      req.DateDone,
			Requester:     req.UserName,
			Files:         toDescriptors(req.Files),
		}

		if len(rec.Files) == 0 {
			files, err := s.DiscoverAttachments(ctx, rec.RequestID)
			if err != nil {
				s.logger.Printf("attachment discovery failed for %s: %v", rec.RequestID, err)
				return nil
			}
			if len(files) == 0 {
				s.logger.Printf("request %s did not yield any downloadable files", rec.RequestID)
				return nil
			}
			rec.Files = files
		}

		if err := emit(rec); err != nil {
			return err
		}
		count++
		if count >= s.config.MaxRequests {
			return errEnough
		}
		return nil
	})
	if errors.Is(err, errEnough) {
		return nil
	}
	return err
}

// DiscoverAttachments tries ordered strategies until one yields at least one
// attachment. A tolerated transport failure (401/403/404) means "this
// strategy has nothing"; other failures only propagate from the last
// strategy so discovery degrades rather than aborting the record.
func (s *RecordsAPISource) DiscoverAttachments(ctx context.Context, requestID string) ([]models.FileDescriptor, error) {
	strategies := []func(context.Context, string) ([]models.FileDescriptor, error){
		s.detailViewAttachments,
		s.communicationAttachments,
	}

	for i, strategy := range strategies {
		files, err := strategy(ctx, requestID)
		if err != nil {
			if te, ok := errs.AsTransport(err); ok && te.Tolerated() {
				continue
			}
			if i == len(strategies)-1 {
				return nil, err
			}
			s.logger.Printf("discovery strategy %d failed for %s, trying next: %v", i+1, requestID, err)
			continue
		}
		if len(files) > 0 {
			return files, nil
		}
	}
	return nil, nil
}

// detailViewAttachments fetches the record detail view and uses whichever of
// its documents/files/attachments fields is present.
func (s *RecordsAPISource) detailViewAttachments(ctx context.Context, requestID string) ([]models.FileDescriptor, error) {
	detailURL := fmt.Sprintf("%s/requests/%s/", s.baseURL(), requestID)
	var detail map[string]json.RawMessage
	if err := s.config.Client.GetJSON(ctx, detailURL, nil, &detail); err != nil {
		return nil, err
	}

	for _, key := range []string{"documents", "files", "attachments"} {
		raw, ok := detail[key]
		if !ok {
			continue
		}
		var files []apiFile
		if err := json.Unmarshal(raw, &files); err != nil {
			continue
		}
		if len(files) > 0 {
			return toDescriptors(files), nil
		}
	}
	return nil, nil
}

// communicationAttachments enumerates the record's communications and
// aggregates the files attached to each of them.
func (s *RecordsAPISource) communicationAttachments(ctx context.Context, requestID string) ([]models.FileDescriptor, error) {
	type communication struct {
		ID json.Number `json:"id"`
	}

	params := url.Values{}
	params.Set("request", requestID)
	var commIDs []string
	err := s.config.Client.Pages(ctx, "/communications/", params, func(row json.RawMessage) error {
		var comm communication
		if err := json.Unmarshal(row, &comm); err != nil {
			return nil
		}
		commIDs = append(commIDs, comm.ID.String())
		return nil
	})
	if err != nil {
		return nil, err
	}

	var all []models.FileDescriptor
	for _, commID := range commIDs {
		fileParams := url.Values{}
		fileParams.Set("communication", commID)
		err := s.config.Client.Pages(ctx, "/files/", fileParams, func(row json.RawMessage) error {
			var f apiFile
			if err := json.Unmarshal(row, &f); err != nil {
				return nil
			}
			fd := toDescriptor(f)
			fd.CommunicationID = commID
			all = append(all, fd)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return all, nil
}

func (s *RecordsAPISource) baseURL() string {
	// Pages prefixes paths with the client's base URL; detail views need the
	// same base for absolute construction.
	return s.config.Client.BaseURL()
}

func toDescriptors(files []apiFile) []models.FileDescriptor {
	out := make([]models.FileDescriptor, 0, len(files))
	for _, f := range files {
		if f.URL == "" {
			continue
		}
		out = append(out, toDescriptor(f))
	}
	return out
}

func toDescriptor(f apiFile) models.FileDescriptor {
	return models.FileDescriptor{
		ID:              f.ID.String(),
		URL:             f.URL,
		Filename:        f.Filename,
		Filetype:        f.Filetype,
		SizeHint:        f.Size,
		CommunicationID: f.Communication.String(),
	}
}
