package source

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/xhad/foiabias/internal/errs"
	"github.com/xhad/foiabias/internal/models"
	"github.com/xhad/foiabias/pkg/logger"
)

// ReadingRoomEndpoint is one agency reading room: a paginated HTML listing
// of released PDFs.
type ReadingRoomEndpoint struct {
	ID              string
	Name            string
	BaseURL         string
	MaxPages        int
	PaginationParam string
	Enabled         bool
}

type ReadingRoomConfig struct {
	Endpoints []ReadingRoomEndpoint
	RateLimit float64 // requests per second
	Timeout   time.Duration
}

// ReadingRoomSource walks each endpoint's pages and emits one record per
// PDF link discovered. The markup differs wildly per agency, so the scan is
// intentionally just "anchors ending in .pdf".
type ReadingRoomSource struct {
	config  ReadingRoomConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *log.Logger
}

func NewReadingRoomSource(config ReadingRoomConfig) *ReadingRoomSource {
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	return &ReadingRoomSource{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		logger:  logger.New("ReadingRooms"),
	}
}

func (s *ReadingRoomSource) Kind() models.SourceKind { return models.SourceReadingRooms }

func (s *ReadingRoomSource) Fetch(ctx context.Context, emit func(models.DocumentRecord) error) error {
	for _, endpoint := range s.config.Endpoints {
		if !endpoint.Enabled {
			continue
		}
		if err := s.fetchEndpoint(ctx, endpoint, emit); err != nil {
			return err
		}
	}
	return nil
}

func (s *ReadingRoomSource) fetchEndpoint(ctx context.Context, endpoint ReadingRoomEndpoint, emit func(models.DocumentRecord) error) error {
	maxPages := endpoint.MaxPages
	if maxPages == 0 {
		maxPages = 1
	}
	param := endpoint.PaginationParam
	if param == "" {
		param = "page"
	}

	for page := 1; page <= maxPages; page++ {
		doc, err := s.getPage(ctx, endpoint.BaseURL, param, page)
		if err != nil {
			// One broken page should not sink the other endpoints.
			s.logger.Printf("page %d of %s failed: %v", page, endpoint.ID, err)
			continue
		}

		var emitErr error
		doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			href, ok := sel.Attr("href")
			if !ok || !isPDFLink(href) {
				return true
			}
			absolute, err := resolveLink(endpoint.BaseURL, href)
			if err != nil {
				return true
			}
			title := strings.TrimSpace(sel.Text())
			if title == "" {
				title = "reading-room-doc"
			}
			rec := models.DocumentRecord{
				Source:      models.SourceReadingRooms,
				RequestID:   fmt.Sprintf("%s-%d-%s", endpoint.ID, page, linkStem(absolute)),
				Agency:      endpoint.Name,
				Title:       title,
				Description: absolute,
				Files: []models.FileDescriptor{{
					URL:      absolute,
					Filetype: "pdf",
				}},
			}
			if err := emit(rec); err != nil {
				emitErr = err
				return false
			}
			return true
		})
		if emitErr != nil {
			return emitErr
		}
	}
	return nil
}

func (s *ReadingRoomSource) getPage(ctx context.Context, baseURL, param string, page int) (*goquery.Document, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set(param, fmt.Sprintf("%d", page))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &errs.TransportError{Status: resp.StatusCode, URL: u.String()}
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

func isPDFLink(href string) bool {
	trimmed := href
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	return strings.HasSuffix(strings.ToLower(trimmed), ".pdf")
}

func resolveLink(baseURL, href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

func linkStem(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "doc"
	}
	stem := strings.TrimSuffix(path.Base(u.Path), path.Ext(u.Path))
	if stem == "" || stem == "." {
		return "doc"
	}
	return stem
}
