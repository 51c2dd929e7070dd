package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if c.LLM.MaxCharsPerDoc < 1 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_chars_per_doc",
			Message: "max_chars_per_doc must be positive",
		})
	}

	if c.Prefilter.EntityScanChars < 1 {
		errors = append(errors, ValidationError{
			Field:   "prefilter.entity_scan_chars",
			Message: "entity_scan_chars must be positive",
		})
	}

	if c.Prefilter.UseEmbeddingFilter && c.Prefilter.ExemplarDBURL != "" {
		if _, err := url.Parse(c.Prefilter.ExemplarDBURL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "prefilter.exemplar_db_url",
				Message: "invalid database URL",
			})
		}
	}

	if c.Processing.TextExtraction.MinTextLengthForNoOCR < 0 {
		errors = append(errors, ValidationError{
			Field:   "processing.text_extraction.min_text_length_for_no_ocr",
			Message: "min_text_length_for_no_ocr cannot be negative",
		})
	}

	if c.Processing.TextExtraction.OCRTimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "processing.text_extraction.ocr_timeout_seconds",
			Message: "ocr_timeout_seconds must be positive",
		})
	}

	if c.Processing.DownloadWorkers < 1 {
		errors = append(errors, ValidationError{
			Field:   "processing.download_workers",
			Message: "download_workers must be positive",
		})
	}

	if c.Sources.RecordsAPI.Enabled {
		if _, err := url.Parse(c.Sources.RecordsAPI.BaseURL); err != nil || c.Sources.RecordsAPI.BaseURL == "" {
			errors = append(errors, ValidationError{
				Field:   "sources.records_api.base_url",
				Message: "invalid records API base URL",
			})
		}
		if c.Sources.RecordsAPI.RateLimitSeconds < 0 {
			errors = append(errors, ValidationError{
				Field:   "sources.records_api.rate_limit_seconds",
				Message: "rate_limit_seconds cannot be negative",
			})
		}
		if c.Sources.RecordsAPI.MaxRequests < 1 {
			errors = append(errors, ValidationError{
				Field:   "sources.records_api.max_requests",
				Message: "max_requests must be positive",
			})
		}
	}

	for i, agency := range c.Sources.AgencyLogs.Agencies {
		if agency.ID == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("sources.agency_logs.agencies[%d].id", i),
				Message: "agency id is required",
			})
		}
		if agency.URL == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("sources.agency_logs.agencies[%d].url", i),
				Message: "agency log URL is required",
			})
		}
	}

	for i, ep := range c.Sources.ReadingRooms.Endpoints {
		if ep.BaseURL == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("sources.reading_rooms.endpoints[%d].base_url", i),
				Message: "endpoint base_url is required",
			})
		}
		if ep.MaxPages < 0 {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("sources.reading_rooms.endpoints[%d].max_pages", i),
				Message: "max_pages cannot be negative",
			})
		}
	}

	for _, name := range c.Sources.ProcessingPriority {
		switch name {
		case "records_api", "agency_logs", "reading_rooms", "bulk_datasets":
		default:
			errors = append(errors, ValidationError{
				Field:   "sources.processing_priority",
				Message: fmt.Sprintf("unknown source %q", name),
			})
		}
	}

	return errors
}
