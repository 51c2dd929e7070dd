package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Storage struct {
		LabeledOutputDir string `yaml:"labeled_output_dir"`
		CacheDir         string `yaml:"cache_dir"`
		LabeledExt       string `yaml:"labeled_ext"`
	} `yaml:"storage"`

	LLM struct {
		ClassifierModel  string `yaml:"classifier_model"`
		BaseURL          string `yaml:"base_url"`
		APIKeyEnvVar     string `yaml:"api_key_env_var"`
		MaxCharsPerDoc   int    `yaml:"max_chars_per_doc"`
		EmbeddingModel   string `yaml:"embedding_model"`
		EmbeddingBaseURL string `yaml:"embedding_base_url"`
	} `yaml:"llm"`

	Prefilter struct {
		KeywordThreshold   int    `yaml:"keyword_threshold"`
		EntityScanChars    int    `yaml:"entity_scan_chars"`
		UseEmbeddingFilter bool   `yaml:"use_embedding_filter"`
		ExemplarDBURL      string `yaml:"exemplar_db_url"`
		ExemplarTable      string `yaml:"exemplar_table"`
	} `yaml:"prefilter"`

	Registry struct {
		RosterURL string `yaml:"roster_url"`
		CacheFile string `yaml:"cache_file"`
	} `yaml:"registry"`

	Processing struct {
		TextExtraction struct {
			MinTextLengthForNoOCR int `yaml:"min_text_length_for_no_ocr"`
			OCRTimeoutSeconds     int `yaml:"ocr_timeout_seconds"`
		} `yaml:"text_extraction"`
		AdminMapping struct {
			MarkTransitionPeriodMonths int `yaml:"mark_transition_period_months"`
		} `yaml:"admin_mapping"`
		DownloadWorkers int `yaml:"download_workers"`
	} `yaml:"processing"`

	Sources SourcesConfig `yaml:"sources"`
}

type SourcesConfig struct {
	ProcessingPriority []string           `yaml:"processing_priority"`
	RecordsAPI         RecordsAPIConfig   `yaml:"records_api"`
	AgencyLogs         AgencyLogsConfig   `yaml:"agency_logs"`
	ReadingRooms       ReadingRoomsConfig `yaml:"reading_rooms"`
	BulkDatasets       BulkDatasetsConfig `yaml:"bulk_datasets"`
}

type RecordsAPIConfig struct {
	Enabled          bool    `yaml:"enabled"`
	BaseURL          string  `yaml:"base_url"`
	APITokenEnvVar   string  `yaml:"api_token_env_var"`
	RateLimitSeconds float64 `yaml:"rate_limit_seconds"`
	MaxRequests      int     `yaml:"max_requests"`
	StartDate        string  `yaml:"start_date"`
	EndDate          string  `yaml:"end_date"`
}

type AgencyLogsConfig struct {
	Enabled  bool        `yaml:"enabled"`
	Agencies []AgencyLog `yaml:"agencies"`
}

type AgencyLog struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	URL     string `yaml:"url"`
	Enabled *bool  `yaml:"enabled"`
}

type ReadingRoomsConfig struct {
	Enabled   bool                  `yaml:"enabled"`
	Endpoints []ReadingRoomEndpoint `yaml:"endpoints"`
}

type ReadingRoomEndpoint struct {
	ID              string `yaml:"id"`
	Name            string `yaml:"name"`
	BaseURL         string `yaml:"base_url"`
	MaxPages        int    `yaml:"max_pages"`
	PaginationParam string `yaml:"pagination_param"`
	Enabled         *bool  `yaml:"enabled"`
}

type BulkDatasetsConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	Years   []int  `yaml:"years"`
}

// On reports whether an optional per-entry enabled flag is set. Absent means
// enabled, matching how agency and endpoint entries are written in configs.
func On(flag *bool) bool {
	return flag == nil || *flag
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/foiabias/config.yaml"),
			"/etc/foiabias/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Storage.LabeledOutputDir == "" {
		config.Storage.LabeledOutputDir = "data/processed"
	}
	if config.Storage.CacheDir == "" {
		config.Storage.CacheDir = "data/cache"
	}
	if config.Storage.LabeledExt == "" {
		config.Storage.LabeledExt = "csv"
	}

	if config.LLM.ClassifierModel == "" {
		config.LLM.ClassifierModel = "gpt-4o"
	}
	if config.LLM.APIKeyEnvVar == "" {
		config.LLM.APIKeyEnvVar = "OPENAI_API_KEY"
	}
	if config.LLM.MaxCharsPerDoc == 0 {
		config.LLM.MaxCharsPerDoc = 20000
	}
	if config.LLM.EmbeddingModel == "" {
		config.LLM.EmbeddingModel = "nomic-embed-text:latest"
	}
	if config.LLM.EmbeddingBaseURL == "" {
		config.LLM.EmbeddingBaseURL = "http://localhost:11434"
	}

	if config.Prefilter.KeywordThreshold == 0 {
		config.Prefilter.KeywordThreshold = 1
	}
	if config.Prefilter.EntityScanChars == 0 {
		config.Prefilter.EntityScanChars = 5000
	}
	if config.Prefilter.ExemplarTable == "" {
		config.Prefilter.ExemplarTable = "prefilter_exemplars"
	}

	if config.Registry.RosterURL == "" {
		config.Registry.RosterURL = "https://unitedstates.github.io/congress-legislators/legislators-current.yaml"
	}
	if config.Registry.CacheFile == "" {
		config.Registry.CacheFile = "data/registry/legislators.yaml"
	}

	if config.Processing.TextExtraction.MinTextLengthForNoOCR == 0 {
		config.Processing.TextExtraction.MinTextLengthForNoOCR = 1000
	}
	if config.Processing.TextExtraction.OCRTimeoutSeconds == 0 {
		config.Processing.TextExtraction.OCRTimeoutSeconds = 300
	}
	if config.Processing.DownloadWorkers == 0 {
		config.Processing.DownloadWorkers = 4
	}

	if config.Sources.RecordsAPI.BaseURL == "" {
		config.Sources.RecordsAPI.BaseURL = "https://www.muckrock.com/api_v2"
	}
	if config.Sources.RecordsAPI.APITokenEnvVar == "" {
		config.Sources.RecordsAPI.APITokenEnvVar = "MUCKROCK_API_TOKEN"
	}
	if config.Sources.RecordsAPI.RateLimitSeconds == 0 {
		config.Sources.RecordsAPI.RateLimitSeconds = 1.0
	}
	if config.Sources.RecordsAPI.MaxRequests == 0 {
		config.Sources.RecordsAPI.MaxRequests = 1000
	}

	if len(config.Sources.ProcessingPriority) == 0 {
		config.Sources.ProcessingPriority = []string{
			"records_api", "agency_logs", "reading_rooms", "bulk_datasets",
		}
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if embURL := os.Getenv("OLLAMA_BASE_URL"); embURL != "" {
		config.LLM.EmbeddingBaseURL = embURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Prefilter.ExemplarDBURL = dbURL
	}
}
