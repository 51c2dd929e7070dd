package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/xhad/foiabias/internal/models"
	"github.com/xhad/foiabias/internal/types"
	"github.com/xhad/foiabias/pkg/analysis"
	"github.com/xhad/foiabias/pkg/cache"
	"github.com/xhad/foiabias/pkg/classify"
	"github.com/xhad/foiabias/pkg/config"
	"github.com/xhad/foiabias/pkg/extract"
	"github.com/xhad/foiabias/pkg/pipeline"
	"github.com/xhad/foiabias/pkg/source"
	"github.com/xhad/foiabias/pkg/store"
)

type flags struct {
	ConfigPath string
	Mode       string
	Source     string
	Hypothesis string
	MinYear    int
	MaxYear    int
}

func main() {
	f := parseFlags()

	if err := run(f); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.ConfigPath, "config", "", "Path to config file")
	flag.StringVar(&f.Mode, "mode", "run", "Mode: run, analyze, or seed")
	flag.StringVar(&f.Source, "source", "", "Restrict to one source (records_api, agency_logs, reading_rooms, bulk_datasets)")
	flag.StringVar(&f.Hypothesis, "hypothesis", "all", "Analysis to report: wrongdoing, favorability, or all")
	flag.IntVar(&f.MinYear, "min-year", 0, "Earliest completion year to include in analysis")
	flag.IntVar(&f.MaxYear, "max-year", 0, "Latest completion year to include in analysis")
	flag.Parse()
	return f
}

func run(f flags) error {
	cfg, err := config.LoadConfig(f.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %v", e)
		}
		return fmt.Errorf("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	labelStore, err := store.NewWithConfig(store.Config{
		Dir: cfg.Storage.LabeledOutputDir,
		Ext: cfg.Storage.LabeledExt,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize label store: %v", err)
	}

	switch f.Mode {
	case "run":
		return runPipeline(ctx, f, cfg, labelStore)
	case "analyze":
		return runAnalysis(f, cfg, labelStore)
	case "seed":
		return seedExemplars(ctx, cfg, labelStore)
	default:
		return fmt.Errorf("unknown mode %q", f.Mode)
	}
}

func runPipeline(ctx context.Context, f flags, cfg *config.Config, labelStore types.LabelStore) error {
	// The same client (and therefore the same rate gate) serves both API
	// pagination and file downloads.
	sources, fetcher, err := source.BuildAll(cfg)
	if err != nil {
		return err
	}
	downloadCache, err := cache.NewWithConfig(cache.Config{
		Dir:     cfg.Storage.CacheDir,
		Fetcher: fetcher,
		Workers: cfg.Processing.DownloadWorkers,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize download cache: %v", err)
	}

	extractor := extract.NewWithConfig(extract.Config{
		OCRTimeout: time.Duration(cfg.Processing.TextExtraction.OCRTimeoutSeconds) * time.Second,
	})

	registry, err := classify.NewRegistry(classify.RegistryConfig{
		RosterURL: cfg.Registry.RosterURL,
		CacheFile: cfg.Registry.CacheFile,
	})
	if err != nil {
		color.Yellow("legislator registry unavailable, prefilter falls back to keywords: %v", err)
		registry = nil
	}

	var voter classify.ExemplarVoter
	if cfg.Prefilter.UseEmbeddingFilter && cfg.Prefilter.ExemplarDBURL != "" {
		exemplars, err := classify.NewExemplarStore(classify.ExemplarConfig{
			ConnString:       cfg.Prefilter.ExemplarDBURL,
			TableName:        cfg.Prefilter.ExemplarTable,
			EmbeddingModel:   cfg.LLM.EmbeddingModel,
			EmbeddingBaseURL: cfg.LLM.EmbeddingBaseURL,
		})
		if err != nil {
			color.Yellow("exemplar store unavailable, embedding tier disabled: %v", err)
		} else {
			defer exemplars.Close()
			voter = exemplars
		}
	}

	cascade := classify.NewCascade(classify.CascadeConfig{
		KeywordThreshold:   cfg.Prefilter.KeywordThreshold,
		EntityScanChars:    cfg.Prefilter.EntityScanChars,
		UseEmbeddingFilter: cfg.Prefilter.UseEmbeddingFilter,
	}, registry, voter)

	classifier, err := classify.NewClassifierWithConfig(classify.ClassifierConfig{
		Model:          cfg.LLM.ClassifierModel,
		APIKey:         os.Getenv(cfg.LLM.APIKeyEnvVar),
		BaseURL:        cfg.LLM.BaseURL,
		MaxCharsPerDoc: cfg.LLM.MaxCharsPerDoc,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize classifier: %v", err)
	}

	p := pipeline.New(pipeline.Deps{
		Sources:          sources,
		Order:            priorityOrder(cfg),
		Cache:            downloadCache,
		Extractor:        extractor,
		Prefilter:        cascade,
		Classifier:       classifier,
		Store:            labelStore,
		MinTextChars:     cfg.Processing.TextExtraction.MinTextLengthForNoOCR,
		TransitionMonths: cfg.Processing.AdminMapping.MarkTransitionPeriodMonths,
		AnalysisOptions:  analysis.Options{MinYear: f.MinYear, MaxYear: f.MaxYear},
	})

	if f.Source != "" {
		kind, ok := models.ParseSourceKind(f.Source)
		if !ok {
			return fmt.Errorf("unknown source %q", f.Source)
		}
		return p.ProcessSource(ctx, kind)
	}

	color.Blue("\nStarting acquisition and labeling run\n")
	return p.RunAll(ctx)
}

func runAnalysis(f flags, cfg *config.Config, labelStore types.LabelStore) error {
	var kind models.SourceKind
	if f.Source != "" {
		parsed, ok := models.ParseSourceKind(f.Source)
		if !ok {
			return fmt.Errorf("unknown source %q", f.Source)
		}
		kind = parsed
	}

	p := pipeline.New(pipeline.Deps{
		Store: labelStore,
		AnalysisOptions: analysis.Options{
			MinYear: f.MinYear,
			MaxYear: f.MaxYear,
		},
	})

	if f.Hypothesis == "wrongdoing" || f.Hypothesis == "all" {
		report, err := p.AnalyzeWrongdoing(kind)
		if err != nil {
			return err
		}
		fmt.Println(report)
	}
	if f.Hypothesis == "favorability" || f.Hypothesis == "all" {
		report, err := p.AnalyzeFavorability(kind)
		if err != nil {
			return err
		}
		fmt.Println(report)
	}
	return nil
}

// seedExemplars fits the embedding prefilter from whatever has already been
// labeled: documents the classifier marked relevant become positive
// exemplars, stub-labeled ones negative.
func seedExemplars(ctx context.Context, cfg *config.Config, labelStore types.LabelStore) error {
	if cfg.Prefilter.ExemplarDBURL == "" {
		return fmt.Errorf("no exemplar database configured")
	}

	records, err := labelStore.LoadAll()
	if err != nil {
		return err
	}

	exemplars, err := classify.NewExemplarStore(classify.ExemplarConfig{
		ConnString:       cfg.Prefilter.ExemplarDBURL,
		TableName:        cfg.Prefilter.ExemplarTable,
		EmbeddingModel:   cfg.LLM.EmbeddingModel,
		EmbeddingBaseURL: cfg.LLM.EmbeddingBaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize exemplar store: %v", err)
	}
	defer exemplars.Close()

	var ids, texts []string
	var political []bool
	for _, rec := range records {
		ids = append(ids, string(rec.Source)+"/"+rec.RequestID)
		texts = append(texts, rec.Title+"\n"+rec.RawClassification.Notes)
		political = append(political, rec.PoliticalRelevance != models.RelevanceNone)
	}
	if err := exemplars.Seed(ctx, ids, texts, political); err != nil {
		return err
	}
	color.Green("✓ seeded %d exemplars", len(ids))
	return nil
}

func priorityOrder(cfg *config.Config) []models.SourceKind {
	order := make([]models.SourceKind, 0, len(cfg.Sources.ProcessingPriority))
	for _, name := range cfg.Sources.ProcessingPriority {
		kind, ok := models.ParseSourceKind(name)
		if !ok {
			continue
		}
		order = append(order, kind)
	}
	return order
}
