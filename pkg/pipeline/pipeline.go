package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/xhad/foiabias/internal/errs"
	"github.com/xhad/foiabias/internal/models"
	"github.com/xhad/foiabias/internal/types"
	"github.com/xhad/foiabias/pkg/admin"
	"github.com/xhad/foiabias/pkg/analysis"
	"github.com/xhad/foiabias/pkg/cache"
	"github.com/xhad/foiabias/pkg/logger"
)

// Deps wires every collaborator into the orchestration pipeline.
type Deps struct {
	Sources map[models.SourceKind]types.Source
	// Order is the configured processing priority.
	Order      []models.SourceKind
	Cache      *cache.DownloadCache
	Extractor  types.Extractor
	Prefilter  types.Prefilter
	Classifier types.Classifier
	Store      types.LabelStore

	MinTextChars     int
	TransitionMonths int
	AnalysisOptions  analysis.Options
}

// Pipeline coordinates ingestion, labeling, and the analysis entrypoints.
// Records are processed strictly sequentially per source; only file
// downloads fan out, inside the cache's bounded pool.
type Pipeline struct {
	deps   Deps
	logger *log.Logger

	// seen holds hashes of already-labeled document texts for this run so
	// shared documents are labeled once.
	seen map[string]bool
}

func New(deps Deps) *Pipeline {
	return &Pipeline{
		deps:   deps,
		logger: logger.New("Pipeline"),
		seen:   make(map[string]bool),
	}
}

// RunAll executes every enabled source in the configured order. A failing
// source is reported and does not stop its siblings.
func (p *Pipeline) RunAll(ctx context.Context) error {
	for _, kind := range p.deps.Order {
		if _, ok := p.deps.Sources[kind]; !ok {
			p.logger.Printf("skipping disabled source %s", kind)
			continue
		}
		if err := p.ProcessSource(ctx, kind); err != nil {
			if ctx.Err() != nil {
				return err
			}
			color.Red("source %s failed: %v", kind, err)
		}
	}
	return nil
}

// ProcessSource runs the full acquire-extract-classify-persist loop for one
// source. Per-document failures are logged and counted, never fatal.
func (p *Pipeline) ProcessSource(ctx context.Context, kind models.SourceKind) error {
	src, ok := p.deps.Sources[kind]
	if !ok {
		return fmt.Errorf("no source configured for %s", kind)
	}

	p.logger.Printf("starting %s ingestion", kind)
	bar := sourceBar(string(kind))

	var labeled []models.LabeledRecord
	processed, skipped := 0, 0

	err := src.Fetch(ctx, func(rec models.DocumentRecord) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		bar.Add(1)

		rows, err := p.processRecord(ctx, rec)
		if err != nil {
			p.logger.Printf("skipping record %s: %v", rec.RequestID, err)
			skipped++
			return nil
		}
		if len(rows) == 0 {
			skipped++
			return nil
		}
		labeled = append(labeled, rows...)
		processed++
		return nil
	})
	bar.Finish()
	fmt.Println()
	if err != nil {
		return fmt.Errorf("fetch %s: %w", kind, err)
	}

	if err := p.deps.Store.Save(labeled, kind); err != nil {
		return fmt.Errorf("save %s: %w", kind, err)
	}

	color.Green("✓ %s: %d records labeled, %d skipped", kind, processed, skipped)
	p.logger.Printf("completed %s ingestion: %d labeled, %d skipped", kind, processed, skipped)
	return nil
}

// processRecord turns one emitted record into zero or more labeled rows.
// Agency-log records explode into per-row records; everything else yields
// at most one row.
func (p *Pipeline) processRecord(ctx context.Context, rec models.DocumentRecord) ([]models.LabeledRecord, error) {
	paths := p.deps.Cache.ResolveAll(ctx, &rec)
	if len(paths) == 0 {
		return nil, fmt.Errorf("no downloadable files")
	}

	if rec.Source == models.SourceAgencyLogs {
		return p.explodeLogRows(ctx, rec, paths[0])
	}

	text, err := p.combineTexts(ctx, paths)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no text extracted")
	}
	if p.alreadySeen(text) {
		return nil, fmt.Errorf("duplicate document text")
	}

	row, err := p.labelText(ctx, text, rec)
	if err != nil {
		return nil, err
	}
	return []models.LabeledRecord{row}, nil
}

// combineTexts extracts each file independently and concatenates the parts,
// so one request becomes a single classifier input.
func (p *Pipeline) combineTexts(ctx context.Context, paths []string) (string, error) {
	var parts []string
	for _, path := range paths {
		text, err := p.deps.Extractor.Extract(ctx, path, p.deps.MinTextChars)
		if err != nil {
			return "", err
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// labelText applies the cascade decision and produces the labeled row.
func (p *Pipeline) labelText(ctx context.Context, text string, rec models.DocumentRecord) (models.LabeledRecord, error) {
	var label models.StructuredLabel
	switch {
	case rec.MetadataOnly:
		label = models.NeutralLabel("Metadata source; classifier skipped.")
	case !p.deps.Prefilter.ShouldClassify(ctx, text):
		label = models.NeutralLabel("Pre-filter classified document as non-political; full classifier not called.")
		p.logger.Printf("record %s skipped by prefilter; labeling as non-political", rec.RequestID)
	default:
		p.logger.Printf("invoking classifier for record %s", rec.RequestID)
		var err error
		label, err = p.deps.Classifier.Classify(ctx, rec.RequestID, text)
		if err != nil {
			// Do not substitute a stub label: a malformed response is a
			// failure, not a by-design skip.
			return models.LabeledRecord{}, err
		}
	}

	info := admin.ForDate(rec.DateDone, p.deps.TransitionMonths)
	return models.LabeledRecord{
		Source:             rec.Source,
		RequestID:          rec.RequestID,
		Agency:             rec.Agency,
		Title:              rec.Title,
		DateDone:           rec.DateDone,
		AdminName:          info.AdminName,
		AdminParty:         info.AdminParty,
		IsTransition:       info.IsTransition,
		PoliticalRelevance: label.PoliticalRelevance,
		Targets:            label.MainPartisanTargets,
		WrongdoingD:        label.Wrongdoing.WrongdoingByParty.D,
		WrongdoingR:        label.Wrongdoing.WrongdoingByParty.R,
		FavScoreD:          label.Favorability.FavorabilityScores.D,
		FavScoreR:          label.Favorability.FavorabilityScores.R,
		RawClassification:  label,
	}, nil
}

// explodeLogRows labels every row of a downloaded agency log independently.
func (p *Pipeline) explodeLogRows(ctx context.Context, rec models.DocumentRecord, path string) ([]models.LabeledRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open log %s: %v", errs.ErrExtraction, path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read log header %s: %v", errs.ErrExtraction, path, err)
	}

	var rows []models.LabeledRecord
	for idx := 0; ; idx++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			p.logger.Printf("skipping malformed log row %d for %s: %v", idx, rec.RequestID, err)
			continue
		}

		text := renderLogRow(header, row)
		if strings.TrimSpace(text) == "" {
			p.logger.Printf("skipping empty log row %d for %s", idx, rec.RequestID)
			continue
		}

		rowRec := models.DocumentRecord{
			Source:    rec.Source,
			RequestID: fmt.Sprintf("%s_%d", rec.RequestID, idx),
			Agency:    rec.Agency,
			Title:     inferLogRowTitle(header, row, rec.Title, idx),
			DateDone:  inferLogRowDate(header, row),
			Files:     rec.Files,
		}
		labeled, err := p.labelText(ctx, text, rowRec)
		if err != nil {
			p.logger.Printf("skipping log row %s: %v", rowRec.RequestID, err)
			continue
		}
		rows = append(rows, labeled)
	}
	return rows, nil
}

// AnalyzeWrongdoing loads labeled data (one source or all) and returns the
// rendered wrongdoing-hypothesis summary.
func (p *Pipeline) AnalyzeWrongdoing(source models.SourceKind) (string, error) {
	rows, err := p.loadRows(source)
	if err != nil {
		return "", err
	}
	return analysis.WrongdoingSummary(rows), nil
}

// AnalyzeFavorability loads labeled data and returns the rendered
// favorability-hypothesis summary.
func (p *Pipeline) AnalyzeFavorability(source models.SourceKind) (string, error) {
	rows, err := p.loadRows(source)
	if err != nil {
		return "", err
	}
	return analysis.FavorabilitySummary(rows), nil
}

func (p *Pipeline) loadRows(source models.SourceKind) ([]analysis.Row, error) {
	var records []models.LabeledRecord
	var err error
	if source == "" {
		records, err = p.deps.Store.LoadAll()
	} else {
		records, err = p.deps.Store.Load(source)
	}
	if err != nil {
		return nil, err
	}
	return analysis.Prepare(records, p.deps.AnalysisOptions), nil
}

func (p *Pipeline) alreadySeen(text string) bool {
	sum := sha256.Sum256([]byte(text))
	key := hex.EncodeToString(sum[:])
	if p.seen[key] {
		return true
	}
	p.seen[key] = true
	return false
}

func renderLogRow(header, row []string) string {
	var parts []string
	for i, value := range row {
		value = strings.TrimSpace(value)
		if value == "" || i >= len(header) {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", header[i], value))
	}
	return strings.Join(parts, "\n")
}

var dateColumnHints = []string{"date", "closed", "completed", "response", "decision", "released"}

var dateLayouts = []string{"2006-01-02", "01/02/2006", "1/2/2006", time.RFC3339, "2006-01-02 15:04:05"}

// inferLogRowDate best-effort extracts a decision date from a log row by
// scanning columns whose names look date-like.
func inferLogRowDate(header, row []string) string {
	for i, col := range header {
		if i >= len(row) {
			break
		}
		lowered := strings.ToLower(col)
		if !containsAny(lowered, dateColumnHints) {
			continue
		}
		value := strings.TrimSpace(row[i])
		if value == "" {
			continue
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, value); err == nil {
				return t.Format("2006-01-02")
			}
		}
	}
	return ""
}

var titleColumnHints = []string{"subject", "summary", "title", "description", "records", "topic"}

func inferLogRowTitle(header, row []string, fallback string, idx int) string {
	for i, col := range header {
		if i >= len(row) {
			break
		}
		if !containsAny(strings.ToLower(col), titleColumnHints) {
			continue
		}
		if value := strings.TrimSpace(row[i]); value != "" {
			return value
		}
	}
	if fallback != "" {
		return fmt.Sprintf("%s (row %d)", fallback, idx)
	}
	return fmt.Sprintf("Agency log row %d", idx)
}

func containsAny(s string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}

func sourceBar(name string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.BlueString("Processing %s records...", name)),
		progressbar.OptionSetItsString("records"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}
