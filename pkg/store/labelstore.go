package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/xhad/foiabias/internal/errs"
	"github.com/xhad/foiabias/internal/models"
	"github.com/xhad/foiabias/pkg/logger"
)

type Config struct {
	Dir string
	Ext string
}

// LabelStore persists labeled rows as one columnar file per source,
// labeled_{source}.csv. Nested fields (targets, raw classification) are
// JSON-encoded into their cells and decoded on load. Each Save replaces the
// prior content for that source wholesale: a run is authoritative for the
// sources it processed.
type LabelStore struct {
	config Config
	logger *log.Logger
}

var header = []string{
	"source", "request_id", "agency", "title", "date_done",
	"admin_name", "admin_party", "is_transition",
	"political_relevance", "targets",
	"wrongdoing_D", "wrongdoing_R", "fav_score_D", "fav_score_R",
	"raw_classification",
}

func NewWithConfig(config Config) (*LabelStore, error) {
	if config.Dir == "" {
		config.Dir = "data/processed"
	}
	if config.Ext == "" {
		config.Ext = "csv"
	}
	if err := os.MkdirAll(config.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create label store dir: %w", err)
	}
	return &LabelStore{config: config, logger: logger.New("LabelStore")}, nil
}

func (s *LabelStore) path(source models.SourceKind) string {
	return filepath.Join(s.config.Dir, fmt.Sprintf("labeled_%s.%s", source, s.config.Ext))
}

// Save writes all records for one source, replacing any prior file.
func (s *LabelStore) Save(records []models.LabeledRecord, source models.SourceKind) error {
	if len(records) == 0 {
		s.logger.Printf("no records to save for %s", source)
		return nil
	}

	path := s.path(source)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		row, err := encodeRow(rec)
		if err != nil {
			return fmt.Errorf("encode record %s: %w", rec.RequestID, err)
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write record %s: %w", rec.RequestID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}

	s.logger.Printf("saved %d records to %s", len(records), path)
	return nil
}

// Load reads the labeled file for one source.
func (s *LabelStore) Load(source models.SourceKind) ([]models.LabeledRecord, error) {
	records, err := s.loadFile(s.path(source))
	if err != nil {
		return nil, err
	}
	return records, nil
}

// LoadAll concatenates every per-source labeled file into one dataset.
func (s *LabelStore) LoadAll() ([]models.LabeledRecord, error) {
	pattern := filepath.Join(s.config.Dir, "labeled_*."+s.config.Ext)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: no labeled files match %s", errs.ErrNotFound, pattern)
	}
	sort.Strings(matches)

	var all []models.LabeledRecord
	for _, path := range matches {
		records, err := s.loadFile(path)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}
	return all, nil
}

func (s *LabelStore) loadFile(path string) ([]models.LabeledRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", errs.ErrNotFound, path)
		}
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(rows) < 1 {
		return nil, nil
	}

	records := make([]models.LabeledRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec, err := decodeRow(row)
		if err != nil {
			return nil, fmt.Errorf("decode row in %s: %w", path, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func encodeRow(rec models.LabeledRecord) ([]string, error) {
	targets, err := json.Marshal(rec.Targets)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(rec.RawClassification)
	if err != nil {
		return nil, err
	}
	return []string{
		string(rec.Source),
		rec.RequestID,
		rec.Agency,
		rec.Title,
		rec.DateDone,
		rec.AdminName,
		rec.AdminParty,
		strconv.FormatBool(rec.IsTransition),
		rec.PoliticalRelevance,
		string(targets),
		formatFloat(rec.WrongdoingD),
		formatFloat(rec.WrongdoingR),
		formatFloat(rec.FavScoreD),
		formatFloat(rec.FavScoreR),
		string(raw),
	}, nil
}

func decodeRow(row []string) (models.LabeledRecord, error) {
	if len(row) != len(header) {
		return models.LabeledRecord{}, fmt.Errorf("expected %d columns, got %d", len(header), len(row))
	}

	rec := models.LabeledRecord{
		Source:             models.SourceKind(row[0]),
		RequestID:          row[1],
		Agency:             row[2],
		Title:              row[3],
		DateDone:           row[4],
		AdminName:          row[5],
		AdminParty:         row[6],
		PoliticalRelevance: row[8],
	}

	var err error
	if rec.IsTransition, err = strconv.ParseBool(row[7]); err != nil {
		return rec, fmt.Errorf("is_transition: %w", err)
	}
	if err = json.Unmarshal([]byte(row[9]), &rec.Targets); err != nil {
		return rec, fmt.Errorf("targets: %w", err)
	}
	if rec.WrongdoingD, err = parseFloat(row[10]); err != nil {
		return rec, fmt.Errorf("wrongdoing_D: %w", err)
	}
	if rec.WrongdoingR, err = parseFloat(row[11]); err != nil {
		return rec, fmt.Errorf("wrongdoing_R: %w", err)
	}
	if rec.FavScoreD, err = parseFloat(row[12]); err != nil {
		return rec, fmt.Errorf("fav_score_D: %w", err)
	}
	if rec.FavScoreR, err = parseFloat(row[13]); err != nil {
		return rec, fmt.Errorf("fav_score_R: %w", err)
	}
	if err = json.Unmarshal([]byte(row[14]), &rec.RawClassification); err != nil {
		return rec, fmt.Errorf("raw_classification: %w", err)
	}
	return rec, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseFloat(s string) (float64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
