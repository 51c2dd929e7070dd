package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/foiabias/internal/errs"
	"github.com/xhad/foiabias/internal/models"
	"github.com/xhad/foiabias/internal/types"
	"github.com/xhad/foiabias/pkg/cache"
)

type fakeSource struct {
	kind    models.SourceKind
	records []models.DocumentRecord
}

func (s *fakeSource) Kind() models.SourceKind { return s.kind }

func (s *fakeSource) Fetch(ctx context.Context, emit func(models.DocumentRecord) error) error {
	for _, rec := range s.records {
		if err := emit(rec); err != nil {
			return err
		}
	}
	return nil
}

// fileExtractor returns local file contents verbatim.
type fileExtractor struct{}

func (fileExtractor) Extract(_ context.Context, path string, _ int) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrExtraction, err)
	}
	return strings.TrimSpace(string(data)), nil
}

type fakePrefilter struct{ decision bool }

func (f fakePrefilter) ShouldClassify(context.Context, string) bool { return f.decision }

type fakeClassifier struct {
	calls []string
	fail  map[string]bool
}

func (c *fakeClassifier) Classify(_ context.Context, docID, text string) (models.StructuredLabel, error) {
	c.calls = append(c.calls, docID)
	if c.fail[docID] {
		return models.StructuredLabel{}, fmt.Errorf("%w: bad response for %s", errs.ErrClassification, docID)
	}
	label := models.NeutralLabel("classified")
	label.PoliticalRelevance = models.RelevanceHigh
	label.MainPartisanTargets = []models.Target{{Name: "Someone", Party: "D", Role: "senator"}}
	return label, nil
}

type captureStore struct {
	saved map[models.SourceKind][]models.LabeledRecord
}

func newCaptureStore() *captureStore {
	return &captureStore{saved: make(map[models.SourceKind][]models.LabeledRecord)}
}

func (s *captureStore) Save(records []models.LabeledRecord, source models.SourceKind) error {
	s.saved[source] = records
	return nil
}

func (s *captureStore) Load(source models.SourceKind) ([]models.LabeledRecord, error) {
	records, ok := s.saved[source]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return records, nil
}

func (s *captureStore) LoadAll() ([]models.LabeledRecord, error) {
	var all []models.LabeledRecord
	for _, records := range s.saved {
		all = append(all, records...)
	}
	if len(all) == 0 {
		return nil, errs.ErrNotFound
	}
	return all, nil
}

type staticFetcher struct{ body string }

func (f staticFetcher) Fetch(context.Context, string) (io.ReadCloser, int64, error) {
	return io.NopCloser(strings.NewReader(f.body)), int64(len(f.body)), nil
}

func localFile(t *testing.T, name, content string) models.FileDescriptor {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return models.FileDescriptor{ID: name, LocalPath: path}
}

func depsFor(t *testing.T, src *fakeSource, classifier *fakeClassifier, store *captureStore, escalate bool) Deps {
	t.Helper()
	dc, err := cache.NewWithConfig(cache.Config{Dir: t.TempDir(), Fetcher: staticFetcher{body: "downloaded"}})
	require.NoError(t, err)
	return Deps{
		Sources:    map[models.SourceKind]types.Source{src.kind: src},
		Order:      []models.SourceKind{src.kind},
		Cache:      dc,
		Extractor:  fileExtractor{},
		Prefilter:  fakePrefilter{decision: escalate},
		Classifier: classifier,
		Store:      store,
	}
}

func TestProcessSourceLabelsAndSaves(t *testing.T) {
	src := &fakeSource{kind: models.SourceRecordsAPI, records: []models.DocumentRecord{
		{
			Source:    models.SourceRecordsAPI,
			RequestID: "1",
			DateDone:  "2019-05-01",
			Files:     []models.FileDescriptor{localFile(t, "a.txt", "partisan content one")},
		},
		{
			Source:    models.SourceRecordsAPI,
			RequestID: "2",
			DateDone:  "2013-05-01",
			Files:     []models.FileDescriptor{localFile(t, "b.txt", "partisan content two")},
		},
	}}
	classifier := &fakeClassifier{}
	store := newCaptureStore()

	p := New(depsFor(t, src, classifier, store, true))
	require.NoError(t, p.ProcessSource(context.Background(), models.SourceRecordsAPI))

	saved := store.saved[models.SourceRecordsAPI]
	require.Len(t, saved, 2)
	assert.Equal(t, []string{"1", "2"}, classifier.calls)

	// Administration enrichment from date_done.
	assert.Equal(t, "Trump", saved[0].AdminName)
	assert.Equal(t, "R", saved[0].AdminParty)
	assert.Equal(t, "Obama", saved[1].AdminName)
	assert.Equal(t, models.RelevanceHigh, saved[0].PoliticalRelevance)
}

func TestProcessSourceStubsWhenPrefilterDeclines(t *testing.T) {
	src := &fakeSource{kind: models.SourceRecordsAPI, records: []models.DocumentRecord{{
		Source:    models.SourceRecordsAPI,
		RequestID: "1",
		Files:     []models.FileDescriptor{localFile(t, "a.txt", "boring content")},
	}}}
	classifier := &fakeClassifier{}
	store := newCaptureStore()

	p := New(depsFor(t, src, classifier, store, false))
	require.NoError(t, p.ProcessSource(context.Background(), models.SourceRecordsAPI))

	saved := store.saved[models.SourceRecordsAPI]
	require.Len(t, saved, 1)
	assert.Empty(t, classifier.calls)
	assert.Equal(t, models.RelevanceNone, saved[0].PoliticalRelevance)
	assert.Contains(t, saved[0].RawClassification.Notes, "Pre-filter")
}

func TestProcessSourceMetadataOnlyBypassesCascade(t *testing.T) {
	src := &fakeSource{kind: models.SourceBulkDatasets, records: []models.DocumentRecord{{
		Source:       models.SourceBulkDatasets,
		RequestID:    "2021",
		MetadataOnly: true,
		Files:        []models.FileDescriptor{localFile(t, "annual_2021.json", `{"requests": 1234}`)},
	}}}
	// Prefilter says escalate, but metadata-only wins and the classifier
	// must still not be called.
	classifier := &fakeClassifier{}
	store := newCaptureStore()

	p := New(depsFor(t, src, classifier, store, true))
	require.NoError(t, p.ProcessSource(context.Background(), models.SourceBulkDatasets))

	saved := store.saved[models.SourceBulkDatasets]
	require.Len(t, saved, 1)
	assert.Empty(t, classifier.calls)
	assert.Equal(t, models.RelevanceNone, saved[0].PoliticalRelevance)
}

func TestProcessSourceIsolatesFailures(t *testing.T) {
	src := &fakeSource{kind: models.SourceRecordsAPI, records: []models.DocumentRecord{
		{
			Source:    models.SourceRecordsAPI,
			RequestID: "ok",
			Files:     []models.FileDescriptor{localFile(t, "ok.txt", "good content")},
		},
		{
			Source:    models.SourceRecordsAPI,
			RequestID: "bad",
			Files:     []models.FileDescriptor{localFile(t, "bad.txt", "other content")},
		},
		{
			// No files at all: skipped, not fatal.
			Source:    models.SourceRecordsAPI,
			RequestID: "empty",
		},
	}}
	classifier := &fakeClassifier{fail: map[string]bool{"bad": true}}
	store := newCaptureStore()

	p := New(depsFor(t, src, classifier, store, true))
	require.NoError(t, p.ProcessSource(context.Background(), models.SourceRecordsAPI))

	saved := store.saved[models.SourceRecordsAPI]
	require.Len(t, saved, 1)
	assert.Equal(t, "ok", saved[0].RequestID)
}

func TestProcessSourceDeduplicatesByText(t *testing.T) {
	same := "identical released document"
	src := &fakeSource{kind: models.SourceRecordsAPI, records: []models.DocumentRecord{
		{
			Source:    models.SourceRecordsAPI,
			RequestID: "1",
			Files:     []models.FileDescriptor{localFile(t, "a.txt", same)},
		},
		{
			Source:    models.SourceRecordsAPI,
			RequestID: "2",
			Files:     []models.FileDescriptor{localFile(t, "b.txt", same)},
		},
	}}
	classifier := &fakeClassifier{}
	store := newCaptureStore()

	p := New(depsFor(t, src, classifier, store, true))
	require.NoError(t, p.ProcessSource(context.Background(), models.SourceRecordsAPI))

	require.Len(t, store.saved[models.SourceRecordsAPI], 1)
	assert.Equal(t, []string{"1"}, classifier.calls)
}

func TestProcessSourceExplodesAgencyLogRows(t *testing.T) {
	logCSV := "Request Number,Requester,Request Description,Date Closed\n" +
		"F-001,Reporter,Emails about the campaign,2019-04-02\n" +
		"F-002,Citizen,Road maintenance records,not-a-date\n"
	logFile := localFile(t, "doj.csv", logCSV)

	src := &fakeSource{kind: models.SourceAgencyLogs, records: []models.DocumentRecord{{
		Source:    models.SourceAgencyLogs,
		RequestID: "doj",
		Agency:    "DOJ",
		Title:     "FOIA log DOJ",
		Files:     []models.FileDescriptor{logFile},
	}}}
	classifier := &fakeClassifier{}
	store := newCaptureStore()

	p := New(depsFor(t, src, classifier, store, true))
	require.NoError(t, p.ProcessSource(context.Background(), models.SourceAgencyLogs))

	saved := store.saved[models.SourceAgencyLogs]
	require.Len(t, saved, 2)

	assert.Equal(t, "doj_0", saved[0].RequestID)
	assert.Equal(t, "Emails about the campaign", saved[0].Title)
	assert.Equal(t, "2019-04-02", saved[0].DateDone)
	assert.Equal(t, "Trump", saved[0].AdminName)

	assert.Equal(t, "doj_1", saved[1].RequestID)
	assert.Equal(t, "Road maintenance records", saved[1].Title)
	assert.Empty(t, saved[1].DateDone)
}

func TestAnalyzeWrongdoingReportsFromStore(t *testing.T) {
	store := newCaptureStore()
	store.saved[models.SourceRecordsAPI] = []models.LabeledRecord{{
		Source:      models.SourceRecordsAPI,
		RequestID:   "1",
		DateDone:    "2018-01-01",
		AdminParty:  "R",
		Targets:     []models.Target{{Party: "R"}},
		WrongdoingR: 0.9,
	}}

	p := New(Deps{Store: store})
	report, err := p.AnalyzeWrongdoing("")
	require.NoError(t, err)
	assert.Contains(t, report, "Wrongdoing hypothesis")
	assert.Contains(t, report, "rows analyzed: 1")
}

func TestAnalyzeWithEmptyStore(t *testing.T) {
	p := New(Deps{Store: newCaptureStore()})
	_, err := p.AnalyzeWrongdoing("")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
