package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/foiabias/internal/errs"
	"github.com/xhad/foiabias/internal/models"
)

func sampleRecord(id string) models.LabeledRecord {
	return models.LabeledRecord{
		Source:             models.SourceRecordsAPI,
		RequestID:          id,
		Agency:             "Department of Justice",
		Title:              "Emails regarding the investigation",
		DateDone:           "2019-03-14",
		AdminName:          "Trump",
		AdminParty:         "R",
		IsTransition:       false,
		PoliticalRelevance: models.RelevanceHigh,
		Targets: []models.Target{
			{Name: "John Doe", Party: "R", Role: "campaign staff"},
		},
		WrongdoingD: 0.1,
		WrongdoingR: 0.8,
		FavScoreD:   0.2,
		FavScoreR:   -0.6,
		RawClassification: models.StructuredLabel{
			PoliticalRelevance:  models.RelevanceHigh,
			MainPartisanTargets: []models.Target{{Name: "John Doe", Party: "R", Role: "campaign staff"}},
			Notes:               "Discusses alleged misconduct.",
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s, err := NewWithConfig(Config{Dir: t.TempDir()})
	require.NoError(t, err)

	want := []models.LabeledRecord{sampleRecord("1"), sampleRecord("2")}
	require.NoError(t, s.Save(want, models.SourceRecordsAPI))

	got, err := s.Load(models.SourceRecordsAPI)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, want, got)
}

func TestSaveOverwritesWholesale(t *testing.T) {
	s, err := NewWithConfig(Config{Dir: t.TempDir()})
	require.NoError(t, err)

	require.NoError(t, s.Save([]models.LabeledRecord{sampleRecord("1"), sampleRecord("2")}, models.SourceRecordsAPI))
	require.NoError(t, s.Save([]models.LabeledRecord{sampleRecord("3")}, models.SourceRecordsAPI))

	got, err := s.Load(models.SourceRecordsAPI)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "3", got[0].RequestID)
}

func TestLoadAllAcrossSources(t *testing.T) {
	dir := t.TempDir()
	s, err := NewWithConfig(Config{Dir: dir})
	require.NoError(t, err)

	api := sampleRecord("1")
	logs := sampleRecord("doj_0")
	logs.Source = models.SourceAgencyLogs

	require.NoError(t, s.Save([]models.LabeledRecord{api}, models.SourceRecordsAPI))
	require.NoError(t, s.Save([]models.LabeledRecord{logs}, models.SourceAgencyLogs))

	assert.FileExists(t, filepath.Join(dir, "labeled_records_api.csv"))
	assert.FileExists(t, filepath.Join(dir, "labeled_agency_logs.csv"))

	all, err := s.LoadAll()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestLoadMissing(t *testing.T) {
	s, err := NewWithConfig(Config{Dir: t.TempDir()})
	require.NoError(t, err)

	_, err = s.Load(models.SourceReadingRooms)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = s.LoadAll()
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestSaveEmptyWritesNothing(t *testing.T) {
	dir := t.TempDir()
	s, err := NewWithConfig(Config{Dir: dir})
	require.NoError(t, err)

	require.NoError(t, s.Save(nil, models.SourceRecordsAPI))
	_, err = os.Stat(filepath.Join(dir, "labeled_records_api.csv"))
	assert.True(t, os.IsNotExist(err))
}
