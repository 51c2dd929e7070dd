package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/foiabias/internal/models"
)

func labeled(id, date, adminParty string, targets []models.Target, wrongD, wrongR, favD, favR float64) models.LabeledRecord {
	return models.LabeledRecord{
		Source:      models.SourceRecordsAPI,
		RequestID:   id,
		DateDone:    date,
		AdminParty:  adminParty,
		Targets:     targets,
		WrongdoingD: wrongD,
		WrongdoingR: wrongR,
		FavScoreD:   favD,
		FavScoreR:   favR,
	}
}

func TestPrepareDerivesColumns(t *testing.T) {
	records := []models.LabeledRecord{
		// Mixed targets: D majority wins.
		labeled("1", "2018-06-01", "R", []models.Target{
			{Party: "D"}, {Party: "D"}, {Party: "R"},
		}, 0.6, 0.1, 0.3, -0.2),
		// Same-party: R target under an R administration.
		labeled("2", "2019-02-01", "R", []models.Target{{Party: "R"}}, 0.2, 0.4, 0, 0),
		// No partisan target: dropped.
		labeled("3", "2019-02-01", "R", nil, 0.9, 0.9, 0, 0),
		// Unknown-only targets: dropped.
		labeled("4", "2019-02-01", "R", []models.Target{{Party: "unknown"}}, 0.9, 0.9, 0, 0),
	}

	rows := Prepare(records, Options{})
	require.Len(t, rows, 2)

	assert.Equal(t, "D", rows[0].PartyTarget)
	assert.False(t, rows[0].SameParty)
	assert.True(t, rows[0].WrongdoingAny)
	assert.InDelta(t, 0.5, rows[0].FavDiff, 1e-9)
	assert.Equal(t, 2018, rows[0].Year)

	assert.Equal(t, "R", rows[1].PartyTarget)
	assert.True(t, rows[1].SameParty)
	assert.False(t, rows[1].WrongdoingAny)
}

func TestPrepareYearBounds(t *testing.T) {
	records := []models.LabeledRecord{
		labeled("1", "2015-01-01", "D", []models.Target{{Party: "D"}}, 0, 0, 0, 0),
		labeled("2", "2018-01-01", "D", []models.Target{{Party: "D"}}, 0, 0, 0, 0),
		labeled("3", "2022-01-01", "D", []models.Target{{Party: "D"}}, 0, 0, 0, 0),
	}

	rows := Prepare(records, Options{MinYear: 2016, MaxYear: 2020})
	require.Len(t, rows, 1)
	assert.Equal(t, "2", rows[0].RequestID)
}

func TestWrongdoingSummary(t *testing.T) {
	records := []models.LabeledRecord{
		labeled("1", "2018-01-01", "R", []models.Target{{Party: "R"}}, 0, 0.9, 0, 0),
		labeled("2", "2018-01-01", "R", []models.Target{{Party: "R"}}, 0, 0.1, 0, 0),
		labeled("3", "2018-01-01", "R", []models.Target{{Party: "D"}}, 0.9, 0, 0, 0),
	}

	out := WrongdoingSummary(Prepare(records, Options{}))
	assert.Contains(t, out, "rows analyzed: 3 (same-party 2, cross-party 1)")
	assert.Contains(t, out, "same-party targets:  0.5000")
	assert.Contains(t, out, "cross-party targets: 1.0000")
	assert.Contains(t, out, "difference (same - cross):            -0.5000")
}

func TestFavorabilitySummaryHandlesEmptyGroups(t *testing.T) {
	out := FavorabilitySummary(nil)
	assert.True(t, strings.Contains(out, "no data"))
}
