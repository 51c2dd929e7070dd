// Package analysis turns labeled rows into the derived columns and rendered
// summaries the hypothesis entrypoints expose. The heavyweight regression
// modeling itself lives outside this repo; these summaries are the surface
// the CLI prints.
package analysis

import (
	"fmt"
	"strings"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/xhad/foiabias/internal/models"
)

// Row is a labeled record enriched with the derived analysis columns.
type Row struct {
	models.LabeledRecord
	// PartyTarget is the dominant partisan party among the record's targets.
	PartyTarget   string
	SameParty     bool
	WrongdoingAny bool
	FavDiff       float64
	Year          int
}

type Options struct {
	MinYear int
	MaxYear int
}

// Prepare derives analysis columns and drops rows without a clear D/R
// target or outside the configured year bounds.
func Prepare(records []models.LabeledRecord, opts Options) []Row {
	if opts.MaxYear == 0 {
		opts.MaxYear = 9999
	}

	var rows []Row
	for _, rec := range records {
		target := inferPartyTarget(rec.Targets)
		if target != "D" && target != "R" {
			continue
		}
		year := yearOf(rec.DateDone)
		if year < opts.MinYear || year > opts.MaxYear {
			continue
		}
		rows = append(rows, Row{
			LabeledRecord: rec,
			PartyTarget:   target,
			SameParty:     target == rec.AdminParty,
			WrongdoingAny: rec.WrongdoingD > 0.5 || rec.WrongdoingR > 0.5,
			FavDiff:       rec.FavScoreD - rec.FavScoreR,
			Year:          year,
		})
	}
	return rows
}

// inferPartyTarget returns the most frequent partisan party among targets,
// or "none"/"unknown" when there is nothing to count.
func inferPartyTarget(targets []models.Target) string {
	if len(targets) == 0 {
		return "none"
	}
	counts := map[string]int{}
	for _, t := range targets {
		if t.Party == "D" || t.Party == "R" {
			counts[t.Party]++
		}
	}
	if len(counts) == 0 {
		return "unknown"
	}
	if counts["D"] >= counts["R"] {
		return "D"
	}
	return "R"
}

// WrongdoingSummary renders same-party vs cross-party wrongdoing rates.
func WrongdoingSummary(rows []Row) string {
	same, cross := split(rows)

	var b strings.Builder
	b.WriteString("Wrongdoing hypothesis\n")
	b.WriteString("=====================\n")
	fmt.Fprintf(&b, "rows analyzed: %d (same-party %d, cross-party %d)\n\n", len(rows), len(same), len(cross))
	fmt.Fprintf(&b, "wrongdoing rate, same-party targets:  %s\n", rate(same, func(r Row) bool { return r.WrongdoingAny }))
	fmt.Fprintf(&b, "wrongdoing rate, cross-party targets: %s\n", rate(cross, func(r Row) bool { return r.WrongdoingAny }))

	sameRate, okSame := meanOf(boolSeries(same, func(r Row) bool { return r.WrongdoingAny }))
	crossRate, okCross := meanOf(boolSeries(cross, func(r Row) bool { return r.WrongdoingAny }))
	if okSame && okCross {
		fmt.Fprintf(&b, "difference (same - cross):            %+.4f\n", sameRate-crossRate)
	}
	return b.String()
}

// FavorabilitySummary renders same-party vs cross-party favorability
// score differences (D minus R).
func FavorabilitySummary(rows []Row) string {
	same, cross := split(rows)

	var b strings.Builder
	b.WriteString("Favorability hypothesis\n")
	b.WriteString("=======================\n")
	fmt.Fprintf(&b, "rows analyzed: %d (same-party %d, cross-party %d)\n\n", len(rows), len(same), len(cross))
	writeFavLine(&b, "same-party targets: ", same)
	writeFavLine(&b, "cross-party targets:", cross)
	return b.String()
}

func writeFavLine(b *strings.Builder, label string, rows []Row) {
	series := make([]float64, len(rows))
	for i, r := range rows {
		series[i] = r.FavDiff
	}
	mean, okMean := meanOf(series)
	if !okMean {
		fmt.Fprintf(b, "fav_diff %s no data\n", label)
		return
	}
	sd, err := stats.StandardDeviation(series)
	if err != nil {
		sd = 0
	}
	fmt.Fprintf(b, "fav_diff %s mean %+.4f, stdev %.4f, n=%d\n", label, mean, sd, len(rows))
}

func split(rows []Row) (same, cross []Row) {
	for _, r := range rows {
		if r.SameParty {
			same = append(same, r)
		} else {
			cross = append(cross, r)
		}
	}
	return same, cross
}

func boolSeries(rows []Row, pred func(Row) bool) []float64 {
	series := make([]float64, len(rows))
	for i, r := range rows {
		if pred(r) {
			series[i] = 1
		}
	}
	return series
}

func meanOf(series []float64) (float64, bool) {
	if len(series) == 0 {
		return 0, false
	}
	mean, err := stats.Mean(series)
	if err != nil {
		return 0, false
	}
	return mean, true
}

func rate(rows []Row, pred func(Row) bool) string {
	if len(rows) == 0 {
		return "n/a (no rows)"
	}
	mean, _ := meanOf(boolSeries(rows, pred))
	return fmt.Sprintf("%.4f", mean)
}

func yearOf(date string) int {
	if date == "" {
		return 0
	}
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return 0
	}
	return t.Year()
}
