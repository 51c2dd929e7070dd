// Package admin maps dates to presidential administrations.
package admin

import (
	"time"
)

// Period is one administration term, [Start, End).
type Period struct {
	Name  string
	Party string
	Start time.Time
	End   time.Time
}

func day(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

// Periods is the fixed, ordered, contiguous administration table. When
// transition padding makes adjacent periods overlap, the first match in
// table order wins.
var Periods = []Period{
	{"Clinton", "D", day(1993, 1, 20), day(2001, 1, 20)},
	{"Bush", "R", day(2001, 1, 20), day(2009, 1, 20)},
	{"Obama", "D", day(2009, 1, 20), day(2017, 1, 20)},
	{"Trump", "R", day(2017, 1, 20), day(2021, 1, 20)},
	{"Biden", "D", day(2021, 1, 20), day(2025, 1, 20)},
}

// Info labels a date with its administration. Zero values mean no match.
type Info struct {
	AdminName    string
	AdminParty   string
	IsTransition bool
}

// ForDate returns the administration for an ISO8601 date string, padding
// each period by 30*transitionMonths days on both sides. IsTransition is
// true iff the date falls only in the padding, not the exact term window.
// Unparseable or empty dates match nothing.
func ForDate(value string, transitionMonths int) Info {
	if value == "" {
		return Info{}
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return Info{}
	}
	return ForTime(parsed, transitionMonths)
}

func ForTime(t time.Time, transitionMonths int) Info {
	pad := time.Duration(30*transitionMonths) * 24 * time.Hour
	for _, p := range Periods {
		adjStart := p.Start.Add(-pad)
		adjEnd := p.End.Add(pad)
		if !t.Before(adjStart) && t.Before(adjEnd) {
			exact := !t.Before(p.Start) && t.Before(p.End)
			return Info{
				AdminName:    p.Name,
				AdminParty:   p.Party,
				IsTransition: !exact,
			}
		}
	}
	return Info{}
}
