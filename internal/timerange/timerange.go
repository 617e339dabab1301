// Package timerange parses the canonical "from <ISO> to <ISO>" range
// expressions produced by the reference extraction model and derives the
// calendar granularity implied by the two instants.
package timerange

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrParse indicates a malformed range expression. Callers are expected to
// drop the one bad reference and continue with the rest of the query.
var ErrParse = errors.New("malformed time range")

// Granularity is the coarsest calendar unit implied by a range expression.
type Granularity int

const (
	Second Granularity = iota
	Minute
	Hour
	Day
	Month
	Year
)

var granularityNames = [...]string{"SECOND", "MINUTE", "HOUR", "DAY", "MONTH", "YEAR"}

func (g Granularity) String() string {
	if g < Second || g > Year {
		return fmt.Sprintf("Granularity(%d)", int(g))
	}
	return granularityNames[g]
}

// Range is an immutable temporal reference resolved to an inclusive
// [Start, End] interval. When Granularity is coarser than SECOND, End is
// the last second of the unit containing Start.
type Range struct {
	Original    string
	Granularity Granularity
	Start       time.Time
	End         time.Time
}

// StartUnix returns the range start as a Unix epoch second.
func (r Range) StartUnix() int64 { return r.Start.Unix() }

// EndUnix returns the range end as a Unix epoch second.
func (r Range) EndUnix() int64 { return r.End.Unix() }

const (
	fromPrefix   = "from "
	toSeparator  = " to "
	instantLayout = "2006-01-02T15:04:05Z07:00"
)

// Parse parses a canonical range expression of the form
//
//	from 2025-08-01T00:00:00Z to 2025-08-31T23:59:59Z
//
// and derives the granularity from the alignment of the two instants:
// equal instants mean SECOND; otherwise the finest calendar unit whose
// start and end boundaries match both instants exactly wins. A range that
// matches no unit keeps its explicit bounds with granularity SECOND.
//
// Returns ErrParse when the expression does not match the format, either
// instant is malformed, or the end precedes the start.
func Parse(expr string) (Range, error) {
	trimmed := strings.TrimSpace(expr)
	if !strings.HasPrefix(trimmed, fromPrefix) {
		return Range{}, fmt.Errorf("%w: %q missing %q prefix", ErrParse, expr, strings.TrimSpace(fromPrefix))
	}
	rest := trimmed[len(fromPrefix):]

	startStr, endStr, found := strings.Cut(rest, toSeparator)
	if !found {
		return Range{}, fmt.Errorf("%w: %q missing %q separator", ErrParse, expr, strings.TrimSpace(toSeparator))
	}

	start, err := time.Parse(instantLayout, strings.TrimSpace(startStr))
	if err != nil {
		return Range{}, fmt.Errorf("%w: start instant: %v", ErrParse, err)
	}
	end, err := time.Parse(instantLayout, strings.TrimSpace(endStr))
	if err != nil {
		return Range{}, fmt.Errorf("%w: end instant: %v", ErrParse, err)
	}

	start = start.UTC()
	end = end.UTC()
	if end.Before(start) {
		return Range{}, fmt.Errorf("%w: end %s precedes start %s", ErrParse, end.Format(instantLayout), start.Format(instantLayout))
	}

	return Range{
		Original:    trimmed,
		Granularity: deriveGranularity(start, end),
		Start:       start,
		End:         end,
	}, nil
}

// deriveGranularity walks the calendar units finest to coarsest and picks
// the first whose boundaries both instants sit on exactly.
func deriveGranularity(start, end time.Time) Granularity {
	if start.Equal(end) {
		return Second
	}
	for _, g := range [...]Granularity{Minute, Hour, Day, Month, Year} {
		if start.Equal(truncate(start, g)) && end.Equal(lastSecond(start, g)) {
			return g
		}
	}
	return Second
}

// truncate returns the first instant of the unit containing t.
func truncate(t time.Time, g Granularity) time.Time {
	y, m, d := t.Date()
	h, min, _ := t.Clock()
	switch g {
	case Minute:
		return time.Date(y, m, d, h, min, 0, 0, time.UTC)
	case Hour:
		return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
	case Day:
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	case Month:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	case Year:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}

// lastSecond returns the final second of the unit containing t.
func lastSecond(t time.Time, g Granularity) time.Time {
	first := truncate(t, g)
	var next time.Time
	switch g {
	case Minute:
		next = first.Add(time.Minute)
	case Hour:
		next = first.Add(time.Hour)
	case Day:
		next = first.AddDate(0, 0, 1)
	case Month:
		next = first.AddDate(0, 1, 0)
	case Year:
		next = first.AddDate(1, 0, 0)
	default:
		return first
	}
	return next.Add(-time.Second)
}
