package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// FilterDateLayout is the accepted start_date / end_date format.
const FilterDateLayout = "2006-01-02"

// ErrInvalidDate is returned for a start or end date not in YYYY-MM-DD form.
var ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")

// ResultFilter narrows the results listing. Zero fields do not filter.
type ResultFilter struct {
	Campus    string
	ClassName string
	// From is inclusive; Until is exclusive (the day after the requested end date).
	From  *time.Time
	Until *time.Time
	// Query matches author_name or filename, case-insensitively.
	Query string
}

// ParseResultFilter builds a filter from raw query parameters. The end date is
// inclusive of the whole day.
func ParseResultFilter(campus, className, startDate, endDate, q string) (ResultFilter, error) {
	f := ResultFilter{
		Campus:    strings.TrimSpace(campus),
		ClassName: strings.TrimSpace(className),
		Query:     strings.TrimSpace(q),
	}

	if s := strings.TrimSpace(startDate); s != "" {
		t, err := time.ParseInLocation(FilterDateLayout, s, time.Local)
		if err != nil {
			return ResultFilter{}, fmt.Errorf("start_date %q: %w", s, ErrInvalidDate)
		}
		f.From = &t
	}
	if s := strings.TrimSpace(endDate); s != "" {
		t, err := time.ParseInLocation(FilterDateLayout, s, time.Local)
		if err != nil {
			return ResultFilter{}, fmt.Errorf("end_date %q: %w", s, ErrInvalidDate)
		}
		until := t.AddDate(0, 0, 1)
		f.Until = &until
	}
	return f, nil
}

// likePattern escapes LIKE wildcards in user input.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}
