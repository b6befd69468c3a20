package schedule

import (
	"fmt"
	"strings"
	"time"

	"despesas/internal/core"
)

// Accepted string layouts, tried in order. RFC 3339 inputs keep the date as
// written in their own offset.
var dateLayouts = []string{
	core.DateLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"02/01/2006",
}

// NormalizeDate converts v into a calendar date. It accepts core.Date,
// time.Time (in its own location), pointers to either, and strings in the
// layouts above. Nil, blank and zero inputs fail with ErrMissingAnchorDate.
func NormalizeDate(v any) (core.Date, error) {
	var d core.Date
	switch x := v.(type) {
	case nil:
		return core.Date{}, opError("normalize date", ErrMissingAnchorDate)
	case core.Date:
		d = x
	case *core.Date:
		if x == nil {
			return core.Date{}, opError("normalize date", ErrMissingAnchorDate)
		}
		d = *x
	case time.Time:
		d = core.DateOf(x)
	case *time.Time:
		if x == nil {
			return core.Date{}, opError("normalize date", ErrMissingAnchorDate)
		}
		d = core.DateOf(*x)
	case string:
		parsed, err := parseDateString(x)
		if err != nil {
			return core.Date{}, opError("normalize date", err)
		}
		d = parsed
	default:
		return core.Date{}, opError("normalize date", fmt.Errorf("%w: unsupported type %T", ErrInvalidDate, v))
	}

	if d.IsZero() {
		return core.Date{}, opError("normalize date", ErrMissingAnchorDate)
	}
	if err := d.Validate(); err != nil {
		return core.Date{}, opError("normalize date", fmt.Errorf("%w: %v", ErrInvalidDate, err))
	}
	return d, nil
}

func parseDateString(s string) (core.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Date{}, ErrMissingAnchorDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.DateOf(t), nil
		}
	}
	return core.Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}
