package controller

import (
	"errors"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultMeasurementsLimit = 1000
	maxMeasurementsLimit     = 10000
	defaultRejectionsLimit   = 50
	maxRejectionsLimit       = 1000
	defaultSummaryMinutes    = 60
	maxMinutes               = 366 * 24 * 60
)

// window is a time range for history queries. Zero ends are open.
type window struct {
	From time.Time
	To   time.Time
}

// parseWindow reads either ?minutes=N (the last N minutes up to now) or
// ?from=&to= (RFC3339). With neither, defaultMinutes applies when positive
// and the window is unbounded otherwise.
func parseWindow(r *http.Request, now time.Time, defaultMinutes int) (window, error) {
	q := r.URL.Query()
	minutesStr, fromStr, toStr := q.Get("minutes"), q.Get("from"), q.Get("to")

	if minutesStr != "" && (fromStr != "" || toStr != "") {
		return window{}, errors.New("use either 'minutes' or 'from'/'to', not both")
	}

	if minutesStr != "" {
		n, err := strconv.Atoi(minutesStr)
		if err != nil {
			return window{}, errors.New("invalid 'minutes' (expected integer)")
		}
		if n <= 0 || n > maxMinutes {
			return window{}, errors.New("'minutes' must be between 1 and " + strconv.Itoa(maxMinutes))
		}
		return window{From: now.Add(-time.Duration(n) * time.Minute), To: now}, nil
	}

	var (
		w   window
		err error
	)
	if fromStr != "" {
		w.From, err = time.Parse(time.RFC3339, fromStr)
		if err != nil {
			return window{}, errors.New("invalid 'from' (expected RFC3339)")
		}
	}
	if toStr != "" {
		w.To, err = time.Parse(time.RFC3339, toStr)
		if err != nil {
			return window{}, errors.New("invalid 'to' (expected RFC3339)")
		}
	}
	if !w.From.IsZero() && !w.To.IsZero() && w.From.After(w.To) {
		return window{}, errors.New("'from' must be <= 'to'")
	}
	if w.From.IsZero() && w.To.IsZero() && defaultMinutes > 0 {
		return window{From: now.Add(-time.Duration(defaultMinutes) * time.Minute), To: now}, nil
	}
	return w, nil
}

func parseLimit(r *http.Request, def, upper int) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("invalid 'limit' (expected integer)")
	}
	if n <= 0 {
		return 0, errors.New("'limit' must be > 0")
	}
	if n > upper {
		return 0, errors.New("'limit' must be <= " + strconv.Itoa(upper))
	}
	return n, nil
}
