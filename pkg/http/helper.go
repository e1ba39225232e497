package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"tutorbook/pkg/calendar"
	"tutorbook/pkg/config"
	apperrors "tutorbook/pkg/errors"
)

func ExtractLimitOffset(r *http.Request) (int, int64, error) {
	query := r.URL.Query()

	limit := 0
	if s := query.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid limit parameter: " + s)
		}
		limit = v
	}

	var offset int64 = 0
	if s := query.Get("offset"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid offset parameter: " + s)
		}
		offset = v
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	return limit, offset, nil
}

// ExtractTimeRange reads the RFC 3339 "from" and "to" query parameters.
// Both are required and the span may not exceed maxRange.
func ExtractTimeRange(r *http.Request, maxRange time.Duration) (calendar.Interval, error) {
	query := r.URL.Query()

	from, err := parseTimeParam(query.Get("from"), "from")
	if err != nil {
		return calendar.Interval{}, err
	}
	to, err := parseTimeParam(query.Get("to"), "to")
	if err != nil {
		return calendar.Interval{}, err
	}

	rng, err := calendar.NewInterval(from, to)
	if err != nil {
		return calendar.Interval{}, apperrors.InvalidInput("from must be before to")
	}
	if maxRange > 0 && rng.Duration() > maxRange {
		return calendar.Interval{}, apperrors.InvalidInput(fmt.Sprintf("range may not exceed %s", maxRange))
	}
	return rng, nil
}

// ExtractOptionalTimeRange is ExtractTimeRange but returns ok=false when
// neither bound is supplied.
func ExtractOptionalTimeRange(r *http.Request, maxRange time.Duration) (calendar.Interval, bool, error) {
	query := r.URL.Query()
	if query.Get("from") == "" && query.Get("to") == "" {
		return calendar.Interval{}, false, nil
	}
	rng, err := ExtractTimeRange(r, maxRange)
	return rng, err == nil, err
}

func parseTimeParam(value, name string) (time.Time, error) {
	if value == "" {
		return time.Time{}, apperrors.InvalidInput(name + " parameter is required")
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, apperrors.InvalidInput(fmt.Sprintf("invalid %s parameter: %s", name, value))
	}
	return t.UTC(), nil
}

func DecodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return apperrors.InvalidInput("invalid JSON body: " + err.Error())
	}
	return nil
}
