package costs

import (
	"net/http"
	"time"

	"demeter/pkg/errors"
)

const dateLayout = "2006-01-02"

// parseRange reads start_date and end_date query parameters. Both are
// required for ranged endpoints.
func parseRange(r *http.Request) (time.Time, time.Time, error) {
	start, err := parseDateParam(r, "start_date")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseDateParam(r, "end_date")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func parseDateParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, errors.NewValidationError(name, "is required", "")
	}
	date, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, errors.NewValidationError(name, "must be a YYYY-MM-DD date", raw)
	}
	return date, nil
}
