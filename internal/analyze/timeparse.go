package analyze

import (
	"time"

	"go.uber.org/zap"
)

const (
	dateTimeLayout = "2006-01-02T15:04:05"
	dateLayout     = "2006-01-02"
	displayLayout  = "2006-01-02 15:04"
)

// hasValue reports whether a raw CRM date field carries a value. Empty strings
// and the "N/A" sentinel both mean "no value", never an error.
func hasValue(s string) bool {
	return s != "" && s != "N/A"
}

// parseDateTime parses the first 19 characters of a raw CRM timestamp
// (YYYY-MM-DDTHH:MM:SS, UTC). Parse failures are logged and reported as
// "no value" so the calling rule simply does not fire.
func parseDateTime(field, s string) (time.Time, bool) {
	if !hasValue(s) {
		return time.Time{}, false
	}
	v := s
	if len(v) > 19 {
		v = v[:19]
	}
	t, err := time.Parse(dateTimeLayout, v)
	if err != nil {
		zap.L().Warn("analyze: unparseable timestamp",
			zap.String("field", field),
			zap.String("value", s),
			zap.Error(err),
		)
		return time.Time{}, false
	}
	return t.UTC(), true
}

// parseDate parses the first 10 characters of a raw CRM date (YYYY-MM-DD).
func parseDate(field, s string) (time.Time, bool) {
	if !hasValue(s) {
		return time.Time{}, false
	}
	v := s
	if len(v) > 10 {
		v = v[:10]
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		zap.L().Warn("analyze: unparseable date",
			zap.String("field", field),
			zap.String("value", s),
			zap.Error(err),
		)
		return time.Time{}, false
	}
	return t.UTC(), true
}

// fromEpochMillis converts a CRM engagement timestamp to a UTC instant.
func fromEpochMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
