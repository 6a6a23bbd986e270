package db

import (
	"fmt"
	"time"
)

// timeLayout matches CURRENT_TIMESTAMP so stored values compare as text.
const timeLayout = "2006-01-02 15:04:05"

var parseLayouts = []string{
	timeLayout,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// timestamp scans TIMESTAMP columns whether the driver hands back a
// time.Time, text or a unix epoch.
type timestamp struct {
	t *time.Time
}

func (ts timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*ts.t = time.Time{}
		return nil
	case time.Time:
		*ts.t = v.UTC()
		return nil
	case int64:
		*ts.t = time.Unix(v, 0).UTC()
		return nil
	case []byte:
		return ts.parse(string(v))
	case string:
		return ts.parse(v)
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (ts timestamp) parse(value string) error {
	for _, layout := range parseLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			*ts.t = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", value)
}
