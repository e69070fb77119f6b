// Package source loads candidate profiles and job postings from files or URLs.
package source

import (
	"fmt"
	"strings"
)

// DataSourceError reports an unreadable or malformed source. Row is 1-based
// and zero when the error is not tied to a single record.
type DataSourceError struct {
	Source  string
	Row     int
	Missing []string
	Err     error
}

func (e *DataSourceError) Error() string {
	var b strings.Builder
	b.WriteString(e.Source)
	if e.Row > 0 {
		fmt.Fprintf(&b, " record %d", e.Row)
	}
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, ": missing required fields: %s", strings.Join(e.Missing, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *DataSourceError) Unwrap() error {
	return e.Err
}
