package statement

import (
	"fmt"
	"strings"
)

// SchemaError reports required columns missing from an uploaded statement.
// The whole request is rejected; no rows are processed.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("statement is missing required columns: %s", strings.Join(e.Missing, ", "))
}

// RowParseError reports a single unparsable row. Row is the 1-based data row
// number (the header is row 0). The row is skipped and counted, never
// silently dropped.
type RowParseError struct {
	Row    int
	Reason string
}

func (e *RowParseError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}
