// Package source reads expense and budget CSV files into the value
// objects the engine consumes. It is collaborator code: the engine
// itself never touches files.
package source

import "fmt"

// RowError records one rejected CSV row with its line number.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// ReadReport summarizes one file read: rows accepted and rows rejected.
type ReadReport struct {
	Accepted int
	Rejected []RowError
}

// dateFormats are tried in order when parsing date columns.
var dateFormats = []string{
	"2006-01-02",
	"01/02/2006",
	"02/01/2006",
	"2006-01-02 15:04:05",
}
