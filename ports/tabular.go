package ports

import (
	"github.com/vrbourque/prediction-metrics/domain/dataset"
)

// TableReader loads a table from a file.
type TableReader interface {
	ReadTable(path string) (*dataset.Table, error)
}

// TableWriter stores a table to a file.
type TableWriter interface {
	WriteTable(path string, table *dataset.Table) error
}
