package dataset

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ColumnKind distinguishes numeric from categorical columns.
type ColumnKind int

const (
	// KindFloat columns hold float64 values; NaN marks a missing cell.
	KindFloat ColumnKind = iota
	// KindString columns hold labels such as IID or Cohort.
	KindString
)

func (k ColumnKind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Column is one named column of a Table. Exactly one of Floats or Strings
// is populated, matching Kind.
type Column struct {
	Name    string
	Kind    ColumnKind
	Floats  []float64
	Strings []string
}

// FloatColumn builds a numeric column.
func FloatColumn(name string, values []float64) Column {
	return Column{Name: name, Kind: KindFloat, Floats: values}
}

// StringColumn builds a categorical column.
func StringColumn(name string, values []string) Column {
	return Column{Name: name, Kind: KindString, Strings: values}
}

// Len returns the number of cells in the column.
func (c Column) Len() int {
	if c.Kind == KindString {
		return len(c.Strings)
	}
	return len(c.Floats)
}

// IsMissing reports whether row i holds no value.
func (c Column) IsMissing(i int) bool {
	if c.Kind == KindString {
		return c.Strings[i] == ""
	}
	return math.IsNaN(c.Floats[i])
}

func (c Column) clone() Column {
	out := Column{Name: c.Name, Kind: c.Kind}
	if c.Floats != nil {
		out.Floats = append([]float64(nil), c.Floats...)
	}
	if c.Strings != nil {
		out.Strings = append([]string(nil), c.Strings...)
	}
	return out
}

// Table is an immutable columnar table. Rows are addressed by position;
// every derived table has a fresh positional index starting at zero.
type Table struct {
	columns []Column
	byName  map[string]int
	rows    int
}

// NewTable validates and copies the given columns into a new Table. All
// columns must have the same length and distinct names.
func NewTable(columns ...Column) (*Table, error) {
	t := &Table{
		columns: make([]Column, 0, len(columns)),
		byName:  make(map[string]int, len(columns)),
	}
	for i, col := range columns {
		if col.Name == "" {
			return nil, fmt.Errorf("column %d has no name", i)
		}
		if _, dup := t.byName[col.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", col.Name)
		}
		if i == 0 {
			t.rows = col.Len()
		} else if col.Len() != t.rows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", col.Name, col.Len(), t.rows)
		}
		t.byName[col.Name] = len(t.columns)
		t.columns = append(t.columns, col.clone())
	}
	return t, nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.rows }

// Names returns column names in table order.
func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Columns returns copies of all columns in table order.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.clone()
	}
	return out
}

// Has reports whether the table has a column with the given name.
func (t *Table) Has(name string) bool {
	_, ok := t.byName[name]
	return ok
}

// Column returns a copy of the named column.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.byName[name]
	if !ok {
		return Column{}, false
	}
	return t.columns[i].clone(), true
}

// Floats returns a copy of a numeric column.
func (t *Table) Floats(name string) ([]float64, error) {
	i, ok := t.byName[name]
	if !ok {
		return nil, fmt.Errorf("column %q not found", name)
	}
	if t.columns[i].Kind != KindFloat {
		return nil, fmt.Errorf("column %q is %s, not numeric", name, t.columns[i].Kind)
	}
	return append([]float64(nil), t.columns[i].Floats...), nil
}

// Strings returns a copy of a categorical column.
func (t *Table) Strings(name string) ([]string, error) {
	i, ok := t.byName[name]
	if !ok {
		return nil, fmt.Errorf("column %q not found", name)
	}
	if t.columns[i].Kind != KindString {
		return nil, fmt.Errorf("column %q is %s, not categorical", name, t.columns[i].Kind)
	}
	return append([]string(nil), t.columns[i].Strings...), nil
}

// EligibleRows returns, in ascending order, the rows with no missing value
// across the given numeric columns.
func (t *Table) EligibleRows(features []string) ([]int, error) {
	cols := make([][]float64, len(features))
	for j, name := range features {
		i, ok := t.byName[name]
		if !ok {
			return nil, fmt.Errorf("feature column %q not found", name)
		}
		if t.columns[i].Kind != KindFloat {
			return nil, fmt.Errorf("feature column %q is %s, not numeric", name, t.columns[i].Kind)
		}
		cols[j] = t.columns[i].Floats
	}

	rows := make([]int, 0, t.rows)
	for r := 0; r < t.rows; r++ {
		complete := true
		for _, col := range cols {
			if math.IsNaN(col[r]) {
				complete = false
				break
			}
		}
		if complete {
			rows = append(rows, r)
		}
	}
	return rows, nil
}

// Matrix gathers the given rows and numeric columns into a dense matrix,
// one row per entry in rows. It returns nil when rows is empty since gonum
// does not allow zero-sized matrices.
func (t *Table) Matrix(rows []int, features []string) (*mat.Dense, error) {
	if len(features) == 0 {
		return nil, fmt.Errorf("no feature columns requested")
	}
	cols := make([][]float64, len(features))
	for j, name := range features {
		i, ok := t.byName[name]
		if !ok || t.columns[i].Kind != KindFloat {
			return nil, fmt.Errorf("numeric column %q not found", name)
		}
		cols[j] = t.columns[i].Floats
	}
	if len(rows) == 0 {
		return nil, nil
	}

	data := make([]float64, 0, len(rows)*len(features))
	for _, r := range rows {
		if r < 0 || r >= t.rows {
			return nil, fmt.Errorf("row %d out of range [0,%d)", r, t.rows)
		}
		for _, col := range cols {
			data = append(data, col[r])
		}
	}
	return mat.NewDense(len(rows), len(features), data), nil
}

// WithColumns returns a new table with the given columns appended, or
// replacing existing columns of the same name in place. The receiver is
// left untouched.
func (t *Table) WithColumns(columns ...Column) (*Table, error) {
	merged := t.Columns()
	index := make(map[string]int, len(merged))
	for i, c := range merged {
		index[c.Name] = i
	}
	for _, col := range columns {
		if i, ok := index[col.Name]; ok {
			merged[i] = col
			continue
		}
		index[col.Name] = len(merged)
		merged = append(merged, col)
	}
	return NewTable(merged...)
}

// Select returns a new table holding the given rows in the given order.
func (t *Table) Select(rows []int) (*Table, error) {
	out := make([]Column, len(t.columns))
	for j, c := range t.columns {
		col := Column{Name: c.Name, Kind: c.Kind}
		for _, r := range rows {
			if r < 0 || r >= t.rows {
				return nil, fmt.Errorf("row %d out of range [0,%d)", r, t.rows)
			}
			if c.Kind == KindFloat {
				col.Floats = append(col.Floats, c.Floats[r])
			} else {
				col.Strings = append(col.Strings, c.Strings[r])
			}
		}
		out[j] = col
	}
	return NewTable(out...)
}

// Filter returns the rows whose string column value satisfies keep.
func (t *Table) Filter(column string, keep func(string) bool) (*Table, error) {
	values, err := t.Strings(column)
	if err != nil {
		return nil, err
	}
	var rows []int
	for i, v := range values {
		if keep(v) {
			rows = append(rows, i)
		}
	}
	return t.Select(rows)
}

// Concat stacks the rows of b under the rows of a. The result has the union
// of both column sets in first-seen order; cells absent from one side are
// missing (NaN or empty). A column must have the same kind on both sides.
func Concat(a, b *Table) (*Table, error) {
	names := a.Names()
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}
	for _, n := range b.Names() {
		if !seen[n] {
			names = append(names, n)
			seen[n] = true
		}
	}

	out := make([]Column, 0, len(names))
	for _, name := range names {
		ca, okA := a.Column(name)
		cb, okB := b.Column(name)

		kind := ca.Kind
		if !okA {
			kind = cb.Kind
		}
		if okA && okB && ca.Kind != cb.Kind {
			return nil, fmt.Errorf("column %q is %s in one table and %s in the other", name, ca.Kind, cb.Kind)
		}

		col := Column{Name: name, Kind: kind}
		switch kind {
		case KindFloat:
			col.Floats = make([]float64, 0, a.rows+b.rows)
			col.Floats = append(col.Floats, floatsOrMissing(ca, okA, a.rows)...)
			col.Floats = append(col.Floats, floatsOrMissing(cb, okB, b.rows)...)
		case KindString:
			col.Strings = make([]string, 0, a.rows+b.rows)
			col.Strings = append(col.Strings, stringsOrMissing(ca, okA, a.rows)...)
			col.Strings = append(col.Strings, stringsOrMissing(cb, okB, b.rows)...)
		}
		out = append(out, col)
	}
	return NewTable(out...)
}

func floatsOrMissing(c Column, ok bool, n int) []float64 {
	if ok {
		return c.Floats
	}
	return NaNs(n)
}

func stringsOrMissing(c Column, ok bool, n int) []string {
	if ok {
		return c.Strings
	}
	return make([]string, n)
}

// NaNs returns a slice of n missing values.
func NaNs(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
