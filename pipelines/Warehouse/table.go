package warehouse

// Table is an in-memory tabular result fetched verbatim from the warehouse.
// Cell values are kept as strings; SQL NULLs become empty strings and are
// coerced downstream.
type Table struct {
	Name    string     `json:"name"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// NumRows returns the number of rows in the table
func (t *Table) NumRows() int {
	return len(t.Rows)
}

// ColumnIndex returns the index of the named column, or -1 if absent
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Head returns a copy of the table truncated to the first n rows
func (t *Table) Head(n int) *Table {
	if n < 0 {
		n = 0
	}
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	head := &Table{
		Name:    t.Name,
		Columns: t.Columns,
		Rows:    make([][]string, n),
	}
	copy(head.Rows, t.Rows[:n])
	return head
}

// Snapshot holds one consistent fetch of all warehouse tables, keyed by name.
type Snapshot map[string]*Table

// Table returns the named table from the snapshot, or nil
func (s Snapshot) Table(name string) *Table {
	return s[name]
}
