package store

import (
	"fmt"
	"strings"
)

// where composes typed predicates into a parameterized WHERE clause. It
// replaces ad hoc string concatenation and placeholder-index bookkeeping in
// the filtered list queries.
type where struct {
	clauses []string
	args    []any
}

// add appends "field op $n" for a non-zero value. op must be a literal
// operator written at the call site; values always travel as parameters.
func (w *where) add(field, op string, value any) *where {
	w.clauses = append(w.clauses, fmt.Sprintf("%s %s $%d", field, op, len(w.args)+1))
	w.args = append(w.args, value)
	return w
}

// addIf is add gated on a string filter being set.
func (w *where) addIf(field, op, value string) *where {
	if value != "" {
		w.add(field, op, value)
	}
	return w
}

// SQL renders the clause (with leading " WHERE ") and its arguments.
// An empty predicate set renders to "".
func (w *where) SQL() (string, []any) {
	if len(w.clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(w.clauses, " AND "), w.args
}
