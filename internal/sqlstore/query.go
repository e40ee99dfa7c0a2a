package sqlstore

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mesh-intelligence/partybook/pkg/types"
)

// QuestionPlaceholder renders SQLite-style positional parameters.
func QuestionPlaceholder(int) string { return "?" }

// DollarPlaceholder renders Postgres-style numbered parameters.
func DollarPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// whereClause renders filter as " WHERE a = ? AND b = ?" with keys in
// sorted order. Parameters are numbered from start.
func whereClause(def *tableDef, filter types.Filter, ph func(int) string, start int) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}
	keys := sortedKeys(filter)
	conds := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for i, k := range keys {
		if !def.hasColumn(k) {
			return "", nil, fmt.Errorf("%w: unknown column %q in %s", types.ErrInvalidFilter, k, def.name)
		}
		switch v := filter[k].(type) {
		case string, bool:
			args = append(args, v)
		default:
			return "", nil, fmt.Errorf("%w: column %q has value of type %T", types.ErrInvalidFilter, k, v)
		}
		conds = append(conds, k+" = "+ph(start+i))
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func buildSelect(def *tableDef, filter types.Filter, ph func(int) string) (string, []any, error) {
	where, args, err := whereClause(def, filter, ph, 1)
	if err != nil {
		return "", nil, err
	}
	q := "SELECT " + strings.Join(def.columns, ", ") + " FROM " + def.name + where +
		" ORDER BY created_at, " + def.key
	return q, args, nil
}

func buildInsert(def *tableDef, ph func(int) string) string {
	marks := make([]string, len(def.columns))
	for i := range def.columns {
		marks[i] = ph(i + 1)
	}
	return "INSERT INTO " + def.name + " (" + strings.Join(def.columns, ", ") + ") VALUES (" +
		strings.Join(marks, ", ") + ")"
}

// buildUpdate renders an UPDATE ... RETURNING. The touch column, which is
// never patchable, is set to now.
func buildUpdate(def *tableDef, filter types.Filter, patch map[string]any, ph func(int) string, now time.Time) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, types.ErrEmptyFilter
	}
	if len(patch) == 0 {
		return "", nil, fmt.Errorf("%w: empty patch", types.ErrInvalidData)
	}
	sets := make([]string, 0, len(patch)+1)
	args := make([]any, 0, len(patch)+1+len(filter))
	for _, col := range sortedKeys(patch) {
		if !def.patchable[col] {
			return "", nil, fmt.Errorf("%w: column %q of %s is not patchable", types.ErrInvalidData, col, def.name)
		}
		v, err := bindValue(patch[col])
		if err != nil {
			return "", nil, err
		}
		args = append(args, v)
		sets = append(sets, col+" = "+ph(len(args)))
	}
	if def.touch != "" {
		args = append(args, formatTime(now))
		sets = append(sets, def.touch+" = "+ph(len(args)))
	}
	where, whereArgs, err := whereClause(def, filter, ph, len(args)+1)
	if err != nil {
		return "", nil, err
	}
	args = append(args, whereArgs...)
	q := "UPDATE " + def.name + " SET " + strings.Join(sets, ", ") + where +
		" RETURNING " + strings.Join(def.columns, ", ")
	return q, args, nil
}

func buildDelete(def *tableDef, filter types.Filter, ph func(int) string) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, types.ErrEmptyFilter
	}
	where, args, err := whereClause(def, filter, ph, 1)
	if err != nil {
		return "", nil, err
	}
	return "DELETE FROM " + def.name + where, args, nil
}
