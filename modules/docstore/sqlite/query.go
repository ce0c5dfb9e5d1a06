package sqlite

import (
	"fmt"
	"strings"

	"github.com/flemzord/ephemera/internal/docstore"
)

// jsonPath quotes a top-level field for json_extract/json_type.
func jsonPath(field string) (string, error) {
	if strings.ContainsAny(field, `"\`) {
		return "", fmt.Errorf("%w: field %q", docstore.ErrInvalidFilter, field)
	}
	return `$."` + field + `"`, nil
}

// valueKind classifies a filter operand the way the document matcher does:
// numbers compare with numbers, strings with strings, bools with bools.
func valueKind(v any) (cond string, arg any, err error) {
	if f, ok := docstore.ToFloat(v); ok {
		return "json_type(data, ?) IN ('integer','real')", f, nil
	}
	switch t := v.(type) {
	case string:
		return "json_type(data, ?) = 'text'", t, nil
	case bool:
		cond = "json_type(data, ?) IN ('true','false')"
		if t {
			return cond, 1, nil
		}
		return cond, 0, nil
	}
	return "", nil, fmt.Errorf("%w: unsupported value type %T", docstore.ErrInvalidFilter, v)
}

var sqlOps = map[docstore.Op]string{
	docstore.OpEq:  "=",
	docstore.OpLt:  "<",
	docstore.OpLte: "<=",
	docstore.OpGt:  ">",
	docstore.OpGte: ">=",
}

// comparison renders "kind check AND json_extract(data, path) op ?".
func comparison(path, op string, v any) (string, []any, error) {
	kind, arg, err := valueKind(v)
	if err != nil {
		return "", nil, err
	}
	return "(" + kind + " AND json_extract(data, ?) " + op + " ?)", []any{path, path, arg}, nil
}

// buildWhere translates filters into a WHERE fragment and its arguments.
func buildWhere(filters []docstore.Filter) (string, []any, error) {
	var (
		clauses []string
		args    []any
	)
	for _, f := range filters {
		if err := f.Validate(); err != nil {
			return "", nil, err
		}
		path, err := jsonPath(f.Field)
		if err != nil {
			return "", nil, err
		}

		switch f.Op {
		case docstore.OpExists:
			clauses = append(clauses, "COALESCE(json_type(data, ?), 'null') != 'null'")
			args = append(args, path)

		case docstore.OpIn:
			values, _ := docstore.InValues(f.Value)
			if len(values) == 0 {
				clauses = append(clauses, "0")
				continue
			}
			ors := make([]string, 0, len(values))
			for _, v := range values {
				c, a, err := comparison(path, "=", v)
				if err != nil {
					return "", nil, err
				}
				ors = append(ors, c)
				args = append(args, a...)
			}
			clauses = append(clauses, "("+strings.Join(ors, " OR ")+")")

		default:
			c, a, err := comparison(path, sqlOps[f.Op], f.Value)
			if err != nil {
				return "", nil, err
			}
			clauses = append(clauses, c)
			args = append(args, a...)
		}
	}
	if len(clauses) == 0 {
		return "", nil, nil
	}
	return " AND " + strings.Join(clauses, " AND "), args, nil
}
