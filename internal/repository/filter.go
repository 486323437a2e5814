package repository

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"estatechat/internal/model"
)

type fieldKind int

const (
	textField fieldKind = iota
	numberField
)

// filterableFields whitelists the metadata keys a filter may reference.
var filterableFields = map[string]fieldKind{
	"id":                textField,
	"neighborhood":      textField,
	"borough":           textField,
	"address":           textField,
	"sale_price":        numberField,
	"gross_square_feet": numberField,
	"year_built":        numberField,
}

var comparisonOps = map[string]string{
	"$eq":  "=",
	"$ne":  "<>",
	"$lt":  "<",
	"$lte": "<=",
	"$gt":  ">",
	"$gte": ">=",
}

// buildMetadataFilter translates an operator-map filter into SQL conditions over
// the metadata jsonb column. Placeholders start at $argIndex.
//
// Supported forms per key: a bare value (equality), or an operator map using
// $eq $ne $lt $lte $gt $gte $in $nin, plus $icontains on text fields.
// A numeric bound never matches an entry whose value is unknown.
func buildMetadataFilter(filter model.MetadataFilter, argIndex int) ([]string, []interface{}, int, error) {
	if len(filter) == 0 {
		return nil, nil, argIndex, nil
	}

	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var clauses []string
	var args []interface{}

	for _, key := range keys {
		kind, ok := filterableFields[key]
		if !ok {
			return nil, nil, argIndex, fmt.Errorf("%w: unknown field %q", model.ErrInvalidFilter, key)
		}
		column := fieldExpr(key, kind)

		var ops map[string]any
		switch v := filter[key].(type) {
		case map[string]any:
			ops = v
		case model.MetadataFilter:
			ops = v
		default:
			ops = map[string]any{"$eq": v}
		}

		opNames := make([]string, 0, len(ops))
		for op := range ops {
			opNames = append(opNames, op)
		}
		sort.Strings(opNames)

		for _, op := range opNames {
			raw := ops[op]
			switch {
			case comparisonOps[op] != "":
				v, err := coerce(kind, raw)
				if err != nil {
					return nil, nil, argIndex, fmt.Errorf("%w: %s.%s: %v", model.ErrInvalidFilter, key, op, err)
				}
				clauses = append(clauses, fmt.Sprintf("%s %s $%d", column, comparisonOps[op], argIndex))
				args = append(args, v)
				argIndex++

			case op == "$in" || op == "$nin":
				values, ok := toList(raw)
				if !ok || len(values) == 0 {
					return nil, nil, argIndex, fmt.Errorf("%w: %s.%s expects a non-empty list", model.ErrInvalidFilter, key, op)
				}
				placeholders := make([]string, len(values))
				for i, item := range values {
					v, err := coerce(kind, item)
					if err != nil {
						return nil, nil, argIndex, fmt.Errorf("%w: %s.%s: %v", model.ErrInvalidFilter, key, op, err)
					}
					placeholders[i] = fmt.Sprintf("$%d", argIndex)
					args = append(args, v)
					argIndex++
				}
				neg := ""
				if op == "$nin" {
					neg = "NOT "
				}
				clauses = append(clauses, fmt.Sprintf("%s %sIN (%s)", column, neg, strings.Join(placeholders, ", ")))

			case op == "$icontains" && kind == textField:
				s, ok := raw.(string)
				if !ok {
					return nil, nil, argIndex, fmt.Errorf("%w: %s.$icontains expects a string", model.ErrInvalidFilter, key)
				}
				clauses = append(clauses, fmt.Sprintf(`%s ILIKE $%d ESCAPE '\'`, column, argIndex))
				args = append(args, "%"+escapeLike(s)+"%")
				argIndex++

			default:
				return nil, nil, argIndex, fmt.Errorf("%w: unsupported operator %q on %q", model.ErrInvalidFilter, op, key)
			}
		}
	}

	return clauses, args, argIndex, nil
}

func fieldExpr(key string, kind fieldKind) string {
	if kind == numberField {
		return fmt.Sprintf("(CASE WHEN jsonb_typeof(metadata->'%[1]s') = 'number' THEN (metadata->>'%[1]s')::float8 END)", key)
	}
	return fmt.Sprintf("(metadata->>'%s')", key)
}

func coerce(kind fieldKind, v any) (interface{}, error) {
	if kind == textField {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return s, nil
	}

	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	default:
		return nil, fmt.Errorf("expected number, got %T", v)
	}
}

func toList(v any) ([]any, bool) {
	switch list := v.(type) {
	case []any:
		return list, true
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, true
	case []float64:
		out := make([]any, len(list))
		for i, f := range list {
			out[i] = f
		}
		return out, true
	default:
		return nil, false
	}
}
