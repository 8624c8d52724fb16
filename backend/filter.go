package backend

import (
	"fmt"
	"strings"
)

// Metadata predicates support a small operator language shared by both
// backends:
//
//	{"tag": "news"}                          equality shorthand
//	{"year": {"$gte": 2020}}                 comparison operators
//	{"lang": {"$in": ["en", "de"]}}          membership
//	{"$and": [{...}, {...}]}                 conjunction
//	{"$or": [{...}, {...}]}                  disjunction
//
// Supported field operators: $eq, $ne, $gt, $gte, $lt, $lte, $in, $nin.
//
// Document predicates filter on raw document content:
//
//	{"$contains": "needle"}
//	{"$not_contains": "needle"}
//
// and compose with $and / $or the same way. Containment is plain
// substring containment, not token matching.

// MatchesWhere reports whether metadata satisfies the predicate. A nil
// or empty predicate matches everything.
func MatchesWhere(metadata map[string]any, where map[string]any) (bool, error) {
	if len(where) == 0 {
		return true, nil
	}
	for key, cond := range where {
		switch key {
		case "$and", "$or":
			ok, err := matchesLogical(key, cond, func(clause map[string]any) (bool, error) {
				return MatchesWhere(metadata, clause)
			})
			if err != nil || !ok {
				return false, err
			}
		default:
			ok, err := matchesField(metadata[key], cond)
			if err != nil {
				return false, fmt.Errorf("field %q: %w", key, err)
			}
			if !ok {
				return false, nil
			}
		}
	}
	return true, nil
}

// MatchesDocument reports whether a document satisfies the predicate. A
// nil or empty predicate matches everything.
func MatchesDocument(document string, where map[string]any) (bool, error) {
	if len(where) == 0 {
		return true, nil
	}
	for op, arg := range where {
		switch op {
		case "$and", "$or":
			ok, err := matchesLogical(op, arg, func(clause map[string]any) (bool, error) {
				return MatchesDocument(document, clause)
			})
			if err != nil || !ok {
				return false, err
			}
		case "$contains", "$not_contains":
			needle, ok := arg.(string)
			if !ok {
				return false, fmt.Errorf("%s expects a string, got %T", op, arg)
			}
			has := strings.Contains(document, needle)
			if op == "$contains" && !has {
				return false, nil
			}
			if op == "$not_contains" && has {
				return false, nil
			}
		default:
			return false, fmt.Errorf("unsupported document operator %q", op)
		}
	}
	return true, nil
}

func matchesLogical(op string, arg any, eval func(map[string]any) (bool, error)) (bool, error) {
	clauses, err := toClauses(arg)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	for _, clause := range clauses {
		ok, err := eval(clause)
		if err != nil {
			return false, err
		}
		if op == "$and" && !ok {
			return false, nil
		}
		if op == "$or" && ok {
			return true, nil
		}
	}
	// $and exhausted without a miss, $or without a hit.
	return op == "$and", nil
}

func toClauses(arg any) ([]map[string]any, error) {
	switch v := arg.(type) {
	case []map[string]any:
		return v, nil
	case []any:
		clauses := make([]map[string]any, 0, len(v))
		for _, item := range v {
			clause, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("clause must be an object, got %T", item)
			}
			clauses = append(clauses, clause)
		}
		return clauses, nil
	default:
		return nil, fmt.Errorf("expects a list of clauses, got %T", arg)
	}
}

func matchesField(value any, cond any) (bool, error) {
	ops, ok := cond.(map[string]any)
	if !ok {
		// Bare value is equality shorthand.
		return valuesEqual(value, cond), nil
	}
	for op, operand := range ops {
		switch op {
		case "$eq":
			if !valuesEqual(value, operand) {
				return false, nil
			}
		case "$ne":
			if valuesEqual(value, operand) {
				return false, nil
			}
		case "$gt", "$gte", "$lt", "$lte":
			ok, err := compareOrdered(op, value, operand)
			if err != nil || !ok {
				return false, err
			}
		case "$in", "$nin":
			list, ok := operand.([]any)
			if !ok {
				return false, fmt.Errorf("%s expects a list, got %T", op, operand)
			}
			found := false
			for _, item := range list {
				if valuesEqual(value, item) {
					found = true
					break
				}
			}
			if (op == "$in") != found {
				return false, nil
			}
		default:
			return false, fmt.Errorf("unsupported operator %q", op)
		}
	}
	return true, nil
}

func compareOrdered(op string, value, operand any) (bool, error) {
	if a, b, ok := asFloats(value, operand); ok {
		return orderedResult(op, compareFloats(a, b)), nil
	}
	a, aok := value.(string)
	b, bok := operand.(string)
	if aok && bok {
		return orderedResult(op, strings.Compare(a, b)), nil
	}
	if value == nil {
		// Missing field never satisfies an ordering operator.
		return false, nil
	}
	return false, fmt.Errorf("%s cannot compare %T with %T", op, value, operand)
}

func orderedResult(op string, cmp int) bool {
	switch op {
	case "$gt":
		return cmp > 0
	case "$gte":
		return cmp >= 0
	case "$lt":
		return cmp < 0
	case "$lte":
		return cmp <= 0
	}
	return false
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func valuesEqual(a, b any) bool {
	if fa, fb, ok := asFloats(a, b); ok {
		return fa == fb
	}
	return a == b
}

// asFloats coerces both values to float64 when both are numeric. JSON
// round-trips turn ints into float64, so numeric comparison must not
// depend on the concrete Go type.
func asFloats(a, b any) (float64, float64, bool) {
	fa, aok := toFloat(a)
	fb, bok := toFloat(b)
	return fa, fb, aok && bok
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
