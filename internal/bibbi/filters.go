package bibbi

import "strings"

// Filter is an opaque SQL predicate applied to a List query. Callers compose
// filters instead of the store growing one method per query shape.
type Filter struct {
	Expr string
	Args []any
}

// MainRecordsOnly excludes alternate-name records, which reference a main
// record instead of carrying their own authority.
func MainRecordsOnly() Filter {
	return Filter{Expr: "reference_of IS NULL"}
}

// Linked restricts to records carrying an external registry link.
func Linked() Filter {
	return Filter{Expr: "IFNULL(noraf_id, '') != ''"}
}

// Unlinked restricts to records without an external registry link.
func Unlinked() Filter {
	return Filter{Expr: "IFNULL(noraf_id, '') = ''"}
}

// NameIn restricts to records whose heading equals one of the given names.
func NameIn(names []string) Filter {
	placeholders := make([]string, len(names))
	args := make([]any, len(names))
	for i, name := range names {
		placeholders[i] = "?"
		args[i] = name
	}
	return Filter{
		Expr: "name IN (" + strings.Join(placeholders, ",") + ")",
		Args: args,
	}
}

func whereClause(base string, filters []Filter) (string, []any) {
	exprs := make([]string, 0, len(filters)+1)
	var args []any
	if base != "" {
		exprs = append(exprs, base)
	}
	for _, filter := range filters {
		if strings.TrimSpace(filter.Expr) == "" {
			continue
		}
		exprs = append(exprs, "("+filter.Expr+")")
		args = append(args, filter.Args...)
	}
	if len(exprs) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(exprs, " AND "), args
}
