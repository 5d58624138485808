package db

import (
	"errors"
	"fmt"
	"strings"

	pgquery "github.com/pganalyze/pg_query_go/v6"
)

// ErrStatementRejected marks statements refused before reaching the database.
var ErrStatementRejected = errors.New("statement rejected")

// ValidateStatement checks a generated statement against the rules the model
// is asked to follow:
//   - exactly one statement, and it must be a SELECT (no SELECT INTO, CTEs
//     must be SELECTs too)
//   - with a plain SELECT DISTINCT, every ORDER BY column must be selected
//
// Only column references are compared in ORDER BY; positions and arbitrary
// expressions are left for the database to judge.
func ValidateStatement(statement string) error {
	tree, err := pgquery.Parse(statement)
	if err != nil {
		return fmt.Errorf("parse sql: %w", err)
	}
	stmts := tree.GetStmts()
	if len(stmts) != 1 {
		return fmt.Errorf("%w: expected a single statement, got %d", ErrStatementRejected, len(stmts))
	}
	sel := stmts[0].GetStmt().GetSelectStmt()
	if sel == nil {
		return fmt.Errorf("%w: only SELECT statements can be executed", ErrStatementRejected)
	}
	return validateSelect(sel)
}

func validateSelect(sel *pgquery.SelectStmt) error {
	if sel.GetIntoClause() != nil {
		return fmt.Errorf("%w: SELECT INTO is not allowed", ErrStatementRejected)
	}
	if with := sel.GetWithClause(); with != nil {
		for _, cte := range with.GetCtes() {
			expr := cte.GetCommonTableExpr()
			if expr == nil {
				continue
			}
			inner := expr.GetCtequery().GetSelectStmt()
			if inner == nil {
				return fmt.Errorf("%w: CTE %q must be a SELECT", ErrStatementRejected, expr.GetCtename())
			}
			if err := validateSelect(inner); err != nil {
				return err
			}
		}
	}

	if sel.GetOp() != pgquery.SetOperation_SETOP_NONE {
		if err := validateSelect(sel.GetLarg()); err != nil {
			return err
		}
		return validateSelect(sel.GetRarg())
	}

	if isPlainDistinct(sel.GetDistinctClause()) {
		return checkDistinctOrderBy(sel)
	}
	return nil
}

// isPlainDistinct is true for SELECT DISTINCT, which the parser encodes as a
// one-element list holding an empty node. DISTINCT ON carries expressions.
func isPlainDistinct(clause []*pgquery.Node) bool {
	if len(clause) == 0 {
		return false
	}
	for _, node := range clause {
		if node != nil && node.GetNode() != nil {
			return false
		}
	}
	return true
}

// checkDistinctOrderBy matches an unqualified ORDER BY column against any
// selected column of that name. A qualified one needs the same qualified
// column, or an unqualified target or alias of that name.
func checkDistinctOrderBy(sel *pgquery.SelectStmt) error {
	names := make(map[string]struct{})
	lastNames := make(map[string]struct{})
	for _, target := range sel.GetTargetList() {
		res := target.GetResTarget()
		if res == nil {
			continue
		}
		if name := res.GetName(); name != "" {
			names[strings.ToLower(name)] = struct{}{}
		}
		full, last, star := columnRefName(res.GetVal().GetColumnRef())
		if star {
			return nil
		}
		if full != "" {
			names[full] = struct{}{}
			lastNames[last] = struct{}{}
		}
	}

	for _, sortNode := range sel.GetSortClause() {
		full, last, _ := columnRefName(sortNode.GetSortBy().GetNode().GetColumnRef())
		if full == "" {
			continue
		}
		_, ok := names[full]
		if !ok && full == last {
			_, ok = lastNames[last]
		}
		if !ok && full != last {
			_, ok = names[last]
		}
		if !ok {
			return fmt.Errorf("%w: ORDER BY column %q must appear in the SELECT DISTINCT list", ErrStatementRejected, full)
		}
	}
	return nil
}

// columnRefName returns the dotted lower-case name of a column reference and
// its last segment. star reports a trailing "*".
func columnRefName(ref *pgquery.ColumnRef) (full, last string, star bool) {
	if ref == nil {
		return "", "", false
	}
	parts := make([]string, 0, len(ref.GetFields()))
	for _, field := range ref.GetFields() {
		if field.GetAStar() != nil {
			return "", "", true
		}
		if s := field.GetString_(); s != nil {
			parts = append(parts, strings.ToLower(s.GetSval()))
		}
	}
	if len(parts) == 0 {
		return "", "", false
	}
	return strings.Join(parts, "."), parts[len(parts)-1], false
}
