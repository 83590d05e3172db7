package report

import (
	"log/slog"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"

	"github.com/hrygo/pharmacontrol/plugin/inventory"
)

// Predicate is a compiled CEL expression over a medication's stock and status.
type Predicate struct {
	Name string
	Expr string
	prg  cel.Program
}

var (
	// InStock keeps medications with stock on hand.
	InStock = mustPredicate("in_stock", "stock > 0")
	// OutOfStock keeps medications with no stock. Negative counts are
	// backend corrections and count as depleted.
	OutOfStock = mustPredicate("out_of_stock", "stock <= 0")
	// Highlight flags rows that need attention in reports.
	Highlight = mustPredicate("highlight", `stock <= 0 || status in ["bajo", "agotado", "low", "depleted"]`)
)

// NewPredicate compiles a boolean expression over the variables stock
// (double, comparable with int literals) and status (string).
func NewPredicate(name, expr string) (*Predicate, error) {
	env, err := cel.NewEnv(
		cel.Variable("stock", cel.DoubleType),
		cel.Variable("status", cel.StringType),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create CEL environment")
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, errors.Wrapf(iss.Err(), "failed to compile %q", expr)
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, errors.Errorf("expression %q must be boolean, got %s", expr, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build program for %q", expr)
	}
	return &Predicate{Name: name, Expr: expr, prg: prg}, nil
}

func mustPredicate(name, expr string) *Predicate {
	p, err := NewPredicate(name, expr)
	if err != nil {
		panic(err)
	}
	return p
}

// Match evaluates the predicate against a record. Evaluation errors count as
// no match.
func (p *Predicate) Match(rec inventory.Record) bool {
	out, _, err := p.prg.Eval(map[string]any{
		"stock":  Stock(rec),
		"status": Status(rec),
	})
	if err != nil {
		slog.Warn("predicate evaluation failed", "predicate", p.Name, "error", err)
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

// Filter returns the records matching p, in input order. The input slice and
// its records are not modified.
func Filter(records []inventory.Record, p *Predicate) []inventory.Record {
	out := make([]inventory.Record, 0, len(records))
	for _, rec := range records {
		if p.Match(rec) {
			out = append(out, rec)
		}
	}
	return out
}
