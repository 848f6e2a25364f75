package pricing

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"farmacia/internal/core/apperror"
)

// selectorEnv declares the variables a selector expression can reference.
var selectorEnv = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("type", cel.StringType),
		cel.Variable("id", cel.StringType),
		cel.Variable("name", cel.StringType),
		cel.Variable("category", cel.StringType),
		cel.Variable("cost", cel.DoubleType),
		cel.Variable("markup", cel.DoubleType),
		cel.Variable("sale_price", cel.DoubleType),
		cel.Variable("custom", cel.BoolType),
		// lets `cost > 50` compare a double with an int literal
		cel.CrossTypeNumericComparisons(true),
	)
})

// Selector is a compiled boolean CEL expression picking bulk targets,
// e.g. `category == "alopaticos" && !custom`.
type Selector struct {
	expr string
	prg  cel.Program
}

// CompileSelector parses and type-checks expr.
func CompileSelector(expr string) (*Selector, error) {
	env, err := selectorEnv()
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("build selector environment: %w", err))
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, apperror.NewValidation("invalid selector expression").
			WithDetail("field", "selector").
			WithDetail("error", iss.Err().Error())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, apperror.NewValidation("selector must evaluate to a boolean").
			WithDetail("field", "selector").
			WithDetail("type", ast.OutputType().String())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, apperror.NewValidation("invalid selector expression").
			WithDetail("field", "selector").
			WithDetail("error", err.Error())
	}
	return &Selector{expr: expr, prg: prg}, nil
}

// String returns the source expression.
func (s *Selector) String() string {
	return s.expr
}

// Match evaluates the selector against e.
func (s *Selector) Match(e *PricedEntity) (bool, error) {
	out, _, err := s.prg.Eval(map[string]any{
		"type":       string(e.Type),
		"id":         e.ID.String(),
		"name":       e.Name,
		"category":   e.Category(),
		"cost":       e.CostPrice.InexactFloat64(),
		"markup":     e.Markup.InexactFloat64(),
		"sale_price": e.SalePrice.InexactFloat64(),
		"custom":     e.MarkupIsCustom,
	})
	if err != nil {
		return false, apperror.NewValidation("selector evaluation failed").
			WithDetail("selector", s.expr).
			WithCause(err)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, apperror.NewValidation("selector must evaluate to a boolean").
			WithDetail("selector", s.expr)
	}
	return matched, nil
}
