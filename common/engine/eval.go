package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

var (
	// ErrDivisionByZero is returned when an expression divides by zero.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrUnsupportedExpression is returned for anything outside plain
	// arithmetic: identifiers, calls, comparisons, strings.
	ErrUnsupportedExpression = errors.New("unsupported expression")
)

// EvalExpression interpolates {{var}} placeholders, parses the result and
// evaluates it over float64. Only numeric literals, unary +/- and the
// operators + - * / % ** (with ^ as an alias) are accepted; everything
// else fails with ErrUnsupportedExpression so workflow expressions can
// never reach names, calls or comparisons.
func EvalExpression(ctx *Context, expression string) (float64, error) {
	resolved := ctx.Interpolate(expression)

	tree, err := parser.Parse(resolved)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnsupportedExpression, err)
	}

	return evalNode(tree.Node)
}

func evalNode(node ast.Node) (float64, error) {
	switch n := node.(type) {
	case *ast.IntegerNode:
		return float64(n.Value), nil

	case *ast.FloatNode:
		return n.Value, nil

	case *ast.UnaryNode:
		v, err := evalNode(n.Node)
		if err != nil {
			return 0, err
		}
		switch n.Operator {
		case "-":
			return -v, nil
		case "+":
			return v, nil
		}
		return 0, fmt.Errorf("%w: unary operator %q", ErrUnsupportedExpression, n.Operator)

	case *ast.BinaryNode:
		left, err := evalNode(n.Left)
		if err != nil {
			return 0, err
		}
		right, err := evalNode(n.Right)
		if err != nil {
			return 0, err
		}

		switch n.Operator {
		case "+":
			return left + right, nil
		case "-":
			return left - right, nil
		case "*":
			return left * right, nil
		case "/":
			if right == 0 {
				return 0, ErrDivisionByZero
			}
			return left / right, nil
		case "%":
			if right == 0 {
				return 0, ErrDivisionByZero
			}
			return math.Mod(left, right), nil
		case "**", "^":
			return math.Pow(left, right), nil
		}
		return 0, fmt.Errorf("%w: operator %q", ErrUnsupportedExpression, n.Operator)
	}

	return 0, fmt.Errorf("%w: %T", ErrUnsupportedExpression, node)
}
