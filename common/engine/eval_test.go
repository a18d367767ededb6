package engine

import (
	"errors"
	"testing"
)

func TestEvalExpressionArithmetic(t *testing.T) {
	ctx := NewContext()

	cases := []struct {
		expr string
		want float64
	}{
		{"1 + 2", 3},
		{"10 - 4", 6},
		{"6 * 7", 42},
		{"15 / 4", 3.75},
		{"10 % 3", 1},
		{"2 ** 10", 1024},
		{"2 ^ 10", 1024},
		{"-5 + 3", -2},
		{"+5", 5},
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"1.5 * 2", 3},
	}
	for _, c := range cases {
		got, err := EvalExpression(ctx, c.expr)
		if err != nil {
			t.Errorf("EvalExpression(%q): unexpected error %v", c.expr, err)
			continue
		}
		if got != c.want {
			t.Errorf("EvalExpression(%q): got %v, want %v", c.expr, got, c.want)
		}
	}
}

func TestEvalExpressionInterpolatesVariables(t *testing.T) {
	ctx := NewContext()
	ctx.SetVariable("ltp", 600.0)
	ctx.SetVariable("qty", 10)

	got, err := EvalExpression(ctx, "{{ltp}} * {{qty}}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 6000 {
		t.Errorf("got %v, want 6000", got)
	}
}

func TestEvalExpressionDivisionByZero(t *testing.T) {
	ctx := NewContext()

	for _, expr := range []string{"1 / 0", "5 % 0"} {
		_, err := EvalExpression(ctx, expr)
		if !errors.Is(err, ErrDivisionByZero) {
			t.Errorf("EvalExpression(%q): got %v, want ErrDivisionByZero", expr, err)
		}
	}
}

func TestEvalExpressionRejectsNonArithmetic(t *testing.T) {
	ctx := NewContext()
	ctx.SetVariable("name", "NIFTY")

	// Identifiers, calls, comparisons and strings must all be refused;
	// workflow expressions are arithmetic only.
	rejected := []string{
		"foo",
		"foo + 1",
		"len([1,2])",
		`"a" + "b"`,
		"1 > 2",
		"true",
		"1 == 1",
		"{{name}} * 2",
		"",
	}
	for _, expr := range rejected {
		_, err := EvalExpression(ctx, expr)
		if !errors.Is(err, ErrUnsupportedExpression) {
			t.Errorf("EvalExpression(%q): got %v, want ErrUnsupportedExpression", expr, err)
		}
	}
}

func TestEvalExpressionUnresolvedPlaceholderFails(t *testing.T) {
	ctx := NewContext()

	// {{missing}} stays literal, so the parser sees braces and refuses
	_, err := EvalExpression(ctx, "{{missing}} + 1")
	if !errors.Is(err, ErrUnsupportedExpression) {
		t.Errorf("got %v, want ErrUnsupportedExpression", err)
	}
}

func BenchmarkEvalExpression(b *testing.B) {
	ctx := NewContext()
	ctx.SetVariable("ltp", 600.0)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := EvalExpression(ctx, "({{ltp}} * 75 - 1250) / 2"); err != nil {
			b.Fatal(err)
		}
	}
}
