package xml2xl

import (
	"fmt"

	expro "github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Expression — скомпилированное выражение eval от одной переменной x.
// Кроме встроенных функций expr доступны strip(s), fuse(s) и hex(s[, digits]).
type Expression struct {
	Source  string
	program *vm.Program
}

func exprHelpers() []expro.Option {
	return []expro.Option{
		expro.Function("strip", func(params ...any) (any, error) {
			return XMLStrip(toString(params[0])), nil
		}, new(func(any) string)),
		expro.Function("fuse", func(params ...any) (any, error) {
			return Fuse(toString(params[0])), nil
		}, new(func(any) string)),
		expro.Function("hex", func(params ...any) (any, error) {
			digits := 0
			if len(params) > 1 {
				n, ok := toInt(params[1])
				if !ok || n < 0 {
					return nil, fmt.Errorf("hex: некорректное число знаков %v", params[1])
				}
				digits = n
			}
			return hexFormatter(digits)(toString(params[0])), nil
		}, new(func(any) string), new(func(any, any) string)),
	}
}

// CompileExpression компилирует выражение один раз при разборе шаблона.
// Пустая строка и "x" дают тождественное преобразование.
func CompileExpression(src string) (*Expression, error) {
	if src == "" || src == "x" {
		return &Expression{Source: src}, nil
	}
	program, err := expro.Compile(src, exprHelpers()...)
	if err != nil {
		return nil, fmt.Errorf("компиляция eval %q: %w", src, err)
	}
	return &Expression{Source: src, program: program}, nil
}

// Apply вычисляет выражение для значения x; nil-выражение возвращает x.
func (e *Expression) Apply(x interface{}) (interface{}, error) {
	if e == nil || e.program == nil {
		return x, nil
	}
	return expro.Run(e.program, map[string]interface{}{"x": x})
}
