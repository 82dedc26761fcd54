package adapter

import (
	"context"

	"buyone/internal/service/inventory/domain/port"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"
)

// CELAdmissionAdapter 是 port.AdmissionPolicy 的 CEL 实现。
// 表达式可以引用 productId、quantity、orderNumber，必须返回 bool，例如 "quantity <= 10"。
type CELAdmissionAdapter struct {
	expr string
	prg  cel.Program
}

// NewCELAdmissionAdapter 编译表达式。语法或类型错误在启动时暴露。
func NewCELAdmissionAdapter(expr string) (*CELAdmissionAdapter, error) {
	env, err := cel.NewEnv(
		cel.Variable("productId", cel.StringType),
		cel.Variable("quantity", cel.IntType),
		cel.Variable("orderNumber", cel.StringType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cel env")
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, errors.Wrapf(iss.Err(), "compile admission rule %q", expr)
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, errors.Errorf("admission rule %q must evaluate to bool, got %s", expr, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrap(err, "build cel program")
	}
	return &CELAdmissionAdapter{expr: expr, prg: prg}, nil
}

var _ port.AdmissionPolicy = (*CELAdmissionAdapter)(nil)

func (a *CELAdmissionAdapter) Admit(ctx context.Context, req port.AdmissionRequest) (bool, error) {
	out, _, err := a.prg.ContextEval(ctx, map[string]interface{}{
		"productId":   req.ProductID,
		"quantity":    req.Quantity,
		"orderNumber": req.OrderNumber,
	})
	if err != nil {
		return false, errors.Wrapf(err, "evaluate admission rule %q", a.expr)
	}
	allowed, ok := out.Value().(bool)
	if !ok {
		return false, errors.Errorf("admission rule %q returned %T", a.expr, out.Value())
	}
	return allowed, nil
}
