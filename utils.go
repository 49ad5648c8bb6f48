package filtersql

import (
	"github.com/google/cel-go/common/operators"
	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// Type checking utilities

func isListType(typ *exprpb.Type) bool {
	_, ok := typ.GetTypeKind().(*exprpb.Type_ListType_)
	return ok
}

// isObjectType reports whether the checked type is a declared object type,
// i.e. a structured neighbor reference rather than a plain scalar column.
func isObjectType(typ *exprpb.Type) bool {
	_, ok := typ.GetTypeKind().(*exprpb.Type_MessageType)
	return ok
}

// Expression shape utilities

func isNullLiteral(node *exprpb.Expr) bool {
	if _, isConst := node.ExprKind.(*exprpb.Expr_ConstExpr); !isConst {
		return false
	}
	_, isNull := node.GetConstExpr().ConstantKind.(*exprpb.Constant_NullValue)
	return isNull
}

func isBoolLiteral(node *exprpb.Expr) bool {
	if _, isConst := node.ExprKind.(*exprpb.Expr_ConstExpr); !isConst {
		return false
	}
	_, isBool := node.GetConstExpr().ConstantKind.(*exprpb.Constant_BoolValue)
	return isBool
}

// isLeftRecursive indicates whether the parser resolves the call in a
// left-recursive manner, which affects how parentheses influence the order
// of operations in the AST.
func isLeftRecursive(op string) bool {
	return op != operators.LogicalAnd && op != operators.LogicalOr
}

// isSamePrecedence indicates whether the precedence of the input operator is
// the same as the precedence of the (possible) operation represented in the
// input Expr. If the expr is not a Call, the result is false.
func isSamePrecedence(op string, expr *exprpb.Expr) bool {
	if expr.GetCallExpr() == nil {
		return false
	}
	return operators.Precedence(op) == operators.Precedence(expr.GetCallExpr().GetFunction())
}

// isLowerPrecedence indicates whether the precedence of the input operator
// is lower than the (possible) operation represented in the input Expr.
func isLowerPrecedence(op string, expr *exprpb.Expr) bool {
	if expr.GetCallExpr() == nil {
		return false
	}
	return operators.Precedence(op) < operators.Precedence(expr.GetCallExpr().GetFunction())
}

// isComplexOperator indicates whether the expr is a call expression with two
// or more arguments.
func isComplexOperator(expr *exprpb.Expr) bool {
	return expr.GetCallExpr() != nil && len(expr.GetCallExpr().GetArgs()) >= 2
}

// isComplexOperatorWithRespectTo indicates whether it is a complex operation
// compared to another. expr is not considered complex if it is not a call
// expression with two or more arguments, or if it binds tighter than op.
func isComplexOperatorWithRespectTo(op string, expr *exprpb.Expr) bool {
	if expr.GetCallExpr() == nil || len(expr.GetCallExpr().GetArgs()) < 2 {
		return false
	}
	return isLowerPrecedence(op, expr)
}

// isBinaryOrTernaryOperator indicates whether this is a binary or ternary
// operator.
func isBinaryOrTernaryOperator(expr *exprpb.Expr) bool {
	if expr.GetCallExpr() == nil || len(expr.GetCallExpr().GetArgs()) < 2 {
		return false
	}
	_, isBinaryOp := operators.FindReverseBinaryOperator(expr.GetCallExpr().GetFunction())
	return isBinaryOp || isSamePrecedence(operators.Conditional, expr)
}
