// Package filtersql compiles declarative filter predicates over metadata
// nodes (artifacts, executions, contexts) into SQL clause fragments. The
// predicate mini-language is parsed and type-checked with CEL; this package
// renders the checked expression tree as a SQL boolean expression, invoking
// a LeafRewriter on every leaf reference so relationship mentions resolve to
// qualified columns against generated join aliases.
package filtersql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/operators"
	"github.com/google/cel-go/common/overloads"
	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// The rendering logic follows `google/cel-go`'s unparser
// https://github.com/google/cel-go/blob/master/parser/unparser.go

// LeafRewriter rewrites one leaf reference of a filter expression into
// replacement SQL text. Structured references name a related entity
// (contexts_0, properties_x, ...) and usually carry the field being
// dereferenced; plain references name an attribute of the base node. When
// field is empty for a structured reference, the printer renders the field
// access itself and only the table alias is wanted.
type LeafRewriter interface {
	RewriteLeaf(name, field string, structured bool) (string, error)
}

// Convert renders a checked CEL AST as a SQL boolean expression, leaving
// identifiers untouched.
func Convert(ast *cel.Ast) (string, error) {
	return ConvertWithRewriter(ast, nil)
}

// ConvertWithRewriter renders a checked CEL AST as a SQL boolean expression,
// passing every leaf reference through rw. The rewritten text is substituted
// verbatim; a rewrite error aborts the conversion with no partial output.
func ConvertWithRewriter(ast *cel.Ast, rw LeafRewriter) (string, error) {
	checkedExpr, err := cel.AstToCheckedExpr(ast)
	if err != nil {
		return "", err
	}
	con := &converter{
		typeMap:  checkedExpr.TypeMap,
		rewriter: rw,
	}
	if err := con.visit(checkedExpr.Expr); err != nil {
		return "", err
	}
	return con.str.String(), nil
}

type converter struct {
	str      strings.Builder
	typeMap  map[int64]*exprpb.Type
	rewriter LeafRewriter
}

func (con *converter) visit(expr *exprpb.Expr) error {
	switch expr.ExprKind.(type) {
	case *exprpb.Expr_CallExpr:
		return con.visitCall(expr)
	case *exprpb.Expr_ConstExpr:
		return con.visitConst(expr)
	case *exprpb.Expr_IdentExpr:
		return con.visitIdent(expr)
	case *exprpb.Expr_ListExpr:
		return con.visitList(expr)
	case *exprpb.Expr_SelectExpr:
		return con.visitSelect(expr)
	}
	return fmt.Errorf("unsupported expr: %v", expr)
}

func (con *converter) visitCall(expr *exprpb.Expr) error {
	c := expr.GetCallExpr()
	fun := c.GetFunction()
	switch fun {
	// ternary operator
	case operators.Conditional:
		return con.visitCallConditional(expr)
	// unary operators
	case operators.LogicalNot, operators.Negate:
		return con.visitCallUnary(expr)
	// binary operators
	case operators.Add,
		operators.Divide,
		operators.Equals,
		operators.Greater,
		operators.GreaterEquals,
		operators.In,
		operators.Less,
		operators.LessEquals,
		operators.LogicalAnd,
		operators.LogicalOr,
		operators.Multiply,
		operators.NotEquals,
		operators.OldIn,
		operators.Subtract:
		return con.visitCallBinary(expr)
	case operators.Index:
		return fmt.Errorf("unsupported operator: %s", fun)
	// standard function calls
	default:
		return con.visitCallFunc(expr)
	}
}

func (con *converter) visitCallBinary(expr *exprpb.Expr) error {
	c := expr.GetCallExpr()
	fun := c.GetFunction()
	args := c.GetArgs()
	lhs := args[0]
	// add parens if the current operator is lower precedence than the lhs expr operator.
	lhsParen := isComplexOperatorWithRespectTo(fun, lhs)
	rhs := args[1]
	// add parens if the current operator is lower precedence than the rhs expr operator,
	// or the same precedence and the operator is left recursive.
	rhsParen := isComplexOperatorWithRespectTo(fun, rhs)
	if !rhsParen && isLeftRecursive(fun) {
		rhsParen = isSamePrecedence(fun, rhs)
	}
	if err := con.visitMaybeNested(lhs, lhsParen); err != nil {
		return err
	}
	lhsType := con.getType(lhs)
	rhsType := con.getType(rhs)
	var operator string
	switch {
	case fun == operators.Add && lhsType.GetPrimitive() == exprpb.Type_STRING && rhsType.GetPrimitive() == exprpb.Type_STRING:
		operator = "||"
	case fun == operators.Equals && (isNullLiteral(rhs) || isBoolLiteral(rhs)):
		operator = "IS"
	case fun == operators.NotEquals && (isNullLiteral(rhs) || isBoolLiteral(rhs)):
		operator = "IS NOT"
	case (fun == operators.In || fun == operators.OldIn) && isListType(rhsType):
		operator = "IN"
	default:
		if op, found := standardSQLBinaryOperators[fun]; found {
			operator = op
		} else if op, found := operators.FindReverseBinaryOperator(fun); found {
			operator = op
		} else {
			return fmt.Errorf("cannot unmangle operator: %s", fun)
		}
	}
	con.str.WriteString(" ")
	con.str.WriteString(operator)
	con.str.WriteString(" ")
	return con.visitMaybeNested(rhs, rhsParen)
}

func (con *converter) visitCallConditional(expr *exprpb.Expr) error {
	c := expr.GetCallExpr()
	args := c.GetArgs()
	con.str.WriteString("CASE WHEN ")
	if err := con.visit(args[0]); err != nil {
		return err
	}
	con.str.WriteString(" THEN ")
	if err := con.visit(args[1]); err != nil {
		return err
	}
	con.str.WriteString(" ELSE ")
	if err := con.visit(args[2]); err != nil {
		return err
	}
	con.str.WriteString(" END")
	return nil
}

func (con *converter) visitCallUnary(expr *exprpb.Expr) error {
	c := expr.GetCallExpr()
	fun := c.GetFunction()
	args := c.GetArgs()
	var operator string
	if op, found := standardSQLUnaryOperators[fun]; found {
		operator = op
	} else if op, found := operators.FindReverse(fun); found {
		operator = op
	} else {
		return fmt.Errorf("cannot unmangle operator: %s", fun)
	}
	con.str.WriteString(operator)
	nested := isComplexOperator(args[0])
	return con.visitMaybeNested(args[0], nested)
}

func (con *converter) visitCallFunc(expr *exprpb.Expr) error {
	c := expr.GetCallExpr()
	fun := c.GetFunction()
	target := c.GetTarget()
	args := c.GetArgs()
	switch fun {
	case overloads.Contains:
		return con.callContains(target, args)
	case overloads.EndsWith:
		return con.callEndsWith(target, args)
	case overloads.Matches:
		return con.callMatches(target, args)
	case overloads.Size:
		return con.callSize(target, args)
	}
	sqlFun, ok := standardSQLFunctions[fun]
	if !ok {
		return fmt.Errorf("unsupported function: %s", fun)
	}
	con.str.WriteString(sqlFun)
	con.str.WriteString("(")
	if target != nil {
		nested := isBinaryOrTernaryOperator(target)
		if err := con.visitMaybeNested(target, nested); err != nil {
			return err
		}
		if len(args) > 0 {
			con.str.WriteString(", ")
		}
	}
	for i, arg := range args {
		if err := con.visit(arg); err != nil {
			return err
		}
		if i < len(args)-1 {
			con.str.WriteString(", ")
		}
	}
	con.str.WriteString(")")
	return nil
}

// callContains renders string containment as a POSITION test.
func (con *converter) callContains(target *exprpb.Expr, args []*exprpb.Expr) error {
	con.str.WriteString("POSITION(")
	for i, arg := range args {
		if err := con.visit(arg); err != nil {
			return err
		}
		if i < len(args)-1 {
			con.str.WriteString(" IN ")
		}
	}
	if target != nil {
		con.str.WriteString(" IN ")
		nested := isBinaryOrTernaryOperator(target)
		if err := con.visitMaybeNested(target, nested); err != nil {
			return err
		}
	}
	con.str.WriteString(") > 0")
	return nil
}

// callEndsWith renders suffix matching as a RIGHT comparison; PostgreSQL has
// starts_with but no ends_with counterpart.
func (con *converter) callEndsWith(target *exprpb.Expr, args []*exprpb.Expr) error {
	operand := target
	suffix := args[0]
	if operand == nil {
		if len(args) < 2 {
			return fmt.Errorf("endsWith expects a target and a suffix")
		}
		operand = args[0]
		suffix = args[1]
	}
	con.str.WriteString("RIGHT(")
	nested := isBinaryOrTernaryOperator(operand)
	if err := con.visitMaybeNested(operand, nested); err != nil {
		return err
	}
	con.str.WriteString(", LENGTH(")
	if err := con.visit(suffix); err != nil {
		return err
	}
	con.str.WriteString(")) = ")
	return con.visit(suffix)
}

// callMatches renders regular-expression matching with the ~ operator.
func (con *converter) callMatches(target *exprpb.Expr, args []*exprpb.Expr) error {
	operand := target
	pattern := args[0]
	if operand == nil {
		if len(args) < 2 {
			return fmt.Errorf("matches expects a target and a pattern")
		}
		operand = args[0]
		pattern = args[1]
	}
	nested := isBinaryOrTernaryOperator(operand)
	if err := con.visitMaybeNested(operand, nested); err != nil {
		return err
	}
	con.str.WriteString(" ~ ")
	return con.visit(pattern)
}

func (con *converter) callSize(target *exprpb.Expr, args []*exprpb.Expr) error {
	operand := target
	if operand == nil {
		if len(args) != 1 {
			return fmt.Errorf("size expects a single argument")
		}
		operand = args[0]
	}
	if con.getType(operand).GetPrimitive() != exprpb.Type_STRING {
		return fmt.Errorf("unsupported type for size: %v", con.getType(operand))
	}
	con.str.WriteString("LENGTH(")
	if err := con.visit(operand); err != nil {
		return err
	}
	con.str.WriteString(")")
	return nil
}

func (con *converter) visitConst(expr *exprpb.Expr) error {
	c := expr.GetConstExpr()
	switch c.ConstantKind.(type) {
	case *exprpb.Constant_BoolValue:
		if c.GetBoolValue() {
			con.str.WriteString("TRUE")
		} else {
			con.str.WriteString("FALSE")
		}
	case *exprpb.Constant_DoubleValue:
		con.str.WriteString(strconv.FormatFloat(c.GetDoubleValue(), 'g', -1, 64))
	case *exprpb.Constant_Int64Value:
		con.str.WriteString(strconv.FormatInt(c.GetInt64Value(), 10))
	case *exprpb.Constant_Uint64Value:
		con.str.WriteString(strconv.FormatUint(c.GetUint64Value(), 10))
	case *exprpb.Constant_NullValue:
		con.str.WriteString("NULL")
	case *exprpb.Constant_StringValue:
		// Single quotes, with embedded quotes doubled.
		escaped := strings.ReplaceAll(c.GetStringValue(), "'", "''")
		con.str.WriteString("'")
		con.str.WriteString(escaped)
		con.str.WriteString("'")
	default:
		return fmt.Errorf("unimplemented constant: %v", expr)
	}
	return nil
}

func (con *converter) visitIdent(expr *exprpb.Expr) error {
	name := expr.GetIdentExpr().GetName()
	if con.rewriter == nil {
		con.str.WriteString(name)
		return nil
	}
	out, err := con.rewriter.RewriteLeaf(name, "", isObjectType(con.getType(expr)))
	if err != nil {
		return err
	}
	con.str.WriteString(out)
	return nil
}

func (con *converter) visitList(expr *exprpb.Expr) error {
	elems := expr.GetListExpr().GetElements()
	con.str.WriteString("(")
	for i, elem := range elems {
		if err := con.visit(elem); err != nil {
			return err
		}
		if i < len(elems)-1 {
			con.str.WriteString(", ")
		}
	}
	con.str.WriteString(")")
	return nil
}

func (con *converter) visitSelect(expr *exprpb.Expr) error {
	sel := expr.GetSelectExpr()
	if sel.GetTestOnly() {
		return fmt.Errorf("has() is not supported in filter predicates")
	}
	operand := sel.GetOperand()
	// A field access on a structured neighbor reference is one leaf: the
	// rewriter resolves both the alias and the field in a single step.
	if con.rewriter != nil && operand.GetIdentExpr() != nil && isObjectType(con.getType(operand)) {
		out, err := con.rewriter.RewriteLeaf(operand.GetIdentExpr().GetName(), sel.GetField(), true)
		if err != nil {
			return err
		}
		con.str.WriteString(out)
		return nil
	}
	nested := isBinaryOrTernaryOperator(operand)
	if err := con.visitMaybeNested(operand, nested); err != nil {
		return err
	}
	con.str.WriteString(".")
	con.str.WriteString(sel.GetField())
	return nil
}

func (con *converter) visitMaybeNested(expr *exprpb.Expr, nested bool) error {
	if nested {
		con.str.WriteString("(")
	}
	if err := con.visit(expr); err != nil {
		return err
	}
	if nested {
		con.str.WriteString(")")
	}
	return nil
}

func (con *converter) getType(node *exprpb.Expr) *exprpb.Type {
	return con.typeMap[node.GetId()]
}
