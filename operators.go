package filtersql

import (
	"github.com/google/cel-go/common/operators"
	"github.com/google/cel-go/common/overloads"
)

// standardSQLBinaryOperators maps CEL binary operators to SQL operators.
var standardSQLBinaryOperators = map[string]string{
	operators.LogicalAnd: "AND",
	operators.LogicalOr:  "OR",
	operators.Equals:     "=",
}

// standardSQLUnaryOperators maps CEL unary operators to SQL operators.
var standardSQLUnaryOperators = map[string]string{
	operators.LogicalNot: "NOT ",
}

// standardSQLFunctions maps CEL function names to SQL function names.
var standardSQLFunctions = map[string]string{
	operators.Modulo:     "MOD",
	overloads.StartsWith: "STARTS_WITH",
}
