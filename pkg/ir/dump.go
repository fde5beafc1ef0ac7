package ir

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes a deterministic human-readable rendering of the IR, one node
// per line, for inspection and tests.
func (r *Root) Dump(w io.Writer) {
	fmt.Fprintf(w, "data segment: %d bytes\n", r.DataSegmentSizeInBytes)
	if r.DataSegmentByteStr != "" {
		fmt.Fprintf(w, "  %s\n", r.DataSegmentByteStr)
	}

	for _, ext := range r.ExternalFunctions {
		fmt.Fprintf(w, "import %s.%s: %s\n", ext.Module, ext.Name, ext.Type)
	}

	for i, name := range r.FunctionTable {
		fmt.Fprintf(w, "table[%d] = %s\n", i, name)
	}

	for _, fn := range r.Functions {
		fmt.Fprintf(w, "func %s (params %dB, locals %dB, return %dB)\n",
			fn.Name, fn.SizeOfParameters, fn.SizeOfLocals, fn.SizeOfReturn)
		dumpStatements(w, fn.Body, 1)
	}
}

func dumpStatements(w io.Writer, stmts []Statement, depth int) {
	for _, stmt := range stmts {
		dumpStatement(w, stmt, depth)
	}
}

func dumpStatement(w io.Writer, stmt Statement, depth int) {
	indent := strings.Repeat("  ", depth)

	switch stmt := stmt.(type) {
	case *MemoryStore:
		fmt.Fprintf(w, "%sstore %s %s <- %s\n", indent, stmt.Type, ExprString(stmt.Addr), ExprString(stmt.Value))
	case *SelectionStatement:
		fmt.Fprintf(w, "%sif %s\n", indent, ExprString(stmt.Condition))
		dumpStatements(w, stmt.Then, depth+1)
		if len(stmt.Else) > 0 {
			fmt.Fprintf(w, "%selse\n", indent)
			dumpStatements(w, stmt.Else, depth+1)
		}
	case *SwitchStatement:
		fmt.Fprintf(w, "%sswitch %s\n", indent, ExprString(stmt.Condition))
		for _, c := range stmt.Cases {
			fmt.Fprintf(w, "%s  case %d:\n", indent, c.Value)
			dumpStatements(w, c.Body, depth+2)
		}
		if stmt.HasDefault {
			fmt.Fprintf(w, "%s  default:\n", indent)
			dumpStatements(w, stmt.Default, depth+2)
		}
	case *WhileStatement:
		fmt.Fprintf(w, "%swhile %s\n", indent, ExprString(stmt.Condition))
		dumpStatements(w, stmt.Body, depth+1)
	case *DoWhileStatement:
		fmt.Fprintf(w, "%sdo\n", indent)
		dumpStatements(w, stmt.Body, depth+1)
		fmt.Fprintf(w, "%swhile %s\n", indent, ExprString(stmt.Condition))
	case *ForStatement:
		fmt.Fprintf(w, "%sfor %s\n", indent, ExprString(stmt.Condition))
		dumpStatements(w, stmt.Init, depth+1)
		dumpStatements(w, stmt.Body, depth+1)
		dumpStatements(w, stmt.Update, depth+1)
	case *BreakStatement:
		fmt.Fprintf(w, "%sbreak\n", indent)
	case *ContinueStatement:
		fmt.Fprintf(w, "%scontinue\n", indent)
	case *ReturnStatement:
		fmt.Fprintf(w, "%sreturn\n", indent)
	case *FunctionCall:
		args := make([]string, 0, len(stmt.Args))
		for _, arg := range stmt.Args {
			args = append(args, ExprString(arg))
		}

		target := stmt.Name
		if stmt.Index != nil {
			target = fmt.Sprintf("*%s", ExprString(stmt.Index))
		}

		fmt.Fprintf(w, "%scall %s(%s)\n", indent, target, strings.Join(args, ", "))
	default:
		fmt.Fprintf(w, "%s<unhandled %T>\n", indent, stmt)
	}
}

// ExprString renders one scalar expression.
func ExprString(expr Expression) string {
	switch expr := expr.(type) {
	case *BinaryExpression:
		return fmt.Sprintf("(%s %s %s)", ExprString(expr.Left), expr.Operator, ExprString(expr.Right))
	case *UnaryExpression:
		return fmt.Sprintf("(%s%s)", expr.Operator, ExprString(expr.Operand))
	case *ConvertExpression:
		return fmt.Sprintf("convert[%s->%s](%s)", expr.From, expr.To, ExprString(expr.Operand))
	case *IntegerConstant:
		return fmt.Sprintf("%d:%s", expr.Value, expr.Type)
	case *FloatConstant:
		return fmt.Sprintf("%g:%s", expr.Value, expr.Type)
	case *LocalAddress:
		return fmt.Sprintf("local[%d]", expr.Offset)
	case *DataSegmentAddress:
		return fmt.Sprintf("data[%d]", expr.Offset)
	case *ReturnAreaAddress:
		return fmt.Sprintf("ret[%d]", expr.Offset)
	case *FunctionTableIndex:
		return fmt.Sprintf("table[%d]", expr.Index)
	case *MemoryLoad:
		return fmt.Sprintf("load %s %s", expr.Type, ExprString(expr.Addr))
	case *ConditionalExpression:
		return fmt.Sprintf("(%s ? %s : %s)", ExprString(expr.Condition), ExprString(expr.Then), ExprString(expr.Else))
	case *PreStatementExpression:
		return fmt.Sprintf("pre{%d}(%s)", len(expr.Statements), ExprString(expr.Expr))
	case *PostStatementExpression:
		return fmt.Sprintf("post{%d}(%s)", len(expr.Statements), ExprString(expr.Expr))
	default:
		return fmt.Sprintf("<unhandled %T>", expr)
	}
}
