package processor

import (
	"fmt"

	"github.com/MrShadowKiller/c-slang/pkg/ast"
	"github.com/MrShadowKiller/c-slang/pkg/ctype"
	"github.com/MrShadowKiller/c-slang/pkg/ir"
)

func (p *Processor) processBlock(block *ast.Block) ([]ir.Statement, error) {
	p.table.PushScope()
	defer p.table.PopScope()

	return p.processBlockItems(block.Items)
}

func (p *Processor) processBlockItems(items []ast.BlockItem) ([]ir.Statement, error) {
	var out []ir.Statement

	for _, item := range items {
		stmts, err := p.processBlockItem(item)
		if err != nil {
			return nil, err
		}

		out = append(out, stmts...)
	}

	return out, nil
}

func (p *Processor) processBlockItem(item ast.BlockItem) ([]ir.Statement, error) {
	switch item := item.(type) {
	case *ast.Declaration:
		return p.processLocalDeclaration(item)
	case ast.Statement:
		return p.processStatement(item)
	default:
		return nil, item.WrapError(fmt.Errorf("unhandled block item %T", item))
	}
}

func (p *Processor) processStatement(stmt ast.Statement) ([]ir.Statement, error) {
	switch stmt := stmt.(type) {
	case *ast.Block:
		return p.processBlock(stmt)
	case *ast.EmptyStatement:
		return nil, nil
	case *ast.ExpressionStatement:
		return p.processExpressionForEffects(stmt.Expr)
	case *ast.IfStatement:
		return p.processIf(stmt)
	case *ast.SwitchStatement:
		return p.processSwitch(stmt)
	case *ast.WhileStatement:
		cond, err := p.scalarCondition(stmt.Condition)
		if err != nil {
			return nil, err
		}

		body, err := p.processLoopBody(stmt.Body)
		if err != nil {
			return nil, err
		}

		return []ir.Statement{&ir.WhileStatement{Condition: cond, Body: body}}, nil
	case *ast.DoWhileStatement:
		body, err := p.processLoopBody(stmt.Body)
		if err != nil {
			return nil, err
		}

		cond, err := p.scalarCondition(stmt.Condition)
		if err != nil {
			return nil, err
		}

		return []ir.Statement{&ir.DoWhileStatement{Body: body, Condition: cond}}, nil
	case *ast.ForStatement:
		return p.processFor(stmt)
	case *ast.BreakStatement:
		if p.loopDepth == 0 && p.switchDepth == 0 {
			return nil, stmt.WrapError(fmt.Errorf("break statement not within a switch or loop body"))
		}

		return []ir.Statement{&ir.BreakStatement{}}, nil
	case *ast.ContinueStatement:
		if p.loopDepth == 0 {
			return nil, stmt.WrapError(fmt.Errorf("continue statement not within a loop body"))
		}

		return []ir.Statement{&ir.ContinueStatement{}}, nil
	case *ast.ReturnStatement:
		return p.processReturn(stmt)
	default:
		return nil, stmt.WrapError(fmt.Errorf("unhandled statement %T", stmt))
	}
}

// scalarCondition processes a controlling expression and requires a scalar.
func (p *Processor) scalarCondition(expr ast.Expression) (ir.Expression, error) {
	w, err := p.operand(expr)
	if err != nil {
		return nil, err
	}

	if !ctype.IsScalar(ctype.Decay(w.OriginalDataType)) {
		return nil, expr.WrapError(fmt.Errorf("used '%s' where scalar is required", w.OriginalDataType))
	}

	return w.Scalar(), nil
}

func (p *Processor) processIf(stmt *ast.IfStatement) ([]ir.Statement, error) {
	cond, err := p.scalarCondition(stmt.Condition)
	if err != nil {
		return nil, err
	}

	then, err := p.processStatement(stmt.Then)
	if err != nil {
		return nil, err
	}

	var elseStmts []ir.Statement
	if stmt.Else != nil {
		elseStmts, err = p.processStatement(stmt.Else)
		if err != nil {
			return nil, err
		}
	}

	return []ir.Statement{&ir.SelectionStatement{Condition: cond, Then: then, Else: elseStmts}}, nil
}

func (p *Processor) processSwitch(stmt *ast.SwitchStatement) ([]ir.Statement, error) {
	condW, err := p.operand(stmt.Condition)
	if err != nil {
		return nil, err
	}

	if !ctype.IsInteger(ctype.Decay(condW.OriginalDataType)) {
		return nil, stmt.WrapError(fmt.Errorf("switch quantity is not an integer"))
	}

	out := &ir.SwitchStatement{Condition: condW.Scalar()}

	p.switchDepth++
	defer func() { p.switchDepth-- }()

	p.table.PushScope()
	defer p.table.PopScope()

	seen := make(map[int64]bool)

	for _, c := range stmt.Cases {
		value, err := p.foldCaseValue(c.Value)
		if err != nil {
			return nil, c.WrapError(err)
		}

		if seen[value] {
			return nil, c.WrapError(fmt.Errorf("duplicate case value"))
		}
		seen[value] = true

		body, err := p.processBlockItems(c.Body)
		if err != nil {
			return nil, err
		}

		out.Cases = append(out.Cases, ir.SwitchCase{Value: value, Body: body})
	}

	if stmt.HasDefault {
		body, err := p.processBlockItems(stmt.DefaultBody)
		if err != nil {
			return nil, err
		}

		out.Default = body
		out.HasDefault = true
	}

	return []ir.Statement{out}, nil
}

func (p *Processor) foldCaseValue(expr ast.Expression) (int64, error) {
	c, err := p.evaluateConstant(expr)
	if err != nil {
		return 0, fmt.Errorf("case value not an integer constant expression")
	}

	ic, ok := c.(*IntegerConstant)
	if !ok || !ctype.IsInteger(ic.DataType) {
		return 0, fmt.Errorf("case value not an integer constant expression")
	}

	return bigToInt64(ic.Value), nil
}

func (p *Processor) processLoopBody(body ast.Statement) ([]ir.Statement, error) {
	p.loopDepth++
	defer func() { p.loopDepth-- }()

	p.table.PushScope()
	defer p.table.PopScope()

	return p.processStatement(body)
}

func (p *Processor) processFor(stmt *ast.ForStatement) ([]ir.Statement, error) {
	// The init clause gets its own scope enclosing the body.
	p.table.PushScope()
	defer p.table.PopScope()

	out := &ir.ForStatement{}

	if stmt.Init != nil {
		init, err := p.processBlockItem(stmt.Init)
		if err != nil {
			return nil, err
		}

		out.Init = init
	}

	if stmt.Condition != nil {
		cond, err := p.scalarCondition(stmt.Condition)
		if err != nil {
			return nil, err
		}

		out.Condition = cond
	}

	if stmt.Update != nil {
		update, err := p.processExpressionForEffects(stmt.Update)
		if err != nil {
			return nil, err
		}

		out.Update = update
	}

	body, err := p.processLoopBody(stmt.Body)
	if err != nil {
		return nil, err
	}

	out.Body = body

	return []ir.Statement{out}, nil
}

func (p *Processor) processReturn(stmt *ast.ReturnStatement) ([]ir.Statement, error) {
	retType := p.current.returnType

	if stmt.Value == nil {
		return []ir.Statement{&ir.ReturnStatement{}}, nil
	}

	if retType.Kind() == ctype.KindVoid {
		return nil, stmt.WrapError(fmt.Errorf("void function should not return a value"))
	}

	w, err := p.operand(stmt.Value)
	if err != nil {
		return nil, err
	}

	valueType := ctype.Decay(w.OriginalDataType)
	if !ctype.CanAssign(retType, valueType, p.isNullPointerConstant(stmt.Value)) {
		return nil, stmt.WrapError(fmt.Errorf("incompatible types when returning type '%s' but '%s' was expected", w.OriginalDataType, retType))
	}

	slots, err := ctype.UnpackScalars(retType)
	if err != nil {
		return nil, stmt.WrapError(err)
	}

	if len(slots) != len(w.Exprs) {
		exprs, err := p.aggregateValueExprs(w)
		if err != nil {
			return nil, stmt.WrapError(err)
		}

		w.Exprs = exprs
	}

	var out []ir.Statement
	for i, slot := range slots {
		value := w.Exprs[i]
		if len(slots) == 1 {
			value = convertTo(value, valueType, slot.Type)
		}

		out = append(out, &ir.MemoryStore{
			Addr:  &ir.ReturnAreaAddress{Offset: slot.Offset},
			Value: value,
			Type:  slot.Type,
		})
	}

	out = append(out, &ir.ReturnStatement{})

	return out, nil
}

// validateStorageClasses enforces the storage class constraints shared by
// all declaration positions.
func validateStorageClasses(decl *ast.Declaration) error {
	if len(decl.StorageClasses) > 1 {
		return decl.WrapError(fmt.Errorf("multiple storage class specifiers: '%s' and '%s'", decl.StorageClasses[0], decl.StorageClasses[1]))
	}

	return nil
}

func hasStorageClass(decl *ast.Declaration, sc ast.StorageClass) bool {
	return len(decl.StorageClasses) == 1 && decl.StorageClasses[0] == sc
}

// checkEmptyDeclaration handles declarator-less declarations: struct and
// enum definitions declare a tag, everything else is vacuous.
func (p *Processor) checkEmptyDeclaration(decl *ast.Declaration) error {
	if len(decl.StorageClasses) > 0 {
		return decl.WrapError(fmt.Errorf("useless storage class qualifier in empty declaration"))
	}

	switch spec := decl.Specifier.(type) {
	case nil:
		return decl.WrapError(fmt.Errorf("empty declaration"))
	case *ast.StructType:
		if spec.Fields == nil {
			return decl.WrapError(fmt.Errorf("empty declaration"))
		}

		_, err := p.resolveType(spec)
		return err
	case *ast.EnumType:
		if spec.Members == nil {
			return decl.WrapError(fmt.Errorf("empty declaration"))
		}

		_, err := p.resolveType(spec)
		return err
	default:
		return decl.WrapError(fmt.Errorf("empty declaration"))
	}
}

func (p *Processor) processLocalDeclaration(decl *ast.Declaration) ([]ir.Statement, error) {
	err := validateStorageClasses(decl)
	if err != nil {
		return nil, err
	}

	if len(decl.Declarators) == 0 {
		return nil, p.checkEmptyDeclaration(decl)
	}

	var out []ir.Statement
	for _, d := range decl.Declarators {
		if d.Type == nil {
			return nil, d.WrapError(fmt.Errorf("at least 1 type specifier required for declaration of '%s'", d.Name))
		}

		if hasStorageClass(decl, ast.StorageClassTypedef) {
			err := p.declareTypedef(d)
			if err != nil {
				return nil, err
			}

			continue
		}

		if hasStorageClass(decl, ast.StorageClassStatic) {
			err := p.declareDataSegmentVariable(d)
			if err != nil {
				return nil, err
			}

			continue
		}

		stmts, err := p.declareLocalVariable(d)
		if err != nil {
			return nil, err
		}

		out = append(out, stmts...)
	}

	return out, nil
}

func (p *Processor) declareTypedef(d ast.InitDeclarator) error {
	if d.Initializer != nil {
		return d.WrapError(fmt.Errorf("typedef '%s' is initialized", d.Name))
	}

	dt, err := p.resolveType(d.Type)
	if err != nil {
		return err
	}

	err = p.table.Declare(d.Name, &TypedefSymbol{DataType: dt})
	if err != nil {
		return d.WrapError(err)
	}

	return nil
}

func (p *Processor) declareLocalVariable(d ast.InitDeclarator) ([]ir.Statement, error) {
	dt, err := p.resolveType(d.Type)
	if err != nil {
		return nil, err
	}

	if fn, ok := dt.(*ctype.Function); ok {
		return nil, p.declareFunctionPrototype(d, fn)
	}

	if dt.Kind() == ctype.KindVoid {
		return nil, d.WrapError(fmt.Errorf("variable or field '%s' declared void", d.Name))
	}

	offset, err := p.table.AllocateLocal(dt)
	if err != nil {
		return nil, d.WrapError(err)
	}

	err = p.table.Declare(d.Name, &LocalVariable{DataType: dt, Offset: offset})
	if err != nil {
		return nil, d.WrapError(err)
	}

	if d.Initializer == nil {
		return nil, nil
	}

	return p.unpackLocalInitializer(offset, dt, d.Initializer, &d)
}

func (p *Processor) declareFunctionPrototype(d ast.InitDeclarator, fn *ctype.Function) error {
	if d.Initializer != nil {
		return d.WrapError(fmt.Errorf("function '%s' is initialized like a variable", d.Name))
	}

	err := p.table.Declare(d.Name, &FunctionSymbol{DataType: fn, TableIndex: -1})
	if err != nil {
		return d.WrapError(err)
	}

	return nil
}

func (p *Processor) declareDataSegmentVariable(d ast.InitDeclarator) error {
	dt, err := p.resolveType(d.Type)
	if err != nil {
		return err
	}

	if fn, ok := dt.(*ctype.Function); ok {
		return p.declareFunctionPrototype(d, fn)
	}

	if dt.Kind() == ctype.KindVoid {
		return d.WrapError(fmt.Errorf("variable or field '%s' declared void", d.Name))
	}

	bytes, err := p.unpackDataSegmentInitializer(dt, d.Initializer, &d)
	if err != nil {
		return err
	}

	offset, err := p.table.AllocateDataSegment(dt, bytes)
	if err != nil {
		return d.WrapError(err)
	}

	err = p.table.Declare(d.Name, &DataSegmentVariable{DataType: dt, Offset: offset})
	if err != nil {
		return d.WrapError(err)
	}

	return nil
}

func (p *Processor) processGlobalDeclaration(decl *ast.Declaration) error {
	err := validateStorageClasses(decl)
	if err != nil {
		return err
	}

	if len(decl.Declarators) == 0 {
		return p.checkEmptyDeclaration(decl)
	}

	for _, d := range decl.Declarators {
		if d.Type == nil {
			return d.WrapError(fmt.Errorf("at least 1 type specifier required for declaration of '%s'", d.Name))
		}

		if hasStorageClass(decl, ast.StorageClassTypedef) {
			err := p.declareTypedef(d)
			if err != nil {
				return err
			}

			continue
		}

		err := p.declareDataSegmentVariable(d)
		if err != nil {
			return err
		}
	}

	return nil
}

type functionContext struct {
	def        *ir.FunctionDefinition
	returnType ctype.DataType
}

func (p *Processor) processFunctionDefinition(def *ast.FunctionDefinition) (*ir.FunctionDefinition, error) {
	fnType, err := p.resolveFunctionType(def.Type)
	if err != nil {
		return nil, err
	}

	err = p.table.Declare(def.Name, &FunctionSymbol{DataType: fnType, TableIndex: -1, Defined: true})
	if err != nil {
		return nil, def.WrapError(err)
	}

	out := &ir.FunctionDefinition{Name: def.Name}

	if fnType.Return.Kind() != ctype.KindVoid {
		size, err := ctype.SizeOf(fnType.Return)
		if err != nil {
			return nil, def.WrapError(err)
		}

		out.SizeOfReturn = size

		slots, err := ctype.UnpackScalars(fnType.Return)
		if err != nil {
			return nil, def.WrapError(err)
		}

		for _, slot := range slots {
			out.Returns = append(out.Returns, ir.Slot{Offset: slot.Offset, Type: slot.Type})
		}
	}

	p.table.PushScope()
	defer p.table.PopScope()
	p.table.ResetFrame()

	// Parameters pack upward from the frame pointer in declaration order;
	// the caller pushes their primaries in reverse so the highest-address
	// piece is materialized first.
	paramOffset := 0
	for i, paramType := range fnType.Parameters {
		name := def.Type.Parameters[i].Name
		if name == "" {
			return nil, def.Type.Parameters[i].WrapError(fmt.Errorf("parameter name omitted"))
		}

		if _, exists := p.table.current.symbols[name]; exists {
			return nil, def.Type.Parameters[i].WrapError(fmt.Errorf("redefinition of parameter '%s'", name))
		}

		err := p.table.Declare(name, &LocalVariable{DataType: paramType, Offset: paramOffset})
		if err != nil {
			return nil, def.Type.Parameters[i].WrapError(err)
		}

		slots, err := ctype.UnpackScalars(paramType)
		if err != nil {
			return nil, def.Type.Parameters[i].WrapError(err)
		}

		for _, slot := range slots {
			out.Parameters = append(out.Parameters, ir.Slot{Offset: paramOffset + slot.Offset, Type: slot.Type})
		}

		size, err := ctype.SizeOf(paramType)
		if err != nil {
			return nil, def.Type.Parameters[i].WrapError(err)
		}

		paramOffset += size
	}

	out.SizeOfParameters = paramOffset

	prev := p.current
	p.current = &functionContext{def: out, returnType: fnType.Return}
	defer func() { p.current = prev }()

	// The body shares the parameter scope.
	body, err := p.processBlockItems(def.Body.Items)
	if err != nil {
		return nil, err
	}

	out.Body = body
	out.SizeOfLocals = p.table.SizeOfLocals()

	return out, nil
}
