package ast

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
)

// DecodeJSON reads the kind-tagged JSON dump the parser front-end produces
// and rebuilds the translation unit.
func DecodeJSON(r io.Reader) (*CAstRoot, error) {
	var root struct {
		IncludedModules []string          `json:"includedModules"`
		Children        []json.RawMessage `json:"children"`
		Position        Position          `json:"position"`
	}

	dec := json.NewDecoder(r)
	dec.UseNumber()
	err := dec.Decode(&root)
	if err != nil {
		return nil, fmt.Errorf("failed to decode translation unit: %w", err)
	}

	out := &CAstRoot{
		IncludedModules: root.IncludedModules,
		Position:        root.Position,
	}

	for i, raw := range root.Children {
		child, err := decodeExternalDeclaration(raw)
		if err != nil {
			return nil, fmt.Errorf("child %d: %w", i, err)
		}

		out.Children = append(out.Children, child)
	}

	return out, nil
}

type rawNode struct {
	Kind     string   `json:"kind"`
	Position Position `json:"position"`

	raw json.RawMessage
}

func splitNode(raw json.RawMessage) (*rawNode, error) {
	var node rawNode
	err := json.Unmarshal(raw, &node)
	if err != nil {
		return nil, err
	}

	if node.Kind == "" {
		return nil, fmt.Errorf("node is missing a kind tag")
	}

	node.raw = raw

	return &node, nil
}

func (n *rawNode) into(out any) error {
	return json.Unmarshal(n.raw, out)
}

func decodeExternalDeclaration(raw json.RawMessage) (ExternalDeclaration, error) {
	node, err := splitNode(raw)
	if err != nil {
		return nil, err
	}

	switch node.Kind {
	case "FunctionDefinition":
		var v struct {
			Name string          `json:"name"`
			Type json.RawMessage `json:"type"`
			Body json.RawMessage `json:"body"`
		}
		if err := node.into(&v); err != nil {
			return nil, err
		}

		typ, err := decodeType(v.Type)
		if err != nil {
			return nil, err
		}

		fnType, ok := typ.(*FunctionType)
		if !ok {
			return nil, fmt.Errorf("function definition %q does not carry a function type", v.Name)
		}

		body, err := decodeStatement(v.Body)
		if err != nil {
			return nil, err
		}

		block, ok := body.(*Block)
		if !ok {
			return nil, fmt.Errorf("function definition %q body is not a block", v.Name)
		}

		return &FunctionDefinition{Name: v.Name, Type: fnType, Body: block, Position: node.Position}, nil
	case "Declaration":
		return decodeDeclaration(node)
	case "EnumDeclaration":
		var v struct {
			Tag     string            `json:"tag"`
			Members []json.RawMessage `json:"members"`
		}
		if err := node.into(&v); err != nil {
			return nil, err
		}

		members, err := decodeEnumMembers(v.Members)
		if err != nil {
			return nil, err
		}

		return &EnumDeclaration{Tag: v.Tag, Members: members, Position: node.Position}, nil
	default:
		return nil, fmt.Errorf("unrecognized top-level kind %q", node.Kind)
	}
}

func decodeDeclaration(node *rawNode) (*Declaration, error) {
	var v struct {
		StorageClasses []StorageClass    `json:"storageClasses"`
		Specifier      json.RawMessage   `json:"specifier"`
		Declarators    []json.RawMessage `json:"declarators"`
	}
	if err := node.into(&v); err != nil {
		return nil, err
	}

	out := &Declaration{StorageClasses: v.StorageClasses, Position: node.Position}

	if len(v.Specifier) > 0 && string(v.Specifier) != "null" {
		spec, err := decodeType(v.Specifier)
		if err != nil {
			return nil, err
		}

		out.Specifier = spec
	}

	for _, rawDecl := range v.Declarators {
		var d struct {
			Name        string          `json:"name"`
			Type        json.RawMessage `json:"type"`
			Initializer json.RawMessage `json:"initializer"`
			Position    Position        `json:"position"`
		}
		if err := json.Unmarshal(rawDecl, &d); err != nil {
			return nil, err
		}

		decl := InitDeclarator{Name: d.Name, Position: d.Position}

		if len(d.Type) > 0 && string(d.Type) != "null" {
			typ, err := decodeType(d.Type)
			if err != nil {
				return nil, err
			}

			decl.Type = typ
		}

		if len(d.Initializer) > 0 && string(d.Initializer) != "null" {
			init, err := decodeInitializer(d.Initializer)
			if err != nil {
				return nil, err
			}

			decl.Initializer = init
		}

		out.Declarators = append(out.Declarators, decl)
	}

	return out, nil
}

func decodeEnumMembers(raws []json.RawMessage) ([]EnumMember, error) {
	var members []EnumMember

	for _, raw := range raws {
		var v struct {
			Name     string          `json:"name"`
			Value    json.RawMessage `json:"value"`
			Position Position        `json:"position"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}

		member := EnumMember{Name: v.Name, Position: v.Position}

		if len(v.Value) > 0 && string(v.Value) != "null" {
			value, err := decodeExpression(v.Value)
			if err != nil {
				return nil, err
			}

			member.Value = value
		}

		members = append(members, member)
	}

	return members, nil
}

func decodeType(raw json.RawMessage) (Type, error) {
	node, err := splitNode(raw)
	if err != nil {
		return nil, err
	}

	switch node.Kind {
	case "PrimaryType":
		var v struct {
			Name  string `json:"name"`
			Const bool   `json:"const"`
		}
		if err := node.into(&v); err != nil {
			return nil, err
		}

		return &PrimaryType{Name: v.Name, Const: v.Const, Position: node.Position}, nil
	case "VoidType":
		return &VoidType{Position: node.Position}, nil
	case "PointerType":
		var v struct {
			Pointee json.RawMessage `json:"pointee"`
			Const   bool            `json:"const"`
		}
		if err := node.into(&v); err != nil {
			return nil, err
		}

		pointee, err := decodeType(v.Pointee)
		if err != nil {
			return nil, err
		}

		return &PointerType{Pointee: pointee, Const: v.Const, Position: node.Position}, nil
	case "ArrayType":
		var v struct {
			Elem   json.RawMessage `json:"elem"`
			Length json.RawMessage `json:"length"`
			Const  bool            `json:"const"`
		}
		if err := node.into(&v); err != nil {
			return nil, err
		}

		elem, err := decodeType(v.Elem)
		if err != nil {
			return nil, err
		}

		out := &ArrayType{Elem: elem, Const: v.Const, Position: node.Position}

		if len(v.Length) > 0 && string(v.Length) != "null" {
			length, err := decodeExpression(v.Length)
			if err != nil {
				return nil, err
			}

			out.Length = length
		}

		return out, nil
	case "StructType":
		var v struct {
			Tag    string            `json:"tag"`
			Fields []json.RawMessage `json:"fields"`
			Const  bool              `json:"const"`
		}
		if err := node.into(&v); err != nil {
			return nil, err
		}

		out := &StructType{Tag: v.Tag, Const: v.Const, Position: node.Position}

		if v.Fields != nil {
			out.Fields = []StructField{}
			for _, rawField := range v.Fields {
				var f struct {
					Name     string          `json:"name"`
					Type     json.RawMessage `json:"type"`
					Position Position        `json:"position"`
				}
				if err := json.Unmarshal(rawField, &f); err != nil {
					return nil, err
				}

				fieldType, err := decodeType(f.Type)
				if err != nil {
					return nil, err
				}

				out.Fields = append(out.Fields, StructField{Name: f.Name, Type: fieldType, Position: f.Position})
			}
		}

		return out, nil
	case "EnumType":
		var v struct {
			Tag     string            `json:"tag"`
			Members []json.RawMessage `json:"members"`
			Const   bool              `json:"const"`
		}
		if err := node.into(&v); err != nil {
			return nil, err
		}

		out := &EnumType{Tag: v.Tag, Const: v.Const, Position: node.Position}

		if v.Members != nil {
			members, err := decodeEnumMembers(v.Members)
			if err != nil {
				return nil, err
			}
			if members == nil {
				members = []EnumMember{}
			}

			out.Members = members
		}

		return out, nil
	case "TypedefName":
		var v struct {
			Name  string `json:"name"`
			Const bool   `json:"const"`
		}
		if err := node.into(&v); err != nil {
			return nil, err
		}

		return &TypedefName{Name: v.Name, Const: v.Const, Position: node.Position}, nil
	case "FunctionType":
		var v struct {
			Return     json.RawMessage `json:"return"`
			Parameters []struct {
				Name     string          `json:"name"`
				Type     json.RawMessage `json:"type"`
				Position Position        `json:"position"`
			} `json:"parameters"`
		}
		if err := node.into(&v); err != nil {
			return nil, err
		}

		ret, err := decodeType(v.Return)
		if err != nil {
			return nil, err
		}

		out := &FunctionType{Return: ret, Position: node.Position}

		for _, param := range v.Parameters {
			paramType, err := decodeType(param.Type)
			if err != nil {
				return nil, err
			}

			out.Parameters = append(out.Parameters, ParameterDeclaration{
				Name:     param.Name,
				Type:     paramType,
				Position: param.Position,
			})
		}

		return out, nil
	default:
		return nil, fmt.Errorf("unrecognized type kind %q", node.Kind)
	}
}

func decodeInitializer(raw json.RawMessage) (Initializer, error) {
	node, err := splitNode(raw)
	if err != nil {
		return nil, err
	}

	switch node.Kind {
	case "InitializerSingle":
		var v struct {
			Expr json.RawMessage `json:"expr"`
		}
		if err := node.into(&v); err != nil {
			return nil, err
		}

		expr, err := decodeExpression(v.Expr)
		if err != nil {
			return nil, err
		}

		return &InitializerSingle{Expr: expr, Position: node.Position}, nil
	case "InitializerList":
		var v struct {
			Elems []json.RawMessage `json:"elems"`
		}
		if err := node.into(&v); err != nil {
			return nil, err
		}

		out := &InitializerList{Position: node.Position}
		for _, rawElem := range v.Elems {
			elem, err := decodeInitializer(rawElem)
			if err != nil {
				return nil, err
			}

			out.Elems = append(out.Elems, elem)
		}

		return out, nil
	default:
		return nil, fmt.Errorf("unrecognized initializer kind %q", node.Kind)
	}
}

func decodeBlockItem(raw json.RawMessage) (BlockItem, error) {
	node, err := splitNode(raw)
	if err != nil {
		return nil, err
	}

	if node.Kind == "Declaration" {
		return decodeDeclaration(node)
	}

	return decodeStatementNode(node)
}

func decodeBlockItems(raws []json.RawMessage) ([]BlockItem, error) {
	var items []BlockItem

	for _, raw := range raws {
		item, err := decodeBlockItem(raw)
		if err != nil {
			return nil, err
		}

		items = append(items, item)
	}

	return items, nil
}

func decodeStatement(raw json.RawMessage) (Statement, error) {
	node, err := splitNode(raw)
	if err != nil {
		return nil, err
	}

	return decodeStatementNode(node)
}

func decodeStatementNode(node *rawNode) (Statement, error) {
	switch node.Kind {
	case "Block":
		var v struct {
			Items []json.RawMessage `json:"items"`
		}
		if err := node.into(&v); err != nil {
			return nil, err
		}

		items, err := decodeBlockItems(v.Items)
		if err != nil {
			return nil, err
		}

		return &Block{Items: items, Position: node.Position}, nil
	case "ExpressionStatement":
		var v struct {
			Expr json.RawMessage `json:"expr"`
		}
		if err := node.into(&v); err != nil {
			return nil, err
		}

		expr, err := decodeExpression(v.Expr)
		if err != nil {
			return nil, err
		}

		return &ExpressionStatement{Expr: expr, Position: node.Position}, nil
	case "EmptyStatement":
		return &EmptyStatement{Position: node.Position}, nil
	case "IfStatement":
		var v struct {
			Condition json.RawMessage `json:"condition"`
			Then      json.RawMessage `json:"then"`
			Else      json.RawMessage `json:"else"`
		}
		if err := node.into(&v); err != nil {
			return nil, err
		}

		cond, err := decodeExpression(v.Condition)
		if err != nil {
			return nil, err
		}

		then, err := decodeStatement(v.Then)
		if err != nil {
			return nil, err
		}

		out := &IfStatement{Condition: cond, Then: then, Position: node.Position}

		if len(v.Else) > 0 && string(v.Else) != "null" {
			elseStmt, err := decodeStatement(v.Else)
			if err != nil {
				return nil, err
			}

			out.Else = elseStmt
		}

		return out, nil
	case "SwitchStatement":
		var v struct {
			Condition json.RawMessage `json:"condition"`
			Cases     []struct {
				Value    json.RawMessage   `json:"value"`
				Body     []json.RawMessage `json:"body"`
				Position Position          `json:"position"`
			} `json:"cases"`
			Default    []json.RawMessage `json:"default"`
			HasDefault bool              `json:"hasDefault"`
		}
		if err := node.into(&v); err != nil {
			return nil, err
		}

		cond, err := decodeExpression(v.Condition)
		if err != nil {
			return nil, err
		}

		out := &SwitchStatement{Condition: cond, HasDefault: v.HasDefault, Position: node.Position}

		for _, c := range v.Cases {
			value, err := decodeExpression(c.Value)
			if err != nil {
				return nil, err
			}

			body, err := decodeBlockItems(c.Body)
			if err != nil {
				return nil, err
			}

			out.Cases = append(out.Cases, SwitchCase{Value: value, Body: body, Position: c.Position})
		}

		if v.HasDefault {
			body, err := decodeBlockItems(v.Default)
			if err != nil {
				return nil, err
			}

			out.DefaultBody = body
		}

		return out, nil
	case "WhileStatement":
		var v struct {
			Condition json.RawMessage `json:"condition"`
			Body      json.RawMessage `json:"body"`
		}
		if err := node.into(&v); err != nil {
			return nil, err
		}

		cond, err := decodeExpression(v.Condition)
		if err != nil {
			return nil, err
		}

		body, err := decodeStatement(v.Body)
		if err != nil {
			return nil, err
		}

		return &WhileStatement{Condition: cond, Body: body, Position: node.Position}, nil
	case "DoWhileStatement":
		var v struct {
			Condition json.RawMessage `json:"condition"`
			Body      json.RawMessage `json:"body"`
		}
		if err := node.into(&v); err != nil {
			return nil, err
		}

		cond, err := decodeExpression(v.Condition)
		if err != nil {
			return nil, err
		}

		body, err := decodeStatement(v.Body)
		if err != nil {
			return nil, err
		}

		return &DoWhileStatement{Condition: cond, Body: body, Position: node.Position}, nil
	case "ForStatement":
		var v struct {
			Init      json.RawMessage `json:"init"`
			Condition json.RawMessage `json:"condition"`
			Update    json.RawMessage `json:"update"`
			Body      json.RawMessage `json:"body"`
		}
		if err := node.into(&v); err != nil {
			return nil, err
		}

		out := &ForStatement{Position: node.Position}

		if len(v.Init) > 0 && string(v.Init) != "null" {
			init, err := decodeBlockItem(v.Init)
			if err != nil {
				return nil, err
			}

			out.Init = init
		}

		if len(v.Condition) > 0 && string(v.Condition) != "null" {
			cond, err := decodeExpression(v.Condition)
			if err != nil {
				return nil, err
			}

			out.Condition = cond
		}

		if len(v.Update) > 0 && string(v.Update) != "null" {
			update, err := decodeExpression(v.Update)
			if err != nil {
				return nil, err
			}

			out.Update = update
		}

		body, err := decodeStatement(v.Body)
		if err != nil {
			return nil, err
		}

		out.Body = body

		return out, nil
	case "BreakStatement":
		return &BreakStatement{Position: node.Position}, nil
	case "ContinueStatement":
		return &ContinueStatement{Position: node.Position}, nil
	case "ReturnStatement":
		var v struct {
			Value json.RawMessage `json:"value"`
		}
		if err := node.into(&v); err != nil {
			return nil, err
		}

		out := &ReturnStatement{Position: node.Position}

		if len(v.Value) > 0 && string(v.Value) != "null" {
			value, err := decodeExpression(v.Value)
			if err != nil {
				return nil, err
			}

			out.Value = value
		}

		return out, nil
	default:
		return nil, fmt.Errorf("unrecognized statement kind %q", node.Kind)
	}
}

func decodeExpression(raw json.RawMessage) (Expression, error) {
	node, err := splitNode(raw)
	if err != nil {
		return nil, err
	}

	switch node.Kind {
	case "IntegerLiteral":
		var v struct {
			Value string `json:"value"`
			Base  int    `json:"base"`
		}
		if err := node.into(&v); err != nil {
			return nil, err
		}

		value, ok := new(big.Int).SetString(v.Value, 10)
		if !ok {
			return nil, fmt.Errorf("invalid integer literal value %q", v.Value)
		}

		base := v.Base
		if base == 0 {
			base = 10
		}

		return &IntegerLiteral{Value: value, Base: base, Position: node.Position}, nil
	case "FloatLiteral":
		var v struct {
			Value   float64 `json:"value"`
			IsFloat bool    `json:"isFloat"`
		}
		if err := node.into(&v); err != nil {
			return nil, err
		}

		return &FloatLiteral{Value: v.Value, IsFloat: v.IsFloat, Position: node.Position}, nil
	case "CharLiteral":
		var v struct {
			Value byte `json:"value"`
		}
		if err := node.into(&v); err != nil {
			return nil, err
		}

		return &CharLiteral{Value: v.Value, Position: node.Position}, nil
	case "StringLiteral":
		var v struct {
			Value string `json:"value"`
		}
		if err := node.into(&v); err != nil {
			return nil, err
		}

		return &StringLiteral{Value: v.Value, Position: node.Position}, nil
	case "Identifier":
		var v struct {
			Name string `json:"name"`
		}
		if err := node.into(&v); err != nil {
			return nil, err
		}

		return &Identifier{Name: v.Name, Position: node.Position}, nil
	case "BinaryExpression":
		var v struct {
			Left     json.RawMessage `json:"left"`
			Operator string          `json:"operator"`
			Right    json.RawMessage `json:"right"`
		}
		if err := node.into(&v); err != nil {
			return nil, err
		}

		left, err := decodeExpression(v.Left)
		if err != nil {
			return nil, err
		}

		right, err := decodeExpression(v.Right)
		if err != nil {
			return nil, err
		}

		return &BinaryExpression{Left: left, Operator: v.Operator, Right: right, Position: node.Position}, nil
	case "UnaryExpression", "PrefixExpression", "PostfixExpression":
		var v struct {
			Operator string          `json:"operator"`
			Operand  json.RawMessage `json:"operand"`
		}
		if err := node.into(&v); err != nil {
			return nil, err
		}

		operand, err := decodeExpression(v.Operand)
		if err != nil {
			return nil, err
		}

		switch node.Kind {
		case "PrefixExpression":
			return &PrefixExpression{Operator: v.Operator, Operand: operand, Position: node.Position}, nil
		case "PostfixExpression":
			return &PostfixExpression{Operator: v.Operator, Operand: operand, Position: node.Position}, nil
		default:
			return &UnaryExpression{Operator: v.Operator, Operand: operand, Position: node.Position}, nil
		}
	case "AssignmentExpression":
		var v struct {
			Lvalue   json.RawMessage `json:"lvalue"`
			Operator string          `json:"operator"`
			Rvalue   json.RawMessage `json:"rvalue"`
		}
		if err := node.into(&v); err != nil {
			return nil, err
		}

		lvalue, err := decodeExpression(v.Lvalue)
		if err != nil {
			return nil, err
		}

		rvalue, err := decodeExpression(v.Rvalue)
		if err != nil {
			return nil, err
		}

		return &AssignmentExpression{Lvalue: lvalue, Operator: v.Operator, Rvalue: rvalue, Position: node.Position}, nil
	case "ConditionalExpression":
		var v struct {
			Condition   json.RawMessage `json:"condition"`
			Consequent  json.RawMessage `json:"consequent"`
			Alternative json.RawMessage `json:"alternative"`
		}
		if err := node.into(&v); err != nil {
			return nil, err
		}

		cond, err := decodeExpression(v.Condition)
		if err != nil {
			return nil, err
		}

		consequent, err := decodeExpression(v.Consequent)
		if err != nil {
			return nil, err
		}

		alternative, err := decodeExpression(v.Alternative)
		if err != nil {
			return nil, err
		}

		return &ConditionalExpression{Condition: cond, Consequent: consequent, Alternative: alternative, Position: node.Position}, nil
	case "CallExpression":
		var v struct {
			Callee json.RawMessage   `json:"callee"`
			Args   []json.RawMessage `json:"args"`
		}
		if err := node.into(&v); err != nil {
			return nil, err
		}

		callee, err := decodeExpression(v.Callee)
		if err != nil {
			return nil, err
		}

		out := &CallExpression{Callee: callee, Position: node.Position}
		for _, rawArg := range v.Args {
			arg, err := decodeExpression(rawArg)
			if err != nil {
				return nil, err
			}

			out.Args = append(out.Args, arg)
		}

		return out, nil
	case "MemberExpression":
		var v struct {
			Object json.RawMessage `json:"object"`
			Member string          `json:"member"`
			Arrow  bool            `json:"arrow"`
		}
		if err := node.into(&v); err != nil {
			return nil, err
		}

		object, err := decodeExpression(v.Object)
		if err != nil {
			return nil, err
		}

		return &MemberExpression{Object: object, Member: v.Member, Arrow: v.Arrow, Position: node.Position}, nil
	case "SubscriptExpression":
		var v struct {
			Array json.RawMessage `json:"array"`
			Index json.RawMessage `json:"index"`
		}
		if err := node.into(&v); err != nil {
			return nil, err
		}

		array, err := decodeExpression(v.Array)
		if err != nil {
			return nil, err
		}

		index, err := decodeExpression(v.Index)
		if err != nil {
			return nil, err
		}

		return &SubscriptExpression{Array: array, Index: index, Position: node.Position}, nil
	case "CommaExpression":
		var v struct {
			Left  json.RawMessage `json:"left"`
			Right json.RawMessage `json:"right"`
		}
		if err := node.into(&v); err != nil {
			return nil, err
		}

		left, err := decodeExpression(v.Left)
		if err != nil {
			return nil, err
		}

		right, err := decodeExpression(v.Right)
		if err != nil {
			return nil, err
		}

		return &CommaExpression{Left: left, Right: right, Position: node.Position}, nil
	case "CastExpression":
		var v struct {
			Target  json.RawMessage `json:"target"`
			Operand json.RawMessage `json:"operand"`
		}
		if err := node.into(&v); err != nil {
			return nil, err
		}

		target, err := decodeType(v.Target)
		if err != nil {
			return nil, err
		}

		operand, err := decodeExpression(v.Operand)
		if err != nil {
			return nil, err
		}

		return &CastExpression{Target: target, Operand: operand, Position: node.Position}, nil
	case "SizeofExpression":
		var v struct {
			Operand json.RawMessage `json:"operand"`
		}
		if err := node.into(&v); err != nil {
			return nil, err
		}

		operand, err := decodeExpression(v.Operand)
		if err != nil {
			return nil, err
		}

		return &SizeofExpression{Operand: operand, Position: node.Position}, nil
	case "SizeofType":
		var v struct {
			Target json.RawMessage `json:"target"`
		}
		if err := node.into(&v); err != nil {
			return nil, err
		}

		target, err := decodeType(v.Target)
		if err != nil {
			return nil, err
		}

		return &SizeofType{Target: target, Position: node.Position}, nil
	default:
		return nil, fmt.Errorf("unrecognized expression kind %q", node.Kind)
	}
}
