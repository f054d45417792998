package catalog

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Operator says how an expression combines its operands.
type Operator int

const (
	OpCall Operator = iota
	OpAnyOf
	OpAllOf
	OpNot
)

func (o Operator) String() string {
	switch o {
	case OpAnyOf:
		return "anyOf"
	case OpAllOf:
		return "allOf"
	case OpNot:
		return "not"
	}
	return "call"
}

// Expression is either a procedure call or a composite over other
// expressions.
type Expression struct {
	Op        Operator
	Procedure string
	Args      map[string]string
	Operands  []Expression
}

// Call builds a procedure call expression.
func Call(procedure string, args map[string]string) Expression {
	if args == nil {
		args = map[string]string{}
	}
	return Expression{Op: OpCall, Procedure: procedure, Args: args}
}

// Name is the procedure name of a call, or the operator name.
func (e Expression) Name() string {
	if e.Op == OpCall {
		return e.Procedure
	}
	return e.Op.String()
}

// Procedures lists every procedure name referenced by e, sorted and unique.
func (e Expression) Procedures() []string {
	seen := map[string]bool{}
	var walk func(Expression)
	walk = func(x Expression) {
		if x.Op == OpCall {
			seen[x.Procedure] = true
			return
		}
		for _, o := range x.Operands {
			walk(o)
		}
	}
	walk(e)

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// decodeExpression reads a single-key mapping: anyOf/allOf take a list,
// not takes one expression, anything else is a procedure name mapped to its
// string arguments.
func decodeExpression(n *yaml.Node) (Expression, error) {
	if n.Kind == yaml.DocumentNode && len(n.Content) == 1 {
		n = n.Content[0]
	}
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return Expression{}, fmt.Errorf("line %d: expression must be a mapping with exactly one key", n.Line)
	}
	key, value := n.Content[0].Value, n.Content[1]

	switch key {
	case "anyOf", "allOf":
		if value.Kind != yaml.SequenceNode {
			return Expression{}, fmt.Errorf("line %d: %s value is not a list", value.Line, key)
		}
		op := OpAnyOf
		if key == "allOf" {
			op = OpAllOf
		}
		expr := Expression{Op: op}
		for _, item := range value.Content {
			operand, err := decodeExpression(item)
			if err != nil {
				return Expression{}, err
			}
			expr.Operands = append(expr.Operands, operand)
		}
		return expr, nil

	case "not":
		if value.Kind != yaml.MappingNode {
			return Expression{}, fmt.Errorf("line %d: not value is not an object", value.Line)
		}
		operand, err := decodeExpression(value)
		if err != nil {
			return Expression{}, err
		}
		return Expression{Op: OpNot, Operands: []Expression{operand}}, nil
	}

	if key == "" {
		return Expression{}, fmt.Errorf("line %d: empty procedure name", n.Line)
	}
	args := map[string]string{}
	switch {
	case value.Kind == yaml.ScalarNode && value.Tag == "!!null":
	case value.Kind == yaml.MappingNode:
		for i := 0; i+1 < len(value.Content); i += 2 {
			k, v := value.Content[i], value.Content[i+1]
			if v.Kind != yaml.ScalarNode {
				return Expression{}, fmt.Errorf("line %d: argument type is not a string for a key '%s'", v.Line, k.Value)
			}
			args[k.Value] = v.Value
		}
	default:
		return Expression{}, fmt.Errorf("line %d: arguments of '%s' must be a mapping", value.Line, key)
	}
	return Call(key, args), nil
}
