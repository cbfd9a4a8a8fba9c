// Copyright (c) 2023 Colin McRae

package main

import (
	"fmt"
	"math/big"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// The composite to factor may be given as an arithmetic expression,
// e.g. "2^214+1" or "65537*4294967311", with ^ binding tighter than *
// which binds tighter than + and -.

type exprNode struct {
	Left *termNode     `parser:"@@"`
	Rest []*exprOpNode `parser:"@@*"`
}

type exprOpNode struct {
	Op   string    `parser:"@('+' | '-')"`
	Term *termNode `parser:"@@"`
}

type termNode struct {
	Left *powerNode   `parser:"@@"`
	Rest []*powerNode `parser:"( '*' @@ )*"`
}

type powerNode struct {
	Base *atomNode  `parser:"@@"`
	Exp  *powerNode `parser:"( '^' @@ )?"`
}

type atomNode struct {
	Number string    `parser:"@Number"`
	Sub    *exprNode `parser:"| '(' @@ ')'"`
}

var exprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Number", Pattern: `[0-9]+`},
	{Name: "Punct", Pattern: `[-+*^()]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var exprParser = participle.MustBuild[exprNode](
	participle.Lexer(exprLexer),
	participle.Elide("Whitespace"),
)

// parseComposite evaluates the command-line expression to a big
// integer.
func parseComposite(input string) (*big.Int, error) {
	node, err := exprParser.ParseString("", input)
	if err != nil {
		return nil, fmt.Errorf("parseComposite: %w", err)
	}
	return node.eval()
}

func (e *exprNode) eval() (*big.Int, error) {
	result, err := e.Left.eval()
	if err != nil {
		return nil, err
	}
	for _, op := range e.Rest {
		rhs, err := op.Term.eval()
		if err != nil {
			return nil, err
		}
		if op.Op == "+" {
			result.Add(result, rhs)
		} else {
			result.Sub(result, rhs)
		}
	}
	return result, nil
}

func (t *termNode) eval() (*big.Int, error) {
	result, err := t.Left.eval()
	if err != nil {
		return nil, err
	}
	for _, factor := range t.Rest {
		rhs, err := factor.eval()
		if err != nil {
			return nil, err
		}
		result.Mul(result, rhs)
	}
	return result, nil
}

func (p *powerNode) eval() (*big.Int, error) {
	base, err := p.Base.eval()
	if err != nil {
		return nil, err
	}
	if p.Exp == nil {
		return base, nil
	}
	exp, err := p.Exp.eval()
	if err != nil {
		return nil, err
	}
	if !exp.IsInt64() || exp.Int64() < 0 || exp.Int64() > 1<<20 {
		return nil, fmt.Errorf("parseComposite: unreasonable exponent %s", exp)
	}
	return base.Exp(base, exp, nil), nil
}

func (a *atomNode) eval() (*big.Int, error) {
	if a.Sub != nil {
		return a.Sub.eval()
	}
	n, ok := new(big.Int).SetString(a.Number, 10)
	if !ok {
		return nil, fmt.Errorf("parseComposite: bad number %q", a.Number)
	}
	return n, nil
}
