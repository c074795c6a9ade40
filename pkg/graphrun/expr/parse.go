package expr

import (
	"fmt"
	"strconv"
)

// Expr is a compiled expression string. It is safe for concurrent use.
type Expr struct {
	src  string
	root test
}

// Compile parses an expression such as
//
//	llm.score >= 7 and (review.verdict == 'pass' or not review.flagged)
//
// An empty string compiles to an expression that is always false.
func Compile(src string) (*Expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	e := &Expr{src: src}
	if p.peek().kind == tokEOF {
		return e, nil
	}
	if e.root, err = p.or(); err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, syntaxError(t.pos, "unexpected %q", t.text)
	}
	return e, nil
}

// String returns the source text.
func (e *Expr) String() string { return e.src }

// Eval evaluates the expression against flattened variables keyed by
// "node.var" names.
func (e *Expr) Eval(vars map[string]any) (bool, error) {
	if e.root == nil {
		return false, nil
	}
	ok, err := e.root.eval(vars)
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", e.src, err)
	}
	return ok, nil
}

// Eval compiles and evaluates src in one step.
func Eval(src string, vars map[string]any) (bool, error) {
	e, err := Compile(src)
	if err != nil {
		return false, err
	}
	return e.Eval(vars)
}

// test is a node of the compiled boolean tree.
type test interface {
	eval(vars map[string]any) (bool, error)
}

type orTest struct{ left, right test }

func (t orTest) eval(vars map[string]any) (bool, error) {
	ok, err := t.left.eval(vars)
	if err != nil || ok {
		return ok, err
	}
	return t.right.eval(vars)
}

type andTest struct{ left, right test }

func (t andTest) eval(vars map[string]any) (bool, error) {
	ok, err := t.left.eval(vars)
	if err != nil || !ok {
		return false, err
	}
	return t.right.eval(vars)
}

type notTest struct{ inner test }

func (t notTest) eval(vars map[string]any) (bool, error) {
	ok, err := t.inner.eval(vars)
	return !ok, err
}

type compareTest struct {
	left, right operand
	op          Operator
}

func (t compareTest) eval(vars map[string]any) (bool, error) {
	l, r := t.left.value(vars), t.right.value(vars)
	switch t.op {
	case OpEqual:
		return looseEqual(l, r), nil
	case OpNotEqual:
		return !looseEqual(l, r), nil
	}
	return Compare(l, r, t.op)
}

type truthTest struct{ operand operand }

func (t truthTest) eval(vars map[string]any) (bool, error) {
	return truthy(t.operand.value(vars)), nil
}

// operand is a literal or a variable name. Names that are not set in vars
// evaluate to themselves as strings.
type operand struct {
	name    string
	literal any
}

func (o operand) value(vars map[string]any) any {
	if o.name == "" {
		return o.literal
	}
	if v, ok := vars[o.name]; ok {
		return v
	}
	return o.name
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) peekAt(n int) token {
	if p.pos+n < len(p.toks) {
		return p.toks[p.pos+n]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isWord(t token, w string) bool { return t.kind == tokWord && t.text == w }

func (p *parser) or() (test, error) {
	left, err := p.and()
	for err == nil && p.isWord(p.peek(), "or") {
		p.next()
		var right test
		if right, err = p.and(); err == nil {
			left = orTest{left, right}
		}
	}
	return left, err
}

func (p *parser) and() (test, error) {
	left, err := p.unary()
	for err == nil && p.isWord(p.peek(), "and") {
		p.next()
		var right test
		if right, err = p.unary(); err == nil {
			left = andTest{left, right}
		}
	}
	return left, err
}

func (p *parser) unary() (test, error) {
	t := p.peek()
	if p.isWord(t, "not") || (t.kind == tokOp && t.text == "!") {
		p.next()
		inner, err := p.unary()
		if err != nil {
			return nil, err
		}
		return notTest{inner}, nil
	}
	if t.kind == tokLParen {
		p.next()
		inner, err := p.or()
		if err != nil {
			return nil, err
		}
		if c := p.next(); c.kind != tokRParen {
			return nil, syntaxError(c.pos, "expected )")
		}
		return inner, nil
	}
	return p.comparison()
}

func (p *parser) comparison() (test, error) {
	left, err := p.operand()
	if err != nil {
		return nil, err
	}
	op, ok := p.operator()
	if !ok {
		return truthTest{left}, nil
	}
	right, err := p.operand()
	if err != nil {
		return nil, err
	}
	return compareTest{left: left, right: right, op: op}, nil
}

var symbolOps = map[string]Operator{
	"==": OpEqual, "=": OpEqual, "!=": OpNotEqual, "≠": OpNotEqual,
	">=": OpGreaterEq, "≥": OpGreaterEq, "<=": OpLessEq, "≤": OpLessEq,
	">": OpGreater, "<": OpLess,
}

// operator consumes a comparison operator if one follows.
func (p *parser) operator() (Operator, bool) {
	t := p.peek()
	if t.kind == tokOp {
		if op, ok := symbolOps[t.text]; ok {
			p.next()
			return op, true
		}
		return "", false
	}
	if t.kind != tokWord {
		return "", false
	}
	next := p.peekAt(1)
	two := func(op Operator) (Operator, bool) {
		p.pos += 2
		return op, true
	}
	switch t.text {
	case "contains":
		p.next()
		return OpContains, true
	case "in":
		p.next()
		return OpIn, true
	case "not":
		switch {
		case p.isWord(next, "contains"):
			return two(OpNotContains)
		case p.isWord(next, "in"):
			return two(OpNotIn)
		}
	case "start":
		if p.isWord(next, "with") {
			return two(OpStartWith)
		}
	case "end":
		if p.isWord(next, "with") {
			return two(OpEndWith)
		}
	}
	return "", false
}

func (p *parser) operand() (operand, error) {
	t := p.next()
	switch t.kind {
	case tokIdent:
		return operand{name: t.text}, nil
	case tokString:
		return operand{literal: t.text}, nil
	case tokNumber:
		if i, err := strconv.ParseInt(t.text, 10, 64); err == nil {
			return operand{literal: i}, nil
		}
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return operand{}, syntaxError(t.pos, "bad number %q", t.text)
		}
		return operand{literal: f}, nil
	case tokLiteral:
		switch t.text {
		case "true":
			return operand{literal: true}, nil
		case "false":
			return operand{literal: false}, nil
		}
		return operand{literal: nil}, nil
	case tokEOF:
		return operand{}, syntaxError(t.pos, "unexpected end of expression")
	}
	return operand{}, syntaxError(t.pos, "unexpected %q", t.text)
}
