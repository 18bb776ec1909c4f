package java

import (
	"github.com/gnolang/patlint/internal/tree"
)

var assignOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"&=": true, "|=": true, "^=": true, "<<=": true, ">>=": true, ">>>=": true,
}

var binaryPrec = map[string]int{
	"||": 1,
	"&&": 2,
	"|":  3,
	"^":  4,
	"&":  5,
	"==": 6, "!=": 6,
	"<": 7, ">": 7, "<=": 7, ">=": 7, "instanceof": 7,
	"<<": 8, ">>": 8, ">>>": 8,
	"+": 9, "-": 9,
	"*": 10, "/": 10, "%": 10,
}

func (p *parser) parseExpr() (*tree.Node, error) {
	if lambda, ok, err := p.tryLambda(); ok || err != nil {
		return lambda, err
	}

	start := p.peek().Start
	lhs, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	if t.Type != TokenOp || !assignOps[t.Value] {
		return lhs, nil
	}
	op := p.leaf(tree.KindOperator, p.next())
	rhs, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return tree.NewNode(tree.KindAssign, p.span(start), lhs, op, rhs), nil
}

func (p *parser) parseTernary() (*tree.Node, error) {
	start := p.peek().Start
	cond, err := p.parseBinary(1)
	if err != nil {
		return nil, err
	}
	if !p.accept("?") {
		return cond, nil
	}
	then, err := p.parseBranch()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(":"); err != nil {
		return nil, err
	}
	els, err := p.parseBranch()
	if err != nil {
		return nil, err
	}
	return tree.NewNode(tree.KindTernary, p.span(start), cond, then, els), nil
}

// parseBranch parses a ternary branch, which may be a lambda but not an
// assignment.
func (p *parser) parseBranch() (*tree.Node, error) {
	if lambda, ok, err := p.tryLambda(); ok || err != nil {
		return lambda, err
	}
	return p.parseTernary()
}

// peekBinaryOp returns the binary operator at the current position and the
// number of tokens it spans. Shift operators arrive as adjacent '>' tokens.
func (p *parser) peekBinaryOp() (string, int) {
	t := p.peek()
	switch {
	case tokIs(t, "instanceof"):
		return "instanceof", 1
	case t.Type != TokenOp:
		return "", 0
	case t.Value == ">":
		n := 1
		for n < 3 {
			nt := p.peekN(n)
			if !tokIs(nt, ">") || nt.Start != p.peekN(n-1).End {
				break
			}
			n++
		}
		switch n {
		case 2:
			return ">>", 2
		case 3:
			return ">>>", 3
		}
		return ">", 1
	}
	if _, ok := binaryPrec[t.Value]; ok {
		return t.Value, 1
	}
	return "", 0
}

func (p *parser) parseBinary(minPrec int) (*tree.Node, error) {
	start := p.peek().Start
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, width := p.peekBinaryOp()
		prec := binaryPrec[op]
		if op == "" || prec < minPrec {
			return lhs, nil
		}
		opStart := p.peek().Start
		for i := 0; i < width; i++ {
			p.next()
		}
		opLeaf := tree.NewLeaf(tree.KindOperator, op, p.span(opStart))

		if op == "instanceof" {
			if _, err := p.parseModifiers(); err != nil {
				return nil, err
			}
			typ, err := p.parseType()
			if err != nil {
				return nil, err
			}
			children := []*tree.Node{lhs, typ}
			if p.peek().Type == TokenIdent {
				name, _ := p.expectIdent()
				children = append(children, name)
			}
			lhs = tree.NewNode(tree.KindInstanceOf, p.span(start), children...)
			continue
		}

		rhs, err := p.parseBinary(prec + 1)
		if err != nil {
			return nil, err
		}
		lhs = tree.NewNode(tree.KindBinary, p.span(start), lhs, opLeaf, rhs)
	}
}

var prefixOps = map[string]bool{
	"+": true, "-": true, "!": true, "~": true, "++": true, "--": true,
}

func (p *parser) parseUnary() (*tree.Node, error) {
	t := p.peek()
	start := t.Start
	if t.Type == TokenOp && prefixOps[t.Value] {
		op := p.leaf(tree.KindOperator, p.next())
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return tree.NewNode(tree.KindUnary, p.span(start), op, operand), nil
	}

	if p.is("(") {
		if typ, ok := p.tryCastType(); ok {
			operand, err := p.parseUnaryOrLambda()
			if err != nil {
				return nil, err
			}
			return tree.NewNode(tree.KindCast, p.span(start), typ, operand), nil
		}
	}

	prim, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return p.parsePostfix(start, prim)
}

func (p *parser) parseUnaryOrLambda() (*tree.Node, error) {
	if lambda, ok, err := p.tryLambda(); ok || err != nil {
		return lambda, err
	}
	return p.parseUnary()
}

// tryCastType consumes "(Type)" when it starts a cast expression. A
// reference type cast must be followed by something that can only begin an
// operand, otherwise "(a) + b" would read as a cast.
func (p *parser) tryCastType() (*tree.Node, bool) {
	m := p.mark()
	p.next() // '('
	typ, err := p.parseType()
	if err != nil {
		p.reset(m)
		return nil, false
	}
	for p.is("&") {
		p.next()
		bound, err := p.parseType()
		if err != nil {
			p.reset(m)
			return nil, false
		}
		typ.Text += " & " + bound.Text
	}
	if !p.accept(")") {
		p.reset(m)
		return nil, false
	}

	if primitiveTypes[typ.Text] {
		return typ, true
	}
	nt := p.peek()
	switch {
	case nt.Type == TokenIdent, nt.Type == TokenNumber, nt.Type == TokenString,
		nt.Type == TokenChar, nt.Type == TokenLiteral,
		tokIs(nt, "("), tokIs(nt, "!"), tokIs(nt, "~"),
		tokIs(nt, "this"), tokIs(nt, "super"), tokIs(nt, "new"):
		return typ, true
	}
	p.reset(m)
	return nil, false
}

func (p *parser) parsePrimary() (*tree.Node, error) {
	t := p.peek()
	switch {
	case p.pattern && tokIs(t, "..."):
		return p.ellipsis(), nil

	case t.Type == TokenNumber, t.Type == TokenString, t.Type == TokenChar, t.Type == TokenLiteral:
		p.next()
		return p.leaf(tree.KindLiteral, t), nil

	case t.Type == TokenIdent:
		// array type in a class literal or constructor reference
		if tokIs(p.peekN(1), "[") && tokIs(p.peekN(2), "]") {
			return p.parseType()
		}
		p.next()
		return p.leaf(tree.KindIdent, t), nil

	case tokIs(t, "this"), tokIs(t, "super"):
		p.next()
		return p.leaf(tree.KindKeyword, t), nil

	case t.Type == TokenKeyword && primitiveTypes[t.Value]:
		return p.parseType()

	case tokIs(t, "("):
		p.next()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(")"); err != nil {
			return nil, err
		}
		return tree.NewNode(tree.KindParen, p.span(t.Start), inner), nil

	case tokIs(t, "new"):
		return p.parseCreator()

	case tokIs(t, "switch"):
		return p.parseSwitch()
	}
	return nil, p.errorf("unexpected %s in expression", describe(t))
}

func (p *parser) parsePostfix(start int, n *tree.Node) (*tree.Node, error) {
	for {
		switch {
		case p.is("."):
			p.next()
			if p.is("<") {
				var discard []string
				if err := p.typeArgs(&discard); err != nil {
					return nil, err
				}
			}
			t := p.peek()
			var name *tree.Node
			switch {
			case t.Type == TokenIdent:
				p.next()
				name = p.leaf(tree.KindIdent, t)
			case tokIs(t, "class"), tokIs(t, "this"), tokIs(t, "super"):
				p.next()
				name = p.leaf(tree.KindKeyword, t)
			case tokIs(t, "new"):
				c, err := p.parseCreator()
				if err != nil {
					return nil, err
				}
				name = c
			default:
				return nil, p.errorf("expected member name, found %s", describe(t))
			}
			n = tree.NewNode(tree.KindSelector, p.span(start), n, name)

		case p.is("(") && isCallee(n):
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			n = tree.NewNode(tree.KindCall, p.span(start), n, args)

		case p.is("["):
			p.next()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect("]"); err != nil {
				return nil, err
			}
			n = tree.NewNode(tree.KindIndex, p.span(start), n, idx)

		case p.is("++"), p.is("--"):
			op := p.leaf(tree.KindOperator, p.next())
			n = tree.NewNode(tree.KindPostfix, p.span(start), n, op)

		case p.is("::"):
			p.next()
			t := p.peek()
			var name *tree.Node
			switch {
			case t.Type == TokenIdent:
				p.next()
				name = p.leaf(tree.KindIdent, t)
			case tokIs(t, "new"):
				p.next()
				name = p.leaf(tree.KindKeyword, t)
			default:
				return nil, p.errorf("expected method reference, found %s", describe(t))
			}
			n = tree.NewNode(tree.KindMethodRef, p.span(start), n, name)

		default:
			return n, nil
		}
	}
}

func isCallee(n *tree.Node) bool {
	switch n.Kind {
	case tree.KindIdent, tree.KindSelector:
		return true
	case tree.KindKeyword:
		return n.Text == "this" || n.Text == "super"
	}
	return false
}

// parseCreator parses "new T(args) [body]" and "new T[n]... [init]".
func (p *parser) parseCreator() (*tree.Node, error) {
	start := p.next().Start // 'new'
	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}

	if p.is("[") || p.is("{") {
		children := []*tree.Node{typ}
		for p.is("[") {
			p.next()
			if p.accept("]") {
				typ.Text += "[]"
				continue
			}
			dim, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect("]"); err != nil {
				return nil, err
			}
			children = append(children, dim)
		}
		if p.is("{") {
			init, err := p.parseArrayInit()
			if err != nil {
				return nil, err
			}
			children = append(children, init)
		}
		return tree.NewNode(tree.KindNewArray, p.span(start), children...), nil
	}

	args, err := p.parseArgs()
	if err != nil {
		return nil, err
	}
	children := []*tree.Node{typ, args}
	if p.is("{") {
		body, err := p.parseClassBody(false)
		if err != nil {
			return nil, err
		}
		children = append(children, body)
	}
	return tree.NewNode(tree.KindNew, p.span(start), children...), nil
}

func (p *parser) parseArgs() (*tree.Node, error) {
	open, err := p.expect("(")
	if err != nil {
		return nil, err
	}
	var args []*tree.Node
	for !p.is(")") {
		var a *tree.Node
		if p.pattern && p.is("...") {
			a = p.ellipsis()
		} else if a, err = p.parseExpr(); err != nil {
			return nil, err
		}
		args = append(args, a)
		if !p.accept(",") {
			break
		}
	}
	if _, err := p.expect(")"); err != nil {
		return nil, err
	}
	return tree.NewNode(tree.KindArgs, p.span(open.Start), args...), nil
}

func (p *parser) parseArrayInit() (*tree.Node, error) {
	open, err := p.expect("{")
	if err != nil {
		return nil, err
	}
	var elems []*tree.Node
	for !p.is("}") {
		var e *tree.Node
		switch {
		case p.pattern && p.is("..."):
			e = p.ellipsis()
		case p.is("{"):
			e, err = p.parseArrayInit()
		case p.is("@"):
			e, err = p.parseAnnotation()
		default:
			e, err = p.parseExpr()
		}
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		if !p.accept(",") {
			break
		}
	}
	if _, err := p.expect("}"); err != nil {
		return nil, err
	}
	return tree.NewNode(tree.KindArrayInit, p.span(open.Start), elems...), nil
}

// tryLambda parses a lambda expression if one starts at the current token.
// Inferred parameters become bare identifiers inside Params.
func (p *parser) tryLambda() (*tree.Node, bool, error) {
	t := p.peek()
	start := t.Start

	var params *tree.Node
	switch {
	case t.Type == TokenIdent && tokIs(p.peekN(1), "->"):
		p.next()
		name := p.leaf(tree.KindIdent, t)
		params = tree.NewNode(tree.KindParams, name.Span, name)

	case tokIs(t, "("):
		close := p.matchingParen()
		if close < 0 || !tokIs(p.peekN(close+1), "->") {
			return nil, false, nil
		}
		var err error
		if p.inferredParams(close) {
			params, err = p.parseInferredParams()
		} else {
			params, err = p.parseParams()
		}
		if err != nil {
			return nil, true, err
		}

	default:
		return nil, false, nil
	}

	if _, err := p.expect("->"); err != nil {
		return nil, true, err
	}
	var body *tree.Node
	var err error
	if p.is("{") {
		body, err = p.parseBlock()
	} else {
		body, err = p.parseExpr()
	}
	if err != nil {
		return nil, true, err
	}
	return tree.NewNode(tree.KindLambda, p.span(start), params, body), true, nil
}

// matchingParen returns the lookahead distance of the ')' closing the '('
// at the current token, or -1.
func (p *parser) matchingParen() int {
	depth := 0
	for n := 0; p.pos+n < len(p.toks); n++ {
		t := p.peekN(n)
		switch {
		case t.Type == TokenEOF:
			return -1
		case tokIs(t, "("):
			depth++
		case tokIs(t, ")"):
			depth--
			if depth == 0 {
				return n
			}
		}
	}
	return -1
}

// inferredParams reports whether the tokens between the current '(' and
// the one at distance close are a plain identifier list.
func (p *parser) inferredParams(close int) bool {
	for n := 1; n < close; n++ {
		t := p.peekN(n)
		if n%2 == 1 {
			if t.Type != TokenIdent && !(p.pattern && tokIs(t, "...")) {
				return false
			}
		} else if !tokIs(t, ",") {
			return false
		}
	}
	return true
}

func (p *parser) parseInferredParams() (*tree.Node, error) {
	open := p.next()
	var names []*tree.Node
	for !p.is(")") {
		if p.is("...") {
			names = append(names, p.ellipsis())
		} else {
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			names = append(names, name)
		}
		p.accept(",")
	}
	p.next()
	return tree.NewNode(tree.KindParams, p.span(open.Start), names...), nil
}
