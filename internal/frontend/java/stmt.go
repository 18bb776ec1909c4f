package java

import (
	"github.com/gnolang/patlint/internal/tree"
)

func (p *parser) parseBlock() (*tree.Node, error) {
	open, err := p.expect("{")
	if err != nil {
		return nil, err
	}
	var stmts []*tree.Node
	for !p.is("}") {
		if p.atEOF() {
			return nil, p.errorf("block is not terminated")
		}
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	p.next()
	return tree.NewNode(tree.KindBlock, p.span(open.Start), stmts...), nil
}

func (p *parser) parseStatement() (*tree.Node, error) {
	t := p.peek()
	start := t.Start

	if p.pattern && p.is("...") {
		n := p.ellipsis()
		if p.accept(";") {
			n.Span = p.span(start)
		}
		return n, nil
	}

	switch {
	case p.is("{"):
		return p.parseBlock()
	case p.is(";"):
		p.next()
		return tree.NewLeaf(tree.KindEmpty, "", p.span(start)), nil
	case p.is("if"):
		return p.parseIf()
	case p.is("for"):
		return p.parseFor()
	case p.is("while"):
		return p.parseWhile()
	case p.is("do"):
		return p.parseDoWhile()
	case p.is("try"):
		return p.parseTry()
	case p.is("switch"):
		return p.parseSwitch()
	case p.is("return"):
		return p.parseSimple(tree.KindReturn, true)
	case p.is("throw"):
		return p.parseSimple(tree.KindThrow, true)
	case p.is("break"):
		return p.parseJump(tree.KindBreak)
	case p.is("continue"):
		return p.parseJump(tree.KindContinue)
	case p.is("assert"):
		return p.parseAssert()
	case p.is("synchronized") && tokIs(p.peekN(1), "("):
		return p.parseSync()
	case t.Type == TokenIdent && tokIs(p.peekN(1), ":") && !tokIs(p.peekN(2), ":"):
		label, _ := p.expectIdent()
		p.next()
		body, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		return tree.NewNode(tree.KindLabeled, p.span(start), label, body), nil
	case p.is("final"), p.is("@"), p.is("abstract"), p.is("static"), p.atClassStart():
		mods, err := p.parseModifiers()
		if err != nil {
			return nil, err
		}
		if p.atClassStart() {
			return p.parseClass(start, mods)
		}
		return p.parseLocalVarDecl(start, mods, true)
	}

	if decl, ok, err := p.tryLocalVarDecl(start, true); ok || err != nil {
		return decl, err
	}

	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(";"); err != nil {
		return nil, err
	}
	return tree.NewNode(tree.KindExprStmt, p.span(start), e), nil
}

// tryLocalVarDecl parses a local variable declaration when the upcoming
// tokens look like "Type name [=;,:[]". ok is false and nothing is consumed
// otherwise.
func (p *parser) tryLocalVarDecl(start int, semi bool) (*tree.Node, bool, error) {
	m := p.mark()
	if _, err := p.parseType(); err != nil {
		p.reset(m)
		return nil, false, nil
	}
	if p.peek().Type != TokenIdent {
		p.reset(m)
		return nil, false, nil
	}
	after := p.peekN(1)
	if !tokIs(after, "=") && !tokIs(after, ";") && !tokIs(after, ",") && !tokIs(after, "[") && !tokIs(after, ":") {
		p.reset(m)
		return nil, false, nil
	}
	p.reset(m)
	mods := tree.NewNode(tree.KindModifiers, p.here())
	decl, err := p.parseLocalVarDecl(start, mods, semi)
	return decl, true, err
}

func (p *parser) parseLocalVarDecl(start int, mods *tree.Node, semi bool) (*tree.Node, error) {
	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	decls, err := p.parseDeclarators(name)
	if err != nil {
		return nil, err
	}
	if semi {
		if _, err := p.expect(";"); err != nil {
			return nil, err
		}
	}
	return tree.NewNode(tree.KindVarDecl, p.span(start), append([]*tree.Node{mods, typ}, decls...)...), nil
}

// parseDeclarators parses "name [= init] {, name [= init]}" where the first
// name has already been consumed.
func (p *parser) parseDeclarators(first *tree.Node) ([]*tree.Node, error) {
	var decls []*tree.Node
	name := first
	for {
		start := name.Span.Start.Offset
		for p.is("[") && tokIs(p.peekN(1), "]") {
			p.next()
			p.next()
		}
		children := []*tree.Node{name}
		if p.accept("=") {
			var init *tree.Node
			var err error
			if p.is("{") {
				init, err = p.parseArrayInit()
			} else {
				init, err = p.parseExpr()
			}
			if err != nil {
				return nil, err
			}
			children = append(children, init)
		}
		decls = append(decls, tree.NewNode(tree.KindDeclarator, p.span(start), children...))

		if !p.accept(",") {
			return decls, nil
		}
		var err error
		if name, err = p.expectIdent(); err != nil {
			return nil, err
		}
	}
}

func (p *parser) parseCondition() (*tree.Node, error) {
	if _, err := p.expect("("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(")"); err != nil {
		return nil, err
	}
	return cond, nil
}

func (p *parser) parseIf() (*tree.Node, error) {
	start := p.next().Start
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	then, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	children := []*tree.Node{cond, then}
	if p.accept("else") {
		els, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		children = append(children, els)
	}
	return tree.NewNode(tree.KindIf, p.span(start), children...), nil
}

func (p *parser) parseFor() (*tree.Node, error) {
	start := p.next().Start
	if _, err := p.expect("("); err != nil {
		return nil, err
	}

	if header, ok, err := p.tryForEachHeader(); err != nil {
		return nil, err
	} else if ok {
		iter, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(")"); err != nil {
			return nil, err
		}
		body, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		return tree.NewNode(tree.KindForEach, p.span(start), header, iter, body), nil
	}

	initStart := p.peek().Start
	init := &tree.Node{Kind: tree.KindForInit, Span: p.here()}
	if !p.is(";") {
		if decl, ok, err := p.tryLocalVarDecl(initStart, false); err != nil {
			return nil, err
		} else if ok {
			init.Children = append(init.Children, decl)
		} else {
			exprs, err := p.parseExprList(";")
			if err != nil {
				return nil, err
			}
			init.Children = exprs
		}
		init.Span = p.span(initStart)
	}
	if _, err := p.expect(";"); err != nil {
		return nil, err
	}

	var cond *tree.Node
	if p.is(";") {
		cond = tree.NewLeaf(tree.KindEmpty, "", p.here())
	} else {
		var err error
		if cond, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(";"); err != nil {
		return nil, err
	}

	updateStart := p.peek().Start
	update := &tree.Node{Kind: tree.KindForUpdate, Span: p.here()}
	if !p.is(")") {
		exprs, err := p.parseExprList(")")
		if err != nil {
			return nil, err
		}
		update.Children = exprs
		update.Span = p.span(updateStart)
	}
	if _, err := p.expect(")"); err != nil {
		return nil, err
	}

	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return tree.NewNode(tree.KindFor, p.span(start), init, cond, update, body), nil
}

// tryForEachHeader parses "[mods] Type name :" of an enhanced for loop. In
// pattern mode a bare "name :" is accepted and stands for any declaration
// ending in name.
func (p *parser) tryForEachHeader() (*tree.Node, bool, error) {
	start := p.peek().Start
	if p.pattern && p.peek().Type == TokenIdent && tokIs(p.peekN(1), ":") {
		elided := tree.NewLeaf(tree.KindEllipsis, "...", p.here())
		name, _ := p.expectIdent()
		p.next()
		return tree.NewNode(tree.KindParam, name.Span, elided, name), true, nil
	}

	m := p.mark()
	mods, err := p.parseModifiers()
	if err != nil {
		p.reset(m)
		return nil, false, nil
	}
	typ, err := p.parseType()
	if err != nil || p.peek().Type != TokenIdent || !tokIs(p.peekN(1), ":") {
		p.reset(m)
		return nil, false, nil
	}
	name, _ := p.expectIdent()
	param := tree.NewNode(tree.KindParam, p.span(start), mods, typ, name)
	p.next() // ':'
	return param, true, nil
}

func (p *parser) parseExprList(stop string) ([]*tree.Node, error) {
	var exprs []*tree.Node
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
		if !p.accept(",") || p.is(stop) {
			return exprs, nil
		}
	}
}

func (p *parser) parseWhile() (*tree.Node, error) {
	start := p.next().Start
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return tree.NewNode(tree.KindWhile, p.span(start), cond, body), nil
}

func (p *parser) parseDoWhile() (*tree.Node, error) {
	start := p.next().Start
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect("while"); err != nil {
		return nil, err
	}
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(";"); err != nil {
		return nil, err
	}
	return tree.NewNode(tree.KindDoWhile, p.span(start), body, cond), nil
}

func (p *parser) parseTry() (*tree.Node, error) {
	start := p.next().Start
	var children []*tree.Node

	if p.is("(") {
		res, err := p.parseResources()
		if err != nil {
			return nil, err
		}
		children = append(children, res)
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	children = append(children, body)

	for p.is("catch") {
		c, err := p.parseCatch()
		if err != nil {
			return nil, err
		}
		children = append(children, c)
	}
	if p.is("finally") {
		fStart := p.next().Start
		block, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		children = append(children, tree.NewNode(tree.KindFinally, p.span(fStart), block))
	}
	return tree.NewNode(tree.KindTry, p.span(start), children...), nil
}

func (p *parser) parseResources() (*tree.Node, error) {
	open := p.next()
	var res []*tree.Node
	for !p.is(")") {
		rStart := p.peek().Start
		if p.pattern && p.is("...") {
			res = append(res, p.ellipsis())
		} else if p.is("final") || p.is("@") {
			mods, err := p.parseModifiers()
			if err != nil {
				return nil, err
			}
			decl, err := p.parseLocalVarDecl(rStart, mods, false)
			if err != nil {
				return nil, err
			}
			res = append(res, decl)
		} else if decl, ok, err := p.tryLocalVarDecl(rStart, false); err != nil {
			return nil, err
		} else if ok {
			res = append(res, decl)
		} else {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			res = append(res, e)
		}
		if !p.accept(";") {
			break
		}
	}
	if _, err := p.expect(")"); err != nil {
		return nil, err
	}
	return tree.NewNode(tree.KindResources, p.span(open.Start), res...), nil
}

// parseCatch parses a catch clause. The caught types of a multi-catch are
// kept as a single type text joined by " | ".
func (p *parser) parseCatch() (*tree.Node, error) {
	start := p.next().Start
	open, err := p.expect("(")
	if err != nil {
		return nil, err
	}

	var params *tree.Node
	if p.pattern && p.is("...") {
		e := p.ellipsis()
		if _, err := p.expect(")"); err != nil {
			return nil, err
		}
		params = tree.NewNode(tree.KindParams, p.span(open.Start), e)
	} else {
		pStart := p.peek().Start
		mods, err := p.parseModifiers()
		if err != nil {
			return nil, err
		}
		typ, err := p.parseType()
		if err != nil {
			return nil, err
		}
		for p.accept("|") {
			alt, err := p.parseType()
			if err != nil {
				return nil, err
			}
			typ = tree.NewLeaf(tree.KindType, typ.Text+" | "+alt.Text, p.span(typ.Span.Start.Offset))
		}
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		param := tree.NewNode(tree.KindParam, p.span(pStart), mods, typ, name)
		if _, err := p.expect(")"); err != nil {
			return nil, err
		}
		params = tree.NewNode(tree.KindParams, p.span(open.Start), param)
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return tree.NewNode(tree.KindCatch, p.span(start), params, body), nil
}

func (p *parser) parseSwitch() (*tree.Node, error) {
	start := p.next().Start
	subject, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect("{"); err != nil {
		return nil, err
	}
	children := []*tree.Node{subject}
	for !p.is("}") {
		if p.atEOF() {
			return nil, p.errorf("switch body is not terminated")
		}
		if p.pattern && p.is("...") {
			children = append(children, p.ellipsis())
			continue
		}
		c, err := p.parseCase()
		if err != nil {
			return nil, err
		}
		children = append(children, c)
	}
	p.next()
	return tree.NewNode(tree.KindSwitch, p.span(start), children...), nil
}

func (p *parser) parseCase() (*tree.Node, error) {
	start := p.peek().Start
	labels := &tree.Node{Kind: tree.KindArgs}
	switch {
	case p.accept("default"):
	case p.accept("case"):
		for {
			var l *tree.Node
			var err error
			if p.peek().Type == TokenIdent && (tokIs(p.peekN(1), "->") || tokIs(p.peekN(1), ":") || tokIs(p.peekN(1), ",")) {
				// enum constant label, not a lambda
				l, err = p.expectIdent()
			} else {
				l, err = p.parseTernary()
			}
			if err != nil {
				return nil, err
			}
			labels.Children = append(labels.Children, l)
			if !p.accept(",") {
				break
			}
		}
	default:
		return nil, p.errorf("expected case or default, found %s", describe(p.peek()))
	}
	labels.Span = p.span(start)

	children := []*tree.Node{labels}
	if p.accept("->") {
		var body *tree.Node
		var err error
		switch {
		case p.is("{"):
			body, err = p.parseBlock()
		case p.is("throw"):
			body, err = p.parseSimple(tree.KindThrow, true)
		default:
			eStart := p.peek().Start
			var e *tree.Node
			if e, err = p.parseExpr(); err == nil {
				_, err = p.expect(";")
				body = tree.NewNode(tree.KindExprStmt, p.span(eStart), e)
			}
		}
		if err != nil {
			return nil, err
		}
		children = append(children, body)
		return tree.NewNode(tree.KindCase, p.span(start), children...), nil
	}

	if _, err := p.expect(":"); err != nil {
		return nil, err
	}
	for !p.is("case") && !p.is("default") && !p.is("}") {
		if p.atEOF() {
			return nil, p.errorf("switch body is not terminated")
		}
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		children = append(children, s)
	}
	return tree.NewNode(tree.KindCase, p.span(start), children...), nil
}

// parseSimple parses "keyword [expr];" statements.
func (p *parser) parseSimple(kind tree.Kind, optionalExpr bool) (*tree.Node, error) {
	start := p.next().Start
	var children []*tree.Node
	if !p.is(";") || !optionalExpr {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		children = append(children, e)
	}
	if _, err := p.expect(";"); err != nil {
		return nil, err
	}
	return tree.NewNode(kind, p.span(start), children...), nil
}

func (p *parser) parseJump(kind tree.Kind) (*tree.Node, error) {
	start := p.next().Start
	var children []*tree.Node
	if p.peek().Type == TokenIdent {
		label, _ := p.expectIdent()
		children = append(children, label)
	}
	if _, err := p.expect(";"); err != nil {
		return nil, err
	}
	return tree.NewNode(kind, p.span(start), children...), nil
}

func (p *parser) parseAssert() (*tree.Node, error) {
	start := p.next().Start
	n := &tree.Node{Kind: tree.KindOther, Text: "assert"}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	n.Children = append(n.Children, cond)
	if p.accept(":") {
		msg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, msg)
	}
	if _, err := p.expect(";"); err != nil {
		return nil, err
	}
	n.Span = p.span(start)
	return n, nil
}

func (p *parser) parseSync() (*tree.Node, error) {
	start := p.next().Start
	lock, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return tree.NewNode(tree.KindSync, p.span(start), lock, body), nil
}
