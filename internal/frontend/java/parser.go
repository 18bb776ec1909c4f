package java

import (
	"fmt"
	"strings"

	"github.com/gnolang/patlint/internal/tree"
)

// parser is a recursive descent parser for the subset of Java the rule
// fixtures use. Generic type arguments are kept as opaque type text.
type parser struct {
	src     []byte
	idx     *tree.LineIndex
	toks    []Token
	pos     int
	lastEnd int

	// pattern enables metavariable-friendly parsing: "..." is accepted in
	// sequence and expression positions and for-each headers may omit the
	// element type.
	pattern bool
}

type mark struct {
	pos     int
	lastEnd int
}

func newParser(src []byte, pattern bool) (*parser, []tree.Comment, error) {
	idx := tree.NewLineIndex(src)
	toks, comments, err := Lex(src, idx)
	if err != nil {
		return nil, nil, err
	}
	return &parser{src: src, idx: idx, toks: toks, pattern: pattern}, comments, nil
}

func (p *parser) peek() Token {
	return p.toks[p.pos]
}

func (p *parser) peekN(n int) Token {
	if p.pos+n < len(p.toks) {
		return p.toks[p.pos+n]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) next() Token {
	t := p.toks[p.pos]
	if t.Type != TokenEOF {
		p.pos++
	}
	p.lastEnd = t.End
	return t
}

func (p *parser) atEOF() bool {
	return p.peek().Type == TokenEOF
}

// is reports whether the current token is the operator or keyword v.
func (p *parser) is(v string) bool {
	return tokIs(p.peek(), v)
}

func tokIs(t Token, v string) bool {
	return (t.Type == TokenOp || t.Type == TokenKeyword) && t.Value == v
}

func (p *parser) isIdent(v string) bool {
	t := p.peek()
	return t.Type == TokenIdent && t.Value == v
}

func (p *parser) accept(v string) bool {
	if p.is(v) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(v string) (Token, error) {
	if !p.is(v) {
		return Token{}, p.errorf("expected %q, found %s", v, describe(p.peek()))
	}
	return p.next(), nil
}

func (p *parser) expectIdent() (*tree.Node, error) {
	t := p.peek()
	if t.Type != TokenIdent {
		return nil, p.errorf("expected identifier, found %s", describe(t))
	}
	p.next()
	return p.leaf(tree.KindIdent, t), nil
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Pos: p.idx.Pos(p.peek().Start), Msg: fmt.Sprintf(format, args...)}
}

func describe(t Token) string {
	if t.Type == TokenEOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", t.Value)
}

func (p *parser) mark() mark {
	return mark{pos: p.pos, lastEnd: p.lastEnd}
}

func (p *parser) reset(m mark) {
	p.pos = m.pos
	p.lastEnd = m.lastEnd
}

// span returns the span from start to the end of the last consumed token.
func (p *parser) span(start int) tree.Span {
	end := p.lastEnd
	if end < start {
		end = start
	}
	return p.idx.Span(start, end)
}

// here returns an empty span at the current token.
func (p *parser) here() tree.Span {
	off := p.peek().Start
	return p.idx.Span(off, off)
}

func (p *parser) leaf(kind tree.Kind, t Token) *tree.Node {
	return tree.NewLeaf(kind, t.Value, p.idx.Span(t.Start, t.End))
}

func (p *parser) ellipsis() *tree.Node {
	t := p.next()
	return tree.NewLeaf(tree.KindEllipsis, "...", p.idx.Span(t.Start, t.End))
}

/***** declarations *****/

func (p *parser) parseFile() (*tree.Node, error) {
	var children []*tree.Node

	if p.is("package") {
		n, err := p.parseNameDecl(tree.KindPackage)
		if err != nil {
			return nil, err
		}
		children = append(children, n)
	}

	for p.is("import") {
		n, err := p.parseNameDecl(tree.KindImport)
		if err != nil {
			return nil, err
		}
		children = append(children, n)
	}

	for !p.atEOF() {
		if p.accept(";") {
			continue
		}
		start := p.peek().Start
		mods, err := p.parseModifiers()
		if err != nil {
			return nil, err
		}
		if !p.atClassStart() {
			return nil, p.errorf("expected type declaration, found %s", describe(p.peek()))
		}
		decl, err := p.parseClass(start, mods)
		if err != nil {
			return nil, err
		}
		children = append(children, decl)
	}

	return tree.NewNode(tree.KindFile, p.idx.Span(0, len(p.src)), children...), nil
}

// parseNameDecl parses "package a.b;" and "import [static] a.b.*;" into a
// leaf holding the declared name.
func (p *parser) parseNameDecl(kind tree.Kind) (*tree.Node, error) {
	start := p.next().Start
	var parts []string
	if kind == tree.KindImport && p.accept("static") {
		parts = append(parts, "static ")
	}
	for !p.is(";") {
		t := p.peek()
		if t.Type != TokenIdent && !tokIs(t, ".") && !tokIs(t, "*") {
			return nil, p.errorf("unexpected %s in %s declaration", describe(t), strings.ToLower(kind.String()))
		}
		parts = append(parts, p.next().Value)
	}
	p.next()
	return tree.NewLeaf(kind, strings.Join(parts, ""), p.span(start)), nil
}

var modifierKeywords = map[string]bool{
	"public": true, "protected": true, "private": true, "static": true,
	"final": true, "abstract": true, "native": true, "synchronized": true,
	"transient": true, "volatile": true, "strictfp": true, "default": true,
}

// parseModifiers always returns a Modifiers node, empty when no modifier or
// annotation is present.
func (p *parser) parseModifiers() (*tree.Node, error) {
	start := p.peek().Start
	var mods []*tree.Node
	for {
		t := p.peek()
		switch {
		case tokIs(t, "@") && !tokIs(p.peekN(1), "interface"):
			ann, err := p.parseAnnotation()
			if err != nil {
				return nil, err
			}
			mods = append(mods, ann)
		case t.Type == TokenKeyword && modifierKeywords[t.Value] && !tokIs(p.peekN(1), "(") && !tokIs(p.peekN(1), ":"):
			p.next()
			mods = append(mods, p.leaf(tree.KindModifier, t))
		case t.Type == TokenIdent && t.Value == "sealed" && p.peekN(1).Type == TokenKeyword:
			p.next()
			mods = append(mods, p.leaf(tree.KindModifier, t))
		default:
			if len(mods) == 0 {
				return tree.NewNode(tree.KindModifiers, p.idx.Span(start, start)), nil
			}
			return tree.NewNode(tree.KindModifiers, p.span(start), mods...), nil
		}
	}
}

func (p *parser) parseAnnotation() (*tree.Node, error) {
	start := p.next().Start // '@'
	if _, err := p.expectIdent(); err != nil {
		return nil, err
	}
	for p.is(".") && p.peekN(1).Type == TokenIdent {
		p.next()
		p.next()
	}
	if p.is("(") {
		if err := p.skipBalanced("(", ")"); err != nil {
			return nil, err
		}
	}
	span := p.span(start)
	return tree.NewLeaf(tree.KindAnnotation, collapseSpace(p.src[start:span.End.Offset]), span), nil
}

// skipBalanced consumes tokens from open to its matching close.
func (p *parser) skipBalanced(open, close string) error {
	depth := 0
	for {
		t := p.peek()
		if t.Type == TokenEOF {
			return p.errorf("unbalanced %q", open)
		}
		p.next()
		switch {
		case tokIs(t, open):
			depth++
		case tokIs(t, close):
			depth--
			if depth == 0 {
				return nil
			}
		}
	}
}

func (p *parser) atClassStart() bool {
	switch {
	case p.is("class"), p.is("interface"), p.is("enum"):
		return true
	case p.is("@") && tokIs(p.peekN(1), "interface"):
		return true
	case p.isIdent("record") && p.peekN(1).Type == TokenIdent:
		return true
	}
	return false
}

func (p *parser) parseClass(start int, mods *tree.Node) (*tree.Node, error) {
	kwStart := p.peek().Start
	kw := p.next().Value
	if kw == "@" {
		p.next()
		kw = "@interface"
	}
	keyword := tree.NewLeaf(tree.KindKeyword, kw, p.span(kwStart))

	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	children := []*tree.Node{mods, keyword, name}

	if p.is("<") {
		tp, err := p.parseTypeParams()
		if err != nil {
			return nil, err
		}
		children = append(children, tp)
	}
	if kw == "record" {
		params, err := p.parseParams()
		if err != nil {
			return nil, err
		}
		children = append(children, params)
	}
	for p.is("extends") || p.is("implements") || p.isIdent("permits") {
		clause, err := p.parseHeritage()
		if err != nil {
			return nil, err
		}
		children = append(children, clause)
	}

	body, err := p.parseClassBody(kw == "enum")
	if err != nil {
		return nil, err
	}
	children = append(children, body)
	return tree.NewNode(tree.KindClass, p.span(start), children...), nil
}

// parseHeritage parses an extends/implements/permits clause into a node
// holding the listed types.
func (p *parser) parseHeritage() (*tree.Node, error) {
	kw := p.next()
	n := &tree.Node{Kind: tree.KindOther, Text: kw.Value}
	for {
		typ, err := p.parseType()
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, typ)
		if !p.accept(",") {
			break
		}
	}
	n.Span = p.span(kw.Start)
	return n, nil
}

func (p *parser) parseTypeParams() (*tree.Node, error) {
	start := p.peek().Start
	var parts []string
	if err := p.typeArgs(&parts); err != nil {
		return nil, err
	}
	return tree.NewLeaf(tree.KindType, joinType(parts), p.span(start)), nil
}

func (p *parser) parseClassBody(enum bool) (*tree.Node, error) {
	open, err := p.expect("{")
	if err != nil {
		return nil, err
	}
	var members []*tree.Node

	if enum {
		for !p.is(";") && !p.is("}") {
			c, err := p.parseEnumConstant()
			if err != nil {
				return nil, err
			}
			members = append(members, c)
			if !p.accept(",") {
				break
			}
		}
		p.accept(";")
	}

	for !p.is("}") {
		if p.atEOF() {
			return nil, p.errorf("class body is not terminated")
		}
		if p.accept(";") {
			continue
		}
		m, err := p.parseMember()
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	p.next()
	return tree.NewNode(tree.KindClassBody, p.span(open.Start), members...), nil
}

func (p *parser) parseEnumConstant() (*tree.Node, error) {
	start := p.peek().Start
	if _, err := p.parseModifiers(); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	children := []*tree.Node{name}
	if p.is("(") {
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		children = append(children, args)
	}
	if p.is("{") {
		body, err := p.parseClassBody(false)
		if err != nil {
			return nil, err
		}
		children = append(children, body)
	}
	return tree.NewNode(tree.KindDeclarator, p.span(start), children...), nil
}

func (p *parser) parseMember() (*tree.Node, error) {
	start := p.peek().Start

	if p.pattern && p.is("...") {
		n := p.ellipsis()
		p.accept(";")
		return n, nil
	}
	if p.is("{") {
		return p.parseBlock()
	}
	if p.is("static") && tokIs(p.peekN(1), "{") {
		p.next()
		return p.parseBlock()
	}

	mods, err := p.parseModifiers()
	if err != nil {
		return nil, err
	}
	if p.atClassStart() {
		return p.parseClass(start, mods)
	}

	var typeParams string
	if p.is("<") {
		tp, err := p.parseTypeParams()
		if err != nil {
			return nil, err
		}
		typeParams = tp.Text + " "
	}

	// constructor
	if p.peek().Type == TokenIdent && tokIs(p.peekN(1), "(") {
		name, _ := p.expectIdent()
		return p.parseMethodRest(start, []*tree.Node{mods, name})
	}

	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}
	typ.Text = typeParams + typ.Text

	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if p.is("(") {
		return p.parseMethodRest(start, []*tree.Node{mods, typ, name})
	}

	decls, err := p.parseDeclarators(name)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(";"); err != nil {
		return nil, err
	}
	return tree.NewNode(tree.KindField, p.span(start), append([]*tree.Node{mods, typ}, decls...)...), nil
}

// parseMethodRest parses parameters, throws clause and body of a method or
// constructor whose leading children are already known.
func (p *parser) parseMethodRest(start int, children []*tree.Node) (*tree.Node, error) {
	params, err := p.parseParams()
	if err != nil {
		return nil, err
	}
	for p.is("[") && tokIs(p.peekN(1), "]") {
		p.next()
		p.next()
	}

	throwsStart := p.peek().Start
	throws := &tree.Node{Kind: tree.KindThrows, Span: p.here()}
	if p.accept("throws") {
		for {
			typ, err := p.parseType()
			if err != nil {
				return nil, err
			}
			throws.Children = append(throws.Children, typ)
			if !p.accept(",") {
				break
			}
		}
		throws.Span = p.span(throwsStart)
	}
	children = append(children, params, throws)

	switch {
	case p.is("{"):
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		children = append(children, body)
	case p.accept("default"):
		// annotation element default value
		if _, err := p.parseElementValue(); err != nil {
			return nil, err
		}
		if _, err := p.expect(";"); err != nil {
			return nil, err
		}
	default:
		if _, err := p.expect(";"); err != nil {
			return nil, err
		}
	}
	return tree.NewNode(tree.KindMethod, p.span(start), children...), nil
}

func (p *parser) parseElementValue() (*tree.Node, error) {
	if p.is("{") {
		return p.parseArrayInit()
	}
	if p.is("@") {
		return p.parseAnnotation()
	}
	return p.parseExpr()
}

func (p *parser) parseParams() (*tree.Node, error) {
	open, err := p.expect("(")
	if err != nil {
		return nil, err
	}
	var params []*tree.Node
	for !p.is(")") {
		if p.pattern && p.is("...") {
			params = append(params, p.ellipsis())
		} else {
			param, err := p.parseParam()
			if err != nil {
				return nil, err
			}
			params = append(params, param)
		}
		if !p.accept(",") {
			break
		}
	}
	if _, err := p.expect(")"); err != nil {
		return nil, err
	}
	return tree.NewNode(tree.KindParams, p.span(open.Start), params...), nil
}

func (p *parser) parseParam() (*tree.Node, error) {
	start := p.peek().Start
	mods, err := p.parseModifiers()
	if err != nil {
		return nil, err
	}
	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if p.is("...") {
		p.next()
		typ.Text += "..."
		typ.Span = p.span(typ.Span.Start.Offset)
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	for p.is("[") && tokIs(p.peekN(1), "]") {
		p.next()
		p.next()
	}
	return tree.NewNode(tree.KindParam, p.span(start), mods, typ, name), nil
}

/***** types *****/

var primitiveTypes = map[string]bool{
	"boolean": true, "byte": true, "char": true, "short": true,
	"int": true, "long": true, "float": true, "double": true, "void": true,
}

// parseType parses a possibly qualified, possibly generic, possibly array
// type into a Type leaf whose text is normalized.
func (p *parser) parseType() (*tree.Node, error) {
	start := p.peek().Start
	for p.is("@") {
		if _, err := p.parseAnnotation(); err != nil {
			return nil, err
		}
	}

	t := p.peek()
	if t.Type != TokenIdent && !(t.Type == TokenKeyword && primitiveTypes[t.Value]) {
		return nil, p.errorf("expected type, found %s", describe(t))
	}
	parts := []string{p.next().Value}

	if t.Type == TokenIdent {
		for {
			if p.is("<") {
				if err := p.typeArgs(&parts); err != nil {
					return nil, err
				}
			}
			if p.is(".") && p.peekN(1).Type == TokenIdent {
				p.next()
				parts = append(parts, ".", p.next().Value)
				continue
			}
			break
		}
	}
	for p.is("[") && tokIs(p.peekN(1), "]") {
		p.next()
		p.next()
		parts = append(parts, "[]")
	}
	return tree.NewLeaf(tree.KindType, joinType(parts), p.span(start)), nil
}

// typeArgs consumes a balanced <...> group. Anything that cannot appear in
// a type argument list is an error so that expressions such as "i < n" fail
// fast when parsed speculatively as a type.
func (p *parser) typeArgs(parts *[]string) error {
	depth := 0
	for {
		t := p.peek()
		switch {
		case tokIs(t, "<"):
			depth++
		case tokIs(t, ">"):
			depth--
		case t.Type == TokenIdent,
			t.Type == TokenKeyword && (primitiveTypes[t.Value] || t.Value == "extends" || t.Value == "super"),
			tokIs(t, "?"), tokIs(t, ","), tokIs(t, "."), tokIs(t, "&"), tokIs(t, "["), tokIs(t, "]"):
		default:
			return p.errorf("unexpected %s in type arguments", describe(t))
		}
		p.next()
		*parts = append(*parts, t.Value)
		if depth == 0 {
			return nil
		}
	}
}

func joinType(parts []string) string {
	var sb strings.Builder
	for i, part := range parts {
		if i > 0 {
			prev := parts[i-1]
			if (isWord(prev) && isWord(part)) || prev == "," || part == "&" || prev == "&" || part == "|" || prev == "|" ||
				(prev == "?" && isWord(part)) {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(part)
	}
	return sb.String()
}

func isWord(s string) bool {
	return s != "" && isIdentChar(s[0])
}

func collapseSpace(b []byte) string {
	return strings.Join(strings.Fields(string(b)), " ")
}
