package golang

import (
	"go/ast"
	"go/token"
	"strconv"
	"strings"

	"github.com/gnolang/patlint/internal/tree"
)

type converter struct {
	fset    *token.FileSet
	src     []byte
	idx     *tree.LineIndex
	pattern bool
}

func newConverter(fset *token.FileSet, src []byte, pattern bool) *converter {
	return &converter{fset: fset, src: src, idx: tree.NewLineIndex(src), pattern: pattern}
}

func (c *converter) offset(p token.Pos) int {
	if !p.IsValid() {
		return 0
	}
	return c.fset.Position(p).Offset
}

func (c *converter) span(start, end token.Pos) tree.Span {
	return c.idx.Span(c.offset(start), c.offset(end))
}

func (c *converter) nodeSpan(n ast.Node) tree.Span {
	return c.span(n.Pos(), n.End())
}

// text returns the whitespace collapsed source of n with metavariable
// placeholders turned back into their pattern form.
func (c *converter) text(n ast.Node) string {
	start, end := c.offset(n.Pos()), c.offset(n.End())
	if start > end || end > len(c.src) {
		return ""
	}
	s := strings.Join(strings.Fields(string(c.src[start:end])), " ")
	if c.pattern {
		s = strings.ReplaceAll(s, metavarPrefix, "$")
	}
	return s
}

func (c *converter) empty(at token.Pos) *tree.Node {
	off := c.offset(at)
	return tree.NewLeaf(tree.KindEmpty, "", c.idx.Span(off, off))
}

func (c *converter) file(f *ast.File) *tree.Node {
	children := []*tree.Node{
		tree.NewLeaf(tree.KindPackage, f.Name.Name, c.span(f.Package, f.Name.End())),
	}
	for _, decl := range f.Decls {
		children = append(children, c.decls(decl)...)
	}
	return tree.NewNode(tree.KindFile, c.idx.Span(0, len(c.src)), children...)
}

func (c *converter) decls(d ast.Decl) []*tree.Node {
	switch d := d.(type) {
	case *ast.FuncDecl:
		return []*tree.Node{c.funcDecl(d)}
	case *ast.GenDecl:
		var out []*tree.Node
		for _, spec := range d.Specs {
			out = append(out, c.spec(d.Tok, spec))
		}
		return out
	}
	return []*tree.Node{tree.NewLeaf(tree.KindOther, "bad", c.nodeSpan(d))}
}

// funcDecl yields Method[Params(receiver)?, Ident, Params, Params(results), Block?].
func (c *converter) funcDecl(d *ast.FuncDecl) *tree.Node {
	var children []*tree.Node
	if d.Recv != nil {
		children = append(children, c.fields(d.Recv, d.Recv.Opening))
	}
	children = append(children,
		c.ident(d.Name),
		c.fields(d.Type.Params, d.Type.Params.Opening),
		c.fields(d.Type.Results, d.Type.Params.End()),
	)
	if d.Body != nil {
		children = append(children, c.block(d.Body))
	}
	return tree.NewNode(tree.KindMethod, c.nodeSpan(d), children...)
}

// fields converts a field list into Params with one Param[Ident?, Type] per
// declared name.
func (c *converter) fields(fl *ast.FieldList, at token.Pos) *tree.Node {
	if fl == nil {
		off := c.offset(at)
		return tree.NewNode(tree.KindParams, c.idx.Span(off, off))
	}
	var params []*tree.Node
	for _, field := range fl.List {
		if c.pattern && isEllipsis(field.Type) && len(field.Names) == 0 {
			params = append(params, c.ellipsis(field.Type))
			continue
		}
		typ := c.typ(field.Type)
		if len(field.Names) == 0 {
			params = append(params, tree.NewNode(tree.KindParam, c.nodeSpan(field), typ))
			continue
		}
		for _, name := range field.Names {
			if c.pattern && name.Name == ellipsisIdent {
				params = append(params, c.ellipsis(name))
				continue
			}
			params = append(params, tree.NewNode(tree.KindParam, c.span(name.Pos(), field.End()), c.ident(name), typ))
		}
	}
	span := c.nodeSpan(fl)
	if !fl.Opening.IsValid() && len(params) == 0 {
		off := c.offset(at)
		span = c.idx.Span(off, off)
	}
	return tree.NewNode(tree.KindParams, span, params...)
}

func (c *converter) spec(tok token.Token, spec ast.Spec) *tree.Node {
	switch s := spec.(type) {
	case *ast.ImportSpec:
		path, err := strconv.Unquote(s.Path.Value)
		if err != nil {
			path = s.Path.Value
		}
		if s.Name != nil {
			path = s.Name.Name + " " + path
		}
		return tree.NewLeaf(tree.KindImport, path, c.nodeSpan(s))
	case *ast.TypeSpec:
		return tree.NewNode(tree.KindTypeDecl, c.nodeSpan(s), c.ident(s.Name), c.typ(s.Type))
	case *ast.ValueSpec:
		// VarDecl[Keyword, Type|Empty, Declarator...]
		children := []*tree.Node{tree.NewLeaf(tree.KindKeyword, tok.String(), c.span(s.Pos(), s.Pos()))}
		if s.Type != nil {
			children = append(children, c.typ(s.Type))
		} else {
			children = append(children, c.empty(s.Names[len(s.Names)-1].End()))
		}
		for i, name := range s.Names {
			decl := []*tree.Node{c.ident(name)}
			end := name.End()
			if i < len(s.Values) {
				decl = append(decl, c.expr(s.Values[i]))
				end = s.Values[i].End()
			}
			children = append(children, tree.NewNode(tree.KindDeclarator, c.span(name.Pos(), end), decl...))
		}
		return tree.NewNode(tree.KindVarDecl, c.nodeSpan(s), children...)
	}
	return tree.NewLeaf(tree.KindOther, "spec", c.nodeSpan(spec))
}

/***** statements *****/

func (c *converter) block(b *ast.BlockStmt) *tree.Node {
	return tree.NewNode(tree.KindBlock, c.nodeSpan(b), c.stmts(b.List)...)
}

func (c *converter) stmts(list []ast.Stmt) []*tree.Node {
	out := make([]*tree.Node, 0, len(list))
	for _, s := range list {
		out = append(out, c.stmt(s))
	}
	return out
}

func (c *converter) stmt(s ast.Stmt) *tree.Node {
	span := c.nodeSpan(s)
	switch s := s.(type) {
	case *ast.BlockStmt:
		return c.block(s)
	case *ast.ExprStmt:
		if c.pattern && isEllipsis(s.X) {
			return c.ellipsis(s.X)
		}
		return tree.NewNode(tree.KindExprStmt, span, c.expr(s.X))
	case *ast.AssignStmt:
		return tree.NewNode(tree.KindAssign, span,
			c.exprList(s.Lhs, s.TokPos),
			tree.NewLeaf(tree.KindOperator, s.Tok.String(), c.span(s.TokPos, s.TokPos+token.Pos(len(s.Tok.String())))),
			c.exprList(s.Rhs, s.TokPos),
		)
	case *ast.IncDecStmt:
		return tree.NewNode(tree.KindPostfix, span, c.expr(s.X),
			tree.NewLeaf(tree.KindOperator, s.Tok.String(), c.span(s.TokPos, s.End())))
	case *ast.DeclStmt:
		nodes := c.decls(s.Decl)
		if len(nodes) == 1 {
			return nodes[0]
		}
		return tree.NewNode(tree.KindOther, span, nodes...)
	case *ast.IfStmt:
		children := []*tree.Node{c.init(s.Init, s.If), c.expr(s.Cond), c.block(s.Body)}
		if s.Else != nil {
			children = append(children, c.stmt(s.Else))
		}
		return tree.NewNode(tree.KindIf, span, children...)
	case *ast.ForStmt:
		var cond *tree.Node
		if s.Cond != nil {
			cond = c.expr(s.Cond)
		} else {
			cond = c.empty(s.Body.Lbrace)
		}
		post := tree.NewNode(tree.KindForUpdate, c.span(s.Body.Lbrace, s.Body.Lbrace))
		if s.Post != nil {
			post = tree.NewNode(tree.KindForUpdate, c.nodeSpan(s.Post), c.stmt(s.Post))
		}
		return tree.NewNode(tree.KindFor, span, c.init(s.Init, s.For), cond, post, c.block(s.Body))
	case *ast.RangeStmt:
		var vars []*tree.Node
		if s.Key != nil {
			vars = append(vars, c.expr(s.Key))
		}
		if s.Value != nil {
			vars = append(vars, c.expr(s.Value))
		}
		param := tree.NewNode(tree.KindParam, c.span(s.For, s.X.Pos()), vars...)
		return tree.NewNode(tree.KindForEach, span, param, c.expr(s.X), c.block(s.Body))
	case *ast.ReturnStmt:
		children := make([]*tree.Node, 0, len(s.Results))
		for _, r := range s.Results {
			children = append(children, c.expr(r))
		}
		return tree.NewNode(tree.KindReturn, span, children...)
	case *ast.BranchStmt:
		var label *tree.Node
		if s.Label != nil {
			label = c.ident(s.Label)
		}
		switch s.Tok {
		case token.BREAK:
			return tree.NewNode(tree.KindBreak, span, label)
		case token.CONTINUE:
			return tree.NewNode(tree.KindContinue, span, label)
		}
		n := tree.NewNode(tree.KindOther, span, label)
		n.Text = s.Tok.String()
		return n
	case *ast.GoStmt:
		return tree.NewNode(tree.KindGo, span, c.expr(s.Call))
	case *ast.DeferStmt:
		return tree.NewNode(tree.KindDefer, span, c.expr(s.Call))
	case *ast.SendStmt:
		return tree.NewNode(tree.KindSend, span, c.expr(s.Chan), c.expr(s.Value))
	case *ast.LabeledStmt:
		return tree.NewNode(tree.KindLabeled, span, c.ident(s.Label), c.stmt(s.Stmt))
	case *ast.SwitchStmt:
		var tag *tree.Node
		if s.Tag != nil {
			tag = c.expr(s.Tag)
		} else {
			tag = c.empty(s.Body.Lbrace)
		}
		children := []*tree.Node{c.init(s.Init, s.Switch), tag}
		return tree.NewNode(tree.KindSwitch, span, append(children, c.clauses(s.Body)...)...)
	case *ast.TypeSwitchStmt:
		children := []*tree.Node{c.init(s.Init, s.Switch), c.stmt(s.Assign)}
		return tree.NewNode(tree.KindSwitch, span, append(children, c.clauses(s.Body)...)...)
	case *ast.SelectStmt:
		n := tree.NewNode(tree.KindSwitch, span, c.clauses(s.Body)...)
		n.Text = "select"
		return n
	case *ast.EmptyStmt:
		return tree.NewLeaf(tree.KindEmpty, "", span)
	}
	return tree.NewLeaf(tree.KindOther, "stmt", span)
}

// init wraps an optional init statement so that the positions of the
// remaining children stay fixed.
func (c *converter) init(s ast.Stmt, at token.Pos) *tree.Node {
	if s == nil {
		off := c.offset(at)
		return tree.NewNode(tree.KindForInit, c.idx.Span(off, off))
	}
	return tree.NewNode(tree.KindForInit, c.nodeSpan(s), c.stmt(s))
}

func (c *converter) clauses(body *ast.BlockStmt) []*tree.Node {
	var out []*tree.Node
	for _, s := range body.List {
		switch cl := s.(type) {
		case *ast.CaseClause:
			labels := c.exprList(cl.List, cl.Case)
			out = append(out, tree.NewNode(tree.KindCase, c.nodeSpan(cl), append([]*tree.Node{labels}, c.stmts(cl.Body)...)...))
		case *ast.CommClause:
			var comm []*tree.Node
			if cl.Comm != nil {
				comm = append(comm, c.stmt(cl.Comm))
			}
			labels := tree.NewNode(tree.KindArgs, c.span(cl.Case, cl.Colon), comm...)
			out = append(out, tree.NewNode(tree.KindCase, c.nodeSpan(cl), append([]*tree.Node{labels}, c.stmts(cl.Body)...)...))
		default:
			if c.pattern {
				if es, ok := s.(*ast.ExprStmt); ok && isEllipsis(es.X) {
					out = append(out, c.ellipsis(es.X))
				}
			}
		}
	}
	return out
}

/***** expressions *****/

func (c *converter) exprList(list []ast.Expr, at token.Pos) *tree.Node {
	if len(list) == 0 {
		off := c.offset(at)
		return tree.NewNode(tree.KindArgs, c.idx.Span(off, off))
	}
	children := make([]*tree.Node, 0, len(list))
	for _, e := range list {
		children = append(children, c.expr(e))
	}
	return tree.NewNode(tree.KindArgs, c.span(list[0].Pos(), list[len(list)-1].End()), children...)
}

func (c *converter) ident(id *ast.Ident) *tree.Node {
	name := id.Name
	if c.pattern && strings.HasPrefix(name, metavarPrefix) {
		name = "$" + strings.TrimPrefix(name, metavarPrefix)
	}
	return tree.NewLeaf(tree.KindIdent, name, c.nodeSpan(id))
}

func (c *converter) ellipsis(n ast.Node) *tree.Node {
	return tree.NewLeaf(tree.KindEllipsis, "...", c.nodeSpan(n))
}

func isEllipsis(e ast.Expr) bool {
	id, ok := e.(*ast.Ident)
	return ok && id.Name == ellipsisIdent
}

func (c *converter) expr(e ast.Expr) *tree.Node {
	span := c.nodeSpan(e)
	switch e := e.(type) {
	case *ast.Ident:
		if c.pattern && e.Name == ellipsisIdent {
			return c.ellipsis(e)
		}
		return c.ident(e)
	case *ast.BasicLit:
		return tree.NewLeaf(tree.KindLiteral, e.Value, span)
	case *ast.BinaryExpr:
		return tree.NewNode(tree.KindBinary, span, c.expr(e.X),
			tree.NewLeaf(tree.KindOperator, e.Op.String(), c.span(e.OpPos, e.OpPos+token.Pos(len(e.Op.String())))),
			c.expr(e.Y))
	case *ast.UnaryExpr:
		return tree.NewNode(tree.KindUnary, span,
			tree.NewLeaf(tree.KindOperator, e.Op.String(), c.span(e.OpPos, e.X.Pos())), c.expr(e.X))
	case *ast.StarExpr:
		return tree.NewNode(tree.KindUnary, span,
			tree.NewLeaf(tree.KindOperator, "*", c.span(e.Star, e.X.Pos())), c.expr(e.X))
	case *ast.ParenExpr:
		return tree.NewNode(tree.KindParen, span, c.expr(e.X))
	case *ast.SelectorExpr:
		return tree.NewNode(tree.KindSelector, span, c.expr(e.X), c.ident(e.Sel))
	case *ast.CallExpr:
		args := make([]*tree.Node, 0, len(e.Args))
		for _, a := range e.Args {
			args = append(args, c.expr(a))
		}
		return tree.NewNode(tree.KindCall, span, c.expr(e.Fun),
			tree.NewNode(tree.KindArgs, c.span(e.Lparen, e.Rparen+1), args...))
	case *ast.IndexExpr:
		return tree.NewNode(tree.KindIndex, span, c.expr(e.X), c.expr(e.Index))
	case *ast.IndexListExpr:
		return tree.NewNode(tree.KindIndex, span, c.expr(e.X), c.exprList(e.Indices, e.Lbrack))
	case *ast.SliceExpr:
		n := tree.NewNode(tree.KindIndex, span, c.expr(e.X),
			c.optExpr(e.Low, e.Lbrack), c.optExpr(e.High, e.Rbrack), c.optExpr(e.Max, e.Rbrack))
		n.Text = "slice"
		return n
	case *ast.TypeAssertExpr:
		var typ *tree.Node
		if e.Type == nil {
			typ = tree.NewLeaf(tree.KindKeyword, "type", c.span(e.Lparen+1, e.Rparen))
		} else {
			typ = c.typ(e.Type)
		}
		return tree.NewNode(tree.KindCast, span, typ, c.expr(e.X))
	case *ast.CompositeLit:
		var children []*tree.Node
		if e.Type != nil {
			children = append(children, c.typ(e.Type))
		}
		for _, elt := range e.Elts {
			children = append(children, c.expr(elt))
		}
		return tree.NewNode(tree.KindCompositeLit, span, children...)
	case *ast.KeyValueExpr:
		return tree.NewNode(tree.KindKeyValue, span, c.expr(e.Key), c.expr(e.Value))
	case *ast.FuncLit:
		return tree.NewNode(tree.KindLambda, span,
			c.fields(e.Type.Params, e.Type.Params.Opening),
			c.fields(e.Type.Results, e.Type.Params.End()),
			c.block(e.Body))
	case *ast.ArrayType, *ast.MapType, *ast.ChanType, *ast.FuncType,
		*ast.StructType, *ast.InterfaceType, *ast.Ellipsis:
		return c.typ(e)
	}
	return tree.NewLeaf(tree.KindOther, c.text(e), span)
}

func (c *converter) optExpr(e ast.Expr, at token.Pos) *tree.Node {
	if e == nil {
		return c.empty(at)
	}
	return c.expr(e)
}

// typ keeps type expressions as opaque text.
func (c *converter) typ(e ast.Expr) *tree.Node {
	return tree.NewLeaf(tree.KindType, c.text(e), c.nodeSpan(e))
}
