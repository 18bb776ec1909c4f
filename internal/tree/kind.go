package tree

// Kind is the closed set of node categories shared by every frontend.
// The matcher only ever compares kinds, it never inspects a concrete grammar.
type Kind uint8

const (
	KindInvalid Kind = iota

	// declarations
	KindFile
	KindPackage
	KindImport
	KindClass
	KindClassBody
	KindMethod
	KindField
	KindModifiers
	KindModifier
	KindAnnotation
	KindParams
	KindParam
	KindThrows
	KindType
	KindTypeDecl

	// statements
	KindBlock
	KindVarDecl
	KindDeclarator
	KindExprStmt
	KindIf
	KindFor
	KindForInit
	KindForUpdate
	KindForEach
	KindWhile
	KindDoWhile
	KindTry
	KindResources
	KindCatch
	KindFinally
	KindReturn
	KindThrow
	KindBreak
	KindContinue
	KindSwitch
	KindCase
	KindSync
	KindLabeled
	KindEmpty
	KindGo
	KindDefer
	KindSend

	// expressions
	KindAssign
	KindBinary
	KindUnary
	KindPostfix
	KindTernary
	KindCall
	KindArgs
	KindSelector
	KindIndex
	KindNew
	KindNewArray
	KindArrayInit
	KindCompositeLit
	KindKeyValue
	KindCast
	KindInstanceOf
	KindLambda
	KindMethodRef
	KindParen

	// leaves
	KindIdent
	KindLiteral
	KindKeyword
	KindOperator

	// KindEllipsis and KindSequence only appear in trees parsed in pattern
	// mode. A sequence is a bare list of statements.
	KindEllipsis
	KindSequence

	// KindOther holds constructs a frontend keeps but does not classify.
	KindOther

	kindCount
)

var kindNames = [...]string{
	KindInvalid:      "Invalid",
	KindFile:         "File",
	KindPackage:      "Package",
	KindImport:       "Import",
	KindClass:        "Class",
	KindClassBody:    "ClassBody",
	KindMethod:       "Method",
	KindField:        "Field",
	KindModifiers:    "Modifiers",
	KindModifier:     "Modifier",
	KindAnnotation:   "Annotation",
	KindParams:       "Params",
	KindParam:        "Param",
	KindThrows:       "Throws",
	KindType:         "Type",
	KindTypeDecl:     "TypeDecl",
	KindBlock:        "Block",
	KindVarDecl:      "VarDecl",
	KindDeclarator:   "Declarator",
	KindExprStmt:     "ExprStmt",
	KindIf:           "If",
	KindFor:          "For",
	KindForInit:      "ForInit",
	KindForUpdate:    "ForUpdate",
	KindForEach:      "ForEach",
	KindWhile:        "While",
	KindDoWhile:      "DoWhile",
	KindTry:          "Try",
	KindResources:    "Resources",
	KindCatch:        "Catch",
	KindFinally:      "Finally",
	KindReturn:       "Return",
	KindThrow:        "Throw",
	KindBreak:        "Break",
	KindContinue:     "Continue",
	KindSwitch:       "Switch",
	KindCase:         "Case",
	KindSync:         "Sync",
	KindLabeled:      "Labeled",
	KindEmpty:        "Empty",
	KindGo:           "Go",
	KindDefer:        "Defer",
	KindSend:         "Send",
	KindAssign:       "Assign",
	KindBinary:       "Binary",
	KindUnary:        "Unary",
	KindPostfix:      "Postfix",
	KindTernary:      "Ternary",
	KindCall:         "Call",
	KindArgs:         "Args",
	KindSelector:     "Selector",
	KindIndex:        "Index",
	KindNew:          "New",
	KindNewArray:     "NewArray",
	KindArrayInit:    "ArrayInit",
	KindCompositeLit: "CompositeLit",
	KindKeyValue:     "KeyValue",
	KindCast:         "Cast",
	KindInstanceOf:   "InstanceOf",
	KindLambda:       "Lambda",
	KindMethodRef:    "MethodRef",
	KindParen:        "Paren",
	KindIdent:        "Ident",
	KindLiteral:      "Literal",
	KindKeyword:      "Keyword",
	KindOperator:     "Operator",
	KindEllipsis:     "Ellipsis",
	KindSequence:     "Sequence",
	KindOther:        "Other",
}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return "Unknown"
}

// IsSequence reports whether the children of a node of kind k form a
// variable-length list, i.e. a position where an ellipsis may stand.
func (k Kind) IsSequence() bool {
	switch k {
	case KindFile, KindClassBody, KindBlock, KindArgs, KindParams, KindParam,
		KindModifiers, KindThrows, KindResources, KindArrayInit, KindCase,
		KindForInit, KindForUpdate, KindCompositeLit, KindSwitch, KindSequence:
		return true
	}
	return false
}

// IsStatementList reports whether the children of k are statements or
// members, the containers a multi-statement pattern is matched inside of.
func (k Kind) IsStatementList() bool {
	switch k {
	case KindFile, KindClassBody, KindBlock, KindCase:
		return true
	}
	return false
}
