package engine

import (
	"fmt"

	"vellum/ast"
	"vellum/interpreter"
	"vellum/lexer"
	"vellum/parser"
)

// Analyze computes a code cell's provides/requires name sets by walking the
// cell's parsed AST. It never evaluates anything.
//
// provides is populated only by top-level (module-scope) bindings:
// `let` patterns and assignment/augmented-assignment/increment targets.
// Vellum has no bare `x = 5` binding form; assignment always requires `x`
// to already be defined (interpreter/eval_assign_target.go). A module-
// scope assignment still makes the cell the latest provider of that name
// for the dependency graph, so it contributes to provides the same way a
// `let` does. Augmented forms (`x += …`, `x++`) additionally read the
// prior value and so contribute to requires too.
//
// requires is every free name read that is not a builtin and not already
// bound earlier in the cell at the same (module) scope. Names bound inside
// a nested scope (lambda params, block/if/match/for/query locals) never
// reach provides, matching the fact that the evaluator itself runs those
// bodies in a NewEnclosedEnvironment that is discarded when the construct
// finishes (interpreter/eval_control.go).
func Analyze(program *ast.Program) (provides map[string]struct{}, requires map[string]struct{}) {
	a := &analysis{
		builtins: interpreter.BuiltinNames(),
		provides: map[string]struct{}{},
		requires: map[string]struct{}{},
		bound:    []map[string]struct{}{{}},
	}
	for _, stmt := range program.Statements {
		a.walkTopLevel(stmt)
	}
	return a.provides, a.requires
}

// AnalyzeCell parses a single code cell's source and runs Analyze over it.
// A cell that fails to parse on its own yields empty provides/requires (it
// is still scheduled for execution, where the evaluator surfaces the
// detailed syntax error) and a non-nil error for the caller to log.
func AnalyzeCell(source string) (provides map[string]struct{}, requires map[string]struct{}, err error) {
	p := parser.New(lexer.New(source))
	program := p.ParseProgram()
	if errs := p.ErrorsDetailed(); len(errs) > 0 {
		return map[string]struct{}{}, map[string]struct{}{}, fmt.Errorf("%s", parser.FormatParseErrors(errs, source, ""))
	}
	provides, requires = Analyze(program)
	return provides, requires, nil
}

type analysis struct {
	builtins map[string]struct{}
	provides map[string]struct{}
	requires map[string]struct{}
	// bound is a scope stack; bound[0] is the module scope (kept in sync
	// with provides), deeper entries are nested lambda/block/match/for/
	// query scopes.
	bound []map[string]struct{}
}

func (a *analysis) use(name string) {
	if a.isBound(name) {
		return
	}
	if _, ok := a.builtins[name]; ok {
		return
	}
	a.requires[name] = struct{}{}
}

func (a *analysis) isBound(name string) bool {
	for i := len(a.bound) - 1; i >= 0; i-- {
		if _, ok := a.bound[i][name]; ok {
			return true
		}
	}
	return false
}

func (a *analysis) defineModule(name string) {
	a.bound[0][name] = struct{}{}
	a.provides[name] = struct{}{}
}

func (a *analysis) defineLocal(name string) {
	a.bound[len(a.bound)-1][name] = struct{}{}
}

func (a *analysis) push() { a.bound = append(a.bound, map[string]struct{}{}) }
func (a *analysis) pop()  { a.bound = a.bound[:len(a.bound)-1] }

func (a *analysis) walkTopLevel(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.LetStatement:
		a.walkExpr(s.Value)
		for _, n := range patternNames(s.Name) {
			a.defineModule(n)
		}
	case *ast.ExpressionStatement:
		a.walkTopLevelExpr(s.Expression)
	}
}

// walkTopLevelExpr handles the module-scope assignment/increment forms
// that contribute to provides; everything else falls through to the
// ordinary read-only expression walk.
func (a *analysis) walkTopLevelExpr(expr ast.Expression) {
	switch e := expr.(type) {
	case *ast.AssignExpression:
		if ident, ok := e.Left.(*ast.Identifier); ok {
			a.walkExpr(e.Right)
			if e.Operator != "=" {
				a.use(ident.Value)
			}
			a.defineModule(ident.Value)
			return
		}
		a.walkExpr(e.Right)
		a.walkAssignTarget(e.Left)
	case *ast.PostfixExpression:
		if ident, ok := e.Left.(*ast.Identifier); ok {
			a.use(ident.Value)
			a.defineModule(ident.Value)
			return
		}
		a.walkAssignTarget(e.Left)
	default:
		a.walkExpr(expr)
	}
}

// walkAssignTarget handles an assignment/increment target that is NOT a
// module-scope-binding case (i.e. member/index mutation, or any target
// inside a nested scope): it contributes the base identifier to requires
// only, never to provides. Mutating through an attribute or index reads
// the container; it does not rebind the name.
func (a *analysis) walkAssignTarget(target ast.Expression) {
	switch t := target.(type) {
	case *ast.Identifier:
		a.use(t.Value)
	case *ast.MemberExpression:
		a.walkExpr(t.Object)
	case *ast.IndexExpression:
		a.walkExpr(t.Left)
		a.walkExpr(t.Index)
	default:
		a.walkExpr(target)
	}
}

func (a *analysis) walkExpr(expr ast.Expression) {
	if expr == nil {
		return
	}
	switch e := expr.(type) {
	case *ast.Identifier:
		a.use(e.Value)
	case *ast.Placeholder, *ast.IntegerLiteral, *ast.FloatLiteral, *ast.StringLiteral,
		*ast.CharLiteral, *ast.BooleanLiteral, *ast.NullLiteral, *ast.UnitLiteral,
		*ast.ContinueExpression:
		// no free names
	case *ast.PrefixExpression:
		a.walkExpr(e.Right)
	case *ast.InfixExpression:
		a.walkExpr(e.Left)
		a.walkExpr(e.Right)
	case *ast.AssignExpression:
		a.walkAssignTarget(e.Left)
		a.walkExpr(e.Right)
	case *ast.PostfixExpression:
		a.walkAssignTarget(e.Left)
	case *ast.AwaitExpression:
		a.walkExpr(e.Value)
	case *ast.ImportExpression:
		// Path is a literal module name, not a free-variable reference.
	case *ast.RecoverExpression:
		a.walkExpr(e.Target)
		a.walkExpr(e.Fallback)
	case *ast.IfExpression:
		a.walkExpr(e.Condition)
		a.walkExpr(e.Consequence)
		a.walkExpr(e.Alternative)
	case *ast.BlockExpression:
		a.push()
		for _, stmt := range e.Statements {
			a.walkBlockStmt(stmt)
		}
		a.pop()
	case *ast.MatchExpression:
		a.walkExpr(e.Value)
		for _, arm := range e.Arms {
			a.push()
			for _, n := range patternNames(arm.Pattern) {
				a.defineLocal(n)
			}
			a.walkExpr(arm.Guard)
			a.walkExpr(arm.Body)
			a.pop()
		}
	case *ast.ForExpression:
		a.push()
		for _, b := range e.Bindings {
			a.walkExpr(b.Value)
			for _, n := range patternNames(b.Pattern) {
				a.defineLocal(n)
			}
		}
		a.walkExpr(e.Condition)
		a.walkExpr(e.Body)
		a.walkExpr(e.Then)
		a.pop()
	case *ast.LambdaExpression:
		a.push()
		for _, p := range e.Params {
			for _, n := range patternNames(p) {
				a.defineLocal(n)
			}
		}
		a.walkExpr(e.Body)
		a.pop()
	case *ast.CallExpression:
		a.walkExpr(e.Function)
		for _, arg := range e.Arguments {
			a.walkExpr(arg)
		}
	case *ast.AsExpression:
		a.walkExpr(e.Value)
		a.walkExpr(e.Shape)
	case *ast.MemberExpression:
		a.walkExpr(e.Object)
	case *ast.IndexExpression:
		a.walkExpr(e.Left)
		a.walkExpr(e.Index)
	case *ast.SliceExpression:
		a.walkExpr(e.Left)
		a.walkExpr(e.Start)
		a.walkExpr(e.End)
	case *ast.ArrayLiteral:
		for _, el := range e.Elements {
			a.walkExpr(el)
		}
	case *ast.ObjectLiteral:
		for _, ent := range e.Entries {
			if ent.Shorthand {
				a.use(ent.Key)
				continue
			}
			a.walkExpr(ent.Value)
		}
	case *ast.StructInitExpression:
		a.walkExpr(e.Value)
	case *ast.RangeExpression:
		a.walkExpr(e.Start)
		a.walkExpr(e.End)
		a.walkExpr(e.Step)
	case *ast.QueryExpression:
		a.walkExpr(e.Source)
		a.push()
		if e.Var != nil {
			a.defineLocal(e.Var.Value)
		}
		for _, w := range e.Where {
			a.walkExpr(w)
		}
		a.walkExpr(e.OrderBy)
		a.walkExpr(e.Select)
		a.pop()
	case *ast.RaceExpression:
		for _, t := range e.Tasks {
			a.walkExpr(t)
		}
	case *ast.SpawnExpression:
		a.walkExpr(e.Task)
		for _, g := range e.Group {
			a.walkExpr(g)
		}
	case *ast.BreakExpression:
		a.walkExpr(e.Value)
	}
}

func (a *analysis) walkBlockStmt(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.LetStatement:
		a.walkExpr(s.Value)
		for _, n := range patternNames(s.Name) {
			a.defineLocal(n)
		}
	case *ast.ExpressionStatement:
		a.walkExpr(s.Expression)
	}
}

// patternNames enumerates every name a pattern binds, mirroring the
// binding cases of interpreter/patterns.go's matchPattern (literal
// patterns bind nothing; WildcardPattern binds nothing).
func patternNames(p ast.Pattern) []string {
	var names []string
	var walk func(ast.Pattern)
	walk = func(p ast.Pattern) {
		if p == nil {
			return
		}
		switch pat := p.(type) {
		case *ast.Identifier:
			names = append(names, pat.Value)
		case *ast.ObjectPattern:
			for _, ent := range pat.Entries {
				walk(ent.Pattern)
			}
		case *ast.ArrayPattern:
			for _, el := range pat.Elements {
				walk(el)
			}
			walk(pat.Rest)
		case *ast.TuplePattern:
			for _, el := range pat.Elements {
				walk(el)
			}
		case *ast.CallPattern:
			for _, arg := range pat.Args {
				walk(arg)
			}
		}
	}
	walk(p)
	return names
}
