// Package cfg builds a control-flow graph of basic blocks for a single
// function body (spec §4.3). Blocks hold a borrowed view of the
// statements they contain; ownership of the AST stays with the
// function declaration (spec §9 "Replacing the CFG-builder's
// release-then-wrap pattern").
package cfg

import "github.com/albanread/RevivalBCPL-sub000/internal/ast"

// Block is a basic block: a straight-line run of statements with
// successor/predecessor edges (spec §3 "Basic block").
type Block struct {
	ID         int
	Statements []ast.Statement
	Succ       []*Block
	Pred       []*Block
}

// Function is the CFG of a single function/routine body.
type Function struct {
	Entry  *Block
	Blocks []*Block
	// Labels maps a LabeledStatement's name to the block it begins,
	// for GOTO resolution downstream.
	Labels map[string]*Block
}

// Build partitions body (a function's or routine's statement body)
// into basic blocks.
func Build(body ast.Statement) *Function {
	b := &builder{fn: &Function{Labels: map[string]*Block{}}}
	entry := b.newBlock()
	b.fn.Entry = entry
	end := b.processStmt(body, entry)
	_ = end // execution may fall off the end of the function; caller's
	// code generator supplies an implicit return at the function's
	// return label in that case.
	return b.fn
}

type builder struct {
	fn *Function
}

func (b *builder) newBlock() *Block {
	blk := &Block{ID: len(b.fn.Blocks)}
	b.fn.Blocks = append(b.fn.Blocks, blk)
	return blk
}

func addEdge(from, to *Block) {
	if from == nil || to == nil {
		return
	}
	from.Succ = append(from.Succ, to)
	to.Pred = append(to.Pred, from)
}

// processStmt appends/links s starting at cur, returning the block
// execution continues in afterward, or nil if the statement always
// transfers control elsewhere (RETURN/FINISH/GOTO — "the returned
// current block is the sentinel none-block", spec §4.3).
func (b *builder) processStmt(s ast.Statement, cur *Block) *Block {
	if cur == nil || s == nil {
		return cur
	}
	switch n := s.(type) {
	case *ast.CompoundStatement:
		for _, child := range n.Children {
			cur = b.processStmt(child, cur)
			if cur == nil {
				return nil
			}
		}
		return cur

	case *ast.IfStatement:
		cur.Statements = append(cur.Statements, s)
		thenBlk := b.newBlock()
		merge := b.newBlock()
		addEdge(cur, thenBlk)
		addEdge(cur, merge)
		thenEnd := b.processStmt(n.Then, thenBlk)
		addEdge(thenEnd, merge)
		return merge

	case *ast.TestStatement:
		cur.Statements = append(cur.Statements, s)
		thenBlk := b.newBlock()
		merge := b.newBlock()
		addEdge(cur, thenBlk)
		thenEnd := b.processStmt(n.Then, thenBlk)
		addEdge(thenEnd, merge)
		if n.Else != nil {
			elseBlk := b.newBlock()
			addEdge(cur, elseBlk)
			elseEnd := b.processStmt(n.Else, elseBlk)
			addEdge(elseEnd, merge)
		} else {
			addEdge(cur, merge)
		}
		return merge

	case *ast.WhileStatement:
		header := b.newBlock()
		bodyBlk := b.newBlock()
		exit := b.newBlock()
		addEdge(cur, header)
		header.Statements = append(header.Statements, s)
		addEdge(header, bodyBlk)
		addEdge(header, exit)
		bodyEnd := b.processStmt(n.Body, bodyBlk)
		addEdge(bodyEnd, header)
		return exit

	case *ast.ForStatement:
		header := b.newBlock()
		bodyBlk := b.newBlock()
		exit := b.newBlock()
		addEdge(cur, header)
		header.Statements = append(header.Statements, s)
		addEdge(header, bodyBlk)
		addEdge(header, exit)
		// The increment is merged into the body-end block; no separate
		// increment block (spec §4.3).
		bodyEnd := b.processStmt(n.Body, bodyBlk)
		addEdge(bodyEnd, header)
		return exit

	case *ast.RepeatStatement:
		bodyBlk := b.newBlock()
		exit := b.newBlock()
		addEdge(cur, bodyBlk)
		bodyEnd := b.processStmt(n.Body, bodyBlk)
		if bodyEnd != nil {
			// The condition lives in the body-end block (spec §4.3).
			bodyEnd.Statements = append(bodyEnd.Statements, s)
			addEdge(bodyEnd, bodyBlk)
			addEdge(bodyEnd, exit)
		}
		return exit

	case *ast.SwitchonStatement:
		cur.Statements = append(cur.Statements, s)
		merge := b.newBlock()
		for _, c := range n.Cases {
			caseBlk := b.newBlock()
			addEdge(cur, caseBlk)
			caseEnd := b.processStmt(c.Body, caseBlk)
			addEdge(caseEnd, merge)
		}
		if n.Default != nil {
			defBlk := b.newBlock()
			addEdge(cur, defBlk)
			defEnd := b.processStmt(n.Default, defBlk)
			addEdge(defEnd, merge)
		} else {
			addEdge(cur, merge)
		}
		return merge

	case *ast.ReturnStatement, *ast.FinishStatement, *ast.GotoStatement:
		cur.Statements = append(cur.Statements, s)
		return nil

	case *ast.ResultisStatement:
		cur.Statements = append(cur.Statements, s)
		return nil

	case *ast.LabeledStatement:
		fresh := b.newBlock()
		addEdge(cur, fresh)
		b.fn.Labels[n.Name] = fresh
		return b.processStmt(n.Wrapped, fresh)

	default:
		// Straight-line statements: Assignment, RoutineCall,
		// DeclarationStatement, Break/Loop/Endcase all stay within the
		// current block.
		cur.Statements = append(cur.Statements, s)
		return cur
	}
}
