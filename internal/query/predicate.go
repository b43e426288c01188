// Package query builds SQL predicates from typed terms so caller-supplied
// values are always passed as bind parameters and column names only ever come
// from compile-time constants.
package query

import (
	"strconv"
	"strings"
)

// Node is a single predicate term or a combination of terms.
type Node interface {
	write(sb *strings.Builder, args *[]interface{})
}

type containsTerm struct {
	column string
	value  string
}

type equalsTerm struct {
	column string
	value  interface{}
}

type betweenTerm struct {
	column string
	lo, hi interface{}
}

type groupNode struct {
	op       string
	children []Node
}

// Contains matches value as a case-insensitive substring of column.
func Contains(column, value string) Node {
	return containsTerm{column: column, value: value}
}

// Equals matches column for exact equality with value.
func Equals(column string, value interface{}) Node {
	return equalsTerm{column: column, value: value}
}

// Between matches column inclusively between lo and hi.
func Between(column string, lo, hi interface{}) Node {
	return betweenTerm{column: column, lo: lo, hi: hi}
}

// And combines terms into a conjunction. Nil children are skipped.
func And(children ...Node) Node {
	return group("AND", children)
}

// Or combines terms into a disjunction. Nil children are skipped.
func Or(children ...Node) Node {
	return group("OR", children)
}

func group(op string, children []Node) Node {
	kept := make([]Node, 0, len(children))
	for _, child := range children {
		if child != nil {
			kept = append(kept, child)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	if len(kept) == 1 {
		return kept[0]
	}
	return groupNode{op: op, children: kept}
}

// Compile renders the predicate tree into a SQL fragment and its bind
// arguments. A nil node compiles to an empty fragment.
func Compile(n Node) (string, []interface{}) {
	if n == nil {
		return "", nil
	}
	sb := &strings.Builder{}
	var args []interface{}
	n.write(sb, &args)
	return sb.String(), args
}

func (t containsTerm) write(sb *strings.Builder, args *[]interface{}) {
	*args = append(*args, "%"+strings.ToLower(t.value)+"%")
	sb.WriteString("LOWER(")
	sb.WriteString(t.column)
	sb.WriteString(") LIKE ")
	writePlaceholder(sb, len(*args))
}

func (t equalsTerm) write(sb *strings.Builder, args *[]interface{}) {
	*args = append(*args, t.value)
	sb.WriteString(t.column)
	sb.WriteString(" = ")
	writePlaceholder(sb, len(*args))
}

func (t betweenTerm) write(sb *strings.Builder, args *[]interface{}) {
	*args = append(*args, t.lo)
	lo := len(*args)
	*args = append(*args, t.hi)
	hi := len(*args)
	sb.WriteString(t.column)
	sb.WriteString(" BETWEEN ")
	writePlaceholder(sb, lo)
	sb.WriteString(" AND ")
	writePlaceholder(sb, hi)
}

func (g groupNode) write(sb *strings.Builder, args *[]interface{}) {
	sb.WriteString("(")
	for i, child := range g.children {
		if i > 0 {
			sb.WriteString(" ")
			sb.WriteString(g.op)
			sb.WriteString(" ")
		}
		child.write(sb, args)
	}
	sb.WriteString(")")
}

func writePlaceholder(sb *strings.Builder, n int) {
	sb.WriteString("$")
	sb.WriteString(strconv.Itoa(n))
}
