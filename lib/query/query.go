// Copyright 2018 Tamás Demeter-Haludka
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package query builds SELECT statements for the resource listing endpoints.
//
// The pagination, sorting and filtering strategies of the kit are expressed as
// transformations on a Select. The builder only renders SQL text with Postgres
// placeholders; executing it stays with the resource delegates and lib/db.
package query

import (
	"strconv"
	"strings"
)

// Args collects placeholder values while a statement is rendered.
type Args struct {
	values []interface{}
}

// Next registers a value and returns its placeholder.
func (a *Args) Next(v interface{}) string {
	a.values = append(a.values, v)
	return "$" + strconv.Itoa(len(a.values))
}

// Values returns the collected placeholder values in order.
func (a *Args) Values() []interface{} {
	return a.values
}

// Cond is a single WHERE condition.
type Cond interface {
	SQL(args *Args) string
}

type binaryCond struct {
	column string
	op     string
	value  interface{}
}

func (c binaryCond) SQL(args *Args) string {
	return c.column + " " + c.op + " " + args.Next(c.value)
}

func Eq(column string, value interface{}) Cond {
	return binaryCond{column, "=", value}
}

func NotEq(column string, value interface{}) Cond {
	return binaryCond{column, "<>", value}
}

func Lt(column string, value interface{}) Cond {
	return binaryCond{column, "<", value}
}

func Lte(column string, value interface{}) Cond {
	return binaryCond{column, "<=", value}
}

func Gt(column string, value interface{}) Cond {
	return binaryCond{column, ">", value}
}

func Gte(column string, value interface{}) Cond {
	return binaryCond{column, ">=", value}
}

func Like(column string, value interface{}) Cond {
	return binaryCond{column, "LIKE", value}
}

type inCond struct {
	column string
	values []interface{}
}

func (c inCond) SQL(args *Args) string {
	if len(c.values) == 0 {
		return "FALSE"
	}

	placeholders := make([]string, len(c.values))
	for i, v := range c.values {
		placeholders[i] = args.Next(v)
	}

	return c.column + " IN (" + strings.Join(placeholders, ", ") + ")"
}

func In(column string, values ...interface{}) Cond {
	return inCond{column, values}
}

type falseCond struct{}

func (c falseCond) SQL(args *Args) string {
	return "FALSE"
}

// False matches nothing. Filters use it to short-circuit empty value lists.
func False() Cond {
	return falseCond{}
}

type rawCond struct {
	sql    string
	values []interface{}
}

func (c rawCond) SQL(args *Args) string {
	sql := c.sql
	for _, v := range c.values {
		sql = strings.Replace(sql, "?", args.Next(v), 1)
	}

	return sql
}

// Raw is an escape hatch for conditions the combinators cannot express.
//
// Value placeholders are written as ? and rewritten to Postgres placeholders.
func Raw(sql string, values ...interface{}) Cond {
	return rawCond{sql, values}
}

type listCond struct {
	op    string
	conds []Cond
}

func (c listCond) SQL(args *Args) string {
	switch len(c.conds) {
	case 0:
		return ""
	case 1:
		return c.conds[0].SQL(args)
	}

	parts := make([]string, 0, len(c.conds))
	for _, cond := range c.conds {
		if sql := cond.SQL(args); sql != "" {
			parts = append(parts, "("+sql+")")
		}
	}

	return strings.Join(parts, " "+c.op+" ")
}

func And(conds ...Cond) Cond {
	return listCond{"AND", conds}
}

func Or(conds ...Cond) Cond {
	return listCond{"OR", conds}
}

// Ordering is one ORDER BY entry.
type Ordering struct {
	Column string
	Asc    bool
}

// Select is a SELECT statement under construction.
type Select struct {
	table     string
	columns   []string
	conds     []Cond
	orderings []Ordering
	limit     int
	offset    int
}

// NewSelect starts a SELECT for the given table and columns.
func NewSelect(table string, columns ...string) *Select {
	return &Select{
		table:   table,
		columns: columns,
		limit:   -1,
		offset:  -1,
	}
}

// Where adds a condition. Conditions are ANDed together. Nil is ignored.
func (s *Select) Where(cond Cond) *Select {
	if cond != nil {
		s.conds = append(s.conds, cond)
	}

	return s
}

// OrderBy appends an ORDER BY entry.
func (s *Select) OrderBy(column string, asc bool) *Select {
	s.orderings = append(s.orderings, Ordering{Column: column, Asc: asc})

	return s
}

// Orderings returns the ORDER BY entries added so far.
func (s *Select) Orderings() []Ordering {
	return s.orderings[:]
}

func (s *Select) Limit(limit int) *Select {
	s.limit = limit

	return s
}

func (s *Select) Offset(offset int) *Select {
	s.offset = offset

	return s
}

// Build renders the statement and its placeholder values.
func (s *Select) Build() (string, []interface{}) {
	args := &Args{}
	sql := "SELECT " + strings.Join(s.columns, ", ") + " FROM " + s.table

	if where := (listCond{"AND", s.conds}).SQL(args); where != "" {
		sql += " WHERE " + where
	}

	if len(s.orderings) > 0 {
		parts := make([]string, len(s.orderings))
		for i, o := range s.orderings {
			dir := " ASC"
			if !o.Asc {
				dir = " DESC"
			}
			parts[i] = o.Column + dir
		}
		sql += " ORDER BY " + strings.Join(parts, ", ")
	}

	if s.limit >= 0 {
		sql += " LIMIT " + strconv.Itoa(s.limit)
	}

	if s.offset > 0 {
		sql += " OFFSET " + strconv.Itoa(s.offset)
	}

	return sql, args.Values()
}
