// Copyright 2023-2024 daviszhen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v5"

	"github.com/daviszhen/zonemap/pkg/common"
	"github.com/daviszhen/zonemap/pkg/prune"
	"github.com/daviszhen/zonemap/pkg/schema"
)

const filterTable = "t"

func Parse(s string) ([]*pg_query.RawStmt, error) {
	result, err := pg_query.Parse(s)
	if err != nil {
		return nil, err
	}
	return result.Stmts, nil
}

// ParseFilter reads a bare boolean filter over the columns of sch and
// binds it to pruning conjuncts. only AND, comparison operators,
// BETWEEN and IN survive the binding. OR and NOT do not prune and are
// rejected.
func ParseFilter(filter string, sch *schema.Schema) ([]*prune.Predicate, error) {
	stmts, err := Parse(fmt.Sprintf("SELECT * FROM %s WHERE %s", filterTable, filter))
	if err != nil {
		return nil, err
	}
	if len(stmts) != 1 {
		return nil, fmt.Errorf("filter %q holds %d statements", filter, len(stmts))
	}
	selectStmt := stmts[0].GetStmt().GetSelectStmt()
	if selectStmt == nil {
		return nil, fmt.Errorf("filter %q is no filter", filter)
	}
	where := selectStmt.GetWhereClause()
	if where == nil {
		return nil, fmt.Errorf("filter %q is empty", filter)
	}
	binder := &filterBinder{sch: sch}
	return binder.bindConjuncts(where)
}

// BindWhere binds the where clause of an already parsed select.
func BindWhere(selectStmt *pg_query.SelectStmt, sch *schema.Schema) ([]*prune.Predicate, error) {
	where := selectStmt.GetWhereClause()
	if where == nil {
		return nil, fmt.Errorf("select has no where clause")
	}
	binder := &filterBinder{sch: sch}
	return binder.bindConjuncts(where)
}

type filterBinder struct {
	sch *schema.Schema
}

func (b *filterBinder) bindConjuncts(node *pg_query.Node) ([]*prune.Predicate, error) {
	switch realExpr := node.GetNode().(type) {
	case *pg_query.Node_BoolExpr:
		return b.bindBoolExpr(realExpr.BoolExpr)
	case *pg_query.Node_AExpr:
		return b.bindAExpr(realExpr.AExpr)
	default:
		return nil, fmt.Errorf("unexpected node type %T in filter", realExpr)
	}
}

func (b *filterBinder) bindBoolExpr(expr *pg_query.BoolExpr) ([]*prune.Predicate, error) {
	switch expr.Boolop {
	case pg_query.BoolExprType_AND_EXPR:
		preds := make([]*prune.Predicate, 0, len(expr.Args))
		for _, arg := range expr.Args {
			sub, err := b.bindConjuncts(arg)
			if err != nil {
				return nil, err
			}
			preds = append(preds, sub...)
		}
		return preds, nil
	case pg_query.BoolExprType_OR_EXPR:
		return nil, fmt.Errorf("or does not prune")
	case pg_query.BoolExprType_NOT_EXPR:
		return nil, fmt.Errorf("not does not prune")
	default:
		return nil, fmt.Errorf("unexpected bool op %v", expr.Boolop)
	}
}

func flipOp(op prune.PredOpType) prune.PredOpType {
	switch op {
	case prune.POT_Lt:
		return prune.POT_Gt
	case prune.POT_Le:
		return prune.POT_Ge
	case prune.POT_Gt:
		return prune.POT_Lt
	case prune.POT_Ge:
		return prune.POT_Le
	default:
		return op
	}
}

func (b *filterBinder) bindAExpr(expr *pg_query.A_Expr) ([]*prune.Predicate, error) {
	switch expr.Kind {
	case pg_query.A_Expr_Kind_AEXPR_IN:
		pred, err := b.bindInExpr(expr)
		if err != nil {
			return nil, err
		}
		return []*prune.Predicate{pred}, nil
	case pg_query.A_Expr_Kind_AEXPR_BETWEEN:
		return b.bindBetweenExpr(expr)
	case pg_query.A_Expr_Kind_AEXPR_OP:
	default:
		return nil, fmt.Errorf("unexpected kind %v in filter", expr.Kind)
	}

	if len(expr.Name) == 0 {
		return nil, fmt.Errorf("operator without name in filter")
	}
	opName := expr.Name[0].GetString_().GetSval()
	var op prune.PredOpType
	switch opName {
	case "=":
		op = prune.POT_Eq
	case "<>", "!=":
		op = prune.POT_Ne
	case "<":
		op = prune.POT_Lt
	case "<=":
		op = prune.POT_Le
	case ">":
		op = prune.POT_Gt
	case ">=":
		op = prune.POT_Ge
	default:
		return nil, fmt.Errorf("unexpected operator %q in filter", opName)
	}

	col, colErr := b.bindColumnRef(expr.Lexpr)
	if colErr == nil {
		val, err := b.bindConst(expr.Rexpr, col)
		if err != nil {
			return nil, err
		}
		pred, err := prune.NewPredicate(col, op, val)
		if err != nil {
			return nil, err
		}
		return []*prune.Predicate{pred}, nil
	}
	// the flipped form, bound on the left
	col, err := b.bindColumnRef(expr.Rexpr)
	if err != nil {
		return nil, colErr
	}
	val, err := b.bindConst(expr.Lexpr, col)
	if err != nil {
		return nil, err
	}
	pred, err := prune.NewPredicate(col, flipOp(op), val)
	if err != nil {
		return nil, err
	}
	return []*prune.Predicate{pred}, nil
}

func (b *filterBinder) bindInExpr(expr *pg_query.A_Expr) (*prune.Predicate, error) {
	if len(expr.Name) > 0 && expr.Name[0].GetString_().GetSval() == "<>" {
		return nil, fmt.Errorf("not in does not prune")
	}
	col, err := b.bindColumnRef(expr.Lexpr)
	if err != nil {
		return nil, err
	}
	list := expr.Rexpr.GetList()
	if list == nil {
		return nil, fmt.Errorf("in bound of %s is no list", col.PathString())
	}
	vals := make([]*common.Value, 0, len(list.Items))
	for _, item := range list.Items {
		val, err := b.bindConst(item, col)
		if err != nil {
			return nil, err
		}
		vals = append(vals, val)
	}
	return prune.NewPredicate(col, prune.POT_In, vals...)
}

func (b *filterBinder) bindBetweenExpr(expr *pg_query.A_Expr) ([]*prune.Predicate, error) {
	col, err := b.bindColumnRef(expr.Lexpr)
	if err != nil {
		return nil, err
	}
	list := expr.Rexpr.GetList()
	if list == nil || len(list.Items) != 2 {
		return nil, fmt.Errorf("between on %s needs two bounds", col.PathString())
	}
	lo, err := b.bindConst(list.Items[0], col)
	if err != nil {
		return nil, err
	}
	hi, err := b.bindConst(list.Items[1], col)
	if err != nil {
		return nil, err
	}
	ge, err := prune.NewPredicate(col, prune.POT_Ge, lo)
	if err != nil {
		return nil, err
	}
	le, err := prune.NewPredicate(col, prune.POT_Le, hi)
	if err != nil {
		return nil, err
	}
	return []*prune.Predicate{ge, le}, nil
}

func (b *filterBinder) bindColumnRef(node *pg_query.Node) (*schema.Column, error) {
	colRef := node.GetColumnRef()
	if colRef == nil {
		return nil, fmt.Errorf("%s is no column", node.String())
	}
	parts := make([]string, 0, len(colRef.Fields))
	for _, field := range colRef.Fields {
		sval := field.GetString_()
		if sval == nil {
			return nil, fmt.Errorf("unexpected field %v in column ref", field)
		}
		parts = append(parts, sval.GetSval())
	}
	// drop the filter table alias in front of the path
	if len(parts) > 1 && parts[0] == filterTable {
		parts = parts[1:]
	}
	return b.sch.Resolve(strings.Join(parts, "."))
}

func (b *filterBinder) bindConst(
	node *pg_query.Node,
	col *schema.Column) (*common.Value, error) {
	if col.CnvTyp == common.CT_DECIMAL {
		// a literal would bind to the unscaled integer and lie
		return nil, fmt.Errorf("decimal column %s takes no bound", col.PathString())
	}
	aconst := node.GetAConst()
	if aconst == nil {
		return nil, fmt.Errorf("bound of %s is no constant", col.PathString())
	}
	switch realVal := aconst.GetVal().(type) {
	case *pg_query.A_Const_Ival:
		return b.coerceInt(col, int64(realVal.Ival.Ival))
	case *pg_query.A_Const_Fval:
		return b.coerceNumeric(col, realVal.Fval.Fval)
	case *pg_query.A_Const_Sval:
		return b.coerceString(col, realVal.Sval.Sval)
	case *pg_query.A_Const_Boolval:
		if col.PhyTyp != common.BOOLEAN {
			return nil, fmt.Errorf("bool bound does not fit %s of %v",
				col.PathString(), col.PhyTyp)
		}
		return common.NewBoolValue(realVal.Boolval.Boolval), nil
	default:
		return nil, fmt.Errorf("unexpected constant %T for %s", realVal, col.PathString())
	}
}

func (b *filterBinder) coerceInt(col *schema.Column, ival int64) (*common.Value, error) {
	switch col.PhyTyp {
	case common.INT32:
		if ival >= math.MinInt32 && ival <= math.MaxInt32 {
			return common.NewInt32Value(int32(ival)), nil
		}
		// the upper half of an unsigned column
		if col.SortOrder() == common.SortUnsigned &&
			ival >= 0 && ival <= math.MaxUint32 {
			return common.NewInt32Value(int32(uint32(ival))), nil
		}
		return nil, fmt.Errorf("%d does not fit %s of %v",
			ival, col.PathString(), col.PhyTyp)
	case common.INT64:
		return common.NewInt64Value(ival), nil
	case common.FLOAT:
		return common.NewFloatValue(float32(ival)), nil
	case common.DOUBLE:
		return common.NewDoubleValue(float64(ival)), nil
	default:
		return nil, fmt.Errorf("integer bound does not fit %s of %v",
			col.PathString(), col.PhyTyp)
	}
}

// literals beyond int32 arrive as numeric strings
func (b *filterBinder) coerceNumeric(col *schema.Column, s string) (*common.Value, error) {
	switch col.PhyTyp {
	case common.FLOAT:
		fval, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, err
		}
		return common.NewFloatValue(float32(fval)), nil
	case common.DOUBLE:
		fval, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		return common.NewDoubleValue(fval), nil
	case common.INT32, common.INT64:
		ival, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			if col.PhyTyp == common.INT64 && col.SortOrder() == common.SortUnsigned {
				uval, uerr := strconv.ParseUint(s, 10, 64)
				if uerr != nil {
					return nil, err
				}
				return common.NewInt64Value(int64(uval)), nil
			}
			return nil, err
		}
		return b.coerceInt(col, ival)
	default:
		return nil, fmt.Errorf("numeric bound does not fit %s of %v",
			col.PathString(), col.PhyTyp)
	}
}

func (b *filterBinder) coerceString(col *schema.Column, s string) (*common.Value, error) {
	switch col.PhyTyp {
	case common.BYTE_ARRAY:
		return common.NewBytesValue(common.BYTE_ARRAY, []byte(s)), nil
	case common.FIXED_LEN_BYTE_ARRAY:
		if len(s) != col.TypeLen {
			return nil, fmt.Errorf("bound of %s needs %d bytes, got %d",
				col.PathString(), col.TypeLen, len(s))
		}
		return common.NewBytesValue(common.FIXED_LEN_BYTE_ARRAY, []byte(s)), nil
	default:
		return nil, fmt.Errorf("string bound does not fit %s of %v",
			col.PathString(), col.PhyTyp)
	}
}
