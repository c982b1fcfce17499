package prune

import (
	"fmt"
	"strings"

	"github.com/daviszhen/zonemap/pkg/common"
	"github.com/daviszhen/zonemap/pkg/schema"
	"github.com/daviszhen/zonemap/pkg/stats"
	"github.com/daviszhen/zonemap/pkg/util"
)

type PredOpType int

const (
	POT_Eq PredOpType = iota
	POT_Ne
	POT_Lt
	POT_Le
	POT_Gt
	POT_Ge
	POT_In
)

var potToStr = map[PredOpType]string{
	POT_Eq: "=",
	POT_Ne: "<>",
	POT_Lt: "<",
	POT_Le: "<=",
	POT_Gt: ">",
	POT_Ge: ">=",
	POT_In: "in",
}

func (op PredOpType) String() string {
	if s, has := potToStr[op]; has {
		return s
	}
	panic(fmt.Sprintf("usp %d", op))
}

// Predicate is one conjunct of a filter. the bound values already
// carry the physical type of the column.
type Predicate struct {
	Col    *schema.Column
	Op     PredOpType
	Values []*common.Value
}

func NewPredicate(
	col *schema.Column,
	op PredOpType,
	vals ...*common.Value) (*Predicate, error) {
	if col == nil {
		return nil, fmt.Errorf("predicate without column")
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("predicate on %s without bound", col.PathString())
	}
	if op != POT_In && len(vals) != 1 {
		return nil, fmt.Errorf("%s %v takes one bound, got %d",
			col.PathString(), op, len(vals))
	}
	for _, val := range vals {
		if val == nil {
			return nil, fmt.Errorf("predicate on %s with nil bound", col.PathString())
		}
		if val.Typ != col.PhyTyp {
			return nil, fmt.Errorf("bound %v does not fit column %s of %v",
				val.Typ, col.PathString(), col.PhyTyp)
		}
	}
	return &Predicate{Col: col, Op: op, Values: vals}, nil
}

func (pred *Predicate) String() string {
	if pred.Op == POT_In {
		items := make([]string, 0, len(pred.Values))
		for _, val := range pred.Values {
			items = append(items, val.String())
		}
		return fmt.Sprintf("%s in (%s)",
			pred.Col.PathString(), strings.Join(items, ", "))
	}
	return fmt.Sprintf("%s %v %s",
		pred.Col.PathString(), pred.Op, pred.Values[0].String())
}

// window [min, max] provably excludes the bound
func outsideWindow(
	cmp func(left, right *common.Value) bool,
	minVal, maxVal, bound *common.Value) bool {
	return cmp(bound, minVal) || cmp(maxVal, bound)
}

// CanSkip reports that no row of the chunk behind colStats can
// satisfy pred. false means "cannot prove", never "rows match".
func CanSkip(colStats *stats.ColumnStats, pred *Predicate) bool {
	if colStats == nil {
		return false
	}
	// every row NULL, comparisons match nothing
	if colStats.ValueCount() == 0 && colStats.NullCount() > 0 {
		return true
	}
	if !colStats.HasMinMax() {
		return false
	}
	if pred.Values[0].Typ != colStats.Column().PhyTyp {
		return false
	}
	cmp := colStats.Comparator().LessThan
	minVal := colStats.Min()
	maxVal := colStats.Max()
	bound := pred.Values[0]
	switch pred.Op {
	case POT_Eq:
		return outsideWindow(cmp, minVal, maxVal, bound)
	case POT_Ne:
		// only a window collapsed onto the bound excludes <>
		return !cmp(minVal, bound) && !cmp(bound, minVal) &&
			!cmp(maxVal, bound) && !cmp(bound, maxVal)
	case POT_Lt:
		return !cmp(minVal, bound)
	case POT_Le:
		return cmp(bound, minVal)
	case POT_Gt:
		return !cmp(bound, maxVal)
	case POT_Ge:
		return cmp(maxVal, bound)
	case POT_In:
		for _, val := range pred.Values {
			if !outsideWindow(cmp, minVal, maxVal, val) {
				return false
			}
		}
		return true
	default:
		panic("usp")
	}
}

// CanSkipGroup prunes the group when any conjunct alone rules it out.
func CanSkipGroup(
	tstats *stats.TableStats,
	preds []*Predicate) (bool, *Predicate) {
	for _, pred := range preds {
		colStats, has := tstats.Column(pred.Col.PathString())
		if !has {
			continue
		}
		if CanSkip(colStats, pred) {
			return true, pred
		}
	}
	return false, nil
}

type Decision struct {
	Group int
	Skip  bool
	// conjunct that ruled the group out
	Cause *Predicate
}

type Result struct {
	Decisions []*Decision
	Kept      int
	Skipped   int
	// predicates on columns without an order. they never prune.
	Dropped []*Predicate
}

func (result *Result) String() string {
	return fmt.Sprintf("kept %d skipped %d of %d row groups",
		result.Kept, result.Skipped, len(result.Decisions))
}

// Evaluate runs the conjuncts over the per group stats. groups keep
// their position in Decisions.
func Evaluate(groups []*stats.TableStats, preds []*Predicate) *Result {
	result := &Result{}
	usable := util.CopyTo(preds)
	usable = util.RemoveIf(usable, func(pred *Predicate) bool {
		if pred.Col.SortOrder() == common.SortUnknown {
			result.Dropped = append(result.Dropped, pred)
			return true
		}
		return false
	})
	for i, group := range groups {
		skip, cause := CanSkipGroup(group, usable)
		result.Decisions = append(result.Decisions, &Decision{
			Group: i,
			Skip:  skip,
			Cause: cause,
		})
		if skip {
			result.Skipped++
		} else {
			result.Kept++
		}
	}
	return result
}
