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

package compare

import (
	"fmt"

	"github.com/tidwall/btree"

	"github.com/daviszhen/zonemap/pkg/util"
)

// ready made comparators of the common pairs.
var (
	DefaultBoolean   Comparator = lessBoolOp{}
	DefaultInt32     Comparator = lessInt32Op{}
	DefaultInt64     Comparator = lessInt64Op{}
	DefaultInt96     Comparator = lessInt96Op{}
	DefaultFloat     Comparator = lessFloatOp{}
	DefaultDouble    Comparator = lessDoubleOp{}
	DefaultByteArray Comparator = lessSignedBytesOp{}
	DefaultFLBA      Comparator = lessSignedBytesOp{}

	UnsignedInt32     Comparator = lessUint32Op{}
	UnsignedInt64     Comparator = lessUint64Op{}
	UnsignedInt96     Comparator = lessUint96Op{}
	UnsignedByteArray Comparator = lessBytesOp{}
	UnsignedFLBA      Comparator = lessBytesOp{}
)

type namedComparator = util.Pair[string, Comparator]

var registry *btree.BTreeG[namedComparator]

func init() {
	registry = btree.NewBTreeG[namedComparator](
		func(a, b namedComparator) bool {
			return a.First < b.First
		})
	for _, ent := range []namedComparator{
		{First: "default_boolean", Second: DefaultBoolean},
		{First: "default_int32", Second: DefaultInt32},
		{First: "default_int64", Second: DefaultInt64},
		{First: "default_int96", Second: DefaultInt96},
		{First: "default_float", Second: DefaultFloat},
		{First: "default_double", Second: DefaultDouble},
		{First: "default_byte_array", Second: DefaultByteArray},
		{First: "default_flba", Second: DefaultFLBA},
		{First: "unsigned_int32", Second: UnsignedInt32},
		{First: "unsigned_int64", Second: UnsignedInt64},
		{First: "unsigned_int96", Second: UnsignedInt96},
		{First: "unsigned_byte_array", Second: UnsignedByteArray},
		{First: "unsigned_flba", Second: UnsignedFLBA},
	} {
		registry.Set(ent)
	}
}

// Register adds a caller supplied comparator under a fresh name.
func Register(name string, cmp Comparator) error {
	if len(name) == 0 || cmp == nil {
		return fmt.Errorf("bad comparator registration")
	}
	_, has := registry.Get(namedComparator{First: name})
	if has {
		return fmt.Errorf("comparator %s already registered", name)
	}
	registry.Set(namedComparator{First: name, Second: cmp})
	return nil
}

func Lookup(name string) (Comparator, bool) {
	ent, has := registry.Get(namedComparator{First: name})
	if !has {
		return nil, false
	}
	return ent.Second, true
}

// Names lists the registered comparators in name order.
func Names() []string {
	names := make([]string, 0, registry.Len())
	registry.Scan(func(ent namedComparator) bool {
		names = append(names, ent.First)
		return true
	})
	return names
}
