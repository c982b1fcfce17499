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

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	wire "github.com/jeroenrinzema/psql-wire"
	"github.com/lib/pq/oid"
	"go.uber.org/zap"

	"github.com/daviszhen/zonemap/pkg/parser"
	"github.com/daviszhen/zonemap/pkg/pqfile"
	"github.com/daviszhen/zonemap/pkg/prune"
	"github.com/daviszhen/zonemap/pkg/util"
)

var runCfg util.Config

func init() {
	loadConfig()
}

var defCfgFilePaths = []string{".", "etc/zonemap"}
var cfgFileName = "zonemap.toml"

func loadConfig() {
	has := false
	for _, dirPath := range defCfgFilePaths {
		fpath := filepath.Join(dirPath, cfgFileName)
		if util.FileIsValid(fpath) {
			_, err := toml.DecodeFile(fpath, &runCfg)
			if err != nil {
				util.Error("load config file failed",
					zap.String("fpath", fpath),
					zap.Error(err))
				continue
			}
			has = true
			break
		}
	}
	if !has {
		util.Error("zonemap.toml does not exist")
		os.Exit(1)
	}
	if len(runCfg.Server.Address) == 0 {
		runCfg.Server.Address = "127.0.0.1:5432"
	}
	if len(runCfg.Input.Path) == 0 {
		util.Error("no input.path in zonemap.toml, nothing to serve")
		os.Exit(1)
	}
}

func main() {
	util.Info("serve zone maps",
		zap.String("address", runCfg.Server.Address),
		zap.String("file", runCfg.Input.Path))
	err := wire.ListenAndServe(runCfg.Server.Address, handler)
	if err != nil {
		util.Error("server stopped", zap.Error(err))
		util.SyncLog()
		os.Exit(1)
	}
}

var pruneColumns = wire.Columns{
	{Name: "row_group", Oid: oid.T_varchar, Width: 16},
	{Name: "rows", Oid: oid.T_varchar, Width: 16},
	{Name: "decision", Oid: oid.T_varchar, Width: 16},
	{Name: "cause", Oid: oid.T_varchar, Width: 256},
}

// handler answers SELECT ... WHERE <filter> with one row per row
// group of the served file, telling whether the filter lets the
// group be skipped.
func handler(ctx context.Context, query string) (wire.PreparedStatements, error) {
	util.Info("incoming SQL :", zap.String("query", query))

	file, err := pqfile.Open(runCfg.Input.Path)
	if err != nil {
		return nil, err
	}

	exec := &ExecCtx{
		cfg:  &runCfg,
		file: file,
	}
	err = exec.bind(query)
	if err != nil {
		file.Close()
		return nil, err
	}

	return wire.Prepared(
		wire.NewStatement(exec.handlePrune,
			wire.WithColumns(pruneColumns),
		),
	), nil
}

type ExecCtx struct {
	cfg   *util.Config
	file  *pqfile.File
	preds []*prune.Predicate
}

func (exec *ExecCtx) bind(query string) error {
	stmts, err := parser.Parse(query)
	if err != nil {
		return err
	}
	if len(stmts) != 1 {
		return fmt.Errorf("one statement at a time, got %d", len(stmts))
	}
	selectStmt := stmts[0].GetStmt().GetSelectStmt()
	if selectStmt == nil {
		return fmt.Errorf("only select works here, the file comes from the server config")
	}
	// without a filter every group stays
	if selectStmt.GetWhereClause() == nil {
		return nil
	}
	exec.preds, err = parser.BindWhere(selectStmt, exec.file.Schema())
	return err
}

func (exec *ExecCtx) handlePrune(ctx context.Context, writer wire.DataWriter, parameters []wire.Parameter) (retErr error) {
	defer exec.file.Close()
	defer func() {
		if xre := recover(); xre != nil {
			retErr = util.ConvertPanicError(xre)
			util.Error("prune over the wire failed", zap.Error(retErr))
		}
	}()

	groups, err := exec.file.RowGroupStats()
	if err != nil {
		return err
	}
	result := prune.Evaluate(groups, exec.preds)
	for _, pred := range result.Dropped {
		util.Warn("predicate never prunes, its column keeps no order",
			zap.String("predicate", pred.String()))
	}

	footerGroups := exec.file.Footer().GetRowGroups()
	for _, dec := range result.Decisions {
		decision, cause := "read", ""
		if dec.Skip {
			decision, cause = "skip", dec.Cause.String()
		}
		err = writer.Row([]any{
			fmt.Sprintf("%d", dec.Group),
			fmt.Sprintf("%d", footerGroups[dec.Group].GetNumRows()),
			decision,
			cause,
		})
		if err != nil {
			return err
		}
	}
	return writer.Complete(result.String())
}
