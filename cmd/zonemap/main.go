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
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/xlab/treeprint"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/daviszhen/zonemap/pkg/common"
	"github.com/daviszhen/zonemap/pkg/compare"
	"github.com/daviszhen/zonemap/pkg/parser"
	"github.com/daviszhen/zonemap/pkg/pqfile"
	"github.com/daviszhen/zonemap/pkg/prune"
	"github.com/daviszhen/zonemap/pkg/schema"
	"github.com/daviszhen/zonemap/pkg/stats"
	"github.com/daviszhen/zonemap/pkg/util"
)

func init() {
	cobra.OnInitialize(loadConfig)
	initRootCmd()
	initInspectCmd()
	initPruneCmd()
	initVerifyCmd()
	initStatsCmd()
	initComparatorsCmd()
}

var zonemapCfg = &util.Config{}

///root cmd

var info = "read, check and prune by the zone maps of parquet files"
var RootCmd = &cobra.Command{
	Use:          "zonemap",
	Short:        info,
	Long:         info,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("use zonemap --help or -h")
	},
}

var verbose bool

func initRootCmd() {
	RootCmd.PersistentFlags().StringVar(&zonemapCfg.Input.Path, "file", "", "parquet file to read")
	RootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "debug logging")
	viper.BindPFlag("input.path", RootCmd.PersistentFlags().Lookup("file"))
}

func initDebugOptions() {
	if verbose {
		util.SetLogLevel(zapcore.DebugLevel)
	}
	zonemapCfg.Debug.ShowFooter = viper.GetBool("debug.showFooter")
	zonemapCfg.Debug.ShowKept = viper.GetBool("debug.showKept")
	zonemapCfg.Debug.PrintDetail = viper.GetBool("debug.printDetail")
}

func initInputOptions() error {
	initDebugOptions()
	zonemapCfg.Input.Path = viper.GetString("input.path")
	if len(zonemapCfg.Input.Path) == 0 {
		return fmt.Errorf("no parquet file. use --file or input.path in %s", cfgFileName)
	}
	return nil
}

//inspect cmd

var inspectInfo = "print the schema and the zone maps of a parquet file"
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: inspectInfo,
	Long:  inspectInfo,
	RunE: func(cmd *cobra.Command, args []string) error {
		err := initInputOptions()
		if err != nil {
			return err
		}
		return runInspect()
	},
}

func initInspectCmd() {
	RootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolVar(&zonemapCfg.Debug.PrintDetail, "detail", false, "print the window of every column in every row group")
	viper.BindPFlag("debug.printDetail", inspectCmd.Flags().Lookup("detail"))
}

func runInspect() error {
	file, err := pqfile.Open(zonemapCfg.Input.Path)
	if err != nil {
		return err
	}
	defer file.Close()

	groups, err := file.RowGroupStats()
	if err != nil {
		return err
	}

	tree := treeprint.NewWithRoot(fmt.Sprintf("%s:", file.Path()))
	tree.AddMetaNode("rows", fmt.Sprintf("%d", file.NumRows()))

	schNode := tree.AddBranch("schema:")
	for i := 0; i < file.Schema().NumColumns(); i++ {
		schNode.AddNode(file.Schema().Column(i).String())
	}

	groupsNode := tree.AddBranch("row groups:")
	footerGroups := file.Footer().GetRowGroups()
	for gidx, tstats := range groups {
		gnode := groupsNode.AddMetaBranch(gidx, fmt.Sprintf("%d rows", footerGroups[gidx].GetNumRows()))
		if zonemapCfg.Debug.PrintDetail {
			printGroupWindows(gnode, file, gidx, tstats)
		}
	}
	fmt.Println(tree.String())
	return nil
}

func printGroupWindows(tree treeprint.Tree, file *pqfile.File, gidx int, tstats *stats.TableStats) {
	for i := 0; i < file.Schema().NumColumns(); i++ {
		col := file.Schema().Column(i)
		path := col.PathString()
		colStats, has := tstats.Column(path)
		if !has {
			tree.AddMetaNode(path, unorderedWindow(file, gidx, col))
			continue
		}
		tree.AddMetaNode(path, colStats.String())
		if col.PhyTyp == common.INT96 && colStats.HasMinMax() {
			minTs := colStats.Min().I96
			maxTs := colStats.Max().I96
			tree.AddMetaNode(path+" as time",
				fmt.Sprintf("min %v max %v", minTs.Time(), maxTs.Time()))
		}
	}
}

// unorderedWindow renders columns that keep no zone map. A decimal
// window still shows up decoded, it just never prunes.
func unorderedWindow(file *pqfile.File, gidx int, col *schema.Column) string {
	minVal, maxVal := file.ChunkWindow(gidx, col.PathString())
	if minVal == nil || maxVal == nil {
		return "no order, no window"
	}
	if col.CnvTyp == common.CT_DECIMAL {
		minDec, minErr := col.DecimalValue(minVal)
		maxDec, maxErr := col.DecimalValue(maxVal)
		if minErr == nil && maxErr == nil {
			return fmt.Sprintf("min %s max %s (no order)", minDec.String(), maxDec.String())
		}
	}
	return fmt.Sprintf("min %v max %v (no order)", minVal, maxVal)
}

//prune cmd

var pruneWhere string

var pruneInfo = "evaluate a filter against the zone maps"
var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: pruneInfo,
	Long:  pruneInfo,
	RunE: func(cmd *cobra.Command, args []string) error {
		err := initInputOptions()
		if err != nil {
			return err
		}
		if len(pruneWhere) == 0 {
			return fmt.Errorf("no filter. use --where")
		}
		return runPrune()
	},
}

func initPruneCmd() {
	RootCmd.AddCommand(pruneCmd)
	pruneCmd.Flags().StringVar(&pruneWhere, "where", "", "filter over the file columns, sql syntax")
	pruneCmd.Flags().BoolVar(&zonemapCfg.Debug.ShowKept, "show_kept", false, "also print the groups the filter keeps")
	pruneCmd.Flags().BoolVar(&zonemapCfg.Debug.ShowFooter, "show_footer", false, "print the windows of every group")
	viper.BindPFlag("debug.showKept", pruneCmd.Flags().Lookup("show_kept"))
	viper.BindPFlag("debug.showFooter", pruneCmd.Flags().Lookup("show_footer"))
}

func runPrune() error {
	file, err := pqfile.Open(zonemapCfg.Input.Path)
	if err != nil {
		return err
	}
	defer file.Close()

	preds, err := parser.ParseFilter(pruneWhere, file.Schema())
	if err != nil {
		return err
	}
	groups, err := file.RowGroupStats()
	if err != nil {
		return err
	}

	result := prune.Evaluate(groups, preds)
	fmt.Println(result.String())
	for _, dec := range result.Decisions {
		if dec.Skip {
			fmt.Printf("row group %d skipped by %v\n", dec.Group, dec.Cause)
		} else if zonemapCfg.Debug.ShowKept {
			fmt.Printf("row group %d kept\n", dec.Group)
		}
	}
	for _, pred := range result.Dropped {
		fmt.Printf("%v never prunes, its column keeps no order\n", pred)
	}

	if zonemapCfg.Debug.ShowFooter {
		tree := treeprint.NewWithRoot("windows:")
		for gidx, tstats := range groups {
			gnode := tree.AddMetaBranch(gidx, "")
			printGroupWindows(gnode, file, gidx, tstats)
		}
		fmt.Println(tree.String())
	}
	return nil
}

//verify cmd

var verifyInfo = "recompute the zone maps from the data pages and check the footer"
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: verifyInfo,
	Long:  verifyInfo,
	RunE: func(cmd *cobra.Command, args []string) error {
		err := initInputOptions()
		if err != nil {
			return err
		}
		return runVerify()
	},
}

func initVerifyCmd() {
	RootCmd.AddCommand(verifyCmd)
}

func runVerify() error {
	file, err := pqfile.Open(zonemapCfg.Input.Path)
	if err != nil {
		return err
	}
	defer file.Close()

	bad, err := file.VerifyStats()
	if err != nil {
		return err
	}
	if len(bad) == 0 {
		fmt.Printf("%s: footer statistics match the data pages\n", file.Path())
		return nil
	}
	for _, mis := range bad {
		fmt.Println(mis.String())
	}
	return fmt.Errorf("%s: footer statistics disagree in %d places", file.Path(), len(bad))
}

//stats cmd

var statsScan bool
var statsJsonPath string
var statsLoadPath string

var statsInfo = "merge the zone maps of a file, save or reload them"
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: statsInfo,
	Long:  statsInfo,
	RunE: func(cmd *cobra.Command, args []string) error {
		err := initInputOptions()
		if err != nil {
			return err
		}
		initStatsOptions()
		if len(statsLoadPath) > 0 {
			return runStatsLoad()
		}
		return runStats()
	},
}

func initStatsOptions() {
	zonemapCfg.Stats.Parallelism = viper.GetInt("stats.parallelism")
	zonemapCfg.Stats.OutPath = viper.GetString("stats.outPath")
}

func initStatsCmd() {
	RootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&statsScan, "scan", false, "rebuild from the data pages instead of the footer")
	statsCmd.Flags().StringVar(&statsJsonPath, "json", "", "dump the per group zone maps as json to this file")
	statsCmd.Flags().StringVar(&statsLoadPath, "load", "", "print zone maps saved earlier instead of reading the footer")
	statsCmd.Flags().IntVar(&zonemapCfg.Stats.Parallelism, "parallelism", 0, "row groups decoded at once, 0 means all")
	statsCmd.Flags().StringVar(&zonemapCfg.Stats.OutPath, "out", "", "save the merged zone maps to this file")
	viper.BindPFlag("stats.parallelism", statsCmd.Flags().Lookup("parallelism"))
	viper.BindPFlag("stats.outPath", statsCmd.Flags().Lookup("out"))
}

func runStats() error {
	file, err := pqfile.Open(zonemapCfg.Input.Path)
	if err != nil {
		return err
	}
	defer file.Close()

	var groups []*stats.TableStats
	if statsScan {
		groups, err = file.ScanStats()
	} else {
		groups, err = file.RowGroupStatsN(zonemapCfg.Stats.Parallelism)
	}
	if err != nil {
		return err
	}

	merged := stats.NewTableStats(file.Schema())
	for _, tstats := range groups {
		merged.Merge(tstats)
	}
	printTableStats(merged)

	if len(statsJsonPath) > 0 {
		err = util.ToJson(dumpGroups(file, groups), statsJsonPath)
		if err != nil {
			return err
		}
		util.Info("zone maps dumped", zap.String("path", statsJsonPath))
	}
	if len(zonemapCfg.Stats.OutPath) > 0 {
		err = merged.SaveToFile(zonemapCfg.Stats.OutPath)
		if err != nil {
			return err
		}
		util.Info("zone maps saved", zap.String("path", zonemapCfg.Stats.OutPath))
	}
	return nil
}

func runStatsLoad() error {
	file, err := pqfile.Open(zonemapCfg.Input.Path)
	if err != nil {
		return err
	}
	defer file.Close()

	tstats, err := stats.LoadTableStatsFromFile(statsLoadPath, file.Schema())
	if err != nil {
		return err
	}
	printTableStats(tstats)
	return nil
}

func printTableStats(tstats *stats.TableStats) {
	tree := treeprint.NewWithRoot("zone maps:")
	for _, path := range tstats.Paths() {
		colStats, has := tstats.Column(path)
		if has {
			tree.AddMetaNode(path, colStats.String())
		}
	}
	fmt.Println(tree.String())
}

type columnStatsDump struct {
	Column   string `json:"column"`
	Min      string `json:"min,omitempty"`
	Max      string `json:"max,omitempty"`
	Nulls    uint64 `json:"nulls"`
	Values   uint64 `json:"values"`
	Distinct uint64 `json:"distinct"`
}

type groupStatsDump struct {
	Group   int               `json:"group"`
	Rows    int64             `json:"rows"`
	Columns []columnStatsDump `json:"columns"`
}

func dumpGroups(file *pqfile.File, groups []*stats.TableStats) []groupStatsDump {
	footerGroups := file.Footer().GetRowGroups()
	ret := make([]groupStatsDump, 0, len(groups))
	for gidx, tstats := range groups {
		dump := groupStatsDump{
			Group: gidx,
			Rows:  footerGroups[gidx].GetNumRows(),
		}
		for _, path := range tstats.Paths() {
			colStats, has := tstats.Column(path)
			if !has {
				continue
			}
			colDump := columnStatsDump{
				Column:   path,
				Nulls:    colStats.NullCount(),
				Values:   colStats.ValueCount(),
				Distinct: colStats.DistinctCount(),
			}
			if colStats.HasMinMax() {
				colDump.Min = colStats.Min().String()
				colDump.Max = colStats.Max().String()
			}
			dump.Columns = append(dump.Columns, colDump)
		}
		ret = append(ret, dump)
	}
	return ret
}

//comparators cmd

var comparatorsInfo = "list the registered comparators"
var comparatorsCmd = &cobra.Command{
	Use:   "comparators",
	Short: comparatorsInfo,
	Long:  comparatorsInfo,
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range compare.Names() {
			fmt.Println(name)
		}
	},
}

func initComparatorsCmd() {
	RootCmd.AddCommand(comparatorsCmd)
}

var defCfgFilePaths = []string{".", "etc/zonemap"}
var cfgFileName = "zonemap.toml"

func loadConfig() {
	for _, dirPath := range defCfgFilePaths {
		fpath := filepath.Join(dirPath, cfgFileName)
		if util.FileIsValid(fpath) {
			viper.SetConfigFile(fpath)
			err := viper.ReadInConfig()
			if err != nil {
				util.Error("viper load config file failed",
					zap.String("fpath", fpath),
					zap.Error(err))
				continue
			}
			return
		}
	}
	util.Debug("zonemap.toml does not exist, flags only")
}

func main() {
	err := RootCmd.Execute()
	util.SyncLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
