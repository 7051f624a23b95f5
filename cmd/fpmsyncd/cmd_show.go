package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/fpmsyncd/pkg/cli"
	"github.com/newtron-network/fpmsyncd/pkg/sonic"
	"github.com/newtron-network/fpmsyncd/pkg/util"
)

var (
	showTable  string
	jsonOutput bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show published routes and daemon state",
}

var showRoutesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Dump route tables from APPL_DB",
	Long: `Dump the entries of one or more APPL_DB tables written by fpmsyncd.

Examples:
  fpmsyncd show routes
  fpmsyncd show routes --table LABEL_ROUTE_TABLE
  fpmsyncd show routes --table VNET_ROUTE_TABLE,VNET_ROUTE_TUNNEL_TABLE
  fpmsyncd show routes --table SRV6_MY_SID_TABLE --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tables := util.SplitCommaSeparated(showTable)
		if len(tables) == 0 {
			return fmt.Errorf("no table given")
		}
		for _, table := range tables {
			if !knownTable(table) {
				return fmt.Errorf("unknown table %q (one of %v)", table, sonic.Tables)
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		appl := sonic.NewApplDBClient(cfg.Redis.Addr, cfg.Redis.ApplDB)
		defer appl.Close()

		all := make(map[string]map[string]map[string]string, len(tables))
		for _, table := range tables {
			entries, err := appl.Entries(ctx, table)
			if err != nil {
				return err
			}
			all[table] = entries
		}

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if len(tables) == 1 {
				return enc.Encode(all[tables[0]])
			}
			return enc.Encode(all)
		}
		if len(tables) == 1 {
			return printEntries(os.Stdout, all[tables[0]], "")
		}
		for i, table := range tables {
			if i > 0 {
				fmt.Println()
			}
			fmt.Printf("%s:\n", table)
			if err := printEntries(os.Stdout, all[table], "  "); err != nil {
				return err
			}
		}
		return nil
	},
}

var showWarmRestartCmd = &cobra.Command{
	Use:   "warm-restart",
	Short: "Show warm-restart state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		stateDB := sonic.NewStateDBClient(cfg.Redis.Addr, cfg.Redis.StateDB)
		defer stateDB.Close()

		app := cfg.WarmRestart.App
		enabled, err := stateDB.WarmRestartEnabled(ctx, app)
		if err != nil {
			return err
		}
		state, err := stateDB.WarmRestartState(ctx, app)
		if err != nil {
			return err
		}

		t := cli.NewTable(os.Stdout, "APP", "ENABLED", "STATE")
		t.Row(app, fmt.Sprintf("%t", enabled || cfg.WarmRestart.Enabled), cli.WarmState(state))
		return t.Flush()
	},
}

func init() {
	showRoutesCmd.Flags().StringVarP(&showTable, "table", "t", sonic.RouteTable, "APPL_DB table, or a comma-separated list")
	showRoutesCmd.Flags().BoolVar(&jsonOutput, "json", false, "JSON output")
	showCmd.AddCommand(showRoutesCmd, showWarmRestartCmd)
}

func knownTable(table string) bool {
	for _, t := range sonic.Tables {
		if t == table {
			return true
		}
	}
	return false
}

// printEntries prints one row per key, with next-hop columns first and the
// remaining fields collapsed into the last column.
func printEntries(w io.Writer, entries map[string]map[string]string, prefix string) error {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	t := cli.NewTable(w, "KEY", "NEXTHOP", "IFNAME", "FIELDS").WithPrefix(prefix)
	for _, k := range keys {
		f := entries[k]
		t.Row(k, f["nexthop"], f["ifname"], cli.FieldList(f, "nexthop", "ifname"))
	}
	if err := t.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s%d entries\n", prefix, t.Rows())
	return nil
}
