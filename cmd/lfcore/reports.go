package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"lfcore/infra/store"
	"lfcore/service"
)

var stateFlag string

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List stored run reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		outbox, err := store.Open(cfg.Store.Dir, nil)
		if err != nil {
			return err
		}
		defer outbox.Close()

		visit := outbox.Scan
		if stateFlag != "" {
			st, err := store.ParseState(stateFlag)
			if err != nil {
				return err
			}
			visit = func(fn func(store.Record) error) error { return outbox.ScanByState(st, fn) }
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN\tSTATE\tRETRIES\tSTRUCTURE\tRECLAIMER\tPOPPED\tPASSED")
		err = visit(func(r store.Record) error {
			rep, err := service.DecodeReport(r.Payload)
			if err != nil {
				fmt.Fprintf(tw, "%d\t%s\t%d\t?\t?\t?\t%v\n", r.RunID, r.State, r.Retries, err)
				return nil
			}
			fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%d\t%v\n",
				r.RunID, r.State, r.Retries, rep.Structure, rep.Reclaimer, rep.Popped, rep.Passed)
			return nil
		})
		if err != nil {
			return err
		}
		return tw.Flush()
	},
}

func init() {
	reportsCmd.Flags().StringVar(&stateFlag, "state", "", "Only show reports in this state (NEW, SENT, ACKED, FAILED)")
}
