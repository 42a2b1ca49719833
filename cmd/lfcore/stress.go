package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"lfcore/infra/kafka"
	"lfcore/infra/store"
	"lfcore/jobs/publisher"
	"lfcore/log"
	"lfcore/service"
)

var (
	structureFlag   string
	producersFlag   int
	consumersFlag   int
	perProducerFlag int
	sequentialFlag  bool
	noStoreFlag     bool
	publishFlag     bool
)

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Run a producer/consumer scenario and verify the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		sc := service.Scenario{
			Structure:   cfg.Stress.Structure,
			Producers:   cfg.Stress.Producers,
			Consumers:   cfg.Stress.Consumers,
			PerProducer: cfg.Stress.PerProducer,
			Sequential:  sequentialFlag,
		}
		if flags.Changed("structure") {
			sc.Structure = structureFlag
		}
		if flags.Changed("producers") {
			sc.Producers = producersFlag
		}
		if flags.Changed("consumers") {
			sc.Consumers = consumersFlag
		}
		if flags.Changed("per-producer") {
			sc.PerProducer = perProducerFlag
		}

		var outbox *store.Outbox
		var rs service.ReportStore
		if !noStoreFlag {
			outbox, err = store.Open(cfg.Store.Dir, nil)
			if err != nil {
				return err
			}
			defer outbox.Close()
			rs = outbox
		}

		w, err := service.NewWorkload(coreOptions(cfg.Core), nil, rs)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Stress.Timeout)
		defer cancel()

		rep, err := w.Run(ctx, sc)
		if err != nil {
			return err
		}
		out, err := rep.Encode()
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		if rep.Passed {
			fmt.Fprintln(os.Stderr, color.GreenString("PASS run %d: %s/%s popped %d in %s",
				rep.RunID, rep.Structure, rep.Reclaimer, rep.Popped, rep.Duration))
		} else {
			fmt.Fprintln(os.Stderr, color.RedString("FAIL run %d: duplicates=%d missing=%d order=%d",
				rep.RunID, rep.Duplicates, rep.Missing, rep.OrderViolations))
		}

		if publishFlag && outbox != nil {
			kc, ok := sinkConfig(cfg.Publish)
			if !ok {
				log.WarningLog.Printf("--publish given but publish.sink is none")
			} else {
				sink, err := kafka.NewSink(kc)
				if err != nil {
					return err
				}
				pub := publisher.New(outbox, sink, cfg.Publish.Interval, int(cfg.Publish.MaxRetry))
				defer pub.Close()
				n, err := pub.Once(ctx)
				if err != nil {
					return err
				}
				log.InfoLog.Printf("published %d report(s)", n)
			}
		}

		if !rep.Passed {
			return errors.Newf("run %d failed verification", rep.RunID)
		}
		return nil
	},
}

func init() {
	f := stressCmd.Flags()
	f.StringVarP(&structureFlag, "structure", "s", "stack", "Structure to drive: stack or queue")
	f.IntVarP(&producersFlag, "producers", "p", 3, "Number of producer goroutines")
	f.IntVarP(&consumersFlag, "consumers", "n", 2, "Number of consumer goroutines")
	f.IntVar(&perProducerFlag, "per-producer", 1000, "Values pushed by each producer")
	f.BoolVar(&sequentialFlag, "sequential", false, "Start consumers only after all producers finish")
	f.BoolVar(&noStoreFlag, "no-store", false, "Do not persist the report")
	f.BoolVar(&publishFlag, "publish", false, "Publish pending reports once after the run")
}
