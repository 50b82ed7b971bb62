package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gokernel/shaper"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gokerneld",
		Short: "Run gokernel scenario demonstrations and the traffic-shaper emulator",
		Long: "gokerneld drives the gokernel process/memory/VFS core through a set of\n" +
			"named end-to-end scenarios, and separately runs the leaky-bucket\n" +
			"traffic-shaper emulation as an independent workload.",
	}
	root.AddCommand(newRunCmd(), newShaperCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "run [scenario]",
		Short: "Run one named scenario, or list them with --list",
		RunE: func(cmd *cobra.Command, args []string) error {
			if list || len(args) == 0 {
				for _, s := range scenarios {
					fmt.Printf("%-12s %s\n", s.name, s.desc)
				}
				return nil
			}
			return runScenario(args[0])
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "list available scenarios and exit")
	return cmd
}

func newShaperCmd() *cobra.Command {
	cfg := shaper.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "shaper",
		Short: "Run the leaky-bucket traffic-shaper emulation",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			e := shaper.New(cfg)
			stats, err := e.Run(ctx)
			if err != nil {
				return err
			}
			printShaperStats(stats)
			return nil
		},
	}
	cmd.Flags().Float64Var(&cfg.Lambda, "lambda", cfg.Lambda, "packet arrival rate (packets/sec)")
	cmd.Flags().Float64Var(&cfg.Mu, "mu", cfg.Mu, "service rate (packets/sec)")
	cmd.Flags().Float64Var(&cfg.R, "r", cfg.R, "token generation rate (tokens/sec)")
	cmd.Flags().Int64Var(&cfg.BucketDepth, "bucket-depth", cfg.BucketDepth, "token bucket depth")
	cmd.Flags().Int64Var(&cfg.TokenCost, "token-cost", cfg.TokenCost, "tokens each packet needs")
	cmd.Flags().Int64Var(&cfg.NumPackets, "num-packets", cfg.NumPackets, "packets to synthesize")
	return cmd
}

func printShaperStats(s *shaper.Stats) {
	fmt.Printf("packets served:       %d\n", s.PacketsServed)
	fmt.Printf("packets dropped:      %d\n", s.PacketsDropped)
	fmt.Printf("tokens generated:     %d\n", s.TokensGenerated)
	fmt.Printf("tokens dropped:       %d\n", s.TokensDropped)
	fmt.Printf("avg inter-arrival:    %v\n", s.AvgInterArrival)
	fmt.Printf("avg service time:     %v\n", s.AvgServiceTime)
	fmt.Printf("avg system time:      %v\n", s.AvgSystemTime)
	fmt.Printf("stdev system time:    %v\n", s.StdevSystemTime)
	fmt.Printf("total emulation time: %v\n", s.TotalEmulationTime.Round(time.Millisecond))
}
