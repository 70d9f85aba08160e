package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/virtuaplant-core/internal/attack"
)

func newAttackCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attack",
		Short: "Race the control loop by writing raw PLC registers",
	}

	short := map[string]string{
		attack.StopAllName:     "Hold RUN=0 in a tight loop",
		attack.NeverStopName:   "Set NEVER_STOP=1 so bottles pass unfilled",
		attack.StopAndFillName: "Stop the belt and force liquid (NEVER_STOP=2)",
	}

	for _, name := range attack.Names() {
		cmd.AddCommand(&cobra.Command{
			Use:   name,
			Short: short[name],
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runAttack(cmd, opts, name)
			},
		})
	}
	return cmd
}

// runAttack holds the attack until Enter, Ctrl+C or SIGTERM, then restores.
func runAttack(cmd *cobra.Command, opts *options, name string) error {
	plc, err := opts.dialPLC()
	if err != nil {
		return err
	}
	defer plc.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()
	go waitForEnter(cmd.InOrStdin(), cancel)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s running against %s, press Enter to stop\n", name, plc.Name())

	report, err := attack.New(plc, attack.WithLogger(opts.logger())).Run(ctx, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s stopped after %s, %d writes, %d failed\n", name, report.Ended.Sub(report.Started).Round(time.Millisecond), report.Writes, report.Failures)
	return nil
}

func waitForEnter(in io.Reader, cancel context.CancelFunc) {
	_, _ = bufio.NewReader(in).ReadString('\n')
	cancel()
}
