package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerrad567/virtuaplant-core/internal/console"
)

// clearScreen moves the cursor home and clears the terminal.
const clearScreen = "\033[H\033[2J"

func newConsoleCmd(opts *options) *cobra.Command {
	var (
		once  bool
		plain bool
	)

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Show the operator view, refreshed every second",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			plc, err := opts.dialPLC()
			if err != nil {
				return err
			}
			defer plc.Close()

			c := console.New(plc, console.Config{Logger: opts.logger()})
			out := cmd.OutOrStdout()
			show := func(st console.Status) {
				if !plain {
					fmt.Fprint(out, clearScreen)
				}
				fmt.Fprintln(out, "VirtuaPlant - HMI")
				fmt.Fprintln(out, strings.Join(st.Lines(), "\n"))
				if !plain {
					fmt.Fprintln(out, "\nCtrl+C to quit")
				}
			}

			if once {
				show(c.Poll())
				return nil
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			c.Run(ctx, show)
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "poll once and exit")
	cmd.Flags().BoolVar(&plain, "plain", false, "do not clear the screen between polls")
	return cmd
}

func newRunCmd(opts *options, on bool) *cobra.Command {
	use, short := "stop", "Stop the process (RUN=0)"
	if on {
		use, short = "run", "Start the process (RUN=1)"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			plc, err := opts.dialPLC()
			if err != nil {
				return err
			}
			defer plc.Close()

			if err := console.New(plc, console.Config{Logger: opts.logger()}).SetRun(on); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "RUN=%d\n", map[bool]int{false: 0, true: 1}[on])
			return nil
		},
	}
}
