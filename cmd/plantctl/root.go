package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/virtuaplant-core/internal/bridges/modbus"
	"github.com/nerrad567/virtuaplant-core/internal/infrastructure/config"
	"github.com/nerrad567/virtuaplant-core/internal/infrastructure/logging"
	"github.com/nerrad567/virtuaplant-core/internal/plant"
)

// options are the flags shared by every command.
type options struct {
	ip        string
	port      int
	portsFile string
	timeout   time.Duration
	logLevel  string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "plantctl",
		Short:         "Operate or attack a running VirtuaPlant over Modbus/TCP",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.ip, "ip", "127.0.0.1", "PLC host address")
	flags.IntVar(&opts.port, "port", 0, "PLC port (default: read from --ports-file)")
	flags.StringVar(&opts.portsFile, "ports-file", "./data/ports.json", "port map written by the plant")
	flags.DurationVar(&opts.timeout, "timeout", time.Second, "per-request timeout")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		newConsoleCmd(opts),
		newRunCmd(opts, true),
		newRunCmd(opts, false),
		newAttackCmd(opts),
	)
	return root
}

// plcAddress resolves the PLC endpoint from --port or the port map.
func (o *options) plcAddress() (string, error) {
	port := o.port
	if port == 0 {
		ports, err := plant.LoadPortMap(o.portsFile)
		if err != nil {
			return "", fmt.Errorf("no --port given: %w", err)
		}
		port = ports.PLC
	}
	if port < 1 || port > 65535 {
		return "", fmt.Errorf("invalid PLC port %d", port)
	}
	return net.JoinHostPort(o.ip, strconv.Itoa(port)), nil
}

// dialPLC returns a client for the PLC bank. The connection opens on first use.
func (o *options) dialPLC() (*modbus.Client, error) {
	addr, err := o.plcAddress()
	if err != nil {
		return nil, err
	}
	return modbus.NewClient(modbus.ClientConfig{
		Name:    plant.DevicePLC,
		Address: addr,
		Timeout: o.timeout,
	})
}

func (o *options) logger() *logging.Logger {
	return logging.New(config.LoggingConfig{
		Level:  o.logLevel,
		Format: "text",
		Output: "stderr",
	}, version)
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
