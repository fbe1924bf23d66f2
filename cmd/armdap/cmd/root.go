package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"github.com/OpenTraceLab/OpenTraceADI/internal/config"
	"github.com/OpenTraceLab/OpenTraceADI/pkg/adi"
	"github.com/OpenTraceLab/OpenTraceADI/pkg/cmsisdap"
)

var (
	// Global flags
	verbose       int
	configPath    string
	adapterType   string
	targetPath    string
	adapterVID    uint16
	adapterPID    uint16
	adapterSerial string
	adapterSpeed  uint32
	overrunDetect bool
	targetSel     uint32

	logger *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "armdap",
	Short: "ARM debug port explorer",
	Long: `armdap talks to the ARM Debug Interface of a target through a CMSIS-DAP
probe or a simulated target. It reads the debug port identification, lists
the access ports and identifies the chip from its CoreSight ROM table.

Unset flags are read from OTADI_<FLAG> environment variables, then from the
config file.

Examples:
  armdap interfaces                                  # List CMSIS-DAP probes
  armdap identify --adapter simulator                # Identify the built-in STM32F407
  armdap aps --adapter simulator --target rp2040.dap --dp 0x01002927
  armdap dpidr -vv --speed 4000000                   # Trace every register access`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	initLogger()

	flags := rootCmd.PersistentFlags()
	flags.CountVarP(&verbose, "verbose", "v", "verbose output (-vv traces register accesses)")
	flags.StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/opentraceadi/config.yaml)")
	flags.StringVarP(&adapterType, "adapter", "a", config.AdapterCMSISDAP, "adapter type (cmsisdap, simulator)")
	flags.StringVarP(&targetPath, "target", "t", "", "simulator: target description file (default: built-in STM32F407)")
	flags.Uint16Var(&adapterVID, "vid", cmsisdap.VendorIDRaspberryPi, "probe USB vendor ID")
	flags.Uint16Var(&adapterPID, "pid", cmsisdap.ProductIDCMSISDAP, "probe USB product ID")
	flags.StringVarP(&adapterSerial, "serial", "s", "", "probe serial number (if multiple probes)")
	flags.Uint32Var(&adapterSpeed, "speed", cmsisdap.DefaultSpeedHz, "SWCLK speed in Hz")
	flags.BoolVar(&overrunDetect, "overrun-detect", false, "enable overrun detection on the debug port")
	flags.Uint32Var(&targetSel, "dp", 0, "TARGETSEL value of a multi-drop debug port (0 for the default port)")
}

func initLogger() {
	formatter := &prefixed.TextFormatter{
		DisableColors:   false,
		TimestampFormat: "15:04:05",
		FullTimestamp:   true,
		ForceFormatting: true,
	}

	logger = logrus.New()
	logger.SetFormatter(formatter)
	logger.SetOutput(os.Stderr)

	adi.SetLogger(logger)
	cmsisdap.SetLogger(logger)
	config.SetLogger(logger)
}

func logLevel(count int) logrus.Level {
	switch {
	case count >= 2:
		return logrus.TraceLevel
	case count == 1:
		return logrus.DebugLevel
	}
	return logrus.WarnLevel
}

// setup resolves flags from the environment and the config file.
func setup(cmd *cobra.Command, args []string) error {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if err := cfg.BackFill(cmd.Flags(), config.EnvPrefix); err != nil {
		return err
	}
	logger.SetLevel(logLevel(verbose))
	return nil
}
