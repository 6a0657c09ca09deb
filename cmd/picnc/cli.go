package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"picnc/config"
	"picnc/driver"
	"picnc/rt"
	"picnc/signals"
)

var (
	cfgFile   string
	logLevel  string
	logger    *zap.Logger
	appConfig *config.Config
)

// rootCmd is the base command
var rootCmd = &cobra.Command{
	Use:   "picnc",
	Short: "SPI-linked step generator and feedback driver",
	Long: `picnc drives a step-generation coprocessor over SPI (or a USB serial
bridge), planning acceleration-limited velocities once per servo period
and reading back position feedback.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			logger = zap.NewNop()
			return nil
		}

		var err error
		appConfig, err = config.LoadConfig(cfgFile)
		if err != nil {
			return err
		}

		logger, err = newLogger(appConfig.Logging, logLevel)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// runCmd runs the driver against real hardware
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the driver",
	Long:  "Map the peripherals (or open the serial bridge), configure the coprocessor and run the servo thread until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if dev, _ := cmd.Flags().GetString("serial"); dev != "" {
			appConfig.Serial.Device = dev
		}

		hw, err := openHardware(appConfig, logger)
		if err != nil {
			return fmt.Errorf("failed to open hardware: %w", err)
		}

		reg := signals.NewRegistry()
		drv, err := driver.New(appConfig.DriverConfig(), hw, reg, logger)
		if err != nil {
			_ = hw.Closer.Close()
			return fmt.Errorf("failed to start driver: %w", err)
		}
		defer func() {
			if err := drv.Close(); err != nil {
				logger.Error("failed to close driver", zap.Error(err))
			}
		}()

		thread := rt.NewThread("servo", appConfig.Driver.Period, logger)
		drv.Attach(thread)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := thread.Run(ctx); err != nil {
			return err
		}

		st := drv.Stats()
		logger.Info("driver stopped",
			zap.Uint64("exchanges", st.Exchanges),
			zap.Uint64("desyncs", st.Desyncs),
			zap.Uint64("errors", st.Errors))
		return nil
	},
}

// simulateCmd runs the driver against the emulated coprocessor
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the driver against an emulated coprocessor",
	Long:  "Run a ramp move on axis 0 against the built-in coprocessor emulator and print a summary.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if n, _ := cmd.Flags().GetInt("cycles"); n > 0 {
			appConfig.Simulate.Cycles = n
		}
		if d, _ := cmd.Flags().GetFloat64("distance"); d != 0 {
			appConfig.Simulate.Distance = d
		}
		corrupt, _ := cmd.Flags().GetInt("corrupt")

		res, err := simulate(appConfig, corrupt, logger)
		if err != nil {
			return err
		}

		logger.Info("simulation finished",
			zap.Int("cycles", res.Cycles),
			zap.Float64("position_cmd", res.PositionCmd),
			zap.Float64("position_fb", res.PositionFb),
			zap.Float64("steps", res.Steps),
			zap.Float64("peak_velocity", res.PeakVelocity),
			zap.Uint64("desyncs", res.Stats.Desyncs))
		fmt.Fprintf(cmd.OutOrStdout(), "cycles=%d cmd=%.6f fb=%.6f steps=%.3f peak_vel=%.1f desyncs=%d\n",
			res.Cycles, res.PositionCmd, res.PositionFb, res.Steps, res.PeakVelocity, res.Stats.Desyncs)
		return nil
	},
}

// configCmd prints the effective configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if output, _ := cmd.Flags().GetString("output"); output != "" {
			if err := appConfig.SaveConfig(output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration written to %s\n", output)
			return nil
		}

		data, err := appConfig.JSON()
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

// signalsCmd lists the signals a driver exports
var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "List the driver signals",
	RunE: func(cmd *cobra.Command, args []string) error {
		rig, err := newSimRig(appConfig, logger)
		if err != nil {
			return err
		}
		for _, name := range rig.reg.Names() {
			v, _ := rig.reg.Value(name)
			fmt.Fprintf(cmd.OutOrStdout(), "%-32s %v\n", name, v)
		}
		return nil
	},
}

// versionCmd prints version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "picnc version %s\n", Version)
		fmt.Fprintf(cmd.OutOrStdout(), "  Build: %s\n", BuildTime)
		fmt.Fprintf(cmd.OutOrStdout(), "  Commit: %s\n", GitCommit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides config)")

	runCmd.Flags().String("serial", "", "serial bridge device instead of SPI")

	simulateCmd.Flags().IntP("cycles", "n", 0, "number of servo cycles")
	simulateCmd.Flags().Float64P("distance", "d", 0, "ramp distance in units")
	simulateCmd.Flags().Int("corrupt", 0, "corrupt every Nth response (0 disables)")

	configCmd.Flags().StringP("output", "o", "", "write the configuration to a file")

	rootCmd.AddCommand(
		runCmd,
		simulateCmd,
		configCmd,
		signalsCmd,
		versionCmd,
	)
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}
