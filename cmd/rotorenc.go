package main

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/urfave/cli/v2"
	"github.com/womat/debug"
	"gopkg.in/yaml.v2"

	"rotorenc/pkg/app"
	"rotorenc/pkg/app/config"
)

const defaultConfigFile = "/opt/womat/config/" + app.MODULE + ".yaml"

func main() {
	exitCode := 1
	defer func() {
		os.Exit(exitCode)
	}()

	// cfg holds the application configuration
	cfg := config.NewConfig()

	cliApp := &cli.App{
		Name:    app.MODULE,
		Usage:   "Rotor position and velocity estimation for a motor controller axis",
		Version: app.VERSION,
		Description: "Decode incremental, hall or absolute spi encoders, estimate position and velocity with a PLL" +
			"\n and calibrate the encoder offset against the motor phase." +
			"\n The estimator state is served by a web interface and published to mqtt.",
		UsageText: "rotorenc [--config <file>] [--log standard|debug|trace] [run|calibrate|properties]" +
			"\n\nEXAMPLE:" +
			"\n\tcalibrate the encoder and print the results" +
			"\n\t\trotorenc --config /opt/womat/rotorenc.yaml calibrate",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Destination: &cfg.Flag.ConfigFile, Value: defaultConfigFile, Usage: "load configuration from `FILE`"},
			&cli.StringFlag{Name: "log", Aliases: []string{"l"}, Destination: &cfg.Flag.Debug, Usage: "`LEVEL` overrides the log level of the configuration file (standard|debug|trace|full)"},
		},
		Action: func(ctx *cli.Context) error {
			return withApp(cfg, run)
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the startup sequence and keep the estimator running until a signal arrives",
				Action: func(ctx *cli.Context) error {
					return withApp(cfg, run)
				},
			},
			{
				Name:  "calibrate",
				Usage: "run the full calibration sequence and print the encoder and motor configuration",
				Action: func(ctx *cli.Context) error {
					return withApp(cfg, func(a *app.App) error {
						if err := a.Calibrate(); err != nil {
							return err
						}

						b, err := yaml.Marshal(struct {
							Encoder interface{} `yaml:"encoder"`
							Motor   interface{} `yaml:"motor"`
						}{cfg.Encoder, cfg.Motor})
						if err != nil {
							return err
						}
						_, err = os.Stdout.Write(b)
						return err
					})
				},
			},
			{
				Name:  "properties",
				Usage: "print the encoder properties",
				Action: func(ctx *cli.Context) error {
					return withApp(cfg, func(a *app.App) error {
						values, err := a.Properties()
						if err != nil {
							return err
						}

						names := make([]string, 0, len(values))
						for name := range values {
							names = append(names, name)
						}
						sort.Strings(names)
						for _, name := range names {
							fmt.Printf("%-34s %v\n", name, values[name])
						}
						return nil
					})
				},
			},
		},
	}

	// we expect to have more command line flags in the future - sort them
	sort.Sort(cli.FlagsByName(cliApp.Flags))
	sort.Sort(cli.CommandsByName(cliApp.Commands))

	err := cliApp.Run(os.Args)
	if err != nil {
		debug.FatalLog.Print(err)
		exitCode = 1
		return
	}

	exitCode = 0
	return
}

// withApp loads the configuration, sets up logging and calls f with a new app which is closed afterwards.
func withApp(cfg *config.Config, f func(a *app.App) error) error {
	if err := cfg.LoadConfig(); err != nil {
		return err
	}

	debug.SetDebug(cfg.Debug.File, cfg.Debug.Flag)
	defer func() {
		debug.InfoLog.Printf("closing debug file %s", cfg.Debug.FileString)
		_ = cfg.Debug.File.Close()
	}()

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		debug.InfoLog.Printf("closing app %s", app.Version())
		_ = a.Close()
	}()

	return f(a)
}

func run(a *app.App) error {
	debug.InfoLog.Printf("starting app %s", app.Version())
	if err := a.Run(); err != nil {
		return err
	}

	// capture exit signals to ensure resources are released on exit.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	// wait for am os.Interrupt signal (CTRL C)
	sig := <-quit
	debug.InfoLog.Printf("Got %s signal. Aborting...", sig)
	return nil
}
