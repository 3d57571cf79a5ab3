// Command staybook is a terminal client for the hotel booking API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/guarzo/staybook/common/config"
	"github.com/guarzo/staybook/common/logging"
	"github.com/guarzo/staybook/modules/auth"
	"github.com/guarzo/staybook/modules/booking"
	"github.com/guarzo/staybook/modules/navigation"
	"github.com/guarzo/staybook/modules/notify"
	"github.com/guarzo/staybook/modules/store"
)

// app holds everything a subcommand needs. It is built once per invocation in
// the root command's pre-run.
type app struct {
	configPath string
	jsonOutput bool

	cfg     *config.Config
	client  *auth.Client
	tracker *navigation.Tracker
	svc     booking.Service
	closeFn func() error
}

func main() {
	loadDotEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	if err := a.rootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", booking.ErrorMessage(err))
		os.Exit(1)
	}
}

// loadDotEnv reads .env from the working directory if present.
func loadDotEnv() {
	wd, err := os.Getwd()
	if err != nil {
		return
	}
	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil {
		if !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "staybook",
		Short:         "Browse rooms and manage hotel bookings",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to config file")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "print results as JSON")

	root.AddCommand(
		a.loginCommand(),
		a.logoutCommand(),
		a.whoamiCommand(),
		a.roomsCommand(),
		a.roomCommand(),
		a.bookCommand(),
		a.bookingsCommand(),
		a.cancelCommand(),
		a.statsCommand(),
		a.profileCommand(),
	)
	return root
}

func (a *app) setup(ctx context.Context) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	logging.Setup(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	tokens, closeFn, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	a.closeFn = closeFn

	a.tracker = navigation.NewTracker(tokens, navigation.NavigatorFunc(func(_ context.Context, path string) {
		if path == a.tracker.LoginRoute() {
			fmt.Fprintln(os.Stderr, "Run `staybook login` to sign in again.")
		}
	}), cfg.API.LoginRoute)

	client, err := auth.NewClient(auth.Options{
		BaseURL:             cfg.API.BaseURL,
		RefreshPath:         cfg.API.RefreshPath,
		UserAgent:           cfg.API.UserAgent,
		Timeout:             cfg.API.Timeout,
		DisableSingleFlight: cfg.API.DisableSingleFlight,
		Deps: auth.Deps{
			Store:      tokens,
			Notifier:   notify.WriterNotifier{W: os.Stderr},
			Navigator:  a.tracker,
			LoginRoute: a.tracker.LoginRoute(),
		},
	})
	if err != nil {
		return err
	}
	a.client = client

	if _, err = client.Restore(ctx); err != nil {
		log.WithError(err).Warn("could not read stored credentials")
	}

	a.svc = booking.NewService(booking.NewApiClient(cfg.API.BaseURL, client, booking.DefaultCacheTTL), client)
	return nil
}

func (a *app) close() error {
	if a.client != nil {
		a.client.CloseIdleConnections()
	}
	if a.closeFn == nil {
		return nil
	}
	return a.closeFn()
}
