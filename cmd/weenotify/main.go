package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"weenotify/internal/config"
	"weenotify/internal/filter"
	"weenotify/internal/logx"
	"weenotify/internal/notifier"
	"weenotify/internal/queue"
	"weenotify/internal/worker"
)

var cfgFile string

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "weenotify",
		Short:         "Display received weechat AMQP messages as desktop notifications",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", defaultConfigPath(), "sets the config file to use")

	root.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "Starts listening for messages",
		Args:  cobra.NoArgs,
		RunE:  run,
	})

	return root
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return config.DefaultFileName
	}
	return config.DefaultPath(home)
}

func run(cmd *cobra.Command, _ []string) error {
	boot := logx.NewConsole("info")
	boot.Info("loading config", logx.String("file", cfgFile))

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	log, logCloser, err := logx.New(logx.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logCloser.Close()

	nt, closers := buildNotifier(cfg.Notifier)
	for _, c := range closers {
		defer c.Close()
	}

	flt := filter.New(filter.Rules{
		Channels: cfg.Behavior.IgnoredChannels,
		Senders:  cfg.Behavior.IgnoredSenders,
		Tags:     cfg.Behavior.IgnoredTags,
	}, log.With(logx.String("component", "filter")))

	session := queue.NewSession(queue.SessionConfig{
		Host:            cfg.Connection.Host,
		User:            cfg.Connection.User,
		Pass:            cfg.Connection.Pass,
		Vhost:           cfg.Connection.Vhost,
		Exchange:        cfg.Connection.Exchange,
		ExchangeDurable: cfg.Connection.ExchangeDurable,
		Timeout:         cfg.Connection.Timeout,
	}, log.With(logx.String("component", "session")))
	defer session.Close()

	relay := worker.NewRelay(session, flt, nt, worker.Options{
		NoticeDuration: cfg.Behavior.NoticeTimeout(),
		SkipMalformed:  cfg.Behavior.SkipMalformed,
	}, log.With(logx.String("component", "relay")))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("weenotify started",
		logx.String("host", cfg.Connection.Host),
		logx.String("exchange", cfg.Connection.Exchange),
		logx.String("queue", session.QueueName()),
	)

	if err := relay.Start(ctx); err != nil {
		log.Error("relay stopped", logx.Err(err))
		return err
	}

	log.Info("shutting down")
	return nil
}

func buildNotifier(cfg config.NotifierConfig) (notifier.Multi, []io.Closer) {
	var (
		sinks   notifier.Multi
		closers []io.Closer
	)
	if cfg.Desktop.Enabled {
		d := notifier.NewDesktop(cfg.Desktop.AppName, cfg.Desktop.Icon)
		sinks = append(sinks, d)
		closers = append(closers, d)
	}
	if cfg.Telegram.Enabled() {
		sinks = append(sinks, notifier.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatIDs))
	}
	return sinks, closers
}
