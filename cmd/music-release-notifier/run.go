package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgnsrekt/music-release-notifier/internal/catalog"
	"github.com/dgnsrekt/music-release-notifier/internal/checkpoint"
	"github.com/dgnsrekt/music-release-notifier/internal/config"
	"github.com/dgnsrekt/music-release-notifier/internal/ledger"
	"github.com/dgnsrekt/music-release-notifier/internal/notify"
	"github.com/dgnsrekt/music-release-notifier/internal/runner"
)

func addRunFlags(cmd *cobra.Command) {
	var dryRun bool

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "fetch and render digests without mailing them or moving the checkpoint")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		subs, err := config.LoadSubscriptions(cfg.SubscriptionsPath())
		if err != nil {
			return err
		}

		loc, err := cfg.Filter.Location()
		if err != nil {
			return err
		}

		client := catalog.NewClient(catalog.Options{
			BaseURL:       cfg.Catalog.BaseURL,
			TokenURL:      cfg.Catalog.TokenURL,
			ClientID:      cfg.Catalog.ClientID,
			ClientSecret:  cfg.Catalog.ClientSecret,
			Timeout:       cfg.Catalog.Timeout(),
			RetryCount:    cfg.Catalog.RetryCount,
			RetryDelay:    cfg.Catalog.RetryDelay(),
			RatePerSecond: cfg.Catalog.RatePerSecond,
		}, logger)

		var mailer notify.Mailer
		if dryRun {
			mailer = notify.NewLogMailer(logger)
		} else {
			if err := cfg.ValidateSMTP(); err != nil {
				return err
			}
			mailer = notify.NewSMTPMailer(&notify.SMTPConfig{
				Host:     cfg.SMTP.Host,
				Port:     cfg.SMTP.Port,
				Username: cfg.SMTP.Username,
				Password: cfg.SMTP.Password,
				Secure:   cfg.SMTP.Secure,
				FromName: cfg.SMTP.FromName,
			}, logger)
		}

		ntfyCfg := &notify.Config{
			Enabled:  cfg.Ntfy.Enabled,
			Server:   cfg.Ntfy.Server,
			Topic:    cfg.Ntfy.Topic,
			Priority: cfg.Ntfy.Priority,
			Tags:     cfg.Ntfy.Tags,
			Token:    cfg.Ntfy.Token,
		}
		if err := ntfyCfg.Validate(); err != nil {
			return err
		}

		deps := runner.Deps{
			Client:     client,
			Mailer:     mailer,
			Checkpoint: checkpoint.NewStore(cfg.CheckpointPath()),
			Notifier:   notify.New(ntfyCfg, logger),
		}

		if cfg.Ledger.Path != "" {
			l, err := ledger.Open(cfg.Ledger.Path)
			if err != nil {
				logger.Warn("run history disabled", zap.String("path", cfg.Ledger.Path), zap.Error(err))
			} else {
				defer func() { _ = l.Close() }()
				deps.Ledger = l
			}
		}

		r := runner.New(deps, runner.Options{
			Subscribers: subs,
			Subject:     cfg.SMTP.Subject,
			Location:    loc,
			SettleDelay: cfg.Filter.SettleDelay(),
			Concurrency: cfg.Catalog.Concurrency,
			DryRun:      dryRun,
		}, logger)

		_, err = r.Run(ctx)
		return err
	}
}
