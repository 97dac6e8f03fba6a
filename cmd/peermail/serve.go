package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vaultsandbox/peermail"
	"github.com/vaultsandbox/peermail/internal/delivery"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept direct calls and retry pending deliveries",
		Long:  "Runs the direct-call server and the retry scheduler until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	s, err := openSession(cmd, configPath)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched, err := newScheduler(s)
	if err != nil {
		return err
	}

	// A peer that just reached us is likely reachable in return.
	unsubMail := s.agent.Subscribe(peermail.EventReceivedMail, func(e peermail.Event) {
		s.logger.Info().
			Str("from", e.From.Short()).
			Str("mail", e.Record.Short()).
			Str("subject", e.Mail.Subject).
			Msg("mail received")
		sched.Kick()
	})
	defer unsubMail()
	unsubAck := s.agent.Subscribe(peermail.EventReceivedAck, func(e peermail.Event) {
		s.logger.Info().
			Str("from", e.From.Short()).
			Str("mail", e.OutboundMail.Short()).
			Msg("ack received")
		sched.Kick()
	})
	defer unsubAck()

	server, err := peermail.NewServer(s.agent, s.logger)
	if err != nil {
		return err
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	s.logger.Info().
		Str("id", s.agent.ID().Short()).
		Str("advertise", s.cfg.Server.Advertise).
		Str("retry", sched.Name()).
		Msg("peermail agent started")

	if err := server.ListenAndServe(ctx, s.cfg.Server.Listen); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	s.logger.Info().Msg("shutting down")
	return nil
}

func newScheduler(s *session) (*delivery.Scheduler, error) {
	return delivery.NewScheduler(delivery.Config{
		Scan: s.agent.Resend,
		Backoff: delivery.Backoff{
			Base: s.cfg.Retry.Interval,
			Max:  s.cfg.Retry.MaxInterval,
		},
		Cron:   s.cfg.Retry.Cron,
		Logger: s.logger.With().Str("component", "retry").Logger(),
	})
}
