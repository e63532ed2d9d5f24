package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/demos-voting/cryptoserver/server"
	raven "github.com/getsentry/raven-go"
	"github.com/sirupsen/logrus"
)

func main() {
	ctx, zl, legacy := server.SetupLogger(context.Background())
	log := legacy.WithField("prefix", "main")

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := raven.SetDSN(dsn); err != nil {
			log.WithError(err).Warn("failed to configure sentry reporting")
		}
	}

	cfg, err := server.ParseArgs(os.Args[1:])
	if err != nil {
		if errors.Is(err, server.ErrShowUsage) {
			fmt.Println(server.Usage)
			return
		}
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, "Try -h for more information.")
		os.Exit(1)
	}
	if addr := os.Getenv("ADMIN_ADDR"); addr != "" && cfg.AdminAddr == "" {
		cfg.AdminAddr = addr
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.AuditBrokers = strings.Split(brokers, ",")
		cfg.AuditTopic = os.Getenv("AUDIT_TOPIC")
		if cfg.AuditTopic == "" {
			cfg.AuditTopic = "cryptoserver.audit"
		}
	}

	log.Info("starting cryptoserver")

	srv, err := server.New(cfg, zl)
	if err != nil {
		raven.CaptureErrorAndWait(err, nil)
		log.WithFields(logrus.Fields{"error": err}).Panic("failed to construct server")
	}

	diagnostics := srv.SetupDiagnostics()
	defer diagnostics.Stop()

	if cfg.AdminAddr != "" {
		go func() {
			if err := srv.ServeAdmin(); err != nil {
				log.WithError(err).Error("admin surface exited")
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	// original_source ignores SIGPIPE outright (writes to a closed
	// socket would otherwise kill the process); Go never delivers
	// SIGPIPE to a process writing to a closed net.Conn; net.Conn.Write
	// just returns an error, so there is nothing to ignore here. The
	// remaining four — SIGHUP, SIGINT, SIGQUIT, SIGTERM — trigger the
	// same graceful shutdown original_source's sig_handler flags.
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			raven.CaptureErrorAndWait(err, nil)
			log.WithError(err).Panic("listener failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("error during shutdown")
	}
	_ = srv.ShutdownAdmin(shutdownCtx)
}
