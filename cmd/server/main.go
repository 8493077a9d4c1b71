package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"proofbridge/internal/events"
	"proofbridge/internal/flows"
	flowhandler "proofbridge/internal/flows/handler"
	"proofbridge/internal/issuance/builders"
	"proofbridge/internal/issuance/issuer"
	issuancemetrics "proofbridge/internal/issuance/metrics"
	"proofbridge/internal/issuance/service"
	"proofbridge/internal/platform/config"
	"proofbridge/internal/platform/health"
	"proofbridge/internal/platform/logger"
	"proofbridge/internal/platform/metrics"
	"proofbridge/internal/platform/servicetoken"
	proofhandler "proofbridge/internal/proof/handler"
	proofmetrics "proofbridge/internal/proof/metrics"
	"proofbridge/internal/proof/session"
	"proofbridge/internal/proof/verifier"
	"proofbridge/internal/proof/workers/reaper"
	httptransport "proofbridge/internal/transport/http"
	"proofbridge/pkg/platform/tracer"
	"proofbridge/pkg/platform/upstream"
)

const (
	shutdownTimeout   = 10 * time.Second
	poolStatsInterval = 15 * time.Second
)

// main wires dependencies and runs the HTTP server, the flow reaper and the
// Redis pool stats recorder until SIGINT or SIGTERM.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	log.Info("initializing proofbridge",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
	)

	if err := run(cfg, log); err != nil {
		log.Error("proofbridge stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	tr := tracer.NewOTel()
	checks := health.New(cfg.Environment)

	in, err := openInfra(ctx, cfg, reg, log, checks)
	defer in.Close(log)
	if err != nil {
		return err
	}

	verifierClient, issuerClient, err := upstreamClients(cfg.Services)
	if err != nil {
		return err
	}

	proofMetrics := proofmetrics.New(reg)
	issuance := service.New(issuerClient, in.records, in.revocations,
		service.WithLogger(log),
		service.WithMetrics(issuancemetrics.New(reg)),
		service.WithTracer(tr),
		service.WithLatestCache(in.latest),
		service.WithEventPublisher(events.NewPublisher(in.producer, cfg.Kafka.Topic)),
		service.WithBuilders(builders.BankIdentity{}, builders.CreditScore{}),
	)

	registry := flows.NewRegistry(
		flows.Definitions(flows.Templates{
			Loan:        cfg.Templates.Loan,
			CreditScore: cfg.Templates.CreditBio,
			Biometric:   cfg.Templates.Biometric,
			BankBio:     cfg.Templates.BankBio,
		}),
		verifierClient,
		in.state,
		issuance,
		session.Config{PollInterval: cfg.Proof.PollInterval, Timeout: cfg.Proof.Timeout},
		flows.WithLogger(log),
		flows.WithSessionOptions(
			session.WithLogger(log),
			session.WithMetrics(proofMetrics),
			session.WithTracer(tr),
		),
	)

	checks.SetFlowCounter(registry.Len)

	idleReaper, err := reaper.New(registry,
		reaper.WithInterval(cfg.Reaper.Interval),
		reaper.WithIdleTTL(cfg.Reaper.IdleTTL),
		reaper.WithLogger(log),
		reaper.WithMetrics(proofMetrics),
	)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(log, metrics.New(reg), reg, checks,
		proofhandler.New(registry, log),
		flowhandler.New(registry, issuance, log),
	)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      httptransport.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return ignoreCanceled(idleReaper.Start(gctx))
	})

	if in.redis != nil {
		g.Go(func() error {
			ticker := time.NewTicker(poolStatsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					in.redis.RecordPoolStats()
				case <-gctx.Done():
					return nil
				}
			}
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		registry.CloseAll(shutdownCtx)
		if err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// upstreamClients builds the verification and issuance service clients. Each
// authenticates with its own service token audience.
func upstreamClients(cfg config.Services) (*verifier.Client, *issuer.Client, error) {
	verifierTokens, err := servicetoken.NewSigner(cfg.ServiceKey, cfg.ServiceIssuer, servicetoken.AudienceVerifier,
		servicetoken.WithScope(servicetoken.ScopeProofRequest))
	if err != nil {
		return nil, nil, fmt.Errorf("verifier token signer: %w", err)
	}
	issuerTokens, err := servicetoken.NewSigner(cfg.ServiceKey, cfg.ServiceIssuer, servicetoken.AudienceIssuer,
		servicetoken.WithScope(servicetoken.ScopeCredentialIssue))
	if err != nil {
		return nil, nil, fmt.Errorf("issuer token signer: %w", err)
	}

	v := verifier.New(cfg.VerifierURL,
		upstream.WithTokenSource(verifierTokens),
		upstream.WithTimeout(cfg.ServiceTimeout),
	)
	i := issuer.New(cfg.IssuerURL,
		upstream.WithTokenSource(issuerTokens),
		upstream.WithTimeout(cfg.ServiceTimeout),
	)
	return v, i, nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
