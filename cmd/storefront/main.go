package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ramostecidos/storefront/internal/config"
	"github.com/ramostecidos/storefront/internal/core/domain"
	"github.com/ramostecidos/storefront/internal/core/engine"
	"github.com/ramostecidos/storefront/internal/core/ports"
	"github.com/ramostecidos/storefront/internal/httpx"
	"github.com/ramostecidos/storefront/internal/infra/events"
	"github.com/ramostecidos/storefront/internal/infra/melhorenvio"
	"github.com/ramostecidos/storefront/internal/infra/mercadopago"
	"github.com/ramostecidos/storefront/internal/infra/resend"
	"github.com/ramostecidos/storefront/internal/infra/store/sqlite"
	"github.com/ramostecidos/storefront/internal/infra/viacep"
	"github.com/ramostecidos/storefront/internal/pkg/cache"
	"github.com/ramostecidos/storefront/internal/pkg/telemetry"
)

func main() {
	telemetry.InitLogger()
	cfg := config.Load()

	ctx := context.Background()
	if shutdown, err := telemetry.SetupTracer(ctx, "storefront"); err != nil {
		slog.Warn("tracing disabled", "error", err)
	} else {
		defer shutdown(context.Background())
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		slog.Error("open order store", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	httpClient := &http.Client{Timeout: 15 * time.Second}

	gateway := mercadopago.New(httpClient, cfg.MercadoPagoToken, cfg.BaseURL+"/webhooks/mercadopago")

	var carrier ports.Carrier
	if cfg.MelhorEnvio.Token != "" && len(engine.CleanCEP(cfg.MelhorEnvio.FromCEP)) == 8 {
		carrier = melhorenvio.New(httpClient, cfg.MelhorEnvio.Token, cfg.MelhorEnvio.Env,
			engine.CleanCEP(cfg.MelhorEnvio.FromCEP), melhorenvio.Packaging{
				WeightPerMeterKG: cfg.MelhorEnvio.WeightPerMeterKG,
				LengthCM:         cfg.MelhorEnvio.PkgLengthCM,
				WidthCM:          cfg.MelhorEnvio.PkgWidthCM,
				HeightCM:         cfg.MelhorEnvio.PkgHeightCM,
			})
	} else {
		slog.Warn("carrier not configured, shipping quotes fall back to regional table")
	}

	var notifier ports.Notifier = logNotifier{}
	if cfg.ResendAPIKey != "" {
		notifier = resend.New(httpClient, cfg.ResendAPIKey, cfg.EmailFrom)
	} else {
		slog.Warn("mailer not configured, notifications are log-only")
	}

	var publisher ports.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publisher = kp
	}

	var quoteCache cache.Cache
	if cfg.RedisAddr != "" {
		quoteCache = cache.NewRedisCache(cfg.RedisAddr, "storefront")
	}

	eng := engine.New(store, gateway, carrier, notifier, publisher)
	quoter := engine.NewQuoter(viacep.New(httpClient), carrier, quoteCache)
	handler := httpx.NewHandler(eng, quoter, cfg.WebhookToken, cfg.AdminToken)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpx.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("storefront listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
}

// logNotifier stands in for the mailer in environments without an API key.
type logNotifier struct{}

func (logNotifier) SendOrderPaid(ctx context.Context, o *domain.Order) error {
	slog.InfoContext(ctx, "would send paid confirmation", "order_id", o.ID, "to", o.Email)
	return nil
}

func (logNotifier) SendOrderShipped(ctx context.Context, o *domain.Order) error {
	slog.InfoContext(ctx, "would send shipped notification", "order_id", o.ID, "to", o.Email)
	return nil
}
