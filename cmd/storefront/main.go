package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/storefront-payments/internal/auth"
	"github.com/joao-fontenele/storefront-payments/internal/cart"
	"github.com/joao-fontenele/storefront-payments/internal/catalog"
	"github.com/joao-fontenele/storefront-payments/internal/config"
	"github.com/joao-fontenele/storefront-payments/internal/gateway"
	"github.com/joao-fontenele/storefront-payments/internal/messaging"
	"github.com/joao-fontenele/storefront-payments/internal/orders"
	"github.com/joao-fontenele/storefront-payments/internal/payment"
	"github.com/joao-fontenele/storefront-payments/internal/telemetry"
)

const (
	serviceName    = "storefront"
	serviceVersion = "0.1.0"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.LoadStorefront()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, serviceName, serviceVersion, cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize meter provider", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	db, err := telemetry.OpenDB(cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	var publisher payment.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := messaging.NewProducer(cfg.KafkaBrokers)
		defer func() { _ = producer.Close() }()
		publisher = producer
	} else {
		logger.Warn("KAFKA_BROKERS not set, domain events are not published")
	}

	if !cfg.VNPay.Complete() {
		logger.Warn("vnpay configuration is incomplete, vnpay payments will be refused")
	}
	if !cfg.MoMo.Complete() {
		logger.Warn("momo configuration is incomplete, momo payments will be refused")
	}

	vnpay := gateway.NewVNPay(gateway.VNPayConfig{
		TmnCode:    cfg.VNPay.TmnCode,
		HashSecret: cfg.VNPay.HashSecret,
		URL:        cfg.VNPay.URL,
		ReturnURL:  cfg.VNPay.ReturnURL,
	})
	momoClient := gateway.NewClient(cfg.MoMo.Endpoint, &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})
	momo := gateway.NewMoMo(gateway.MoMoConfig{
		PartnerCode: cfg.MoMo.PartnerCode,
		AccessKey:   cfg.MoMo.AccessKey,
		SecretKey:   cfg.MoMo.SecretKey,
		Endpoint:    cfg.MoMo.Endpoint,
		RedirectURL: cfg.MoMo.RedirectURL,
		IPNURL:      cfg.MoMo.IPNURL,
		Timeout:     cfg.MoMo.Timeout,
	}, momoClient)

	orderRepo := orders.NewOrderRepository(db)
	cartRepo := cart.NewCartRepository(db)
	productRepo := catalog.NewProductRepository(db)

	checkout := payment.NewCheckout(cartRepo, orderRepo, []gateway.Gateway{vnpay, momo}, publisher, logger)
	reconciler := payment.NewReconciler(orderRepo, publisher, logger)
	paymentHandler := payment.NewHandler(checkout, reconciler, vnpay, momo, payment.Redirects{
		SuccessURL: cfg.PaymentSuccessURL,
		FailURL:    cfg.PaymentFailURL,
	}, logger)
	cartHandler := cart.NewHandler(cartRepo, productRepo, logger)
	orderHandler := orders.NewHandler(orderRepo, logger)
	productHandler := catalog.NewHandler(productRepo, logger)
	authn := auth.NewAuthenticator(cfg.JWTSecret, logger)

	route := telemetry.WithHTTPRoute
	mux := http.NewServeMux()
	mux.HandleFunc("POST /payment/create_payment_url", route(authn.Require(paymentHandler.HandleCreatePaymentURL)))
	mux.HandleFunc("GET /payment/vnpay_return", route(paymentHandler.HandleVNPayReturn))
	mux.HandleFunc("GET /payment/vnpay_ipn", route(paymentHandler.HandleVNPayIPN))
	mux.HandleFunc("POST /payment/vnpay_ipn", route(paymentHandler.HandleVNPayIPN))
	mux.HandleFunc("GET /payment/momo_return", route(paymentHandler.HandleMoMoReturn))
	mux.HandleFunc("POST /payment/momo_ipn", route(paymentHandler.HandleMoMoIPN))
	mux.HandleFunc("GET /cart", route(authn.Require(cartHandler.HandleGet)))
	mux.HandleFunc("POST /cart/items", route(authn.Require(cartHandler.HandleAddItem)))
	mux.HandleFunc("DELETE /cart/items/{productId}", route(authn.Require(cartHandler.HandleRemoveItem)))
	mux.HandleFunc("DELETE /cart", route(authn.Require(cartHandler.HandleClear)))
	mux.HandleFunc("GET /orders", route(authn.Require(orderHandler.HandleList)))
	mux.HandleFunc("GET /orders/{id}", route(authn.Require(orderHandler.HandleGet)))
	mux.HandleFunc("GET /admin/orders", route(authn.RequireAdmin(orderHandler.HandleAdminList)))
	mux.HandleFunc("GET /admin/orders/revenue", route(authn.RequireAdmin(orderHandler.HandleRevenue)))
	mux.HandleFunc("GET /products", route(productHandler.HandleList))
	mux.HandleFunc("GET /products/{id}", route(productHandler.HandleGet))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			logger.Error("health check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("GET /metrics", metricsHandler)

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: otelhttp.NewHandler(mux, serviceName,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting storefront service", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
