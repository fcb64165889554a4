package main

import (
	"log"
	"net/http"

	"redemption-service/internal/code"
	"redemption-service/internal/config"
	"redemption-service/internal/db"
	"redemption-service/internal/event"
	"redemption-service/internal/identity"
	"redemption-service/internal/kv"
	"redemption-service/internal/logging"
	"redemption-service/internal/messaging"
	"redemption-service/internal/metrics"
	"redemption-service/internal/payment"
	"redemption-service/internal/web"
	"redemption-service/internal/webhook"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoadConfig("./config")

	logger := logging.GetLogger(cfg.Logs)
	metrics.Setup(cfg.Metrics)

	store := buildStore(cfg)

	resolver := identity.NewResolver(store, logger)
	records := payment.NewRecordStore(store, logger)
	issuer := code.NewIssuer(cfg.Code, store, records, logger)
	redeemer := code.NewRedeemer(store, records, logger)
	authenticator := webhook.NewAuthenticator(cfg.Webhook)
	gateway := payment.NewGateway(cfg.Gateway, cfg.Webhook.Secret)
	messenger := messaging.NewClient(cfg.Messaging)

	var publisher webhook.Publisher
	if cfg.Kafka.Broker.URL != "" {
		writer := event.NewWriter(cfg.Kafka)
		defer writer.Close()
		publisher = event.NewPublisher(writer, logger)
	}

	processor := webhook.NewProcessor(resolver, records, store, publisher, logger)

	server := web.NewServer(gateway, resolver, records, issuer, redeemer,
		authenticator, processor, messenger, cfg.Messaging, logger)

	logger.Info("Starting server", "port", cfg.Server.Port, "store", cfg.Store.Backend)
	log.Fatal(http.ListenAndServe(":"+cfg.Server.Port, server.Router()))
}

func buildStore(cfg *config.Config) kv.Store {
	switch cfg.Store.Backend {
	case "postgres":
		connStr := db.ConnStr(cfg.Database)

		if err := db.RunMigrations(connStr, "./migrations"); err != nil {
			log.Fatal(err)
		}

		pool, err := db.GetPool(connStr)
		if err != nil {
			log.Fatal(err)
		}

		return kv.NewPostgresStore(pool)
	case "memory":
		return kv.NewMemoryStore()
	default:
		return kv.NewRestStore(cfg.Store.Rest)
	}
}
