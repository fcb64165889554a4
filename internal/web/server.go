package web

import (
	"context"
	"log/slog"
	"net/http"

	"redemption-service/internal/code"
	"redemption-service/internal/config"
	"redemption-service/internal/identity"
	"redemption-service/internal/logcontext"
	"redemption-service/internal/payment"
	"redemption-service/internal/webhook"

	"github.com/google/uuid"
)

// ChargeGateway is the payment provider collaborator consumed by the
// handlers.
type ChargeGateway interface {
	CreateCharge(ctx context.Context, amountCents int64) (*payment.Charge, error)
	GetTransaction(ctx context.Context, id string) (string, error)
}

// Messenger is the outbound chat delivery collaborator.
type Messenger interface {
	SendText(ctx context.Context, phone, text string) error
}

type Server struct {
	gateway       ChargeGateway
	resolver      *identity.Resolver
	records       *payment.RecordStore
	issuer        *code.Issuer
	redeemer      *code.Redeemer
	authenticator *webhook.Authenticator
	processor     *webhook.Processor
	messenger     Messenger
	messagingCfg  config.Messaging
	logger        *slog.Logger
}

func NewServer(
	gateway ChargeGateway,
	resolver *identity.Resolver,
	records *payment.RecordStore,
	issuer *code.Issuer,
	redeemer *code.Redeemer,
	authenticator *webhook.Authenticator,
	processor *webhook.Processor,
	messenger Messenger,
	messagingCfg config.Messaging,
	logger *slog.Logger,
) *Server {
	return &Server{
		gateway:       gateway,
		resolver:      resolver,
		records:       records,
		issuer:        issuer,
		redeemer:      redeemer,
		authenticator: authenticator,
		processor:     processor,
		messenger:     messenger,
		messagingCfg:  messagingCfg,
		logger:        logger,
	}
}

// Router wires the HTTP surface.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /liveness", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("POST /payments", s.handleCreatePayment)
	mux.HandleFunc("GET /payments/{id}/status", s.handlePaymentStatus)
	mux.HandleFunc("GET /payments/{id}/code", s.handlePaymentCode)
	mux.HandleFunc("POST /webhooks/payment", s.handleWebhook)
	mux.HandleFunc("POST /codes/redeem", s.handleRedeem)
	mux.HandleFunc("POST /messaging/inbound", s.handleMessagingInbound)

	return corsMiddleware(s.requestIDMiddleware(mux))
}

// corsMiddleware mirrors the checkout front end's cross-origin needs: any
// origin may call, preflights short-circuit.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+webhook.HeaderProviderToken)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logcontext.AppendCtx(r.Context(), slog.String("requestId", uuid.New().String()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
