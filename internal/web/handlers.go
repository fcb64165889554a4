package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"

	"redemption-service/internal/apperror"
	"redemption-service/internal/messaging"
	"redemption-service/internal/payload"
	"redemption-service/internal/status"
	"redemption-service/internal/webhook"
)

const defaultAmount = 19.99

type errorResponse struct {
	Error string `json:"error"`
}

type createPaymentRequest struct {
	Amount float64 `json:"amount"`
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	amount := req.Amount
	if amount <= 0 {
		amount = defaultAmount
	}
	amountCents := int64(math.Round(amount * 100))

	charge, err := s.gateway.CreateCharge(ctx, amountCents)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error creating charge", "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "error creating charge"})
		return
	}

	// Losing these writes would orphan the charge, so failures surface.
	if err := s.resolver.RegisterAliases(ctx, charge.CanonicalID, charge.Aliases); err != nil {
		s.logger.ErrorContext(ctx, "Error registering aliases", "id", charge.CanonicalID, "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "error persisting payment"})
		return
	}
	if err := s.records.Initialize(ctx, charge.CanonicalID); err != nil {
		s.logger.ErrorContext(ctx, "Error initializing payment record", "id", charge.CanonicalID, "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "error persisting payment"})
		return
	}

	s.logger.InfoContext(ctx, "Payment created", "id", charge.CanonicalID, "amountCents", amountCents)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(charge.Raw)
}

type statusResponse struct {
	ID     string        `json:"id"`
	Status status.Status `json:"status"`
}

func (s *Server) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	canonical, err := s.resolver.Resolve(ctx, r.PathValue("id"))
	if err != nil {
		s.logger.ErrorContext(ctx, "Error resolving payment id", "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "error reading payment"})
		return
	}

	current, err := s.records.GetStatus(ctx, canonical)
	if err != nil {
		// Read path degrades to pending instead of failing the poll.
		s.logger.WarnContext(ctx, "Error reading status, degrading to pending", "id", canonical, "error", err)
		writeJSON(w, http.StatusOK, statusResponse{ID: canonical, Status: status.Pending})
		return
	}

	if current == status.Pending {
		current = s.pollProvider(r, canonical, current)
	}

	writeJSON(w, http.StatusOK, statusResponse{ID: canonical, Status: current})
}

// pollProvider asks the provider directly while the cached status is still
// pending, covering the window before the webhook lands. Any failure keeps
// the cached value.
func (s *Server) pollProvider(r *http.Request, canonical string, current status.Status) status.Status {
	ctx := r.Context()

	rawStatus, err := s.gateway.GetTransaction(ctx, canonical)
	if err != nil {
		s.logger.WarnContext(ctx, "Error polling provider", "id", canonical, "error", err)
		return current
	}
	if rawStatus == "" {
		return current
	}

	normalized := status.Normalize(rawStatus)
	if normalized == status.Pending || normalized == status.Unknown {
		return current
	}

	applied, err := s.records.ApplyStatus(ctx, canonical, normalized, "")
	if err != nil {
		s.logger.WarnContext(ctx, "Error applying polled status", "id", canonical, "error", err)
		return current
	}
	return applied
}

type codeResponse struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

func (s *Server) handlePaymentCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	canonical, err := s.resolver.Resolve(ctx, r.PathValue("id"))
	if err != nil {
		s.logger.ErrorContext(ctx, "Error resolving payment id", "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "error reading payment"})
		return
	}

	issued, err := s.issuer.Issue(ctx, canonical)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, codeResponse{ID: canonical, Code: issued})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unreadable body"})
		return
	}

	if err := s.authenticator.Authenticate(r); err != nil {
		if errors.Is(err, apperror.ErrConfiguration) {
			s.logger.ErrorContext(ctx, "Webhook credentials not configured, rejecting")
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "webhook not configured"})
			return
		}

		s.logger.WarnContext(ctx, "Unauthenticated webhook rejected")
		s.processor.RecordRejected(ctx,
			r.URL.Query().Get("secret") != "",
			r.Header.Get(webhook.HeaderProviderToken) != "",
			body)
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "webhook not authorized"})
		return
	}

	doc, err := payload.Decode(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid payload"})
		return
	}

	result, err := s.processor.Process(ctx, doc, body)
	if err != nil {
		// A payload without an id is a permanent failure; answering 4xx
		// keeps the provider from retrying it forever. Store failures are
		// transient and must trigger a retry.
		if errors.Is(err, apperror.ErrNotFound) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "no payment id in payload"})
			return
		}
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "error applying webhook"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": result.ID, "status": result.Status})
}

type redeemRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	redemption, err := s.redeemer.Redeem(ctx, req.Code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": redemption.ID, "status": redemption.Status})
}

func (s *Server) handleMessagingInbound(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if s.messagingCfg.Secret == "" || r.URL.Query().Get("secret") != s.messagingCfg.Secret {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid secret"})
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	// The messaging provider retries on non-2xx; parsing problems are
	// permanent, so everything past authentication answers 200.
	doc, err := payload.Decode(body)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	inbound := messaging.ParseInbound(doc)
	if inbound.Phone == "" || inbound.Text == "" {
		s.logger.InfoContext(ctx, "Inbound message without phone or text")
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	token, found := messaging.ExtractCode(inbound.Text)
	if !found {
		s.reply(r, inbound.Phone, "Não encontrei um código na sua mensagem.\n\nEnvie o código de 6 caracteres que você recebeu, ex: codigo ABC234.")
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	redemption, err := s.redeemer.Redeem(ctx, token)
	if err != nil {
		s.logger.InfoContext(ctx, "Inbound redemption failed", "error", err)
		s.reply(r, inbound.Phone, "❌ Código inválido ou ainda não confirmado.\n\nConfira se digitou certinho e tente novamente em alguns segundos.")
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	s.logger.InfoContext(ctx, "Inbound redemption succeeded", "id", redemption.ID)
	s.reply(r, inbound.Phone,
		fmt.Sprintf("✅ Pagamento confirmado!\n\nSeu acesso foi liberado com sucesso.\n\n🔓 Aqui está seu acesso exclusivo:\n%s", s.messagingCfg.AccessLink))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "sent": true})
}

func (s *Server) reply(r *http.Request, phone, text string) {
	if s.messenger == nil {
		return
	}
	if err := s.messenger.SendText(r.Context(), phone, text); err != nil {
		s.logger.WarnContext(r.Context(), "Error sending reply", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, apperror.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "code already used"})
	case errors.Is(err, apperror.ErrNotAuthorized):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "payment not confirmed"})
	case errors.Is(err, apperror.ErrGenerationExhausted):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "could not generate code, retry"})
	default:
		s.logger.ErrorContext(r.Context(), "Unhandled error", "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "upstream failure"})
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}
