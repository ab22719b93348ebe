package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/vaultswap/vaultswapd/internal/config"
	"github.com/vaultswap/vaultswapd/internal/metrics"
	"github.com/vaultswap/vaultswapd/internal/orderbook"
	"github.com/vaultswap/vaultswapd/internal/storage"
	"github.com/vaultswap/vaultswapd/pkg/helpers"
)

// EventSwapCreated is broadcast on the status feed when a swap is created.
const EventSwapCreated = "swap_created"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, &HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "malformed request body: "+err.Error())
		return
	}
	if !req.BuyToken.Valid() {
		writeError(w, http.StatusUnprocessableEntity, "missing buy token")
		return
	}

	quoter, ok := s.cfg.Orderbooks[req.ChainID]
	if !ok {
		writeError(w, http.StatusBadRequest, "unsupported chain")
		return
	}

	sellAmount, err := helpers.ParseAmount(req.SellAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid sell amount: "+err.Error())
		return
	}

	quote, err := quoter.Quote(r.Context(), &orderbook.QuoteRequest{
		SellToken:  config.CBBTCToken,
		BuyToken:   req.BuyToken.OrderbookAddress(),
		From:       config.GPv2Settlement,
		SellAmount: sellAmount,
	})
	if err != nil {
		// Forward the orderbook's rejection verbatim.
		var upstream *orderbook.UpstreamError
		if errors.As(err, &upstream) {
			writeJSON(w, http.StatusBadRequest, &QuoteResponse{
				CanFill: false,
				Message: upstream.Message,
			})
			return
		}
		s.log.Error("Quote failed", "chain_id", req.ChainID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, &QuoteResponse{
		CanFill:    true,
		SellAmount: quote.SellAmount.String(),
		BuyAmount:  quote.BuyAmount.String(),
		FeeAmount:  quote.FeeAmount.String(),
	})
}

func (s *Server) handleCreateSwap(w http.ResponseWriter, r *http.Request) {
	var req CreateSwapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "malformed request body: "+err.Error())
		return
	}
	if !req.BuyToken.Valid() {
		writeError(w, http.StatusUnprocessableEntity, "missing buy token")
		return
	}

	// Gate on the configured backends, not the static registry: a swap on a
	// chain with no running poller would only ever expire.
	if _, ok := s.cfg.Orderbooks[req.ChainID]; !ok {
		writeError(w, http.StatusBadRequest, "unsupported chain")
		return
	}
	if !common.IsHexAddress(req.RecipientAddress) {
		writeError(w, http.StatusBadRequest, "invalid recipient address")
		return
	}
	if !common.IsHexAddress(req.RefundAddress) {
		writeError(w, http.StatusBadRequest, "invalid refund address")
		return
	}

	vaultAddr, salt, err := s.cfg.Vault.Mint()
	if err != nil {
		s.log.Error("Failed to mint vault", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	now := time.Now()
	rec := &storage.SwapRecord{
		ID:           id.String(),
		ChainID:      req.ChainID,
		VaultAddress: vaultAddr.Hex(),
		VaultSalt:    common.Bytes2Hex(salt),
		SellToken:    config.CBBTCToken.Hex(),
		BuyToken:     req.BuyToken.String(),
		// EIP-55 normalization happens in HexToAddress + Hex.
		RecipientAddress: common.HexToAddress(req.RecipientAddress).Hex(),
		RefundAddress:    common.HexToAddress(req.RefundAddress).Hex(),
		Status:           storage.StatusPendingDeposit,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.cfg.DepositTTL),
	}

	if err := s.cfg.Store.CreateSwap(rec); err != nil {
		s.log.Error("Failed to create swap", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create swap")
		return
	}

	s.log.Info("Swap created", "swap_id", rec.ID, "chain_id", rec.ChainID, "vault", rec.VaultAddress)
	s.cfg.Metrics.SwapsCreated.WithLabelValues(metrics.ChainLabel(rec.ChainID)).Inc()
	s.hub.Broadcast(EventSwapCreated, map[string]any{
		"swap_id":       rec.ID,
		"chain_id":      rec.ChainID,
		"vault_address": rec.VaultAddress,
	})

	writeJSON(w, http.StatusOK, &CreateSwapResponse{
		SwapID:       rec.ID,
		ChainID:      rec.ChainID,
		VaultAddress: rec.VaultAddress,
		SellToken:    rec.SellToken,
		BuyToken:     rec.BuyToken,
		CreatedAt:    rec.CreatedAt.Unix(),
		ExpiresAt:    rec.ExpiresAt.Unix(),
	})
}

func (s *Server) handleGetSwap(w http.ResponseWriter, r *http.Request) {
	rec, err := s.cfg.Store.GetSwap(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrSwapNotFound) {
			writeError(w, http.StatusNotFound, "swap not found")
			return
		}
		s.log.Error("Failed to load swap", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, swapStatusResponse(rec))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, &ErrorResponse{Error: msg})
}
