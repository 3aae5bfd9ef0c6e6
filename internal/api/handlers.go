package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/susu3304/warikan/internal/buildinfo"
	"github.com/susu3304/warikan/internal/nomikai"
	"github.com/susu3304/warikan/internal/settlement"
)

const maxBodyBytes = 1 << 20

type calculateRequest struct {
	Participants []settlement.Participant `json:"participants"`
	Expenses     []settlement.Expense     `json:"expenses"`
	RoundingUnit int64                    `json:"rounding_unit"`
}

type calculateResponse struct {
	Balances        []settlement.CalculatedBalance `json:"balances"`
	RoundedBalances []settlement.RoundedBalance    `json:"rounded_balances,omitempty"`
	Settlements     []settlement.SettlementEntry   `json:"settlements"`
	UnmatchedCredit int64                          `json:"unmatched_credit"`
	UnmatchedDebit  int64                          `json:"unmatched_debit"`
}

type allocateRequest struct {
	Amount   int64               `json:"amount"`
	PayerID  string              `json:"payer_id"`
	Weights  []settlement.Weight `json:"weights"`
	Strategy string              `json:"strategy"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildinfo.Version,
	})
}

func (a *API) handleCalculate(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.RoundingUnit < 0 {
		writeError(w, http.StatusBadRequest, "rounding_unit must not be negative")
		return
	}

	res := settlement.Settle(req.Participants, req.Expenses, settlement.Options{RoundingUnit: req.RoundingUnit})
	balances := res.Balances
	if balances == nil {
		balances = []settlement.CalculatedBalance{}
	}
	writeJSON(w, http.StatusOK, calculateResponse{
		Balances:        balances,
		RoundedBalances: res.Rounded,
		Settlements:     res.Plan.Entries,
		UnmatchedCredit: res.Plan.UnmatchedCredit,
		UnmatchedDebit:  res.Plan.UnmatchedDebit,
	})
}

func (a *API) handleAllocate(w http.ResponseWriter, r *http.Request) {
	var req allocateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	strategy, err := settlement.ParseRemainderStrategy(req.Strategy)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	shares, err := settlement.Allocate(req.Amount, req.PayerID, req.Weights, strategy)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shares": shares})
}

func (a *API) handleChannelStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing claims")
		return
	}
	channelID := mux.Vars(r)["channel_id"]

	snap, err := a.sessions.Snapshot(r.Context(), channelID)
	if errors.Is(err, nomikai.ErrNotStarted) {
		writeError(w, http.StatusNotFound, "no active session for channel")
		return
	}
	if err != nil {
		a.logger.Error("failed to load session", zap.String("channel_id", channelID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	if snap.GuildID != 0 {
		member, err := a.userInGuild(r.Context(), claims.AccessToken, strconv.FormatInt(snap.GuildID, 10))
		if err != nil {
			writeError(w, http.StatusBadGateway, "failed to get guilds")
			return
		}
		if !member {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
	}
	writeJSON(w, http.StatusOK, snap)
}
