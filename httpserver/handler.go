package httpserver

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/ruteri/wallet-kernel/cryptoutils"
	"github.com/ruteri/wallet-kernel/interfaces"
	"github.com/ruteri/wallet-kernel/sdk"
	"github.com/ruteri/wallet-kernel/sharing"
)

const (
	// PinHeader carries the user's pin on every wallet request.
	PinHeader = "X-Wallet-Pin"

	// maxBodySize is the maximum allowed request body size (1MB).
	maxBodySize = 1024 * 1024
)

// Handler exposes an sdk.Sdk session over HTTP.
type Handler struct {
	sdk *sdk.Sdk
	log *slog.Logger

	mu       sync.Mutex
	recovery *sharing.Recovery
}

func NewHandler(s *sdk.Sdk, log *slog.Logger) *Handler {
	return &Handler{
		sdk:      s,
		log:      log,
		recovery: sharing.NewRecovery(),
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// statusFor maps an SDK error kind onto an HTTP status.
func statusFor(err error) int {
	switch sdk.KindOf(err) {
	case sdk.KindValidation:
		return http.StatusBadRequest
	case sdk.KindNotFound:
		return http.StatusNotFound
	case sdk.KindConflict:
		return http.StatusConflict
	case sdk.KindCrypto:
		if sdk.IsWrongCredentials(err) {
			return http.StatusUnauthorized
		}
		return http.StatusInternalServerError
	case sdk.KindShare:
		return http.StatusUnprocessableEntity
	case sdk.KindState:
		return http.StatusPreconditionFailed
	case sdk.KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", slog.String("path", r.URL.Path), "err", err)
	} else {
		h.log.Debug("request rejected", slog.String("path", r.URL.Path), slog.Int("status", status), "err", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: sdk.KindOf(err).String()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode reads a JSON body; unknown fields are rejected.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &sdk.Error{Op: "decode_request", Kind: sdk.KindValidation, Err: fmt.Errorf("invalid request body: %w", err)}
	}
	return nil
}

func (h *Handler) pin(r *http.Request) (cryptoutils.EncryptionPin, error) {
	return h.sdk.ParsePin(r.Header.Get(PinHeader))
}

type usernameRequest struct {
	Username string `json:"username"`
}

// HandleCreateUser registers a user.
//
// POST /api/users {"username": "..."}
func (h *Handler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req usernameRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.sdk.CreateNewUser(r.Context(), req.Username); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"username": req.Username})
}

// HandleInitUser starts a session for an existing user.
//
// POST /api/session {"username": "..."}
func (h *Handler) HandleInitUser(w http.ResponseWriter, r *http.Request) {
	var req usernameRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.sdk.InitUser(r.Context(), req.Username); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.resetRecovery()
	writeOK(w)
}

// HandleLogout ends the session.
//
// DELETE /api/session
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.resetRecovery()
	if err := h.sdk.Logout(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w)
}

// HandleRefreshToken installs a backend access token.
//
// PUT /api/session/token {"token": "..."}
func (h *Handler) HandleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.sdk.RefreshAccessToken(r.Context(), req.Token); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w)
}

// HandleDeleteUser deletes the active user and wallet.
//
// DELETE /api/user
func (h *Handler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	pin, err := h.pin(r)
	if err == nil {
		err = h.sdk.DeleteUser(r.Context(), pin)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w)
}

// HandleSetPassword sets or changes the wallet password.
//
// PUT /api/wallet/password {"password": "..."}
func (h *Handler) HandleSetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	pin, err := h.pin(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	password, err := h.sdk.ParsePassword(req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer password.Zero()

	if err := h.sdk.SetWalletPassword(r.Context(), pin, password); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w)
}

// HandlePasswordStatus reports whether a password is set.
//
// GET /api/wallet/password
func (h *Handler) HandlePasswordStatus(w http.ResponseWriter, r *http.Request) {
	set, err := h.sdk.IsWalletPasswordSet(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"password_set": set})
}

// HandleVerifyPin checks the pin header.
//
// POST /api/wallet/pin/verify
func (h *Handler) HandleVerifyPin(w http.ResponseWriter, r *http.Request) {
	pin, err := h.pin(r)
	if err == nil {
		err = h.sdk.VerifyPin(r.Context(), pin)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w)
}

// HandleChangePin moves the wallet to a new pin.
//
// PUT /api/wallet/pin {"new_pin": "..."}
func (h *Handler) HandleChangePin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewPin string `json:"new_pin"`
	}
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	oldPin, err := h.pin(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	newPin, err := h.sdk.ParsePin(req.NewPin)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.sdk.ChangePin(r.Context(), oldPin, newPin); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w)
}

// HandleCreateWallet creates a wallet from a new mnemonic, or from the given
// one. A generated mnemonic is returned once.
//
// POST /api/wallet {"mnemonic": "..."}
func (h *Handler) HandleCreateWallet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mnemonic string `json:"mnemonic"`
	}
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	pin, err := h.pin(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if req.Mnemonic != "" {
		mnemonic := cryptoutils.SecretFromString(req.Mnemonic)
		defer mnemonic.Zero()
		if err := h.sdk.CreateWalletFromMnemonic(r.Context(), pin, mnemonic); err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"status": "created"})
		return
	}

	mnemonic, err := h.sdk.CreateWalletFromNewMnemonic(r.Context(), pin)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer mnemonic.Zero()
	writeJSON(w, http.StatusCreated, map[string]string{"status": "created", "mnemonic": string(mnemonic.Reveal())})
}

// HandleDeleteWallet removes the wallet.
//
// DELETE /api/wallet
func (h *Handler) HandleDeleteWallet(w http.ResponseWriter, r *http.Request) {
	pin, err := h.pin(r)
	if err == nil {
		err = h.sdk.DeleteWallet(r.Context(), pin)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w)
}

// HandleCreateShares splits the wallet into text-encoded shares.
//
// POST /api/wallet/shares {"total": 5, "threshold": 3}
func (h *Handler) HandleCreateShares(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Total     int `json:"total"`
		Threshold int `json:"threshold"`
	}
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	pin, err := h.pin(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	shares, err := h.sdk.CreateWalletShares(r.Context(), pin, req.Total, req.Threshold)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer shares.Zero()

	encoded := make([]string, 0, len(shares.Shares))
	for _, s := range shares.Shares {
		text, err := s.Encode()
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		encoded = append(encoded, text)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"split_id":  shares.SplitID.String(),
		"threshold": shares.Threshold,
		"shares":    encoded,
	})
}

// HandleCreateGuardianShares seals one share to each guardian key.
//
// POST /api/wallet/shares/guardians {"threshold": 2, "guardians": ["<PEM pubkey>", ...]}
func (h *Handler) HandleCreateGuardianShares(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Threshold int      `json:"threshold"`
		Guardians []string `json:"guardians"`
	}
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	pin, err := h.pin(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	guardians := make([]cryptoutils.GuardianPubkey, 0, len(req.Guardians))
	for _, g := range req.Guardians {
		pub, err := cryptoutils.NewGuardianPubkey([]byte(g))
		if err != nil {
			h.writeError(w, r, &sdk.Error{Op: "decode_request", Kind: sdk.KindValidation, Err: err})
			return
		}
		guardians = append(guardians, pub)
	}

	sealed, err := h.sdk.CreateWalletSharesForGuardians(r.Context(), pin, req.Threshold, guardians)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]string, len(sealed))
	for i, s := range sealed {
		out[i] = hex.EncodeToString(s)
	}
	writeJSON(w, http.StatusOK, map[string]any{"sealed_shares": out})
}

// HandleSubmitShare adds one share to the recovery in progress. Once the
// threshold is reached the wallet is created under the pin header.
//
// POST /api/wallet/recovery/shares {"share": "wks1-..."}
func (h *Handler) HandleSubmitShare(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Share string `json:"share"`
	}
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	pin, err := h.pin(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	share, err := sharing.ParseShare(req.Share)
	if err != nil {
		h.writeError(w, r, &sdk.Error{Op: "submit_share", Kind: sdk.KindShare, Err: err})
		return
	}
	defer share.Zero()

	h.mu.Lock()
	defer h.mu.Unlock()

	complete, err := h.recovery.Submit(share)
	if err != nil && !errors.Is(err, sharing.ErrRecoveryComplete) {
		h.writeError(w, r, &sdk.Error{Op: "submit_share", Kind: sdk.KindShare, Err: err})
		return
	}
	if !complete {
		h.log.Info("share accepted", slog.Int("index", share.Index), slog.Int("missing", h.recovery.Missing()))
		writeJSON(w, http.StatusAccepted, map[string]any{"complete": false, "missing": h.recovery.Missing()})
		return
	}

	// a failed create keeps the secret so the request can be retried with
	// the right pin
	if err := h.sdk.CreateWalletFromRecovery(r.Context(), pin, h.recovery); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.recovery.Reset()
	h.log.Info("wallet recovered from shares")
	writeJSON(w, http.StatusCreated, map[string]any{"complete": true, "missing": 0})
}

// HandleResetRecovery discards collected shares.
//
// DELETE /api/wallet/recovery
func (h *Handler) HandleResetRecovery(w http.ResponseWriter, r *http.Request) {
	h.resetRecovery()
	writeOK(w)
}

func (h *Handler) resetRecovery() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recovery.Reset()
}

// HandleBackup stores the encrypted vault in backup storage.
//
// POST /api/wallet/backup
func (h *Handler) HandleBackup(w http.ResponseWriter, r *http.Request) {
	pin, err := h.pin(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := h.sdk.BackupWallet(r.Context(), pin)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id.String()})
}

// HandleRestore installs a stored backup.
//
// POST /api/wallet/restore {"id": "<hex content id>"}
func (h *Handler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	pin, err := h.pin(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := interfaces.NewContentIDFromHex(req.ID)
	if err != nil {
		h.writeError(w, r, &sdk.Error{Op: "decode_request", Kind: sdk.KindValidation, Err: err})
		return
	}
	if err := h.sdk.RestoreWalletBackup(r.Context(), pin, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w)
}

// HandleGetNetworks lists networks and the selected one.
//
// GET /api/networks
func (h *Handler) HandleGetNetworks(w http.ResponseWriter, r *http.Request) {
	networks, err := h.sdk.GetNetworks(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := map[string]any{"networks": networks}
	if n, err := h.sdk.Network(); err == nil {
		resp["selected"] = n.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleSetNetwork selects a network.
//
// PUT /api/network {"id": "..."}
func (h *Handler) HandleSetNetwork(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.sdk.SetNetwork(r.Context(), req.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w)
}

// HandleNewAddress derives the next receive address.
//
// POST /api/wallet/address
func (h *Handler) HandleNewAddress(w http.ResponseWriter, r *http.Request) {
	pin, err := h.pin(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	address, err := h.sdk.GenerateNewAddress(r.Context(), pin)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"address": address})
}

// HandleTransactions pages through the wallet history.
//
// GET /api/wallet/transactions?start=0&limit=10
func (h *Handler) HandleTransactions(w http.ResponseWriter, r *http.Request) {
	start, err := queryInt(r, "start", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	pin, err := h.pin(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	page, err := h.sdk.GetWalletTransactionList(r.Context(), pin, start, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &sdk.Error{Op: "decode_request", Kind: sdk.KindValidation, Err: fmt.Errorf("%s: %w", name, err)}
	}
	return v, nil
}

// HandleSend transfers amount to address on the selected network.
//
// POST /api/wallet/send {"address": "...", "amount": "0.1", "data": "<base64>"}
func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
		Amount  string `json:"amount"`
		Data    []byte `json:"data"`
	}
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	pin, err := h.pin(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	info, err := h.sdk.SendAmount(r.Context(), pin, req.Address, req.Amount, req.Data)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// HandleKyc refreshes and returns the KYC status.
//
// GET /api/kyc
func (h *Handler) HandleKyc(w http.ResponseWriter, r *http.Request) {
	status, err := h.sdk.GetKycStatus(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   status,
		"verified": status.KycStatus() == interfaces.KycVerified,
	})
}
