package api_http

import (
	"net/http"

	"bank/internal/app/transfers"
)

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}

	list, err := h.services.Accounts.ListAccounts(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := AccountListResponse{Accounts: make([]AccountResponse, 0, len(list))}
	for _, account := range list {
		resp.Accounts = append(resp.Accounts, newAccountResponse(account))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req OpenAccountRequest
	if !h.decode(w, r, &req) {
		return
	}

	account, err := h.services.Accounts.OpenAccount(r.Context(), userID, req.Nickname)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, newAccountResponse(account))
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}

	accountID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	account, err := h.services.Accounts.GetAccount(r.Context(), userID, accountID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newAccountResponse(account))
}

func (h *Handler) Statement(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}
	accountID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	entries, err := h.services.Accounts.Statement(r.Context(), userID, accountID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := StatementResponse{AccountID: accountID, Transfers: make([]TransferResponse, 0, len(entries))}
	for _, entry := range entries {
		resp.Transfers = append(resp.Transfers, newTransferResponse(entry))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.principal(w, r); !ok {
		return
	}
	accountID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req MovementRequest
	if !h.decode(w, r, &req) {
		return
	}

	entry, err := h.services.Transfers.Deposit(r.Context(), accountID, req.Value, req.Description)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, newTransferResponse(entry))
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}
	accountID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req MovementRequest
	if !h.decode(w, r, &req) {
		return
	}

	entry, err := h.services.Transfers.Withdraw(r.Context(), userID, accountID, req.Value, req.Description)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, newTransferResponse(entry))
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req TransferRequest
	if !h.decode(w, r, &req) || !h.validIDs(w, req.SenderID, req.ReceiverID) {
		return
	}

	entry, err := h.services.Transfers.Transfer(r.Context(), transfers.TransferRequest{
		CallerID:    userID,
		SenderID:    req.SenderID,
		ReceiverID:  req.ReceiverID,
		Value:       req.Value,
		Description: req.Description,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, newTransferResponse(entry))
}
