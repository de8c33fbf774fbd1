package api_http

import "net/http"

func (h *Handler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req LendingRequest
	if !h.decode(w, r, &req) || !h.validIDs(w, req.AccountID) {
		return
	}

	result, err := h.services.Lending.CreateLoan(r.Context(), userID, req.AccountID, req.Value, req.Installments)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, newLoanResponse(result.Loan, result.Installments))
}

func (h *Handler) CreateCredit(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req LendingRequest
	if !h.decode(w, r, &req) || !h.validIDs(w, req.AccountID) {
		return
	}

	result, err := h.services.Lending.CreateCredit(r.Context(), userID, req.AccountID, req.Value, req.Installments)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, newCreditResponse(result.Credit, result.Installments))
}

func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}

	accountID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	loans, err := h.services.Lending.ListLoans(r.Context(), userID, accountID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := LoanListResponse{Loans: make([]LoanResponse, 0, len(loans))}
	for _, loan := range loans {
		resp.Loans = append(resp.Loans, newLoanResponse(loan, nil))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ListCredits(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}

	accountID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	credits, err := h.services.Lending.ListCredits(r.Context(), userID, accountID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := CreditListResponse{Credits: make([]CreditResponse, 0, len(credits))}
	for _, credit := range credits {
		resp.Credits = append(resp.Credits, newCreditResponse(credit, nil))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) LoanInstallments(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}
	loanID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	items, err := h.services.Lending.LoanInstallments(r.Context(), userID, loanID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, InstallmentListResponse{ParentID: loanID, Installments: newInstallmentResponses(items)})
}

func (h *Handler) CreditInstallments(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}
	creditID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	items, err := h.services.Lending.CreditInstallments(r.Context(), userID, creditID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, InstallmentListResponse{ParentID: creditID, Installments: newInstallmentResponses(items)})
}
