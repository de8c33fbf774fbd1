package api_http

import (
	"time"

	"bank/internal/domain"
	"bank/internal/money"
)

const timeLayout = time.RFC3339

type RegisterUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

type TokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   string `json:"expires_at"`
}

type OpenAccountRequest struct {
	Nickname string `json:"nickname"`
}

type AccountResponse struct {
	ID        string      `json:"id"`
	Agency    string      `json:"agency"`
	Number    string      `json:"number"`
	Nickname  string      `json:"nickname"`
	Balance   money.Money `json:"balance"`
	CreatedAt string      `json:"created_at"`
	UpdatedAt string      `json:"updated_at"`
}

type AccountListResponse struct {
	Accounts []AccountResponse `json:"accounts"`
}

type MovementRequest struct {
	Value       money.Money `json:"value"`
	Description string      `json:"description"`
}

type TransferRequest struct {
	SenderID    string      `json:"sender_id"`
	ReceiverID  string      `json:"receiver_id"`
	Value       money.Money `json:"value"`
	Description string      `json:"description"`
}

type TransferResponse struct {
	ID          string      `json:"id"`
	SenderID    *string     `json:"sender_id"`
	ReceiverID  *string     `json:"receiver_id"`
	Value       money.Money `json:"value"`
	Description string      `json:"description"`
	CreatedAt   string      `json:"created_at"`
}

type StatementResponse struct {
	AccountID string             `json:"account_id"`
	Transfers []TransferResponse `json:"transfers"`
}

type LendingRequest struct {
	AccountID    string      `json:"account_id"`
	Value        money.Money `json:"value"`
	Installments int         `json:"installments"`
}

type InstallmentResponse struct {
	ID       string      `json:"id"`
	Sequence int         `json:"sequence"`
	Value    money.Money `json:"value"`
	DueDate  string      `json:"due_date"`
	PaidAt   *string     `json:"paid_at"`
}

type LoanResponse struct {
	ID           string                `json:"id"`
	AccountID    string                `json:"account_id"`
	Value        money.Money           `json:"value"`
	Installments int                   `json:"installments"`
	FeeRate      string                `json:"fee_rate"`
	CreatedAt    string                `json:"created_at"`
	Schedule     []InstallmentResponse `json:"schedule,omitempty"`
}

type CreditResponse struct {
	ID           string                `json:"id"`
	AccountID    string                `json:"account_id"`
	Value        money.Money           `json:"value"`
	Installments int                   `json:"installments"`
	CreatedAt    string                `json:"created_at"`
	Schedule     []InstallmentResponse `json:"schedule,omitempty"`
}

type LoanListResponse struct {
	Loans []LoanResponse `json:"loans"`
}

type CreditListResponse struct {
	Credits []CreditResponse `json:"credits"`
}

type InstallmentListResponse struct {
	ParentID     string                `json:"parent_id"`
	Installments []InstallmentResponse `json:"installments"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func newUserResponse(u *domain.UserRecord) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, CreatedAt: formatTime(u.CreatedAt)}
}

func newAccountResponse(a *domain.Account) AccountResponse {
	return AccountResponse{
		ID:        a.ID,
		Agency:    a.Agency,
		Number:    a.Number,
		Nickname:  a.Nickname,
		Balance:   a.Balance,
		CreatedAt: formatTime(a.CreatedAt),
		UpdatedAt: formatTime(a.UpdatedAt),
	}
}

func newTransferResponse(t *domain.Transfer) TransferResponse {
	return TransferResponse{
		ID:          t.ID,
		SenderID:    t.SenderID,
		ReceiverID:  t.ReceiverID,
		Value:       t.Value,
		Description: t.Description,
		CreatedAt:   formatTime(t.CreatedAt),
	}
}

func newInstallmentResponses(items []domain.Installment) []InstallmentResponse {
	out := make([]InstallmentResponse, 0, len(items))
	for _, item := range items {
		resp := InstallmentResponse{
			ID:       item.ID,
			Sequence: item.Sequence,
			Value:    item.Value,
			DueDate:  formatTime(item.DueDate),
		}
		if item.PaidAt != nil {
			paid := formatTime(*item.PaidAt)
			resp.PaidAt = &paid
		}
		out = append(out, resp)
	}
	return out
}

func newLoanResponse(l *domain.Loan, plan []domain.Installment) LoanResponse {
	resp := LoanResponse{
		ID:           l.ID,
		AccountID:    l.AccountID,
		Value:        l.Value,
		Installments: l.Installments,
		FeeRate:      l.FeeRate.String(),
		CreatedAt:    formatTime(l.CreatedAt),
	}
	if plan != nil {
		resp.Schedule = newInstallmentResponses(plan)
	}
	return resp
}

func newCreditResponse(c *domain.Credit, plan []domain.Installment) CreditResponse {
	resp := CreditResponse{
		ID:           c.ID,
		AccountID:    c.AccountID,
		Value:        c.Value,
		Installments: c.Installments,
		CreatedAt:    formatTime(c.CreatedAt),
	}
	if plan != nil {
		resp.Schedule = newInstallmentResponses(plan)
	}
	return resp
}
