package api_http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bank/internal/app/accounts"
	"bank/internal/app/lending"
	"bank/internal/app/loginguard"
	"bank/internal/app/transfers"
	"bank/internal/auth"
	"bank/internal/domain"
	"bank/internal/money"
	"bank/internal/repository/memory"
	"bank/internal/util"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	t      *testing.T
	server *httptest.Server
	clock  *util.ManualClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	clock := util.NewManualClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	store := memory.NewStore(memory.WithClock(clock))
	ids := util.UUIDGenerator{}
	logger := zap.NewNop()

	services := Services{
		Accounts:  accounts.NewAccountService(store, util.RandomAccountNumberGenerator{}, ids, clock, logger),
		Transfers: transfers.NewTransferService(store, ids, clock, logger),
		Lending:   lending.NewLendingService(store, ids, clock, lending.DefaultFeeRate, logger),
		Guard:     loginguard.NewGuard(store, loginguard.NewBcryptCredentials(bcrypt.MinCost), ids, clock, logger),
		Tokens:    auth.NewTokenManager("test-secret", time.Hour, clock),
	}
	srv := httptest.NewServer(NewRouter(services, []string{"*"}, logger))
	t.Cleanup(srv.Close)
	return &testServer{t: t, server: srv, clock: clock}
}

func (s *testServer) do(method, path, token string, body interface{}, out interface{}) int {
	s.t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			payload.WriteString(raw)
		} else if err := json.NewEncoder(&payload).Encode(body); err != nil {
			s.t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, s.server.URL+path, &payload)
	if err != nil {
		s.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.server.Client().Do(req)
	if err != nil {
		s.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			s.t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

// signUp registers a user past the review window and returns a token.
func (s *testServer) signUp(email string) string {
	s.t.Helper()
	if code := s.do(http.MethodPost, "/api/users", "", RegisterUserRequest{Email: email, Password: "pw"}, nil); code != http.StatusCreated {
		s.t.Fatalf("register %s: status %d", email, code)
	}
	s.clock.Advance(loginguard.GraceWindow)
	var token TokenResponse
	if code := s.do(http.MethodPost, "/api/token", "", TokenRequest{Email: email, Password: "pw"}, &token); code != http.StatusOK {
		s.t.Fatalf("login %s: status %d", email, code)
	}
	return token.AccessToken
}

func (s *testServer) openAccount(token, nickname string) AccountResponse {
	s.t.Helper()
	var account AccountResponse
	if code := s.do(http.MethodPost, "/api/accounts", token, OpenAccountRequest{Nickname: nickname}, &account); code != http.StatusCreated {
		s.t.Fatalf("open account: status %d", code)
	}
	return account
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	if code := s.do(http.MethodGet, "/health", "", nil, nil); code != http.StatusOK {
		t.Fatalf("health status = %d", code)
	}
}

func TestBearerRequired(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing", token: ""},
		{name: "garbage", token: "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body ErrorResponse
			if code := s.do(http.MethodGet, "/api/accounts", tt.token, nil, &body); code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", code)
			}
			if body.Code != http.StatusUnauthorized {
				t.Fatalf("body code = %d", body.Code)
			}
		})
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp("ana@example.com")

	s.clock.Advance(2 * time.Hour)
	if code := s.do(http.MethodGet, "/api/accounts", token, nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", code)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)

	var user UserResponse
	if code := s.do(http.MethodPost, "/api/users", "", RegisterUserRequest{Email: "Ana@Example.com", Password: "pw"}, &user); code != http.StatusCreated {
		t.Fatalf("register status = %d", code)
	}
	if user.Email != "ana@example.com" {
		t.Fatalf("email = %q", user.Email)
	}
	if code := s.do(http.MethodPost, "/api/users", "", RegisterUserRequest{Email: "ana@example.com", Password: "pw"}, nil); code != http.StatusConflict {
		t.Fatalf("duplicate register status = %d, want 409", code)
	}
	if code := s.do(http.MethodPost, "/api/users", "", RegisterUserRequest{Email: "", Password: "pw"}, nil); code != http.StatusBadRequest {
		t.Fatalf("empty email status = %d, want 400", code)
	}

	login := TokenRequest{Email: "ana@example.com", Password: "pw"}
	if code := s.do(http.MethodPost, "/api/token", "", login, nil); code != http.StatusUnauthorized {
		t.Fatalf("login during review status = %d, want 401", code)
	}

	s.clock.Advance(loginguard.GraceWindow)
	var token TokenResponse
	if code := s.do(http.MethodPost, "/api/token", "", login, &token); code != http.StatusOK {
		t.Fatalf("login status = %d", code)
	}
	if token.AccessToken == "" || token.TokenType != "Bearer" {
		t.Fatalf("unexpected token response %+v", token)
	}

	if code := s.do(http.MethodPost, "/api/token", "", TokenRequest{Email: "nobody@example.com", Password: "pw"}, nil); code != http.StatusUnauthorized {
		t.Fatalf("unknown user status = %d, want 401", code)
	}
}

func TestLoginLockout(t *testing.T) {
	s := newTestServer(t)
	s.signUp("ana@example.com")

	bad := TokenRequest{Email: "ana@example.com", Password: "wrong"}
	for i := 0; i < loginguard.MaxAttempts; i++ {
		if code := s.do(http.MethodPost, "/api/token", "", bad, nil); code != http.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d, want 401", i+1, code)
		}
	}

	good := TokenRequest{Email: "ana@example.com", Password: "pw"}
	if code := s.do(http.MethodPost, "/api/token", "", good, nil); code != http.StatusLocked {
		t.Fatalf("locked login status = %d, want 423", code)
	}

	s.clock.Advance(loginguard.LockoutWindow)
	if code := s.do(http.MethodPost, "/api/token", "", good, nil); code != http.StatusOK {
		t.Fatalf("login after lockout status = %d, want 200", code)
	}
}

func TestAccountFlow(t *testing.T) {
	s := newTestServer(t)
	ana := s.signUp("ana@example.com")
	bob := s.signUp("bob@example.com")

	anaAccount := s.openAccount(ana, "main")
	bobAccount := s.openAccount(bob, "savings")

	if code := s.do(http.MethodPost, "/api/accounts", ana, OpenAccountRequest{Nickname: "  "}, nil); code != http.StatusBadRequest {
		t.Fatalf("blank nickname status = %d, want 400", code)
	}

	deposit := fmt.Sprintf("/api/accounts/%s/deposit", anaAccount.ID)
	if code := s.do(http.MethodPost, deposit, ana, `{"value": "100.00", "description": "salary"}`, nil); code != http.StatusCreated {
		t.Fatalf("deposit status = %d", code)
	}
	if code := s.do(http.MethodPost, deposit, ana, `{"value": "1.005"}`, nil); code != http.StatusBadRequest {
		t.Fatalf("three-digit deposit status = %d, want 400", code)
	}

	withdraw := fmt.Sprintf("/api/accounts/%s/withdraw", anaAccount.ID)
	if code := s.do(http.MethodPost, withdraw, ana, `{"value": "150"}`, nil); code != http.StatusUnprocessableEntity {
		t.Fatalf("overdraw status = %d, want 422", code)
	}
	if code := s.do(http.MethodPost, withdraw, bob, `{"value": "10"}`, nil); code != http.StatusForbidden {
		t.Fatalf("foreign withdraw status = %d, want 403", code)
	}
	if code := s.do(http.MethodPost, withdraw, ana, `{"value": "40"}`, nil); code != http.StatusCreated {
		t.Fatalf("withdraw status = %d", code)
	}

	transfer := TransferRequest{SenderID: anaAccount.ID, ReceiverID: bobAccount.ID, Value: money.MustParse("25.50"), Description: "rent"}
	if code := s.do(http.MethodPost, "/api/transfers", bob, transfer, nil); code != http.StatusForbidden {
		t.Fatalf("transfer by non-owner status = %d, want 403", code)
	}
	var entry TransferResponse
	if code := s.do(http.MethodPost, "/api/transfers", ana, transfer, &entry); code != http.StatusCreated {
		t.Fatalf("transfer status = %d", code)
	}
	if entry.Value.String() != "25.50" {
		t.Fatalf("transfer value = %s", entry.Value)
	}

	var account AccountResponse
	if code := s.do(http.MethodGet, "/api/accounts/"+anaAccount.ID, ana, nil, &account); code != http.StatusOK {
		t.Fatalf("get account status = %d", code)
	}
	if account.Balance.String() != "34.50" {
		t.Fatalf("balance = %s, want 34.50", account.Balance)
	}
	if code := s.do(http.MethodGet, "/api/accounts/"+anaAccount.ID, bob, nil, nil); code != http.StatusForbidden {
		t.Fatalf("foreign account status = %d, want 403", code)
	}
	if code := s.do(http.MethodGet, "/api/accounts/00000000-0000-0000-0000-000000000000", ana, nil, nil); code != http.StatusNotFound {
		t.Fatalf("missing account status = %d, want 404", code)
	}
	if code := s.do(http.MethodGet, "/api/accounts/not-a-uuid", ana, nil, nil); code != http.StatusBadRequest {
		t.Fatalf("malformed id status = %d, want 400", code)
	}

	var statement StatementResponse
	if code := s.do(http.MethodGet, "/api/accounts/"+anaAccount.ID+"/statement", ana, nil, &statement); code != http.StatusOK {
		t.Fatalf("statement status = %d", code)
	}
	if len(statement.Transfers) != 3 {
		t.Fatalf("statement has %d entries, want 3", len(statement.Transfers))
	}

	var list AccountListResponse
	if code := s.do(http.MethodGet, "/api/accounts", bob, nil, &list); code != http.StatusOK {
		t.Fatalf("list status = %d", code)
	}
	if len(list.Accounts) != 1 || list.Accounts[0].Balance.String() != "25.50" {
		t.Fatalf("unexpected bob accounts %+v", list.Accounts)
	}
}

func TestLendingRoutes(t *testing.T) {
	s := newTestServer(t)
	ana := s.signUp("ana@example.com")
	account := s.openAccount(ana, "main")

	var loan LoanResponse
	code := s.do(http.MethodPost, "/api/loans", ana, `{"account_id": "`+account.ID+`", "value": "1000", "installments": 3}`, &loan)
	if code != http.StatusCreated {
		t.Fatalf("create loan status = %d", code)
	}
	if len(loan.Schedule) != 3 || loan.Schedule[0].Sequence != 0 {
		t.Fatalf("unexpected loan schedule %+v", loan.Schedule)
	}

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{name: "loan at minimum", path: "/api/loans", body: `{"account_id": "` + account.ID + `", "value": "100", "installments": 2}`, want: http.StatusUnprocessableEntity},
		{name: "credit above maximum", path: "/api/credits", body: `{"account_id": "` + account.ID + `", "value": "10000.01", "installments": 2}`, want: http.StatusUnprocessableEntity},
		{name: "unknown account", path: "/api/credits", body: `{"account_id": "00000000-0000-0000-0000-000000000000", "value": "500", "installments": 2}`, want: http.StatusNotFound},
		{name: "credit ok", path: "/api/credits", body: `{"account_id": "` + account.ID + `", "value": "500", "installments": 2}`, want: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := s.do(http.MethodPost, tt.path, ana, tt.body, nil); code != tt.want {
				t.Fatalf("status = %d, want %d", code, tt.want)
			}
		})
	}

	var loans LoanListResponse
	if code := s.do(http.MethodGet, "/api/accounts/"+account.ID+"/loans", ana, nil, &loans); code != http.StatusOK {
		t.Fatalf("list loans status = %d", code)
	}
	if len(loans.Loans) != 1 || loans.Loans[0].ID != loan.ID {
		t.Fatalf("unexpected loans %+v", loans.Loans)
	}

	var credits CreditListResponse
	if code := s.do(http.MethodGet, "/api/accounts/"+account.ID+"/credits", ana, nil, &credits); code != http.StatusOK {
		t.Fatalf("list credits status = %d", code)
	}
	if len(credits.Credits) != 1 {
		t.Fatalf("unexpected credits %+v", credits.Credits)
	}

	var installments InstallmentListResponse
	if code := s.do(http.MethodGet, "/api/loans/"+loan.ID+"/installments", ana, nil, &installments); code != http.StatusOK {
		t.Fatalf("installments status = %d", code)
	}
	if len(installments.Installments) != 3 {
		t.Fatalf("got %d installments, want 3", len(installments.Installments))
	}
	if code := s.do(http.MethodGet, "/api/credits/"+credits.Credits[0].ID+"/installments", ana, nil, &installments); code != http.StatusOK {
		t.Fatalf("credit installments status = %d", code)
	}

	var got AccountResponse
	s.do(http.MethodGet, "/api/accounts/"+account.ID, ana, nil, &got)
	if got.Balance.String() != "1000.00" {
		t.Fatalf("balance after loan = %s, want 1000.00", got.Balance)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: domain.ErrInvalidAmount, want: http.StatusBadRequest},
		{err: domain.ErrNicknameRequired, want: http.StatusBadRequest},
		{err: domain.ErrNotOwner, want: http.StatusForbidden},
		{err: domain.ErrLoanNotFound, want: http.StatusNotFound},
		{err: domain.ErrInsufficientFunds, want: http.StatusUnprocessableEntity},
		{err: domain.ErrBelowMinimum, want: http.StatusUnprocessableEntity},
		{err: domain.ErrAboveMaximum, want: http.StatusUnprocessableEntity},
		{err: domain.ErrUnderReview, want: http.StatusUnauthorized},
		{err: domain.ErrTooManyAttempts, want: http.StatusUnauthorized},
		{err: domain.ErrLocked, want: http.StatusLocked},
		{err: domain.ErrRetryableCollision, want: http.StatusConflict},
		{err: domain.TransactionFailure(errors.New("connection reset")), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Fatalf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
