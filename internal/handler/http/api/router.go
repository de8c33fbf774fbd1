package api_http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// NewRouter builds the full HTTP surface of the service.
func NewRouter(s Services, allowedOrigins []string, l *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	RegisterRoutes(r, s, l)
	return r
}

func RegisterRoutes(r chi.Router, s Services, l *zap.Logger) {
	handler := NewHandler(s, l.With(zap.String("component", "BankHTTPHandler")))

	r.Get("/health", handler.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/users", handler.RegisterUser)
		r.Post("/token", handler.IssueToken)

		r.Group(func(r chi.Router) {
			r.Use(RequireBearer(s.Tokens, l.With(zap.String("component", "AuthMiddleware"))))

			r.Route("/accounts", func(r chi.Router) {
				r.Get("/", handler.ListAccounts)
				r.Post("/", handler.OpenAccount)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", handler.GetAccount)
					r.Post("/deposit", handler.Deposit)
					r.Post("/withdraw", handler.Withdraw)
					r.Get("/statement", handler.Statement)
					r.Get("/loans", handler.ListLoans)
					r.Get("/credits", handler.ListCredits)
				})
			})

			r.Post("/transfers", handler.Transfer)

			r.Post("/loans", handler.CreateLoan)
			r.Get("/loans/{id}/installments", handler.LoanInstallments)

			r.Post("/credits", handler.CreateCredit)
			r.Get("/credits/{id}/installments", handler.CreditInstallments)
		})
	})
}
