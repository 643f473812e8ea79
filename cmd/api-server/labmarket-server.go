package main

import (
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"labmarket/db"
	"labmarket/db/migrations"
	"labmarket/internal/handlers"
	"labmarket/internal/matching"
)

func main() {
	connString := os.Getenv("POSTGRES_CONN")
	if connString == "" {
		log.Fatal("POSTGRES_CONN env variable is not set")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Cannot create logger: %v", err)
	}
	defer logger.Sync()

	dbConn, err := sqlx.Connect("postgres", connString)
	if err != nil {
		logger.Fatal("cannot connect to db", zap.Error(err))
	}
	defer dbConn.Close()

	migrations.Run()

	store := db.NewStorage(dbConn)
	notifier := matching.NewLogNotifier(logger)
	service := matching.NewService(store, notifier)
	h := handlers.NewHandler(store, service)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.PingHandler)
		// заказы
		r.Post("/orders/new", h.CreateOrderHandler)
		r.Get("/orders/my", h.GetDoctorOrdersHandler)
		r.Get("/orders/open", h.GetOpenOrdersHandler)
		r.Get("/orders/{orderId}", h.GetOrderHandler)
		r.Put("/orders/{orderId}/status", h.ChangeOrderStatusHandler)
		r.Put("/orders/{orderId}/override", h.AdminOverrideHandler)
		r.Get("/orders/{orderId}/claims", h.GetOrderClaimsHandler)
		// лаборатории
		r.Get("/labs/recommended", h.GetRecommendedLabsHandler)
		r.Get("/labs/{labId}/quote", h.GetLabQuoteHandler)
		r.Put("/labs/{labId}/preferred", h.UpsertPreferredLabHandler)
		// заявки
		r.Post("/claims/new", h.SubmitClaimHandler)
		r.Get("/claims/my", h.GetLabClaimsHandler)
		r.Put("/claims/{claimId}/accept", h.AcceptClaimHandler)
		r.Delete("/claims/{claimId}", h.WithdrawClaimHandler)
	})

	serverAddr := os.Getenv("SERVER_ADDRESS")
	if serverAddr == "" {
		serverAddr = "0.0.0.0:8080"
	}

	logger.Info("starting server", zap.String("addr", serverAddr))
	log.Fatal(http.ListenAndServe(serverAddr, r))
}
