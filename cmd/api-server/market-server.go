package main

import (
	"log"
	"net/http"
	"os"

	"buildmarket/db"
	"buildmarket/db/migrations"
	"buildmarket/internal/auth"
	"buildmarket/internal/boq"
	"buildmarket/internal/config"
	"buildmarket/internal/handlers"
	"buildmarket/internal/payment"
	"buildmarket/internal/settlement"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
)

func main() {
	logger := log.New(os.Stdout, "", log.Ldate|log.Ltime|log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	dbConn, err := db.Connect(cfg.PostgresConn)
	if err != nil {
		logger.Fatalf("Cannot connect to DB: %v", err)
	}
	defer dbConn.Close()

	if err := migrations.Run(dbConn.DB); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}

	redisClient, err := settlement.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Fatalf("Cannot connect to redis: %v", err)
	}
	defer redisClient.Close()

	store := db.NewStorage(dbConn)
	gateway := payment.NewHTTPGateway(cfg.PaymentGatewayEndpoint, cfg.PaymentTimeout, cfg.PaymentMaxRetries, logger)
	coordinator := settlement.NewCoordinator(store, gateway, settlement.NewRedisCache(redisClient), cfg, logger)
	generator := boq.NewGenerator(store, cfg.BOQArtifactDir, logger)
	h := handlers.NewHandler(store, coordinator, generator, cfg.AllowRebid, logger)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.PingHandler)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(cfg.JWTSecret))

			// projects and estimations
			r.Post("/projects/new", h.CreateProjectHandler)
			r.Get("/projects", h.GetProjectsHandler)
			r.Get("/projects/my", h.GetUserProjectsHandler)
			r.Put("/projects/{projectId}/publish", h.PublishProjectHandler)
			r.Post("/projects/{projectId}/estimation", h.AddEstimationItemHandler)

			// bids
			r.Post("/bids/new", h.CreateBidHandler)
			r.Get("/bids/{projectId}/list", h.GetBidsForProjectHandler)
			r.Put("/bids/{bidId}/accept", h.AcceptBidHandler)
			r.Put("/bids/{bidId}/withdraw", h.WithdrawBidHandler)

			// catalog and cart
			r.Get("/products", h.GetProductsHandler)
			r.Get("/cart", h.GetCartHandler)
			r.Post("/cart/items", h.AddCartItemHandler)
			r.Patch("/cart/items/{itemId}", h.UpdateCartItemHandler)
			r.Delete("/cart/items/{itemId}", h.RemoveCartItemHandler)

			// orders and settlement
			r.Post("/orders/checkout", h.CheckoutHandler)
			r.Get("/orders/my", h.GetUserOrdersHandler)
			r.Post("/orders/{orderId}/settle", h.InitiateSettlementHandler)
			r.Get("/splits/summary", h.GetSplitsSummaryHandler)
			r.Get("/splits/{orderId}", h.GetSplitsHandler)
			r.Put("/splits/{splitId}/check", h.CheckSplitHandler)

			// bill of quantities
			r.Post("/boq/{projectId}/generate", h.GenerateBOQHandler)
			r.Get("/boq/{projectId}", h.GetBOQHandler)
		})
	})

	logger.Printf("Starting server on %s", cfg.ServerAddress)
	logger.Fatal(http.ListenAndServe(cfg.ServerAddress, r))
}
