package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tablepos/api/internal/config"
	"github.com/tablepos/api/internal/database"
	"github.com/tablepos/api/internal/gateway"
	"github.com/tablepos/api/internal/handler"
	"github.com/tablepos/api/internal/menuimport"
	mw "github.com/tablepos/api/internal/middleware"
	"github.com/tablepos/api/internal/service"
	"github.com/tablepos/api/internal/ws"
)

// Deps are the collaborators that cannot be built from the database alone.
// Receipts and MenuExtractor may be nil.
type Deps struct {
	Gateway       gateway.Gateway
	Receipts      service.ReceiptDispatcher
	MenuExtractor menuimport.TextExtractor
}

// New creates a Chi router with all application routes wired up.
// Every protected route is gated by middleware.Authenticate and then by its
// own policy operation inside the handler's RegisterRoutes.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub, deps Deps) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Method(http.MethodGet, "/ws/orders", ws.NewHandler(hub, cfg.JWTSecret, cfg.CORSOrigins))

	orderService := service.NewOrderService(pool, queries, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}, hub)

	paymentService := service.NewPaymentService(pool, queries, func(db database.DBTX) service.PaymentStore {
		return database.New(db)
	}, deps.Gateway, deps.Receipts, hub, service.PaymentConfig{
		Currency:       cfg.Currency,
		GatewayTimeout: cfg.GatewayTimeout,
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		handler.NewRestaurantHandler(queries).RegisterRoutes(r)
		handler.NewUserHandler(queries).RegisterRoutes(r)
		handler.NewMenuHandler(queries, pool, func(db database.DBTX) handler.MenuStore {
			return database.New(db)
		}, deps.MenuExtractor).RegisterRoutes(r)
		handler.NewTableHandler(queries, orderService).RegisterRoutes(r)
		handler.NewOrderHandler(orderService).RegisterRoutes(r)
		handler.NewPaymentHandler(paymentService).RegisterRoutes(r)
	})

	log.Println("Router initialized with all handlers")
	return r
}
