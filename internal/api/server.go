package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"civisync/internal/api/handlers"
	"civisync/internal/api/middleware"
	"civisync/internal/config"
	"civisync/internal/database"
	"civisync/internal/events"
	"civisync/internal/logger"
	"civisync/internal/services/civicrm"
	"civisync/internal/services/woocommerce"
	"civisync/internal/sync"

	"github.com/gin-gonic/gin"
)

type Server struct {
	config    *config.Config
	logger    *logger.Logger
	db        *database.Database
	publisher *events.Publisher
	router    *gin.Engine
	server    *http.Server
}

func New(cfg *config.Config, logger *logger.Logger, db *database.Database) *Server {
	// Set Gin mode
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS())

	crm := civicrm.NewClient(cfg.CiviBaseURL, cfg.CiviAPIKey, cfg.CiviSiteKey, logger)

	primary := woocommerce.NewClient(cfg.WooBaseURL, cfg.WooConsumerKey, cfg.WooConsumerSecret, logger)
	var orders *woocommerce.Client
	if cfg.WooOrdersBaseURL != "" {
		orders = woocommerce.NewClient(cfg.WooOrdersBaseURL, cfg.WooConsumerKey, cfg.WooConsumerSecret, logger)
	}
	stores := woocommerce.NewStores(primary, orders)

	engine := sync.NewEngine(cfg, logger, db, crm, stores)
	publisher := events.NewPublisher(cfg.KafkaBrokers, logger)

	// Initialize handlers
	webhookHandler := handlers.NewWebhookHandler(cfg, logger, publisher)
	ordersHandler := handlers.NewOrdersHandler(logger, crm, stores)
	orderMetaHandler := handlers.NewOrderMetaHandler(cfg, logger, db.DB, crm, engine, publisher)
	sourcesHandler := handlers.NewSourcesHandler(logger, db.DB)
	utmHandler := handlers.NewUTMHandler(logger, engine)

	// Routes
	v1 := router.Group("/api/v1")
	{
		// Store webhooks
		webhooks := v1.Group("/webhooks")
		{
			webhooks.POST("/woocommerce", webhookHandler.Receive)
		}

		// Contact orders tab
		contacts := v1.Group("/contacts")
		{
			contacts.GET("/:cid/orders", ordersHandler.List)
		}

		// Order panel
		ordersGroup := v1.Group("/orders")
		{
			ordersGroup.GET("/:id/civicrm", orderMetaHandler.Get)
			ordersGroup.PUT("/:id/civicrm", orderMetaHandler.Update)
			ordersGroup.POST("/:id/sync", orderMetaHandler.Resync)
		}

		// Campaign selector and source picker
		v1.GET("/campaigns", orderMetaHandler.Campaigns)
		v1.GET("/sources", sourcesHandler.List)

		// Campaign attribution
		v1.POST("/utm", utmHandler.Capture)
	}

	return &Server{
		config:    cfg,
		logger:    logger,
		db:        db,
		publisher: publisher,
		router:    router,
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.config.APIHost, s.config.APIPort)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server on " + addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	s.publisher.Close()
	return s.server.Shutdown(ctx)
}

// GetRouter returns the Gin router for serverless deployments.
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
