package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
)

var (
	db      *sql.DB
	dbMutex sync.Mutex
)

// initDB initializes the database connection
func initDB() error {
	dbMutex.Lock()
	defer dbMutex.Unlock()

	if db != nil {
		return nil // Already initialized
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL not set")
	}

	var err error
	db, err = sql.Open("postgres", databaseURL)
	if err != nil {
		return err
	}

	// Test the connection
	if err = db.Ping(); err != nil {
		return err
	}

	// Create all required tables
	tables := []string{
		`CREATE TABLE IF NOT EXISTS order_syncs (
			id TEXT PRIMARY KEY,
			order_id BIGINT UNIQUE NOT NULL,
			order_number VARCHAR(255),
			contact_id BIGINT DEFAULT 0,
			contribution_id BIGINT DEFAULT 0,
			membership_id BIGINT DEFAULT 0,
			membership_processed VARCHAR(50) DEFAULT '',
			campaign_id BIGINT DEFAULT 0,
			source VARCHAR(255) DEFAULT '',
			pos BOOLEAN DEFAULT FALSE,
			last_event VARCHAR(100) DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS utm_attributions (
			id TEXT PRIMARY KEY,
			client_token VARCHAR(255) UNIQUE NOT NULL,
			campaign_id BIGINT DEFAULT 0,
			source VARCHAR(255) DEFAULT '',
			medium VARCHAR(255) DEFAULT '',
			expires_at TIMESTAMP WITH TIME ZONE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS settings (
			key VARCHAR(255) PRIMARY KEY,
			value TEXT,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`,
	}

	// Execute all table creation statements
	for _, tableSQL := range tables {
		_, err = db.Exec(tableSQL)
		if err != nil {
			return fmt.Errorf("failed to create table: %v", err)
		}
	}

	return nil
}

// verifyWebhookSignature checks the HMAC-SHA256 signature the store sends
// with each webhook delivery.
func verifyWebhookSignature(body []byte, signature string) bool {
	secret := os.Getenv("WOO_WEBHOOK_SECRET")
	if secret == "" {
		return true
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Handler is the main entry point for Vercel
func Handler(w http.ResponseWriter, r *http.Request) {
	// Initialize database connection
	if err := initDB(); err != nil {
		http.Error(w, fmt.Sprintf("Database initialization failed: %v", err), http.StatusInternalServerError)
		return
	}

	// Set Gin to release mode for production
	gin.SetMode(gin.ReleaseMode)

	// Create a simple router
	router := gin.New()

	// Add basic middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-WC-Webhook-Signature, X-WC-Webhook-Topic")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Health check endpoint
	router.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "CiviSync API is running",
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	v1 := router.Group("/api/v1")
	{
		// Sync state for one order
		v1.GET("/orders/:id/civicrm", func(c *gin.Context) {
			orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
				return
			}

			var (
				orderNumber, source, lastEvent          string
				contactID, contributionID, membershipID int64
				campaignID                              int64
			)
			err = db.QueryRow(`
				SELECT order_number, contact_id, contribution_id, membership_id, campaign_id, source, last_event
				FROM order_syncs WHERE order_id = $1`, orderID).
				Scan(&orderNumber, &contactID, &contributionID, &membershipID, &campaignID, &source, &lastEvent)
			if err == sql.ErrNoRows {
				c.JSON(http.StatusNotFound, gin.H{"error": "Order not synced"})
				return
			}
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sync state"})
				return
			}

			c.JSON(http.StatusOK, gin.H{
				"order_id":        orderID,
				"order_number":    orderNumber,
				"contact_id":      contactID,
				"contribution_id": contributionID,
				"membership_id":   membershipID,
				"campaign_id":     campaignID,
				"source":          source,
				"last_event":      lastEvent,
			})
		})

		// Distinct contribution sources
		v1.GET("/sources", func(c *gin.Context) {
			rows, err := db.Query(`SELECT DISTINCT source FROM order_syncs WHERE source <> '' ORDER BY source`)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sources"})
				return
			}
			defer rows.Close()

			sources := []string{}
			for rows.Next() {
				var s string
				if err := rows.Scan(&s); err != nil {
					continue
				}
				sources = append(sources, s)
			}

			c.JSON(http.StatusOK, gin.H{"data": sources, "count": len(sources)})
		})

		// Store webhook intake. The received event is recorded against the
		// order row so the worker backfill can replay it.
		v1.POST("/webhooks/woocommerce", func(c *gin.Context) {
			body, err := io.ReadAll(c.Request.Body)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
				return
			}

			if !verifyWebhookSignature(body, c.GetHeader("X-WC-Webhook-Signature")) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
				return
			}

			var payload struct {
				ID     int64  `json:"id"`
				Number string `json:"number"`
				Status string `json:"status"`
			}
			if err := json.Unmarshal(body, &payload); err != nil || payload.ID == 0 {
				c.JSON(http.StatusOK, gin.H{"status": "ignored"})
				return
			}

			topic := c.GetHeader("X-WC-Webhook-Topic")
			_, err = db.Exec(`
				INSERT INTO order_syncs (id, order_id, order_number, last_event, updated_at)
				VALUES ($1, $2, $3, $4, NOW())
				ON CONFLICT (order_id) DO UPDATE SET
					last_event = EXCLUDED.last_event,
					updated_at = NOW()`,
				fmt.Sprintf("webhook_%d_%d", payload.ID, time.Now().Unix()),
				payload.ID, payload.Number, topic)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record event"})
				return
			}

			c.JSON(http.StatusOK, gin.H{"status": "recorded", "order_id": payload.ID})
		})
	}

	router.ServeHTTP(w, r)
}
