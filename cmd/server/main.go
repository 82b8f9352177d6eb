package main

import (
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ridedash-backend/internal/database"
	"ridedash-backend/internal/events"
	"ridedash-backend/internal/geo"
	"ridedash-backend/internal/handlers"
	"ridedash-backend/internal/middleware"
	"ridedash-backend/internal/observability"
	"ridedash-backend/internal/services"
	"ridedash-backend/internal/websocket"
)

func main() {
	log.Println("🚀 RIDEDASH BACKEND SERVER STARTING")

	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, using environment variables from system")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}
	if os.Getenv("APP_JWT_SECRET") == "" {
		log.Fatal("APP_JWT_SECRET environment variable is required")
	}

	db, err := database.Connect(dbURL)
	if err != nil {
		log.Fatalf("❌ Database connection failed: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("❌ Database migrations failed: %v", err)
	}
	log.Println("✅ Database migrations completed")

	if err := database.SeedDemoRides(db); err != nil {
		log.Fatalf("❌ Ride seeding failed: %v", err)
	}

	// Firebase Cloud Messaging, optional. Supports both a credentials file
	// and base64-encoded credentials for cloud deployments.
	var fcmService *services.FCMService
	if fcmCredsBase64 := os.Getenv("FIREBASE_CREDENTIALS_BASE64"); fcmCredsBase64 != "" {
		fcmService, err = services.NewFCMServiceFromBase64(fcmCredsBase64)
		if err != nil {
			log.Printf("⚠️  Failed to initialize FCM from base64: %v (push notifications disabled)", err)
			fcmService = nil
		} else {
			log.Println("✅ Firebase Cloud Messaging initialized from base64 credentials")
		}
	} else if fcmCredentialsFile := os.Getenv("FIREBASE_CREDENTIALS_FILE"); fcmCredentialsFile != "" {
		fcmService, err = services.NewFCMService(fcmCredentialsFile)
		if err != nil {
			log.Printf("⚠️  Failed to initialize FCM from file: %v (push notifications disabled)", err)
			fcmService = nil
		} else {
			log.Println("✅ Firebase Cloud Messaging initialized from file")
		}
	}

	// Redis geo index of driver positions, optional
	var locationIndex *geo.LocationIndex
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		geoKey := os.Getenv("REDIS_GEO_KEY")
		if geoKey == "" {
			geoKey = "drivers_geo"
		}
		locationIndex = geo.NewLocationIndex(redisAddr, os.Getenv("REDIS_PASSWORD"), geoKey)
		defer locationIndex.Close()
		log.Println("✅ Redis driver location index enabled")
	}

	// Kafka ride-event log, optional
	var producer *events.Producer
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		topic := os.Getenv("KAFKA_TOPIC")
		if topic == "" {
			topic = "ride-events"
		}
		producer = events.NewProducer(splitAndTrim(brokers), topic)
		defer producer.Close()
		log.Printf("✅ Kafka ride-event producer enabled (topic %s)", topic)
	}

	rideService := services.NewRideService(db)

	wsHub := websocket.NewHub()
	go wsHub.Run()
	log.Println("✅ WebSocket hub started")

	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(observability.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// WebSocket endpoint (authentication handled in handler via query param)
	r.Get("/ws", websocket.HandleWebSocket(wsHub, rideService, producer, fcmService, db))

	r.Route("/api", func(r chi.Router) {
		// Authentication routes (no auth required)
		r.Post("/auth/register", handlers.Register(db))
		r.Post("/auth/login", handlers.Login(db))

		// Driver and ride routes (require authentication)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth)

			r.Get("/drivers/me", handlers.GetMe(db))
			r.Put("/drivers/status", handlers.UpdateStatus(rideService, wsHub))
			r.Put("/drivers/location", handlers.UpdateLocation(db, locationIndex))
			r.Put("/drivers/profile", handlers.UpdateProfile(db))
			r.Post("/drivers/fcm-token", handlers.RegisterFCMToken(db))

			r.Get("/rides", handlers.GetOpenRides(rideService))
			r.Get("/rides/driver", handlers.GetDriverRides(rideService))
			r.Put("/rides/{id}/accept", handlers.AcceptRide(rideService, wsHub, producer))
			r.Put("/rides/{id}/decline", handlers.DeclineRide(rideService, wsHub, producer))
			r.Put("/rides/{id}/complete", handlers.CompleteRide(rideService, wsHub, producer))
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("🚀 Server starting on http://localhost:%s", port)
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatalf("❌ Server failed to start: %v", err)
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, b := range raw {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		out = append(out, b)
	}
	return out
}
