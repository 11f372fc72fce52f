package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"mingle_server/config"
	"mingle_server/models"
	"mingle_server/routes"
	"mingle_server/services"
	"mingle_server/socket"
	"mingle_server/utils"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	// Initialize persistence. Without an AWS region the server falls back
	// to in-memory repositories for local development.
	var pairRepo services.PairRepository
	var messageRepo services.MessageRepository
	if cfg.AWSRegion != "" {
		log.Println("Initializing DynamoDB client...")
		dynamoClient := services.InitializeDynamoDBClient()
		dynamoService := &services.DynamoService{Client: dynamoClient}
		pairRepo = &services.DynamoPairRepository{Dynamo: dynamoService}
		messageRepo = &services.DynamoMessageRepository{Dynamo: dynamoService}
		log.Println("DynamoDB client initialized.")
	} else {
		log.Println("⚠️ AWS_REGION not set; using in-memory repositories")
		pairRepo = services.NewMemoryPairRepository()
		messageRepo = services.NewMemoryMessageRepository()
	}

	issuer := &utils.TokenIssuer{Secret: []byte(cfg.JWTSecret), TTL: cfg.JWTTTL}
	notifier := services.LogNotifier{}

	// Initialize Services
	hub := socket.NewHub()
	presenceService := services.NewPresenceService()
	chatService := &services.ChatService{
		Messages:  messageRepo,
		Pairs:     pairRepo,
		Notifier:  notifier,
		Broadcast: hub,
	}
	actionService := &services.ActionService{
		Pairs:         pairRepo,
		Messages:      messageRepo,
		Notifier:      notifier,
		Broadcast:     hub,
		UnmatchPolicy: cfg.UnmatchPolicy,
	}

	// Push presence transitions into the rooms the user is paired in
	presenceService.Subscribe(func(userID string, online bool) {
		hub.BroadcastPresence(userID, online)
	})

	socketServer := &socket.Server{
		Hub:            hub,
		Chat:           chatService,
		Presence:       presenceService,
		Auth:           issuer,
		AllowedOrigins: cfg.AllowedOrigins,
		AuthTimeout:    10 * time.Second,
	}

	log.Printf("Using server port: %s\n", cfg.ServerPort)

	// Initialize the router
	r := mux.NewRouter()

	// Register a welcome route
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "Welcome to Mingle")
	}).Methods("GET")

	// Register a health check endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	}).Methods("GET")

	// Register routes
	routes.RegisterAuthRoutes(r, issuer)
	routes.RegisterActionRoutes(r, actionService, issuer)
	routes.RegisterChatRoutes(r, chatService, issuer)
	routes.RegisterPresenceRoutes(r, presenceService, issuer)

	if cfg.S3Bucket != "" {
		s3Service, err := services.NewS3Service(context.Background(), cfg.AWSRegion, cfg.S3Bucket)
		if err != nil {
			log.Fatalf("Failed to initialize S3 service: %v", err)
		}
		routes.RegisterMediaRoutes(r, s3Service, issuer)
	} else {
		log.Printf("⚠️ S3_BUCKET_NAME not set; media upload routes disabled (kind=%s still accepts external URLs)", models.KindImage)
	}

	// Realtime delivery channel
	r.HandleFunc("/ws", socketServer.HandleWebSocket)

	// Add CORS middleware
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(r)

	// Start the HTTP server
	log.Printf("Starting server on port %s...\n", cfg.ServerPort)
	log.Fatal(http.ListenAndServe(":"+cfg.ServerPort, corsHandler))
}
