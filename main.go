package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tickyai/handlers"
	"tickyai/internal/ai"
	"tickyai/internal/metrics"
	"tickyai/internal/telegram"
	"tickyai/internal/types/usage"
	"tickyai/middleware"
	"tickyai/services"

	_ "net/http/pprof"
)

var (
	dbPool              *pgxpool.Pool
	userService         *services.UserService
	usageService        *services.UsageService
	taskService         *services.TaskService
	habitService        *services.HabitService
	reminderService     *services.ReminderService
	moodService         *services.MoodService
	focusService        *services.FocusService
	assistantService    *services.AssistantService
	notificationService *services.NotificationService
	broadcastService    *services.BroadcastService
	dependencyService   *services.DependencyService
	schedulerService    *services.SchedulerService
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	if os.Getenv("SERVICE_TOKEN") == "" {
		log.Fatal("SERVICE_TOKEN environment variable is not set")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		log.Fatal("Failed to parse database URL:", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	dbPool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatal("Failed to create connection pool:", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	log.Println("Successfully connected to PostgreSQL")

	gateway, err := telegram.NewGateway(os.Getenv("TELEGRAM_BOT_TOKEN"))
	if err != nil {
		log.Fatal("Failed to initialize Telegram gateway:", err)
	}

	aiModel := os.Getenv("OPENAI_MODEL")
	if aiModel == "" {
		aiModel = "gpt-4o-mini"
	}
	aiClient := ai.NewOpenAIClient(aiModel)

	var adminIDs []string
	if raw := os.Getenv("ADMIN_USER_IDS"); raw != "" {
		adminIDs = strings.Split(raw, ",")
	}

	userService = services.NewUserService(dbPool)
	usageService = services.NewUsageService(userService, usage.DefaultLimits(), adminIDs)
	taskService = services.NewTaskService(dbPool, usageService)
	habitService = services.NewHabitService(dbPool, usageService)
	reminderService = services.NewReminderService(dbPool, usageService)
	moodService = services.NewMoodService(dbPool)
	focusService = services.NewFocusService(dbPool)
	assistantService = services.NewAssistantService(aiClient, usageService)

	notificationService = services.NewNotificationService(habitService, userService, gateway)
	broadcastService = services.NewBroadcastService(userService, habitService, taskService, reminderService, aiClient, gateway)
	dependencyService = services.NewDependencyService(services.NewDependencyStore(dbPool), userService, gateway)
	schedulerService = services.NewSchedulerService(notificationService, habitService, broadcastService, dependencyService)
	habitService.SetScheduler(schedulerService)

	middleware.InitPrometheus()
	metrics.Init()
}

func main() {
	defer func() {
		log.Println("Closing database connection pool...")
		dbPool.Close()
	}()

	if err := schedulerService.Start(context.Background()); err != nil {
		log.Fatal("Failed to start scheduler:", err)
	}

	userHandler := handlers.NewUserHandler(userService, usageService)
	taskHandler := handlers.NewTaskHandler(taskService)
	habitHandler := handlers.NewHabitHandler(habitService)
	reminderHandler := handlers.NewReminderHandler(reminderService)
	dependencyHandler := handlers.NewDependencyHandler(dependencyService)
	wellbeingHandler := handlers.NewWellbeingHandler(moodService, focusService)
	assistantHandler := handlers.NewAssistantHandler(assistantService)

	r := mux.NewRouter()

	go middleware.CleanupVisitors()

	r.Use(middleware.RateLimitMiddleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))
	r.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(http.DefaultServeMux))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := dbPool.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "tickyai-api"}`))
	}).Methods("GET")

	// -------------------------------------------------------------------------
	// API V1 SUBROUTER (bot backend, shared-secret auth)
	// -------------------------------------------------------------------------
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.ServiceAuthMiddleware)

	api.HandleFunc("/users", userHandler.UpsertUser).Methods("POST")
	api.HandleFunc("/user", userHandler.GetProfile).Methods("GET")
	api.HandleFunc("/user/settings", userHandler.UpdateSettings).Methods("PUT")
	api.HandleFunc("/user/trial", userHandler.StartTrial).Methods("POST")
	api.HandleFunc("/user/limits", userHandler.CheckLimit).Methods("GET")

	api.HandleFunc("/tasks", taskHandler.CreateTask).Methods("POST")
	api.HandleFunc("/tasks", taskHandler.ListTasks).Methods("GET")
	api.HandleFunc("/tasks/{taskId}/complete", taskHandler.CompleteTask).Methods("POST")
	api.HandleFunc("/tasks/{taskId}", taskHandler.DeleteTask).Methods("DELETE")

	api.HandleFunc("/habits", habitHandler.CreateHabit).Methods("POST")
	api.HandleFunc("/habits", habitHandler.ListHabits).Methods("GET")
	api.HandleFunc("/habits/{habitId}", habitHandler.UpdateHabit).Methods("PUT")
	api.HandleFunc("/habits/{habitId}", habitHandler.DeleteHabit).Methods("DELETE")
	api.HandleFunc("/habits/{habitId}/complete", habitHandler.CompleteHabit).Methods("POST")
	api.HandleFunc("/habits/{habitId}/cancel", habitHandler.CancelCompletion).Methods("POST")
	api.HandleFunc("/habits/{habitId}/skip", habitHandler.SkipHabitToday).Methods("POST")

	api.HandleFunc("/reminders", reminderHandler.CreateReminder).Methods("POST")
	api.HandleFunc("/reminders", reminderHandler.ListReminders).Methods("GET")
	api.HandleFunc("/reminders/{reminderId}/dismiss", reminderHandler.DismissReminder).Methods("POST")

	api.HandleFunc("/support", dependencyHandler.StartSession).Methods("POST")
	api.HandleFunc("/support", dependencyHandler.ListSessions).Methods("GET")
	api.HandleFunc("/support/{sessionId}/stop", dependencyHandler.StopSession).Methods("POST")

	api.HandleFunc("/mood", wellbeingHandler.AddMoodEntry).Methods("POST")
	api.HandleFunc("/mood", wellbeingHandler.ListMoodEntries).Methods("GET")
	api.HandleFunc("/focus", wellbeingHandler.StartFocusSession).Methods("POST")
	api.HandleFunc("/focus", wellbeingHandler.ListFocusSessions).Methods("GET")
	api.HandleFunc("/focus/{sessionId}/end", wellbeingHandler.EndFocusSession).Methods("POST")

	api.HandleFunc("/assistant/ask", assistantHandler.Ask).Methods("POST")

	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "X-Service-Token", "X-User-ID", "X-Pprof-Secret"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3333"
	}
	port = ":" + port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	log.Println("Stopping scheduler...")
	schedulerService.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server shutdown complete")
}
