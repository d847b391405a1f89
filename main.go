package main

import (
	"context"
	"log"
	"os"

	"github.com/example/taskflow/config"
	"github.com/example/taskflow/modules/activity"
	"github.com/example/taskflow/modules/api"
	"github.com/example/taskflow/modules/auth"
	"github.com/example/taskflow/modules/cache"
	"github.com/example/taskflow/modules/ratelimit"
	"github.com/example/taskflow/modules/reminder"
	"github.com/example/taskflow/modules/task"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Println("=== Task Manager API ===")
	log.Printf("Environment: %s", cfg.Env)
	log.Printf("HTTP Address: %s", cfg.HTTPAddr)
	log.Printf("Database: %s", cfg.DBPath)
	log.Printf("Redis: %t", cfg.RedisEnabled())

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	logger := app.Logger()

	// The list cache is optional; without Redis the task module reads
	// straight from the database.
	var cachePlugin *cache.PluginModule
	if cfg.RedisEnabled() {
		cachePlugin = cache.NewPluginModule(cache.Config{
			RedisAddr:     cfg.RedisAddr,
			RedisPassword: cfg.RedisPassword,
			RedisDB:       cfg.RedisDB,
			TTL:           cfg.CacheTTL,
		}, logger)
		if err := app.RegisterPlugin(cachePlugin, "cache"); err != nil {
			log.Fatalf("Failed to register cache plugin: %v", err)
		}
	}

	rateLimitModule := ratelimit.NewModule(ratelimit.ModuleConfig{
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		Limit: ratelimit.Config{
			RequestsPerWindow: cfg.RateLimitMax,
			WindowSize:        cfg.RateLimitWindow,
		},
	}, logger)

	authModule := auth.NewModule(auth.Config{
		DBPath: cfg.DatabaseDSN(),
		JWT: auth.JWTConfig{
			SecretKey:     cfg.JWTSecret,
			TokenDuration: cfg.JWTExpire,
			Issuer:        cfg.JWTIssuer,
		},
		BcryptCost: cfg.BcryptCost,
	}, logger)
	taskModule := task.NewModule(cfg.DatabaseDSN(), logger)
	activityModule := activity.NewModule(logger)
	reminderModule := reminder.NewModule(reminder.Config{
		Schedule: cfg.ReminderSchedule,
		Window:   cfg.ReminderWindow,
	}, logger)
	apiModule := api.NewModule(api.Config{
		Addr:           cfg.HTTPAddr,
		BodyLimit:      cfg.BodyLimit,
		AllowedOrigins: cfg.AllowedOrigins(),
		DevMode:        cfg.IsDevelopment(),
	}, logger)

	// Wire up dependencies
	apiModule.SetRateLimitModule(rateLimitModule)
	apiModule.MonitorHealth(rateLimitModule, authModule, taskModule, activityModule, reminderModule)
	if cachePlugin != nil {
		apiModule.MonitorHealth(cachePlugin)
	}

	// Register modules
	// Order: independent modules first, then dependent modules
	app.Register(rateLimitModule)
	app.Register(authModule)
	app.Register(taskModule)
	app.Register(activityModule)
	app.Register(reminderModule) // Depends on task
	app.Register(apiModule)      // Depends on auth, task and activity

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg *config.Config) {
	log.Println("")
	log.Println("=== Application Started ===")
	log.Printf("API available at %s (also under /api)", cfg.HTTPAddr)
	log.Println("Endpoints:")
	log.Println("  GET    /                     - API info")
	log.Println("  GET    /health               - Module health")
	log.Println("  POST   /auth/signup          - Register")
	log.Println("  POST   /auth/login           - Login")
	log.Println("  GET    /auth/me              - Current user (auth)")
	log.Println("  POST   /auth/logout          - Logout (auth)")
	log.Println("  GET    /tasks                - List tasks (auth; status, priority, search)")
	log.Println("  POST   /tasks                - Create task (auth)")
	log.Println("  GET    /tasks/stats          - Task statistics (auth)")
	log.Println("  GET    /tasks/:id            - Get task (auth)")
	log.Println("  PUT    /tasks/:id            - Update task (auth)")
	log.Println("  PATCH  /tasks/:id/toggle     - Toggle status (auth)")
	log.Println("  DELETE /tasks/:id            - Delete task (auth)")
	log.Println("  GET    /activity             - Recent activity (auth)")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown")
}
