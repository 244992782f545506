package appServer

import (
	"context"
	"crypto/tls"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ticket-office/config"
	dbstore "ticket-office/internal/database/postgres"
	"ticket-office/internal/payment"
	"ticket-office/internal/service"
	"ticket-office/internal/transport"
	"ticket-office/internal/worker"

	"ticket-office/pkg/mailer"
	"ticket-office/pkg/postgres"
	"ticket-office/pkg/queue"
	"ticket-office/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       cfg.Server.Idle_timeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12}, // ban on outdate TLS certificate
		ErrorLog:          log.New(os.Stderr, "SERVER ERROR: ", log.LstdFlags),
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func NewServer(cfg *config.Config) {

	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(logrus.InfoLevel)

	// Initialize database
	db, err := postgres.NewPostgresDB(&cfg.Database)
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Run database migrations
	if err := postgres.RunMigrations(db); err != nil {
		logrus.Fatalf("Failed to run migrations: %v", err)
	}

	store := dbstore.NewStore(db)

	// Initialize payment gateway
	var gateway payment.Gateway
	if cfg.Payment.UseFake || cfg.Payment.BaseURL == "" {
		gateway = payment.NewFakeGateway()
		logrus.Warn("Using fake payment gateway; charges are not real")
	} else {
		gateway = payment.NewHTTPGateway(&cfg.Payment)
		logrus.Info("Payment gateway initialized")
	}

	// Initialize mailer
	orderMailer := mailer.NewMailer(&cfg.Email)
	if !cfg.Email.Enabled {
		logrus.Warn("Mailer disabled, customer emails will be skipped")
	}

	// Initialize notification queue
	var redisQueue queue.Queue
	var taskPublisher service.TaskPublisher

	if cfg.Redis.Host != "" {
		redisClient := redis.NewRedisClient(&cfg.Redis)
		defer redisClient.Close()

		queueCfg := queue.DefaultRedisQueueConfig()
		retryManager := queue.NewRetryManager(queueCfg.MaxRetries, queueCfg.BaseDelay)
		dlqHandler := queue.NewDefaultDLQHandler(redisClient, queueCfg.DLQ, queueCfg.MainQueue)

		redisQueue, err = queue.NewRedisQueue(redisClient, queueCfg, retryManager, dlqHandler)
		if err != nil {
			logrus.Errorf("Failed to initialize Redis queue: %v. Continuing without queue...", err)
			redisQueue = nil
		} else {
			logrus.Info("Redis queue initialized")
			taskPublisher = service.NewQueueAdapter(redisQueue)
		}
	}

	// Initialize services
	orderService := service.NewOrderService(store, gateway, taskPublisher, &cfg.Order)
	eventService := service.NewEventService(store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start queue consumer
	if redisQueue != nil {
		taskHandler := queue.NewTaskHandler(orderService, orderMailer)
		if err := redisQueue.Subscribe(ctx, taskHandler.HandleTask); err != nil {
			logrus.Errorf("Queue subscriber error: %v", err)
		} else {
			logrus.Info("Queue subscriber started")
		}
	}

	// Start sweep worker
	sweepWorker := worker.NewEventSweepWorker(eventService, cfg.Worker.SweepInterval, cfg.Worker.SweepAttempts)
	go sweepWorker.Start(ctx)

	// Initialize handlers
	eventHandler := transport.NewEventHandler(eventService)
	orderHandler := transport.NewOrderHandler(orderService)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := new(Server)
	go func() {
		if err := srv.Run(cfg, transport.InitRoutes(eventHandler, orderHandler)); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("error occured while running http server: %s", err.Error())
		}
	}()

	logrus.Print("App Started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logrus.Print("App Shutting Down")

	if err := srv.Shutdown(context.Background()); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}

	if redisQueue != nil {
		if err := redisQueue.Close(); err != nil {
			logrus.Errorf("error occured on queue shutting down: %s", err.Error())
		}
	}
}
