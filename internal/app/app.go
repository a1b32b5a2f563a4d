package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"guidehub/internal/events"
	"guidehub/internal/razorpay"
	"guidehub/pkg/queue"
	"guidehub/pkg/storage"
	"guidehub/pkg/store"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string

	SessionTTL  time.Duration
	RefreshTTL  time.Duration
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTLeeway   time.Duration

	RazorpayKeyID     string
	RazorpayKeySecret string
	RazorpayBaseURL   string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	PresignTTL     time.Duration

	AMQPURL        string
	EventQueueName string

	InspectStream string

	// Overrides for tests and alternate wiring.
	Store         store.Store
	Sessions      store.SessionStore
	RefreshTokens store.RefreshTokenStore
	Objects       storage.ObjectStore
	Gateway       *razorpay.Client
	Events        events.Publisher
	InspectQueue  *queue.RedisJobQueue
}

// App wires storage, payments, and content delivery together.
type App struct {
	store         store.Store
	sessions      store.SessionStore
	refreshTokens store.RefreshTokenStore
	objects       storage.ObjectStore
	gateway       *razorpay.Client
	keySecret     string
	events        events.Publisher
	inspectQueue  *queue.RedisJobQueue
	refreshTTL    time.Duration
	presignTTL    time.Duration
}

// New constructs the application with database storage, object storage,
// session management, and the payment gateway client.
func New(cfg Config) (*App, error) {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.PresignTTL == 0 {
		cfg.PresignTTL = 15 * time.Minute
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	sessionStore := cfg.Sessions
	if sessionStore == nil {
		if strings.TrimSpace(cfg.JWTSecret) == "" {
			return nil, fmt.Errorf("jwtSecret is required")
		}
		var revoker store.TokenRevoker
		if strings.TrimSpace(cfg.RedisAddr) != "" {
			revoker = store.NewRedisTokenRevoker(cfg.RedisAddr, cfg.RedisPassword)
		} else {
			revoker = store.NewMemoryTokenRevoker()
		}
		jwtStore, err := store.NewJWTSessionStoreWithOptions(cfg.JWTSecret, cfg.SessionTTL, revoker, store.JWTOptions{
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
			Leeway:   cfg.JWTLeeway,
		})
		if err != nil {
			return nil, fmt.Errorf("init jwt session store: %w", err)
		}
		sessionStore = jwtStore
	}

	refreshStore := cfg.RefreshTokens
	if refreshStore == nil {
		if strings.TrimSpace(cfg.RedisAddr) != "" {
			refreshStore = store.NewRedisRefreshTokenStore(cfg.RedisAddr, cfg.RedisPassword)
		} else {
			refreshStore = store.NewMemoryRefreshTokenStore()
		}
	}

	objects := cfg.Objects
	if objects == nil {
		if strings.TrimSpace(cfg.MinioEndpoint) == "" {
			return nil, fmt.Errorf("minio endpoint required")
		}
		var err error
		objects, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return nil, fmt.Errorf("init object store: %w", err)
		}
	}

	gateway := cfg.Gateway
	if gateway == nil {
		if strings.TrimSpace(cfg.RazorpayKeyID) == "" || strings.TrimSpace(cfg.RazorpayKeySecret) == "" {
			return nil, fmt.Errorf("razorpay key pair required")
		}
		gateway = razorpay.NewClient(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.RazorpayBaseURL)
	}

	publisher := cfg.Events
	if publisher == nil && strings.TrimSpace(cfg.AMQPURL) != "" {
		queueName := strings.TrimSpace(cfg.EventQueueName)
		if queueName == "" {
			queueName = "guidehub.purchases"
		}
		var err error
		publisher, err = events.NewRabbitPublisher(cfg.AMQPURL, queueName)
		if err != nil {
			return nil, fmt.Errorf("init event publisher: %w", err)
		}
	}

	inspectQueue := cfg.InspectQueue
	if inspectQueue == nil && strings.TrimSpace(cfg.RedisAddr) != "" {
		stream := strings.TrimSpace(cfg.InspectStream)
		if stream == "" {
			stream = "guidehub:pdf:inspect"
		}
		var err error
		inspectQueue, err = queue.NewRedisJobQueue(queue.RedisQueueConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Stream:   stream,
			Group:    "inspectors",
		})
		if err != nil {
			return nil, fmt.Errorf("init inspect queue: %w", err)
		}
	}

	return &App{
		store:         dataStore,
		sessions:      sessionStore,
		refreshTokens: refreshStore,
		objects:       objects,
		gateway:       gateway,
		keySecret:     cfg.RazorpayKeySecret,
		events:        publisher,
		inspectQueue:  inspectQueue,
		refreshTTL:    cfg.RefreshTTL,
		presignTTL:    cfg.PresignTTL,
	}, nil
}

// StartWorkers launches background consumers until ctx is canceled.
func (a *App) StartWorkers(ctx context.Context) {
	if a.inspectQueue == nil {
		return
	}
	a.inspectQueue.Start(ctx, 2, func(ctx context.Context, job queue.JobStatus) error {
		return a.InspectGuidePDF(ctx, job.GuideID)
	})
}

// Close releases external connections.
func (a *App) Close() {
	if a.events != nil {
		a.events.Close()
	}
}
