package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/brickvault/platform/internal/app/services/admin"
	"github.com/brickvault/platform/internal/app/services/audit"
	"github.com/brickvault/platform/internal/app/services/auth"
	"github.com/brickvault/platform/internal/app/services/clients"
	"github.com/brickvault/platform/internal/app/services/documents"
	"github.com/brickvault/platform/internal/app/services/flags"
	"github.com/brickvault/platform/internal/app/services/investments"
	"github.com/brickvault/platform/internal/app/services/investors"
	kycsvc "github.com/brickvault/platform/internal/app/services/kyc"
	"github.com/brickvault/platform/internal/app/services/notifications"
	"github.com/brickvault/platform/internal/app/services/properties"
	"github.com/brickvault/platform/internal/app/services/tokens"
	"github.com/brickvault/platform/internal/app/services/users"
	"github.com/brickvault/platform/internal/app/services/visits"
	"github.com/brickvault/platform/internal/app/storage"
	"github.com/brickvault/platform/internal/app/storage/memory"
	"github.com/brickvault/platform/internal/app/system"
	"github.com/brickvault/platform/internal/chain"
	"github.com/brickvault/platform/internal/kycprovider"
	"github.com/brickvault/platform/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users         storage.UserStore
	Investors     storage.InvestorStore
	Clients       storage.ClientStore
	Properties    storage.PropertyStore
	Tokens        storage.TokenStore
	Investments   storage.InvestmentStore
	KYC           storage.KYCStore
	Documents     storage.DocumentStore
	Notifications storage.NotificationStore
	Audit         storage.AuditStore
	Flags         storage.FlagStore
	Visits        storage.VisitStore
}

// Config holds the settings the application needs beyond its stores.
// Optional integrations left zero-valued disable the corresponding service.
type Config struct {
	Auth auth.Config

	// Ethereum node. Empty RPCURL disables on-chain token operations.
	ChainRPCURL string
	ChainID     int64

	// KYC vendor. Empty BaseURL disables verification submission; the
	// webhook secret is still honored when set.
	KYC kycprovider.Config

	// Object storage for document uploads. Empty endpoint disables uploads.
	Minio documents.MinioConfig

	// Optional redis address for cross-instance fan-out. Empty keeps
	// notifications and flag invalidation process-local.
	RedisAddr     string
	RedisPassword string

	// Audit log file. Empty writes no file sink.
	AuditLogPath string

	FlagCacheTTL      time.Duration
	TokenSyncInterval time.Duration
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger
	rdb     *redis.Client

	Auth          *auth.Service
	Users         *users.Service
	Investors     *investors.Service
	Clients       *clients.Service
	Properties    *properties.Service
	Tokens        *tokens.Service
	Investments   *investments.Service
	KYC           *kycsvc.Service
	KYCWebhooks   *kycprovider.Client
	Documents     *documents.Service
	Notifications *notifications.Service
	Flags         *flags.Service
	Audit         *audit.Service
	Visits        *visits.Service
	Admin         *admin.Service
	Chain         *chain.Client
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, cfg Config, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Investors == nil {
		stores.Investors = mem
	}
	if stores.Clients == nil {
		stores.Clients = mem
	}
	if stores.Properties == nil {
		stores.Properties = mem
	}
	if stores.Tokens == nil {
		stores.Tokens = mem
	}
	if stores.Investments == nil {
		stores.Investments = mem
	}
	if stores.KYC == nil {
		stores.KYC = mem
	}
	if stores.Documents == nil {
		stores.Documents = mem
	}
	if stores.Notifications == nil {
		stores.Notifications = mem
	}
	if stores.Audit == nil {
		stores.Audit = mem
	}
	if stores.Flags == nil {
		stores.Flags = mem
	}
	if stores.Visits == nil {
		stores.Visits = mem
	}

	manager := system.NewManager()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	}

	authService, err := auth.New(stores.Users, cfg.Auth, log)
	if err != nil {
		return nil, fmt.Errorf("configure auth: %w", err)
	}

	userService := users.New(stores.Users, log)
	investorService := investors.New(stores.Users, stores.Investors, log)
	clientService := clients.New(stores.Users, stores.Clients, log)
	propertyService := properties.New(stores.Clients, stores.Properties, log)

	localHub := notifications.NewLocalHub()
	var hub notifications.Hub = localHub
	if rdb != nil {
		redisHub := notifications.NewRedisHub(rdb, localHub, log)
		hub = redisHub
		if err := manager.Register(redisHub); err != nil {
			return nil, fmt.Errorf("register %s: %w", redisHub.Name(), err)
		}
	}
	notificationService := notifications.New(stores.Notifications, hub, log)

	var tokenService *tokens.Service
	var chainClient *chain.Client
	if cfg.ChainRPCURL != "" {
		chainClient, err = chain.NewClient(chain.Config{RPCURL: cfg.ChainRPCURL, ChainID: cfg.ChainID})
		if err != nil {
			return nil, fmt.Errorf("configure chain client: %w", err)
		}
		tokenService = tokens.New(propertyService, stores.Investors, stores.Tokens, chainClient, log)
		syncer := tokens.NewSyncer(tokenService, cfg.TokenSyncInterval, log)
		if err := manager.Register(syncer); err != nil {
			return nil, fmt.Errorf("register %s: %w", syncer.Name(), err)
		}
	} else {
		log.Warn("chain RPC URL not set; token service disabled")
	}

	investmentService := investments.New(stores.Investors, stores.Properties, stores.Tokens, stores.Investments, notificationService, log)

	var kycService *kycsvc.Service
	var vendor *kycprovider.Client
	if cfg.KYC.BaseURL != "" {
		vendor, err = kycprovider.New(cfg.KYC)
		if err != nil {
			return nil, fmt.Errorf("configure kyc vendor: %w", err)
		}
		kycService = kycsvc.New(stores.Investors, stores.KYC, vendor, notificationService, log)
		sweeper := kycsvc.NewSweeper(kycService, "", log)
		if err := manager.Register(sweeper); err != nil {
			return nil, fmt.Errorf("register %s: %w", sweeper.Name(), err)
		}
	} else {
		log.Warn("KYC vendor not configured; verification disabled")
	}

	var documentService *documents.Service
	if cfg.Minio.Endpoint != "" {
		objects, err := documents.NewMinioStore(cfg.Minio)
		if err != nil {
			return nil, fmt.Errorf("configure object storage: %w", err)
		}
		documentService = documents.New(stores.Documents, objects, log)
	} else {
		log.Warn("object storage not configured; document uploads disabled")
	}

	flagService := flags.New(stores.Flags, rdb, cfg.FlagCacheTTL, log)
	if rdb != nil {
		invalidator := flags.NewInvalidator(flagService, rdb, log)
		if err := manager.Register(invalidator); err != nil {
			return nil, fmt.Errorf("register %s: %w", invalidator.Name(), err)
		}
	}

	var sink audit.Sink
	if cfg.AuditLogPath != "" {
		fileSink, err := audit.NewFileSink(cfg.AuditLogPath)
		if err != nil {
			return nil, fmt.Errorf("configure audit sink: %w", err)
		}
		sink = fileSink
	}
	auditService := audit.New(stores.Audit, sink, 0, log)

	visitService := visits.New(stores.Investors, stores.Properties, stores.Visits, notificationService, log)
	visitSweeper := visits.NewSweeper(visitService, "", log)
	if err := manager.Register(visitSweeper); err != nil {
		return nil, fmt.Errorf("register %s: %w", visitSweeper.Name(), err)
	}

	adminService := admin.New(stores.Users, stores.Investors, stores.Clients, stores.Properties, stores.Investments, stores.KYC, log)

	return &Application{
		manager:       manager,
		log:           log,
		rdb:           rdb,
		Auth:          authService,
		Users:         userService,
		Investors:     investorService,
		Clients:       clientService,
		Properties:    propertyService,
		Tokens:        tokenService,
		Investments:   investmentService,
		KYC:           kycService,
		KYCWebhooks:   vendor,
		Documents:     documentService,
		Notifications: notificationService,
		Flags:         flagService,
		Audit:         auditService,
		Visits:        visitService,
		Admin:         adminService,
		Chain:         chainClient,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services and closes shared connections.
func (a *Application) Stop(ctx context.Context) error {
	err := a.manager.Stop(ctx)
	if a.rdb != nil {
		if cerr := a.rdb.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
