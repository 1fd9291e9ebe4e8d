package bootstrap

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pretzelai/email-use/adapter/out/gmail"
	"github.com/pretzelai/email-use/adapter/out/messaging"
	"github.com/pretzelai/email-use/adapter/out/mongodb"
	"github.com/pretzelai/email-use/adapter/out/persistence"
	"github.com/pretzelai/email-use/config"
	"github.com/pretzelai/email-use/core/agent"
	"github.com/pretzelai/email-use/core/agent/llm"
	"github.com/pretzelai/email-use/core/port/out"
	"github.com/pretzelai/email-use/core/service/auth"
	"github.com/pretzelai/email-use/core/service/discovery"
	"github.com/pretzelai/email-use/core/service/filter"
	"github.com/pretzelai/email-use/infra/database"
	"github.com/pretzelai/email-use/pkg/logger"
	"github.com/pretzelai/email-use/pkg/resilience"
)

type Dependencies struct {
	Config  *config.Config
	DB      *pgxpool.Pool
	SQLDB   *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client

	// Repositories
	CredentialRepo out.CredentialRepository
	RuleRepo       out.RuleRepository
	LogRepo        out.ProcessingLogRepository
	SettingsRepo   out.SettingsRepository
	SkipFilterRepo out.SkipFilterRepository
	DebugRepo      out.DebugContentRepository

	// Messaging
	Producer out.JobProducer

	// Mailbox
	GmailFactory *gmail.Factory

	// Agent
	Registry     *llm.Registry
	Breakers     *resilience.BreakerGroup
	DecisionStep *agent.DecisionStep

	// Services
	OAuthService     *auth.OAuthService
	FilterEvaluator  *filter.Evaluator
	DiscoveryService *discovery.Service
	Processor        *discovery.Processor
}

func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// Database (pgxpool)
	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	deps.DB = db
	cleanups = append(cleanups, func() { db.Close() })

	// Database (sqlx for the repository adapters)
	sqlDB, err := database.NewSQLX(cfg.DatabaseURL)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.SQLDB = sqlDB
	cleanups = append(cleanups, func() { sqlDB.Close() })

	if err := persistence.EnsureSchema(context.Background(), sqlDB); err != nil {
		cleanup()
		return nil, nil, err
	}

	// Redis
	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.Redis = redisClient
	cleanups = append(cleanups, func() { redisClient.Close() })

	// MongoDB (debug content)
	if cfg.MongoDBURL != "" {
		mongoClient, err := mongodb.NewClient(cfg.MongoDBURL)
		if err != nil {
			logger.Warn("MongoDB connection failed: %v", err)
		} else {
			deps.MongoDB = mongoClient
			cleanups = append(cleanups, func() {
				mongoClient.Disconnect(context.Background())
			})

			debugAdapter := mongodb.NewDebugContentAdapter(mongoClient.Database(cfg.MongoDBName))
			if err := debugAdapter.EnsureIndexes(context.Background()); err != nil {
				logger.Warn("Failed to ensure MongoDB indexes: %v", err)
			}
			deps.DebugRepo = debugAdapter
		}
	}

	// Repositories
	deps.CredentialRepo = persistence.NewCredentialAdapter(sqlDB)
	deps.RuleRepo = persistence.NewRuleAdapter(sqlDB)
	deps.LogRepo = persistence.NewLogAdapter(sqlDB)
	deps.SettingsRepo = persistence.NewSettingsAdapter(sqlDB)
	deps.SkipFilterRepo = persistence.NewSkipFilterAdapter(sqlDB)

	// Messaging (Redis Streams)
	deps.Producer = messaging.NewRedisProducer(redisClient)

	// Gmail
	deps.GmailFactory = gmail.NewFactory()

	// Agent
	deps.Registry = llm.NewRegistry(llm.RegistryConfig{
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		MaxTokens:       cfg.LLMMaxTokens,
	})
	deps.Breakers = resilience.NewBreakerGroup()
	deps.DecisionStep = agent.NewDecisionStep(deps.Registry, deps.Breakers)

	// Services
	deps.OAuthService = auth.NewOAuthService(deps.CredentialRepo, auth.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	deps.FilterEvaluator = filter.NewEvaluator(deps.SkipFilterRepo, nil)

	deps.DiscoveryService = discovery.NewService(
		deps.CredentialRepo,
		deps.RuleRepo,
		deps.LogRepo,
		deps.SettingsRepo,
		deps.OAuthService,
		deps.GmailFactory,
		deps.Producer,
	)
	deps.Processor = discovery.NewProcessor(
		deps.RuleRepo,
		deps.LogRepo,
		deps.DebugRepo,
		deps.FilterEvaluator,
		deps.DecisionStep,
		deps.GmailFactory,
	)

	return deps, cleanup, nil
}
