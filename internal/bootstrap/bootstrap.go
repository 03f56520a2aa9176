// internal/bootstrap/bootstrap.go
package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"

	"loan-workers/internal/audit"
	awsclient "loan-workers/internal/common/aws"
	"loan-workers/internal/common/config"
	"loan-workers/internal/common/database"
	"loan-workers/internal/common/logger"
	"loan-workers/internal/common/observability"
	"loan-workers/internal/lending/service"
	"loan-workers/internal/notify"
	"loan-workers/internal/permission"
	"loan-workers/internal/store"
	"loan-workers/pkg/registry"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	connectTimeout = 10 * time.Second
)

// Runtime holds the shared collaborators of the worker manager and the CLI.
type Runtime struct {
	Config   *config.Config
	Store    store.Store
	Postgres *store.PostgresStore
	Redis    *redis.Client
	Elastic  *elasticsearch.Client
	Registry *registry.ActivityRegistry
	Obs      *observability.Observability
	Service  *service.Service

	logger  logger.Logger
	closers []func() error
}

// Open connects the configured backends and builds the loan service. Redis,
// Elasticsearch, SNS and SES are optional; a failing optional backend is
// logged and left out.
func Open(ctx context.Context, cfg *config.Config, log logger.Logger) (*Runtime, error) {
	rt := &Runtime{Config: cfg, logger: log}

	reg, err := registry.Load(cfg.Registry.Path)
	if err != nil {
		return nil, fmt.Errorf("load activity registry: %w", err)
	}
	rt.Registry = reg

	if err := rt.openStore(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	rt.openRedis(ctx)
	rt.openElastic()

	base := rt.Store
	if rt.Redis != nil {
		rt.Store = store.NewCachedStore(base, rt.Redis, cfg.Loan.TemplateCacheDuration(), log, store.KindForm)
	}

	rt.Obs = observability.New(cfg.App.Name, log)
	rt.closers = append(rt.closers, func() error { rt.Obs.Shutdown(); return nil })

	var tracker audit.Tracker = audit.NewLogTracker(log)
	if rt.Elastic != nil {
		tracker = audit.NewElasticTracker(rt.Elastic, cfg.Loan.AuditIndex, log)
	}

	rt.Service = service.New(service.Dependencies{
		Store:         rt.Store,
		Permissions:   permission.NewStoreChecker(base, rt.Redis, cfg.Loan.PermissionCacheDuration(), log),
		Dispatcher:    rt.dispatcher(ctx),
		Audit:         tracker,
		Observability: rt.Obs,
	}, cfg.Loan, log)
	return rt, nil
}

func (rt *Runtime) openStore(ctx context.Context) error {
	driver := strings.ToLower(rt.Config.Database.Driver)
	switch driver {
	case DriverMemory:
		rt.logger.Warn("using in-memory entity store", nil)
		rt.Store = store.NewMemoryStore()
		return nil
	case "", DriverPostgres:
		pg, err := database.NewPostgres(ctx, rt.Config.Database.Postgres, connectTimeout)
		if err != nil {
			return err
		}
		rt.closers = append(rt.closers, pg.Close)
		rt.Postgres = store.NewPostgresStore(pg.DB)
		rt.Store = rt.Postgres
		rt.logger.Info("postgres connected", map[string]interface{}{
			"host":     rt.Config.Database.Postgres.Host,
			"database": rt.Config.Database.Postgres.Database,
		})
		return nil
	default:
		return fmt.Errorf("unknown database driver %q", rt.Config.Database.Driver)
	}
}

func (rt *Runtime) openRedis(ctx context.Context) {
	client := database.NewRedis(rt.Config.Database.Redis)
	if client == nil {
		return
	}
	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		rt.logger.Warn("redis unavailable, caching disabled", map[string]interface{}{"error": err.Error()})
		client.Close()
		return
	}
	rt.Redis = client.Client
	rt.closers = append(rt.closers, client.Close)
}

func (rt *Runtime) openElastic() {
	es, err := database.NewElasticsearch(rt.Config.Database.Elasticsearch)
	if err != nil {
		rt.logger.Warn("elasticsearch client failed, auditing to log", map[string]interface{}{"error": err.Error()})
		return
	}
	if es == nil {
		return
	}
	if err := database.PingElasticsearch(es); err != nil {
		rt.logger.Warn("elasticsearch unavailable, auditing to log", map[string]interface{}{"error": err.Error()})
		return
	}
	rt.Elastic = es
}

func (rt *Runtime) dispatcher(ctx context.Context) *notify.Dispatcher {
	nc := rt.Config.Notifications
	if !nc.SNS.Enabled && !nc.Email.Enabled {
		return nil
	}
	awsCfg, err := awsclient.LoadConfig(ctx, nc.AWS.Region)
	if err != nil {
		rt.logger.Warn("aws config failed, notifications are stored only", map[string]interface{}{"error": err.Error()})
		return nil
	}
	var (
		snsClient *sns.Client
		sesClient *ses.Client
	)
	if nc.SNS.Enabled {
		snsClient = awsclient.NewSNSClient(awsCfg)
	}
	if nc.Email.Enabled {
		sesClient = awsclient.NewSESClient(awsCfg)
	}
	return notify.NewDispatcher(rt.Store, optionalSNS(snsClient), optionalSES(sesClient), nc, rt.logger)
}

// optionalSNS keeps a nil client from becoming a non-nil interface.
func optionalSNS(c *sns.Client) awsclient.SNSService {
	if c == nil {
		return nil
	}
	return c
}

func optionalSES(c *ses.Client) awsclient.SESService {
	if c == nil {
		return nil
	}
	return c
}

// Close releases every opened backend in reverse order.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.logger.Warn("close failed", map[string]interface{}{"error": err.Error()})
		}
	}
	rt.closers = nil
}
