package svc

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	redisclient "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"profitsniffer/internal/application/container"
	"profitsniffer/internal/application/port"
	"profitsniffer/internal/application/usecase/fleet"
	"profitsniffer/internal/infrastructure/clearance"
	"profitsniffer/internal/infrastructure/config"
	"profitsniffer/internal/infrastructure/dexscreener"
	"profitsniffer/internal/infrastructure/storage/composite"
	"profitsniffer/internal/infrastructure/storage/memory"
	pgrepo "profitsniffer/internal/infrastructure/storage/postgres"
	redisrepo "profitsniffer/internal/infrastructure/storage/redis"
	sqliterepo "profitsniffer/internal/infrastructure/storage/sqlite"
	"profitsniffer/internal/infrastructure/telegram"
	"profitsniffer/internal/infrastructure/websocket"
	"profitsniffer/internal/interfaces/console"
)

type ServiceContext struct {
	Ctx    context.Context
	Config *config.Config

	// 基础设施层
	store     port.Store
	redisRepo *redisrepo.Repo
	creds     *clearance.Store
	hub       *websocket.Hub
	bot       *telegram.Client

	// 应用层
	app       *container.Container
	Console   *console.Sink
	notifier  *composite.Notifier
	pipeline  *fleet.Pipeline
	scheduler *fleet.Scheduler
	poller    *telegram.Poller

	// 资源管理
	closerChain []func() error
}

// New 创建并初始化 ServiceContext
// 所有依赖初始化都在这里完成，失败时释放已初始化的资源
func New(ctx context.Context, cfg *config.Config) (*ServiceContext, error) {
	sc := &ServiceContext{
		Ctx:         ctx,
		Config:      cfg,
		Console:     console.NewSink(os.Stdout),
		closerChain: make([]func() error, 0),
	}

	if err := sc.initializeComponents(); err != nil {
		_ = sc.Close()
		return nil, err
	}
	return sc, nil
}

// initializeComponents 按依赖顺序初始化：存储 → 凭证 → 抓取 → 通知 → 调度
func (sc *ServiceContext) initializeComponents() error {
	if err := sc.initializeStorage(); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageInitFailed, err)
	}
	sc.app = container.New(sc.store, sc.Config.App.DefaultURL)

	if err := sc.initClearance(); err != nil {
		return fmt.Errorf("clearance initialization failed: %w", err)
	}
	sc.initNotifiers()

	cfg := sc.Config
	listing := dexscreener.NewListingFetcher(&http.Client{}, sc.creds, dexscreener.ListingOptions{
		MaxAttempts:            cfg.Listing.MaxAttempts,
		Pacing:                 cfg.ListingPacing(),
		BackoffBase:            cfg.ListingBackoffBase(),
		Timeout:                cfg.ListingTimeout(),
		RenewalConsumesAttempt: *cfg.Listing.RenewalConsumesAttempt,
		CookieName:             cfg.Clearance.CookieName,
	})
	pairs := dexscreener.NewPairClient(&http.Client{}, dexscreener.PairOptions{
		BaseURL:           cfg.Pairs.BaseURL,
		ChunkSize:         cfg.Pairs.ChunkSize,
		Timeout:           cfg.PairsTimeout(),
		RequestsPerMinute: cfg.Pairs.RequestsPerMinute,
	})

	sc.pipeline = &fleet.Pipeline{
		Source:                 listing,
		Enricher:               pairs,
		Reconciler:             sc.app.Reconciler(),
		Notifier:               sc.notifier,
		PreserveOnFetchFailure: cfg.Fleet.PreserveOnFetchFailure,
	}
	sc.scheduler = fleet.NewScheduler(sc.store, sc.pipeline, fleet.Options{
		Interval:          cfg.Interval(),
		MaxSubscribers:    cfg.Fleet.MaxSubscribers,
		BatchSize:         cfg.Fleet.BatchSize,
		SubscriberTimeout: cfg.SubscriberTimeout(),
		RunOnStart:        cfg.Fleet.RunOnStart,
	})

	if sc.bot != nil {
		sc.poller = telegram.NewPoller(sc.bot, sc.app.SubscriberService(), cfg.TelegramPollTimeout())
	}

	log.Info().
		Str("storage", cfg.Storage.Driver).
		Int("notifiers", sc.notifier.Len()).
		Bool("redis", sc.redisRepo != nil).
		Bool("telegram", sc.bot != nil).
		Bool("websocket", sc.hub != nil).
		Msg("✓ All components initialized")
	return nil
}

// initializeStorage 初始化存储层 (文档存储 + 可选 Redis)
func (sc *ServiceContext) initializeStorage() error {
	switch sc.Config.Storage.Driver {
	case "memory":
		sc.store = memory.NewStore()
		log.Warn().Msg("memory storage: subscribers and pairs are lost on exit")
	case "sqlite":
		if err := sc.initSQLite(); err != nil {
			return fmt.Errorf("sqlite initialization failed: %w", err)
		}
	case "postgres":
		if err := sc.initPostgres(); err != nil {
			return fmt.Errorf("postgres initialization failed: %w", err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStorageDriver, sc.Config.Storage.Driver)
	}

	if sc.Config.Redis.Enabled {
		if err := sc.initRedis(); err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
	}
	return nil
}

// initSQLite 初始化 SQLite 数据库
func (sc *ServiceContext) initSQLite() error {
	repo, err := sqliterepo.New(sc.Config.Storage.SQLite.Path)
	if err != nil {
		return fmt.Errorf("sqlite repo creation failed: %w", err)
	}
	sc.store = repo

	// 注册关闭回调
	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Msg("closing sqlite connection")
		return repo.Close()
	})

	log.Info().
		Str("path", sc.Config.Storage.SQLite.Path).
		Msg("✓ SQLite initialized")
	return nil
}

// initPostgres 初始化 Postgres 连接池并迁移
func (sc *ServiceContext) initPostgres() error {
	ctx, cancel := context.WithTimeout(sc.Ctx, 10*time.Second)
	defer cancel()

	repo, err := pgrepo.New(ctx, sc.Config.Storage.Postgres.DSN)
	if err != nil {
		return err
	}
	sc.store = repo

	// 注册关闭回调
	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Msg("closing postgres pool")
		return repo.Close()
	})

	log.Info().Msg("✓ Postgres initialized")
	return nil
}

// initRedis 初始化 Redis 连接
func (sc *ServiceContext) initRedis() error {
	rdb := redisclient.NewClient(&redisclient.Options{
		Addr:     sc.Config.Redis.Addr,
		Password: sc.Config.Redis.Password,
		DB:       sc.Config.Redis.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(sc.Ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}

	sc.redisRepo = redisrepo.New(
		rdb,
		sc.Config.Redis.Prefix,
		sc.Config.RedisTTL(),
		sc.Config.Redis.AlertStream,
		sc.Config.Redis.AlertChannel,
	)

	// 注册关闭回调
	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Msg("closing redis connection")
		return rdb.Close()
	})

	log.Info().
		Str("addr", sc.Config.Redis.Addr).
		Int("db", sc.Config.Redis.DB).
		Msg("✓ Redis initialized")
	return nil
}

// initClearance 构建凭证存储：文件 + 数据库 + Redis 三路镜像
func (sc *ServiceContext) initClearance() error {
	var backends []port.CredentialPersister
	if sc.Config.Clearance.File != "" {
		backends = append(backends, clearance.NewFilePersister(sc.Config.Clearance.File))
	}
	if p, ok := sc.store.(port.CredentialPersister); ok {
		backends = append(backends, p)
	}
	if sc.redisRepo != nil {
		backends = append(backends, sc.redisRepo)
	}

	solver := clearance.NewSolverClient(
		sc.Config.Clearance.SolverURL,
		sc.Config.Clearance.TargetURL,
		sc.Config.Clearance.CookieName,
		sc.Config.SolverTimeout(),
	)
	sc.creds = clearance.NewStore(solver, composite.NewPersister(backends...))

	ctx, cancel := context.WithTimeout(sc.Ctx, 10*time.Second)
	defer cancel()
	return sc.creds.Load(ctx)
}

// initNotifiers 组装告警出口：Telegram（或控制台）、WebSocket、Redis
func (sc *ServiceContext) initNotifiers() {
	var sinks []port.Notifier
	if sc.Config.Telegram.Enabled {
		sc.bot = telegram.NewClient(sc.Config.Telegram.APIURL, sc.Config.Telegram.Token, sc.Config.TelegramPollTimeout()+10*time.Second)
		sinks = append(sinks, sc.bot)
	} else {
		log.Warn().Msg("telegram disabled, alerts go to console")
		sinks = append(sinks, sc.Console)
	}
	if sc.Config.WebSocket.Enabled {
		sc.hub = websocket.NewHub()
		sinks = append(sinks, sc.hub)
	}
	if sc.redisRepo != nil {
		sinks = append(sinks, sc.redisRepo)
	}
	sc.notifier = composite.NewNotifier(sinks...)
}

// Run 启动调度器及可选的 Telegram 轮询和 WebSocket 服务，直到 ctx 结束
func (sc *ServiceContext) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sc.scheduler.Run(gctx) })
	if sc.poller != nil {
		g.Go(func() error { return sc.poller.Run(gctx) })
	}
	if sc.hub != nil {
		g.Go(func() error {
			return sc.hub.Serve(gctx, sc.Config.WebSocket.Addr, sc.Config.WebSocket.Path)
		})
	}
	return g.Wait()
}

func (sc *ServiceContext) App() *container.Container { return sc.app }

func (sc *ServiceContext) Scheduler() *fleet.Scheduler { return sc.scheduler }

func (sc *ServiceContext) Credentials() *clearance.Store { return sc.creds }

// Close 按照相反的顺序关闭所有资源
func (sc *ServiceContext) Close() error {
	for i := len(sc.closerChain) - 1; i >= 0; i-- {
		if err := sc.closerChain[i](); err != nil {
			log.Error().Err(err).Msg("error closing resource")
		}
	}
	sc.closerChain = nil
	return nil
}
