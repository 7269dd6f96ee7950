package agent

import (
	"fmt"

	"github.com/convobot/convo/ai"
	"github.com/convobot/convo/analytics"
	"github.com/convobot/convo/config"
	"github.com/convobot/convo/definition"
	"github.com/convobot/convo/engine"
	"github.com/convobot/convo/executor"
	"github.com/convobot/convo/persistence"
	"github.com/convobot/convo/persistence/inmem"
	rds "github.com/convobot/convo/persistence/redis"
	"github.com/convobot/convo/rest"
	"github.com/convobot/convo/trigger"
)

// Agent wires the interpreter together from config and owns its
// lifecycle.
type Agent struct {
	Config     config.Config
	flows      persistence.FlowStorage
	sessions   persistence.SessionStorage
	loader     *definition.Loader
	registry   *executor.Registry
	engine     *engine.Engine
	collector  *analytics.FlowRunCollector
	httpServer *rest.Server
}

func New(conf config.Config) (*Agent, error) {
	a := &Agent{Config: conf}
	setup := []func() error{
		a.setupStorage,
		a.setupCollector,
		a.setupEngine,
		a.setupHttpServer,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) setupStorage() error {
	switch a.Config.StorageType {
	case config.STORAGE_TYPE_REDIS:
		redisConf := rds.Config{
			Addrs:     a.Config.RedisConfig.Addrs,
			Namespace: a.Config.RedisConfig.Namespace,
			PoolSize:  a.Config.RedisConfig.PoolSize,
			Password:  a.Config.RedisConfig.Password,
		}
		a.flows = rds.NewRedisFlowStorage(redisConf)
		a.sessions = rds.NewRedisSessionStorage(redisConf)
	case config.STORAGE_TYPE_INMEM:
		storage := inmem.NewStorage()
		a.flows = storage
		a.sessions = storage
	default:
		return fmt.Errorf("unknown storage type %s", a.Config.StorageType)
	}
	return nil
}

func (a *Agent) setupCollector() error {
	if a.Config.AnalyticsFile == "" {
		return nil
	}
	collector, err := analytics.NewFlowRunCollector(a.Config.AnalyticsFile)
	if err != nil {
		return err
	}
	a.collector = collector
	return nil
}

func (a *Agent) setupEngine() error {
	var generator ai.TextGenerator
	if a.Config.AIConfig.URL != "" {
		generator = ai.NewHTTPTextGenerator(a.Config.AIConfig)
	}
	a.loader = definition.NewLoader(a.flows)
	a.registry = executor.NewRegistry(generator)
	resolver := trigger.NewResolver(a.flows)
	steps := engine.NewStepExecutor(a.registry)
	a.engine = engine.New(a.loader, resolver, a.sessions, a.flows, steps, a.collector)
	return nil
}

func (a *Agent) setupHttpServer() error {
	var err error
	a.httpServer, err = rest.NewServer(a.Config.HttpPort, a.engine, a.loader, a.registry, a.flows)
	return err
}

func (a *Agent) Start() error {
	return a.httpServer.Start()
}

func (a *Agent) Shutdown() error {
	return a.httpServer.Stop()
}
