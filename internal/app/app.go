// Package app wires Emonk's components together: configuration, storage
// backends, the scheduler core, the LLM client, the skill registry, and the
// chat service. Mirrors the teacher's App struct as the single composition
// root consulted by both cmd/emonk-server and the HTTP layer.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/auriga-os/emonk/internal/chat"
	"github.com/auriga-os/emonk/internal/clock"
	"github.com/auriga-os/emonk/internal/common"
	"github.com/auriga-os/emonk/internal/interfaces"
	"github.com/auriga-os/emonk/internal/jobstore"
	"github.com/auriga-os/emonk/internal/jobstore/jsonstore"
	"github.com/auriga-os/emonk/internal/jobstore/surrealstore"
	"github.com/auriga-os/emonk/internal/llm"
	"github.com/auriga-os/emonk/internal/memory"
	"github.com/auriga-os/emonk/internal/scheduler"
	"github.com/auriga-os/emonk/internal/skills"
	surrealbootstrap "github.com/auriga-os/emonk/internal/storage/surrealdb"
)

// App is the fully-wired process: every long-lived dependency the HTTP
// server and the tick loop need, constructed once at startup.
type App struct {
	Config *common.Config
	Logger *common.Logger
	Clock  clock.Clock

	JobStore  jobstore.Store
	Scheduler *scheduler.Scheduler
	JobAPI    *scheduler.JobAPI
	Registry  *scheduler.Registry
	Chart     *scheduler.ThroughputHistory

	Memory        interfaces.MemoryStore
	LLM           interfaces.LLMClient
	SkillRegistry *skills.Registry
	Chat          *chat.Service

	closers []func() error
}

// NewApp constructs the full dependency graph from cfg. The caller is
// responsible for calling Close when the process shuts down.
func NewApp(ctx context.Context, cfg *common.Config) (*App, error) {
	logger := common.NewLoggerFromConfig(cfg.Logging)
	clk := clock.Real()

	a := &App{Config: cfg, Logger: logger, Clock: clk}

	jobStore, mem, closer, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.JobStore = jobStore
	a.Memory = mem
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	a.Registry = scheduler.NewRegistry()
	a.SkillRegistry = skills.NewRegistry()

	llmClient, err := buildLLMClient(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.LLM = llmClient

	sched := scheduler.New(a.JobStore, a.Registry, clk, ownerID(), logger)
	sched.Concurrency = cfg.Scheduler.Concurrency
	sched.HandlerTimeout = cfg.Scheduler.GetHandlerTimeout()
	sched.Backoff = scheduler.BackoffPolicy{
		Base: cfg.Scheduler.GetBackoffBase(),
		Cap:  cfg.Scheduler.GetBackoffCap(),
	}
	a.Scheduler = sched
	a.JobAPI = scheduler.NewJobAPI(a.JobStore, a.Registry, clk)
	a.Chart = scheduler.NewThroughputHistory(100)

	a.registerHandlers()
	a.registerSkills()

	limiter := chat.NewLimiter(chat.DefaultRequestsPerMinute, 0)
	a.Chat = chat.NewService(a.Memory, a.LLM, a.SkillRegistry, limiter, logger)

	return a, nil
}

// registerHandlers wires the scheduler's built-in job kinds: "ping",
// "reminder", and "chat_digest" (spec.md §4.4).
func (a *App) registerHandlers() {
	a.Registry.Register("ping", skills.PingHandler(a.Logger))
	a.Registry.Register("reminder", skills.ReminderJobHandler(a.Memory, a.Logger))
	a.Registry.Register("chat_digest", skills.ChatDigestHandler(a.Memory, a.LLM, a.Logger))
}

// registerSkills wires the LLM-invocable skill catalog.
func (a *App) registerSkills() {
	a.SkillRegistry.Register(skills.ReminderDescriptor, skills.NewReminderHandler(a.JobAPI))
}

// buildStorage selects the json or surrealdb backend for both the job store
// and the conversation/memory store, per cfg.Storage.Backend — the teacher's
// single StorageManager switch, generalized across both stores.
func buildStorage(ctx context.Context, cfg *common.Config, logger *common.Logger) (jobstore.Store, interfaces.MemoryStore, func() error, error) {
	switch cfg.Storage.Backend {
	case "surrealdb":
		db, err := surrealbootstrap.Connect(ctx, logger, surrealbootstrap.Config{
			Address:   cfg.Storage.SurrealDB.Address,
			Namespace: cfg.Storage.SurrealDB.Namespace,
			Database:  cfg.Storage.SurrealDB.Database,
			Username:  cfg.Storage.SurrealDB.Username,
			Password:  cfg.Storage.SurrealDB.Password,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("app: connect surrealdb: %w", err)
		}
		store := surrealstore.New(db)
		mem := memory.NewSurrealStore(db)
		return store, mem, func() error { return db.Close(context.Background()) }, nil
	default:
		store, err := jsonstore.New(cfg.Storage.JSON.Path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("app: open json job store: %w", err)
		}
		mem, err := memory.NewLocalStore(logger, cfg.Storage.JSON.Path+"/memory")
		if err != nil {
			return nil, nil, nil, fmt.Errorf("app: open local memory store: %w", err)
		}
		closer := func() error {
			storeErr := store.Close()
			memErr := mem.Close()
			if storeErr != nil {
				return storeErr
			}
			return memErr
		}
		return store, mem, closer, nil
	}
}

// buildLLMClient constructs the Gemini-backed LLM client. A missing API key
// is tolerated at startup (the assistant surface degrades; the scheduler
// core does not depend on it) so an operator can bring the server up before
// provisioning a key.
func buildLLMClient(ctx context.Context, cfg *common.Config, logger *common.Logger) (interfaces.LLMClient, error) {
	client, err := llm.NewClient(ctx, cfg.Clients.Gemini.APIKey,
		llm.WithModel(cfg.Clients.Gemini.Model),
		llm.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("app: create llm client: %w", err)
	}
	return client, nil
}

// ownerID identifies this replica in lease claims. Derived from the
// process start time rather than a hostname lookup, avoiding a dependency
// on DNS/os.Hostname succeeding in constrained environments.
func ownerID() string {
	return fmt.Sprintf("emonk-%d", time.Now().UnixNano())
}

// Close releases every resource opened by NewApp.
func (a *App) Close() error {
	var firstErr error
	for _, c := range a.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
