package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/warp/leave-engine/client"
	"github.com/warp/leave-engine/config"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/logger"
	"github.com/warp/leave-engine/mirror"
	"github.com/warp/leave-engine/sink"
	"go.uber.org/zap"
)

// outOfSyncNotice is printed after any command answered from the local copy.
const outOfSyncNotice = "(local copy, may be out of sync)"

type globalOptions struct {
	configPath string
	verbose    bool
	email      string
	employeeID string
	userID     string
	role       string
}

func (o *globalOptions) session() leave.Session {
	role := leave.Role(o.role)
	if role == "" {
		role = leave.RoleEmployee
	}
	return leave.Session{
		EmployeeID: generic.EntityID(o.employeeID),
		Email:      o.email,
		UserID:     o.userID,
		Role:       role,
	}
}

// app is everything a command needs, built once per invocation.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	session  leave.Session
	fallback *mirror.Fallback
	workflow *leave.Workflow
	queue    *leave.Queue
	out      io.Writer
	closers  []func() error
}

func newApp(ctx context.Context, opts *globalOptions, out io.Writer) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if !opts.verbose {
		cfg.Log.Level = "warn"
	}
	cfg.Log.Format = "console"
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, session: opts.session(), out: out}

	slots, err := a.openSlots(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	policy := cfg.LeavePolicy()
	local, err := mirror.OpenLocal(ctx, slots, policy, log)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open local copy: %w", err)
	}
	remote := client.New(cfg.Client.BaseURL,
		client.WithTimeout(cfg.Client.Timeout),
		client.WithToken(cfg.Client.Token),
		client.WithLogger(log),
	)
	a.fallback = mirror.NewFallback(remote, local, log)

	a.workflow = leave.NewWorkflow(a.fallback, a.fallback, leave.MustDefaultAuthorizer(), leave.NewCalculator(policy),
		leave.WithLogger(log),
		leave.WithNotifier(sink.NewLog(log)),
		leave.WithAuditSink(sink.NewLogAudit(log)),
	)
	a.queue = leave.NewQueue(a.fallback, a.workflow)
	return a, nil
}

func (a *app) openSlots(ctx context.Context) (mirror.SlotStore, error) {
	switch a.cfg.Mirror.Backend {
	case "redis":
		rdb, err := mirror.DialRedis(ctx, a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB, a.log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		return mirror.NewRedisSlots(rdb), nil
	default:
		return mirror.NewFileSlots(a.cfg.Mirror.Dir)
	}
}

// self resolves the acting employee's id.
func (a *app) self(ctx context.Context) (generic.EntityID, error) {
	emp, err := a.workflow.Resolver().Resolve(ctx, a.session)
	if err != nil {
		return "", err
	}
	return emp.ID, nil
}

// finish prints the out-of-sync notice when any answer came from the local copy.
func (a *app) finish() {
	if a.fallback != nil && a.fallback.OutOfSync() {
		fmt.Fprintln(a.out, outOfSyncNotice)
	}
}

// flushTimeout bounds how long the CLI waits for queued notifications on exit.
const flushTimeout = 5 * time.Second

func (a *app) close() error {
	var errs []error
	if a.workflow != nil {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		if err := a.workflow.Flush(ctx); err != nil {
			a.log.Warn("pending notifications not delivered", zap.Error(err))
		}
		cancel()
	}
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	_ = a.log.Sync()
	return errors.Join(errs...)
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
