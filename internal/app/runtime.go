package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jenkinstray/jenkinstray/internal/backoff"
	"github.com/jenkinstray/jenkinstray/internal/bus"
	"github.com/jenkinstray/jenkinstray/internal/config"
	"github.com/jenkinstray/jenkinstray/internal/connectors"
	"github.com/jenkinstray/jenkinstray/internal/dataflow"
	"github.com/jenkinstray/jenkinstray/internal/history"
	"github.com/jenkinstray/jenkinstray/internal/jobresult"
	"github.com/jenkinstray/jenkinstray/internal/logging"
	"github.com/jenkinstray/jenkinstray/internal/notifications"
	"github.com/jenkinstray/jenkinstray/internal/persistence"
	"github.com/jenkinstray/jenkinstray/internal/transport"
	"github.com/jenkinstray/jenkinstray/internal/wsclient"
)

const (
	writerQueueCapacity = 512
	reconnectWait       = 5 * time.Second
	clearHistoryTimeout = 5 * time.Second
)

var ErrConfigNotSaved = errors.New("configuration was not saved")

// Dependencies overrides runtime collaborators. Zero fields get the desktop defaults.
type Dependencies struct {
	Paths     *Paths
	Transport transport.Transport
	Sender    notifications.Sender
	Dialogs   notifications.Dialogs
}

type Runtime struct {
	Ctx    context.Context
	cancel context.CancelFunc

	Paths       Paths
	ConfigStore *config.Store

	LogManager *logging.Manager
	Bus        *bus.PubSubBus
	DB         *sql.DB

	JobResultRepo *persistence.JobResultRepo
	WriterQueue   *persistence.WriterQueue
	History       *history.Collection

	Client        *wsclient.Client
	Dispatcher    *dataflow.Dispatcher
	Notifications *NotificationService
	Dialogs       notifications.Dialogs

	scheduler *wsclient.SerialScheduler

	connStatusMu    sync.RWMutex
	connStatus      connectors.ConnectionStatus
	connStatusKnown bool
}

// Initialize wires the runtime. It does not connect; call Connect once the caller is ready for events.
func Initialize(parent context.Context, deps Dependencies) (*Runtime, error) {
	var paths Paths
	if deps.Paths != nil {
		paths = *deps.Paths
	} else {
		resolved, err := ResolvePaths()
		if err != nil {
			return nil, err
		}
		paths = resolved
	}

	logMgr := logging.NewManager()
	store := config.NewStore(paths.ConfigFile, logMgr.Logger("config"))
	loadErr := store.LoadCurrent("")
	cfg := store.Current()
	if err := logMgr.Configure(cfg.Logging, paths.LogFile); err != nil {
		_ = logMgr.Close()

		return nil, fmt.Errorf("configure logging: %w", err)
	}

	ctx, cancel := context.WithCancel(parent)
	rt := &Runtime{
		Ctx:         ctx,
		cancel:      cancel,
		Paths:       paths,
		ConfigStore: store,
		LogManager:  logMgr,
		Dialogs:     deps.Dialogs,
	}
	if rt.Dialogs == nil {
		rt.Dialogs = notifications.NewBeeepDialogs(logMgr.Logger("dialogs"))
	}
	slog.Info("starting jenkinstray runtime", "version", Version, "config", paths.ConfigFile)
	rt.handleConfigLoadError(loadErr)

	db, err := persistence.Open(ctx, paths.DBFile)
	if err != nil {
		_ = rt.Close()

		return nil, err
	}
	rt.DB = db
	rt.JobResultRepo = persistence.NewJobResultRepo(db)

	rt.History = history.NewCollection(cfg.Notify.DisplayHistoryCount)
	if err := persistence.LoadHistory(ctx, rt.History, rt.JobResultRepo); err != nil {
		_ = rt.Close()

		return nil, err
	}

	b := bus.New(logMgr.Logger("bus"))
	rt.Bus = b
	rt.setConnStatus(ConnectionStatusFromConfig(cfg))
	connSub := b.Subscribe(connectors.TopicConnStatus)
	go rt.captureConnStatus(ctx, connSub)

	rt.WriterQueue = persistence.NewWriterQueue(logMgr.Logger("persistence"), writerQueueCapacity)
	rt.WriterQueue.Start(ctx)
	persistence.StartProjection(ctx, b, rt.WriterQueue, rt.JobResultRepo, config.MaxDisplayHistoryCount)

	sender := deps.Sender
	if sender == nil {
		sender = notifications.NewBeeepSender(logMgr.Logger("notifications"))
	}
	rt.Notifications = NewNotificationService(b, store.Current, sender, rt.Dialogs, logMgr.Logger("app.notifications"))
	rt.Notifications.Start(ctx)

	tr := deps.Transport
	if tr == nil {
		tr = transport.NewWebSocketTransport(transport.DefaultWebSocketOptions())
	}
	rt.scheduler = wsclient.NewSerialScheduler()
	rt.Client = wsclient.New(tr,
		wsclient.WithBackoff(backoff.Func(func(attempt int) time.Duration {
			return BackoffFromConfig(store.Current().Connection).Next(attempt)
		})),
		wsclient.WithScheduler(rt.scheduler),
		wsclient.WithLogger(logMgr.Logger("wsclient")),
		wsclient.WithBus(b),
	)

	if err := rt.configureDispatcher(logMgr); err != nil {
		_ = rt.Close()

		return nil, err
	}

	return rt, nil
}

func (r *Runtime) configureDispatcher(logMgr *logging.Manager) error {
	logger := logMgr.Logger("dataflow")
	d := dataflow.New(r.Client, logger)
	if err := d.RegisterExecuteTask(jobresult.NewExecuter(r.History, r.Bus, logMgr.Logger("jobresult"))); err != nil {
		return fmt.Errorf("register job result executer: %w", err)
	}
	if err := d.RegisterExecuteTask(jobresult.NewRawFrameExecuter(r.Bus)); err != nil {
		return fmt.Errorf("register raw frame executer: %w", err)
	}
	if err := d.RegisterConnectedTask(dataflow.TaskFunc(func(error) {
		logger.Info("listening for job results", "target", r.Client.Endpoint().URI)
	})); err != nil {
		return fmt.Errorf("register connected task: %w", err)
	}
	if err := d.RegisterConnectionFailedTask(dataflow.TaskFunc(func(cause error) {
		logger.Warn("giving up on jenkins relay", "target", r.Client.Endpoint().URI, "error", cause)
	})); err != nil {
		return fmt.Errorf("register connection failed task: %w", err)
	}
	d.ConfigureRegistration()
	r.Dispatcher = d

	return nil
}

func (r *Runtime) handleConfigLoadError(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, os.ErrNotExist) {
		slog.Info("no configuration file, writing defaults", "path", r.Paths.ConfigFile)
		if !r.ConfigStore.SaveCurrent("") {
			slog.Warn("write default configuration failed", "path", r.Paths.ConfigFile)
		}

		return
	}
	slog.Warn("configuration load failed, using defaults", "error", err)
	r.Dialogs.ShowError("Configuration error", fmt.Sprintf("%v. Default settings are used.", err))
}

func (r *Runtime) captureConnStatus(ctx context.Context, sub bus.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub:
			if !ok {
				return
			}
			status, ok := raw.(connectors.ConnectionStatus)
			if !ok {
				continue
			}
			r.setConnStatus(status)
		}
	}
}

func (r *Runtime) setConnStatus(status connectors.ConnectionStatus) {
	r.connStatusMu.Lock()
	r.connStatus = status
	r.connStatusKnown = true
	r.connStatusMu.Unlock()
}

func (r *Runtime) CurrentConnStatus() (connectors.ConnectionStatus, bool) {
	r.connStatusMu.RLock()
	status := r.connStatus
	known := r.connStatusKnown
	r.connStatusMu.RUnlock()

	return status, known
}

// Connect starts listening on the configured endpoint.
func (r *Runtime) Connect() error {
	return r.Client.Connect(r.Ctx, EndpointFromConfig(r.ConfigStore.Current()))
}

func (r *Runtime) Disconnect() error {
	return r.Client.Disconnect()
}

// SaveConfig validates, persists and applies cfg. A changed endpoint reconnects an active client.
func (r *Runtime) SaveConfig(cfg config.AppConfig) error {
	cfg.FillMissingDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	previous := r.ConfigStore.Current()
	r.ConfigStore.SetCurrent(cfg)
	if !r.ConfigStore.SaveCurrent("") {
		r.ConfigStore.SetCurrent(previous)

		return ErrConfigNotSaved
	}

	if err := r.LogManager.Configure(cfg.Logging, r.Paths.LogFile); err != nil {
		return err
	}
	r.History.SetLimit(cfg.Notify.DisplayHistoryCount)

	if EndpointFromConfig(previous) == EndpointFromConfig(cfg) {
		return nil
	}
	state := r.Client.State()
	if state != wsclient.StateConnecting && state != wsclient.StateOpen {
		return nil
	}

	return r.reconnect()
}

func (r *Runtime) reconnect() error {
	done := r.Client.Done()
	if err := r.Client.Disconnect(); err != nil {
		slog.Warn("disconnect before reconnect", "error", err)
	}
	select {
	case <-done:
	case <-time.After(reconnectWait):
		slog.Warn("previous connection loop did not stop in time")
	}

	return r.Connect()
}

// ClearHistory removes stored and in-memory notification history.
func (r *Runtime) ClearHistory() error {
	if r.JobResultRepo == nil {
		return fmt.Errorf("database is not initialized")
	}

	ctx, cancel := context.WithTimeout(context.Background(), clearHistoryTimeout)
	defer cancel()
	if err := r.WriterQueue.Flush(ctx); err != nil {
		return fmt.Errorf("flush pending writes: %w", err)
	}
	if err := r.JobResultRepo.Clear(ctx); err != nil {
		return err
	}
	r.History.Reset()
	slog.Info("history cleared")

	return nil
}

func (r *Runtime) Close() error {
	if r.Client != nil {
		_ = r.Client.Close()
	}
	if r.scheduler != nil {
		r.scheduler.Close()
	}
	if r.WriterQueue != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), clearHistoryTimeout)
		_ = r.WriterQueue.Flush(flushCtx)
		cancel()
	}
	if r.cancel != nil {
		r.cancel()
	}
	if r.Bus != nil {
		r.Bus.Close()
	}
	if r.DB != nil {
		_ = r.DB.Close()
	}
	if r.LogManager != nil {
		_ = r.LogManager.Close()
	}

	return nil
}
