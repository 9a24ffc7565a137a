package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jenkinstray/jenkinstray/internal/app"
	"github.com/jenkinstray/jenkinstray/internal/platform"
	"github.com/jenkinstray/jenkinstray/internal/tray"
)

func main() {
	lock, err := platform.AcquireInstanceLock(app.Name)
	if err != nil {
		if errors.Is(err, platform.ErrInstanceAlreadyRunning) {
			slog.Info("another instance is already running", "error", err)
			os.Exit(0)
		}
		slog.Warn("single instance lock unavailable", "error", err)
	}
	if lock != nil {
		defer func() { _ = lock.Release() }()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Initialize(ctx, app.Dependencies{})
	if err != nil {
		slog.Error("initialize app runtime", "error", err)
		os.Exit(1)
	}

	var closeOnce sync.Once
	closeRuntime := func() {
		closeOnce.Do(func() {
			_ = rt.Close()
		})
	}
	defer closeRuntime()

	if err := rt.Connect(); err != nil {
		slog.Warn("connect on startup", "error", err)
		rt.Dialogs.ShowError("Connection error", err.Error())
	}

	status, _ := rt.CurrentConnStatus()
	tray.Run(tray.Dependencies{
		Ctx:           ctx,
		Controller:    rt,
		Bus:           rt.Bus,
		History:       rt.History,
		InitialStatus: status,
		OnQuit: func() {
			stop()
			closeRuntime()
		},
		Logger: rt.LogManager.Logger("tray"),
	})
}
