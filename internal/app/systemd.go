package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "ridewatch/pkg/logx"
)

// notifyReady tells systemd we are up and, when a watchdog is configured,
// starts a keepalive loop at half the watchdog interval. Outside systemd both
// calls are no-ops.
func (a *App) notifyReady(ctx context.Context) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		a.log.Warn("sd_notify failed", logx.Err(err))
		return
	}
	if !sent {
		return
	}

	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
					a.log.Warn("watchdog ping failed", logx.Err(err))
				}
			}
		}
	}()
	a.log.Debug("systemd watchdog enabled", logx.Duration("interval", interval))
}

func (a *App) notifyStopping() {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
}
