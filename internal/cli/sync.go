package cli

import (
	"context"
	"fmt"
	"sync"

	"github.com/movelog/uplink/internal/auth"
	"github.com/movelog/uplink/internal/upload"
)

// runSync uploads every pending measurement and waits for a terminal status
// event per measurement. Measurements whose session ended unsuccessfully stay
// pending and are retried on the next run.
func (a *App) runSync(ctx context.Context) error {
	pending, err := a.store.ListPending(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		a.log.Info(ctx, "nothing to synchronize")
		return nil
	}

	password, err := a.getPassword()
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	authenticator := auth.NewLoginAuthenticator(a.authURL, a.config.Username, password, a.config.RequestTimeout)
	transport := upload.NewHTTPTransport(a.config.RequestTimeout, a.log)
	process := upload.NewProcess(a.collectorURL, a.registry, a.store,
		upload.NewStoreFactory(a.store), authenticator, transport, a.log)

	var (
		mu     sync.Mutex
		done   = make(map[int64]bool)
		failed int
		wg     sync.WaitGroup
	)

	finish := func(id int64, ok bool) {
		mu.Lock()
		defer mu.Unlock()
		if done[id] {
			return
		}
		done[id] = true
		if !ok {
			failed++
		}
		wg.Done()
	}

	process.Subscribe(func(ev upload.StatusEvent) {
		switch ev.Phase {
		case upload.PhaseStarted:
			a.log.Info(ctx, "upload started", "measurement_id", ev.MeasurementID)
		case upload.PhaseFinishedSuccessfully:
			a.log.Info(ctx, "upload finished", "measurement_id", ev.MeasurementID)
			finish(ev.MeasurementID, true)
		case upload.PhaseFinishedUnsuccessfully:
			a.log.Warn(ctx, "upload rejected, will retry on next run", "measurement_id", ev.MeasurementID)
			finish(ev.MeasurementID, false)
		case upload.PhaseFinishedWithError:
			a.log.Error(ctx, "upload failed", "measurement_id", ev.MeasurementID, "error", ev.Err)
			finish(ev.MeasurementID, false)
		}
	})

	for _, m := range pending {
		wg.Add(1)
		if _, err := process.Upload(ctx, m); err != nil {
			a.log.Error(ctx, "upload not started", "measurement_id", m.ID, "error", err)
			finish(m.ID, false)
		}
	}

	wg.Wait()
	transport.Wait()

	if failed > 0 {
		return fmt.Errorf("%d of %d measurements failed to synchronize", failed, len(pending))
	}
	a.log.Info(ctx, "synchronization finished", "measurements", len(pending))
	return nil
}
