package syncengine

import (
	"log/slog"

	"github.com/tonimelisma/mindwtr-sync/internal/config"
)

// reload re-reads the config file and rebuilds the backend and attachment
// engine from it, grounded on Orchestrator.reload in the teacher: config
// changes take effect on the next cycle rather than requiring a restart.
// A reload failure leaves the current config, backend, and engine in
// place.
func (o *Orchestrator) reload() {
	if o.cfgPath == "" {
		return
	}

	newCfg, err := config.LoadOrDefault(o.cfgPath, o.logger)
	if err != nil {
		o.logger.Warn("config reload failed, keeping current config", slog.String("error", err.Error()))
		return
	}

	newBackend, err := o.backendFactory(newCfg)
	if err != nil {
		o.logger.Warn("rebuilding backend after config reload failed, keeping current backend",
			slog.String("error", err.Error()))
		return
	}

	newAttach := o.attachEngineFactory(newCfg, config.AttachmentsRoot(newCfg.DataDir), newBackend, o.logger)

	o.mu.Lock()
	o.cfg = newCfg
	o.backend = newBackend
	o.attach = newAttach
	o.mu.Unlock()

	o.logger.Info("config reload complete", slog.String("backend", string(newCfg.SyncBackend)))
}
