package stage

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/san-kum/mdpipe/internal/config"
	"github.com/san-kum/mdpipe/internal/engine"
	"github.com/san-kum/mdpipe/internal/sim"
)

// AtmToBar converts pressure from atm to bar.
const AtmToBar = 1.01325

// Barostat builds the barostat added on an NVT -> NPT transition from the
// merged stage configuration.
func Barostat(cfg config.Map) *engine.MonteCarloBarostat {
	return &engine.MonteCarloBarostat{
		Pressure:    cfg.Float("pressure_atm", config.DefaultPressureAtm) * AtmToBar,
		Temperature: cfg.Float("temperature_K", config.DefaultTemperatureK),
		Frequency:   cfg.Int("barostat_interval", config.DefaultBarostatInterval),
	}
}

// Transition moves the handle to the target ensemble.
//
//	NVT -> NPT  add a barostat
//	NPT -> NVT  remove the barostat
//	X   -> X    nothing
//	X   -> ""   nothing
//
// The context is reinitialized whenever the force set changes.
func Transition(logger *log.Logger, h *sim.Handle, target config.Ensemble, cfg config.Map) error {
	switch target {
	case config.EnsembleNone:
		return nil
	case config.EnsembleNPT:
		if h.Ensemble == config.EnsembleNPT && h.System.FindBarostat() >= 0 {
			return nil
		}
		b := Barostat(cfg)
		if b.Frequency <= 0 {
			return config.Invalidf("barostat_interval", "must be positive, got %d", b.Frequency)
		}
		h.System.AddForce(b)
		if err := h.Context.Reinitialize(); err != nil {
			return fmt.Errorf("add barostat: %w", err)
		}
		h.Ensemble = config.EnsembleNPT
		logger.Info("ensemble NVT -> NPT", "pressure_bar", b.Pressure, "temperature_K", b.Temperature, "interval", b.Frequency)
	case config.EnsembleNVT:
		idx := h.System.FindBarostat()
		h.Ensemble = config.EnsembleNVT
		if idx < 0 {
			return nil
		}
		if err := h.System.RemoveForce(idx); err != nil {
			return err
		}
		if err := h.Context.Reinitialize(); err != nil {
			return fmt.Errorf("remove barostat: %w", err)
		}
		logger.Info("ensemble NPT -> NVT")
	default:
		return config.Invalidf("ensemble", "unknown ensemble %q", target)
	}
	return nil
}
