package stage

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/san-kum/mdpipe/internal/config"
	"github.com/san-kum/mdpipe/internal/integrators"
	"github.com/san-kum/mdpipe/internal/sim"
)

// ApplyIntegrator rebinds h to the integrator described by the merged stage
// configuration when it differs from the one in use, so stage-level
// temperature, timestep, friction and integrator entries take effect.
func ApplyIntegrator(logger *log.Logger, h *sim.Handle, cfg config.Map) error {
	spec, err := integrators.FromConfig(cfg)
	if err != nil {
		return err
	}
	if h.Integrator != nil && h.Integrator.Spec() == spec {
		return nil
	}
	integ, err := h.Engine.NewIntegrator(spec)
	if err != nil {
		return err
	}
	if err := h.SetIntegrator(integ); err != nil {
		return fmt.Errorf("set integrator: %w", err)
	}
	logger.Info("integrator changed", "kind", spec.Kind, "temperature_K", spec.Temperature,
		"step_ps", spec.StepSize, "friction_ps", spec.Friction)
	return nil
}
