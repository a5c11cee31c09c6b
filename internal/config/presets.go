package config

const (
	DefaultTemperatureK     = 300.0
	DefaultTimestepFs       = 2.0
	DefaultFrictionPerPs    = 1.0
	DefaultPressureAtm      = 1.0
	DefaultBarostatInterval = 25
	DefaultReportInterval   = 1000
	DefaultCheckpointEvery  = 10000
	DefaultPH               = 7.0
)

// AutoDefaults is the defaults block of a job synthesized from a single
// structure file.
func AutoDefaults() Map {
	return Map{
		"engine":               "openmm",
		"platform":             "auto",
		"temperature_K":        DefaultTemperatureK,
		"timestep_fs":          DefaultTimestepFs,
		"friction_ps":          DefaultFrictionPerPs,
		"pressure_atm":         DefaultPressureAtm,
		"barostat_interval":    DefaultBarostatInterval,
		"report_interval":      DefaultReportInterval,
		"checkpoint_interval":  DefaultCheckpointEvery,
		"integrator":           "langevin_middle",
		"forcefield":           []any{"amber14-all.xml", "amber14/tip3p.xml"},
		"box_padding_nm":       1.0,
		"ionic_strength_molar": 0.15,
		"neutralize":           true,
		"ions":                 "NaCl",
		"ph":                   DefaultPH,
		"create_system": Map{
			"nonbondedMethod":    "PME",
			"nonbondedCutoff_nm": 1.0,
			"constraints":        "HBonds",
			"rigidWater":         true,
		},
	}
}

// AutoStages is the four-stage pipeline used by auto-config.
func AutoStages() []any {
	return []any{
		Map{"name": "minimize", "steps": 0},
		Map{"name": "nvt", "steps": 50000, "ensemble": string(EnsembleNVT)},
		Map{"name": "npt", "steps": 50000, "ensemble": string(EnsembleNPT)},
		Map{"name": "production", "steps": 500000, "ensemble": string(EnsembleNPT)},
	}
}
