package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/mdpipe/internal/analysis"
	"github.com/san-kum/mdpipe/internal/engine"
	"github.com/san-kum/mdpipe/internal/export"
	"github.com/san-kum/mdpipe/internal/ligand"
	"github.com/san-kum/mdpipe/internal/logging"
	"github.com/san-kum/mdpipe/internal/orchestrator"
	"github.com/san-kum/mdpipe/internal/pdbfix"
	"github.com/san-kum/mdpipe/internal/storage"
)

var (
	logLevel string
	logStyle string

	output   string
	parallel int

	configFile string
	outdir     string
	project    string
	ph         float64

	protein      string
	ligandFile   string
	outPrefix    string
	chargeMethod string
	netCharge    int
	ligandName   string
	forceField   string
	padding      float64
	neutralize   bool
	keepWater    bool

	engineName string
	asJSON     bool
	column     string
	svgFile    string
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	badStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "mdpipe",
		Short:         "multi-stage molecular dynamics pipelines",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logStyle, "log-style", "", "log style (pretty, plain); overrides "+logging.EnvStyle+" when set")

	runCmd := &cobra.Command{
		Use:   "run [job.yml]",
		Short: "run a job description",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
	runCmd.Flags().StringVarP(&output, "output", "o", orchestrator.DefaultOutput, "output root")
	runCmd.Flags().IntVarP(&parallel, "parallel", "j", 1, "systems to run at once")

	simulateCmd := &cobra.Command{
		Use:   "simulate [structure.pdb]",
		Short: "repair a structure and run the default four-stage pipeline",
		Args:  cobra.ExactArgs(1),
		RunE:  simulate,
	}
	simulateCmd.Flags().StringVarP(&configFile, "config", "c", "", "YAML document merged over the auto config")
	simulateCmd.Flags().StringVarP(&outdir, "outdir", "o", orchestrator.DefaultOutput, "output root")
	simulateCmd.Flags().StringVar(&project, "project", "", "project name (default <stem>-auto)")
	simulateCmd.Flags().Float64Var(&ph, "ph", 7.0, "protonation pH for structure repair")
	simulateCmd.Flags().IntVarP(&parallel, "parallel", "j", 1, "systems to run at once")

	complexCmd := &cobra.Command{
		Use:   "build-complex",
		Short: "parameterize a ligand and build a solvated protein-ligand complex",
		Args:  cobra.NoArgs,
		RunE:  buildComplex,
	}
	complexCmd.Flags().StringVar(&protein, "protein", "", "protein PDB")
	complexCmd.Flags().StringVar(&ligandFile, "ligand", "", "ligand file (.sdf or .mol2)")
	complexCmd.Flags().StringVar(&outPrefix, "out", "", "output prefix for .prmtop/.inpcrd/.pdb")
	complexCmd.Flags().StringVar(&chargeMethod, "charge-method", string(ligand.ChargeBCC), "ligand charges (bcc, gas, resp)")
	complexCmd.Flags().IntVar(&netCharge, "net-charge", 0, "ligand net charge")
	complexCmd.Flags().StringVar(&ligandName, "name", "LIG", "ligand residue name")
	complexCmd.Flags().StringVar(&forceField, "ff", string(ligand.GAFF2), "ligand force field (gaff, gaff2)")
	complexCmd.Flags().Float64Var(&padding, "padding", 1.0, "solvent padding in nm")
	complexCmd.Flags().BoolVar(&neutralize, "neutralize", true, "add counter-ions")
	complexCmd.Flags().Float64Var(&ph, "ph", 7.0, "protonation pH for protein repair")
	complexCmd.Flags().BoolVar(&keepWater, "keep-water", false, "keep crystallographic water")
	complexCmd.MarkFlagRequired("protein")
	complexCmd.MarkFlagRequired("ligand")
	complexCmd.MarkFlagRequired("out")

	platformsCmd := &cobra.Command{
		Use:   "platforms",
		Short: "list compute platforms",
		Args:  cobra.NoArgs,
		RunE:  listPlatforms,
	}
	platformsCmd.Flags().StringVar(&engineName, "engine", orchestrator.DefaultEngine, "engine")

	listCmd := &cobra.Command{
		Use:   "list [project-dir]",
		Short: "list stage runs",
		Args:  cobra.ExactArgs(1),
		RunE:  listRuns,
	}
	listCmd.Flags().BoolVar(&asJSON, "json", false, "print stage metadata as JSON")

	plotCmd := &cobra.Command{
		Use:   "plot [stage-dir]",
		Short: "plot a state-log column",
		Args:  cobra.ExactArgs(1),
		RunE:  plotStage,
	}
	plotCmd.Flags().StringVar(&column, "column", "total_kj_mol", "state-log column")
	plotCmd.Flags().StringVar(&svgFile, "svg", "", "also write the plot as SVG")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [stage-dir]",
		Short: "drift and power spectrum of a state-log column",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeStage,
	}
	analyzeCmd.Flags().StringVar(&column, "column", "total_kj_mol", "state-log column")

	rootCmd.AddCommand(runCmd, simulateCmd, complexCmd, platformsCmd, listCmd, plotCmd, analyzeCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, badStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

func logOptions() logging.Options {
	return logging.Options{Level: logLevel, Style: logging.Style(logStyle), ForceStyle: logStyle != "", Prefix: "mdpipe"}
}

func runJob(cmd *cobra.Command, args []string) error {
	dir, err := orchestrator.RunFromYAML(cmd.Context(), args[0], output, orchestrator.Options{
		Logging:  logOptions(),
		Parallel: parallel,
	})
	if dir != "" {
		fmt.Println(headingStyle.Render("output: ") + dir)
	}
	return err
}

func simulate(cmd *cobra.Command, args []string) error {
	so := orchestrator.SimulateOptions{
		Options: orchestrator.Options{Logging: logOptions(), Parallel: parallel},
		Config:  configFile,
		Outdir:  outdir,
		Project: project,
	}
	if cmd.Flags().Changed("ph") {
		so.PH = &ph
	}
	dir, err := orchestrator.SimulateFromPDB(cmd.Context(), args[0], so)
	if dir != "" {
		fmt.Println(headingStyle.Render("output: ") + dir)
	}
	return err
}

func buildComplex(cmd *cobra.Command, args []string) error {
	b := ligand.New(logging.New(logOptions()))
	out, err := b.BuildComplex(cmd.Context(), protein, ligandFile, outPrefix, ligand.ComplexOptions{
		Ligand: ligand.Options{
			ChargeMethod: ligand.ChargeMethod(chargeMethod),
			NetCharge:    netCharge,
			Name:         ligandName,
			ForceField:   ligand.ForceField(forceField),
		},
		Fix:          pdbfix.Options{PH: ph, KeepWater: keepWater},
		BoxPaddingNm: padding,
		Neutralize:   neutralize,
	})
	if err != nil {
		return err
	}

	fmt.Println(headingStyle.Render("complex built"))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "prmtop\t%s\n", out.Prmtop)
	fmt.Fprintf(w, "inpcrd\t%s\n", out.Inpcrd)
	fmt.Fprintf(w, "pdb\t%s\n", out.PDB)
	fmt.Fprintf(w, "ligand\t%s\n", out.Ligand)
	fmt.Fprintf(w, "frcmod\t%s\n", out.Frcmod)
	fmt.Fprintf(w, "protein\t%s\n", out.FixedProtein)
	return w.Flush()
}

func listPlatforms(cmd *cobra.Command, args []string) error {
	eng, err := orchestrator.NewRegistry().GetEngine(engineName)
	if err != nil {
		return err
	}

	fmt.Println(headingStyle.Render("engine " + eng.Name()))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PLATFORM\tSPEED\tSTATUS")
	for _, name := range eng.Platforms() {
		p, err := eng.Platform(name)
		switch {
		case err == nil:
			fmt.Fprintf(w, "%s\t%.0f\t%s\n", p.Name(), p.Speed(), okStyle.Render("available"))
		case errors.Is(err, engine.ErrPlatformUnavailable):
			fmt.Fprintf(w, "%s\t-\t%s\n", name, dimStyle.Render("unavailable"))
		default:
			fmt.Fprintf(w, "%s\t-\t%s\n", name, badStyle.Render(err.Error()))
		}
	}
	fmt.Fprintf(w, "default\t\t%s\n", eng.DefaultPlatform().Name())
	return w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(args[0])
	runs, err := st.List()
	if err != nil {
		return err
	}
	if asJSON {
		return storage.ExportJSON(os.Stdout, runs)
	}
	if len(runs) == 0 {
		fmt.Println(dimStyle.Render("no runs found"))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SYSTEM\tSTAGE\tSTEPS\tENSEMBLE\tPLATFORM\tPOTENTIAL\tWALL\tSTARTED")
	for _, r := range runs {
		steps := fmt.Sprint(r.Steps)
		if r.Minimized {
			steps = "min"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.2f\t%.1fs\t%s\n",
			r.System, r.Stage, steps, r.Ensemble, r.Platform, r.Potential,
			r.WallSeconds, r.StartedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func loadColumn(stageDir, name string) (steps, values []float64, err error) {
	log, err := storage.LoadStateLog(stageDir)
	if err != nil {
		return nil, nil, err
	}
	if len(log.Rows) == 0 {
		return nil, nil, fmt.Errorf("no data in %s", filepath.Join(stageDir, "log.csv"))
	}
	if steps, err = log.Column("step"); err != nil {
		return nil, nil, err
	}
	if values, err = log.Column(name); err != nil {
		return nil, nil, err
	}
	return steps, values, nil
}

func plotStage(cmd *cobra.Command, args []string) error {
	steps, values, err := loadColumn(args[0], column)
	if err != nil {
		return err
	}

	fmt.Println(headingStyle.Render(args[0]))
	fmt.Println(dimStyle.Render(fmt.Sprintf("samples: %d", len(values))))
	fmt.Println()
	graph := asciigraph.Plot(values,
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.Caption(column+" vs step"),
	)
	fmt.Println(graph)

	if svgFile != "" {
		svg, err := export.SeriesSVG(steps, values, 800, 400, "#5fd7af")
		if err != nil {
			return err
		}
		if err := os.WriteFile(svgFile, []byte(svg), 0644); err != nil {
			return err
		}
		fmt.Println(dimStyle.Render("wrote " + svgFile))
	}
	return nil
}

func analyzeStage(cmd *cobra.Command, args []string) error {
	stageDir := args[0]
	steps, values, err := loadColumn(stageDir, column)
	if err != nil {
		return err
	}
	times, err := timeColumn(stageDir)
	if err != nil {
		return err
	}

	fmt.Println(headingStyle.Render("analysis: " + stageDir))
	fmt.Printf("column: %s\n\n", column)

	d := analysis.Drift(times, values)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "samples\t%d\n", d.Samples)
	fmt.Fprintf(w, "mean\t%.4f\n", d.Mean)
	fmt.Fprintf(w, "stddev\t%.4f\n", d.StdDev)
	fmt.Fprintf(w, "slope\t%.4g per ps\n", d.Slope)
	fmt.Fprintf(w, "relative drift\t%.3g\n", d.Relative)
	if err := w.Flush(); err != nil {
		return err
	}

	if len(times) < 4 {
		return nil
	}
	spacing := times[1] - times[0]
	spec := analysis.PowerSpectrum(values, spacing)
	if len(spec.Power) < 2 {
		return nil
	}
	fmt.Println()
	graph := asciigraph.Plot(spec.Power[1:],
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.Caption("power spectrum ("+column+")"),
	)
	fmt.Println(graph)
	fmt.Println()

	freq, _ := spec.Dominant()
	fmt.Printf("dominant frequency: %.4f 1/ps\n", freq)
	if freq > 0 {
		fmt.Printf("period: %.3f ps (%.0f steps)\n", 1/freq, (1/freq)/spacing*(steps[1]-steps[0]))
	}
	return nil
}

func timeColumn(stageDir string) ([]float64, error) {
	log, err := storage.LoadStateLog(stageDir)
	if err != nil {
		return nil, err
	}
	return log.Column("time_ps")
}
