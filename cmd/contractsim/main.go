package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/san-kum/contractsim/internal/config"
	"github.com/san-kum/contractsim/internal/experiment"
	"github.com/san-kum/contractsim/internal/figures"
	"github.com/san-kum/contractsim/internal/metrics"
	"github.com/san-kum/contractsim/internal/params"
	"github.com/san-kum/contractsim/internal/storage"
)

var (
	configFile string
	preset     string
	dataDir    string
	figureDir  string
	logLevel   string

	paramsFile   string
	stiffness    float64
	tMax         float64
	initialForce float64
	integrator   string
	rtol         float64
	atol         float64
	maxSteps     int
	noSave       bool
	noFigures    bool

	sweepFrom  float64
	sweepTo    float64
	sweepStep  float64
	sampleStep float64
	workers    int

	logger = slog.Default()
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "contractsim",
		Short:         "actomyosin ring contraction on elastic pillars",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogger(logLevel)
		},
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "use preset configuration")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultDataDir, "data directory")
	rootCmd.PersistentFlags().StringVar(&figureDir, "figures", config.DefaultFigureDir, "figure directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "integrate one contraction at a fixed pillar stiffness",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	addModelFlags(runCmd)
	runCmd.Flags().Float64Var(&tMax, "t-max", config.DefaultTMax, "final time (s)")
	runCmd.Flags().Float64Var(&stiffness, "stiffness", config.DefaultStiffness, "pillar stiffness (pN/μm)")
	runCmd.Flags().Float64Var(&initialForce, "initial-force", 0, "initial pillar force (pN)")
	runCmd.Flags().BoolVar(&noFigures, "no-figures", false, "skip png output")

	sweepCmd := &cobra.Command{
		Use:   "sweep [model]",
		Short: "repeat the contraction over a range of pillar stiffnesses",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSweep,
	}
	addModelFlags(sweepCmd)
	sweepCmd.Flags().Float64Var(&tMax, "t-max", config.DefaultSweepTMax, "final time of every run (s)")
	sweepCmd.Flags().Float64Var(&sweepFrom, "from", config.DefaultSweepFrom, "first stiffness")
	sweepCmd.Flags().Float64Var(&sweepTo, "to", config.DefaultSweepTo, "stiffness bound (exclusive)")
	sweepCmd.Flags().Float64Var(&sweepStep, "step", config.DefaultSweepStep, "stiffness increment")
	sweepCmd.Flags().Float64Var(&sampleStep, "sample-step", config.DefaultSampleStep, "resampling interval for velocity (s)")
	sweepCmd.Flags().IntVar(&workers, "workers", 0, "concurrent runs (0 uses GOMAXPROCS)")
	sweepCmd.Flags().BoolVar(&noFigures, "no-figures", false, "skip png output")

	compareCmd := &cobra.Command{
		Use:   "compare [model] [integrators...]",
		Short: "run the same contraction with several integrators",
		Args:  cobra.MinimumNArgs(1),
		RunE:  compareIntegrators,
	}
	addModelFlags(compareCmd)
	compareCmd.Flags().Float64Var(&tMax, "t-max", config.DefaultTMax, "final time (s)")
	compareCmd.Flags().Float64Var(&stiffness, "stiffness", config.DefaultStiffness, "pillar stiffness (pN/μm)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved runs and sweeps",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "plot a saved record in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "write the series of a record as CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "write a record and its series as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			models := config.PresetModels()
			if len(args) > 0 {
				models = args
			}
			for _, m := range models {
				names := config.ListPresets(m)
				if len(names) == 0 {
					fmt.Printf("no presets for model: %s\n", m)
					continue
				}
				fmt.Printf("presets for %s:\n", m)
				for _, name := range names {
					p := config.GetPreset(m, name)
					fmt.Printf("  %-6s k_p=%g t_max=%g\n", name, p.Stiffness, p.TMax)
				}
			}
			return nil
		},
	}

	paramsCmd := &cobra.Command{
		Use:   "params [model]",
		Short: "print the parameter file schema of a model",
		Args:  cobra.ExactArgs(1),
		RunE:  printSchema,
	}

	rootCmd.AddCommand(runCmd, sweepCmd, compareCmd, listCmd, showCmd, exportCSVCmd, exportJSONCmd, presetsCmd, paramsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

func addModelFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&paramsFile, "params", "", "parameter file (defaults to the bundled one)")
	cmd.Flags().StringVar(&integrator, "integrator", experiment.DefaultSolver, "integrator")
	cmd.Flags().Float64Var(&rtol, "rtol", 0, "relative tolerance")
	cmd.Flags().Float64Var(&atol, "atol", 0, "absolute tolerance")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "step budget")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the result")
}

func setupLogger(level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}
	logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      lvl,
		TimeFormat: "15:04:05",
	}))
	slog.SetDefault(logger)
	return nil
}

// resolveConfig layers defaults, preset, config file and changed flags, in
// that order.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	model := ""
	if len(args) > 0 {
		model = args[0]
	}

	if preset != "" {
		name := model
		if name == "" {
			name = cfg.Model
		}
		if v, err := params.ParseVariant(name); err == nil {
			name = v.Short()
		}
		p := config.GetPreset(name, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(name))
		}
		cfg = p
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if model != "" {
		v, err := params.ParseVariant(model)
		if err != nil {
			return nil, err
		}
		if current, _ := cfg.Variant(); current != v {
			cfg.Model = v.Short()
			cfg.ParamsFile = config.ParamsFileFor(v)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("params") {
		cfg.ParamsFile = paramsFile
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("rtol") {
		cfg.Solver.RelTol = rtol
	}
	if flags.Changed("atol") {
		cfg.Solver.AbsTol = atol
	}
	if flags.Changed("max-steps") {
		cfg.Solver.MaxSteps = maxSteps
	}
	if flags.Changed("stiffness") {
		cfg.Stiffness = stiffness
	}
	if flags.Changed("initial-force") {
		f := initialForce
		cfg.InitialForce = &f
	}
	if flags.Changed("t-max") {
		if cmd.Name() == "sweep" {
			cfg.Sweep.TMax = tMax
		} else {
			cfg.TMax = tMax
		}
	}
	if flags.Changed("from") {
		cfg.Sweep.From = sweepFrom
	}
	if flags.Changed("to") {
		cfg.Sweep.To = sweepTo
	}
	if flags.Changed("step") {
		cfg.Sweep.Step = sweepStep
	}
	if flags.Changed("sample-step") {
		cfg.Sweep.SampleStep = sampleStep
	}
	if flags.Changed("workers") {
		cfg.Sweep.Workers = workers
	}
	if flags.Changed("data") || cfg.Output.DataDir == "" {
		cfg.Output.DataDir = dataDir
	}
	if flags.Changed("figures") || cfg.Output.FigureDir == "" {
		cfg.Output.FigureDir = figureDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupExperiment(cfg *config.Config) (*experiment.Experiment, error) {
	ec, err := cfg.Experiment()
	if err != nil {
		return nil, err
	}
	exp := experiment.New(ec, nil, logger)
	if err := exp.Setup(); err != nil {
		return nil, err
	}
	return exp, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	exp, err := setupExperiment(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("running %s at k_p=%g pN/μm...\n", cfg.Model, cfg.Stiffness)
	start := time.Now()
	res, runErr := exp.Run(ctx)
	elapsed := time.Since(start)
	if res == nil {
		return runErr
	}

	runID := ""
	if !noSave {
		st := storage.New(cfg.Output.DataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err = st.Save(res, exp.Params().Map(), runErr)
		if err != nil {
			return err
		}
	}

	var files []string
	if !noFigures {
		files, err = figures.TipDynamics(res, cfg.Output.FigureDir)
		if err != nil {
			return err
		}
		path, err := figures.Power(res, cfg.Output.FigureDir)
		switch {
		case errors.Is(err, figures.ErrNoData):
			logger.Warn("power figure skipped", "err", err)
		case err != nil:
			return err
		default:
			files = append(files, path)
		}
	}

	fmt.Println(renderRun(res, runID, elapsed))
	for _, f := range files {
		fmt.Println(dimStyle.Render("  wrote " + f))
	}
	if runErr != nil {
		fmt.Println(warnStyle.Render("run stopped early; the partial trajectory was kept"))
	}
	return runErr
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	sc, err := cfg.SweepRun()
	if err != nil {
		return err
	}
	exp, err := setupExperiment(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("sweeping %s over %d stiffnesses (t_max=%g s)...\n", cfg.Model, len(sc.Stiffnesses), sc.TMax)
	start := time.Now()
	points, err := exp.Sweep(ctx, sc)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "K_P\tFINAL_F\tPEAK_V\tPEAK_V_MODEL\tW_TRANS(pJ)\tW_DISS(pJ)\tPOINTS")
	for _, p := range points {
		fmt.Fprintf(w, "%g\t%.4g\t%.4g\t%.4g\t%.4g\t%.4g\t%d\n",
			p.Stiffness, p.FinalForce, p.PeakVelocity, p.PeakModelVel,
			metrics.PicoJoules(p.TransmittedWork), metrics.PicoJoules(p.DissipatedWork), p.Points)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\ncompleted in %v\n", elapsed.Round(time.Millisecond))

	if !noSave {
		st := storage.New(cfg.Output.DataDir)
		if err := st.Init(); err != nil {
			return err
		}
		id, err := st.SaveSweep(cfg.Model, cfg.Integrator, sc.TMax, points)
		if err != nil {
			return err
		}
		fmt.Printf("sweep id: %s\n", id)
	}
	if !noFigures {
		files, err := figures.Sweep(points, cfg.Model, cfg.Output.FigureDir)
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Println(dimStyle.Render("  wrote " + f))
		}
	}
	return nil
}

func compareIntegrators(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args[:1])
	if err != nil {
		return err
	}
	names := args[1:]
	if len(names) == 0 {
		names = experiment.NewRegistry().Solvers()
	}

	fmt.Printf("comparing integrators for %s (k_p=%g, t_max=%gs)\n\n", cfg.Model, cfg.Stiffness, cfg.TMax)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INTEGRATOR\tSTEPS\tREJECTED\tEVALS\tFINAL_F\tW_TRANS(pJ)\tTIME_MS")

	for _, name := range names {
		c := *cfg
		c.Integrator = name
		exp, err := setupExperiment(&c)
		if err != nil {
			return err
		}

		start := time.Now()
		res, err := exp.Run(cmd.Context())
		elapsed := time.Since(start)
		if err != nil {
			fmt.Fprintf(w, "%s\terror: %v\n", name, err)
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.6g\t%.6g\t%.2f\n",
			name, res.Stats.Steps, res.Stats.Rejected, res.Stats.Evaluations,
			res.Summary.FinalForce, metrics.PicoJoules(res.TransmittedWork),
			float64(elapsed.Microseconds())/1000)
	}
	return w.Flush()
}

func printSchema(cmd *cobra.Command, args []string) error {
	v, err := params.ParseVariant(args[0])
	if err != nil {
		return err
	}
	schema, err := params.SchemaFor(v)
	if err != nil {
		return err
	}

	fmt.Printf("%s (one \"key = value\" per line, # starts a comment)\n\n", v)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tNAME\tTYPE\tUNIT")
	for _, f := range schema {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.Key, f.Name, f.Kind, f.Unit)
	}
	return w.Flush()
}
