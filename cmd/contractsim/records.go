package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/contractsim/internal/metrics"
	"github.com/san-kum/contractsim/internal/storage"
)

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tMODEL\tTIME\tK_P\tT_MAX\tINTEG\tPOINTS\tSTATUS")

	for _, run := range runs {
		status := "ok"
		if run.Error != "" {
			status = "partial"
		}
		kp := "-"
		if run.Kind == storage.KindRun {
			kp = fmt.Sprintf("%g", run.Stiffness)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%gs\t%s\t%d\t%s\n",
			run.ID,
			run.Kind,
			run.Model,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			kp,
			run.TMax,
			run.Integrator,
			run.Points,
			status,
		)
	}

	return w.Flush()
}

type panel struct {
	column  string
	caption string
}

var (
	runPanels = []panel{
		{"force", "force (pN) vs time"},
		{"velocity", "tip velocity (μm/s) vs time"},
		{"transmitted_power", "transmitted power (aW) vs time"},
	}
	sweepPanels = []panel{
		{"peak_velocity", "peak velocity (μm/s) vs stiffness"},
		{"final_force", "final force (pN) vs stiffness"},
	}
)

func showRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, tbl, err := st.LoadTable(args[0])
	if err != nil {
		return err
	}
	if len(tbl.Rows) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("model: %s\n", meta.Model)
	fmt.Printf("samples: %d\n", len(tbl.Rows))
	if meta.Summary != nil {
		fmt.Printf("work: %.4g pJ transmitted, %.4g pJ dissipated\n",
			metrics.PicoJoules(meta.Summary.TransmittedWork), metrics.PicoJoules(meta.Summary.DissipatedWork))
	}
	if meta.Error != "" {
		fmt.Println(warnStyle.Render("stopped early: " + meta.Error))
	}
	fmt.Println()

	panels := runPanels
	if meta.Kind == storage.KindSweep {
		panels = sweepPanels
	}
	for _, p := range panels {
		data := tbl.Column(p.column)
		if len(data) == 0 {
			continue
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(p.caption),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	_, tbl, err := st.LoadTable(args[0])
	if err != nil {
		return err
	}
	return storage.WriteCSV(os.Stdout, tbl)
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, tbl, err := st.LoadTable(args[0])
	if err != nil {
		return err
	}
	return storage.ExportJSON(os.Stdout, meta, tbl)
}
