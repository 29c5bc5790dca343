package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/contractsim/internal/metrics"
	"github.com/san-kum/contractsim/internal/sim"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 2)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(20)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

func row(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value)
}

func renderRun(res *sim.Result, runID string, elapsed time.Duration) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%s · k_p = %g pN/μm", res.Variant, res.Stiffness)))
	b.WriteString("\n")

	rows := []string{
		row("integrator", res.Solver),
		row("t_max", fmt.Sprintf("%g s", res.TMax)),
		row("steps", fmt.Sprintf("%d accepted, %d rejected", res.Stats.Steps, res.Stats.Rejected)),
		row("evaluations", fmt.Sprintf("%d (%d jacobians)", res.Stats.Evaluations, res.Stats.Jacobians)),
		row("final force", fmt.Sprintf("%.4g pN", res.Summary.FinalForce)),
		row("peak force", fmt.Sprintf("%.4g pN", res.Summary.PeakForce)),
		row("peak velocity", fmt.Sprintf("%.4g μm/s", res.Summary.PeakVelocity)),
		row("transmitted work", fmt.Sprintf("%.4g pJ", metrics.PicoJoules(res.TransmittedWork))),
		row("dissipated work", fmt.Sprintf("%.4g pJ", metrics.PicoJoules(res.DissipatedWork))),
		row("elapsed", elapsed.Round(time.Microsecond).String()),
	}
	if res.Degeneracies > 0 {
		rows = append(rows, row("degeneracies", warnStyle.Render(fmt.Sprintf("%d clamped rates", res.Degeneracies))))
	}
	if runID != "" {
		rows = append(rows, row("run id", runID))
	}
	b.WriteString(strings.Join(rows, "\n"))
	return boxStyle.Render(b.String())
}
