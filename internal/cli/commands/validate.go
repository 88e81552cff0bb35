package commands

import (
	"fmt"
	"slices"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapbuild/internal/engine"
	"github.com/leapstack-labs/leapbuild/pkg/core"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	var (
		models  bool
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the build config",
		Long: `Validate the build config without writing any output.

Checks projection names, transform names and apply references, and rejects
cyclic applies. With --models every projection is also evaluated and its
validation events are reported; no plugins are run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, err := NewCommandContext(cmd, EngineOptions{})
			if err != nil {
				return err
			}
			r := cmdCtx.Renderer
			styles := r.Styles()

			if !models {
				if jsonOut {
					return r.JSON(map[string]any{"valid": true, "projections": projectionNames(cmdCtx.Engine.Config())})
				}
				r.Printf("%s %s is valid\n", styles.Success.Render(styles.Check), configLabel(cmdCtx))
				return nil
			}

			report, err := cmdCtx.Engine.RunAll(cmd.Context(), engine.RunOptions{
				PluginFilter: func(string) bool { return false },
			})
			if err != nil {
				return err
			}

			if jsonOut {
				if err := r.JSON(validationSummary(report)); err != nil {
					return err
				}
				return reportError(report)
			}

			for _, res := range report.Results {
				mark := styles.Success.Render(styles.Check)
				if res.Broken() {
					mark = styles.Error.Render(styles.Cross)
				}
				r.Printf("%s %s\n", mark, styles.Name.Render(res.ProjectionName()))
				for _, ev := range res.Events() {
					r.Printf("    %s\n", severityStyle(cmdCtx, ev.Severity).Render(ev.String()))
				}
			}
			for _, f := range report.Failures {
				r.Printf("%s %s: %s\n", styles.Error.Render(styles.Cross), styles.Name.Render(f.Projection), firstLine(f.Err))
			}
			return reportError(report)
		},
	}

	cmd.Flags().BoolVar(&models, "models", false, "Also assemble and validate every projection model")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")

	return cmd
}

// ValidationEventJSON is the JSON form of a validation event.
type ValidationEventJSON struct {
	ID       string `json:"id"`
	Severity string `json:"severity"`
	ShapeID  string `json:"shape_id,omitempty"`
	Message  string `json:"message"`
}

type projectionValidation struct {
	Projection string                `json:"projection"`
	Broken     bool                  `json:"broken"`
	Error      string                `json:"error,omitempty"`
	Events     []ValidationEventJSON `json:"events"`
}

func validationSummary(report *engine.BuildReport) []projectionValidation {
	out := make([]projectionValidation, 0, len(report.Results)+len(report.Failures))
	for _, res := range report.Results {
		pv := projectionValidation{
			Projection: res.ProjectionName(),
			Broken:     res.Broken(),
			Events:     []ValidationEventJSON{},
		}
		for _, ev := range res.Events() {
			pv.Events = append(pv.Events, ValidationEventJSON{
				ID:       ev.ID,
				Severity: ev.Severity.String(),
				ShapeID:  ev.ShapeID,
				Message:  ev.Message,
			})
		}
		out = append(out, pv)
	}
	for _, f := range report.Failures {
		out = append(out, projectionValidation{
			Projection: f.Projection,
			Broken:     true,
			Error:      f.Err.Error(),
			Events:     []ValidationEventJSON{},
		})
	}
	return out
}

func severityStyle(cmdCtx *CommandContext, s core.Severity) lipgloss.Style {
	styles := cmdCtx.Renderer.Styles()
	switch s {
	case core.SeverityError:
		return styles.Error
	case core.SeverityDanger, core.SeverityWarning:
		return styles.Warning
	default:
		return styles.Muted
	}
}

func configLabel(cmdCtx *CommandContext) string {
	if cmdCtx.Loaded.File == "" {
		return "default build config"
	}
	return fmt.Sprintf("build config %s", cmdCtx.Loaded.File)
}

func projectionNames(cfg *core.BuildConfig) []string {
	names := make([]string, 0, len(cfg.Projections))
	for name := range cfg.Projections {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
