package commands

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapbuild/internal/config"
	"github.com/leapstack-labs/leapbuild/internal/state"
	"github.com/leapstack-labs/leapbuild/pkg/core"
)

// RunHistoryJSON is the JSON form of a recorded build.
type RunHistoryJSON struct {
	*state.Run
	Projections []*state.ProjectionRecord `json:"projections,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var (
		limit   int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded builds",
		Long: `Show builds recorded in <output_directory>/~leapbuild/state.db.

Without arguments the most recent builds are listed. With a run ID the
outcome of every projection in that build is shown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := GetLogger(ctx)

			cfgFile, _ := cmd.Flags().GetString("config")
			loaded, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			outputDir := loaded.Build.OutputDirectory
			if outputDir == "" {
				outputDir = filepath.FromSlash(core.DefaultOutputDirectory)
			}

			r := newRenderer(cmd)
			if ok, _ := afero.Exists(afero.NewOsFs(), StatePath(outputDir)); !ok {
				if jsonOut {
					return r.JSON([]any{})
				}
				r.Println("No builds recorded.")
				return nil
			}

			store, err := openState(ctx, outputDir, logger)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if len(args) == 1 {
				run, err := store.GetRun(ctx, args[0])
				if err != nil {
					return fmt.Errorf("run %s: %w", args[0], err)
				}
				records, err := store.ListProjections(ctx, run.ID)
				if err != nil {
					return err
				}
				if jsonOut {
					return r.JSON(RunHistoryJSON{Run: run, Projections: records})
				}
				renderRun(r.Printf, run)
				rows := make([][]string, 0, len(records))
				for _, rec := range records {
					rows = append(rows, []string{
						rec.Projection,
						string(rec.Status),
						strconv.Itoa(rec.Shapes),
						fmt.Sprintf("%d/%d", rec.Errors, rec.Warnings),
						strings.Join(rec.Plugins, ", "),
						rec.Error,
					})
				}
				r.Println()
				r.Table([]string{"Projection", "Status", "Shapes", "Errors/Warnings", "Plugins", "Error"}, rows)
				return nil
			}

			runs, err := store.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			if jsonOut {
				if runs == nil {
					runs = []*state.Run{}
				}
				return r.JSON(runs)
			}
			if len(runs) == 0 {
				r.Println("No builds recorded.")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.ID,
					string(run.Status),
					run.StartedAt.Local().Format(time.DateTime),
					runDuration(run),
					run.Error,
				})
			}
			r.Table([]string{"Run", "Status", "Started", "Duration", "Error"}, rows)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of builds to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func renderRun(printf func(string, ...any), run *state.Run) {
	printf("Run:      %s\n", run.ID)
	printf("Status:   %s\n", run.Status)
	printf("Config:   %s\n", run.ConfigPath)
	printf("Started:  %s\n", run.StartedAt.Local().Format(time.DateTime))
	printf("Duration: %s\n", runDuration(run))
	if run.Error != "" {
		printf("Error:    %s\n", run.Error)
	}
}

func runDuration(run *state.Run) string {
	if run.CompletedAt == nil {
		return "-"
	}
	return run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
}
