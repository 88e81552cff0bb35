package commands

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// ProjectionNode is the JSON form of a projection in the apply graph.
type ProjectionNode struct {
	Name       string   `json:"name"`
	Level      int      `json:"level"`
	Abstract   bool     `json:"abstract,omitempty"`
	Serial     bool     `json:"serial,omitempty"`
	Transforms []string `json:"transforms"`
	Applies    []string `json:"applies"`
	AppliedBy  []string `json:"applied_by"`
	// Upstream lists every projection grafted into this one, transitively.
	Upstream   []string `json:"upstream"`
	// Downstream lists every projection that grafts this one, transitively.
	Downstream []string `json:"downstream"`
}

// NewGraphCommand creates the graph command.
func NewGraphCommand() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Show projections and their apply dependencies",
		Long: `Show projections grouped by apply level.

Level 0 projections apply no other projection. A projection at level N only
applies projections at lower levels.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, err := NewCommandContext(cmd, EngineOptions{})
			if err != nil {
				return err
			}

			eng := cmdCtx.Engine
			g := eng.Graph()
			levels, err := g.GetExecutionLevels()
			if err != nil {
				return err
			}

			var nodes []ProjectionNode
			for level, names := range levels {
				for _, name := range names {
					transforms, err := eng.TransformNames(name)
					if err != nil {
						return err
					}
					p, _ := g.Node(name)
					node := ProjectionNode{
						Name:       name,
						Level:      level,
						Abstract:   p.Abstract,
						Serial:     eng.Serial(name),
						Transforms: transforms,
						Applies:    nonNil(g.GetParents(name)),
						AppliedBy:  nonNil(g.GetChildren(name)),
						Upstream:   nonNil(g.GetUpstreamNodes(name)),
						Downstream: nonNil(g.GetDownstreamNodes(name)),
					}
					nodes = append(nodes, node)
				}
			}

			r := cmdCtx.Renderer
			if jsonOut {
				if nodes == nil {
					nodes = []ProjectionNode{}
				}
				return r.JSON(nodes)
			}

			styles := r.Styles()
			r.Header("Projection Graph")
			r.Println(styles.Muted.Render(strings.Repeat("─", 40)))
			current := -1
			for _, n := range nodes {
				if n.Level != current {
					current = n.Level
					r.Printf("\n%s\n", styles.Header2.Render("Level "+strconv.Itoa(current)))
				}
				label := styles.Name.Render(n.Name)
				if n.Abstract {
					label += styles.Muted.Render(" (abstract)")
				}
				if n.Serial {
					label += styles.Warning.Render(" (serial)")
				}
				r.Printf("  %s %s\n", styles.Bullet, label)
				if len(n.Transforms) > 0 {
					r.Printf("      transforms: %s\n", strings.Join(n.Transforms, " → "))
				}
				if len(n.Applies) > 0 {
					r.Printf("      applies: %s\n", strings.Join(n.Applies, ", "))
				}
				if len(n.AppliedBy) > 0 {
					r.Printf("      applied by: %s\n", strings.Join(n.AppliedBy, ", "))
				}
			}
			r.Printf("\n%s\n", styles.Muted.Render(strconv.Itoa(g.NodeCount())+" projection(s), "+strconv.Itoa(g.EdgeCount())+" apply edge(s)"))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
