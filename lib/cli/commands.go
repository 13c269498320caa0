package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"tileshow/lib/beat"
	"tileshow/lib/project"
	"tileshow/lib/show"
	"tileshow/lib/target"
)

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func newTilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tiles",
		Short: "List and drive tiles",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List tiles with their state and level",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := openShow()
				if err != nil {
					return err
				}
				w := newTabWriter(cmd.OutOrStdout())
				fmt.Fprintln(w, "ID\tNAME\tSTATE\tLEVEL")
				for _, t := range s.Tiles() {
					fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\n", t.ID, t.Name, t.State, t.Envelope)
				}
				return w.Flush()
			},
		},
		&cobra.Command{
			Use:   "toggle <tile>",
			Short: "Fade a tile in or out",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return editShow(func(s *show.Show) error {
					modified, enabled, err := s.Toggle(project.TileID(args[0]))
					if err != nil {
						return err
					}
					switch {
					case !modified:
						dim.Fprintf(cmd.OutOrStdout(), "%s: unchanged\n", args[0])
					case enabled:
						good.Fprintf(cmd.OutOrStdout(), "%s: fading in\n", args[0])
					default:
						fmt.Fprintf(cmd.OutOrStdout(), "%s: fading out\n", args[0])
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "strength <tile> <0..1>",
			Short: "Set a tile's strength",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := strconv.ParseFloat(args[1], 64)
				if err != nil {
					return fmt.Errorf("strength %q: %w", args[1], err)
				}
				return editShow(func(s *show.Show) error {
					return s.SetStrength(project.TileID(args[0]), v)
				})
			},
		},
	)
	return cmd
}

// parseTarget reads group:<id>, a JSON target, or comma-separated
// patch/output/fixture references.
func parseTarget(s string) (project.OutputTarget, error) {
	switch {
	case strings.HasPrefix(s, "{"):
		return project.UnmarshalTarget([]byte(s))
	case strings.HasPrefix(s, "group:"):
		id := strings.TrimPrefix(s, "group:")
		if id == "" {
			return nil, errors.New("empty group id")
		}
		return project.GroupTarget(id), nil
	}
	var refs project.FixturesTarget
	for _, part := range strings.Split(s, ",") {
		ref, err := parseRef(part)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func parseRef(s string) (project.FixtureReference, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return project.FixtureReference{}, fmt.Errorf("fixture reference %q: want patch/output/fixture", s)
	}
	return project.FixtureReference{
		PatchID:   project.PatchID(parts[0]),
		OutputID:  project.OutputID(parts[1]),
		FixtureID: project.FixtureID(parts[2]),
	}, nil
}

func printRefs(w io.Writer, refs []project.FixtureReference) {
	if len(refs) == 0 {
		dim.Fprintln(w, "(no fixtures)")
		return
	}
	for _, ref := range refs {
		fmt.Fprintln(w, ref)
	}
}

func newGroupsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "Edit fixture groups",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List groups and their targets",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := openShow()
				if err != nil {
					return err
				}
				w := newTabWriter(cmd.OutOrStdout())
				fmt.Fprintln(w, "ID\tNAME\tFIXTURES\tTARGETS")
				err = s.View(func(p *project.Project, _ beat.Metadata, _ time.Time) error {
					for _, g := range p.Groups {
						var targets []string
						for _, t := range g.Targets {
							targets = append(targets, project.TargetString(t))
						}
						n := len(target.ResolveGroup(p, g.ID))
						fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", g.ID, g.Name, n, strings.Join(targets, " "))
					}
					return nil
				})
				if err != nil {
					return err
				}
				return w.Flush()
			},
		},
		&cobra.Command{
			Use:   "resolve <group>",
			Short: "List the fixtures a group reaches",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := openShow()
				if err != nil {
					return err
				}
				refs, err := s.ResolveGroup(project.GroupID(args[0]))
				if err != nil {
					return err
				}
				printRefs(cmd.OutOrStdout(), refs)
				return nil
			},
		},
		&cobra.Command{
			Use:   "candidates <group>",
			Short: "List targets that may be added to a group",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := openShow()
				if err != nil {
					return err
				}
				candidates, err := s.ApplicableMembers(project.GroupID(args[0]))
				if err != nil {
					return err
				}
				for _, c := range candidates {
					switch c := c.(type) {
					case project.GroupTarget:
						fmt.Fprintf(cmd.OutOrStdout(), "group:%s\n", string(c))
					case project.FixturesTarget:
						for _, ref := range c {
							fmt.Fprintln(cmd.OutOrStdout(), ref)
						}
					}
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "add <group> <target>",
			Short: "Add group:<id> or patch/output/fixture[,...] to a group",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				t, err := parseTarget(args[1])
				if err != nil {
					return err
				}
				return editShow(func(s *show.Show) error {
					id := project.GroupID(args[0])
					if err := s.AddToGroup(id, t); err != nil {
						return err
					}
					refs, err := s.ResolveGroup(id)
					if err != nil {
						return err
					}
					good.Fprintf(cmd.OutOrStdout(), "%s now reaches %d fixtures\n", id, len(refs))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "new <name>",
			Short: "Create an empty group",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return editShow(func(s *show.Show) error {
					fmt.Fprintln(cmd.OutOrStdout(), s.NewGroup(args[0]))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "delete <group>",
			Short: "Delete a group and every reference to it",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return editShow(func(s *show.Show) error {
					return s.DeleteGroup(project.GroupID(args[0]))
				})
			},
		},
	)
	return cmd
}

func newFixturesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fixtures",
		Short: "List and remove patched fixtures",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List the fixtures of the active patch",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := openShow()
				if err != nil {
					return err
				}
				w := newTabWriter(cmd.OutOrStdout())
				fmt.Fprintln(w, "REFERENCE\tNAME\tPROFILE\tCHANNEL")
				err = s.View(func(p *project.Project, _ beat.Metadata, _ time.Time) error {
					for _, ref := range p.FixtureRefs() {
						f := p.Fixture(ref)
						fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", ref, f.Name, f.ProfileID, f.Channel)
					}
					return nil
				})
				if err != nil {
					return err
				}
				return w.Flush()
			},
		},
		&cobra.Command{
			Use:   "delete <patch/output/fixture>",
			Short: "Remove a fixture and every reference to it",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ref, err := parseRef(args[0])
				if err != nil {
					return err
				}
				return editShow(func(s *show.Show) error {
					return s.DeleteFixture(ref)
				})
			},
		},
	)
	return cmd
}

func newOutputsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outputs",
		Short: "Inspect, enable and disable outputs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the outputs of the active patch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openShow()
			if err != nil {
				return err
			}
			w := newTabWriter(cmd.OutOrStdout())
			fmt.Fprintln(w, "ID\tKIND\tADDRESS\tUNIVERSE\tFIXTURES\tLATENCY\tENABLED")
			err = s.View(func(p *project.Project, _ beat.Metadata, _ time.Time) error {
				patch := p.Patch()
				if patch == nil {
					return nil
				}
				for _, o := range patch.Outputs {
					enabled := good.Sprint("yes")
					if !o.Enabled {
						enabled = dim.Sprint("no")
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.1fms\t%s\n",
						o.ID, o.Kind, o.Address, o.Universe, len(o.Fixtures), o.LatencyMs, enabled)
				}
				return nil
			})
			if err != nil {
				return err
			}
			return w.Flush()
		},
	})
	for _, enable := range []bool{true, false} {
		verb := "enable"
		if !enable {
			verb = "disable"
		}
		cmd.AddCommand(&cobra.Command{
			Use:   verb + " <output>",
			Short: strings.ToUpper(verb[:1]) + verb[1:] + " an output of the active patch",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return editShow(func(s *show.Show) error {
					out, err := s.SetOutputEnabled(project.OutputID(args[0]), enable)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %sd\n", out.ID, verb)
					return nil
				})
			},
		})
	}
	return cmd
}

func newMockCmd() *cobra.Command {
	var (
		outputs, fixtures, groups, tiles int
		force                            bool
	)
	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Write a generated demo project to the project file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(projectPath); err == nil && !force {
				return fmt.Errorf("%s exists; use --force to overwrite", projectPath)
			}
			store, err := project.NewFileStore(projectPath)
			if err != nil {
				return err
			}
			if err := store.Save(project.GenerateMockProject(outputs, fixtures, groups, tiles)); err != nil {
				return err
			}
			good.Fprintf(cmd.OutOrStdout(), "wrote %s\n", projectPath)
			return nil
		},
	}
	cmd.Flags().IntVar(&outputs, "outputs", 2, "number of Art-Net outputs")
	cmd.Flags().IntVar(&fixtures, "fixtures", 8, "fixtures per output")
	cmd.Flags().IntVar(&groups, "groups", 4, "number of groups")
	cmd.Flags().IntVar(&tiles, "tiles", 6, "number of tiles")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing project file")
	return cmd
}
