package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"sheetbatch/internal/model"
	"sheetbatch/internal/profile"
)

type profileListEntry struct {
	Name    string   `json:"name"`
	Formats []string `json:"formats"`
	Output  string   `json:"output_folder"`
	Source  string   `json:"source"`
}

func newProfilesCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "profiles",
		Aliases: []string{"profile"},
		Short:   "List, show, import and remove export profiles",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List known profiles",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withStore(g, func(s *session, store *profile.Store) error {
					return listProfiles(cmd.OutOrStdout(), store, g.jsonOut)
				})
			},
		},
		&cobra.Command{
			Use:   "show <name>",
			Short: "Print one profile",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(g, func(s *session, store *profile.Store) error {
					settings, err := store.Get(args[0])
					if err != nil {
						return err
					}
					if g.jsonOut {
						return printJSON(cmd.OutOrStdout(), settings)
					}
					return printYAML(cmd.OutOrStdout(), settings)
				})
			},
		},
		newProfileDeleteCommand(g),
		&cobra.Command{
			Use:   "import <file.xml>",
			Short: "Convert an interchange XML document and save its profiles",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(g, func(s *session, store *profile.Store) error {
					res, err := store.Import(args[0])
					if err != nil {
						return err
					}
					if g.jsonOut {
						return printJSON(cmd.OutOrStdout(), res)
					}
					out := cmd.OutOrStdout()
					for _, p := range res.Saved {
						fprintf(out, "saved:   %s\n", p)
					}
					for _, msg := range res.Skipped {
						fprintf(out, "skipped: %s\n", msg)
					}
					fprintf(out, "imported %d profile(s), skipped %d\n", len(res.Saved), len(res.Skipped))
					return nil
				})
			},
		},
		newManageCommand(g),
	)
	return cmd
}

func newProfileDeleteCommand(g *globalOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Remove a stored profile file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(g, func(s *session, store *profile.Store) error {
				name := args[0]
				if _, err := store.Get(name); err != nil {
					return err
				}
				if !yes {
					ok, err := promptConfirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("delete profile %q? [y/N] ", name))
					if err != nil {
						return err
					}
					if !ok {
						return errors.New("delete cancelled")
					}
				}
				if err := store.Delete(name); err != nil {
					return err
				}
				if g.jsonOut {
					return printJSON(cmd.OutOrStdout(), map[string]string{"deleted": name})
				}
				fprintf(cmd.OutOrStdout(), "deleted profile %s\n", name)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "skip the confirmation prompt")
	return cmd
}

func withStore(g *globalOptions, fn func(s *session, store *profile.Store) error) error {
	s, err := g.open()
	if err != nil {
		return err
	}
	defer s.Close()
	store, err := loadStore(s)
	if err != nil {
		return err
	}
	return fn(s, store)
}

func loadStore(s *session) (*profile.Store, error) {
	store := profile.NewStore(s.cfg.ProfilesDir, s.cfg.ProfilesDefaultsDir, s.log)
	if _, err := store.Load(); err != nil {
		return nil, err
	}
	return store, nil
}

func listProfiles(w io.Writer, store *profile.Store, jsonOut bool) error {
	entries := make([]profileListEntry, 0)
	for _, p := range store.List() {
		entries = append(entries, profileListEntry{
			Name:    p.Name,
			Formats: p.Formats.Tags(),
			Output:  p.OutputFolder,
			Source:  defaultIfEmpty(store.SourcePath(p.Name), "(built-in)"),
		})
	}
	if jsonOut {
		return printJSON(w, entries)
	}
	for _, e := range entries {
		fprintf(w, "%-24s %-16s %-20s %s\n", e.Name, strings.Join(e.Formats, ","), e.Output, e.Source)
	}
	return nil
}

func printYAML(w io.Writer, settings model.ExportSettings) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(settings); err != nil {
		return err
	}
	return enc.Close()
}
