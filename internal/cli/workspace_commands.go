package cli

import (
	"errors"
	"io"

	"github.com/spf13/cobra"

	"sheetbatch/internal/workspace"
)

func newDoctorCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the renderer, directories and history database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := g.open()
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := workspace.Doctor(workspace.DoctorOptions{Config: s.cfg})
			if err != nil {
				return err
			}
			if g.jsonOut {
				if err := printJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
			} else {
				printDoctor(cmd.OutOrStdout(), res)
			}
			if !res.OK {
				return errors.New("doctor found failing checks")
			}
			return nil
		},
	}
}

func newInitCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the config file, profile and runs directories and the default profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := g.open()
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := workspace.Init(workspace.InitOptions{
				Config:     s.cfg,
				ConfigPath: g.configPath,
				Logger:     s.log,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if g.jsonOut {
				return printJSON(out, res)
			}
			fprintf(out, "config:   %s%s\n", res.ConfigPath, createdMark(res.CreatedConfig))
			fprintf(out, "runs:     %s%s\n", res.RunsDir, createdMark(res.CreatedRunsDir))
			fprintf(out, "profiles: %s%s\n", res.ProfilesDir, createdMark(res.CreatedProfiles))
			if res.DefaultProfile != "" {
				fprintf(out, "default profile written to %s\n", res.DefaultProfile)
			}
			printDoctor(out, res.DoctorResult)
			return nil
		},
	}
}

func printDoctor(w io.Writer, res workspace.DoctorResult) {
	for _, c := range res.Checks {
		mark := "ok  "
		if !c.OK {
			mark = "FAIL"
		}
		fprintf(w, "%s %-22s %s\n", mark, c.Name, c.Message)
	}
}

func createdMark(created bool) string {
	if created {
		return " (created)"
	}
	return ""
}
