package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JustinTDCT/AnimeVault/internal/parser"
	"github.com/JustinTDCT/AnimeVault/internal/quality"
)

func newParseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "parse NAME...",
		Short: "Show how release names parse and classify",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Name", "Title", "Episode", "Season", "Group", "Quality", "Strategy"},
				parseRows(args),
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}
}

func parseRows(names []string) [][]string {
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rel, ok := parser.Parse(name)
		if !ok {
			rows = append(rows, []string{name, "-", "-", "-", "-", quality.Classify(name).Name, "unparsed"})
			continue
		}
		q := quality.Classify(name)
		if q == quality.Unknown {
			q = quality.FromRelease(rel)
		}
		rows = append(rows, []string{
			name,
			rel.Title,
			strconv.FormatFloat(rel.EpisodeNumber, 'f', -1, 64),
			strconv.Itoa(rel.SeasonOrDefault()),
			rel.Group,
			q.Name,
			rel.Strategy,
		})
	}
	return rows
}

func newScanCommand(c *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan the library and import episode files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.setup(cmd.Context(), true)
			if err != nil {
				return err
			}
			svc := c.services(cfg, c.publisher(cfg))
			result, err := svc.files.Scan(cmd.Context(), cfg.LibraryRoot)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "found %d, imported %d, skipped %d\n",
				result.FilesFound, result.FilesImported, result.FilesSkipped)
			for _, name := range result.Unmatched {
				fmt.Fprintf(out, "unmatched: %s\n", name)
			}
			for _, msg := range result.Errors {
				fmt.Fprintf(out, "error: %s\n", msg)
			}
			return nil
		},
	}
}

func newRenameCommand(c *commandContext) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "rename ANIME_ID",
		Short: "Move an anime's episodes onto the naming pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid anime id %q", args[0])
			}
			cfg, err := c.setup(cmd.Context(), true)
			if err != nil {
				return err
			}
			svc := c.services(cfg, c.publisher(cfg))
			out := cmd.OutOrStdout()

			if dryRun {
				items, err := svc.renamer.Preview(cmd.Context(), id)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintln(out, "Nothing to rename")
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						strconv.FormatFloat(item.EpisodeNumber, 'f', -1, 64),
						item.CurrentPath,
						item.DestinationPath,
					})
				}
				fmt.Fprintln(out, renderTable([]string{"Episode", "Current", "Destination"}, rows,
					[]columnAlignment{alignRight}))
				return nil
			}

			result, err := svc.renamer.Execute(cmd.Context(), id)
			if result != nil {
				fmt.Fprintf(out, "renamed %d, failed %d\n", result.Renamed, result.Failed)
				for _, f := range result.Failures {
					fmt.Fprintf(out, "  %s\n", f)
				}
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only show the planned moves")
	return cmd
}

func newDiscoverCommand(c *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "List library folders no anime claims, with AniList suggestions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.setup(cmd.Context(), true)
			if err != nil {
				return err
			}
			svc := c.services(cfg, c.publisher(cfg))
			if _, err := svc.discovery.Scan(cmd.Context()); err != nil {
				return err
			}
			folders := svc.discovery.State().Snapshot()
			if len(folders) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Every folder is mapped")
				return nil
			}
			rows := make([][]string, 0, len(folders))
			for _, f := range folders {
				var names []string
				for _, s := range f.Suggestions {
					names = append(names, fmt.Sprintf("%s (%d)", s.TitleRomaji, s.AnimeID))
				}
				rows = append(rows, []string{f.Name, strings.Join(names, ", ")})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Folder", "Suggestions"}, rows, nil))
			return nil
		},
	}
}
