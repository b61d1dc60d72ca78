package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/cli/browser"
	"github.com/spf13/cobra"

	"github.com/nikbrunner/bmsync/internal/culler"
	"github.com/nikbrunner/bmsync/internal/exporter"
	"github.com/nikbrunner/bmsync/internal/importer"
	"github.com/nikbrunner/bmsync/internal/model"
	"github.com/nikbrunner/bmsync/internal/picker"
	"github.com/nikbrunner/bmsync/internal/search"
)

var tableHeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var tableCellStyle = lipgloss.NewStyle().Padding(0, 1)

// fetched opens a session and loads the current collection from the API.
func fetched(ctx context.Context, configPath string) (*session, []model.Bookmark, error) {
	s, err := openSession(configPath, false)
	if err != nil {
		return nil, nil, err
	}
	bookmarks, err := s.store.FetchAll(ctx)
	if err != nil {
		s.Close()
		return nil, nil, fmt.Errorf("failed to fetch bookmarks: %w", err)
	}
	return s, bookmarks, nil
}

func newListCmd(configPath *string) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all bookmarks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, bookmarks, err := fetched(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			if plain {
				return writePlainList(out, bookmarks)
			}
			fmt.Fprintln(out, renderBookmarkTable(bookmarks))
			return nil
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "tab separated output without borders")
	return cmd
}

func writePlainList(w io.Writer, bookmarks []model.Bookmark) error {
	for _, b := range bookmarks {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", b.ID, b.Title, b.URL); err != nil {
			return err
		}
	}
	return nil
}

func renderBookmarkTable(bookmarks []model.Bookmark) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers("ID", "TITLE", "URL").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		})
	for _, b := range bookmarks {
		t.Row(b.ID, b.Title, b.URL)
	}
	return t.String()
}

func newOpenCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "open <query>",
		Short: "Fuzzy search bookmarks and open the pick in the browser",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, bookmarks, err := fetched(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer s.Close()

			query := strings.Join(args, " ")
			results := search.Fuzzy(bookmarks, query)
			if len(results) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No bookmarks match %q\n", query)
				return nil
			}

			b, ok, err := picker.Run(results, query)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			return browser.OpenURL(b.URL)
		},
	}
}

func newImportCmd(configPath *string) *cobra.Command {
	var prefixFolders bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import bookmarks from a browser HTML export",
		Long: `Creates every bookmark of a Netscape bookmark HTML file (the format
browsers export) through the API. URLs already present are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			entries, err := importer.ParseHTMLBookmarks(f)
			if err != nil {
				return fmt.Errorf("failed to parse %s: %w", args[0], err)
			}

			s, existing, err := fetched(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer s.Close()

			errOut := cmd.ErrOrStderr()
			summary, err := importer.Import(cmd.Context(), s.store, entries, existing, importer.Options{
				PrefixFolders: prefixFolders,
				Progress: func(e importer.Entry, err error) {
					if err != nil {
						fmt.Fprintf(errOut, "failed: %s (%v)\n", e.URL, err)
					}
				},
			})
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d, skipped %d, failed %d\n",
				summary.Created, summary.Skipped, summary.Failed)
			return err
		},
	}
	cmd.Flags().BoolVar(&prefixFolders, "prefix-folders", false, `prefix titles with their folder path ("Dev / Go: Title")`)
	return cmd
}

func newExportCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "export [path]",
		Short: "Export bookmarks as browser-importable HTML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				p, err := exporter.DefaultExportPath()
				if err != nil {
					return err
				}
				path = p
			}

			s, bookmarks, err := fetched(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := exporter.WriteFile(path, bookmarks); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d bookmarks to %s\n", len(bookmarks), path)
			return nil
		},
	}
}

func newCullCmd(configPath *string) *cobra.Command {
	var deleteDead bool
	cmd := &cobra.Command{
		Use:   "cull",
		Short: "Check every bookmark URL and report dead links",
		Long: `Requests every bookmarked URL and reports the ones that answer 404 or
410 (dead) or cannot be reached at all. With --delete the dead ones are
removed in a single batch; unreachable ones are only reported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, bookmarks, err := fetched(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer s.Close()

			checker := culler.NewChecker(culler.Options{
				Concurrency:    s.cfg.Cull.Concurrency,
				Timeout:        s.cfg.Cull.Timeout,
				ExcludeDomains: s.cfg.Cull.ExcludeDomains,
				Logger:         s.logger,
			})

			errOut := cmd.ErrOrStderr()
			results := checker.Check(cmd.Context(), bookmarks, func(completed, total int) {
				fmt.Fprintf(errOut, "\rChecking %d/%d", completed, total)
			})
			fmt.Fprintln(errOut)
			if err := cmd.Context().Err(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			dead := culler.Filter(results, culler.Dead)
			unreachable := culler.Filter(results, culler.Unreachable)
			writeCullReport(out, dead, unreachable)

			if len(dead) == 0 {
				return nil
			}
			if !deleteDead {
				fmt.Fprintln(out, "Run with --delete to remove dead bookmarks.")
				return nil
			}
			deleted, err := culler.DeleteDead(cmd.Context(), s.store, results)
			if err != nil {
				return fmt.Errorf("failed to delete dead bookmarks: %w", err)
			}
			fmt.Fprintf(out, "Deleted %d bookmarks.\n", len(deleted))
			return nil
		},
	}
	cmd.Flags().BoolVar(&deleteDead, "delete", false, "delete dead bookmarks")
	return cmd
}

func writeCullReport(w io.Writer, dead, unreachable []culler.Result) {
	if len(dead) == 0 && len(unreachable) == 0 {
		fmt.Fprintln(w, "All bookmarks are reachable.")
		return
	}
	if len(dead) > 0 {
		fmt.Fprintf(w, "Dead (%d):\n", len(dead))
		for _, r := range dead {
			fmt.Fprintf(w, "  [%d] %s  %s\n", r.StatusCode, r.Bookmark.Title, r.Bookmark.URL)
		}
	}
	if len(unreachable) > 0 {
		fmt.Fprintf(w, "Unreachable (%d):\n", len(unreachable))
		for _, r := range unreachable {
			fmt.Fprintf(w, "  %s  %s (%s)\n", r.Bookmark.Title, r.Bookmark.URL, r.Error)
		}
	}
}
