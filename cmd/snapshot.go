package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/webactions/internal/browser"
	"github.com/xkilldash9x/webactions/internal/htmldoc"
)

// snapshotResult is the JSON printed by the snapshot command.
type snapshotResult struct {
	URL        string         `json:"url"`
	Title      string         `json:"title"`
	Screenshot string         `json:"screenshot,omitempty"`
	Source     string         `json:"source,omitempty"`
	Links      []htmldoc.Link `json:"links,omitempty"`
}

func newSnapshotCmd() *cobra.Command {
	var (
		screenshotPath string
		sourcePath     string
		fullPage       bool
		links          int
	)

	cmd := &cobra.Command{
		Use:   "snapshot <url>",
		Short: "Capture a page's title, screenshot, source and links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			res := snapshotResult{}
			err = withSession(ctx, cfg, func(ctx context.Context, s *browser.Session) error {
				if err := s.GoTo(ctx, args[0]); err != nil {
					return err
				}
				var err error
				if res.URL, err = s.CurrentURL(ctx); err != nil {
					return err
				}
				if res.Title, err = s.Title(ctx); err != nil {
					return err
				}

				if screenshotPath != "" {
					img, err := s.Screenshot(ctx, fullPage)
					if err != nil {
						return err
					}
					if res.Screenshot, err = writeFile(screenshotPath, img); err != nil {
						return err
					}
				}

				if sourcePath == "" && links < 0 {
					return nil
				}
				source, err := s.PageSource(ctx)
				if err != nil {
					return err
				}
				if sourcePath != "" {
					if res.Source, err = writeFile(sourcePath, []byte(source)); err != nil {
						return err
					}
				}
				if links >= 0 {
					res.Links, err = pageLinks(res.URL, source, links)
				}
				return err
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVar(&screenshotPath, "screenshot", "", "save a JPEG screenshot to this file")
	cmd.Flags().BoolVar(&fullPage, "full-page", false, "capture the whole page instead of the viewport")
	cmd.Flags().StringVar(&sourcePath, "source", "", "save the page source to this file")
	cmd.Flags().IntVar(&links, "links", -1, "list up to N links (0 for all, negative to skip)")
	return cmd
}

// pageLinks parses source and resolves its anchors against pageURL.
func pageLinks(pageURL, source string, limit int) ([]htmldoc.Link, error) {
	doc, err := htmldoc.Parse(strings.NewReader(source))
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url %q: %w", pageURL, err)
	}
	return doc.Links(base, limit), nil
}

// writeFile writes data to path after expanding ~ and returns the expanded path.
func writeFile(path string, data []byte) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(expanded, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", expanded, err)
	}
	return expanded, nil
}
