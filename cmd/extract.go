package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/webactions/internal/browser"
	"github.com/xkilldash9x/webactions/internal/htmldoc"
	"github.com/xkilldash9x/webactions/internal/observability"
	"github.com/xkilldash9x/webactions/internal/selector"
)

// xpathKey holds the container path in each record when --xpath is set.
const xpathKey = "_xpath"

// field is one --field flag: name=type:selector[@attribute].
type field struct {
	Name      string
	Selector  selector.Selector
	Attribute string
}

var attributeName = regexp.MustCompile(`^[A-Za-z_][-A-Za-z0-9_:.]*$`)

// parseField parses name=type:selector[@attribute]. The attribute suffix is
// only split off when it looks like an attribute name, so XPath predicates such
// as //a[@id='x'] stay intact. An XPath attribute step like //a/@href selects
// the href of //a.
func parseField(raw string) (field, error) {
	name, rest, ok := strings.Cut(raw, "=")
	if !ok || strings.TrimSpace(name) == "" {
		return field{}, fmt.Errorf("field %q: expected name=type:selector[@attribute]", raw)
	}
	typeName, value, ok := strings.Cut(rest, ":")
	if !ok {
		return field{}, fmt.Errorf("field %q: missing selector type", raw)
	}

	var attribute string
	if i := strings.LastIndex(value, "@"); i > 0 && attributeName.MatchString(value[i+1:]) {
		value, attribute = value[:i], value[i+1:]
		if t, err := selector.Parse(typeName); err == nil && t == selector.XPath {
			value = strings.TrimRight(value, "/")
		}
	}

	sel, err := selector.New(typeName, value)
	if err != nil {
		return field{}, fmt.Errorf("field %q: %w", raw, err)
	}
	return field{Name: strings.TrimSpace(name), Selector: sel, Attribute: attribute}, nil
}

// parseContainer parses the type:selector form of --within.
func parseContainer(raw string) (selector.Selector, error) {
	typeName, value, ok := strings.Cut(raw, ":")
	if !ok {
		return selector.Selector{}, fmt.Errorf("--within %q: expected type:selector", raw)
	}
	sel, err := selector.New(typeName, value)
	if err != nil {
		return selector.Selector{}, fmt.Errorf("--within %q: %w", raw, err)
	}
	return sel, nil
}

// extractor is satisfied by both a live session and a parsed document.
type extractor interface {
	extract(ctx context.Context, f field, all bool) (interface{}, error)
	// containers returns an extractor scoped to each match of sel, with the
	// match's absolute XPath when withXPath is set.
	containers(ctx context.Context, sel selector.Selector, withXPath bool) ([]scoped, error)
}

type scoped struct {
	ex    extractor
	xpath string
}

type sessionExtractor struct {
	s      *browser.Session
	parent *browser.Element
}

func (e sessionExtractor) opts() []browser.FindOption {
	if e.parent == nil {
		return nil
	}
	return []browser.FindOption{browser.Within(e.parent)}
}

func (e sessionExtractor) extract(ctx context.Context, f field, all bool) (interface{}, error) {
	if all {
		return e.s.ExtractAll(ctx, f.Selector, f.Attribute, e.opts()...)
	}
	return e.s.Extract(ctx, f.Selector, f.Attribute, e.opts()...)
}

func (e sessionExtractor) containers(ctx context.Context, sel selector.Selector, withXPath bool) ([]scoped, error) {
	els, err := e.s.FindElements(ctx, sel, e.opts()...)
	if err != nil {
		return nil, err
	}
	out := make([]scoped, 0, len(els))
	for _, el := range els {
		sc := scoped{ex: sessionExtractor{s: e.s, parent: el}}
		if withXPath {
			if sc.xpath, err = e.s.XPath(ctx, el); err != nil {
				return nil, err
			}
		}
		out = append(out, sc)
	}
	return out, nil
}

type documentExtractor struct {
	d      *htmldoc.Document
	parent *html.Node
}

func (e documentExtractor) extract(_ context.Context, f field, all bool) (interface{}, error) {
	if all {
		return e.d.ExtractAllWithin(e.parent, f.Selector, f.Attribute)
	}
	return e.d.ExtractWithin(e.parent, f.Selector, f.Attribute)
}

func (e documentExtractor) containers(_ context.Context, sel selector.Selector, withXPath bool) ([]scoped, error) {
	nodes, err := e.d.FindWithin(e.parent, sel)
	if err != nil {
		return nil, err
	}
	out := make([]scoped, 0, len(nodes))
	for _, n := range nodes {
		sc := scoped{ex: documentExtractor{d: e.d, parent: n}}
		if withXPath {
			sc.xpath = htmldoc.IndexedXPath(n)
		}
		out = append(out, sc)
	}
	return out, nil
}

// extractFields fills a result per field. A field that cannot be extracted is
// null in the result unless strict is set.
func extractFields(ctx context.Context, ex extractor, fields []field, all, strict bool) (map[string]interface{}, error) {
	logger := observability.GetLogger()
	result := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		v, err := ex.extract(ctx, f, all)
		if err != nil {
			if strict || errors.Is(err, context.Canceled) {
				return result, fmt.Errorf("field %s: %w", f.Name, err)
			}
			logger.Warn("Field extraction failed.", zap.String("field", f.Name), zap.String("kind", browser.Kind(err)), zap.Error(err))
			result[f.Name] = nil
			continue
		}
		result[f.Name] = v
	}
	return result, nil
}

// extractRecords runs extractFields once per container match. No container
// match yields an empty list unless strict is set.
func extractRecords(ctx context.Context, ex extractor, within selector.Selector, fields []field, all, strict, withXPath bool) ([]map[string]interface{}, error) {
	records := []map[string]interface{}{}
	scopes, err := ex.containers(ctx, within, withXPath)
	if err != nil {
		if strict || errors.Is(err, context.Canceled) {
			return records, fmt.Errorf("containers %s: %w", within, err)
		}
		observability.GetLogger().Warn("No containers found.", zap.Stringer("within", within), zap.String("kind", browser.Kind(err)))
		return records, nil
	}
	for _, sc := range scopes {
		rec, err := extractFields(ctx, sc.ex, fields, all, strict)
		if err != nil {
			return records, err
		}
		if withXPath {
			rec[xpathKey] = sc.xpath
		}
		records = append(records, rec)
	}
	return records, nil
}

func newExtractCmd() *cobra.Command {
	var (
		rawFields []string
		within    string
		fromFile  bool
		all       bool
		strict    bool
		withXPath bool
	)

	cmd := &cobra.Command{
		Use:   "extract <url|file>",
		Short: "Extract named fields from a page as JSON",
		Example: `  webactions extract https://github.com/octocat \
    --field name=xpath://span[@itemprop='name'] \
    --field repos=css:a.repo@href --all

  webactions extract page.html --from-file --within css:li.pinned-item --xpath \
    --field title=css:a.repo --field url=xpath:./a/@href`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if len(rawFields) == 0 {
				return errors.New("at least one --field is required")
			}
			if withXPath && within == "" {
				return errors.New("--xpath requires --within")
			}
			fields := make([]field, 0, len(rawFields))
			for _, raw := range rawFields {
				f, err := parseField(raw)
				if err != nil {
					return err
				}
				fields = append(fields, f)
			}
			var container selector.Selector
			if within != "" {
				if container, err = parseContainer(within); err != nil {
					return err
				}
			}

			collect := func(ctx context.Context, ex extractor) (interface{}, error) {
				if within != "" {
					return extractRecords(ctx, ex, container, fields, all, strict, withXPath)
				}
				return extractFields(ctx, ex, fields, all, strict)
			}

			var result interface{}
			if fromFile {
				path, err := homedir.Expand(args[0])
				if err != nil {
					return err
				}
				file, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", args[0], err)
				}
				defer file.Close()
				doc, err := htmldoc.Parse(file)
				if err != nil {
					return err
				}
				if result, err = collect(ctx, documentExtractor{d: doc}); err != nil {
					return err
				}
			} else {
				err = withSession(ctx, cfg, func(ctx context.Context, s *browser.Session) error {
					if err := s.GoTo(ctx, args[0]); err != nil {
						return err
					}
					var err error
					result, err = collect(ctx, sessionExtractor{s: s})
					return err
				})
				if err != nil {
					return err
				}
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringArrayVarP(&rawFields, "field", "f", nil, "field to extract as name=type:selector[@attribute] (repeatable)")
	cmd.Flags().StringVar(&within, "within", "", "extract the fields once per container matching type:selector")
	cmd.Flags().BoolVar(&fromFile, "from-file", false, "treat the argument as a local HTML file and skip the browser")
	cmd.Flags().BoolVar(&all, "all", false, "extract every match instead of the first")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when any field cannot be extracted")
	cmd.Flags().BoolVar(&withXPath, "xpath", false, "add each container's absolute XPath to its record as "+xpathKey)
	return cmd
}
