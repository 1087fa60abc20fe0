// internal/script/runner.go
package script

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webactions/internal/browser"
	"github.com/xkilldash9x/webactions/internal/selector"
)

// Driver is the part of a browser session a script needs. *browser.Session
// satisfies it.
type Driver interface {
	GoTo(ctx context.Context, url string) error
	WaitForElement(ctx context.Context, sel selector.Selector, timeout time.Duration, opts ...browser.FindOption) (*browser.Element, error)
	Click(ctx context.Context, sel selector.Selector, opts ...browser.FindOption) error
	RightClick(ctx context.Context, sel selector.Selector, opts ...browser.FindOption) error
	Hover(ctx context.Context, sel selector.Selector, opts ...browser.FindOption) error
	Clear(ctx context.Context, sel selector.Selector, opts ...browser.FindOption) error
	TypeText(ctx context.Context, sel selector.Selector, text string, opts ...browser.FindOption) error
	ScrollTo(ctx context.Context, sel selector.Selector, opts ...browser.FindOption) error
	ScrollPage(ctx context.Context, direction string) error
	Extract(ctx context.Context, sel selector.Selector, attribute string, opts ...browser.FindOption) (string, error)
	ExtractAll(ctx context.Context, sel selector.Selector, attribute string, opts ...browser.FindOption) ([]string, error)
	RunJS(ctx context.Context, sel selector.Selector, script string, res interface{}, opts ...browser.FindOption) error
	ExecuteScript(ctx context.Context, script string, res interface{}) error
	CurrentURL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	PageSource(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
}

var _ Driver = (*browser.Session)(nil)

// StepResult records the outcome of one step. A failed step has OK false, a nil
// Value and the error's kind.
type StepResult struct {
	Index    int           `json:"index"`
	Name     string        `json:"name"`
	Action   string        `json:"action"`
	OK       bool          `json:"ok"`
	Value    interface{}   `json:"value,omitempty"`
	Kind     string        `json:"kind,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report is the outcome of a run.
type Report struct {
	Name     string                 `json:"name"`
	OK       bool                   `json:"ok"`
	Steps    []StepResult           `json:"steps"`
	Values   map[string]interface{} `json:"values"`
	Duration time.Duration          `json:"duration"`
}

// Failed returns the results of the steps that did not succeed.
func (r *Report) Failed() []StepResult {
	var failed []StepResult
	for _, s := range r.Steps {
		if !s.OK {
			failed = append(failed, s)
		}
	}
	return failed
}

// StepError is returned by Run when a step with raise set fails or the run is
// cancelled.
type StepError struct {
	Index int
	Step  string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Runner executes scripts step by step against a Driver.
type Runner struct {
	driver Driver
	logger *zap.Logger
}

// NewRunner binds a runner to a driver.
func NewRunner(driver Driver, logger *zap.Logger) *Runner {
	return &Runner{driver: driver, logger: logger.Named("runner")}
}

// Run executes sc. Failing steps are recorded and the run continues, unless the
// step or the script sets raise, in which case Run stops and returns a
// *StepError together with the partial report. Cancelling ctx stops the run.
func (r *Runner) Run(ctx context.Context, sc *Script) (*Report, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	report := &Report{
		Name:   sc.Name,
		OK:     true,
		Steps:  make([]StepResult, 0, len(sc.Steps)),
		Values: make(map[string]interface{}),
	}
	logger := r.logger.With(zap.String("script", sc.Name))
	logger.Info("Starting script.", zap.Int("steps", len(sc.Steps)))
	start := time.Now()
	defer func() { report.Duration = time.Since(start) }()

	for i, step := range sc.Steps {
		label := step.Label(i)
		if err := ctx.Err(); err != nil {
			report.OK = false
			logger.Warn("Script cancelled.", zap.String("step", label), zap.Error(err))
			return report, &StepError{Index: i, Step: label, Err: err}
		}

		stepStart := time.Now()
		value, err := r.runStep(ctx, step, report.Values)
		res := StepResult{
			Index:    i,
			Name:     label,
			Action:   step.Action,
			OK:       err == nil,
			Duration: time.Since(stepStart),
		}

		if err != nil {
			res.Kind = browser.Kind(err)
			res.Error = err.Error()
			report.OK = false
			report.Steps = append(report.Steps, res)
			if step.SaveAs != "" {
				report.Values[step.SaveAs] = nil
			}

			logger.Warn("Step failed.",
				zap.String("step", label),
				zap.String("action", step.Action),
				zap.String("kind", res.Kind),
				zap.Error(err))
			if step.Raise || sc.Raise || ctx.Err() != nil {
				return report, &StepError{Index: i, Step: label, Err: err}
			}
			continue
		}

		res.Value = value
		report.Steps = append(report.Steps, res)
		if step.SaveAs != "" {
			report.Values[step.SaveAs] = value
		}
		logger.Debug("Step complete.", zap.String("step", label), zap.Duration("took", res.Duration))
	}

	logger.Info("Script finished.", zap.Bool("ok", report.OK), zap.Int("failed", len(report.Failed())))
	return report, nil
}

func (r *Runner) runStep(ctx context.Context, step Step, values map[string]interface{}) (interface{}, error) {
	var opts []browser.FindOption
	if step.SkipWait {
		opts = append(opts, browser.SkipWait())
	}
	if step.Timeout > 0 {
		opts = append(opts, browser.WithTimeout(step.Timeout))
	}

	var sel selector.Selector
	if step.HasTarget() {
		var err error
		if sel, err = step.Target(); err != nil {
			return nil, err
		}
		sel.Value = expand(sel.Value, values)
	}
	d := r.driver

	switch step.Action {
	case ActionGoTo:
		url := expand(step.URL, values)
		if err := d.GoTo(ctx, url); err != nil {
			return nil, err
		}
		return url, nil
	case ActionWaitFor:
		if _, err := d.WaitForElement(ctx, sel, step.Timeout); err != nil {
			return nil, err
		}
		return true, nil
	case ActionClick:
		return true, d.Click(ctx, sel, opts...)
	case ActionRightClick:
		return true, d.RightClick(ctx, sel, opts...)
	case ActionHover:
		return true, d.Hover(ctx, sel, opts...)
	case ActionClear:
		return true, d.Clear(ctx, sel, opts...)
	case ActionScrollTo:
		return true, d.ScrollTo(ctx, sel, opts...)
	case ActionTypeText:
		return true, d.TypeText(ctx, sel, expand(step.Text, values), opts...)
	case ActionScrollPage:
		return true, d.ScrollPage(ctx, step.Direction)
	case ActionExtract:
		return d.Extract(ctx, sel, step.Attribute, opts...)
	case ActionExtractAll:
		return d.ExtractAll(ctx, sel, step.Attribute, opts...)
	case ActionRunJS:
		var res interface{}
		src := expand(step.Script, values)
		if step.HasTarget() {
			err := d.RunJS(ctx, sel, src, &res, opts...)
			return res, err
		}
		err := d.ExecuteScript(ctx, src, &res)
		return res, err
	case ActionCurrentURL:
		return d.CurrentURL(ctx)
	case ActionPageTitle:
		return d.Title(ctx)
	case ActionPageSource:
		return d.PageSource(ctx)
	case ActionScreenshot:
		return r.screenshot(ctx, step, values)
	case ActionSleep:
		return step.Duration.String(), sleep(ctx, step.Duration)
	}
	return nil, fmt.Errorf("unknown action %q", step.Action)
}

func (r *Runner) screenshot(ctx context.Context, step Step, values map[string]interface{}) (interface{}, error) {
	img, err := r.driver.Screenshot(ctx, step.FullPage)
	if err != nil {
		return nil, err
	}
	path, err := homedir.Expand(expand(step.Path, values))
	if err != nil {
		return nil, fmt.Errorf("could not expand screenshot path: %w", err)
	}
	if err := os.WriteFile(path, img, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write screenshot: %w", err)
	}
	return path, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expand replaces ${name} with the string form of a value saved earlier in the
// run. Unknown names are left as they are.
func expand(s string, values map[string]interface{}) string {
	if len(values) == 0 {
		return s
	}
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		name := m[2 : len(m)-1]
		v, ok := values[name]
		if !ok || v == nil {
			return m
		}
		return fmt.Sprint(v)
	})
}
