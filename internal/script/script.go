// internal/script/script.go
package script

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/webactions/internal/selector"
)

// Action names accepted in a step's action field.
const (
	ActionGoTo       = "go_to"
	ActionWaitFor    = "wait_for"
	ActionClick      = "click"
	ActionRightClick = "right_click"
	ActionTypeText   = "type_text"
	ActionClear      = "clear"
	ActionHover      = "hover"
	ActionScrollTo   = "scroll_to"
	ActionScrollPage = "scroll_page"
	ActionExtract    = "extract"
	ActionExtractAll = "extract_all"
	ActionRunJS      = "run_js"
	ActionCurrentURL = "current_url"
	ActionPageTitle  = "page_title"
	ActionPageSource = "page_source"
	ActionScreenshot = "screenshot"
	ActionSleep      = "sleep"
)

// ErrInvalidScript wraps every problem found while loading or validating a script.
var ErrInvalidScript = errors.New("invalid script")

// elementActions need a selector.
var elementActions = map[string]bool{
	ActionWaitFor:    true,
	ActionClick:      true,
	ActionRightClick: true,
	ActionTypeText:   true,
	ActionClear:      true,
	ActionHover:      true,
	ActionScrollTo:   true,
	ActionExtract:    true,
	ActionExtractAll: true,
}

var pageActions = map[string]bool{
	ActionGoTo:       true,
	ActionScrollPage: true,
	ActionRunJS:      true,
	ActionCurrentURL: true,
	ActionPageTitle:  true,
	ActionPageSource: true,
	ActionScreenshot: true,
	ActionSleep:      true,
}

// Script is a named list of steps run in order against one session.
type Script struct {
	Name string `yaml:"name"`
	// Raise makes every failing step abort the run.
	Raise bool   `yaml:"raise"`
	Steps []Step `yaml:"steps"`
}

// Step is one action. Which fields matter depends on Action.
type Step struct {
	Name         string        `yaml:"name"`
	Action       string        `yaml:"action"`
	URL          string        `yaml:"url"`
	SelectorType string        `yaml:"selector_type"`
	Selector     string        `yaml:"selector"`
	Text         string        `yaml:"text"`
	Attribute    string        `yaml:"attribute"`
	Script       string        `yaml:"script"`
	Direction    string        `yaml:"direction"`
	Path         string        `yaml:"path"`
	FullPage     bool          `yaml:"full_page"`
	Duration     time.Duration `yaml:"duration"`
	Timeout      time.Duration `yaml:"timeout"`
	SkipWait     bool          `yaml:"skip_wait"`
	Raise        bool          `yaml:"raise"`
	SaveAs       string        `yaml:"save_as"`
}

// Label names the step in logs and reports.
func (s Step) Label(index int) string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("#%d %s", index+1, s.Action)
}

// Target builds the step's selector. selector_type defaults to xpath.
func (s Step) Target() (selector.Selector, error) {
	typeName := s.SelectorType
	if typeName == "" {
		typeName = string(selector.XPath)
	}
	return selector.New(typeName, s.Selector)
}

// HasTarget reports whether the step names a selector.
func (s Step) HasTarget() bool { return s.Selector != "" }

// Validate checks that the action is known and that its required fields are present.
func (s Step) Validate() error {
	switch {
	case elementActions[s.Action]:
		if _, err := s.Target(); err != nil {
			return err
		}
	case pageActions[s.Action]:
		if s.HasTarget() && s.Action == ActionRunJS {
			if _, err := s.Target(); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown action %q", s.Action)
	}

	switch s.Action {
	case ActionGoTo:
		if s.URL == "" {
			return errors.New("go_to needs a url")
		}
	case ActionScrollPage:
		if s.Direction == "" {
			return errors.New("scroll_page needs a direction")
		}
	case ActionRunJS:
		if s.Script == "" {
			return errors.New("run_js needs a script")
		}
	case ActionScreenshot:
		if s.Path == "" {
			return errors.New("screenshot needs a path")
		}
	case ActionSleep:
		if s.Duration <= 0 {
			return errors.New("sleep needs a positive duration")
		}
	}
	if s.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	return nil
}

// Validate checks every step and reports the first problem.
func (sc *Script) Validate() error {
	if len(sc.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidScript)
	}
	for i, step := range sc.Steps {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("%w: step %s: %w", ErrInvalidScript, step.Label(i), err)
		}
	}
	return nil
}

// Load decodes and validates a YAML script. Unknown fields are rejected so
// typos in step keys surface early.
func Load(r io.Reader) (*Script, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	sc := &Script{}
	if err := dec.Decode(sc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidScript)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

// LoadFile reads a script from path; a leading ~ is expanded.
func LoadFile(path string) (*Script, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("could not expand script path: %w", err)
	}
	f, err := os.Open(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to open script: %w", err)
	}
	defer f.Close()

	sc, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if sc.Name == "" {
		sc.Name = path
	}
	return sc, nil
}
