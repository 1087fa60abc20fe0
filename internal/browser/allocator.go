// internal/browser/allocator.go
package browser

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/chromedp/chromedp"
	"github.com/mitchellh/go-homedir"

	"github.com/xkilldash9x/webactions/internal/config"
)

// allocatorFlag is one Chrome command line switch. A false bool removes the switch.
type allocatorFlag struct {
	name  string
	value interface{}
}

// DefaultAllocatorOptions assembles the Chrome options for cfg on top of chromedp's defaults.
func DefaultAllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for _, f := range allocatorFlags(cfg) {
		opts = append(opts, chromedp.Flag(f.name, f.value))
	}
	if cfg.ExecPath != "" {
		path, err := homedir.Expand(cfg.ExecPath)
		if err != nil {
			path = cfg.ExecPath
		}
		opts = append(opts, chromedp.ExecPath(path))
	}
	return opts
}

// allocatorFlags lists the switches derived from cfg. Later entries win over
// chromedp's defaults because flags are keyed by name.
func allocatorFlags(cfg config.BrowserConfig) []allocatorFlag {
	flags := []allocatorFlag{
		{"headless", cfg.Headless},
		{"hide-scrollbars", cfg.Headless},
		{"mute-audio", cfg.Headless},
	}

	if cfg.Incognito {
		flags = append(flags, allocatorFlag{"incognito", true})
	}
	if cfg.DisableGPU {
		flags = append(flags, allocatorFlag{"disable-gpu", true})
	}
	if w, h, err := cfg.Window(); err == nil {
		flags = append(flags, allocatorFlag{"window-size", fmt.Sprintf("%d,%d", w, h)})
	}
	if cfg.UserDataDir != "" {
		dir, err := homedir.Expand(cfg.UserDataDir)
		if err != nil {
			dir = cfg.UserDataDir
		}
		flags = append(flags, allocatorFlag{"user-data-dir", dir})
	}
	if cfg.UserAgent != "" {
		flags = append(flags, allocatorFlag{"user-agent", cfg.UserAgent})
	}
	if cfg.IgnoreTLSErrors {
		flags = append(flags,
			allocatorFlag{"ignore-certificate-errors", true},
			allocatorFlag{"allow-insecure-localhost", true},
		)
	}

	// Containers (Docker on Linux) need these to start at all.
	if runtime.GOOS == "linux" {
		flags = append(flags,
			allocatorFlag{"no-sandbox", true},
			allocatorFlag{"disable-dev-shm-usage", true},
		)
	}

	// Custom arguments last so they can override anything above.
	for _, arg := range cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimLeft(strings.TrimSpace(parts[0]), "-")
		if name == "" {
			continue
		}
		if len(parts) == 2 {
			flags = append(flags, allocatorFlag{name, parts[1]})
		} else {
			flags = append(flags, allocatorFlag{name, true})
		}
	}

	return flags
}
