// internal/browser/cookies.go
package browser

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/mitchellh/go-homedir"
	cookiejar "github.com/orirawlings/persistent-cookiejar"
	"go.uber.org/zap"
)

// LoadCookies opens the jar at network.cookie_file and installs its cookies in
// the browser. The jar stays attached so Close can save it again.
func (s *Session) LoadCookies(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	jar, err := s.openJar()
	if err != nil {
		return err
	}

	stored, err := jarCookies(jar, time.Now())
	if err != nil {
		return err
	}
	params := cookieParams(stored)
	if len(params) > 0 {
		if err := s.runActions(ctx, network.SetCookies(params)); err != nil {
			return fmt.Errorf("failed to install cookies: %w", err)
		}
	}

	s.mu.Lock()
	s.jar = jar
	s.mu.Unlock()
	s.logger.Debug("Cookies loaded.", zap.Int("count", len(params)))
	return nil
}

// SaveCookies writes the browser's current cookies to network.cookie_file.
func (s *Session) SaveCookies(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.saveCookies(ctx)
}

func (s *Session) saveCookies(ctx context.Context) error {
	s.mu.Lock()
	jar := s.jar
	s.mu.Unlock()
	if jar == nil {
		var err error
		if jar, err = s.openJar(); err != nil {
			return err
		}
		s.mu.Lock()
		s.jar = jar
		s.mu.Unlock()
	}

	var cookies []*network.Cookie
	err := s.runActions(ctx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(c)
		return err
	}))
	if err != nil {
		return fmt.Errorf("failed to read browser cookies: %w", err)
	}

	for _, c := range cookies {
		u, hc := httpCookie(c)
		jar.SetCookies(u, []*http.Cookie{hc})
	}
	if err := jar.Save(); err != nil {
		return fmt.Errorf("failed to save cookie jar: %w", err)
	}
	s.logger.Debug("Cookies saved.", zap.Int("count", len(cookies)))
	return nil
}

func (s *Session) openJar() (*cookiejar.Jar, error) {
	if s.cfg.Network.CookieFile == "" {
		return nil, fmt.Errorf("network.cookie_file is not configured")
	}
	path, err := homedir.Expand(s.cfg.Network.CookieFile)
	if err != nil {
		return nil, fmt.Errorf("could not expand cookie file path: %w", err)
	}
	jar, err := cookiejar.New(&cookiejar.Options{
		Filename:              path,
		PersistSessionCookies: true,
	})
	if err != nil {
		return nil, fmt.Errorf("could not open cookie jar %s: %w", path, err)
	}
	return jar, nil
}

// storedCookie is the jar's persisted form of a cookie. Unlike AllCookies it
// keeps the host-only flag.
type storedCookie struct {
	Name       string
	Value      string
	Domain     string
	Path       string
	Secure     bool
	HttpOnly   bool
	Persistent bool
	HostOnly   bool
	Expires    time.Time
}

// jarCookies returns the unexpired cookies held by jar.
func jarCookies(jar *cookiejar.Jar, now time.Time) ([]storedCookie, error) {
	data, err := jar.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to read cookie jar: %w", err)
	}
	var all []storedCookie
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("failed to decode cookie jar: %w", err)
	}
	live := all[:0]
	for _, c := range all {
		if c.Expires.After(now) {
			live = append(live, c)
		}
	}
	return live, nil
}

// cookieParams converts jar cookies to CDP parameters. Host-only cookies are
// bound to their origin through URL so the browser does not widen them to
// subdomains.
func cookieParams(cookies []storedCookie) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		}
		if p.Path == "" {
			p.Path = "/"
		}
		if c.HostOnly {
			scheme := "http"
			if c.Secure {
				scheme = "https"
			}
			p.URL = (&url.URL{Scheme: scheme, Host: c.Domain, Path: "/"}).String()
		} else {
			p.Domain = c.Domain
		}
		if c.Persistent {
			t := cdp.TimeSinceEpoch(c.Expires)
			p.Expires = &t
		}
		params = append(params, p)
	}
	return params
}

// httpCookie converts a browser cookie into the URL and cookie the jar expects.
// Host-only cookies keep an empty Domain.
func httpCookie(c *network.Cookie) (*url.URL, *http.Cookie) {
	host := strings.TrimPrefix(c.Domain, ".")
	scheme := "http"
	if c.Secure {
		scheme = "https"
	}
	hc := &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Path,
		Secure:   c.Secure,
		HttpOnly: c.HTTPOnly,
	}
	if strings.HasPrefix(c.Domain, ".") {
		hc.Domain = host
	}
	if !c.Session && c.Expires > 0 {
		sec, frac := math.Modf(c.Expires)
		hc.Expires = time.Unix(int64(sec), int64(frac*1e9)).UTC()
	}
	switch c.SameSite {
	case network.CookieSameSiteLax:
		hc.SameSite = http.SameSiteLaxMode
	case network.CookieSameSiteStrict:
		hc.SameSite = http.SameSiteStrictMode
	case network.CookieSameSiteNone:
		hc.SameSite = http.SameSiteNoneMode
	}
	return &url.URL{Scheme: scheme, Host: host, Path: "/"}, hc
}
