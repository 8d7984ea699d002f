package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Options are the fixed startup arguments of every browser process.
type Options struct {
	// Bin is the browser executable; empty means rod's lookup.
	Bin       string
	Headless  bool
	UserAgent string
	// Locale is passed as --lang and as the Accept-Language header.
	Locale string
	// NoSandbox is required in most containers.
	NoSandbox bool
}

// RodFactory launches rod-driven Chromium renderers.
// It implements pool.Factory[Renderer].
type RodFactory struct {
	opts Options
	log  logrus.FieldLogger
}

// NewRodFactory returns a factory that launches browsers with opts.
func NewRodFactory(opts Options, logger logrus.FieldLogger) *RodFactory {
	return &RodFactory{
		opts: opts,
		log:  logger.WithField("component", "browser"),
	}
}

// newLauncher builds the launcher for one browser process. Launchers can
// only launch once, so every renderer gets its own.
func (f *RodFactory) newLauncher() *launcher.Launcher {
	l := launcher.New().
		Headless(f.opts.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("disable-extensions").
		Set("mute-audio").
		Set("no-first-run")

	if f.opts.Bin != "" {
		l = l.Bin(f.opts.Bin)
	}
	if f.opts.NoSandbox {
		l = l.NoSandbox(true)
	}
	if f.opts.UserAgent != "" {
		l = l.Set("user-agent", f.opts.UserAgent)
	}
	if f.opts.Locale != "" {
		l = l.Set("lang", f.opts.Locale).Set("accept-lang", f.opts.Locale)
	}
	return l
}

// Create launches a browser process and opens the page the renderer drives.
func (f *RodFactory) Create(ctx context.Context) (Renderer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	log := f.log.WithField("renderer_id", id)

	// The process outlives ctx, so the launcher is not bound to it.
	l := f.newLauncher()
	controlURL, err := l.Launch()
	if err != nil {
		log.WithError(err).Error("Failed to launch browser")
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		l.Cleanup()
		return nil, fmt.Errorf("create page: %w", err)
	}

	if f.opts.UserAgent != "" || f.opts.Locale != "" {
		err = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      f.opts.UserAgent,
			AcceptLanguage: f.opts.Locale,
		})
		if err != nil {
			log.WithError(err).Warn("Failed to override user agent")
		}
	}

	log.Debug("Browser launched")
	return &rodRenderer{
		id:       id,
		launcher: l,
		browser:  browser,
		page:     page,
		doc:      page,
		log:      log,
	}, nil
}

// Validate checks that the renderer can still load a blank page.
func (f *RodFactory) Validate(ctx context.Context, r Renderer) error {
	return r.Reset(ctx)
}

// Destroy closes the browser and removes its profile directory.
func (f *RodFactory) Destroy(r Renderer) error {
	return r.Close()
}

type rodRenderer struct {
	id       string
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	// doc is the document HTML reads from: page, or a frame inside it.
	doc *rod.Page
	log logrus.FieldLogger
}

func (r *rodRenderer) ID() string {
	return r.id
}

func (r *rodRenderer) Navigate(ctx context.Context, url string) error {
	r.doc = r.page
	if err := r.page.Context(ctx).Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (r *rodRenderer) Wait(ctx context.Context, cond Condition, timeout time.Duration) error {
	page := r.page.Context(ctx).Timeout(timeout)

	var err error
	switch cond.Kind {
	case WaitNone:
		return nil
	case WaitMeta:
		_, err = page.Element(fmt.Sprintf(`meta[property=%q]`, cond.Value))
	case WaitFrame:
		err = r.switchToFrame(ctx, page, cond.Value)
	case WaitTitleChange:
		err = page.Wait(rod.Eval(`(placeholder) => document.title !== "" && document.title !== placeholder`, cond.Value))
	default:
		return fmt.Errorf("unsupported wait condition %s", cond)
	}
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s after %s", ErrWaitTimeout, cond, timeout)
	}
	return fmt.Errorf("wait for %s: %w", cond, err)
}

func (r *rodRenderer) switchToFrame(ctx context.Context, page *rod.Page, name string) error {
	el, err := page.Element(fmt.Sprintf(`iframe[name=%q], iframe#%s`, name, name))
	if err != nil {
		return err
	}
	frame, err := el.Frame()
	if err != nil {
		return err
	}
	if err := frame.WaitLoad(); err != nil {
		return err
	}
	r.doc = frame.Context(ctx)
	return nil
}

func (r *rodRenderer) HTML(ctx context.Context) (string, error) {
	html, err := r.doc.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("read page source: %w", err)
	}
	return html, nil
}

func (r *rodRenderer) Reset(ctx context.Context) error {
	r.doc = r.page
	if err := r.page.Context(ctx).Navigate("about:blank"); err != nil {
		return fmt.Errorf("reset renderer: %w", err)
	}
	return nil
}

func (r *rodRenderer) Close() error {
	err := r.browser.Close()
	r.launcher.Kill()
	r.launcher.Cleanup()
	if err != nil {
		r.log.WithError(err).Warn("Error closing browser")
		return fmt.Errorf("close browser: %w", err)
	}
	r.log.Debug("Browser closed")
	return nil
}
