package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"jetpreview/internal/browser"
	"jetpreview/internal/domain"
	"jetpreview/internal/metrics"
	"jetpreview/internal/opengraph"
	"jetpreview/internal/pool"
)

// Options bounds the dispatcher's render path.
type Options struct {
	// BorrowTimeout is how long to wait for a free renderer.
	BorrowTimeout time.Duration
	// WaitTimeout bounds a strategy's wait condition.
	WaitTimeout time.Duration
	// ResetTimeout bounds the reset attempted after a cancelled render.
	ResetTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.BorrowTimeout <= 0 {
		o.BorrowTimeout = 5 * time.Second
	}
	if o.WaitTimeout <= 0 {
		o.WaitTimeout = 10 * time.Second
	}
	if o.ResetTimeout <= 0 {
		o.ResetTimeout = 3 * time.Second
	}
	return o
}

// Dispatcher routes each URL to the first matching strategy and runs it.
type Dispatcher struct {
	registry  *Registry
	renderers *pool.Pool[browser.Renderer]
	fetcher   PageFetcher
	opts      Options
	log       logrus.FieldLogger
}

// NewDispatcher creates a Dispatcher. When renderers is nil, render
// strategies degrade to a plain fetch.
func NewDispatcher(registry *Registry, renderers *pool.Pool[browser.Renderer], fetcher PageFetcher, opts Options, logger logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{
		registry:  registry,
		renderers: renderers,
		fetcher:   fetcher,
		opts:      opts.withDefaults(),
		log:       logger.WithField("component", "dispatcher"),
	}
}

// Extract resolves url with the strategy selected for it.
func (d *Dispatcher) Extract(ctx context.Context, url string) (domain.Metadata, error) {
	s := d.registry.Select(url)
	log := d.log.WithFields(logrus.Fields{
		"url":      url,
		"strategy": s.Name,
		"mode":     s.Mode.String(),
	})
	log.Debug("Extracting metadata")

	start := time.Now()
	var (
		md  domain.Metadata
		err error
	)
	switch s.Mode {
	case ModeAPI:
		md, err = s.Call(ctx, url)
		if err != nil {
			err = &Error{Kind: ErrAPI, Strategy: s.Name, URL: url, Err: err}
		}
	case ModeRender:
		if d.renderers == nil {
			md, err = d.fetch(ctx, s, url)
		} else {
			md, err = d.render(ctx, s, url)
		}
	default:
		md, err = d.fetch(ctx, s, url)
	}

	elapsed := time.Since(start)
	if err != nil {
		metrics.ObserveExtraction(s.Name, "error", elapsed)
		log.WithError(err).Warn("Extraction failed")
		return domain.Metadata{}, err
	}
	metrics.ObserveExtraction(s.Name, "success", elapsed)
	log.WithFields(logrus.Fields{
		"duration": elapsed,
		"empty":    md.IsEmpty(),
	}).Info("Extraction finished")
	return md, nil
}

func (d *Dispatcher) fetch(ctx context.Context, s Strategy, url string) (domain.Metadata, error) {
	html, err := d.fetcher.Fetch(ctx, s.target(url))
	if err != nil {
		return domain.Metadata{}, &Error{Kind: ErrFetch, Strategy: s.Name, URL: url, Err: err}
	}
	return opengraph.Parse(html), nil
}

// render runs s on a pooled renderer. Exactly one of Return or Invalidate
// runs on every exit path; a panic invalidates the renderer and propagates.
func (d *Dispatcher) render(ctx context.Context, s Strategy, url string) (domain.Metadata, error) {
	lease, err := d.renderers.Borrow(ctx, d.opts.BorrowTimeout)
	if err != nil {
		return domain.Metadata{}, &Error{Kind: ErrRender, Strategy: s.Name, URL: url, Err: err}
	}

	release := d.renderers.Invalidate
	defer func() {
		if r := recover(); r != nil {
			d.renderers.Invalidate(lease)
			panic(r)
		}
		release(lease)
	}()

	html, reusable, err := d.renderPage(ctx, lease.Value(), s, s.target(url))
	if reusable {
		release = d.renderers.Return
	}
	if err != nil {
		return domain.Metadata{}, &Error{Kind: ErrRender, Strategy: s.Name, URL: url, Err: err}
	}
	return opengraph.Parse(html), nil
}

// renderPage reports whether r may go back to the pool alongside the page
// source.
func (d *Dispatcher) renderPage(ctx context.Context, r browser.Renderer, s Strategy, target string) (string, bool, error) {
	if err := r.Navigate(ctx, target); err != nil {
		return "", d.recoverable(ctx, r), err
	}

	if s.Wait.Kind != browser.WaitNone {
		err := r.Wait(ctx, s.Wait, d.opts.WaitTimeout)
		switch {
		case err == nil:
		case errors.Is(err, browser.ErrWaitTimeout):
			d.log.WithFields(logrus.Fields{
				"url":       target,
				"condition": s.Wait.String(),
			}).Info("Wait condition not met, reading partial page")
		default:
			return "", d.recoverable(ctx, r), err
		}
	}

	html, err := r.HTML(ctx)
	if err != nil {
		return "", d.recoverable(ctx, r), err
	}
	return html, true, nil
}

// recoverable decides the fate of a renderer after a failed step. Only a
// caller cancellation leaves it worth keeping, and only if it resets.
func (d *Dispatcher) recoverable(ctx context.Context, r browser.Renderer) bool {
	if ctx.Err() == nil {
		return false
	}
	resetCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.opts.ResetTimeout)
	defer cancel()
	if err := r.Reset(resetCtx); err != nil {
		d.log.WithError(err).WithField("renderer_id", r.ID()).Warn("Reset after cancellation failed")
		return false
	}
	return true
}
