package browser

import (
	"context"
	"encoding/json"
	"net/url"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillbox/pkg/logger"
)

// Session is a CDP connection to a single tab of a running browser.
//
// The tab is not closed when the session ends; it stays open for the next
// command to attach to.
type Session struct {
	Target Target
	tabCtx context.Context
}

// PageInfo is the location and title of a tab.
type PageInfo struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Attach connects to the most recent page tab, or to a new one when newTab is
// set or no page exists.
func (c *Client) Attach(ctx context.Context, newTab bool) (*Session, error) {
	version, err := c.Version(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "browser is not running; run `skillbox browser start` first")
	}

	var tab *Target
	if !newTab {
		tabs, err := c.Tabs(ctx)
		if err != nil {
			return nil, err
		}
		if len(tabs) > 0 {
			tab = &tabs[0]
		}
	}
	if tab == nil {
		if tab, err = c.NewTab(ctx, "about:blank"); err != nil {
			return nil, errors.Wrap(err, "failed to open a new tab")
		}
	}

	logger.G(ctx).WithField("target", tab.ID).WithField("url", tab.URL).Debug("attaching to tab")

	// Cancelling these contexts would close the tab, so they are detached
	// from the caller and left to die with the process.
	allocCtx, _ := chromedp.NewRemoteAllocator(context.WithoutCancel(ctx), version.WebSocketDebuggerURL)
	tabCtx, _ := chromedp.NewContext(allocCtx, chromedp.WithTargetID(target.ID(tab.ID)))

	return &Session{Target: *tab, tabCtx: tabCtx}, nil
}

// Run executes actions in the tab, returning early when ctx is done.
func (s *Session) Run(ctx context.Context, actions ...chromedp.Action) error {
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(s.tabCtx, actions...)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "browser command interrupted")
	}
}

// Navigate loads rawURL and returns where the tab ended up.
func (s *Session) Navigate(ctx context.Context, rawURL string) (*PageInfo, error) {
	var info PageInfo
	err := s.Run(ctx,
		chromedp.Navigate(rawURL),
		chromedp.Location(&info.URL),
		chromedp.Title(&info.Title),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to navigate to %s", rawURL)
	}
	return &info, nil
}

// Eval evaluates expression in the page, awaiting promises, and returns the
// JSON encoded result.
func (s *Session) Eval(ctx context.Context, expression string) (json.RawMessage, error) {
	var raw []byte
	err := s.Run(ctx, chromedp.Evaluate(expression, &raw, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true).WithReturnByValue(true)
	}))
	if err != nil {
		return nil, errors.Wrap(err, "evaluation failed")
	}
	return json.RawMessage(raw), nil
}

// Screenshot captures a PNG of the viewport, or of the whole page when full
// is set.
func (s *Session) Screenshot(ctx context.Context, full bool) ([]byte, error) {
	var buf []byte
	action := chromedp.CaptureScreenshot(&buf)
	if full {
		// Quality 100 keeps the output PNG.
		action = chromedp.FullScreenshot(&buf, 100)
	}
	if err := s.Run(ctx, action); err != nil {
		return nil, errors.Wrap(err, "failed to capture screenshot")
	}
	return buf, nil
}

// Content returns the outer HTML of the current document, navigating to
// rawURL first when given.
func (s *Session) Content(ctx context.Context, rawURL string) (string, *PageInfo, error) {
	var actions []chromedp.Action
	if rawURL != "" {
		actions = append(actions, chromedp.Navigate(rawURL))
	}

	var html string
	var info PageInfo
	actions = append(actions,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Location(&info.URL),
		chromedp.Title(&info.Title),
	)
	if err := s.Run(ctx, actions...); err != nil {
		return "", nil, errors.Wrap(err, "failed to read page content")
	}
	return html, &info, nil
}

// HTMLToMarkdown converts a page to markdown, resolving relative links against
// pageURL.
func HTMLToMarkdown(html, pageURL string) (string, error) {
	domain := ""
	if u, err := url.Parse(pageURL); err == nil && u.Host != "" {
		domain = u.Scheme + "://" + u.Host
	}

	converter := md.NewConverter(domain, true, nil)
	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", errors.Wrap(err, "failed to convert html to markdown")
	}
	return markdown, nil
}
