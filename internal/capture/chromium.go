package capture

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	appLog "dayplan/internal/log"
)

// Default capture parameters. The preview size matches the reMarkable 2
// panel; the paper size matches the rendered document's @page rule.
const (
	DefaultPreviewWidth = 1404
	DefaultPaperWidth   = 5.3
	DefaultPaperHeight  = 7.0
	DefaultTimeoutSec   = 60

	cssPixelsPerInch = 96
	readySelector    = `[data-ready="true"]`
	firstPage        = `section.page`
)

// Options configures the headless browser.
type Options struct {
	// ExecPath overrides the Chromium binary lookup.
	ExecPath string
	// NoSandbox is needed when running as root inside containers.
	NoSandbox bool

	// PaperWidth and PaperHeight are in inches.
	PaperWidth  float64
	PaperHeight float64

	// PreviewWidth is the PNG width in pixels; the height follows the
	// paper's aspect ratio.
	PreviewWidth int

	// Timeout bounds a single capture, browser start included.
	Timeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.PaperWidth <= 0 {
		o.PaperWidth = DefaultPaperWidth
	}
	if o.PaperHeight <= 0 {
		o.PaperHeight = DefaultPaperHeight
	}
	if o.PreviewWidth <= 0 {
		o.PreviewWidth = DefaultPreviewWidth
	}
	if o.Timeout <= 0 {
		o.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}
	return o
}

// PrintPDF loads html into a fresh headless Chromium tab, waits for the
// document to signal readiness via data-ready="true" and prints it at the
// configured paper size with zero margins.
func PrintPDF(parent context.Context, html []byte, opts Options) ([]byte, error) {
	if len(html) == 0 {
		return nil, errors.New("capture: html is empty")
	}
	opts = opts.withDefaults()

	ctx, cancel := newBrowser(parent, opts)
	defer cancel()

	var pdf []byte
	err := chromedp.Run(ctx,
		loadHTML(html),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(opts.PaperWidth).
				WithPaperHeight(opts.PaperHeight).
				WithMarginTop(0).
				WithMarginBottom(0).
				WithMarginLeft(0).
				WithMarginRight(0).
				WithPreferCSSPageSize(true).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = data
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("capture: print pdf: %w", err)
	}

	appLog.Debug("pdf printed", "bytes", len(pdf))
	return pdf, nil
}

// ScreenshotPNG renders the first page of html as a PNG scaled to the
// preview width.
func ScreenshotPNG(parent context.Context, html []byte, opts Options) ([]byte, error) {
	if len(html) == 0 {
		return nil, errors.New("capture: html is empty")
	}
	opts = opts.withDefaults()

	ctx, cancel := newBrowser(parent, opts)
	defer cancel()

	cssWidth, cssHeight, scale := viewport(opts)

	var png []byte
	err := chromedp.Run(ctx,
		chromedp.EmulateViewport(cssWidth, cssHeight),
		loadHTML(html),
		// Let web fonts settle before the final paint.
		chromedp.Sleep(300*time.Millisecond),
		chromedp.ScreenshotScale(firstPage, scale, &png, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("capture: screenshot: %w", err)
	}

	appLog.Debug("preview captured", "bytes", len(png), "width", opts.PreviewWidth)
	return png, nil
}

// viewport returns the CSS viewport holding one page and the scale that
// maps it onto the preview width.
func viewport(opts Options) (width, height int64, scale float64) {
	width = int64(math.Ceil(opts.PaperWidth * cssPixelsPerInch))
	height = int64(math.Ceil(opts.PaperHeight * cssPixelsPerInch))
	scale = float64(opts.PreviewWidth) / (opts.PaperWidth * cssPixelsPerInch)
	return width, height, scale
}

func newBrowser(parent context.Context, opts Options) (context.Context, context.CancelFunc) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("font-render-hinting", "none"),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.NoSandbox {
		allocOpts = append(allocOpts, chromedp.NoSandbox)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocOpts...)
	ctx, ctxCancel := chromedp.NewContext(allocCtx)
	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)

	return ctx, func() {
		timeoutCancel()
		ctxCancel()
		allocCancel()
	}
}

// loadHTML replaces the blank tab's document with html and waits for the
// ready marker.
func loadHTML(html []byte) chromedp.Action {
	return chromedp.Tasks{
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, string(html)).Do(ctx)
		}),
		chromedp.WaitVisible(readySelector, chromedp.ByQuery),
	}
}
