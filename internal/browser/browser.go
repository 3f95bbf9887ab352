// Package browser defines the page rendering capability used by the scraper and implements it with headless Chrome.
//
// Selectors starting with "/" or "(" are treated as XPath, anything else as CSS.
// Lookups report absence with a false flag instead of an error so callers branch explicitly on optional page data.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Renderer opens rendering sessions.
type Renderer interface {
	Open(ctx context.Context) (Session, error)
}

// Session is one rendered page. A session is owned by a single caller and must be closed.
type Session interface {
	// Navigate loads url and waits for the document to load.
	Navigate(ctx context.Context, url string) error

	// FindText returns the rendered text of the first element matching selector.
	FindText(ctx context.Context, selector string) (string, bool)

	// FindAttribute returns attr of the first element matching selector.
	FindAttribute(ctx context.Context, selector, attr string) (string, bool)

	// WaitFor blocks until selector is visible or timeout elapses.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) bool

	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string) error

	// ScrollToFraction scrolls to fraction (0..1) of the document height.
	ScrollToFraction(ctx context.Context, fraction float64) error

	Close() error
}

// IsXPath reports whether selector is an XPath expression.
func IsXPath(selector string) bool {
	s := strings.TrimSpace(selector)
	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, "(")
}

// lookup is the shape returned by [lookupScript].
type lookup struct {
	Found bool   `json:"found"`
	Value string `json:"value"`
}

// lookupScript builds a JS expression resolving selector and reading either its text (attr == "") or an attribute.
func lookupScript(selector, attr string) string {
	sel, _ := json.Marshal(selector)

	var find string
	if IsXPath(selector) {
		find = fmt.Sprintf("document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue", sel)
	} else {
		find = fmt.Sprintf("document.querySelector(%s)", sel)
	}

	read := "(el.innerText || el.textContent || '')"
	if attr != "" {
		name, _ := json.Marshal(attr)
		read = fmt.Sprintf("el.getAttribute(%s)", name)
	}

	return fmt.Sprintf(`(() => {
	const el = %s;
	if (!el) { return {found: false, value: ""}; }
	const v = %s;
	return v === null ? {found: false, value: ""} : {found: true, value: String(v)};
})()`, find, read)
}

func scrollScript(fraction float64) string {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	return fmt.Sprintf("window.scrollTo(0, document.documentElement.scrollHeight * %g); true", fraction)
}
