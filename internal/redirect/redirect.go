// Package redirect launches shopper redirects and turns the return URL back into
// action details.
package redirect

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/apperr"
)

// Query parameters recognised in a return URL.
const (
	ParamPayload           = "payload"
	ParamRedirectResult    = "redirectResult"
	ParamPaRes             = "PaRes"
	ParamMD                = "MD"
	ParamReturnQueryString = "returnUrlQueryString"
)

// Launcher opens a redirect URL. Launch must not wait for the shopper to return;
// the return arrives later through HandleIntent on the owning delegate.
type Launcher interface {
	Launch(rawURL string) error
}

// ParseResult extracts the details object from a return URL. Known parameters are
// copied as they are; PaRes and MD are only taken as a pair. When none are present the
// whole encoded query is kept under returnUrlQueryString.
func ParseResult(u *url.URL) (map[string]any, error) {
	if u == nil {
		return nil, apperr.New(apperr.ErrRedirect, "parse redirect result", "received a nil redirect url")
	}
	query := u.Query()
	details := make(map[string]any)

	if v := query.Get(ParamPayload); v != "" {
		details[ParamPayload] = v
	}
	if v := query.Get(ParamRedirectResult); v != "" {
		details[ParamRedirectResult] = v
	}
	paRes, md := query.Get(ParamPaRes), query.Get(ParamMD)
	if paRes != "" && md != "" {
		details[ParamPaRes] = paRes
		details[ParamMD] = md
	}

	if len(details) == 0 && u.RawQuery != "" {
		details[ParamReturnQueryString] = u.RawQuery
	}
	if len(details) == 0 {
		return nil, apperr.New(apperr.ErrRedirect, "parse redirect result", "could not find any query parameters")
	}
	return details, nil
}

// HTTPLauncher follows a redirect URL over HTTP in the background and hands the
// first hop that lands on ReturnURL to OnReturn. It stands in for a browser when
// the checkout runs headless.
type HTTPLauncher struct {
	Client    *http.Client
	ReturnURL string
	OnReturn  func(*url.URL)
}

// Launch validates rawURL and starts following it without blocking.
func (l *HTTPLauncher) Launch(rawURL string) error {
	if rawURL == "" {
		return apperr.New(apperr.ErrRedirect, "launch redirect", "redirect url is empty")
	}
	if l.ReturnURL == "" {
		return apperr.New(apperr.ErrConfiguration, "launch redirect", "return url is not configured")
	}
	target, err := url.Parse(rawURL)
	if err != nil || target.Scheme == "" {
		return apperr.Wrap(apperr.ErrRedirect, "launch redirect", "invalid redirect url", err)
	}

	go l.follow(target.String())
	return nil
}

var errReturned = errors.New("reached return url")

func (l *HTTPLauncher) follow(rawURL string) {
	base := l.Client
	if base == nil {
		base = http.DefaultClient
	}
	var returned *url.URL
	client := *base
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if strings.HasPrefix(req.URL.String(), l.ReturnURL) {
			returned = req.URL
			return errReturned
		}
		if len(via) >= 10 {
			return errors.New("stopped after 10 redirects")
		}
		return nil
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, rawURL, nil)
	if err != nil {
		slog.Error("redirect_launch_failed", "error", err)
		return
	}
	resp, err := client.Do(req)
	if resp != nil {
		resp.Body.Close()
	}
	if returned == nil {
		slog.Warn("redirect_not_returned", "error", err)
		return
	}
	slog.Debug("redirect_returned", "host", returned.Host)
	if l.OnReturn != nil {
		l.OnReturn(returned)
	}
}
