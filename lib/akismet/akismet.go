// Package akismet implements a client for the Akismet anti-spam web service.
//
// The Client sends comment metadata as form-encoded POST requests and turns the plain-text
// responses into boolean verdicts. Transport failures are never returned as errors. Instead
// each call maps them to a verdict, and the two families of calls fail in opposite directions:
//
//   - VerifyKey fails closed: a failed request means the key is not verified.
//   - CommentCheck, SubmitSpam and SubmitHam fail open toward spam: a failed request yields
//     a spam verdict, so an outage does not let spam through silently.
//
// Empty responses are permissive in both families, but with different polarity: an empty
// verify-key response means the key is valid, an empty comment-check response means ham.
// Both asymmetries are part of the API contract and must not be unified.
//
// Every call returns a Result with its own verdict and HTTP status. The client also keeps the
// status of the most recent call and the last verify-key outcome (LastStatus, IsVerifiedKey).
// Those shared values are last-writer-wins if one Client is used from several goroutines.
package akismet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/umputun/akismet/lib/spamcheck"
)

//go:generate moq --out mocks/http_client.go --pkg mocks --skip-ensure --with-resets . HTTPClient

// UserAgent identifies the client to the Akismet API, sent with every request.
const UserAgent = "akismet-go/1.0"

// Comment types known to Akismet. Any other value, e.g. "registration", is allowed as well.
const (
	TypeBlank     = ""
	TypeComment   = "comment"
	TypeTrackback = "trackback"
	TypePingback  = "pingback"
)

// api endpoints
const (
	apiScheme  = "http"
	apiHost    = "rest.akismet.com"
	apiVersion = "1.1"
)

// api functions
const (
	methodVerify     = "verify-key"
	methodCheck      = "comment-check"
	methodSubmitSpam = "submit-spam"
	methodSubmitHam  = "submit-ham"
)

// form parameters
const (
	paramKey         = "key"
	paramBlog        = "blog"
	paramUserIP      = "user_ip"
	paramUserAgent   = "user_agent"
	paramReferrer    = "referrer"
	paramPermalink   = "permalink"
	paramType        = "comment_type"
	paramAuthor      = "comment_author"
	paramAuthorEmail = "comment_author_email"
	paramAuthorURL   = "comment_author_url"
	paramContent     = "comment_content"
)

const (
	responseValid = "valid"
	responseHam   = "false"

	headerDebugHelp = "X-Akismet-Debug-Help"
	contentType     = "application/x-www-form-urlencoded; charset=utf-8"
)

var (
	// ErrInvalidConfig is returned for a missing key or blog, or bad proxy settings.
	ErrInvalidConfig = errors.New("invalid akismet config")
	// ErrCustomClient is returned when proxy settings are applied to a caller-provided HTTPClient.
	ErrCustomClient = errors.New("proxy can't be set with custom http client")
)

// HTTPClient is an interface for http client, satisfied by http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the Akismet API on behalf of a single key and blog.
// Proxy and http client settings must be applied before the first call.
type Client struct {
	key  string
	blog string

	httpClient HTTPClient
	owned      *http.Client // nil if the caller provided its own HTTPClient

	proxy struct {
		host     string
		port     int
		user     string
		password string
	}

	lastStatus atomic.Int64
	verified   atomic.Bool
}

// Result is the outcome of a single API call.
type Result struct {
	Call    string // api function, i.e. "verify-key" or "comment-check"
	Verdict bool   // key valid for verify-key, spam for comment calls
	Status  int    // http status code, 0 if no response received
	Body    string // trimmed response body
	Hint    string // X-Akismet-Debug-Help header, if any
	Error   error  // transport failure, already reflected in Verdict
}

// New makes a Client for the given API key and blog URL. Both are required.
func New(key, blog string) (*Client, error) {
	var errs error
	if key == "" {
		errs = multierror.Append(errs, fmt.Errorf("%w: empty api key", ErrInvalidConfig))
	}
	if blog == "" {
		errs = multierror.Append(errs, fmt.Errorf("%w: empty blog", ErrInvalidConfig))
	}
	if errs != nil {
		return nil, errs
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil // explicit proxy only, see SetProxy
	owned := &http.Client{Transport: transport}
	return &Client{key: key, blog: blog, httpClient: owned, owned: owned}, nil
}

// WithHTTPClient replaces the default http client. Proxy settings are not available after that.
func (c *Client) WithHTTPClient(hc HTTPClient) *Client {
	if hc == nil {
		return c
	}
	c.httpClient = hc
	c.owned = nil
	return c
}

// WithTimeout sets the timeout of the default http client. No timeout is set by default.
func (c *Client) WithTimeout(d time.Duration) *Client {
	if c.owned != nil {
		c.owned.Timeout = d
	}
	return c
}

// SetProxy routes all subsequent requests through http proxy at host:port.
func (c *Client) SetProxy(host string, port int) error {
	if c.owned == nil {
		return ErrCustomClient
	}
	if host == "" {
		return fmt.Errorf("%w: empty proxy host", ErrInvalidConfig)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("%w: proxy port %d out of range", ErrInvalidConfig, port)
	}
	c.proxy.host, c.proxy.port = host, port
	c.applyProxy()
	log.Printf("[DEBUG] akismet proxy set to %s", net.JoinHostPort(host, strconv.Itoa(port)))
	return nil
}

// SetProxyAuth sets proxy credentials. Can be called before or after SetProxy.
func (c *Client) SetProxyAuth(user, password string) error {
	if c.owned == nil {
		return ErrCustomClient
	}
	c.proxy.user, c.proxy.password = user, password
	c.applyProxy()
	return nil
}

func (c *Client) applyProxy() {
	if c.proxy.host == "" {
		return
	}
	u := &url.URL{Scheme: "http", Host: net.JoinHostPort(c.proxy.host, strconv.Itoa(c.proxy.port))}
	if c.proxy.user != "" || c.proxy.password != "" {
		u.User = url.UserPassword(c.proxy.user, c.proxy.password)
	}
	c.owned.Transport.(*http.Transport).Proxy = http.ProxyURL(u)
}

// VerifyKey checks the API key and blog with Akismet. The key is verified if the response is
// "valid" or empty. Any other response, as well as a failed request, means not verified.
// The outcome is kept and reported by IsVerifiedKey.
func (c *Client) VerifyKey(ctx context.Context) Result {
	params := url.Values{}
	params.Set(paramKey, c.key)
	params.Set(paramBlog, c.blog)

	res := c.call(ctx, methodVerify, endpoint("", methodVerify), params)
	res.Verdict = res.Error == nil && (res.Body == "" || res.Body == responseValid)
	c.verified.Store(res.Verdict)
	if !res.Verdict && res.Error == nil {
		log.Printf("[WARN] akismet key not verified, response %q%s", res.Body, hintSuffix(res.Hint))
	}
	return res
}

// CommentCheck asks Akismet whether the comment is spam, Verdict true means spam.
// A failed request is reported as spam, an empty response as ham.
func (c *Client) CommentCheck(ctx context.Context, cm Comment) Result {
	return c.callFunction(ctx, methodCheck, cm)
}

// SubmitSpam reports a comment Akismet missed. The verdict has no meaning for reports,
// only Status and Error are informative.
func (c *Client) SubmitSpam(ctx context.Context, cm Comment) Result {
	return c.callFunction(ctx, methodSubmitSpam, cm)
}

// SubmitHam reports a comment incorrectly marked as spam. The verdict has no meaning for
// reports, only Status and Error are informative.
func (c *Client) SubmitHam(ctx context.Context, cm Comment) Result {
	return c.callFunction(ctx, methodSubmitHam, cm)
}

// LastStatus returns the http status of the most recent call, 0 if it got no response.
func (c *Client) LastStatus() int {
	return int(c.lastStatus.Load())
}

// IsVerifiedKey returns the outcome of the last VerifyKey call, false if never called.
func (c *Client) IsVerifiedKey() bool {
	return c.verified.Load()
}

// callFunction sends comment to one of the key-qualified functions.
// Everything except an empty or "false" response is spam, and so is a failed request.
func (c *Client) callFunction(ctx context.Context, function string, cm Comment) Result {
	res := c.call(ctx, function, endpoint(c.key, function), cm.values(c.blog))
	res.Verdict = res.Error != nil || (res.Body != "" && res.Body != responseHam)
	return res
}

// call posts form params to the endpoint and reads the response.
// It records the status code on the client, whatever the outcome.
func (c *Client) call(ctx context.Context, function, reqURL string, params url.Values) (res Result) {
	res = Result{Call: function}
	defer func() { c.lastStatus.Store(int64(res.Status)) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(params.Encode()))
	if err != nil {
		res.Error = fmt.Errorf("failed to make request %s: %w", function, err)
		log.Printf("[WARN] akismet %v", res.Error)
		return res
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		res.Error = fmt.Errorf("failed to send request %s: %w", function, err)
		log.Printf("[WARN] akismet %v", res.Error)
		return res
	}
	defer resp.Body.Close()

	res.Status = resp.StatusCode
	res.Hint = resp.Header.Get(headerDebugHelp)
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		res.Error = fmt.Errorf("failed to read response %s: %w", function, err)
		log.Printf("[WARN] akismet %v", res.Error)
		return res
	}
	res.Body = strings.TrimSpace(string(body))
	log.Printf("[DEBUG] akismet %s response: %q, status: %d%s", function, res.Body, res.Status, hintSuffix(res.Hint))
	return res
}

// Response converts the result to the shared check response, named after the api call.
// Only comment-check reports spam, verify-key and submit outcomes go to Details.
func (r Result) Response() spamcheck.Response {
	details := r.Body
	if r.Error != nil {
		details = r.Error.Error()
	}
	if details == "" {
		details = "empty response"
	}

	switch r.Call {
	case methodVerify:
		if r.Verdict {
			details = "key valid, " + details
		} else {
			details = "key not verified, " + details
		}
	case methodSubmitSpam, methodSubmitHam:
		if r.Error == nil {
			details = "reported, " + details
		}
	}

	return spamcheck.Response{
		Name:    "akismet/" + r.Call,
		Spam:    r.Call == methodCheck && r.Verdict,
		Status:  r.Status,
		Details: details + hintSuffix(r.Hint),
		Error:   r.Error,
	}
}

// endpoint returns api url for the function, the host is qualified with the key if set.
func endpoint(key, function string) string {
	host := apiHost
	if key != "" {
		host = key + "." + apiHost
	}
	u := url.URL{Scheme: apiScheme, Host: host, Path: "/" + apiVersion + "/" + function}
	return u.String()
}

func hintSuffix(hint string) string {
	if hint == "" {
		return ""
	}
	return " (" + hint + ")"
}
