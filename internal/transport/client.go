package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dghubble/oauth1"

	"github.com/MrKhantee/andstatus/internal/debuglog"
)

// Credentials carries everything needed to authenticate against one origin.
// The transport treats all of it as opaque.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string

	// Token/Secret are the stored user token pair. Empty means
	// unauthenticated calls only.
	Token  string
	Secret string

	// TokenOrigin is the URL of the host that issued the user token. When
	// a request goes to a different host, authorization switches to
	// dialback (see RFC draft-prodromou-dialback).
	TokenOrigin string
}

func (c Credentials) present() bool {
	return c.Token != "" && c.Secret != ""
}

func (c Credentials) tokenHost() string {
	u, err := url.Parse(c.TokenOrigin)
	if err != nil {
		return ""
	}
	return u.Host
}

// Options tunes a Client. Zero values fall back to the defaults below.
type Options struct {
	Timeout      time.Duration
	UserAgent    string
	MaxRedirects int
}

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxRedirects = 5
	defaultUserAgent    = "andstatus/1.0"
)

// Client executes signed HTTP calls against one origin.
type Client struct {
	origin       *url.URL
	creds        Credentials
	http         *http.Client
	userAgent    string
	maxRedirects int
}

func NewClient(originURL string, creds Credentials, opts Options) (*Client, error) {
	u, err := url.Parse(originURL)
	if err != nil {
		return nil, fmt.Errorf("parsing origin url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("origin url %q has no scheme or host", originURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = defaultMaxRedirects
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	return &Client{
		origin: u,
		creds:  creds,
		http: &http.Client{
			Timeout: opts.Timeout,
			// Redirects are followed manually so each hop can be
			// re-resolved and re-signed.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent:    opts.UserAgent,
		maxRedirects: opts.MaxRedirects,
	}, nil
}

// Origin returns the configured origin URL.
func (c *Client) Origin() *url.URL {
	return c.origin
}

// pathToURL resolves an API path against the origin; absolute URLs pass
// through untouched.
func (c *Client) pathToURL(path string) (*url.URL, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parsing path %q: %w", path, err)
	}
	return c.origin.ResolveReference(ref), nil
}

// GetObject performs a signed GET and returns the JSON object body.
func (c *Client) GetObject(ctx context.Context, path string) (json.RawMessage, error) {
	return c.get(ctx, path)
}

// GetItems performs a signed GET against a list endpoint. Twitter-style
// APIs answer with a bare array, pump.io wraps the array in an object's
// "items" field; both shapes are accepted.
func (c *Client) GetItems(ctx context.Context, path string) ([]json.RawMessage, error) {
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	return unwrapItems("GetItems", body)
}

func unwrapItems(op string, body json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, ParseError(op, string(body), err)
		}
		return items, nil
	}
	var wrapper struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, ParseError(op, string(body), err)
	}
	if wrapper.Items == nil {
		return nil, ParseError(op, string(body), fmt.Errorf("no items array in response"))
	}
	return wrapper.Items, nil
}

func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	const op = "get"
	u, err := c.pathToURL(path)
	if err != nil {
		return nil, &ConnError{Kind: KindIO, Op: op, Message: "bad path", Err: err}
	}

	redirected := false
	for hop := 0; hop <= c.maxRedirects; hop++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, IOError(op, err)
		}
		resp, err := c.send(req, redirected)
		if err != nil {
			return nil, IOError(op, err)
		}
		body, readErr := readBody(resp)
		if readErr != nil {
			return nil, IOError(op, readErr)
		}
		switch resp.StatusCode {
		case http.StatusOK:
			var obj json.RawMessage
			if err := json.Unmarshal([]byte(body), &obj); err != nil {
				return nil, ParseError(op, body, err)
			}
			return obj, nil
		case http.StatusMovedPermanently, http.StatusFound,
			http.StatusSeeOther, http.StatusTemporaryRedirect:
			loc := strings.ReplaceAll(resp.Header.Get("Location"), "%3F", "?")
			next, err := url.Parse(loc)
			if err != nil {
				return nil, &ConnError{Kind: KindIO, Code: StatusMoved, Op: op,
					Message: fmt.Sprintf("bad redirect location %q", loc), Err: err}
			}
			u = u.ResolveReference(next)
			redirected = true
			debuglog.Debugf("following redirect to %s", u)
		default:
			return nil, errorFromResponse(op+" "+u.Path, resp.StatusCode, body)
		}
	}
	return nil, newError(KindIO, StatusMoved, op, "more than %d redirects from %s", c.maxRedirects, path)
}

// PostObject performs a signed POST with a JSON body and returns the JSON
// object of the 200 response. Redirect statuses on POST are failures, as
// replaying the body blindly is never safe.
func (c *Client) PostObject(ctx context.Context, path string, body any) (json.RawMessage, error) {
	const op = "post"
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, &ConnError{Kind: KindParse, Op: op, Message: "encoding request body", Err: err}
		}
		reader = bytes.NewReader(encoded)
	}
	return c.post(ctx, op, path, "application/json", reader)
}

// PostParams performs a signed POST with url-encoded parameters, the shape
// Twitter-compatible endpoints expect.
func (c *Client) PostParams(ctx context.Context, path string, form url.Values) (json.RawMessage, error) {
	const op = "post params"
	return c.post(ctx, op, path, "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()))
}

// PostForm performs an unsigned POST with url-encoded parameters. Client
// registration happens before any credentials exist, so no signing.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values) (json.RawMessage, error) {
	const op = "post form"
	u, err := c.pathToURL(path)
	if err != nil {
		return nil, &ConnError{Kind: KindIO, Op: op, Message: "bad path", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(),
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, IOError(op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, IOError(op, err)
	}
	return c.finishPost(op, resp)
}

// PostMedia uploads a local media file as a multipart form. The part's
// content type is derived from the file name. The body is piped straight
// into the request, so an upload never holds the whole file in memory;
// with no known length the request goes out chunked.
func (c *Client) PostMedia(ctx context.Context, path string, fields map[string]string, mediaURI string) (json.RawMessage, error) {
	const op = "post media"
	file, err := openMedia(mediaURI)
	if err != nil {
		return nil, &ConnError{Kind: KindIO, Op: op, Message: "opening media", Err: err}
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		defer file.Close()
		if err := writeMediaForm(mw, fields, mediaURI, file); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()
	return c.post(ctx, op, path, mw.FormDataContentType(), pr)
}

func writeMediaForm(mw *multipart.Writer, fields map[string]string, mediaURI string, file io.Reader) error {
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	part, err := createMediaPart(mw, mediaURI)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, file)
	return err
}

func (c *Client) post(ctx context.Context, op, path, contentType string, body io.Reader) (json.RawMessage, error) {
	u, err := c.pathToURL(path)
	if err != nil {
		return nil, &ConnError{Kind: KindIO, Op: op, Message: "bad path", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), body)
	if err != nil {
		return nil, IOError(op, err)
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.send(req, false)
	if err != nil {
		return nil, IOError(op, err)
	}
	return c.finishPost(op+" "+u.Path, resp)
}

func (c *Client) finishPost(op string, resp *http.Response) (json.RawMessage, error) {
	body, err := readBody(resp)
	if err != nil {
		return nil, IOError(op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errorFromResponse(op, resp.StatusCode, body)
	}
	var obj json.RawMessage
	if err := json.Unmarshal([]byte(body), &obj); err != nil {
		return nil, ParseError(op, body, err)
	}
	return obj, nil
}

// Download fetches an arbitrary URL (attachment, avatar) into dst,
// following redirects without any signing.
func (c *Client) Download(ctx context.Context, rawURL string, dst io.Writer) error {
	const op = "download"
	u, err := url.Parse(rawURL)
	if err != nil {
		return &ConnError{Kind: KindIO, Op: op, Message: "bad url", Err: err}
	}
	for hop := 0; hop <= c.maxRedirects; hop++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return IOError(op, err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		resp, err := c.http.Do(req)
		if err != nil {
			return IOError(op, err)
		}
		switch resp.StatusCode {
		case http.StatusOK:
			_, err = io.Copy(dst, resp.Body)
			resp.Body.Close()
			if err != nil {
				return IOError(op, err)
			}
			return nil
		case http.StatusMovedPermanently, http.StatusFound,
			http.StatusSeeOther, http.StatusTemporaryRedirect:
			loc := resp.Header.Get("Location")
			resp.Body.Close()
			next, err := url.Parse(loc)
			if err != nil {
				return &ConnError{Kind: KindIO, Code: StatusMoved, Op: op,
					Message: fmt.Sprintf("bad redirect location %q", loc), Err: err}
			}
			u = u.ResolveReference(next)
		default:
			body, _ := readBody(resp)
			return errorFromResponse(op, resp.StatusCode, body)
		}
	}
	return newError(KindIO, StatusMoved, op, "more than %d redirects from %s", c.maxRedirects, rawURL)
}

// send applies authorization and executes one request without following
// redirects. Three authorization modes exist:
//   - same host as the token issuer: normal OAuth signature
//   - different host, first request: a Dialback authorization naming the
//     issuing host and the token, no signature
//   - different host after a redirect: OAuth signature with the user token
//     cleared, since the redirect target is a dialback-verifying peer, not
//     the issuing host
func (c *Client) send(req *http.Request, redirected bool) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)
	if !c.creds.present() {
		return c.http.Do(req)
	}
	tokenHost := c.creds.tokenHost()
	if tokenHost == "" || req.URL.Host == tokenHost {
		return c.signedDo(req, false)
	}
	if redirected {
		return c.signedDo(req, true)
	}
	req.Header.Set("Authorization",
		fmt.Sprintf("Dialback host=%q, token=%q", tokenHost, c.creds.Token))
	debuglog.Debugf("dialback authorization for %s; token host %s", req.URL.Host, tokenHost)
	return c.http.Do(req)
}

func (c *Client) signedDo(req *http.Request, emptyToken bool) (*http.Response, error) {
	cfg := oauth1.NewConfig(c.creds.ConsumerKey, c.creds.ConsumerSecret)
	token := oauth1.NewToken(c.creds.Token, c.creds.Secret)
	if emptyToken {
		token = oauth1.NewToken("", "")
	}
	signing := cfg.Client(context.Background(), token)
	signing.Timeout = c.http.Timeout
	signing.CheckRedirect = c.http.CheckRedirect
	return signing.Do(req)
}

func readBody(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}
	return string(data), nil
}

func openMedia(mediaURI string) (*os.File, error) {
	p := strings.TrimPrefix(mediaURI, "file://")
	return os.Open(p)
}

func createMediaPart(mw *multipart.Writer, mediaURI string) (io.Writer, error) {
	name := filepath.Base(strings.TrimPrefix(mediaURI, "file://"))
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := make(map[string][]string)
	header["Content-Disposition"] = []string{
		fmt.Sprintf(`form-data; name="media"; filename=%q`, name)}
	header["Content-Type"] = []string{contentType}
	return mw.CreatePart(header)
}
