package transport

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/MrKhantee/andstatus/internal/debuglog"
)

// CallbackURI is sent as the redirect target during client registration.
// The OAuth flow is completed out-of-band, so the value only needs to be
// stable, not reachable.
const CallbackURI = "http://oauth-redirect.andstatus.org"

// ClientKeys is a dynamically registered OAuth client credential pair.
type ClientKeys struct {
	ConsumerKey    string `json:"client_id"`
	ConsumerSecret string `json:"client_secret"`
}

func (k ClientKeys) Present() bool {
	return k.ConsumerKey != "" && k.ConsumerSecret != ""
}

// RegisterClient performs the first-use client credential exchange against
// a pump.io-style registration endpoint.
func (c *Client) RegisterClient(ctx context.Context, path string) (ClientKeys, error) {
	const op = "register client"
	debuglog.Infof("registering client at %s%s", c.origin, path)

	form := url.Values{}
	form.Set("type", "client_associate")
	form.Set("application_type", "native")
	form.Set("redirect_uris", CallbackURI)
	form.Set("client_name", c.userAgent)
	form.Set("application_name", c.userAgent)

	var keys ClientKeys
	body, err := c.PostForm(ctx, path, form)
	if err != nil {
		return keys, err
	}
	if err := json.Unmarshal(body, &keys); err != nil {
		return keys, ParseError(op, string(body), err)
	}
	if !keys.Present() {
		return keys, newError(KindAuth, StatusNoCredentialsForHost, op,
			"no client keys for host %s yet", c.origin.Host)
	}
	return keys, nil
}
