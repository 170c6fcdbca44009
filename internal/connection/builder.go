package connection

import (
	"fmt"

	"github.com/MrKhantee/andstatus/internal/config"
	"github.com/MrKhantee/andstatus/internal/model"
	"github.com/MrKhantee/andstatus/internal/transport"
	"github.com/MrKhantee/andstatus/internal/validation"
)

// FromConfig builds one connection per configured account and registers
// each under its origin name. Origins without an account are skipped:
// there is nothing to authenticate as.
func FromConfig(cfg *config.Config) (*Registry, error) {
	registry := NewRegistry()
	for _, acc := range cfg.Accounts {
		origin, ok := cfg.Origin(acc.Origin)
		if !ok {
			return nil, fmt.Errorf("account %q references unknown origin %q", acc.Username, acc.Origin)
		}
		conn, err := build(origin, acc, cfg.HTTP)
		if err != nil {
			return nil, err
		}
		registry.Register(origin.Name, conn)
	}
	return registry, nil
}

func build(origin config.OriginConfig, acc config.AccountConfig, httpCfg config.HTTPConfig) (Connection, error) {
	originURL, err := validation.NewOriginURLValidator().ValidateAndNormalize(origin.URL)
	if err != nil {
		return nil, fmt.Errorf("origin %q: %w", origin.Name, err)
	}
	creds := transport.Credentials{
		ConsumerKey:    origin.ConsumerKey,
		ConsumerSecret: origin.ConsumerSecret,
		Token:          acc.Token,
		Secret:         acc.TokenSecret,
		TokenOrigin:    acc.TokenOrigin,
	}
	client, err := transport.NewClient(originURL, creds, transport.Options{
		Timeout:      httpCfg.Timeout,
		UserAgent:    httpCfg.UserAgent,
		MaxRedirects: httpCfg.MaxRedirects,
	})
	if err != nil {
		return nil, fmt.Errorf("building client for origin %q: %w", origin.Name, err)
	}
	accountActor := model.ActorFromOid(origin.Name, acc.ActorOid)
	accountActor.Username = acc.Username

	switch origin.Kind {
	case "twitter":
		return NewTwitterAPI(client, origin.Name, accountActor), nil
	case "gnusocial", "statusnet":
		return NewGnuSocial(client, origin.Name, accountActor), nil
	case "pumpio":
		return NewPumpIo(client, origin.Name, accountActor), nil
	default:
		return nil, fmt.Errorf("origin %q has unknown kind %q", origin.Name, origin.Kind)
	}
}
