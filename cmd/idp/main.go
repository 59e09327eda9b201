package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-jose/go-jose/v4"
	"github.com/idpkit/idp/internal/notification"
	"github.com/idpkit/idp/internal/ssf"
	"github.com/idpkit/idp/internal/storage/mongodb"
	"github.com/idpkit/idp/internal/storage/postgres"
	"github.com/idpkit/idp/pkg/idp"
	"github.com/idpkit/idp/pkg/provider"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gopkg.in/yaml.v3"
)

type config struct {
	Issuer   string `yaml:"issuer"`
	Address  string `yaml:"address"`
	JWKSFile string `yaml:"jwks_file"`

	Scopes []string `yaml:"scopes"`

	FAPI struct {
		BaselineScope string `yaml:"baseline_scope"`
		AdvanceScope  string `yaml:"advance_scope"`
	} `yaml:"fapi"`

	Storage struct {
		// Backend is one of memory, mongodb or postgres.
		Backend  string `yaml:"backend"`
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"storage"`

	PAR struct {
		RequestLifetimeSecs int64 `yaml:"request_lifetime"`
	} `yaml:"par"`

	CIBA struct {
		PollingIntervalSecs int64 `yaml:"polling_interval"`
		RequestLifetimeSecs int64 `yaml:"request_lifetime"`
		UserCodeRequired    bool  `yaml:"user_code_required"`
	} `yaml:"ciba"`

	JARM struct {
		Enabled      bool   `yaml:"enabled"`
		SigningAlg   string `yaml:"signing_alg"`
		LifetimeSecs int64  `yaml:"lifetime"`
	} `yaml:"jarm"`

	AuthorizationDetailTypes []string `yaml:"authorization_detail_types"`

	CredentialIssuer *idp.CredentialIssuerMetadata `yaml:"credential_issuer"`

	EventReceivers []struct {
		Audience   string   `yaml:"audience"`
		Endpoint   string   `yaml:"endpoint"`
		AuthHeader string   `yaml:"auth_header"`
		EventTypes []string `yaml:"event_types"`
	} `yaml:"event_receivers"`

	// Clients are decoded through their json metadata names so the yaml uses
	// the same field names OAuth client registration does.
	Clients []map[string]any `yaml:"clients"`
}

func main() {
	configFile := flag.String("config", "config.yml", "path to the yaml configuration file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := loadConfig(*configFile)
	if err != nil {
		logger.Error("could not load the configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	jwks, err := loadJWKS(cfg.JWKSFile)
	if err != nil {
		logger.Error("could not load the jwks", slog.String("error", err.Error()))
		os.Exit(1)
	}

	opts, err := providerOptions(cfg, jwks, logger)
	if err != nil {
		logger.Error("could not set up the storage backend", slog.String("error", err.Error()))
		os.Exit(1)
	}

	p, err := provider.New(cfg.Issuer, jwks, opts...)
	if err != nil {
		logger.Error("could not create the provider", slog.String("error", err.Error()))
		os.Exit(1)
	}

	for _, raw := range cfg.Clients {
		client, err := decodeClient(raw)
		if err != nil {
			logger.Error("invalid client configuration", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := p.SaveClient(context.Background(), client); err != nil {
			logger.Error("could not register the client",
				slog.String("client_id", client.ID), slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	address := cfg.Address
	if address == "" {
		address = ":8080"
	}

	logger.Info("starting the authorization server",
		slog.String("issuer", cfg.Issuer), slog.String("address", address))
	if err := p.Run(address); err != nil {
		logger.Error("the server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func loadConfig(path string) (config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return config{}, err
	}

	var cfg config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return config{}, err
	}

	if cfg.Issuer == "" {
		return config{}, fmt.Errorf("the issuer is required")
	}

	return cfg, nil
}

func decodeClient(raw map[string]any) (*idp.ClientConfiguration, error) {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}

	var client idp.ClientConfiguration
	if err := json.Unmarshal(encoded, &client); err != nil {
		return nil, err
	}

	if client.ID == "" {
		return nil, fmt.Errorf("the client_id is required")
	}

	return &client, nil
}

func loadJWKS(path string) (jose.JSONWebKeySet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return jose.JSONWebKeySet{}, err
	}

	var jwks jose.JSONWebKeySet
	if err := json.Unmarshal(raw, &jwks); err != nil {
		return jose.JSONWebKeySet{}, err
	}

	if len(jwks.Keys) == 0 {
		return jose.JSONWebKeySet{}, fmt.Errorf("the jwks has no keys")
	}

	return jwks, nil
}

func providerOptions(
	cfg config,
	jwks jose.JSONWebKeySet,
	logger *slog.Logger,
) (
	[]provider.Option,
	error,
) {
	gateway := notification.NewGateway()
	gateway.Logger = logger

	opts := []provider.Option{
		provider.WithLogger(logger),
		provider.WithScopes(cfg.Scopes...),
		provider.WithClientNotifier(gateway),
	}

	if cfg.FAPI.BaselineScope != "" || cfg.FAPI.AdvanceScope != "" {
		opts = append(opts, provider.WithFAPIScopes(cfg.FAPI.BaselineScope, cfg.FAPI.AdvanceScope))
	}

	if cfg.PAR.RequestLifetimeSecs != 0 {
		opts = append(opts, provider.WithPARRequestLifetime(cfg.PAR.RequestLifetimeSecs))
	}

	if cfg.CIBA.PollingIntervalSecs != 0 {
		opts = append(opts, provider.WithCIBAPollingInterval(cfg.CIBA.PollingIntervalSecs))
	}
	if cfg.CIBA.RequestLifetimeSecs != 0 {
		opts = append(opts, provider.WithCIBARequestLifetime(cfg.CIBA.RequestLifetimeSecs))
	}
	if cfg.CIBA.UserCodeRequired {
		opts = append(opts, provider.WithBackchannelUserCodeRequired())
	}

	if cfg.JARM.Enabled {
		opts = append(opts, provider.WithJARM(
			jose.SignatureAlgorithm(cfg.JARM.SigningAlg), cfg.JARM.LifetimeSecs))
	}

	if len(cfg.AuthorizationDetailTypes) != 0 {
		opts = append(opts, provider.WithAuthorizationDetailTypes(cfg.AuthorizationDetailTypes...))
	}

	if cfg.CredentialIssuer != nil {
		opts = append(opts, provider.WithCredentialIssuer(*cfg.CredentialIssuer))
	}

	if len(cfg.EventReceivers) != 0 {
		var receivers []ssf.Receiver
		for _, r := range cfg.EventReceivers {
			var types []idp.SecurityEventType
			for _, t := range r.EventTypes {
				types = append(types, idp.SecurityEventType(t))
			}
			receivers = append(receivers, ssf.Receiver{
				Audience:            r.Audience,
				DeliveryEndpoint:    r.Endpoint,
				AuthorizationHeader: r.AuthHeader,
				EventTypes:          types,
			})
		}

		sigJWK, ok := signatureJWK(jwks)
		if !ok {
			return nil, fmt.Errorf("no signing key available for security events")
		}
		opts = append(opts, provider.WithEventTransmitter(
			ssf.NewTransmitter(cfg.Issuer, sigJWK, receivers...)))
	}

	storageOpts, err := storageOptions(cfg)
	if err != nil {
		return nil, err
	}

	return append(opts, storageOpts...), nil
}

func storageOptions(cfg config) ([]provider.Option, error) {
	switch cfg.Storage.Backend {
	case "", "memory":
		return nil, nil
	case "mongodb":
		client, err := mongo.Connect(context.Background(),
			options.Client().ApplyURI(cfg.Storage.URI))
		if err != nil {
			return nil, err
		}
		database := client.Database(cfg.Storage.Database)
		return []provider.Option{
			provider.WithServerStorage(mongodb.NewServerManager(database)),
			provider.WithClientStorage(mongodb.NewClientManager(database)),
			provider.WithAuthorizationRequestStorage(mongodb.NewAuthorizationRequestManager(database)),
			provider.WithBackchannelRequestStorage(mongodb.NewBackchannelRequestManager(database)),
			provider.WithCibaGrantStorage(mongodb.NewCibaGrantManager(database)),
		}, nil
	case "postgres":
		db, err := postgres.Open(cfg.Storage.URI)
		if err != nil {
			return nil, err
		}
		return []provider.Option{
			provider.WithServerStorage(postgres.NewServerManager(db)),
			provider.WithClientStorage(postgres.NewClientManager(db)),
			provider.WithAuthorizationRequestStorage(postgres.NewAuthorizationRequestManager(db)),
			provider.WithBackchannelRequestStorage(postgres.NewBackchannelRequestManager(db)),
			provider.WithCibaGrantStorage(postgres.NewCibaGrantManager(db)),
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func signatureJWK(jwks jose.JSONWebKeySet) (jose.JSONWebKey, bool) {
	for _, jwk := range jwks.Keys {
		if jwk.Use == "sig" {
			return jwk, true
		}
	}
	return jose.JSONWebKey{}, false
}
