package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/roach88/vaultsync/internal/awssm"
	"github.com/roach88/vaultsync/internal/config"
	"github.com/roach88/vaultsync/internal/engine"
	"github.com/roach88/vaultsync/internal/notify"
	"github.com/roach88/vaultsync/internal/store"
	"github.com/roach88/vaultsync/internal/vault"
)

// backend is a wired source, sink and optional notifier.
type backend struct {
	source   engine.Source
	sink     engine.Sink
	notifier engine.Notifier
	close    func() error
}

// awsClients builds the AWS-side dependencies of the aws backend.
type awsClients struct {
	loadConfig func(ctx context.Context, region string) (aws.Config, error)
	secrets    func(cfg aws.Config) awssm.API
	notifier   func(cfg aws.Config, topicARN string) engine.Notifier
	vault      vault.Connector
}

func defaultAWSClients() awsClients {
	return awsClients{
		loadConfig: func(ctx context.Context, region string) (aws.Config, error) {
			var opts []func(*awsconfig.LoadOptions) error
			if region != "" {
				opts = append(opts, awsconfig.WithRegion(region))
			}
			return awsconfig.LoadDefaultConfig(ctx, opts...)
		},
		secrets: func(cfg aws.Config) awssm.API { return secretsmanager.NewFromConfig(cfg) },
		notifier: func(cfg aws.Config, topicARN string) engine.Notifier {
			return notify.NewSNSFromConfig(cfg, topicARN)
		},
		vault: vault.Connect,
	}
}

// openBackend wires the configured backend. For AWS the Vault credential is
// read from Secrets Manager under the source connection locator on first
// use, so a missing or malformed credential fails the run's source listing.
func (o *RootOptions) openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	switch cfg.Backend {
	case config.BackendLocal:
		return openLocal(cfg, logger)
	case config.BackendAWS:
		clients := defaultAWSClients()
		if o.awsClients != nil {
			clients = *o.awsClients
		}
		return openAWS(ctx, cfg, clients)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func openLocal(cfg *config.Config, logger *slog.Logger) (*backend, error) {
	st, err := store.Open(cfg.SourceConnectionLocator)
	if err != nil {
		return nil, fmt.Errorf("open local backend %s: %w", cfg.SourceConnectionLocator, err)
	}
	b := &backend{source: st, sink: st, close: st.Close}
	if cfg.NotifyOnFailure {
		b.notifier = notify.NewLog(logger)
	}
	return b, nil
}

func openAWS(ctx context.Context, cfg *config.Config, clients awsClients) (*backend, error) {
	awsCfg, err := clients.loadConfig(ctx, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("load AWS configuration: %w", err)
	}

	var smOpts []awssm.Option
	if cfg.EncryptionKeyID != "" {
		smOpts = append(smOpts, awssm.WithKMSKey(cfg.EncryptionKeyID))
	}
	sink := awssm.New(clients.secrets(awsCfg), smOpts...)

	locator := cfg.SourceConnectionLocator
	source := vault.NewLazy(func(ctx context.Context) (string, error) {
		raw, err := sink.ReadValue(ctx, locator)
		if err != nil {
			return "", fmt.Errorf("read source connection credential: %w", err)
		}
		return raw, nil
	}, clients.vault)

	b := &backend{source: source, sink: sink, close: func() error { return nil }}
	if cfg.NotifyOnFailure {
		b.notifier = clients.notifier(awsCfg, cfg.NotificationChannelLocator)
	}
	return b, nil
}

// newEngine builds an engine over b with the CLI's options.
func (o *RootOptions) newEngine(b *backend, cfg *config.Config, logger *slog.Logger) *engine.Engine {
	opts := []engine.Option{
		engine.WithConcurrency(cfg.Concurrency),
		engine.WithLogger(logger),
	}
	if b.notifier != nil {
		opts = append(opts, engine.WithNotifier(b.notifier))
	}
	if o.RunIDs != nil {
		opts = append(opts, engine.WithRunIDGenerator(o.RunIDs))
	}
	return engine.New(b.source, b.sink, opts...)
}
