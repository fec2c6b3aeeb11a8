// Package bootstrap turns a loaded Config into wired services.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/DOH-JDJ0303/waphl-data/internal/config"
	"github.com/DOH-JDJ0303/waphl-data/internal/domain"
	awsinfra "github.com/DOH-JDJ0303/waphl-data/internal/infra/aws"
	etcdinfra "github.com/DOH-JDJ0303/waphl-data/internal/infra/etcd"
	"github.com/DOH-JDJ0303/waphl-data/internal/infra/sqlite"
	"github.com/DOH-JDJ0303/waphl-data/internal/infra/terra"
	"github.com/DOH-JDJ0303/waphl-data/internal/usecase"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// TerraListerFactory builds the Terra API client for a pipeline.
type TerraListerFactory func(ctx context.Context, cfg *config.TerraConfig) (terra.SubmissionLister, error)

// Option overrides a collaborator App would otherwise create itself.
type Option func(*App)

// WithAWSClients uses clients instead of the default credential chain.
func WithAWSClients(clients *awsinfra.Clients) Option {
	return func(a *App) { a.awsClients = clients }
}

// WithEtcd uses an existing etcd client. App does not close it.
func WithEtcd(client *clientv3.Client) Option {
	return func(a *App) { a.etcd = client }
}

// WithDB uses an already bootstrapped SQLite handle. App does not close it.
func WithDB(db *sql.DB) Option {
	return func(a *App) { a.db = db }
}

// WithTerraLister replaces the authenticated FireCloud client.
func WithTerraLister(f TerraListerFactory) Option {
	return func(a *App) { a.terraLister = f }
}

// App holds the services built from one configuration.
type App struct {
	Config    *config.Config
	Pipelines *usecase.PipelineService
	// Tables is nil when no tables section is configured.
	Tables *usecase.TableService

	awsClients  *awsinfra.Clients
	etcd        *clientv3.Client
	db          *sql.DB
	terraLister TerraListerFactory
	logger      *slog.Logger
	closers     []func() error
}

// New wires every configured pipeline. Clients are created only when a
// pipeline needs them.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	a := &App{Config: cfg, logger: logger}
	a.terraLister = a.defaultTerraLister
	for _, opt := range opts {
		opt(a)
	}

	pipelines, err := a.buildPipelines(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	runs, err := a.runRepository(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	var locker domain.Locker
	if cfg.Overlap == "forbid" {
		client, err := a.etcdClient()
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("%w: overlap forbid: %v", domain.ErrConfiguration, err)
		}
		locker = etcdinfra.NewEtcdLocker(client)
	}
	a.Pipelines = usecase.NewPipelineService(pipelines, runs, locker, logger)

	if cfg.Tables != nil {
		if a.Tables, err = a.buildTables(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// Tasks returns every scheduled task: pipelines with a schedule and the
// table build.
func (a *App) Tasks() []domain.Task {
	tasks := a.Pipelines.Tasks()
	if a.Tables != nil {
		if t := a.Tables.Task(); t != nil {
			tasks = append(tasks, t)
		}
	}
	return tasks
}

// Etcd returns the etcd client, connecting on first use.
func (a *App) Etcd() (*clientv3.Client, error) {
	return a.etcdClient()
}

// Close releases the clients App created.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) aws(ctx context.Context) (*awsinfra.Clients, error) {
	if a.awsClients != nil {
		return a.awsClients, nil
	}
	awsCfg, err := awsinfra.LoadConfig(ctx, a.Config.AWSRegion)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	a.awsClients = awsinfra.NewClients(awsCfg)
	return a.awsClients, nil
}

func (a *App) etcdClient() (*clientv3.Client, error) {
	if a.etcd != nil {
		return a.etcd, nil
	}
	if len(a.Config.EtcdEndpoints) == 0 {
		return nil, fmt.Errorf("%w: etcd_endpoints not configured", domain.ErrConfiguration)
	}
	client, err := etcdinfra.NewClient(a.Config.EtcdEndpoints, a.Config.EtcdTimeout)
	if err != nil {
		return nil, err
	}
	a.etcd = client
	a.closers = append(a.closers, client.Close)
	return client, nil
}

func (a *App) sqliteDB(ctx context.Context) (*sql.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := sqlite.Open(ctx, a.Config.SQLitePath)
	if err != nil {
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, db.Close)
	return db, nil
}

func (a *App) runRepository(ctx context.Context) (domain.RunRepository, error) {
	switch a.Config.RunStore {
	case "sqlite":
		db, err := a.sqliteDB(ctx)
		if err != nil {
			return nil, err
		}
		return sqlite.NewRunRepository(db), nil
	case "etcd":
		client, err := a.etcdClient()
		if err != nil {
			return nil, err
		}
		return etcdinfra.NewEtcdRunRepository(client, a.logger), nil
	default:
		return nil, nil
	}
}

// defaultTerraLister authenticates with the service account key named by
// credentials_uri (s3:// or a local path), or the application default
// credentials when unset.
func (a *App) defaultTerraLister(ctx context.Context, cfg *config.TerraConfig) (terra.SubmissionLister, error) {
	var key []byte
	switch uri := cfg.CredentialsURI; {
	case uri == "":
	case strings.HasPrefix(uri, "s3://"):
		clients, err := a.aws(ctx)
		if err != nil {
			return nil, err
		}
		if key, err = awsinfra.NewObjects(clients.S3, a.logger).Read(ctx, uri); err != nil {
			return nil, fmt.Errorf("%w: terra credentials: %v", domain.ErrConfiguration, err)
		}
	default:
		var err error
		if key, err = os.ReadFile(uri); err != nil {
			return nil, fmt.Errorf("%w: terra credentials: %v", domain.ErrConfiguration, err)
		}
	}
	httpClient, err := terra.NewHTTPClient(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	return terra.NewClient(httpClient, cfg.APIURL), nil
}
