package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/DOH-JDJ0303/waphl-data/internal/config"
	"github.com/DOH-JDJ0303/waphl-data/internal/detector"
	"github.com/DOH-JDJ0303/waphl-data/internal/domain"
	awsinfra "github.com/DOH-JDJ0303/waphl-data/internal/infra/aws"
	etcdinfra "github.com/DOH-JDJ0303/waphl-data/internal/infra/etcd"
	httpinfra "github.com/DOH-JDJ0303/waphl-data/internal/infra/http"
	"github.com/DOH-JDJ0303/waphl-data/internal/infra/manifest"
	"github.com/DOH-JDJ0303/waphl-data/internal/infra/shell"
	"github.com/DOH-JDJ0303/waphl-data/internal/infra/sqlite"
	"github.com/DOH-JDJ0303/waphl-data/internal/infra/terra"
	"github.com/DOH-JDJ0303/waphl-data/internal/usecase"
)

// Defaults applied per pipeline kind when the config leaves them empty.
var (
	terraCachePrefix = "cache/terra/${project}/${workspace}/"
	terraJobName     = "${project}_${workspace}_${id}"
	terraEnv         = []config.EnvVar{
		{Name: "TERRA_PROJECT", Attr: "project"},
		{Name: "TERRA_WORKSPACE", Attr: "workspace"},
		{Name: "TERRA_SUBMISSIONID", Attr: "id"},
		{Name: "TERRA_WORKFLOW", Attr: "workflow"},
		{Name: "TERRA_SUBMISSIONENTITY", Attr: "entity_type"},
	}
	manifestJobName = "${workflow}_${run_name}"
	manifestEnv     = []config.EnvVar{
		{Name: "WORKFLOW", Attr: "workflow"},
		{Name: "RUN", Attr: "run_uri"},
	}
)

// scope carries the per-pipeline values substituted into cache prefixes.
type scope map[string]string

func (s scope) expand(tmpl string) string {
	for k, v := range s {
		tmpl = strings.ReplaceAll(tmpl, "${"+k+"}", v)
	}
	return tmpl
}

func (a *App) buildPipelines(ctx context.Context) ([]*usecase.Pipeline, error) {
	var out []*usecase.Pipeline
	for i := range a.Config.Pipelines {
		pc := &a.Config.Pipelines[i]
		var (
			built []*usecase.Pipeline
			err   error
		)
		switch pc.Kind {
		case "terra":
			built, err = a.terraPipelines(ctx, pc)
		case "fastq":
			built, err = a.fastqPipeline(ctx, pc)
		case "manifest":
			built, err = a.manifestPipeline(ctx, pc)
		default:
			err = fmt.Errorf("%w: unknown pipeline kind %q", domain.ErrConfiguration, pc.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: %w", pc.Name, err)
		}
		out = append(out, built...)
	}
	return out, nil
}

func (a *App) terraPipelines(ctx context.Context, pc *config.PipelineConfig) ([]*usecase.Pipeline, error) {
	lister, err := a.terraLister(ctx, pc.Terra)
	if err != nil {
		return nil, err
	}
	opts, err := detectorOptions(pc)
	if err != nil {
		return nil, err
	}
	if pc.Terra.Latest() {
		opts.Selector = detector.MostRecentPerEntity{
			Entity: "entity_type",
			Time:   detector.Timestamp{Attr: "submission_date", Layout: terra.DateLayout},
		}
	}
	if opts.Order == detector.OrderNewest {
		opts.OrderTime = detector.Timestamp{Attr: "submission_date", Layout: terra.DateLayout}
	}

	dispatch, err := a.dispatcher(ctx, pc.Dispatch, terraJobName, terraEnv)
	if err != nil {
		return nil, err
	}

	pipelines := make([]*usecase.Pipeline, 0, len(pc.Terra.Workspaces))
	for _, ws := range pc.Terra.Workspaces {
		name := pc.Name + "/" + ws
		known, err := a.knownStore(ctx, name, pc.Cache, terraCachePrefix, scope{
			"project":   pc.Terra.Project,
			"workspace": ws,
		})
		if err != nil {
			return nil, err
		}
		pipelines = append(pipelines, &usecase.Pipeline{
			Name:     name,
			Kind:     pc.Kind,
			Schedule: pc.Schedule,
			Source: terra.NewSubmissionSource(lister, terra.SourceOptions{
				Project:     pc.Terra.Project,
				Workspace:   ws,
				Window:      pc.Terra.Window,
				ExcludeSets: pc.Terra.ExcludeSets,
			}, a.logger),
			Known:    known,
			Dispatch: dispatch,
			Options:  opts,
		})
	}
	return pipelines, nil
}

func (a *App) fastqPipeline(ctx context.Context, pc *config.PipelineConfig) ([]*usecase.Pipeline, error) {
	clients, err := a.aws(ctx)
	if err != nil {
		return nil, err
	}
	opts, err := detectorOptions(pc)
	if err != nil {
		return nil, err
	}
	known, err := a.knownStore(ctx, pc.Name, pc.Cache, "", nil)
	if err != nil {
		return nil, err
	}
	dispatch, err := a.dispatcher(ctx, pc.Dispatch, "", nil)
	if err != nil {
		return nil, err
	}
	return []*usecase.Pipeline{{
		Name:     pc.Name,
		Kind:     pc.Kind,
		Schedule: pc.Schedule,
		Source:   awsinfra.NewFastqSource(clients.S3, pc.Fastq.SourceBucket, pc.Fastq.TableKey, pc.Fastq.Window, a.logger),
		Known:    known,
		Dispatch: dispatch,
		Options:  opts,
	}}, nil
}

func (a *App) manifestPipeline(ctx context.Context, pc *config.PipelineConfig) ([]*usecase.Pipeline, error) {
	opts, err := detectorOptions(pc)
	if err != nil {
		return nil, err
	}
	var checker manifest.ExistenceChecker
	if pc.Manifest.CheckExists {
		clients, err := a.aws(ctx)
		if err != nil {
			return nil, err
		}
		checker = awsinfra.NewObjects(clients.S3, a.logger)
	}
	known, err := a.knownStore(ctx, pc.Name, pc.Cache, "", nil)
	if err != nil {
		return nil, err
	}
	dispatch, err := a.dispatcher(ctx, pc.Dispatch, manifestJobName, manifestEnv)
	if err != nil {
		return nil, err
	}
	return []*usecase.Pipeline{{
		Name:     pc.Name,
		Kind:     pc.Kind,
		Schedule: pc.Schedule,
		Source:   manifest.NewSource(pc.Manifest.Path, checker, a.logger),
		Known:    known,
		Dispatch: dispatch,
		Options:  opts,
	}}, nil
}

func detectorOptions(pc *config.PipelineConfig) (detector.Options, error) {
	order, err := detector.ParseOrder(pc.Order)
	if err != nil {
		return detector.Options{}, err
	}
	return detector.Options{
		Limit:       pc.BatchLimit(),
		Order:       order,
		Concurrency: pc.Concurrency,
		CallTimeout: pc.CallTimeout,
		Retry: detector.RetryPolicy{
			MaxRetries: pc.Retry.MaxRetries,
			Backoff:    pc.Retry.Backoff,
		},
	}, nil
}

// knownStore builds the cache for one pipeline. defaultPrefix is used for
// s3 caches without an explicit prefix; both are expanded with vars.
func (a *App) knownStore(ctx context.Context, pipeline string, cc config.CacheConfig, defaultPrefix string, vars scope) (domain.KnownIDStore, error) {
	switch cc.Kind {
	case "s3":
		clients, err := a.aws(ctx)
		if err != nil {
			return nil, err
		}
		prefix := cc.Prefix
		if prefix == "" {
			prefix = defaultPrefix
		} else if len(vars) > 0 && !strings.Contains(prefix, "${") {
			// A shared prefix still needs one directory per workspace.
			prefix = strings.TrimSuffix(prefix, "/") + "/${project}/${workspace}/"
		}
		return awsinfra.NewKeyCache(clients.S3, cc.Bucket, vars.expand(prefix), a.logger), nil
	case "etcd":
		client, err := a.etcdClient()
		if err != nil {
			return nil, err
		}
		return etcdinfra.NewEtcdKnownIDStore(client, pipeline, a.logger), nil
	case "sqlite":
		db, err := a.sqliteDB(ctx)
		if err != nil {
			return nil, err
		}
		return sqlite.NewKnownIDStore(db, pipeline), nil
	default:
		return nil, nil
	}
}

// dispatcher builds the configured Dispatcher. jobName and env are the
// pipeline kind's Batch defaults; configured env entries override them by name.
func (a *App) dispatcher(ctx context.Context, dc config.DispatchConfig, jobName string, env []config.EnvVar) (domain.Dispatcher, error) {
	switch dc.Kind {
	case "batch":
		clients, err := a.aws(ctx)
		if err != nil {
			return nil, err
		}
		if dc.JobName != "" {
			jobName = dc.JobName
		}
		fixed, mapped := splitEnv(append(append([]config.EnvVar{}, env...), dc.Env...))
		return awsinfra.NewBatchSubmitter(clients.Batch, awsinfra.BatchJobSpec{
			Queue:        dc.JobQueue,
			Definition:   dc.JobDefinition,
			NameTemplate: jobName,
			Command:      dc.Command,
			Environment:  fixed,
			EnvMap:       mapped,
		}, a.logger), nil
	case "sqs":
		clients, err := a.aws(ctx)
		if err != nil {
			return nil, err
		}
		return awsinfra.NewQueueSender(clients.SQS, dc.QueueURL, dc.MessageFields, a.logger), nil
	case "s3copy":
		clients, err := a.aws(ctx)
		if err != nil {
			return nil, err
		}
		return awsinfra.NewCopier(clients.S3, dc.DestBucket, a.logger), nil
	case "http":
		return httpinfra.NewHttpDispatcher(dc.Method, dc.URL, a.logger), nil
	case "shell":
		return shell.NewShellDispatcher(dc.Shell, a.logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown dispatch kind %q", domain.ErrConfiguration, dc.Kind)
	}
}

// splitEnv resolves the env list into fixed values and attribute mappings.
// Later entries win over earlier ones with the same name.
func splitEnv(env []config.EnvVar) (fixed, mapped map[string]string) {
	fixed, mapped = map[string]string{}, map[string]string{}
	for _, e := range env {
		delete(fixed, e.Name)
		delete(mapped, e.Name)
		if e.Attr != "" {
			mapped[e.Name] = e.Attr
		} else {
			fixed[e.Name] = e.Value
		}
	}
	return fixed, mapped
}
