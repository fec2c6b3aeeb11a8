// internal/config/config.go
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/DOH-JDJ0303/waphl-data/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config holds all configuration for the detector binaries.
// The mapstructure tags are used by Viper to unmarshal the data.
type Config struct {
	LogLevel          string        `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error DEBUG INFO WARN ERROR"`
	SecretID          string        `mapstructure:"secret_id"`
	AWSRegion         string        `mapstructure:"aws_region"`
	EtcdEndpoints     []string      `mapstructure:"etcd_endpoints"`
	EtcdTimeout       time.Duration `mapstructure:"etcd_timeout"`
	HttpListenAddr    string        `mapstructure:"http_listen_addr"`
	LeaderElectionTTL time.Duration `mapstructure:"leader_election_ttl"`
	SQLitePath        string        `mapstructure:"sqlite_path"`
	RunStore          string        `mapstructure:"run_store" validate:"oneof=none sqlite etcd"`
	Overlap           string        `mapstructure:"overlap" validate:"oneof=allow forbid"`
	TraceOutput       string        `mapstructure:"trace_output" validate:"omitempty,oneof=none stdout stderr"`

	Pipelines []PipelineConfig `mapstructure:"pipelines" validate:"dive"`
	Tables    *TablesConfig    `mapstructure:"tables" validate:"omitempty"`
}

// PipelineConfig describes one detect-and-dispatch pipeline.
type PipelineConfig struct {
	Name     string `mapstructure:"name" validate:"required,max=128"`
	Kind     string `mapstructure:"kind" validate:"required,oneof=terra fastq manifest"`
	Schedule string `mapstructure:"schedule" validate:"omitempty,cron"`
	// Limit caps the batch; nil takes the kind default and 0 is unbounded.
	Limit       *int          `mapstructure:"limit" validate:"omitempty,gte=0"`
	Order       string        `mapstructure:"order" validate:"omitempty,oneof=id newest listing"`
	Concurrency int           `mapstructure:"concurrency" validate:"gte=0,lte=64"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	Retry       RetryConfig   `mapstructure:"retry"`

	Terra    *TerraConfig    `mapstructure:"terra"`
	Fastq    *FastqConfig    `mapstructure:"fastq"`
	Manifest *ManifestConfig `mapstructure:"manifest"`

	Cache    CacheConfig    `mapstructure:"cache"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
}

// RetryConfig is the per-item retry policy for retryable dispatch failures.
type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	Backoff    time.Duration `mapstructure:"backoff"`
}

// TerraConfig selects submissions from Terra workspaces.
type TerraConfig struct {
	APIURL         string        `mapstructure:"api_url" validate:"required,url"`
	Project        string        `mapstructure:"project" validate:"required"`
	Workspaces     []string      `mapstructure:"workspaces" validate:"required,min=1,dive,required"`
	CredentialsURI string        `mapstructure:"credentials_uri"`
	Window         time.Duration `mapstructure:"window"`
	ExcludeSets    bool          `mapstructure:"exclude_sets"`
	// LatestPerEntity keeps the newest submission per entity type. Defaults to true.
	LatestPerEntity *bool `mapstructure:"latest_per_entity"`
}

// FastqConfig selects recent paired-end reads from the FASTQ metadata table.
type FastqConfig struct {
	SourceBucket string        `mapstructure:"source_bucket" validate:"required"`
	TableKey     string        `mapstructure:"table_key" validate:"required"`
	Window       time.Duration `mapstructure:"window"`
}

// ManifestConfig reads a local workflow,run_uri CSV.
type ManifestConfig struct {
	Path        string `mapstructure:"path" validate:"required"`
	CheckExists bool   `mapstructure:"check_exists"`
}

// CacheConfig selects where already-processed ids are read from.
type CacheConfig struct {
	Kind   string `mapstructure:"kind" validate:"oneof=none s3 etcd sqlite"`
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// DispatchConfig selects the downstream execution mechanism.
type DispatchConfig struct {
	Kind string `mapstructure:"kind" validate:"required,oneof=batch sqs s3copy http shell"`

	// batch
	JobQueue      string   `mapstructure:"job_queue"`
	JobDefinition string   `mapstructure:"job_definition"`
	JobName       string   `mapstructure:"job_name"`
	Command       []string `mapstructure:"command"`
	Env           []EnvVar `mapstructure:"env" validate:"dive"`

	// sqs; keys are lower-cased by the config loader
	QueueURL      string            `mapstructure:"queue_url"`
	MessageFields map[string]string `mapstructure:"message_fields"`

	// s3copy
	DestBucket string `mapstructure:"dest_bucket"`

	// http
	URL    string `mapstructure:"url"`
	Method string `mapstructure:"method"`

	// shell
	Shell string `mapstructure:"shell"`
}

// EnvVar is a container variable set either to a fixed Value or to the item
// attribute named by Attr ("id" is the item id).
type EnvVar struct {
	Name  string `mapstructure:"name" validate:"required"`
	Value string `mapstructure:"value"`
	Attr  string `mapstructure:"attr" validate:"excluded_with=Value"`
}

// TablesConfig drives the results-table build.
type TablesConfig struct {
	Schedule      string        `mapstructure:"schedule" validate:"omitempty,cron"`
	Crawler       string        `mapstructure:"crawler" validate:"required"`
	Database      string        `mapstructure:"database" validate:"required"`
	Bucket        string        `mapstructure:"bucket" validate:"required"`
	Key           string        `mapstructure:"key" validate:"required"`
	WorkGroup     string        `mapstructure:"workgroup"`
	JobQueue      string        `mapstructure:"job_queue"`
	JobDefinition string        `mapstructure:"job_definition"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
}

// SecretFetcher returns the key/value pairs stored in a secret.
type SecretFetcher interface {
	Fetch(ctx context.Context, secretID string) (map[string]string, error)
}

// SecretFetcherFactory builds a SecretFetcher for an AWS region.
type SecretFetcherFactory func(ctx context.Context, region string) (SecretFetcher, error)

// Options tune Load.
type Options struct {
	// Path overrides config file discovery.
	Path string
	// Secrets is used when secret_id is set. Nil disables secret lookup.
	Secrets SecretFetcherFactory
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("etcd_timeout", "5s")
	v.SetDefault("http_listen_addr", ":8080")
	v.SetDefault("leader_election_ttl", "10s")
	v.SetDefault("sqlite_path", "./data/waphl.db")
	v.SetDefault("run_store", "none")
	v.SetDefault("overlap", "allow")
	v.SetDefault("trace_output", "none")
}

// Load loads configuration from file, secret and environment variables.
//
// References of the form ${secret:name} in the config file are replaced by
// the field "name" of the secret named by secret_id (or WAPHL_SECRET_ID), and
// ${env:NAME} by an environment variable. Other $ sequences are left alone so
// item templates such as ${workspace} pass through.
func Load(ctx context.Context, opts Options) (*Config, error) {
	raw, path, err := readConfigFile(opts.Path)
	if err != nil {
		return nil, err
	}

	// First pass: only to learn secret_id and region.
	pre := newViper()
	if raw != nil {
		if err := pre.ReadConfig(bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("%w: failed to parse %s: %v", domain.ErrConfiguration, path, err)
		}
	}

	secrets := map[string]string{}
	if secretID := pre.GetString("secret_id"); secretID != "" {
		if opts.Secrets == nil {
			return nil, fmt.Errorf("%w: secret_id %q set but no secret store configured", domain.ErrConfiguration, secretID)
		}
		fetcher, err := opts.Secrets(ctx, pre.GetString("aws_region"))
		if err != nil {
			return nil, fmt.Errorf("%w: failed to create secret client: %v", domain.ErrConfiguration, err)
		}
		secrets, err = fetcher.Fetch(ctx, secretID)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read secret %s: %v", domain.ErrConfiguration, secretID, err)
		}
	}

	// References are resolved on parsed values so that substituted text is
	// never read as YAML.
	var missing []string
	resolved := resolveRefs(pre.AllSettings(), secrets, &missing)
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: %s: unresolved references: %s", domain.ErrConfiguration, path, strings.Join(missing, ", "))
	}
	v := newViper()
	if err := v.MergeConfigMap(resolved.(map[string]any)); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var refPattern = regexp.MustCompile(`\$\{(secret|env):([^}]+)\}`)

func expandRefs(raw string, secrets map[string]string, missing *[]string) string {
	return refPattern.ReplaceAllStringFunc(raw, func(ref string) string {
		m := refPattern.FindStringSubmatch(ref)
		source, name := m[1], strings.TrimSpace(m[2])
		var (
			val string
			ok  bool
		)
		if source == "secret" {
			val, ok = secrets[name]
		} else {
			val, ok = os.LookupEnv(name)
		}
		if !ok {
			*missing = append(*missing, source+":"+name)
		}
		return val
	})
}

// resolveRefs expands references in every string of a decoded settings tree.
func resolveRefs(node any, secrets map[string]string, missing *[]string) any {
	switch n := node.(type) {
	case string:
		return expandRefs(n, secrets, missing)
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, val := range n {
			out[k] = resolveRefs(val, secrets, missing)
		}
		return out
	case []string:
		out := make([]string, len(n))
		for i, val := range n {
			out[i] = expandRefs(val, secrets, missing)
		}
		return out
	case []any:
		out := make([]any, len(n))
		for i, val := range n {
			out[i] = resolveRefs(val, secrets, missing)
		}
		return out
	default:
		return node
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("waphl")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// readConfigFile returns the config file contents, or nil when no file exists
// and we rely on defaults and env vars.
func readConfigFile(path string) ([]byte, string, error) {
	candidates := []string{path}
	if path == "" {
		candidates = []string{
			filepath.Join("configs", "config.yaml"),
			"config.yaml",
		}
	}
	for _, p := range candidates {
		raw, err := os.ReadFile(p)
		if err == nil {
			return raw, p, nil
		}
		if errors.Is(err, os.ErrNotExist) && path == "" {
			continue
		}
		return nil, p, fmt.Errorf("%w: failed to read %s: %v", domain.ErrConfiguration, p, err)
	}
	return nil, "", nil
}

func (c *Config) applyDefaults() {
	for i := range c.Pipelines {
		p := &c.Pipelines[i]
		if p.Cache.Kind == "" {
			p.Cache.Kind = "none"
		}
		if p.Terra != nil {
			if p.Terra.APIURL == "" {
				p.Terra.APIURL = "https://api.firecloud.org"
			}
			if p.Terra.LatestPerEntity == nil {
				latest := true
				p.Terra.LatestPerEntity = &latest
			}
		}
		if p.Fastq != nil {
			if p.Fastq.TableKey == "" {
				p.Fastq.TableKey = "tables/fastq.csv"
			}
			if p.Fastq.Window == 0 {
				p.Fastq.Window = 30 * 24 * time.Hour
			}
		}
		if p.Limit == nil {
			limit := 0
			if p.Kind == "terra" {
				limit = 10
			}
			p.Limit = &limit
		}
		if p.Dispatch.Kind == "http" && p.Dispatch.Method == "" {
			p.Dispatch.Method = "POST"
		}
	}
	if c.Tables != nil {
		if c.Tables.WorkGroup == "" {
			c.Tables.WorkGroup = "primary"
		}
		if c.Tables.PollInterval == 0 {
			c.Tables.PollInterval = 10 * time.Second
		}
	}
}

// BatchLimit is the configured cap, 0 meaning unbounded.
func (p *PipelineConfig) BatchLimit() int {
	if p.Limit == nil {
		return 0
	}
	return *p.Limit
}

// Latest reports whether only the newest submission per entity is kept.
func (t *TerraConfig) Latest() bool {
	return t.LatestPerEntity == nil || *t.LatestPerEntity
}

// Pipeline returns the pipeline configuration registered under name.
func (c *Config) Pipeline(name string) (*PipelineConfig, error) {
	for i := range c.Pipelines {
		if c.Pipelines[i].Name == name {
			return &c.Pipelines[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrPipelineNotFound, name)
}

// Validate checks field constraints and the kind-specific sections.
func (c *Config) Validate() error {
	validate := NewValidator()
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("field '%s' failed on the '%s' tag", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", domain.ErrConfiguration, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}

	seen := map[string]bool{}
	for i := range c.Pipelines {
		p := &c.Pipelines[i]
		if seen[p.Name] {
			return fmt.Errorf("%w: duplicate pipeline name %q", domain.ErrConfiguration, p.Name)
		}
		seen[p.Name] = true
		if err := p.validate(); err != nil {
			return fmt.Errorf("%w: pipeline %s: %v", domain.ErrConfiguration, p.Name, err)
		}
		if p.Cache.Kind == "etcd" && len(c.EtcdEndpoints) == 0 {
			return fmt.Errorf("%w: pipeline %s: etcd cache requires etcd_endpoints", domain.ErrConfiguration, p.Name)
		}
	}
	if c.RunStore == "etcd" && len(c.EtcdEndpoints) == 0 {
		return fmt.Errorf("%w: run_store etcd requires etcd_endpoints", domain.ErrConfiguration)
	}
	return nil
}

func (p *PipelineConfig) validate() error {
	switch p.Kind {
	case "terra":
		if p.Terra == nil {
			return fmt.Errorf("terra section is required")
		}
	case "fastq":
		if p.Fastq == nil {
			return fmt.Errorf("fastq section is required")
		}
	case "manifest":
		if p.Manifest == nil {
			return fmt.Errorf("manifest section is required")
		}
	}
	if p.Cache.Kind == "s3" && p.Cache.Bucket == "" {
		return fmt.Errorf("s3 cache requires a bucket")
	}

	d := p.Dispatch
	switch d.Kind {
	case "batch":
		if d.JobQueue == "" || d.JobDefinition == "" {
			return fmt.Errorf("batch dispatch requires job_queue and job_definition")
		}
	case "sqs":
		if d.QueueURL == "" {
			return fmt.Errorf("sqs dispatch requires queue_url")
		}
	case "s3copy":
		if d.DestBucket == "" {
			return fmt.Errorf("s3copy dispatch requires dest_bucket")
		}
	case "http":
		if d.URL == "" {
			return fmt.Errorf("http dispatch requires url")
		}
	case "shell":
		if d.Shell == "" {
			return fmt.Errorf("shell dispatch requires shell")
		}
	}
	return nil
}

// NewValidator returns a validator with the custom "cron" and "duration" tags.
func NewValidator() *validator.Validate {
	validate := validator.New()

	_ = validate.RegisterValidation("cron", func(fl validator.FieldLevel) bool {
		_, err := CronParser().Parse(fl.Field().String())
		return err == nil
	})

	_ = validate.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		_, err := time.ParseDuration(fl.Field().String())
		return err == nil
	})
	return validate
}

// CronParser parses six-field (with seconds) expressions and descriptors
// such as @hourly.
func CronParser() cron.Parser {
	return cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}

// SlogLevel maps log_level to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// TraceWriter is where spans are exported.
func (c *Config) TraceWriter() io.Writer {
	switch c.TraceOutput {
	case "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	default:
		return io.Discard
	}
}
