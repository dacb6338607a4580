package config

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/rpattn/enrollgate/internal/domain"
	"github.com/rpattn/enrollgate/internal/ingestion"
	"github.com/rpattn/enrollgate/internal/quality"
)

// EnvPrefix prefixes every environment override, e.g. ENROLLGATE_POLICY_EXPRESSION.
const EnvPrefix = "ENROLLGATE"

var boundKeys = []string{
	"log.level", "log.json",
	"pipeline.out_dir", "pipeline.workers", "pipeline.chunk_size", "pipeline.example_limit",
	"ingestion.delimiter",
	"rules.required_fields", "rules.allowed_currencies", "rules.amount_min", "rules.amount_max",
	"policy.id", "policy.expression", "policy.degraded_limit", "policy.min_acceptance_rate",
	"database.enabled", "database.host", "database.port", "database.user",
	"database.password", "database.dbname", "database.sslmode",
	"server.addr", "server.allowed_origins", "server.upload_dir",
}

// Load reads configuration. path may name a file; when empty, enrollgate.yaml
// is searched in . and ./config and its absence is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("enrollgate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range boundKeys {
		if err := v.BindEnv(key); err != nil {
			return cfg, errors.Wrapf(err, "bind env for %s", key)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return cfg, errors.Wrap(err, "read config file")
		}
	}

	apply(v, &cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// apply overrides defaults only for keys that are set.
func apply(v *viper.Viper, cfg *Config) {
	if v.IsSet("log.level") {
		cfg.Log.Level = v.GetString("log.level")
	}
	if v.IsSet("log.json") {
		cfg.Log.JSON = v.GetBool("log.json")
	}

	if v.IsSet("pipeline.out_dir") {
		cfg.Pipeline.OutDir = v.GetString("pipeline.out_dir")
	}
	if v.IsSet("pipeline.workers") {
		cfg.Pipeline.Workers = v.GetInt("pipeline.workers")
	}
	if v.IsSet("pipeline.chunk_size") {
		cfg.Pipeline.ChunkSize = v.GetInt("pipeline.chunk_size")
	}
	if v.IsSet("pipeline.example_limit") {
		cfg.Pipeline.ExampleLimit = v.GetInt("pipeline.example_limit")
	}

	if v.IsSet("ingestion.delimiter") {
		cfg.Ingestion.Delimiter = v.GetString("ingestion.delimiter")
	}

	if v.IsSet("rules.required_fields") {
		cfg.Rules.RequiredFields = v.GetStringSlice("rules.required_fields")
	}
	if v.IsSet("rules.allowed_currencies") {
		cfg.Rules.AllowedCurrencies = v.GetStringSlice("rules.allowed_currencies")
	}
	if v.IsSet("rules.amount_min") {
		cfg.Rules.AmountMin = v.GetFloat64("rules.amount_min")
	}
	if v.IsSet("rules.amount_max") {
		cfg.Rules.AmountMax = v.GetFloat64("rules.amount_max")
	}

	if v.IsSet("policy.id") {
		cfg.Policy.ID = v.GetString("policy.id")
	}
	if v.IsSet("policy.expression") {
		cfg.Policy.Expression = v.GetString("policy.expression")
	}
	if v.IsSet("policy.degraded_limit") {
		limit := v.GetFloat64("policy.degraded_limit")
		cfg.Policy.DegradedLimit = &limit
	}
	if v.IsSet("policy.min_acceptance_rate") {
		min := v.GetFloat64("policy.min_acceptance_rate")
		cfg.Policy.MinAcceptanceRate = &min
	}

	if v.IsSet("database.enabled") {
		cfg.Database.Enabled = v.GetBool("database.enabled")
	}
	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}

	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("server.allowed_origins") {
		cfg.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}
	if v.IsSet("server.upload_dir") {
		cfg.Server.UploadDir = v.GetString("server.upload_dir")
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	if c.Pipeline.Workers < 1 {
		return errors.Newf("pipeline.workers must be >= 1, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.ChunkSize < 1 {
		return errors.Newf("pipeline.chunk_size must be >= 1, got %d", c.Pipeline.ChunkSize)
	}
	if c.Pipeline.ExampleLimit < 0 {
		return errors.Newf("pipeline.example_limit must be >= 0, got %d", c.Pipeline.ExampleLimit)
	}
	if c.Rules.AmountMin > c.Rules.AmountMax {
		return errors.Newf("rules.amount_min %v exceeds rules.amount_max %v", c.Rules.AmountMin, c.Rules.AmountMax)
	}
	if _, err := c.Delimiter(); err != nil {
		return err
	}
	_, err := c.QualityPolicy()
	return err
}

// QualityPolicy parses the configured gate policy.
func (c Config) QualityPolicy() (domain.QualityGatePolicy, error) {
	var opts []quality.PolicyOption
	if c.Policy.DegradedLimit != nil {
		opts = append(opts, quality.WithDegradedLimit(*c.Policy.DegradedLimit))
	}
	if c.Policy.MinAcceptanceRate != nil {
		opts = append(opts, quality.WithMinAcceptanceRate(*c.Policy.MinAcceptanceRate))
	}
	p, err := quality.ParsePolicy(c.Policy.ID, c.Policy.Expression, opts...)
	if err != nil {
		return p, errors.Wrap(err, "policy")
	}
	return p, nil
}

// Delimiter resolves ingestion.delimiter. "tab" and "\t" both mean a tab;
// zero means sniff.
func (c Config) Delimiter() (rune, error) {
	d := c.Ingestion.Delimiter
	switch strings.ToLower(d) {
	case "":
		return 0, nil
	case "tab", `\t`, "\t":
		return '\t', nil
	}
	runes := []rune(d)
	if len(runes) != 1 || !ingestion.IsSupportedDelimiter(runes[0]) {
		return 0, errors.WithHint(errors.Newf("unsupported ingestion.delimiter %q", d), "use one of | ; , or tab")
	}
	return runes[0], nil
}
