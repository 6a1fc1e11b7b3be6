package module

import (
	"time"

	"rangeslicer/internal/core/interval"
	"rangeslicer/internal/core/keyspace"
	"rangeslicer/internal/platform/config"
	perr "rangeslicer/internal/platform/errors"
	"rangeslicer/internal/platform/validate"
	"rangeslicer/internal/services/slicer/guardrails"
	"rangeslicer/internal/services/slicer/repo"
	"rangeslicer/internal/services/slicer/service"
)

// Options holds the slicer configuration. The env tag is the key under CORE_SLICER_
type Options struct {
	// Slicing
	Interval string `env:"INTERVAL" validate:"required,interval"`
	Delay    string `env:"DELAY" validate:"omitempty,interval"`
	Size     int64  `env:"SIZE" validate:"min=1"`

	// Keyspace subslicing
	SubsliceByKey     bool   `env:"SUBSLICE_BY_KEY"`
	SubsliceThreshold int64  `env:"SUBSLICE_THRESHOLD" validate:"min=0"`
	Alphabet          string `env:"ALPHABET" validate:"required"`
	StartingKeyDepth  int    `env:"STARTING_KEY_DEPTH" validate:"min=0,ltefield=MaxKeyDepth"`
	MaxKeyDepth       int    `env:"MAX_KEY_DEPTH" validate:"min=1,max=64"`
	CoalesceKeys      bool   `env:"COALESCE_KEYS"`

	Workers    int  `env:"WORKERS" validate:"min=1,max=1024"`
	Persistent bool `env:"PERSISTENT"`
	Recover    bool `env:"RECOVER"`

	// Retry of failed count queries
	Retries   int           `env:"RETRIES" validate:"min=0"`
	RetryBase time.Duration `env:"RETRY_BASE" validate:"min=0"`
	RetryCap  time.Duration `env:"RETRY_CAP" validate:"min=0"`

	// Guardrails
	QueryTimeout     time.Duration `env:"QUERY_TIMEOUT" validate:"min=0"`
	DispatchTimeout  time.Duration `env:"DISPATCH_TIMEOUT" validate:"min=0"`
	SaveTimeout      time.Duration `env:"SAVE_TIMEOUT" validate:"min=0"`
	StatementTimeout time.Duration `env:"STATEMENT_TIMEOUT" validate:"min=0"`
	QPS              float64       `env:"QPS" validate:"min=0"`
	Burst            int           `env:"BURST" validate:"min=0"`
	Leases           bool          `env:"LEASES"`
	LeaseTTL         time.Duration `env:"LEASE_TTL" validate:"min=0"`
	Poll             time.Duration `env:"POLL" validate:"min=0"`
	BreakerFailures  int           `env:"BREAKER_FAILURES" validate:"min=0"`
	BreakerCooldown  time.Duration `env:"BREAKER_COOLDOWN" validate:"min=0"`

	// Count oracle
	Backend    string `env:"BACKEND" validate:"oneof=pg ch"`
	Table      string `env:"TABLE" validate:"required"`
	TimeColumn string `env:"TIME_COLUMN" validate:"required"`
	KeyColumn  string `env:"KEY_COLUMN"`
}

// FromConfig reads the slicer options from config with CORE_SLICER_ prefix
func FromConfig(cfg config.Conf) Options {
	sc := cfg.Prefix("CORE_SLICER_")
	return Options{
		Interval: sc.MayString("INTERVAL", "1h"),
		Delay:    sc.MayString("DELAY", ""),
		Size:     sc.MayInt64("SIZE", 100_000),

		SubsliceByKey:     sc.MayBool("SUBSLICE_BY_KEY", false),
		SubsliceThreshold: sc.MayInt64("SUBSLICE_THRESHOLD", 0),
		Alphabet:          sc.MayString("ALPHABET", "hex"),
		StartingKeyDepth:  sc.MayInt("STARTING_KEY_DEPTH", 0),
		MaxKeyDepth:       sc.MayInt("MAX_KEY_DEPTH", 8),
		CoalesceKeys:      sc.MayBool("COALESCE_KEYS", true),

		Workers:    sc.MayInt("WORKERS", 1),
		Persistent: sc.MayBool("PERSISTENT", false),
		Recover:    sc.MayBool("RECOVER", false),

		Retries:   sc.MayInt("RETRIES", 3),
		RetryBase: sc.MayDuration("RETRY_BASE", 500*time.Millisecond),
		RetryCap:  sc.MayDuration("RETRY_CAP", 30*time.Second),

		QueryTimeout:     sc.MayDuration("QUERY_TIMEOUT", time.Minute),
		DispatchTimeout:  sc.MayDuration("DISPATCH_TIMEOUT", 0),
		SaveTimeout:      sc.MayDuration("SAVE_TIMEOUT", 10*time.Second),
		StatementTimeout: sc.MayDuration("STATEMENT_TIMEOUT", 5*time.Second),
		QPS:              sc.MayFloat64("QPS", 0),
		Burst:            sc.MayInt("BURST", 1),
		Leases:           sc.MayBool("LEASES", true),
		LeaseTTL:         sc.MayDuration("LEASE_TTL", time.Minute),
		Poll:             sc.MayDuration("POLL", time.Second),
		BreakerFailures:  sc.MayInt("BREAKER_FAILURES", 5),
		BreakerCooldown:  sc.MayDuration("BREAKER_COOLDOWN", 30*time.Second),

		Backend:    sc.MayEnum("BACKEND", "pg", "pg", "ch"),
		Table:      sc.MayString("TABLE", "events"),
		TimeColumn: sc.MayString("TIME_COLUMN", "created_at"),
		KeyColumn:  sc.MayString("KEY_COLUMN", "id"),
	}
}

// Merge returns o with the non-zero fields of over applied. Booleans can only be
// switched on
func (o Options) Merge(over Options) Options {
	if over.Interval != "" {
		o.Interval = over.Interval
	}
	if over.Delay != "" {
		o.Delay = over.Delay
	}
	if over.Size != 0 {
		o.Size = over.Size
	}
	if over.Workers != 0 {
		o.Workers = over.Workers
	}
	if over.Persistent {
		o.Persistent = true
	}
	if over.Recover {
		o.Recover = true
	}
	if over.SubsliceByKey {
		o.SubsliceByKey = true
	}
	if over.Backend != "" {
		o.Backend = over.Backend
	}
	if over.Table != "" {
		o.Table = over.Table
	}
	if over.TimeColumn != "" {
		o.TimeColumn = over.TimeColumn
	}
	if over.KeyColumn != "" {
		o.KeyColumn = over.KeyColumn
	}
	return o
}

// Validate checks the options as a whole
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return err
	}
	if interval.IsAuto(o.Delay) {
		return perr.ConfigKeyf("DELAY", "DELAY cannot be auto")
	}
	if o.SubsliceByKey && o.KeyColumn == "" {
		return perr.ConfigKeyf("KEY_COLUMN", "KEY_COLUMN is required when SUBSLICE_BY_KEY is set")
	}
	return nil
}

// RunConfig converts validated options into the service configuration
func (o Options) RunConfig() (service.RunConfig, error) {
	var iv, delay interval.Interval
	var err error
	if !interval.IsAuto(o.Interval) {
		if iv, err = interval.Parse(o.Interval); err != nil {
			return service.RunConfig{}, perr.WithKey(err, "INTERVAL")
		}
	}
	if o.Delay != "" {
		if delay, err = interval.Parse(o.Delay); err != nil {
			return service.RunConfig{}, perr.WithKey(err, "DELAY")
		}
	}
	alpha, err := keyspace.Lookup(o.Alphabet)
	if err != nil {
		return service.RunConfig{}, err
	}
	return service.RunConfig{
		Config: service.Config{
			Interval:          iv,
			Ceiling:           o.Size,
			Persistent:        o.Persistent,
			Delay:             delay,
			SubsliceByKey:     o.SubsliceByKey,
			SubsliceThreshold: o.SubsliceThreshold,
			Alphabet:          alpha,
			StartingKeyDepth:  o.StartingKeyDepth,
			MaxKeyDepth:       o.MaxKeyDepth,
			CoalesceKeys:      o.CoalesceKeys,
			Workers:           o.Workers,
			Retries:           o.Retries,
			RetryBase:         o.RetryBase,
			RetryCap:          o.RetryCap,
		},
		Recover: o.Recover,
		Poll:    o.Poll,
		Timeouts: guardrails.Timeouts{
			Query:    o.QueryTimeout,
			Dispatch: o.DispatchTimeout,
			Save:     o.SaveTimeout,
		},
	}, nil
}

// OracleTable names what the count oracle queries
func (o Options) OracleTable() repo.Table {
	return repo.Table{Name: o.Table, TimeColumn: o.TimeColumn, KeyColumn: o.KeyColumn}
}
