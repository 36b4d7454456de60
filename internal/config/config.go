// Package config loads ledgerops settings: defaults, then a YAML file, then
// LEDGEROPS_* environment variables. Command-line flags are applied last by
// the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"solana-ledger-ops/internal/batch"
	"solana-ledger-ops/internal/domain"
	"solana-ledger-ops/internal/ledger"
	"solana-ledger-ops/internal/reclaim"
	"solana-ledger-ops/internal/solana"
	"solana-ledger-ops/internal/transfer"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LEDGEROPS_"

// Config is the resolved runtime configuration.
type Config struct {
	RPCEndpoint    string
	WSEndpoint     string // empty disables the WebSocket confirmation path
	Cluster        string
	Commitment     domain.Commitment
	RateLimit      float64 // requests per second, 0 = unlimited
	MaxRetries     int     // send attempts per transaction
	RetryDelay     time.Duration
	ConfirmTimeout time.Duration // 0 = bounded by the blockhash window only

	KeypairPath string

	BatchSize  int
	BatchDelay time.Duration

	ProtectedMints    []string // default set applies when empty
	MergeDefaultMints bool     // keep the default set alongside ProtectedMints
	IncludeToken2022  bool

	ComputeUnitPrice uint64 // micro-lamports, 0 = omit
	ComputeUnitLimit uint32 // 0 = omit
	RejectOffCurve   bool

	PostgresDSN   string
	ClickhouseDSN string
	MetricsAddr   string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		RPCEndpoint: "https://api.mainnet-beta.solana.com",
		Cluster:     "mainnet-beta",
		Commitment:  domain.CommitmentConfirmed,
		RateLimit:   10,
		MaxRetries:  ledger.DefaultSendAttempts,
		RetryDelay:  ledger.DefaultRetryDelay,
		BatchSize:   batch.DefaultBatchSize,
		BatchDelay:  batch.DefaultBatchDelay,
	}
}

// File is the YAML layout. Pointer fields distinguish unset from zero.
type File struct {
	RPC struct {
		Endpoint       string         `yaml:"endpoint"`
		WSEndpoint     string         `yaml:"wsEndpoint"`
		Cluster        string         `yaml:"cluster"`
		Commitment     string         `yaml:"commitment"`
		RateLimit      *float64       `yaml:"rateLimit"`
		MaxRetries     int            `yaml:"maxRetries"`
		RetryDelay     *time.Duration `yaml:"retryDelay"`
		ConfirmTimeout time.Duration  `yaml:"confirmTimeout"`
	} `yaml:"rpc"`
	Wallet struct {
		Keypair string `yaml:"keypair"`
	} `yaml:"wallet"`
	Batch struct {
		Size  int            `yaml:"size"`
		Delay *time.Duration `yaml:"delay"`
	} `yaml:"batch"`
	Reclaim struct {
		ProtectedMints    []string `yaml:"protectedMints"`
		MergeDefaultMints *bool    `yaml:"mergeDefaultMints"`
		Token2022         *bool    `yaml:"token2022"`
	} `yaml:"reclaim"`
	Transfer struct {
		ComputeUnitPrice *uint64 `yaml:"computeUnitPrice"`
		ComputeUnitLimit *uint32 `yaml:"computeUnitLimit"`
		RejectOffCurve   *bool   `yaml:"rejectOffCurve"`
	} `yaml:"transfer"`
	Storage struct {
		PostgresDSN   string `yaml:"postgresDsn"`
		ClickhouseDSN string `yaml:"clickhouseDsn"`
	} `yaml:"storage"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
}

// DefaultPaths are tried in order when no config path is given.
var DefaultPaths = []string{"ledgerops.yaml", "configs/ledgerops.yaml"}

// Load resolves defaults, the config file and environment overrides.
// An explicit path must exist; default paths are optional.
func Load(path string) (Config, error) {
	cfg := Default()

	candidates := DefaultPaths
	if path != "" {
		candidates = []string{path}
	}

	for _, p := range candidates {
		data, err := os.ReadFile(p)
		if err != nil {
			if path == "" && errors.Is(err, os.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("read config %s: %w", p, err)
		}

		var parsed File
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", p, err)
		}
		if err := Merge(&cfg, parsed); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", p, err)
		}
		break
	}

	if err := ApplyEnvOverrides(&cfg, os.Getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Merge copies every set field of src into dst.
func Merge(dst *Config, src File) error {
	if src.RPC.Endpoint != "" {
		dst.RPCEndpoint = src.RPC.Endpoint
	}
	if src.RPC.WSEndpoint != "" {
		dst.WSEndpoint = src.RPC.WSEndpoint
	}
	if src.RPC.Cluster != "" {
		dst.Cluster = src.RPC.Cluster
	}
	if src.RPC.Commitment != "" {
		c, err := domain.ParseCommitment(src.RPC.Commitment)
		if err != nil {
			return err
		}
		dst.Commitment = c
	}
	if src.RPC.RateLimit != nil {
		dst.RateLimit = *src.RPC.RateLimit
	}
	if src.RPC.MaxRetries != 0 {
		dst.MaxRetries = src.RPC.MaxRetries
	}
	if src.RPC.RetryDelay != nil {
		dst.RetryDelay = *src.RPC.RetryDelay
	}
	if src.RPC.ConfirmTimeout != 0 {
		dst.ConfirmTimeout = src.RPC.ConfirmTimeout
	}
	if src.Wallet.Keypair != "" {
		dst.KeypairPath = src.Wallet.Keypair
	}
	if src.Batch.Size != 0 {
		dst.BatchSize = src.Batch.Size
	}
	if src.Batch.Delay != nil {
		dst.BatchDelay = *src.Batch.Delay
	}
	if src.Reclaim.ProtectedMints != nil {
		dst.ProtectedMints = src.Reclaim.ProtectedMints
	}
	if src.Reclaim.MergeDefaultMints != nil {
		dst.MergeDefaultMints = *src.Reclaim.MergeDefaultMints
	}
	if src.Reclaim.Token2022 != nil {
		dst.IncludeToken2022 = *src.Reclaim.Token2022
	}
	if src.Transfer.ComputeUnitPrice != nil {
		dst.ComputeUnitPrice = *src.Transfer.ComputeUnitPrice
	}
	if src.Transfer.ComputeUnitLimit != nil {
		dst.ComputeUnitLimit = *src.Transfer.ComputeUnitLimit
	}
	if src.Transfer.RejectOffCurve != nil {
		dst.RejectOffCurve = *src.Transfer.RejectOffCurve
	}
	if src.Storage.PostgresDSN != "" {
		dst.PostgresDSN = src.Storage.PostgresDSN
	}
	if src.Storage.ClickhouseDSN != "" {
		dst.ClickhouseDSN = src.Storage.ClickhouseDSN
	}
	if src.Metrics.Addr != "" {
		dst.MetricsAddr = src.Metrics.Addr
	}
	return nil
}

// ApplyEnvOverrides applies LEDGEROPS_* variables read through getenv.
// Malformed values are errors.
func ApplyEnvOverrides(cfg *Config, getenv func(string) string) error {
	env := func(name string) string {
		return strings.TrimSpace(getenv(EnvPrefix + name))
	}

	strs := map[string]*string{
		"RPC_URL":        &cfg.RPCEndpoint,
		"WS_URL":         &cfg.WSEndpoint,
		"CLUSTER":        &cfg.Cluster,
		"KEYPAIR":        &cfg.KeypairPath,
		"POSTGRES_DSN":   &cfg.PostgresDSN,
		"CLICKHOUSE_DSN": &cfg.ClickhouseDSN,
		"METRICS_ADDR":   &cfg.MetricsAddr,
	}
	for name, dst := range strs {
		if v := env(name); v != "" {
			*dst = v
		}
	}

	if v := env("COMMITMENT"); v != "" {
		c, err := domain.ParseCommitment(v)
		if err != nil {
			return fmt.Errorf("%sCOMMITMENT: %w", EnvPrefix, err)
		}
		cfg.Commitment = c
	}

	ints := map[string]*int{
		"BATCH_SIZE":  &cfg.BatchSize,
		"MAX_RETRIES": &cfg.MaxRetries,
	}
	for name, dst := range ints {
		if v := env(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"BATCH_DELAY":     &cfg.BatchDelay,
		"RETRY_DELAY":     &cfg.RetryDelay,
		"CONFIRM_TIMEOUT": &cfg.ConfirmTimeout,
	}
	for name, dst := range durations {
		if v := env(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = d
		}
	}

	if v := env("RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sRATE_LIMIT: %w", EnvPrefix, err)
		}
		cfg.RateLimit = f
	}
	if v := env("PROTECTED_MINTS"); v != "" {
		cfg.ProtectedMints = splitList(v)
	}
	if v := env("MERGE_DEFAULT_MINTS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sMERGE_DEFAULT_MINTS: %w", EnvPrefix, err)
		}
		cfg.MergeDefaultMints = b
	}
	if v := env("TOKEN2022"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sTOKEN2022: %w", EnvPrefix, err)
		}
		cfg.IncludeToken2022 = b
	}
	return nil
}

// Validate rejects settings no run can use.
func (c Config) Validate() error {
	var errs []error
	if c.RPCEndpoint == "" {
		errs = append(errs, errors.New("rpc endpoint is required"))
	}
	if _, err := domain.ParseCommitment(string(c.Commitment)); err != nil {
		errs = append(errs, err)
	}
	if c.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch size must be positive, got %d", c.BatchSize))
	}
	if c.BatchDelay < 0 {
		errs = append(errs, fmt.Errorf("batch delay must not be negative, got %s", c.BatchDelay))
	}
	if c.MaxRetries <= 0 {
		errs = append(errs, fmt.Errorf("max retries must be positive, got %d", c.MaxRetries))
	}
	if c.ConfirmTimeout < 0 {
		errs = append(errs, fmt.Errorf("confirm timeout must not be negative, got %s", c.ConfirmTimeout))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate limit must not be negative, got %v", c.RateLimit))
	}
	for _, m := range c.ProtectedMints {
		if err := solana.ValidateAddress(m); err != nil {
			errs = append(errs, fmt.Errorf("protected mint %q: %w", m, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return nil
}

// Submit returns the per-transaction settings.
func (c Config) Submit() ledger.Config {
	return ledger.Config{
		Commitment:     c.Commitment,
		SendAttempts:   c.MaxRetries,
		RetryDelay:     c.RetryDelay,
		ConfirmTimeout: c.ConfirmTimeout,
	}
}

// Batch returns the chunking settings.
func (c Config) Batch() batch.Config {
	return batch.Config{BatchSize: c.BatchSize, BatchDelay: c.BatchDelay}
}

// Scanner returns the scan settings.
func (c Config) Scanner() reclaim.ScannerConfig {
	programs := []string{solana.TokenProgramID}
	if c.IncludeToken2022 {
		programs = append(programs, solana.Token2022ProgramID)
	}
	return reclaim.ScannerConfig{
		ProgramIDs:     programs,
		ProtectedMints: reclaim.ResolveProtectedMints(c.ProtectedMints, c.MergeDefaultMints),
	}
}

// Transfer returns the transfer executor settings.
func (c Config) Transfer() transfer.Config {
	return transfer.Config{Cluster: c.Cluster, RejectOffCurve: c.RejectOffCurve}
}

// Fee returns the priority fee applied to transfers without their own.
func (c Config) Fee() domain.FeeConfig {
	var fee domain.FeeConfig
	if c.ComputeUnitPrice > 0 {
		price := c.ComputeUnitPrice
		fee.UnitPriceMicroLamports = &price
	}
	if c.ComputeUnitLimit > 0 {
		limit := c.ComputeUnitLimit
		fee.UnitLimit = &limit
	}
	return fee
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
