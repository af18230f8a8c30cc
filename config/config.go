package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/ledgerops/evm-submit/submission"
	"github.com/ledgerops/evm-submit/units"
	"github.com/ledgerops/evm-submit/wallet"
)

// Keys double as environment variable names once upper-cased by viper.
const (
	KeyRPCEndpoint         = "arb_rpc"
	KeyChainID             = "chain_id"
	KeyPrivateKey          = "privkey"
	KeyToAddress           = "to_addr"
	KeyAmount              = "amount"
	KeyGasPriceGwei        = "gas_price_gwei"
	KeyGasPriceWei         = "gas_price"
	KeyConfirmations       = "confirmations"
	KeyConfirmationTimeout = "confirmation_timeout"
	KeyCallTimeout         = "call_timeout"
	KeyPollInterval        = "poll_interval"
	KeyMaxPollInterval     = "max_poll_interval"
	KeyLogLevel            = "log_level"
	KeyTraceEndpoint       = "otlp_endpoint"
	KeyTraceInsecure       = "otlp_insecure"
	KeySkipChainCheck      = "skip_chain_check"
)

const (
	DefaultRPCEndpoint         = "https://sepolia-rollup.arbitrum.io/rpc"
	DefaultChainID             = 421614
	DefaultAmount              = "0.001"
	DefaultConfirmations       = 1
	DefaultConfirmationTimeout = 2 * time.Minute
	DefaultCallTimeout         = 10 * time.Second
	DefaultPollInterval        = time.Second
	DefaultMaxPollInterval     = 8 * time.Second
	DefaultLogLevel            = "info"

	// DefaultBalanceAddress is queried by the balance command when no
	// address is given.
	DefaultBalanceAddress = "0xE1537A3b6D944256d7493E20669C30e5Ce238912"
)

var weiConverter = units.NewConverter(0)

// Config is the process configuration. It is built once at startup and
// passed to the components that need it.
type Config struct {
	RPCEndpoint string
	ChainID     *big.Int
	// OverrideFeeRate is in wei per gas, nil if the fee rate is sampled.
	OverrideFeeRate       *big.Int
	TransferAmount        string
	RequiredConfirmations uint64
	ConfirmationTimeout   time.Duration
	PerCallTimeout        time.Duration
	PollInterval          time.Duration
	MaxPollInterval       time.Duration

	PrivateKey string
	ToAddress  string

	LogLevel       zerolog.Level
	TraceEndpoint  string
	TraceInsecure  bool
	SkipChainCheck bool
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyRPCEndpoint, DefaultRPCEndpoint)
	v.SetDefault(KeyChainID, strconv.Itoa(DefaultChainID))
	v.SetDefault(KeyAmount, DefaultAmount)
	v.SetDefault(KeyConfirmations, strconv.Itoa(DefaultConfirmations))
	v.SetDefault(KeyConfirmationTimeout, DefaultConfirmationTimeout.String())
	v.SetDefault(KeyCallTimeout, DefaultCallTimeout.String())
	v.SetDefault(KeyPollInterval, DefaultPollInterval.String())
	v.SetDefault(KeyMaxPollInterval, DefaultMaxPollInterval.String())
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
}

// ReadEnvFile merges a dotenv file into v. A missing file is ignored unless
// required is set.
func ReadEnvFile(v *viper.Viper, path string, required bool) error {
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading env file %s: %w", path, err)
	}
	return nil
}

// Load builds a Config from v. All problems are reported at once.
func Load(v *viper.Viper) (*Config, error) {
	var errs *multierror.Error
	cfg := &Config{
		RPCEndpoint:    strings.TrimSpace(v.GetString(KeyRPCEndpoint)),
		TransferAmount: strings.TrimSpace(v.GetString(KeyAmount)),
		PrivateKey:     strings.TrimSpace(v.GetString(KeyPrivateKey)),
		ToAddress:      strings.TrimSpace(v.GetString(KeyToAddress)),
		TraceEndpoint:  strings.TrimSpace(v.GetString(KeyTraceEndpoint)),
		TraceInsecure:  v.GetBool(KeyTraceInsecure),
		SkipChainCheck: v.GetBool(KeySkipChainCheck),
	}

	if id, ok := new(big.Int).SetString(strings.TrimSpace(v.GetString(KeyChainID)), 10); ok {
		cfg.ChainID = id
	} else {
		errs = multierror.Append(errs, fmt.Errorf("%s: %q is not an integer", KeyChainID, v.GetString(KeyChainID)))
	}

	fee, err := loadFeeRate(v)
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	cfg.OverrideFeeRate = fee

	if n, err := strconv.ParseUint(strings.TrimSpace(v.GetString(KeyConfirmations)), 10, 64); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("%s: %w", KeyConfirmations, err))
	} else {
		cfg.RequiredConfirmations = n
	}

	for key, dst := range map[string]*time.Duration{
		KeyConfirmationTimeout: &cfg.ConfirmationTimeout,
		KeyCallTimeout:         &cfg.PerCallTimeout,
		KeyPollInterval:        &cfg.PollInterval,
		KeyMaxPollInterval:     &cfg.MaxPollInterval,
	} {
		d, err := time.ParseDuration(strings.TrimSpace(v.GetString(key)))
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		*dst = d
	}

	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))))
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("%s: %w", KeyLogLevel, err))
	}
	cfg.LogLevel = level

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFeeRate reads the fee override, given either in gwei or in wei.
func loadFeeRate(v *viper.Viper) (*big.Int, error) {
	gwei := strings.TrimSpace(v.GetString(KeyGasPriceGwei))
	wei := strings.TrimSpace(v.GetString(KeyGasPriceWei))
	switch {
	case gwei != "" && wei != "":
		return nil, fmt.Errorf("%s and %s are mutually exclusive", KeyGasPriceGwei, KeyGasPriceWei)
	case gwei != "":
		fee, err := units.Gwei.ToSubUnits(gwei)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", KeyGasPriceGwei, err)
		}
		return fee, nil
	case wei != "":
		fee, err := weiConverter.ToSubUnits(wei)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", KeyGasPriceWei, err)
		}
		return fee, nil
	}
	return nil, nil
}

// Validate checks the settings every command depends on.
func (c *Config) Validate() error {
	var errs *multierror.Error
	if u, err := url.Parse(c.RPCEndpoint); err != nil || u.Host == "" {
		errs = multierror.Append(errs, fmt.Errorf("%s: %q is not a valid URL", KeyRPCEndpoint, c.RPCEndpoint))
	} else {
		switch u.Scheme {
		case "http", "https", "ws", "wss":
		default:
			errs = multierror.Append(errs, fmt.Errorf("%s: unsupported scheme %q", KeyRPCEndpoint, u.Scheme))
		}
	}
	if c.ChainID == nil || c.ChainID.Sign() <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("%s must be positive", KeyChainID))
	}
	if c.OverrideFeeRate != nil && c.OverrideFeeRate.Sign() < 0 {
		errs = multierror.Append(errs, errors.New("fee rate override must not be negative"))
	}
	if c.RequiredConfirmations < 1 {
		errs = multierror.Append(errs, fmt.Errorf("%s must be at least 1", KeyConfirmations))
	}
	if c.ConfirmationTimeout <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("%s must be positive", KeyConfirmationTimeout))
	}
	if c.PerCallTimeout <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("%s must be positive", KeyCallTimeout))
	}
	if c.PollInterval <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("%s must be positive", KeyPollInterval))
	}
	if c.MaxPollInterval < c.PollInterval {
		errs = multierror.Append(errs, fmt.Errorf("%s must not be below %s", KeyMaxPollInterval, KeyPollInterval))
	}
	return errs.ErrorOrNil()
}

// ValidateTransfer checks the settings a submission needs on top of Validate.
// It does not touch the network.
func (c *Config) ValidateTransfer() error {
	var errs *multierror.Error
	if c.PrivateKey == "" {
		errs = multierror.Append(errs, fmt.Errorf("%s is not set", strings.ToUpper(KeyPrivateKey)))
	}
	if c.ToAddress == "" {
		errs = multierror.Append(errs, fmt.Errorf("%s is not set", strings.ToUpper(KeyToAddress)))
	} else if _, err := wallet.ParseAddress(c.ToAddress); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("%s: %w", KeyToAddress, err))
	}
	if _, err := units.Ether.ToSubUnits(c.TransferAmount); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("%s: %w", KeyAmount, err))
	}
	return errs.ErrorOrNil()
}

// Submission returns the pipeline settings.
func (c *Config) Submission() submission.Config {
	var fee *big.Int
	if c.OverrideFeeRate != nil {
		fee = new(big.Int).Set(c.OverrideFeeRate)
	}
	return submission.Config{
		ChainID:               new(big.Int).Set(c.ChainID),
		OverrideFeeRate:       fee,
		RequiredConfirmations: c.RequiredConfirmations,
		ConfirmationTimeout:   c.ConfirmationTimeout,
		PollInterval:          c.PollInterval,
		MaxPollInterval:       c.MaxPollInterval,
		VerifyChainID:         !c.SkipChainCheck,
	}
}
