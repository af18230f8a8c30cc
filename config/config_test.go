package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/ledgerops/evm-submit/config"
	"github.com/ledgerops/evm-submit/units"
)

func newViper() *viper.Viper {
	v := viper.New()
	config.SetDefaults(v)
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(newViper())
	require.NoError(t, err)

	require.Equal(t, config.DefaultRPCEndpoint, cfg.RPCEndpoint)
	require.Equal(t, int64(421614), cfg.ChainID.Int64())
	require.Nil(t, cfg.OverrideFeeRate)
	require.Equal(t, "0.001", cfg.TransferAmount)
	require.Equal(t, uint64(1), cfg.RequiredConfirmations)
	require.Equal(t, 2*time.Minute, cfg.ConfirmationTimeout)
	require.Equal(t, 10*time.Second, cfg.PerCallTimeout)
	require.Equal(t, zerolog.InfoLevel, cfg.LogLevel)

	sub := cfg.Submission()
	require.True(t, sub.VerifyChainID)
	require.Equal(t, cfg.ConfirmationTimeout, sub.ConfirmationTimeout)
}

func TestLoadGasPrice(t *testing.T) {
	v := newViper()
	v.Set(config.KeyGasPriceGwei, "0.1")
	cfg, err := config.Load(v)
	require.NoError(t, err)
	require.Equal(t, "100000000", cfg.OverrideFeeRate.String())

	v = newViper()
	v.Set(config.KeyGasPriceWei, "500")
	cfg, err = config.Load(v)
	require.NoError(t, err)
	require.Equal(t, int64(500), cfg.OverrideFeeRate.Int64())
	require.Equal(t, int64(500), cfg.Submission().OverrideFeeRate.Int64())

	v = newViper()
	v.Set(config.KeyGasPriceWei, "1.5")
	_, err = config.Load(v)
	require.ErrorIs(t, err, units.ErrMalformedAmount)

	v = newViper()
	v.Set(config.KeyGasPriceWei, "500")
	v.Set(config.KeyGasPriceGwei, "1")
	_, err = config.Load(v)
	require.Error(t, err)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ARB_RPC", "http://localhost:8547")
	t.Setenv("AMOUNT", "0.25")
	t.Setenv("GAS_PRICE_GWEI", "2")
	v := newViper()
	v.AutomaticEnv()

	cfg, err := config.Load(v)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8547", cfg.RPCEndpoint)
	require.Equal(t, "0.25", cfg.TransferAmount)
	require.Equal(t, "2000000000", cfg.OverrideFeeRate.String())
}

func TestReadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte(
		"ARB_RPC=https://example.org/rpc\n"+
			"TO_ADDR=0xE1537A3b6D944256d7493E20669C30e5Ce238912\n"+
			"CONFIRMATIONS=3\n"), 0o600))

	v := newViper()
	require.NoError(t, config.ReadEnvFile(v, path, true))
	cfg, err := config.Load(v)
	require.NoError(t, err)
	require.Equal(t, "https://example.org/rpc", cfg.RPCEndpoint)
	require.Equal(t, "0xE1537A3b6D944256d7493E20669C30e5Ce238912", cfg.ToAddress)
	require.Equal(t, uint64(3), cfg.RequiredConfirmations)

	missing := filepath.Join(dir, "missing.env")
	require.NoError(t, config.ReadEnvFile(newViper(), missing, false))
	require.Error(t, config.ReadEnvFile(newViper(), missing, true))
}

func TestLoadReportsAllProblems(t *testing.T) {
	v := newViper()
	v.Set(config.KeyRPCEndpoint, "ftp://node")
	v.Set(config.KeyChainID, "0")
	v.Set(config.KeyConfirmations, "0")
	v.Set(config.KeyPollInterval, "10s")
	v.Set(config.KeyMaxPollInterval, "1s")
	_, err := config.Load(v)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	require.Len(t, merr.Errors, 4)

	v = newViper()
	v.Set(config.KeyChainID, "arbitrum")
	v.Set(config.KeyCallTimeout, "soon")
	v.Set(config.KeyLogLevel, "loud")
	_, err = config.Load(v)
	require.ErrorAs(t, err, &merr)
	require.Len(t, merr.Errors, 3)
}

func TestValidateTransfer(t *testing.T) {
	cfg, err := config.Load(newViper())
	require.NoError(t, err)

	var merr *multierror.Error
	require.ErrorAs(t, cfg.ValidateTransfer(), &merr)
	require.Len(t, merr.Errors, 2)

	cfg.PrivateKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	cfg.ToAddress = "0xE1537A3b6D944256d7493E20669C30e5Ce238912"
	require.NoError(t, cfg.ValidateTransfer())

	cfg.TransferAmount = "1e18"
	require.ErrorIs(t, cfg.ValidateTransfer(), units.ErrMalformedAmount)
}
