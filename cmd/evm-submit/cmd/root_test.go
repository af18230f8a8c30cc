package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	ctest "github.com/ledgerops/evm-submit/client/test"
	"github.com/ledgerops/evm-submit/submission"
)

const (
	testKey    = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	testSender = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"
	testDest   = "0xE1537A3b6D944256d7493E20669C30e5Ce238912"
)

// chainHandlers answers every query of a transfer on chain 421614. The
// receipt handler reports the last broadcast transaction as included in
// block 7, or returns null if mined is false.
func chainHandlers(mined bool) map[string]ctest.Handler {
	var (
		mu   sync.Mutex
		sent *types.Transaction
	)
	return map[string]ctest.Handler{
		"eth_chainId":             ctest.Result("0x66eee"),
		"eth_blockNumber":         ctest.Result("0x7"),
		"eth_getBalance":          ctest.Result("0xde0b6b3a7640000"),
		"eth_gasPrice":            ctest.Result("0x3b9aca00"),
		"eth_estimateGas":         ctest.Result("0x5208"),
		"eth_getTransactionCount": ctest.Result("0x3"),
		"eth_sendRawTransaction": func(params []json.RawMessage) (interface{}, *ctest.RPCError) {
			var raw hexutil.Bytes
			if err := json.Unmarshal(params[0], &raw); err != nil {
				return nil, &ctest.RPCError{Code: -32602, Message: err.Error()}
			}
			tx := new(types.Transaction)
			if err := tx.UnmarshalBinary(raw); err != nil {
				return nil, &ctest.RPCError{Code: -32602, Message: err.Error()}
			}
			mu.Lock()
			sent = tx
			mu.Unlock()
			return tx.Hash(), nil
		},
		"eth_getTransactionReceipt": func([]json.RawMessage) (interface{}, *ctest.RPCError) {
			mu.Lock()
			defer mu.Unlock()
			if !mined || sent == nil {
				return nil, nil
			}
			return map[string]interface{}{
				"transactionHash":   sent.Hash(),
				"blockNumber":       "0x7",
				"status":            "0x1",
				"gasUsed":           "0x5208",
				"cumulativeGasUsed": "0x5208",
				"logsBloom":         "0x" + strings.Repeat("0", 512),
				"logs":              []interface{}{},
			}, nil
		},
	}
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root, _ := newRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	env := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(env, []byte("LOG_LEVEL=debug\n"), 0o600))
	root.SetArgs(append(args, "--env-file", env))
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestBlockCommand(t *testing.T) {
	srv := ctest.NewNode(t, chainHandlers(true))

	out, _, err := execute(t, "block", "--rpc", srv.URL)
	require.NoError(t, err)
	require.Contains(t, out, "chain id: 421614")
	require.Contains(t, out, "block:    7")
}

func TestBalanceCommand(t *testing.T) {
	srv := ctest.NewNode(t, chainHandlers(true))

	out, _, err := execute(t, "balance", "--rpc", srv.URL)
	require.NoError(t, err)
	require.Equal(t, testDest+": 1 ETH (1000000000000000000 wei)\n", out)
	require.Equal(t, 1, srv.Count(ctest.MethodGetBalance))

	_, _, err = execute(t, "balance", "0x1234", "--rpc", srv.URL)
	require.Error(t, err)
}

func TestGasCommand(t *testing.T) {
	srv := ctest.NewNode(t, chainHandlers(true))

	out, _, err := execute(t, "gas", "--rpc", srv.URL)
	require.NoError(t, err)
	require.Contains(t, out, "suggested:    1 gwei (1000000000 wei)")
	require.Contains(t, out, "transfer fee: 0.000021 ETH (21000000000000 wei) for 21000 gas")
	require.Contains(t, out, "submitted at: 1.1 gwei (1100000000 wei)")
	require.Contains(t, out, "fee at submitted rate: 0.0000231 ETH (23100000000000 wei)")
}

func TestSendCommand(t *testing.T) {
	srv := ctest.NewNode(t, chainHandlers(true))
	t.Setenv("PRIVKEY", testKey)

	out, _, err := execute(t, "send", testDest, "0.5",
		"--rpc", srv.URL,
		"--poll-interval", "10ms",
		"--max-poll-interval", "20ms",
	)
	require.NoError(t, err)
	require.Equal(t, 0, ExitCode(err))
	require.Equal(t, 1, srv.Count(ctest.MethodSendRawTransaction))
	require.Contains(t, out, "from:          "+testSender)
	require.Contains(t, out, "to:            "+testDest)
	require.Contains(t, out, "value:         0.5 ETH (500000000000000000 wei)")
	require.Contains(t, out, "gas price:     1.1 gwei (1100000000 wei)")
	require.Contains(t, out, "gas limit:     27300")
	require.Contains(t, out, "block:         7")
	require.Contains(t, out, "gas used:      21000")
}

func TestSendCommandUnconfirmed(t *testing.T) {
	srv := ctest.NewNode(t, chainHandlers(false))
	t.Setenv("PRIVKEY", testKey)

	_, stderr, err := execute(t, "send", testDest,
		"--rpc", srv.URL,
		"--gas-price-gwei", "2",
		"--poll-interval", "10ms",
		"--max-poll-interval", "20ms",
		"--confirmation-timeout", "100ms",
	)
	require.ErrorIs(t, err, submission.ErrConfirmationTimeout)
	require.Equal(t, ExitUnresolved, ExitCode(err))
	require.Contains(t, stderr, "transaction 0x")
}

func TestSendCommandRejectsInput(t *testing.T) {
	srv := ctest.NewNode(t, chainHandlers(true))

	t.Setenv("PRIVKEY", testKey)
	_, _, err := execute(t, "send", "0x1234", "--rpc", srv.URL)
	require.Error(t, err)
	require.Equal(t, ExitFailure, ExitCode(err))

	_, _, err = execute(t, "send", testDest, "1e18", "--rpc", srv.URL)
	require.Error(t, err)

	t.Setenv("PRIVKEY", "0xnotakey")
	_, _, err = execute(t, "send", testDest, "--rpc", srv.URL)
	require.Error(t, err)

	require.Empty(t, srv.Calls())
}

func TestInvalidConfiguration(t *testing.T) {
	_, _, err := execute(t, "block", "--rpc", "ftp://node", "--chain-id", "0")
	require.ErrorContains(t, err, "invalid configuration")

	root, _ := newRootCommand()
	root.SetArgs([]string{"block", "--env-file", filepath.Join(t.TempDir(), "absent.env")})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	require.ErrorContains(t, root.ExecuteContext(context.Background()), "reading env file")
}

func TestExitCode(t *testing.T) {
	require.Equal(t, 0, ExitCode(nil))
	require.Equal(t, ExitFailure, ExitCode(errors.New("boom")))
	require.Equal(t, ExitFailure, ExitCode(submission.ErrConfirmationTimeout))

	unresolved := &submission.Error{Stage: submission.Broadcast, Kind: submission.KindConfirmationTimeout, Err: context.DeadlineExceeded}
	require.Equal(t, ExitUnresolved, ExitCode(fmt.Errorf("sending: %w", unresolved)))
}
