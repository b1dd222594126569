package ledger

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	clierr "github.com/ggonzalez94/aptos-agent-cli/internal/errors"
	"github.com/ggonzalez94/aptos-agent-cli/internal/httpx"
	"github.com/ggonzalez94/aptos-agent-cli/internal/id"
)

const (
	txnExpirySecs    = 600
	receiptPollDelay = time.Second
	receiptPollMax   = 30
)

// Client talks to a fullnode's REST API: reads, view calls, simulation, and
// the encode/sign/submit/wait transaction flow.
type Client struct {
	http    *httpx.Client
	baseURL string
	log     zerolog.Logger
	now     func() time.Time
}

func New(httpClient *httpx.Client, baseURL string, log zerolog.Logger) *Client {
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		log:     log,
		now:     time.Now,
	}
}

// SetClock overrides the wall clock, for tests.
func (c *Client) SetClock(now func() time.Time) {
	if now != nil {
		c.now = now
	}
}

func (c *Client) Account(ctx context.Context, address string) (Account, error) {
	addr, err := id.NormalizeAddress(address)
	if err != nil {
		return Account{}, err
	}
	var acct Account
	if _, err := httpx.GetJSON(ctx, c.http, fmt.Sprintf("%s/accounts/%s", c.baseURL, addr), nil, &acct); err != nil {
		return Account{}, err
	}
	return acct, nil
}

// Balance reads an account's holdings of an asset in base units. The node
// endpoint accepts either addressing convention; prefer the fungible-asset
// address since migrated coin balances are visible through it.
func (c *Client) Balance(ctx context.Context, address string, asset id.Asset) (*big.Int, error) {
	addr, err := id.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	assetID := asset.FAAddress
	if assetID == "" {
		assetID = asset.CoinType
	}
	if assetID == "" {
		return nil, clierr.New(clierr.CodeUsage, "asset has no addressing convention")
	}

	var raw json.RawMessage
	if _, err := httpx.GetJSON(ctx, c.http, fmt.Sprintf("%s/accounts/%s/balance/%s", c.baseURL, addr, assetID), nil, &raw); err != nil {
		return nil, err
	}
	return decodeUintValue(raw)
}

// View invokes a read-only Move function and returns its raw return values.
func (c *Client) View(ctx context.Context, function string, typeArgs []string, args []any) ([]json.RawMessage, error) {
	if typeArgs == nil {
		typeArgs = []string{}
	}
	if args == nil {
		args = []any{}
	}
	var out []json.RawMessage
	req := viewRequest{Function: function, TypeArguments: typeArgs, Arguments: args}
	if _, err := httpx.PostJSON(ctx, c.http, c.baseURL+"/view", req, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ViewUint invokes a view function expected to return a single integer.
func (c *Client) ViewUint(ctx context.Context, function string, typeArgs []string, args []any) (*big.Int, error) {
	values, err := c.View(ctx, function, typeArgs, args)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, clierr.New(clierr.CodeUnavailable, "view returned no values")
	}
	return decodeUintValue(values[0])
}

func (c *Client) EstimateGasPrice(ctx context.Context) (uint64, error) {
	var resp gasPriceResponse
	if _, err := httpx.GetJSON(ctx, c.http, c.baseURL+"/estimate_gas_price", nil, &resp); err != nil {
		return 0, err
	}
	if resp.GasEstimate == 0 {
		return 0, clierr.New(clierr.CodeUnavailable, "node returned zero gas estimate")
	}
	return resp.GasEstimate, nil
}

// Simulate runs the entry function against current state without submitting.
// The signature is the zero signature the simulation endpoint requires.
func (c *Client) Simulate(ctx context.Context, sender Signer, entry EntryFunction, maxGas, gasUnitPrice uint64) (SimulationResult, error) {
	acct, err := c.Account(ctx, sender.Address())
	if err != nil {
		return SimulationResult{}, err
	}
	req := c.buildRequest(sender.Address(), acct.SequenceNumber, entry, maxGas, gasUnitPrice)
	req.Signature = &txnSignature{
		Type:      "ed25519_signature",
		PublicKey: sender.PublicKeyHex(),
		Signature: "0x" + strings.Repeat("0", 128),
	}

	var results []SimulationResult
	if _, err := httpx.PostJSON(ctx, c.http, c.baseURL+"/transactions/simulate", []txnRequest{req}, nil, &results); err != nil {
		return SimulationResult{}, err
	}
	if len(results) == 0 {
		return SimulationResult{}, clierr.New(clierr.CodeSimulation, "simulation returned no results")
	}
	return results[0], nil
}

func (c *Client) TransactionByHash(ctx context.Context, hash string) (Transaction, error) {
	var txn Transaction
	if _, err := httpx.GetJSON(ctx, c.http, fmt.Sprintf("%s/transactions/by_hash/%s", c.baseURL, strings.TrimSpace(hash)), nil, &txn); err != nil {
		return Transaction{}, err
	}
	return txn, nil
}

// Execute signs and submits the entry function, then waits for the receipt.
// A transaction the ledger commits but rejects surfaces as CodeExecution with
// the VM status in the message.
func (c *Client) Execute(ctx context.Context, signer Signer, entry EntryFunction, maxGas, gasUnitPrice uint64) (Transaction, error) {
	acct, err := c.Account(ctx, signer.Address())
	if err != nil {
		return Transaction{}, err
	}
	req := c.buildRequest(signer.Address(), acct.SequenceNumber, entry, maxGas, gasUnitPrice)

	var signingMessage string
	if _, err := httpx.PostJSON(ctx, c.http, c.baseURL+"/transactions/encode_submission", req, nil, &signingMessage); err != nil {
		return Transaction{}, err
	}
	message, err := hex.DecodeString(strings.TrimPrefix(signingMessage, "0x"))
	if err != nil {
		return Transaction{}, clierr.Wrap(clierr.CodeUnavailable, "decode signing message", err)
	}

	sig, err := signer.Sign(message)
	if err != nil {
		return Transaction{}, clierr.Wrap(clierr.CodeSigner, "sign transaction", err)
	}
	req.Signature = &txnSignature{
		Type:      "ed25519_signature",
		PublicKey: signer.PublicKeyHex(),
		Signature: sig,
	}

	var pending Transaction
	if _, err := httpx.PostJSON(ctx, c.http, c.baseURL+"/transactions", req, nil, &pending); err != nil {
		return Transaction{}, err
	}
	c.log.Info().Str("hash", pending.Hash).Msg("transaction submitted")

	return c.waitForReceipt(ctx, pending.Hash)
}

func (c *Client) waitForReceipt(ctx context.Context, hash string) (Transaction, error) {
	for attempt := 0; attempt < receiptPollMax; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Transaction{}, clierr.Wrap(clierr.CodeTimeout, "wait for transaction", ctx.Err())
			case <-time.After(receiptPollDelay):
			}
		}
		txn, err := c.TransactionByHash(ctx, hash)
		if err != nil {
			if cErr, ok := clierr.As(err); ok && cErr.Code == clierr.CodeUnsupported {
				// 404: not yet indexed, keep polling.
				continue
			}
			return Transaction{}, err
		}
		if txn.Type == "pending_transaction" {
			continue
		}
		if !txn.Success {
			return txn, clierr.New(clierr.CodeExecution, fmt.Sprintf("transaction failed on ledger: %s", txn.VMStatus))
		}
		return txn, nil
	}
	return Transaction{}, clierr.New(clierr.CodeTimeout, fmt.Sprintf("transaction %s not confirmed in time", hash))
}

func (c *Client) buildRequest(sender, sequenceNumber string, entry EntryFunction, maxGas, gasUnitPrice uint64) txnRequest {
	typeArgs := entry.TypeArguments
	if typeArgs == nil {
		typeArgs = []string{}
	}
	args := entry.Arguments
	if args == nil {
		args = []any{}
	}
	return txnRequest{
		Sender:                  sender,
		SequenceNumber:          sequenceNumber,
		MaxGasAmount:            strconv.FormatUint(maxGas, 10),
		GasUnitPrice:            strconv.FormatUint(gasUnitPrice, 10),
		ExpirationTimestampSecs: strconv.FormatInt(c.now().Unix()+txnExpirySecs, 10),
		Payload: txnPayload{
			Type:          "entry_function_payload",
			Function:      entry.Function,
			TypeArguments: typeArgs,
			Arguments:     args,
		},
	}
}

// decodeUintValue accepts the node's two integer encodings: JSON numbers for
// small values and quoted strings for u64/u128.
func decodeUintValue(raw json.RawMessage) (*big.Int, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		v, ok := new(big.Int).SetString(strings.TrimSpace(asString), 10)
		if !ok {
			return nil, clierr.New(clierr.CodeUnavailable, fmt.Sprintf("invalid integer value: %s", asString))
		}
		return v, nil
	}
	var asNumber json.Number
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		v, ok := new(big.Int).SetString(asNumber.String(), 10)
		if ok {
			return v, nil
		}
	}
	return nil, clierr.New(clierr.CodeUnavailable, "unrecognized integer encoding in node response")
}
