// Command paywall-client pays for the resource served by paywall-server and
// prints the result as JSON.
//
// Environment:
//
//	PRIVATE_KEY   payer key (required)
//	SERVER_URL    paywall base URL, default http://localhost:8787
//	MCP_URL       use the MCP endpoint instead of the HTTP routes
//	RPC_URL       Cronos RPC; when set the payer's token balance is checked first
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	x402 "github.com/x402-foundation/x402-entitlements"
	x402http "github.com/x402-foundation/x402-entitlements/http"
	"github.com/x402-foundation/x402-entitlements/mcp"
	"github.com/x402-foundation/x402-entitlements/signers/evm"
)

// Result is printed on stdout
type Result struct {
	Success bool            `json:"success"`
	Payer   string          `json:"payer,omitempty"`
	Balance string          `json:"balance,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func main() {
	_ = godotenv.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result := run(ctx)
	out, _ := json.Marshal(result)
	fmt.Println(string(out))
	if !result.Success {
		os.Exit(1)
	}
}

func run(ctx context.Context) Result {
	privateKey := os.Getenv("PRIVATE_KEY")
	if privateKey == "" {
		return Result{Error: "PRIVATE_KEY environment variable is required"}
	}

	var opts []evm.SignerOption
	rpcURL := os.Getenv("RPC_URL")
	if rpcURL != "" {
		client, err := ethclient.DialContext(ctx, rpcURL)
		if err != nil {
			return Result{Error: fmt.Sprintf("dial rpc: %v", err)}
		}
		defer client.Close()
		opts = append(opts, evm.WithEthClient(client))
	}

	signer, err := evm.NewClientSigner(privateKey, opts...)
	if err != nil {
		return Result{Error: err.Error()}
	}
	result := Result{Payer: signer.Address()}
	payer := &balanceCheck{signer: signer, enabled: rpcURL != "", result: &result}

	var data json.RawMessage
	if mcpURL := os.Getenv("MCP_URL"); mcpURL != "" {
		data, err = fetchOverMCP(ctx, mcpURL, payer)
	} else {
		serverURL := os.Getenv("SERVER_URL")
		if serverURL == "" {
			serverURL = "http://localhost:8787"
		}
		var res *x402http.DataResult
		res, err = x402http.NewClient(serverURL).FetchWithPayment(ctx, payer)
		if err == nil {
			if res.Status != x402http.DataOK {
				err = fmt.Errorf("unexpected response %d: %s", res.StatusCode, res.Error)
			}
			data = res.Data
		}
	}
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Success = true
	result.Data = data
	return result
}

func fetchOverMCP(ctx context.Context, endpoint string, signer x402http.PaymentSigner) (json.RawMessage, error) {
	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "paywall-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, &mcpsdk.StreamableClientTransport{Endpoint: endpoint}, nil)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", endpoint, err)
	}
	defer session.Close()
	return mcp.NewClient(session).FetchWithPayment(ctx, signer)
}

// balanceCheck refuses to sign when an RPC client shows the payer cannot
// cover the amount.
type balanceCheck struct {
	signer  *evm.ClientSigner
	enabled bool
	result  *Result
}

func (b *balanceCheck) CreatePaymentHeader(ctx context.Context, option x402.PaymentOption) (string, error) {
	if b.enabled {
		balance, err := b.signer.TokenBalance(ctx, option.Asset)
		if err != nil {
			return "", fmt.Errorf("read balance: %w", err)
		}
		b.result.Balance = balance.String()

		required, ok := new(big.Int).SetString(option.MaxAmountRequired, 10)
		if !ok {
			return "", fmt.Errorf("invalid maxAmountRequired %q", option.MaxAmountRequired)
		}
		if balance.Cmp(required) < 0 {
			return "", errors.New("insufficient token balance")
		}
	}
	return b.signer.CreatePaymentHeader(ctx, option)
}
