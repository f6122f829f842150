// Package evm signs x402 payment headers with an ECDSA key: EIP-3009
// transferWithAuthorization messages over the Cronos stablecoins.
package evm

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	x402 "github.com/x402-foundation/x402-entitlements"
)

// ClientSigner creates payment headers from an ECDSA private key.
// It satisfies the paying client's PaymentSigner.
type ClientSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	ethClient  *ethclient.Client
	now        func() time.Time
}

// SignerOption configures a ClientSigner
type SignerOption func(*ClientSigner)

// WithEthClient attaches an RPC client for contract reads such as TokenBalance.
func WithEthClient(client *ethclient.Client) SignerOption {
	return func(s *ClientSigner) {
		s.ethClient = client
	}
}

// WithClock sets the time source for authorization validity windows.
func WithClock(now func() time.Time) SignerOption {
	return func(s *ClientSigner) {
		if now != nil {
			s.now = now
		}
	}
}

// NewClientSigner creates a signer from a hex-encoded private key, with or
// without the "0x" prefix.
func NewClientSigner(privateKeyHex string, opts ...SignerOption) (*ClientSigner, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	s := &ClientSigner{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Address returns the Ethereum address of the signer.
func (s *ClientSigner) Address() string {
	return s.address.Hex()
}

// Authorization is an unsigned EIP-3009 transferWithAuthorization.
type Authorization struct {
	From        common.Address
	To          common.Address
	Value       *big.Int
	ValidAfter  *big.Int
	ValidBefore *big.Int
	Nonce       [32]byte
}

// CreatePaymentHeader signs a transferWithAuthorization paying option in full
// and returns it as a base64 payment header. The authorization is valid from
// now until now plus the option's maxTimeoutSeconds.
func (s *ClientSigner) CreatePaymentHeader(ctx context.Context, option x402.PaymentOption) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if option.Scheme != x402.SchemeExact {
		return "", fmt.Errorf("unsupported scheme %q", option.Scheme)
	}
	if !common.IsHexAddress(option.PayTo) {
		return "", fmt.Errorf("invalid payTo address %q", option.PayTo)
	}
	if !common.IsHexAddress(option.Asset) {
		return "", fmt.Errorf("invalid asset address %q", option.Asset)
	}
	value, ok := new(big.Int).SetString(option.MaxAmountRequired, 10)
	if !ok || value.Sign() <= 0 {
		return "", fmt.Errorf("invalid maxAmountRequired %q", option.MaxAmountRequired)
	}

	timeout := option.MaxTimeoutSeconds
	if timeout <= 0 {
		timeout = x402.DefaultMaxTimeoutSeconds
	}

	auth := Authorization{
		From:        s.address,
		To:          common.HexToAddress(option.PayTo),
		Value:       value,
		ValidAfter:  big.NewInt(0),
		ValidBefore: big.NewInt(s.now().Unix() + int64(timeout)),
	}
	if _, err := rand.Read(auth.Nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	typedData, err := TransferAuthorizationTypedData(option, auth)
	if err != nil {
		return "", err
	}
	signature, err := s.SignTypedData(typedData)
	if err != nil {
		return "", err
	}

	return x402.EncodePaymentHeader(x402.PaymentHeader{
		X402Version: x402.X402Version,
		Scheme:      x402.SchemeExact,
		Network:     option.Network,
		Payload: x402.ExactEvmPayload{
			From:        auth.From.Hex(),
			To:          auth.To.Hex(),
			Value:       auth.Value.String(),
			ValidAfter:  jsonInt(auth.ValidAfter),
			ValidBefore: jsonInt(auth.ValidBefore),
			Nonce:       hexutil.Encode(auth.Nonce[:]),
			Signature:   hexutil.Encode(signature),
			Asset:       common.HexToAddress(option.Asset).Hex(),
		},
	})
}

// TransferAuthorizationTypedData builds the EIP-712 document for auth against
// the token named by option. The domain name and version come from the
// option's extra fields when present, otherwise from the network's default asset.
func TransferAuthorizationTypedData(option x402.PaymentOption, auth Authorization) (apitypes.TypedData, error) {
	network, ok := x402.GetNetworkConfig(option.Network)
	if !ok {
		return apitypes.TypedData{}, fmt.Errorf("unsupported network %q", option.Network)
	}

	name, _ := option.Extra["name"].(string)
	version, _ := option.Extra["version"].(string)
	if name == "" || version == "" {
		if !strings.EqualFold(option.Asset, network.DefaultAsset.Address) {
			return apitypes.TypedData{}, errors.New("extra.name and extra.version are required for a non-default asset")
		}
		name = network.DefaultAsset.DomainName
		version = network.DefaultAsset.DomainVersion
	}

	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"TransferWithAuthorization": {
				{Name: "from", Type: "address"},
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "validAfter", Type: "uint256"},
				{Name: "validBefore", Type: "uint256"},
				{Name: "nonce", Type: "bytes32"},
			},
		},
		PrimaryType: "TransferWithAuthorization",
		Domain: apitypes.TypedDataDomain{
			Name:              name,
			Version:           version,
			ChainId:           (*math.HexOrDecimal256)(new(big.Int).Set(network.ChainID)),
			VerifyingContract: common.HexToAddress(option.Asset).Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"from":        auth.From.Hex(),
			"to":          auth.To.Hex(),
			"value":       new(big.Int).Set(auth.Value),
			"validAfter":  new(big.Int).Set(auth.ValidAfter),
			"validBefore": new(big.Int).Set(auth.ValidBefore),
			"nonce":       hexutil.Encode(auth.Nonce[:]),
		},
	}, nil
}

// SignTypedData signs an EIP-712 document and returns the 65-byte signature
// with v in {27, 28}.
func (s *ClientSigner) SignTypedData(typedData apitypes.TypedData) ([]byte, error) {
	// Hash the struct data
	dataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash struct: %w", err)
	}

	// Hash the domain
	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}

	// Create EIP-712 digest: 0x19 0x01 <domainSeparator> <dataHash>
	rawData := []byte{0x19, 0x01}
	rawData = append(rawData, domainSeparator...)
	rawData = append(rawData, dataHash...)
	digest := crypto.Keccak256(rawData)

	signature, err := crypto.Sign(digest, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}

	// Recovery ID 0/1 becomes 27/28
	signature[64] += 27
	return signature, nil
}

const erc20BalanceOfABI = `[{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`

// TokenBalance returns the signer's balance of an ERC-20 asset in base units.
// It requires WithEthClient.
func (s *ClientSigner) TokenBalance(ctx context.Context, asset string) (*big.Int, error) {
	out, err := s.ReadContract(ctx, asset, []byte(erc20BalanceOfABI), "balanceOf", s.address)
	if err != nil {
		return nil, err
	}
	balance, ok := out.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf result %T", out)
	}
	return balance, nil
}

// ReadContract reads data from a smart contract.
func (s *ClientSigner) ReadContract(
	ctx context.Context,
	contractAddress string,
	abiBytes []byte,
	functionName string,
	args ...interface{},
) (interface{}, error) {
	if s.ethClient == nil {
		return nil, errors.New("ReadContract requires an ethclient; use WithEthClient")
	}

	contractABI, err := abi.JSON(strings.NewReader(string(abiBytes)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}

	data, err := contractABI.Pack(functionName, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack method call: %w", err)
	}

	addr := common.HexToAddress(contractAddress)
	result, err := s.ethClient.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("contract call failed: %w", err)
	}

	outputs, err := contractABI.Unpack(functionName, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack result: %w", err)
	}

	if len(outputs) == 0 {
		return nil, nil
	}
	if len(outputs) == 1 {
		return outputs[0], nil
	}
	return outputs, nil
}

func jsonInt(v *big.Int) json.Number {
	return json.Number(v.String())
}
