package constantproduct

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Payloads are ABI-encoded tuples, the calling convention pools are driven with on chain.
var (
	addressType = mustType("address")
	uint256Type = mustType("uint256")
	boolType    = mustType("bool")
	bytesType   = mustType("bytes")

	// (address tokenA, address tokenB, uint256 swapFee, bool twapSupport)
	deployArgs = abi.Arguments{{Type: addressType}, {Type: addressType}, {Type: uint256Type}, {Type: boolType}}
	// (address recipient)
	recipientArgs = abi.Arguments{{Type: addressType}}
	// (address token, address recipient)
	tradeArgs = abi.Arguments{{Type: addressType}, {Type: addressType}}
	// (address tokenIn, address recipient, uint256 amountIn, bytes context)
	flashSwapArgs = abi.Arguments{{Type: addressType}, {Type: addressType}, {Type: uint256Type}, {Type: bytesType}}
	// (address token, uint256 amount)
	quoteArgs = abi.Arguments{{Type: addressType}, {Type: uint256Type}}
)

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// EncodeDeployData packs pool parameters into a deploy payload.
func EncodeDeployData(tokenA, tokenB common.Address, swapFeeBps uint64, twapEnabled bool) ([]byte, error) {
	return deployArgs.Pack(tokenA, tokenB, new(big.Int).SetUint64(swapFeeBps), twapEnabled)
}

// DecodeDeployData unpacks a deploy payload. The returned Config has no ID or Address.
func DecodeDeployData(data []byte) (Config, error) {
	values, err := unpack(deployArgs, data)
	if err != nil {
		return Config{}, err
	}
	fee := values[2].(*big.Int)
	if !fee.IsUint64() {
		return Config{}, fmt.Errorf("%w: %s", ErrInvalidSwapFee, fee)
	}
	return Config{
		TokenA:      values[0].(common.Address),
		TokenB:      values[1].(common.Address),
		SwapFeeBps:  fee.Uint64(),
		TwapEnabled: values[3].(bool),
	}, nil
}

// EncodeRecipient packs the payload of MintData and BurnData.
func EncodeRecipient(recipient common.Address) ([]byte, error) {
	return recipientArgs.Pack(recipient)
}

// EncodeTrade packs the payload of SwapData (token is tokenIn) and BurnSingleData
// (token is tokenOut).
func EncodeTrade(token, recipient common.Address) ([]byte, error) {
	return tradeArgs.Pack(token, recipient)
}

// EncodeFlashSwap packs the payload of FlashSwapData.
func EncodeFlashSwap(tokenIn, recipient common.Address, amountIn *uint256.Int, callbackData []byte) ([]byte, error) {
	if callbackData == nil {
		callbackData = []byte{}
	}
	return flashSwapArgs.Pack(tokenIn, recipient, amountIn.ToBig(), callbackData)
}

// EncodeQuote packs the payload of GetAmountOutData and GetAmountInData.
func EncodeQuote(token common.Address, amount *uint256.Int) ([]byte, error) {
	return quoteArgs.Pack(token, amount.ToBig())
}

// MintData is Mint driven by an encoded (address recipient) payload.
func (p *Pool) MintData(data []byte) (*uint256.Int, error) {
	values, err := unpack(recipientArgs, data)
	if err != nil {
		return nil, err
	}
	return p.Mint(values[0].(common.Address))
}

// BurnData is Burn driven by an encoded (address recipient) payload.
func (p *Pool) BurnData(data []byte) (amountA, amountB *uint256.Int, err error) {
	values, err := unpack(recipientArgs, data)
	if err != nil {
		return nil, nil, err
	}
	return p.Burn(values[0].(common.Address))
}

// BurnSingleData is BurnSingle driven by an encoded (address tokenOut, address recipient) payload.
func (p *Pool) BurnSingleData(data []byte) (*uint256.Int, error) {
	values, err := unpack(tradeArgs, data)
	if err != nil {
		return nil, err
	}
	return p.BurnSingle(values[0].(common.Address), values[1].(common.Address))
}

// SwapData is Swap driven by an encoded (address tokenIn, address recipient) payload.
func (p *Pool) SwapData(data []byte) (*uint256.Int, error) {
	values, err := unpack(tradeArgs, data)
	if err != nil {
		return nil, err
	}
	return p.Swap(values[0].(common.Address), values[1].(common.Address))
}

// FlashSwapData is FlashSwap driven by an encoded payload; the trailing bytes are
// handed to callee unchanged.
func (p *Pool) FlashSwapData(ctx context.Context, callee Callee, data []byte) (*uint256.Int, error) {
	values, err := unpack(flashSwapArgs, data)
	if err != nil {
		return nil, err
	}
	amountIn, overflow := uint256.FromBig(values[2].(*big.Int))
	if overflow {
		return nil, fmt.Errorf("%w: amountIn", ErrInvalidPayload)
	}
	return p.FlashSwap(ctx, callee, values[0].(common.Address), values[1].(common.Address), amountIn, values[3].([]byte))
}

// GetAmountOutData is GetAmountOut driven by an encoded (address tokenIn, uint256 amountIn) payload.
func (p *Pool) GetAmountOutData(data []byte) (*uint256.Int, error) {
	token, amount, err := unpackQuote(data)
	if err != nil {
		return nil, err
	}
	return p.GetAmountOut(token, amount)
}

// GetAmountInData is GetAmountIn driven by an encoded (address tokenOut, uint256 amountOut) payload.
func (p *Pool) GetAmountInData(data []byte) (*uint256.Int, error) {
	token, amount, err := unpackQuote(data)
	if err != nil {
		return nil, err
	}
	return p.GetAmountIn(token, amount)
}

func unpackQuote(data []byte) (common.Address, *uint256.Int, error) {
	values, err := unpack(quoteArgs, data)
	if err != nil {
		return common.Address{}, nil, err
	}
	amount, overflow := uint256.FromBig(values[1].(*big.Int))
	if overflow {
		return common.Address{}, nil, fmt.Errorf("%w: amount", ErrInvalidPayload)
	}
	return values[0].(common.Address), amount, nil
}

func unpack(args abi.Arguments, data []byte) ([]any, error) {
	values, err := args.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if len(values) != len(args) {
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrInvalidPayload, len(values), len(args))
	}
	return values, nil
}
