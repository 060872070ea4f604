package sbt

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/chainsafe/wallet-orchestrator/pkg/app/errors"
	"github.com/chainsafe/wallet-orchestrator/pkg/orchestrator"
	"github.com/chainsafe/wallet-orchestrator/pkg/wallet"
)

var (
	sbtAddr  = common.HexToAddress("0x519f46ae0962abe5BF3516B225c3181914A3F735")
	userAddr = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
)

type fakeState struct {
	state wallet.ConnectionState
}

func (f fakeState) State() wallet.ConnectionState { return f.state }

func connected() fakeState {
	addr := userAddr
	return fakeState{state: wallet.ConnectionState{Status: wallet.StatusConnected, Address: &addr, ChainID: 337}}
}

// MockCaller answers SBT reads from its fields.
type MockCaller struct {
	Price    *big.Int
	Balance  *big.Int
	TokenID  *big.Int
	URI      string
	FailFunc func(fn string) error
	calls    []string
}

func (m *MockCaller) Call(_ context.Context, target common.Address, fn string, args ...any) (any, error) {
	m.calls = append(m.calls, fn)
	if target != sbtAddr {
		return nil, errors.New("unexpected target")
	}
	if m.FailFunc != nil {
		if err := m.FailFunc(fn); err != nil {
			return nil, err
		}
	}
	switch fn {
	case "mintPrice":
		return m.Price, nil
	case "balanceOf":
		return m.Balance, nil
	case "tokenOfOwnerByIndex":
		return m.TokenID, nil
	case "tokenURI":
		return m.URI, nil
	}
	return nil, errors.New("unknown function " + fn)
}

// MockSubmitter captures the submitted request.
type MockSubmitter struct {
	requests []orchestrator.Request
}

func (m *MockSubmitter) Submit(_ context.Context, req orchestrator.Request) (*orchestrator.Record, error) {
	m.requests = append(m.requests, req)
	return &orchestrator.Record{ID: "rec", Status: orchestrator.StatusConfirmed, FunctionUsed: req.FunctionID}, nil
}

func testConfig() Config {
	return Config{
		Contract:     sbtAddr,
		NamePrefix:   "Mytestbct SBT",
		Description:  "Soul-bound token",
		DefaultImage: "ipfs://image",
	}
}

func TestMetadata_RoundTrip(t *testing.T) {
	in := Metadata{Name: "My Token & more", Description: "100% soul-bound", Image: "ipfs://x"}
	uri, err := EncodeMetadata(in)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "data:application/json,"))
	assert.NotContains(t, uri, " ")
	assert.NotContains(t, uri, "+")
	assert.Contains(t, uri, "My%20Token")

	out, ok := DecodeMetadata(uri)
	require.True(t, ok)
	assert.Equal(t, in, out)
}

func TestDecodeMetadata_Rejects(t *testing.T) {
	for _, uri := range []string{
		"ipfs://QmHash",
		"https://example.com/1.json",
		"data:application/json",
		"data:application/json,%7Bnot-json",
		"data:application/json,%zz",
	} {
		_, ok := DecodeMetadata(uri)
		assert.False(t, ok, uri)
	}
}

func TestStatus_RequiresConnection(t *testing.T) {
	svc := NewService(&MockCaller{}, fakeState{}, &MockSubmitter{}, testConfig(), nil)
	_, err := svc.Status(context.Background())
	assert.ErrorIs(t, err, wallet.ErrNotConnected)
	assert.True(t, apperrors.Is(err, apperrors.CategoryConnection))
}

func TestStatus_NoTokenSkipsOwnerReads(t *testing.T) {
	caller := &MockCaller{Price: big.NewInt(1e16), Balance: big.NewInt(0)}
	svc := NewService(caller, connected(), &MockSubmitter{}, testConfig(), nil)

	st, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0.01", st.MintPriceFormatted)
	assert.Nil(t, st.Owned)
	assert.Empty(t, st.Errors)
	assert.Equal(t, []string{"mintPrice", "balanceOf"}, caller.calls)
}

func TestStatus_DecodesOwnedToken(t *testing.T) {
	uri, err := EncodeMetadata(Metadata{Name: "Alice", Description: "mine"})
	require.NoError(t, err)
	caller := &MockCaller{Price: big.NewInt(1), Balance: big.NewInt(1), TokenID: big.NewInt(0), URI: uri}
	svc := NewService(caller, connected(), &MockSubmitter{}, testConfig(), nil)

	st, err := svc.Status(context.Background())
	require.NoError(t, err)
	require.NotNil(t, st.Owned)
	assert.Equal(t, int64(0), st.Owned.ID.Int64())
	assert.Equal(t, "Alice", st.Owned.Metadata.Name)
	assert.Equal(t, "mine", st.Owned.Metadata.Description)
	assert.Equal(t, "ipfs://image", st.Owned.Metadata.Image)
}

func TestStatus_NonDataURIUsesDefaults(t *testing.T) {
	caller := &MockCaller{Price: big.NewInt(1), Balance: big.NewInt(1), TokenID: big.NewInt(7), URI: "ipfs://QmHash"}
	svc := NewService(caller, connected(), &MockSubmitter{}, testConfig(), nil)

	st, err := svc.Status(context.Background())
	require.NoError(t, err)
	require.NotNil(t, st.Owned)
	assert.Equal(t, "ipfs://QmHash", st.Owned.URI)
	assert.Equal(t, "Mytestbct SBT #7", st.Owned.Metadata.Name)
	assert.Equal(t, "Soul-bound token", st.Owned.Metadata.Description)
}

func TestStatus_ReadFailuresAreReported(t *testing.T) {
	caller := &MockCaller{
		Balance: big.NewInt(1),
		TokenID: big.NewInt(3),
		FailFunc: func(fn string) error {
			if fn == "mintPrice" || fn == "tokenURI" {
				return errors.New("execution reverted")
			}
			return nil
		},
	}
	svc := NewService(caller, connected(), &MockSubmitter{}, testConfig(), nil)

	st, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.Contains(t, st.Errors, "mintPrice")
	assert.Contains(t, st.Errors, "tokenURI")
	assert.Equal(t, "0", st.MintPriceFormatted)
	require.NotNil(t, st.Owned)
	assert.Equal(t, "Mytestbct SBT #3", st.Owned.Metadata.Name)
}

func TestMint_SubmitsWithPrice(t *testing.T) {
	caller := &MockCaller{Price: big.NewInt(5000), Balance: big.NewInt(0)}
	submitter := &MockSubmitter{}
	svc := NewService(caller, connected(), submitter, testConfig(), nil)

	record, err := svc.Mint(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, "mintWithPayment", record.FunctionUsed)

	require.Len(t, submitter.requests, 1)
	req := submitter.requests[0]
	assert.Equal(t, sbtAddr.Hex(), req.Target)
	assert.Equal(t, big.NewInt(5000), req.NativeValue)
	require.Len(t, req.Args, 1)

	m, ok := DecodeMetadata(req.Args[0].(string))
	require.True(t, ok)
	assert.Equal(t, "Mytestbct SBT", m.Name)
	assert.Equal(t, "Soul-bound token", m.Description)
	assert.Equal(t, "ipfs://image", m.Image)
}

func TestMint_RejectsSecondToken(t *testing.T) {
	caller := &MockCaller{Price: big.NewInt(1), Balance: big.NewInt(1), TokenID: big.NewInt(1), URI: "ipfs://x"}
	submitter := &MockSubmitter{}
	svc := NewService(caller, connected(), submitter, testConfig(), nil)

	_, err := svc.Mint(context.Background(), "again", "")
	assert.ErrorIs(t, err, ErrAlreadyOwned)
	assert.True(t, apperrors.Is(err, apperrors.CategoryValidation))
	assert.Empty(t, submitter.requests)
}

func TestMint_UnknownPrice(t *testing.T) {
	caller := &MockCaller{
		Balance:  big.NewInt(0),
		FailFunc: func(fn string) error { return map[string]error{"mintPrice": errors.New("boom")}[fn] },
	}
	submitter := &MockSubmitter{}
	svc := NewService(caller, connected(), submitter, testConfig(), nil)

	_, err := svc.Mint(context.Background(), "x", "y")
	assert.ErrorIs(t, err, ErrPriceUnknown)
	assert.True(t, apperrors.Is(err, apperrors.CategoryRead))
	assert.Empty(t, submitter.requests)
}
