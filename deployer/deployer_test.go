package deployer

import (
	"log/slog"
	"testing"

	"github.com/defistate/cpamm-go/ledger"
	"github.com/defistate/cpamm-go/protocols/constantproduct"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	deployerAddr = common.HexToAddress("0xde9107e5")
	owner        = common.HexToAddress("0x0a11")
	treasury     = common.HexToAddress("0x7ea5")
	tokenA       = common.HexToAddress("0x01")
	tokenB       = common.HexToAddress("0x02")
)

func newTestDeployer(t *testing.T) (*MasterDeployer, *ledger.Memory) {
	t.Helper()
	l := ledger.NewMemory()
	d, err := New(&Config{
		Address: deployerAddr,
		Owner:   owner,
		Ledger:  l,
		Logger:  slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)
	return d, l
}

func deployData(t *testing.T, a, b common.Address, fee uint64) []byte {
	t.Helper()
	data, err := constantproduct.EncodeDeployData(a, b, fee, false)
	require.NoError(t, err)
	return data
}

func TestNew(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	testCases := []struct {
		name string
		cfg  Config
	}{
		{name: "should require an address", cfg: Config{Ledger: ledger.NewMemory(), Logger: logger}},
		{name: "should require a ledger", cfg: Config{Address: deployerAddr, Logger: logger}},
		{name: "should require a logger", cfg: Config{Address: deployerAddr, Ledger: ledger.NewMemory()}},
		{name: "should reject a bar fee above 10000", cfg: Config{Address: deployerAddr, Ledger: ledger.NewMemory(), Logger: logger, BarFee: 10001}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(&tc.cfg)
			assert.Error(t, err)
		})
	}
}

func TestDeployPool(t *testing.T) {
	t.Run("should deploy at the CREATE2 address", func(t *testing.T) {
		d, _ := newTestDeployer(t)
		data := deployData(t, tokenA, tokenB, 30)

		pool, err := d.DeployPool(data)
		require.NoError(t, err)

		expected := crypto.CreateAddress2(deployerAddr, crypto.Keccak256Hash(data), crypto.Keccak256([]byte("ConstantProduct:30bps")))
		assert.Equal(t, expected, pool.Address())
		assert.Equal(t, uint64(1), pool.ID())

		predicted, err := d.PoolAddress(data)
		require.NoError(t, err)
		assert.Equal(t, expected, predicted)
	})

	t.Run("should treat both token orders as the same pool", func(t *testing.T) {
		d, _ := newTestDeployer(t)
		_, err := d.DeployPool(deployData(t, tokenB, tokenA, 30))
		require.NoError(t, err)

		_, err = d.DeployPool(deployData(t, tokenA, tokenB, 30))
		assert.ErrorIs(t, err, ErrPoolExists)
	})

	t.Run("should deploy one pool per fee tier", func(t *testing.T) {
		d, _ := newTestDeployer(t)
		p30, err := d.DeployPool(deployData(t, tokenA, tokenB, 30))
		require.NoError(t, err)
		p5, err := d.DeployPool(deployData(t, tokenA, tokenB, 5))
		require.NoError(t, err)

		assert.NotEqual(t, p30.Address(), p5.Address())
		assert.Equal(t, uint64(2), p5.ID())
		assert.Equal(t, []*constantproduct.Pool{p30, p5}, d.Pools())
	})

	t.Run("should reject a zero token in either position", func(t *testing.T) {
		d, _ := newTestDeployer(t)
		_, err := d.DeployPool(deployData(t, common.Address{}, tokenA, 30))
		assert.ErrorIs(t, err, constantproduct.ErrZeroAddress)
		_, err = d.DeployPool(deployData(t, tokenA, common.Address{}, 30))
		assert.ErrorIs(t, err, constantproduct.ErrZeroAddress)
		assert.Empty(t, d.Pools())
	})

	t.Run("should surface pool validation errors", func(t *testing.T) {
		d, _ := newTestDeployer(t)
		_, err := d.DeployPool(deployData(t, tokenA, tokenA, 30))
		assert.ErrorIs(t, err, constantproduct.ErrIdenticalAddresses)
		_, err = d.DeployPool(deployData(t, tokenA, tokenB, 10001))
		assert.ErrorIs(t, err, constantproduct.ErrInvalidSwapFee)
		_, err = d.DeployPool([]byte("nope"))
		assert.ErrorIs(t, err, constantproduct.ErrInvalidPayload)
	})
}

func TestLookups(t *testing.T) {
	d, _ := newTestDeployer(t)
	pool, err := d.DeployPool(deployData(t, tokenA, tokenB, 30))
	require.NoError(t, err)

	got, err := d.Pool(pool.Address())
	require.NoError(t, err)
	assert.Same(t, pool, got)

	got, err = d.PoolByID(1)
	require.NoError(t, err)
	assert.Same(t, pool, got)

	_, err = d.Pool(tokenA)
	assert.ErrorIs(t, err, ErrPoolNotFound)
	_, err = d.PoolByID(2)
	assert.ErrorIs(t, err, ErrPoolNotFound)

	views := d.Views()
	require.Len(t, views, 1)
	assert.Equal(t, pool.Address(), views[0].Address)
}

func TestBarFee(t *testing.T) {
	d, l := newTestDeployer(t)
	pool, err := d.DeployPool(deployData(t, tokenA, tokenB, 30))
	require.NoError(t, err)

	t.Run("should reject non-owners", func(t *testing.T) {
		assert.ErrorIs(t, d.SetBarFee(treasury, 100), ErrUnauthorized)
		assert.ErrorIs(t, d.SetBarFeeTo(treasury, treasury), ErrUnauthorized)
	})

	t.Run("should reject a bar fee above 10000", func(t *testing.T) {
		assert.ErrorIs(t, d.SetBarFee(owner, 10001), ErrInvalidBarFee)
	})

	t.Run("should push new settings to deployed pools", func(t *testing.T) {
		require.NoError(t, d.SetBarFee(owner, 1667))
		require.NoError(t, d.SetBarFeeTo(owner, treasury))

		fee, to := pool.BarFee()
		assert.Equal(t, uint64(1667), fee)
		assert.Equal(t, treasury, to)
	})

	t.Run("should hand the current settings to new pools", func(t *testing.T) {
		p, err := d.DeployPool(deployData(t, tokenA, tokenB, 100))
		require.NoError(t, err)
		fee, to := p.BarFee()
		assert.Equal(t, uint64(1667), fee)
		assert.Equal(t, treasury, to)
	})

	t.Run("should let pools trade against the shared ledger", func(t *testing.T) {
		lp := common.HexToAddress("0x1b")
		amount := uint256.NewInt(1_000_000)
		require.NoError(t, l.Credit(tokenA, lp, amount))
		require.NoError(t, l.Credit(tokenB, lp, amount))
		require.NoError(t, l.Transfer(tokenA, lp, pool.Address(), amount))
		require.NoError(t, l.Transfer(tokenB, lp, pool.Address(), amount))

		shares, err := pool.Mint(lp)
		require.NoError(t, err)
		assert.Equal(t, uint256.NewInt(999_000), shares)
	})
}
