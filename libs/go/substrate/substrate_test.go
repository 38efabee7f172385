package substrate_test

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaelCarinha/tao-dividends/libs/go/substrate"
	"github.com/rafaelCarinha/tao-dividends/libs/go/substrate/substratetest"
)

const (
	aliceHex = "d43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"
	alice    = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	bobHex   = "8eaf04151687736326c9fea17e25fc5287613693c912909cb226aa4794f26a48"
	bob      = "5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestEncodeSS58(t *testing.T) {
	addr, err := substrate.EncodeSS58(mustHex(t, aliceHex), substrate.BittensorSS58Prefix)
	require.NoError(t, err)
	assert.Equal(t, alice, addr)

	addr, err = substrate.EncodeSS58(mustHex(t, bobHex), substrate.BittensorSS58Prefix)
	require.NoError(t, err)
	assert.Equal(t, bob, addr)

	_, err = substrate.EncodeSS58([]byte{1, 2, 3}, substrate.BittensorSS58Prefix)
	assert.ErrorIs(t, err, substrate.ErrInvalidAccountID)
}

func TestTwox128(t *testing.T) {
	assert.Equal(t, "26aa394eea5630e07c48ae0c9558cef7", hex.EncodeToString(substrate.Twox128([]byte("System"))))
	assert.Equal(t,
		"26aa394eea5630e07c48ae0c9558cef7b99d880ec681799c0cf30e8886371da9",
		hex.EncodeToString(substrate.StoragePrefix("System", "Account")),
	)
}

func TestScale(t *testing.T) {
	v, err := substrate.DecodeU64(substrate.EncodeU64(1_000_000_007))
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_007), v)

	n, err := substrate.DecodeU16([]byte{0x12, 0x00})
	require.NoError(t, err)
	assert.Equal(t, uint16(18), n)

	_, err = substrate.DecodeU64([]byte{1})
	assert.Error(t, err)
	_, err = substrate.DecodeHex("0xzz")
	assert.Error(t, err)
}

func seed(t *testing.T, node *substratetest.Node, netuid uint16, accountHex string, amount uint64) {
	t.Helper()
	key := substrate.U16AccountKey("SubtensorModule", "TaoDividendsPerSubnet", netuid, mustHex(t, accountHex))
	node.Put(key, substrate.EncodeU64(amount))
}

func dial(t *testing.T, node *substratetest.Node) *substrate.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := substrate.Dial(ctx, node.URL())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestConn_HeadBlock(t *testing.T) {
	node := substratetest.NewNode(t)
	conn := dial(t, node)

	hash, err := conn.HeadBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, substratetest.HeadHash, hash)
}

func TestConn_CallSurfacesRPCError(t *testing.T) {
	node := substratetest.NewNode(t)
	node.Fail("chain_getHead", &substrate.RPCError{Code: -32000, Message: "node syncing"})
	conn := dial(t, node)

	_, err := conn.HeadBlock(context.Background())
	var rpcErr *substrate.RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32000, rpcErr.Code)
}

func TestConn_QueryMapScoped(t *testing.T) {
	node := substratetest.NewNode(t)
	seed(t, node, 18, aliceHex, 42)
	seed(t, node, 18, bobHex, 7)
	seed(t, node, 3, aliceHex, 99)
	conn := dial(t, node)

	netuid := uint16(18)
	q := substrate.MapQuery{Module: "SubtensorModule", Item: "TaoDividendsPerSubnet", First: &netuid, PageSize: 1}

	got := map[string]uint64{}
	for entry, err := range conn.QueryMap(context.Background(), q, substratetest.HeadHash) {
		require.NoError(t, err)
		account, ok := entry.Key.([]byte)
		require.True(t, ok, "scoped key should be raw bytes, got %T", entry.Key)
		got[hex.EncodeToString(account)] = entry.Value.(uint64)
	}
	assert.Equal(t, map[string]uint64{aliceHex: 42, bobHex: 7}, got)
}

func TestConn_QueryMapUnscopedShapes(t *testing.T) {
	node := substratetest.NewNode(t)
	seed(t, node, 3, aliceHex, 99)
	conn := dial(t, node)

	q := substrate.MapQuery{Module: "SubtensorModule", Item: "TaoDividendsPerSubnet"}
	var entries []substrate.RawEntry
	for entry, err := range conn.QueryMap(context.Background(), q, substratetest.HeadHash) {
		require.NoError(t, err)
		entries = append(entries, entry)
	}
	require.Len(t, entries, 1)

	tuple, ok := entries[0].Key.([]any)
	require.True(t, ok)
	require.Len(t, tuple, 2)
	assert.Equal(t, 3, tuple[0])
	inner := tuple[1].([]any)
	require.Len(t, inner, 1)
	assert.Len(t, inner[0].([]any), substrate.AccountIDLen)
	assert.Equal(t, map[string]any{"key": 3, "value": uint64(99)}, entries[0].Value)
}

func TestConn_QueryMapYieldsTransportError(t *testing.T) {
	node := substratetest.NewNode(t)
	node.Fail("state_getKeysPaged", &substrate.RPCError{Code: -32000, Message: "boom"})
	conn := dial(t, node)

	q := substrate.MapQuery{Module: "SubtensorModule", Item: "TaoDividendsPerSubnet"}
	var errs int
	for _, err := range conn.QueryMap(context.Background(), q, substratetest.HeadHash) {
		if err != nil {
			errs++
		}
	}
	assert.Equal(t, 1, errs)
}

func TestDial_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := substrate.Dial(ctx, "ws://127.0.0.1:1")
	assert.Error(t, err)
}
