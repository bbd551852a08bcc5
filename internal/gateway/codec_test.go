package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestCodecsRoundTripEvents(t *testing.T) {
	events := []Event{
		ContractResolved{Header: Header{ReqID: 3}, ContractID: 265598, SecType: SecTypeStock, Symbol: "AAPL"},
		ContractEnd{Header: Header{ReqID: 3}},
		PriceTick{Header: Header{ReqID: 5}, Field: TickLast, Price: 101.25},
		OptionComputation{Header: Header{ReqID: 9}, Field: TickModelOption, Delta: ptr(-0.31), OptionPrice: ptr(1.1)},
		OptionChain{Header: Header{ReqID: 4}, Exchange: "SMART", UnderlyingContractID: 1, Expirations: []string{"20240119"}, Strikes: []float64{95, 100}},
		ErrorNotice{Code: 2104, Message: "farm ok"},
		AccountList{Header: Header{ReqID: 7}, Accounts: []string{"DU1"}},
	}

	for _, name := range []string{"json", "msgpack"} {
		c, err := NewCodec(name)
		require.NoError(t, err)
		for _, ev := range events {
			data, err := EncodeEvent(c, ev)
			require.NoError(t, err, "%s %s", name, ev.Kind())
			got, err := DecodeEvent(c, data)
			require.NoError(t, err, "%s %s", name, ev.Kind())
			assert.Equal(t, ev, got, "%s %s", name, ev.Kind())
			assert.Equal(t, ev.RequestID(), got.RequestID())
		}
	}
}

func TestCodecAbsentGreeksStayNil(t *testing.T) {
	c := JSONCodec{}
	data, err := EncodeEvent(c, OptionComputation{Header: Header{ReqID: 2}, Field: TickModelOption, OptionPrice: ptr(2)})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "delta")

	ev, err := DecodeEvent(c, data)
	require.NoError(t, err)
	oc := ev.(OptionComputation)
	assert.Nil(t, oc.Delta)
	require.NotNil(t, oc.OptionPrice)
	assert.Equal(t, 2.0, *oc.OptionPrice)
}

func TestCodecsRoundTripCommands(t *testing.T) {
	cmds := []Outbound{
		{ID: 1, Command: ResolveContract{SecType: SecTypeStock, Symbol: "AAPL", Exchange: "SMART", Currency: "USD"}},
		{ID: 2, Command: SubscribeQuote{ContractID: 10, SecType: SecTypeOption, GenericTicks: "106"}},
		{ID: 3, Command: CancelQuote{Target: 2}},
		{ID: 4, Command: OptionParams{UnderlyingSymbol: "AAPL", UnderlyingSecType: SecTypeStock, UnderlyingContractID: 10}},
		{ID: 5, Command: Positions{}},
	}
	for _, c := range []Codec{JSONCodec{}, MsgpackCodec{}} {
		for _, out := range cmds {
			data, err := EncodeCommand(c, out)
			require.NoError(t, err)
			got, err := DecodeCommand(c, data)
			require.NoError(t, err)
			assert.Equal(t, out, got, c.Name())
		}
	}
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := DecodeEvent(JSONCodec{}, []byte(`{"type":"bogus","req_id":1}`))
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = NewCodec("xml")
	assert.Error(t, err)
}

func TestCommandValidate(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		ok   bool
	}{
		{"stock", ResolveContract{SecType: SecTypeStock, Symbol: "AAPL"}, true},
		{"stock without symbol", ResolveContract{SecType: SecTypeStock}, false},
		{"option", ResolveContract{SecType: SecTypeOption, Symbol: "AAPL", Expiration: "20240119", Strike: 100, Right: RightPut}, true},
		{"option bad expiry", ResolveContract{SecType: SecTypeOption, Symbol: "AAPL", Expiration: "2024-01-19", Strike: 100, Right: RightPut}, false},
		{"option bad right", ResolveContract{SecType: SecTypeOption, Symbol: "AAPL", Expiration: "20240119", Strike: 100}, false},
		{"params without conid", OptionParams{UnderlyingSymbol: "AAPL"}, false},
		{"subscribe without conid", SubscribeQuote{}, false},
		{"cancel zero", CancelQuote{}, false},
		{"summary", AccountSummary{Group: "All", Tags: "NetLiquidation"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrMalformed)
			}
		})
	}
}

func TestKindNames(t *testing.T) {
	seen := map[string]bool{}
	for k := EventKind(0); k < NumEventKinds; k++ {
		name := k.String()
		assert.NotEmpty(t, name)
		assert.False(t, seen[name], "duplicate %s", name)
		seen[name] = true
		_, ok := eventDecoders[name]
		assert.True(t, ok, "no decoder for %s", name)
	}
	for _, k := range CommandKinds() {
		_, ok := commandDecoders[k.String()]
		assert.True(t, ok, "no decoder for %s", k)
	}
	assert.True(t, CmdSubscribeQuote.Streaming())
	assert.False(t, CmdResolveContract.Streaming())
}
