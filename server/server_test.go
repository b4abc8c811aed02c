package server_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	modbus "github.com/lyubov888L/ssst"
	"github.com/lyubov888L/ssst/device"
	"github.com/lyubov888L/ssst/server"
)

func TestBuildRejectsNothingAndServesOverTCP(t *testing.T) {
	cat := device.StandardCatalog()
	srv, err := server.Build(40000, []device.ModelSummary{
		{ID: 1, Length: 65},
		{ID: 103, Length: 50},
	}, cat)
	require.NoError(t, err)

	m, ok := srv.Model(103)
	require.True(t, ok)
	require.NoError(t, m.WritePoint("W_SF", -1))
	require.NoError(t, m.WritePoint("W", 500))

	wDef, ok := m.Point("W")
	require.True(t, ok)
	wAddr := m.Addr + wDef.Offset // point_address(point) = model_addr + point.offset

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := modbus.Config{Mode: "tcp", Kind: "tcp", Endpoint: "127.0.0.1:15602"}
	go srv.Serve(ctx, cfg)
	time.Sleep(50 * time.Millisecond)

	c := &modbus.Client{Config: cfg}
	defer c.Disconnect()

	sentinel, err := c.ReadHoldingRegisters(ctx, 0x01, 40000, 2)
	require.NoError(t, err)
	assert.Equal(t, device.BaseAddressSentinel[:], sentinel)

	values, err := c.ReadHoldingRegisters(ctx, 0x01, wAddr, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0xF4}, values) // 500

	err = c.WriteMultipleRegisters(ctx, 0x01, wAddr, []byte{0x03, 0xE8}) // 1000
	require.NoError(t, err)
	raw, err := m.ReadPoint("W")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), raw)
}

func TestPointAddressMatchesModelHeaderRelativeOffset(t *testing.T) {
	// Spec scenario: summaries (1,66),(17,12),(103,50),(126,226) at base
	// 40000 place model 17 at model_addr=40070; its "Bits" point at
	// offset 8 resolves to address 40078 = model_addr + offset, with no
	// extra header adjustment.
	srv, err := server.Build(40000, []device.ModelSummary{
		{ID: 1, Length: 66},
		{ID: 17, Length: 12},
		{ID: 103, Length: 50},
		{ID: 126, Length: 226},
	}, device.StandardCatalog())
	require.NoError(t, err)

	m17, ok := srv.Model(17)
	require.True(t, ok)
	assert.Equal(t, uint16(40070), m17.Addr)

	bits, ok := m17.Point("Bits")
	require.True(t, ok)
	assert.Equal(t, m17.Addr+bits.Offset, uint16(40078))
}

func TestGetValuesOutOfRangeYieldsIllegalDataAddress(t *testing.T) {
	srv, err := server.Build(40000, []device.ModelSummary{{ID: 1, Length: 10}}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := modbus.Config{Mode: "tcp", Kind: "tcp", Endpoint: "127.0.0.1:15603"}
	go srv.Serve(ctx, cfg)
	time.Sleep(50 * time.Millisecond)

	c := &modbus.Client{Config: cfg}
	defer c.Disconnect()

	_, err = c.ReadHoldingRegisters(ctx, 0x01, srv.Image.EndAddr(), 1)
	require.Error(t, err)
	ex, ok := err.(modbus.Exception)
	require.True(t, ok)
	assert.Equal(t, modbus.ExIllegalDataAddress.Code(), ex.Code())
}
