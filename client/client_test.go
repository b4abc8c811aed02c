package client_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	modbus "github.com/lyubov888L/ssst"
	"github.com/lyubov888L/ssst/client"
	"github.com/lyubov888L/ssst/device"
	"github.com/lyubov888L/ssst/server"
)

func startTestServer(t *testing.T, endpoint string, summaries []device.ModelSummary) *server.Server {
	t.Helper()
	cat := device.StandardCatalog()
	srv, err := server.Build(40000, summaries, cat)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := modbus.Config{Mode: "tcp", Kind: "tcp", Endpoint: endpoint}
	go srv.Serve(ctx, cfg)
	time.Sleep(50 * time.Millisecond)
	return srv
}

func TestScanDiscoversModelListInOrder(t *testing.T) {
	summaries := []device.ModelSummary{
		{ID: 1, Length: 65},
		{ID: 17, Length: 12},
		{ID: 103, Length: 50},
		{ID: 126, Length: 226},
	}
	startTestServer(t, "127.0.0.1:15702", summaries)

	cat := device.StandardCatalog()
	cfg := modbus.Config{Mode: "tcp", Kind: "tcp", Endpoint: "127.0.0.1:15702", UnitID: 0x01}
	c := client.New(cfg, cat)
	defer c.Disconnect()

	require.NoError(t, c.Scan(context.Background()))
	require.Len(t, c.Image.Models, 4)
	for i, s := range summaries {
		assert.Equal(t, s.ID, c.Image.Models[i].ID)
		assert.Equal(t, s.Length, c.Image.Models[i].Length)
	}
	m126, ok := c.Model(126)
	require.True(t, ok)
	assert.Nil(t, m126.Def, "model 126 is unregistered and must remain opaque on the client too")
}

func TestReadPointAppliesScaleFactor(t *testing.T) {
	srv := startTestServer(t, "127.0.0.1:15703", []device.ModelSummary{{ID: 103, Length: 50}})
	m, _ := srv.Model(103)
	require.NoError(t, m.WritePoint("W_SF", -1))
	require.NoError(t, m.WritePoint("W", 2345))

	cat := device.StandardCatalog()
	cfg := modbus.Config{Mode: "tcp", Kind: "tcp", Endpoint: "127.0.0.1:15703", UnitID: 0x01}
	c := client.New(cfg, cat)
	defer c.Disconnect()
	require.NoError(t, c.Scan(context.Background()))

	v, err := c.ReadPoint(context.Background(), 103, "W")
	require.NoError(t, err)
	assert.Equal(t, 234.5, v)
}

func TestWritePointRoundTripsThroughLocalImage(t *testing.T) {
	startTestServer(t, "127.0.0.1:15704", []device.ModelSummary{{ID: 103, Length: 50}})

	cat := device.StandardCatalog()
	cfg := modbus.Config{Mode: "tcp", Kind: "tcp", Endpoint: "127.0.0.1:15704", UnitID: 0x01}
	c := client.New(cfg, cat)
	defer c.Disconnect()
	require.NoError(t, c.Scan(context.Background()))

	require.NoError(t, c.WritePoint(context.Background(), 103, "W_SF", 0))
	require.NoError(t, c.WritePoint(context.Background(), 103, "W", 77))

	m, ok := c.Model(103)
	require.True(t, ok)
	raw, err := m.ReadPoint("W")
	require.NoError(t, err)
	assert.Equal(t, int64(77), raw)

	v, err := c.ReadPoint(context.Background(), 103, "W")
	require.NoError(t, err)
	assert.Equal(t, 77.0, v)
}

func TestPointAddressMatchesModelLayout(t *testing.T) {
	startTestServer(t, "127.0.0.1:15705", []device.ModelSummary{{ID: 103, Length: 50}})

	cat := device.StandardCatalog()
	cfg := modbus.Config{Mode: "tcp", Kind: "tcp", Endpoint: "127.0.0.1:15705", UnitID: 0x01}
	c := client.New(cfg, cat)
	defer c.Disconnect()
	require.NoError(t, c.Scan(context.Background()))

	m, ok := c.Model(103)
	require.True(t, ok)
	wDef, ok := m.Point("W")
	require.True(t, ok)
	addr, ok := client.PointAddress(m, "W")
	require.True(t, ok)
	assert.Equal(t, m.Addr+wDef.Offset, addr)
}

func TestPointAddressMatchesSpecScenarioTwo(t *testing.T) {
	// summaries (1,66),(17,12),(103,50),(126,226) at base 40000 place
	// model 17 at model_addr=40070; its "Bits" point at offset 8 must
	// resolve to address 40078, with no extra header adjustment.
	summaries := []device.ModelSummary{
		{ID: 1, Length: 66},
		{ID: 17, Length: 12},
		{ID: 103, Length: 50},
		{ID: 126, Length: 226},
	}
	startTestServer(t, "127.0.0.1:15707", summaries)

	cat := device.StandardCatalog()
	cfg := modbus.Config{Mode: "tcp", Kind: "tcp", Endpoint: "127.0.0.1:15707", UnitID: 0x01}
	c := client.New(cfg, cat)
	defer c.Disconnect()
	require.NoError(t, c.Scan(context.Background()))

	m17, ok := c.Model(17)
	require.True(t, ok)
	assert.Equal(t, uint16(40070), m17.Addr)

	addr, ok := client.PointAddress(m17, "Bits")
	require.True(t, ok)
	assert.Equal(t, uint16(40078), addr)
}

func TestReadPointPreservesDependentScaledValueAcrossScaleFactorChange(t *testing.T) {
	srv := startTestServer(t, "127.0.0.1:15708", []device.ModelSummary{{ID: 103, Length: 50}})
	m, _ := srv.Model(103)
	require.NoError(t, m.WritePoint("W_SF", -1))
	require.NoError(t, m.WritePoint("W", 2730)) // scaled 273.0

	cat := device.StandardCatalog()
	cfg := modbus.Config{Mode: "tcp", Kind: "tcp", Endpoint: "127.0.0.1:15708", UnitID: 0x01}
	c := client.New(cfg, cat)
	defer c.Disconnect()
	require.NoError(t, c.Scan(context.Background()))

	v, err := c.ReadPoint(context.Background(), 103, "W")
	require.NoError(t, err)
	assert.Equal(t, 273.0, v)

	// The scale factor changes out from under the client (e.g. another
	// master rewrote it). Reading W again must still observe 273.0, even
	// though W's raw register value has to change to do so.
	require.NoError(t, m.WritePoint("W_SF", -2))

	v, err = c.ReadPoint(context.Background(), 103, "W")
	require.NoError(t, err)
	assert.Equal(t, 273.0, v)

	rawAfter, err := m.ReadPoint("W")
	require.NoError(t, err)
	assert.Equal(t, int64(27300), rawAfter)
}

func TestScanFailsWhenSentinelIsMissing(t *testing.T) {
	// A bare tcp server with no SunSpec handler wired never answers with
	// the sentinel; every configured base address candidate reads as
	// zeros, so the scan must fail closed.
	h := &modbus.Mux{
		ReadHoldingRegisters: func(ctx context.Context, address, quantity uint16) ([]byte, modbus.Exception) {
			return make([]byte, 2*int(quantity)), nil
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := &modbus.Server{}
	cfg := modbus.Config{Mode: "tcp", Kind: "tcp", Endpoint: "127.0.0.1:15706"}
	go srv.Serve(ctx, cfg, h)
	time.Sleep(50 * time.Millisecond)

	c := client.New(modbus.Config{Mode: "tcp", Kind: "tcp", Endpoint: "127.0.0.1:15706", UnitID: 0x01}, nil)
	defer c.Disconnect()

	err := c.Scan(context.Background())
	require.Error(t, err)
	var notFoundErr *device.BaseAddressNotFoundError
	require.ErrorAs(t, err, &notFoundErr)
}
