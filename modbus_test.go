package modbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	modbus "github.com/lyubov888L/ssst"
)

func TestClientServerReadWriteHoldingRegisters(t *testing.T) {
	store := make([]byte, 20)

	h := &modbus.Mux{
		ReadHoldingRegisters: func(ctx context.Context, address, quantity uint16) ([]byte, modbus.Exception) {
			if int(address)+int(quantity) > len(store)/2 {
				return nil, modbus.ExIllegalDataAddress
			}
			return store[2*address : 2*(address+quantity)], nil
		},
		WriteMultipleRegisters: func(ctx context.Context, address uint16, values []byte) modbus.Exception {
			if int(address)+len(values)/2 > len(store)/2 {
				return modbus.ExIllegalDataAddress
			}
			copy(store[2*address:], values)
			return nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := &modbus.Server{}
	cfg := modbus.Config{Mode: "tcp", Kind: "tcp", Endpoint: "127.0.0.1:15502"}
	go srv.Serve(ctx, cfg, h)
	time.Sleep(50 * time.Millisecond)

	client := &modbus.Client{Config: cfg}
	defer client.Disconnect()

	err := client.WriteMultipleRegisters(ctx, 0x01, 2, []byte{0xAB, 0x98})
	require.NoError(t, err)

	values, err := client.ReadHoldingRegisters(ctx, 0x01, 2, 1)
	require.NoError(t, err)
	require.Equal(t, []byte{0xAB, 0x98}, values)
}

func TestClientReadOutOfRangeYieldsException(t *testing.T) {
	h := &modbus.Mux{
		ReadHoldingRegisters: func(ctx context.Context, address, quantity uint16) ([]byte, modbus.Exception) {
			return nil, modbus.ExIllegalDataAddress
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := &modbus.Server{}
	cfg := modbus.Config{Mode: "tcp", Kind: "tcp", Endpoint: "127.0.0.1:15503"}
	go srv.Serve(ctx, cfg, h)
	time.Sleep(50 * time.Millisecond)

	client := &modbus.Client{Config: cfg}
	defer client.Disconnect()

	_, err := client.ReadHoldingRegisters(ctx, 0x01, 0, 1)
	require.Error(t, err)
	ex, ok := err.(modbus.Exception)
	require.True(t, ok)
	require.Equal(t, byte(0x02), ex.Code())
}
