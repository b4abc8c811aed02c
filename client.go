package modbus

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/sirupsen/logrus"
)

// Client is the go implementation of a modbus master, trimmed to the two
// function codes a SunSpec device needs: read-holding-registers (0x03) and
// write-multiple-registers (0x10).
//
// Generally the intended use is as follows:
//
//	c := modbus.Client{Config: modbus.Config{
//		Mode:     "tcp",
//		Kind:     "tcp",
//		Endpoint: "localhost:502",
//	}}
//	defer c.Disconnect()
type Client struct {
	Config
	mtx sync.Mutex
	c   connection
	f   framer
}

// Disconnect shuts down the connection.
// All running requests will be canceled as a result.
func (c *Client) Disconnect() {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.c != nil {
		c.c.close()
	}
}

func (c *Client) init(ctx context.Context) (_ connection, _ framer, err error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.c == nil {
		con, err := c.Config.connection(ctx)
		if err != nil {
			return nil, nil, err
		}
		c.c = con
		go func() {
			buf := make([]byte, 260)
			if err := c.c.read(context.Background(), buf); err != nil {
				logrus.WithError(err).Debug("modbus: client connection closed")
			}
		}()
	}
	if c.f == nil {
		if c.f, err = c.Config.framer(); err != nil {
			return nil, nil, err
		}
	}
	return c.c, c.f, nil
}

// Request encodes the request into a valid application data unit and sends it to the client's
// endpoint, then waits for the matching response to arrive, correlated by transaction id.
// Only function codes below 0x80 are accepted.
func (c *Client) Request(ctx context.Context, uid, code byte, req []byte) (res []byte, err error) {
	if code == 0 || code >= 0x80 {
		return nil, ExIllegalFunction
	}

	con, f, err := c.init(ctx)
	if err != nil {
		return nil, err
	}

	adu, err := f.encode(uid, code, req)
	if err != nil {
		return nil, err
	}

	type result struct {
		res []byte
		err error
	}
	resCh := make(chan result, 1)

	cancelListen, done := con.listen(ctx, func(frame []byte, lerr error) (quit bool) {
		if lerr != nil {
			resCh <- result{nil, lerr}
			return true
		}
		switch verr := f.verify(adu, frame); verr {
		case nil:
			_, _, data, derr := f.decode(frame)
			resCh <- result{data, derr}
			return true
		case ErrMismatchedTransactionId:
			return false
		default:
			resCh <- result{nil, verr}
			return true
		}
	})
	defer cancelListen()

	if err := con.write(ctx, adu); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done:
		return nil, ErrInvalidParameter
	case r := <-resCh:
		return r.res, r.err
	}
}

// ReadHoldingRegisters reads from 1 to 125 (quantity) contiguous holding registers starting at address.
// On success returns a byte slice with the response data which is 2*quantity in length.
func (c *Client) ReadHoldingRegisters(ctx context.Context, uid byte, address, quantity uint16) (values []byte, err error) {
	if quantity < 1 || quantity > 125 || int(address)+int(quantity) > 0xFFFF {
		return nil, ExIllegalDataAddress
	}
	res, err := c.Request(ctx, uid, 0x03, put(4, address, quantity))
	switch {
	case err != nil:
		return nil, err
	case len(res) != 1+int(quantity)*2 || int(res[0]) != len(res)-1:
		return nil, ExSlaveDeviceFailure
	}
	return res[1:], nil
}

// WriteMultipleRegisters writes the values to the holding registers at address.
// Values must be a multiple of 2 and in the range of 2 to 246.
func (c *Client) WriteMultipleRegisters(ctx context.Context, uid byte, address uint16, values []byte) (err error) {
	l := len(values)
	if l%2 != 0 {
		return ExIllegalDataValue
	}
	quantity := uint16(l) / 2
	if quantity < 1 || quantity > 123 || int(address)+int(quantity) > 0xFFFF {
		return ExIllegalDataAddress
	}
	res, err := c.Request(ctx, uid, 0x10, put(5+l, address, quantity, byte(l), values))
	switch {
	case err != nil:
		return err
	case len(res) != 4 || binary.BigEndian.Uint16(res) != address || binary.BigEndian.Uint16(res[2:]) != quantity:
		return ExSlaveDeviceFailure
	}
	return nil
}
