package modbus

import (
	"context"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
)

// Server is the go implementation of a modbus slave.
// Once serving it will listen for incoming requests and forward them to the modbus.Handler h.
// Generally the intended use is as follows:
//
//	ctx := context.TODO()
//	cfg := modbus.Config{
//		Mode:     "tcp",
//		Kind:     "tcp",
//		Endpoint: "localhost:502",
//	}
//	h := &modbus.Mux{/*define individual handlers*/}
//	s := modbus.Server{}
//
//	log.Fatal(s.Serve(ctx, cfg, h))
type Server struct {
	mu sync.Mutex
	f  framer
}

// Serve starts the modbus server and listens for incoming requests.
// The Handler h is called for each inbound message.
// h must be safe for use by multiple go routines.
func (s *Server) Serve(ctx context.Context, cfg Config, h Handler) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err = cfg.Verify(); err != nil {
		return err
	}
	if s.f, err = cfg.framer(); err != nil {
		return err
	}
	l, err := net.Listen(cfg.Kind, cfg.Endpoint)
	if err != nil {
		return err
	}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		l.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		default:
			conn, err := l.Accept()
			if err != nil {
				continue
			}
			logrus.WithField("remote", conn.RemoteAddr()).Debug("modbus: connection accepted")
			wg.Add(1)
			go func(conn net.Conn) {
				defer wg.Done()
				c := &network{mu: newMutex(), conn: conn}
				s.handle(ctx, c, h)
			}(conn)
		}
	}
}

func (s *Server) handle(ctx context.Context, c connection, h Handler) {
	defer c.close()
	var wg sync.WaitGroup

	_, wait := c.listen(ctx, func(adu []byte, err error) (quit bool) {
		if err != nil {
			return true
		}
		buf := s.f.buffer()
		buf = buf[:copy(buf, adu)]
		wg.Add(1)
		go func(adu []byte) {
			defer wg.Done()
			var res []byte
			var ex Exception
			uid, code, req, err := s.f.decode(adu)

			switch {
			case err != nil:
				logrus.WithError(err).Debug("modbus: dropping malformed request")
				return
			case code < 0x80:
				res, ex = h.Handle(ctx, code, req)
			default:
				ex = ExIllegalFunction
			}

			switch {
			case ex != nil:
				code |= 0x80
				res = []byte{ex.Code()}
			case len(res) > 252:
				code |= 0x80
				res = []byte{ExSlaveDeviceFailure.Code()}
			}

			res, err = s.f.reply(uid, code, res, adu)
			if err != nil {
				logrus.WithError(err).Debug("modbus: failed to encode reply")
				return
			}
			if err := c.write(ctx, res); err != nil {
				logrus.WithError(err).Debug("modbus: failed to write reply")
				return
			}
		}(buf)
		return false
	})

	c.read(ctx, s.f.buffer())
	<-wait
	wg.Wait()
}
