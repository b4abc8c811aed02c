package modbus

import (
	"context"
	"net"

	"github.com/sirupsen/logrus"
)

// Config is used to configure a modbus client or server.
type Config struct {
	// Mode defines the communication framing.
	// The only mode currently implemented is "tcp"; RTU/ASCII framing is a
	// Non-goal of this module.
	Mode string
	// Kind specifies the underlying network layer.
	// The only kind currently implemented is "tcp".
	Kind string
	// Endpoint used for connecting to (client) or listening on (server).
	Endpoint string
	// UnitID is the unit identifier used for outgoing requests.
	UnitID byte
}

// Verify validates the Config, thereby checking for invalid parameters.
// If the config is valid no error (nil) is returned.
func (cfg *Config) Verify() error {
	switch cfg.Mode {
	case "tcp":
	default:
		return ErrInvalidParameter
	}

	switch cfg.Kind {
	case "tcp":
	default:
		return ErrInvalidParameter
	}

	return nil
}

// framer creates a new modbus framer from the given configuration.
func (cfg Config) framer() (framer, error) {
	switch cfg.Mode {
	case "tcp":
		return &tcp{}, nil
	}
	return nil, ErrInvalidParameter
}

// connection dials the configured endpoint and returns a ready connection.
func (cfg Config) connection(ctx context.Context) (connection, error) {
	switch cfg.Kind {
	case "tcp":
		con, err := new(net.Dialer).DialContext(ctx, cfg.Kind, cfg.Endpoint)
		if err != nil {
			logrus.WithError(err).WithField("endpoint", cfg.Endpoint).Error("modbus: connection failed")
			return nil, err
		}
		return &network{mu: newMutex(), conn: con}, nil
	}
	return nil, ErrInvalidParameter
}

// listen creates a new listener on the configured endpoint.
// If successful an acceptor function is returned; it blocks until a new
// connection is established or an error occurs.
func (cfg Config) listen(ctx context.Context) (fn func() (connection, error), err error) {
	switch cfg.Kind {
	case "tcp":
		l, err := net.Listen(cfg.Kind, cfg.Endpoint)
		if err != nil {
			return nil, err
		}
		go func() {
			<-ctx.Done()
			l.Close()
		}()
		fn = func() (connection, error) {
			con, err := l.Accept()
			if err != nil {
				return nil, err
			}
			return &network{mu: newMutex(), conn: con}, nil
		}
	default:
		return nil, ErrInvalidParameter
	}
	return fn, nil
}
