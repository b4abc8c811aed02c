// Package server assembles a SunSpec device image into a servable Modbus
// slave context: a single device.Image backing both the read-holding-
// registers and write-multiple-registers callbacks of the root transport's
// request multiplexer.
package server

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/lyubov888L/ssst/device"
	modbus "github.com/lyubov888L/ssst"
)

// Server wires a device image into a modbus.Mux and owns the root
// transport server listening on its behalf.
type Server struct {
	Image *device.Image

	cfg modbus.Config
	mux *modbus.Mux
	srv modbus.Server
}

// Build assembles a new device.Image at baseAddr from summaries, resolved
// against catalog, and wraps it in a Server ready to Serve. catalog may be
// nil, in which case every model is carried opaquely.
func Build(baseAddr uint16, summaries []device.ModelSummary, catalog *device.Catalog) (*Server, error) {
	img, err := device.Build(baseAddr, summaries, catalog)
	if err != nil {
		return nil, err
	}
	s := &Server{Image: img}
	s.mux = &modbus.Mux{
		ReadHoldingRegisters:   s.getValues,
		WriteMultipleRegisters: s.setValues,
	}
	return s, nil
}

// getValues implements the slave context's read side: it validates the
// requested range against the image before handing back a copy of the
// register bytes.
func (s *Server) getValues(ctx context.Context, address, quantity uint16) ([]byte, modbus.Exception) {
	if !s.Image.Validate(address, quantity) {
		return nil, modbus.ExIllegalDataAddress
	}
	values, err := s.Image.Read(address, quantity)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"address": address, "quantity": quantity}).
			Debug("sunspec: server read failed after validation")
		return nil, modbus.ExSlaveDeviceFailure
	}
	return values, nil
}

// setValues implements the slave context's write side: it validates the
// requested range, including the span of the supplied payload, before
// committing the new values.
func (s *Server) setValues(ctx context.Context, address uint16, values []byte) modbus.Exception {
	quantity := uint16(len(values) / 2)
	if !s.Image.Validate(address, quantity) {
		return modbus.ExIllegalDataAddress
	}
	if err := s.Image.Write(address, values); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"address": address, "quantity": quantity}).
			Debug("sunspec: server write failed after validation")
		return modbus.ExSlaveDeviceFailure
	}
	return nil
}

// Serve listens on cfg.Endpoint and serves Modbus/TCP requests against the
// server's device image until ctx is canceled.
func (s *Server) Serve(ctx context.Context, cfg modbus.Config) error {
	s.cfg = cfg
	logrus.WithField("endpoint", cfg.Endpoint).Info("sunspec: server starting")
	return s.srv.Serve(ctx, cfg, s.mux)
}

// Model returns the model instance registered under id, if any, allowing a
// caller on the server side (tests, a local UI) to inspect or seed state
// directly without going through the wire protocol.
func (s *Server) Model(id uint16) (*device.ModelInstance, bool) {
	return s.Image.Model(id)
}
