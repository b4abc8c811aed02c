// Package client implements the SunSpec discovery and point-access logic
// on top of the root Modbus/TCP transport: base address discovery, the
// model list walk, and scale-factor aware point reads and writes.
package client

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lyubov888L/ssst/device"
	modbus "github.com/lyubov888L/ssst"
)

// maxBusyRetries bounds how many times a request is resent after a
// ExAcknowledge/ExSlaveDeviceBusy response before giving up. The slave
// asked for patience, not an infinite wait.
const maxBusyRetries = 3

// Client discovers and talks to a single SunSpec device over Modbus/TCP.
// After a successful Scan, Image mirrors the device's register map and is
// kept in sync by ReadPoint/WritePoint.
type Client struct {
	UnitID byte

	Catalog *device.Catalog
	Image   *device.Image

	mc modbus.Client

	// knownSF holds the last wire-observed raw value of each scale-factor
	// point this client has actually read, keyed by "modelID/name". It is
	// deliberately separate from the local image mirror (which starts
	// zero-valued before any read) so that a point's first-ever read is
	// never mistaken for a scale-factor change against a value nobody has
	// observed yet.
	knownSF map[string]int64
}

// New returns a Client configured to dial cfg.Endpoint, resolving models
// against catalog (which may be nil for an opaque-only client).
func New(cfg modbus.Config, catalog *device.Catalog) *Client {
	return &Client{
		UnitID:  cfg.UnitID,
		Catalog: catalog,
		mc:      modbus.Client{Config: cfg},
	}
}

// Disconnect closes the underlying transport connection.
func (c *Client) Disconnect() {
	c.mc.Disconnect()
}

// Scan discovers the device's base address and walks its model list,
// building a local device image that mirrors the device's register map.
func (c *Client) Scan(ctx context.Context) error {
	base, err := c.findBaseAddress(ctx)
	if err != nil {
		return err
	}
	summaries, err := c.walkModels(ctx, base)
	if err != nil {
		return err
	}
	img, err := device.Build(base, summaries, c.Catalog)
	if err != nil {
		return err
	}
	c.Image = img
	return nil
}

func (c *Client) findBaseAddress(ctx context.Context) (uint16, error) {
	for _, addr := range device.DefaultBaseAddrCandidates {
		got, err := c.ReadRegisters(ctx, addr, 2)
		if err != nil {
			logrus.WithError(err).WithField("address", addr).Debug("sunspec: base address candidate unreachable")
			continue
		}
		if got[0] == device.BaseAddressSentinel[0] && got[1] == device.BaseAddressSentinel[1] &&
			got[2] == device.BaseAddressSentinel[2] && got[3] == device.BaseAddressSentinel[3] {
			return addr, nil
		}
	}
	return 0, &device.BaseAddressNotFoundError{Candidates: device.DefaultBaseAddrCandidates}
}

func (c *Client) walkModels(ctx context.Context, base uint16) ([]device.ModelSummary, error) {
	var summaries []device.ModelSummary
	addr := base + 2
	for {
		header, err := c.ReadRegisters(ctx, addr, 2)
		if err != nil {
			return nil, err
		}
		id := binary.BigEndian.Uint16(header[0:])
		length := binary.BigEndian.Uint16(header[2:])
		if id == device.SunsEndModelID {
			return summaries, nil
		}
		summaries = append(summaries, device.ModelSummary{ID: id, Length: length})
		addr += 2 + length
	}
}

// ReadRegisters reads quantity holding registers starting at address,
// retrying a bounded number of times if the slave reports it is busy with a
// long-duration command.
func (c *Client) ReadRegisters(ctx context.Context, address, quantity uint16) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= maxBusyRetries; attempt++ {
		values, err := c.mc.ReadHoldingRegisters(ctx, c.UnitID, address, quantity)
		if err == nil {
			return values, nil
		}
		lastErr = wrapModbusException(0x03, err)
		if !shouldRetry(err, attempt) {
			return nil, lastErr
		}
		if waitErr := sleepForRetry(ctx, attempt); waitErr != nil {
			return nil, waitErr
		}
	}
	return nil, lastErr
}

// WriteRegisters writes values to holding registers starting at address,
// retrying a bounded number of times if the slave reports it is busy with a
// long-duration command.
func (c *Client) WriteRegisters(ctx context.Context, address uint16, values []byte) error {
	var lastErr error
	for attempt := 0; attempt <= maxBusyRetries; attempt++ {
		err := c.mc.WriteMultipleRegisters(ctx, c.UnitID, address, values)
		if err == nil {
			return nil
		}
		lastErr = wrapModbusException(0x10, err)
		if !shouldRetry(err, attempt) {
			return lastErr
		}
		if waitErr := sleepForRetry(ctx, attempt); waitErr != nil {
			return waitErr
		}
	}
	return lastErr
}

func shouldRetry(err error, attempt int) bool {
	if attempt >= maxBusyRetries {
		return false
	}
	ex, ok := err.(modbus.Exception)
	return ok && modbus.Retryable(ex)
}

func sleepForRetry(ctx context.Context, attempt int) error {
	backoff := time.Duration(attempt+1) * 20 * time.Millisecond
	logrus.WithField("attempt", attempt+1).WithField("backoff", backoff).Debug("sunspec: slave busy, retrying")
	t := time.NewTimer(backoff)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// wrapModbusException maps a transport-level modbus.Exception, raised in
// response to the request sent under function code fc, onto a
// device.ModbusException carrying the original and error-flagged function
// codes alongside the exception code, per the mapping the slave's
// exception response encodes on the wire.
func wrapModbusException(fc byte, err error) error {
	ex, ok := err.(modbus.Exception)
	if !ok {
		return err
	}
	return &device.ModbusException{
		OriginalCode:  fc,
		FunctionCode:  fc | 0x80,
		ExceptionCode: ex.Code(),
	}
}

// Model returns the model instance registered under id after a successful
// Scan.
func (c *Client) Model(id uint16) (*device.ModelInstance, bool) {
	if c.Image == nil {
		return nil, false
	}
	return c.Image.Model(id)
}

// PointAddress returns the Modbus register address of the named point
// within model, or false if model does not define the point. Offset is
// already register-relative to the model header, so no further adjustment
// is applied: point_address(point) = model_addr + point.offset.
func PointAddress(model *device.ModelInstance, name string) (uint16, bool) {
	pd, ok := model.Point(name)
	if !ok {
		return 0, false
	}
	return model.Addr + pd.Offset, true
}

// ReadPoint reads the named point of modelID, following the read
// procedure: the point's scale factor, if any, is read first (which may
// itself trigger re-derivation of sibling points dependent on that
// factor); then the point's own raw value is fetched and scaled.
func (c *Client) ReadPoint(ctx context.Context, modelID uint16, name string) (float64, error) {
	model, ok := c.Model(modelID)
	if !ok {
		return 0, &device.CatalogError{ModelID: modelID, Reason: "model not present in scanned image"}
	}
	pd, ok := model.Point(name)
	if !ok {
		return 0, &device.CatalogError{ModelID: modelID, PointName: name, Reason: "unknown point"}
	}

	var sf int64
	if pd.ScaleFactor != "" {
		// Step 1: the scale-factor point is read recursively first,
		// refreshing the local image before this point's own value is
		// fetched.
		if _, err := c.ReadPoint(ctx, modelID, pd.ScaleFactor); err != nil {
			return 0, err
		}
		var err error
		if sf, err = model.ReadPoint(pd.ScaleFactor); err != nil {
			return 0, err
		}
	}

	raw, err := c.fetchPointRaw(ctx, model, name, pd)
	if err != nil {
		return 0, err
	}

	if pd.Type == device.SunSSF {
		// Step 3: this point is itself a scale factor. If we have already
		// observed its raw value on a prior read and it just changed,
		// every other point that references it must have its raw value
		// re-derived so its scaled value survives the change. A point's
		// very first read has no prior observation to compare against, so
		// it never triggers a correction.
		key := sfKey(modelID, name)
		if priorSF, known := c.knownSF[key]; known && priorSF != raw {
			if err := c.preserveDependents(ctx, model, name, priorSF, raw); err != nil {
				return 0, err
			}
		}
		if c.knownSF == nil {
			c.knownSF = make(map[string]int64)
		}
		c.knownSF[key] = raw
	}

	return device.Scale(raw, int16(sf)), nil
}

func sfKey(modelID uint16, name string) string {
	return fmt.Sprintf("%d/%s", modelID, name)
}

// fetchPointRaw fetches the named point's current bytes over the wire,
// decodes them, and writes them into the local image mirror so later reads
// of the same model observe a consistent snapshot.
func (c *Client) fetchPointRaw(ctx context.Context, model *device.ModelInstance, name string, pd device.PointDef) (int64, error) {
	addr, _ := PointAddress(model, name)
	bytes, err := c.ReadRegisters(ctx, addr, pd.Len)
	if err != nil {
		return 0, err
	}
	raw, err := device.Decode(pd.Type, bytes)
	if err != nil {
		return 0, err
	}
	if err := model.WritePoint(name, raw); err != nil {
		logrus.WithError(err).Debug("sunspec: failed to refresh local image mirror")
	}
	return raw, nil
}

// preserveDependents re-derives, and writes back to the device, the raw
// value of every point in model whose scale factor is sfName, so that its
// scaled value under oldSF is preserved now that the factor has changed to
// newSF. This is the scale-factor idempotence property: writing (or
// observing a change to) a scale factor must not silently change the
// scaled reading of the points that depend on it.
func (c *Client) preserveDependents(ctx context.Context, model *device.ModelInstance, sfName string, oldSF, newSF int64) error {
	if oldSF == newSF {
		return nil
	}
	for depName, depDef := range model.Def.Points {
		if depDef.ScaleFactor != sfName {
			continue
		}
		oldRaw, err := model.ReadPoint(depName)
		if err != nil {
			continue
		}
		target := device.Scale(oldRaw, int16(oldSF))
		newRaw := int64(math.Round(target / math.Pow10(int(newSF))))

		addr, _ := PointAddress(model, depName)
		bytes, err := device.Encode(depDef.Type, newRaw, depDef.Len)
		if err != nil {
			return err
		}
		if err := c.WriteRegisters(ctx, addr, bytes); err != nil {
			return err
		}
		if err := model.WritePoint(depName, newRaw); err != nil {
			logrus.WithError(err).Debug("sunspec: failed to refresh local image mirror")
		}
	}
	return nil
}

// WritePoint encodes raw into the named point of modelID and writes it to
// the device, then refreshes the local image mirror so a subsequent
// ReadPoint observes the same value without a further round trip.
func (c *Client) WritePoint(ctx context.Context, modelID uint16, name string, raw int64) error {
	model, ok := c.Model(modelID)
	if !ok {
		return &device.CatalogError{ModelID: modelID, Reason: "model not present in scanned image"}
	}
	pd, ok := model.Point(name)
	if !ok {
		return &device.CatalogError{ModelID: modelID, PointName: name, Reason: "unknown point"}
	}

	bytes, err := device.Encode(pd.Type, raw, pd.Len)
	if err != nil {
		return err
	}
	addr, _ := PointAddress(model, name)
	if err := c.WriteRegisters(ctx, addr, bytes); err != nil {
		return err
	}
	return model.WritePoint(name, raw)
}
