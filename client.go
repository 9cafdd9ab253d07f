/* go-irecovery - host-side library for talking to Apple iBoot/DFU/WTF
 * bootloaders over USB
 *
 * Client -- the two-zone process-local handle (spec.md §3, §4.7)
 *
 * Grounded on the reference tool's UsbTransport: a struct split
 * between configuration set once at construction and per-connection
 * state cleared on every detach, with Init/Close bracketing an
 * adapter's lifetime and a log sink threaded through from the caller.
 */

package irecovery

import (
	"fmt"
	"strings"
)

// FinalizationState is the three-valued state of a device's
// identification/finalization sequence (§4.2).
type FinalizationState int

const (
	FinalizationPending FinalizationState = iota
	FinalizationFinalized
	FinalizationBlocked
)

// String renders a FinalizationState for logging.
func (s FinalizationState) String() string {
	switch s {
	case FinalizationPending:
		return "pending"
	case FinalizationFinalized:
		return "finalized"
	case FinalizationBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Client is the library's process-local handle onto one logical USB
// connection. It is logically partitioned into a static zone (set at
// construction, never cleared) and a device zone (populated on
// adoption, cleared on detach/rejection) -- see spec.md §3.
//
// Client implements EventSink; the Adapter it was constructed with
// calls back into it from within Init and from its polling entry
// point.
type Client struct {
	// Static zone.
	adapter         Adapter
	policy          AdmissionPolicy
	ecidRestriction uint64
	logger          *Logger
	progress        ProgressFunc
	connCount       int
	role            Role

	// Device zone. hasDevice is the zero/non-zero discriminant;
	// every other device-zone field is meaningless while it is false.
	hasDevice    bool
	handle       DeviceHandle
	descriptor   DeviceDescriptor
	info         DeviceInfo
	mode         Mode
	finalization FinalizationState
}

// New constructs a Client and initializes its Adapter, binding the
// Client as the adapter's EventSink. Any adapter-init failure tears
// down what was allocated and returns CodeUsbInitFailed, per §4.7.
func New(opts Options) (*Client, error) {
	if opts.Adapter == nil {
		return nil, newError(CodeBadPointer, fmt.Errorf("nil Adapter"))
	}

	c := &Client{
		adapter:         opts.Adapter,
		policy:          opts.Policy,
		ecidRestriction: opts.ECIDRestriction,
		progress:        opts.Progress,
		role:            RoleUnknown,
	}
	c.logger = NewLogger(opts.LogSink)

	if err := c.adapter.Init(c); err != nil {
		return nil, wrapError(CodeUsbInitFailed, err)
	}
	c.role = c.adapter.Role()

	return c, nil
}

// Free tears down the adapter and clears the device zone, releasing
// every owned allocation. The Client must not be used afterwards.
func (c *Client) Free() {
	c.clearDeviceZone()
	c.adapter.Close()
}

// log begins a top-level log message on this Client's logger. Callers
// must Commit() (or Flush()) the returned message.
func (c *Client) log() *LogMessage {
	return c.logger.Begin()
}

// usable reports whether a device is currently adopted and the host
// still holds the USB host role (§4.1's "usable" definition).
func (c *Client) usable() bool {
	return c.hasDevice && c.role == RoleHost
}

// clearDeviceZone resets every device-zone field to its zero value,
// releasing owned strings/nonces via DeviceInfo.clear.
func (c *Client) clearDeviceZone() {
	c.hasDevice = false
	c.handle = nil
	c.descriptor = DeviceDescriptor{}
	c.info.clear()
	c.mode = ModeUnknown
	c.finalization = FinalizationPending
}

// GetMode returns PWNDFU if the adopted device's identity string
// carried a PWND tag, else the raw mode last set during finalization
// (§4.7).
func (c *Client) GetMode() Mode {
	if c.info.IsPWND() {
		return ModePWNDFU
	}
	return c.mode
}

// GetDeviceInfo returns a borrow of the current device zone's info.
// Its contents are only meaningful while the device zone remains
// populated; callers must not retain it across a detach.
func (c *Client) GetDeviceInfo() *DeviceInfo {
	return &c.info
}

// Ident returns a filesystem- and log-safe identifier for the
// currently adopted device, derived from its chip id, board id and
// ECID (grounded on the reference tool's UsbDeviceInfo.Ident()).
// Characters outside [0-9a-zA-Z_-] are mapped to '-'. It exists only
// for log correlation; it is never persisted to disk.
func (c *Client) Ident() string {
	raw := fmt.Sprintf("%x-%x-%x", c.info.ChipID, c.info.BoardID, c.info.ECID)
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

// Poll is the application-driven entry point: it runs the
// identification/finalization sequence (§4.2) if the device zone is
// populated and finalization is still pending. A blocked device
// reports ErrFinalizationBlocked on every call until it detaches --
// finalize is not retried. It performs no other work -- event
// consumption happens synchronously via the adapter calling back into
// EventSink methods, not here.
func (c *Client) Poll() error {
	if !c.hasDevice {
		return nil
	}
	switch c.finalization {
	case FinalizationPending:
		return c.finalize()
	case FinalizationBlocked:
		return ErrFinalizationBlocked
	}
	return nil
}
