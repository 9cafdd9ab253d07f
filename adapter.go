/* go-irecovery - host-side library for talking to Apple iBoot/DFU/WTF
 * bootloaders over USB
 *
 * USB transport adapter contract
 *
 * This formalizes the design note in the spec: the low-level USB bus
 * access (hotplug detection, control/bulk transfer execution,
 * descriptor fetch) is an external collaborator. The core package
 * never talks to libusb/gousb directly -- it drives an Adapter. See
 * package gousbadapter for a concrete implementation.
 */

package irecovery

// Role describes which side of the USB connection is currently
// acting as host.
type Role int

const (
	RoleUnknown Role = iota
	RoleHost
	RoleDevice
)

// String returns a human-readable role name.
func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RoleDevice:
		return "device"
	default:
		return "unknown"
	}
}

// DeviceHandle identifies a physical USB device across the lifetime
// of a single connection, as seen by an Adapter. It carries no
// behavior of its own; Adapter implementations are free to use any
// comparable value (pointer, bus/address pair, etc.) so long as the
// same device always compares equal to itself.
type DeviceHandle interface{}

// DeviceDescriptor is the subset of the standard USB device
// descriptor this library needs to admit and identify a device.
type DeviceDescriptor struct {
	Vendor  uint16
	Product uint16
}

// Adapter is the contract a USB transport implementation must
// satisfy. All operations that take a DeviceHandle assume the handle
// was produced by this same Adapter and refers to a device that is
// still attached; calling them on a stale handle returns an error.
type Adapter interface {
	// Init subscribes sink to adapter events. It must be called
	// exactly once, before any other method, and is undone by Close.
	Init(sink EventSink) error

	// Close tears down the adapter: unsubscribes events and releases
	// any resources. After Close, the adapter must not be reused.
	Close()

	// ControlTransfer issues a USB control transfer. bmRequestType's
	// direction bit determines whether data is written to the device
	// (OUT, length is the payload length) or read from the device
	// (IN, length is the capacity of data). Returns the number of
	// bytes transferred.
	ControlTransfer(h DeviceHandle, bmRequestType, bRequest byte, wValue, wIndex uint16, data []byte) (int, error)

	// BulkTransfer writes data to the given OUT bulk endpoint.
	BulkTransfer(h DeviceHandle, endpoint byte, data []byte) (int, error)

	// GetDeviceDescriptor fetches the device's vendor/product ids.
	GetDeviceDescriptor(h DeviceHandle) (DeviceDescriptor, error)

	// GetStringDescriptor fetches the raw bytes of USB string
	// descriptor `index`, including the {bLength, bDescriptorType}
	// header. Decoding (UTF-16LE -> ASCII) is a core-library concern;
	// see DecodeASCIIStringDescriptor.
	GetStringDescriptor(h DeviceHandle, index int) ([]byte, error)

	// GetConfigDescriptorTotalLength fetches wTotalLength of the
	// device's (first) configuration descriptor -- needed before
	// SetConfiguration per the finalization sequence.
	GetConfigDescriptorTotalLength(h DeviceHandle) (int, error)

	// SetConfiguration selects a USB configuration by index.
	SetConfiguration(h DeviceHandle, index int) error

	// ResetDevice issues a USB bus reset.
	ResetDevice(h DeviceHandle) error

	// Role reports which side of the connection currently acts as
	// USB host.
	Role() Role
}

// EventSink receives USB events from an Adapter. Client implements
// this interface; Adapter implementations call it synchronously from
// within their polling entry point (never from a background
// goroutine), so identification/finalization never races adapter
// teardown.
type EventSink interface {
	OnRoleChanged(role Role)
	OnDeviceConnected(h DeviceHandle)
	OnDeviceDisconnected(h DeviceHandle)
	OnDeviceEnabled(h DeviceHandle)
	OnDeviceDisabled(h DeviceHandle)
}
