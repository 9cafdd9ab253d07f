/* go-irecovery - host-side library for talking to Apple iBoot/DFU/WTF
 * bootloaders over USB
 *
 * Reference Adapter implementation over github.com/google/gousb
 *
 * Grounded on guiperry-HASHER's usb_device.go for the gousb call
 * shapes (Context/OpenDeviceWithVIDPID/Config/Interface/OutEndpoint)
 * and on the reference tool's usbaddr.go/pnp.go for the polling
 * hotplug pattern (gousb exposes no native libusb hotplug callback,
 * so discovery here is a periodic address-list diff instead of an
 * event-driven registration).
 */

package gousbadapter

import (
	"fmt"

	"github.com/google/gousb"

	"github.com/irecovery/go-irecovery"
)

// deviceState holds everything opened for one attached device: the
// device handle itself, plus whatever configuration/interface/
// endpoint the upload/command paths have lazily claimed.
type deviceState struct {
	dev   *gousb.Device
	cfg   *gousb.Config
	intf  *gousb.Interface
	epOut *gousb.OutEndpoint
}

func (s *deviceState) close() {
	if s.intf != nil {
		s.intf.Close()
	}
	if s.cfg != nil {
		s.cfg.Close()
	}
	if s.dev != nil {
		s.dev.Close()
	}
}

// Adapter is a reference irecovery.Adapter implementation backed by
// gousb. It polls the bus for address-list changes rather than
// registering a native hotplug callback; PollHotplug must be called
// periodically by the application's main loop, alongside
// irecovery.Client.Poll.
type Adapter struct {
	ctx     *gousb.Context
	sink    irecovery.EventSink
	known   usbAddrList
	devices map[usbAddr]*deviceState
}

// New constructs an unopened Adapter. Call Init (via irecovery.New)
// before using it.
func New() *Adapter {
	return &Adapter{devices: make(map[usbAddr]*deviceState)}
}

// Init implements irecovery.Adapter.
func (a *Adapter) Init(sink irecovery.EventSink) error {
	a.ctx = gousb.NewContext()
	a.sink = sink

	// Baseline scan: record what's already attached without
	// generating connect events for it. A device present before
	// this process started was never "connected" from our
	// perspective.
	a.known = a.scanAddrs()
	return nil
}

// Close implements irecovery.Adapter.
func (a *Adapter) Close() {
	for _, s := range a.devices {
		s.close()
	}
	a.devices = make(map[usbAddr]*deviceState)
	if a.ctx != nil {
		a.ctx.Close()
		a.ctx = nil
	}
}

// Role implements irecovery.Adapter. A desktop/laptop USB host is
// always acting as host in the OTG sense the core models; there is
// no device-mode transition to report.
func (a *Adapter) Role() irecovery.Role {
	return irecovery.RoleHost
}

// scanAddrs enumerates the currently attached devices' bus/address
// pairs without opening any of them.
func (a *Adapter) scanAddrs() usbAddrList {
	current := newUsbAddrList()
	// The opener callback always returns false: OpenDevices still
	// calls it once per enumerated device, which is all the
	// information needed to build the address list, and returning
	// false means gousb closes every device it opened to read the
	// descriptor, so nothing leaks here.
	_, _ = a.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		current.add(usbAddr{Bus: desc.Bus, Address: desc.Address})
		return false
	})
	return current
}

// PollHotplug scans for bus changes since the last call and delivers
// Connected/Enabled/Disconnected events to the sink supplied to Init.
// This is the adapter-specific half of the application's poll loop;
// the other half is irecovery.Client.Poll.
func (a *Adapter) PollHotplug() {
	current := a.scanAddrs()
	added, removed := a.known.diff(current)
	a.known = current

	for addr := range removed {
		if s, ok := a.devices[addr]; ok {
			s.close()
			delete(a.devices, addr)
		}
		a.sink.OnDeviceDisconnected(addr)
	}

	for addr := range added {
		dev, err := a.open(addr)
		if err != nil {
			continue
		}
		a.devices[addr] = &deviceState{dev: dev}
		a.sink.OnDeviceConnected(addr)
		// gousb has no separate "configured" notification distinct
		// from the device simply being openable; treat becoming
		// openable as the enable signal.
		a.sink.OnDeviceEnabled(addr)
	}
}

// open opens exactly the device at addr.
func (a *Adapter) open(addr usbAddr) (*gousb.Device, error) {
	found := false
	devs, err := a.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if found || desc.Bus != addr.Bus || desc.Address != addr.Address {
			return false
		}
		found = true
		return true
	})
	if len(devs) != 0 {
		return devs[0], nil
	}
	if err == nil {
		err = fmt.Errorf("device at %s not found", addr)
	}
	return nil, err
}

// state looks up the deviceState for a handle produced by this
// Adapter, failing if the handle is stale or foreign.
func (a *Adapter) state(h irecovery.DeviceHandle) (*deviceState, error) {
	addr, ok := h.(usbAddr)
	if !ok {
		return nil, fmt.Errorf("handle not produced by gousbadapter")
	}
	s, ok := a.devices[addr]
	if !ok {
		return nil, irecovery.ErrNoDevice
	}
	return s, nil
}

// ControlTransfer implements irecovery.Adapter.
func (a *Adapter) ControlTransfer(h irecovery.DeviceHandle, bmRequestType, bRequest byte, wValue, wIndex uint16, data []byte) (int, error) {
	s, err := a.state(h)
	if err != nil {
		return 0, err
	}
	return s.dev.Control(bmRequestType, bRequest, wValue, wIndex, data)
}

// endpoint lazily claims the device's configuration/interface and
// returns its bulk OUT endpoint.
func (a *Adapter) endpoint(s *deviceState, addr byte) (*gousb.OutEndpoint, error) {
	if s.epOut != nil {
		return s.epOut, nil
	}

	cfg, err := s.dev.Config(irecovery.UsbConfigIndex)
	if err != nil {
		return nil, err
	}
	intf, err := cfg.Interface(0, 0)
	if err != nil {
		cfg.Close()
		return nil, err
	}
	ep, err := intf.OutEndpoint(int(addr))
	if err != nil {
		intf.Close()
		cfg.Close()
		return nil, err
	}

	s.cfg = cfg
	s.intf = intf
	s.epOut = ep
	return ep, nil
}

// BulkTransfer implements irecovery.Adapter.
func (a *Adapter) BulkTransfer(h irecovery.DeviceHandle, endpointAddr byte, data []byte) (int, error) {
	s, err := a.state(h)
	if err != nil {
		return 0, err
	}
	ep, err := a.endpoint(s, endpointAddr)
	if err != nil {
		return 0, err
	}
	return ep.Write(data)
}

// GetDeviceDescriptor implements irecovery.Adapter.
func (a *Adapter) GetDeviceDescriptor(h irecovery.DeviceHandle) (irecovery.DeviceDescriptor, error) {
	s, err := a.state(h)
	if err != nil {
		return irecovery.DeviceDescriptor{}, err
	}
	return irecovery.DeviceDescriptor{
		Vendor:  uint16(s.dev.Desc.Vendor),
		Product: uint16(s.dev.Desc.Product),
	}, nil
}

// GetStringDescriptor implements irecovery.Adapter. gousb's own
// GetStringDescriptor already performs the libusb ASCII decode (non-
// ASCII code units become '?'), so this synthesizes a well-formed raw
// descriptor -- {bLength, bDescriptorType} header followed by the
// UTF-16LE encoding of the (already-ASCII) string -- for
// irecovery.DecodeASCIIStringDescriptor to re-decode. That keeps the
// decode rules in one place (§4.3) rather than duplicating them here.
func (a *Adapter) GetStringDescriptor(h irecovery.DeviceHandle, index int) ([]byte, error) {
	s, err := a.state(h)
	if err != nil {
		return nil, err
	}
	str, err := s.dev.GetStringDescriptor(index)
	if err != nil {
		return nil, err
	}

	raw := make([]byte, 2+2*len(str))
	raw[0] = byte(len(raw))
	raw[1] = 0x03 // USB string descriptor type
	for i := 0; i < len(str); i++ {
		raw[2+2*i] = str[i]
		raw[2+2*i+1] = 0
	}
	return raw, nil
}

// GetConfigDescriptorTotalLength implements irecovery.Adapter. gousb
// exposes only the parsed configuration, so the value is computed
// from it: 9 bytes for the configuration descriptor plus 9 per
// interface alternate setting. Endpoint and class-specific
// descriptors are not counted, so this is not the device's exact
// wTotalLength.
func (a *Adapter) GetConfigDescriptorTotalLength(h irecovery.DeviceHandle) (int, error) {
	s, err := a.state(h)
	if err != nil {
		return 0, err
	}
	cfg, ok := s.dev.Desc.Configs[irecovery.UsbConfigIndex]
	if !ok {
		return 0, fmt.Errorf("no configuration descriptor at index %d", irecovery.UsbConfigIndex)
	}
	total := 9 // standard configuration descriptor header length
	for _, intf := range cfg.Interfaces {
		for range intf.AltSettings {
			total += 9
		}
	}
	return total, nil
}

// SetConfiguration implements irecovery.Adapter.
func (a *Adapter) SetConfiguration(h irecovery.DeviceHandle, index int) error {
	s, err := a.state(h)
	if err != nil {
		return err
	}
	cfg, err := s.dev.Config(index)
	if err != nil {
		return err
	}
	if s.cfg != nil {
		s.cfg.Close()
	}
	s.cfg = cfg
	return nil
}

// ResetDevice implements irecovery.Adapter.
func (a *Adapter) ResetDevice(h irecovery.DeviceHandle) error {
	s, err := a.state(h)
	if err != nil {
		return err
	}
	return s.dev.Reset()
}
