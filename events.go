/* go-irecovery - host-side library for talking to Apple iBoot/DFU/WTF
 * bootloaders over USB
 *
 * Event State Machine (spec.md §4.1)
 *
 * Client implements EventSink; an Adapter calls these methods
 * synchronously from within its polling entry point. No I/O beyond a
 * bus reset and a device-descriptor fetch happens here --
 * identification/finalization is deferred
 * to Poll, so arbitrary transfers never run inside the adapter's
 * callback context.
 */

package irecovery

// OnRoleChanged handles a USB role transition. If the host drops the
// host role, the device zone is cleared -- a device can only be
// adopted while we hold the role.
func (c *Client) OnRoleChanged(role Role) {
	msg := c.log()
	defer msg.Commit()

	c.role = role
	msg.Debug("role changed: %s", role)

	if role != RoleHost {
		c.clearDeviceZone()
	}
}

// OnDeviceDisconnected clears the device zone if the departing handle
// is the one currently adopted.
func (c *Client) OnDeviceDisconnected(h DeviceHandle) {
	msg := c.log()
	defer msg.Commit()

	if c.hasDevice && c.handle == h {
		msg.Info("adopted device disconnected")
		c.clearDeviceZone()
		return
	}
	msg.Debug("disconnect of unadopted device ignored")
}

// OnDeviceConnected requests a bus reset on a newly connected device.
// No adoption decision is made here -- that happens on the
// corresponding enable event.
func (c *Client) OnDeviceConnected(h DeviceHandle) {
	msg := c.log()
	defer msg.Commit()

	if c.role != RoleHost {
		msg.Debug("connect ignored, not host")
		return
	}

	if err := c.adapter.ResetDevice(h); err != nil {
		msg.Error("reset of newly connected device failed: %s", err)
	}
}

// OnDeviceDisabled logs only; it does not alter state.
func (c *Client) OnDeviceDisabled(h DeviceHandle) {
	c.log().Info("device disabled").Commit()
}

// OnDeviceEnabled is the adoption decision point (§4.1). A re-enable
// of the already-adopted handle is a no-op; otherwise the admission
// policy decides whether to adopt.
func (c *Client) OnDeviceEnabled(h DeviceHandle) {
	msg := c.log()
	defer msg.Commit()

	if c.role != RoleHost {
		msg.Debug("enable ignored, not host")
		return
	}

	if c.hasDevice && c.handle == h {
		msg.Debug("re-enable of adopted device, no change")
		return
	}

	switch c.policy {
	case AcceptAll:
		c.clearDeviceZone()
		c.tryAdopt(h, msg)
	case AcceptOnlyWhenNone:
		if c.usable() {
			msg.Debug("enable ignored, accept-only-when-none and a device is usable")
			return
		}
		c.tryAdopt(h, msg)
	case OneConnectionLimit:
		if c.connCount >= 1 {
			msg.Debug("enable ignored, one-connection-limit already used")
			return
		}
		c.tryAdopt(h, msg)
	}
}

// tryAdopt fetches h's device descriptor and, if it names a supported
// Apple product, stores the handle and descriptor in the device zone.
func (c *Client) tryAdopt(h DeviceHandle, msg *LogMessage) {
	desc, err := c.adapter.GetDeviceDescriptor(h)
	if err != nil {
		msg.Error("descriptor fetch failed, not adopting: %s", err)
		c.clearDeviceZone()
		return
	}

	if desc.Vendor != VendorApple || !isSupportedProduct(desc.Product) {
		msg.Debug("unsupported device (vendor=%#04x product=%#04x), not adopting", desc.Vendor, desc.Product)
		c.clearDeviceZone()
		return
	}

	c.hasDevice = true
	c.handle = h
	c.descriptor = desc
	c.finalization = FinalizationPending
	c.connCount++
	msg.Info("adopted device, product=%#04x", desc.Product)
}
