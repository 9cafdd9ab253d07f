/* go-irecovery - host-side library for talking to Apple iBoot/DFU/WTF
 * bootloaders over USB
 *
 * Identification & finalization (spec.md §4.2)
 */

package irecovery

// identityBufferSize is the capacity of the scratch buffer the
// iSerialNumber descriptor is decoded into.
const identityBufferSize = 256

// finalize runs the identification sequence on the currently adopted
// device. Every step is abortive on first error; a non-transient
// failure moves finalization to FinalizationBlocked so a later Poll
// does not retry until the device detaches.
func (c *Client) finalize() error {
	msg := c.log()
	defer msg.Commit()

	raw, err := c.adapter.GetStringDescriptor(c.handle, finalizeSerialDescIndex)
	if err != nil {
		msg.Error("iSerialNumber fetch failed: %s", err)
		return wrapError(CodeDescriptorFetchFailed, err)
	}

	buf := make([]byte, identityBufferSize)
	n, err := DecodeASCIIStringDescriptor(raw, buf)
	if err != nil {
		msg.Error("iSerialNumber decode failed: %s", err)
		return wrapError(CodeDescriptorFetchFailed, err)
	}

	info := ParseIdentity(string(buf[:n]), msg)
	info.ProductID = c.descriptor.Product
	c.info = info
	c.mode = Mode(c.descriptor.Product)

	if c.ecidRestriction != 0 && c.ecidRestriction != c.info.ECID {
		msg.Error("ECID mismatch: want %#x got %#x", c.ecidRestriction, c.info.ECID)
		c.info.clear()
		c.finalization = FinalizationBlocked
		return ErrECIDMismatch
	}

	if _, err := c.adapter.GetConfigDescriptorTotalLength(c.handle); err != nil {
		msg.Error("config descriptor fetch failed: %s", err)
		c.finalization = FinalizationBlocked
		return wrapError(CodeDescriptorSetFailed, err)
	}
	if err := c.adapter.SetConfiguration(c.handle, UsbConfigIndex); err != nil {
		msg.Error("set configuration failed: %s", err)
		c.finalization = FinalizationBlocked
		return wrapError(CodeDescriptorSetFailed, err)
	}

	nonceRaw, err := c.adapter.GetStringDescriptor(c.handle, finalizeStringDescIndex)
	if err != nil {
		msg.Error("nonce descriptor fetch failed: %s", err)
		c.finalization = FinalizationBlocked
		return wrapError(CodeDescriptorFetchFailed, err)
	}
	nonceBuf := make([]byte, identityBufferSize)
	nn, err := DecodeASCIIStringDescriptor(nonceRaw, nonceBuf)
	if err != nil {
		msg.Error("nonce descriptor decode failed: %s", err)
		c.finalization = FinalizationBlocked
		return wrapError(CodeDescriptorFetchFailed, err)
	}
	nonces := ParseIdentity(string(nonceBuf[:nn]), msg)
	c.info.APNonce = nonces.APNonce
	c.info.SEPNonce = nonces.SEPNonce

	c.finalization = FinalizationFinalized
	msg.Info("finalized: %s", c.Ident())
	return nil
}
