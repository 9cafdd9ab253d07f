/* go-irecovery - host-side library for talking to Apple iBoot/DFU/WTF
 * bootloaders over USB
 *
 * Tests for events.go
 */

package irecovery

import "testing"

func newTestClient(t *testing.T, policy AdmissionPolicy) (*Client, *fakeAdapter) {
	t.Helper()
	fa := newFakeAdapter()
	c, err := New(Options{Adapter: fa, Policy: policy})
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	return c, fa
}

func TestOneConnectionLimitAdoptsFirstIgnoresSecond(t *testing.T) {
	c, fa := newTestClient(t, OneConnectionLimit)

	handleA := "A"
	handleB := "B"
	fa.descriptors[handleA] = DeviceDescriptor{Vendor: VendorApple, Product: ProductDFU}
	fa.descriptors[handleB] = DeviceDescriptor{Vendor: VendorApple, Product: ProductDFU}

	c.OnDeviceEnabled(handleA)
	if !c.hasDevice || c.handle != handleA {
		t.Fatal("expected device A to be adopted")
	}

	c.OnDeviceEnabled(handleB)
	if c.handle != handleA {
		t.Error("expected device B to be ignored under one-connection-limit")
	}
}

func TestAcceptOnlyWhenNoneIgnoresWhileUsable(t *testing.T) {
	c, fa := newTestClient(t, AcceptOnlyWhenNone)

	handleA := "A"
	handleB := "B"
	fa.descriptors[handleA] = DeviceDescriptor{Vendor: VendorApple, Product: ProductDFU}
	fa.descriptors[handleB] = DeviceDescriptor{Vendor: VendorApple, Product: ProductDFU}

	c.OnDeviceEnabled(handleA)
	c.OnDeviceEnabled(handleB)

	if c.handle != handleA {
		t.Error("expected second device to be ignored while the first remains usable")
	}

	c.OnDeviceDisconnected(handleA)
	c.OnDeviceEnabled(handleB)
	if c.handle != handleB {
		t.Error("expected device B to be adopted once the zone cleared")
	}
}

func TestAcceptAllDisplacesCurrent(t *testing.T) {
	c, fa := newTestClient(t, AcceptAll)

	handleA := "A"
	handleB := "B"
	fa.descriptors[handleA] = DeviceDescriptor{Vendor: VendorApple, Product: ProductDFU}
	fa.descriptors[handleB] = DeviceDescriptor{Vendor: VendorApple, Product: ProductDFU}

	c.OnDeviceEnabled(handleA)
	c.OnDeviceEnabled(handleB)

	if c.handle != handleB {
		t.Error("expected accept-all to displace device A with device B")
	}
}

func TestUnsupportedProductNotAdopted(t *testing.T) {
	c, fa := newTestClient(t, AcceptAll)
	handle := "X"
	fa.descriptors[handle] = DeviceDescriptor{Vendor: VendorApple, Product: 0x9999}

	c.OnDeviceEnabled(handle)
	if c.hasDevice {
		t.Error("expected unsupported product to be rejected")
	}
}

func TestRoleChangedClearsDeviceZone(t *testing.T) {
	c, fa := newTestClient(t, AcceptAll)
	handle := "A"
	fa.descriptors[handle] = DeviceDescriptor{Vendor: VendorApple, Product: ProductDFU}
	c.OnDeviceEnabled(handle)

	c.OnRoleChanged(RoleDevice)
	if c.hasDevice {
		t.Error("expected device zone to clear when host role is lost")
	}
}

func TestReEnableOfAdoptedDeviceIsNoop(t *testing.T) {
	c, fa := newTestClient(t, OneConnectionLimit)
	handle := "A"
	fa.descriptors[handle] = DeviceDescriptor{Vendor: VendorApple, Product: ProductDFU}

	c.OnDeviceEnabled(handle)
	countAfterFirst := c.connCount
	c.OnDeviceEnabled(handle)

	if c.connCount != countAfterFirst {
		t.Error("re-enabling the already-adopted device should not count as a new adoption")
	}
}

func TestDeviceConnectedRequestsReset(t *testing.T) {
	c, fa := newTestClient(t, AcceptAll)
	c.OnDeviceConnected("A")
	if fa.resetCalls != 1 {
		t.Errorf("expected exactly one reset request, got %d", fa.resetCalls)
	}
	if c.hasDevice {
		t.Error("connect alone must not adopt a device")
	}
}
