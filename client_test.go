/* go-irecovery - host-side library for talking to Apple iBoot/DFU/WTF
 * bootloaders over USB
 *
 * Tests for client.go and finalize.go
 */

package irecovery

import (
	"errors"
	"testing"
)

func adoptAndFinalize(t *testing.T, ecidRestriction uint64, serial string) (*Client, *fakeAdapter, error) {
	t.Helper()
	fa := newFakeAdapter()
	c, err := New(Options{Adapter: fa, Policy: AcceptAll, ECIDRestriction: ecidRestriction})
	if err != nil {
		t.Fatalf("New: %s", err)
	}

	handle := "dev"
	fa.descriptors[handle] = DeviceDescriptor{Vendor: VendorApple, Product: ProductDFU}
	fa.strings[handle] = make(map[int][]byte)
	setSerial(fa.strings[handle], finalizeSerialDescIndex, serial)
	setSerial(fa.strings[handle], finalizeStringDescIndex, "NONC:aabb SNON:1122")

	c.OnDeviceEnabled(handle)
	if !c.hasDevice {
		t.Fatal("expected device to be adopted")
	}

	ferr := c.Poll()
	return c, fa, ferr
}

func TestFinalizeSuccess(t *testing.T) {
	c, _, err := adoptAndFinalize(t, 0, "CPID:8010 BDID:08 ECID:01 SRNM:[X1]")
	if err != nil {
		t.Fatalf("finalize: %s", err)
	}
	if c.finalization != FinalizationFinalized {
		t.Fatalf("expected finalized, got %s", c.finalization)
	}
	if c.info.ChipID != 0x8010 {
		t.Errorf("chip id not populated: %#x", c.info.ChipID)
	}
	if len(c.info.APNonce) != 2 {
		t.Errorf("expected AP nonce to be populated from the second descriptor, got %v", c.info.APNonce)
	}
	if c.GetMode() != ModeDFU {
		t.Errorf("expected mode DFU, got %s", c.GetMode())
	}
}

func TestFinalizeECIDMismatchBlocks(t *testing.T) {
	c, _, err := adoptAndFinalize(t, 0xDEADBEEF, "CPID:8010 ECID:01")
	if !errors.Is(err, ErrECIDMismatch) {
		t.Fatalf("expected ECID mismatch, got %v", err)
	}
	if c.finalization != FinalizationBlocked {
		t.Fatalf("expected blocked, got %s", c.finalization)
	}

	// A subsequent poll must not retry finalize, but must keep
	// reporting the block until the device detaches.
	if err := c.Poll(); !errors.Is(err, ErrFinalizationBlocked) {
		t.Errorf("expected a blocked client to keep reporting FinalizationBlocked, got %v", err)
	}
}

func TestPWNDFUModeReporting(t *testing.T) {
	c, _, err := adoptAndFinalize(t, 0, "CPID:8010 ECID:01 PWND:[limera1n]")
	if err != nil {
		t.Fatalf("finalize: %s", err)
	}
	if c.GetMode() != ModePWNDFU {
		t.Errorf("expected PWNDFU mode, got %s", c.GetMode())
	}
}

func TestIdentNeverPanicsBeforeFinalize(t *testing.T) {
	fa := newFakeAdapter()
	c, err := New(Options{Adapter: fa})
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	_ = c.Ident() // must not panic on a zero device zone
}

func TestFreeClearsDeviceZone(t *testing.T) {
	fa := newFakeAdapter()
	c, err := New(Options{Adapter: fa})
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	c.Free()
	if c.hasDevice {
		t.Error("expected device zone cleared on Free")
	}
}
