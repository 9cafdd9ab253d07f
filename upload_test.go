/* go-irecovery - host-side library for talking to Apple iBoot/DFU/WTF
 * bootloaders over USB
 *
 * Tests for upload.go
 */

package irecovery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	// Status polling would otherwise sleep for real between retries.
	sleepFunc = func(d time.Duration) {}
}

func newDFUClientForUpload(t *testing.T) (*Client, *fakeAdapter) {
	t.Helper()
	fa := newFakeAdapter()

	c, err := New(Options{Adapter: fa, Policy: AcceptAll})
	require.NoError(t, err)

	handle := "dev"
	fa.descriptors[handle] = DeviceDescriptor{Vendor: VendorApple, Product: ProductDFU}
	fa.strings[handle] = make(map[int][]byte)
	setSerial(fa.strings[handle], finalizeSerialDescIndex, "CPID:8010 ECID:01")
	setSerial(fa.strings[handle], finalizeStringDescIndex, "NONC:aa SNON:bb")
	c.OnDeviceEnabled(handle)
	require.NoError(t, c.Poll())

	// uploadInit's one-shot GETSTATE check must report idle; every
	// post-packet GETSTATUS poll must report download-busy (at byte
	// offset 4 of the 6-byte reply) so SendBuffer's retry loop exits
	// on the first attempt.
	fa.controlFunc = func(call controlCall) (int, error) {
		if call.bmRequestType != 0xA1 {
			return len(call.data), nil
		}
		switch call.bRequest {
		case dfuReqGetState:
			call.data[0] = dfuStateIdle
			return 1, nil
		case dfuReqGetStatus:
			call.data[4] = dfuStateDownloadBusy
			return 6, nil
		}
		return len(call.data), nil
	}

	return c, fa
}

func TestDFUCRCTrailer(t *testing.T) {
	c, fa := newDFUClientForUpload(t)

	payload := make([]byte, 0x800)
	require.NoError(t, c.SendBuffer(payload, 0))

	want := uint32(0xFFFFFFFF)
	want = crc32Update(want, payload)
	want = crc32Update(want, crcTrailerMagic[:])

	// The payload is a full packet, so the trailer must have been
	// sent as a standalone 16-byte frame (payload+16 > 0x800).
	var trailerCall *controlCall
	for i := range fa.controlLog {
		call := fa.controlLog[i]
		if call.bRequest == dfuReqDownload && len(call.data) == 16 {
			trailerCall = &fa.controlLog[i]
		}
	}
	require.NotNil(t, trailerCall, "expected a standalone 16-byte trailer frame")

	assert.Equal(t, crcTrailerMagic[:], trailerCall.data[:12])
	gotCRC := uint32(trailerCall.data[12]) | uint32(trailerCall.data[13])<<8 |
		uint32(trailerCall.data[14])<<16 | uint32(trailerCall.data[15])<<24
	assert.Equal(t, want, gotCRC)
}

func TestDFUUploadShortPayloadSingleChunk(t *testing.T) {
	c, fa := newDFUClientForUpload(t)

	payload := make([]byte, 100)
	require.NoError(t, c.SendBuffer(payload, 0))

	downloads := 0
	for _, call := range fa.controlLog {
		if call.bRequest == dfuReqDownload {
			downloads++
		}
	}
	// One combined chunk+trailer frame.
	assert.Equal(t, 1, downloads)
}

func TestRecoveryUploadZLPOnExactMultipleOf512(t *testing.T) {
	fa := newFakeAdapter()
	c, err := New(Options{Adapter: fa, Policy: AcceptAll})
	require.NoError(t, err)

	handle := "dev"
	fa.descriptors[handle] = DeviceDescriptor{Vendor: VendorApple, Product: ProductRecovery1}
	fa.strings[handle] = make(map[int][]byte)
	setSerial(fa.strings[handle], finalizeSerialDescIndex, "CPID:8010 ECID:01")
	setSerial(fa.strings[handle], finalizeStringDescIndex, "NONC:aa SNON:bb")
	c.OnDeviceEnabled(handle)
	require.NoError(t, c.Poll())

	payload := make([]byte, 1024) // 2*512
	require.NoError(t, c.SendBuffer(payload, 0))

	// ceil(1024/0x8000) == 1 data frame, plus 1 ZLP frame.
	assert.Len(t, fa.bulkLog, 2)
	assert.Empty(t, fa.bulkLog[len(fa.bulkLog)-1])
}

func TestRecoveryUploadFrameCount(t *testing.T) {
	fa := newFakeAdapter()
	c, err := New(Options{Adapter: fa, Policy: AcceptAll})
	require.NoError(t, err)

	handle := "dev"
	fa.descriptors[handle] = DeviceDescriptor{Vendor: VendorApple, Product: ProductRecovery1}
	fa.strings[handle] = make(map[int][]byte)
	setSerial(fa.strings[handle], finalizeSerialDescIndex, "CPID:8010 ECID:01")
	setSerial(fa.strings[handle], finalizeStringDescIndex, "NONC:aa SNON:bb")
	c.OnDeviceEnabled(handle)
	require.NoError(t, c.Poll())

	// A length not a multiple of 512, so no trailing ZLP.
	payload := make([]byte, 0x8000+100)
	require.NoError(t, c.SendBuffer(payload, 0))

	assert.Len(t, fa.bulkLog, 2)
}

func TestUploadAbortsOnProgressCallback(t *testing.T) {
	fa := newFakeAdapter()
	aborted := false
	c, err := New(Options{
		Adapter: fa,
		Policy:  AcceptAll,
		Progress: func(ev UploadEvent) int {
			aborted = true
			return 1
		},
	})
	require.NoError(t, err)

	handle := "dev"
	fa.descriptors[handle] = DeviceDescriptor{Vendor: VendorApple, Product: ProductRecovery1}
	fa.strings[handle] = make(map[int][]byte)
	setSerial(fa.strings[handle], finalizeSerialDescIndex, "CPID:8010 ECID:01")
	setSerial(fa.strings[handle], finalizeStringDescIndex, "NONC:aa SNON:bb")
	c.OnDeviceEnabled(handle)
	require.NoError(t, c.Poll())

	err = c.SendBuffer(make([]byte, 100), 0)
	assert.True(t, aborted)
	assert.ErrorIs(t, err, ErrUsbUploadFailed)
}
