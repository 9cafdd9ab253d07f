/* go-irecovery - host-side library for talking to Apple iBoot/DFU/WTF
 * bootloaders over USB
 *
 * USB identity and protocol constants
 */

package irecovery

import "time"

// Apple's USB vendor ID. All supported devices advertise this vendor.
const VendorApple = 0x05AC

// Supported USB product IDs, grouped by the bootloader mode they signal.
const (
	ProductRecovery1 = 0x1280
	ProductRecovery2 = 0x1281
	ProductRecovery3 = 0x1282
	ProductRecovery4 = 0x1283
	ProductWTF       = 0x1222
	ProductDFU       = 0x1227
)

// Mode identifies the bootloader mode a device is currently in.
//
// Mode values below ProductWTF/ProductDFU mirror the raw USB product
// id; ModePWNDFU is a pseudo-mode, signalled by the PWND tag in the
// identity string rather than by a distinct product id.
type Mode int

const (
	ModeUnknown Mode = 0
	ModeDFU     Mode = ProductDFU
	ModeWTF     Mode = ProductWTF
	ModePWNDFU  Mode = -1
)

// String returns a human-readable mode name, one of
// {"Recovery", "WTF", "DFU", "PWNDFU", "Unknown"}.
func (m Mode) String() string {
	switch {
	case m == ModePWNDFU:
		return "PWNDFU"
	case m == ModeDFU:
		return "DFU"
	case m == ModeWTF:
		return "WTF"
	case m >= ProductRecovery1 && m <= ProductRecovery4:
		return "Recovery"
	default:
		return "Unknown"
	}
}

// IsRecovery reports whether mode uses the recovery (bulk-transfer)
// framing, i.e. whether it is anything other than DFU/WTF, which use
// the control-transfer framing. ModeUnknown also counts as recovery.
func (m Mode) IsRecovery() bool {
	return m != ModeDFU && m != ModeWTF
}

// isSupportedProduct reports whether a USB product id, paired with
// VendorApple, is one this library knows how to drive.
func isSupportedProduct(product uint16) bool {
	switch product {
	case ProductRecovery1, ProductRecovery2, ProductRecovery3, ProductRecovery4,
		ProductWTF, ProductDFU:
		return true
	}
	return false
}

// UsbConfigIndex is the USB configuration index selected during
// finalization.
const UsbConfigIndex = 1

// BulkEndpointOut is the bulk OUT endpoint address used for recovery-mode
// payload transfer.
const BulkEndpointOut = 0x04

// Recovery and DFU/WTF packet sizes, per the upload framing rules.
const (
	PacketSizeRecovery = 0x8000
	PacketSizeDFU       = 0x800
)

// SendOption is a bitmask of upload options accepted by Client.SendBuffer.
type SendOption int

const (
	// DFUNotifyFinish issues the terminal zero-length DFU download
	// request and polls status twice after the last chunk.
	DFUNotifyFinish SendOption = 1 << iota
	// DFUForceZLP additionally sends a control-transfer ZLP after
	// DFUNotifyFinish.
	DFUForceZLP
	// DFUSmallPkt is recognized but has no mandated effect; reserved
	// for compatibility with the original tool's option bitmask.
	DFUSmallPkt
)

// DFU class control requests (bRequest values), used with
// bmRequestType 0x21 (host-to-device, class, interface) or
// 0xA1 (device-to-host, class, interface).
const (
	dfuReqDownload   = 1
	dfuReqClrStatus  = 4
	dfuReqGetStatus  = 3
	dfuReqGetState   = 5
	dfuReqAbort      = 6
)

// DFU device states, as returned by GETSTATE.
const (
	dfuStateIdle           = 2
	dfuStateDownloadBusy   = 5
	dfuStateError          = 10
)

// dfuStatusPollInterval and dfuStatusPollRetries bound the
// post-packet status-polling loop in the DFU/WTF upload path.
const (
	dfuStatusPollInterval = time.Second
	dfuStatusPollRetries  = 20
)

// crcTrailerMagic is the 12-byte magic prefix of the DFU CRC trailer,
// sent ahead of the 4-byte little-endian running CRC-32.
var crcTrailerMagic = [12]byte{
	0xFF, 0xFF, 0xFF, 0xFF, 0xAC, 0x05, 0x00, 0x01, 0x55, 0x46, 0x44, 0x10,
}

// Console commands classified with breq=1 (as opposed to the
// default breq=0); see Client.SendCommand.
var breqOneCommands = map[string]bool{
	"go":       true,
	"bootx":    true,
	"reboot":   true,
	"memboot":  true,
}

// Command wire-format limits (§4.6/§6).
const (
	maxCommandLength = 255 // strictly less than 256
)

// finalizeSerialDescIndex is the string descriptor index carrying the
// device's iSerialNumber identity string (§4.2 step 1).
const finalizeSerialDescIndex = 3

// finalizeStringDescIndex is the string descriptor index (distinct
// from the iSerialNumber index) that carries the AP/SEP nonce tags.
const finalizeStringDescIndex = 1
