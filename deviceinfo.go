/* go-irecovery - host-side library for talking to Apple iBoot/DFU/WTF
 * bootloaders over USB
 *
 * DeviceInfo -- the data model populated from the device's identity
 * string (spec.md §3, §4.4)
 */

package irecovery

// DeviceInfo holds the fields decoded from a device's iSerialNumber
// identity string, plus the AP/SEP nonces fetched from a second
// string descriptor during finalization. All string/byte-slice
// fields are owned, independent copies; their lifetime matches the
// owning Client's device zone.
type DeviceInfo struct {
	ChipID          uint32 // CPID
	ChipRevision    uint32 // CPRV
	ChipProdFlags   uint32 // CPFM
	SecureEnclave   uint32 // SCEP
	BoardID         uint32 // BDID
	ECID            uint64 // ECID
	ImageBootFlags  uint32 // IBFL
	SerialNumber    string // SRNM
	IMEI            string // IMEI
	SRTG            string // SRTG
	RawSerialString string // The full, undecoded identity string
	PWND            string // PWND; non-empty implies PWNDFU mode
	APNonce         []byte // NONC
	SEPNonce        []byte // SNON
	ProductID       uint16 // USB product id at the time of parsing
}

// IsPWND reports whether the identity string carried a PWND tag,
// i.e. the device is in the PWNDFU pseudo-mode.
func (info *DeviceInfo) IsPWND() bool {
	return info.PWND != ""
}

// clear zeros/empties every field, releasing owned allocations. It
// is the device-info half of "clear the device zone".
func (info *DeviceInfo) clear() {
	*info = DeviceInfo{}
}
