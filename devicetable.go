/* go-irecovery - host-side library for talking to Apple iBoot/DFU/WTF
 * bootloaders over USB
 *
 * Device table -- static (chip_id, board_id) / product-type lookup
 *
 * Grounded on the reference tool's habit of shipping a static
 * hardware table alongside the transport code, and on
 * Daedaluz-gousb's classcodes.go (a plain, sentinel-free, immutable
 * slice of descriptor rows). Process-wide; rows are only ever added,
 * through RegisterDevices, never removed or replaced.
 */

package irecovery

// DeviceTableEntry describes one known chip/board combination.
type DeviceTableEntry struct {
	ChipID        uint32
	BoardID       uint32
	ProductType   string
	HardwareModel string
	DisplayName   string
}

// deviceTable is the static, immutable list of known devices. It is
// intentionally small and representative rather than exhaustive --
// callers needing the full idevicerestore/libirecovery device list
// can append their own entries via RegisterDevices.
var deviceTable = []DeviceTableEntry{
	{ChipID: 0x8900, BoardID: 0x00, ProductType: "iPhone1,1", HardwareModel: "m68ap", DisplayName: "iPhone"},
	{ChipID: 0x8920, BoardID: 0x04, ProductType: "iPhone2,1", HardwareModel: "n88ap", DisplayName: "iPhone 3GS"},
	{ChipID: 0x8930, BoardID: 0x00, ProductType: "iPhone3,1", HardwareModel: "n90ap", DisplayName: "iPhone 4 (GSM)"},
	{ChipID: 0x8930, BoardID: 0x04, ProductType: "iPhone3,3", HardwareModel: "n92ap", DisplayName: "iPhone 4 (CDMA)"},
	{ChipID: 0x8940, BoardID: 0x00, ProductType: "iPhone4,1", HardwareModel: "n94ap", DisplayName: "iPhone 4S"},
	{ChipID: 0x8950, BoardID: 0x00, ProductType: "iPhone5,1", HardwareModel: "n41ap", DisplayName: "iPhone 5 (GSM)"},
	{ChipID: 0x8950, BoardID: 0x02, ProductType: "iPhone5,2", HardwareModel: "n42ap", DisplayName: "iPhone 5 (Global)"},
	{ChipID: 0x8960, BoardID: 0x00, ProductType: "iPhone6,1", HardwareModel: "n51ap", DisplayName: "iPhone 5s (GSM)"},
	{ChipID: 0x8960, BoardID: 0x02, ProductType: "iPhone6,2", HardwareModel: "n53ap", DisplayName: "iPhone 5s (Global)"},
	{ChipID: 0x7000, BoardID: 0x18, ProductType: "iPhone7,1", HardwareModel: "n56ap", DisplayName: "iPhone 6 Plus"},
	{ChipID: 0x7000, BoardID: 0x08, ProductType: "iPhone7,2", HardwareModel: "n61ap", DisplayName: "iPhone 6"},
	{ChipID: 0x8000, BoardID: 0x0C, ProductType: "iPhone8,1", HardwareModel: "n71ap", DisplayName: "iPhone 6s"},
	{ChipID: 0x8000, BoardID: 0x02, ProductType: "iPhone8,2", HardwareModel: "n66ap", DisplayName: "iPhone 6s Plus"},
	{ChipID: 0x8000, BoardID: 0x04, ProductType: "iPhone8,4", HardwareModel: "n69ap", DisplayName: "iPhone SE"},
	{ChipID: 0x8003, BoardID: 0x0A, ProductType: "iPhone9,1", HardwareModel: "d10ap", DisplayName: "iPhone 7"},
	{ChipID: 0x8010, BoardID: 0x08, ProductType: "iPhone10,1", HardwareModel: "d20ap", DisplayName: "iPhone 8"},
	{ChipID: 0x8011, BoardID: 0x06, ProductType: "iPhone10,3", HardwareModel: "d22ap", DisplayName: "iPhone X"},
	{ChipID: 0x8015, BoardID: 0x02, ProductType: "iPhone11,2", HardwareModel: "d321ap", DisplayName: "iPhone XS"},
	{ChipID: 0x8020, BoardID: 0x08, ProductType: "iPhone12,1", HardwareModel: "n104ap", DisplayName: "iPhone 11"},

	{ChipID: 0x8930, BoardID: 0x02, ProductType: "iPad2,1", HardwareModel: "k93ap", DisplayName: "iPad 2 (WiFi)"},
	{ChipID: 0x8940, BoardID: 0x02, ProductType: "iPad3,1", HardwareModel: "j1ap", DisplayName: "iPad 3 (WiFi)"},
	{ChipID: 0x8950, BoardID: 0x0C, ProductType: "iPad4,1", HardwareModel: "j71ap", DisplayName: "iPad Air (WiFi)"},
	{ChipID: 0x8960, BoardID: 0x04, ProductType: "iPad5,1", HardwareModel: "j96ap", DisplayName: "iPad mini 4 (WiFi)"},

	{ChipID: 0x8720, BoardID: 0x02, ProductType: "iPod3,1", HardwareModel: "n18ap", DisplayName: "iPod touch 3G"},
	{ChipID: 0x8930, BoardID: 0x0A, ProductType: "iPod5,1", HardwareModel: "n78ap", DisplayName: "iPod touch 5G"},
}

// LookupByChipBoard looks up a device table entry by (chip id, board
// id). Returns the zero entry and false if no row matches.
func LookupByChipBoard(chipID, boardID uint32) (DeviceTableEntry, bool) {
	for _, e := range deviceTable {
		if e.ChipID == chipID && e.BoardID == boardID {
			return e, true
		}
	}
	return DeviceTableEntry{}, false
}

// LookupByProductType looks up a device table entry by product type
// and hardware model string (case-sensitive, as reported by the
// device). Returns the zero entry and false if no row matches.
func LookupByProductType(productType, hardwareModel string) (DeviceTableEntry, bool) {
	for _, e := range deviceTable {
		if e.ProductType == productType && e.HardwareModel == hardwareModel {
			return e, true
		}
	}
	return DeviceTableEntry{}, false
}

// RegisterDevices appends additional rows to the process-wide device
// table. Intended for callers that need fuller hardware coverage than
// the bundled table provides; it never removes or replaces existing
// rows.
func RegisterDevices(entries ...DeviceTableEntry) {
	deviceTable = append(deviceTable, entries...)
}
