/* go-irecovery - host-side library for talking to Apple iBoot/DFU/WTF
 * bootloaders over USB
 *
 * USB address bookkeeping for the polling hotplug loop
 *
 * The reference tool solves the same bookkeeping (which addresses
 * appeared or disappeared since the last scan) with a sorted slice
 * and binary search. Scan sizes here are a handful of USB addresses
 * per poll tick, so a set keyed by usbAddr is the simpler realization
 * of the same bookkeeping: membership and set-difference fall out of
 * plain map operations instead of a hand-maintained sort invariant.
 */

package gousbadapter

import "fmt"

// usbAddr identifies a device's position on the USB bus, independent
// of any open handle to it.
type usbAddr struct {
	Bus     int
	Address int
}

// String renders a usbAddr for logging.
func (a usbAddr) String() string {
	return fmt.Sprintf("bus %d addr %d", a.Bus, a.Address)
}

// usbAddrList is a set of usbAddr observed on a single bus scan.
type usbAddrList map[usbAddr]struct{}

func newUsbAddrList() usbAddrList {
	return make(usbAddrList)
}

func (list usbAddrList) add(addr usbAddr) {
	list[addr] = struct{}{}
}

func (list usbAddrList) find(addr usbAddr) bool {
	_, ok := list[addr]
	return ok
}

// diff reports which addresses appear only in next (added) and which
// appear only in the receiver (removed), relative to next.
func (list usbAddrList) diff(next usbAddrList) (added, removed usbAddrList) {
	added = newUsbAddrList()
	removed = newUsbAddrList()
	for addr := range next {
		if !list.find(addr) {
			added.add(addr)
		}
	}
	for addr := range list {
		if !next.find(addr) {
			removed.add(addr)
		}
	}
	return added, removed
}
