/* go-irecovery - host-side library for talking to Apple iBoot/DFU/WTF
 * bootloaders over USB
 *
 * Tests for addrlist.go
 */

package gousbadapter

import "testing"

func equalAddrList(l1, l2 usbAddrList) bool {
	if len(l1) != len(l2) {
		return false
	}
	for a := range l1 {
		if !l2.find(a) {
			return false
		}
	}
	return true
}

func makeAddrList(addrs ...usbAddr) usbAddrList {
	l := newUsbAddrList()
	for _, a := range addrs {
		l.add(a)
	}
	return l
}

func TestUsbAddrListAddFind(t *testing.T) {
	a1 := usbAddr{0, 1}
	a2 := usbAddr{0, 2}
	a3 := usbAddr{0, 3}

	l1 := makeAddrList(a1, a2)

	if !l1.find(a1) {
		t.Fail()
	}
	if !l1.find(a2) {
		t.Fail()
	}
	if l1.find(a3) {
		t.Fail()
	}
}

func TestUsbAddrListAddCommutative(t *testing.T) {
	a1 := usbAddr{0, 1}
	a2 := usbAddr{1, 2}

	l1 := newUsbAddrList()
	l1.add(a1)
	l1.add(a2)

	l2 := newUsbAddrList()
	l2.add(a2)
	l2.add(a1)

	if !equalAddrList(l1, l2) {
		t.Fail()
	}
}

func TestUsbAddrListAddDeduplicates(t *testing.T) {
	a1 := usbAddr{0, 1}

	l := newUsbAddrList()
	l.add(a1)
	l.add(a1)

	if len(l) != 1 {
		t.Errorf("expected duplicate add to be a no-op, got length %d", len(l))
	}
}

func TestUsbAddrListDiff(t *testing.T) {
	a1 := usbAddr{0, 1}
	a2 := usbAddr{0, 2}
	a3 := usbAddr{0, 3}

	before := makeAddrList(a1, a2)
	after := makeAddrList(a2, a3)

	added, removed := before.diff(after)

	if !equalAddrList(added, makeAddrList(a3)) {
		t.Errorf("expected added = {a3}, got %v", added)
	}
	if !equalAddrList(removed, makeAddrList(a1)) {
		t.Errorf("expected removed = {a1}, got %v", removed)
	}
}

func TestUsbAddrListDiffNoChange(t *testing.T) {
	l := makeAddrList(usbAddr{0, 1}, usbAddr{0, 2})

	added, removed := l.diff(l)

	if len(added) != 0 || len(removed) != 0 {
		t.Errorf("expected no diff against an identical list, got added=%v removed=%v", added, removed)
	}
}
