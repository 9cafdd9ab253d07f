/* go-irecovery - host-side library for talking to Apple iBoot/DFU/WTF
 * bootloaders over USB
 */

// Package gousbadapter is a reference irecovery.Adapter implementation
// built on github.com/google/gousb. It is not required to use
// package irecovery -- any type satisfying irecovery.Adapter works --
// but it is the implementation exercised by this repository's own
// integration points.
package gousbadapter
