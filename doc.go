/* go-irecovery - host-side library for talking to Apple iBoot/DFU/WTF
 * bootloaders over USB
 */

// Package irecovery drives an Apple iBoot/iBSS/DFU/WTF bootloader over
// USB: it consumes USB hotplug events, applies an admission policy to
// decide which device to adopt, reads and parses the device's
// tag-prefixed identity string, uploads firmware payloads using the
// mode-appropriate framing (bulk transfer in recovery, CRC-32-trailed
// control-transfer chunks in DFU/WTF), and sends bootloader console
// commands.
//
// The library never talks to a USB bus directly; low-level transport
// is provided by an Adapter implementation (see package gousbadapter
// for a reference implementation built on google/gousb). There is no
// CLI, file, or environment-variable configuration surface -- a
// Client is configured entirely through Options passed to New.
package irecovery
