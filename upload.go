/* go-irecovery - host-side library for talking to Apple iBoot/DFU/WTF
 * bootloaders over USB
 *
 * Upload Engine (spec.md §4.5)
 *
 * Mode-switched packetization: bulk transfer in recovery, control-
 * transfer chunks with a running CRC-32 trailer in DFU/WTF. Grounded
 * on the reference tool's table-driven CRC idiom (a 256-entry
 * constant table computed once at init).
 */

package irecovery

import (
	"fmt"
	"time"
)

// sleepFunc is the DFU status-poll delay, indirected so tests can
// substitute a no-op and run the retry loop without wall-clock delay.
var sleepFunc = time.Sleep

// crc32Table is the reversed-polynomial (0xEDB88820) CRC-32 table
// used for the DFU upload trailer (§4.5/§6). Computed once at package
// init, mirroring the reference tool's style of precomputing fixed
// tables as package-level state.
var crc32Table [256]uint32

const crc32Poly = 0xEDB88820

func init() {
	for i := 0; i < 256; i++ {
		crc := uint32(i)
		for j := 0; j < 8; j++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ crc32Poly
			} else {
				crc >>= 1
			}
		}
		crc32Table[i] = crc
	}
}

// crc32Update folds data into the running CRC, using crc32Table, no
// final XOR.
func crc32Update(crc uint32, data []byte) uint32 {
	for _, b := range data {
		crc = crc32Table[byte(crc)^b] ^ (crc >> 8)
	}
	return crc
}

// SendBuffer uploads buf using the mode-appropriate framing (§4.5).
// The client must be usable and finalized.
func (c *Client) SendBuffer(buf []byte, options SendOption) error {
	if !c.usable() {
		return ErrNoDevice
	}

	recovery := c.mode.IsRecovery()
	packetSize := PacketSizeDFU
	if recovery {
		packetSize = PacketSizeRecovery
	}

	msg := c.log()
	defer msg.Commit()
	msg.Debug("upload starting, %d bytes, options=%s", len(buf), dfuOptionsString(options))

	if err := c.uploadInit(recovery, msg); err != nil {
		return err
	}

	total := len(buf)
	numPackets := total / packetSize
	lastSize := total % packetSize
	if lastSize == 0 && numPackets > 0 {
		lastSize = packetSize
		numPackets--
	}

	crc := uint32(0xFFFFFFFF)
	count := 0

	for i := 0; i <= numPackets; i++ {
		size := packetSize
		isLast := i == numPackets
		if isLast {
			size = lastSize
		}
		if size == 0 {
			break
		}
		packet := buf[count : count+size]

		if recovery {
			if _, err := c.adapter.BulkTransfer(c.handle, BulkEndpointOut, packet); err != nil {
				return wrapError(CodeUsbUploadFailed, err)
			}
		} else {
			crc = crc32Update(crc, packet)

			if isLast {
				if err := c.sendDFUFinalPacket(i, packet, crc, msg); err != nil {
					return err
				}
			} else {
				if _, err := c.adapter.ControlTransfer(c.handle, 0x21, dfuReqDownload, 0, uint16(i), packet); err != nil {
					return wrapError(CodeUsbUploadFailed, err)
				}
			}

			if err := c.pollDFUStatus(msg); err != nil {
				return err
			}
		}

		count += size
		c.emitProgress(count, total)
		if c.progress != nil {
			if r := c.progress(UploadEvent{CumulativeBytes: count, Label: "Uploading", Percent: 100 * count / total, Kind: ProgressUpdate}); r != 0 {
				return ErrUsbUploadFailed
			}
		}
	}

	return c.uploadFinish(recovery, total, numPackets, options)
}

// uploadInit issues the mode-appropriate initiation transfer (§4.5
// "Initiation").
func (c *Client) uploadInit(recovery bool, msg *LogMessage) error {
	if recovery {
		_, err := c.adapter.ControlTransfer(c.handle, 0x41, 0, 0, 0, nil)
		if err != nil {
			return wrapError(CodeUsbUploadFailed, err)
		}
		return nil
	}

	state := make([]byte, 1)
	if _, err := c.adapter.ControlTransfer(c.handle, 0xA1, dfuReqGetState, 0, 0, state); err != nil {
		return wrapError(CodeUsbUploadFailed, err)
	}

	switch state[0] {
	case dfuStateIdle:
		return nil
	case dfuStateError:
		c.adapter.ControlTransfer(c.handle, 0x21, dfuReqClrStatus, 0, 0, nil)
		msg.Error("upload aborted, device in DFU error state")
		return ErrUsbUploadFailed
	default:
		c.adapter.ControlTransfer(c.handle, 0x21, dfuReqAbort, 0, 0, nil)
		msg.Error("upload aborted, unexpected DFU state %d", state[0])
		return ErrUsbUploadFailed
	}
}

// sendDFUFinalPacket sends the last payload chunk together with (or
// immediately followed by) the 16-byte CRC trailer, per §4.5's
// packing rule: if chunk+16 would exceed the packet size, the chunk
// and the trailer go out as two separate transfers.
func (c *Client) sendDFUFinalPacket(index int, packet []byte, crc uint32, msg *LogMessage) error {
	trailer := make([]byte, 16)
	copy(trailer, crcTrailerMagic[:])

	// The magic bytes are themselves run through the CRC step before
	// their resulting checksum is appended, so the trailer's CRC
	// covers payload-plus-magic, not payload alone.
	crc = crc32Update(crc, crcTrailerMagic[:])
	trailer[12] = byte(crc)
	trailer[13] = byte(crc >> 8)
	trailer[14] = byte(crc >> 16)
	trailer[15] = byte(crc >> 24)

	packetSize := PacketSizeDFU

	if len(packet)+16 > packetSize {
		if _, err := c.adapter.ControlTransfer(c.handle, 0x21, dfuReqDownload, 0, uint16(index), packet); err != nil {
			return wrapError(CodeUsbUploadFailed, err)
		}
		if err := c.pollDFUStatus(msg); err != nil {
			return err
		}
		if _, err := c.adapter.ControlTransfer(c.handle, 0x21, dfuReqDownload, 0, uint16(index+1), trailer); err != nil {
			return wrapError(CodeUsbUploadFailed, err)
		}
		return nil
	}

	combined := make([]byte, 0, len(packet)+16)
	combined = append(combined, packet...)
	combined = append(combined, trailer...)
	if _, err := c.adapter.ControlTransfer(c.handle, 0x21, dfuReqDownload, 0, uint16(index), combined); err != nil {
		return wrapError(CodeUsbUploadFailed, err)
	}
	return nil
}

// readDFUStatus issues a single GETSTATUS request (6-byte reply, state
// at byte offset 4) and returns the device's reported state. It never
// retries and never inspects the value itself -- callers that need to
// wait for a particular state use pollDFUStatus instead.
func (c *Client) readDFUStatus() (byte, error) {
	status := make([]byte, 6)
	if _, err := c.adapter.ControlTransfer(c.handle, 0xA1, dfuReqGetStatus, 0, 0, status); err != nil {
		return 0, wrapError(CodeInvalidUsbStatus, err)
	}
	return status[4], nil
}

// pollDFUStatus polls GETSTATUS up to dfuStatusPollRetries times,
// sleeping dfuStatusPollInterval between attempts, until the device
// reports download-busy (§4.5's post-packet poll).
func (c *Client) pollDFUStatus(msg *LogMessage) error {
	var state byte
	for i := 0; i < dfuStatusPollRetries; i++ {
		s, err := c.readDFUStatus()
		if err != nil {
			return err
		}
		state = s
		if state == dfuStateDownloadBusy {
			return nil
		}
		sleepFunc(dfuStatusPollInterval)
	}
	msg.Error("DFU status poll exhausted retries, last state %d", state)
	return ErrUsbUploadFailed
}

// emitProgress is a hook point kept separate from the progress
// callback invocation so HexDump-style verbose tracing can be added
// independent of the caller-visible callback.
func (c *Client) emitProgress(count, total int) {
	c.log().Debug("upload progress: %d/%d bytes", count, total).Commit()
}

// uploadFinish performs the terminal actions (§4.5 "Terminal
// actions"): a recovery ZLP when the payload length is a multiple of
// 512, and/or the DFU notify-finish/force-ZLP/reset sequence.
func (c *Client) uploadFinish(recovery bool, total, numPackets int, options SendOption) error {
	if recovery {
		if total%512 == 0 {
			if _, err := c.adapter.BulkTransfer(c.handle, BulkEndpointOut, nil); err != nil {
				return wrapError(CodeUsbUploadFailed, err)
			}
		}
		return nil
	}

	if options&DFUNotifyFinish != 0 {
		if _, err := c.adapter.ControlTransfer(c.handle, 0x21, dfuReqDownload, 0, uint16(numPackets+1), nil); err != nil {
			return wrapError(CodeUsbUploadFailed, err)
		}
		// Two unconditional status reads, value discarded -- the
		// device is expected to settle on its own by the time the
		// caller resets it, not polled until a particular state.
		for i := 0; i < 2; i++ {
			if _, err := c.readDFUStatus(); err != nil {
				return err
			}
		}
		if options&DFUForceZLP != 0 {
			if _, err := c.adapter.ControlTransfer(c.handle, 0x21, 0, 0, 0, nil); err != nil {
				return wrapError(CodeUsbUploadFailed, err)
			}
		}
		if err := c.adapter.ResetDevice(c.handle); err != nil {
			return wrapError(CodeUsbResetFailed, err)
		}
	}

	return nil
}

// dfuOptionsString renders a SendOption bitmask for logging.
func dfuOptionsString(o SendOption) string {
	var names []string
	if o&DFUNotifyFinish != 0 {
		names = append(names, "DFU_NOTIFY_FINISH")
	}
	if o&DFUForceZLP != 0 {
		names = append(names, "DFU_FORCE_ZLP")
	}
	if o&DFUSmallPkt != 0 {
		names = append(names, "DFU_SMALL_PKT")
	}
	if len(names) == 0 {
		return "none"
	}
	return fmt.Sprintf("%v", names)
}
