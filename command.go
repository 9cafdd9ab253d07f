/* go-irecovery - host-side library for talking to Apple iBoot/DFU/WTF
 * bootloaders over USB
 *
 * Command Channel (spec.md §4.6)
 */

package irecovery

import "fmt"

// getenvReplyLength bounds the response read for getenv/getret
// (§4.6, §6: "up to 255 bytes").
const getenvReplyLength = 255

// SendCommand validates the client and transmits cmd as a
// null-terminated console command, classifying the breq byte
// automatically (§4.6).
func (c *Client) SendCommand(cmd string) error {
	return c.SendCommandBreq(cmd, breqFor(cmd))
}

// SendCommandBreq is SendCommand with an explicit, caller-supplied
// breq byte, bypassing the classifier.
func (c *Client) SendCommandBreq(cmd string, breq byte) error {
	if !c.usable() {
		return ErrNoDevice
	}
	if !isRecoveryProduct(uint16(c.mode)) {
		return ErrServiceNotAvailable
	}
	if len(cmd) == 0 {
		return ErrNoCommand
	}
	if len(cmd) >= 256 {
		return ErrCommandTooLong
	}

	payload := append([]byte(cmd), 0)
	_, err := c.adapter.ControlTransfer(c.handle, 0x40, breq, 0, 0, payload)
	if err != nil {
		return wrapError(CodeUsbUploadFailed, err)
	}
	return nil
}

// breqFor classifies a command per §4.6's fixed set.
func breqFor(cmd string) byte {
	if breqOneCommands[cmd] {
		return 1
	}
	return 0
}

// isRecoveryProduct reports whether product is one of the four
// recovery-mode product ids (RECOVERY_1..RECOVERY_4), the only mode
// the console command channel is available in.
func isRecoveryProduct(product uint16) bool {
	switch product {
	case ProductRecovery1, ProductRecovery2, ProductRecovery3, ProductRecovery4:
		return true
	}
	return false
}

// getResponse reads up to getenvReplyLength bytes from the device's
// command response control endpoint.
func (c *Client) getResponse() ([]byte, error) {
	buf := make([]byte, getenvReplyLength)
	n, err := c.adapter.ControlTransfer(c.handle, 0xC0, 0, 0, 0, buf)
	if err != nil {
		return nil, wrapError(CodeUsbUploadFailed, err)
	}
	return buf[:n], nil
}

// Getenv reads an environment variable's value by issuing a
// "getenv <name>" console command and reading the response.
func (c *Client) Getenv(name string) (string, error) {
	if err := c.SendCommandBreq(fmt.Sprintf("getenv %s", name), 0); err != nil {
		return "", err
	}
	resp, err := c.getResponse()
	if err != nil {
		return "", err
	}
	return string(resp), nil
}

// GetRet issues the given command and returns the first byte of the
// response as a small unsigned int; the remaining response bytes are
// discarded, preserving the reference tool's (possibly surprising)
// behavior (see spec.md §9 open questions).
func (c *Client) GetRet(cmd string) (byte, error) {
	if err := c.SendCommandBreq(cmd, 0); err != nil {
		return 0, err
	}
	resp, err := c.getResponse()
	if err != nil {
		return 0, err
	}
	if len(resp) == 0 {
		return 0, nil
	}
	return resp[0], nil
}

// Setenv sets an environment variable via "setenv <name> <value>".
func (c *Client) Setenv(name, value string) error {
	return c.SendCommandBreq(fmt.Sprintf("setenv %s %s", name, value), 0)
}

// Setenvnp is Setenv without the implicit printenv-style echo the
// bootloader performs for plain setenv (console command "setenvnp").
func (c *Client) Setenvnp(name, value string) error {
	return c.SendCommandBreq(fmt.Sprintf("setenvnp %s %s", name, value), 0)
}

// Saveenv persists the environment to NOR via "saveenv".
func (c *Client) Saveenv() error {
	return c.SendCommandBreq("saveenv", 0)
}

// Reboot issues the console "reboot" command.
func (c *Client) Reboot() error {
	return c.SendCommandBreq("reboot", breqFor("reboot"))
}

// ResetCounters issues CLRSTATUS when in DFU/WTF mode; a no-op
// otherwise (§4.6).
func (c *Client) ResetCounters() error {
	if !c.usable() {
		return ErrNoDevice
	}
	if c.mode.IsRecovery() {
		return nil
	}
	_, err := c.adapter.ControlTransfer(c.handle, 0x21, dfuReqClrStatus, 0, 0, nil)
	if err != nil {
		return wrapError(CodeUsbUploadFailed, err)
	}
	return nil
}

// FinishTransfer issues a zero-length DFU download request, polls
// status three times, then bus-resets the device (§4.6).
func (c *Client) FinishTransfer() error {
	if !c.usable() {
		return ErrNoDevice
	}

	msg := c.log()
	defer msg.Commit()

	if _, err := c.adapter.ControlTransfer(c.handle, 0x21, dfuReqDownload, 0, 0, nil); err != nil {
		return wrapError(CodeUsbUploadFailed, err)
	}
	// Three unconditional status reads, value discarded -- mirrors the
	// reference tool's epilogue, which always resets regardless of
	// what state comes back.
	for i := 0; i < 3; i++ {
		if _, err := c.readDFUStatus(); err != nil {
			return err
		}
	}
	if err := c.adapter.ResetDevice(c.handle); err != nil {
		return wrapError(CodeUsbResetFailed, err)
	}
	return nil
}
