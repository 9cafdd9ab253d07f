/* go-irecovery - host-side library for talking to Apple iBoot/DFU/WTF
 * bootloaders over USB
 *
 * Client configuration
 */

package irecovery

// AdmissionPolicy governs how the event state machine reacts to a
// newly enabled device while another device (or the same one) may
// already be adopted.
type AdmissionPolicy int

const (
	// AcceptAll clears any current adoption and adopts the new
	// device.
	AcceptAll AdmissionPolicy = iota
	// AcceptOnlyWhenNone ignores the new device while one is
	// currently usable.
	AcceptOnlyWhenNone
	// OneConnectionLimit adopts at most once per Client lifetime;
	// every later enable event is ignored.
	OneConnectionLimit
)

// ProgressKind classifies an UploadEvent.
type ProgressKind int

const (
	ProgressUpdate ProgressKind = iota
)

// UploadEvent is passed to a Client's progress callback after each
// successfully transmitted packet.
type UploadEvent struct {
	CumulativeBytes int
	Label           string
	Percent         int
	Kind            ProgressKind
}

// ProgressFunc is the upload progress callback. A non-zero return
// aborts the in-progress upload with ErrUsbUploadFailed.
type ProgressFunc func(UploadEvent) int

// Options configures a new Client. There is no file, environment, or
// CLI-backed configuration surface; Options is the sole entry point.
type Options struct {
	// Adapter is the USB transport this Client drives. Required.
	Adapter Adapter

	// Policy selects the admission policy applied on each device-enabled
	// event. Zero value is AcceptAll.
	Policy AdmissionPolicy

	// ECIDRestriction, if non-zero, rejects (blocks finalization of)
	// any device whose identity string reports a different ECID.
	ECIDRestriction uint64

	// LogSink, if non-nil, receives this Client's log output.
	LogSink LogSink

	// Progress, if non-nil, is invoked after every packet transmitted
	// by SendBuffer.
	Progress ProgressFunc
}
