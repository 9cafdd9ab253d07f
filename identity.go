/* go-irecovery - host-side library for talking to Apple iBoot/DFU/WTF
 * bootloaders over USB
 *
 * String-descriptor ASCII decode (§4.3) and identity-string parser
 * (§4.4)
 */

package irecovery

import (
	"fmt"
	"strconv"
	"strings"
)

// DecodeASCIIStringDescriptor decodes a raw USB string descriptor
// (UTF-16LE, preceded by {bLength, bDescriptorType}) into dst as
// ASCII, per §4.3: n = (bLength-2)/2 code units; for each of the
// first min(n, len(dst)-1) units, write the unit if <= 0x7F, else
// '?'. dst is null-terminated; the returned count excludes the
// terminator.
//
// A zero-length dst is a distinct error from any transport failure.
func DecodeASCIIStringDescriptor(raw []byte, dst []byte) (int, error) {
	if len(dst) == 0 {
		return 0, ErrZeroSizedBuffer
	}

	if len(raw) < 2 {
		return 0, wrapError(CodeDescriptorFetchFailed, fmt.Errorf("short descriptor"))
	}

	bLength := int(raw[0])
	if bLength > len(raw) {
		bLength = len(raw)
	}

	n := (bLength - 2) / 2
	if n < 0 {
		n = 0
	}

	max := n
	if max > len(dst)-1 {
		max = len(dst) - 1
	}

	i := 0
	for ; i < max; i++ {
		lo := raw[2+2*i]
		hi := raw[2+2*i+1]
		unit := uint16(lo) | uint16(hi)<<8

		if unit <= 0x7F {
			dst[i] = byte(unit)
		} else {
			dst[i] = '?'
		}
	}
	dst[i] = 0

	return i, nil
}

// ParseIdentity parses the space-delimited, tag-prefixed identity
// string exposed via the iSerialNumber descriptor (§4.4). Tags may
// appear in any order; a missing tag leaves the corresponding field
// at its zero value. A tag whose value fails to decode leaves the
// field empty/zero and is logged (if log is non-nil), but never
// aborts the parse of the remaining tags.
func ParseIdentity(s string, log *LogMessage) DeviceInfo {
	info := DeviceInfo{RawSerialString: s}

	logf := func(format string, args ...interface{}) {
		if log != nil {
			log.Debug(format, args...)
		}
	}

	rest := s
	for len(rest) > 0 {
		rest = strings.TrimLeft(rest, " \t\n\r")
		if rest == "" {
			break
		}

		tag, remainder, ok := splitTag(rest)
		if !ok {
			// No recognizable "TAG:" at this position; skip to the
			// next whitespace run and keep scanning, so a stray
			// token doesn't abort the whole parse.
			if sp := strings.IndexAny(rest, " \t\n\r"); sp >= 0 {
				rest = rest[sp:]
			} else {
				break
			}
			continue
		}

		switch tag {
		case "CPID":
			v, r, err := parseHexField(remainder)
			rest = r
			if err != nil {
				logf("identity: bad CPID: %s", err)
			} else {
				info.ChipID = uint32(v)
			}
		case "CPRV":
			v, r, err := parseHexField(remainder)
			rest = r
			if err != nil {
				logf("identity: bad CPRV: %s", err)
			} else {
				info.ChipRevision = uint32(v)
			}
		case "CPFM":
			v, r, err := parseHexField(remainder)
			rest = r
			if err != nil {
				logf("identity: bad CPFM: %s", err)
			} else {
				info.ChipProdFlags = uint32(v)
			}
		case "SCEP":
			v, r, err := parseHexField(remainder)
			rest = r
			if err != nil {
				logf("identity: bad SCEP: %s", err)
			} else {
				info.SecureEnclave = uint32(v)
			}
		case "BDID":
			v, r, err := parseHexField(remainder)
			rest = r
			if err != nil {
				logf("identity: bad BDID: %s", err)
			} else {
				info.BoardID = uint32(v)
			}
		case "ECID":
			v, r, err := parseHexField(remainder)
			rest = r
			if err != nil {
				logf("identity: bad ECID: %s", err)
			} else {
				info.ECID = v
			}
		case "IBFL":
			v, r, err := parseHexField(remainder)
			rest = r
			if err != nil {
				logf("identity: bad IBFL: %s", err)
			} else {
				info.ImageBootFlags = uint32(v)
			}
		case "SRNM":
			v, r, err := parseBracketField(remainder)
			rest = r
			if err != nil {
				logf("identity: bad SRNM: %s", err)
			} else {
				info.SerialNumber = v
			}
		case "IMEI":
			v, r, err := parseBracketField(remainder)
			rest = r
			if err != nil {
				logf("identity: bad IMEI: %s", err)
			} else {
				info.IMEI = v
			}
		case "SRTG":
			v, r, err := parseBracketField(remainder)
			rest = r
			if err != nil {
				logf("identity: bad SRTG: %s", err)
			} else {
				info.SRTG = v
			}
		case "PWND":
			v, r, err := parseBracketField(remainder)
			rest = r
			if err != nil {
				logf("identity: bad PWND: %s", err)
			} else {
				info.PWND = v
			}
		case "NONC":
			v, r, err := parseNonceField(remainder)
			rest = r
			if err != nil {
				logf("identity: bad NONC: %s", err)
			} else {
				info.APNonce = v
			}
		case "SNON":
			v, r, err := parseNonceField(remainder)
			rest = r
			if err != nil {
				logf("identity: bad SNON: %s", err)
			} else {
				info.SEPNonce = v
			}
		default:
			// Unknown tag vocabulary; skip its token and continue.
			rest = remainder
			if sp := strings.IndexAny(rest, " \t\n\r"); sp >= 0 {
				rest = rest[sp:]
			} else {
				rest = ""
			}
		}
	}

	return info
}

// splitTag recognizes a leading "TAG:" at the start of s (tag is 4
// uppercase letters, per §4.4's vocabulary), returning the tag name
// and the remainder of s after the colon.
func splitTag(s string) (tag, remainder string, ok bool) {
	if len(s) < 5 || s[4] != ':' {
		return "", s, false
	}
	t := s[:4]
	for _, c := range t {
		if c < 'A' || c > 'Z' {
			return "", s, false
		}
	}
	return t, s[5:], true
}

// parseHexField parses a run of hex digits up to the next whitespace
// (or end of string) as an unsigned integer, returning the remainder
// of the input after the consumed token.
func parseHexField(s string) (uint64, string, error) {
	end := strings.IndexAny(s, " \t\n\r")
	token := s
	rest := ""
	if end >= 0 {
		token = s[:end]
		rest = s[end:]
	}

	v, err := strconv.ParseUint(token, 16, 64)
	if err != nil {
		return 0, rest, err
	}
	return v, rest, nil
}

// parseBracketField parses a "[...]" value: characters up to the
// first ']' after the opening bracket. s must begin with '['.
func parseBracketField(s string) (string, string, error) {
	if len(s) == 0 || s[0] != '[' {
		return "", s, fmt.Errorf("missing '['")
	}
	end := strings.IndexByte(s, ']')
	if end < 0 {
		return "", "", fmt.Errorf("missing ']'")
	}
	return s[1:end], s[end+1:], nil
}

// parseNonceField parses a run of hex-digit pairs up to the next
// whitespace (or end of string) into raw bytes. An odd digit count
// truncates to whole bytes; a non-hex pair aborts the nonce (an
// error is returned, and whatever was already decoded is kept by the
// caller as empty, per the "non-fatal, field left empty" rule).
func parseNonceField(s string) ([]byte, string, error) {
	end := strings.IndexAny(s, " \t\n\r")
	token := s
	rest := ""
	if end >= 0 {
		token = s[:end]
		rest = s[end:]
	}

	n := len(token) / 2
	out := make([]byte, 0, n)
	for i := 0; i+1 < len(token); i += 2 {
		b, err := strconv.ParseUint(token[i:i+2], 16, 8)
		if err != nil {
			return nil, rest, err
		}
		out = append(out, byte(b))
	}

	return out, rest, nil
}

// Serialize renders the populated subset of info back into the
// canonical space-separated identity-string form (§4.4's ordering),
// hex scalars upper-case, bracketed strings for SRNM/IMEI/SRTG/PWND,
// hex-pair nonces for NONC/SNON. Zero/empty fields are omitted,
// mirroring "missing tags leave fields empty".
func (info *DeviceInfo) Serialize() string {
	var parts []string

	addHex := func(tag string, v uint32) {
		if v != 0 {
			parts = append(parts, fmt.Sprintf("%s:%X", tag, v))
		}
	}

	addHex("CPID", info.ChipID)
	addHex("CPRV", info.ChipRevision)
	addHex("CPFM", info.ChipProdFlags)
	addHex("SCEP", info.SecureEnclave)
	addHex("BDID", info.BoardID)

	if info.ECID != 0 {
		parts = append(parts, fmt.Sprintf("ECID:%X", info.ECID))
	}

	addHex("IBFL", info.ImageBootFlags)

	addBracket := func(tag, v string) {
		if v != "" {
			parts = append(parts, fmt.Sprintf("%s:[%s]", tag, v))
		}
	}

	addBracket("SRNM", info.SerialNumber)
	addBracket("IMEI", info.IMEI)
	addBracket("SRTG", info.SRTG)
	addBracket("PWND", info.PWND)

	addNonce := func(tag string, v []byte) {
		if len(v) > 0 {
			h := make([]byte, 0, len(v)*2)
			for _, b := range v {
				h = append(h, fmt.Sprintf("%02x", b)...)
			}
			parts = append(parts, tag+":"+string(h))
		}
	}

	addNonce("NONC", info.APNonce)
	addNonce("SNON", info.SEPNonce)

	return strings.Join(parts, " ")
}
