package fixcodec

import (
	"strconv"
	"strings"
)

// MDEntry is one repeating-group entry from a Market Data Snapshot or
// Incremental Refresh message: the fields collected during grouping
// are exactly {269, 270, 271, 273}; everything else on the entry's
// segment is ignored for grouping purposes (but still present in the
// message's flat field map).
type MDEntry struct {
	EntryType string // tag 269
	Price     string // tag 270, may be absent
	Size      string // tag 271, may be absent
	Time      string // tag 273, may be absent
}

// Message is a fully decoded FIX frame.
type Message struct {
	MsgType string
	Fields  map[Tag]string
	Entries []MDEntry // populated only for MsgType W/X
	Raw     string
}

// Decode scans buf for complete FIX frames bounded by "8=FIX" at the
// start and the "<SOH>10=NNN<SOH>" terminator. It is streaming-safe:
// any trailing, incomplete frame is returned as rest for the caller to
// prepend to the next read. No checksum or body-length validation is
// performed on receive (see the session engine's design notes).
func Decode(buf []byte) (messages []Message, rest []byte) {
	data := string(buf)
	pos := 0

	for {
		start := strings.Index(data[pos:], "8=FIX")
		if start == -1 {
			break
		}
		start += pos

		end := findFrameEnd(data, start)
		if end == -1 {
			// Incomplete frame: keep it (and anything after it) for
			// next time.
			return messages, []byte(data[start:])
		}

		frame := data[start:end]
		messages = append(messages, parseFrame(frame))
		pos = end
	}

	if pos < len(data) {
		return messages, []byte(data[pos:])
	}
	return messages, nil
}

// findFrameEnd locates the end (exclusive) of the frame starting at
// start, i.e. just past the SOH that terminates "10=NNN". Returns -1
// if the terminator has not arrived yet.
func findFrameEnd(data string, start int) int {
	idx := start
	for {
		tagPos := strings.Index(data[idx:], SOH+"10=")
		if tagPos == -1 {
			return -1
		}
		tagPos += idx
		valueStart := tagPos + len(SOH+"10=")
		sohPos := strings.IndexByte(data[valueStart:], '\x01')
		if sohPos == -1 {
			return -1
		}
		return valueStart + sohPos + 1
	}
}

// parseFrame splits one complete frame into its flat field map and,
// for market-data message types, its repeating-group entries.
//
// Parsing is a single pass over SOH-delimited tag=value fields,
// generalized from the teacher's segment scanner: split on SOH then
// on '=', skip anything without an '=' silently, and start a new
// MDEntry every time tag 269 reappears.
func parseFrame(frame string) Message {
	msg := Message{Fields: make(map[Tag]string), Raw: frame}

	var cur *MDEntry
	pos := 0
	n := len(frame)
	for pos < n {
		var field string
		sohPos := strings.IndexByte(frame[pos:], '\x01')
		if sohPos == -1 {
			field = frame[pos:]
			pos = n
		} else {
			field = frame[pos : pos+sohPos]
			pos += sohPos + 1
		}

		eqPos := strings.IndexByte(field, '=')
		if eqPos == -1 {
			// Malformed field (no '='): skip silently.
			continue
		}
		tagStr := field[:eqPos]
		value := field[eqPos+1:]

		tagNum, err := strconv.Atoi(tagStr)
		if err != nil {
			// Malformed tag=value (no usable tag number): skip silently.
			continue
		}
		tag := Tag(tagNum)
		msg.Fields[tag] = value

		switch tag {
		case TagMsgType:
			msg.MsgType = value
		case TagMDEntryType:
			if cur != nil {
				msg.Entries = append(msg.Entries, *cur)
			}
			cur = &MDEntry{EntryType: value}
		case TagMDEntryPx:
			if cur != nil {
				cur.Price = value
			}
		case TagMDEntrySize:
			if cur != nil {
				cur.Size = value
			}
		case TagMDEntryTime:
			if cur != nil {
				cur.Time = value
			}
		}
	}
	if cur != nil {
		msg.Entries = append(msg.Entries, *cur)
	}
	return msg
}
