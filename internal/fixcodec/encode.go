package fixcodec

import (
	"strconv"
	"strings"
)

// SOH is the FIX field separator, byte 0x01.
const SOH = "\x01"

// Field is a single tag=value pair in emission order.
type Field struct {
	Tag   Tag
	Value string
}

// headerOrder is the fixed prefix order every encoded body follows,
// ahead of any remaining fields in insertion order.
var headerOrder = []Tag{TagMsgType, TagSenderCompID, TagTargetCompID, TagMsgSeqNum, TagSendingTime}

// Encode assembles a full FIX 4.4 frame from a field set. header must
// supply values for 35 (MsgType), 49 (SenderCompID), 56 (TargetCompID),
// 34 (MsgSeqNum), and 52 (SendingTime); body carries every other field
// in the order it should appear on the wire.
func Encode(header map[Tag]string, body []Field) []byte {
	var b strings.Builder
	for _, tag := range headerOrder {
		writeField(&b, tag, header[tag])
	}
	for _, f := range body {
		writeField(&b, f.Tag, f.Value)
	}
	bodyStr := b.String()

	var frame strings.Builder
	frame.WriteString("8=" + BeginString + SOH)
	frame.WriteString("9=" + strconv.Itoa(len(bodyStr)) + SOH)
	frame.WriteString(bodyStr)

	checksum := computeChecksum(frame.String())
	frame.WriteString("10=" + checksum + SOH)

	return []byte(frame.String())
}

func writeField(b *strings.Builder, tag Tag, value string) {
	b.WriteString(strconv.Itoa(int(tag)))
	b.WriteByte('=')
	b.WriteString(value)
	b.WriteString(SOH)
}

// computeChecksum sums every byte of everything up to and including
// the SOH after the body, mod 256, zero-padded to 3 digits.
func computeChecksum(frameSoFar string) string {
	var sum int
	for i := 0; i < len(frameSoFar); i++ {
		sum += int(frameSoFar[i])
	}
	sum %= 256
	s := strconv.Itoa(sum)
	for len(s) < 3 {
		s = "0" + s
	}
	return s
}

// BuildLogon assembles a Logon (35=A) message: EncryptMethod none,
// HeartBtInt 30s, ResetSeqNumFlag Y, and the configured credentials.
func BuildLogon(senderCompID, targetCompID string, seqNum uint64, sendingTime, username, password string) []byte {
	header := map[Tag]string{
		TagMsgType:     MsgTypeLogon,
		TagSenderCompID: senderCompID,
		TagTargetCompID: targetCompID,
		TagMsgSeqNum:    strconv.FormatUint(seqNum, 10),
		TagSendingTime:  sendingTime,
	}
	body := []Field{
		{TagEncryptMethod, EncryptMethodNone},
		{TagHeartBtInt, "30"},
		{TagResetSeqNumFlag, ResetSeqNumFlagY},
		{TagUsername, username},
		{TagPassword, password},
	}
	return Encode(header, body)
}

// BuildLogout assembles a Logout (35=5) message.
func BuildLogout(senderCompID, targetCompID string, seqNum uint64, sendingTime string) []byte {
	header := map[Tag]string{
		TagMsgType:     MsgTypeLogout,
		TagSenderCompID: senderCompID,
		TagTargetCompID: targetCompID,
		TagMsgSeqNum:    strconv.FormatUint(seqNum, 10),
		TagSendingTime:  sendingTime,
	}
	return Encode(header, nil)
}

// BuildMarketDataRequest assembles a Market Data Request (35=V) for a
// single symbol, subscribing to BID then ASK at full book depth, per
// the fixed tag table the subscription manager follows.
func BuildMarketDataRequest(senderCompID, targetCompID string, seqNum uint64, sendingTime, mdReqID, symbol string) []byte {
	header := map[Tag]string{
		TagMsgType:     MsgTypeMarketDataRequest,
		TagSenderCompID: senderCompID,
		TagTargetCompID: targetCompID,
		TagMsgSeqNum:    strconv.FormatUint(seqNum, 10),
		TagSendingTime:  sendingTime,
	}
	body := []Field{
		{TagMDReqID, mdReqID},
		{TagSubscriptionRequestType, "1"},
		{TagMarketDepth, "0"},
		{TagNoMDEntryTypes, "2"},
		{TagMDEntryType, "0"},
		{TagMDEntryType, "1"},
		{TagNoRelatedSym, "1"},
		{TagSymbol, symbol},
	}
	return Encode(header, body)
}
