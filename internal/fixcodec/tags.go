// Package fixcodec implements a hand-rolled FIX 4.4 encoder/decoder:
// SOH-delimited tag=value framing, checksum computed on send but never
// validated on receive, and repeating-group extraction for market data
// messages. It deliberately does not use a conformant FIX engine
// library — see the session package for why.
package fixcodec

// Tag is a FIX tag number.
type Tag int

const (
	TagBeginString             Tag = 8
	TagBodyLength              Tag = 9
	TagMsgType                 Tag = 35
	TagSenderCompID            Tag = 49
	TagTargetCompID            Tag = 56
	TagMsgSeqNum               Tag = 34
	TagSendingTime             Tag = 52
	TagCheckSum                Tag = 10
	TagEncryptMethod           Tag = 98
	TagHeartBtInt              Tag = 108
	TagResetSeqNumFlag         Tag = 141
	TagUsername                Tag = 553
	TagPassword                Tag = 554
	TagText                    Tag = 58
	TagSymbol                  Tag = 55
	TagMDReqID                 Tag = 262
	TagSubscriptionRequestType Tag = 263
	TagMarketDepth             Tag = 264
	TagMDUpdateType            Tag = 265
	TagNoMDEntryTypes          Tag = 267
	TagNoMDEntries             Tag = 268
	TagMDEntryType             Tag = 269
	TagMDEntryPx               Tag = 270
	TagMDEntrySize             Tag = 271
	TagMDEntryTime             Tag = 273
	TagNoRelatedSym            Tag = 146
	TagSessionRejectReason     Tag = 373
)

// Message types carried by this client. Order entry, execution
// reports, and every other FIX message type are out of scope.
const (
	MsgTypeHeartbeat             = "0"
	MsgTypeTestRequest           = "1"
	MsgTypeReject                = "3"
	MsgTypeSequenceReset         = "4"
	MsgTypeLogout                = "5"
	MsgTypeLogon                 = "A"
	MsgTypeMarketDataRequest     = "V"
	MsgTypeMarketDataSnapshot    = "W"
	MsgTypeMarketDataIncremental = "X"
)

const (
	BeginString       = "FIX.4.4"
	EncryptMethodNone = "0"
	ResetSeqNumFlagY  = "Y"
)

// FixTimeFormat is the UTC sending-time layout used on outbound
// messages (tag 52), e.g. 20060102-15:04:05.000.
const FixTimeFormat = "20060102-15:04:05.000"

// MDEntryTypeName returns a human label for a tag 269 value, falling
// back to "Unknown (<code>)" for anything this client does not expect
// to see on a market-data stream.
func MDEntryTypeName(entryType string) string {
	switch entryType {
	case "0":
		return "Bid"
	case "1":
		return "Offer"
	default:
		return "Unknown (" + entryType + ")"
	}
}
