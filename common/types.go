package common

type LocalMsgType uint32

func (lt *LocalMsgType) Type() LocalMsgType {
	return (*lt) & (0xff00)
}

func (lt *LocalMsgType) SubType() LocalMsgType {
	return (*lt) & (0x00ff)
}

// |--type--|-subtype-|
// 0000 0000 0000 0000
//
// Requests and responses are different first-class types so each direction
// gets its own delivery goroutine on the bus.
const (
	LocalNoUseType          LocalMsgType = 0
	LocalSessionMsg         LocalMsgType = 1 << 8
	LocalSessionMsg_Request LocalMsgType = LocalSessionMsg | 1
	LocalResponseMsg        LocalMsgType = 2 << 8
	LocalSessionMsg_Update  LocalMsgType = LocalResponseMsg | 1
	LocalSessionMsg_Done    LocalMsgType = LocalResponseMsg | 2
	LocalSessionMsg_Failed  LocalMsgType = LocalResponseMsg | 3
)

var localMsgTypeName = map[LocalMsgType]string{
	LocalNoUseType:          "NoUse",
	LocalSessionMsg_Request: "Request",
	LocalSessionMsg_Update:  "Update",
	LocalSessionMsg_Done:    "Done",
	LocalSessionMsg_Failed:  "Failed",
}

func (lt LocalMsgType) String() string {
	if n, ok := localMsgTypeName[lt]; ok {
		return n
	}
	return "Unknown"
}

// IsTerminal reports whether lt ends a request.
func (lt LocalMsgType) IsTerminal() bool {
	return lt == LocalSessionMsg_Done || lt == LocalSessionMsg_Failed
}
