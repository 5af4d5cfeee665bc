package chessdto

// Command kinds a client may send.
const (
	CmdCreateGame         = "createGame"
	CmdJoinGame           = "joinGame"
	CmdGetAvailableFields = "getAvailableFields"
	CmdMakeMove           = "makeMove"
	CmdGetActiveGames     = "getActiveGames"
	CmdSendMessage        = "sendMessage"
	CmdGetOnlineFriends   = "getOnlineFriends"
	CmdSendMessageToUser  = "sendMessageToUser"
)

// Command is one inbound frame. Fields not used by a kind are left empty.
type Command struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Text      string `json:"text,omitempty"`
	Target    string `json:"target,omitempty"`
}
