package chatstream

// gatewayEvent is the raw JSON structure emitted by the chat gateway.
type gatewayEvent struct {
	// Seq is the monotonically increasing stream position, used as the
	// resume cursor.
	Seq     int64         `json:"seq"`
	Kind    string        `json:"kind"`
	Message *messageEvent `json:"message,omitempty"`
}

// messageEvent is one chat message as relayed by the gateway. Messages arrive
// in posting order per chat.
type messageEvent struct {
	ChatID    int64  `json:"chat_id"`
	MessageID int64  `json:"message_id"`

	// SenderID is empty when the gateway could not resolve the author.
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`

	Text string `json:"text"`

	// Date is unix seconds of the original message.
	Date int64 `json:"date"`

	// PhotoRef is the gateway media id of the attached photo, empty when
	// the message has none.
	PhotoRef string `json:"photo_ref"`
}
