package line

// --- Incoming webhook payload ---
// Reference: https://developers.line.biz/en/reference/messaging-api/#webhook-event-objects

const (
	EventMessage  = "message"
	EventPostback = "postback"

	MessageText = "text"

	SourceUser = "user"
)

type CallbackRequest struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

type Event struct {
	Type            string           `json:"type"`
	Mode            string           `json:"mode"`
	Timestamp       int64            `json:"timestamp"`
	Source          Source           `json:"source"`
	WebhookEventID  string           `json:"webhookEventId"`
	DeliveryContext DeliveryContext  `json:"deliveryContext"`
	ReplyToken      string           `json:"replyToken,omitempty"`
	Message         *MessageContent  `json:"message,omitempty"`
	Postback        *PostbackContent `json:"postback,omitempty"`
}

type Source struct {
	Type    string `json:"type"`
	UserID  string `json:"userId,omitempty"`
	GroupID string `json:"groupId,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
}

type DeliveryContext struct {
	IsRedelivery bool `json:"isRedelivery"`
}

type MessageContent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// PostbackContent carries the data string of the tapped postback action.
type PostbackContent struct {
	Data   string            `json:"data"`
	Params map[string]string `json:"params,omitempty"`
}

// --- Outgoing reply ---
// Reference: https://developers.line.biz/en/reference/messaging-api/#send-reply-message

type ReplyMessageRequest struct {
	ReplyToken           string        `json:"replyToken"`
	Messages             []TextMessage `json:"messages"`
	NotificationDisabled bool          `json:"notificationDisabled,omitempty"`
}

type TextMessage struct {
	Type       string      `json:"type"`
	Text       string      `json:"text"`
	QuickReply *QuickReply `json:"quickReply,omitempty"`
}

// QuickReply holds up to 13 buttons shown above the input box.
// Reference: https://developers.line.biz/en/reference/messaging-api/#quick-reply
type QuickReply struct {
	Items []QuickReplyItem `json:"items"`
}

type QuickReplyItem struct {
	Type   string         `json:"type"`
	Action PostbackAction `json:"action"`
}

type PostbackAction struct {
	Type        string `json:"type"`
	Label       string `json:"label"`                 // Max 20 chars
	Data        string `json:"data"`                  // Max 300 chars
	DisplayText string `json:"displayText,omitempty"` // Max 300 chars
}

// PostbackItem builds a quick-reply button that posts data back and shows displayText as the user's message.
func PostbackItem(label, data, displayText string) QuickReplyItem {
	return QuickReplyItem{
		Type: "action",
		Action: PostbackAction{
			Type:        "postback",
			Label:       label,
			Data:        data,
			DisplayText: displayText,
		},
	}
}

type errorResponse struct {
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

type ErrorDetail struct {
	Message  string `json:"message"`
	Property string `json:"property"`
}
