package push

import "context"

type PushProvider interface {
	SendNotification(ctx context.Context, request *NotificationRequest) (*NotificationResponse, error)
	SubscribeToTopic(ctx context.Context, tokens []string, topic string) error
	UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) error
}

type NotificationRequest struct {
	Token    string            `json:"token,omitempty"`
	Topic    string            `json:"topic,omitempty"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	ImageURL string            `json:"image_url,omitempty"`
	IOS      *IOSConfig        `json:"ios,omitempty"`
	Android  *AndroidConfig    `json:"android,omitempty"`
}

type NotificationResponse struct {
	MessageID string `json:"message_id"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	Token     string `json:"token,omitempty"`
	Topic     string `json:"topic,omitempty"`
}

type IOSConfig struct {
	Sound            string            `json:"sound,omitempty"`
	Badge            int               `json:"badge,omitempty"`
	ContentAvailable bool              `json:"content_available,omitempty"`
	Category         string            `json:"category,omitempty"`
	CustomData       map[string]string `json:"custom_data,omitempty"`
}

type AndroidConfig struct {
	Priority   string            `json:"priority,omitempty"`
	Sound      string            `json:"sound,omitempty"`
	Tag        string            `json:"tag,omitempty"`
	ChannelID  string            `json:"channel_id,omitempty"`
	CustomData map[string]string `json:"custom_data,omitempty"`
}
