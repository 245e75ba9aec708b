package app

import (
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/on-the-ground/effect_ive_runtime/effects"
	"github.com/on-the-ground/effect_ive_runtime/effects/database"
	"github.com/on-the-ground/effect_ive_runtime/effects/messaging"
	"github.com/on-the-ground/effect_ive_runtime/effects/websocket"
)

// ChatEvent is the payload published for every relayed chat message.
type ChatEvent struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

// RelayConfig parameterizes RelayMessages.
type RelayConfig struct {
	UserID       uuid.UUID
	Topic        string
	Subscription string
	// IdleTimeout bounds each wait for the client's next frame.
	IdleTimeout time.Duration
	// MaxMessages ends the session after that many relayed messages; zero
	// means until the client closes or goes idle.
	MaxMessages int
}

// RelayMessages is a websocket chat session. Every text frame from the
// client is stored, published to the topic, and whatever the subscription
// delivers next is sent back to the client and acknowledged. It returns
// the number of messages relayed.
func RelayMessages(cfg RelayConfig) effects.Program[int] {
	return func(yield effects.Yield) int {
		relayed := 0
		for cfg.MaxMessages == 0 || relayed < cfg.MaxMessages {
			var text string
			switch in := effects.Perform[websocket.Received](yield, websocket.ReceiveText{Timeout: cfg.IdleTimeout}).(type) {
			case websocket.TextReceived:
				text = in.Text
			case websocket.ReceiveTimeout:
				yield(websocket.CloseConnection{Code: 1000, Reason: "idle"})
				return relayed
			case websocket.ConnectionClosed:
				return relayed
			default:
				panic("unreachable")
			}

			saved := effects.Perform[database.ChatMessage](yield, database.SaveMessage{UserID: cfg.UserID, Text: text})
			payload, err := json.Marshal(ChatEvent{ID: saved.ID, UserID: saved.UserID, Text: saved.Text, SentAt: saved.CreatedAt})
			if err != nil {
				panic(err)
			}
			effects.Perform[messaging.PublishResult](yield, messaging.PublishMessage{
				Topic:      cfg.Topic,
				Payload:    payload,
				Properties: map[string]string{"user_id": cfg.UserID.String()},
			})

			consumed := effects.Perform[messaging.ConsumeResult](yield, messaging.ConsumeMessage{
				Topic:        cfg.Topic,
				Subscription: cfg.Subscription,
			})
			if env, ok := consumed.(messaging.MessageEnvelope); ok {
				yield(websocket.SendText{Text: string(env.Payload)})
				yield(messaging.AcknowledgeMessage{DeliveryID: env.DeliveryID})
			}
			relayed++
		}
		return relayed
	}
}
