package rocketchat

import (
	"context"
	"fmt"

	"github.com/tOgg1/roomsync/internal/models"
)

type wireOutgoing struct {
	ID          string           `json:"_id,omitempty"`
	RoomID      string           `json:"rid"`
	Msg         string           `json:"msg"`
	Attachments []wireAttachment `json:"attachments,omitempty"`
}

// Send posts a message. A non-empty ID is sent as the message id so the
// server echo carries the same identity as a local optimistic copy.
func (c *Client) Send(ctx context.Context, out models.OutgoingMessage) (models.Message, error) {
	body := wireOutgoing{ID: out.ID, RoomID: out.RoomID, Msg: out.Body}
	for _, a := range out.Attachments {
		body.Attachments = append(body.Attachments, wireAttachment{Title: a.Title, Type: a.MimeType, TitleLink: a.URL})
	}
	var resp struct {
		Message wireMessage `json:"message"`
	}
	if err := c.post(ctx, "/chat.sendMessage", map[string]any{"message": body}, &resp); err != nil {
		return models.Message{}, fmt.Errorf("send: %w", err)
	}
	if resp.Message.ID == "" {
		resp.Message.ID = out.ID
	}
	if resp.Message.RoomID == "" {
		resp.Message.RoomID = out.RoomID
	}
	return c.convertMessage(resp.Message), nil
}

// Update replaces the text of a message.
func (c *Client) Update(ctx context.Context, roomID, messageID, text string) (models.Message, error) {
	req := map[string]string{"roomId": roomID, "msgId": messageID, "text": text}
	var resp struct {
		Message wireMessage `json:"message"`
	}
	if err := c.post(ctx, "/chat.update", req, &resp); err != nil {
		return models.Message{}, fmt.Errorf("update %s: %w", messageID, err)
	}
	return c.convertMessage(resp.Message), nil
}

// Delete removes a message.
func (c *Client) Delete(ctx context.Context, roomID, messageID string) error {
	req := map[string]string{"roomId": roomID, "msgId": messageID}
	if err := c.post(ctx, "/chat.delete", req, nil); err != nil {
		return fmt.Errorf("delete %s: %w", messageID, err)
	}
	return nil
}

// Pin pins or unpins a message.
func (c *Client) Pin(ctx context.Context, messageID string, pinned bool) error {
	path := "/chat.pinMessage"
	if !pinned {
		path = "/chat.unPinMessage"
	}
	if err := c.post(ctx, path, map[string]string{"messageId": messageID}, nil); err != nil {
		return fmt.Errorf("pin %s: %w", messageID, err)
	}
	return nil
}

// React adds or removes the session user's reaction. When the server returns
// the updated message, its full reaction map is returned; otherwise nil.
func (c *Client) React(ctx context.Context, messageID, emoji string, add bool) (models.Reactions, error) {
	req := map[string]any{"messageId": messageID, "emoji": emoji, "shouldReact": add}
	var resp struct {
		Message *struct {
			Reactions map[string]wireReaction `json:"reactions"`
		} `json:"message"`
	}
	if err := c.post(ctx, "/chat.react", req, &resp); err != nil {
		return nil, fmt.Errorf("react %s: %w", messageID, err)
	}
	if resp.Message == nil {
		return nil, nil
	}
	reactions := convertReactions(resp.Message.Reactions)
	if reactions == nil {
		reactions = models.Reactions{}
	}
	return reactions, nil
}
