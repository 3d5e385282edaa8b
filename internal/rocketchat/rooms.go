package rocketchat

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/tOgg1/roomsync/internal/models"
)

// Session is the result of a successful login.
type Session struct {
	UserID string
	Token  string
	User   models.User
}

// Login exchanges a username and password for a session token.
func (c *Client) Login(ctx context.Context, username, password string) (Session, error) {
	var resp struct {
		Data struct {
			UserID    string   `json:"userId"`
			AuthToken string   `json:"authToken"`
			Me        wireUser `json:"me"`
		} `json:"data"`
	}
	req := map[string]string{"user": username, "password": password}
	if err := c.post(ctx, "/login", req, &resp); err != nil {
		return Session{}, fmt.Errorf("login: %w", err)
	}
	if resp.Data.AuthToken == "" || resp.Data.UserID == "" {
		return Session{}, fmt.Errorf("login: server returned no session")
	}
	user := resp.Data.Me.toModel()
	if user.ID == "" {
		user.ID = resp.Data.UserID
	}
	if user.Username == "" {
		user.Username = username
	}
	return Session{UserID: resp.Data.UserID, Token: resp.Data.AuthToken, User: user}, nil
}

// Logout invalidates the current session token.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.post(ctx, "/logout", struct{}{}, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (models.User, error) {
	var resp wireUser
	if err := c.get(ctx, "/me", nil, &resp); err != nil {
		return models.User{}, fmt.Errorf("me: %w", err)
	}
	return resp.toModel(), nil
}

// Rooms lists the rooms the session user belongs to. Room types other than
// channels, private groups and direct conversations are skipped.
func (c *Client) Rooms(ctx context.Context) ([]models.Room, error) {
	var resp struct {
		Update []wireRoom `json:"update"`
	}
	if err := c.get(ctx, "/rooms.get", nil, &resp); err != nil {
		return nil, fmt.Errorf("rooms: %w", err)
	}
	rooms := make([]models.Room, 0, len(resp.Update))
	for _, w := range resp.Update {
		room, ok := c.convertRoom(w)
		if !ok {
			c.logger.Debug().Str("room_id", w.ID).Str("type", w.T).Msg("skipping unsupported room type")
			continue
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// History fetches the most recent count messages of a room, newest first as
// the server returns them.
func (c *Client) History(ctx context.Context, room models.Room, count int) ([]models.Message, error) {
	query := url.Values{}
	query.Set("roomId", room.ID)
	if count > 0 {
		query.Set("count", strconv.Itoa(count))
	}
	var resp struct {
		Messages []wireMessage `json:"messages"`
	}
	if err := c.get(ctx, "/"+endpointFamily(room.Kind)+".history", query, &resp); err != nil {
		return nil, fmt.Errorf("history %s: %w", room.ID, err)
	}
	msgs := c.convertMessages(resp.Messages)
	for i := range msgs {
		if msgs[i].RoomID == "" {
			msgs[i].RoomID = room.ID
		}
	}
	return msgs, nil
}

// Members lists the members of a room.
func (c *Client) Members(ctx context.Context, room models.Room) ([]models.User, error) {
	query := url.Values{}
	query.Set("roomId", room.ID)
	query.Set("count", "50")
	var resp struct {
		Members []wireUser `json:"members"`
	}
	if err := c.get(ctx, "/"+endpointFamily(room.Kind)+".members", query, &resp); err != nil {
		return nil, fmt.Errorf("members %s: %w", room.ID, err)
	}
	users := make([]models.User, 0, len(resp.Members))
	for _, m := range resp.Members {
		users = append(users, m.toModel())
	}
	return users, nil
}

// CreateDirect opens (or returns the existing) direct conversation with username.
func (c *Client) CreateDirect(ctx context.Context, username string) (models.Room, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return models.Room{}, models.ErrMissingUsername
	}
	var resp struct {
		Room wireRoom `json:"room"`
	}
	if err := c.post(ctx, "/im.create", map[string]string{"username": username}, &resp); err != nil {
		return models.Room{}, fmt.Errorf("create direct %s: %w", username, err)
	}
	if resp.Room.T == "" {
		resp.Room.T = "d"
	}
	room, ok := c.convertRoom(resp.Room)
	if !ok || room.ID == "" {
		return models.Room{}, fmt.Errorf("create direct %s: server returned no room", username)
	}
	return room, nil
}
