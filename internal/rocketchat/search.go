package rocketchat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tOgg1/roomsync/internal/models"
)

const (
	fallbackHistoryRooms = 3
	fileSearchRooms      = 5
	fallbackListCount    = 100
	scanCount            = 50
)

// SearchRoom runs a server-side message search within one room.
func (c *Client) SearchRoom(ctx context.Context, roomID, text string, limit int) ([]models.Message, error) {
	query := url.Values{}
	query.Set("roomId", roomID)
	query.Set("searchText", text)
	if limit > 0 {
		query.Set("count", strconv.Itoa(limit))
	}
	var resp struct {
		Messages []wireMessage `json:"messages"`
	}
	if err := c.get(ctx, "/chat.search", query, &resp); err != nil {
		return nil, fmt.Errorf("search room %s: %w", roomID, err)
	}
	return c.convertMessages(resp.Messages), nil
}

// SearchGlobal searches messages, users, channels and files concurrently.
// A failing category yields an empty list and never fails the others.
func (c *Client) SearchGlobal(ctx context.Context, text string, limit int) models.SearchResults {
	results := models.SearchResults{Query: text, Scope: models.ScopeGlobal}

	// Room list is shared by the message fallback and the file scan.
	var (
		roomsOnce sync.Once
		rooms     []models.Room
		roomsErr  error
	)
	loadRooms := func(ctx context.Context) ([]models.Room, error) {
		roomsOnce.Do(func() {
			rooms, roomsErr = c.Rooms(ctx)
		})
		return rooms, roomsErr
	}

	var g errgroup.Group
	g.Go(func() error {
		msgs, err := c.searchMessagesGlobal(ctx, text, limit, loadRooms)
		if err != nil {
			c.logger.Debug().Err(err).Msg("global message search failed")
			return nil
		}
		results.Messages = msgs
		return nil
	})
	g.Go(func() error {
		users, err := c.searchUsers(ctx, text, limit)
		if err != nil {
			c.logger.Debug().Err(err).Msg("user search failed")
			return nil
		}
		results.Users = users
		return nil
	})
	g.Go(func() error {
		channels, err := c.searchChannels(ctx, text, limit)
		if err != nil {
			c.logger.Debug().Err(err).Msg("channel search failed")
			return nil
		}
		results.Channels = channels
		return nil
	})
	g.Go(func() error {
		files, err := c.searchFiles(ctx, text, limit, loadRooms)
		if err != nil {
			c.logger.Debug().Err(err).Msg("file search failed")
			return nil
		}
		results.Files = files
		return nil
	})
	_ = g.Wait()

	return results
}

func (c *Client) searchMessagesGlobal(ctx context.Context, text string, limit int, loadRooms func(context.Context) ([]models.Room, error)) ([]models.Message, error) {
	query := url.Values{}
	query.Set("query", text)
	query.Set("count", strconv.Itoa(limit))
	var resp struct {
		Messages []wireMessage `json:"messages"`
	}
	err := c.get(ctx, "/chat.search", query, &resp)
	if err == nil {
		return truncate(c.convertMessages(resp.Messages), limit), nil
	}
	c.logger.Debug().Err(err).Msg("server message search failed, scanning channel history")

	rooms, roomsErr := loadRooms(ctx)
	if roomsErr != nil {
		return nil, roomsErr
	}
	var channels []models.Room
	for _, room := range rooms {
		if room.IsChannel() {
			channels = append(channels, room)
		}
		if len(channels) == fallbackHistoryRooms {
			break
		}
	}

	perRoom := make([][]models.Message, len(channels))
	var g errgroup.Group
	for i, room := range channels {
		g.Go(func() error {
			msgs, err := c.History(ctx, room, scanCount)
			if err != nil {
				return nil
			}
			perRoom[i] = msgs
			return nil
		})
	}
	_ = g.Wait()

	needle := strings.ToLower(text)
	var matched []models.Message
	for _, msgs := range perRoom {
		for _, m := range msgs {
			if m.Body != "" && strings.Contains(strings.ToLower(m.Body), needle) {
				matched = append(matched, m)
			}
		}
	}
	return truncate(matched, limit), nil
}

func (c *Client) searchUsers(ctx context.Context, text string, limit int) ([]models.User, error) {
	var resp struct {
		Users []wireUser `json:"users"`
	}
	query := url.Values{}
	query.Set("query", regexSelector(text, "username", "name"))
	query.Set("count", strconv.Itoa(limit))
	if err := c.get(ctx, "/users.list", query, &resp); err != nil {
		fallback := url.Values{}
		fallback.Set("count", strconv.Itoa(fallbackListCount))
		resp.Users = nil
		if err := c.get(ctx, "/users.list", fallback, &resp); err != nil {
			return nil, fmt.Errorf("search users: %w", err)
		}
	}
	needle := strings.ToLower(text)
	var users []models.User
	for _, u := range resp.Users {
		if containsFold(u.Username, needle) || containsFold(u.Name, needle) {
			users = append(users, u.toModel())
		}
	}
	return truncate(users, limit), nil
}

func (c *Client) searchChannels(ctx context.Context, text string, limit int) ([]models.Room, error) {
	var resp struct {
		Channels []wireRoom `json:"channels"`
	}
	query := url.Values{}
	query.Set("query", regexSelector(text, "name", "topic"))
	query.Set("count", strconv.Itoa(limit))
	if err := c.get(ctx, "/channels.list", query, &resp); err != nil {
		fallback := url.Values{}
		fallback.Set("count", strconv.Itoa(fallbackListCount))
		resp.Channels = nil
		if err := c.get(ctx, "/channels.list", fallback, &resp); err != nil {
			return nil, fmt.Errorf("search channels: %w", err)
		}
	}
	needle := strings.ToLower(text)
	var channels []models.Room
	for _, w := range resp.Channels {
		if !containsFold(w.Name, needle) && !containsFold(w.Topic, needle) {
			continue
		}
		if w.T == "" {
			w.T = "c"
		}
		if room, ok := c.convertRoom(w); ok {
			channels = append(channels, room)
		}
	}
	return truncate(channels, limit), nil
}

func (c *Client) searchFiles(ctx context.Context, text string, limit int, loadRooms func(context.Context) ([]models.Room, error)) ([]models.FileResult, error) {
	rooms, err := loadRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("search files: %w", err)
	}
	if len(rooms) > fileSearchRooms {
		rooms = rooms[:fileSearchRooms]
	}

	perRoom := make([][]wireFile, len(rooms))
	var g errgroup.Group
	for i, room := range rooms {
		g.Go(func() error {
			query := url.Values{}
			query.Set("roomId", room.ID)
			query.Set("count", strconv.Itoa(scanCount))
			var resp struct {
				Files []wireFile `json:"files"`
			}
			if err := c.get(ctx, "/"+endpointFamily(room.Kind)+".files", query, &resp); err != nil {
				return nil
			}
			for j := range resp.Files {
				if resp.Files[j].RoomID == "" {
					resp.Files[j].RoomID = room.ID
				}
			}
			perRoom[i] = resp.Files
			return nil
		})
	}
	_ = g.Wait()

	needle := strings.ToLower(text)
	var files []models.FileResult
	for _, list := range perRoom {
		for _, f := range list {
			if f.Name != "" && containsFold(f.Name, needle) {
				files = append(files, c.convertFile(f))
			}
		}
	}
	return truncate(files, limit), nil
}

// regexSelector builds a case-insensitive Mongo-style selector over fields.
func regexSelector(text string, fields ...string) string {
	pattern := regexp.QuoteMeta(text)
	var or []map[string]any
	for _, field := range fields {
		or = append(or, map[string]any{field: map[string]string{"$regex": pattern, "$options": "i"}})
	}
	data, _ := json.Marshal(map[string]any{"$or": or})
	return string(data)
}

func containsFold(value, lowerNeedle string) bool {
	return value != "" && strings.Contains(strings.ToLower(value), lowerNeedle)
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
