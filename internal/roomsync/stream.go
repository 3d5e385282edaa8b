package roomsync

import (
	"fmt"
	"time"

	"github.com/tOgg1/roomsync/internal/models"
)

// openStream starts the push stream of rc unless one is open or opening.
func (s *Session) openStream(rc *roomContext) {
	s.mu.Lock()
	if s.active != rc || rc.sub != nil || rc.opening {
		s.mu.Unlock()
		return
	}
	rc.opening = true
	s.mu.Unlock()

	go s.runStream(rc)
}

func (s *Session) runStream(rc *roomContext) {
	sub, err := s.api.OpenStream(rc.ctx, rc.room.ID)

	s.mu.Lock()
	rc.opening = false
	if s.active != rc {
		s.mu.Unlock()
		if sub != nil {
			_ = sub.Close()
		}
		return
	}
	if err != nil {
		s.mu.Unlock()
		s.streamFailed(rc, nil, err)
		return
	}
	rc.sub = sub
	s.mu.Unlock()

	for ev := range sub.Events() {
		s.handleStreamEvent(rc, sub, ev)
	}
}

// handleStreamEvent applies one pushed event to rc's store. Events for a
// room that is no longer active, or from a superseded subscription, are
// dropped.
func (s *Session) handleStreamEvent(rc *roomContext, sub Subscription, ev models.StreamEvent) {
	s.mu.Lock()
	live := s.active == rc && rc.sub == sub
	s.mu.Unlock()
	if !live {
		rc.logger.Debug().Str("kind", string(ev.Kind)).Msg("dropping event from stale stream")
		return
	}
	if ev.RoomID != "" && ev.RoomID != rc.room.ID {
		rc.logger.Debug().Str("event_room", ev.RoomID).Msg("dropping event for another room")
		return
	}

	switch ev.Kind {
	case models.StreamConnectionOpen:
		s.setConnected(rc, true)
		return
	case models.StreamConnectionError:
		s.streamFailed(rc, sub, ev.Err)
		return
	}

	s.setConnected(rc, true)

	changed := false
	switch ev.Kind {
	case models.StreamInserted:
		if ev.Message == nil {
			return
		}
		if ev.Message.RoomID != "" && ev.Message.RoomID != rc.room.ID {
			rc.logger.Debug().Str("message_room", ev.Message.RoomID).Msg("dropping message for another room")
			return
		}
		if !ev.Message.IsContent() {
			return
		}
		changed = rc.store.Insert(*ev.Message)
	case models.StreamUpdated:
		if ev.Patch == nil {
			return
		}
		changed = rc.store.Update(*ev.Patch)
	case models.StreamRemoved:
		changed = rc.store.Remove(ev.MessageID)
	}
	if changed {
		s.publishChanged(rc)
	}
}

// setConnected records stream health. A connected stream stops the poll
// fallback.
func (s *Session) setConnected(rc *roomContext, connected bool) {
	s.mu.Lock()
	if s.active != rc || s.state.StreamConnected == connected {
		s.mu.Unlock()
		return
	}
	s.state.StreamConnected = connected
	if connected {
		rc.retries = 0
	}
	s.mu.Unlock()

	rc.logger.Debug().Bool("connected", connected).Msg("stream state changed")
	s.publishState()
	s.setPolling(rc, !connected)
}

// streamFailed demotes rc to the poll fallback and schedules a retry when
// configured. sub is nil when the stream never opened.
func (s *Session) streamFailed(rc *roomContext, sub Subscription, cause error) {
	s.mu.Lock()
	if s.active != rc || (sub != nil && rc.sub != sub) {
		s.mu.Unlock()
		return
	}
	rc.sub = nil
	retry := time.Duration(0)
	if s.opts.StreamRetryInterval > 0 && (s.opts.StreamRetryMax == 0 || rc.retries < s.opts.StreamRetryMax) {
		rc.retries++
		retry = s.opts.StreamRetryInterval
		if rc.retryTimer != nil {
			rc.retryTimer.Stop()
		}
		rc.retryTimer = time.AfterFunc(retry, func() { s.retryStream(rc) })
	}
	attempt := rc.retries
	s.mu.Unlock()

	err := ErrStreamDisconnect
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrStreamDisconnect, cause)
	}
	event := rc.logger.Warn().Err(err)
	if retry > 0 {
		event = event.Dur("retry_in", retry).Int("attempt", attempt)
	}
	event.Msg("stream down, polling")

	if sub != nil {
		go func() { _ = sub.Close() }()
	}

	s.mu.Lock()
	wasConnected := s.active == rc && s.state.StreamConnected
	if wasConnected {
		s.state.StreamConnected = false
	}
	s.mu.Unlock()
	if wasConnected {
		s.publishState()
	}
	s.setPolling(rc, true)
}

func (s *Session) retryStream(rc *roomContext) {
	s.mu.Lock()
	if s.active != rc {
		s.mu.Unlock()
		return
	}
	rc.retryTimer = nil
	s.mu.Unlock()

	rc.logger.Debug().Msg("retrying stream")
	s.openStream(rc)
}
