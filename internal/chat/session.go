// Package chat holds the room session state machine and the moderation
// dispatcher. A session owns exactly one live connection and one (room, user)
// pair for its lifetime.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/ryanhackme1207/Everspace/internal/bus"
	"github.com/ryanhackme1207/Everspace/internal/domain"
	"github.com/ryanhackme1207/Everspace/internal/presence"
	"github.com/ryanhackme1207/Everspace/internal/store"
)

// Conn is the outbound half of a live connection. The transport owns reads
// and feeds them to HandleFrame; the session only ever writes and closes.
type Conn interface {
	Send(v any) error
	Close()
}

type State int32

const (
	StateConnecting State = iota
	StatePendingPassword
	StateJoined
	StateClosing
	StateClosed
)

// Settings are the liveness knobs. All of them are empirically chosen
// defaults, not derived constants; deployments tune them via config.
type Settings struct {
	HeartbeatInterval  time.Duration
	StalenessThreshold time.Duration
	DisconnectGrace    time.Duration
	JoinDebounce       time.Duration
	MaxMessageLen      int
}

func DefaultSettings() Settings {
	return Settings{
		HeartbeatInterval:  30 * time.Second,
		StalenessThreshold: 120 * time.Second,
		DisconnectGrace:    3 * time.Second,
		JoinDebounce:       10 * time.Second,
		MaxMessageLen:      domain.MaxMessageLen,
	}
}

// Deps are the collaborators shared by every session of a process.
type Deps struct {
	Presence presence.Store
	Bus      bus.Bus
	Rooms    store.RoomRepository
	Members  store.MembershipRepository
	Bans     store.BanRepository
	Messages store.MessageRepository
	Users    store.UserRepository
	Settings Settings
}

type Session struct {
	ID       string
	deps     Deps
	user     *domain.User
	roomName string
	conn     Conn

	mu              sync.Mutex
	state           State
	room            *domain.Room
	sub             *bus.Subscription
	cancelHeartbeat context.CancelFunc
	unlocked        bool

	ctx context.Context
	now func() time.Time
}

// NewSession builds a session in Connecting state. unlocked marks a private
// room password already supplied earlier in this logical (cookie) session.
func NewSession(deps Deps, conn Conn, user *domain.User, roomName string, unlocked bool) *Session {
	return &Session{
		ID:       uuid.NewString(),
		deps:     deps,
		conn:     conn,
		user:     user,
		roomName: roomName,
		unlocked: unlocked,
		state:    StateConnecting,
		now:      time.Now,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect validates the attempt and either joins the room or parks the
// session in PendingPassword. A returned error is fatal to the connection.
func (s *Session) Connect(ctx context.Context) error {
	if s.user == nil {
		return ErrUnauthenticated
	}
	s.ctx = ctx

	room, created, err := s.deps.Rooms.GetOrCreate(ctx, s.roomName, s.user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrRoomNotFound
		}
		return err
	}
	if created {
		log.Info().Str("module", "chat").Str("room", s.roomName).Str("user", s.user.Username).Msg("room created on first join")
	}
	s.mu.Lock()
	s.room = room
	s.mu.Unlock()

	banned, err := s.deps.Bans.IsActive(ctx, room.ID, s.user.ID)
	if err != nil {
		return err
	}
	if banned {
		return ErrBanned
	}

	if room.IsPrivate() && !s.unlocked {
		s.mu.Lock()
		s.state = StatePendingPassword
		s.mu.Unlock()
		_ = s.conn.Send(passwordRequiredOut{Type: "password_required"})
		return nil
	}

	return s.join(ctx)
}

func (s *Session) join(ctx context.Context) error {
	room := s.currentRoom()

	// A rejoin keeps the stored role; host is only ever granted on the very
	// first membership of the creator or via explicit ownership transfer.
	role := domain.RoleMember
	existing, err := s.deps.Members.Get(ctx, room.ID, s.user.ID)
	switch {
	case err == nil:
		role = existing.Role
	case errors.Is(err, store.ErrNotFound):
		if _, err := s.deps.Members.HostOf(ctx, room.ID); err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				return err
			}
			if room.CreatorID == s.user.ID {
				role = domain.RoleHost
			}
		}
	default:
		return err
	}
	now := s.now()
	err = s.deps.Members.Upsert(ctx, &domain.Membership{
		RoomID:   room.ID,
		UserID:   s.user.ID,
		Role:     role,
		Status:   domain.StatusOnline,
		JoinedAt: now,
		LastSeen: now,
	})
	if err != nil {
		return err
	}

	// Read the heartbeat before overwriting it: the age decides below
	// whether this is a real join or a rapid reconnect.
	age, seen, err := s.deps.Presence.HeartbeatAge(ctx, s.roomName, s.user.Username)
	if err != nil {
		return err
	}
	// Touch before the entry becomes visible: a peer's pruning tick must
	// never find a fresh entry with no heartbeat behind it.
	if err := s.deps.Presence.TouchHeartbeat(ctx, s.roomName, s.user.Username); err != nil {
		return err
	}
	if err := s.deps.Presence.Upsert(ctx, s.roomName, s.user.Username, s.user.DisplayNameOrUsername()); err != nil {
		return err
	}

	hbCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.sub = s.deps.Bus.Join(s.roomName)
	s.cancelHeartbeat = cancel
	s.state = StateJoined
	sub := s.sub
	s.mu.Unlock()

	go s.eventPump(sub)
	go s.heartbeatLoop(hbCtx)

	// The snapshot always goes back to the connecting session, debounced
	// or not.
	snapshot, err := s.deps.Presence.Snapshot(ctx, s.roomName)
	if err != nil {
		return err
	}
	_ = s.conn.Send(activeUsersOut{Type: "active_users", Users: snapshot})

	if !seen || age > s.deps.Settings.JoinDebounce {
		_ = s.deps.Bus.Publish(ctx, s.roomName, bus.Event{
			Type:        bus.EventUserJoin,
			Username:    s.user.Username,
			DisplayName: s.user.DisplayNameOrUsername(),
		})
	}

	log.Info().Str("module", "chat").Str("room", s.roomName).Str("user", s.user.Username).Msg("joined room")
	return nil
}

func (s *Session) currentRoom() *domain.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

// HandleFrame processes one inbound client frame. Malformed frames are
// dropped without touching the connection.
func (s *Session) HandleFrame(data []byte) {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Debug().Str("module", "chat").Str("user", s.user.Username).Msg("malformed frame dropped")
		return
	}

	switch env.Type {
	case "password":
		if s.State() != StatePendingPassword {
			return
		}
		s.handlePassword(data)
	case "message":
		if s.State() != StateJoined {
			return
		}
		s.handleMessage(data)
	case "sound":
		if s.State() != StateJoined {
			return
		}
		s.handleSound(data)
	default:
		log.Debug().Str("module", "chat").Str("type", env.Type).Msg("unknown frame type dropped")
	}
}

func (s *Session) handlePassword(data []byte) {
	var f passwordFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return
	}
	room := s.currentRoom()
	if err := bcrypt.CompareHashAndPassword([]byte(room.PasswordHash), []byte(f.Value)); err != nil {
		_ = s.conn.Send(errorOut{Type: "error", Error: "invalid_password"})
		return
	}
	s.mu.Lock()
	s.unlocked = true
	s.mu.Unlock()
	if err := s.join(s.ctx); err != nil {
		log.Error().Err(err).Str("module", "chat").Str("room", s.roomName).Msg("join after password")
		s.Close()
	}
}

func (s *Session) handleMessage(data []byte) {
	var f messageFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return
	}
	text := strings.TrimSpace(f.Text)
	if text == "" || len(text) > s.deps.Settings.MaxMessageLen {
		return
	}

	room := s.currentRoom()
	ctx := s.ctx

	// Write-time revalidation: the room may have been deleted and the caller
	// kicked or banned since connect.
	if _, err := s.deps.Rooms.GetByName(ctx, s.roomName); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.terminate(noticeOut{Type: "room_deleted", Message: "This room no longer exists."})
			return
		}
		_ = s.conn.Send(errorOut{Type: "error", Error: "message_failed"})
		return
	}

	msg, err := s.deps.Messages.Create(ctx, room.ID, s.user.ID, text)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrBanned):
			s.terminate(noticeOut{Type: "user_banned", Message: "You have been banned from this room."})
		case errors.Is(err, store.ErrNotMember):
			s.terminate(noticeOut{Type: "user_kicked", Message: "You are no longer a member of this room."})
		default:
			log.Error().Err(err).Str("module", "chat").Str("room", s.roomName).Msg("message persist failed")
			_ = s.conn.Send(errorOut{Type: "error", Error: "message_failed"})
		}
		return
	}

	stamp := msg.CreatedAt
	if stamp.IsZero() {
		stamp = s.now()
	}
	_ = s.deps.Bus.Publish(ctx, s.roomName, bus.Event{
		Type:        bus.EventChatMessage,
		Username:    s.user.Username,
		DisplayName: s.user.DisplayNameOrUsername(),
		Text:        text,
		Timestamp:   stamp.Format(timestampLayout),
		MessageID:   msg.ID,
	})
}

func (s *Session) handleSound(data []byte) {
	var f soundFrame
	if err := json.Unmarshal(data, &f); err != nil || f.Sound == "" {
		return
	}
	room := s.currentRoom()
	ctx := s.ctx

	// Ephemeral events follow the same write-time rule as messages.
	banned, err := s.deps.Bans.IsActive(ctx, room.ID, s.user.ID)
	if err != nil {
		log.Error().Err(err).Str("module", "chat").Str("room", s.roomName).Msg("sound ban check")
		_ = s.conn.Send(errorOut{Type: "error", Error: "sound_failed"})
		return
	}
	if banned {
		s.terminate(noticeOut{Type: "user_banned", Message: "You have been banned from this room."})
		return
	}
	if _, err := s.deps.Members.Get(ctx, room.ID, s.user.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.terminate(noticeOut{Type: "user_kicked", Message: "You are no longer a member of this room."})
		}
		return
	}

	_ = s.deps.Bus.Publish(ctx, s.roomName, bus.Event{
		Type:        bus.EventSound,
		Username:    s.user.Username,
		DisplayName: s.user.DisplayNameOrUsername(),
		Sound:       f.Sound,
	})
}

// eventPump drains the group subscription until Leave closes it.
func (s *Session) eventPump(sub *bus.Subscription) {
	for ev := range sub.C {
		s.dispatch(ev)
	}
}

// dispatch is the single exhaustive switch over every event variant.
func (s *Session) dispatch(ev bus.Event) {
	switch ev.Type {
	case bus.EventChatMessage:
		_ = s.conn.Send(chatMessageOut{
			Type:        "chat_message",
			Message:     ev.Text,
			Username:    ev.Username,
			DisplayName: ev.DisplayName,
			Timestamp:   ev.Timestamp,
			MessageID:   ev.MessageID,
		})
	case bus.EventUserJoin:
		if ev.Username == s.user.Username {
			return
		}
		_ = s.conn.Send(userEventOut{Type: "user_join", Username: ev.Username, DisplayName: ev.DisplayName})
	case bus.EventUserLeave:
		if ev.Username == s.user.Username {
			return
		}
		_ = s.conn.Send(userEventOut{Type: "user_leave", Username: ev.Username, DisplayName: ev.DisplayName})
	case bus.EventUserKicked:
		if ev.Username == s.user.Username {
			s.terminate(noticeOut{Type: "user_kicked", Message: ev.Notice})
			return
		}
		_ = s.conn.Send(userEventOut{Type: "user_leave", Username: ev.Username, DisplayName: ev.DisplayName})
	case bus.EventUserBanned:
		if ev.Username == s.user.Username {
			s.terminate(noticeOut{Type: "user_banned", Message: ev.Notice})
			return
		}
		_ = s.conn.Send(userEventOut{Type: "user_leave", Username: ev.Username, DisplayName: ev.DisplayName})
	case bus.EventRoomDeleted:
		s.terminate(noticeOut{Type: "room_deleted", Message: ev.Notice})
	case bus.EventOwnershipTransferred:
		_ = s.conn.Send(transferOut{
			Type:     "ownership_transferred",
			OldOwner: ev.OldOwner,
			NewOwner: ev.NewOwner,
			Message:  ev.Notice,
		})
	case bus.EventSound:
		_ = s.conn.Send(soundOut{Type: "sound", Username: ev.Username, DisplayName: ev.DisplayName, Sound: ev.Sound})
	}
}

func (s *Session) terminate(notice any) {
	_ = s.conn.Send(notice)
	s.Close()
}

// Close tears the session down: heartbeat cancelled, group left, connection
// closed. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosing || s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosing
	cancel := s.cancelHeartbeat
	s.cancelHeartbeat = nil
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sub != nil {
		sub.Leave()
	}
	s.conn.Close()

	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
}

// Disconnect is invoked by the transport when the socket dies. The presence
// entry outlives the connection by the grace period so a page refresh does
// not flicker in every other participant's view.
func (s *Session) Disconnect() {
	wasJoined := s.State() == StateJoined
	s.Close()
	if !wasJoined {
		return
	}
	time.AfterFunc(s.deps.Settings.DisconnectGrace, s.finalizeDisconnect)
}

// finalizeDisconnect only acts if the user really stayed away: a reconnect
// in the grace window refreshed the heartbeat and makes this a no-op.
func (s *Session) finalizeDisconnect() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	age, seen, err := s.deps.Presence.HeartbeatAge(ctx, s.roomName, s.user.Username)
	if err != nil {
		log.Error().Err(err).Str("module", "chat").Str("room", s.roomName).Msg("disconnect finalize")
		return
	}
	if seen && age < s.deps.Settings.DisconnectGrace {
		return
	}
	removed, err := s.deps.Presence.Remove(ctx, s.roomName, s.user.Username)
	if err != nil || !removed {
		return
	}
	room := s.currentRoom()
	if room != nil {
		if err := s.deps.Members.SetStatus(ctx, room.ID, s.user.ID, domain.StatusOffline); err != nil {
			log.Error().Err(err).Str("module", "chat").Str("room", s.roomName).Msg("mark offline")
		}
	}
	_ = s.deps.Bus.Publish(ctx, s.roomName, bus.Event{
		Type:        bus.EventUserLeave,
		Username:    s.user.Username,
		DisplayName: s.user.DisplayNameOrUsername(),
	})
	log.Info().Str("module", "chat").Str("room", s.roomName).Str("user", s.user.Username).Msg("left room")
}

// heartbeatLoop refreshes the caller's heartbeat and prunes peers whose
// heartbeat went stale, the main cleanup path for clients that never reach
// the disconnect handler.
func (s *Session) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(s.deps.Settings.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.heartbeatTick(ctx)
		}
	}
}

func (s *Session) heartbeatTick(ctx context.Context) {
	if err := s.deps.Presence.TouchHeartbeat(ctx, s.roomName, s.user.Username); err != nil {
		log.Error().Err(err).Str("module", "chat").Str("room", s.roomName).Msg("heartbeat touch")
		return
	}
	entries, err := s.deps.Presence.Snapshot(ctx, s.roomName)
	if err != nil {
		log.Error().Err(err).Str("module", "chat").Str("room", s.roomName).Msg("heartbeat snapshot")
		return
	}
	for _, entry := range entries {
		if entry.Username == s.user.Username {
			continue
		}
		age, seen, err := s.deps.Presence.HeartbeatAge(ctx, s.roomName, entry.Username)
		if err != nil {
			continue
		}
		if seen && age <= s.deps.Settings.StalenessThreshold {
			continue
		}
		removed, err := s.deps.Presence.Remove(ctx, s.roomName, entry.Username)
		if err != nil || !removed {
			continue
		}
		s.markOffline(ctx, entry.Username)
		_ = s.deps.Bus.Publish(ctx, s.roomName, bus.Event{
			Type:        bus.EventUserLeave,
			Username:    entry.Username,
			DisplayName: entry.DisplayName,
		})
		log.Info().Str("module", "chat").Str("room", s.roomName).Str("user", entry.Username).Msg("pruned stale presence")
	}
}

func (s *Session) markOffline(ctx context.Context, username string) {
	room := s.currentRoom()
	if room == nil {
		return
	}
	u, err := s.deps.Users.GetByUsername(ctx, username)
	if err != nil {
		return
	}
	if err := s.deps.Members.SetStatus(ctx, room.ID, u.ID, domain.StatusOffline); err != nil {
		log.Error().Err(err).Str("module", "chat").Str("user", username).Msg("mark offline")
	}
}
