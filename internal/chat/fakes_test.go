package chat

import (
	"context"
	"sync"
	"time"

	"github.com/ryanhackme1207/Everspace/internal/domain"
	"github.com/ryanhackme1207/Everspace/internal/store"
)

// fakeConn records everything the session sends.
type fakeConn struct {
	mu     sync.Mutex
	frames []any
	closed bool
}

func (c *fakeConn) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, v)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) snapshot() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, len(c.frames))
	copy(out, c.frames)
	return out
}

func (c *fakeConn) countType(frameType string) int {
	n := 0
	for _, f := range c.snapshot() {
		if typeOf(f) == frameType {
			n++
		}
	}
	return n
}

func (c *fakeConn) lastOfType(frameType string) (any, bool) {
	var found any
	ok := false
	for _, f := range c.snapshot() {
		if typeOf(f) == frameType {
			found, ok = f, true
		}
	}
	return found, ok
}

func typeOf(f any) string {
	switch v := f.(type) {
	case activeUsersOut:
		return v.Type
	case chatMessageOut:
		return v.Type
	case userEventOut:
		return v.Type
	case noticeOut:
		return v.Type
	case transferOut:
		return v.Type
	case soundOut:
		return v.Type
	case errorOut:
		return v.Type
	case passwordRequiredOut:
		return v.Type
	default:
		return ""
	}
}

// In-memory ledger fakes. They share state so the message repository can run
// the same write-time membership and ban checks the gorm one does.

type memberKey struct{ roomID, userID uint }

type fakeLedger struct {
	mu      sync.Mutex
	nextID  uint
	rooms   map[string]*domain.Room
	members map[memberKey]*domain.Membership
	bans    map[memberKey]*domain.Ban
	users   map[string]*domain.User
	msgs    []*domain.Message
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		rooms:   make(map[string]*domain.Room),
		members: make(map[memberKey]*domain.Membership),
		bans:    make(map[memberKey]*domain.Ban),
		users:   make(map[string]*domain.User),
	}
}

func (l *fakeLedger) addUser(username, displayName string) *domain.User {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	u := &domain.User{ID: l.nextID, Username: username, DisplayName: displayName}
	l.users[username] = u
	return u
}

type fakeRooms struct{ l *fakeLedger }

func (r fakeRooms) Create(_ context.Context, room *domain.Room) error {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	if _, ok := r.l.rooms[room.Name]; ok {
		return store.ErrDuplicate
	}
	r.l.nextID++
	room.ID = r.l.nextID
	r.l.rooms[room.Name] = room
	return nil
}

func (r fakeRooms) GetByName(_ context.Context, name string) (*domain.Room, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	room, ok := r.l.rooms[name]
	if !ok {
		return nil, store.ErrNotFound
	}
	return room, nil
}

func (r fakeRooms) GetOrCreate(ctx context.Context, name string, creatorID uint) (*domain.Room, bool, error) {
	if room, err := r.GetByName(ctx, name); err == nil {
		return room, false, nil
	}
	room, err := domain.NewRoom(name, domain.VisibilityPublic, "", creatorID)
	if err != nil {
		return nil, false, err
	}
	if err := r.Create(ctx, room); err != nil {
		return nil, false, err
	}
	return room, true, nil
}

func (r fakeRooms) Delete(_ context.Context, roomID uint) error {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	for name, room := range r.l.rooms {
		if room.ID == roomID {
			delete(r.l.rooms, name)
			return nil
		}
	}
	return store.ErrNotFound
}

func (r fakeRooms) List(_ context.Context) ([]domain.Room, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	out := make([]domain.Room, 0, len(r.l.rooms))
	for _, room := range r.l.rooms {
		out = append(out, *room)
	}
	return out, nil
}

func (r fakeRooms) SetCreator(_ context.Context, roomID, userID uint) error {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	for _, room := range r.l.rooms {
		if room.ID == roomID {
			room.CreatorID = userID
			return nil
		}
	}
	return store.ErrNotFound
}

type fakeMembers struct{ l *fakeLedger }

func (m fakeMembers) Get(_ context.Context, roomID, userID uint) (*domain.Membership, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	mem, ok := m.l.members[memberKey{roomID, userID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	return mem, nil
}

func (m fakeMembers) Upsert(_ context.Context, mem *domain.Membership) error {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	key := memberKey{mem.RoomID, mem.UserID}
	if existing, ok := m.l.members[key]; ok {
		existing.Role = mem.Role
		existing.Status = mem.Status
		existing.LastSeen = mem.LastSeen
		return nil
	}
	m.l.members[key] = mem
	return nil
}

func (m fakeMembers) Delete(_ context.Context, roomID, userID uint) error {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	key := memberKey{roomID, userID}
	if _, ok := m.l.members[key]; !ok {
		return store.ErrNotFound
	}
	delete(m.l.members, key)
	return nil
}

func (m fakeMembers) SetStatus(_ context.Context, roomID, userID uint, status domain.MemberStatus) error {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	if mem, ok := m.l.members[memberKey{roomID, userID}]; ok {
		mem.Status = status
		mem.LastSeen = time.Now()
	}
	return nil
}

func (m fakeMembers) ListOnline(_ context.Context, roomID uint) ([]domain.Membership, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	var out []domain.Membership
	for _, mem := range m.l.members {
		if mem.RoomID == roomID && mem.Status == domain.StatusOnline {
			out = append(out, *mem)
		}
	}
	return out, nil
}

func (m fakeMembers) HostOf(_ context.Context, roomID uint) (*domain.Membership, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	for _, mem := range m.l.members {
		if mem.RoomID == roomID && mem.Role == domain.RoleHost {
			return mem, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m fakeMembers) TransferHost(_ context.Context, roomID, newOwnerID uint) error {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	target, ok := m.l.members[memberKey{roomID, newOwnerID}]
	if !ok {
		return store.ErrNotMember
	}
	for _, mem := range m.l.members {
		if mem.RoomID == roomID && mem.Role == domain.RoleHost {
			mem.Role = domain.RoleMember
		}
	}
	target.Role = domain.RoleHost
	return nil
}

type fakeBans struct{ l *fakeLedger }

func (b fakeBans) Upsert(_ context.Context, ban *domain.Ban) error {
	b.l.mu.Lock()
	defer b.l.mu.Unlock()
	ban.Active = true
	b.l.bans[memberKey{ban.RoomID, ban.UserID}] = ban
	return nil
}

func (b fakeBans) Deactivate(_ context.Context, roomID, userID uint) error {
	b.l.mu.Lock()
	defer b.l.mu.Unlock()
	ban, ok := b.l.bans[memberKey{roomID, userID}]
	if !ok || !ban.Active {
		return store.ErrNotFound
	}
	ban.Active = false
	return nil
}

func (b fakeBans) IsActive(_ context.Context, roomID, userID uint) (bool, error) {
	b.l.mu.Lock()
	defer b.l.mu.Unlock()
	ban, ok := b.l.bans[memberKey{roomID, userID}]
	return ok && ban.Active, nil
}

func (b fakeBans) ListActive(_ context.Context, roomID uint) ([]domain.Ban, error) {
	b.l.mu.Lock()
	defer b.l.mu.Unlock()
	var out []domain.Ban
	for _, ban := range b.l.bans {
		if ban.RoomID == roomID && ban.Active {
			out = append(out, *ban)
		}
	}
	return out, nil
}

type fakeMessages struct{ l *fakeLedger }

func (m fakeMessages) Create(_ context.Context, roomID, userID uint, text string) (*domain.Message, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	if ban, ok := m.l.bans[memberKey{roomID, userID}]; ok && ban.Active {
		return nil, store.ErrBanned
	}
	if _, ok := m.l.members[memberKey{roomID, userID}]; !ok {
		return nil, store.ErrNotMember
	}
	msg := &domain.Message{
		ID:        int64(len(m.l.msgs) + 1),
		RoomID:    roomID,
		UserID:    userID,
		Content:   text,
		CreatedAt: time.Now(),
	}
	m.l.msgs = append(m.l.msgs, msg)
	return msg, nil
}

func (m fakeMessages) ListRecent(_ context.Context, roomID uint, limit int) ([]domain.Message, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	var out []domain.Message
	for _, msg := range m.l.msgs {
		if msg.RoomID == roomID && !msg.Deleted {
			out = append(out, *msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m fakeMessages) SoftDelete(_ context.Context, messageID int64) error {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	for _, msg := range m.l.msgs {
		if msg.ID == messageID {
			msg.Deleted = true
			return nil
		}
	}
	return store.ErrNotFound
}

type fakeUsers struct{ l *fakeLedger }

func (u fakeUsers) Create(_ context.Context, user *domain.User) error {
	u.l.mu.Lock()
	defer u.l.mu.Unlock()
	if _, ok := u.l.users[user.Username]; ok {
		return store.ErrDuplicate
	}
	u.l.nextID++
	user.ID = u.l.nextID
	u.l.users[user.Username] = user
	return nil
}

func (u fakeUsers) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	u.l.mu.Lock()
	defer u.l.mu.Unlock()
	user, ok := u.l.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return user, nil
}

func (u fakeUsers) GetByID(_ context.Context, id uint) (*domain.User, error) {
	u.l.mu.Lock()
	defer u.l.mu.Unlock()
	for _, user := range u.l.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, store.ErrNotFound
}
