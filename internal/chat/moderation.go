package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ryanhackme1207/Everspace/internal/bus"
	"github.com/ryanhackme1207/Everspace/internal/domain"
	"github.com/ryanhackme1207/Everspace/internal/presence"
	"github.com/ryanhackme1207/Everspace/internal/store"
)

// Dispatcher carries moderation actions into the live room: it mutates the
// ledger and publishes the matching event. It never reaches into sessions
// directly; the target's own session force-closes itself when it sees the
// event about itself.
type Dispatcher struct {
	Presence presence.Store
	Bus      bus.Bus
	Rooms    store.RoomRepository
	Members  store.MembershipRepository
	Bans     store.BanRepository
	Users    store.UserRepository
}

var (
	ErrNotMember     = errors.New("target is not a member of the room")
	ErrAlreadyBanned = errors.New("target is already banned")
)

// Kick removes the target's membership and broadcasts user_kicked. The
// caller's host authorization has already been checked upstream.
func (d *Dispatcher) Kick(ctx context.Context, room *domain.Room, target *domain.User, by *domain.User) error {
	if _, err := d.Members.Get(ctx, room.ID, target.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotMember
		}
		return err
	}
	if err := d.Members.Delete(ctx, room.ID, target.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if _, err := d.Presence.Remove(ctx, room.Name, target.Username); err != nil {
		log.Error().Err(err).Str("module", "moderation").Str("room", room.Name).Msg("presence remove on kick")
	}
	err := d.Bus.Publish(ctx, room.Name, bus.Event{
		Type:        bus.EventUserKicked,
		Username:    target.Username,
		DisplayName: target.DisplayNameOrUsername(),
		Notice:      fmt.Sprintf("You have been kicked from the room by %s.", by.DisplayNameOrUsername()),
	})
	if err != nil {
		return err
	}
	log.Info().Str("module", "moderation").Str("room", room.Name).Str("target", target.Username).Str("by", by.Username).Msg("kicked")
	return nil
}

// Ban deletes any membership, records the ban and broadcasts user_banned.
func (d *Dispatcher) Ban(ctx context.Context, room *domain.Room, target *domain.User, by *domain.User, reason string) error {
	active, err := d.Bans.IsActive(ctx, room.ID, target.ID)
	if err != nil {
		return err
	}
	if active {
		return ErrAlreadyBanned
	}
	if err := d.Members.Delete(ctx, room.ID, target.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	err = d.Bans.Upsert(ctx, &domain.Ban{
		RoomID:   room.ID,
		UserID:   target.ID,
		BannedBy: by.ID,
		Reason:   reason,
	})
	if err != nil {
		return err
	}
	if _, err := d.Presence.Remove(ctx, room.Name, target.Username); err != nil {
		log.Error().Err(err).Str("module", "moderation").Str("room", room.Name).Msg("presence remove on ban")
	}
	notice := fmt.Sprintf("You have been banned from the room by %s.", by.DisplayNameOrUsername())
	if reason != "" {
		notice = fmt.Sprintf("%s Reason: %s", notice, reason)
	}
	err = d.Bus.Publish(ctx, room.Name, bus.Event{
		Type:        bus.EventUserBanned,
		Username:    target.Username,
		DisplayName: target.DisplayNameOrUsername(),
		Notice:      notice,
	})
	if err != nil {
		return err
	}
	log.Info().Str("module", "moderation").Str("room", room.Name).Str("target", target.Username).Str("by", by.Username).Msg("banned")
	return nil
}

// Unban lifts the ban. Membership is not restored; the user must rejoin.
func (d *Dispatcher) Unban(ctx context.Context, room *domain.Room, target *domain.User) error {
	if err := d.Bans.Deactivate(ctx, room.ID, target.ID); err != nil {
		return err
	}
	log.Info().Str("module", "moderation").Str("room", room.Name).Str("target", target.Username).Msg("unbanned")
	return nil
}

// TransferOwnership promotes newOwner, demotes the old host in the same
// transaction and updates the room's creator. Informational broadcast only.
func (d *Dispatcher) TransferOwnership(ctx context.Context, room *domain.Room, oldOwner, newOwner *domain.User) error {
	if err := d.Members.TransferHost(ctx, room.ID, newOwner.ID); err != nil {
		if errors.Is(err, store.ErrNotMember) {
			return ErrNotMember
		}
		return err
	}
	if err := d.Rooms.SetCreator(ctx, room.ID, newOwner.ID); err != nil {
		return err
	}
	err := d.Bus.Publish(ctx, room.Name, bus.Event{
		Type:     bus.EventOwnershipTransferred,
		OldOwner: oldOwner.Username,
		NewOwner: newOwner.Username,
		Notice:   fmt.Sprintf("%s is now the room host.", newOwner.DisplayNameOrUsername()),
	})
	if err != nil {
		return err
	}
	log.Info().Str("module", "moderation").Str("room", room.Name).Str("old", oldOwner.Username).Str("new", newOwner.Username).Msg("ownership transferred")
	return nil
}

// DeleteRoom broadcasts room_deleted and clears presence before the durable
// row goes away. Publishing first means no session can observe a half-deleted
// room while revalidating a write.
func (d *Dispatcher) DeleteRoom(ctx context.Context, room *domain.Room) error {
	err := d.Bus.Publish(ctx, room.Name, bus.Event{
		Type:   bus.EventRoomDeleted,
		Notice: fmt.Sprintf("Room %q has been deleted by its creator.", room.Name),
	})
	if err != nil {
		return err
	}
	if err := d.Presence.Clear(ctx, room.Name); err != nil {
		log.Error().Err(err).Str("module", "moderation").Str("room", room.Name).Msg("presence clear on delete")
	}
	if err := d.Rooms.Delete(ctx, room.ID); err != nil {
		return err
	}
	log.Info().Str("module", "moderation").Str("room", room.Name).Msg("room deleted")
	return nil
}
