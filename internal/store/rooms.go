package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ryanhackme1207/Everspace/internal/domain"
)

type GormRoomRepository struct {
	db *gorm.DB
}

func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	return &GormRoomRepository{db: db}
}

func (r *GormRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	err := r.db.WithContext(ctx).Create(room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return fmt.Errorf("create room: %w", err)
	}
	return nil
}

func (r *GormRoomRepository) GetByName(ctx context.Context, name string) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get room: %w", err)
	}
	return &room, nil
}

func (r *GormRoomRepository) GetOrCreate(ctx context.Context, name string, creatorID uint) (*domain.Room, bool, error) {
	room, err := r.GetByName(ctx, name)
	if err == nil {
		return room, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	fresh, err := domain.NewRoom(name, domain.VisibilityPublic, "", creatorID)
	if err != nil {
		return nil, false, err
	}
	// Concurrent first joins may race on the unique name; the loser re-reads.
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(fresh).Error
	if err != nil {
		return nil, false, fmt.Errorf("create room: %w", err)
	}
	if fresh.ID != 0 {
		return fresh, true, nil
	}
	room, err = r.GetByName(ctx, name)
	return room, false, err
}

func (r *GormRoomRepository) Delete(ctx context.Context, roomID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", roomID).Delete(&domain.Membership{}).Error; err != nil {
			return fmt.Errorf("delete memberships: %w", err)
		}
		if err := tx.Where("room_id = ?", roomID).Delete(&domain.Message{}).Error; err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		if err := tx.Delete(&domain.Room{}, roomID).Error; err != nil {
			return fmt.Errorf("delete room: %w", err)
		}
		return nil
	})
}

func (r *GormRoomRepository) List(ctx context.Context) ([]domain.Room, error) {
	var rooms []domain.Room
	if err := r.db.WithContext(ctx).Order("name").Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

func (r *GormRoomRepository) SetCreator(ctx context.Context, roomID, userID uint) error {
	res := r.db.WithContext(ctx).Model(&domain.Room{}).Where("id = ?", roomID).Update("creator_id", userID)
	if res.Error != nil {
		return fmt.Errorf("set creator: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
