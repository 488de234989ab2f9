package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ryanhackme1207/Everspace/internal/domain"
)

type GormMembershipRepository struct {
	db *gorm.DB
}

func NewGormMembershipRepository(db *gorm.DB) *GormMembershipRepository {
	return &GormMembershipRepository{db: db}
}

func (r *GormMembershipRepository) Get(ctx context.Context, roomID, userID uint) (*domain.Membership, error) {
	var m domain.Membership
	err := r.db.WithContext(ctx).Where("room_id = ? AND user_id = ?", roomID, userID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return &m, nil
}

func (r *GormMembershipRepository) Upsert(ctx context.Context, m *domain.Membership) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "status", "last_seen"}),
	}).Create(m).Error
	if err != nil {
		return fmt.Errorf("upsert membership: %w", err)
	}
	return nil
}

func (r *GormMembershipRepository) Delete(ctx context.Context, roomID, userID uint) error {
	res := r.db.WithContext(ctx).Where("room_id = ? AND user_id = ?", roomID, userID).Delete(&domain.Membership{})
	if res.Error != nil {
		return fmt.Errorf("delete membership: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormMembershipRepository) SetStatus(ctx context.Context, roomID, userID uint, status domain.MemberStatus) error {
	err := r.db.WithContext(ctx).Model(&domain.Membership{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Updates(map[string]any{"status": status, "last_seen": time.Now()}).Error
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return nil
}

func (r *GormMembershipRepository) ListOnline(ctx context.Context, roomID uint) ([]domain.Membership, error) {
	var out []domain.Membership
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND status = ?", roomID, domain.StatusOnline).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list online: %w", err)
	}
	return out, nil
}

func (r *GormMembershipRepository) HostOf(ctx context.Context, roomID uint) (*domain.Membership, error) {
	var m domain.Membership
	err := r.db.WithContext(ctx).Where("room_id = ? AND role = ?", roomID, domain.RoleHost).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("host of room: %w", err)
	}
	return &m, nil
}

func (r *GormMembershipRepository) TransferHost(ctx context.Context, roomID, newOwnerID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target domain.Membership
		err := tx.Where("room_id = ? AND user_id = ?", roomID, newOwnerID).First(&target).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotMember
			}
			return fmt.Errorf("get new owner: %w", err)
		}
		err = tx.Model(&domain.Membership{}).
			Where("room_id = ? AND role = ?", roomID, domain.RoleHost).
			Update("role", domain.RoleMember).Error
		if err != nil {
			return fmt.Errorf("demote host: %w", err)
		}
		err = tx.Model(&domain.Membership{}).
			Where("id = ?", target.ID).
			Update("role", domain.RoleHost).Error
		if err != nil {
			return fmt.Errorf("promote host: %w", err)
		}
		return nil
	})
}
