package repository

import (
	"context"
	"errors"

	"github.com/amorhq/amor-core/internal/apperr"
	"github.com/amorhq/amor-core/internal/db"
	"gorm.io/gorm"
)

// RoomRepository provides data access for mood rooms.
type RoomRepository struct {
	db *gorm.DB
}

// NewRoomRepository creates a new repository bound to the given DB connection.
func NewRoomRepository(database *gorm.DB) *RoomRepository {
	return &RoomRepository{db: database}
}

// Create inserts a room.
func (r *RoomRepository) Create(ctx context.Context, room *db.Room) error {
	return r.db.WithContext(ctx).Create(room).Error
}

// Get returns one room or apperr.ErrNotFound.
func (r *RoomRepository) Get(ctx context.Context, roomID string) (*db.Room, error) {
	var room db.Room
	err := r.db.WithContext(ctx).First(&room, "id = ?", roomID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// List returns rooms for an age pool, newest first.
func (r *RoomRepository) List(ctx context.Context, agePool string, limit int) ([]db.Room, error) {
	var rooms []db.Room
	err := r.db.WithContext(ctx).
		Where("age_pool = ?", agePool).
		Order("created_at DESC").
		Limit(limit).
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

// AddMember joins the user to the room, enforcing the capacity invariant
// (memberCount <= max_members) inside the same transaction as the count.
// A full room surfaces as a typed apperr rejection.
func (r *RoomRepository) AddMember(ctx context.Context, room *db.Room, userID uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&db.RoomMember{}).Where("room_id = ?", room.ID).Count(&count).Error; err != nil {
			return err
		}
		if count >= int64(room.MaxMembers) {
			return apperr.Reject(apperr.RejectRoomFull, "room %q is full (%d/%d)", room.Name, count, room.MaxMembers)
		}

		member := db.RoomMember{RoomID: room.ID, UserID: userID}
		err := tx.Create(&member).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil // already a member
		}
		return err
	})
}

// RemoveMember leaves the room. Removing a non-member is a no-op.
func (r *RoomRepository) RemoveMember(ctx context.Context, roomID string, userID uint64) error {
	return r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Delete(&db.RoomMember{}).Error
}

// MemberCount reports the room's current occupancy.
func (r *RoomRepository) MemberCount(ctx context.Context, roomID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.RoomMember{}).
		Where("room_id = ?", roomID).
		Count(&count).Error
	return count, err
}

// IsMember reports whether the user has joined the room.
func (r *RoomRepository) IsMember(ctx context.Context, roomID string, userID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	return count > 0, err
}

// CreateMessage appends a room message.
func (r *RoomRepository) CreateMessage(ctx context.Context, message *db.RoomMessage) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// Messages returns the room's newest messages in chronological order.
func (r *RoomRepository) Messages(ctx context.Context, roomID string, limit int) ([]db.RoomMessage, error) {
	var messages []db.RoomMessage
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
