// Package room implements mood rooms: ephemeral group spaces with a
// hard capacity invariant and realtime message fan-out.
package room

import (
	"context"
	"fmt"

	"github.com/amorhq/amor-core/internal/app"
	"github.com/amorhq/amor-core/internal/apperr"
	"github.com/amorhq/amor-core/internal/db"
	"github.com/amorhq/amor-core/internal/realtime"
	"github.com/amorhq/amor-core/internal/repository"
	"github.com/google/uuid"
)

// Service implements room lifecycle and messaging.
type Service struct {
	appCtx      *app.AppContext
	roomRepo    *repository.RoomRepository
	profileRepo *repository.ProfileRepository
}

// NewService creates a room service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:      appCtx,
		roomRepo:    repository.NewRoomRepository(appCtx.DB),
		profileRepo: repository.NewProfileRepository(appCtx.DB),
	}
}

// Create opens a room in the owner's age pool and joins the owner.
func (s *Service) Create(ctx context.Context, ownerID uint64, name, kind string, maxMembers int) (*db.Room, error) {
	if kind != "text" && kind != "voice" {
		return nil, fmt.Errorf("unknown room kind %q", kind)
	}
	if maxMembers < 2 {
		return nil, fmt.Errorf("room capacity must be at least 2")
	}

	owner, err := s.profileRepo.GetByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	room := &db.Room{
		ID:         uuid.NewString(),
		Name:       name,
		Kind:       kind,
		AgePool:    owner.AgePool,
		OwnerID:    ownerID,
		MaxMembers: maxMembers,
	}
	if err := s.roomRepo.Create(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	if err := s.roomRepo.AddMember(ctx, room, ownerID); err != nil {
		return nil, err
	}
	return room, nil
}

// Join adds the user, enforcing both the age-pool partition and the
// capacity invariant. A full room comes back as a typed rejection.
func (s *Service) Join(ctx context.Context, roomID string, userID uint64) error {
	room, err := s.roomRepo.Get(ctx, roomID)
	if err != nil {
		return err
	}
	profile, err := s.profileRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if profile.AgePool != room.AgePool {
		return apperr.ErrForbidden
	}
	return s.roomRepo.AddMember(ctx, room, userID)
}

// Leave removes the user. Leaving a room never joined is a no-op.
func (s *Service) Leave(ctx context.Context, roomID string, userID uint64) error {
	return s.roomRepo.RemoveMember(ctx, roomID, userID)
}

// List returns rooms in the user's age pool.
func (s *Service) List(ctx context.Context, userID uint64, limit int) ([]db.Room, error) {
	profile, err := s.profileRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.roomRepo.List(ctx, profile.AgePool, limit)
}

// Send appends a room message and fans it out on the room channel.
// Members only.
func (s *Service) Send(ctx context.Context, roomID string, userID uint64, content string) (*db.RoomMessage, error) {
	member, err := s.roomRepo.IsMember(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, apperr.ErrForbidden
	}

	message := &db.RoomMessage{
		ID:       uuid.NewString(),
		RoomID:   roomID,
		SenderID: userID,
		Content:  content,
	}
	if err := s.roomRepo.CreateMessage(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to send room message: %w", err)
	}

	ev, err := realtime.NewEvent(realtime.KindRoomMessage, message)
	if err == nil {
		if pubErr := s.appCtx.Bus.Publish(ctx, realtime.RoomChannel(roomID), ev); pubErr != nil {
			s.appCtx.Logger.Warn("failed to fan out room message", "room", roomID, "err", pubErr)
		}
	}
	return message, nil
}

// Messages returns the room's recent messages in chronological order.
// Members only.
func (s *Service) Messages(ctx context.Context, roomID string, userID uint64, limit int) ([]db.RoomMessage, error) {
	member, err := s.roomRepo.IsMember(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, apperr.ErrForbidden
	}
	return s.roomRepo.Messages(ctx, roomID, limit)
}
