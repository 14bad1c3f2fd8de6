package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Swipe actions. Like and superlike exclude a target from the queue
// permanently; skips expire and the target re-enters the pool.
const (
	SwipeLike      = "like"
	SwipeSkip      = "skip"
	SwipeSuperlike = "superlike"
)

// Message types.
const (
	MessageText   = "text"
	MessageImage  = "image"
	MessageVoice  = "voice"
	MessageSystem = "system"
)

// Character rarity tiers, in ascending order of scarcity.
const (
	RarityCommon    = "common"
	RarityRare      = "rare"
	RarityEpic      = "epic"
	RarityLegendary = "legendary"
	RarityMythic    = "mythic"
)

// StringList stores a []string as a JSON text column. Used for profile
// interest tags, which are only ever read back whole.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal string list: %w", err)
	}
	return string(b), nil
}

func (l *StringList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported string list source type %T", src)
	}
}

// Profile is a user's identity plus matching attributes. Created once at
// onboarding completion and mutated only by its owner.
//
// FreeChestAt is the next instant the free chest may be opened; the zero
// value means it has never been opened.
type Profile struct {
	ID                  uint64 `gorm:"primaryKey;autoIncrement"`
	Handle              string `gorm:"uniqueIndex;size:64;not null"`
	Name                string `gorm:"size:128;not null"`
	PasswordHash        string `gorm:"size:255;not null"`
	Age                 int    `gorm:"not null"`
	AgePool             string `gorm:"size:16;not null;index:idx_profiles_pool_onboarded,priority:1"`
	Interests           StringList `gorm:"type:text"`
	Onboarded           bool       `gorm:"default:false;index:idx_profiles_pool_onboarded,priority:2"`
	Stars               int64      `gorm:"default:0"`
	EquippedCharacterID *uint64
	FreeChestAt         time.Time
	CreatedAt           time.Time `gorm:"autoCreateTime"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime"`
}

// Swipe is an append-only fact: actor acted on target. Duplicate rows for
// a pair are acceptable; only match creation must be exactly-once.
//
// Index idx_swipes_actor_action_created serves the exclusion-set query
// (all likes ever, skips inside the re-surfacing window).
type Swipe struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	ActorID   uint64    `gorm:"not null;index:idx_swipes_actor_action_created,priority:1;index:idx_swipes_actor_target,priority:1"`
	TargetID  uint64    `gorm:"not null;index:idx_swipes_actor_target,priority:2"`
	Action    string    `gorm:"size:16;not null;index:idx_swipes_actor_action_created,priority:2"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_swipes_actor_action_created,priority:3"`
}

// Match is keyed by the unordered user pair. The pair is stored sorted
// (User1ID < User2ID) and backed by a unique composite index, so at most
// one row can ever exist per pair regardless of which side's swipe races
// in first.
type Match struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	User1ID   uint64    `gorm:"not null;uniqueIndex:idx_matches_pair,priority:1"`
	User2ID   uint64    `gorm:"not null;uniqueIndex:idx_matches_pair,priority:2;index"`
	VibeScore int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Message belongs to exactly one match. ReadAt is set once by the
// recipient; rows are never otherwise updated.
type Message struct {
	ID        string    `gorm:"primaryKey;size:36"`
	MatchID   uint64    `gorm:"not null;index:idx_messages_match_created,priority:1"`
	SenderID  uint64    `gorm:"not null"`
	Type      string    `gorm:"size:16;not null;default:text"`
	Content   string    `gorm:"type:text"`
	MediaURL  string    `gorm:"size:512"`
	ReadAt    *time.Time
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_messages_match_created,priority:2"`
}

// Collection groups characters active in a time window.
type Collection struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	Name     string `gorm:"size:128;not null"`
	Active   bool   `gorm:"default:true"`
	StartsAt time.Time
	EndsAt   time.Time
}

// Character is a collectible with a rarity tier and a drop weight. Drop
// rates across a collection should sum to ~1.0.
type Character struct {
	ID           uint64  `gorm:"primaryKey;autoIncrement"`
	CollectionID uint64  `gorm:"not null;index"`
	Name         string  `gorm:"size:128;not null"`
	Rarity       string  `gorm:"size:16;not null"`
	DropRate     float64 `gorm:"not null"`
	ImageURL     string  `gorm:"size:512"`
}

// UserCharacter is the ownership join row: one per user+character.
// Duplicate acquisitions add XP instead of a second row. At most one row
// per user has Equipped set; the equip flow unequips all others first.
type UserCharacter struct {
	UserID      uint64 `gorm:"primaryKey"`
	CharacterID uint64 `gorm:"primaryKey"`
	Level       int    `gorm:"default:1"`
	XP          int    `gorm:"default:0"`
	Equipped    bool   `gorm:"default:false;index"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// Room is an ephemeral group space. MemberCount must stay within
// MaxMembers; the join flow checks capacity inside a transaction.
type Room struct {
	ID         string `gorm:"primaryKey;size:36"`
	Name       string `gorm:"size:128;not null"`
	Kind       string `gorm:"size:16;not null;default:text"`
	AgePool    string `gorm:"size:16;not null"`
	OwnerID    uint64 `gorm:"not null"`
	MaxMembers int    `gorm:"not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

type RoomMember struct {
	RoomID   string    `gorm:"primaryKey;size:36"`
	UserID   uint64    `gorm:"primaryKey"`
	JoinedAt time.Time `gorm:"autoCreateTime"`
}

type RoomMessage struct {
	ID        string    `gorm:"primaryKey;size:36"`
	RoomID    string    `gorm:"not null;size:36;index:idx_room_messages_room_created,priority:1"`
	SenderID  uint64    `gorm:"not null"`
	Content   string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_room_messages_room_created,priority:2"`
}
