package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var seedInterests = []string{
	"music", "games", "movies", "anime", "sports",
	"books", "travel", "art", "food", "fashion",
}

// SeedTestData resets the database and populates it with demo data.
//
// Behavior:
//  1. Clears all Amor tables.
//  2. Creates 20 onboarded profiles split across the "teens" and "adults"
//     age pools, with hashed passwords, random interests and 500 stars.
//  3. Creates one active collection with a 5-tier rarity table whose drop
//     rates sum to 1.0.
//  4. Generates a spread of swipes including guaranteed mutual likes.
//
// Compatible with both MySQL and SQLite (sequence reset skipped for SQLite).
func SeedTestData(database *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	tables := []string{
		"room_messages", "room_members", "rooms",
		"user_characters", "characters", "collections",
		"messages", "matches", "swipes", "profiles",
	}
	for _, table := range tables {
		if err := database.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	switch database.Dialector.Name() {
	case "mysql":
		for _, table := range tables {
			database.Exec("ALTER TABLE " + table + " AUTO_INCREMENT = 1")
		}
	case "sqlite":
		for _, table := range tables {
			database.Exec("DELETE FROM sqlite_sequence WHERE name = ?", table)
		}
	}

	log.Println("Cleared existing data")

	// --- Profiles (two age pools) ---
	for i := 1; i <= 20; i++ {
		hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		pool := "teens"
		age := 16 + r.Intn(3)
		if i > 10 {
			pool = "adults"
			age = 19 + r.Intn(10)
		}

		// 2-4 random interests per profile
		tags := StringList{}
		for _, idx := range r.Perm(len(seedInterests))[:2+r.Intn(3)] {
			tags = append(tags, seedInterests[idx])
		}

		profile := Profile{
			ID:           uint64(i),
			Handle:       fmt.Sprintf("user%d", i),
			Name:         fmt.Sprintf("User %d", i),
			PasswordHash: string(hash),
			Age:          age,
			AgePool:      pool,
			Interests:    tags,
			Onboarded:    true,
			Stars:        500,
		}
		if err := database.Create(&profile).Error; err != nil {
			return fmt.Errorf("failed to seed profile %d: %w", i, err)
		}
	}

	// --- Collection with a 5-tier rarity table (weights sum to 1.0) ---
	collection := Collection{
		Name:     "Starter Collection",
		Active:   true,
		StartsAt: time.Now().AddDate(0, -1, 0),
		EndsAt:   time.Now().AddDate(0, 11, 0),
	}
	if err := database.Create(&collection).Error; err != nil {
		return fmt.Errorf("failed to seed collection: %w", err)
	}

	characters := []Character{
		{CollectionID: collection.ID, Name: "Pebble", Rarity: RarityCommon, DropRate: 0.50},
		{CollectionID: collection.ID, Name: "Luna", Rarity: RarityRare, DropRate: 0.25},
		{CollectionID: collection.ID, Name: "Blaze", Rarity: RarityEpic, DropRate: 0.15},
		{CollectionID: collection.ID, Name: "Aurora", Rarity: RarityLegendary, DropRate: 0.08},
		{CollectionID: collection.ID, Name: "Eclipse", Rarity: RarityMythic, DropRate: 0.02},
	}
	if err := database.Create(&characters).Error; err != nil {
		return fmt.Errorf("failed to seed characters: %w", err)
	}

	// --- Swipes: ~70% likes, every 3rd pair made mutual ---
	count := 0
	for actor := uint64(1); actor <= 10; actor++ {
		for target := uint64(1); target <= 10; target++ {
			if actor == target || r.Float64() > 0.6 {
				continue
			}

			action := SwipeLike
			if r.Float64() > 0.7 {
				action = SwipeSkip
			}
			if err := database.Create(&Swipe{ActorID: actor, TargetID: target, Action: action}).Error; err != nil {
				return fmt.Errorf("failed to seed swipe: %w", err)
			}
			count++

			if action == SwipeLike && count%3 == 0 {
				if err := database.Create(&Swipe{ActorID: target, TargetID: actor, Action: SwipeLike}).Error; err != nil {
					return fmt.Errorf("failed to seed reciprocal swipe: %w", err)
				}
				count++
			}
		}
	}

	log.Printf("Seeded 20 profiles, %d characters, %d swipes", len(characters), count)
	return nil
}
