package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var seedInterests = []string{
	"Music", "Sports", "Art", "Travel", "Cooking",
	"Reading", "Gaming", "Hiking", "Film", "Photography",
}

var seedGoals = []string{GoalCasual, GoalSerious, GoalFriendship, GoalMarriage, GoalUnsure}

// SeedTestData resets the database and populates it with demo users,
// interests, preferences, wallets and swipe decisions.
//
// Behavior:
//  1. Clears all tables.
//  2. Creates 20 users (10 male, 10 female) with hashed passwords, birth
//     dates, relationship goals and 2-5 interests each.
//  3. Gives every user default preferences and a 10-coin wallet with the
//     opening bonus on the ledger.
//  4. Generates ~150 swipes with ~70% likes; every 3rd like is made mutual.
func SeedTestData(db *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	tables := []string{
		"messages", "conversations", "coin_transactions", "coin_wallets",
		"daily_message_quotas", "matches", "swipe_actions", "blocks",
		"user_interests", "interests", "preferences", "users",
	}
	for _, tbl := range tables {
		if err := db.Exec("DELETE FROM " + tbl).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", tbl, err)
		}
	}

	log.Println("Cleared existing data")

	var interests []Interest
	for _, name := range seedInterests {
		interests = append(interests, Interest{Name: name})
	}
	if err := db.Create(&interests).Error; err != nil {
		return fmt.Errorf("failed to seed interests: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	for i := 1; i <= 20; i++ {
		gender, lookingFor := "male", "female"
		if i > 10 {
			gender, lookingFor = "female", "male"
		}

		birth := time.Date(time.Now().Year()-20-r.Intn(20), time.Month(1+r.Intn(12)), 1+r.Intn(28), 0, 0, 0, 0, time.UTC)
		user := User{
			Username:          fmt.Sprintf("user%d", i),
			Email:             fmt.Sprintf("user%d@example.com", i),
			PasswordHash:      string(hash),
			Active:            true,
			Verified:          r.Intn(100) < 40,
			Gender:            gender,
			LookingForGender:  lookingFor,
			BirthDate:         &birth,
			RelationshipGoal:  seedGoals[r.Intn(len(seedGoals))],
			MinAgePreference:  18,
			MaxAgePreference:  45,
			ProfileCompletion: 50 + r.Intn(51),
		}
		if err := db.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to seed user: %w", err)
		}

		for _, idx := range r.Perm(len(interests))[:2+r.Intn(4)] {
			link := UserInterest{UserID: user.ID, InterestID: interests[idx].ID}
			if err := db.Create(&link).Error; err != nil {
				return fmt.Errorf("failed to seed interest link: %w", err)
			}
		}

		if err := db.Create(&Preference{UserID: user.ID}).Error; err != nil {
			return fmt.Errorf("failed to seed preference: %w", err)
		}

		wallet := CoinWallet{UserID: user.ID, Balance: 10, TotalEarned: 10}
		if err := db.Create(&wallet).Error; err != nil {
			return fmt.Errorf("failed to seed wallet: %w", err)
		}
		bonus := CoinTransaction{
			WalletUserID: user.ID,
			Amount:       10,
			Type:         TxBonus,
			BalanceAfter: 10,
			Description:  "Welcome bonus",
		}
		if err := db.Create(&bonus).Error; err != nil {
			return fmt.Errorf("failed to seed wallet bonus: %w", err)
		}
	}
	log.Println("Seeded 20 users with interests, preferences and wallets.")

	var users []User
	if err := db.Order("id").Find(&users).Error; err != nil {
		return err
	}

	upsert := clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "target_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"action", "match_score", "updated_at"}),
	}

	counter := 0
	for _, actor := range users {
		for j := 0; j < 8; j++ {
			target := users[r.Intn(len(users))]
			if actor.ID == target.ID || actor.Gender == target.Gender {
				continue
			}

			action := ActionPass
			if r.Intn(100) < 70 {
				action = ActionLike
			}

			// guarantee mutual likes every 3rd pair
			if counter%3 == 0 {
				action = ActionLike
				recip := SwipeAction{
					UserID:       target.ID,
					TargetUserID: actor.ID,
					Action:       ActionLike,
					MatchScore:   40 + r.Intn(60),
				}
				db.Clauses(upsert).Create(&recip)
			}

			swipe := SwipeAction{
				UserID:       actor.ID,
				TargetUserID: target.ID,
				Action:       action,
				MatchScore:   40 + r.Intn(60),
			}
			if err := db.Clauses(upsert).Create(&swipe).Error; err != nil {
				return fmt.Errorf("failed to seed swipe: %w", err)
			}

			counter++
		}
	}
	log.Printf("Seeded %d swipe decisions.", counter)

	return nil
}
