package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/heartbeam/heartbeam/internal/db"
	domainErr "github.com/heartbeam/heartbeam/internal/errors"
)

// UserRepository reads the user/profile fields the matching core needs.
// Profile mutation belongs to a collaborator service; nothing here writes
// users except the seeder.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(database *gorm.DB) *UserRepository {
	return &UserRepository{db: database}
}

// Get returns the user or ErrUserNotFound.
func (r *UserRepository) Get(ctx context.Context, id uint64) (*db.User, error) {
	var user db.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainErr.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// InterestIDs returns the set of interest ids attached to a user.
func (r *UserRepository) InterestIDs(ctx context.Context, userID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).
		Model(&db.UserInterest{}).
		Where("user_id = ?", userID).
		Pluck("interest_id", &ids).Error
	return ids, err
}

// CandidateFilter narrows the discovery pool with hard filters; all of
// them run database-side.
type CandidateFilter struct {
	ExcludeUserID uint64 // the requester
	Gender        string // empty means any
	MinBirthYear  int    // 0 disables the age filter
	MaxBirthYear  int
	MinCompletion int
	VerifiedOnly  bool
	ExcludeIDs    []uint64 // blocked + (optionally) already-swiped users
	Limit         int
}

// ListCandidates pulls the oversized candidate batch for discovery.
//
// Behavior:
//   - Only active users, never the requester.
//   - Gender, birth-year range, completion and verified filters apply when set.
//   - ExcludeIDs (block union, seen profiles) are removed in the query.
func (r *UserRepository) ListCandidates(ctx context.Context, f CandidateFilter) ([]db.User, error) {
	query := r.db.WithContext(ctx).
		Model(&db.User{}).
		Where("active = ?", true).
		Where("id <> ?", f.ExcludeUserID)

	if f.Gender != "" {
		query = query.Where("gender = ?", f.Gender)
	}
	if f.MinBirthYear > 0 {
		// birth_date within [min_birth_year, max_birth_year]
		from := time.Date(f.MinBirthYear, time.January, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(f.MaxBirthYear+1, time.January, 1, 0, 0, 0, 0, time.UTC)
		query = query.Where("birth_date >= ? AND birth_date < ?", from, to)
	}
	if f.MinCompletion > 0 {
		query = query.Where("profile_completion >= ?", f.MinCompletion)
	}
	if f.VerifiedOnly {
		query = query.Where("verified = ?", true)
	}
	if len(f.ExcludeIDs) > 0 {
		query = query.Where("id NOT IN ?", f.ExcludeIDs)
	}

	var users []db.User
	err := query.Limit(f.Limit).Find(&users).Error
	return users, err
}

// GetMany returns users by id, preserving no particular order.
func (r *UserRepository) GetMany(ctx context.Context, ids []uint64) ([]db.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []db.User
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error
	return users, err
}
