// Package repository declares the storage contracts the service layer
// depends on. Implementations live in sub-packages (sqlite, redis).
package repository

import (
	"context"
	"time"

	"github.com/sakif/candle-clicker/internal/model"
)

// DefaultSearchLimit caps a username search.
const DefaultSearchLimit = 10

// AccountRepository owns accounts, their live progress and their
// publication feed.
//
// Writes addressed to an account id that does not exist (SetLiveProgress,
// AppendPublication, SetProfilePicture) succeed without effect.
type AccountRepository interface {
	Create(ctx context.Context, account *model.Account) error
	GetByUsername(ctx context.Context, username string) (*model.Account, error)

	// GetLiveProgress returns ok=false both when the account never synced
	// and when the account does not exist.
	GetLiveProgress(ctx context.Context, accountID string) (progress model.RawProgress, ok bool, err error)
	SetLiveProgress(ctx context.Context, accountID string, progress model.RawProgress) error

	AppendPublication(ctx context.Context, accountID string, progress model.RawProgress, at time.Time) error

	SearchByUsernamePrefix(ctx context.Context, prefix string, limit int) ([]model.AccountSummary, error)
	GetProfile(ctx context.Context, accountID string) (*model.Profile, error)
	SetProfilePicture(ctx context.Context, accountID, image string) error
}

// MessageRepository stores direct messages with a hard expiry.
//
// Conversation must never return a message whose ExpiresAt is at or before
// now, whether or not DeleteExpired has physically removed it yet.
type MessageRepository interface {
	Create(ctx context.Context, msg *model.Message) error
	Conversation(ctx context.Context, userA, userB string, now time.Time) ([]model.Message, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
