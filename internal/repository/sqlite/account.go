package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/xid"
	"golang.org/x/text/cases"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/candle-clicker/internal/apperror"
	"github.com/sakif/candle-clicker/internal/model"
	"github.com/sakif/candle-clicker/internal/repository"
)

// compile-time check that *AccountStore implements repository.AccountRepository
var _ repository.AccountRepository = (*AccountStore)(nil)

// AccountStore persists accounts, live progress and the publication feed.
//
// Live progress is a column on accounts; publications are rows in their own
// table. The two never share a statement, so an overwrite of one can not
// clobber a concurrent write to the other.
type AccountStore struct {
	conn      *sqlx.DB
	now       func() time.Time
	retention int
}

// Create inserts a new account and fills in its ID and CreatedAt.
//
// The username column is UNIQUE with SQLite's default BINARY collation, so
// "alice" and "Alice" are different accounts. A duplicate maps to
// apperror.ErrConflict. The folded copy used by search is written alongside.
func (s *AccountStore) Create(ctx context.Context, account *model.Account) error {
	account.ID = xid.New().String()
	account.CreatedAt = s.now()

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO accounts (id, username, username_folded, password_hash, profile_picture, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.Username,
		foldUsername(account.Username),
		account.PasswordHash,
		account.ProfilePicture,
		toMillis(account.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("account", account.Username)
		}
		return fmt.Errorf("sqlite: creating account %q: %w", account.Username, err)
	}

	return nil
}

// GetByUsername looks an account up by its exact (case-sensitive) username.
// Returns apperror.ErrNotFound if there is none.
func (s *AccountStore) GetByUsername(ctx context.Context, username string) (*model.Account, error) {
	var account model.Account

	err := s.conn.GetContext(ctx, &account,
		`SELECT id, username, password_hash, profile_picture
		 FROM accounts WHERE username = ?`,
		username,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("account", username)
		}
		return nil, fmt.Errorf("sqlite: getting account %q: %w", username, err)
	}

	return &account, nil
}

// GetLiveProgress returns the stored payload byte-for-byte.
// ok is false when the account never synced OR does not exist.
func (s *AccountStore) GetLiveProgress(ctx context.Context, accountID string) (model.RawProgress, bool, error) {
	var progress sql.NullString

	err := s.conn.GetContext(ctx, &progress,
		`SELECT live_progress FROM accounts WHERE id = ?`,
		accountID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("sqlite: getting live progress %s: %w", accountID, err)
	}
	if !progress.Valid {
		return nil, false, nil
	}

	return model.RawProgress(progress.String), true, nil
}

// SetLiveProgress overwrites the live progress unconditionally.
// Last writer wins; there is no version check.
func (s *AccountStore) SetLiveProgress(ctx context.Context, accountID string, progress model.RawProgress) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE accounts SET live_progress = ? WHERE id = ?`,
		string(progress),
		accountID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting live progress %s: %w", accountID, err)
	}
	return nil
}

// AppendPublication adds a snapshot to the end of the account's feed.
//
// The INSERT ... SELECT ... WHERE EXISTS form turns an append for an unknown
// account into a no-op instead of a foreign key failure. When a retention cap
// is configured, the oldest rows beyond it are pruned in the same
// transaction, so a failed publish never leaves a half-applied state.
func (s *AccountStore) AppendPublication(ctx context.Context, accountID string, progress model.RawProgress, at time.Time) error {
	if at.IsZero() {
		at = s.now()
	}

	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning publish tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO publications (account_id, progress, created_at)
		 SELECT ?, ?, ? WHERE EXISTS (SELECT 1 FROM accounts WHERE id = ?)`,
		accountID,
		string(progress),
		toMillis(at),
		accountID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: appending publication %s: %w", accountID, err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}

	if inserted > 0 && s.retention > 0 {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM publications
			 WHERE account_id = ?
			   AND seq NOT IN (
			       SELECT seq FROM publications
			       WHERE account_id = ?
			       ORDER BY seq DESC
			       LIMIT ?
			   )`,
			accountID,
			accountID,
			s.retention,
		)
		if err != nil {
			return fmt.Errorf("sqlite: pruning publications %s: %w", accountID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing publish tx: %w", err)
	}
	return nil
}

// SearchByUsernamePrefix returns up to limit accounts whose username starts
// with prefix, ignoring case.
//
// Both sides are Unicode case-folded in Go, so "če" finds "Čeněk". The
// prefix is escaped so that a user typing "%" or "_" searches for those
// characters literally. Rows come back in rowid order, which is not a
// promise to callers.
func (s *AccountStore) SearchByUsernamePrefix(ctx context.Context, prefix string, limit int) ([]model.AccountSummary, error) {
	if limit <= 0 {
		limit = repository.DefaultSearchLimit
	}

	users := make([]model.AccountSummary, 0, limit)
	err := s.conn.SelectContext(ctx, &users,
		`SELECT id, username, profile_picture
		 FROM accounts
		 WHERE username_folded LIKE ? ESCAPE '\'
		 ORDER BY rowid
		 LIMIT ?`,
		escapeLike(foldUsername(prefix))+"%",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: searching accounts %q: %w", prefix, err)
	}

	return users, nil
}

type publicationRow struct {
	Progress  string `db:"progress"`
	CreatedAt int64  `db:"created_at"`
}

// GetProfile returns the public view of an account with its whole feed in
// publish order. Returns apperror.ErrNotFound if the account does not exist.
func (s *AccountStore) GetProfile(ctx context.Context, accountID string) (*model.Profile, error) {
	var summary model.AccountSummary

	err := s.conn.GetContext(ctx, &summary,
		`SELECT id, username, profile_picture FROM accounts WHERE id = ?`,
		accountID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("account", accountID)
		}
		return nil, fmt.Errorf("sqlite: getting profile %s: %w", accountID, err)
	}

	var rows []publicationRow
	err = s.conn.SelectContext(ctx, &rows,
		`SELECT progress, created_at FROM publications
		 WHERE account_id = ?
		 ORDER BY seq`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing publications %s: %w", accountID, err)
	}

	profile := &model.Profile{
		ID:             summary.ID,
		Username:       summary.Username,
		ProfilePicture: summary.ProfilePicture,
		Publications:   make([]model.Publication, 0, len(rows)),
	}
	for _, r := range rows {
		profile.Publications = append(profile.Publications, model.Publication{
			Timestamp: fromMillis(r.CreatedAt),
			Progress:  model.RawProgress(r.Progress),
		})
	}

	return profile, nil
}

// SetProfilePicture overwrites the stored picture. Size limits are enforced
// by the service before this is called.
func (s *AccountStore) SetProfilePicture(ctx context.Context, accountID, image string) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE accounts SET profile_picture = ? WHERE id = ?`,
		image,
		accountID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting profile picture %s: %w", accountID, err)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// isUniqueViolation reports whether err is SQLite rejecting a duplicate key.
func isUniqueViolation(err error) bool {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE"))
}

// foldUsername returns the full Unicode case folding of name. A Caser holds
// state, so each call gets its own.
func foldUsername(name string) string {
	return cases.Fold().String(name)
}
