package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sakif/candle-clicker/internal/apperror"
	"github.com/sakif/candle-clicker/internal/model"
	"github.com/sakif/candle-clicker/internal/repository"
)

// =========================================================================
// FAKE REPOSITORIES
// =========================================================================
//
// Hand-written in-memory implementations of the repository interfaces. They
// keep just enough behaviour for the service rules to be observable, and an
// err field to simulate a storage failure.

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*model.Account
	order    []string
	feeds    map[string][]model.Publication
	nextID   int
	err      error
}

var _ repository.AccountRepository = (*fakeAccountRepo)(nil)

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{
		accounts: make(map[string]*model.Account),
		feeds:    make(map[string][]model.Publication),
	}
}

func (f *fakeAccountRepo) Create(_ context.Context, account *model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, a := range f.accounts {
		if a.Username == account.Username {
			return apperror.Conflict("account", account.Username)
		}
	}
	f.nextID++
	account.ID = fmt.Sprintf("acc-%d", f.nextID)
	stored := *account
	f.accounts[account.ID] = &stored
	f.order = append(f.order, account.ID)
	return nil
}

func (f *fakeAccountRepo) GetByUsername(_ context.Context, username string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, a := range f.accounts {
		if a.Username == username {
			result := *a
			return &result, nil
		}
	}
	return nil, apperror.NotFound("account", username)
}

func (f *fakeAccountRepo) GetLiveProgress(_ context.Context, id string) (model.RawProgress, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, false, f.err
	}
	a, ok := f.accounts[id]
	if !ok || a.LiveProgress == nil {
		return nil, false, nil
	}
	return a.LiveProgress, true, nil
}

func (f *fakeAccountRepo) SetLiveProgress(_ context.Context, id string, progress model.RawProgress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if a, ok := f.accounts[id]; ok {
		a.LiveProgress = progress
	}
	return nil
}

func (f *fakeAccountRepo) AppendPublication(_ context.Context, id string, progress model.RawProgress, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.accounts[id]; ok {
		f.feeds[id] = append(f.feeds[id], model.Publication{Timestamp: at, Progress: progress})
	}
	return nil
}

func (f *fakeAccountRepo) SearchByUsernamePrefix(_ context.Context, prefix string, limit int) ([]model.AccountSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	result := []model.AccountSummary{}
	for _, id := range f.order {
		a := f.accounts[id]
		if strings.HasPrefix(strings.ToLower(a.Username), strings.ToLower(prefix)) {
			result = append(result, model.AccountSummary{ID: a.ID, Username: a.Username, ProfilePicture: a.ProfilePicture})
		}
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

func (f *fakeAccountRepo) GetProfile(_ context.Context, id string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.accounts[id]
	if !ok {
		return nil, apperror.NotFound("account", id)
	}
	pubs := append([]model.Publication{}, f.feeds[id]...)
	return &model.Profile{ID: a.ID, Username: a.Username, Publications: pubs, ProfilePicture: a.ProfilePicture}, nil
}

func (f *fakeAccountRepo) SetProfilePicture(_ context.Context, id, image string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if a, ok := f.accounts[id]; ok {
		a.ProfilePicture = image
	}
	return nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []model.Message
	nextID   int
	err      error
}

var _ repository.MessageRepository = (*fakeMessageRepo)(nil)

func (f *fakeMessageRepo) Create(_ context.Context, msg *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.nextID++
	msg.ID = fmt.Sprintf("msg-%d", f.nextID)
	msg.ExpiresAt = msg.CreatedAt.Add(model.MessageTTL)
	f.messages = append(f.messages, *msg)
	return nil
}

func (f *fakeMessageRepo) Conversation(_ context.Context, a, b string, now time.Time) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var result []model.Message
	for _, m := range f.messages {
		pair := (m.SenderID == a && m.RecipientID == b) || (m.SenderID == b && m.RecipientID == a)
		if pair && !m.Expired(now) {
			result = append(result, m)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (f *fakeMessageRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.messages[:0]
	var n int64
	for _, m := range f.messages {
		if m.Expired(now) {
			n++
			continue
		}
		kept = append(kept, m)
	}
	f.messages = kept
	return n, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}
