/**
 * @description
 * In-memory ProfileStore and FavoriteStore used by service and handler
 * tests. Mirrors the Postgres semantics that matter to callers:
 * lowercase-unique wallet addresses, unique usernames/emails, owner
 * scoping for favorites, and set-replace behavior.
 */

package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tokenfolio-project/backend/internal/auth"
	"github.com/tokenfolio-project/backend/internal/models"
	"github.com/tokenfolio-project/backend/internal/store"
)

// Memory is a thread-safe in-memory store.
type Memory struct {
	mu        sync.Mutex
	profiles  map[string]*models.Profile // keyed by user id
	favorites map[string]map[string]time.Time

	// ForceFallback makes Replace report ErrNotImplemented so tests can
	// drive the degraded path.
	ForceFallback bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		profiles:  make(map[string]*models.Profile),
		favorites: make(map[string]map[string]time.Time),
	}
}

var _ store.ProfileStore = (*Memory)(nil)
var _ store.FavoriteStore = (*Memory)(nil)

// checkOwner enforces the caller-claim contract: when the request carries a
// caller identity, it must match the target user id.
func checkOwner(ctx context.Context, userID string) error {
	if caller, ok := auth.CallerFrom(ctx); ok && caller.UserID != "" && caller.UserID != userID {
		return store.ErrForbidden
	}
	return nil
}

func clone(p *models.Profile) *models.Profile {
	cp := *p
	return &cp
}

func (m *Memory) GetByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clone(p), nil
}

func (m *Memory) GetByWallet(ctx context.Context, address string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	addr := strings.ToLower(address)
	for _, p := range m.profiles {
		if p.WalletAddress != nil && *p.WalletAddress == addr {
			return clone(p), nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Memory) Ensure(ctx context.Context, userID, email string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[userID]; ok {
		return clone(p), nil
	}
	now := time.Now()
	p := &models.Profile{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if email != "" {
		p.Email = &email
	}
	m.profiles[userID] = p
	return clone(p), nil
}

func (m *Memory) EnsureWalletUser(ctx context.Context, address string) (*models.Profile, error) {
	addr := strings.ToLower(address)
	if p, err := m.GetByWallet(ctx, addr); err == nil {
		return p, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	p := &models.Profile{
		ID:             uuid.New(),
		UserID:         "wallet:" + addr,
		WalletAddress:  &addr,
		WalletLinkedAt: &now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.profiles[p.UserID] = p
	return clone(p), nil
}

func (m *Memory) Update(ctx context.Context, userID string, upd store.ProfileUpdate) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if upd.Username != nil {
		for id, other := range m.profiles {
			if id != userID && other.Username != nil && *other.Username == *upd.Username {
				return nil, store.ErrUsernameTaken
			}
		}
		p.Username = upd.Username
	}
	if upd.Bio != nil {
		p.Bio = *upd.Bio
	}
	if upd.TwitterURL != nil {
		p.TwitterURL = *upd.TwitterURL
	}
	if upd.WebsiteURL != nil {
		p.WebsiteURL = *upd.WebsiteURL
	}
	p.UpdatedAt = time.Now()
	return clone(p), nil
}

func (m *Memory) SetWallet(ctx context.Context, userID, address string, linkedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	addr := strings.ToLower(address)
	for id, other := range m.profiles {
		if id != userID && other.WalletAddress != nil && *other.WalletAddress == addr {
			return store.ErrWalletTaken
		}
	}
	p, ok := m.profiles[userID]
	if !ok {
		return store.ErrNotFound
	}
	p.WalletAddress = &addr
	p.WalletLinkedAt = &linkedAt
	p.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) ClearWallet(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return store.ErrNotFound
	}
	p.WalletAddress = nil
	p.WalletLinkedAt = nil
	p.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) List(ctx context.Context, userID string) ([]models.Favorite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.favorites[userID]
	out := make([]models.Favorite, 0, len(set))
	for id, created := range set {
		out = append(out, models.Favorite{UserID: userID, TokenID: id, CreatedAt: created})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].TokenID < out[j].TokenID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) Replace(ctx context.Context, userID string, tokenIDs []string) error {
	if m.ForceFallback {
		return store.ErrNotImplemented
	}
	return m.replace(ctx, userID, tokenIDs)
}

func (m *Memory) ReplaceNonAtomic(ctx context.Context, userID string, tokenIDs []string) error {
	return m.replace(ctx, userID, tokenIDs)
}

func (m *Memory) replace(ctx context.Context, userID string, tokenIDs []string) error {
	if err := checkOwner(ctx, userID); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	norm := store.NormalizeTokenIDs(tokenIDs)
	existing := m.favorites[userID]
	next := make(map[string]time.Time, len(norm))
	now := time.Now()
	for _, id := range norm {
		if created, ok := existing[id]; ok {
			next[id] = created
		} else {
			next[id] = now
		}
	}
	m.favorites[userID] = next
	return nil
}
