// Package presence tracks which users are currently connected, backed by
// an ephemeral key/value store with TTL expiry. The store's own TTL is the
// authoritative expiry mechanism; the periodic sweep only reconciles the
// online set against records that already expired.
package presence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	onlineSetKey    = "online_users"
	statusKeyPrefix = "user_status:"

	// DefaultTTL is how long a user stays online without any activity.
	DefaultTTL = 5 * time.Minute

	// DefaultSweepInterval is how often the reconciliation pass runs.
	DefaultSweepInterval = 10 * time.Minute
)

// Backend is the minimal key/value + set surface the presence service
// needs. RedisBackend implements it; tests use an in-memory fake with a
// controllable clock.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	SAdd(ctx context.Context, set, member string) error
	SRem(ctx context.Context, set, member string) error
	SMembers(ctx context.Context, set string) ([]string, error)
}

// Status is a user's live-connection state.
type Status struct {
	UserID   string            `json:"userId"`
	IsOnline bool              `json:"isOnline"`
	LastSeen *time.Time        `json:"lastSeen"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Service reads and writes presence records.
type Service struct {
	backend Backend
	ttl     time.Duration
	log     zerolog.Logger
	now     func() time.Time
}

// New creates a presence service. A non-positive ttl falls back to
// DefaultTTL.
func New(backend Backend, ttl time.Duration, log zerolog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		backend: backend,
		ttl:     ttl,
		log:     log,
		now:     time.Now,
	}
}

func statusKey(userID string) string {
	return statusKeyPrefix + userID
}

// SetOnline upserts the user's presence record with a refreshed expiry and
// merged metadata, and adds the user to the online set.
func (s *Service) SetOnline(ctx context.Context, userID uuid.UUID, metadata map[string]string) error {
	id := userID.String()
	now := s.now()

	st := Status{
		UserID:   id,
		IsOnline: true,
		LastSeen: &now,
		Metadata: map[string]string{},
	}

	// Merge over any existing metadata so a refresh with partial metadata
	// does not drop fields.
	if prev := s.getRecord(ctx, id); prev != nil {
		for k, v := range prev.Metadata {
			st.Metadata[k] = v
		}
	}
	for k, v := range metadata {
		st.Metadata[k] = v
	}

	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := s.backend.SetEx(ctx, statusKey(id), string(data), s.ttl); err != nil {
		return err
	}
	return s.backend.SAdd(ctx, onlineSetKey, id)
}

// SetOffline removes the user from the online set and deletes the record.
// Called on explicit logout or when the user's last session disconnects.
func (s *Service) SetOffline(ctx context.Context, userID uuid.UUID) error {
	id := userID.String()
	if err := s.backend.SRem(ctx, onlineSetKey, id); err != nil {
		return err
	}
	return s.backend.Del(ctx, statusKey(id))
}

// GetStatus returns the user's presence, defaulting to offline when the
// record is absent or expired.
func (s *Service) GetStatus(ctx context.Context, userID uuid.UUID) Status {
	id := userID.String()
	if rec := s.getRecord(ctx, id); rec != nil {
		return *rec
	}
	return Status{UserID: id, IsOnline: false}
}

// Touch refreshes the activity timestamp and expiry, but only if the user
// is currently online. It does not resurrect an expired record.
func (s *Service) Touch(ctx context.Context, userID uuid.UUID, metadata map[string]string) error {
	id := userID.String()
	rec := s.getRecord(ctx, id)
	if rec == nil || !rec.IsOnline {
		return nil
	}
	return s.SetOnline(ctx, userID, metadata)
}

// OnlineUsers returns the statuses of everyone in the online set whose
// record is still live.
func (s *Service) OnlineUsers(ctx context.Context) ([]Status, error) {
	ids, err := s.backend.SMembers(ctx, onlineSetKey)
	if err != nil {
		return nil, err
	}
	statuses := make([]Status, 0, len(ids))
	for _, id := range ids {
		if rec := s.getRecord(ctx, id); rec != nil && rec.IsOnline {
			statuses = append(statuses, *rec)
		}
	}
	return statuses, nil
}

// Sweep removes online-set entries whose records have expired. A pure
// consistency pass: the backend TTL already made those users offline.
func (s *Service) Sweep(ctx context.Context) error {
	ids, err := s.backend.SMembers(ctx, onlineSetKey)
	if err != nil {
		return err
	}
	removed := 0
	for _, id := range ids {
		if s.getRecord(ctx, id) == nil {
			if err := s.backend.SRem(ctx, onlineSetKey, id); err != nil {
				return err
			}
			removed++
		}
	}
	if removed > 0 {
		s.log.Debug().Int("removed", removed).Msg("presence sweep reconciled online set")
	}
	return nil
}

// RunSweeper runs Sweep on the given interval until ctx is cancelled.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.log.Warn().Err(err).Msg("presence sweep failed")
			}
		}
	}
}

func (s *Service) getRecord(ctx context.Context, userID string) *Status {
	data, ok, err := s.backend.Get(ctx, statusKey(userID))
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("presence read failed")
		return nil
	}
	if !ok {
		return nil
	}
	var st Status
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil
	}
	return &st
}
