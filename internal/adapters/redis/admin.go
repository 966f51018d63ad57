package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/motorcyclejs/authstream/internal/domain/auth"
)

const adminScanCount = 100

// Session is a stored sign-in as seen by the admin tooling.
type Session struct {
	ClientID string
	Identity domainauth.Identity
	// TTL is zero when the session never expires.
	TTL time.Duration
}

// Admin inspects and edits the accounts and sessions stored by Provider under one key prefix.
type Admin struct {
	client redis.UniversalClient
	prefix string
}

// NewAdmin creates an Admin. An empty prefix means the Provider default.
func NewAdmin(client redis.UniversalClient, prefix string) (*Admin, error) {
	if client == nil {
		return nil, ErrClientRequired
	}
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Admin{client: client, prefix: prefix}, nil
}

// Accounts lists every stored account, sorted by email.
func (a *Admin) Accounts(ctx context.Context) ([]domainauth.Identity, error) {
	keys, err := a.scan(ctx, a.prefix+"account:*")
	if err != nil {
		return nil, err
	}

	out := make([]domainauth.Identity, 0, len(keys))
	for _, key := range keys {
		data, getErr := a.client.Get(ctx, key).Bytes()
		if errors.Is(getErr, redis.Nil) {
			continue
		}
		if getErr != nil {
			return nil, fmt.Errorf("get %s: %w", key, getErr)
		}
		var acct storedAccount
		if unmarshalErr := json.Unmarshal(data, &acct); unmarshalErr != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", key, unmarshalErr)
		}
		out = append(out, acct.Identity)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// DeleteAccount removes the account for email. It reports whether one existed.
// Sessions already signed in as that account are left alone.
func (a *Admin) DeleteAccount(ctx context.Context, email string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" {
		return false, errors.New("email is required")
	}
	n, err := a.client.Del(ctx, a.prefix+"account:"+email).Result()
	if err != nil {
		return false, fmt.Errorf("delete account: %w", err)
	}
	return n > 0, nil
}

// Sessions lists every stored session, sorted by client ID.
func (a *Admin) Sessions(ctx context.Context) ([]Session, error) {
	sessionPrefix := a.prefix + "session:"
	keys, err := a.scan(ctx, sessionPrefix+"*")
	if err != nil {
		return nil, err
	}

	out := make([]Session, 0, len(keys))
	for _, key := range keys {
		data, getErr := a.client.Get(ctx, key).Bytes()
		if errors.Is(getErr, redis.Nil) {
			continue
		}
		if getErr != nil {
			return nil, fmt.Errorf("get %s: %w", key, getErr)
		}
		var identity domainauth.Identity
		if unmarshalErr := json.Unmarshal(data, &identity); unmarshalErr != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", key, unmarshalErr)
		}
		ttl, ttlErr := a.client.TTL(ctx, key).Result()
		if ttlErr != nil {
			return nil, fmt.Errorf("ttl %s: %w", key, ttlErr)
		}
		if ttl < 0 {
			ttl = 0
		}
		out = append(out, Session{
			ClientID: strings.TrimPrefix(key, sessionPrefix),
			Identity: identity,
			TTL:      ttl,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out, nil
}

// ClearSession signs clientID out. Running engines for that client observe a signed-out status.
// It reports whether a session existed.
func (a *Admin) ClearSession(ctx context.Context, clientID string) (bool, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return false, errors.New("client ID is required")
	}
	n, err := a.client.Del(ctx, a.prefix+"session:"+clientID).Result()
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	if pubErr := a.client.Publish(ctx, a.prefix+"session-changes:"+clientID, "null").Err(); pubErr != nil {
		return n > 0, fmt.Errorf("publish sign-out: %w", pubErr)
	}
	return n > 0, nil
}

func (a *Admin) scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := a.client.Scan(ctx, 0, pattern, adminScanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", pattern, err)
	}
	return keys, nil
}
