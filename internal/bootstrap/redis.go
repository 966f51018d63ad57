package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/motorcyclejs/authstream/config"
)

const defaultRedisPingTimeout = 5 * time.Second

// RedisOptions contains configuration for the Redis connection.
type RedisOptions struct {
	Config config.RedisConfig
	Logger *slog.Logger
}

// ConnectRedis opens a direct, sentinel or cluster client and pings it before returning.
//
//nolint:ireturn // the concrete client depends on the deployment topology.
func ConnectRedis(ctx context.Context, opts RedisOptions) (redis.UniversalClient, error) {
	uo, target, err := universalOptions(opts.Config)
	if err != nil {
		return nil, err
	}
	client := redis.NewUniversalClient(uo)

	timeout := opts.Config.PingTimeout
	if timeout <= 0 {
		timeout = defaultRedisPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close redis client: %w", closeErr))
		}
		return nil, fmt.Errorf("ping redis %s: %w", redactAddr(target), err)
	}

	if opts.Logger != nil {
		opts.Logger.InfoContext(ctx, "redis connected", "target", redactAddr(target))
	}
	return client, nil
}

// universalOptions maps the config onto go-redis options and a loggable description of the
// target.
func universalOptions(cfg config.RedisConfig) (*redis.UniversalOptions, string, error) {
	switch {
	case cfg.UseCluster:
		return clusterOptions(cfg)
	case cfg.UseSentinel:
		nodes := trimAll(cfg.SentinelNodes)
		if len(nodes) == 0 {
			return nil, "", errors.New("redis sentinel mode needs at least one sentinel node")
		}
		return &redis.UniversalOptions{
			Addrs:            nodes,
			MasterName:       cfg.SentinelMasterName,
			Password:         cfg.Password,
			SentinelPassword: cfg.SentinelPassword,
			DB:               cfg.DB,
		}, "sentinel:" + cfg.SentinelMasterName, nil
	}

	uri := strings.TrimSpace(cfg.URI)
	if uri == "" {
		return nil, "", errors.New("redis URI is required")
	}
	if !isRedisURL(uri) {
		return &redis.UniversalOptions{
			Addrs:    []string{uri},
			Password: cfg.Password,
			DB:       cfg.DB,
		}, uri, nil
	}
	parsed, err := redis.ParseURL(uri)
	if err != nil {
		return nil, "", fmt.Errorf("parse redis url: %w", err)
	}
	return &redis.UniversalOptions{
		Addrs:     []string{parsed.Addr},
		Username:  parsed.Username,
		Password:  parsed.Password,
		DB:        parsed.DB,
		TLSConfig: parsed.TLSConfig,
	}, uri, nil
}

// clusterOptions seeds the cluster from CLUSTER_NODES, or from the URI when none are listed.
func clusterOptions(cfg config.RedisConfig) (*redis.UniversalOptions, string, error) {
	uo := &redis.UniversalOptions{
		Addrs:         trimAll(cfg.ClusterNodes),
		Password:      cfg.Password,
		IsClusterMode: true,
	}
	if uri := strings.TrimSpace(cfg.URI); len(uo.Addrs) == 0 && uri != "" {
		if !isRedisURL(uri) {
			uo.Addrs = []string{uri}
		} else {
			parsed, err := redis.ParseURL(uri)
			if err != nil {
				return nil, "", fmt.Errorf("parse redis cluster url: %w", err)
			}
			uo.Addrs = []string{parsed.Addr}
			uo.Username = parsed.Username
			uo.TLSConfig = parsed.TLSConfig
			if parsed.Password != "" {
				uo.Password = parsed.Password
			}
		}
	}
	if len(uo.Addrs) == 0 {
		return nil, "", errors.New("redis cluster mode needs at least one node")
	}
	return uo, "cluster:" + strings.Join(uo.Addrs, ","), nil
}

// redactAddr strips credentials from a connection description before it is logged.
func redactAddr(target string) string {
	if u, err := url.Parse(target); err == nil && u.User != nil {
		u.User = url.User("*")
		return u.Redacted()
	}
	if i := strings.LastIndex(target, "@"); i > -1 {
		return target[i+1:]
	}
	return target
}

func trimAll(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func isRedisURL(value string) bool {
	return strings.HasPrefix(value, "redis://") || strings.HasPrefix(value, "rediss://")
}
