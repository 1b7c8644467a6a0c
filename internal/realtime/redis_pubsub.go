package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/teamfaces/teamfaces/internal/models"
	"github.com/teamfaces/teamfaces/internal/team"
	rkeys "github.com/teamfaces/teamfaces/pkg/redis"
)

const (
	eventMembersChanged = "members_changed"
	publishTimeout      = 5 * time.Second
)

// MembersChannel is the Redis channel member changes are announced on.
var MembersChannel = rkeys.Key("team", models.DefaultTeamID, "members")

// redisPayload is the message published to Redis for cross-instance fan-out.
type redisPayload struct {
	Event string `json:"event"`
	At    int64  `json:"at"`
}

// RedisNotifier implements team.Notifier over Redis pub/sub so every server instance
// refreshes its live feeds when any instance writes a member.
// One Redis subscription is held while at least one local handler is registered.
type RedisNotifier struct {
	client *redis.Client
	logger *zap.Logger
	local  *team.LocalNotifier

	mu     sync.Mutex
	refs   int
	cancel context.CancelFunc
}

// NewRedisNotifier creates a Redis-backed member change notifier.
func NewRedisNotifier(client *redis.Client, logger *zap.Logger) *RedisNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisNotifier{client: client, logger: logger, local: team.NewLocalNotifier()}
}

// PublishMembersChanged announces a member change to all instances, this one included.
// When Redis is unreachable the local feeds are still signalled directly.
func (r *RedisNotifier) PublishMembersChanged(ctx context.Context) error {
	body, err := json.Marshal(redisPayload{Event: eventMembersChanged, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := r.client.Publish(pubCtx, MembersChannel, body).Err(); err != nil {
		_ = r.local.PublishMembersChanged(ctx)
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// SubscribeMembersChanged registers handler for change signals from any instance.
func (r *RedisNotifier) SubscribeMembersChanged(ctx context.Context, handler func()) (func(), error) {
	r.mu.Lock()
	if r.refs == 0 {
		if err := r.start(ctx); err != nil {
			r.mu.Unlock()
			return nil, err
		}
	}
	r.refs++
	r.mu.Unlock()

	stopLocal, _ := r.local.SubscribeMembersChanged(ctx, handler)
	var once sync.Once
	return func() {
		once.Do(func() {
			stopLocal()
			r.mu.Lock()
			r.refs--
			if r.refs == 0 && r.cancel != nil {
				r.cancel()
				r.cancel = nil
			}
			r.mu.Unlock()
		})
	}, nil
}

// start opens the shared Redis subscription. Caller holds r.mu.
func (r *RedisNotifier) start(ctx context.Context) error {
	subCtx, cancel := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(subCtx, MembersChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		_ = pubsub.Close()
		return fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var p redisPayload
				if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil || p.Event != eventMembersChanged {
					r.logger.Debug("ignoring roster message", zap.String("payload", msg.Payload))
					continue
				}
				_ = r.local.PublishMembersChanged(subCtx)
			}
		}
	}()
	r.cancel = cancel
	return nil
}
