package processor

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"

	"tradepilot/config"
	"tradepilot/decision"
	"tradepilot/logger"
)

// DecisionSource 决策来源
type DecisionSource interface {
	// Name 来源名称
	Name() string

	// Start 启动订阅循环，收到的合法决策通过 submit 回调提交。
	// 非法消息丢弃并告警，不中断订阅。
	Start(ctx context.Context, submit func(*decision.Decision)) error

	// Stop 停止订阅
	Stop() error
}

// RedisDecisionSource 基于 Redis Pub/Sub 的决策来源
type RedisDecisionSource struct {
	client  *redis.Client
	channel string
	pubsub  *redis.PubSub
	wg      sync.WaitGroup
}

// NewRedisDecisionSource 创建 Redis 决策来源
func NewRedisDecisionSource(cfg *config.Config) *RedisDecisionSource {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.DecisionSource.Redis.Addr,
		Password: cfg.DecisionSource.Redis.Password,
		DB:       cfg.DecisionSource.Redis.DB,
		PoolSize: cfg.DecisionSource.Redis.PoolSize,
	})

	return &RedisDecisionSource{
		client:  client,
		channel: cfg.DecisionSource.Channel,
	}
}

func (s *RedisDecisionSource) Name() string {
	return "redis"
}

// Ping 检查 Redis 连接
func (s *RedisDecisionSource) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Start 订阅决策频道
func (s *RedisDecisionSource) Start(ctx context.Context, submit func(*decision.Decision)) error {
	s.pubsub = s.client.Subscribe(ctx, s.channel)

	// 确认订阅建立
	if _, err := s.pubsub.Receive(ctx); err != nil {
		return err
	}

	logger.Info("✅ 决策订阅已启动 (频道: %s)", s.channel)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ch := s.pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					logger.Warn("⚠️ 决策订阅通道已关闭")
					return
				}

				d, err := decision.Parse([]byte(msg.Payload))
				if err != nil {
					logger.Warn("⚠️ 丢弃非法决策消息: %v", err)
					continue
				}
				submit(d)
			}
		}
	}()

	return nil
}

// Stop 停止订阅
func (s *RedisDecisionSource) Stop() error {
	if s.pubsub != nil {
		s.pubsub.Close()
	}
	s.wg.Wait()
	return s.client.Close()
}

// ChannelDecisionSource 进程内决策来源（测试和嵌入场景）
type ChannelDecisionSource struct {
	ch        chan *decision.Decision
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewChannelDecisionSource 创建进程内决策来源
func NewChannelDecisionSource(bufferSize int) *ChannelDecisionSource {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &ChannelDecisionSource{
		ch: make(chan *decision.Decision, bufferSize),
	}
}

func (s *ChannelDecisionSource) Name() string {
	return "channel"
}

// Push 推送一个决策
func (s *ChannelDecisionSource) Push(d *decision.Decision) {
	s.ch <- d
}

func (s *ChannelDecisionSource) Start(ctx context.Context, submit func(*decision.Decision)) error {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-s.ch:
				if !ok {
					return
				}
				submit(d)
			}
		}
	}()
	return nil
}

// Stop 关闭通道并等待消费循环退出，已缓冲的决策先消费完。
// Stop 之后不得再调用 Push。
func (s *ChannelDecisionSource) Stop() error {
	s.closeOnce.Do(func() { close(s.ch) })
	s.wg.Wait()
	return nil
}
