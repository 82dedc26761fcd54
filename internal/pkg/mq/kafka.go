// internal/pkg/mq/kafka.go
package mq

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// NewKafkaWriter 创建按 key 哈希分区的同步 writer。
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
}

// NewKafkaReader 创建消费组 reader，offset 由调用方手动提交。
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
		StartOffset:    kafka.FirstOffset,
	})
}

// KafkaHeaderCarrier 让 kafka 消息头满足 propagation.TextMapCarrier。
type KafkaHeaderCarrier []kafka.Header

func (c KafkaHeaderCarrier) Get(key string) string {
	for _, h := range c {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// Set 只能覆盖已存在的 key；需要追加时使用 InjectTraceContext。
func (c KafkaHeaderCarrier) Set(key, value string) {
	for i := range c {
		if c[i].Key == key {
			c[i].Value = []byte(value)
			return
		}
	}
}

func (c KafkaHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for _, h := range c {
		keys = append(keys, h.Key)
	}
	return keys
}

type headerWriter struct {
	headers *[]kafka.Header
}

func (w headerWriter) Get(key string) string { return KafkaHeaderCarrier(*w.headers).Get(key) }

func (w headerWriter) Keys() []string { return KafkaHeaderCarrier(*w.headers).Keys() }

func (w headerWriter) Set(key, value string) {
	for i := range *w.headers {
		if (*w.headers)[i].Key == key {
			(*w.headers)[i].Value = []byte(value)
			return
		}
	}
	*w.headers = append(*w.headers, kafka.Header{Key: key, Value: []byte(value)})
}

// InjectTraceContext 把 ctx 中的追踪上下文写入消息头。
func InjectTraceContext(ctx context.Context, headers *[]kafka.Header) {
	otel.GetTextMapPropagator().Inject(ctx, headerWriter{headers: headers})
}

// ExtractTraceContext 从消息头恢复上游的追踪上下文。
func ExtractTraceContext(ctx context.Context, headers []kafka.Header) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, KafkaHeaderCarrier(headers))
}

// MessageWriter 是 *kafka.Writer 的最小子集，便于测试替换。
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// ProduceMessage 发送一条消息，自动注入追踪上下文。
func ProduceMessage(ctx context.Context, writer MessageWriter, key, value []byte) error {
	msg := kafka.Message{Key: key, Value: value}
	InjectTraceContext(ctx, &msg.Headers)
	return writer.WriteMessages(ctx, msg)
}

// ensure interface
var (
	_ propagation.TextMapCarrier = KafkaHeaderCarrier(nil)
	_ propagation.TextMapCarrier = headerWriter{}
)
