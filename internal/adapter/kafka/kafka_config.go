package kafka

import (
	"time"

	"github.com/IBM/sarama"
)

// NewGroup builds the consumer group for the chain-watcher confirmation
// topic. A group without committed offsets starts from the earliest retained
// message: a skipped confirmation is a payment this service never credits.
func NewGroup(brokers []string, groupID string) (sarama.ConsumerGroup, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = "shopcore-payments"
	cfg.Version = sarama.V2_6_0_0
	cfg.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRange
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Net.DialTimeout = 5 * time.Second
	return sarama.NewConsumerGroup(brokers, groupID, cfg)
}
