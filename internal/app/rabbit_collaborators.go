/**
 * @description
 * RabbitMQ-backed implementations of the AuditSink and Notifier ports. Both
 * publish to the durable "ledger_events" topic exchange; the audit trail and
 * notification services consume from their own queues bound by routing key.
 */

package app

import (
	"context"

	"github.com/vaultpay/ledger-service/pkg/rabbitmq"
)

const ledgerEventsExchange = "ledger_events"

// RabbitAuditSink publishes audit entries as "audit.<action>" events.
type RabbitAuditSink struct {
	producer rabbitmq.Publisher
}

func NewRabbitAuditSink(producer rabbitmq.Publisher) *RabbitAuditSink {
	return &RabbitAuditSink{producer: producer}
}

func (s *RabbitAuditSink) Record(ctx context.Context, entry AuditEntry) error {
	return s.producer.Publish(ctx, ledgerEventsExchange, "audit."+entry.Action, entry)
}

// RabbitNotifier publishes user notifications as "notification.<kind>" events.
type RabbitNotifier struct {
	producer rabbitmq.Publisher
}

func NewRabbitNotifier(producer rabbitmq.Publisher) *RabbitNotifier {
	return &RabbitNotifier{producer: producer}
}

func (n *RabbitNotifier) Notify(ctx context.Context, notification Notification) error {
	return n.producer.Publish(ctx, ledgerEventsExchange, "notification."+notification.Kind, notification)
}
