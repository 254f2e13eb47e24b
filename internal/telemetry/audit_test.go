package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/mocks"
	"messaging-service/internal/telemetry"
)

func TestEmitPublishesEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := telemetry.NewAuditEmitter(publisher, "audit.messaging", "messaging-service", "test")

	userID := int64(42)
	publisher.On("Publish", mock.Anything, "audit.messaging", mock.MatchedBy(func(env telemetry.AuditEnvelope) bool {
		return env.SchemaVersion == 1 &&
			env.EventType == "audit_log" &&
			env.Service == "messaging-service" &&
			env.RequestID == "req-1" &&
			env.UserID != nil && *env.UserID == 42 &&
			env.Payload.Level == "INFO" &&
			env.Payload.Text == "message edited"
	})).Return(nil).Once()

	emitter.Emit(context.Background(), "INFO", "message edited", "req-1", &userID)
	publisher.AssertExpectations(t)
}

func TestEmitNilEmitterIsSafe(t *testing.T) {
	var emitter *telemetry.AuditEmitter
	require.NotPanics(t, func() {
		emitter.Emit(context.Background(), "INFO", "noop", "req-1", nil)
	})
}
