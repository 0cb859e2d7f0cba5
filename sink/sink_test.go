package sink_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/sink"
	"github.com/warp/leave-engine/store/memory"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeWriter struct {
	writeFn func(ctx context.Context, msgs ...kafkago.Message) error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	return f.writeFn(ctx, msgs...)
}

type fakeAudit struct {
	recordFn func(ctx context.Context, e leave.AuditEntry) error
}

func (f *fakeAudit) Record(ctx context.Context, e leave.AuditEntry) error {
	return f.recordFn(ctx, e)
}

func TestKafka_Notify(t *testing.T) {
	var sent []kafkago.Message
	w := &fakeWriter{writeFn: func(_ context.Context, msgs ...kafkago.Message) error {
		sent = append(sent, msgs...)
		return nil
	}}

	err := sink.NewKafka(w, "").Notify(context.Background(), "emp-1", "Leave request approved", "Your annual leave was approved")
	require.NoError(t, err)
	require.Len(t, sent, 1)

	msg := sent[0]
	assert.Equal(t, sink.NotificationTopic, msg.Topic)
	assert.Equal(t, []byte("emp-1"), msg.Key)

	var n sink.Notification
	require.NoError(t, json.Unmarshal(msg.Value, &n))
	assert.Equal(t, "emp-1", n.EmployeeID)
	assert.Equal(t, "Leave request approved", n.Title)
	assert.False(t, n.SentAt.IsZero())
}

func TestKafka_NotifyError(t *testing.T) {
	w := &fakeWriter{writeFn: func(context.Context, ...kafkago.Message) error {
		return errors.New("broker down")
	}}

	err := sink.NewKafka(w, "custom").Notify(context.Background(), "emp-1", "t", "m")
	assert.ErrorContains(t, err, "broker down")
}

func TestLogAudit_Record(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	audit := sink.NewLogAudit(zap.New(core))

	before := &leave.LeaveRequest{ID: "r1", Status: leave.StatusPending}
	after := &leave.LeaveRequest{ID: "r1", Status: leave.StatusApproved}
	require.NoError(t, audit.Record(context.Background(), leave.AuditEntry{
		Actor: "emp-hr", Action: leave.AuditApprove, Before: before, After: after, At: time.Now(),
	}))

	entries := logs.FilterMessage("audit event").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "leave.approve", fields["action"])
	assert.Equal(t, "r1", fields["request_id"])
	assert.Equal(t, "approved", fields["status"])
	assert.Equal(t, "pending", fields["previous_status"])
}

func TestLog_Notify(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	require.NoError(t, sink.NewLog(zap.New(core)).Notify(context.Background(), "emp-1", "title", "body"))
	assert.Equal(t, 1, logs.FilterField(zap.String("employee_id", "emp-1")).Len())
}

func TestMultiAudit(t *testing.T) {
	var calls int
	ok := &fakeAudit{recordFn: func(context.Context, leave.AuditEntry) error { calls++; return nil }}
	bad := &fakeAudit{recordFn: func(context.Context, leave.AuditEntry) error { calls++; return errors.New("disk full") }}

	err := sink.MultiAudit{bad, ok}.Record(context.Background(), leave.AuditEntry{Action: leave.AuditSubmit})
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, 2, calls, "a failing sink does not stop the others")

	assert.NoError(t, sink.MultiAudit{ok}.Record(context.Background(), leave.AuditEntry{}))
}

func TestKafka_BlockedBrokerDoesNotDelaySubmit(t *testing.T) {
	// GIVEN: A workflow publishing to a broker that never answers
	ctx := context.Background()
	store := memory.New(leave.DefaultPolicy())
	require.NoError(t, store.SaveEmployee(ctx, leave.Employee{ID: "emp-1", Name: "Ana", Email: "ana@example.com", Role: leave.RoleEmployee}))

	release := make(chan struct{})
	defer close(release)
	w := &fakeWriter{writeFn: func(ctx context.Context, _ ...kafkago.Message) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}}
	wf := leave.NewWorkflow(store, store, leave.MustDefaultAuthorizer(), leave.NewCalculator(leave.DefaultPolicy()),
		leave.WithNotifier(sink.NewKafka(w, "")),
	)

	// WHEN: The employee submits
	start := time.Now()
	req, err := wf.Submit(ctx, leave.Session{EmployeeID: "emp-1", Role: leave.RoleEmployee}, leave.SubmitInput{
		LeaveType: "annual",
		StartDate: generic.NewTimePoint(2025, time.March, 3),
		EndDate:   generic.NewTimePoint(2025, time.March, 4),
		Reason:    "trip",
	})

	// THEN: The request is stored without waiting on the broker
	require.NoError(t, err)
	assert.Equal(t, leave.StatusPending, req.Status)
	assert.Less(t, time.Since(start), time.Second)
}
