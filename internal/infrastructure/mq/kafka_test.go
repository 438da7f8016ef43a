package mq

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	sarama.ConsumerGroupSession
	ctx    context.Context
	marked []int64
}

func (s *fakeSession) Context() context.Context { return s.ctx }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	ch chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.ch }

func newClaim(offsets ...int64) *fakeClaim {
	ch := make(chan *sarama.ConsumerMessage, len(offsets))
	for _, o := range offsets {
		ch <- &sarama.ConsumerMessage{Topic: "kill_log", Offset: o, Key: []byte("1"), Value: []byte(fmt.Sprint(o))}
	}
	close(ch)
	return &fakeClaim{ch: ch}
}

func TestConsumeClaim_MarksHandledMessages(t *testing.T) {
	var seen []string
	h := &groupHandler{handler: func(_ context.Context, _, value []byte) error {
		seen = append(seen, string(value))
		return nil
	}}
	session := &fakeSession{ctx: context.Background()}

	require.NoError(t, h.ConsumeClaim(session, newClaim(1, 2, 3)))
	assert.Equal(t, []int64{1, 2, 3}, session.marked)
	assert.Equal(t, []string{"1", "2", "3"}, seen)
	assert.False(t, h.failed.Load())
}

func TestConsumeClaim_StorageFailureKeepsOffset(t *testing.T) {
	dbDown := errors.New("db down")
	var seen []string
	h := &groupHandler{handler: func(_ context.Context, _, value []byte) error {
		seen = append(seen, string(value))
		if string(value) == "42" {
			return dbDown
		}
		return nil
	}}
	session := &fakeSession{ctx: context.Background()}

	err := h.ConsumeClaim(session, newClaim(41, 42, 43))
	assert.ErrorIs(t, err, dbDown)
	// 42 未提交，43 不会在本次会话中处理
	assert.Equal(t, []int64{41}, session.marked)
	assert.Equal(t, []string{"41", "42"}, seen)
	assert.True(t, h.failed.Load())
}

func TestConsumeClaim_SkipsUnprocessableMessages(t *testing.T) {
	h := &groupHandler{handler: func(_ context.Context, _, value []byte) error {
		if string(value) == "2" {
			return fmt.Errorf("%w: bad key", ErrSkipMessage)
		}
		return nil
	}}
	session := &fakeSession{ctx: context.Background()}

	require.NoError(t, h.ConsumeClaim(session, newClaim(1, 2, 3)))
	assert.Equal(t, []int64{1, 2, 3}, session.marked)
	assert.False(t, h.failed.Load())
}

func TestConsumeClaim_StopsOnSessionEnd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := &groupHandler{handler: func(context.Context, []byte, []byte) error { return nil }}
	session := &fakeSession{ctx: ctx}

	assert.NoError(t, h.ConsumeClaim(session, &fakeClaim{ch: make(chan *sarama.ConsumerMessage)}))
	assert.Empty(t, session.marked)
}
