package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	audit "coinledger/pkg/platform/audit"
	"coinledger/pkg/platform/audit/store/memory"
	"coinledger/pkg/platform/tx"
)

type recordingProducer struct {
	mu   sync.Mutex
	msgs []Message
	err  error
}

func (p *recordingProducer) Produce(_ context.Context, msgs []Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msgs...)
	return nil
}

func (p *recordingProducer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}

type RelaySuite struct {
	suite.Suite
	store    *memory.InMemoryStore
	producer *recordingProducer
	relay    *Relay
}

func TestRelaySuite(t *testing.T) {
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupTest() {
	s.store = memory.NewInMemoryStore()
	s.producer = &recordingProducer{}
	s.relay = NewRelay(s.store, tx.NewMemoryRunner(s.store), s.producer,
		WithBatchSize(2),
		WithInterval(10*time.Millisecond),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func (s *RelaySuite) append(n int) {
	for range n {
		s.Require().NoError(s.store.Append(context.Background(), audit.Record{
			Operation: audit.OpCoinMint,
			TargetID:  "agent-1",
			Timestamp: time.Now(),
		}))
	}
}

func (s *RelaySuite) TestRelayOnce() {
	s.Run("publishes a batch and marks it", func() {
		s.SetupTest()
		s.append(3)

		n, err := s.relay.RelayOnce(context.Background())
		s.Require().NoError(err)
		s.Equal(2, n)
		s.Equal(1, s.store.Pending())
		s.Equal("agent-1", string(s.producer.msgs[0].Key))
		s.Equal("coin_mint", s.producer.msgs[0].Headers["event_type"])
	})

	s.Run("empty outbox publishes nothing", func() {
		s.SetupTest()
		n, err := s.relay.RelayOnce(context.Background())
		s.Require().NoError(err)
		s.Zero(n)
	})

	s.Run("producer failure leaves entries pending", func() {
		s.SetupTest()
		s.append(2)
		s.producer.err = errors.New("broker unavailable")

		_, err := s.relay.RelayOnce(context.Background())
		s.Require().Error(err)
		s.Equal(2, s.store.Pending())
	})
}

func (s *RelaySuite) TestRunDrainsBacklog() {
	s.SetupTest()
	s.append(5)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.relay.Run(ctx) }()

	s.Eventually(func() bool { return s.store.Pending() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	s.NoError(<-done)
	s.Equal(5, s.producer.count())
}
