package eventsourcing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/shortlink-org/bank-saga/config"
	"github.com/shortlink-org/bank-saga/contract"
	cqrsmessage "github.com/shortlink-org/bank-saga/cqrs/message"
	"github.com/shortlink-org/bank-saga/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("github.com/syndtr/goleveldb/leveldb.(*DB).mpoolDrain"))
}

func open(t *testing.T, dir string) *Journal {
	t.Helper()

	j, err := New(context.Background(), logger.NewNop(), config.NewWithValues(map[string]any{"JOURNAL_LEVELDB_PATH": dir}))
	require.NoError(t, err)

	return j
}

func event(routingKey, corr string) cqrsmessage.Envelope {
	return cqrsmessage.NewEvent(routingKey, corr, cqrsmessage.Payload{"clientId": corr})
}

func collect(t *testing.T, j *Journal, from uint64) []Entry {
	t.Helper()

	var entries []Entry
	require.NoError(t, j.Replay(context.Background(), from, func(_ context.Context, e Entry) error {
		entries = append(entries, e)

		return nil
	}))

	return entries
}

func TestAppendAndReplayInOrder(t *testing.T) {
	j := open(t, t.TempDir())
	defer j.Close()

	ctx := context.Background()

	for i, routingKey := range []string{contract.AccountCreated, contract.TransactionRecorded, contract.AccountUpdated} {
		seq, err := j.Append(ctx, event(routingKey, "c-1"))
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), seq)
	}

	entries := collect(t, j, 0)
	require.Len(t, entries, 3)
	assert.Equal(t, contract.AccountCreated, entries[0].Type)
	assert.Equal(t, contract.TransactionRecorded, entries[1].Type)
	assert.Equal(t, contract.AccountUpdated, entries[2].Type)
	assert.Equal(t, "c-1", entries[1].Envelope().Payload.String("clientId"))
	assert.Equal(t, cqrsmessage.KindEvent, entries[1].Envelope().Kind)
	assert.False(t, entries[0].OccurredAt.IsZero())

	tail := collect(t, j, 3)
	require.Len(t, tail, 1)
	assert.Equal(t, uint64(3), tail[0].Sequence)
}

func TestSequenceSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	j := open(t, dir)
	_, err := j.Append(context.Background(), event(contract.AccountCreated, "c-1"))
	require.NoError(t, err)
	_, err = j.Append(context.Background(), event(contract.AccountCreated, "c-2"))
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j = open(t, dir)
	defer j.Close()

	assert.Equal(t, uint64(2), j.Sequence())

	seq, err := j.Append(context.Background(), event(contract.AccountCreated, "c-3"))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), seq)
	assert.Len(t, collect(t, j, 0), 3)
}

func TestReplayStopsOnError(t *testing.T) {
	j := open(t, t.TempDir())
	defer j.Close()

	for range 3 {
		require.NoError(t, j.Handle(context.Background(), event(contract.AccountCreated, "c")))
	}

	boom := errors.New("boom")
	seen := 0

	err := j.Replay(context.Background(), 0, func(context.Context, Entry) error {
		seen++
		if seen == 2 {
			return boom
		}

		return nil
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 2, seen)
}

func TestAppendRejectsUntypedEvents(t *testing.T) {
	j := open(t, t.TempDir())
	defer j.Close()

	_, err := j.Append(context.Background(), cqrsmessage.Envelope{})
	require.ErrorIs(t, err, errNoType)
	assert.Zero(t, j.Sequence())
}

func TestSkippedKeysAreLeftOut(t *testing.T) {
	j := open(t, t.TempDir())
	defer j.Close()

	assert.Equal(t, contract.EventKeys(), j.keys())

	j.Skip(contract.AccountCreated, contract.TransactionRecorded)

	keys := j.keys()
	assert.Len(t, keys, len(contract.EventKeys())-2)
	assert.NotContains(t, keys, contract.AccountCreated)
	assert.NotContains(t, keys, contract.TransactionRecorded)
	assert.Contains(t, keys, contract.AccountUpdated)
	assert.Contains(t, keys, "account.create-failed")
}
