package chat_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	model "github.com/zhouzirui/z-pilot/backend/internal/model/chat"
	chat "github.com/zhouzirui/z-pilot/backend/internal/service/chat"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("session-%d", n)
	}
}

func fixedClock() time.Time {
	return time.Date(2024, 12, 20, 10, 0, 0, 0, time.UTC)
}

func TestServiceGetOrCreateWithoutIDMintsFreshID(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		session, created := svc.GetOrCreate(ctx, "")
		require.True(t, created)
		require.False(t, seen[session.ID], "id %s reused", session.ID)
		seen[session.ID] = true
	}
	require.Equal(t, 50, svc.Len())
}

func TestServiceGetOrCreateReturnsSameSession(t *testing.T) {
	svc := chat.NewService(chat.WithIDGenerator(sequentialIDs()), chat.WithClock(fixedClock))
	ctx := context.Background()

	first, created := svc.GetOrCreate(ctx, "")
	require.True(t, created)
	require.Equal(t, "session-1", first.ID)
	require.Equal(t, fixedClock(), first.CreatedAt)

	require.NoError(t, svc.Append(ctx, first.ID, model.UserTurn("open settings")))

	second, created := svc.GetOrCreate(ctx, first.ID)
	require.False(t, created)
	require.Same(t, first, second)
	require.Len(t, second.Turns(), 1)
}

func TestServiceGetOrCreateUnknownIDMintsNewOne(t *testing.T) {
	svc := chat.NewService(chat.WithIDGenerator(sequentialIDs()))
	ctx := context.Background()

	session, created := svc.GetOrCreate(ctx, "stale-id")
	require.True(t, created)
	require.Equal(t, "session-1", session.ID)
}

func TestServiceGetOrCreateSkipsTakenIDs(t *testing.T) {
	ids := []string{"dup", "dup", "other"}
	svc := chat.NewService(chat.WithIDGenerator(func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}))
	ctx := context.Background()

	first, _ := svc.GetOrCreate(ctx, "")
	second, _ := svc.GetOrCreate(ctx, "")
	require.Equal(t, "dup", first.ID)
	require.Equal(t, "other", second.ID)
}

func TestServiceClear(t *testing.T) {
	svc := chat.NewService(chat.WithIDGenerator(sequentialIDs()))
	ctx := context.Background()

	require.False(t, svc.Clear(ctx, "missing"))

	session, _ := svc.GetOrCreate(ctx, "")
	require.NoError(t, svc.Append(ctx, session.ID, model.UserTurn("tap login")))
	require.True(t, svc.Clear(ctx, session.ID))
	require.False(t, svc.Clear(ctx, session.ID))

	fresh, created := svc.GetOrCreate(ctx, session.ID)
	require.True(t, created)
	require.NotSame(t, session, fresh)
	require.Empty(t, fresh.Turns())
}

func TestServiceAppendStampsTurns(t *testing.T) {
	svc := chat.NewService(chat.WithClock(fixedClock))
	ctx := context.Background()

	session, _ := svc.GetOrCreate(ctx, "")
	require.NoError(t, svc.Append(ctx, session.ID, model.AssistantTurn("done")))

	turns, err := svc.Transcript(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	require.False(t, turns[0].IsUser)
	require.Equal(t, fixedClock(), turns[0].CreatedAt)
}

func TestServiceAppendUnknownSession(t *testing.T) {
	svc := chat.NewService()
	err := svc.Append(context.Background(), "missing", model.UserTurn("hi"))
	require.ErrorIs(t, err, chat.ErrSessionNotFound)

	_, err = svc.Transcript(context.Background(), "missing")
	require.ErrorIs(t, err, chat.ErrSessionNotFound)
}

func TestServiceRecordOnClearedSession(t *testing.T) {
	svc := chat.NewService(chat.WithClock(fixedClock))
	ctx := context.Background()

	session, _ := svc.GetOrCreate(ctx, "")
	require.True(t, svc.Clear(ctx, session.ID))

	svc.Record(session, model.AssistantTurn("late reply"))

	turns := session.Turns()
	require.Len(t, turns, 1)
	require.Equal(t, "late reply", turns[0].Text)
	require.Equal(t, fixedClock(), turns[0].CreatedAt)
	require.Zero(t, svc.Len())
}

func TestServiceConcurrentAppendsKeepEveryTurn(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()
	session, _ := svc.GetOrCreate(ctx, "")

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = svc.Append(ctx, session.ID, model.UserTurn(fmt.Sprintf("turn %d", i)))
		}(i)
	}
	wg.Wait()

	require.Equal(t, 64, session.Len())
}
