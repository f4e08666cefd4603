package media

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Perch/internal/client"
)

func pendingAttachment(id string) *client.Attachment {
	return &client.Attachment{ID: id, Type: "video"}
}

func resolvedAttachment(id string) *client.Attachment {
	url := "https://files.example.com/" + id + ".mp4"
	return &client.Attachment{ID: id, Type: "video", URL: &url}
}

func TestRefresher_ResolvesAfterPolls(t *testing.T) {
	fake := newFakeMediaClient()
	fake.getResults = []*client.Attachment{
		pendingAttachment("att-1"),
		pendingAttachment("att-1"),
		resolvedAttachment("att-1"),
	}
	clock := &fakeClock{}
	r := NewRefresher(fake, clock)

	att, err := r.AwaitURL(context.Background(), "att-1", RefreshConfig{Interval: 5 * time.Second, MaxAttempts: 10})
	require.NoError(t, err)
	assert.True(t, att.HasURL())

	_, gets := fake.counts()
	assert.Equal(t, 3, gets)
	assert.Len(t, clock.recorded(), 3, "one sleep per poll at the configured interval")
	for _, d := range clock.recorded() {
		assert.Equal(t, 5*time.Second, d)
	}
}

func TestRefresher_GivesUpAfterBudget(t *testing.T) {
	fake := newFakeMediaClient()
	fake.getResults = []*client.Attachment{pendingAttachment("att-1")}
	r := NewRefresher(fake, &fakeClock{})

	_, err := r.AwaitURL(context.Background(), "att-1", RefreshConfig{Interval: time.Second, MaxAttempts: 4})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRefreshTimedOut)

	_, gets := fake.counts()
	assert.Equal(t, 4, gets, "polling must stop at the attempt budget")
}

func TestRefresher_TransientFetchErrorsKeepPolling(t *testing.T) {
	fake := newFakeMediaClient()
	fake.getResults = []*client.Attachment{
		nil, // scripted fetch error
		resolvedAttachment("att-1"),
	}
	r := NewRefresher(fake, &fakeClock{})

	att, err := r.AwaitURL(context.Background(), "att-1", RefreshConfig{Interval: time.Second, MaxAttempts: 5})
	require.NoError(t, err)
	assert.True(t, att.HasURL())
}

func TestRefresher_CancelledStopsPolling(t *testing.T) {
	fake := newFakeMediaClient()
	fake.getResults = []*client.Attachment{pendingAttachment("att-1")}
	r := NewRefresher(fake, &fakeClock{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.AwaitURL(ctx, "att-1", DefaultRefreshConfig())
	assert.ErrorIs(t, err, ErrCancelled)
}
