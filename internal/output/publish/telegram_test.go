package publish

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent   []tgbotapi.MessageConfig
	failAt int
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, stderrors.New("unexpected chattable")
	}

	if f.failAt > 0 && len(f.sent)+1 == f.failAt {
		return tgbotapi.Message{}, stderrors.New("telegram down")
	}

	f.sent = append(f.sent, msg)

	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func TestPublishSingleMessage(t *testing.T) {
	sender := &fakeSender{}
	p := NewTelegramPublisherWithSender(sender, 42, nil)

	require.NoError(t, p.Publish(context.Background(), "# Issue\n\n- item"))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(42), sender.sent[0].ChatID)
	assert.Equal(t, "# Issue\n\n- item", sender.sent[0].Text)
	assert.True(t, sender.sent[0].DisableWebPagePreview)
	assert.Empty(t, sender.sent[0].ParseMode)
}

func TestPublishSplitsLongIssues(t *testing.T) {
	sender := &fakeSender{}
	p := NewTelegramPublisherWithSender(sender, 1, nil)

	para := strings.Repeat("word ", 500)
	doc := para + "\n\n" + para + "\n\n" + para

	require.NoError(t, p.Publish(context.Background(), doc))

	require.Greater(t, len(sender.sent), 1)

	for _, m := range sender.sent {
		assert.LessOrEqual(t, len(m.Text), MaxMessageSize)
	}
}

func TestPublishStopsOnError(t *testing.T) {
	sender := &fakeSender{failAt: 2}
	p := NewTelegramPublisherWithSender(sender, 1, nil)

	para := strings.Repeat("word ", 500)

	err := p.Publish(context.Background(), para+"\n\n"+para+"\n\n"+para)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send part 2/")
	assert.Len(t, sender.sent, 1)
}

func TestPublishCanceled(t *testing.T) {
	sender := &fakeSender{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewTelegramPublisherWithSender(sender, 1, nil).Publish(ctx, "hello")
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sender.sent)
}
