package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/exp/slog"

	"lifelog/internal/domain/entry"
)

var ErrRelayClosed = errors.New("relay closed")

const deliveryRetries = 5

// Relay доставляет запись соседнему устройству хотя бы один раз.
// Повторная доставка безопасна: получатель перезаписывает запись по id.
type Relay interface {
	Send(ctx context.Context, e entry.Entry) error
}

// Inbox - принимающая сторона relay. Сохраняет записи как несинхронизированные,
// чтобы их выгрузил следующий цикл синхронизации.
type Inbox struct {
	storage Storage
	log     *slog.Logger
}

func NewInbox(storage Storage, log *slog.Logger) *Inbox {
	return &Inbox{storage: storage, log: log.With("component", "relay_inbox")}
}

func (in *Inbox) Receive(ctx context.Context, e entry.Entry) error {
	e = e.Normalize()
	if err := e.Validate(); err != nil {
		return fmt.Errorf("запись отклонена: %w", err)
	}

	gone, err := in.storage.IsDeleted(ctx, e.ID)
	if err != nil {
		return err
	}
	if gone {
		in.log.Debug("Запись удалена локально, доставка проигнорирована", "id", e.ID)
		return nil
	}

	if err := in.storage.Save(ctx, e); err != nil {
		return fmt.Errorf("ошибка сохранения доставленной записи: %w", err)
	}

	in.log.Debug("Запись получена от соседнего устройства", "id", e.ID, "source", e.Source)
	return nil
}

// ChannelRelay - внутрипроцессный relay поверх буферизованного канала.
type ChannelRelay struct {
	ch  chan entry.Entry
	log *slog.Logger
}

func NewChannelRelay(buffer int, log *slog.Logger) *ChannelRelay {
	return &ChannelRelay{
		ch:  make(chan entry.Entry, buffer),
		log: log.With("component", "channel_relay"),
	}
}

func (r *ChannelRelay) Send(ctx context.Context, e entry.Entry) error {
	select {
	case r.ch <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close завершает Run после того, как буфер будет вычитан.
// Send после Close паникует, как и запись в закрытый канал.
func (r *ChannelRelay) Close() {
	close(r.ch)
}

// Run передает записи в inbox до отмены контекста или закрытия relay.
// Временные ошибки хранилища повторяются с экспоненциальной задержкой,
// невалидные записи отбрасываются сразу.
func (r *ChannelRelay) Run(ctx context.Context, inbox *Inbox) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-r.ch:
			if !ok {
				return ErrRelayClosed
			}
			if err := r.deliver(ctx, inbox, e); err != nil {
				return err
			}
		}
	}
}

func (r *ChannelRelay) deliver(ctx context.Context, inbox *Inbox, e entry.Entry) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), deliveryRetries), ctx)

	err := backoff.Retry(func() error {
		err := inbox.Receive(ctx, e)
		if errors.Is(err, entry.ErrInvalidEntry) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, entry.ErrInvalidEntry):
		r.log.Warn("Невалидная запись отброшена", "id", e.ID, "error", err)
		return nil
	default:
		return fmt.Errorf("доставка записи %s: %w", e.ID, err)
	}
}
