package kafka

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/DRSN-tech/go-similarity/internal/usecase"
	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
	"github.com/jackc/pgx/v5"
)

const (
	// outboxChannel — канал NOTIFY, в который репозиторий сигналит о новых событиях.
	outboxChannel = "outbox_pending"
	// outboxBatchSize — размер пачки событий, забираемой за один проход.
	outboxBatchSize = 10
	// notifyWaitTimeout ограничивает ожидание уведомления, чтобы регулярно
	// проверять остановку воркера.
	notifyWaitTimeout = 30 * time.Second
)

// OutboxWorker публикует события групп из таблицы outbox в Kafka.
// Просыпается по LISTEN/NOTIFY, на старте дочитывает события,
// оставшиеся от предыдущего запуска.
type OutboxWorker struct {
	repo      usecase.OutboxRepository
	producer  usecase.MessageProducer
	logger    logger.Logger
	dbConnStr string
	stop      chan struct{}
	wg        sync.WaitGroup
}

func NewOutboxWorker(
	repo usecase.OutboxRepository,
	logger logger.Logger,
	producer usecase.MessageProducer,
	dbConnStr string,
) *OutboxWorker {
	return &OutboxWorker{
		repo:      repo,
		producer:  producer,
		logger:    logger,
		dbConnStr: dbConnStr,
		stop:      make(chan struct{}),
	}
}

func (w *OutboxWorker) Start(ctx context.Context) {
	w.wg.Add(2)

	go func() {
		defer w.wg.Done()
		w.drainOnStartup(ctx)
	}()

	go func() {
		defer w.wg.Done()
		w.listen(ctx)
	}()
}

func (w *OutboxWorker) Stop() {
	close(w.stop)
	w.wg.Wait()
}

func (w *OutboxWorker) drainOnStartup(ctx context.Context) {
	w.logger.Infof("Draining pending outbox events on startup...")

	if err := w.drain(ctx); err != nil {
		w.logger.Warnf("Startup drain failed: %v", err)
	}
}

// listen держит выделенное соединение с LISTEN и дочитывает outbox
// на каждое уведомление. Потерянное соединение восстанавливается с паузой.
func (w *OutboxWorker) listen(ctx context.Context) {
	conn, err := w.connect(ctx)
	if err != nil {
		w.logger.Warnf("Initial LISTEN connect failed: %v", err)
		return
	}
	defer conn.Close(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		default:
		}

		waitCtx, cancel := context.WithTimeout(ctx, notifyWaitTimeout)
		notif, err := conn.WaitForNotification(waitCtx)
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				continue
			}

			w.logger.Warnf("LISTEN connection lost: %v. Reconnecting...", err)
			conn.Close(ctx)

			time.Sleep(2 * time.Second)
			conn, err = w.connect(ctx)
			if err != nil {
				w.logger.Warnf("Reconnect failed: %v", err)
				time.Sleep(5 * time.Second)
				conn, err = w.connect(ctx)
				if err != nil {
					return
				}
			}
			continue
		}

		if notif == nil || notif.Channel != outboxChannel {
			continue
		}

		w.logger.Debugf("Outbox notification received, draining events")
		if err := w.drain(ctx); err != nil {
			w.logger.Warnf("Outbox drain failed: %v", err)
		}
	}
}

func (w *OutboxWorker) connect(ctx context.Context) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, w.dbConnStr)
	if err != nil {
		return nil, e.Wrap("failed to connect for LISTEN", err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+outboxChannel); err != nil {
		conn.Close(ctx)
		return nil, e.Wrap("failed to LISTEN", err)
	}

	w.logger.Infof("Subscribed to %q channel", outboxChannel)

	return conn, nil
}

// drain выгребает outbox пачками, пока события не закончатся.
func (w *OutboxWorker) drain(ctx context.Context) error {
	for {
		hasMore, err := w.processBatch(ctx)
		if err != nil {
			return err
		}
		if !hasMore {
			return nil
		}
	}
}

func (w *OutboxWorker) processBatch(ctx context.Context) (bool, error) {
	events, err := w.repo.GetAndMarkAsProcessing(ctx, outboxBatchSize)
	if err != nil {
		return false, err
	}

	if len(events) == 0 {
		return false, nil
	}

	for _, event := range events {
		if err := w.publish(ctx, event); err != nil {
			// Событие остаётся в статусе processing и будет подобрано позже
			w.logger.Warnf("Failed to publish outbox event. event_id: %s, error: %v", event.EventID, err)
			continue
		}

		if err := w.repo.MarkAsProcessed(ctx, event.ID); err != nil {
			w.logger.Warnf("Failed to mark event as processed. event_id: %s, error: %v", event.EventID, err)
		}
	}

	return true, nil
}

func (w *OutboxWorker) publish(ctx context.Context, event *usecase.OutboxEvent) error {
	err := w.producer.WriteRawMessage(ctx, usecase.NewWriteRawMessageReq(event.GroupID, event.Payload))
	if err != nil {
		if isRetryableError(err) {
			return e.Wrap("temporary Kafka failure, will retry", err)
		}
		return e.Wrap("permanent Kafka failure", err)
	}

	return nil
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	retryablePhrases := []string{
		"connection refused",
		"i/o timeout",
		"network is unreachable",
		"broker not available",
		"connection reset",
		"broken pipe",
		"no such host",
	}

	for _, phrase := range retryablePhrases {
		if strings.Contains(errStr, phrase) {
			return true
		}
	}

	return false
}
