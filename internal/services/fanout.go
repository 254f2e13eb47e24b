package services

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"messaging-service/internal/observability"
)

// fanoutJob is one message's notification fan-out to the other active
// participants of its conversation.
type fanoutJob struct {
	ConversationID int
	SenderID       int
	SenderName     string
	Preview        string
	Recipients     []int
}

// FanoutWorker runs notification fan-out off the send path so a slow
// notification path never delays message-send latency for the sender.
type FanoutWorker struct {
	notifications *NotificationService
	jobs          chan fanoutJob
	wg            sync.WaitGroup
	closeOnce     sync.Once
}

// NewFanoutWorker starts the worker pool.
func NewFanoutWorker(notifications *NotificationService, workers int) *FanoutWorker {
	if workers <= 0 {
		workers = 1
	}
	w := &FanoutWorker{
		notifications: notifications,
		jobs:          make(chan fanoutJob, 256),
	}
	for i := 0; i < workers; i++ {
		w.wg.Add(1)
		go w.run()
	}
	return w
}

// Enqueue hands a fan-out job to the pool. A full queue falls back to inline
// processing rather than dropping notifications: delivery must not be lost
// for offline recipients.
func (w *FanoutWorker) Enqueue(job fanoutJob) {
	select {
	case w.jobs <- job:
		observability.SetFanoutQueueDepth(len(w.jobs))
	default:
		w.process(job)
	}
}

func (w *FanoutWorker) run() {
	defer w.wg.Done()
	for job := range w.jobs {
		observability.SetFanoutQueueDepth(len(w.jobs))
		w.process(job)
	}
}

// process creates one MESSAGE-category notification per recipient,
// independent of whether they are currently connected.
func (w *FanoutWorker) process(job fanoutJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	vars := map[string]string{
		"senderName":     job.SenderName,
		"preview":        job.Preview,
		"conversationId": strconv.Itoa(job.ConversationID),
	}
	for _, userID := range job.Recipients {
		if userID == job.SenderID {
			continue
		}
		if _, err := w.notifications.CreateFromTemplate(ctx, userID, TypeMessageReceived, vars, &job.SenderID); err != nil {
			log.Printf("message notification failed conversation=%d user=%d: %v", job.ConversationID, userID, err)
		}
	}
}

// Close drains pending jobs and stops the workers.
func (w *FanoutWorker) Close() {
	w.closeOnce.Do(func() {
		close(w.jobs)
	})
	w.wg.Wait()
}
