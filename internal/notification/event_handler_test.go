package notification_test

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/messaging-permissions/internal/core/events"
	"github.com/frahmantamala/messaging-permissions/internal/notification"
	"github.com/frahmantamala/messaging-permissions/internal/permission"
)

type recordingSender struct {
	mu   sync.Mutex
	jobs []notification.Job
	err  error
}

func (s *recordingSender) Send(job notification.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.jobs = append(s.jobs, job)
	return nil
}

func (s *recordingSender) sent() []notification.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notification.Job(nil), s.jobs...)
}

var _ = Describe("EventHandler", func() {
	var (
		sender  *recordingSender
		handler *notification.EventHandler
		bus     *events.EventBus
	)

	BeforeEach(func() {
		sender = &recordingSender{}
		handler = notification.NewEventHandler(sender, discardLogger())
		bus = events.NewEventBus(discardLogger())
		handler.RegisterEventHandlers(bus)
	})

	It("forwards every permission event type", func() {
		for _, t := range events.PermissionEventTypes {
			Expect(bus.PublishSync(context.Background(), events.NewPermissionEvent(events.PermissionEventInput{Type: t}))).To(Succeed())
		}
		Expect(sender.sent()).To(HaveLen(len(events.PermissionEventTypes)))
	})

	It("rejects foreign event payloads", func() {
		err := handler.HandlePermissionEvent(context.Background(), events.BaseEvent{Type: events.EventTypePermissionRenewed})
		Expect(err).To(HaveOccurred())
		Expect(sender.sent()).To(BeEmpty())
	})

	It("reports a sender failure", func() {
		sender.err = notification.ErrQueueFull
		err := handler.HandlePermissionEvent(context.Background(), newEvent("perm-1"))
		Expect(errors.Is(err, notification.ErrQueueFull)).To(BeTrue())
	})

	Describe("Sink", func() {
		It("publishes engine notifications onto the bus", func() {
			sink := notification.NewSink(bus, discardLogger())
			msg := "let's talk"

			Expect(sink.Notify(context.Background(), permission.Notification{
				Type:         permission.NotificationRequested,
				RecipientID:  "seek-1",
				PermissionID: "perm-9",
				RequesterID:  "emp-1",
				TargetID:     "seek-1",
				Status:       permission.StatusPending,
				Message:      &msg,
			})).To(Succeed())

			Eventually(sender.sent).Should(HaveLen(1))
			event := sender.sent()[0].Event
			Expect(event.EventType()).To(Equal(events.EventTypePermissionRequested))
			Expect(event.PermissionID).To(Equal("perm-9"))
			Expect(*event.Message).To(Equal("let's talk"))
		})
	})
})
