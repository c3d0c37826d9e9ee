package notification_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/messaging-permissions/internal/core/events"
	"github.com/frahmantamala/messaging-permissions/internal/notification"
)

func newEvent(permissionID string) *events.PermissionEvent {
	return events.NewPermissionEvent(events.PermissionEventInput{
		Type:         events.EventTypePermissionRequested,
		RecipientID:  "seek-1",
		PermissionID: permissionID,
		RequesterID:  "emp-1",
		TargetID:     "seek-1",
		Status:       "pending",
	})
}

var _ = Describe("WebhookClient", func() {
	var (
		server   *httptest.Server
		client   *notification.WebhookClient
		mu       sync.Mutex
		received []map[string]interface{}
		types    []string
	)

	BeforeEach(func() {
		received = nil
		types = nil
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]interface{}
			_ = json.NewDecoder(r.Body).Decode(&body)
			mu.Lock()
			received = append(received, body)
			types = append(types, r.Header.Get("X-Event-Type"))
			mu.Unlock()
			w.WriteHeader(http.StatusAccepted)
		}))
		client = notification.NewWebhookClient(notification.Config{
			WebhookURL: server.URL,
			MaxWorkers: 2,
		}, discardLogger())
	})

	AfterEach(func() {
		client.Shutdown()
		server.Close()
	})

	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(received)
	}

	It("posts each queued event to the webhook", func() {
		Expect(client.Send(notification.Job{Event: newEvent("perm-1")})).To(Succeed())
		Expect(client.Send(notification.Job{Event: newEvent("perm-2")})).To(Succeed())

		Eventually(count).Should(Equal(2))

		mu.Lock()
		defer mu.Unlock()
		Expect(types).To(ConsistOf(events.EventTypePermissionRequested, events.EventTypePermissionRequested))
		ids := []interface{}{received[0]["permission_id"], received[1]["permission_id"]}
		Expect(ids).To(ConsistOf("perm-1", "perm-2"))
	})

	It("refuses work after shutdown", func() {
		client.Shutdown()
		Expect(client.Send(notification.Job{Event: newEvent("perm-1")})).To(MatchError(notification.ErrClientClosed))
	})
})

var _ = Describe("WebhookClient backpressure", func() {
	It("drops jobs once the queue is full", func() {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()

		client := notification.NewWebhookClient(notification.Config{
			WebhookURL:   server.URL,
			MaxWorkers:   1,
			JobQueueSize: 1,
		}, discardLogger())

		Eventually(func() error {
			return client.Send(notification.Job{Event: newEvent("perm-x")})
		}).Should(MatchError(notification.ErrQueueFull))

		close(release)
		client.Shutdown()
	})
})
