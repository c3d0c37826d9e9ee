package permission_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/messaging-permissions/internal"
	"github.com/frahmantamala/messaging-permissions/internal/permission"
)

var _ = Describe("Service", func() {
	var f *fixture

	BeforeEach(func() {
		f = newFixture()
	})

	Describe("listing", func() {
		BeforeEach(func() {
			f.request("seek-1", "seek-2")
			f.clock.Advance(1)
			f.request("seek-1", "emp-1")
			f.clock.Advance(1)
			f.request("seek-3", "seek-1")
		})

		It("lists incoming and outgoing pending requests", func() {
			outgoing, err := f.svc.ListOutgoing(f.ctx, "seek-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(outgoing).To(HaveLen(2))
			Expect(outgoing[0].TargetID).To(Equal("emp-1"))

			incoming, err := f.svc.ListIncoming(f.ctx, "seek-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(incoming).To(HaveLen(1))
			Expect(incoming[0].RequesterID).To(Equal("seek-3"))
		})

		It("lists only usable grants as active", func() {
			approved := f.respond(f.row("seek-1", "seek-2"), permission.StatusApproved)

			active, err := f.svc.ListActive(f.ctx, "seek-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(HaveLen(1))
			Expect(active[0].ID).To(Equal(approved.ID))

			f.clock.Advance(7 * day)
			active, err = f.svc.ListActive(f.ctx, "seek-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(BeEmpty())
		})

		It("summarises a user's rows", func() {
			f.respond(f.row("seek-1", "seek-2"), permission.StatusApproved)
			_, err := f.svc.Block(f.ctx, "seek-1", "emp-2")
			Expect(err).NotTo(HaveOccurred())

			stats, err := f.svc.Stats(f.ctx, "seek-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(stats).To(Equal(permission.Stats{
				IncomingPending: 1,
				OutgoingPending: 1,
				Active:          1,
				Blocked:         1,
			}))
		})
	})

	Describe("SweepStalePending", func() {
		It("rejects pending requests whose window has passed", func() {
			stale := f.request("seek-1", "seek-2")
			f.respond(f.request("seek-2", "seek-1"), permission.StatusApproved)
			f.clock.Advance(6 * day)
			fresh := f.request("seek-3", "seek-1")
			f.clock.Advance(2 * day)

			count, err := f.svc.SweepStalePending(f.ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(1)))

			Expect(f.row("seek-1", "seek-2").Status).To(Equal(permission.StatusRejected))
			Expect(f.row("seek-2", "seek-1").Status).To(Equal(permission.StatusApproved))
			Expect(f.row("seek-3", "seek-1").Status).To(Equal(permission.StatusPending))

			again := f.request("seek-1", "seek-2")
			Expect(again.ID).To(Equal(stale.ID))
			Expect(again.Status).To(Equal(permission.StatusPending))
			Expect(fresh.Status).To(Equal(permission.StatusPending))
		})

		It("collects a request at its expiry instant", func() {
			p := f.request("seek-1", "seek-2")
			f.clock.Advance(7 * day)

			_, err := f.svc.RespondToRequest(f.ctx, permission.RespondInput{
				PermissionID: p.ID,
				ResponderID:  "seek-2",
				Decision:     permission.StatusApproved,
			})
			Expect(err).To(MatchError(internal.ErrRequestExpired))

			count, err := f.svc.SweepStalePending(f.ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(1)))
			Expect(f.row("seek-1", "seek-2").Status).To(Equal(permission.StatusRejected))
		})
	})
})
