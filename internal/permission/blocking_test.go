package permission_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/messaging-permissions/internal"
	"github.com/frahmantamala/messaging-permissions/internal/permission"
)

var _ = Describe("Blocking", func() {
	var f *fixture

	BeforeEach(func() {
		f = newFixture()
	})

	It("blocks both directions and creates missing rows", func() {
		rows, err := f.svc.Block(f.ctx, "seek-1", "seek-2")
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(2))
		Expect(rows[0].RequesterID).To(Equal("seek-1"))
		Expect(rows[1].RequesterID).To(Equal("seek-2"))

		for _, p := range rows {
			Expect(p.Status).To(Equal(permission.StatusBlocked))
			Expect(p.IsActive).To(BeFalse())
			Expect(p.Metadata.BlockedBy).To(Equal("seek-1"))
		}

		Expect(f.canMessage("seek-1", "seek-2").Reason).To(Equal(permission.ReasonBlocked))
		Expect(f.canMessage("seek-2", "seek-1").Reason).To(Equal(permission.ReasonBlocked))
	})

	It("overwrites existing rows in place", func() {
		req := f.request("seek-1", "seek-2")

		_, err := f.svc.Block(f.ctx, "seek-2", "seek-1")
		Expect(err).NotTo(HaveOccurred())

		Expect(f.store.Len()).To(Equal(2))
		Expect(f.row("seek-1", "seek-2").ID).To(Equal(req.ID))
	})

	It("overrides an active auto-grant", func() {
		f.rels.apply("seek-1", "emp-1")
		Expect(f.canMessage("emp-1", "seek-1").Allowed).To(BeTrue())

		_, err := f.svc.Block(f.ctx, "seek-1", "emp-1")
		Expect(err).NotTo(HaveOccurred())

		Expect(f.canMessage("emp-1", "seek-1").Allowed).To(BeFalse())
		Expect(f.canMessage("seek-1", "emp-1").Allowed).To(BeFalse())
	})

	It("refuses to block yourself", func() {
		_, err := f.svc.Block(f.ctx, "seek-1", "seek-1")
		Expect(err).To(MatchError(internal.ErrSelfPermission))
	})

	It("keeps an unblocked pair pending even when the candidate has applied", func() {
		f.rels.apply("seek-1", "emp-1")
		Expect(f.canMessage("emp-1", "seek-1").Allowed).To(BeTrue())

		_, err := f.svc.Block(f.ctx, "seek-1", "emp-1")
		Expect(err).NotTo(HaveOccurred())
		_, err = f.svc.Unblock(f.ctx, "seek-1", "emp-1")
		Expect(err).NotTo(HaveOccurred())

		forward := f.canMessage("emp-1", "seek-1")
		Expect(forward.Allowed).To(BeFalse())
		Expect(forward.Reason).To(Equal(permission.ReasonPending))

		reverse := f.canMessage("seek-1", "emp-1")
		Expect(reverse.Allowed).To(BeFalse())
		Expect(reverse.Reason).To(Equal(permission.ReasonPending))

		Expect(f.store.Len()).To(Equal(2))
	})

	Describe("Unblock", func() {
		BeforeEach(func() {
			_, err := f.svc.Block(f.ctx, "seek-1", "seek-2")
			Expect(err).NotTo(HaveOccurred())
			f.clock.Advance(day)
		})

		It("returns both rows to pending without granting anything", func() {
			rows, err := f.svc.Unblock(f.ctx, "seek-1", "seek-2")
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(2))

			for _, p := range rows {
				Expect(p.Status).To(Equal(permission.StatusPending))
				Expect(p.IsActive).To(BeFalse())
				Expect(p.ExpiresAt).To(Equal(t0.Add(8 * day)))
				Expect(p.Metadata.BlockedBy).To(BeEmpty())
			}
			Expect(f.canMessage("seek-1", "seek-2").Allowed).To(BeFalse())
			Expect(f.store.Len()).To(Equal(2))
		})

		It("only lets the blocker lift the block", func() {
			_, err := f.svc.Unblock(f.ctx, "seek-2", "seek-1")
			Expect(err).To(MatchError(internal.ErrNotBlocker))
			Expect(f.row("seek-1", "seek-2").Status).To(Equal(permission.StatusBlocked))
		})

		It("reports a missing block", func() {
			_, err := f.svc.Unblock(f.ctx, "seek-1", "seek-3")
			Expect(err).To(MatchError(internal.ErrBlockNotFound))
		})
	})
})
