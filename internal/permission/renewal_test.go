package permission_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/messaging-permissions/internal"
	"github.com/frahmantamala/messaging-permissions/internal/permission"
)

var _ = Describe("ExpiryRenewal", func() {
	var f *fixture

	BeforeEach(func() {
		f = newFixture()
	})

	Context("with an application-based grant that has expired", func() {
		BeforeEach(func() {
			f.rels.apply("seek-1", "emp-1")
			Expect(f.canMessage("emp-1", "seek-1").Allowed).To(BeTrue())
			f.clock.Advance(91 * day)
		})

		It("renews when the employer is entitled now", func() {
			f.ents.set("emp-1", true)

			d := f.canMessage("seek-1", "emp-1")
			Expect(d.Allowed).To(BeTrue())
			Expect(d.Reason).To(Equal(permission.ReasonRenewed))

			p := f.row("seek-1", "emp-1")
			Expect(p.ExpiresAt).To(Equal(t0.Add(181 * day)))
			Expect(p.IsActive).To(BeTrue())
			Expect(p.Metadata.Renewals).To(Equal(1))
			Expect(f.sink.ofType(permission.NotificationRenewed)).To(HaveLen(1))
		})

		It("deactivates when the employer's subscription has lapsed", func() {
			d := f.canMessage("seek-1", "emp-1")
			Expect(d.Allowed).To(BeFalse())
			Expect(d.Reason).To(Equal(permission.ReasonExpired))

			p := f.row("seek-1", "emp-1")
			Expect(p.Status).To(Equal(permission.StatusApproved))
			Expect(p.IsActive).To(BeFalse())
			Expect(f.sink.ofType(permission.NotificationExpired)).To(HaveLen(1))
		})

		It("deactivates only once", func() {
			f.canMessage("seek-1", "emp-1")
			f.canMessage("seek-1", "emp-1")
			Expect(f.sink.ofType(permission.NotificationExpired)).To(HaveLen(1))
		})

		It("renews a grant that was deactivated earlier once the sponsor pays again", func() {
			Expect(f.canMessage("seek-1", "emp-1").Allowed).To(BeFalse())

			f.ents.set("emp-1", true)
			Expect(f.canMessage("seek-1", "emp-1").Allowed).To(BeTrue())
			Expect(f.row("seek-1", "emp-1").IsActive).To(BeTrue())
		})
	})

	It("treats the expiry instant itself as expired", func() {
		f.rels.apply("seek-1", "emp-1")
		f.canMessage("emp-1", "seek-1")
		f.clock.Advance(90 * day)

		Expect(f.canMessage("emp-1", "seek-1").Reason).To(Equal(permission.ReasonExpired))
	})

	It("never renews an explicit grant", func() {
		f.respond(f.request("seek-1", "seek-2"), permission.StatusApproved)
		f.ents.set("seek-1", true)
		f.ents.set("seek-2", true)
		f.clock.Advance(8 * day)

		d := f.canMessage("seek-1", "seek-2")
		Expect(d.Allowed).To(BeFalse())
		Expect(d.Reason).To(Equal(permission.ReasonExpired))
		Expect(f.row("seek-1", "seek-2").IsActive).To(BeFalse())
	})

	Describe("RenewAllExpiredForSponsor", func() {
		BeforeEach(func() {
			f.rels.apply("seek-1", "emp-1")
			f.rels.apply("seek-2", "emp-1")
			f.canMessage("emp-1", "seek-1")
			f.canMessage("emp-1", "seek-2")
			f.clock.Advance(100 * day)
		})

		It("renews every expired grant involving the sponsor", func() {
			f.ents.set("emp-1", true)

			count, err := f.svc.RenewAllExpiredForSponsor(f.ctx, "emp-1", "emp-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(4))

			Expect(f.row("seek-2", "emp-1").ExpiresAt).To(Equal(t0.Add(190 * day)))

			count, err = f.svc.RenewAllExpiredForSponsor(f.ctx, "emp-1", "emp-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(0))
		})

		It("renews nothing when the sponsor is not entitled", func() {
			count, err := f.svc.RenewAllExpiredForSponsor(f.ctx, "emp-1", "emp-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(0))
		})

		It("lets an administrator trigger it", func() {
			f.ents.set("emp-1", true)

			count, err := f.svc.RenewAllExpiredForSponsor(f.ctx, "admin-1", "emp-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(4))
		})

		It("does not let the candidate renew grants on the employer's behalf", func() {
			f.ents.set("seek-1", true)

			count, err := f.svc.RenewAllExpiredForSponsor(f.ctx, "seek-1", "seek-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(0))

			Expect(f.row("emp-1", "seek-1").ExpiresAt).To(Equal(t0.Add(90 * day)))
			Expect(f.canMessage("emp-1", "seek-1").Allowed).To(BeFalse())
			Expect(f.sink.ofType(permission.NotificationRenewed)).To(BeEmpty())
		})

		It("refuses other callers", func() {
			_, err := f.svc.RenewAllExpiredForSponsor(f.ctx, "seek-1", "emp-1")
			Expect(err).To(MatchError(internal.ErrSponsorMismatch))
		})
	})
})
