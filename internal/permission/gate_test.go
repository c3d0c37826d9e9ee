package permission_test

import (
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/messaging-permissions/internal/permission"
)

var _ = Describe("Gate.CanMessage", func() {
	var f *fixture

	BeforeEach(func() {
		f = newFixture()
	})

	It("always allows messaging yourself", func() {
		d := f.canMessage("seek-1", "seek-1")
		Expect(d.Allowed).To(BeTrue())
		Expect(d.Reason).To(Equal(permission.ReasonSelf))
		Expect(f.store.Len()).To(Equal(0))
	})

	It("allows an administrator on either side without touching the store", func() {
		Expect(f.canMessage("admin-1", "seek-1").Reason).To(Equal(permission.ReasonAdminOverride))

		d := f.canMessage("seek-1", "admin-1")
		Expect(d.Allowed).To(BeTrue())
		Expect(d.Reason).To(Equal(permission.ReasonAdminOverride))
		Expect(f.store.Len()).To(Equal(0))
	})

	It("denies when no row and no relationship exist", func() {
		d := f.canMessage("seek-1", "seek-2")
		Expect(d.Allowed).To(BeFalse())
		Expect(d.Reason).To(Equal(permission.ReasonNoPermission))
		Expect(d.Permission).To(BeNil())
		Expect(f.store.Len()).To(Equal(0))
	})

	Context("when the candidate applied to the employer's job", func() {
		BeforeEach(func() {
			f.rels.apply("seek-1", "emp-1")
		})

		It("auto-grants both directions for 90 days", func() {
			d := f.canMessage("emp-1", "seek-1")
			Expect(d.Allowed).To(BeTrue())
			Expect(d.Reason).To(Equal(permission.ReasonAutoApplication))
			Expect(f.store.Len()).To(Equal(2))

			for _, p := range []*permission.Permission{f.row("emp-1", "seek-1"), f.row("seek-1", "emp-1")} {
				Expect(p.Status).To(Equal(permission.StatusApproved))
				Expect(p.Kind).To(Equal(permission.KindAutoRelationship))
				Expect(p.IsActive).To(BeTrue())
				Expect(p.ExpiresAt).To(Equal(t0.Add(90 * day)))
				Expect(p.Metadata.Reason).To(Equal(permission.ReasonApplication))
				Expect(p.Metadata.SponsorID).To(Equal("emp-1"))
				Expect(p.Metadata.CandidateID).To(Equal("seek-1"))
				Expect(*p.RelatedApplicationID).To(Equal("app-seek-1-emp-1"))
			}

			Expect(f.canMessage("seek-1", "emp-1").Allowed).To(BeTrue())
		})

		It("does not reset the window on later checks", func() {
			f.canMessage("emp-1", "seek-1")
			f.clock.Advance(10 * day)
			f.canMessage("seek-1", "emp-1")

			Expect(f.row("emp-1", "seek-1").ExpiresAt).To(Equal(t0.Add(90 * day)))
			Expect(f.store.Len()).To(Equal(2))
		})

		It("never lets an auto-grant override an existing block", func() {
			_, err := f.svc.Block(f.ctx, "seek-1", "emp-1")
			Expect(err).NotTo(HaveOccurred())

			d := f.canMessage("emp-1", "seek-1")
			Expect(d.Allowed).To(BeFalse())
			Expect(d.Reason).To(Equal(permission.ReasonBlocked))
			Expect(f.row("emp-1", "seek-1").Status).To(Equal(permission.StatusBlocked))
		})

		It("creates exactly one row per direction under concurrent checks", func() {
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()
					sender, recipient := "emp-1", "seek-1"
					if i%2 == 1 {
						sender, recipient = recipient, sender
					}
					d, err := f.svc.CanMessage(f.ctx, sender, recipient)
					Expect(err).NotTo(HaveOccurred())
					Expect(d.Allowed).To(BeTrue())
				}(i)
			}
			wg.Wait()

			Expect(f.store.Len()).To(Equal(2))
		})
	})

	It("auto-grants when the employer's subscription includes messaging", func() {
		f.ents.set("emp-1", true)

		d := f.canMessage("seek-2", "emp-1")
		Expect(d.Allowed).To(BeTrue())
		Expect(d.Reason).To(Equal(permission.ReasonAutoSponsor))
		Expect(d.Permission.Metadata.Reason).To(Equal(permission.ReasonSubscription))
		Expect(d.Permission.Metadata.PlanTier).To(Equal("enterprise"))
	})

	It("does not auto-grant between two job seekers or two employers", func() {
		f.ents.set("emp-1", true)
		f.ents.set("emp-2", true)

		Expect(f.canMessage("emp-1", "emp-2").Allowed).To(BeFalse())
		Expect(f.canMessage("seek-1", "seek-2").Allowed).To(BeFalse())
		Expect(f.store.Len()).To(Equal(0))
	})

	It("denies when an oracle fails", func() {
		f.rels.err = errOracleDown
		f.ents.err = errOracleDown

		d := f.canMessage("emp-1", "seek-1")
		Expect(d.Allowed).To(BeFalse())
		Expect(d.Reason).To(Equal(permission.ReasonNoPermission))
	})

	It("treats an unknown user as unprivileged", func() {
		f.rels.apply("seek-1", "emp-1")

		d := f.canMessage("ghost", "seek-1")
		Expect(d.Allowed).To(BeFalse())
		Expect(f.store.Len()).To(Equal(0))
	})

	It("reports a pending request", func() {
		f.request("seek-1", "seek-2")

		d := f.canMessage("seek-1", "seek-2")
		Expect(d.Allowed).To(BeFalse())
		Expect(d.Reason).To(Equal(permission.ReasonPending))
	})

	It("honours a rejected request", func() {
		f.respond(f.request("seek-1", "seek-2"), permission.StatusRejected)

		d := f.canMessage("seek-1", "seek-2")
		Expect(d.Allowed).To(BeFalse())
		Expect(d.Reason).To(Equal(permission.ReasonRejected))
	})

	It("allows an approved request in its direction only", func() {
		f.respond(f.request("seek-1", "seek-2"), permission.StatusApproved)

		d := f.canMessage("seek-1", "seek-2")
		Expect(d.Allowed).To(BeTrue())
		Expect(d.Reason).To(Equal(permission.ReasonApproved))

		Expect(f.canMessage("seek-2", "seek-1").Reason).To(Equal(permission.ReasonNoPermission))
	})

	It("records the tiers it walked", func() {
		d := f.canMessage("seek-1", "seek-2")

		tiers := make([]string, 0, len(d.Trace))
		for _, step := range d.Trace {
			tiers = append(tiers, step.Tier)
		}
		Expect(tiers).To(Equal([]string{"self", "admin", "auto_grant", "stored"}))
	})
})
