package permission_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/messaging-permissions/internal"
	"github.com/frahmantamala/messaging-permissions/internal/permission"
)

var _ = Describe("RequestWorkflow", func() {
	var f *fixture

	BeforeEach(func() {
		f = newFixture()
	})

	Describe("RequestPermission", func() {
		It("creates a pending explicit request with the default window", func() {
			msg := "Hi, I saw your profile"
			p, err := f.svc.RequestPermission(f.ctx, permission.RequestInput{
				RequesterID: "seek-1",
				TargetID:    "seek-2",
				Message:     &msg,
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(p.ID).NotTo(BeEmpty())
			Expect(p.Status).To(Equal(permission.StatusPending))
			Expect(p.Kind).To(Equal(permission.KindExplicit))
			Expect(p.IsActive).To(BeFalse())
			Expect(p.ExpiresAt).To(Equal(t0.Add(7 * day)))
			Expect(*p.RequestMessage).To(Equal(msg))

			sent := f.sink.ofType(permission.NotificationRequested)
			Expect(sent).To(HaveLen(1))
			Expect(sent[0].RecipientID).To(Equal("seek-2"))
			Expect(*sent[0].Message).To(Equal(msg))
		})

		It("honours ttl_days", func() {
			p, err := f.svc.RequestPermission(f.ctx, permission.RequestInput{RequesterID: "seek-1", TargetID: "seek-2", TTLDays: 3})
			Expect(err).NotTo(HaveOccurred())
			Expect(p.ExpiresAt).To(Equal(t0.Add(3 * day)))
		})

		It("rejects ttl_days beyond the configured maximum", func() {
			_, err := f.svc.RequestPermission(f.ctx, permission.RequestInput{RequesterID: "seek-1", TargetID: "seek-2", TTLDays: 31})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})

		It("rejects requesting yourself", func() {
			_, err := f.svc.RequestPermission(f.ctx, permission.RequestInput{RequesterID: "seek-1", TargetID: "seek-1"})
			Expect(err).To(MatchError(internal.ErrSelfPermission))
		})

		It("rejects unknown targets", func() {
			_, err := f.svc.RequestPermission(f.ctx, permission.RequestInput{RequesterID: "seek-1", TargetID: "ghost"})
			Expect(err).To(MatchError(internal.ErrUserNotFound))
			Expect(f.store.Len()).To(Equal(0))
		})

		It("conflicts with an existing pending request", func() {
			f.request("seek-1", "seek-2")

			_, err := f.svc.RequestPermission(f.ctx, permission.RequestInput{RequesterID: "seek-1", TargetID: "seek-2"})
			Expect(err).To(MatchError(internal.ErrRequestAlreadyPending))
		})

		It("treats the reverse direction as a separate request", func() {
			f.request("seek-1", "seek-2")
			f.request("seek-2", "seek-1")
			Expect(f.store.Len()).To(Equal(2))
		})

		It("returns a still-valid approval unchanged", func() {
			approved := f.respond(f.request("seek-1", "seek-2"), permission.StatusApproved)
			before := len(f.sink.ofType(permission.NotificationRequested))

			p := f.request("seek-1", "seek-2")
			Expect(p.ID).To(Equal(approved.ID))
			Expect(p.Status).To(Equal(permission.StatusApproved))
			Expect(p.ExpiresAt).To(Equal(approved.ExpiresAt))
			Expect(f.sink.ofType(permission.NotificationRequested)).To(HaveLen(before))
		})

		It("reuses a rejected row as a fresh pending request", func() {
			rejected := f.respond(f.request("seek-1", "seek-2"), permission.StatusRejected)
			f.clock.Advance(day)

			p := f.request("seek-1", "seek-2")
			Expect(p.ID).To(Equal(rejected.ID))
			Expect(p.Status).To(Equal(permission.StatusPending))
			Expect(p.ExpiresAt).To(Equal(t0.Add(8 * day)))
			Expect(f.store.Len()).To(Equal(1))
		})

		It("refuses a requester the target has blocked", func() {
			_, err := f.svc.Block(f.ctx, "seek-2", "seek-1")
			Expect(err).NotTo(HaveOccurred())

			_, err = f.svc.RequestPermission(f.ctx, permission.RequestInput{RequesterID: "seek-1", TargetID: "seek-2"})
			Expect(err).To(MatchError(internal.ErrPermissionBlocked))
		})

		It("still succeeds when notification delivery fails", func() {
			f.sink.err = errors.New("smtp down")

			p := f.request("seek-1", "seek-2")
			Expect(p.Status).To(Equal(permission.StatusPending))
		})
	})

	Describe("RespondToRequest", func() {
		var pending *permission.Permission

		BeforeEach(func() {
			pending = f.request("seek-1", "seek-2")
		})

		It("approves and keeps the requested window", func() {
			f.clock.Advance(day)
			p := f.respond(pending, permission.StatusApproved)

			Expect(p.Status).To(Equal(permission.StatusApproved))
			Expect(p.IsActive).To(BeTrue())
			Expect(p.ExpiresAt).To(Equal(pending.ExpiresAt))

			sent := f.sink.ofType(permission.NotificationResponded)
			Expect(sent).To(HaveLen(1))
			Expect(sent[0].RecipientID).To(Equal("seek-1"))
			Expect(sent[0].Status).To(Equal(permission.StatusApproved))
		})

		It("rejects", func() {
			p := f.respond(pending, permission.StatusRejected)
			Expect(p.Status).To(Equal(permission.StatusRejected))
			Expect(p.IsActive).To(BeFalse())
		})

		It("only lets the target answer", func() {
			_, err := f.svc.RespondToRequest(f.ctx, permission.RespondInput{
				PermissionID: pending.ID,
				ResponderID:  "seek-1",
				Decision:     permission.StatusApproved,
			})
			Expect(err).To(MatchError(internal.ErrNotRequestTarget))
		})

		It("rejects unknown decisions", func() {
			_, err := f.svc.RespondToRequest(f.ctx, permission.RespondInput{
				PermissionID: pending.ID,
				ResponderID:  "seek-2",
				Decision:     permission.StatusPending,
			})
			Expect(err).To(MatchError(internal.ErrInvalidDecision))
		})

		It("rejects unknown ids", func() {
			_, err := f.svc.RespondToRequest(f.ctx, permission.RespondInput{
				PermissionID: "missing",
				ResponderID:  "seek-2",
				Decision:     permission.StatusApproved,
			})
			Expect(err).To(MatchError(internal.ErrPermissionNotFound))
		})

		It("conflicts when the request was already answered", func() {
			f.respond(pending, permission.StatusApproved)

			_, err := f.svc.RespondToRequest(f.ctx, permission.RespondInput{
				PermissionID: pending.ID,
				ResponderID:  "seek-2",
				Decision:     permission.StatusRejected,
			})
			Expect(err).To(MatchError(internal.ErrRequestAlreadyResolved))
		})

		It("conflicts when the request window has closed", func() {
			f.clock.Advance(7 * day)

			_, err := f.svc.RespondToRequest(f.ctx, permission.RespondInput{
				PermissionID: pending.ID,
				ResponderID:  "seek-2",
				Decision:     permission.StatusApproved,
			})
			Expect(err).To(MatchError(internal.ErrRequestExpired))
			Expect(f.row("seek-1", "seek-2").Status).To(Equal(permission.StatusPending))
		})

		It("blocks both directions when answered with blocked", func() {
			note := "please stop"
			p, err := f.svc.RespondToRequest(f.ctx, permission.RespondInput{
				PermissionID:    pending.ID,
				ResponderID:     "seek-2",
				Decision:        permission.StatusBlocked,
				ResponseMessage: &note,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(p.ID).To(Equal(pending.ID))
			Expect(p.Status).To(Equal(permission.StatusBlocked))
			Expect(*p.ResponseMessage).To(Equal(note))

			reverse := f.row("seek-2", "seek-1")
			Expect(reverse.Status).To(Equal(permission.StatusBlocked))
			Expect(reverse.Metadata.BlockedBy).To(Equal("seek-2"))
			Expect(f.sink.ofType(permission.NotificationResponded)).To(HaveLen(1))
		})
	})
})
