package observer_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/l7mp/reldb/pkg/differentiate"
	"github.com/l7mp/reldb/pkg/observer"
	"github.com/l7mp/reldb/pkg/relation"
)

func TestObserver(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "observer suite")
}

type recordingDelta struct {
	willChanged, didChanged bool
	deltas                  []differentiate.Change
}

func (r *recordingDelta) WillChange(_ context.Context) { r.willChanged = true }
func (r *recordingDelta) Changing(_ context.Context, d differentiate.Change) error {
	r.deltas = append(r.deltas, d)
	return nil
}
func (r *recordingDelta) DidChange(_ context.Context) { r.didChanged = true }

var _ = Describe("Registry", func() {
	It("registers and drives a sync delta observer through all three phases", func() {
		reg := observer.NewRegistry()
		rec := &recordingDelta{}
		reg.RegisterSyncDelta(rec)

		observers := reg.SyncDeltaObservers()
		Expect(observers).To(HaveLen(1))

		ctx := context.Background()
		observers[0].WillChange(ctx)
		Expect(observers[0].Changing(ctx, differentiate.Change{Added: relation.NewRowSet()})).To(Succeed())
		observers[0].DidChange(ctx)

		Expect(rec.willChanged).To(BeTrue())
		Expect(rec.didChanged).To(BeTrue())
		Expect(rec.deltas).To(HaveLen(1))
	})

	It("removes a registration by handle", func() {
		reg := observer.NewRegistry()
		h := reg.RegisterSyncDelta(&recordingDelta{})
		Expect(reg.Len()).To(Equal(1))

		reg.Remove(h)
		Expect(reg.Len()).To(Equal(0))
	})

	It("keeps the three flavors independently addressable", func() {
		reg := observer.NewRegistry()
		reg.RegisterSyncDelta(&recordingDelta{})
		reg.RegisterAsyncDelta(&recordingDelta{})
		Expect(reg.Len()).To(Equal(2))
		Expect(reg.SyncDeltaObservers()).To(HaveLen(1))
		Expect(reg.AsyncDeltaObservers()).To(HaveLen(1))
		Expect(reg.AsyncContentObservers()).To(HaveLen(0))
	})
})
