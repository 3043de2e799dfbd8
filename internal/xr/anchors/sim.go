package anchors

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/tracksync/internal/xr"
)

// SimulatedProvider is a deterministic in-process anchor backend for the
// simulator and tests. Synchronously added anchors are acknowledged with a
// freshly minted identifier and confirmed on the following poll, mirroring
// how native runtimes surface locally requested anchors one frame later.
type SimulatedProvider struct {
	anchors map[xr.TrackableID]Data
	order   []xr.TrackableID

	pendingAdds     []Data
	pendingRemovals []xr.TrackableID

	// Drift is added to every tracked anchor's position on each poll,
	// producing updated records. Zero drift produces no updates.
	Drift r3.Vec

	running bool
}

// NewSimulatedProvider returns an empty simulated backend.
func NewSimulatedProvider() *SimulatedProvider {
	return &SimulatedProvider{anchors: make(map[xr.TrackableID]Data)}
}

// Descriptor advertises the full synchronous capability surface.
func (p *SimulatedProvider) Descriptor() xr.Descriptor {
	return xr.Descriptor{
		ID:                 "simulated-anchors",
		SupportsSyncAdd:    true,
		SupportsAttachment: true,
		SupportsRemoval:    true,
	}
}

// Start implements xr.Starter.
func (p *SimulatedProvider) Start() { p.running = true }

// Stop implements xr.Stopper.
func (p *SimulatedProvider) Stop() { p.running = false }

// TryAdd acknowledges the request immediately with a minted identifier in
// the limited tracking state; the anchor enters the tracked set on the next
// poll.
func (p *SimulatedProvider) TryAdd(pose xr.Pose) (Data, bool) {
	if !p.running {
		return Data{}, false
	}
	d := Data{
		ID:            xr.NewLocalTrackableID(),
		SessionPose:   pose,
		TrackingState: TrackingLimited,
	}
	p.pendingAdds = append(p.pendingAdds, d)
	return d, true
}

// TryAttach behaves like TryAdd but requires the parent to be a tracked
// anchor already.
func (p *SimulatedProvider) TryAttach(parent xr.TrackableID, pose xr.Pose) (Data, bool) {
	if !p.running {
		return Data{}, false
	}
	if _, ok := p.anchors[parent]; !ok {
		return Data{}, false
	}
	return p.TryAdd(pose)
}

// TryRemove stops tracking id. A not-yet-confirmed add is cancelled;
// a tracked anchor is staged for removal on the next poll.
func (p *SimulatedProvider) TryRemove(id xr.TrackableID) bool {
	if !p.running {
		return false
	}
	for i, d := range p.pendingAdds {
		if d.ID == id {
			p.pendingAdds = append(p.pendingAdds[:i], p.pendingAdds[i+1:]...)
			return true
		}
	}
	if _, ok := p.anchors[id]; !ok {
		return false
	}
	p.pendingRemovals = append(p.pendingRemovals, id)
	return true
}

// Tracked returns the number of anchors the backend is currently tracking.
func (p *SimulatedProvider) Tracked() int {
	return len(p.anchors)
}

// Changes drains the staged delta: removals first, then confirmation of
// previously acknowledged adds, then drift updates for the remaining
// tracked anchors. The three lists stay disjoint.
func (p *SimulatedProvider) Changes(buf *xr.ChangeBuffer[Data]) (xr.ChangeSet[Data], error) {
	if err := buf.Reset(); err != nil {
		return xr.ChangeSet[Data]{}, err
	}

	removed := make(map[xr.TrackableID]bool, len(p.pendingRemovals))
	for _, id := range p.pendingRemovals {
		if _, ok := p.anchors[id]; !ok {
			continue
		}
		delete(p.anchors, id)
		removed[id] = true
		buf.PutRemoved(id)
	}
	p.pendingRemovals = p.pendingRemovals[:0]
	if len(removed) > 0 {
		p.order = compactOrder(p.order, p.anchors)
	}

	confirmed := make(map[xr.TrackableID]bool, len(p.pendingAdds))
	for _, d := range p.pendingAdds {
		d.TrackingState = Tracking
		p.anchors[d.ID] = d
		p.order = append(p.order, d.ID)
		confirmed[d.ID] = true
		buf.PutAdded(d)
	}
	p.pendingAdds = p.pendingAdds[:0]

	if p.Drift != (r3.Vec{}) {
		for _, id := range p.order {
			if confirmed[id] {
				continue
			}
			d := p.anchors[id]
			d.SessionPose.Position = r3.Add(d.SessionPose.Position, p.Drift)
			p.anchors[id] = d
			buf.PutUpdated(d)
		}
	}

	return buf.Changes(), nil
}

func compactOrder(order []xr.TrackableID, live map[xr.TrackableID]Data) []xr.TrackableID {
	out := order[:0]
	for _, id := range order {
		if _, ok := live[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// AsyncSimulatedProvider is the natively asynchronous variant: add requests
// resolve on a later poll rather than at the call site, and the synchronous
// path is unsupported. Used to exercise the async half of the sync/async
// duality.
type AsyncSimulatedProvider struct {
	SimulatedProvider

	awaiting []asyncAdd
}

type asyncAdd struct {
	pose    xr.Pose
	promise *xr.Promise[Data]
}

// NewAsyncSimulatedProvider returns an empty asynchronous backend.
func NewAsyncSimulatedProvider() *AsyncSimulatedProvider {
	return &AsyncSimulatedProvider{
		SimulatedProvider: SimulatedProvider{anchors: make(map[xr.TrackableID]Data)},
	}
}

// Descriptor advertises asynchronous add only.
func (p *AsyncSimulatedProvider) Descriptor() xr.Descriptor {
	return xr.Descriptor{
		ID:               "simulated-anchors-async",
		SupportsAsyncAdd: true,
		SupportsRemoval:  true,
	}
}

// TryAddAsync registers the request; the future resolves during the next
// poll and the anchor is confirmed on the poll after that.
func (p *AsyncSimulatedProvider) TryAddAsync(pose xr.Pose) *xr.Future[Data] {
	promise := xr.NewPromise[Data]()
	if !p.running {
		promise.Resolve(xr.Result[Data]{})
		return promise.Future()
	}
	p.awaiting = append(p.awaiting, asyncAdd{pose: pose, promise: promise})
	return promise.Future()
}

// Changes drains the staged delta, then resolves awaited add requests.
// Resolution happens after the drain so a freshly resolved anchor is
// confirmed on the following poll, once the caller has had a chance to
// adopt it as pending.
func (p *AsyncSimulatedProvider) Changes(buf *xr.ChangeBuffer[Data]) (xr.ChangeSet[Data], error) {
	cs, err := p.SimulatedProvider.Changes(buf)
	if err != nil {
		return cs, err
	}
	for _, a := range p.awaiting {
		d := Data{
			ID:            xr.NewLocalTrackableID(),
			SessionPose:   a.pose,
			TrackingState: TrackingLimited,
		}
		p.pendingAdds = append(p.pendingAdds, d)
		a.promise.Resolve(xr.Result[Data]{Value: d, OK: true})
	}
	p.awaiting = p.awaiting[:0]
	return cs, nil
}
