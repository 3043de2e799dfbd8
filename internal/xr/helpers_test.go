package xr

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// testData is the SessionRelativeData used across subsystem and manager
// tests.
type testData struct {
	id   TrackableID
	pose Pose
}

func (d testData) TrackableID() TrackableID { return d.id }
func (d testData) Pose() Pose               { return d.pose }

func dataAt(id TrackableID, x float64) testData {
	return testData{id: id, pose: NewPose(r3.Vec{X: x}, IdentityPose().Orientation)}
}

// scriptedProvider replays one staged delta per poll.
type scriptedProvider struct {
	adds    []testData
	updates []testData
	removes []TrackableID
	err     error

	started int
	stopped int
}

func (p *scriptedProvider) Start() { p.started++ }
func (p *scriptedProvider) Stop()  { p.stopped++ }

func (p *scriptedProvider) Changes(buf *ChangeBuffer[testData]) (ChangeSet[testData], error) {
	if p.err != nil {
		return ChangeSet[testData]{}, p.err
	}
	if err := buf.Reset(); err != nil {
		return ChangeSet[testData]{}, err
	}
	for _, d := range p.adds {
		buf.PutAdded(d)
	}
	for _, d := range p.updates {
		buf.PutUpdated(d)
	}
	for _, id := range p.removes {
		buf.PutRemoved(id)
	}
	p.adds, p.updates, p.removes = nil, nil, nil
	return buf.Changes(), nil
}

// syncAddProvider adds the synchronous add capability on top of the script.
type syncAddProvider struct {
	scriptedProvider
	nextAdd testData
	addOK   bool
}

func (p *syncAddProvider) TryAdd(pose Pose) (testData, bool) {
	if !p.addOK {
		return testData{}, false
	}
	d := p.nextAdd
	d.pose = pose
	return d, true
}

// asyncAddProvider resolves add requests through a pending future.
type asyncAddProvider struct {
	scriptedProvider
	promises []*Promise[testData]
}

func (p *asyncAddProvider) TryAddAsync(pose Pose) *Future[testData] {
	promise := NewPromise[testData]()
	p.promises = append(p.promises, promise)
	return promise.Future()
}

// recordingRep captures every placement call for assertions.
type recordingRep struct {
	id        TrackableID
	pose      Pose
	poseSets  int
	active    bool
	activeSet int
	destroyed int
}

func (r *recordingRep) SetPose(p Pose) {
	r.pose = p
	r.poseSets++
}

func (r *recordingRep) SetActive(active bool) {
	r.active = active
	r.activeSet++
}

func (r *recordingRep) Destroy() {
	r.destroyed++
}

// notifyCall is a snapshot of one OnTrackablesChanged invocation.
type notifyCall struct {
	added   []TrackableID
	updated []TrackableID
	removed []TrackableID
}

// recordingObserver snapshots every notification and can fail or panic on
// demand.
type recordingObserver struct {
	calls   []notifyCall
	err     error
	panicOn bool

	// inspect runs inside the callback, before err/panic handling.
	inspect func(added, updated, removed []*Trackable[testData])
}

func (o *recordingObserver) OnTrackablesChanged(added, updated, removed []*Trackable[testData]) error {
	call := notifyCall{}
	for _, tr := range added {
		call.added = append(call.added, tr.ID())
	}
	for _, tr := range updated {
		call.updated = append(call.updated, tr.ID())
	}
	for _, tr := range removed {
		call.removed = append(call.removed, tr.ID())
	}
	o.calls = append(o.calls, call)
	if o.inspect != nil {
		o.inspect(added, updated, removed)
	}
	if o.panicOn {
		panic("observer failure")
	}
	return o.err
}

// testHarness wires a manager over a scripted provider with recording
// representations.
type testHarness struct {
	provider  *scriptedProvider
	subsystem *Subsystem[testData]
	observer  *recordingObserver
	manager   *Manager[testData]
	reps      map[TrackableID]*recordingRep
}

func newTestHarness() *testHarness {
	h := &testHarness{
		provider: &scriptedProvider{},
		observer: &recordingObserver{},
		reps:     make(map[TrackableID]*recordingRep),
	}
	h.subsystem = NewSubsystem[testData](Descriptor{ID: "scripted"}, h.provider)
	h.manager = NewManager(ManagerConfig[testData]{
		Subsystem: h.subsystem,
		Observer:  h.observer,
		Factory: func(d testData, world Pose) Representation {
			rep := &recordingRep{id: d.TrackableID(), pose: world, poseSets: 1}
			h.reps[d.TrackableID()] = rep
			return rep
		},
	})
	return h
}
