package planes

import (
	"github.com/banshee-data/tracksync/internal/xr"
)

// SimulatedProvider is a scripted plane backend: detections, growth and
// merges are staged by the caller and drained on the next poll. A merge is
// the characteristic plane lifecycle event — two detected surfaces turn out
// to be one, so a single poll reports the absorbed plane as removed and the
// surviving plane as updated.
type SimulatedProvider struct {
	planes map[xr.TrackableID]Data
	order  []xr.TrackableID

	adds    []Data
	updates []xr.TrackableID
	removes []xr.TrackableID
}

// NewSimulatedProvider returns an empty scripted backend.
func NewSimulatedProvider() *SimulatedProvider {
	return &SimulatedProvider{planes: make(map[xr.TrackableID]Data)}
}

// ScriptDetect stages the detection of a new plane and returns its minted
// identifier.
func (p *SimulatedProvider) ScriptDetect(center xr.Pose, width, depth float64, class Classification) xr.TrackableID {
	d := Data{
		ID:             xr.NewLocalTrackableID(),
		CenterPose:     center,
		Width:          width,
		Depth:          depth,
		Classification: class,
	}
	p.adds = append(p.adds, d)
	return d.ID
}

// ScriptGrow stages an extent change for a tracked plane.
func (p *SimulatedProvider) ScriptGrow(id xr.TrackableID, dw, dd float64) bool {
	d, ok := p.planes[id]
	if !ok {
		return false
	}
	d.Width += dw
	d.Depth += dd
	p.planes[id] = d
	p.updates = append(p.updates, id)
	return true
}

// ScriptMerge stages the merge of absorbed into survivor: the survivor
// grows to cover both and the absorbed plane is removed, in one delta.
func (p *SimulatedProvider) ScriptMerge(survivor, absorbed xr.TrackableID) bool {
	s, ok := p.planes[survivor]
	if !ok {
		return false
	}
	a, ok := p.planes[absorbed]
	if !ok {
		return false
	}
	s.Width += a.Width
	s.Depth += a.Depth
	p.planes[survivor] = s
	p.updates = append(p.updates, survivor)
	p.removes = append(p.removes, absorbed)
	return true
}

// Changes drains the staged delta.
func (p *SimulatedProvider) Changes(buf *xr.ChangeBuffer[Data]) (xr.ChangeSet[Data], error) {
	if err := buf.Reset(); err != nil {
		return xr.ChangeSet[Data]{}, err
	}

	for _, id := range p.removes {
		if _, ok := p.planes[id]; !ok {
			continue
		}
		delete(p.planes, id)
		buf.PutRemoved(id)
	}
	if len(p.removes) > 0 {
		live := p.order[:0]
		for _, id := range p.order {
			if _, ok := p.planes[id]; ok {
				live = append(live, id)
			}
		}
		p.order = live
	}
	p.removes = p.removes[:0]

	for _, d := range p.adds {
		p.planes[d.ID] = d
		p.order = append(p.order, d.ID)
		buf.PutAdded(d)
	}
	p.adds = p.adds[:0]

	seen := make(map[xr.TrackableID]bool, len(p.updates))
	for _, id := range p.updates {
		d, ok := p.planes[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		buf.PutUpdated(d)
	}
	p.updates = p.updates[:0]

	return buf.Changes(), nil
}
