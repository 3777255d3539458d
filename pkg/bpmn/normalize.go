package bpmn

import (
	"github.com/beevik/etree"
)

// Normalize rewrites the model in place into the shape the automaton
// compiler reasons about: message flows are removed, event-based gateways
// become exclusive gateways, and every event other than start/end events is
// elided with its neighbours rewired. Incoming/outgoing references of all
// surviving nodes are recomputed from the final edge set. Graphs nested in
// container activities get the same treatment.
func Normalize(m *Model) {
	removed := make(map[string]bool)

	for _, mf := range m.MessageFlows {
		removed[mf.ID] = true
		mf.elem.Parent().RemoveChild(mf.elem)
	}
	m.MessageFlows = nil

	for _, p := range m.Processes {
		normalizeGraph(p, removed)
	}

	dropDiagramElements(m.root, removed)
}

// normalizeGraph rewrites p and then every nested container graph, each
// against its own flows.
func normalizeGraph(p *Process, removed map[string]bool) {
	replaceEventGateways(p)
	stripStartTriggers(p)
	for _, id := range elideEvents(p) {
		removed[id] = true
	}
	p.RecomputeRefs()
	for _, sp := range p.Subprocesses {
		normalizeGraph(sp, removed)
	}
}

// replaceEventGateways swaps every eventBasedGateway for an exclusiveGateway
// carrying the same id, name and direction. Flows are untouched.
func replaceEventGateways(p *Process) {
	for _, n := range p.Nodes {
		if n.Type != tagEventBasedGateway {
			continue
		}
		old := n.elem
		gw := etree.NewElement(tagExclusiveGateway)
		gw.Space = old.Space
		for _, key := range []string{"id", "name", "gatewayDirection"} {
			if a := old.SelectAttr(key); a != nil {
				gw.CreateAttr(key, a.Value)
			}
		}
		for _, c := range old.ChildElements() {
			if c.Tag == tagIncoming || c.Tag == tagOutgoing {
				gw.AddChild(c.Copy())
			}
		}
		parent := old.Parent()
		at := old.Index()
		parent.RemoveChildAt(at)
		parent.InsertChildAt(at, gw)

		n.elem = gw
		n.Type = tagExclusiveGateway
	}
}

// stripStartTriggers removes message, timer, signal and conditional event
// definitions from start events.
func stripStartTriggers(p *Process) {
	for _, n := range p.Nodes {
		if n.Kind != KindStart {
			continue
		}
		for _, c := range n.elem.ChildElements() {
			if triggerDefinitions[c.Tag] {
				n.elem.RemoveChild(c)
			}
		}
	}
}

// elideEvents removes intermediate and boundary events. For a removed node
// with incoming flows I and outgoing flows O:
//   - every flow in I is retargeted to the target of O[0];
//   - for every other flow in O a copy of I[0] is added, targeting it;
//   - the flows in O are deleted.
//
// When only one side has flows, those dangling flows are deleted.
// It returns the ids of every removed node and flow.
func elideEvents(p *Process) []string {
	var removed []string

	var events []*Node
	for _, n := range p.Nodes {
		if n.Kind == KindEvent {
			events = append(events, n)
		}
	}

	for _, n := range events {
		in := p.IncomingFlows(n.ID)
		out := p.OutgoingFlows(n.ID)

		if len(in) > 0 && len(out) > 0 {
			for _, f := range in {
				p.Retarget(f, out[0].Target)
			}
			for _, o := range out[1:] {
				p.CloneFlow(in[0], in[0].ID+"_"+o.ID, o.Target)
			}
		} else {
			for _, f := range in {
				removed = append(removed, f.ID)
				p.RemoveFlow(f.ID)
			}
		}
		for _, f := range out {
			removed = append(removed, f.ID)
			p.RemoveFlow(f.ID)
		}

		removed = append(removed, n.ID)
		p.RemoveNode(n.ID)
	}
	return removed
}

// dropDiagramElements deletes BPMNDI shapes and edges pointing at removed elements.
func dropDiagramElements(root *etree.Element, removed map[string]bool) {
	if len(removed) == 0 {
		return
	}
	var stale []*etree.Element
	walk(root, func(el *etree.Element) {
		if el.Tag != tagBPMNEdge && el.Tag != tagBPMNShape {
			return
		}
		if removed[el.SelectAttrValue("bpmnElement", "")] {
			stale = append(stale, el)
		}
	})
	for _, el := range stale {
		el.Parent().RemoveChild(el)
	}
}
