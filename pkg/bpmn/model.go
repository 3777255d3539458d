package bpmn

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/constraintflow/pkg/domain"
	"github.com/beevik/etree"
)

// Node is a flow node (activity, gateway or event) of a process.
type Node struct {
	ID       string
	Name     string
	Type     string // local element name, e.g. "userTask"
	Kind     Kind
	Incoming []string // sequence flow ids, recomputed from the edge set
	Outgoing []string

	elem *etree.Element
}

// Flow is a sequence flow.
type Flow struct {
	ID     string
	Source string
	Target string

	elem *etree.Element
}

// Process is one process graph. Node order follows the document.
// Container activities (subProcess, transaction, adHocSubProcess) appear as a
// node here and carry their own graph in Subprocesses, keyed by the same id.
type Process struct {
	ID           string
	Name         string
	Nodes        []*Node
	Flows        []*Flow
	Subprocesses []*Process

	elem  *etree.Element
	nodes map[string]*Node
}

// Participant is a pool of a collaboration.
type Participant struct {
	ID         string
	Name       string
	ProcessRef string
}

// MessageFlow is an edge between two pools.
type MessageFlow struct {
	ID     string
	Source string
	Target string

	elem *etree.Element
}

// Model is a parsed BPMN document.
type Model struct {
	Processes    []*Process
	Participants []Participant
	MessageFlows []*MessageFlow

	doc  *etree.Document
	root *etree.Element
}

// Parse reads a BPMN document.
func Parse(r io.Reader) (*Model, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	return ParseBytes(data)
}

// ParseFile reads a BPMN document from disk.
func ParseFile(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	return ParseBytes(data)
}

// ParseBytes parses a BPMN document held in memory.
func ParseBytes(data []byte) (*Model, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidModel, err)
	}
	root := doc.Root()
	if root == nil || root.Tag != tagDefinitions {
		return nil, fmt.Errorf("%w: root element is not definitions", domain.ErrInvalidModel)
	}

	m := &Model{doc: doc, root: root}
	for _, el := range root.ChildElements() {
		switch el.Tag {
		case tagProcess:
			m.Processes = append(m.Processes, newProcess(el))
		case tagCollaboration:
			for _, c := range el.ChildElements() {
				switch c.Tag {
				case tagParticipant:
					m.Participants = append(m.Participants, Participant{
						ID:         c.SelectAttrValue("id", ""),
						Name:       c.SelectAttrValue("name", ""),
						ProcessRef: c.SelectAttrValue("processRef", ""),
					})
				case tagMessageFlow:
					m.MessageFlows = append(m.MessageFlows, &MessageFlow{
						ID:     c.SelectAttrValue("id", ""),
						Source: c.SelectAttrValue("sourceRef", ""),
						Target: c.SelectAttrValue("targetRef", ""),
						elem:   c,
					})
				}
			}
		}
	}
	return m, nil
}

func newProcess(el *etree.Element) *Process {
	p := &Process{
		ID:    el.SelectAttrValue("id", ""),
		Name:  el.SelectAttrValue("name", ""),
		elem:  el,
		nodes: make(map[string]*Node),
	}
	for _, c := range el.ChildElements() {
		if c.Tag == tagSequenceFlow {
			p.Flows = append(p.Flows, &Flow{
				ID:     c.SelectAttrValue("id", ""),
				Source: c.SelectAttrValue("sourceRef", ""),
				Target: c.SelectAttrValue("targetRef", ""),
				elem:   c,
			})
			continue
		}
		kind, ok := nodeKinds[c.Tag]
		if !ok {
			continue
		}
		n := &Node{
			ID:   c.SelectAttrValue("id", ""),
			Name: c.SelectAttrValue("name", ""),
			Type: c.Tag,
			Kind: kind,
			elem: c,
		}
		for _, ref := range c.ChildElements() {
			switch ref.Tag {
			case tagIncoming:
				n.Incoming = append(n.Incoming, ref.Text())
			case tagOutgoing:
				n.Outgoing = append(n.Outgoing, ref.Text())
			}
		}
		p.Nodes = append(p.Nodes, n)
		p.nodes[n.ID] = n
		if containerTags[c.Tag] {
			p.Subprocesses = append(p.Subprocesses, newProcess(c))
		}
	}
	return p
}

// Process returns the process with the given id, or nil.
func (m *Model) Process(id string) *Process {
	for _, p := range m.Processes {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Bytes serializes the model as indented XML.
func (m *Model) Bytes() ([]byte, error) {
	m.doc.Indent(2)
	return m.doc.WriteToBytes()
}

// WriteTo writes the serialized model to w.
func (m *Model) WriteTo(w io.Writer) (int64, error) {
	data, err := m.Bytes()
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(w, bytes.NewReader(data))
	return n, err
}

// Clone returns an independent deep copy of the model.
func (m *Model) Clone() (*Model, error) {
	data, err := m.doc.Copy().WriteToBytes()
	if err != nil {
		return nil, err
	}
	return ParseBytes(data)
}

// Subprocess returns the nested graph of the container node id, or nil.
func (p *Process) Subprocess(id string) *Process {
	for _, sp := range p.Subprocesses {
		if sp.ID == id {
			return sp
		}
	}
	return nil
}

// Node returns the node with the given id, or nil.
func (p *Process) Node(id string) *Node {
	return p.nodes[id]
}

// Flow returns the sequence flow with the given id, or nil.
func (p *Process) Flow(id string) *Flow {
	for _, f := range p.Flows {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// IncomingFlows returns the flows targeting node, in edge order.
func (p *Process) IncomingFlows(nodeID string) []*Flow {
	var out []*Flow
	for _, f := range p.Flows {
		if f.Target == nodeID {
			out = append(out, f)
		}
	}
	return out
}

// OutgoingFlows returns the flows leaving node, in edge order.
func (p *Process) OutgoingFlows(nodeID string) []*Flow {
	var out []*Flow
	for _, f := range p.Flows {
		if f.Source == nodeID {
			out = append(out, f)
		}
	}
	return out
}

// RemoveNode deletes a node and its element. Flows are left untouched.
func (p *Process) RemoveNode(id string) {
	n, ok := p.nodes[id]
	if !ok {
		return
	}
	delete(p.nodes, id)
	for i, cur := range p.Nodes {
		if cur == n {
			p.Nodes = append(p.Nodes[:i], p.Nodes[i+1:]...)
			break
		}
	}
	p.elem.RemoveChild(n.elem)
}

// RemoveFlow deletes a sequence flow and its element.
func (p *Process) RemoveFlow(id string) {
	for i, f := range p.Flows {
		if f.ID == id {
			p.Flows = append(p.Flows[:i], p.Flows[i+1:]...)
			p.elem.RemoveChild(f.elem)
			return
		}
	}
}

// Retarget points an existing flow at a new target node.
func (p *Process) Retarget(f *Flow, target string) {
	f.Target = target
	f.elem.CreateAttr("targetRef", target)
}

// CloneFlow copies template (attributes and children) into a new flow with
// the given target. The id is made unique within the process.
func (p *Process) CloneFlow(template *Flow, id, target string) *Flow {
	id = p.uniqueID(id)
	el := template.elem.Copy()
	el.CreateAttr("id", id)
	el.CreateAttr("targetRef", target)
	p.elem.InsertChildAt(template.elem.Index()+1, el)

	f := &Flow{ID: id, Source: template.Source, Target: target, elem: el}
	for i, cur := range p.Flows {
		if cur == template {
			p.Flows = append(p.Flows[:i+1], append([]*Flow{f}, p.Flows[i+1:]...)...)
			return f
		}
	}
	p.Flows = append(p.Flows, f)
	return f
}

func (p *Process) uniqueID(id string) string {
	taken := func(candidate string) bool {
		return p.nodes[candidate] != nil || p.Flow(candidate) != nil
	}
	if !taken(id) {
		return id
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", id, i)
		if !taken(candidate) {
			return candidate
		}
	}
}

// RecomputeRefs rebuilds the incoming/outgoing lists of every node (and
// their child elements) from the current edge set.
func (p *Process) RecomputeRefs() {
	for _, n := range p.Nodes {
		n.Incoming = n.Incoming[:0]
		n.Outgoing = n.Outgoing[:0]
	}
	for _, f := range p.Flows {
		if n := p.nodes[f.Target]; n != nil {
			n.Incoming = append(n.Incoming, f.ID)
		}
		if n := p.nodes[f.Source]; n != nil {
			n.Outgoing = append(n.Outgoing, f.ID)
		}
	}
	for _, n := range p.Nodes {
		writeRefs(n)
	}
}

// writeRefs replaces the <incoming>/<outgoing> children of a node element.
func writeRefs(n *Node) {
	space := n.elem.Space
	for _, c := range n.elem.ChildElements() {
		if c.Tag == tagIncoming || c.Tag == tagOutgoing {
			n.elem.RemoveChild(c)
		}
	}

	at := refsIndex(n.elem)
	for _, group := range []struct {
		tag string
		ids []string
	}{{tagIncoming, n.Incoming}, {tagOutgoing, n.Outgoing}} {
		for _, id := range group.ids {
			ref := etree.NewElement(group.tag)
			ref.Space = space
			ref.SetText(id)
			n.elem.InsertChildAt(at, ref)
			at++
		}
	}
}

// refsIndex is the child position right after documentation and extension
// elements, where the BPMN schema places incoming/outgoing references.
func refsIndex(el *etree.Element) int {
	at := 0
	for i, tok := range el.Child {
		c, ok := tok.(*etree.Element)
		if !ok {
			continue
		}
		if c.Tag == tagDocumentation || c.Tag == tagExtensionElements {
			at = i + 1
			continue
		}
		break
	}
	return at
}

// walk visits every element below root in document order.
func walk(root *etree.Element, fn func(*etree.Element)) {
	for _, c := range root.ChildElements() {
		fn(c)
		walk(c, fn)
	}
}
