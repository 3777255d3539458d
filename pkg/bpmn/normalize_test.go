package bpmn

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertRefsMatchEdges checks that every node's incoming/outgoing lists are
// exactly the flows of the edge set, in edge order.
func assertRefsMatchEdges(t *testing.T, p *Process) {
	t.Helper()
	for _, n := range p.Nodes {
		var in, out []string
		for _, f := range p.IncomingFlows(n.ID) {
			in = append(in, f.ID)
		}
		for _, f := range p.OutgoingFlows(n.ID) {
			out = append(out, f.ID)
		}
		assert.Equal(t, in, n.Incoming, "incoming of %s", n.ID)
		assert.Equal(t, out, n.Outgoing, "outgoing of %s", n.ID)
	}
	for _, f := range p.Flows {
		assert.NotNil(t, p.Node(f.Source), "flow %s source", f.ID)
		assert.NotNil(t, p.Node(f.Target), "flow %s target", f.ID)
	}
}

func findByID(m *Model, id string) *etree.Element {
	var found *etree.Element
	walk(m.root, func(el *etree.Element) {
		if found == nil && el.SelectAttrValue("id", "") == id {
			found = el
		}
	})
	return found
}

func TestNormalize_TwoPools(t *testing.T) {
	m := loadFixture(t, "two_pools.bpmn")
	Normalize(m)
	m = reload(t, m)

	t.Run("MessageFlowsRemoved", func(t *testing.T) {
		assert.Empty(t, m.MessageFlows)
		assert.Nil(t, findByID(m, "MessageFlow_Order"))
	})

	t.Run("EventGatewayReplaced", func(t *testing.T) {
		gw := m.Process("Process_Customer").Node("Gateway_Wait")
		require.NotNil(t, gw)
		assert.Equal(t, "exclusiveGateway", gw.Type)
		assert.Equal(t, "Wait", gw.Name)
		assert.Equal(t, "Diverging", gw.elem.SelectAttrValue("gatewayDirection", ""))
		assert.Equal(t, "bpmn", gw.elem.Space)
		assert.Equal(t, []string{"Flow_C3", "Flow_C4"}, gw.Outgoing)
	})

	t.Run("StartTriggersStripped", func(t *testing.T) {
		for _, id := range []string{"Timer_1", "Msg_2"} {
			assert.Nil(t, findByID(m, id), id)
		}
		start := m.Process("Process_Shop").Node("Event_OrderReceived")
		require.NotNil(t, start)
		assert.Equal(t, KindStart, start.Kind)
	})

	t.Run("EventsElided", func(t *testing.T) {
		for _, p := range m.Processes {
			for _, n := range p.Nodes {
				assert.NotEqual(t, KindEvent, n.Kind, n.ID)
			}
		}
	})

	t.Run("SingleOutgoingRewired", func(t *testing.T) {
		p := m.Process("Process_Customer")
		assert.Equal(t, []string{"Flow_C1", "Flow_C2", "Flow_C3", "Flow_C4", "Flow_C7"}, flowIDs(p))
		assert.Equal(t, "Activity_Pay", p.Flow("Flow_C3").Target)
		assert.Equal(t, "EndEvent_C", p.Flow("Flow_C4").Target)
		assert.Equal(t, []string{"Flow_C3"}, p.Node("Activity_Pay").Incoming)
		assert.Equal(t, []string{"Flow_C4", "Flow_C7"}, p.Node("EndEvent_C").Incoming)
	})

	t.Run("FanOutCloned", func(t *testing.T) {
		p := m.Process("Process_Shop")
		assert.Equal(t, []string{"Flow_S1", "Flow_S2", "Flow_S2_Flow_S4", "Flow_S6", "Flow_S7"}, flowIDs(p))
		assert.Equal(t, "Activity_Ship", p.Flow("Flow_S2").Target)

		clone := p.Flow("Flow_S2_Flow_S4")
		require.NotNil(t, clone)
		assert.Equal(t, "Activity_Pack", clone.Source)
		assert.Equal(t, "Activity_Invoice", clone.Target)
		assert.Equal(t, []string{"Flow_S2", "Flow_S2_Flow_S4"}, p.Node("Activity_Pack").Outgoing)
	})

	t.Run("DanglingBoundaryFlowsDropped", func(t *testing.T) {
		p := m.Process("Process_Shop")
		assert.Nil(t, p.Node("Event_PackFailed"))
		assert.Nil(t, p.Flow("Flow_S5"))
		assert.Equal(t, []string{"Flow_S6", "Flow_S7"}, p.Node("EndEvent_S").Incoming)
	})

	t.Run("RefsMatchEdges", func(t *testing.T) {
		for _, p := range m.Processes {
			assertRefsMatchEdges(t, p)
		}
	})

	t.Run("DiagramPruned", func(t *testing.T) {
		for _, id := range []string{"Shape_Confirmed", "Edge_Order", "Edge_C5"} {
			assert.Nil(t, findByID(m, id), id)
		}
		for _, id := range []string{"Shape_Pay", "Edge_C7"} {
			assert.NotNil(t, findByID(m, id), id)
		}
	})

	t.Run("ConstraintsSurvive", func(t *testing.T) {
		assert.Len(t, ExtractConstraints(m), 2)
	})
}

func TestNormalize_NoEventsIsIdentity(t *testing.T) {
	before := loadFixture(t, "single.bpmn")
	after := loadFixture(t, "single.bpmn")
	Normalize(after)
	after = reload(t, after)

	bp, ap := before.Process("Process_1"), after.Process("Process_1")
	assert.Equal(t, nodeIDs(bp), nodeIDs(ap))
	assert.Equal(t, flowIDs(bp), flowIDs(ap))
	for _, n := range bp.Nodes {
		got := ap.Node(n.ID)
		require.NotNil(t, got)
		assert.Equal(t, n.Type, got.Type)
		assert.Equal(t, n.Incoming, got.Incoming, n.ID)
		assert.Equal(t, n.Outgoing, got.Outgoing, n.ID)
	}
	assert.Equal(t, ExtractConstraints(before), ExtractConstraints(after))
}

func TestNormalize_Idempotent(t *testing.T) {
	m := loadFixture(t, "two_pools.bpmn")
	Normalize(m)
	once, err := m.Bytes()
	require.NoError(t, err)

	Normalize(m)
	twice, err := m.Bytes()
	require.NoError(t, err)
	assert.Equal(t, string(once), string(twice))
}

func TestNormalize_RefsAfterDocumentation(t *testing.T) {
	src := `<?xml version="1.0" encoding="UTF-8"?>
<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL" id="d">
  <bpmn:process id="p">
    <bpmn:startEvent id="s"><bpmn:outgoing>f1</bpmn:outgoing></bpmn:startEvent>
    <bpmn:intermediateThrowEvent id="e"><bpmn:incoming>f1</bpmn:incoming><bpmn:outgoing>f2</bpmn:outgoing></bpmn:intermediateThrowEvent>
    <bpmn:task id="t">
      <bpmn:documentation>Check stock</bpmn:documentation>
      <bpmn:incoming>f2</bpmn:incoming>
    </bpmn:task>
    <bpmn:sequenceFlow id="f1" sourceRef="s" targetRef="e" />
    <bpmn:sequenceFlow id="f2" sourceRef="e" targetRef="t" />
  </bpmn:process>
</bpmn:definitions>`
	m, err := ParseBytes([]byte(src))
	require.NoError(t, err)
	Normalize(m)

	task := m.Process("p").Node("t")
	children := task.elem.ChildElements()
	require.Len(t, children, 2)
	assert.Equal(t, "documentation", children[0].Tag)
	assert.Equal(t, "incoming", children[1].Tag)
	assert.Equal(t, "f1", children[1].Text())
	assert.Equal(t, []string{"f1"}, task.Incoming)
}

func TestNormalize_Subprocesses(t *testing.T) {
	m := loadFixture(t, "subprocess.bpmn")
	Normalize(m)
	m = reload(t, m)

	top := m.Process("Process_Fulfil")
	assert.Equal(t, []string{"StartEvent_1", "Activity_Fulfil", "EndEvent_1"}, nodeIDs(top))
	assert.Equal(t, []string{"Flow_1", "Flow_2"}, flowIDs(top))
	assertRefsMatchEdges(t, top)

	sub := top.Subprocess("Activity_Fulfil")
	require.NotNil(t, sub)
	assert.Equal(t, []string{"StartEvent_Sub", "Activity_Charge", "EndEvent_Sub"}, nodeIDs(sub))
	assert.Equal(t, []string{"Flow_S1", "Flow_S3"}, flowIDs(sub))
	assert.Equal(t, "Activity_Charge", sub.Flow("Flow_S1").Target)
	assert.Empty(t, sub.Node("StartEvent_Sub").elem.SelectElements("timerEventDefinition"))
	assertRefsMatchEdges(t, sub)

	tx := sub.Subprocess("Activity_Charge")
	require.NotNil(t, tx)
	assert.Equal(t, []string{"StartEvent_Tx", "EndEvent_Tx"}, nodeIDs(tx))
	assert.Equal(t, "EndEvent_Tx", tx.Flow("Flow_T1").Target)
	assertRefsMatchEdges(t, tx)

	// Container refs sit in the parent graph; nested children are untouched.
	fulfil := top.Node("Activity_Fulfil")
	assert.Equal(t, []string{"Flow_1"}, fulfil.Incoming)
	assert.Equal(t, []string{"Flow_2"}, fulfil.Outgoing)

	for _, id := range []string{"Event_Cooldown", "Flow_S2", "Event_Receipt", "Flow_T2", "Event_Cooldown_di", "Flow_S2_di"} {
		assert.Nil(t, findByID(m, id), id)
	}
	assert.NotNil(t, findByID(m, "Activity_Charge_di"))

	data, err := m.Bytes()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "intermediateCatchEvent")
	assert.NotContains(t, string(data), "intermediateThrowEvent")
}

// An elided event with several incoming and several outgoing flows: every
// incoming flow is retargeted to the first outgoing target, and only the
// first incoming flow is cloned towards the remaining targets.
func TestNormalize_ElisionManyToMany(t *testing.T) {
	src := `<?xml version="1.0" encoding="UTF-8"?>
<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL" id="d">
  <bpmn:process id="p">
    <bpmn:task id="a"><bpmn:outgoing>f1</bpmn:outgoing></bpmn:task>
    <bpmn:task id="b"><bpmn:outgoing>f2</bpmn:outgoing></bpmn:task>
    <bpmn:intermediateCatchEvent id="e">
      <bpmn:incoming>f1</bpmn:incoming>
      <bpmn:incoming>f2</bpmn:incoming>
      <bpmn:outgoing>f3</bpmn:outgoing>
      <bpmn:outgoing>f4</bpmn:outgoing>
    </bpmn:intermediateCatchEvent>
    <bpmn:task id="c"><bpmn:incoming>f3</bpmn:incoming></bpmn:task>
    <bpmn:task id="d"><bpmn:incoming>f4</bpmn:incoming></bpmn:task>
    <bpmn:sequenceFlow id="f1" sourceRef="a" targetRef="e" />
    <bpmn:sequenceFlow id="f2" sourceRef="b" targetRef="e" />
    <bpmn:sequenceFlow id="f3" sourceRef="e" targetRef="c" />
    <bpmn:sequenceFlow id="f4" sourceRef="e" targetRef="d" />
  </bpmn:process>
</bpmn:definitions>`
	m, err := ParseBytes([]byte(src))
	require.NoError(t, err)
	Normalize(m)
	m = reload(t, m)
	p := m.Process("p")

	assert.Equal(t, []string{"a", "b", "c", "d"}, nodeIDs(p))
	assert.Equal(t, []string{"f1", "f1_f4", "f2"}, flowIDs(p))

	edges := map[string][2]string{}
	for _, f := range p.Flows {
		edges[f.ID] = [2]string{f.Source, f.Target}
	}
	assert.Equal(t, map[string][2]string{
		"f1":    {"a", "c"},
		"f1_f4": {"a", "d"},
		"f2":    {"b", "c"},
	}, edges)

	assert.Equal(t, []string{"f1", "f1_f4"}, p.Node("a").Outgoing)
	assert.Equal(t, []string{"f2"}, p.Node("b").Outgoing)
	assert.Equal(t, []string{"f1", "f2"}, p.Node("c").Incoming)
	assert.Equal(t, []string{"f1_f4"}, p.Node("d").Incoming)
	assertRefsMatchEdges(t, p)
}
