package bpmn

// Element local names recognised by the graph builder.
const (
	tagDefinitions    = "definitions"
	tagProcess        = "process"
	tagCollaboration  = "collaboration"
	tagParticipant    = "participant"
	tagMessageFlow    = "messageFlow"
	tagSequenceFlow   = "sequenceFlow"
	tagIncoming       = "incoming"
	tagOutgoing       = "outgoing"
	tagConstraintFlow = "constraintFlow"
	tagBPMNEdge       = "BPMNEdge"
	tagBPMNShape      = "BPMNShape"

	tagStartEvent          = "startEvent"
	tagEndEvent            = "endEvent"
	tagIntermediateCatch   = "intermediateCatchEvent"
	tagIntermediateThrow   = "intermediateThrowEvent"
	tagBoundaryEvent       = "boundaryEvent"
	tagImplicitThrowEvent  = "implicitThrowEvent"
	tagEventBasedGateway   = "eventBasedGateway"
	tagExclusiveGateway    = "exclusiveGateway"
	tagParallelGateway     = "parallelGateway"
	tagInclusiveGateway    = "inclusiveGateway"
	tagComplexGateway      = "complexGateway"
	tagDocumentation       = "documentation"
	tagExtensionElements   = "extensionElements"
	tagMessageEventDef     = "messageEventDefinition"
	tagTimerEventDef       = "timerEventDefinition"
	tagSignalEventDef      = "signalEventDefinition"
	tagConditionalEventDef = "conditionalEventDefinition"
)

// Kind classifies a flow node.
type Kind string

const (
	KindActivity Kind = "activity"
	KindGateway  Kind = "gateway"
	KindStart    Kind = "start"
	KindEnd      Kind = "end"
	KindEvent    Kind = "event" // intermediate, boundary: removed by Normalize
)

var nodeKinds = map[string]Kind{
	"task":             KindActivity,
	"userTask":         KindActivity,
	"serviceTask":      KindActivity,
	"sendTask":         KindActivity,
	"receiveTask":      KindActivity,
	"manualTask":       KindActivity,
	"businessRuleTask": KindActivity,
	"scriptTask":       KindActivity,
	"callActivity":     KindActivity,
	"subProcess":       KindActivity,
	"transaction":      KindActivity,
	"adHocSubProcess":  KindActivity,

	tagExclusiveGateway:  KindGateway,
	tagParallelGateway:   KindGateway,
	tagInclusiveGateway:  KindGateway,
	tagComplexGateway:    KindGateway,
	tagEventBasedGateway: KindGateway,

	tagStartEvent:         KindStart,
	tagEndEvent:           KindEnd,
	tagIntermediateCatch:  KindEvent,
	tagIntermediateThrow:  KindEvent,
	tagBoundaryEvent:      KindEvent,
	tagImplicitThrowEvent: KindEvent,
}

// containerTags are activities holding a nested flow graph.
var containerTags = map[string]bool{
	"subProcess":      true,
	"transaction":     true,
	"adHocSubProcess": true,
}

// triggerDefinitions are stripped from start events.
var triggerDefinitions = map[string]bool{
	tagMessageEventDef:     true,
	tagTimerEventDef:       true,
	tagSignalEventDef:      true,
	tagConditionalEventDef: true,
}
