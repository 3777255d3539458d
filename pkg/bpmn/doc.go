/*
Package bpmn turns a serialized BPMN diagram into the payload the automaton
compiler expects.

The XML document is parsed once into a Model: an explicit graph of flow nodes
and sequence flows per process, indexed by id, with every graph edit mirrored
onto the backing XML tree so the model can be serialized again at any time.

The pipeline is:

  - Normalize: strip message flows, turn event-based gateways into exclusive
    gateways and elide intermediate/boundary events, rewiring the graph.
  - ExtractConstraints: collect the declarative constraint flows.
  - SplitByPool: export one standalone document per participant.
*/
package bpmn
