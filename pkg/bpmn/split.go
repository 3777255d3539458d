package bpmn

import (
	"fmt"

	"github.com/beevik/etree"
)

const (
	// FallbackPoolID keys the single sub-model of a document without processes.
	FallbackPoolID = "no_pool"

	targetNamespace = "http://bpmn.io/schema/bpmn"
	xsiNamespace    = "http://www.w3.org/2001/XMLSchema-instance"
)

// SubModel is a standalone serialized process, one per pool.
type SubModel struct {
	ID  string `json:"id"`
	XML string `json:"xml"`
}

// SplitByPool exports one independent document per participant. Participants
// whose process cannot be resolved are skipped. A model without participants
// yields a single entry wrapping the whole document.
func SplitByPool(m *Model) ([]SubModel, error) {
	if len(m.Participants) == 0 {
		id := FallbackPoolID
		if len(m.Processes) > 0 && m.Processes[0].ID != "" {
			id = m.Processes[0].ID
		}
		data, err := m.Bytes()
		if err != nil {
			return nil, fmt.Errorf("failed to serialize model: %w", err)
		}
		return []SubModel{{ID: id, XML: string(data)}}, nil
	}

	var out []SubModel
	for _, part := range m.Participants {
		p := m.Process(part.ProcessRef)
		if p == nil {
			continue
		}
		xml, err := exportProcess(m.root, p)
		if err != nil {
			return nil, fmt.Errorf("failed to export process %s: %w", p.ID, err)
		}
		out = append(out, SubModel{ID: p.ID, XML: xml})
	}
	return out, nil
}

// exportProcess deep-copies a process into a fresh definitions root that
// declares the same namespaces as the source document.
func exportProcess(src *etree.Element, p *Process) (string, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	defs := etree.NewElement(src.Tag)
	defs.Space = src.Space
	for _, a := range src.Attr {
		if a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns") {
			defs.CreateAttr(a.FullKey(), a.Value)
		}
	}
	if defs.SelectAttr("xmlns:xsi") == nil {
		defs.CreateAttr("xmlns:xsi", xsiNamespace)
	}
	defs.CreateAttr("id", "Definitions_"+p.ID)
	defs.CreateAttr("targetNamespace", targetNamespace)
	defs.AddChild(p.elem.Copy())
	doc.SetRoot(defs)

	doc.Indent(2)
	return doc.WriteToString()
}
