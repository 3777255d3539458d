package bpmn

import (
	"github.com/aretw0/constraintflow/pkg/domain"
	"github.com/beevik/etree"
)

// ExtractConstraints returns every constraint flow declared in the model, in
// document order. Duplicated ids are kept as-is and types are copied
// verbatim; use ConstraintRecord.Validate to find records outside the
// enumeration.
func ExtractConstraints(m *Model) []domain.ConstraintRecord {
	var out []domain.ConstraintRecord
	walk(m.root, func(el *etree.Element) {
		if el.Tag != tagConstraintFlow {
			return
		}
		out = append(out, domain.ConstraintRecord{
			ID:        el.SelectAttrValue("id", ""),
			SourceRef: el.SelectAttrValue("sourceRef", ""),
			TargetRef: el.SelectAttrValue("targetRef", ""),
			Type:      domain.ConstraintType(el.SelectAttrValue("constraintType", "")),
		})
	})
	return out
}
