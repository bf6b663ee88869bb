package generation

import (
	"fmt"
	"strings"

	"github.com/structgen/backend/internal/model"
	"github.com/structgen/backend/internal/service/intent"
	"github.com/structgen/backend/internal/service/modelcheck"
	"github.com/structgen/backend/internal/utils"
)

const wireFormat = `Return a single JSON object with exactly these keys:
{
  "nodes":       [{"x": number, "y": number, "s": "f" | "p" | "r" | "x"}],
  "members":     [{"i": integer, "j": integer, "E": number, "I": number, "A": number, "Z": number}],
  "nodeLoads":   [{"n": integer, "fx": number, "fy": number}],
  "memberLoads": [{"m": integer, "q": number}]
}`

const modelRules = `Rules:
- Coordinates are in metres; x is horizontal, y is vertical, the ground is y = 0.
- Boundary codes: "f" free, "p" pinned, "r" roller, "x" fixed.
- Node and member indices are 1-based positions in their arrays.
- Every member connects two different existing nodes; never repeat a node pair in either direction.
- Section constants E (kN/m2), I (m4), A (m2) and Z (m3) must be positive.
- Output JSON only, without markdown or commentary.`

const compactRules = `JSON only. Keys: nodes[{x,y,s}], members[{i,j,E,I,A,Z}], nodeLoads[{n,fx,fy}], memberLoads[{m,q}].
s is f/p/r/x. Indices are 1-based. No duplicate or self-connected members. Positive section constants.`

// systemPrompt 完整或精简的系统提示词
func systemPrompt(in intent.Intent, simplified bool) string {
	var b strings.Builder
	if simplified {
		b.WriteString("You generate 2D structural analysis models.\n")
		b.WriteString(compactRules)
		b.WriteString("\n")
		b.WriteString(structureGuide(in, true))
		b.WriteString(loadInstruction(in.Load))
		return b.String()
	}

	b.WriteString("You are a structural engineer who converts instructions into 2D frame analysis models.\n\n")
	b.WriteString(wireFormat)
	b.WriteString("\n\n")
	b.WriteString(modelRules)
	b.WriteString("\n\n")
	b.WriteString(structureGuide(in, false))
	b.WriteString(loadInstruction(in.Load))
	return b.String()
}

// structureGuide 按结构类型给出拓扑约束
func structureGuide(in intent.Intent, compact bool) string {
	switch in.StructureType {
	case intent.StructureFrame:
		d := in.Dimensions
		if compact {
			return fmt.Sprintf("Frame: %d stories, %d bays, ground nodes fixed (x).\n", d.Layers, d.Spans)
		}
		nodes, members := modelcheck.ExpectedFrameCounts(d)
		return fmt.Sprintf(`Structure: rigid frame with %d stories and %d bays.
- Place columns on a regular grid; every story has %d nodes at the same height.
- Ground nodes (y = 0) are fixed ("x"); all other nodes are free ("f").
- Columns connect vertically adjacent nodes; beams connect horizontally adjacent nodes above ground.
- The model must have exactly %d nodes and %d members.
`, d.Layers, d.Spans, d.Spans+1, nodes, members)

	case intent.StructureTruss:
		t := in.Truss
		if compact {
			return fmt.Sprintf("Truss: height %.2f m, span %.2f m, left bottom end p, right bottom end r.\n", t.Height, t.SpanLength)
		}
		return fmt.Sprintf(`Structure: plane truss %.2f m high spanning %.2f m.
- Provide a bottom chord at y = 0 and a top chord at y = %.2f, each with at least two nodes.
- The leftmost bottom chord node is pinned ("p") and the rightmost bottom chord node is a roller ("r").
- All other nodes are free ("f"); connect the chords with diagonal members.
`, t.Height, t.SpanLength, t.Height)

	case intent.StructureBeam:
		if compact {
			return "Beam: at least two nodes on one line, at least one member and one support; a single support must be fixed (x).\n"
		}
		return `Structure: beam.
- Place at least two nodes along the beam axis and connect consecutive nodes with members.
- Provide at least one support; if there is only one support it must be fixed ("x") as a cantilever.
`
	}
	return ""
}

// loadInstruction 未要求荷载时输出空数组
func loadInstruction(l intent.LoadIntent) string {
	if !l.Requested {
		return "No loads were requested: nodeLoads and memberLoads must be empty arrays.\n"
	}
	switch l.Kind {
	case intent.LoadNode:
		return "Apply the requested point loads in nodeLoads (kN, negative fy acts downward); memberLoads must be empty.\n"
	case intent.LoadMember:
		return "Apply the requested distributed loads in memberLoads (kN/m, negative q acts downward); nodeLoads must be empty.\n"
	}
	return "Infer the requested loads: point loads in nodeLoads (kN), distributed loads in memberLoads (kN/m).\n"
}

// userMessage 新建时直接使用提示词，编辑时附带当前模型
func userMessage(req Request, in intent.Intent) string {
	if req.Mode != ModeEdit || req.CurrentModel == nil {
		return req.Prompt
	}

	var b strings.Builder
	b.WriteString("Current model:\n")
	b.WriteString(utils.ToJSON(req.CurrentModel.Normalize()))
	b.WriteString("\n\nApply this change and return the complete updated model:\n")
	b.WriteString(req.Prompt)
	if !in.BoundaryChange.Detected {
		b.WriteString("\n\nKeep every existing node's boundary code exactly as it is.")
	}
	return b.String()
}

// correctionPrompt 列出未满足的规则，要求重新输出完整模型
func correctionPrompt(req Request, res modelcheck.Result, current model.Model) string {
	var b strings.Builder
	b.WriteString("The previous model breaks these rules:\n")
	for _, issue := range res.Issues {
		fmt.Fprintf(&b, "- [%s] %s\n", issue.Code, issue.Message)
	}
	b.WriteString("\nPrevious model:\n")
	b.WriteString(utils.ToJSON(current))
	b.WriteString("\n\nOriginal instruction:\n")
	b.WriteString(req.Prompt)
	b.WriteString("\n\nReturn the corrected complete model.")
	return b.String()
}
