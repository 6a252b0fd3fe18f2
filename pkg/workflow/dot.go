package workflow

import (
	"fmt"
	"sort"
	"strings"
)

// ToDOT renders the workflow as GraphViz DOT, the diagnostic export
// collaborator names in spec.md §6: nested workflows become subgraph
// clusters, and each component node is a record-shaped node listing its
// in/out ports so the rendered graph doubles as a port reference.
func ToDOT(w *Workflow) string {
	var b strings.Builder
	b.WriteString("digraph " + quote(w.Name) + " {\n")
	b.WriteString("  rankdir=LR;\n")
	writeNodes(&b, w, "")
	writeLinks(&b, w, "")
	b.WriteString("}\n")
	return b.String()
}

func writeNodes(b *strings.Builder, w *Workflow, prefix string) {
	ids := sortedIDs(w.Nodes)
	for _, id := range ids {
		n := w.Nodes[id]
		switch t := n.(type) {
		case *ComponentNode:
			fmt.Fprintf(b, "  %s [shape=record, label=%s];\n", quote(prefix+id), recordLabel(t))
		case *WorkflowNode:
			fmt.Fprintf(b, "  subgraph %s {\n", quote("cluster_"+prefix+id))
			fmt.Fprintf(b, "    label=%s;\n", quote(id))
			writeNodes(b, t.Workflow, prefix+id+".")
			b.WriteString("  }\n")
		}
	}
}

func writeLinks(b *strings.Builder, w *Workflow, prefix string) {
	for _, l := range w.Links {
		fmt.Fprintf(b, "  %s -> %s;\n", dotEndpoint(l.From, prefix), dotEndpoint(l.To, prefix))
	}
	for id, n := range w.Nodes {
		if wn, ok := n.(*WorkflowNode); ok {
			writeLinks(b, wn.Workflow, prefix+id+".")
		}
	}
}

func dotEndpoint(e Endpoint, prefix string) string {
	if e.IsBoundary() {
		return quote(prefix + "boundary:" + e.Port)
	}
	return quote(prefix + e.NodeID)
}

func recordLabel(n *ComponentNode) string {
	inNames := make([]string, len(n.Component.InPorts))
	for i, p := range n.Component.InPorts {
		inNames[i] = p.Name
	}
	outNames := make([]string, len(n.Component.OutPorts))
	for i, p := range n.Component.OutPorts {
		outNames[i] = p.Name
	}
	return quote(fmt.Sprintf("{{%s}|%s|{%s}}", strings.Join(inNames, "|"), n.NodeID, strings.Join(outNames, "|")))
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func sortedIDs(nodes map[string]Node) []string {
	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
