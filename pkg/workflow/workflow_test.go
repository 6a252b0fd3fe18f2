package workflow

import (
	"testing"

	"github.com/skitter-project/skitter/pkg/component"
	"github.com/skitter-project/skitter/pkg/skerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passthrough(t *testing.T, name string) *component.Component {
	t.Helper()
	c, err := component.NewComponent(name, nil,
		[]component.Port{{Name: "in"}},
		[]component.Port{{Name: "out"}},
		nil,
	)
	require.NoError(t, err)
	return c
}

func TestBuildAndValidateSimpleGraph(t *testing.T) {
	a := &ComponentNode{NodeID: "a", Component: passthrough(t, "A")}
	bnode := &ComponentNode{NodeID: "b", Component: passthrough(t, "B")}

	w, err := Build("pipeline", []Node{a, bnode}, []Link{
		{From: Boundary("in"), To: Internal("a", "in")},
		{From: Internal("a", "out"), To: Internal("b", "in")},
		{From: Internal("b", "out"), To: Boundary("out")},
	}, []string{"in"}, []string{"out"})
	require.NoError(t, err)
	assert.Len(t, w.Nodes, 2)
}

func TestValidateRejectsDuplicateDestinationWriter(t *testing.T) {
	a := &ComponentNode{NodeID: "a", Component: passthrough(t, "A")}
	bnode := &ComponentNode{NodeID: "b", Component: passthrough(t, "B")}

	_, err := Build("pipeline", []Node{a, bnode}, []Link{
		{From: Internal("a", "out"), To: Internal("b", "in")},
		{From: Boundary("in"), To: Internal("b", "in")},
	}, []string{"in"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, skerr.ErrDefinition)
}

func TestValidateAllowsFanOutFromSource(t *testing.T) {
	a := &ComponentNode{NodeID: "a", Component: passthrough(t, "A")}
	b := &ComponentNode{NodeID: "b", Component: passthrough(t, "B")}
	c := &ComponentNode{NodeID: "c", Component: passthrough(t, "C")}

	_, err := Build("fanout", []Node{a, b, c}, []Link{
		{From: Boundary("in"), To: Internal("a", "in")},
		{From: Internal("a", "out"), To: Internal("b", "in")},
		{From: Internal("a", "out"), To: Internal("c", "in")},
	}, []string{"in"}, nil)
	require.NoError(t, err)
}

func TestValidateRejectsUnknownNode(t *testing.T) {
	a := &ComponentNode{NodeID: "a", Component: passthrough(t, "A")}
	_, err := Build("broken", []Node{a}, []Link{
		{From: Internal("a", "out"), To: Internal("missing", "in")},
	}, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, skerr.ErrUnknownName)
}

func TestFlattenScopesNestedNodeIDs(t *testing.T) {
	inner := &ComponentNode{NodeID: "leaf", Component: passthrough(t, "Leaf")}
	nested, err := Build("nested", []Node{inner}, []Link{
		{From: Boundary("in"), To: Internal("leaf", "in")},
		{From: Internal("leaf", "out"), To: Boundary("out")},
	}, []string{"in"}, []string{"out"})
	require.NoError(t, err)

	outerLeaf := &ComponentNode{NodeID: "before", Component: passthrough(t, "Before")}
	wfNode := &WorkflowNode{NodeID: "sub", Workflow: nested}

	outer, err := Build("outer", []Node{outerLeaf, wfNode}, []Link{
		{From: Boundary("in"), To: Internal("before", "in")},
		{From: Internal("before", "out"), To: Internal("sub", "in")},
		{From: Internal("sub", "out"), To: Boundary("out")},
	}, []string{"in"}, []string{"out"})
	require.NoError(t, err)

	flat, err := Flatten(outer)
	require.NoError(t, err)

	_, ok := flat.Nodes["sub.leaf"]
	require.True(t, ok, "nested node should be scoped as sub.leaf")

	foundLink := false
	for _, l := range flat.Links {
		if l.From == Internal("before", "out") && l.To == Internal("sub.leaf", "in") {
			foundLink = true
		}
	}
	assert.True(t, foundLink, "link crossing the nested boundary should be rewired directly")
}

func TestToDOTIncludesNodesAndClusters(t *testing.T) {
	a := &ComponentNode{NodeID: "a", Component: passthrough(t, "A")}
	w, err := Build("g", []Node{a}, nil, nil, nil)
	require.NoError(t, err)
	dot := ToDOT(w)
	assert.Contains(t, dot, "digraph")
	assert.Contains(t, dot, "\"a\"")
}
