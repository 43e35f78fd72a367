package coding

import (
	"context"
	"errors"
	"testing"
)

func TestCreateNodeAppendsToSiblingGroup(t *testing.T) {
	service, _, _ := newTestService(t)
	project := mustProject(t, service, "P")

	theme, err := service.CreateNode(context.Background(), CreateNodeRequest{
		ProjectID: project.ID,
		Name:      "Theme",
		Color:     "#BAE1FF",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if theme.Position != 0 {
		t.Fatalf("expected position 0, got %d", theme.Position)
	}
	if theme.Color != "#BAE1FF" {
		t.Fatalf("expected color to be kept, got %s", theme.Color)
	}

	other := mustNode(t, service, project.ID, nil, "Other")
	if other.Position != 1 {
		t.Fatalf("expected position 1, got %d", other.Position)
	}
	if other.Color != DefaultNodeColor {
		t.Fatalf("expected default color, got %s", other.Color)
	}

	child := mustNode(t, service, project.ID, &theme.ID, "Child")
	if child.Position != 0 {
		t.Fatalf("expected first child at position 0, got %d", child.Position)
	}
}

func TestCreateNodeRejectsParentFromAnotherProject(t *testing.T) {
	service, _, _ := newTestService(t)
	first := mustProject(t, service, "first")
	second := mustProject(t, service, "second")
	foreign := mustNode(t, service, second.ID, nil, "Foreign")

	_, err := service.CreateNode(context.Background(), CreateNodeRequest{
		ProjectID: first.ID,
		ParentID:  &foreign.ID,
		Name:      "Orphan",
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if code := ErrorCode(err); code != "coding.create_node.parent_not_found" {
		t.Fatalf("unexpected error code %q", code)
	}

	nodes, err := service.ListNodes(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(nodes) != 0 {
		t.Fatalf("expected no node to be created, got %d", len(nodes))
	}
}

func TestCreateNodeValidatesInput(t *testing.T) {
	service, _, _ := newTestService(t)
	project := mustProject(t, service, "P")

	testCases := []struct {
		name    string
		request CreateNodeRequest
	}{
		{name: "empty name", request: CreateNodeRequest{ProjectID: project.ID, Name: "   "}},
		{name: "bad color", request: CreateNodeRequest{ProjectID: project.ID, Name: "Theme", Color: "blue"}},
		{name: "missing project", request: CreateNodeRequest{Name: "Theme"}},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := service.CreateNode(context.Background(), testCase.request)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestRenameAndRecolorNode(t *testing.T) {
	service, _, _ := newTestService(t)
	project := mustProject(t, service, "P")
	node := mustNode(t, service, project.ID, nil, "Theme")

	renamed, err := service.RenameNode(context.Background(), node.ID, "Topic")
	if err != nil {
		t.Fatalf("unexpected rename error: %v", err)
	}
	if renamed.Name != "Topic" {
		t.Fatalf("expected new name, got %s", renamed.Name)
	}
	recolored, err := service.RecolorNode(context.Background(), node.ID, "#00ff00")
	if err != nil {
		t.Fatalf("unexpected recolor error: %v", err)
	}
	if recolored.Color != "#00ff00" || recolored.Name != "Topic" {
		t.Fatalf("unexpected node after recolor: %#v", recolored)
	}
	if _, err := service.RecolorNode(context.Background(), node.ID, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected empty color to be rejected, got %v", err)
	}
	if _, err := service.RenameNode(context.Background(), "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReorderSiblingsWritesListedOrder(t *testing.T) {
	service, _, _ := newTestService(t)
	project := mustProject(t, service, "P")
	first := mustNode(t, service, project.ID, nil, "A")
	second := mustNode(t, service, project.ID, nil, "B")
	third := mustNode(t, service, project.ID, nil, "C")

	if err := service.ReorderSiblings(context.Background(), []string{third.ID, first.ID, second.ID}); err != nil {
		t.Fatalf("unexpected reorder error: %v", err)
	}
	positions := siblingPositions(t, service, project.ID, nil)
	if positions[0] != third.ID || positions[1] != first.ID || positions[2] != second.ID {
		t.Fatalf("unexpected order after reorder: %v", positions)
	}
}

func TestReorderSiblingsRejectsInvalidLists(t *testing.T) {
	service, _, _ := newTestService(t)
	project := mustProject(t, service, "P")
	first := mustNode(t, service, project.ID, nil, "A")
	second := mustNode(t, service, project.ID, nil, "B")
	child := mustNode(t, service, project.ID, &first.ID, "A1")

	testCases := []struct {
		name     string
		ids      []string
		expected error
	}{
		{name: "empty", ids: nil, expected: ErrValidation},
		{name: "duplicate", ids: []string{first.ID, first.ID}, expected: ErrValidation},
		{name: "incomplete group", ids: []string{second.ID}, expected: ErrValidation},
		{name: "mixed groups", ids: []string{first.ID, child.ID}, expected: ErrValidation},
		{name: "unknown node", ids: []string{first.ID, "missing"}, expected: ErrNotFound},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			err := service.ReorderSiblings(context.Background(), testCase.ids)
			if !errors.Is(err, testCase.expected) {
				t.Fatalf("expected %v, got %v", testCase.expected, err)
			}
		})
	}

	positions := siblingPositions(t, service, project.ID, nil)
	if positions[0] != first.ID || positions[1] != second.ID {
		t.Fatalf("expected order to be unchanged, got %v", positions)
	}
}

func TestMoveNodeAppendsAndCompactsDonorGroup(t *testing.T) {
	service, _, _ := newTestService(t)
	project := mustProject(t, service, "P")
	first := mustNode(t, service, project.ID, nil, "A")
	second := mustNode(t, service, project.ID, nil, "B")
	third := mustNode(t, service, project.ID, nil, "C")
	existingChild := mustNode(t, service, project.ID, &third.ID, "C1")

	moved, err := service.MoveNode(context.Background(), first.ID, &third.ID)
	if err != nil {
		t.Fatalf("unexpected move error: %v", err)
	}
	if moved.Position != 1 || moved.ParentKey() != third.ID {
		t.Fatalf("expected node appended under C at position 1, got %#v", moved)
	}

	roots := siblingPositions(t, service, project.ID, nil)
	if len(roots) != 2 || roots[0] != second.ID || roots[1] != third.ID {
		t.Fatalf("expected donor group compacted to [B C], got %v", roots)
	}
	children := siblingPositions(t, service, project.ID, &third.ID)
	if children[0] != existingChild.ID || children[1] != first.ID {
		t.Fatalf("unexpected children of C: %v", children)
	}

	toRoot, err := service.MoveNode(context.Background(), first.ID, nil)
	if err != nil {
		t.Fatalf("unexpected move to root error: %v", err)
	}
	if !toRoot.IsRoot() || toRoot.Position != 2 {
		t.Fatalf("expected node appended to roots at 2, got %#v", toRoot)
	}
}

func TestMoveNodeToCurrentParentKeepsPosition(t *testing.T) {
	service, _, notifier := newTestService(t)
	project := mustProject(t, service, "P")
	mustNode(t, service, project.ID, nil, "A")
	second := mustNode(t, service, project.ID, nil, "B")
	before := len(notifier.snapshot())

	moved, err := service.MoveNode(context.Background(), second.ID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if moved.Position != 1 {
		t.Fatalf("expected position to be kept, got %d", moved.Position)
	}
	if after := len(notifier.snapshot()); after != before {
		t.Fatalf("expected no change event for a no-op move")
	}
}

func TestMoveNodeRejectsCycles(t *testing.T) {
	service, _, _ := newTestService(t)
	project := mustProject(t, service, "P")
	root := mustNode(t, service, project.ID, nil, "Root")
	child := mustNode(t, service, project.ID, &root.ID, "Child")
	grandchild := mustNode(t, service, project.ID, &child.ID, "Grandchild")

	for _, target := range []string{root.ID, child.ID, grandchild.ID} {
		_, err := service.MoveNode(context.Background(), root.ID, &target)
		if !errors.Is(err, ErrCycle) {
			t.Fatalf("expected cycle error for target %s, got %v", target, err)
		}
	}

	node, err := service.GetNode(context.Background(), root.ID)
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if !node.IsRoot() {
		t.Fatalf("expected root to stay a root")
	}
}

func TestMoveNodeRejectsParentFromAnotherProject(t *testing.T) {
	service, _, _ := newTestService(t)
	first := mustProject(t, service, "first")
	second := mustProject(t, service, "second")
	node := mustNode(t, service, first.ID, nil, "A")
	foreign := mustNode(t, service, second.ID, nil, "B")

	_, err := service.MoveNode(context.Background(), node.ID, &foreign.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteNodeCascadesToDescendantsAndSegments(t *testing.T) {
	service, db, _ := newTestService(t)
	project := mustProject(t, service, "P")
	keep := mustNode(t, service, project.ID, nil, "Keep")
	root := mustNode(t, service, project.ID, nil, "Root")
	last := mustNode(t, service, project.ID, nil, "Last")
	child := mustNode(t, service, project.ID, &root.ID, "Child")
	grandchild := mustNode(t, service, project.ID, &child.ID, "Grandchild")
	document := mustDocument(t, service, project.ID, nil, "D", "one two three four five")
	mustSegment(t, service, document.ID, root.ID, nil, 0, 3)
	mustSegment(t, service, document.ID, grandchild.ID, nil, 4, 7)
	kept := mustSegment(t, service, document.ID, keep.ID, nil, 8, 13)

	deletion, err := service.DeleteNode(context.Background(), root.ID)
	if err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if len(deletion.NodeIDs) != 3 {
		t.Fatalf("expected 3 deleted nodes, got %v", deletion.NodeIDs)
	}
	if deletion.SegmentsDeleted != 2 {
		t.Fatalf("expected 2 deleted segments, got %d", deletion.SegmentsDeleted)
	}

	var remainingNodes int64
	if err := db.Model(&Node{}).Where("id IN ?", []string{root.ID, child.ID, grandchild.ID}).Count(&remainingNodes).Error; err != nil {
		t.Fatalf("count nodes: %v", err)
	}
	if remainingNodes != 0 {
		t.Fatalf("expected cascaded nodes to be removed, found %d", remainingNodes)
	}
	var segments []CodedSegment
	if err := db.Find(&segments).Error; err != nil {
		t.Fatalf("load segments: %v", err)
	}
	if len(segments) != 1 || segments[0].ID != kept.ID {
		t.Fatalf("expected only the unrelated segment to remain, got %#v", segments)
	}

	roots := siblingPositions(t, service, project.ID, nil)
	if len(roots) != 2 || roots[0] != keep.ID || roots[1] != last.ID {
		t.Fatalf("expected compacted roots [Keep Last], got %v", roots)
	}
}

func TestDeleteNodeReportsMissingNode(t *testing.T) {
	service, _, _ := newTestService(t)
	if _, err := service.DeleteNode(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDescendantsWalksWholeSubtree(t *testing.T) {
	service, _, _ := newTestService(t)
	project := mustProject(t, service, "P")
	root := mustNode(t, service, project.ID, nil, "Root")
	child := mustNode(t, service, project.ID, &root.ID, "Child")
	grandchild := mustNode(t, service, project.ID, &child.ID, "Grandchild")
	mustNode(t, service, project.ID, nil, "Sibling")

	descendants, err := service.Descendants(context.Background(), root.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(descendants) != 2 || descendants[0] != child.ID || descendants[1] != grandchild.ID {
		t.Fatalf("unexpected descendants: %v", descendants)
	}
}
