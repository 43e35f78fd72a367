package coding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// deleteChunkSize bounds the number of bound parameters of a cascading delete statement.
const deleteChunkSize = 500

// NodeDeletion reports what a cascading node delete removed.
type NodeDeletion struct {
	NodeIDs         []string
	SegmentsDeleted int64
}

// CreateNode appends a node to the end of its sibling group.
func (s *Service) CreateNode(ctx context.Context, req CreateNodeRequest) (Node, error) {
	if err := s.ready(opCreateNode); err != nil {
		return Node{}, err
	}
	req.normalize()
	if err := req.Validate(); err != nil {
		return Node{}, finish(opCreateNode, s.fail(opCreateNode, reasonInvalidInput, invalidRequest(err)))
	}
	nodeID, err := s.newID(opCreateNode)
	if err != nil {
		return Node{}, finish(opCreateNode, err)
	}

	node := Node{
		ID:               nodeID,
		ProjectID:        req.ProjectID,
		ParentID:         req.ParentID,
		Name:             req.Name,
		Color:            req.Color,
		CreatedAtSeconds: s.now(),
	}
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.loadProject(tx, opCreateNode, req.ProjectID); err != nil {
			return err
		}
		if req.ParentID != nil {
			if _, err := s.loadNode(tx, opCreateNode, reasonParentNotFound, *req.ParentID, req.ProjectID); err != nil {
				return err
			}
		}
		position, err := s.countSiblings(tx, opCreateNode, req.ProjectID, req.ParentID)
		if err != nil {
			return err
		}
		node.Position = position
		if err := tx.Create(&node).Error; err != nil {
			return s.fail(opCreateNode, reasonInsertFailed, storeFailure(err), zap.String(fieldProjectID, req.ProjectID))
		}
		return nil
	})
	if txErr != nil {
		return Node{}, finish(opCreateNode, txErr)
	}
	s.committed(opCreateNode, node.ProjectID, ChangeKindTaxonomy, node.ID)
	return node, nil
}

// RenameNode changes the name of a node.
func (s *Service) RenameNode(ctx context.Context, nodeID, newName string) (Node, error) {
	newName = strings.TrimSpace(newName)
	return s.updateNode(ctx, opRenameNode, nodeID, func(node *Node) (string, any, error) {
		if err := validateName(newName); err != nil {
			return "", nil, err
		}
		node.Name = newName
		return "name", newName, nil
	})
}

// RecolorNode changes the display color of a node.
func (s *Service) RecolorNode(ctx context.Context, nodeID, newColor string) (Node, error) {
	newColor = strings.TrimSpace(newColor)
	return s.updateNode(ctx, opRecolorNode, nodeID, func(node *Node) (string, any, error) {
		if err := validateColor(newColor); err != nil {
			return "", nil, err
		}
		node.Color = newColor
		return "color", newColor, nil
	})
}

// ReorderSiblings writes positions 0..k-1 following orderedIDs, which must list every
// sibling of exactly one parent group. All positions change in a single statement.
func (s *Service) ReorderSiblings(ctx context.Context, orderedIDs []string) error {
	if err := s.ready(opReorderSiblings); err != nil {
		return err
	}
	if err := validateSiblingList(orderedIDs); err != nil {
		return finish(opReorderSiblings, s.fail(opReorderSiblings, reasonInvalidInput, err))
	}

	var projectID string
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var nodes []Node
		if err := tx.Where(queryIDsIn, orderedIDs).Find(&nodes).Error; err != nil {
			return s.fail(opReorderSiblings, reasonQueryFailed, storeFailure(err))
		}
		if len(nodes) != len(orderedIDs) {
			found := make(map[string]struct{}, len(nodes))
			for _, node := range nodes {
				found[node.ID] = struct{}{}
			}
			for _, id := range orderedIDs {
				if _, ok := found[id]; !ok {
					return s.fail(opReorderSiblings, reasonNodeNotFound, notFound("node", id))
				}
			}
		}

		first := nodes[0]
		for _, node := range nodes[1:] {
			if node.ProjectID != first.ProjectID || !sameParent(node.ParentID, first.ParentID) {
				return s.fail(opReorderSiblings, reasonIncompleteGroup,
					fmt.Errorf("%w: nodes %s and %s are not siblings", ErrValidation, first.ID, node.ID))
			}
		}
		groupSize, err := s.countSiblings(tx, opReorderSiblings, first.ProjectID, first.ParentID)
		if err != nil {
			return err
		}
		if groupSize != len(orderedIDs) {
			return s.fail(opReorderSiblings, reasonIncompleteGroup,
				fmt.Errorf("%w: %d of %d siblings listed", ErrValidation, len(orderedIDs), groupSize))
		}
		projectID = first.ProjectID
		return s.writePositions(tx, opReorderSiblings, orderedIDs)
	})
	if txErr != nil {
		return finish(opReorderSiblings, txErr)
	}
	s.committed(opReorderSiblings, projectID, ChangeKindTaxonomy, orderedIDs...)
	return nil
}

// MoveNode reparents a node, appending it to the end of the target group and compacting
// the group it left. A nil newParentID moves the node to the root level. Moving a node
// under itself or one of its descendants fails with ErrCycle.
func (s *Service) MoveNode(ctx context.Context, nodeID string, newParentID *string) (Node, error) {
	if err := s.ready(opMoveNode); err != nil {
		return Node{}, err
	}
	newParentID = normalizeOptionalID(newParentID)
	if newParentID != nil && *newParentID == nodeID {
		return Node{}, finish(opMoveNode, s.fail(opMoveNode, reasonCycle, cycle(nodeID, *newParentID)))
	}

	var (
		moved   Node
		changed bool
	)
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		node, err := s.loadNode(tx, opMoveNode, reasonNodeNotFound, nodeID, "")
		if err != nil {
			return err
		}
		moved = node
		if newParentID != nil {
			if _, err := s.loadNode(tx, opMoveNode, reasonParentNotFound, *newParentID, node.ProjectID); err != nil {
				return err
			}
			nodes, err := s.loadProjectNodes(tx, opMoveNode, node.ProjectID)
			if err != nil {
				return err
			}
			if NewForest(nodes).IsDescendant(nodeID, *newParentID) {
				return s.fail(opMoveNode, reasonCycle, cycle(nodeID, *newParentID))
			}
		}
		if sameParent(node.ParentID, newParentID) {
			return nil
		}

		position, err := s.countSiblings(tx, opMoveNode, node.ProjectID, newParentID)
		if err != nil {
			return err
		}
		parentValue := any(gorm.Expr("NULL"))
		if newParentID != nil {
			parentValue = *newParentID
		}
		if err := tx.Model(&Node{}).Where(queryID, nodeID).
			Updates(map[string]any{"parent_id": parentValue, "position": position}).Error; err != nil {
			return s.fail(opMoveNode, reasonUpdateFailed, storeFailure(err), zap.String(fieldNodeID, nodeID))
		}
		if err := s.compactSiblings(tx, opMoveNode, node.ProjectID, node.ParentID); err != nil {
			return err
		}
		moved.ParentID = newParentID
		moved.Position = position
		changed = true
		return nil
	})
	if txErr != nil {
		return Node{}, finish(opMoveNode, txErr)
	}
	if changed {
		s.committed(opMoveNode, moved.ProjectID, ChangeKindTaxonomy, moved.ID)
	}
	return moved, nil
}

// DeleteNode removes a node, all of its descendants and every segment tagged with any of them.
// The remaining siblings of the node are compacted.
func (s *Service) DeleteNode(ctx context.Context, nodeID string) (NodeDeletion, error) {
	if err := s.ready(opDeleteNode); err != nil {
		return NodeDeletion{}, err
	}

	var (
		result    NodeDeletion
		projectID string
	)
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		node, err := s.loadNode(tx, opDeleteNode, reasonNodeNotFound, nodeID, "")
		if err != nil {
			return err
		}
		projectID = node.ProjectID
		nodes, err := s.loadProjectNodes(tx, opDeleteNode, node.ProjectID)
		if err != nil {
			return err
		}
		family := NewForest(nodes).Family(nodeID)
		for start := 0; start < len(family); start += deleteChunkSize {
			chunk := family[start:min(start+deleteChunkSize, len(family))]
			segments := tx.Where("node_id IN ?", chunk).Delete(&CodedSegment{})
			if segments.Error != nil {
				return s.fail(opDeleteNode, reasonDeleteFailed, storeFailure(segments.Error), zap.String(fieldNodeID, nodeID))
			}
			result.SegmentsDeleted += segments.RowsAffected
			if err := tx.Where(queryIDsIn, chunk).Delete(&Node{}).Error; err != nil {
				return s.fail(opDeleteNode, reasonDeleteFailed, storeFailure(err), zap.String(fieldNodeID, nodeID))
			}
		}
		result.NodeIDs = family
		return s.compactSiblings(tx, opDeleteNode, node.ProjectID, node.ParentID)
	})
	if txErr != nil {
		return NodeDeletion{}, finish(opDeleteNode, txErr)
	}
	s.committed(opDeleteNode, projectID, ChangeKindTaxonomy, result.NodeIDs...)
	return result, nil
}

// ListNodes returns the taxonomy of a project grouped by parent and ordered by position.
func (s *Service) ListNodes(ctx context.Context, projectID string) ([]Node, error) {
	if err := s.ready(opListNodes); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	if _, err := s.loadProject(db, opListNodes, projectID); err != nil {
		return nil, err
	}
	return s.loadProjectNodes(db, opListNodes, projectID)
}

// GetNode returns one node.
func (s *Service) GetNode(ctx context.Context, nodeID string) (Node, error) {
	if err := s.ready(opGetNode); err != nil {
		return Node{}, err
	}
	return s.loadNode(s.db.WithContext(ctx), opGetNode, reasonNodeNotFound, nodeID, "")
}

// Forest loads the taxonomy of a project into an immutable arena.
func (s *Service) Forest(ctx context.Context, projectID string) (*Forest, error) {
	nodes, err := s.ListNodes(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return NewForest(nodes), nil
}

// Descendants returns the ids of every node below nodeID.
func (s *Service) Descendants(ctx context.Context, nodeID string) ([]string, error) {
	if err := s.ready(opListNodes); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	node, err := s.loadNode(db, opListNodes, reasonNodeNotFound, nodeID, "")
	if err != nil {
		return nil, err
	}
	nodes, err := s.loadProjectNodes(db, opListNodes, node.ProjectID)
	if err != nil {
		return nil, err
	}
	return NewForest(nodes).Descendants(nodeID), nil
}

type nodeMutation func(node *Node) (column string, value any, err error)

func (s *Service) updateNode(ctx context.Context, operation, nodeID string, mutate nodeMutation) (Node, error) {
	if err := s.ready(operation); err != nil {
		return Node{}, err
	}
	var node Node
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		loaded, err := s.loadNode(tx, operation, reasonNodeNotFound, nodeID, "")
		if err != nil {
			return err
		}
		column, value, err := mutate(&loaded)
		if err != nil {
			return s.fail(operation, reasonInvalidInput, err)
		}
		if err := tx.Model(&Node{}).Where(queryID, nodeID).Update(column, value).Error; err != nil {
			return s.fail(operation, reasonUpdateFailed, storeFailure(err), zap.String(fieldNodeID, nodeID))
		}
		node = loaded
		return nil
	})
	if txErr != nil {
		return Node{}, finish(operation, txErr)
	}
	s.committed(operation, node.ProjectID, ChangeKindTaxonomy, node.ID)
	return node, nil
}

// loadNode fetches a node, scoped to projectID when it is non-empty. A node of another
// project is reported as missing.
func (s *Service) loadNode(tx *gorm.DB, operation, missingReason, nodeID, projectID string) (Node, error) {
	field := fieldNodeID
	if missingReason == reasonParentNotFound {
		field = fieldParentID
	}
	if err := validateIdentifier(field, nodeID); err != nil {
		return Node{}, s.fail(operation, reasonInvalidInput, err)
	}
	query := tx.Where(queryID, nodeID)
	if projectID != "" {
		query = tx.Where(queryIDProject, nodeID, projectID)
	}
	var node Node
	err := query.Take(&node).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Node{}, s.fail(operation, missingReason, notFound("node", nodeID))
	}
	if err != nil {
		return Node{}, s.fail(operation, reasonQueryFailed, storeFailure(err), zap.String(field, nodeID))
	}
	return node, nil
}

func (s *Service) loadProjectNodes(tx *gorm.DB, operation, projectID string) ([]Node, error) {
	var nodes []Node
	err := tx.Where(queryProjectID, projectID).
		Order("COALESCE(parent_id, '') ASC").
		Order("position ASC").
		Order("name ASC").
		Order("id ASC").
		Find(&nodes).Error
	if err != nil {
		return nil, s.fail(operation, reasonQueryFailed, storeFailure(err), zap.String(fieldProjectID, projectID))
	}
	return nodes, nil
}

func siblingGroup(tx *gorm.DB, projectID string, parentID *string) *gorm.DB {
	query := tx.Model(&Node{}).Where(queryProjectID, projectID)
	if parentID == nil {
		return query.Where("parent_id IS NULL")
	}
	return query.Where("parent_id = ?", *parentID)
}

func (s *Service) countSiblings(tx *gorm.DB, operation, projectID string, parentID *string) (int, error) {
	var count int64
	if err := siblingGroup(tx, projectID, parentID).Count(&count).Error; err != nil {
		return 0, s.fail(operation, reasonQueryFailed, storeFailure(err), zap.String(fieldProjectID, projectID))
	}
	return int(count), nil
}

// compactSiblings rewrites the positions of a group as 0..k-1, keeping its current order.
func (s *Service) compactSiblings(tx *gorm.DB, operation, projectID string, parentID *string) error {
	var ids []string
	err := siblingGroup(tx, projectID, parentID).
		Order("position ASC").
		Order("name ASC").
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return s.fail(operation, reasonQueryFailed, storeFailure(err), zap.String(fieldProjectID, projectID))
	}
	if len(ids) == 0 {
		return nil
	}
	return s.writePositions(tx, operation, ids)
}

// writePositions assigns each id its index in a single UPDATE.
func (s *Service) writePositions(tx *gorm.DB, operation string, orderedIDs []string) error {
	var expression strings.Builder
	args := make([]any, 0, len(orderedIDs)*2)
	expression.WriteString("CASE id")
	for index, id := range orderedIDs {
		expression.WriteString(" WHEN ? THEN ?")
		args = append(args, id, index)
	}
	expression.WriteString(" ELSE position END")
	err := tx.Model(&Node{}).Where(queryIDsIn, orderedIDs).
		Update("position", gorm.Expr(expression.String(), args...)).Error
	if err != nil {
		return s.fail(operation, reasonUpdateFailed, storeFailure(err))
	}
	return nil
}

func validateSiblingList(ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: sibling list is empty", ErrValidation)
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if err := validateIdentifier(fieldNodeID, id); err != nil {
			return err
		}
		if _, duplicate := seen[id]; duplicate {
			return fmt.Errorf("%w: node %s listed twice", ErrValidation, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func cycle(nodeID, parentID string) error {
	return fmt.Errorf("%w: node %s cannot move under %s", ErrCycle, nodeID, parentID)
}
