package coding

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type sequenceIDProvider struct {
	mu   sync.Mutex
	next int
}

func (p *sequenceIDProvider) NewID() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	return fmt.Sprintf("id-%04d", p.next), nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []ChangeEvent
}

func (n *recordingNotifier) Publish(event ChangeEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) snapshot() []ChangeEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]ChangeEvent(nil), n.events...)
}

func newTestService(t *testing.T) (*Service, *gorm.DB, *recordingNotifier) {
	t.Helper()

	dsn := fmt.Sprintf("file:nodeflow_coding_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(&Project{}, &Participant{}, &Document{}, &Node{}, &CodedSegment{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	notifier := &recordingNotifier{}
	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      func() time.Time { return time.Unix(1700000600, 0).UTC() },
		IDProvider: &sequenceIDProvider{},
		Notifier:   notifier,
	})
	if err != nil {
		t.Fatalf("failed to construct coding service: %v", err)
	}
	return service, db, notifier
}

func mustProject(t *testing.T, service *Service, name string) Project {
	t.Helper()
	project, err := service.CreateProject(context.Background(), name, "")
	if err != nil {
		t.Fatalf("unexpected create project error: %v", err)
	}
	return project
}

func mustNode(t *testing.T, service *Service, projectID string, parentID *string, name string) Node {
	t.Helper()
	node, err := service.CreateNode(context.Background(), CreateNodeRequest{
		ProjectID: projectID,
		ParentID:  parentID,
		Name:      name,
	})
	if err != nil {
		t.Fatalf("unexpected create node error: %v", err)
	}
	return node
}

func mustDocument(t *testing.T, service *Service, projectID string, participantID *string, title, content string) Document {
	t.Helper()
	document, err := service.CreateDocument(context.Background(), CreateDocumentRequest{
		ProjectID:     projectID,
		ParticipantID: participantID,
		Title:         title,
		Content:       content,
	})
	if err != nil {
		t.Fatalf("unexpected create document error: %v", err)
	}
	return document
}

func mustSegment(t *testing.T, service *Service, documentID, nodeID string, participantID *string, start, end int) CodedSegment {
	t.Helper()
	segment, err := service.AddSegment(context.Background(), AddSegmentRequest{
		DocumentID:    documentID,
		NodeID:        nodeID,
		ParticipantID: participantID,
		Start:         start,
		End:           end,
	})
	if err != nil {
		t.Fatalf("unexpected add segment error: %v", err)
	}
	return segment
}

// siblingPositions returns the ids of a parent group keyed by position.
func siblingPositions(t *testing.T, service *Service, projectID string, parentID *string) map[int]string {
	t.Helper()
	nodes, err := service.ListNodes(context.Background(), projectID)
	if err != nil {
		t.Fatalf("unexpected list nodes error: %v", err)
	}
	positions := make(map[int]string)
	for _, node := range nodes {
		if !sameParent(node.ParentID, parentID) {
			continue
		}
		if existing, ok := positions[node.Position]; ok {
			t.Fatalf("nodes %s and %s share position %d", existing, node.ID, node.Position)
		}
		positions[node.Position] = node.ID
	}
	for index := 0; index < len(positions); index++ {
		if _, ok := positions[index]; !ok {
			t.Fatalf("expected contiguous positions, missing %d in %v", index, positions)
		}
	}
	return positions
}
