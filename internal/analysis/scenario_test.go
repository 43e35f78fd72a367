package analysis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/nodeflow/internal/coding"
	sqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newCodingService(t *testing.T) *coding.Service {
	t.Helper()
	dsn := fmt.Sprintf("file:nodeflow_analysis_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	require.NoError(t, db.AutoMigrate(&coding.Project{}, &coding.Participant{}, &coding.Document{}, &coding.Node{}, &coding.CodedSegment{}))

	service, err := coding.NewService(coding.ServiceConfig{
		Database:   db,
		IDProvider: coding.NewUUIDProvider(),
	})
	require.NoError(t, err)
	return service
}

func TestCodingRoundTrip(t *testing.T) {
	ctx := context.Background()
	service := newCodingService(t)
	runner, err := NewRunner(RunnerConfig{Source: service})
	require.NoError(t, err)

	project, err := service.CreateProject(ctx, "P", "")
	require.NoError(t, err)
	theme, err := service.CreateNode(ctx, coding.CreateNodeRequest{ProjectID: project.ID, Name: "Theme", Color: "#BAE1FF"})
	require.NoError(t, err)
	require.Equal(t, 0, theme.Position)
	other, err := service.CreateNode(ctx, coding.CreateNodeRequest{ProjectID: project.ID, Name: "Other"})
	require.NoError(t, err)
	require.Equal(t, 1, other.Position)

	document, err := service.CreateDocument(ctx, coding.CreateDocumentRequest{
		ProjectID: project.ID,
		Title:     "D",
		Content:   "hello world foo bar",
	})
	require.NoError(t, err)

	_, err = service.AddSegment(ctx, coding.AddSegmentRequest{
		DocumentID: document.ID, NodeID: theme.ID, Start: 0, End: 5, Preview: "hello",
	})
	require.NoError(t, err)

	scope := coding.ProjectScope(project.ID)
	stats, err := runner.Statistics(ctx, scope)
	require.NoError(t, err)
	require.Equal(t, Counts{Words: 1, Segments: 1}, stats.Nodes[theme.ID].Direct)
	require.Equal(t, 4, stats.TotalWords)
	require.InDelta(t, 25.0, stats.Nodes[theme.ID].Percentage, 1e-9)

	_, err = service.AddSegment(ctx, coding.AddSegmentRequest{
		DocumentID: document.ID, NodeID: other.ID, Start: 6, End: 11, Preview: "world",
	})
	require.NoError(t, err)
	matrix, err := runner.Overlap(ctx, scope)
	require.NoError(t, err)
	require.Zero(t, matrix.Count(theme.ID, other.ID))

	moved, err := service.MoveNode(ctx, other.ID, &theme.ID)
	require.NoError(t, err)
	require.Equal(t, 0, moved.Position)
	_, err = service.MoveNode(ctx, theme.ID, &other.ID)
	require.ErrorIs(t, err, coding.ErrCycle)

	deletion, err := service.DeleteNode(ctx, theme.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{theme.ID, other.ID}, deletion.NodeIDs)
	require.Equal(t, int64(2), deletion.SegmentsDeleted)

	stats, err = runner.Statistics(ctx, scope)
	require.NoError(t, err)
	require.Empty(t, stats.Nodes)
}

func TestStatisticsFollowScope(t *testing.T) {
	ctx := context.Background()
	service := newCodingService(t)
	runner, err := NewRunner(RunnerConfig{Source: service})
	require.NoError(t, err)

	project, err := service.CreateProject(ctx, "P", "")
	require.NoError(t, err)
	participant, err := service.CreateParticipant(ctx, project.ID, "Alex", "")
	require.NoError(t, err)
	parent, err := service.CreateNode(ctx, coding.CreateNodeRequest{ProjectID: project.ID, Name: "Parent"})
	require.NoError(t, err)
	child, err := service.CreateNode(ctx, coding.CreateNodeRequest{ProjectID: project.ID, ParentID: &parent.ID, Name: "Child"})
	require.NoError(t, err)
	first, err := service.CreateDocument(ctx, coding.CreateDocumentRequest{ProjectID: project.ID, ParticipantID: &participant.ID, Title: "A", Content: "one two three four"})
	require.NoError(t, err)
	second, err := service.CreateDocument(ctx, coding.CreateDocumentRequest{ProjectID: project.ID, Title: "B", Content: "five six"})
	require.NoError(t, err)
	_, err = service.AddSegment(ctx, coding.AddSegmentRequest{DocumentID: first.ID, NodeID: child.ID, ParticipantID: &participant.ID, Start: 0, End: 7})
	require.NoError(t, err)
	_, err = service.AddSegment(ctx, coding.AddSegmentRequest{DocumentID: second.ID, NodeID: parent.ID, Start: 0, End: 4})
	require.NoError(t, err)

	projectStats, err := runner.Statistics(ctx, coding.ProjectScope(project.ID))
	require.NoError(t, err)
	require.Equal(t, Counts{Words: 3, Segments: 2}, projectStats.Nodes[parent.ID].Aggregated)
	require.InDelta(t, 50.0, projectStats.Nodes[parent.ID].Percentage, 1e-9)

	participantStats, err := runner.Statistics(ctx, coding.ParticipantScope(project.ID, participant.ID))
	require.NoError(t, err)
	require.Equal(t, 4, participantStats.TotalWords)
	require.Equal(t, Counts{Words: 2, Segments: 1}, participantStats.Nodes[parent.ID].Aggregated)
	require.Equal(t, Counts{}, participantStats.Nodes[parent.ID].Direct)

	documentStats, err := runner.Statistics(ctx, coding.DocumentScope(project.ID, second.ID))
	require.NoError(t, err)
	require.Equal(t, 2, documentStats.TotalWords)
	require.Zero(t, documentStats.Nodes[child.ID].Aggregated.Segments)
	require.InDelta(t, 50.0, documentStats.Nodes[parent.ID].Percentage, 1e-9)

	outline, err := runner.Outline(ctx, coding.ProjectScope(project.ID), parent.ID)
	require.NoError(t, err)
	require.Len(t, outline, 2)
	require.Equal(t, "1.1.", outline[1].Number)
	require.Equal(t, "one two", outline[1].Segments[0].Text)
	require.Equal(t, "Alex", outline[1].Segments[0].Participant)
}
