package coding

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// readerDriverName labels the shared connection pool for sqlx bind handling.
const readerDriverName = "sqlite3"

var noOpLogger = zap.NewNop()

// ChangeKind classifies the record family touched by a committed mutation.
type ChangeKind string

const (
	ChangeKindProject     ChangeKind = "project"
	ChangeKindParticipant ChangeKind = "participant"
	ChangeKindDocument    ChangeKind = "document"
	ChangeKindTaxonomy    ChangeKind = "taxonomy"
	ChangeKindSegments    ChangeKind = "segments"
)

// ChangeEvent describes a committed mutation and the project generation it produced.
type ChangeEvent struct {
	ProjectID  string
	Generation int64
	Kind       ChangeKind
	EntityIDs  []string
	Timestamp  time.Time
}

// ChangeNotifier receives an event after every committed mutation.
type ChangeNotifier interface {
	Publish(event ChangeEvent)
}

// ServiceConfig describes the dependencies of the coding service.
type ServiceConfig struct {
	Database   *gorm.DB
	Reader     *sqlx.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
	Notifier   ChangeNotifier
}

// Service owns projects, participants, documents, the node taxonomy and coded segments.
// Every mutation runs in a single store transaction and bumps the generation of its project.
type Service struct {
	db          *gorm.DB
	reader      *sqlx.DB
	clock       func() time.Time
	idProvider  IDProvider
	logger      *zap.Logger
	notifier    ChangeNotifier
	generations sync.Map
}

// NewService validates the configuration and constructs a Service.
// When no Reader is supplied the service shares the gorm connection pool.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, reasonMissingDatabase, errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, reasonMissingIDProvider, errMissingIDProvider)
	}

	reader := cfg.Reader
	if reader == nil {
		sqlDB, err := cfg.Database.DB()
		if err != nil {
			return nil, newServiceError(opServiceNew, reasonMissingDatabase, err)
		}
		reader = sqlx.NewDb(sqlDB, readerDriverName)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		reader:     reader,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
		notifier:   cfg.Notifier,
	}, nil
}

// Generation returns the monotonically increasing mutation stamp of a project.
// It starts at zero for every process and only ever grows.
func (s *Service) Generation(projectID string) int64 {
	return s.generationCounter(projectID).Load()
}

func (s *Service) generationCounter(projectID string) *atomic.Int64 {
	if existing, ok := s.generations.Load(projectID); ok {
		return existing.(*atomic.Int64)
	}
	counter, _ := s.generations.LoadOrStore(projectID, &atomic.Int64{})
	return counter.(*atomic.Int64)
}

// committed records a successful mutation: bumps the generation and notifies subscribers.
func (s *Service) committed(operation, projectID string, kind ChangeKind, entityIDs ...string) {
	recordMutation(operation, nil)
	generation := s.generationCounter(projectID).Add(1)
	s.loggerOrDefault().Debug("coding mutation committed",
		zap.String("operation", operation),
		zap.String(fieldProjectID, projectID),
		zap.Int64("generation", generation))
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(ChangeEvent{
		ProjectID:  projectID,
		Generation: generation,
		Kind:       kind,
		EntityIDs:  entityIDs,
		Timestamp:  s.clock().UTC(),
	})
}

func (s *Service) ready(operation string) error {
	if s == nil || s.db == nil || s.reader == nil {
		s.logError(operation, reasonMissingDatabase, errMissingDatabase)
		return newServiceError(operation, reasonMissingDatabase, errMissingDatabase)
	}
	return nil
}

func (s *Service) newID(operation string) (string, error) {
	if s.idProvider == nil {
		s.logError(operation, reasonMissingIDProvider, errMissingIDProvider)
		return "", newServiceError(operation, reasonMissingIDProvider, errMissingIDProvider)
	}
	id, err := s.idProvider.NewID()
	if err != nil {
		return "", s.fail(operation, reasonIDGenerationFailed, storeFailure(err))
	}
	return id, nil
}

// fail logs a rejected operation and returns the coded service error.
func (s *Service) fail(operation, reason string, cause error, fields ...zap.Field) error {
	if errors.Is(cause, ErrIntegrity) {
		s.logError(operation, reason, cause, fields...)
	} else {
		attrs := append([]zap.Field{
			zap.String("operation", operation),
			zap.String("reason", reason),
			zap.Error(cause),
		}, fields...)
		s.loggerOrDefault().Debug("coding operation rejected", attrs...)
	}
	return newServiceError(operation, reason, cause)
}

// finish records the mutation outcome metric for failed transactions.
func finish(operation string, err error) error {
	if err != nil {
		recordMutation(operation, err)
	}
	return err
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("coding service error", attrs...)
}

func (s *Service) now() int64 {
	return s.clock().UTC().Unix()
}
