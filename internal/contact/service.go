package contact

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/matheus3301/relay/internal/user"
)

// Directory provides the full set of registered users.
type Directory interface {
	All(ctx context.Context) ([]user.User, error)
}

// Service answers contact-sync requests.
type Service struct {
	dir    Directory
	logger *zap.Logger
}

// NewService creates a contact service reading users from dir.
func NewService(dir Directory, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{dir: dir, logger: logger}
}

// Registered reads the whole directory once and returns the contacts that
// belong to registered users.
func (s *Service) Registered(ctx context.Context, contacts []Contact) ([]MatchedContact, error) {
	users, err := s.dir.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}
	matched := Match(contacts, users)
	s.logger.Info("contacts matched",
		zap.Int("submitted", len(contacts)),
		zap.Int("directory", len(users)),
		zap.Int("matched", len(matched)),
	)
	return matched, nil
}
