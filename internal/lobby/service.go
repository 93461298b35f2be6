// internal/lobby/service.go
package lobby

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizlobby/internal/apperrors"
	"github.com/jason-s-yu/quizlobby/internal/broadcast"
	"github.com/jason-s-yu/quizlobby/internal/models"
	"github.com/sirupsen/logrus"
)

// Publisher receives the events produced by successful lobby mutations.
type Publisher interface {
	Publish(ctx context.Context, ev broadcast.Event) error
}

// CreateParams are the inputs of Create.
type CreateParams struct {
	QuizID           uuid.UUID
	HostUserID       uuid.UUID
	ParticipantLimit int
	// ScheduledStart, when set, makes the lobby start automatically at that time.
	ScheduledStart *time.Time
}

// Service owns the lobby lifecycle: membership, capacity, and status transitions.
type Service struct {
	store   Store
	quizzes QuizDirectory
	users   UserDirectory
	invites InviteResolver
	pub     Publisher
	log     *logrus.Logger
	now     func() time.Time
}

// NewService wires a lobby Service.
func NewService(store Store, quizzes QuizDirectory, users UserDirectory, invites InviteResolver, pub Publisher, logger *logrus.Logger) *Service {
	return &Service{
		store:   store,
		quizzes: quizzes,
		users:   users,
		invites: invites,
		pub:     pub,
		log:     logger,
		now:     time.Now,
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Create makes a new waiting lobby with the host as its only participant.
func (s *Service) Create(ctx context.Context, p CreateParams) (*models.Lobby, error) {
	if p.ParticipantLimit < 1 {
		return nil, apperrors.Invalid("participant limit must be at least 1")
	}
	now := s.now()
	if p.ScheduledStart != nil && !p.ScheduledStart.After(now) {
		return nil, apperrors.Invalid("scheduled start must be in the future")
	}
	if _, err := s.quizzes.GetQuiz(ctx, p.QuizID); err != nil {
		return nil, err
	}

	l := &models.Lobby{
		ID:               uuid.New(),
		QuizID:           p.QuizID,
		HostUserID:       p.HostUserID,
		Participants:     []uuid.UUID{p.HostUserID},
		ParticipantLimit: p.ParticipantLimit,
		Status:           models.StatusWaiting,
		StartTime:        p.ScheduledStart,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.InsertLobby(ctx, l); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"lobby_id": l.ID,
		"user_id":  p.HostUserID,
		"limit":    p.ParticipantLimit,
	}).Info("lobby created")
	return l, nil
}

// Get returns the lobby with id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Lobby, error) {
	return s.store.GetLobby(ctx, id)
}

// Join adds userID to the lobby's participants.
func (s *Service) Join(ctx context.Context, lobbyID, userID uuid.UUID) (*models.Lobby, error) {
	l, err := s.store.AddParticipant(ctx, lobbyID, userID)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"lobby_id": lobbyID, "user_id": userID}).Info("user joined lobby")
	s.publishUpdated(ctx, l)
	return l, nil
}

// JoinViaInvite resolves code and joins the invited lobby.
func (s *Service) JoinViaInvite(ctx context.Context, code string, userID uuid.UUID) (*models.Lobby, error) {
	inv, err := s.invites.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.Join(ctx, inv.LobbyID, userID)
}

// Leave removes userID from the lobby. The host leaving ends the lobby.
func (s *Service) Leave(ctx context.Context, lobbyID, userID uuid.UUID) (*models.Lobby, error) {
	l, err := s.store.RemoveParticipant(ctx, lobbyID, userID, s.now())
	if err != nil {
		return nil, err
	}
	entry := s.log.WithFields(logrus.Fields{"lobby_id": lobbyID, "user_id": userID})
	if l.IsHost(userID) {
		entry.Info("host left, lobby ended")
		s.publishUpdated(ctx, l)
		s.publish(ctx, broadcast.LobbyEnded{LobbyID: l.ID, Reason: broadcast.ReasonHostLeft, EndedAt: endedAt(l)})
		return l, nil
	}
	entry.Info("user left lobby")
	s.publishUpdated(ctx, l)
	return l, nil
}

// Start moves a waiting lobby to started. Only the host may start it.
func (s *Service) Start(ctx context.Context, lobbyID, hostID uuid.UUID) (*models.Lobby, error) {
	l, err := s.store.StartLobby(ctx, lobbyID, hostID, s.now())
	if err != nil {
		return nil, err
	}
	s.log.WithField("lobby_id", lobbyID).Info("lobby started")
	s.announceStart(ctx, l)
	return l, nil
}

// End moves a waiting or started lobby to ended. Only the host may end it.
func (s *Service) End(ctx context.Context, lobbyID, hostID uuid.UUID) (*models.Lobby, error) {
	l, err := s.store.EndLobby(ctx, lobbyID, hostID, s.now())
	if err != nil {
		return nil, err
	}
	s.log.WithField("lobby_id", lobbyID).Info("lobby ended")
	s.publishUpdated(ctx, l)
	s.publish(ctx, broadcast.LobbyEnded{LobbyID: l.ID, Reason: broadcast.ReasonHostEnded, EndedAt: endedAt(l)})
	return l, nil
}

// Delete permanently removes the lobby and its invites. Only the host may delete it.
func (s *Service) Delete(ctx context.Context, lobbyID, hostID uuid.UUID) error {
	if err := s.store.DeleteLobby(ctx, lobbyID, hostID); err != nil {
		return err
	}
	s.log.WithField("lobby_id", lobbyID).Info("lobby deleted")
	s.publish(ctx, broadcast.LobbyEnded{LobbyID: lobbyID, Reason: broadcast.ReasonDeleted, EndedAt: s.now()})
	return nil
}

// ListHosted returns the lobbies hosted by userID, newest first.
func (s *Service) ListHosted(ctx context.Context, userID uuid.UUID) ([]*models.Lobby, error) {
	return s.store.ListHostedBy(ctx, userID)
}

// ListJoined returns the lobbies userID participates in without hosting, newest first.
func (s *Service) ListJoined(ctx context.Context, userID uuid.UUID) ([]*models.Lobby, error) {
	return s.store.ListJoinedBy(ctx, userID)
}

// StartDue starts every lobby whose scheduled start has passed and announces each one.
func (s *Service) StartDue(ctx context.Context) (int, error) {
	started, err := s.store.StartDue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	for _, l := range started {
		s.log.WithField("lobby_id", l.ID).Info("lobby auto-started")
		s.announceStart(ctx, l)
	}
	return len(started), nil
}

// RunAutoStart calls StartDue every interval until ctx is done.
func (s *Service) RunAutoStart(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.StartDue(ctx); err != nil && ctx.Err() == nil {
				s.log.Errorf("auto-start sweep failed: %v", err)
			}
		}
	}
}

// Snapshot builds the client-facing view of l.
func (s *Service) Snapshot(ctx context.Context, l *models.Lobby) (*models.Snapshot, error) {
	snaps, err := s.Snapshots(ctx, []*models.Lobby{l})
	if err != nil {
		return nil, err
	}
	return snaps[0], nil
}

// Snapshots builds views for several lobbies with one user lookup.
func (s *Service) Snapshots(ctx context.Context, lobbies []*models.Lobby) ([]*models.Snapshot, error) {
	seen := make(map[uuid.UUID]struct{})
	var ids []uuid.UUID
	for _, l := range lobbies {
		for _, id := range append([]uuid.UUID{l.HostUserID}, l.Participants...) {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	users, err := s.users.GetUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	ref := func(id uuid.UUID) models.UserRef {
		if u, ok := users[id]; ok {
			return u
		}
		return models.FallbackUser(id)
	}

	quizzes := make(map[uuid.UUID]models.QuizRef)
	out := make([]*models.Snapshot, 0, len(lobbies))
	for _, l := range lobbies {
		quiz, ok := quizzes[l.QuizID]
		if !ok {
			q, err := s.quizzes.GetQuiz(ctx, l.QuizID)
			if err != nil {
				return nil, err
			}
			quiz = *q
			quizzes[l.QuizID] = quiz
		}
		snap := &models.Snapshot{
			ID:               l.ID,
			Quiz:             quiz,
			Host:             ref(l.HostUserID),
			Participants:     make([]models.UserRef, 0, len(l.Participants)),
			ParticipantLimit: l.ParticipantLimit,
			Status:           l.Status,
			StartTime:        l.StartTime,
			EndedAt:          l.EndedAt,
			Winner:           l.Winner,
		}
		for _, p := range l.Participants {
			snap.Participants = append(snap.Participants, ref(p))
		}
		out = append(out, snap)
	}
	return out, nil
}

func (s *Service) announceStart(ctx context.Context, l *models.Lobby) {
	s.publishUpdated(ctx, l)
	start := s.now()
	if l.StartTime != nil {
		start = *l.StartTime
	}
	s.publish(ctx, broadcast.LobbyStarted{LobbyID: l.ID, StartTime: start})
}

func (s *Service) publishUpdated(ctx context.Context, l *models.Lobby) {
	snap, err := s.Snapshot(ctx, l)
	if err != nil {
		s.log.WithField("lobby_id", l.ID).Warnf("build snapshot for event: %v", err)
		return
	}
	s.publish(ctx, broadcast.LobbyUpdated{Snapshot: *snap})
}

// publish is best-effort: the mutation already committed, so failures are only logged.
func (s *Service) publish(ctx context.Context, ev broadcast.Event) {
	if err := s.pub.Publish(ctx, ev); err != nil {
		s.log.WithFields(logrus.Fields{
			"lobby_id": ev.Lobby(),
			"event":    ev.Kind(),
		}).Warnf("publish failed: %v", err)
	}
}

func endedAt(l *models.Lobby) time.Time {
	if l.EndedAt != nil {
		return *l.EndedAt
	}
	return l.UpdatedAt
}
