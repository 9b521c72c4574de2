package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/itbasis/go-clock"
	"github.com/turfwar-server/internal/config"
	"github.com/turfwar-server/internal/domain"
	"github.com/turfwar-server/internal/notify"
	"github.com/turfwar-server/internal/upi"
	"github.com/turfwar-server/internal/web"
)

// UserStore reads users and writes their UPI id
type UserStore interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	UpdateUserUPI(ctx context.Context, userID, upiID string) (*domain.User, error)
}

// UserCache is the optional cache for user lookups
type UserCache interface {
	GetUserInfo(ctx context.Context, userID string) (*domain.User, error)
	SetUserInfo(ctx context.Context, user *domain.User) error
	InvalidateUser(ctx context.Context, userID string) error
}

// EmailRenderer renders the reminder email body
type EmailRenderer interface {
	ReminderEmailHTML(data web.ReminderEmail) (string, error)
}

// FinanceService sends payment reminders and manages payee ids
type FinanceService struct {
	matches    MatchStore
	users      UserStore
	userCache  UserCache
	dispatcher notify.Dispatcher
	renderer   EmailRenderer
	publisher  Publisher
	config     *config.PaymentConfig
	clock      clock.Clock
	logger     *slog.Logger
}

// NewFinanceService creates a new finance service. userCache and publisher may be nil.
func NewFinanceService(
	matches MatchStore,
	users UserStore,
	userCache UserCache,
	dispatcher notify.Dispatcher,
	renderer EmailRenderer,
	publisher Publisher,
	cfg *config.PaymentConfig,
	clk clock.Clock,
	logger *slog.Logger,
) *FinanceService {
	return &FinanceService{
		matches:    matches,
		users:      users,
		userCache:  userCache,
		dispatcher: dispatcher,
		renderer:   renderer,
		publisher:  publisher,
		config:     cfg,
		clock:      clk,
		logger:     logger,
	}
}

// Reminder describes a reminder that was sent
type Reminder struct {
	ToEmail     string
	ToName      string
	Amount      int64
	PaymentURI  string
	QRImageURL  string
	RedirectURL string
}

// SendReminder emails a player their share of the match cost with a UPI QR
// code and a link to the deep-link page. baseURL is the absolute origin the
// link should point at.
func (s *FinanceService) SendReminder(ctx context.Context, caller domain.Identity, req domain.ReminderRequest, baseURL string) (*Reminder, error) {
	match, err := s.matches.GetMatch(ctx, req.MatchID)
	if err != nil {
		return nil, err
	}
	if !match.IsOwnedBy(caller.ID) {
		return nil, domain.ErrNotMatchOwner
	}

	player := match.FindPlayer(req.PlayerID)
	if player == nil {
		return nil, domain.ErrPlayerNotFound
	}

	toEmail, toName := player.Email, player.Name
	if player.IsGuest {
		if toEmail == "" {
			return nil, domain.ErrGuestNoEmail
		}
	} else {
		if player.UserID == nil {
			return nil, domain.ErrUserNotFound
		}
		user, err := s.lookupUser(ctx, *player.UserID)
		if err != nil {
			return nil, err
		}
		toEmail, toName = user.Email, user.Name
	}

	organizer, err := s.lookupUser(ctx, match.CreatedBy)
	if err != nil {
		return nil, err
	}
	payee := organizer.UPIID
	if payee == "" {
		payee = s.config.FallbackVPA
	}

	amount := match.AmountPerHead()
	note := fmt.Sprintf("%s: %s", s.config.NotePrefix, match.Title)
	paymentURI := upi.PaymentURI(payee, organizer.Name, amount, note)

	reminder := &Reminder{
		ToEmail:     toEmail,
		ToName:      toName,
		Amount:      amount,
		PaymentURI:  paymentURI,
		QRImageURL:  upi.QRImageURL(s.config.QREndpoint, s.config.QRSize, paymentURI),
		RedirectURL: upi.RedirectURL(baseURL, payee, organizer.Name, amount, note),
	}

	html, err := s.renderer.ReminderEmailHTML(web.ReminderEmail{
		MatchTitle:    match.Title,
		RecipientName: toName,
		Amount:        amount,
		QRImageURL:    reminder.QRImageURL,
		RedirectURL:   reminder.RedirectURL,
		OrganizerName: organizer.Name,
		PayeeVPA:      payee,
	})
	if err != nil {
		return nil, err
	}

	err = s.dispatcher.Send(ctx, notify.Email{
		ToEmail: toEmail,
		ToName:  toName,
		Subject: fmt.Sprintf("Payment Request: ₹%d for %s", amount, match.Title),
		HTML:    html,
	})
	if err != nil {
		s.logger.Error("failed to send reminder", "match_id", match.ID, "player_id", player.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrReminderNotSent, err)
	}

	emitEvent(ctx, s.matches, s.publisher, s.logger, domain.MatchEvent{
		MatchID:   match.ID,
		Type:      domain.EventReminderSent,
		ActorID:   caller.ID,
		Timestamp: s.clock.Now().UTC(),
		Data: map[string]interface{}{
			"player_id": player.ID,
			"amount":    amount,
		},
	})

	s.logger.Info("sent payment reminder", "match_id", match.ID, "player_id", player.ID, "amount", amount)
	return reminder, nil
}

// UpdateUPI sets the caller's UPI id
func (s *FinanceService) UpdateUPI(ctx context.Context, caller domain.Identity, req domain.UPIRequest) (*domain.User, error) {
	user, err := s.users.UpdateUserUPI(ctx, caller.ID, req.UPIID)
	if err != nil {
		return nil, err
	}
	if s.userCache != nil {
		if err := s.userCache.InvalidateUser(ctx, caller.ID); err != nil {
			s.logger.Warn("failed to invalidate user cache", "user_id", caller.ID, "error", err)
		}
	}
	return user, nil
}

// lookupUser reads through the user cache when one is configured
func (s *FinanceService) lookupUser(ctx context.Context, userID string) (*domain.User, error) {
	if s.userCache != nil {
		user, err := s.userCache.GetUserInfo(ctx, userID)
		if err == nil {
			return user, nil
		}
		if !domain.IsNotFoundError(err) {
			s.logger.Warn("user cache read failed", "user_id", userID, "error", err)
		}
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.userCache != nil {
		if err := s.userCache.SetUserInfo(ctx, user); err != nil {
			s.logger.Warn("user cache write failed", "user_id", userID, "error", err)
		}
	}
	return user, nil
}
