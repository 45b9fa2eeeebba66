package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/training-portal/internal/logging"
	"github.com/iliyamo/training-portal/internal/model"
	"github.com/iliyamo/training-portal/internal/queue"
	"github.com/iliyamo/training-portal/internal/repository"
	"github.com/iliyamo/training-portal/internal/utils"
)

// Session is what a successful login or refresh hands back to the client.
type Session struct {
	Access  utils.AccessToken
	Refresh utils.RefreshToken
	Account model.AccountView
}

// SessionService implements login, refresh rotation and logout.
type SessionService struct {
	verifier *Verifier
	accounts AccountStore
	tokens   RefreshTokenStore
	issuer   *utils.Issuer
	opts     Options
}

func NewSessionService(verifier *Verifier, accounts AccountStore, tokens RefreshTokenStore, issuer *utils.Issuer, opts Options) *SessionService {
	return &SessionService{
		verifier: verifier,
		accounts: accounts,
		tokens:   tokens,
		issuer:   issuer,
		opts:     opts.withDefaults(),
	}
}

// Login verifies the credentials, revokes every refresh token the account
// already holds and starts a new session.  Revocation and the new token are
// one store transaction, so at most one token family survives concurrent
// logins.
func (s *SessionService) Login(ctx context.Context, username, password string) (Session, error) {
	view, err := s.verifier.Verify(ctx, username, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.opts.Metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
			ev := queue.NewAuthEvent(queue.EventLoginFailed, 0, s.opts.Now())
			ev.Reason = "invalid credentials"
			s.opts.emit(ev)
		} else {
			s.opts.Metrics.LoginsTotal.WithLabelValues("error").Inc()
		}
		return Session{}, err
	}
	log := s.opts.Log.WithFields(logrus.Fields{"op": "login", "user_id": view.UserID})

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	sess, hash, err := s.issue(view)
	if err != nil {
		s.opts.Metrics.LoginsTotal.WithLabelValues("error").Inc()
		return Session{}, internalErr(log, "login.issue", err)
	}
	revoked, err := s.tokens.Replace(ctx, s.row(view.UserID, hash, sess.Refresh))
	if err != nil {
		s.opts.Metrics.LoginsTotal.WithLabelValues("error").Inc()
		return Session{}, internalErr(log, "login.replace", err)
	}

	s.opts.Metrics.LoginsTotal.WithLabelValues("success").Inc()
	log.WithFields(logrus.Fields{"revoked": revoked, "token_fp": logging.Fingerprint(hash)}).Info("login succeeded")
	ev := queue.NewAuthEvent(queue.EventLoginSucceeded, view.UserID, s.opts.Now())
	ev.LoginCode = view.LoginCode
	ev.TokenFingerprint = logging.Fingerprint(hash)
	s.opts.emit(ev)
	return sess, nil
}

// Refresh exchanges a refresh token for a new pair.  Each refresh token
// works once: the old row is deleted in the same transaction that stores
// the new one, and a concurrent second use finds nothing to delete.
func (s *SessionService) Refresh(ctx context.Context, raw string) (Session, error) {
	oldHash := utils.HashRefreshRaw(raw)
	log := s.opts.Log.WithFields(logrus.Fields{"op": "refresh", "token_fp": logging.Fingerprint(oldHash)})

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	userID, err := s.tokens.Lookup(ctx, oldHash, s.opts.Now())
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, s.rejectRefresh(oldHash, 0, "unknown or expired")
	}
	if err != nil {
		s.opts.Metrics.RefreshesTotal.WithLabelValues("error").Inc()
		return Session{}, internalErr(log, "refresh.lookup", err)
	}
	log = log.WithField("user_id", userID)

	acc, err := s.accounts.GetByID(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.opts.Metrics.RefreshesTotal.WithLabelValues("error").Inc()
		return Session{}, internalErr(log, "refresh.account", err)
	}
	if err != nil || !acc.Active() || !acc.Role.AtLeast(model.RoleStaff) {
		if derr := s.tokens.Delete(ctx, oldHash); derr != nil {
			log.WithError(derr).Warn("delete refresh token of disabled account failed")
		}
		s.opts.Metrics.RefreshesTotal.WithLabelValues("disabled").Inc()
		log.Info("refresh refused: account disabled")
		ev := queue.NewAuthEvent(queue.EventRefreshRejected, userID, s.opts.Now())
		ev.Reason = "account disabled"
		ev.TokenFingerprint = logging.Fingerprint(oldHash)
		s.opts.emit(ev)
		return Session{}, ErrAccountDisabled
	}

	view := acc.View()
	sess, newHash, err := s.issue(view)
	if err != nil {
		s.opts.Metrics.RefreshesTotal.WithLabelValues("error").Inc()
		return Session{}, internalErr(log, "refresh.issue", err)
	}
	err = s.tokens.Rotate(ctx, oldHash, s.row(userID, newHash, sess.Refresh))
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, s.rejectRefresh(oldHash, userID, "lost rotation race")
	}
	if err != nil {
		s.opts.Metrics.RefreshesTotal.WithLabelValues("error").Inc()
		return Session{}, internalErr(log, "refresh.rotate", err)
	}

	s.opts.Metrics.RefreshesTotal.WithLabelValues("success").Inc()
	log.WithField("new_token_fp", logging.Fingerprint(newHash)).Debug("refresh token rotated")
	ev := queue.NewAuthEvent(queue.EventRefreshRotated, userID, s.opts.Now())
	ev.TokenFingerprint = logging.Fingerprint(newHash)
	s.opts.emit(ev)
	return sess, nil
}

func (s *SessionService) rejectRefresh(hash string, userID uint64, reason string) error {
	s.opts.Metrics.RefreshesTotal.WithLabelValues("invalid").Inc()
	s.opts.Log.WithFields(logrus.Fields{"op": "refresh", "user_id": userID, "token_fp": logging.Fingerprint(hash)}).
		Info("refresh rejected: " + reason)
	ev := queue.NewAuthEvent(queue.EventRefreshRejected, userID, s.opts.Now())
	ev.TokenFingerprint = logging.Fingerprint(hash)
	ev.Reason = reason
	s.opts.emit(ev)
	return ErrInvalidRefreshToken
}

// Logout deletes one refresh token.  Unknown tokens are not an error.
func (s *SessionService) Logout(ctx context.Context, raw string) error {
	hash := utils.HashRefreshRaw(raw)
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	if err := s.tokens.Delete(ctx, hash); err != nil {
		return internalErr(s.opts.Log.WithField("token_fp", logging.Fingerprint(hash)), "logout", err)
	}
	s.opts.Metrics.LogoutsTotal.Inc()
	ev := queue.NewAuthEvent(queue.EventLogout, 0, s.opts.Now())
	ev.TokenFingerprint = logging.Fingerprint(hash)
	s.opts.emit(ev)
	return nil
}

// LogoutAll revokes every refresh token of userID and reports how many
// were removed.  Access tokens already issued stay valid until they expire.
func (s *SessionService) LogoutAll(ctx context.Context, userID uint64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	n, err := s.tokens.DeleteAll(ctx, userID)
	if err != nil {
		return 0, internalErr(s.opts.Log.WithField("user_id", userID), "logout_all", err)
	}
	s.opts.Metrics.LogoutsTotal.Inc()
	s.opts.emit(queue.NewAuthEvent(queue.EventLogoutAll, userID, s.opts.Now()))
	return n, nil
}

// PurgeExpired removes refresh tokens past their expiry.
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	n, err := s.tokens.DeleteExpired(ctx, s.opts.Now())
	if err != nil {
		return 0, internalErr(s.opts.Log, "purge_refresh_tokens", err)
	}
	s.opts.Metrics.CleanupRemoved.WithLabelValues("refresh_tokens").Add(float64(n))
	return n, nil
}

func (s *SessionService) issue(view model.AccountView) (Session, string, error) {
	access, err := s.issuer.IssueAccessToken(view)
	if err != nil {
		return Session{}, "", err
	}
	refresh, err := s.issuer.IssueRefreshToken()
	if err != nil {
		return Session{}, "", err
	}
	return Session{Access: access, Refresh: refresh, Account: view}, utils.HashRefreshRaw(refresh.Raw), nil
}

func (s *SessionService) row(userID uint64, hash string, rt utils.RefreshToken) model.RefreshToken {
	return model.RefreshToken{TokenHash: hash, UserID: userID, IssuedAt: s.opts.Now(), ExpiresAt: rt.Exp}
}
