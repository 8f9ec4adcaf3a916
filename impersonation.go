package teams

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ImpersonationGrant is what a successful start hands back: the freshly
// minted target credential plus the admin's own original credential, returned
// explicitly and distinctly. The admin's session state is never discarded or
// overwritten; the caller keeps both and swaps back on stop.
type ImpersonationGrant struct {
	Session          *ImpersonationSession `json:"session"`
	TargetCredential Credential            `json:"target_credential"`
	AdminCredential  Credential            `json:"admin_credential"`
}

// StopImpersonationRequest identifies which session(s) to finalize. SessionID
// wins when set; otherwise the lookup is defensive and matches open sessions
// in which UserID appears as either admin or target, since the calling
// context after an impersonation may be ambiguous about which identity is
// current.
type StopImpersonationRequest struct {
	SessionID uuid.UUID
	UserID    uuid.UUID
}

// Impersonator creates, tracks, and terminates time-boxed impersonation
// sessions for super-admin actors.
type Impersonator struct {
	repo     RepositoryManager
	provider IdentityProvider
	ttl      time.Duration
	minLen   int
	single   bool
	logger   Logger
	sink     ActivitySink
	now      func() time.Time
}

// NewImpersonator returns a new Impersonator
func NewImpersonator(repo RepositoryManager, provider IdentityProvider, opts Config) *Impersonator {
	if opts == nil {
		opts = SimpleConfig{}
	}
	return &Impersonator{
		repo:     repo,
		provider: provider,
		ttl:      opts.GetImpersonationTTL(),
		minLen:   opts.GetMinReasonLength(),
		single:   opts.GetSingleActiveImpersonation(),
		logger:   defLogger{},
		sink:     noopActivitySink{},
		now:      time.Now,
	}
}

func (s *Impersonator) WithLogger(logger Logger) *Impersonator {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting audit events.
func (s *Impersonator) WithActivitySink(sink ActivitySink) *Impersonator {
	s.sink = normalizeActivitySink(sink)
	return s
}

// WithClock injects a custom clock (useful for tests).
func (s *Impersonator) WithClock(clock func() time.Time) *Impersonator {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Start opens an impersonation session. The precondition checks (actor
// privilege, self-targeting, target resolution, target privilege, reason) are
// synchronous and never retried; the audit row is written before the target
// credential is minted, and an issuance failure closes the row out rather
// than leaving a half-open session.
func (s *Impersonator) Start(ctx context.Context, actor ActorContext, adminCredential Credential, targetUserID uuid.UUID, reason string) (*ImpersonationGrant, error) {
	if err := CanImpersonate(actor, targetUserID, ""); err != nil {
		s.emitFailure(ctx, actor, targetUserID, err)
		return nil, err
	}

	identity, err := s.provider.FindUserByID(ctx, targetUserID.String())
	if err != nil || identity == nil {
		if err == nil || HasTextCode(err, TextCodeUserNotFound) {
			err = ErrUserNotFound.WithMetadata(map[string]any{
				"user_id": targetUserID.String(),
			})
		} else {
			err = goerrors.Wrap(err, goerrors.CategoryOperation, "identity provider lookup failed")
		}
		s.emitFailure(ctx, actor, targetUserID, err)
		return nil, err
	}

	// Privileged actors are never impersonated, whether the privilege lives
	// on the identity or on a membership row.
	if err := s.ensureTargetUnprivileged(ctx, targetUserID, identity); err != nil {
		s.emitFailure(ctx, actor, targetUserID, err)
		return nil, err
	}

	reason = strings.TrimSpace(reason)
	if len(reason) < s.minLen {
		err := ErrReasonRequired.WithMetadata(map[string]any{
			"min_length": s.minLen,
		})
		s.emitFailure(ctx, actor, targetUserID, err)
		return nil, err
	}

	now := s.now()

	// Default policy: one active session per admin. Starting a new one ends
	// any prior active session for that admin.
	if s.single {
		if err := s.supersedePrior(ctx, actor.UserID, now); err != nil {
			return nil, err
		}
	}

	// The audit row goes in before any credential exists, so a crash right
	// after still leaves an auditable session start.
	session := &ImpersonationSession{
		ID:           uuid.New(),
		AdminUserID:  actor.UserID,
		TargetUserID: targetUserID,
		Reason:       reason,
		StartedAt:    now,
		ExpiresAt:    now.Add(s.ttl),
	}

	if _, err := s.repo.ImpersonationSessions().Create(ctx, session); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist impersonation session")
	}

	credential, err := s.provider.IssueSessionFor(ctx, identity, map[string]any{
		"acting_as":         true,
		"original_admin_id": actor.UserID.String(),
		"session_id":        session.ID.String(),
	})
	if err != nil {
		// No half sessions: close the row out so it never counts as active
		// while no credential was ever issued.
		if _, endErr := s.repo.ImpersonationSessions().EndSession(ctx, session.ID, s.now(), EndReasonIssuanceFailed); endErr != nil {
			s.logger.Error("failed to close out session %s after issuance failure: %v", session.ID, endErr)
		}
		wrapped := ErrCredentialIssuance.WithMetadata(map[string]any{
			"session_id": session.ID.String(),
			"cause":      err.Error(),
		})
		s.emitFailure(ctx, actor, targetUserID, wrapped)
		return nil, wrapped
	}

	emitActivity(ctx, s.sink, s.logger, ActivityEvent{
		EventType: ActivityEventImpersonationStarted,
		Actor:     actorRefFromContext(actor),
		TargetID:  targetUserID.String(),
		Metadata: map[string]any{
			"session_id": session.ID.String(),
			"reason":     reason,
			"expires_at": session.ExpiresAt,
		},
		OccurredAt: now,
	})

	return &ImpersonationGrant{
		Session:          session,
		TargetCredential: credential,
		AdminCredential:  adminCredential,
	}, nil
}

// Stop finalizes the audit record for one or more open sessions. It is
// idempotent: ended_at is only ever set once, and stopping an already ended
// session is a harmless no-op. Restoring the admin's original credential is
// the caller's concern; this manager only settles the rows.
func (s *Impersonator) Stop(ctx context.Context, req StopImpersonationRequest) ([]*ImpersonationSession, error) {
	now := s.now()

	var sessions []*ImpersonationSession

	switch {
	case req.SessionID != uuid.Nil:
		session, err := s.repo.ImpersonationSessions().GetSession(ctx, req.SessionID)
		if err != nil {
			return nil, err
		}
		sessions = []*ImpersonationSession{session}
	case req.UserID != uuid.Nil:
		open, err := s.repo.ImpersonationSessions().FindOpenByUser(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		sessions = open
	default:
		return nil, ErrSessionNotFound
	}

	ended := make([]*ImpersonationSession, 0, len(sessions))
	for _, session := range sessions {
		closed, err := s.repo.ImpersonationSessions().EndSession(ctx, session.ID, now, EndReasonStopped)
		if err != nil {
			return nil, err
		}

		if closed {
			session.EndedAt = &now
			session.EndReason = EndReasonStopped
			emitActivity(ctx, s.sink, s.logger, ActivityEvent{
				EventType: ActivityEventImpersonationStopped,
				Actor:     ActorRef{ID: session.AdminUserID.String(), Type: "user"},
				TargetID:  session.TargetUserID.String(),
				Metadata: map[string]any{
					"session_id": session.ID.String(),
				},
				OccurredAt: now,
			})
		} else {
			// Already terminal; reload so the caller sees the settled row.
			if refreshed, err := s.repo.ImpersonationSessions().GetSession(ctx, session.ID); err == nil {
				session = refreshed
			}
		}

		ended = append(ended, session)
	}

	return ended, nil
}

// IsActive reports whether a session is live right now. Logical expiry
// applies: a session past expires_at is ended on every read path even when
// the close-out write has not happened yet.
func (s *Impersonator) IsActive(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	session, err := s.repo.ImpersonationSessions().GetSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return session.IsActive(s.now()), nil
}

// CloseExpired settles every open session whose expiry has passed. Wire it to
// a periodic job or call it lazily; read paths do not depend on it.
func (s *Impersonator) CloseExpired(ctx context.Context) (int64, error) {
	var closed int64
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		n, err := s.repo.ImpersonationSessions().CloseExpiredTx(ctx, tx, s.now())
		if err != nil {
			return err
		}
		closed = n
		return nil
	})
	return closed, err
}

func (s *Impersonator) supersedePrior(ctx context.Context, adminID uuid.UUID, now time.Time) error {
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		open, err := s.repo.ImpersonationSessions().FindOpenByAdminTx(ctx, tx, adminID)
		if err != nil {
			return err
		}
		for _, session := range open {
			if _, err := s.repo.ImpersonationSessions().EndSessionTx(ctx, tx, session.ID, now, EndReasonSuperseded); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to supersede prior sessions")
	}
	return nil
}

func (s *Impersonator) ensureTargetUnprivileged(ctx context.Context, targetUserID uuid.UUID, identity Identity) error {
	if MemberRole(identity.Role()) == RoleSuperAdmin {
		return ErrTargetIsPrivileged.WithMetadata(map[string]any{
			"user_id": targetUserID.String(),
		})
	}

	memberships, err := s.repo.Members().ListByUser(ctx, targetUserID)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check target memberships")
	}
	for _, m := range memberships {
		if m.Role == RoleSuperAdmin {
			return ErrTargetIsPrivileged.WithMetadata(map[string]any{
				"user_id": targetUserID.String(),
			})
		}
	}

	return nil
}

func (s *Impersonator) emitFailure(ctx context.Context, actor ActorContext, targetUserID uuid.UUID, cause error) {
	emitActivity(ctx, s.sink, s.logger, ActivityEvent{
		EventType: ActivityEventImpersonationFailure,
		Actor:     actorRefFromContext(actor),
		TargetID:  targetUserID.String(),
		Metadata: map[string]any{
			"error": cause.Error(),
		},
		OccurredAt: s.now(),
	})
}
