// Package service implements the identity and role registry: registration,
// administrator verification, and participant lookups.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"supplytrace/internal/eventlog"
	identitymetrics "supplytrace/internal/identity/metrics"
	"supplytrace/internal/identity/models"
	"supplytrace/internal/ledger/authz"
	"supplytrace/internal/ledger/store"
	"supplytrace/pkg/domain"
	dErrors "supplytrace/pkg/domain-errors"
	"supplytrace/pkg/platform/sentinel"
	"supplytrace/pkg/requestcontext"
)

// Service orchestrates participant lifecycle against the shared ledger store.
type Service struct {
	ledger  store.Ledger
	admin   domain.Address
	logger  *slog.Logger
	events  *eventlog.Emitter
	metrics *identitymetrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithEmitter(events *eventlog.Emitter) Option {
	return func(s *Service) { s.events = events }
}

func WithMetrics(m *identitymetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs the registry. admin is the single privileged identity fixed
// at ledger creation; only it may verify participants.
func New(ledger store.Ledger, admin domain.Address, opts ...Option) *Service {
	s := &Service{
		ledger: ledger,
		admin:  admin,
		tracer: otel.Tracer("supplytrace/identity"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates the participant record for addr. The role is fixed for
// the lifetime of the record; a second registration for the same address is
// rejected with already_registered rather than merged.
func (s *Service) Register(ctx context.Context, addr domain.Address, name string, role models.Role) (models.Participant, error) {
	ctx, span := s.tracer.Start(ctx, "identity.Register")
	defer span.End()
	start := time.Now()

	now := requestcontext.Now(ctx)
	participant, err := models.NewParticipant(addr, name, role, now)
	if err != nil {
		return models.Participant{}, s.reject(ctx, err)
	}

	err = s.ledger.Update(ctx, func(tx store.Txn) error {
		if _, err := tx.Participant(addr); err == nil {
			return dErrors.New(dErrors.CodeAlreadyRegistered, "address is already registered")
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "resolve participant")
		}
		// The create may still conflict when a concurrent registration for
		// the same address commits between the check and the insert.
		if err := tx.CreateParticipant(participant); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeAlreadyRegistered, "address is already registered")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "store participant")
		}
		return nil
	})
	if err != nil {
		return models.Participant{}, s.reject(ctx, err)
	}

	s.emit(ctx, eventlog.New(eventlog.KindParticipantRegistered, addr.String(), addr, now, map[string]string{
		"name":     participant.Name,
		"role":     strconv.Itoa(int(participant.Role)),
		"verified": "false",
	}))
	if s.metrics != nil {
		s.metrics.IncrementRegistered()
		s.metrics.ObserveRegister(start)
	}
	return participant, nil
}

// Verify sets the target's verification flag. Only the registry
// administrator may call it; verifying twice is a reported error so caller
// bugs surface.
func (s *Service) Verify(ctx context.Context, caller, target domain.Address) (models.Participant, error) {
	ctx, span := s.tracer.Start(ctx, "identity.Verify")
	defer span.End()

	if err := authz.CheckAdmin(s.admin, caller); err != nil {
		return models.Participant{}, s.reject(ctx, err)
	}

	var participant models.Participant
	err := s.ledger.Update(ctx, func(tx store.Txn) error {
		p, err := tx.Participant(target)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "target address is not registered")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "resolve participant")
		}
		if err := p.CanVerify(); err != nil {
			return err
		}
		p.ApplyVerification()
		if err := tx.PutParticipant(p); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "store participant")
		}
		participant = p
		return nil
	})
	if err != nil {
		return models.Participant{}, s.reject(ctx, err)
	}

	s.emit(ctx, eventlog.New(eventlog.KindParticipantVerified, target.String(), caller, requestcontext.Now(ctx), map[string]string{
		"verified": "true",
	}))
	if s.metrics != nil {
		s.metrics.IncrementVerified()
	}
	return participant, nil
}

// Lookup returns the record for addr, or not_found.
func (s *Service) Lookup(ctx context.Context, addr domain.Address) (models.Participant, error) {
	ctx, span := s.tracer.Start(ctx, "identity.Lookup")
	defer span.End()

	p, err := s.ledger.GetParticipant(ctx, addr)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Participant{}, dErrors.New(dErrors.CodeNotFound, "participant not found")
		}
		return models.Participant{}, dErrors.Wrap(err, dErrors.CodeInternal, "load participant")
	}
	return p, nil
}

// List returns a consistent snapshot of all participants in registration
// order.
func (s *Service) List(ctx context.Context) ([]models.Participant, error) {
	ctx, span := s.tracer.Start(ctx, "identity.List")
	defer span.End()

	participants, err := s.ledger.ListParticipants(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list participants")
	}
	return participants, nil
}

func (s *Service) emit(ctx context.Context, event eventlog.Event) {
	if s.events != nil {
		s.events.Emit(ctx, event)
	}
}

func (s *Service) reject(ctx context.Context, err error) error {
	code := dErrors.CodeOf(err)
	if s.metrics != nil {
		s.metrics.IncrementRejection(string(code))
	}
	if s.logger != nil && code == dErrors.CodeInternal {
		s.logger.ErrorContext(ctx, "identity command failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	return err
}
