// Package service implements the product registry: creation, custody
// transfer, price revision, authenticity marking, and the read-only query
// layer over product records.
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
	identity "supplytrace/internal/identity/models"
	"supplytrace/internal/ledger/authz"
	"supplytrace/internal/ledger/store"
	productmetrics "supplytrace/internal/product/metrics"
	"supplytrace/internal/product/models"
	"supplytrace/pkg/domain"
	dErrors "supplytrace/pkg/domain-errors"
	"supplytrace/pkg/platform/sentinel"
	"supplytrace/pkg/requestcontext"
)

// Service orchestrates product lifecycle against the shared ledger store.
// Every mutating command validates its caller through the command validator
// before any record field changes; a rejection leaves the ledger untouched.
type Service struct {
	ledger  store.Ledger
	admin   domain.Address
	logger  *slog.Logger
	events  *eventlog.Emitter
	metrics *productmetrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithEmitter(events *eventlog.Emitter) Option {
	return func(s *Service) { s.events = events }
}

func WithMetrics(m *productmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(ledger store.Ledger, admin domain.Address, opts ...Option) *Service {
	s := &Service{
		ledger: ledger,
		admin:  admin,
		tracer: otel.Tracer("supplytrace/product"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a product owned by the caller, who must be a verified
// manufacturer. The id counter only advances on success, so rejected
// attempts never burn an id.
func (s *Service) Register(ctx context.Context, caller domain.Address, name, batchNumber string, price int64) (models.Product, error) {
	ctx, span := s.tracer.Start(ctx, "product.Register")
	defer span.End()

	now := requestcontext.Now(ctx)
	var created models.Product
	err := s.ledger.Update(ctx, func(tx store.Txn) error {
		if _, err := authz.CheckCaller(tx, caller, authz.Requirement{
			Role:     identity.RoleManufacturer,
			Verified: true,
		}); err != nil {
			return err
		}
		id, err := tx.NextProductID()
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "assign product id")
		}
		p, err := models.NewProduct(id, name, batchNumber, price, caller, now)
		if err != nil {
			return err
		}
		if err := tx.PutProduct(p); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "store product")
		}
		created = p
		return nil
	})
	if err != nil {
		return models.Product{}, s.reject(ctx, err)
	}

	s.emit(ctx, eventlog.New(eventlog.KindProductRegistered, created.ID.String(), caller, now, map[string]string{
		"name":         created.Name,
		"batch_number": created.BatchNumber,
		"price":        strconv.FormatUint(created.Price, 10),
		"status":       strconv.Itoa(int(created.Status)),
	}))
	if s.metrics != nil {
		s.metrics.IncrementRegistered()
	}
	return created, nil
}

// Transfer moves custody of the product to a verified recipient. The
// recipient's role decides the resulting status through the fixed transition
// table; transfers with no defined successor status are rejected.
func (s *Service) Transfer(ctx context.Context, caller domain.Address, id domain.ProductID, to domain.Address) (models.Product, error) {
	ctx, span := s.tracer.Start(ctx, "product.Transfer")
	defer span.End()
	start := time.Now()

	var transferred models.Product
	err := s.ledger.Update(ctx, func(tx store.Txn) error {
		p, err := tx.Product(id)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "product not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "resolve product")
		}
		if err := authz.CheckOwner(p, caller); err != nil {
			return err
		}
		recipient, err := tx.Participant(to)
		if err != nil || !recipient.Verified {
			if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.Wrap(err, dErrors.CodeInternal, "resolve recipient")
			}
			return dErrors.New(dErrors.CodeRecipientNotVerified, "recipient is not a verified participant")
		}
		status, err := p.CanTransferTo(recipient.Role)
		if err != nil {
			return err
		}
		p.ApplyTransfer(to, status)
		if err := tx.PutProduct(p); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "store product")
		}
		transferred = p
		return nil
	})
	if err != nil {
		return models.Product{}, s.reject(ctx, err)
	}

	s.emit(ctx, eventlog.New(eventlog.KindProductTransferred, id.String(), caller, requestcontext.Now(ctx), map[string]string{
		"from":   caller.String(),
		"to":     to.String(),
		"status": strconv.Itoa(int(transferred.Status)),
	}))
	if s.metrics != nil {
		s.metrics.IncrementTransfers()
		s.metrics.ObserveTransfer(start)
	}
	return transferred, nil
}

// UpdatePrice revises the stored price. Only the current owner may call it;
// status is untouched.
func (s *Service) UpdatePrice(ctx context.Context, caller domain.Address, id domain.ProductID, price int64) (models.Product, error) {
	ctx, span := s.tracer.Start(ctx, "product.UpdatePrice")
	defer span.End()

	var updated models.Product
	err := s.ledger.Update(ctx, func(tx store.Txn) error {
		p, err := tx.Product(id)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "product not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "resolve product")
		}
		if err := authz.CheckOwner(p, caller); err != nil {
			return err
		}
		if err := p.SetPrice(price); err != nil {
			return err
		}
		if err := tx.PutProduct(p); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "store product")
		}
		updated = p
		return nil
	})
	if err != nil {
		return models.Product{}, s.reject(ctx, err)
	}

	s.emit(ctx, eventlog.New(eventlog.KindPriceUpdated, id.String(), caller, requestcontext.Now(ctx), map[string]string{
		"price": strconv.FormatUint(updated.Price, 10),
	}))
	if s.metrics != nil {
		s.metrics.IncrementPriceUpdates()
	}
	return updated, nil
}

// MarkCounterfeit permanently revokes a product's authenticity. Only the
// original manufacturer or the registry administrator may repudiate it, and
// only once.
func (s *Service) MarkCounterfeit(ctx context.Context, caller domain.Address, id domain.ProductID) (models.Product, error) {
	ctx, span := s.tracer.Start(ctx, "product.MarkCounterfeit")
	defer span.End()

	var flagged models.Product
	err := s.ledger.Update(ctx, func(tx store.Txn) error {
		p, err := tx.Product(id)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "product not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "resolve product")
		}
		if caller != p.Manufacturer {
			if err := authz.CheckAdmin(s.admin, caller); err != nil {
				return dErrors.New(dErrors.CodeNotAuthorized, "only the manufacturer or the administrator may flag a product")
			}
		}
		if err := p.CanFlag(); err != nil {
			return err
		}
		p.ApplyFlag()
		if err := tx.PutProduct(p); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "store product")
		}
		flagged = p
		return nil
	})
	if err != nil {
		return models.Product{}, s.reject(ctx, err)
	}

	s.emit(ctx, eventlog.New(eventlog.KindCounterfeitMarked, id.String(), caller, requestcontext.Now(ctx), map[string]string{
		"authentic": "false",
	}))
	if s.metrics != nil {
		s.metrics.IncrementCounterfeitFlags()
	}
	return flagged, nil
}

// Get returns the record for id, or not_found.
func (s *Service) Get(ctx context.Context, id domain.ProductID) (models.Product, error) {
	ctx, span := s.tracer.Start(ctx, "product.Get")
	defer span.End()

	p, err := s.ledger.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Product{}, dErrors.New(dErrors.CodeNotFound, "product not found")
		}
		return models.Product{}, dErrors.Wrap(err, dErrors.CodeInternal, "load product")
	}
	return p, nil
}

// List returns a consistent snapshot of all products in id order.
func (s *Service) List(ctx context.Context) ([]models.Product, error) {
	ctx, span := s.tracer.Start(ctx, "product.List")
	defer span.End()

	products, err := s.ledger.ListProducts(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list products")
	}
	return products, nil
}

// Total returns the id counter's value: the count of ever-created products.
func (s *Service) Total(ctx context.Context) (uint64, error) {
	ctx, span := s.tracer.Start(ctx, "product.Total")
	defer span.End()

	total, err := s.ledger.TotalProducts(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "read product counter")
	}
	return total, nil
}

// Authenticity is the read-only projection returned by VerifyAuthenticity.
type Authenticity struct {
	Authentic    bool             `json:"authentic"`
	Manufacturer domain.Address   `json:"manufacturer"`
	CurrentOwner domain.Address   `json:"current_owner"`
	Status       models.Status    `json:"status"`
	ProductID    domain.ProductID `json:"product_id"`
}

// VerifyAuthenticity answers the provenance check without mutating anything;
// flagging is a separate command.
func (s *Service) VerifyAuthenticity(ctx context.Context, id domain.ProductID) (Authenticity, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return Authenticity{}, err
	}
	return Authenticity{
		Authentic:    p.Authentic,
		Manufacturer: p.Manufacturer,
		CurrentOwner: p.CurrentOwner,
		Status:       p.Status,
		ProductID:    p.ID,
	}, nil
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
		s.logger.ErrorContext(ctx, "product command failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	return err
}
