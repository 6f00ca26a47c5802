//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	identity "supplytrace/internal/identity/models"
	"supplytrace/internal/ledger/store"
	product "supplytrace/internal/product/models"
	"supplytrace/pkg/domain"
	"supplytrace/pkg/platform/sentinel"
	"supplytrace/pkg/testutil/containers"
)

var (
	makerAdr = domain.Address("0xab5801a7d398351b8be11c439e05c5b3259aec9b")
	distAdr  = domain.Address("0x2222222222222222222222222222222222222222")
)

type PostgresLedgerSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresLedgerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresLedgerSuite))
}

func (s *PostgresLedgerSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresLedgerSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "participants", "products"))
	_, err := s.postgres.DB.ExecContext(ctx,
		`UPDATE ledger_counters SET value = 0 WHERE name = 'product_id'`)
	s.Require().NoError(err)
}

func (s *PostgresLedgerSuite) seedParticipant(addr domain.Address, role identity.Role, verified bool) identity.Participant {
	p, err := identity.NewParticipant(addr, "P "+role.String(), role, time.Now().UTC())
	s.Require().NoError(err)
	if verified {
		p.ApplyVerification()
	}
	s.Require().NoError(s.store.Update(context.Background(), func(tx store.Txn) error {
		return tx.CreateParticipant(p)
	}))
	return p
}

func (s *PostgresLedgerSuite) createProduct() product.Product {
	var created product.Product
	err := s.store.Update(context.Background(), func(tx store.Txn) error {
		id, err := tx.NextProductID()
		if err != nil {
			return err
		}
		p, err := product.NewProduct(id, "Widget", "B-100", 1999, makerAdr, time.Now().UTC())
		if err != nil {
			return err
		}
		created = p
		return tx.PutProduct(p)
	})
	s.Require().NoError(err)
	return created
}

func (s *PostgresLedgerSuite) TestParticipantRoundTrip() {
	ctx := context.Background()
	seeded := s.seedParticipant(makerAdr, identity.RoleManufacturer, true)

	got, err := s.store.GetParticipant(ctx, makerAdr)
	s.Require().NoError(err)
	s.Equal(seeded.Address, got.Address)
	s.Equal(seeded.Name, got.Name)
	s.Equal(seeded.Role, got.Role)
	s.True(got.Verified)
	s.WithinDuration(seeded.RegisteredAt, got.RegisteredAt, time.Millisecond)

	_, err = s.store.GetParticipant(ctx, distAdr)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresLedgerSuite) TestProductRoundTrip() {
	ctx := context.Background()
	created := s.createProduct()
	s.Equal(domain.ProductID(1), created.ID)

	got, err := s.store.GetProduct(ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(created.ID, got.ID)
	s.Equal(created.BatchNumber, got.BatchNumber)
	s.Equal(makerAdr, got.Manufacturer)
	s.Equal(makerAdr, got.CurrentOwner)
	s.Equal(product.StatusManufactured, got.Status)
	s.True(got.Authentic)
	s.Equal(uint64(1999), got.Price)
}

func (s *PostgresLedgerSuite) TestRollbackLeavesNoTrace() {
	ctx := context.Background()
	boom := errors.New("validation failed")

	err := s.store.Update(ctx, func(tx store.Txn) error {
		if _, err := tx.NextProductID(); err != nil {
			return err
		}
		p, err := product.NewProduct(1, "Widget", "B-100", 0, makerAdr, time.Now().UTC())
		if err != nil {
			return err
		}
		if err := tx.PutProduct(p); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	_, err = s.store.GetProduct(ctx, 1)
	s.ErrorIs(err, sentinel.ErrNotFound)

	total, err := s.store.TotalProducts(ctx)
	s.Require().NoError(err)
	s.Zero(total, "rolled back command must not consume an id")

	// The next successful create reuses id 1.
	created := s.createProduct()
	s.Equal(domain.ProductID(1), created.ID)
}

func (s *PostgresLedgerSuite) TestConcurrentCreatesIssueUniqueIDs() {
	const goroutines = 10
	var wg sync.WaitGroup
	ids := make(chan domain.ProductID, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Update(context.Background(), func(tx store.Txn) error {
				id, err := tx.NextProductID()
				if err != nil {
					return err
				}
				p, err := product.NewProduct(id, "Widget", "B-1", 0, makerAdr, time.Now().UTC())
				if err != nil {
					return err
				}
				if err := tx.PutProduct(p); err != nil {
					return err
				}
				ids <- id
				return nil
			})
			s.NoError(err)
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[domain.ProductID]bool)
	for id := range ids {
		s.False(seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	s.Len(seen, goroutines)
}

func (s *PostgresLedgerSuite) TestConcurrentRegistrationsOneWins() {
	// Both racers pass the existence check before either commits; the insert
	// must then surface the conflict for the loser instead of merging its
	// record into the winner's.
	const goroutines = 8
	var wg sync.WaitGroup
	results := make(chan error, goroutines)

	for i := 0; i < goroutines; i++ {
		p, err := identity.NewParticipant(makerAdr, "Racer "+string(rune('A'+i)), identity.RoleDistributor, time.Now().UTC())
		s.Require().NoError(err)
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.store.Update(context.Background(), func(tx store.Txn) error {
				if _, err := tx.Participant(makerAdr); err == nil {
					return sentinel.ErrConflict
				} else if !errors.Is(err, sentinel.ErrNotFound) {
					return err
				}
				return tx.CreateParticipant(p)
			})
		}()
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, sentinel.ErrConflict):
			conflicts++
		default:
			s.Failf("unexpected error", "%v", err)
		}
	}
	s.Equal(1, wins)
	s.Equal(goroutines-1, conflicts)

	participants, err := s.store.ListParticipants(context.Background())
	s.Require().NoError(err)
	s.Len(participants, 1)
}

func (s *PostgresLedgerSuite) TestListOrdering() {
	ctx := context.Background()
	s.seedParticipant(distAdr, identity.RoleDistributor, false)
	s.seedParticipant(makerAdr, identity.RoleManufacturer, false)

	participants, err := s.store.ListParticipants(ctx)
	s.Require().NoError(err)
	s.Require().Len(participants, 2)
	s.Equal(distAdr, participants[0].Address, "registration order, not address order")
	s.Equal(makerAdr, participants[1].Address)

	for i := 0; i < 3; i++ {
		s.createProduct()
	}
	products, err := s.store.ListProducts(ctx)
	s.Require().NoError(err)
	s.Require().Len(products, 3)
	for i, p := range products {
		s.Equal(domain.ProductID(i+1), p.ID)
	}
}

func (s *PostgresLedgerSuite) TestCustodyUpdatePersists() {
	ctx := context.Background()
	created := s.createProduct()

	err := s.store.Update(ctx, func(tx store.Txn) error {
		p, err := tx.Product(created.ID)
		if err != nil {
			return err
		}
		p.ApplyTransfer(distAdr, product.StatusWithDistributor)
		return tx.PutProduct(p)
	})
	s.Require().NoError(err)

	got, err := s.store.GetProduct(ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(distAdr, got.CurrentOwner)
	s.Equal(product.StatusWithDistributor, got.Status)
	s.Equal(makerAdr, got.Manufacturer)
}
