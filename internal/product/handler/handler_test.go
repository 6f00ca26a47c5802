package handler

import (
	"context"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	identity "supplytrace/internal/identity/models"
	identityservice "supplytrace/internal/identity/service"
	"supplytrace/internal/ledger/store"
	"supplytrace/internal/product/models"
	"supplytrace/internal/product/service"
	"supplytrace/pkg/domain"
	"supplytrace/pkg/testutil"
)

const (
	adminAddr    = "0x1111111111111111111111111111111111111111"
	makerAddr    = "0xab5801a7d398351b8be11c439e05c5b3259aec9b"
	distAddr     = "0x2222222222222222222222222222222222222222"
	consumerAddr = "0x4444444444444444444444444444444444444444"
)

type ProductHandlerSuite struct {
	suite.Suite
	identity *identityservice.Service
	router   chi.Router
}

func TestProductHandlerSuite(t *testing.T) {
	suite.Run(t, new(ProductHandlerSuite))
}

func (s *ProductHandlerSuite) SetupTest() {
	ledger := store.NewInMemory()
	admin := domain.Address(adminAddr)
	s.identity = identityservice.New(ledger, admin)
	svc := service.New(ledger, admin, service.WithLogger(slog.Default()))

	s.router = chi.NewRouter()
	New(svc, slog.Default()).Register(s.router)
}

func (s *ProductHandlerSuite) seedVerified(addr string, role identity.Role) {
	ctx := context.Background()
	_, err := s.identity.Register(ctx, domain.Address(addr), "P "+role.String(), role)
	s.Require().NoError(err)
	_, err = s.identity.Verify(ctx, domain.Address(adminAddr), domain.Address(addr))
	s.Require().NoError(err)
}

func (s *ProductHandlerSuite) registerProduct() *models.Product {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/products", registerRequest{
		CallerAddress: makerAddr,
		Name:          "Widget",
		BatchNumber:   "B-100",
		Price:         1999,
	})
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	return testutil.UnmarshalResponse[models.Product](s.T(), rr)
}

func (s *ProductHandlerSuite) TestRegister() {
	s.seedVerified(makerAddr, identity.RoleManufacturer)

	p := s.registerProduct()
	s.Equal(domain.ProductID(1), p.ID)
	s.Equal(domain.Address(makerAddr), p.CurrentOwner)
	s.Equal(models.StatusManufactured, p.Status)
	s.True(p.Authentic)
}

func (s *ProductHandlerSuite) TestRegisterRejections() {
	s.Run("unregistered caller", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/products", registerRequest{
			CallerAddress: makerAddr, Name: "Widget", BatchNumber: "B-100",
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "not_registered")
	})

	s.Run("empty name", func() {
		s.seedVerified(makerAddr, identity.RoleManufacturer)
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/products", registerRequest{
			CallerAddress: makerAddr, Name: "", BatchNumber: "B-100",
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})

	s.Run("malformed body", func() {
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/products", "{")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})
}

func (s *ProductHandlerSuite) TestTransfer() {
	s.seedVerified(makerAddr, identity.RoleManufacturer)
	s.seedVerified(distAddr, identity.RoleDistributor)
	p := s.registerProduct()

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/products/"+p.ID.String()+"/transfer", transferRequest{
		CallerAddress: makerAddr,
		ToAddress:     distAddr,
	})
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusOK(s.T(), rr)

	got := testutil.UnmarshalResponse[models.Product](s.T(), rr)
	s.Equal(domain.Address(distAddr), got.CurrentOwner)
	s.Equal(models.StatusWithDistributor, got.Status)
}

func (s *ProductHandlerSuite) TestTransferRejections() {
	s.seedVerified(makerAddr, identity.RoleManufacturer)
	p := s.registerProduct()

	s.Run("invalid product id", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/products/abc/transfer", transferRequest{
			CallerAddress: makerAddr, ToAddress: distAddr,
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("unknown product", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/products/99/transfer", transferRequest{
			CallerAddress: makerAddr, ToAddress: distAddr,
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})

	s.Run("unverified recipient", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/products/"+p.ID.String()+"/transfer", transferRequest{
			CallerAddress: makerAddr, ToAddress: distAddr,
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "recipient_not_verified")
	})

	s.Run("caller is not the owner", func() {
		s.seedVerified(distAddr, identity.RoleDistributor)
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/products/"+p.ID.String()+"/transfer", transferRequest{
			CallerAddress: distAddr, ToAddress: distAddr,
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "not_owner")
	})
}

func (s *ProductHandlerSuite) TestSoldProductRejectsTransfer() {
	s.seedVerified(makerAddr, identity.RoleManufacturer)
	s.seedVerified(consumerAddr, identity.RoleConsumer)
	p := s.registerProduct()

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/products/"+p.ID.String()+"/transfer", transferRequest{
		CallerAddress: makerAddr, ToAddress: consumerAddr,
	})
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusOK(s.T(), rr)
	sold := testutil.UnmarshalResponse[models.Product](s.T(), rr)
	s.Equal(models.StatusSold, sold.Status)

	req = testutil.NewJSONRequest(s.T(), http.MethodPost, "/products/"+p.ID.String()+"/transfer", transferRequest{
		CallerAddress: consumerAddr, ToAddress: consumerAddr,
	})
	rr = testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "invalid_transition")
}

func (s *ProductHandlerSuite) TestUpdatePrice() {
	s.seedVerified(makerAddr, identity.RoleManufacturer)
	p := s.registerProduct()

	req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/products/"+p.ID.String()+"/price", priceRequest{
		CallerAddress: makerAddr,
		Price:         2500,
	})
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusOK(s.T(), rr)
	got := testutil.UnmarshalResponse[models.Product](s.T(), rr)
	s.Equal(uint64(2500), got.Price)

	req = testutil.NewJSONRequest(s.T(), http.MethodPut, "/products/"+p.ID.String()+"/price", priceRequest{
		CallerAddress: distAddr,
		Price:         1,
	})
	rr = testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "not_owner")
}

func (s *ProductHandlerSuite) TestMarkCounterfeit() {
	s.seedVerified(makerAddr, identity.RoleManufacturer)
	p := s.registerProduct()

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/products/"+p.ID.String()+"/counterfeit", counterfeitRequest{
		CallerAddress: makerAddr,
	})
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusOK(s.T(), rr)
	got := testutil.UnmarshalResponse[models.Product](s.T(), rr)
	s.False(got.Authentic)

	req = testutil.NewJSONRequest(s.T(), http.MethodPost, "/products/"+p.ID.String()+"/counterfeit", counterfeitRequest{
		CallerAddress: makerAddr,
	})
	rr = testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "already_flagged")
}

func (s *ProductHandlerSuite) TestGetAndAuthenticity() {
	s.seedVerified(makerAddr, identity.RoleManufacturer)
	p := s.registerProduct()

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/products/"+p.ID.String()))
	testutil.AssertStatusOK(s.T(), rr)
	got := testutil.UnmarshalResponse[models.Product](s.T(), rr)
	s.Equal(p.ID, got.ID)

	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/products/"+p.ID.String()+"/authenticity"))
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "authentic", true)

	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/products/99"))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
}

func (s *ProductHandlerSuite) TestListAndTotal() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/products"))
	testutil.AssertStatusOK(s.T(), rr)
	s.JSONEq("[]", string(testutil.ReadBody(s.T(), rr)))

	s.seedVerified(makerAddr, identity.RoleManufacturer)
	s.registerProduct()
	s.registerProduct()

	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/products"))
	testutil.AssertStatusOK(s.T(), rr)
	products := testutil.UnmarshalResponse[[]models.Product](s.T(), rr)
	s.Len(*products, 2)

	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/products/total"))
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "total", float64(2))
}
