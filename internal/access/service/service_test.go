package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/cdobey/legitify/internal/access/models"
	"github.com/cdobey/legitify/internal/access/store"
	"github.com/cdobey/legitify/internal/audit"
	credmodels "github.com/cdobey/legitify/internal/credential/models"
	credstore "github.com/cdobey/legitify/internal/credential/store"
	"github.com/cdobey/legitify/internal/hash"
	ledgermocks "github.com/cdobey/legitify/internal/ledger/mocks"
	id "github.com/cdobey/legitify/pkg/domain"
	dErrors "github.com/cdobey/legitify/pkg/domain-errors"
)

type AccessServiceSuite struct {
	suite.Suite

	ctrl      *gomock.Controller
	connector *ledgermocks.MockConnector
	session   *ledgermocks.MockSession

	svc         *Service
	store       *store.InMemoryStore
	credentials *credstore.InMemoryStore

	holderID   id.UserID
	verifierID id.UserID
	credential *credmodels.Credential
}

func (s *AccessServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.connector = ledgermocks.NewMockConnector(s.ctrl)
	s.session = ledgermocks.NewMockSession(s.ctrl)

	s.store = store.NewInMemoryStore()
	s.credentials = credstore.NewInMemoryStore()

	s.holderID = id.NewUserID()
	s.verifierID = id.NewUserID()
	s.credential = s.seedCredential(credmodels.StatusAccepted)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.svc = NewService(s.store, s.credentials, s.connector, hash.NewSHA256(), audit.NewPublisher(audit.NewInMemoryStore()), logger)
}

func (s *AccessServiceSuite) seedCredential(status credmodels.Status) *credmodels.Credential {
	orgID := id.NewOrgID()
	fileBytes := []byte("%PDF-1.7 transcript")
	now := time.Now()
	credential, err := credmodels.New(
		credmodels.NewID(orgID, now),
		s.holderID,
		id.NewUserID(),
		orgID,
		"BSc Computer Science",
		"degree",
		hash.NewSHA256().Hash(fileBytes),
		fileBytes,
		now,
	)
	s.Require().NoError(err)
	credential.Status = status
	s.Require().NoError(s.credentials.Save(context.Background(), credential))
	return credential
}

func TestAccessServiceSuite(t *testing.T) {
	suite.Run(t, new(AccessServiceSuite))
}

func (s *AccessServiceSuite) request() *models.AccessRequest {
	request, err := s.svc.Request(context.Background(), s.credential.ID, s.verifierID)
	s.Require().NoError(err)
	return request
}

func (s *AccessServiceSuite) TestRequestStartsPending() {
	request := s.request()

	s.Equal(models.StatusPending, request.Status)
	s.Nil(request.GrantedAt)
}

func (s *AccessServiceSuite) TestRequestAgainstUnacceptedCredentialIsNotFound() {
	issued := s.seedCredential(credmodels.StatusIssued)

	_, err := s.svc.Request(context.Background(), issued.ID, s.verifierID)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound), "unaccepted credentials must be indistinguishable from absent ones")
}

func (s *AccessServiceSuite) TestDuplicateRequestRejected() {
	s.request()

	_, err := s.svc.Request(context.Background(), s.credential.ID, s.verifierID)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeDuplicateRequest))
}

func (s *AccessServiceSuite) TestDeniedRequestCanBeRetried() {
	request := s.request()
	s.Require().NoError(s.svc.Respond(context.Background(), request.ID, s.holderID, false))

	retried, err := s.svc.Request(context.Background(), s.credential.ID, s.verifierID)
	s.Require().NoError(err)
	s.NotEqual(request.ID, retried.ID)
}

func (s *AccessServiceSuite) TestGrantSetsGrantedAt() {
	request := s.request()

	s.Require().NoError(s.svc.Respond(context.Background(), request.ID, s.holderID, true))

	stored, err := s.store.FindByID(context.Background(), request.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusGranted, stored.Status)
	s.Require().NotNil(stored.GrantedAt)
}

func (s *AccessServiceSuite) TestDenyLeavesGrantedAtEmpty() {
	request := s.request()

	s.Require().NoError(s.svc.Respond(context.Background(), request.ID, s.holderID, false))

	stored, err := s.store.FindByID(context.Background(), request.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusDenied, stored.Status)
	s.Nil(stored.GrantedAt)
}

func (s *AccessServiceSuite) TestRespondByNonHolderForbidden() {
	request := s.request()

	err := s.svc.Respond(context.Background(), request.ID, s.verifierID, true)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *AccessServiceSuite) TestRespondTwiceIsInvalidTransition() {
	request := s.request()
	s.Require().NoError(s.svc.Respond(context.Background(), request.ID, s.holderID, true))

	err := s.svc.Respond(context.Background(), request.ID, s.holderID, false)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	stored, getErr := s.store.FindByID(context.Background(), request.ID)
	s.Require().NoError(getErr)
	s.Equal(models.StatusGranted, stored.Status)
}

func (s *AccessServiceSuite) grantedRequest() *models.AccessRequest {
	request := s.request()
	s.Require().NoError(s.svc.Respond(context.Background(), request.ID, s.holderID, true))
	return request
}

func (s *AccessServiceSuite) TestViewDisclosesAfterLedgerCheck() {
	request := s.grantedRequest()
	s.connector.EXPECT().Connect(gomock.Any()).Return(s.session, nil)
	s.session.EXPECT().Evaluate(gomock.Any(), s.credential.ID.String(), s.credential.ContentHash).Return(true, nil)
	s.session.EXPECT().Close().Return(nil)

	document, err := s.svc.View(context.Background(), request.ID, s.verifierID)

	s.Require().NoError(err)
	s.Equal(s.credential.FileBytes, document.FileBytes)
	s.Equal("BSc Computer Science", document.Title)
}

func (s *AccessServiceSuite) TestViewBeforeGrantForbidden() {
	request := s.request()

	_, err := s.svc.View(context.Background(), request.ID, s.verifierID)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *AccessServiceSuite) TestViewByAnotherVerifierForbidden() {
	request := s.grantedRequest()

	_, err := s.svc.View(context.Background(), request.ID, id.NewUserID())

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *AccessServiceSuite) TestViewRefusesWhenAnchorDiverges() {
	request := s.grantedRequest()
	s.connector.EXPECT().Connect(gomock.Any()).Return(s.session, nil)
	s.session.EXPECT().Evaluate(gomock.Any(), gomock.Any(), gomock.Any()).Return(false, nil)
	s.session.EXPECT().Close().Return(nil)

	_, err := s.svc.View(context.Background(), request.ID, s.verifierID)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *AccessServiceSuite) TestViewLedgerFailureIsInfrastructureFault() {
	request := s.grantedRequest()
	s.connector.EXPECT().Connect(gomock.Any()).Return(s.session, nil)
	s.session.EXPECT().Evaluate(gomock.Any(), gomock.Any(), gomock.Any()).Return(false, errors.New("ledger down"))
	// The session is released even when the check fails.
	s.session.EXPECT().Close().Return(nil)

	_, err := s.svc.View(context.Background(), request.ID, s.verifierID)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInfrastructureFault))
}
