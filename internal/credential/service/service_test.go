package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/cdobey/legitify/internal/audit"
	"github.com/cdobey/legitify/internal/credential/models"
	"github.com/cdobey/legitify/internal/credential/store"
	"github.com/cdobey/legitify/internal/directory"
	"github.com/cdobey/legitify/internal/hash"
	ledgermocks "github.com/cdobey/legitify/internal/ledger/mocks"
	id "github.com/cdobey/legitify/pkg/domain"
	dErrors "github.com/cdobey/legitify/pkg/domain-errors"
)

// stubAffiliations satisfies AffiliationChecker with a fixed answer per user.
type stubAffiliations struct {
	active map[id.UserID]bool
	err    error
}

func (s *stubAffiliations) HasActive(_ context.Context, userID id.UserID, _ id.OrgID) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.active[userID], nil
}

type CredentialServiceSuite struct {
	suite.Suite

	ctrl      *gomock.Controller
	connector *ledgermocks.MockConnector
	session   *ledgermocks.MockSession

	svc          *Service
	store        *store.InMemoryStore
	dir          *directory.InMemoryStore
	affiliations *stubAffiliations

	issuerID id.UserID
	orgID    id.OrgID
	holderID id.UserID
}

func (s *CredentialServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.connector = ledgermocks.NewMockConnector(s.ctrl)
	s.session = ledgermocks.NewMockSession(s.ctrl)

	s.store = store.NewInMemoryStore()
	s.dir = directory.NewInMemoryStore()

	s.issuerID = id.NewUserID()
	s.orgID = id.NewOrgID()
	s.holderID = id.NewUserID()
	s.affiliations = &stubAffiliations{active: map[id.UserID]bool{s.issuerID: true}}

	s.dir.Put(&directory.User{ID: s.holderID, Username: "alice", Email: "alice@example.com", Role: directory.RoleHolder})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.svc = NewService(s.store, s.dir, s.affiliations, s.connector, hash.NewSHA256(), audit.NewPublisher(audit.NewInMemoryStore()), logger)
}

func TestCredentialServiceSuite(t *testing.T) {
	suite.Run(t, new(CredentialServiceSuite))
}

func (s *CredentialServiceSuite) issueCommand() IssueCommand {
	return IssueCommand{
		IssuerUserID:   s.issuerID,
		IssuerOrgID:    s.orgID,
		RecipientEmail: "alice@example.com",
		Title:          "BSc Computer Science",
		Type:           "degree",
		FileBytes:      []byte("%PDF-1.7 diploma"),
	}
}

func (s *CredentialServiceSuite) expectAnchor() {
	s.connector.EXPECT().Connect(gomock.Any()).Return(s.session, nil)
	s.session.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	s.session.EXPECT().Close().Return(nil)
}

func (s *CredentialServiceSuite) TestIssueAnchorsAndPersists() {
	s.expectAnchor()

	credential, err := s.svc.Issue(context.Background(), s.issueCommand())

	s.Require().NoError(err)
	s.Equal(models.StatusIssued, credential.Status)
	s.Equal(s.holderID, credential.HolderID)
	s.Equal(hash.NewSHA256().Hash([]byte("%PDF-1.7 diploma")), credential.ContentHash)
	s.Require().NotNil(credential.LedgerTimestamp)

	stored, err := s.store.FindByID(context.Background(), credential.ID)
	s.Require().NoError(err)
	s.Equal(credential.ContentHash, stored.ContentHash)
}

func (s *CredentialServiceSuite) TestIssueUnknownRecipient() {
	cmd := s.issueCommand()
	cmd.RecipientEmail = "nobody@example.com"

	_, err := s.svc.Issue(context.Background(), cmd)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *CredentialServiceSuite) TestIssueWithoutActiveAffiliation() {
	s.affiliations.active[s.issuerID] = false

	_, err := s.svc.Issue(context.Background(), s.issueCommand())

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *CredentialServiceSuite) TestIssueAbortsWhenAnchorFails() {
	s.connector.EXPECT().Connect(gomock.Any()).Return(s.session, nil)
	s.session.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("ledger down"))
	// The session is released even on the failure path.
	s.session.EXPECT().Close().Return(nil)

	_, err := s.svc.Issue(context.Background(), s.issueCommand())

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInfrastructureFault))

	// No partially issued credential is visible to the holder.
	credentials, listErr := s.store.ListByHolder(context.Background(), s.holderID)
	s.Require().NoError(listErr)
	s.Empty(credentials)
}

func (s *CredentialServiceSuite) TestIssueAbortsWhenConnectFails() {
	s.connector.EXPECT().Connect(gomock.Any()).Return(nil, errors.New("no ledger"))

	_, err := s.svc.Issue(context.Background(), s.issueCommand())

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInfrastructureFault))
}

func (s *CredentialServiceSuite) TestIssueRejectsOversizedDocument() {
	svc := NewService(s.store, s.dir, s.affiliations, s.connector, hash.NewSHA256(),
		audit.NewPublisher(audit.NewInMemoryStore()),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithMaxDocumentBytes(8))

	cmd := s.issueCommand()
	cmd.FileBytes = []byte("well over eight bytes")

	_, err := svc.Issue(context.Background(), cmd)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *CredentialServiceSuite) issueOne() *models.Credential {
	s.expectAnchor()
	credential, err := s.svc.Issue(context.Background(), s.issueCommand())
	s.Require().NoError(err)
	return credential
}

func (s *CredentialServiceSuite) TestAcceptByHolder() {
	credential := s.issueOne()
	s.expectAnchor() // best-effort re-anchor after the transition

	err := s.svc.Accept(context.Background(), credential.ID, s.holderID)

	s.Require().NoError(err)
	stored, err := s.store.FindByID(context.Background(), credential.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusAccepted, stored.Status)
}

func (s *CredentialServiceSuite) TestDenyIsTerminal() {
	credential := s.issueOne()
	s.expectAnchor()
	s.Require().NoError(s.svc.Deny(context.Background(), credential.ID, s.holderID))

	err := s.svc.Accept(context.Background(), credential.ID, s.holderID)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	stored, getErr := s.store.FindByID(context.Background(), credential.ID)
	s.Require().NoError(getErr)
	s.Equal(models.StatusDenied, stored.Status)
}

func (s *CredentialServiceSuite) TestAcceptByNonHolderForbidden() {
	credential := s.issueOne()
	stranger := id.NewUserID()

	err := s.svc.Accept(context.Background(), credential.ID, stranger)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	stored, getErr := s.store.FindByID(context.Background(), credential.ID)
	s.Require().NoError(getErr)
	s.Equal(models.StatusIssued, stored.Status, "forbidden response must not change state")
}

func (s *CredentialServiceSuite) TestAcceptSurvivesReanchorFailure() {
	credential := s.issueOne()
	s.connector.EXPECT().Connect(gomock.Any()).Return(nil, errors.New("ledger down"))

	err := s.svc.Accept(context.Background(), credential.ID, s.holderID)

	s.Require().NoError(err, "re-anchor is best effort")
	stored, getErr := s.store.FindByID(context.Background(), credential.ID)
	s.Require().NoError(getErr)
	s.Equal(models.StatusAccepted, stored.Status)
}

func (s *CredentialServiceSuite) TestAcceptUnknownCredential() {
	err := s.svc.Accept(context.Background(), id.CredentialID("missing_0_deadbeef"), s.holderID)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
