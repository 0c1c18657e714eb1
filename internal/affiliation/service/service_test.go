package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/cdobey/legitify/internal/affiliation/models"
	"github.com/cdobey/legitify/internal/affiliation/store"
	"github.com/cdobey/legitify/internal/audit"
	"github.com/cdobey/legitify/internal/directory"
	id "github.com/cdobey/legitify/pkg/domain"
	dErrors "github.com/cdobey/legitify/pkg/domain-errors"
)

type AffiliationServiceSuite struct {
	suite.Suite

	svc   *Service
	store *store.InMemoryStore
	dir   *directory.InMemoryStore

	holderID  id.UserID
	issuerID  id.UserID
	issuer2ID id.UserID
	orgID     id.OrgID
	otherOrg  id.OrgID
}

func (s *AffiliationServiceSuite) SetupTest() {
	s.store = store.NewInMemoryStore()
	s.dir = directory.NewInMemoryStore()

	s.holderID = id.NewUserID()
	s.issuerID = id.NewUserID()
	s.issuer2ID = id.NewUserID()
	s.orgID = id.NewOrgID()
	s.otherOrg = id.NewOrgID()

	s.dir.Put(&directory.User{ID: s.holderID, Username: "alice", Email: "alice@example.com", Role: directory.RoleHolder})
	s.dir.Put(&directory.User{ID: s.issuerID, Username: "registrar", Email: "registrar@uni.example", Role: directory.RoleIssuer, OrgID: s.orgID})
	s.dir.Put(&directory.User{ID: s.issuer2ID, Username: "dean", Email: "dean@uni.example", Role: directory.RoleIssuer, OrgID: s.orgID})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.svc = NewService(s.store, s.dir, audit.NewPublisher(audit.NewInMemoryStore()), logger)
}

func TestAffiliationServiceSuite(t *testing.T) {
	suite.Run(t, new(AffiliationServiceSuite))
}

func (s *AffiliationServiceSuite) request(userID id.UserID, requestedBy id.UserID, scope models.Scope) *models.Affiliation {
	affiliation, err := s.svc.Request(context.Background(), RequestCommand{
		UserID:      userID,
		OrgID:       s.orgID,
		Scope:       scope,
		RequestedBy: requestedBy,
	})
	s.Require().NoError(err)
	return affiliation
}

func (s *AffiliationServiceSuite) TestRequestBySubjectStartsPending() {
	affiliation := s.request(s.holderID, s.holderID, models.ScopeAffiliate)

	s.Equal(models.StatusPending, affiliation.Status)
	s.Equal(models.PartySubject, affiliation.InitiatedBy)
	s.Equal(s.orgID, affiliation.OrgID)
}

func (s *AffiliationServiceSuite) TestRequestByOrgSideRecordsInitiator() {
	affiliation := s.request(s.holderID, s.issuerID, models.ScopeAffiliate)

	s.Equal(models.PartyOrg, affiliation.InitiatedBy)
}

func (s *AffiliationServiceSuite) TestRequestForAnotherUserRequiresOrgMembership() {
	// A holder cannot open a request on someone else's behalf.
	_, err := s.svc.Request(context.Background(), RequestCommand{
		UserID:      s.issuerID,
		OrgID:       s.orgID,
		Scope:       models.ScopeAffiliate,
		RequestedBy: s.holderID,
	})

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *AffiliationServiceSuite) TestDuplicateRequestRejected() {
	s.request(s.holderID, s.holderID, models.ScopeAffiliate)

	_, err := s.svc.Request(context.Background(), RequestCommand{
		UserID:      s.holderID,
		OrgID:       s.orgID,
		Scope:       models.ScopeAffiliate,
		RequestedBy: s.holderID,
	})

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeDuplicateRequest))
}

func (s *AffiliationServiceSuite) TestSameUserDifferentScopeAllowed() {
	s.request(s.issuer2ID, s.issuer2ID, models.ScopeMember)
	affiliation := s.request(s.issuer2ID, s.issuer2ID, models.ScopeAffiliate)

	s.Equal(models.ScopeAffiliate, affiliation.Scope)
}

func (s *AffiliationServiceSuite) TestCounterpartyAcceptActivates() {
	affiliation := s.request(s.holderID, s.holderID, models.ScopeAffiliate)

	err := s.svc.Respond(context.Background(), affiliation.ID, s.issuerID, true)

	s.Require().NoError(err)
	stored, err := s.svc.Get(context.Background(), affiliation.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, stored.Status)
	s.Require().NotNil(stored.UpdatedAt)
}

func (s *AffiliationServiceSuite) TestInitiatorCannotApproveOwnRequest() {
	affiliation := s.request(s.holderID, s.holderID, models.ScopeAffiliate)

	err := s.svc.Respond(context.Background(), affiliation.ID, s.holderID, true)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	stored, getErr := s.svc.Get(context.Background(), affiliation.ID)
	s.Require().NoError(getErr)
	s.Equal(models.StatusPending, stored.Status)
}

func (s *AffiliationServiceSuite) TestOutsiderCannotRespond() {
	affiliation := s.request(s.holderID, s.holderID, models.ScopeAffiliate)
	outsider := id.NewUserID()
	s.dir.Put(&directory.User{ID: outsider, Username: "rando", Email: "rando@example.com", Role: directory.RoleIssuer, OrgID: s.otherOrg})

	err := s.svc.Respond(context.Background(), affiliation.ID, outsider, true)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *AffiliationServiceSuite) TestOrgInitiatedNeedsSubjectResponse() {
	affiliation := s.request(s.holderID, s.issuerID, models.ScopeAffiliate)

	// Another org member is still the wrong side.
	err := s.svc.Respond(context.Background(), affiliation.ID, s.issuer2ID, true)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	s.Require().NoError(s.svc.Respond(context.Background(), affiliation.ID, s.holderID, true))
	stored, err := s.svc.Get(context.Background(), affiliation.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, stored.Status)
}

func (s *AffiliationServiceSuite) TestRespondTwiceIsInvalidTransition() {
	affiliation := s.request(s.holderID, s.holderID, models.ScopeAffiliate)
	s.Require().NoError(s.svc.Respond(context.Background(), affiliation.ID, s.issuerID, false))

	err := s.svc.Respond(context.Background(), affiliation.ID, s.issuerID, true)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	stored, getErr := s.svc.Get(context.Background(), affiliation.ID)
	s.Require().NoError(getErr)
	s.Equal(models.StatusRejected, stored.Status)
}

func (s *AffiliationServiceSuite) TestRespondUnknownAffiliation() {
	err := s.svc.Respond(context.Background(), id.NewAffiliationID(), s.issuerID, true)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *AffiliationServiceSuite) TestRejectedRequestCanBeReopened() {
	affiliation := s.request(s.holderID, s.holderID, models.ScopeAffiliate)
	s.Require().NoError(s.svc.Respond(context.Background(), affiliation.ID, s.issuerID, false))

	reopened := s.request(s.holderID, s.holderID, models.ScopeAffiliate)
	s.NotEqual(affiliation.ID, reopened.ID)
	s.Equal(models.StatusPending, reopened.Status)
}

func (s *AffiliationServiceSuite) TestHasActiveRequiresActiveMembership() {
	active, err := s.svc.HasActive(context.Background(), s.issuer2ID, s.orgID)
	s.Require().NoError(err)
	s.False(active)

	affiliation := s.request(s.issuer2ID, s.issuer2ID, models.ScopeMember)
	active, err = s.svc.HasActive(context.Background(), s.issuer2ID, s.orgID)
	s.Require().NoError(err)
	s.False(active, "pending membership is not active")

	s.Require().NoError(s.svc.Respond(context.Background(), affiliation.ID, s.issuerID, true))
	active, err = s.svc.HasActive(context.Background(), s.issuer2ID, s.orgID)
	s.Require().NoError(err)
	s.True(active)
}

func (s *AffiliationServiceSuite) TestListPendingForOrg() {
	s.request(s.holderID, s.holderID, models.ScopeAffiliate)

	pending, err := s.svc.ListPendingForOrg(context.Background(), s.issuerID, s.orgID)
	s.Require().NoError(err)
	s.Len(pending, 1)

	_, err = s.svc.ListPendingForOrg(context.Background(), s.holderID, s.orgID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}
