package verification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/cdobey/legitify/internal/audit"
	credmodels "github.com/cdobey/legitify/internal/credential/models"
	credstore "github.com/cdobey/legitify/internal/credential/store"
	"github.com/cdobey/legitify/internal/directory"
	"github.com/cdobey/legitify/internal/hash"
	ledgermocks "github.com/cdobey/legitify/internal/ledger/mocks"
	id "github.com/cdobey/legitify/pkg/domain"
	dErrors "github.com/cdobey/legitify/pkg/domain-errors"
)

type EngineSuite struct {
	suite.Suite

	ctrl      *gomock.Controller
	connector *ledgermocks.MockConnector
	session   *ledgermocks.MockSession

	engine      *Engine
	dir         *directory.InMemoryStore
	credentials *credstore.InMemoryStore

	holderID id.UserID
	issuerID id.UserID
	orgID    id.OrgID
	docBytes []byte
	docHash  string
}

func (s *EngineSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.connector = ledgermocks.NewMockConnector(s.ctrl)
	s.session = ledgermocks.NewMockSession(s.ctrl)

	s.dir = directory.NewInMemoryStore()
	s.credentials = credstore.NewInMemoryStore()

	s.holderID = id.NewUserID()
	s.issuerID = id.NewUserID()
	s.orgID = id.NewOrgID()
	s.docBytes = []byte("%PDF-1.7 diploma")
	s.docHash = hash.NewSHA256().Hash(s.docBytes)

	s.dir.Put(&directory.User{ID: s.holderID, Username: "alice", Email: "alice@example.com", Role: directory.RoleHolder})
	s.dir.Put(&directory.User{ID: s.issuerID, Username: "registrar", Email: "registrar@uni.example", Role: directory.RoleIssuer, OrgID: s.orgID})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.engine = NewEngine(s.dir, s.credentials, s.connector, hash.NewSHA256(), audit.NewPublisher(audit.NewInMemoryStore()), logger)
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

// seedAccepted stores an accepted credential at the given creation time so
// each test controls candidate order.
func (s *EngineSuite) seedAccepted(contentHash string, createdAt time.Time) *credmodels.Credential {
	credential, err := credmodels.New(
		credmodels.NewID(s.orgID, createdAt),
		s.holderID,
		s.issuerID,
		s.orgID,
		"BSc Computer Science",
		"degree",
		contentHash,
		s.docBytes,
		createdAt,
	)
	s.Require().NoError(err)
	credential.Status = credmodels.StatusAccepted
	anchored := createdAt
	credential.LedgerTimestamp = &anchored
	s.Require().NoError(s.credentials.Save(context.Background(), credential))
	return credential
}

func (s *EngineSuite) expectConnect() {
	s.connector.EXPECT().Connect(gomock.Any()).Return(s.session, nil)
	s.session.EXPECT().Close().Return(nil)
}

func (s *EngineSuite) TestMatchReturnsDisplayFields() {
	anchoredAt := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
	credential := s.seedAccepted(s.docHash, anchoredAt)
	s.expectConnect()
	s.session.EXPECT().Evaluate(gomock.Any(), credential.ID.String(), s.docHash).Return(true, nil)

	result, err := s.engine.Verify(context.Background(), "alice@example.com", s.docBytes)

	s.Require().NoError(err)
	s.True(result.Matched)
	s.Require().NotNil(result.Match)
	s.Equal(credential.ID, result.Match.CredentialID)
	s.Equal("alice", result.Match.HolderName)
	s.Equal("registrar", result.Match.IssuerName)
	s.Equal("March 14, 2026", result.Match.LedgerTimestamp)
	s.Equal(s.docBytes, result.Match.FileBytes)
}

func (s *EngineSuite) TestUnknownEmailIsNegativeResult() {
	result, err := s.engine.Verify(context.Background(), "nobody@example.com", s.docBytes)

	s.Require().NoError(err, "an unknown email is an answer, not a failure")
	s.False(result.Matched)
	s.Equal(MessageNoUser, result.Message)
}

func (s *EngineSuite) TestNoCandidatesIsNoMatch() {
	result, err := s.engine.Verify(context.Background(), "alice@example.com", s.docBytes)

	s.Require().NoError(err)
	s.False(result.Matched)
	s.Equal(MessageNoMatch, result.Message)
}

func (s *EngineSuite) TestWrongBytesIsNoMatch() {
	credential := s.seedAccepted(s.docHash, time.Now())
	s.expectConnect()
	otherHash := hash.NewSHA256().Hash([]byte("a different document"))
	s.session.EXPECT().Evaluate(gomock.Any(), credential.ID.String(), otherHash).Return(false, nil)

	result, err := s.engine.Verify(context.Background(), "alice@example.com", []byte("a different document"))

	s.Require().NoError(err)
	s.False(result.Matched)
	s.Equal(MessageNoMatch, result.Message)
}

func (s *EngineSuite) TestEarliestCandidateWins() {
	base := time.Date(2026, time.January, 10, 9, 0, 0, 0, time.UTC)
	first := s.seedAccepted(s.docHash, base)
	s.seedAccepted(s.docHash, base.Add(time.Hour))
	s.expectConnect()
	// Sequential scan stops at the first match; the later duplicate anchor
	// is never consulted.
	s.session.EXPECT().Evaluate(gomock.Any(), first.ID.String(), s.docHash).Return(true, nil)

	result, err := s.engine.Verify(context.Background(), "alice@example.com", s.docBytes)

	s.Require().NoError(err)
	s.Require().NotNil(result.Match)
	s.Equal(first.ID, result.Match.CredentialID)
}

func (s *EngineSuite) TestScanContinuesPastFailedCandidate() {
	base := time.Date(2026, time.January, 10, 9, 0, 0, 0, time.UTC)
	flaky := s.seedAccepted(s.docHash, base)
	good := s.seedAccepted(s.docHash, base.Add(time.Hour))
	s.expectConnect()
	s.session.EXPECT().Evaluate(gomock.Any(), flaky.ID.String(), s.docHash).Return(false, errors.New("chaincode timeout"))
	s.session.EXPECT().Evaluate(gomock.Any(), good.ID.String(), s.docHash).Return(true, nil)

	result, err := s.engine.Verify(context.Background(), "alice@example.com", s.docBytes)

	s.Require().NoError(err)
	s.True(result.Matched)
	s.Equal(good.ID, result.Match.CredentialID)
}

func (s *EngineSuite) TestAllCandidatesErroredIsInfrastructureFault() {
	base := time.Date(2026, time.January, 10, 9, 0, 0, 0, time.UTC)
	s.seedAccepted(s.docHash, base)
	s.seedAccepted(s.docHash, base.Add(time.Hour))
	s.expectConnect()
	s.session.EXPECT().Evaluate(gomock.Any(), gomock.Any(), gomock.Any()).Times(2).Return(false, errors.New("ledger down"))

	_, err := s.engine.Verify(context.Background(), "alice@example.com", s.docBytes)

	s.Require().Error(err, "a verdict built on zero successful checks would be a guess")
	s.True(dErrors.HasCode(err, dErrors.CodeInfrastructureFault))
}

func (s *EngineSuite) TestConnectFailureIsInfrastructureFault() {
	s.seedAccepted(s.docHash, time.Now())
	s.connector.EXPECT().Connect(gomock.Any()).Return(nil, errors.New("no ledger"))

	_, err := s.engine.Verify(context.Background(), "alice@example.com", s.docBytes)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInfrastructureFault))
}

func (s *EngineSuite) TestDeterministicAcrossRepeats() {
	credential := s.seedAccepted(s.docHash, time.Now())
	for i := 0; i < 3; i++ {
		s.expectConnect()
		s.session.EXPECT().Evaluate(gomock.Any(), credential.ID.String(), s.docHash).Return(true, nil)

		result, err := s.engine.Verify(context.Background(), "alice@example.com", s.docBytes)
		s.Require().NoError(err)
		s.True(result.Matched)
		s.Equal(credential.ID, result.Match.CredentialID)
	}
}

func (s *EngineSuite) TestParallelScanPrefersEarliestMatch() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := NewEngine(s.dir, s.credentials, s.connector, hash.NewSHA256(), nil, logger, WithParallelism(4))

	base := time.Date(2026, time.January, 10, 9, 0, 0, 0, time.UTC)
	first := s.seedAccepted(s.docHash, base)
	second := s.seedAccepted(s.docHash, base.Add(time.Hour))
	s.expectConnect()
	// Both anchors match; candidate order, not completion order, decides.
	s.session.EXPECT().Evaluate(gomock.Any(), first.ID.String(), s.docHash).Return(true, nil)
	s.session.EXPECT().Evaluate(gomock.Any(), second.ID.String(), s.docHash).Return(true, nil)

	result, err := engine.Verify(context.Background(), "alice@example.com", s.docBytes)

	s.Require().NoError(err)
	s.Require().NotNil(result.Match)
	s.Equal(first.ID, result.Match.CredentialID)
}

func (s *EngineSuite) TestEmptyInputsRejected() {
	_, err := s.engine.Verify(context.Background(), "", s.docBytes)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

	_, err = s.engine.Verify(context.Background(), "alice@example.com", nil)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}
