package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SscSPs/money_sync_app/internal/apperrors"
	"github.com/SscSPs/money_sync_app/internal/core/domain"
	"github.com/SscSPs/money_sync_app/internal/dto"
	"github.com/SscSPs/money_sync_app/internal/handlers"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type SyncHandlerTestSuite struct {
	handlerSuite
	mockSyncService *MockSyncService
	mockGoogle      *MockGoogleDriveConnector
	trigger         *countingTrigger
}

func (s *SyncHandlerTestSuite) SetupTest() {
	s.setupRouter()
	s.mockSyncService = new(MockSyncService)
	s.mockGoogle = new(MockGoogleDriveConnector)
	s.trigger = &countingTrigger{}
	handlers.RegisterSyncRoutes(s.v1, s.mockSyncService, s.mockGoogle, s.trigger)
}

func (s *SyncHandlerTestSuite) TearDownTest() {
	s.mockSyncService.AssertExpectations(s.T())
	s.mockGoogle.AssertExpectations(s.T())
}

func (s *SyncHandlerTestSuite) TestSync_DefaultsToMerge() {
	s.mockSyncService.On("Sync", mock.Anything, domain.SyncOptions{Strategy: domain.StrategyMerge}).
		Return(&domain.SyncResult{Status: domain.SyncUpToDate, Strategy: domain.StrategyMerge}, nil).Once()

	w := s.do(http.MethodPost, "/api/v1/sync", nil)

	s.Equal(http.StatusOK, w.Code)
	var resp dto.SyncResponse
	s.decode(w, &resp)
	s.Equal(domain.SyncUpToDate, resp.Status)
}

func (s *SyncHandlerTestSuite) TestSync_ConflictsAreNotErrors() {
	conflicts := []domain.Conflict{{ConflictID: "c1", Type: domain.ConflictTransaction, Key: "2024-01-10|Bread|acc-1"}}
	s.mockSyncService.On("Sync", mock.Anything, domain.SyncOptions{Strategy: domain.StrategyMerge, Force: false}).
		Return(&domain.SyncResult{Status: domain.SyncConflicted, Conflicts: conflicts}, nil).Once()

	w := s.do(http.MethodPost, "/api/v1/sync", map[string]any{"strategy": "merge"})

	s.Equal(http.StatusOK, w.Code)
	var resp dto.SyncResponse
	s.decode(w, &resp)
	s.Equal(domain.SyncConflicted, resp.Status)
	s.Len(resp.Conflicts, 1)
}

func (s *SyncHandlerTestSuite) TestSync_ErrorStatuses() {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"retryable remote failure", &apperrors.SyncError{Op: "download", Retryable: true, Err: context.DeadlineExceeded}, http.StatusServiceUnavailable},
		{"permanent remote failure", &apperrors.SyncError{Op: "upload", Err: apperrors.ErrStaleRemote}, http.StatusBadGateway},
		{"drive not connected", &apperrors.SyncError{Op: "find", Err: apperrors.ErrUnauthorized}, http.StatusFailedDependency},
		{"wrong secret", &apperrors.AuthenticationError{Reason: "tag mismatch"}, http.StatusUnprocessableEntity},
		{"already running", apperrors.ErrSyncInProgress, http.StatusConflict},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.mockSyncService.On("Sync", mock.Anything, mock.Anything).Return(nil, tt.err).Once()
			w := s.do(http.MethodPost, "/api/v1/sync", map[string]any{"strategy": "overwrite_cloud"})
			s.Equal(tt.status, w.Code)
		})
	}
}

func (s *SyncHandlerTestSuite) TestSync_RejectsUnknownStrategy() {
	w := s.do(http.MethodPost, "/api/v1/sync", map[string]any{"strategy": "yolo"})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *SyncHandlerTestSuite) TestResolveConflict() {
	resp := &dto.ResolveConflictResponse{ConflictID: "c1", Resolution: "cloud", RemainingConflicts: 0,
		Sync: &dto.SyncResponse{Status: domain.SyncIdle}}
	s.mockSyncService.On("ResolveConflict", mock.Anything, "c1", domain.ResolveCloud).Return(resp, nil).Once()
	s.mockSyncService.On("ResolveConflict", mock.Anything, "missing", domain.ResolveLocal).Return(nil, apperrors.ErrNotFound).Once()

	w := s.do(http.MethodPost, "/api/v1/sync/conflicts/c1/resolve", map[string]any{"resolution": "cloud"})
	s.Equal(http.StatusOK, w.Code)
	var got dto.ResolveConflictResponse
	s.decode(w, &got)
	s.Zero(got.RemainingConflicts)
	s.Require().NotNil(got.Sync)

	w = s.do(http.MethodPost, "/api/v1/sync/conflicts/missing/resolve", map[string]any{"resolution": "local"})
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/api/v1/sync/conflicts/c1/resolve", map[string]any{"resolution": "both"})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *SyncHandlerTestSuite) TestStatusAndConflicts() {
	s.mockSyncService.On("Status", mock.Anything).
		Return(&dto.SyncStatusResponse{Status: domain.SyncConflicted, PendingConflicts: 2}, nil).Once()
	s.mockSyncService.On("ListConflicts", mock.Anything).
		Return([]domain.Conflict{{ConflictID: "c1"}, {ConflictID: "c2"}}, nil).Once()

	w := s.do(http.MethodGet, "/api/v1/sync/status", nil)
	s.Equal(http.StatusOK, w.Code)
	var status dto.SyncStatusResponse
	s.decode(w, &status)
	s.Equal(2, status.PendingConflicts)

	w = s.do(http.MethodGet, "/api/v1/sync/conflicts", nil)
	s.Equal(http.StatusOK, w.Code)
	var conflicts []dto.ConflictResponse
	s.decode(w, &conflicts)
	s.Len(conflicts, 2)
}

func (s *SyncHandlerTestSuite) TestGoogleConnect() {
	s.mockGoogle.On("AuthURL", mock.Anything).
		Return(&dto.GoogleAuthURLResponse{URL: "https://accounts.example/auth?state=abc", State: "abc"}, nil).Once()
	s.mockGoogle.On("ExchangeCode", mock.Anything, "code-1", "abc").
		Return(&dto.GoogleConnectionResponse{Connected: true, Email: "owner@example.com"}, nil).Once()
	s.mockGoogle.On("ExchangeCode", mock.Anything, "code-1", "forged").
		Return(nil, apperrors.ErrUnauthorized).Once()

	w := s.do(http.MethodGet, "/api/v1/sync/google/auth-url", nil)
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/api/v1/sync/google/exchange-code", map[string]any{"code": "code-1", "state": "forged"})
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Zero(s.trigger.calls)

	w = s.do(http.MethodPost, "/api/v1/sync/google/exchange-code", map[string]any{"code": "code-1", "state": "abc"})
	s.Equal(http.StatusOK, w.Code)
	s.Equal(1, s.trigger.calls, "a fresh connection wakes the scheduler")
}

func TestSyncHandler(t *testing.T) {
	suite.Run(t, new(SyncHandlerTestSuite))
}

type UnconfiguredSyncTestSuite struct {
	handlerSuite
}

func (s *UnconfiguredSyncTestSuite) SetupTest() {
	s.setupRouter()
	handlers.RegisterSyncRoutes(s.v1, nil, nil, nil)
}

func (s *UnconfiguredSyncTestSuite) TestSyncRoutesReportUnavailable() {
	for _, path := range []string{"/api/v1/sync/status", "/api/v1/sync/conflicts"} {
		s.Equal(http.StatusServiceUnavailable, s.do(http.MethodGet, path, nil).Code, path)
	}
	s.Equal(http.StatusServiceUnavailable, s.do(http.MethodPost, "/api/v1/sync", nil).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/google/auth-url", nil)
	req.Header.Set("Authorization", "Bearer "+s.token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusNotFound, w.Code)
}

func TestUnconfiguredSync(t *testing.T) {
	suite.Run(t, new(UnconfiguredSyncTestSuite))
}
