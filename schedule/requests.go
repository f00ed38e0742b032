/*
requests.go - PTO request lifecycle

PURPOSE:
  Submit, approve, deny, and cancel leave requests. Approval and
  denial record the reviewer rather than destroying the request;
  cancellation deletes it and cleans up the mirrored leave interval.

  Approval creates the denormalized ProviderLeave row so "who else is
  off" queries never rescan the request table. Approving a request
  does NOT create assignment rows; PTO assignments and requests are
  kept in sync only by the explicit paths in conflict.go.
*/
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type RequestService struct {
	PTO       PTOStore
	Providers ProviderStore
	Log       *zap.Logger
}

func NewRequestService(store Store, log *zap.Logger) *RequestService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RequestService{PTO: store, Providers: store, Log: log}
}

// Submit records a pending request.
func (s *RequestService) Submit(ctx context.Context, in RequestInput, requestedBy string) (*PTORequest, error) {
	if in.ProviderID == "" {
		return nil, &ValidationError{Field: "provider_id", Message: "required"}
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() || in.EndDate.Before(in.StartDate) {
		return nil, &ValidationError{Field: "date_range", Message: "invalid range"}
	}
	if !ValidLeaveType(in.LeaveType) {
		return nil, &ValidationError{Field: "leave_type", Message: fmt.Sprintf("unknown leave type %q", in.LeaveType)}
	}
	provider, err := s.Providers.GetProvider(ctx, in.ProviderID)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, ErrProviderNotFound
	}
	if requestedBy == "" {
		requestedBy = in.ProviderID
	}

	req := PTORequest{
		ID:          uuid.NewString(),
		ProviderID:  in.ProviderID,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		LeaveType:   in.LeaveType,
		TimeBlock:   in.TimeBlock,
		Status:      StatusPending,
		RequestedBy: requestedBy,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.PTO.SavePTORequest(ctx, req); err != nil {
		return nil, err
	}
	return &req, nil
}

// Approve marks a pending request approved and mirrors it into a
// leave interval. The leave write is best-effort, like the sync in
// conflict.go.
func (s *RequestService) Approve(ctx context.Context, requestID, reviewer, comment string) (*PTORequest, error) {
	req, err := s.review(ctx, requestID, reviewer, comment, StatusApproved)
	if err != nil {
		return nil, err
	}
	leave := ProviderLeave{
		ID:         uuid.NewString(),
		ProviderID: req.ProviderID,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		LeaveType:  req.LeaveType,
		Reason:     "approved request " + req.ID,
	}
	if err := s.PTO.SaveLeave(ctx, leave); err != nil {
		s.Log.Warn("approve: failed to mirror leave interval",
			zap.String("request_id", req.ID), zap.Error(err))
	}
	return req, nil
}

// Deny marks a pending request denied. The record stays.
func (s *RequestService) Deny(ctx context.Context, requestID, reviewer, comment string) (*PTORequest, error) {
	return s.review(ctx, requestID, reviewer, comment, StatusDenied)
}

func (s *RequestService) review(ctx context.Context, requestID, reviewer, comment string, status RequestStatus) (*PTORequest, error) {
	req, err := s.PTO.GetPTORequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrRequestNotFound
	}
	if req.Status != StatusPending {
		return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("request is already %s", req.Status)}
	}
	now := time.Now().UTC()
	req.Status = status
	req.ReviewerName = reviewer
	req.ReviewerComment = comment
	req.ReviewedAt = &now
	if err := s.PTO.SavePTORequest(ctx, *req); err != nil {
		return nil, err
	}
	return req, nil
}

// Cancel deletes a request and any leave intervals it produced.
func (s *RequestService) Cancel(ctx context.Context, requestID string) error {
	req, err := s.PTO.GetPTORequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req == nil {
		return ErrRequestNotFound
	}
	if _, err := s.PTO.DeletePTORequest(ctx, requestID); err != nil {
		return err
	}
	if req.Status == StatusApproved {
		if _, err := s.PTO.DeleteLeavesCovering(ctx, req.ProviderID, req.StartDate); err != nil {
			s.Log.Warn("cancel: failed to clean up leave intervals",
				zap.String("request_id", requestID), zap.Error(err))
		}
	}
	return nil
}
