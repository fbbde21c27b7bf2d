package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/libraryapi/library-server/internal/domain"
	domainerrors "github.com/libraryapi/library-server/internal/errors"
	"github.com/libraryapi/library-server/internal/logger"
)

func (s *Server) registerAdminRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "runOverdueNotifier",
		Method:      http.MethodPost,
		Path:        "/api/admin/notifier/run",
		Summary:     "Run overdue notifier",
		Description: "Sends one reminder batch to every customer holding a late loan, outside the schedule",
		Tags:        []string{"Admin"},
	}, s.handleRunNotifier)
}

type NotifierRunResponse struct {
	RunID         string   `json:"run_id" doc:"Run identifier, also present in logs"`
	Today         string   `json:"today" format:"date" doc:"Day the run evaluated lateness for"`
	LateLoans     int      `json:"late_loans" doc:"Late loans found"`
	Recipients    []string `json:"recipients" doc:"Distinct addresses the reminder went to"`
	Unresolved    int      `json:"unresolved" doc:"Late loans without a usable email address"`
	Sent          bool     `json:"sent" doc:"Whether the batch was handed to the mail transport"`
	DispatchError string   `json:"dispatch_error,omitempty" doc:"Transport failure, if any"`
}

type NotifierRunOutput struct {
	Body NotifierRunResponse
}

func (s *Server) handleRunNotifier(ctx context.Context, _ *struct{}) (*NotifierRunOutput, error) {
	if s.services.Notifier == nil {
		return nil, domainerrors.BusinessRule("overdue notifier is not configured")
	}

	result, err := s.services.Notifier.Run(ctx)
	if err != nil {
		logger.FromContext(ctx, s.logger).Error("manual notifier run failed", "error", err)
		return nil, err
	}

	return &NotifierRunOutput{Body: NotifierRunResponse{
		RunID:         result.RunID,
		Today:         domain.FormatDate(result.Today),
		LateLoans:     result.LateLoans,
		Recipients:    result.Recipients,
		Unresolved:    result.Unresolved,
		Sent:          result.Sent,
		DispatchError: result.DispatchError,
	}}, nil
}
