package api

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/libraryapi/library-server/internal/errors"
	"github.com/libraryapi/library-server/internal/http/response"
)

// EnvelopeTransformer wraps every huma response body in response.Envelope.
// Error bodies become {"success":false,"error":{...}}, anything else is the data.
func EnvelopeTransformer(_ huma.Context, _ string, v any) (any, error) {
	switch body := v.(type) {
	case nil:
		return response.Success(nil), nil
	case *response.Envelope:
		return body, nil
	case *APIError:
		return response.Failure(&response.ErrorBody{
			Code:    body.Code,
			Message: body.Message,
			Details: body.Details,
		}), nil
	case *domainerrors.Error:
		return response.Failure(&response.ErrorBody{
			Code:    string(body.Code),
			Message: body.Message,
			Details: body.Details,
		}), nil
	case *huma.ErrorModel:
		return response.Failure(&response.ErrorBody{
			Code:    statusToCode(body.Status),
			Message: body.Detail,
		}), nil
	case error:
		// A StatusError we do not know; keep its message but not its internals.
		var se huma.StatusError
		if errors.As(body, &se) {
			return response.Failure(&response.ErrorBody{
				Code:    statusToCode(se.GetStatus()),
				Message: se.Error(),
			}), nil
		}
		return response.Failure(&response.ErrorBody{
			Code:    string(domainerrors.CodeInternal),
			Message: "internal error",
		}), nil
	default:
		return response.Success(body), nil
	}
}
