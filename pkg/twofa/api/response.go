package api

import (
	"net/http"

	"github.com/go-chi/render"

	apperrors "github.com/tendant/simple-finance/pkg/errors"
)

type Response struct {
	Code int
	body interface{}
}

func (resp *Response) Render(w http.ResponseWriter, r *http.Request) {
	render.Status(r, resp.Code)
	render.JSON(w, r, resp.body)
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func jsonResponse(code int, body interface{}) *Response {
	return &Response{Code: code, body: body}
}

// errorResponse maps err to its HTTP status and client-safe message.
func errorResponse(err error) *Response {
	return &Response{
		Code: apperrors.MapErrorCodeToHTTPStatus(apperrors.GetCode(err)),
		body: ErrorResponse{
			Code:    string(apperrors.GetCode(err)),
			Message: apperrors.PublicMessage(err),
		},
	}
}

func badRequest(message string) *Response {
	return errorResponse(apperrors.New(apperrors.ErrCodeInvalidInput, message))
}

// invalidCode is the single response for every rejected code.
func invalidCode(status int) *Response {
	return &Response{
		Code: status,
		body: ErrorResponse{Code: string(apperrors.ErrCode2FAInvalid), Message: "invalid code"},
	}
}

func handlerFunc(fn func(w http.ResponseWriter, r *http.Request) *Response) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if resp := fn(w, r); resp != nil {
			resp.Render(w, r)
		}
	}
}
