package dto

import (
	"strings"

	"github.com/labstack/echo/v4"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// OpsRunRequest is the optional body of POST /api/ops/run. Payload is
// accepted for scheduler compatibility and not interpreted.
type OpsRunRequest struct {
	Task    string         `json:"task"`
	Payload map[string]any `json:"payload,omitempty"`
}

// OpsRunFromEchoContext binds the request; an empty body yields the zero request.
func OpsRunFromEchoContext(ctx echo.Context) (OpsRunRequest, error) {
	var req OpsRunRequest
	if err := ctx.Bind(&req); err != nil {
		return OpsRunRequest{}, err
	}
	req.normalize()
	return req, nil
}

// OpsRunFromGRPC converts the RunTask request.
func OpsRunFromGRPC(req *wrapperspb.StringValue) OpsRunRequest {
	dto := OpsRunRequest{Task: req.GetValue()}
	dto.normalize()
	return dto
}

func (r *OpsRunRequest) normalize() {
	r.Task = strings.TrimSpace(r.Task)
}
