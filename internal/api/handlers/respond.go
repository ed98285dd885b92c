package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/orrn/printsim/internal/core"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type ActionResponse struct {
	Result   string `json:"result"`
	Revision uint64 `json:"revision"`
}

func resultStatus(r core.Result) int {
	switch r {
	case core.ResultOK:
		return http.StatusOK
	case core.ResultNotFound:
		return http.StatusNotFound
	case core.ResultResourceUnavailable:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// respondResult writes body on success and an ErrorResponse otherwise. A nil
// body falls back to an ActionResponse.
func respondResult(c *gin.Context, engine *core.Engine, r core.Result, body interface{}) {
	if !r.OK() {
		c.JSON(resultStatus(r), ErrorResponse{
			Error:   r.String(),
			Message: r.Err().Error(),
		})
		return
	}
	if body == nil {
		body = ActionResponse{Result: r.String(), Revision: engine.Revision()}
	}
	c.JSON(http.StatusOK, body)
}

func parseID(c *gin.Context, what string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid " + what + " ID",
		})
		return 0, false
	}
	return id, true
}

func validationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "validation_error",
		Message: err.Error(),
	})
}

func databaseError(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "database_error",
		Message: message,
	})
}
