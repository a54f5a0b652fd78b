package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/smallbiznis/creditgate/internal/account/domain"
)

type upsertAccountRequest struct {
	Email string `json:"email"`
}

func (s *Server) UpsertAccount(c *gin.Context) {
	var req upsertAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	account, err := s.accountSvc.Upsert(c.Request.Context(), accountdomain.UpsertAccountRequest{
		ID:    strings.TrimSpace(c.Param("id")),
		Email: strings.TrimSpace(req.Email),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": account})
}
