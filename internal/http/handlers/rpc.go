package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/insightflow-backend/internal/http/response"
	"github.com/yungbote/insightflow-backend/internal/observability"
	"github.com/yungbote/insightflow-backend/internal/pkg/apierr"
	"github.com/yungbote/insightflow-backend/internal/pkg/logger"
)

// RPCPrefix is the path every procedure is mounted under.
const RPCPrefix = "/api/rpc/"

const maxInputBytes = 1 << 20

type Kind int

const (
	Query Kind = iota
	Mutation
)

func (k Kind) Method() string {
	if k == Mutation {
		return http.MethodPost
	}
	return http.MethodGet
}

// Procedure is one named RPC entry point.
type Procedure struct {
	Name   string
	Kind   Kind
	Public bool
	Handle gin.HandlerFunc
}

type successResult struct {
	Success bool `json:"success"`
}

var success = successResult{Success: true}

// bindInput decodes the procedure input: the JSON "input" query parameter for
// queries, the request body for mutations. Missing input leaves dst untouched.
func bindInput[T any](c *gin.Context, log *logger.Logger, dst *T) bool {
	var raw []byte
	if c.Request.Method == http.MethodGet {
		raw = []byte(c.Query("input"))
	} else if c.Request.Body != nil {
		b, err := io.ReadAll(io.LimitReader(c.Request.Body, maxInputBytes+1))
		if err != nil {
			fail(c, log, apierr.Validation("could not read request body"))
			return false
		}
		if len(b) > maxInputBytes {
			fail(c, log, apierr.New(http.StatusRequestEntityTooLarge, "invalid_input", errors.New("input is too large")))
			return false
		}
		raw = b
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return true
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		fail(c, log, apierr.Validation("input is not valid JSON for this procedure"))
		return false
	}
	return true
}

func procedureName(c *gin.Context) string {
	name := strings.TrimPrefix(c.FullPath(), RPCPrefix)
	if name == "" {
		return "unknown"
	}
	return name
}

func respond(c *gin.Context, log *logger.Logger, data any, err error) {
	if err != nil {
		fail(c, log, err)
		return
	}
	observability.Current().IncRPC(procedureName(c), "ok")
	response.RespondData(c, data)
}

func fail(c *gin.Context, log *logger.Logger, err error) {
	ae := apierr.From(err)
	observability.Current().IncRPC(procedureName(c), ae.Code)
	response.RespondAPIError(c, log, ae)
}
