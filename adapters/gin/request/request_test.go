package request

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/abhissng/relay/blame"
	"github.com/abhissng/relay/utils/constant"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type order struct {
	Guest int   `json:"guest"`
	Food  []int `json:"food"`
}

func contextWithBody(body string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c
}

func TestExtractDataFromRequestBody(t *testing.T) {
	res := ExtractDataFromRequestBody[order](contextWithBody(`{"guest":2,"food":[1,3]}`))
	require.True(t, res.IsSuccess())
	assert.Equal(t, &order{Guest: 2, Food: []int{1, 3}}, res.ToValue())

	res = ExtractDataFromRequestBody[order](contextWithBody(`{"guest":`))
	require.True(t, res.IsError())
	assert.True(t, blame.IsCode(res.Error(), blame.ErrorRequestBodyInvalid))
}

func TestFetchCorrelationID(t *testing.T) {
	c := contextWithBody("")
	c.Set(constant.CorrelationID, "abc")
	assert.Equal(t, "abc", FetchCorrelationID(c).String())
}
