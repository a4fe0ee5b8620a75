package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recentQuery struct {
	Symbol string `query:"symbol" default:"SPY" validate:"required,symbol"`
	Limit  int    `query:"limit" default:"20" validate:"gte=1,lte=200"`
}

func bind(t *testing.T, target string) (recentQuery, interface{}) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	c := e.NewContext(req, httptest.NewRecorder())
	var q recentQuery
	return q, ReadAndValidateRequest(c, &q)
}

func TestReadAndValidateRequest(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	var q recentQuery
	require.Nil(t, ReadAndValidateRequest(c, &q))
	assert.Equal(t, "SPY", q.Symbol)
	assert.Equal(t, 20, q.Limit)

	_, errs := bind(t, "/x?limit=500")
	require.IsType(t, []ValidationError{}, errs)
	ve := errs.([]ValidationError)
	require.Len(t, ve, 1)
	assert.Equal(t, "ERR_LTE", ve[0].Code)
	assert.Equal(t, "limit", ve[0].Field)
	assert.Equal(t, "limit must be less than or equal to 200", ve[0].Message)

	_, errs = bind(t, "/x?symbol=spy")
	ve = errs.([]ValidationError)
	require.Len(t, ve, 1)
	assert.Equal(t, "ERR_SYMBOL", ve[0].Code)

	_, errs = bind(t, "/x?symbol=%5EVIX")
	assert.Nil(t, errs)
}

func TestAppErrorResponse(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	err := UnavailableErrorf("no indicator data for %s", "SPY").WithError(errors.New("timeout"))
	require.NoError(t, AppErrorResponse(c, err))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Status int        `json:"status"`
		Data   []AppError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusServiceUnavailable, body.Status)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "ERR_UNAVAILABLE", body.Data[0].Code)

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, AppErrorResponse(c, errors.New("plain")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestClient_SendAndParse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			assert.Equal(t, "1D", r.URL.Query().Get("tf"))
			assert.Equal(t, "corexia", r.Header.Get("User-Agent"))
			_, _ = w.Write([]byte(`{"symbol":"SPY"}`))
		case "/busy":
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("try later\n"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(WithHeader("User-Agent", "corexia"))
	ctx := context.Background()

	var out struct {
		Symbol string `json:"symbol"`
	}
	err := c.SendAndParse(ctx, &RequestOptions{
		Method:      MethodGet,
		URL:         srv.URL + "/ok",
		QueryParams: map[string][]string{"tf": {"1D"}},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "SPY", out.Symbol)

	err = c.SendAndParse(ctx, &RequestOptions{Method: MethodGet, URL: srv.URL + "/busy"}, nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
	assert.Equal(t, "try later", se.Body)
	assert.True(t, IsTemporary(err))

	err = c.SendAndParse(ctx, &RequestOptions{Method: MethodGet, URL: srv.URL + "/missing"}, nil)
	assert.False(t, IsTemporary(err))
	assert.True(t, strings.Contains(err.Error(), "404"))

	assert.False(t, IsTemporary(context.Canceled))
	assert.False(t, IsTemporary(nil))
}
