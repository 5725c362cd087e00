package v1

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "workshop/internal/core/context"
	"workshop/internal/core/security"
	"workshop/internal/core/tx"
	"workshop/internal/domain/catalog"
	"workshop/internal/domain/catalog/catalogtest"
	"workshop/internal/domain/pricing"
	"workshop/internal/domain/pricing/pricingtest"
	"workshop/internal/infrastructure/cache"
	"workshop/internal/infrastructure/http/v1/middleware"
	"workshop/pkg/logger"
)

// tokens maps bearer tokens to users.
type tokens map[string]*appctx.UserContext

func (t tokens) ValidateToken(token string) (*appctx.UserContext, error) {
	u, ok := t[token]
	if !ok {
		return nil, errors.New("unknown token")
	}
	copied := *u
	return &copied, nil
}

type testAPI struct {
	router *gin.Engine
	prices *pricingtest.Memory
	cat    *catalogtest.Memory
}

func newTestAPI(t *testing.T, idem middleware.IdempotencyStore) *testAPI {
	t.Helper()

	cat := catalogtest.New()
	cat.AddJobType("JT-01", "General Service", "", false)
	cat.AddPart("P-01", "Oil Filter", "ITM-OF").Barcode = catalogtest.Str("8991234")

	prices := pricingtest.New()
	catalogSvc := catalog.NewService(cat, "")

	router, err := NewRouter(RouterConfig{
		Mode:   gin.TestMode,
		Logger: logger.NewNop(),
		JWTValidator: tokens{
			"advisor": {UserID: "u-advisor", Permissions: []string{security.PermPriceRead, security.PermPriceWrite, security.PermStockRead}},
			"viewer":  {UserID: "u-viewer", Permissions: []string{security.PermPriceRead}},
		},
		Idempotency: idem,
		Services: Services{
			Catalog: catalogSvc,
			Prices: pricing.NewService(pricing.ServiceConfig{
				Repo:            prices,
				Items:           catalogSvc,
				ItemPrices:      prices,
				TxManager:       tx.Nop{},
				DefaultCurrency: "IDR",
			}),
		},
	})
	require.NoError(t, err)

	return &testAPI{router: router, prices: prices, cat: cat}
}

func (a *testAPI) do(method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

var priceBody = map[string]any{
	"reference_type": "job_type",
	"reference_name": "JT-01",
	"price_list":     "Standard Selling",
	"rate":           "150000",
}

func TestRouter_RequiresToken(t *testing.T) {
	api := newTestAPI(t, nil)

	w := api.do(http.MethodGet, "/api/v1/prices", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", decode(t, w)["code"])

	w = api.do(http.MethodGet, "/api/v1/prices", "forged", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_RequiresPermission(t *testing.T) {
	api := newTestAPI(t, nil)

	w := api.do(http.MethodPost, "/api/v1/prices", "viewer", priceBody)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "PERMISSION_DENIED", decode(t, w)["code"])
	assert.Empty(t, api.prices.Prices)
}

func TestRouter_CreateThenResolvePrice(t *testing.T) {
	api := newTestAPI(t, nil)

	w := api.do(http.MethodPost, "/api/v1/prices", "advisor", priceBody)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	assert.Equal(t, "IDR", created["currency"])
	assert.Equal(t, true, created["is_active"])

	w = api.do(http.MethodGet,
		"/api/v1/prices/resolve?reference_type=Job%20Type&reference_name=JT-01&price_list=Standard%20Selling",
		"viewer", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode(t, w)
	assert.Equal(t, "150000", res["rate"])
	assert.Equal(t, true, res["found"])
	assert.Equal(t, string(pricing.SourceServicePriceList), res["source"])
}

func TestRouter_ResolveMissingPriceIsNotAnError(t *testing.T) {
	api := newTestAPI(t, nil)

	w := api.do(http.MethodGet,
		"/api/v1/prices/resolve?reference_type=job_type&reference_name=JT-01&price_list=Standard%20Selling",
		"viewer", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode(t, w)
	assert.Equal(t, "0", res["rate"])
	assert.Equal(t, false, res["found"])
}

func TestRouter_ValidationErrorListsFields(t *testing.T) {
	api := newTestAPI(t, nil)

	body := map[string]any{
		"reference_type": "spaceship",
		"reference_name": "JT-01",
		"price_list":     "Standard Selling",
		"rate":           "-5",
	}
	w := api.do(http.MethodPost, "/api/v1/prices", "advisor", body)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	resp := decode(t, w)
	assert.Equal(t, "VALIDATION_ERROR", resp["code"])
	details, ok := resp["details"].(map[string]any)
	require.True(t, ok)
	fields, ok := details["fields"].([]any)
	require.True(t, ok)

	rules := map[string]string{}
	for _, f := range fields {
		fe := f.(map[string]any)
		rules[fe["field"].(string)] = fe["rule"].(string)
	}
	assert.Equal(t, "dec_gte0", rules["rate"])
	assert.Equal(t, "reference", rules["reference_type"])
}

func TestRouter_BarcodeLookup(t *testing.T) {
	api := newTestAPI(t, nil)

	w := api.do(http.MethodGet, "/api/v1/parts/barcode/8991234", "advisor", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "P-01", decode(t, w)["part"])

	w = api.do(http.MethodGet, "/api/v1/parts/barcode/000", "advisor", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{}`, w.Body.String())
}

func TestRouter_IdempotentCreateReplays(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	api := newTestAPI(t, cache.NewIdempotencyStore(rdb, 0))

	first := api.do(http.MethodPost, "/api/v1/prices", "advisor", priceBody, middleware.HeaderIdempotencyKey, "k-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := api.do(http.MethodPost, "/api/v1/prices", "advisor", priceBody, middleware.HeaderIdempotencyKey, "k-1")
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Len(t, api.prices.Prices, 1)

	other := map[string]any{}
	for k, v := range priceBody {
		other[k] = v
	}
	other["rate"] = "1"
	mismatch := api.do(http.MethodPost, "/api/v1/prices", "advisor", other, middleware.HeaderIdempotencyKey, "k-1")
	assert.Equal(t, http.StatusUnprocessableEntity, mismatch.Code)
	assert.Equal(t, "IDEMPOTENCY_KEY_MISMATCH", decode(t, mismatch)["code"])
}

func TestRouter_FailedRequestFreesIdempotencyKey(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	api := newTestAPI(t, cache.NewIdempotencyStore(rdb, 0))

	body := map[string]any{}
	for k, v := range priceBody {
		body[k] = v
	}
	body["reference_name"] = "JT-02"

	w := api.do(http.MethodPost, "/api/v1/prices", "advisor", body, middleware.HeaderIdempotencyKey, "k-2")
	require.Equal(t, http.StatusNotFound, w.Code, w.Body.String())

	api.cat.AddJobType("JT-02", "Tune Up", "", false)
	w = api.do(http.MethodPost, "/api/v1/prices", "advisor", body, middleware.HeaderIdempotencyKey, "k-2")
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}
