package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/james-see/sy1000sync/pkg/bridge"
	"github.com/james-see/sy1000sync/pkg/catalog"
	"github.com/james-see/sy1000sync/pkg/host"
	"github.com/james-see/sy1000sync/pkg/sysex"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	store  *host.Store
	ctl    *bridge.Controller
	router *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	store := host.NewStore(cat)
	ctl := bridge.New(cat, store)
	store.Subscribe(ctl)
	return &fixture{store: store, ctl: ctl, router: New(store, ctl, nil).Router()}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, w)["status"])

	w = f.do(t, http.MethodOptions, "/api/v1/parameters", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestListParameters(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/parameters", nil)
	require.Equal(t, http.StatusOK, w.Code)
	all := decode[[]ParameterJSON](t, w)
	assert.Len(t, all, f.store.Catalog().Len())

	w = f.do(t, http.MethodGet, "/api/v1/parameters?kind=dual_bpm", nil)
	require.Equal(t, http.StatusOK, w.Code)
	bpm := decode[[]ParameterJSON](t, w)
	require.Len(t, bpm, 2)
	assert.Equal(t, "delay1_time_bpm", bpm[0].ID)

	w = f.do(t, http.MethodGet, "/api/v1/parameters?kind=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetParameter(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/parameters/inst1_sw", nil)
	require.Equal(t, http.StatusOK, w.Code)
	p := decode[ParameterJSON](t, w)
	assert.Equal(t, "10001500", p.Address)
	assert.Equal(t, 1, p.Value)
	assert.Equal(t, "ON", p.Choice)

	w = f.do(t, http.MethodGet, "/api/v1/parameters/register_a_07", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "10000312_07", decode[ParameterJSON](t, w).Address)

	w = f.do(t, http.MethodGet, "/api/v1/parameters/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSetParameter(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPut, "/api/v1/parameters/patch_level", map[string]int{"value": 150})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 150, decode[ParameterJSON](t, w).Value)

	m, ok := f.ctl.TakePending()
	require.True(t, ok)
	assert.Equal(t, uint32(150), m.Frame().Value)

	w = f.do(t, http.MethodPut, "/api/v1/parameters/missing", map[string]int{"value": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPut, "/api/v1/parameters/patch_level", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPushParameter(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/parameters/register_b_02/push", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[map[string]bool](t, w)["sent"])

	m, ok := f.ctl.TakePending()
	require.True(t, ok)
	assert.Equal(t, sysex.Frame{Address: sysex.MustParseAddress("1000031A"), Width: 8}, m.Frame())

	w = f.do(t, http.MethodPost, "/api/v1/parameters/missing/push", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInboundAndStats(t *testing.T) {
	f := newFixture(t)
	in, err := sysex.Encode(sysex.Frame{Address: sysex.MustParseAddress("10000312"), Width: 8, Value: 0x10})
	require.NoError(t, err)

	w := f.do(t, http.MethodPost, "/api/v1/sysex/inbound", HexRequest{Hex: in.String()})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[map[string]bool](t, w)["applied"])

	v, _ := f.store.Value("register_a_04")
	assert.Equal(t, 1, v)

	w = f.do(t, http.MethodGet, "/api/v1/registers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	regs := decode[[]RegisterJSON](t, w)
	require.Len(t, regs, 2)
	assert.Equal(t, RegisterJSON{Address: "10000312", Bits: 32, Value: 0x10, Hex: "00000010"}, regs[0])

	w = f.do(t, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[StatsJSON](t, w)
	assert.Equal(t, uint64(1), st.Inbound)
	assert.Equal(t, in.String(), st.LastIn)
	assert.Empty(t, st.LastOut)

	w = f.do(t, http.MethodPost, "/api/v1/sysex/inbound", HexRequest{Hex: "F0 43 10 F7"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestEncodeDecode(t *testing.T) {
	f := newFixture(t)

	zero := uint32(0)
	w := f.do(t, http.MethodPost, "/api/v1/sysex/encode", EncodeRequest{Address: "10000312", Width: 8, Value: &zero})
	require.Equal(t, http.StatusOK, w.Code)
	enc := decode[MessageJSON](t, w)
	assert.Equal(t, byte(0x5B), enc.Checksum)

	w = f.do(t, http.MethodPost, "/api/v1/sysex/decode", HexRequest{Hex: enc.Hex})
	require.Equal(t, http.StatusOK, w.Code)
	dec := decode[MessageJSON](t, w)
	assert.Equal(t, "10000312", dec.Address)
	assert.Equal(t, 8, dec.Width)
	assert.Equal(t, []string{"register_a"}, dec.Parameters)

	w = f.do(t, http.MethodPost, "/api/v1/sysex/encode", EncodeRequest{Address: "10000312", Width: 5, Value: &zero})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/sysex/encode", EncodeRequest{Address: "xyz", Width: 1, Value: &zero})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/sysex/decode", HexRequest{Hex: "zz"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
