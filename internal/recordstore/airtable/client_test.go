package airtable

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/partner-portal/internal/recordstore"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New("key123", "appBase", WithBaseURL(srv.URL))
	require.NoError(t, err)
	return c
}

func TestFormula(t *testing.T) {
	tests := []struct {
		name   string
		filter recordstore.Filter
		want   string
	}{
		{"eq string", recordstore.Eq{Field: "mail", Value: "a@x.com"}, `{mail} = 'a@x.com'`},
		{"eq escapes quotes", recordstore.Eq{Field: "mail", Value: `o'neil\@x.com`}, `{mail} = 'o\'neil\\@x.com'`},
		{"eq number", recordstore.Eq{Field: "n", Value: 2}, `{n} = 2`},
		{"eq bool", recordstore.Eq{Field: "Admin", Value: true}, `{Admin} = TRUE()`},
		{"eq fold", recordstore.EqFold{Field: "mail", Value: "A@X.com"}, `LOWER({mail}) = LOWER('A@X.com')`},
		{"and", recordstore.And{
			recordstore.Eq{Field: "notice_id", Value: "rec1"},
			recordstore.Eq{Field: "agency_id", Value: "ag1"},
		}, `AND({notice_id} = 'rec1', {agency_id} = 'ag1')`},
		{"and single", recordstore.And{recordstore.Eq{Field: "a", Value: "b"}}, `{a} = 'b'`},
		{"and empty", recordstore.And{}, `TRUE()`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Formula(tt.filter))
		})
	}
}

func TestClient_SelectPaginatesAndSendsQuery(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "Bearer key123", r.Header.Get("Authorization"))
		assert.Equal(t, "/appBase/Mural", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "Data", q.Get("sort[0][field]"))
		assert.Equal(t, "desc", q.Get("sort[0][direction]"))
		assert.Equal(t, `{Novo} = TRUE()`, q.Get("filterByFormula"))
		if q.Get("offset") == "" {
			_, _ = io.WriteString(w, `{"records":[{"id":"rec1","createdTime":"2026-01-01T00:00:00.000Z","fields":{"Título":"A"}}],"offset":"itr2"}`)
			return
		}
		assert.Equal(t, "itr2", q.Get("offset"))
		_, _ = io.WriteString(w, `{"records":[{"id":"rec2","fields":{"Título":"B"}}]}`)
	})

	recs, err := c.Table("Mural").Select(context.Background(), recordstore.Query{
		Filter: recordstore.Eq{Field: "Novo", Value: true},
		Sort:   recordstore.SortDesc("Data"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, recs, 2)
	assert.Equal(t, "A", recs[0].Fields.String("Título"))
	assert.Equal(t, 2026, recs[0].CreatedTime.Year())
	assert.Equal(t, "rec2", recs[1].ID)
}

func TestClient_SelectHonoursMaxRecords(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("maxRecords"))
		_, _ = io.WriteString(w, `{"records":[{"id":"rec1","fields":{}}],"offset":"more"}`)
	})
	recs, err := c.Table("tblAgency").Select(context.Background(), recordstore.Query{MaxRecords: 1})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"missing table by permissions", http.StatusForbidden, `{"error":{"type":"INVALID_PERMISSIONS_OR_MODEL_NOT_FOUND","message":"Invalid permissions, or the requested model was not found."}}`, recordstore.ErrTableNotFound},
		{"table not found message", http.StatusNotFound, `{"error":{"type":"NOT_FOUND","message":"Could not find table Mural in application appBase"}}`, recordstore.ErrTableNotFound},
		{"record not found", http.StatusNotFound, `{"error":"NOT_FOUND"}`, recordstore.ErrNotFound},
		{"unknown field", http.StatusUnprocessableEntity, `{"error":{"type":"UNKNOWN_FIELD_NAME","message":"Unknown field name: \"Data\""}}`, recordstore.ErrUnknownField},
		{"bad key", http.StatusUnauthorized, `{"error":{"type":"AUTHENTICATION_REQUIRED"}}`, recordstore.ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.Table("Mural").Select(context.Background(), recordstore.Query{})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClient_ServerErrorHasNoSentinel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "oops")
	})
	_, err := c.Table("Mural").Find(context.Background(), "rec1")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "oops", apiErr.Message)
	assert.NotErrorIs(t, err, recordstore.ErrNotFound)
}

func TestClient_CreateBatchesAndUpdate(t *testing.T) {
	var batches []int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var body struct {
				Records []struct {
					Fields map[string]any `json:"fields"`
				} `json:"records"`
				Typecast bool `json:"typecast"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.True(t, body.Typecast)
			batches = append(batches, len(body.Records))
			out := map[string]any{"records": []any{}}
			recs := []any{}
			for i, rec := range body.Records {
				recs = append(recs, map[string]any{"id": "rec" + string(rune('a'+i)), "fields": rec.Fields})
			}
			out["records"] = recs
			_ = json.NewEncoder(w).Encode(out)
		case http.MethodPatch:
			assert.Equal(t, "/appBase/Mural/rec9", r.URL.Path)
			var body struct {
				Fields map[string]any `json:"fields"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "rec9", "fields": body.Fields})
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	})

	rows := make([]recordstore.Fields, 12)
	for i := range rows {
		rows[i] = recordstore.Fields{"n": i}
	}
	created, err := c.Table("Reservas").Create(context.Background(), rows...)
	require.NoError(t, err)
	assert.Equal(t, []int{10, 2}, batches)
	assert.Len(t, created, 12)

	upd, err := c.Table("Mural").Update(context.Background(), "rec9", recordstore.Fields{"Lido por": []string{"Ana"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Ana"}, upd.Fields.Strings("Lido por"))
}

func TestNew_Validation(t *testing.T) {
	_, err := New("", "app")
	assert.Error(t, err)
	_, err = New("key", "")
	assert.Error(t, err)

	b, err := Factory("key")("appX")
	require.NoError(t, err)
	assert.NotNil(t, b.Table("x"))
}
