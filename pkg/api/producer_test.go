package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/conductor-telemetry/conductor/pkg/codec"
	"github.com/conductor-telemetry/conductor/pkg/models"
	"github.com/conductor-telemetry/conductor/pkg/schema"
	"github.com/conductor-telemetry/conductor/pkg/store"
)

func newTestHandler(t *testing.T) (*ProducerHandler, *store.MemoryStore, *mux.Router) {
	t.Helper()
	ms := store.NewMemoryStore()
	h := NewProducerHandler(ms, nil)
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	return h, ms, r
}

func postJSON(t *testing.T, r *mux.Router, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", codec.ContentTypeJSON)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func registerProducer(t *testing.T, r *mux.Router, name string, s schema.Schema) string {
	t.Helper()
	w := postJSON(t, r, "/v1/producer/register", models.Registration{Name: name, Schema: s})
	if w.Code != http.StatusOK {
		t.Fatalf("register returned status %d", w.Code)
	}
	var result models.RegistrationResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode registration result: %v", err)
	}
	if result.Error != models.NoError {
		t.Fatalf("register failed with code %s", result.Error)
	}
	return result.UUID
}

func TestRegister(t *testing.T) {
	_, _, r := newTestHandler(t)

	basic := schema.NewBuilder().AddInt("count").AddFloat("temp").Build()

	t.Run("successful registration returns uuid", func(t *testing.T) {
		id := registerProducer(t, r, "sensor-1", basic)
		if id == "" {
			t.Error("expected a generated uuid")
		}
	})

	t.Run("custom id is honored", func(t *testing.T) {
		w := postJSON(t, r, "/v1/producer/register", models.Registration{
			Name:        "sensor-2",
			Schema:      basic,
			UseCustomID: "device-42",
		})
		var result models.RegistrationResult
		json.Unmarshal(w.Body.Bytes(), &result)
		if result.Error != models.NoError {
			t.Fatalf("expected NoError, got %s", result.Error)
		}
		if result.UUID != "device-42" {
			t.Errorf("expected device-42, got %q", result.UUID)
		}
	})

	t.Run("duplicate custom id is rejected", func(t *testing.T) {
		w := postJSON(t, r, "/v1/producer/register", models.Registration{
			Name:        "sensor-3",
			Schema:      basic,
			UseCustomID: "device-42",
		})
		var result models.RegistrationResult
		json.Unmarshal(w.Body.Bytes(), &result)
		if result.Error != models.InvalidUUID {
			t.Errorf("expected InvalidUUID, got %s", result.Error)
		}
	})

	t.Run("validation failures map to wire codes", func(t *testing.T) {
		cases := []struct {
			name string
			reg  models.Registration
			want models.ErrorCode
		}{
			{"empty name", models.Registration{Schema: basic}, models.NameInvalid},
			{"empty schema", models.Registration{Name: "x", Schema: schema.Schema{}}, models.NoMembers},
			{"ts column", models.Registration{Name: "x", Schema: schema.Schema{"ts": schema.Time}}, models.TimestampDefined},
			{"dotted column", models.Registration{Name: "x", Schema: schema.Schema{"a.b": schema.Int}}, models.InvalidColumnNames},
			{"dotted custom id", models.Registration{Name: "x", Schema: basic, UseCustomID: "a.b"}, models.InvalidUUID},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				w := postJSON(t, r, "/v1/producer/register", tc.reg)
				var result models.RegistrationResult
				json.Unmarshal(w.Body.Bytes(), &result)
				if result.Error != tc.want {
					t.Errorf("expected %s, got %s", tc.want, result.Error)
				}
			})
		}
	})

	t.Run("malformed body is a 400", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/v1/producer/register", bytes.NewReader([]byte("{not json")))
		req.Header.Set("Content-Type", codec.ContentTypeJSON)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
	})

	t.Run("unknown content type is a 415", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/v1/producer/register", bytes.NewReader([]byte("x")))
		req.Header.Set("Content-Type", "text/plain")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnsupportedMediaType {
			t.Errorf("expected 415, got %d", w.Code)
		}
	})
}

func TestEmit(t *testing.T) {
	_, ms, r := newTestHandler(t)

	s := schema.NewBuilder().AddInt("count").AddFloat("temp").AddString("label").Build()
	id := registerProducer(t, r, "weather", s)

	emitCode := func(t *testing.T, e models.Emit) models.ErrorCode {
		t.Helper()
		w := postJSON(t, r, "/v1/producer/emit", e)
		if w.Code != http.StatusOK {
			t.Fatalf("emit returned status %d", w.Code)
		}
		var result models.EmitResult
		if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
			t.Fatalf("failed to decode emit result: %v", err)
		}
		return result.Error
	}

	t.Run("full row is accepted", func(t *testing.T) {
		code := emitCode(t, models.Emit{
			UUID: id,
			Data: map[string]interface{}{"count": 3, "temp": 21.5, "label": "north"},
		})
		if code != models.NoError {
			t.Fatalf("expected NoError, got %s", code)
		}
		rows := ms.Rows(id)
		if len(rows) != 1 {
			t.Fatalf("expected 1 row, got %d", len(rows))
		}
		if rows[0].Values["count"] != int64(3) {
			t.Errorf("count not converted: %#v", rows[0].Values["count"])
		}
	})

	t.Run("partial row is accepted", func(t *testing.T) {
		code := emitCode(t, models.Emit{
			UUID: id,
			Data: map[string]interface{}{"count": 1},
		})
		if code != models.NoError {
			t.Errorf("expected NoError, got %s", code)
		}
	})

	t.Run("client timestamp is preserved", func(t *testing.T) {
		code := emitCode(t, models.Emit{
			UUID:      id,
			Timestamp: 1700000000000,
			Data:      map[string]interface{}{"count": 9},
		})
		if code != models.NoError {
			t.Fatalf("expected NoError, got %s", code)
		}
		rows := ms.Rows(id)
		last := rows[len(rows)-1]
		if last.TS.UnixMilli() != 1700000000000 {
			t.Errorf("timestamp not preserved: %v", last.TS)
		}
	})

	t.Run("unknown column is rejected", func(t *testing.T) {
		code := emitCode(t, models.Emit{
			UUID: id,
			Data: map[string]interface{}{"bogus": 1},
		})
		if code != models.InvalidColumnNames {
			t.Errorf("expected InvalidColumnNames, got %s", code)
		}
	})

	t.Run("wrong value type is rejected", func(t *testing.T) {
		code := emitCode(t, models.Emit{
			UUID: id,
			Data: map[string]interface{}{"count": "not a number"},
		})
		if code != models.InvalidData {
			t.Errorf("expected InvalidData, got %s", code)
		}
	})

	t.Run("unregistered uuid is rejected", func(t *testing.T) {
		code := emitCode(t, models.Emit{
			UUID: "nope",
			Data: map[string]interface{}{"count": 1},
		})
		if code != models.Unregistered {
			t.Errorf("expected Unregistered, got %s", code)
		}
	})

	t.Run("empty data is rejected", func(t *testing.T) {
		code := emitCode(t, models.Emit{UUID: id})
		if code != models.NoMembers {
			t.Errorf("expected NoMembers, got %s", code)
		}
	})

	t.Run("unreadable stored schema is InvalidSchema", func(t *testing.T) {
		// A corrupt row can only appear through the store directly.
		broken := schema.NewBuilder().AddInt("a").Build()
		if err := ms.CreateProducer(&models.Producer{Name: "bad", UUID: "bad-schema", Schema: "{not json"}, broken); err != nil {
			t.Fatalf("failed to seed producer: %v", err)
		}
		code := emitCode(t, models.Emit{
			UUID: "bad-schema",
			Data: map[string]interface{}{"a": 1},
		})
		if code != models.InvalidSchema {
			t.Errorf("expected InvalidSchema, got %s", code)
		}
	})
}

func TestEmitMsgpack(t *testing.T) {
	_, ms, r := newTestHandler(t)

	s := schema.NewBuilder().AddInt("small").AddInt("medium").Build()
	id := registerProducer(t, r, "binary-sensor", s)

	// The decoder hands these back as int8 and uint16 respectively; both
	// have to pass Int conversion.
	body, err := msgpack.Marshal(models.Emit{
		UUID: id,
		Data: map[string]interface{}{"small": 7, "medium": 1000},
	})
	if err != nil {
		t.Fatalf("failed to marshal emit: %v", err)
	}
	req := httptest.NewRequest("POST", "/v1/producer/emit", bytes.NewReader(body))
	req.Header.Set("Content-Type", codec.ContentTypeMsgpack)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("emit returned status %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != codec.ContentTypeMsgpack {
		t.Errorf("response content type should match request, got %q", ct)
	}
	var result models.EmitResult
	if err := msgpack.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode msgpack result: %v", err)
	}
	if result.Error != models.NoError {
		t.Fatalf("expected NoError, got %s", result.Error)
	}
	rows := ms.Rows(id)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Values["small"] != int64(7) || rows[0].Values["medium"] != int64(1000) {
		t.Errorf("values not converted: %#v", rows[0].Values)
	}
}

func TestCheck(t *testing.T) {
	_, _, r := newTestHandler(t)
	id := registerProducer(t, r, "checker", schema.NewBuilder().AddBool("on").Build())

	t.Run("registered uuid returns 200", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/producer/check?uuid="+id, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", w.Code)
		}
	})

	t.Run("unknown uuid returns 404", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/producer/check?uuid=missing", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", w.Code)
		}
	})

	t.Run("missing uuid parameter returns 400", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/producer/check", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
	})
}

func TestListProducers(t *testing.T) {
	_, _, r := newTestHandler(t)
	registerProducer(t, r, "p1", schema.NewBuilder().AddInt("a").Build())
	registerProducer(t, r, "p2", schema.NewBuilder().AddDouble("b").Build())

	req := httptest.NewRequest("GET", "/v1/producers", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Producers []struct {
			Name   string        `json:"name"`
			UUID   string        `json:"uuid"`
			Schema schema.Schema `json:"schema"`
		} `json:"producers"`
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode list response: %v", err)
	}
	if resp.Count != 2 {
		t.Errorf("expected 2 producers, got %d", resp.Count)
	}
	for _, p := range resp.Producers {
		if len(p.Schema) != 1 {
			t.Errorf("producer %s schema not decoded: %#v", p.Name, p.Schema)
		}
	}
}

func TestStatusAndHealth(t *testing.T) {
	_, _, r := newTestHandler(t)

	t.Run("health", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/health", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var resp map[string]string
		json.Unmarshal(w.Body.Bytes(), &resp)
		if resp["status"] != "healthy" {
			t.Errorf("expected healthy, got %q", resp["status"])
		}
	})

	t.Run("status", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/status", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var resp StatusResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode status: %v", err)
		}
		if resp.Status != "ok" {
			t.Errorf("expected ok, got %q", resp.Status)
		}
		if resp.GoVersion == "" {
			t.Error("expected go version to be set")
		}
	})
}
