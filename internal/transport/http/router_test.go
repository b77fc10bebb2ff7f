package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(actorHeader, "admin@example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	out, _ := decoded.(map[string]any)
	return resp, out
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/api/register", map[string]any{
		"name": "Liam", "email": "Liam@Student.com", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "liam@student.com", body["email"])
	assert.NotContains(t, body, "passwordHash")

	resp, _ = f.do(t, http.MethodPost, "/api/register", map[string]any{
		"name": "Liam again", "email": "liam@student.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = f.do(t, http.MethodPost, "/api/register", map[string]any{
		"name": "Bad", "email": "not-an-email", "password": "secret1",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "email", body["field"])

	resp, _ = f.do(t, http.MethodPost, "/api/login", map[string]any{"email": "liam@student.com", "password": "secret1"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = f.do(t, http.MethodPost, "/api/login", map[string]any{"email": "liam@student.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminSetLifecycle(t *testing.T) {
	f := newFixture(t)

	resp, set := f.do(t, http.MethodPost, "/api/admin/sets", map[string]any{"name": "Geography"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	setID, _ := set["id"].(string)
	require.NotEmpty(t, setID)

	resp, body := f.do(t, http.MethodPost, "/api/admin/sets/"+setID+"/questions/mcq", map[string]any{
		"text": "Capital of Italy?", "options": []string{"Rome"}, "correctIndex": 0,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "options", body["field"])

	resp, _ = f.do(t, http.MethodPost, "/api/admin/sets/"+setID+"/questions/mcq", map[string]any{
		"text": "Capital of Italy?", "options": []string{"Rome", "Milan"}, "correctIndex": 0,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = f.do(t, http.MethodPost, "/api/admin/assignments", map[string]any{
		"setId": setID, "userIds": []string{"u1", "ghost"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["created"], 1)
	assert.Len(t, body["skipped"], 1)

	resp, _ = f.do(t, http.MethodPatch, "/api/admin/sets/"+setID, map[string]any{"name": "World Geography"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, set = f.do(t, http.MethodGet, "/api/admin/sets/"+setID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "World Geography", set["name"])

	resp, _ = f.do(t, http.MethodDelete, "/api/admin/sets/"+setID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = f.do(t, http.MethodGet, "/api/admin/sets/"+setID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStudentAttemptOverREST(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodGet, "/api/students/u1/review/set-1", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	for round := 0; round < 2; round++ {
		resp, snap := f.do(t, http.MethodPost, "/api/students/u1/attempt", map[string]any{"assignmentId": "a1"})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, "in_progress", snap["state"])

		resp, _ = f.do(t, http.MethodPost, "/api/students/u1/attempt/answers", map[string]any{"questionId": "q1", "optionIndex": 7})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		resp, _ = f.do(t, http.MethodPost, "/api/students/u1/attempt/answers", map[string]any{"questionId": "q1", "optionIndex": 0})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp, _ = f.do(t, http.MethodPost, "/api/students/u1/attempt/answers", map[string]any{"questionId": "q2", "optionIndex": 1})
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, body := f.do(t, http.MethodPost, "/api/students/u1/attempt/submit", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		result, _ := body["result"].(map[string]any)
		attempt, _ := result["attempt"].(map[string]any)
		assert.Equal(t, float64(50), attempt["percentage"])

		resp, _ = f.do(t, http.MethodDelete, "/api/students/u1/attempt", nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	}

	resp, _ = f.do(t, http.MethodPost, "/api/students/u1/attempt", map[string]any{"assignmentId": "a1"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, review := f.do(t, http.MethodGet, "/api/students/u1/review/set-1?incorrectOnly=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items, _ := review["items"].([]any)
	require.Len(t, items, 1)
	item, _ := items[0].(map[string]any)
	assert.Equal(t, float64(1), item["number"])

	resp, body := f.do(t, http.MethodPost, "/api/students/u1/bookmarks", map[string]any{"setId": "set-1", "questionId": "q1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["bookmarked"])

	resp, dash := f.do(t, http.MethodGet, "/api/students/u1/dashboard", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rows, _ := dash["rows"].([]any)
	require.Len(t, rows, 1)
	row, _ := rows[0].(map[string]any)
	assert.Equal(t, float64(0), row["remaining"])
	assert.Equal(t, true, row["reviewUnlocked"])
}
