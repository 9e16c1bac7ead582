package handler_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"
)

func TestExamSubmissionContract(t *testing.T) {
	schemaPath, err := filepath.Abs(filepath.Join("testdata", "exam_submission.schema.json"))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)

	start, end := openWindow()
	api := setupExamAPI(t, start, end)
	q1, q2 := api.questions[0].ID, api.questions[1].ID

	status, resp := api.call(t, http.MethodPost, fmt.Sprintf("/api/v1/exams/%d/begin", api.exam.ID), 200, "student", nil)
	require.Equal(t, http.StatusOK, status)
	var begun struct {
		Submission struct {
			ID uint `json:"id"`
		} `json:"submission"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &begun))

	status, _ = api.call(t, http.MethodPost, fmt.Sprintf("/api/v1/exams/%d/submissions/%d/submit", api.exam.ID, begun.Submission.ID), 200, "student", map[string]interface{}{
		"answers": []map[string]interface{}{{"question_id": q1, "answer": "Joule"}},
	})
	require.Equal(t, http.StatusOK, status)

	status, _ = api.call(t, http.MethodPost, fmt.Sprintf("/api/v1/exam-submissions/%d/grade", begun.Submission.ID), 100, "teacher", map[string]interface{}{
		"scores": []map[string]interface{}{{"question_id": q1, "score": 0}, {"question_id": q2, "score": 0}},
	})
	require.Equal(t, http.StatusOK, status)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/exam-submissions/%d", begun.Submission.ID), nil)
	req.Header.Set("X-Test-User", "100")
	req.Header.Set("X-Test-Role", "teacher")
	httpResp, err := api.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, httpResp.StatusCode)

	body, err := io.ReadAll(httpResp.Body)
	require.NoError(t, err)
	httpResp.Body.Close()

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
	require.Contains(t, string(body), `"history"`)
}
