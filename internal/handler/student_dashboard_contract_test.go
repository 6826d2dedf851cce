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

	"github.com/noah-isme/tutorlink-api/internal/dto"
	"github.com/noah-isme/tutorlink-api/internal/models"
)

func TestStudentDashboardContract(t *testing.T) {
	schemaPath, err := filepath.Abs(filepath.Join("testdata", "student_dashboard.schema.json"))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + filepath.ToSlash(schemaPath))
	require.NoError(t, err)

	server := newTestServer(t, serverOptions{})
	student := server.seedUser(t, models.UserRoleStudent, "contract-student@example.com")
	tutor := server.seedUser(t, models.UserRoleTutor, "contract-tutor@example.com")
	admin := server.seedUser(t, models.UserRoleAdmin, "contract-admin@example.com")

	status, env := server.do(t, http.MethodPost, "/api/v1/tuitions", tokenFor(t, student), mathTuitionPayload())
	require.Equal(t, http.StatusCreated, status, env.Message)
	var tuition dto.TuitionResponse
	decodeData(t, env, &tuition)

	status, _ = server.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/admin/tuitions/%d/approve", tuition.ID), tokenFor(t, admin), nil)
	require.Equal(t, http.StatusOK, status)

	status, env = server.do(t, http.MethodPost, "/api/v1/applications", tokenFor(t, tutor), map[string]interface{}{
		"tuition_id":      tuition.ID,
		"qualifications":  "MSc Applied Mathematics",
		"experience":      "3 years",
		"expected_salary": 4500,
	})
	require.Equal(t, http.StatusCreated, status, env.Message)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/student/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, student))
	resp, err := server.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "MISS", resp.Header.Get("X-Cache"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))

	var typed struct {
		Data dto.StudentDashboardResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &typed))
	require.EqualValues(t, 1, typed.Data.Tuitions.Total)
	require.EqualValues(t, 1, typed.Data.Applications.ByStatus[models.ApplicationStatusPending])
	require.Len(t, typed.Data.RecentApplications, 1)
}
