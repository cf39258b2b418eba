package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-wac/internal/application/dto"
	apphttp "github.com/jhoicas/inventario-wac/internal/interfaces/http"
	pkgjwt "github.com/jhoicas/inventario-wac/pkg/jwt"
)

const (
	testJWTSecret = "test-secret-key-for-unit-tests"
	testUserID    = "00000000-0000-0000-0000-000000000001"
	testIssuer    = "inventario-wac-test"
)

// tokenForRole devuelve el header Authorization completo para el rol.
func tokenForRole(t *testing.T, role string) string {
	t.Helper()
	tok, err := pkgjwt.Generate(testJWTSecret, testUserID, role, testIssuer, 60)
	require.NoError(t, err)
	return "Bearer " + tok
}

// guardedApp expone GET /scope protegido con la política de roles dada; responde el actor y su rol.
func guardedApp(roles ...string) *fiber.App {
	app := fiber.New()
	app.Get("/scope",
		apphttp.AuthMiddleware(testJWTSecret),
		apphttp.RequireRole(roles...),
		func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"actor": apphttp.GetUserID(c), "role": apphttp.GetRole(c)})
		},
	)
	return app
}

func get(t *testing.T, app *fiber.App, authHeader string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/scope", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRequireRole_Politicas(t *testing.T) {
	writers := []string{pkgjwt.RoleAdmin, pkgjwt.RoleOperator}
	readers := []string{pkgjwt.RoleAdmin, pkgjwt.RoleOperator, pkgjwt.RoleAnalyst}
	repair := []string{pkgjwt.RoleAdmin}

	cases := []struct {
		name   string
		policy []string
		role   string
		status int
	}{
		{"operador registra movimientos", writers, pkgjwt.RoleOperator, http.StatusOK},
		{"analista no registra movimientos", writers, pkgjwt.RoleAnalyst, http.StatusForbidden},
		{"analista lee reportes", readers, pkgjwt.RoleAnalyst, http.StatusOK},
		{"admin repara", repair, pkgjwt.RoleAdmin, http.StatusOK},
		{"operador no repara", repair, pkgjwt.RoleOperator, http.StatusForbidden},
		{"rol desconocido", readers, "cajero", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := get(t, guardedApp(tc.policy...), tokenForRole(t, tc.role))
			require.Equal(t, tc.status, resp.StatusCode)
			if tc.status == http.StatusForbidden {
				assert.Equal(t, "FORBIDDEN", decode[dto.ErrorResponse](t, resp).Code)
			}
		})
	}
}

func TestAuthMiddleware_Rechazos(t *testing.T) {
	app := guardedApp(pkgjwt.RoleAdmin)

	sinRol, err := pkgjwt.Generate(testJWTSecret, testUserID, "", testIssuer, 60)
	require.NoError(t, err)
	otraFirma, err := pkgjwt.Generate("otro-secreto", testUserID, pkgjwt.RoleAdmin, testIssuer, 60)
	require.NoError(t, err)
	vencido, err := pkgjwt.Generate(testJWTSecret, testUserID, pkgjwt.RoleAdmin, testIssuer, -1)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		code   string
	}{
		{"sin header", "", "MISSING_TOKEN"},
		{"sin esquema", "abc.def.ghi", "INVALID_TOKEN"},
		{"malformado", "Bearer token.invalido.aqui", "INVALID_TOKEN"},
		{"firma de otro secreto", "Bearer " + otraFirma, "INVALID_TOKEN"},
		{"vencido", "Bearer " + vencido, "INVALID_TOKEN"},
		{"sin claim de rol", "Bearer " + sinRol, "MISSING_ROLE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := get(t, app, tc.header)
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, tc.code, decode[dto.ErrorResponse](t, resp).Code)
		})
	}
}

func TestAuthMiddleware_ActorDelToken(t *testing.T) {
	tok, err := pkgjwt.Generate(testJWTSecret, testUserID, pkgjwt.RoleAnalyst, testIssuer, 60)
	require.NoError(t, err)

	// el esquema no distingue mayúsculas
	resp := get(t, guardedApp(pkgjwt.RoleAnalyst), "bearer "+tok)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, testUserID, body["actor"])
	assert.Equal(t, pkgjwt.RoleAnalyst, body["role"])
}
