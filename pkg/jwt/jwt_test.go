package jwt_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgjwt "github.com/jhoicas/inventario-wac/pkg/jwt"
)

func TestGenerateParse(t *testing.T) {
	tok, err := pkgjwt.Generate("s3cret", "user-1", pkgjwt.RoleOperator, "inventario-wac", 5)
	require.NoError(t, err)

	claims, err := pkgjwt.Parse("s3cret", tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, pkgjwt.RoleOperator, claims.Role)
	assert.Equal(t, "inventario-wac", claims.Issuer)
}

func TestParse_FirmaIncorrecta(t *testing.T) {
	tok, err := pkgjwt.Generate("s3cret", "user-1", pkgjwt.RoleAdmin, "i", 5)
	require.NoError(t, err)

	_, err = pkgjwt.Parse("otro", tok)
	assert.True(t, errors.Is(err, pkgjwt.ErrInvalidToken))
}

func TestParse_Expirado(t *testing.T) {
	tok, err := pkgjwt.Generate("s3cret", "user-1", pkgjwt.RoleAdmin, "i", -1)
	require.NoError(t, err)

	_, err = pkgjwt.Parse("s3cret", tok)
	assert.True(t, errors.Is(err, pkgjwt.ErrInvalidToken))
}

func TestGenerate_SinSecret(t *testing.T) {
	_, err := pkgjwt.Generate("", "user-1", pkgjwt.RoleAdmin, "i", 5)
	assert.Error(t, err)
}
