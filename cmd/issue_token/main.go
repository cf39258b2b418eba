// issue_token emite un Bearer token para un usuario y rol (admin, operador, analista).
// El API no gestiona usuarios: el token lo emite quien administra el despliegue.
//
// Uso: go run ./cmd/issue_token -user u-123 -role operador [-minutes 480]
package main

import (
	"flag"
	"fmt"
	"os"
	"slices"

	"github.com/jhoicas/inventario-wac/pkg/config"
	"github.com/jhoicas/inventario-wac/pkg/jwt"
)

var roles = []string{jwt.RoleAdmin, jwt.RoleOperator, jwt.RoleAnalyst}

func main() {
	user := flag.String("user", "", "ID del usuario (actor de los movimientos)")
	role := flag.String("role", jwt.RoleAnalyst, "admin | operador | analista")
	minutes := flag.Int("minutes", 0, "Vigencia en minutos (default JWT_EXPIRATION_MINUTES)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cargar configuración: %v\n", err)
		os.Exit(1)
	}
	token, err := issue(cfg.JWT, *user, *role, *minutes)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func issue(cfg config.JWTConfig, user, role string, minutes int) (string, error) {
	if user == "" {
		return "", fmt.Errorf("-user es obligatorio")
	}
	if !slices.Contains(roles, role) {
		return "", fmt.Errorf("rol %q inválido (admin|operador|analista)", role)
	}
	if minutes <= 0 {
		minutes = cfg.Expiration
	}
	return jwt.Generate(cfg.Secret, user, role, cfg.Issuer, minutes)
}
