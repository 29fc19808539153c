package service

import "strings"

// Niveles ordinales de permiso: view < manage < fullaccess.
const (
	levelView       = 1
	levelManage     = 2
	levelFullAccess = 3
)

func permissionLevel(name string) int {
	switch name {
	case "view":
		return levelView
	case "manage":
		return levelManage
	case "fullaccess":
		return levelFullAccess
	}
	return 0
}

// splitPermission separa "resource.level"; exige exactamente dos segmentos.
func splitPermission(p string) (resource, level string, ok bool) {
	parts := strings.Split(p, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// HasPermission decide si algún permiso retenido para la misma resource
// alcanza el nivel requerido. Permisos malformados tienen nivel indefinido y
// nunca alcanzan; jamás produce error.
func HasPermission(held []string, required string) bool {
	resource, level, ok := splitPermission(required)
	if !ok {
		return false
	}
	req := permissionLevel(level)
	if req == 0 {
		return false
	}

	best := 0
	for _, p := range held {
		r, l, ok := splitPermission(p)
		if !ok || r != resource {
			continue
		}
		if lvl := permissionLevel(l); lvl > best {
			best = lvl
		}
	}
	return best >= req
}

// RoleCatalog mapea nombre de rol a sus permisos. Se carga una vez al inicio
// de la sesión y es de solo lectura después.
type RoleCatalog map[string][]string

// DefaultRoleCatalog cubre los roles estándar de la consola.
var DefaultRoleCatalog = RoleCatalog{
	"viewer": {"workspaces.view", "solutions.view", "datasources.view", "assistant.view"},
	"editor": {"workspaces.view", "solutions.manage", "datasources.manage", "assistant.manage"},
	"admin":  {"workspaces.fullaccess", "solutions.fullaccess", "datasources.fullaccess", "assistant.fullaccess"},
}

// PermissionsFor junta los permisos de todos los roles dados.
func (c RoleCatalog) PermissionsFor(roles []string) []string {
	var out []string
	for _, role := range roles {
		out = append(out, c[role]...)
	}
	return out
}

// Allowed evalúa un permiso requerido contra los roles del usuario.
func (c RoleCatalog) Allowed(roles []string, required string) bool {
	return HasPermission(c.PermissionsFor(roles), required)
}
