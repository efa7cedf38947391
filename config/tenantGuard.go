package config

import (
	"context"
	"strings"

	"github.com/mmdatafocus/retail_backend/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const tenantColumn = "organization_id"

// TenantGuardPlugin scopes queries/updates/deletes to the request's organization_id
// when the model has that column.
//
// NOTE:
// - Raw SQL is not rewritten; it must filter organization_id itself.
// - Admin/internal bypass is explicit via context flags.
type TenantGuardPlugin struct{}

func NewTenantGuardPlugin() *TenantGuardPlugin { return &TenantGuardPlugin{} }

func (p *TenantGuardPlugin) Name() string { return "tenant_guard" }

func (p *TenantGuardPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("tenant_guard:query", tenantGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Row().Before("gorm:row").Register("tenant_guard:row", tenantGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("tenant_guard:update", tenantGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("tenant_guard:delete", tenantGuardCallback); err != nil {
		return err
	}
	return nil
}

func tenantGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	if shouldBypassTenantScope(ctx) {
		return
	}
	orgID := organizationIdFromContext(ctx)
	if orgID == "" {
		return
	}
	if db.Statement.Schema == nil {
		return
	}
	if _, ok := db.Statement.Schema.FieldsByDBName[tenantColumn]; !ok {
		return
	}
	if whereHasTenantColumn(db.Statement.Clauses["WHERE"]) {
		return
	}

	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: db.Statement.Table, Name: tenantColumn},
				Value:  orgID,
			},
		},
	})
}

func organizationIdFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(appctx.ContextKeyOrganizationId).(string); ok && v != "" {
		return v
	}
	return ""
}

func shouldBypassTenantScope(ctx context.Context) bool {
	if v, ok := ctx.Value(appctx.ContextKeySkipTenantScope).(bool); ok && v {
		return true
	}
	if v, ok := ctx.Value(appctx.ContextKeyIsAdmin).(bool); ok && v {
		return true
	}
	return false
}

func whereHasTenantColumn(c clause.Clause) bool {
	if c.Expression == nil {
		return false
	}
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprHasTenantColumn(e) {
			return true
		}
	}
	return false
}

func exprHasTenantColumn(e clause.Expression) bool {
	switch v := e.(type) {
	case clause.Eq:
		return colIsTenant(v.Column)
	case clause.Neq:
		return colIsTenant(v.Column)
	case clause.IN:
		return colIsTenant(v.Column)
	case clause.AndConditions:
		for _, x := range v.Exprs {
			if exprHasTenantColumn(x) {
				return true
			}
		}
		return false
	case clause.OrConditions:
		for _, x := range v.Exprs {
			if exprHasTenantColumn(x) {
				return true
			}
		}
		return false
	case clause.Expr:
		// Best-effort for raw expressions.
		return strings.Contains(strings.ToLower(v.SQL), tenantColumn)
	case clause.NamedExpr:
		return strings.Contains(strings.ToLower(v.SQL), tenantColumn)
	default:
		return false
	}
}

func colIsTenant(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, tenantColumn)
	case clause.Column:
		return strings.EqualFold(c.Name, tenantColumn)
	default:
		return false
	}
}
