package middleware

import (
	"github.com/medreg/patient-registry/database/model"

	"github.com/gin-gonic/gin"
)

// LoginRequired admits any logged-in account.
func LoginRequired() gin.HandlerFunc {
	return RoleRequired()
}

// AdminRequired admits only accounts with the admin role.
func AdminRequired() gin.HandlerFunc {
	return RoleRequired(model.RoleAdmin)
}
