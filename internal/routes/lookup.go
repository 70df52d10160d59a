package routes

import (
	"github.com/labstack/echo/v4"

	"repair-tracker/internal/controllers"
)

func runLookupRouter(secureGroup *echo.Group, lookupCtrl *controllers.LookupController) {
	secureGroup.GET("/employees", lookupCtrl.GetEmployees)
	secureGroup.GET("/service_companies", lookupCtrl.GetServiceCompanies)
	secureGroup.GET("/equipment_types", lookupCtrl.GetEquipmentTypes)
}
