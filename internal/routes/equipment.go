package routes

import (
	"github.com/labstack/echo/v4"

	"repair-tracker/internal/controllers"
)

func runEquipmentRouter(secureGroup *echo.Group, equipmentCtrl *controllers.EquipmentController) {
	secureGroup.GET("/equipment", equipmentCtrl.GetEquipment)
	secureGroup.GET("/equipment/in-repair", equipmentCtrl.GetInRepair)
	secureGroup.GET("/equipment/show", equipmentCtrl.ShowInRepair)
	secureGroup.GET("/equipment/export", equipmentCtrl.Export)
	secureGroup.POST("/equipment", equipmentCtrl.Intake)
	secureGroup.PUT("/equipment/:sn/return", equipmentCtrl.Return)
}
