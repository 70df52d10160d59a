package seeders

import "repair-tracker/internal/entities"

var employeesData = []string{
	"Иванов Иван Иванович",
	"Петров Петр Сергеевич",
	"Сидорова Анна Викторовна",
	"Кузнецов Алексей Павлович",
}

var serviceCompaniesData = []string{
	"СервисТехника",
	"ИнфоРемонт",
	"ТулаОргСервис",
}

var equipmentTypesData = []string{
	"Ноутбук",
	"Принтер",
	"МФУ",
	"Монитор",
	"Системный блок",
	"ИБП",
}

// DemoLookups - справочники для STORAGE_DRIVER=memory. id назначаются по порядку с 1,
// как их выдала бы пустая таблица с identity.
func DemoLookups() (employees, serviceCompanies, equipmentTypes []entities.LookupItem) {
	return toLookupItems(employeesData), toLookupItems(serviceCompaniesData), toLookupItems(equipmentTypesData)
}

func toLookupItems(labels []string) []entities.LookupItem {
	items := make([]entities.LookupItem, 0, len(labels))
	for i, label := range labels {
		items = append(items, entities.LookupItem{ID: uint64(i + 1), Label: label})
	}
	return items
}
