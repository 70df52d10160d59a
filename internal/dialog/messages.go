package dialog

// Тексты, которые видит пользователь бота.
const (
	promptSender         = "Выберите отправителя:"
	promptServiceCompany = "Выберите сервисную компанию:"
	promptEquipmentType  = "Выберите тип оборудования:"
	promptSerial         = "Введите серийный номер (SN) оборудования:"
	promptReturnSerial   = "Выберите оборудование, которое вернулось из ремонта:"
	promptReceiver       = "Выберите, кто принял оборудование:"

	msgIdle        = "Нет активного действия. Выберите действие в меню или отправьте /help."
	msgCancelled   = "Действие отменено."
	msgRetrieval   = "⚠️ Не удалось получить данные. Попробуйте позже."
	msgNoEmployees = "Список сотрудников пуст. Обратитесь к администратору."
	msgNoCompanies = "Список сервисных компаний пуст. Обратитесь к администратору."
	msgNoTypes     = "Список типов оборудования пуст. Обратитесь к администратору."
	msgNoInRepair  = "Сейчас нет оборудования в ремонте."

	msgIntakeDone        = "✅ Оборудование с SN %s отправлено в ремонт %s."
	msgReturnDone        = "✅ Оборудование с SN %s принято из ремонта %s."
	msgSerialInRepair    = "❌ Оборудование с SN %s уже находится в ремонте. Начните заново: /torepair"
	msgSerialNotInRepair = "❌ Оборудование с SN %s не находится в ремонте. Начните заново: /fromrepair"
	msgInvalidSubmit     = "❌ %s"
	msgInvalidSerial     = "❌ Некорректный SN: от %d до %d букв или цифр, без пробелов и спецсимволов."
)
