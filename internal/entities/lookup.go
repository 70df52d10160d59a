package entities

// LookupItem - элемент справочника (сотрудник, сервисная компания, тип оборудования).
type LookupItem struct {
	ID    uint64 `json:"id"`
	Label string `json:"label"`
}

// LookupIndex строит словарь id -> подпись для подстановки имен в списки и отчеты.
func LookupIndex(items []LookupItem) map[uint64]string {
	index := make(map[uint64]string, len(items))
	for _, item := range items {
		index[item.ID] = item.Label
	}
	return index
}
