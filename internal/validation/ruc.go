// Package validation содержит функции валидации входных данных.
package validation

var rucWeights = [10]int{5, 4, 3, 2, 7, 6, 5, 4, 3, 2}

// IsValidRUC проверяет номер налогоплательщика (RUC): 11 цифр, допустимый
// префикс и контрольная цифра по модулю 11.
func IsValidRUC(ruc string) bool {
	if len(ruc) != 11 {
		return false
	}

	for _, ch := range ruc {
		if ch < '0' || ch > '9' {
			return false
		}
	}

	switch ruc[:2] {
	case "10", "15", "17", "20":
	default:
		return false
	}

	sum := 0
	for i, w := range rucWeights {
		sum += int(ruc[i]-'0') * w
	}

	check := 11 - sum%11
	switch check {
	case 10:
		check = 0
	case 11:
		check = 1
	}

	return check == int(ruc[10]-'0')
}
